// Package auth resolves the caller identity and tier from a bearer token.
// Token issuance happens elsewhere; this package only verifies HS256 JWTs.
package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"clinicd/pkg/types"
)

// Identity is the resolved caller.
type Identity struct {
	// Subject is the token subject, or the client IP for anonymous callers.
	Subject   string
	Tier      types.Tier
	Anonymous bool
}

// Claims is the accepted token payload.
type Claims struct {
	Email string `json:"email,omitempty"`
	Tier  string `json:"tier,omitempty"`
	jwt.RegisteredClaims
}

// UnauthorizedError rejects a request that presented a bad token.
type UnauthorizedError struct{ Reason string }

func (e *UnauthorizedError) Error() string { return "unauthorized: " + e.Reason }

// IsUnauthorized reports whether err is an *UnauthorizedError.
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}

// Resolver verifies bearer tokens.
type Resolver struct {
	secret []byte
	leeway time.Duration
}

// NewResolver returns a resolver for secret. With an empty secret every
// caller is anonymous and Authorization headers are ignored.
func NewResolver(secret string, leeway time.Duration) *Resolver {
	return &Resolver{secret: []byte(secret), leeway: leeway}
}

// Enabled reports whether tokens are verified.
func (r *Resolver) Enabled() bool { return len(r.secret) > 0 }

// Resolve returns the identity for req. A missing token yields an anonymous
// identity keyed by client address; an invalid token is an error.
func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	anon := Identity{Subject: ClientIP(req), Tier: types.TierAnonymous, Anonymous: true}
	if !r.Enabled() {
		return anon, nil
	}
	h := req.Header.Get("Authorization")
	if h == "" {
		return anon, nil
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Identity{}, &UnauthorizedError{Reason: "malformed authorization header"}
	}
	return r.Verify(strings.TrimSpace(token))
}

// Verify parses and validates a raw token.
func (r *Resolver) Verify(raw string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(r.leeway))
	if err != nil {
		return Identity{}, &UnauthorizedError{Reason: err.Error()}
	}
	if claims.Subject == "" {
		return Identity{}, &UnauthorizedError{Reason: "token has no subject"}
	}
	tier := types.TierAuthenticated
	if claims.Tier != "" {
		tier, _ = types.ParseTier(claims.Tier)
	}
	return Identity{Subject: claims.Subject, Tier: tier}, nil
}

// ClientIP returns the host part of req.RemoteAddr.
func ClientIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

type ctxKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
