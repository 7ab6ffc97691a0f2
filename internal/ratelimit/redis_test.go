package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"clinicd/pkg/types"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client)
}

func TestRedisStore_IncrSetsTTLOnFirstHit(t *testing.T) {
	mr, s := newMiniredis(t)
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		n, err := s.Incr(ctx, "k", 30*time.Second)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != i {
			t.Fatalf("n=%d want %d", n, i)
		}
	}
	if ttl := mr.TTL("k"); ttl <= 0 || ttl > 30*time.Second {
		t.Fatalf("ttl=%v", ttl)
	}
	mr.FastForward(31 * time.Second)
	if mr.Exists("k") {
		t.Fatalf("key did not expire")
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestRedisLimiter_WindowAndKeys(t *testing.T) {
	mr, s := newMiniredis(t)
	clk := newClock()
	l, err := New(s, DefaultConfig(), WithClock(clk.Now))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if d := l.Allow(ctx, "1.2.3.4", types.TierAnonymous); !d.Permitted || d.Degraded {
			t.Fatalf("request %d: %+v", i, d)
		}
	}
	d := l.Allow(ctx, "1.2.3.4", types.TierAnonymous)
	if d.Permitted || d.RetryAfter <= 0 {
		t.Fatalf("11th: %+v", d)
	}
	windowID := clk.Now().UnixMilli() / time.Minute.Milliseconds()
	key := l.Key(types.TierAnonymous, "1.2.3.4", windowID)
	if v, err := mr.Get(key); err != nil || v != "11" {
		t.Fatalf("counter %s=%q err=%v", key, v, err)
	}
	clk.Advance(time.Minute)
	if d := l.Allow(ctx, "1.2.3.4", types.TierAnonymous); !d.Permitted {
		t.Fatalf("next window denied")
	}
}

func TestRedisLimiter_ConcurrentExactLimit(t *testing.T) {
	_, s := newMiniredis(t)
	clk := newClock()
	l, _ := New(s, DefaultConfig(), WithClock(clk.Now))
	var wg sync.WaitGroup
	var mu sync.Mutex
	permitted := 0
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(context.Background(), "herd", types.TierAnonymous).Permitted {
				mu.Lock()
				permitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if permitted != 10 {
		t.Fatalf("permitted=%d want 10", permitted)
	}
}

func TestRedisLimiter_FallsBackAndRecovers(t *testing.T) {
	mr, s := newMiniredis(t)
	clk := newClock()
	l, _ := New(s, DefaultConfig(), WithClock(clk.Now))
	ctx := context.Background()

	mr.SetError("ERR simulated outage")
	d := l.Allow(ctx, "ip", types.TierAnonymous)
	if !d.Permitted || !d.Degraded || !l.Degraded() {
		t.Fatalf("expected degraded permit, got %+v", d)
	}
	mr.SetError("")
	d = l.Allow(ctx, "ip", types.TierAnonymous)
	if d.Degraded || l.Degraded() {
		t.Fatalf("expected recovery, got %+v", d)
	}
}

func TestNewRedisStoreURL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, c, err := NewRedisStoreURL("redis://"+mr.Addr()+"/0", time.Second)
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	defer c.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, _, err := NewRedisStoreURL("http://nope", 0); err == nil {
		t.Fatalf("expected bad scheme error")
	}
}
