package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestLoggerAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))
	defer SetLogger(zerolog.Nop())

	h := NewMux(&fakeModels{}, &fakeAnalyzer{})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Request-Id", "req-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-123"`) || !strings.Contains(out, `"status":200`) {
		t.Fatalf("log=%s", out)
	}
}

func TestRequestLoggerLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))
	defer SetLogger(zerolog.Nop())

	h := NewMux(&fakeModels{}, &fakeAnalyzer{})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Log-Level", "error")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if buf.Len() != 0 {
		t.Fatalf("expected no info line, got %s", buf.String())
	}
}
