package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"clinicd/internal/backend"
	"clinicd/internal/config"
	"clinicd/internal/device"
	"clinicd/pkg/types"
)

func TestBackendSpecsMergesDiscovered(t *testing.T) {
	mc := config.Default().Models
	mc.Summarizer.Path = "/explicit/summarizer.gguf"
	mc.Generator = config.BackendConfig{Backend: "openai", BaseURL: "http://vllm/v1", Model: "gen"}
	found := map[types.Category]types.Model{
		types.CategoryClassify:  {Category: types.CategoryClassify, Path: "/models/classifier"},
		types.CategorySummarize: {Category: types.CategorySummarize, Path: "/models/summarizer/a.gguf"},
		types.CategoryGenerate:  {Category: types.CategoryGenerate, Path: "/models/generator/g.gguf", Adapter: "/models/generator/adapter/l.gguf"},
	}
	specs := backendSpecs(mc, found)
	if specs[types.CategoryClassify].Path != "/models/classifier" {
		t.Fatalf("classify=%+v", specs[types.CategoryClassify])
	}
	if specs[types.CategorySummarize].Path != "/explicit/summarizer.gguf" {
		t.Fatalf("explicit path should win: %+v", specs[types.CategorySummarize])
	}
	if g := specs[types.CategoryGenerate]; g.Backend != backend.OpenAI || g.Path != "" || g.Adapter != "" {
		t.Fatalf("remote backend must not take local artifacts: %+v", g)
	}
}

func TestBuildSelector(t *testing.T) {
	mc := config.Default().Models
	mc.Device = "cpu"
	mc.Pins = map[string]string{"generate": "cpu"}
	sel, err := buildSelector(mc)
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	if sel.Global() != device.CPU {
		t.Fatalf("global=%s", sel.Global())
	}
	mc.Pins = map[string]string{"generate": "tpu"}
	if _, err := buildSelector(mc); err == nil {
		t.Fatalf("expected error for unknown pin device")
	}
}

func TestBuildLimiterRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := config.Default().RateLimit
	rc.RedisURL = "redis://" + mr.Addr()
	l, client, err := buildLimiter(rc)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	defer client.Close()
	if l.Backend() != "redis" {
		t.Fatalf("backend=%s", l.Backend())
	}
	d := l.Allow(context.Background(), "10.0.0.1", types.TierAnonymous)
	if !d.Permitted || d.Limit != rc.Anonymous {
		t.Fatalf("decision=%+v", d)
	}
}

func TestBuildLimiterBadURL(t *testing.T) {
	rc := config.Default().RateLimit
	rc.RedisURL = "not-a-url://"
	if _, _, err := buildLimiter(rc); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPipelineConfigFromDefaults(t *testing.T) {
	if err := pipelineConfig(config.Default().Pipeline).Validate(); err != nil {
		t.Fatalf("pipeline config: %v", err)
	}
}

func TestBuildServesStatus(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "summarizer"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summarizer", "s.gguf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Models.Dir = dir
	cfg.Models.Device = "cpu"
	cfg.Models.LoadTimeout = config.Duration(time.Second)

	a, err := build(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/get_status", nil))
	var ds types.DeviceStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &ds); err != nil || ds.Device != "cpu" {
		t.Fatalf("get_status=%s", w.Body.String())
	}
	if a.models.Ready() {
		t.Fatalf("nothing is loaded yet")
	}
	if a.limiter == nil || a.limiter.Backend() != "memory" {
		t.Fatalf("expected local limiter")
	}
}

func TestSanityCheckReportsMissingArtifacts(t *testing.T) {
	cfg := config.Default()
	cfg.Models.Dir = filepath.Join(t.TempDir(), "missing")
	cfg.Models.Device = "cpu"
	cfg.Log.Level = "off"
	report, err := sanityCheck(context.Background(), cfg)
	if err != nil {
		t.Fatalf("sanity: %v", err)
	}
	if report.OK {
		t.Fatalf("expected failures for empty paths: %+v", report)
	}
}
