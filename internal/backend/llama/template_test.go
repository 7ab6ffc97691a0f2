package llama

import (
	"testing"

	"clinicd/internal/device"
	"clinicd/internal/manager"
)

func TestRenderLlama3(t *testing.T) {
	got := RenderLlama3([]manager.Message{
		{Role: manager.RoleSystem, Content: "You are a clinician."},
		{Role: manager.RoleUser, Content: " Pathology: BPD \n"},
	})
	want := "<|begin_of_text|>" +
		"<|start_header_id|>system<|end_header_id|>\n\nYou are a clinician.<|eot_id|>" +
		"<|start_header_id|>user<|end_header_id|>\n\nPathology: BPD<|eot_id|>" +
		"<|start_header_id|>assistant<|end_header_id|>\n\n"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestGPULayers(t *testing.T) {
	cases := []struct {
		p    device.Placement
		want int
	}{
		{device.Placement{Kind: device.CPU}, 0},
		{device.Placement{Kind: device.CUDA, Optimized: true}, allLayers},
		{device.Placement{Kind: device.CUDA}, 12},
		{device.Placement{Kind: device.MPS}, 12},
	}
	for _, tc := range cases {
		if got := gpuLayers(tc.p, 12); got != tc.want {
			t.Fatalf("gpuLayers(%v)=%d want %d", tc.p, got, tc.want)
		}
	}
}

func TestLoaderDefaultsAndCheck(t *testing.T) {
	l := NewGeneratorLoader(Config{})
	if l.cfg.ContextSize != defaultContextSize || l.cfg.Threads != defaultThreads || l.cfg.GPULayers != defaultGPULayers {
		t.Fatalf("defaults not applied: %+v", l.cfg)
	}
	if err := l.Check(); err == nil {
		t.Fatalf("expected empty path error")
	}
	l = NewSummarizerLoader(Config{ModelPath: "/does/not/exist.gguf"})
	if err := l.Check(); err == nil {
		t.Fatalf("expected missing file error")
	}
}
