package onnx

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"clinicd/internal/device"
	"clinicd/pkg/types"
)

func TestSoftmax(t *testing.T) {
	p := softmax([]float32{1, 2, 3})
	var sum float64
	for _, v := range p {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("sum=%v", sum)
	}
	if !(p[2] > p[1] && p[1] > p[0]) {
		t.Fatalf("order not preserved: %v", p)
	}
	// Large logits must not overflow
	p = softmax([]float32{1000, 1000})
	if math.IsNaN(p[0]) || math.Abs(p[0]-0.5) > 1e-9 {
		t.Fatalf("unstable softmax: %v", p)
	}
	if softmax(nil) != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()

	got, err := loadLabels(filepath.Join(dir, "missing.json"))
	if err != nil || !reflect.DeepEqual(got, types.Pathologies) {
		t.Fatalf("default labels=%v err=%v", got, err)
	}

	arr := filepath.Join(dir, "arr.json")
	_ = os.WriteFile(arr, []byte(`["Depression","Anxiety"]`), 0o644)
	if got, err := loadLabels(arr); err != nil || !reflect.DeepEqual(got, []string{"Depression", "Anxiety"}) {
		t.Fatalf("array labels=%v err=%v", got, err)
	}

	idx := filepath.Join(dir, "idx.json")
	_ = os.WriteFile(idx, []byte(`{"1":"BPD","0":"Schizophrenia"}`), 0o644)
	if got, err := loadLabels(idx); err != nil || !reflect.DeepEqual(got, []string{"Schizophrenia", "BPD"}) {
		t.Fatalf("index labels=%v err=%v", got, err)
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`["Depression","Insomnia"]`), 0o644)
	if _, err := loadLabels(bad); err == nil || !strings.Contains(err.Error(), "Insomnia") {
		t.Fatalf("expected unknown label error, got %v", err)
	}
}

func TestLoaderCheck(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(Config{Dir: dir})
	if err := l.Check(); err == nil {
		t.Fatalf("expected missing model error")
	}
	_ = os.WriteFile(filepath.Join(dir, modelFile), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, vocabFile), []byte("[PAD]\n"), 0o644)
	if err := l.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
	if l.Describe() != "onnx" || l.cfg.SeqLen != DefaultSeqLen {
		t.Fatalf("unexpected loader %+v", l.cfg)
	}
}

func TestLoad_MissingBundleFailsBeforeRuntime(t *testing.T) {
	l := NewLoader(Config{Dir: filepath.Join(t.TempDir(), "nope")})
	if _, err := l.Load(context.Background(), device.Placement{Kind: device.CPU}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResolveSharedLibraryPath(t *testing.T) {
	if got := resolveSharedLibraryPath("/opt/ort/libonnxruntime.so", ""); got != "/opt/ort/libonnxruntime.so" {
		t.Fatalf("explicit path ignored: %q", got)
	}
	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "/env/libonnxruntime.so")
	if got := resolveSharedLibraryPath("", ""); got != "/env/libonnxruntime.so" {
		t.Fatalf("env path ignored: %q", got)
	}
	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "")
	dir := t.TempDir()
	lib := filepath.Join(dir, "libonnxruntime.so")
	_ = os.WriteFile(lib, []byte{}, 0o644)
	if got := resolveSharedLibraryPath("", dir); got != lib {
		t.Fatalf("bundle path=%q want %q", got, lib)
	}
}

func TestClassifyAfterCloseFails(t *testing.T) {
	tok, err := NewWordPieceTokenizer(testVocab())
	if err != nil {
		t.Fatalf("tokenizer: %v", err)
	}
	c := &Classifier{tokenizer: tok, labels: types.Pathologies, seqLen: 16}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Classify(context.Background(), "low mood"); err == nil {
				t.Errorf("expected error from closed classifier")
			}
		}()
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()
}
