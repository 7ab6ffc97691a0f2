//go:build blackbox

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/internal/e2e/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds the server binary")
	}
	binPath := filepath.Join(t.TempDir(), "clinicd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/clinicd")
	cmd.Dir = projectRootFromThisFile(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// createModelsDir lays out placeholder artifacts. They are enough for
// discovery but fail to load.
func createModelsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, p := range []string{
		"classifier/model.onnx",
		"classifier/vocab.txt",
		"summarizer/summarizer.gguf",
		"generator/generator.gguf",
	} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return dir
}

type serverProc struct {
	cmd  *exec.Cmd
	base string
	done chan error
}

func startServer(t *testing.T, bin string, args ...string) *serverProc {
	t.Helper()
	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	args = append([]string{"serve", "--addr", fmt.Sprintf("127.0.0.1:%d", port), "--device", "cpu", "--log-level", "warn"}, args...)
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	sp := &serverProc{cmd: cmd, base: base, done: make(chan error, 1)}
	go func() { sp.done <- cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return sp
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	sp := startServer(t, bin, "--models-dir", createModelsDir(t))

	resp, body := get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz initial %d %s", resp.StatusCode, body)
	}

	resp, body = get(t, sp.base+"/api/v1/get_status")
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte(`"device":"cpu"`)) {
		t.Fatalf("/api/v1/get_status %d %s", resp.StatusCode, body)
	}

	// validation happens before any model is touched
	resp, body = postJSON(t, sp.base+"/api/v1/analyze", []byte(`{"text":"short"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short text %d %s", resp.StatusCode, body)
	}

	// placeholder artifacts cannot load
	payload, _ := json.Marshal(map[string]any{"text": clinicalText})
	resp, body = postJSON(t, sp.base+"/api/v1/analyze", payload)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("analyze %d %s", resp.StatusCode, body)
	}
	var e struct {
		Category string `json:"category"`
		Stage    string `json:"stage"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Category != "model_load_error" || e.Stage != "classify" {
		t.Fatalf("analyze error body=%s", body)
	}

	resp, body = get(t, sp.base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, body)
	}
	var st struct {
		Slots []struct {
			Category string `json:"category"`
			State    string `json:"state"`
			Attempts int    `json:"attempts"`
		} `json:"slots"`
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("/status json: %v body=%s", err, body)
	}
	for _, s := range st.Slots {
		want := "unloaded"
		if s.Category == "classify" {
			want = "failed"
		}
		if s.State != want {
			t.Fatalf("slot %s state=%s want %s", s.Category, s.State, want)
		}
	}

	resp, body = get(t, sp.base+"/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "clinicd_errors_total") {
		t.Fatalf("/metrics %d", resp.StatusCode)
	}
}

func TestBlackbox_GracefulShutdown(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("interrupt signals are not delivered on windows")
	}
	bin := buildBinary(t)
	sp := startServer(t, bin, "--models-dir", t.TempDir())
	if err := sp.cmd.Process.Signal(os.Interrupt); err != nil {
		t.Fatalf("signal: %v", err)
	}
	select {
	case err := <-sp.done:
		if err != nil {
			t.Fatalf("exit: %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatalf("server did not exit")
	}
}

func TestBlackbox_CheckAndVersion(t *testing.T) {
	bin := buildBinary(t)
	out, err := exec.Command(bin, "version").CombinedOutput()
	if err != nil || strings.TrimSpace(string(out)) == "" {
		t.Fatalf("version: %v %s", err, out)
	}
	out, err = exec.Command(bin, "check", "--models-dir", t.TempDir(), "--device", "cpu", "--log-level", "off").Output()
	if err == nil {
		t.Fatalf("check should fail without artifacts: %s", out)
	}
	if !bytes.Contains(out, []byte(`"ok": false`)) {
		t.Fatalf("check output=%s", out)
	}
}
