package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	return home
}

func TestExpandHome(t *testing.T) {
	home := setHome(t)
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome("~"); err != nil || got != home {
		t.Fatalf("got %q err=%v", got, err)
	}
	got, err := ExpandHome("~/models")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got != filepath.Join(home, "models") {
		t.Fatalf("got %q", got)
	}
}

func TestResolve(t *testing.T) {
	home := setHome(t)
	root := t.TempDir()
	if got, _ := Resolve(root, ""); got != "" {
		t.Fatalf("empty path resolved to %q", got)
	}
	if got, _ := Resolve(root, "generator/m.gguf"); got != filepath.Join(root, "generator", "m.gguf") {
		t.Fatalf("relative: %q", got)
	}
	if got, _ := Resolve(root, "~/x"); got != filepath.Join(home, "x") {
		t.Fatalf("home: %q", got)
	}
}

func TestFilesWithExt(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"b.gguf", "a.GGUF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, err := FilesWithExt(dir, ".gguf")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "a.GGUF" || filepath.Base(got[1]) != "b.gguf" {
		t.Fatalf("got %v", got)
	}
	if got, err := FilesWithExt(filepath.Join(dir, "missing"), ".gguf"); err != nil || got != nil {
		t.Fatalf("missing dir: %v %v", got, err)
	}
	if !IsDir(dir) || IsDir(filepath.Join(dir, "notes.txt")) {
		t.Fatalf("IsDir mismatch")
	}
}
