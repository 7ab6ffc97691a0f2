// Package registry discovers model artifacts under a models root directory.
//
// Layout:
//
//	<root>/classifier/model.onnx (+ vocab.txt, label_map.json)
//	<root>/summarizer/*.gguf
//	<root>/generator/*.gguf
//	<root>/generator/adapter/*.gguf   (optional LoRA adapter)
//
// When a directory holds several .gguf files the first by name is used.
package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"clinicd/internal/common/fsutil"
	"clinicd/pkg/types"
)

// Subdirectory names under the models root.
const (
	ClassifierDir = "classifier"
	SummarizerDir = "summarizer"
	GeneratorDir  = "generator"
	AdapterDir    = "adapter"

	onnxModelFile = "model.onnx"
	ggufExt       = ".gguf"
)

// Scanner discovers models under a root.
type Scanner interface {
	Scan(root string) ([]types.Model, error)
}

// DirScanner implements Scanner for the standard layout.
type DirScanner struct{}

func NewDirScanner() *DirScanner { return &DirScanner{} }

// Scan returns one Model per category found, in classify, summarize,
// generate order. Missing categories are omitted.
func (DirScanner) Scan(root string) ([]types.Model, error) {
	base, err := fsutil.Resolve("", root)
	if err != nil {
		return nil, err
	}
	if !fsutil.IsDir(base) {
		return nil, fmt.Errorf("models root %q: %w", base, os.ErrNotExist)
	}
	var models []types.Model

	clsDir := filepath.Join(base, ClassifierDir)
	if _, err := os.Stat(filepath.Join(clsDir, onnxModelFile)); err == nil {
		models = append(models, types.Model{Category: types.CategoryClassify, Name: ClassifierDir, Path: clsDir})
	}

	if m, ok, err := firstGGUF(filepath.Join(base, SummarizerDir)); err != nil {
		return nil, err
	} else if ok {
		m.Category = types.CategorySummarize
		models = append(models, m)
	}

	genDir := filepath.Join(base, GeneratorDir)
	if m, ok, err := firstGGUF(genDir); err != nil {
		return nil, err
	} else if ok {
		m.Category = types.CategoryGenerate
		adapters, err := fsutil.FilesWithExt(filepath.Join(genDir, AdapterDir), ggufExt)
		if err != nil {
			return nil, err
		}
		if len(adapters) > 0 {
			m.Adapter = adapters[0]
		}
		models = append(models, m)
	}
	return models, nil
}

func firstGGUF(dir string) (types.Model, bool, error) {
	files, err := fsutil.FilesWithExt(dir, ggufExt)
	if err != nil || len(files) == 0 {
		return types.Model{}, false, err
	}
	return types.Model{Name: filepath.Base(files[0]), Path: files[0]}, true, nil
}

// LoadDir scans root with the default scanner and indexes the result by
// category.
func LoadDir(root string) (map[types.Category]types.Model, error) {
	models, err := NewDirScanner().Scan(root)
	if err != nil {
		return nil, err
	}
	out := make(map[types.Category]types.Model, len(models))
	for _, m := range models {
		out[m.Category] = m
	}
	return out, nil
}
