// Package onnx runs the sequence classifier with onnxruntime.
//
// A classifier bundle is a directory holding model.onnx (inputs input_ids and
// attention_mask, output logits), vocab.txt and an optional label_map.json.
package onnx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"clinicd/internal/device"
	"clinicd/internal/manager"
	"clinicd/pkg/types"
)

// DefaultSeqLen is the classifier's maximum sequence length.
const DefaultSeqLen = 192

const (
	modelFile  = "model.onnx"
	vocabFile  = "vocab.txt"
	labelsFile = "label_map.json"
)

// Config locates a classifier bundle.
type Config struct {
	Dir               string
	SeqLen            int
	SharedLibraryPath string
	Threads           int
}

// Loader loads the classifier for the manager.
type Loader struct {
	cfg Config
}

func NewLoader(cfg Config) *Loader {
	if cfg.SeqLen <= 0 {
		cfg.SeqLen = DefaultSeqLen
	}
	return &Loader{cfg: cfg}
}

func (l *Loader) Describe() string { return "onnx" }

// Check verifies that the bundle files exist.
func (l *Loader) Check() error {
	if l.cfg.Dir == "" {
		return errors.New("classifier bundle dir is empty")
	}
	for _, f := range []string{modelFile, vocabFile} {
		p := filepath.Join(l.cfg.Dir, f)
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("classifier %s: %w", f, err)
		}
	}
	return nil
}

// Load initializes the runtime and builds a session placed on p.
func (l *Loader) Load(ctx context.Context, p device.Placement) (manager.Handle, error) {
	if err := l.Check(); err != nil {
		return nil, err
	}
	if err := initRuntime(resolveSharedLibraryPath(l.cfg.SharedLibraryPath, l.cfg.Dir)); err != nil {
		return nil, err
	}
	labels, err := loadLabels(filepath.Join(l.cfg.Dir, labelsFile))
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	tok, err := LoadWordPieceTokenizer(filepath.Join(l.cfg.Dir, vocabFile))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newClassifier(filepath.Join(l.cfg.Dir, modelFile), tok, labels, l.cfg, p)
}

// Classifier wraps the ONNX session and tokenizer. Run is serialized because
// the session's tensors are preallocated and shared.
type Classifier struct {
	session   *ort.AdvancedSession
	tokenizer *WordPieceTokenizer
	labels    []string
	seqLen    int

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

func newClassifier(modelPath string, tok *WordPieceTokenizer, labels []string, cfg Config, p device.Placement) (c *Classifier, err error) {
	c = &Classifier{tokenizer: tok, labels: labels, seqLen: cfg.SeqLen}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	inputShape := ort.NewShape(1, int64(cfg.SeqLen))
	if c.inputIDs, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	if c.attentionMask, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	if c.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(labels)))); err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	opts, err := sessionOptions(p, cfg.Threads)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	c.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{c.inputIDs, c.attentionMask},
		[]ort.Value{c.output},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return c, nil
}

// sessionOptions selects the execution provider for the placement.
func sessionOptions(p device.Placement, threads int) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	if threads > 0 {
		if err := opts.SetIntraOpNumThreads(threads); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}
	switch p.Kind {
	case device.CUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("cuda provider options: %w", err)
		}
		defer cuda.Destroy()
		if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("append cuda provider: %w", err)
		}
	case device.MPS:
		if err := opts.AppendExecutionProviderCoreML(0); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("append coreml provider: %w", err)
		}
	}
	return opts, nil
}

// Classify returns a softmax distribution over the bundle's labels.
func (c *Classifier) Classify(ctx context.Context, text string) (map[string]float64, error) {
	if c == nil {
		return nil, errors.New("classifier not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, attn := c.tokenizer.Encode(text, c.seqLen)

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, errors.New("classifier not initialized")
	}
	copy(c.inputIDs.GetData(), ids)
	copy(c.attentionMask.GetData(), attn)
	if err := c.session.Run(); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	logits := append([]float32(nil), c.output.GetData()...)
	c.mu.Unlock()

	probs := softmax(logits)
	out := make(map[string]float64, len(c.labels))
	for i, label := range c.labels {
		if i < len(probs) {
			out[label] = probs[i]
		}
	}
	return out, nil
}

func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.session != nil {
		errs = append(errs, c.session.Destroy())
		c.session = nil
	}
	if c.inputIDs != nil {
		errs = append(errs, c.inputIDs.Destroy())
		c.inputIDs = nil
	}
	if c.attentionMask != nil {
		errs = append(errs, c.attentionMask.Destroy())
		c.attentionMask = nil
	}
	if c.output != nil {
		errs = append(errs, c.output.Destroy())
		c.output = nil
	}
	return errors.Join(errs...)
}

func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxL := float64(logits[0])
	for _, l := range logits[1:] {
		maxL = math.Max(maxL, float64(l))
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - maxL)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// loadLabels reads label_map.json as a JSON array or an index->label map.
// A missing file yields the default label order. Every label must belong to
// the closed label set.
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return append([]string(nil), types.Pathologies...), nil
	}
	if err != nil {
		return nil, err
	}

	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil || len(labels) == 0 {
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		labels = make([]string, len(m))
		for k, v := range m {
			idx, convErr := strconv.Atoi(k)
			if convErr != nil {
				return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
			}
			if idx < 0 || idx >= len(m) {
				return nil, fmt.Errorf("label index %d out of range", idx)
			}
			labels[idx] = v
		}
	}
	for _, l := range labels {
		if !types.IsPathology(l) {
			return nil, fmt.Errorf("label %q is not a known pathology", l)
		}
	}
	return labels, nil
}
