package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Defaults for Config.
const (
	DefaultMinChars            = 50
	DefaultTimeout             = 120 * time.Second
	DefaultConfidenceThreshold = 0.6
	DefaultTopPredictions      = 3
	DefaultSummaryMinLen       = 128
	DefaultSummaryMaxLen       = 256
	DefaultSummaryRatio        = 0.5
	DefaultTokensPerWord       = 1.3
	DefaultMaxNewTokens        = 512
	DefaultTemperature         = 0.7
	DefaultTopP                = 0.9
	DefaultTopK                = 50
	DefaultRepeatPenalty       = 1.15
)

// ClassifyConfig controls the classify stage.
type ClassifyConfig struct {
	// ConfidenceThreshold flags results whose top probability is below it.
	ConfidenceThreshold float64
	// TopPredictions is how many labels are reported on low confidence.
	TopPredictions int
}

// SummarizeConfig bounds the summary length. The token budget is
// clamp(ceil(words*TokensPerWord*Ratio), MinLen, MaxLen).
type SummarizeConfig struct {
	MinLen        int
	MaxLen        int
	Ratio         float64
	TokensPerWord float64
	Deterministic bool
}

// GenerateConfig holds decoding parameters for the generate stage. The
// sampling fields apply only when Deterministic is false.
type GenerateConfig struct {
	MaxNewTokens  int
	Deterministic bool
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32
	Seed          int
}

// Config is the orchestrator configuration.
type Config struct {
	// MinChars is the minimum trimmed text length in characters.
	MinChars int
	// Timeout bounds one whole request.
	Timeout   time.Duration
	Classify  ClassifyConfig
	Summarize SummarizeConfig
	Generate  GenerateConfig
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinChars: DefaultMinChars,
		Timeout:  DefaultTimeout,
		Classify: ClassifyConfig{
			ConfidenceThreshold: DefaultConfidenceThreshold,
			TopPredictions:      DefaultTopPredictions,
		},
		Summarize: SummarizeConfig{
			MinLen:        DefaultSummaryMinLen,
			MaxLen:        DefaultSummaryMaxLen,
			Ratio:         DefaultSummaryRatio,
			TokensPerWord: DefaultTokensPerWord,
			Deterministic: true,
		},
		Generate: GenerateConfig{
			MaxNewTokens:  DefaultMaxNewTokens,
			Deterministic: true,
			Temperature:   DefaultTemperature,
			TopP:          DefaultTopP,
			TopK:          DefaultTopK,
			RepeatPenalty: DefaultRepeatPenalty,
		},
	}
}

func (c ClassifyConfig) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("classify: confidence threshold %v not in [0,1]", c.ConfidenceThreshold)
	}
	if c.TopPredictions < 1 {
		return errors.New("classify: top predictions must be >= 1")
	}
	return nil
}

func (c SummarizeConfig) Validate() error {
	if c.MinLen < 1 || c.MaxLen < c.MinLen {
		return fmt.Errorf("summarize: invalid length bounds [%d, %d]", c.MinLen, c.MaxLen)
	}
	if c.Ratio <= 0 || c.TokensPerWord <= 0 {
		return errors.New("summarize: ratio and tokens per word must be > 0")
	}
	return nil
}

func (c GenerateConfig) Validate() error {
	if c.MaxNewTokens < 1 {
		return errors.New("generate: max new tokens must be >= 1")
	}
	if c.Temperature < 0 || c.TopP < 0 || c.TopP > 1 || c.TopK < 0 || c.RepeatPenalty < 0 {
		return errors.New("generate: sampling parameters out of range")
	}
	return nil
}

// Validate checks every stage config.
func (c Config) Validate() error {
	if c.MinChars < 1 {
		return errors.New("min chars must be >= 1")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	return errors.Join(c.Classify.Validate(), c.Summarize.Validate(), c.Generate.Validate())
}
