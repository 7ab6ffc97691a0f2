package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service. Load starts from
// Default, so keys absent from the file keep their default values.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server" toml:"server"`
	Log       LogConfig       `json:"log" yaml:"log" toml:"log"`
	Models    ModelsConfig    `json:"models" yaml:"models" toml:"models"`
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline" toml:"pipeline"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"`
	Auth      AuthConfig      `json:"auth" yaml:"auth" toml:"auth"`
}

type ServerConfig struct {
	Addr              string     `json:"addr" yaml:"addr" toml:"addr"`
	MaxBodyBytes      int64      `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	ReadHeaderTimeout Duration   `json:"read_header_timeout" yaml:"read_header_timeout" toml:"read_header_timeout"`
	ShutdownTimeout   Duration   `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	CORS              CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// ModelsConfig configures the model slots.
type ModelsConfig struct {
	// Dir is scanned for artifacts not given explicitly below.
	Dir string `json:"dir" yaml:"dir" toml:"dir"`
	// Device forces one device for every category ("" probes the host).
	Device string `json:"device" yaml:"device" toml:"device"`
	// Pins maps a category to a device, overriding the default policy.
	Pins     map[string]string `json:"pins" yaml:"pins" toml:"pins"`
	Required []string          `json:"required" yaml:"required" toml:"required"`
	// Warmup loads every slot at startup instead of on first use.
	Warmup        bool     `json:"warmup" yaml:"warmup" toml:"warmup"`
	MaxQueueDepth int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxInflight   int      `json:"max_inflight" yaml:"max_inflight" toml:"max_inflight"`
	MaxWait       Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	LoadTimeout   Duration `json:"load_timeout" yaml:"load_timeout" toml:"load_timeout"`

	Classifier BackendConfig `json:"classifier" yaml:"classifier" toml:"classifier"`
	Summarizer BackendConfig `json:"summarizer" yaml:"summarizer" toml:"summarizer"`
	Generator  BackendConfig `json:"generator" yaml:"generator" toml:"generator"`
}

// BackendConfig selects and configures the backend of one category.
type BackendConfig struct {
	Backend           string   `json:"backend" yaml:"backend" toml:"backend"`
	Path              string   `json:"path" yaml:"path" toml:"path"`
	Adapter           string   `json:"adapter" yaml:"adapter" toml:"adapter"`
	LoraBase          string   `json:"lora_base" yaml:"lora_base" toml:"lora_base"`
	SeqLen            int      `json:"seq_len" yaml:"seq_len" toml:"seq_len"`
	SharedLibraryPath string   `json:"shared_library_path" yaml:"shared_library_path" toml:"shared_library_path"`
	ContextSize       int      `json:"context_size" yaml:"context_size" toml:"context_size"`
	GPULayers         int      `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	Threads           int      `json:"threads" yaml:"threads" toml:"threads"`
	BaseURL           string   `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey            string   `json:"api_key" yaml:"api_key" toml:"api_key"`
	Model             string   `json:"model" yaml:"model" toml:"model"`
	Timeout           Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
}

// PipelineConfig mirrors the orchestrator's stage settings.
type PipelineConfig struct {
	MinChars            int      `json:"min_chars" yaml:"min_chars" toml:"min_chars"`
	Timeout             Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
	ConfidenceThreshold float64  `json:"confidence_threshold" yaml:"confidence_threshold" toml:"confidence_threshold"`
	TopPredictions      int      `json:"top_predictions" yaml:"top_predictions" toml:"top_predictions"`
	SummaryMinLen       int      `json:"summary_min_len" yaml:"summary_min_len" toml:"summary_min_len"`
	SummaryMaxLen       int      `json:"summary_max_len" yaml:"summary_max_len" toml:"summary_max_len"`
	SummaryRatio        float64  `json:"summary_ratio" yaml:"summary_ratio" toml:"summary_ratio"`
	TokensPerWord       float64  `json:"tokens_per_word" yaml:"tokens_per_word" toml:"tokens_per_word"`
	MaxNewTokens        int      `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	Deterministic       bool     `json:"deterministic" yaml:"deterministic" toml:"deterministic"`
	Temperature         float32  `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP                float32  `json:"top_p" yaml:"top_p" toml:"top_p"`
	TopK                int      `json:"top_k" yaml:"top_k" toml:"top_k"`
	RepeatPenalty       float32  `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	Seed                int      `json:"seed" yaml:"seed" toml:"seed"`
}

type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	// RedisURL selects the shared store; empty counts per process only.
	RedisURL      string   `json:"redis_url" yaml:"redis_url" toml:"redis_url"`
	DialTimeout   Duration `json:"dial_timeout" yaml:"dial_timeout" toml:"dial_timeout"`
	Window        Duration `json:"window" yaml:"window" toml:"window"`
	Anonymous     int      `json:"anonymous" yaml:"anonymous" toml:"anonymous"`
	Authenticated int      `json:"authenticated" yaml:"authenticated" toml:"authenticated"`
	Premium       int      `json:"premium" yaml:"premium" toml:"premium"`
}

type AuthConfig struct {
	// JWTSecret enables HS256 bearer tokens; empty treats everyone as anonymous.
	JWTSecret string   `json:"jwt_secret" yaml:"jwt_secret" toml:"jwt_secret"`
	Leeway    Duration `json:"leeway" yaml:"leeway" toml:"leeway"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			MaxBodyBytes:      1 << 20,
			ReadHeaderTimeout: Duration(10 * time.Second),
			ShutdownTimeout:   Duration(15 * time.Second),
			CORS: CORSConfig{
				Methods: []string{"GET", "POST", "OPTIONS"},
				Headers: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "X-Log-Level"},
			},
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Models: ModelsConfig{
			Dir:           "./models",
			Required:      []string{"classify", "summarize", "generate"},
			MaxQueueDepth: 32,
			MaxInflight:   1,
			MaxWait:       Duration(30 * time.Second),
			LoadTimeout:   Duration(10 * time.Minute),
		},
		Pipeline: PipelineConfig{
			MinChars:            50,
			Timeout:             Duration(120 * time.Second),
			ConfidenceThreshold: 0.6,
			TopPredictions:      3,
			SummaryMinLen:       128,
			SummaryMaxLen:       256,
			SummaryRatio:        0.5,
			TokensPerWord:       1.3,
			MaxNewTokens:        512,
			Deterministic:       true,
			Temperature:         0.7,
			TopP:                0.9,
			TopK:                50,
			RepeatPenalty:       1.15,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			DialTimeout:   Duration(2 * time.Second),
			Window:        Duration(time.Minute),
			Anonymous:     10,
			Authenticated: 100,
			Premium:       1000,
		},
	}
}

// Load reads a configuration file based on its extension over Default().
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

var (
	validDevices    = map[string]bool{"": true, "cuda": true, "mps": true, "cpu": true}
	validCategories = map[string]bool{"classify": true, "summarize": true, "generate": true}
	validBackends   = map[string]bool{"": true, "onnx": true, "llama": true, "openai": true}
)

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes must be > 0")
	}
	if !validDevices[c.Models.Device] {
		add("models.device %q must be cuda, mps or cpu", c.Models.Device)
	}
	for cat, dev := range c.Models.Pins {
		if !validCategories[cat] {
			add("models.pins: unknown category %q", cat)
		}
		if dev == "" || !validDevices[dev] {
			add("models.pins.%s: invalid device %q", cat, dev)
		}
	}
	for _, cat := range c.Models.Required {
		if !validCategories[cat] {
			add("models.required: unknown category %q", cat)
		}
	}
	if c.Models.MaxQueueDepth < 1 || c.Models.MaxInflight < 1 {
		add("models.max_queue_depth and models.max_inflight must be >= 1")
	}
	if c.Models.MaxWait <= 0 || c.Models.LoadTimeout <= 0 {
		add("models.max_wait and models.load_timeout must be > 0")
	}
	for name, b := range map[string]BackendConfig{
		"classifier": c.Models.Classifier,
		"summarizer": c.Models.Summarizer,
		"generator":  c.Models.Generator,
	} {
		if !validBackends[b.Backend] {
			add("models.%s.backend %q must be onnx, llama or openai", name, b.Backend)
		}
		if b.Backend == "openai" && (b.BaseURL == "" || b.Model == "") {
			add("models.%s: openai backend needs base_url and model", name)
		}
	}
	if c.Pipeline.MinChars < 1 || c.Pipeline.Timeout <= 0 {
		add("pipeline.min_chars and pipeline.timeout must be positive")
	}
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		add("pipeline.confidence_threshold must be in [0,1]")
	}
	if c.Pipeline.SummaryMinLen < 1 || c.Pipeline.SummaryMaxLen < c.Pipeline.SummaryMinLen {
		add("pipeline.summary_min_len/summary_max_len invalid")
	}
	if c.Pipeline.MaxNewTokens < 1 {
		add("pipeline.max_new_tokens must be >= 1")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Window.Std() < time.Millisecond {
			add("rate_limit.window must be >= 1ms")
		}
		if c.RateLimit.Anonymous < 1 || c.RateLimit.Authenticated < 1 || c.RateLimit.Premium < 1 {
			add("rate_limit tier limits must be >= 1")
		}
	}
	return errors.Join(errs...)
}
