package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/check-cli/internal/policy"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig      `yaml:"store" mapstructure:"store"`
	Log         LogConfig        `yaml:"log" mapstructure:"log"`
	Server      ServerConfig     `yaml:"server" mapstructure:"server"`
	OCR         OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Vision      VisionConfig     `yaml:"vision" mapstructure:"vision"`
	Pipeline    PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Review      ReviewConfig     `yaml:"review" mapstructure:"review"`
	Resilience  ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Temporal    TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	TenantsFile string           `yaml:"tenants_file" mapstructure:"tenants_file"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the progress API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// OCRConfig configures the text-recognition engine.
type OCRConfig struct {
	Provider     string `yaml:"provider" mapstructure:"provider"`
	Language     string `yaml:"language" mapstructure:"language"`
	MistralKey   string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// VisionConfig configures the vision-model engine.
type VisionConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	GeminiKey         string  `yaml:"gemini_api_key" mapstructure:"gemini_api_key"`
	GeminiModel       string  `yaml:"gemini_model" mapstructure:"gemini_model"`
	AnthropicKey      string  `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	AnthropicModel    string  `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	OpenAIKey         string  `yaml:"openai_api_key" mapstructure:"openai_api_key"`
	OpenAIModel       string  `yaml:"openai_model" mapstructure:"openai_model"`
	Temperature       float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// PipelineConfig configures ingestion, preprocessing and engine calls.
type PipelineConfig struct {
	EngineTimeoutSecs int      `yaml:"engine_timeout_secs" mapstructure:"engine_timeout_secs"`
	MaxFileBytes      int64    `yaml:"max_file_bytes" mapstructure:"max_file_bytes"`
	AllowedFormats    []string `yaml:"allowed_formats" mapstructure:"allowed_formats"`
	MaxImageWidth     int      `yaml:"max_image_width" mapstructure:"max_image_width"`
	MaxImageHeight    int      `yaml:"max_image_height" mapstructure:"max_image_height"`
	MinCheckWidth     int      `yaml:"min_check_width" mapstructure:"min_check_width"`
	MinCheckHeight    int      `yaml:"min_check_height" mapstructure:"min_check_height"`
	MinAspectRatio    float64  `yaml:"min_aspect_ratio" mapstructure:"min_aspect_ratio"`
	MaxAspectRatio    float64  `yaml:"max_aspect_ratio" mapstructure:"max_aspect_ratio"`
	MaxConcurrent     int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// EngineTimeout returns the per-engine call timeout.
func (p PipelineConfig) EngineTimeout() time.Duration {
	return time.Duration(p.EngineTimeoutSecs) * time.Second
}

// ReviewConfig configures confidence routing.
type ReviewConfig struct {
	AutoApprove     float64 `yaml:"auto_approve" mapstructure:"auto_approve"`
	ReviewSuggested float64 `yaml:"review_suggested" mapstructure:"review_suggested"`
	AutoExport      float64 `yaml:"auto_export" mapstructure:"auto_export"`
}

// Thresholds returns the routing thresholds.
func (r ReviewConfig) Thresholds() policy.Thresholds {
	return policy.Thresholds{AutoApprove: r.AutoApprove, ReviewSuggested: r.ReviewSuggested}
}

// ResilienceConfig configures retries and circuit breaking for engine calls.
type ResilienceConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// TemporalConfig configures the job-queue worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHECKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "checks.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("ocr.provider", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.mistral_api_key", "")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("vision.provider", "gemini")
	v.SetDefault("vision.gemini_api_key", "")
	v.SetDefault("vision.gemini_model", "gemini-2.5-flash")
	v.SetDefault("vision.anthropic_api_key", "")
	v.SetDefault("vision.anthropic_model", "claude-haiku-4-5-20251001")
	v.SetDefault("vision.openai_api_key", "")
	v.SetDefault("vision.openai_model", "gpt-4o-mini")
	v.SetDefault("vision.temperature", 0.1)
	v.SetDefault("vision.max_tokens", 1024)
	v.SetDefault("vision.requests_per_minute", 60)
	v.SetDefault("pipeline.engine_timeout_secs", 60)
	v.SetDefault("pipeline.max_file_bytes", 10*1024*1024)
	v.SetDefault("pipeline.allowed_formats", []string{"png", "jpg", "jpeg"})
	v.SetDefault("pipeline.max_image_width", 3000)
	v.SetDefault("pipeline.max_image_height", 3000)
	v.SetDefault("pipeline.min_check_width", 500)
	v.SetDefault("pipeline.min_check_height", 200)
	v.SetDefault("pipeline.min_aspect_ratio", 2.0)
	v.SetDefault("pipeline.max_aspect_ratio", 3.5)
	v.SetDefault("pipeline.max_concurrent", 4)
	v.SetDefault("review.auto_approve", 0.90)
	v.SetDefault("review.review_suggested", 0.70)
	v.SetDefault("review.auto_export", 0.90)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 10000)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "check-processing")
	v.SetDefault("tenants_file", "tenants.yaml")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name:
// "process", "serve", "worker", "enqueue" or "migrate".
func (c *Config) Validate(mode string) error {
	var issues []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			issues = append(issues, "store.database_url is required")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			issues = append(issues, "store.sqlite_path is required")
		}
	default:
		issues = append(issues, "store.driver must be postgres or sqlite")
	}

	if mode == "process" || mode == "serve" || mode == "worker" {
		issues = append(issues, c.validateEngines()...)
		if err := c.Review.Thresholds().Validate(); err != nil {
			issues = append(issues, err.Error())
		}
		if c.Pipeline.EngineTimeoutSecs <= 0 {
			issues = append(issues, "pipeline.engine_timeout_secs must be positive")
		}
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		issues = append(issues, "server.port must be between 1 and 65535")
	}

	if (mode == "worker" || mode == "enqueue") && c.Temporal.TaskQueue == "" {
		issues = append(issues, "temporal.task_queue is required")
	}

	if len(issues) > 0 {
		return eris.Errorf("config: %s", strings.Join(issues, "; "))
	}
	return nil
}

func (c *Config) validateEngines() []string {
	var issues []string
	switch c.OCR.Provider {
	case "tesseract", "":
	case "mistral":
		if c.OCR.MistralKey == "" {
			issues = append(issues, "ocr.mistral_api_key is required")
		}
	default:
		issues = append(issues, "ocr.provider must be tesseract or mistral")
	}

	switch c.Vision.Provider {
	case "gemini", "":
		if c.Vision.GeminiKey == "" {
			issues = append(issues, "vision.gemini_api_key is required")
		}
	case "anthropic":
		if c.Vision.AnthropicKey == "" {
			issues = append(issues, "vision.anthropic_api_key is required")
		}
	case "openai":
		if c.Vision.OpenAIKey == "" {
			issues = append(issues, "vision.openai_api_key is required")
		}
	default:
		issues = append(issues, "vision.provider must be gemini, anthropic or openai")
	}
	return issues
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
