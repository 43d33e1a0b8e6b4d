// Package config loads conversion settings. Values come from defaults,
// then an optional YAML file, then DOCMARK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tsawler/docmark/tables"
)

// OCR engine names.
const (
	OCRTesseract = "tesseract"
	OCRGosseract = "gosseract"
	OCRNone      = "none"
)

// Config holds all conversion settings.
type Config struct {
	AIEnabled              bool          `yaml:"ai_enabled"`
	BatchSize              int           `yaml:"batch_size"`
	TableExtractionEnabled bool          `yaml:"table_extraction_enabled"`
	MaxRetries             int           `yaml:"max_retries"`
	RetryBaseDelay         time.Duration `yaml:"retry_base_delay"`
	RequestTimeout         time.Duration `yaml:"request_timeout"`
	OCRFallbackEnabled     bool          `yaml:"ocr_fallback_enabled"`
	MarkdownRoot           string        `yaml:"markdown_root"`
	TableMethod            string        `yaml:"table_method"`
	AIVisionFallback       bool          `yaml:"ai_vision_fallback"`
	// ImageParserTables lets the image parser look for tables itself,
	// before and independent of enrichment.
	ImageParserTables bool           `yaml:"image_parser_tables"`
	OpenAI            OpenAIConfig   `yaml:"openai"`
	OCR               OCRConfig      `yaml:"ocr"`
	Progress          ProgressConfig `yaml:"progress"`
	LogLevel          string         `yaml:"log_level"`
}

// OpenAIConfig configures the vision model.
type OpenAIConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// OCRConfig selects and configures the OCR engine.
type OCRConfig struct {
	Engine      string   `yaml:"engine"`
	Command     string   `yaml:"command"`
	Languages   []string `yaml:"languages"`
	TessdataDir string   `yaml:"tessdata_dir"`
}

// ProgressConfig configures external progress delivery.
type ProgressConfig struct {
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	Channel        string        `yaml:"channel"`
	Webhooks       []string      `yaml:"webhooks"`
	BufferSize     int           `yaml:"buffer_size"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// UnmarshalYAML reads bare numbers in duration fields as seconds, the
// same way the environment does.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if err := secondsAsDuration(node, "retry_base_delay", "request_timeout"); err != nil {
		return err
	}
	type plain Config
	return node.Decode((*plain)(c))
}

// UnmarshalYAML reads a bare publish_timeout as seconds.
func (p *ProgressConfig) UnmarshalYAML(node *yaml.Node) error {
	if err := secondsAsDuration(node, "publish_timeout"); err != nil {
		return err
	}
	type plain ProgressConfig
	return node.Decode((*plain)(p))
}

// secondsAsDuration rewrites numeric values of the given mapping keys into
// duration strings.
func secondsAsDuration(node *yaml.Node, keys ...string) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode || !slices.Contains(keys, k.Value) {
			continue
		}
		if tag := v.ShortTag(); tag != "!!int" && tag != "!!float" {
			continue
		}
		secs, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", k.Value, err)
		}
		v.SetString(time.Duration(secs * float64(time.Second)).String())
	}
	return nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		AIEnabled:              true,
		BatchSize:              3,
		TableExtractionEnabled: true,
		MaxRetries:             3,
		RetryBaseDelay:         time.Second,
		RequestTimeout:         30 * time.Second,
		OCRFallbackEnabled:     true,
		MarkdownRoot:           "./markdown",
		TableMethod:            string(tables.Auto),
		OpenAI: OpenAIConfig{
			Model:     "gpt-4o",
			MaxTokens: 1000,
		},
		OCR: OCRConfig{
			Engine:    OCRTesseract,
			Command:   "tesseract",
			Languages: []string{"eng"},
		},
		Progress: ProgressConfig{
			Channel:        "document-progress",
			BufferSize:     64,
			PublishTimeout: 5 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.AIEnabled = getEnvAsBool("DOCMARK_AI_ENABLED", c.AIEnabled)
	c.BatchSize = getEnvAsInt("DOCMARK_BATCH_SIZE", c.BatchSize)
	c.TableExtractionEnabled = getEnvAsBool("DOCMARK_TABLE_EXTRACTION_ENABLED", c.TableExtractionEnabled)
	c.MaxRetries = getEnvAsInt("DOCMARK_MAX_RETRIES", c.MaxRetries)
	c.RetryBaseDelay = getEnvAsDuration("DOCMARK_RETRY_BASE_DELAY", c.RetryBaseDelay)
	c.RequestTimeout = getEnvAsDuration("DOCMARK_REQUEST_TIMEOUT", c.RequestTimeout)
	c.OCRFallbackEnabled = getEnvAsBool("DOCMARK_OCR_FALLBACK_ENABLED", c.OCRFallbackEnabled)
	c.MarkdownRoot = getEnv("DOCMARK_MARKDOWN_ROOT", c.MarkdownRoot)
	c.TableMethod = getEnv("DOCMARK_TABLE_METHOD", c.TableMethod)
	c.AIVisionFallback = getEnvAsBool("DOCMARK_AI_VISION_FALLBACK", c.AIVisionFallback)
	c.ImageParserTables = getEnvAsBool("DOCMARK_IMAGE_PARSER_TABLES", c.ImageParserTables)
	c.LogLevel = getEnv("DOCMARK_LOG_LEVEL", c.LogLevel)

	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.APIKey = getEnv("DOCMARK_OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = getEnv("DOCMARK_OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Model = getEnv("DOCMARK_OPENAI_MODEL", c.OpenAI.Model)
	c.OpenAI.MaxTokens = getEnvAsInt("DOCMARK_OPENAI_MAX_TOKENS", c.OpenAI.MaxTokens)

	c.OCR.Engine = getEnv("DOCMARK_OCR_ENGINE", c.OCR.Engine)
	c.OCR.Command = getEnv("DOCMARK_OCR_COMMAND", c.OCR.Command)
	c.OCR.Languages = getEnvAsList("DOCMARK_OCR_LANGUAGES", c.OCR.Languages)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)

	c.Progress.RedisAddr = getEnv("DOCMARK_REDIS_ADDR", c.Progress.RedisAddr)
	c.Progress.RedisPassword = getEnv("DOCMARK_REDIS_PASSWORD", c.Progress.RedisPassword)
	c.Progress.RedisDB = getEnvAsInt("DOCMARK_REDIS_DB", c.Progress.RedisDB)
	c.Progress.Channel = getEnv("DOCMARK_PROGRESS_CHANNEL", c.Progress.Channel)
	c.Progress.Webhooks = getEnvAsList("DOCMARK_PROGRESS_WEBHOOKS", c.Progress.Webhooks)
	c.Progress.BufferSize = getEnvAsInt("DOCMARK_PROGRESS_BUFFER_SIZE", c.Progress.BufferSize)
	c.Progress.PublishTimeout = getEnvAsDuration("DOCMARK_PROGRESS_PUBLISH_TIMEOUT", c.Progress.PublishTimeout)
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	var errs []error
	if c.BatchSize < 1 {
		errs = append(errs, errors.New("batch_size must be >= 1"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max_retries must be >= 0"))
	}
	if c.RetryBaseDelay <= 0 {
		errs = append(errs, errors.New("retry_base_delay must be > 0"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be > 0"))
	}
	if c.MarkdownRoot == "" {
		errs = append(errs, errors.New("markdown_root is required"))
	}
	if _, err := tables.ParseMethod(c.TableMethod); err != nil {
		errs = append(errs, fmt.Errorf("table_method: %w", err))
	}
	switch c.OCR.Engine {
	case OCRTesseract, OCRGosseract, OCRNone, "":
	default:
		errs = append(errs, fmt.Errorf("ocr.engine: unsupported engine %q (use tesseract, gosseract or none)", c.OCR.Engine))
	}
	if c.Progress.BufferSize < 1 {
		errs = append(errs, errors.New("progress.buffer_size must be >= 1"))
	}
	for i, u := range c.Progress.Webhooks {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("progress.webhooks[%d]: %q is not an http(s) URL", i, u))
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Method returns the configured table method.
func (c *Config) Method() tables.Method {
	m, err := tables.ParseMethod(c.TableMethod)
	if err != nil {
		return tables.Auto
	}
	return m
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare numbers are seconds.
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
