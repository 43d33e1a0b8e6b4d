package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tsawler/docmark/tables"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.BatchSize != 3 || cfg.MaxRetries != 3 || cfg.RetryBaseDelay != time.Second || cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Default() = %+v", cfg)
	}
	if !cfg.TableExtractionEnabled || !cfg.OCRFallbackEnabled || !cfg.AIEnabled {
		t.Error("feature flags should default to enabled")
	}
	if cfg.Method() != tables.Auto {
		t.Errorf("Method() = %q, want auto", cfg.Method())
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docmark.yaml")
	data := `
batch_size: 5
retry_base_delay: 250ms
table_method: ocr
markdown_root: /srv/markdown
openai:
  model: gpt-4o-mini
progress:
  webhooks:
    - http://localhost:3000/api/progress
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", cfg.BatchSize)
	}
	if cfg.RetryBaseDelay != 250*time.Millisecond {
		t.Errorf("RetryBaseDelay = %v, want 250ms", cfg.RetryBaseDelay)
	}
	if cfg.Method() != tables.OCR {
		t.Errorf("Method() = %q, want ocr", cfg.Method())
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" || cfg.OpenAI.MaxTokens != 1000 {
		t.Errorf("OpenAI = %+v", cfg.OpenAI)
	}
	if len(cfg.Progress.Webhooks) != 1 || cfg.Progress.BufferSize != 64 {
		t.Errorf("Progress = %+v", cfg.Progress)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("unset keys should keep defaults, MaxRetries = %d", cfg.MaxRetries)
	}
}

func TestLoad_BareDurationsAreSeconds(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		get  func(*Config) time.Duration
		want time.Duration
	}{
		{"int seconds", "retry_base_delay: 1\n", func(c *Config) time.Duration { return c.RetryBaseDelay }, time.Second},
		{"float seconds", "request_timeout: 2.5\n", func(c *Config) time.Duration { return c.RequestTimeout }, 2500 * time.Millisecond},
		{"duration string", "request_timeout: 45s\n", func(c *Config) time.Duration { return c.RequestTimeout }, 45 * time.Second},
		{"nested", "progress:\n  publish_timeout: 3\n", func(c *Config) time.Duration { return c.Progress.PublishTimeout }, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "docmark.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got := tt.get(cfg); got != tt.want {
				t.Errorf("duration = %v, want %v", got, tt.want)
			}
			if cfg.Progress.Channel != "document-progress" {
				t.Errorf("unset keys should keep defaults, Channel = %q", cfg.Progress.Channel)
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docmark.yaml")
	if err := os.WriteFile(path, []byte("batch_size: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCMARK_BATCH_SIZE", "7")
	t.Setenv("DOCMARK_REQUEST_TIMEOUT", "2.5")
	t.Setenv("DOCMARK_OCR_FALLBACK_ENABLED", "false")
	t.Setenv("DOCMARK_PROGRESS_WEBHOOKS", "http://a.example/p, https://b.example/p")
	t.Setenv("DOCMARK_OCR_LANGUAGES", "eng,fra")
	t.Setenv("DOCMARK_MAX_RETRIES", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BatchSize != 7 {
		t.Errorf("BatchSize = %d, want 7", cfg.BatchSize)
	}
	if cfg.RequestTimeout != 2500*time.Millisecond {
		t.Errorf("RequestTimeout = %v, want 2.5s", cfg.RequestTimeout)
	}
	if cfg.OCRFallbackEnabled {
		t.Error("OCRFallbackEnabled = true, want false")
	}
	if strings.Join(cfg.Progress.Webhooks, " ") != "http://a.example/p https://b.example/p" {
		t.Errorf("Webhooks = %v", cfg.Progress.Webhooks)
	}
	if strings.Join(cfg.OCR.Languages, "+") != "eng+fra" {
		t.Errorf("Languages = %v", cfg.OCR.Languages)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("unparsable env should keep the prior value, MaxRetries = %d", cfg.MaxRetries)
	}
}

func TestLoad_APIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-generic")
	t.Setenv("DOCMARK_OPENAI_API_KEY", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-generic" {
		t.Errorf("APIKey = %q, want sk-generic", cfg.OpenAI.APIKey)
	}

	t.Setenv("DOCMARK_OPENAI_API_KEY", "sk-specific")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-specific" {
		t.Errorf("APIKey = %q, want sk-specific", cfg.OpenAI.APIKey)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("batch_size: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("batch_size: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for name, path := range map[string]string{
		"missing": filepath.Join(dir, "nope.yaml"),
		"syntax":  bad,
		"invalid": invalid,
	} {
		if _, err := Load(path); err == nil {
			t.Errorf("Load(%s) error = nil, want error", name)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"batch size", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"retries", func(c *Config) { c.MaxRetries = -1 }, "max_retries"},
		{"delay", func(c *Config) { c.RetryBaseDelay = 0 }, "retry_base_delay"},
		{"method", func(c *Config) { c.TableMethod = "magic" }, "table_method"},
		{"ocr engine", func(c *Config) { c.OCR.Engine = "easyocr" }, "ocr.engine"},
		{"webhook", func(c *Config) { c.Progress.Webhooks = []string{"ftp://x"} }, "progress.webhooks[0]"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"markdown root", func(c *Config) { c.MarkdownRoot = "" }, "markdown_root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
}
