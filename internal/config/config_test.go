package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Source != SourceZap {
		t.Errorf("Expected source %q, got %q", SourceZap, cfg.Source)
	}

	if cfg.Concurrency != 1 {
		t.Errorf("Expected concurrency 1, got %d", cfg.Concurrency)
	}

	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected request timeout 30s, got %v", cfg.RequestTimeout)
	}

	// Filled in from the build version when loading
	if cfg.UserAgent != "" {
		t.Errorf("Expected empty user agent, got %s", cfg.UserAgent)
	}

	if cfg.TitleBrand != "" {
		t.Errorf("Expected titles to stay raw by default, got brand %q", cfg.TitleBrand)
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.ZapOutput = "./zap.csv"
	cfg.ResultFile = "./results.csv"
	cfg.ErrorFile = "./errors.txt"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:    "valid zap config",
			mutate:  func(c *Config) {},
			wantErr: nil,
		},
		{
			name: "valid sitemap config",
			mutate: func(c *Config) {
				c.Source = SourceSitemap
				c.ZapOutput = ""
				c.Sitemap = "https://example.com/sitemap.xml"
			},
			wantErr: nil,
		},
		{
			name:    "unknown source",
			mutate:  func(c *Config) { c.Source = "ftp" },
			wantErr: ErrUnknownSource,
		},
		{
			name:    "zap source without log",
			mutate:  func(c *Config) { c.ZapOutput = "" },
			wantErr: ErrMissingZapOutput,
		},
		{
			name:    "sitemap source without feed",
			mutate:  func(c *Config) { c.Source = SourceSitemap },
			wantErr: ErrMissingSitemap,
		},
		{
			name:    "empty result file",
			mutate:  func(c *Config) { c.ResultFile = "" },
			wantErr: ErrEmptyResultFile,
		},
		{
			name:    "empty error file",
			mutate:  func(c *Config) { c.ErrorFile = "" },
			wantErr: ErrEmptyErrorFile,
		},
		{
			name:    "invalid concurrency",
			mutate:  func(c *Config) { c.Concurrency = 0 },
			wantErr: ErrInvalidConcurrency,
		},
		{
			name:    "invalid timeout",
			mutate:  func(c *Config) { c.RequestTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSourceIgnoresOutputs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ZapOutput = "spider.csv"

	if err := cfg.ValidateSource(); err != nil {
		t.Errorf("ValidateSource() error = %v, want nil", err)
	}

	if err := cfg.Validate(); !errors.Is(err, ErrEmptyResultFile) {
		t.Errorf("Validate() error = %v, want %v", err, ErrEmptyResultFile)
	}
}
