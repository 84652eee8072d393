// Package config provides configuration management for prodscrape.
// It defines the flat key-value job configuration and its validation rules.
package config

import (
	"time"
)

// URL source names accepted by the source key
const (
	SourceZap     = "zap"
	SourceSitemap = "sitemap"
)

// Config holds the scrape job configuration
type Config struct {
	// URL sources
	Source    string `mapstructure:"source" yaml:"source"`         // Which adapter produces the candidate URLs
	Sitemap   string `mapstructure:"sitemap" yaml:"sitemap"`       // Sitemap feed URL
	ZapOutput string `mapstructure:"zap_output" yaml:"zap_output"` // Path to the ZAP spider export

	// Outputs
	ResultFile string `mapstructure:"result_file" yaml:"result_file"` // Delimited product file
	ErrorFile  string `mapstructure:"error_file" yaml:"error_file"`   // Append-only error log
	ResultDB   string `mapstructure:"result_db" yaml:"result_db"`     // Optional SQLite copy of the run

	// Presentation
	TitleBrand string `mapstructure:"title_brand" yaml:"title_brand"` // Prefix for composed titles, empty keeps the raw title

	// Fetching
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`         // Number of concurrent workers
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // Per-fetch timeout
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Source:         SourceZap,
		Concurrency:    1,
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
	}
}

// Validate checks that the keys required by the active source and the
// output sinks are present.
func (c *Config) Validate() error {
	if err := c.ValidateSource(); err != nil {
		return err
	}

	if c.ResultFile == "" {
		return ErrEmptyResultFile
	}

	if c.ErrorFile == "" {
		return ErrEmptyErrorFile
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	return nil
}

// ValidateSource checks only the keys needed to build the URL list
func (c *Config) ValidateSource() error {
	switch c.Source {
	case SourceZap:
		if c.ZapOutput == "" {
			return ErrMissingZapOutput
		}
	case SourceSitemap:
		if c.Sitemap == "" {
			return ErrMissingSitemap
		}
	default:
		return ErrUnknownSource
	}
	return nil
}
