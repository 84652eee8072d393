package config

import "errors"

var (
	// ErrUnknownSource is returned when source is neither "zap" nor "sitemap"
	ErrUnknownSource = errors.New("source must be \"zap\" or \"sitemap\"")
	// ErrMissingSitemap is returned when the sitemap source is selected without a feed URL
	ErrMissingSitemap = errors.New("sitemap is required when source is \"sitemap\"")
	// ErrMissingZapOutput is returned when the zap source is selected without a log path
	ErrMissingZapOutput = errors.New("zap_output is required when source is \"zap\"")
	// ErrEmptyResultFile is returned when result file path is empty
	ErrEmptyResultFile = errors.New("result_file cannot be empty")
	// ErrEmptyErrorFile is returned when error file path is empty
	ErrEmptyErrorFile = errors.New("error_file cannot be empty")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
)
