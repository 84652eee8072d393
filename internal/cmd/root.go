// Package cmd provides the command-line interface for prodscrape.
// It handles command parsing, configuration loading, and scrape execution.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/prodscrape/internal/config"
	"github.com/masahif/prodscrape/internal/extractor"
	"github.com/masahif/prodscrape/internal/fetch"
	"github.com/masahif/prodscrape/internal/logging"
	"github.com/masahif/prodscrape/internal/scraper"
	"github.com/masahif/prodscrape/internal/source"
	"github.com/masahif/prodscrape/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "prodscrape",
	Short: "Extract product records from storefront product pages",
	Long: `prodscrape reads candidate product URLs from a ZAP spider export or a
sitemap feed, fetches every page and extracts SKU, title, description,
UPC and image paths into a CSV file. Fields that cannot be found are
left empty and reported in the error log.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runScrape,
}

// urlsCmd prints the candidate set without fetching any product page
var urlsCmd = &cobra.Command{
	Use:   "urls",
	Short: "Print the candidate product URLs and exit",
	Args:  cobra.NoArgs,
	RunE:  runURLs,
}

// Execute adds all child commands to the root command and runs it until
// completion or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.json)")

	// URL source flags, shared with the urls subcommand
	rootCmd.PersistentFlags().String("source", config.SourceZap, "URL source: 'zap' or 'sitemap'")
	rootCmd.PersistentFlags().String("zap-output", "", "Path to the ZAP spider export")
	rootCmd.PersistentFlags().String("sitemap", "", "Sitemap feed URL")
	rootCmd.PersistentFlags().DurationP("timeout", "t", 30*time.Second, "HTTP request timeout")
	rootCmd.PersistentFlags().StringP("user-agent", "u", "", "HTTP User-Agent header (default prodscrape/<version>)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")

	// Configuration management flags
	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Scrape flags
	rootCmd.Flags().IntP("concurrency", "c", 1, "Number of concurrent workers")
	rootCmd.Flags().String("title-brand", "", "Compose titles as '<brand> <SKU> - <title>'")

	// Output flags
	rootCmd.Flags().String("result-file", "", "Path of the product CSV file")
	rootCmd.Flags().String("error-file", "", "Path of the append-only error log")
	rootCmd.Flags().String("result-db", "", "Optional SQLite database receiving a copy of the run")
	rootCmd.Flags().String("log-file", "", "Optional rotating JSON log file")

	rootCmd.AddCommand(urlsCmd)

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"source", "source"},
		{"zap_output", "zap-output"},
		{"sitemap", "sitemap"},
		{"request_timeout", "timeout"},
		{"user_agent", "user-agent"},
		{"log_level", "log-level"},
		{"concurrency", "concurrency"},
		{"title_brand", "title-brand"},
		{"result_file", "result-file"},
		{"error_file", "error-file"},
		{"result_db", "result-db"},
		{"log_file", "log-file"},
	}

	for _, bind := range bindFlags {
		flag := rootCmd.Flags().Lookup(bind.flagName)
		if flag == nil {
			flag = rootCmd.PersistentFlags().Lookup(bind.flagName)
		}
		if err := viper.BindPFlag(bind.viperKey, flag); err != nil {
			// Log the error but continue - non-critical for operation
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("json")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("PS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Warning: failed to read config file %s: %v\n", cfgFile, err)
	}
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("prodscrape/%s", version)
	}
	return "prodscrape/dev"
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = generateUserAgent()
	}

	return cfg, nil
}

func showCurrentConfig(out io.Writer, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	// Validate configuration before showing it
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(out, "# Current prodscrape Configuration\n")
	fmt.Fprintf(out, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(out, "# Configuration file search paths: ./config.json\n")
	fmt.Fprintf(out, "# Environment variables prefix: PS_\n\n")

	fmt.Fprint(out, string(yamlData))

	fmt.Fprintf(out, "\n# Configuration source priority:\n")
	fmt.Fprintf(out, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(out, "# 2. Environment variables (PS_ prefix)\n")
	fmt.Fprintf(out, "# 3. Configuration file (config.json)\n")
	fmt.Fprintf(out, "# 4. Default values (lowest priority)\n")

	return nil
}

func setupLogging(cfg *config.Config) (io.Closer, error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.FilePath = cfg.LogFile

	closer, err := logging.SetDefault(*logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return closer, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// collectURLs builds the candidate set from the configured source. Any
// error here is fatal: no record has been written yet.
func collectURLs(ctx context.Context, cfg *config.Config, client source.Getter) ([]string, error) {
	var (
		urls *source.URLSet
		err  error
	)

	switch cfg.Source {
	case config.SourceZap:
		urls, err = source.ReadCrawlLog(cfg.ZapOutput)
	case config.SourceSitemap:
		urls, err = source.FetchSitemap(ctx, client, cfg.Sitemap)
	default:
		err = config.ErrUnknownSource
	}
	if err != nil {
		return nil, err
	}

	slog.Info("Collected candidate URLs", "source", cfg.Source, "count", urls.Len())
	return urls.URLs(), nil
}

// openStorage opens the result CSV and error log, plus the SQLite copy
// when result_db is set. The returned database is nil without result_db.
func openStorage(cfg *config.Config, runID string, urlCount int) (scraper.Storage, *storage.SQLiteStorage, error) {
	files, err := storage.NewFileStorage(cfg.ResultFile, cfg.ErrorFile)
	if err != nil {
		return nil, nil, err
	}

	if cfg.ResultDB == "" {
		return files, nil, nil
	}

	db, err := storage.NewSQLiteStorage(cfg.ResultDB)
	if err != nil {
		_ = files.Close()
		return nil, nil, fmt.Errorf("failed to open result database: %w", err)
	}

	if err := db.BeginRun(runID, cfg.Source, urlCount); err != nil {
		return nil, nil, errors.Join(err, files.Close(), db.Close())
	}

	return storage.Multi{files, db}, db, nil
}

func runURLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.ValidateSource(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	closer, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	client := fetch.NewClient(cfg.UserAgent, cfg.RequestTimeout)
	defer client.Close()

	urls, err := collectURLs(commandContext(cmd), cfg, client)
	if err != nil {
		return fmt.Errorf("failed to collect URLs: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, u := range urls {
		fmt.Fprintln(out, u)
	}
	return nil
}

func runScrape(cmd *cobra.Command, args []string) error {
	// Handle --show-config flag first
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Handle --show-config: display current configuration and exit
	if showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	closer, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	runID := uuid.NewString()
	slog.SetDefault(slog.Default().With("run_id", runID))

	ctx := commandContext(cmd)
	client := fetch.NewClient(cfg.UserAgent, cfg.RequestTimeout)
	defer client.Close()

	urls, err := collectURLs(ctx, cfg, client)
	if err != nil {
		return fmt.Errorf("failed to collect URLs: %w", err)
	}

	ex, err := extractor.New(extractor.DefaultTemplate())
	if err != nil {
		return fmt.Errorf("failed to compile selector rules: %w", err)
	}

	store, db, err := openStorage(cfg, runID, len(urls))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Starting scrape with configuration:\n")
	fmt.Fprintf(out, "  Run ID: %s\n", runID)
	fmt.Fprintf(out, "  Source: %s (%d URLs)\n", cfg.Source, len(urls))
	fmt.Fprintf(out, "  Concurrency: %d\n", cfg.Concurrency)
	fmt.Fprintf(out, "  Result file: %s\n", cfg.ResultFile)
	fmt.Fprintf(out, "  Error file: %s\n", cfg.ErrorFile)
	if db != nil {
		fmt.Fprintf(out, "  Result database: %s\n", cfg.ResultDB)
	}

	processor := scraper.NewPageProcessor(client, ex, cfg.TitleBrand)
	s := scraper.NewScraper(cfg, processor, store)

	stats, runErr := s.Run(ctx, urls)

	if db != nil {
		if err := db.FinishRun(stats); err != nil {
			slog.Error("Failed to finish run", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to close storage: %w", err))
	}

	fmt.Fprintf(out, "Scraped %d of %d URLs: %d complete, %d partial, %d failed\n",
		stats.Processed, stats.URLs, stats.Complete, stats.Partial, stats.Failed)

	return runErr
}
