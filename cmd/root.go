package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/output"
	"github.com/revuedev/revue/internal/provider"
	"github.com/revuedev/revue/internal/reviewer"
	"github.com/revuedev/revue/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	rev       *reviewer.Reviewer

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "revue",
	Short: "AI-powered code review for files and pull requests",
	Long: `revue reviews code through pluggable analysis backends.
It reviews local files and GitHub pull requests, keeps review history
in SQLite, and generates markdown reports from stored reviews.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/revue/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides db_path)")
	rootCmd.PersistentFlags().String("provider", "", "Analysis provider (overrides provider.name)")
	rootCmd.PersistentFlags().String("model", "", "Provider model (overrides provider.model)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "revue")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("REVUE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "revue")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "revue.db"))
	viper.SetDefault("provider.name", "anthropic")
	viper.SetDefault("provider.model", "claude-sonnet-4-5")
	viper.SetDefault("provider.api_key", "")
	viper.SetDefault("review.type", "full")
	viper.SetDefault("review.max_comments", 25)
	viper.SetDefault("review.min_severity", "suggestion")
	viper.SetDefault("review.include_praise", true)
	viper.SetDefault("review.concurrency", 3)
	viper.SetDefault("cache.ttl", "15m")
	viper.SetDefault("cache.size", 256)
	viper.SetDefault("github.token", "")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()

	// Flag overrides beat both file and env
	if v, _ := rootCmd.PersistentFlags().GetString("db"); v != "" {
		viper.Set("db_path", v)
	}
	if v, _ := rootCmd.PersistentFlags().GetString("provider"); v != "" {
		viper.Set("provider.name", v)
	}
	if v, _ := rootCmd.PersistentFlags().GetString("model"); v != "" {
		viper.Set("provider.model", v)
	}
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Store and reviewer are built lazily so config/version/templates
	// commands run without a database or API key.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// providerAPIKey resolves the provider key from config, falling back to the
// environment.
func providerAPIKey() string {
	apiKey := viper.GetString("provider.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return apiKey
}

// buildProvider creates the configured provider.
func buildProvider() (provider.Provider, error) {
	return provider.Builtin().Create(viper.GetString("provider.name"), provider.Config{
		APIKey: providerAPIKey(),
		Model:  viper.GetString("provider.model"),
	})
}

// getReviewer returns the shared reviewer, initializing provider and store
// on first call.
func getReviewer() (*reviewer.Reviewer, error) {
	if rev != nil {
		return rev, nil
	}

	p, err := buildProvider()
	if err != nil {
		return nil, err
	}

	s, err := getStore()
	if err != nil {
		return nil, err
	}

	defaultType, err := models.ParseReviewType(viper.GetString("review.type"))
	if err != nil {
		return nil, fmt.Errorf("review.type: %w", err)
	}

	settings := models.DefaultSettings()
	settings.MaxComments = viper.GetInt("review.max_comments")
	settings.MinSeverity = models.NormalizeSeverity(viper.GetString("review.min_severity"))
	settings.IncludePraise = viper.GetBool("review.include_praise")

	r, err := reviewer.New(p, reviewer.Options{
		Store:           s,
		DefaultType:     defaultType,
		DefaultSettings: settings,
		MaxConcurrent:   viper.GetInt("review.concurrency"),
		CacheTTL:        viper.GetDuration("cache.ttl"),
		CacheSize:       viper.GetInt("cache.size"),
	})
	if err != nil {
		return nil, err
	}

	rev = r
	return rev, nil
}
