package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "revue"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage revue configuration.

Running bare 'revue config' is the same as 'revue config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, err := configFilePath()
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, cfgPath)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# revue configuration
# See: revue config show (for effective values and sources)

# SQLite database path (default: ~/.config/revue/revue.db)
# db_path: {{ .DBPath }}

# Analysis provider
provider:
  # Provider name: anthropic, static (default: "anthropic")
  name: "{{ .ProviderName }}"

  # Model passed to the provider (default: "claude-sonnet-4-5")
  model: "{{ .ProviderModel }}"

  # API key; leave empty to use ANTHROPIC_API_KEY
  # api_key: ""

# Review defaults
review:
  # Review type: full, security, performance, maintainability, style, documentation, quick
  type: "{{ .ReviewType }}"

  # Comment cap per file (default: 25)
  max_comments: {{ .ReviewMaxComments }}

  # Drop comments below this severity (default: "suggestion")
  min_severity: "{{ .ReviewMinSeverity }}"

  # Ask for positive feedback alongside issues (default: true)
  include_praise: {{ .ReviewIncludePraise }}

  # Parallel reviews in a batch (default: 3)
  concurrency: {{ .ReviewConcurrency }}

# Response cache
cache:
  # Cached responses expire after this; 0 disables caching (default: "15m")
  ttl: "{{ .CacheTTL }}"

  # Maximum cached responses (default: 256)
  size: {{ .CacheSize }}

# GitHub
github:
  # Token for 'revue pr'; leave empty to use GITHUB_TOKEN
  # token: ""
`

type configTemplateData struct {
	DBPath              string
	ProviderName        string
	ProviderModel       string
	ReviewType          string
	ReviewMaxComments   int
	ReviewMinSeverity   string
	ReviewIncludePraise bool
	ReviewConcurrency   int
	CacheTTL            string
	CacheSize           int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		DBPath:              viper.GetString("db_path"),
		ProviderName:        viper.GetString("provider.name"),
		ProviderModel:       viper.GetString("provider.model"),
		ReviewType:          viper.GetString("review.type"),
		ReviewMaxComments:   viper.GetInt("review.max_comments"),
		ReviewMinSeverity:   viper.GetString("review.min_severity"),
		ReviewIncludePraise: viper.GetBool("review.include_praise"),
		ReviewConcurrency:   viper.GetInt("review.concurrency"),
		CacheTTL:            viper.GetString("cache.ttl"),
		CacheSize:           viper.GetInt("cache.size"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes. Secret keys
// (provider.api_key, github.token) are deliberately not listed.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "db_path", EnvVar: "REVUE_DB_PATH"},
	{Key: "provider.name", EnvVar: "REVUE_PROVIDER_NAME"},
	{Key: "provider.model", EnvVar: "REVUE_PROVIDER_MODEL"},
	{Key: "review.type", EnvVar: "REVUE_REVIEW_TYPE"},
	{Key: "review.max_comments", EnvVar: "REVUE_REVIEW_MAX_COMMENTS"},
	{Key: "review.min_severity", EnvVar: "REVUE_REVIEW_MIN_SEVERITY"},
	{Key: "review.include_praise", EnvVar: "REVUE_REVIEW_INCLUDE_PRAISE"},
	{Key: "review.concurrency", EnvVar: "REVUE_REVIEW_CONCURRENCY"},
	{Key: "cache.ttl", EnvVar: "REVUE_CACHE_TTL"},
	{Key: "cache.size", EnvVar: "REVUE_CACHE_SIZE"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set (export EDITOR=vim or similar)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'revue config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
