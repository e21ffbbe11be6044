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

	"github.com/hcl-hz/PMS-board/internal/session"
	"github.com/hcl-hz/PMS-board/internal/store"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "board"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage board configuration.

Running bare 'board config' is the same as 'board config show'.`,
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
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# board configuration
# See: board config show (for effective values and sources)

# State directory for the session, snapshot and server files (default: ~/.config/board)
# state_dir: {{ .StateDir }}

# Where the board is loaded from: "seed" (generated demo data) or "sqlite"
source: "{{ .Source }}"

# SQLite snapshot path, used when source is "sqlite" and by 'board export'
source_path: "{{ .SourcePath }}"

# Seed settings
seed:
  # Total issues generated, including the fixed demo issues (default: {{ .DefaultSeedCount }})
  count: {{ .SeedCount }}

# IANA time zone for date filters (default: local time)
timezone: "{{ .Timezone }}"

# Issues per list page (default: 10)
page_size: {{ .PageSize }}

# Comments
comment:
  # Maximum comment length in characters (default: 200)
  max_length: {{ .CommentMaxLength }}

# API server port (default: 8080)
port: {{ .Port }}

# Viewer sessions used to count each issue view once
session:
  # Live sessions kept; the least recently used are dropped beyond this (default: {{ .DefaultSessionMax }})
  max: {{ .SessionMax }}

  # Idle time before a session expires (default: {{ .DefaultSessionTTL }})
  ttl: "{{ .SessionTTL }}"
`

type configTemplateData struct {
	StateDir          string
	Source            string
	SourcePath        string
	SeedCount         int
	DefaultSeedCount  int
	Timezone          string
	PageSize          int
	CommentMaxLength  int
	Port              int
	SessionMax        int
	DefaultSessionMax int
	SessionTTL        string
	DefaultSessionTTL string
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
		StateDir:         viper.GetString("state_dir"),
		Source:           viper.GetString("source"),
		SourcePath:       viper.GetString("source_path"),
		SeedCount:        viper.GetInt("seed.count"),
		DefaultSeedCount: store.DefaultSeedCount,
		Timezone:         viper.GetString("timezone"),
		PageSize:         viper.GetInt("page_size"),
		CommentMaxLength: viper.GetInt("comment.max_length"),
		Port:             viper.GetInt("port"),

		SessionMax:        viper.GetInt("session.max"),
		DefaultSessionMax: session.DefaultCapacity,
		SessionTTL:        viper.GetDuration("session.ttl").String(),
		DefaultSessionTTL: session.DefaultTTL.String(),
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

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "BOARD_STATE_DIR"},
	{Key: "source", EnvVar: "BOARD_SOURCE"},
	{Key: "source_path", EnvVar: "BOARD_SOURCE_PATH"},
	{Key: "seed.count", EnvVar: "BOARD_SEED_COUNT"},
	{Key: "timezone", EnvVar: "BOARD_TIMEZONE"},
	{Key: "page_size", EnvVar: "BOARD_PAGE_SIZE"},
	{Key: "comment.max_length", EnvVar: "BOARD_COMMENT_MAX_LENGTH"},
	{Key: "port", EnvVar: "BOARD_PORT"},
	{Key: "session.max", EnvVar: "BOARD_SESSION_MAX"},
	{Key: "session.ttl", EnvVar: "BOARD_SESSION_TTL"},
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
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'board config init' first)", cfgPath)
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
