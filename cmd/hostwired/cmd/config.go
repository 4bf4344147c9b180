package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hostwire/hostwire/internal/config"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage hostwired configuration.

Without subcommands, shows the current effective configuration.

Examples:
  hostwired config              # Show current config
  hostwired config init         # Create config file with defaults
  hostwired config path         # Show config file location
  hostwired config get <key>    # Get a config value
  hostwired config set <key> <value>  # Set a config value`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		setupLogging(cfg)
		printConfig(cmd, cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings and documentation.

By default, creates ~/.hostwire/config.yaml.
Use --local to create ./config.yaml in the current directory.

Examples:
  hostwired config init          # Create ~/.hostwire/config.yaml
  hostwired config init --local  # Create ./config.yaml
  hostwired config init --force  # Overwrite existing file`,
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	Run:   runConfigPath,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by key, using dot notation.

Examples:
  hostwired config get server.transport
  hostwired config get logging.level
  hostwired config get limits.max_pending_calls`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by key, using dot notation.

Creates the config file if it doesn't exist.

Examples:
  hostwired config set server.transport websocket
  hostwired config set logging.level debug
  hostwired config set limits.max_pending_calls 64`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.hostwire/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var configPath string
	if configInitLocal {
		configPath = "config.yaml"
	} else {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	cmd.Printf("Created %s\n", configPath)
	cmd.Println("Edit this file to customize hostwired behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting config dir: %v\n", err)
		os.Exit(1)
	}

	locations := []string{"./config.yaml", filepath.Join(configDir, "config.yaml"), "/etc/hostwire/config.yaml"}

	cmd.Println("Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		cmd.Printf("  %d. %s (%s)\n", i+1, loc, exists)
	}
	cmd.Printf("\nConfig directory: %s\n", configDir)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	configDir, err := config.EnsureConfigDir()
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	var data map[string]interface{}
	if content, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
	}
	if data == nil {
		data = make(map[string]interface{})
	}

	if err := setNestedValue(data, key, value); err != nil {
		return err
	}

	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	cmd.Printf("Set %s = %s in %s\n", key, value, configPath)
	return nil
}

func getConfigValue(cfg *config.Config, key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid key: %s", key)
	}

	switch parts[0] {
	case "server":
		switch parts[1] {
		case "transport":
			return cfg.Server.Transport, nil
		case "addr":
			return cfg.Server.Addr, nil
		}
	case "logging":
		switch parts[1] {
		case "level":
			return cfg.Logging.Level, nil
		case "format":
			return cfg.Logging.Format, nil
		}
	case "limits":
		switch parts[1] {
		case "max_pending_calls":
			return cfg.Limits.MaxPendingCalls, nil
		case "call_timeout_secs":
			return cfg.Limits.CallTimeoutSecs, nil
		case "max_queued_on_send":
			return cfg.Limits.MaxQueuedOnSend, nil
		}
	case "diagnostics":
		switch parts[1] {
		case "enabled":
			return cfg.Diagnostics.Enabled, nil
		case "db_path":
			return cfg.Diagnostics.DBPath, nil
		}
	}

	return nil, fmt.Errorf("unknown config key: %s", key)
}

func setNestedValue(data map[string]interface{}, key, value string) error {
	parts := strings.Split(key, ".")

	current := data
	for i := 0; i < len(parts)-1; i++ {
		if _, ok := current[parts[i]]; !ok {
			current[parts[i]] = make(map[string]interface{})
		}
		nested, ok := current[parts[i]].(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot set nested value: %s is not a map", parts[i])
		}
		current = nested
	}

	current[parts[len(parts)-1]] = parseValue(key, value)
	return nil
}

func parseValue(key, value string) interface{} {
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}

	intKeys := []string{"max_pending_calls", "call_timeout_secs", "max_queued_on_send"}
	for _, k := range intKeys {
		if strings.HasSuffix(key, k) {
			if n, err := strconv.Atoi(value); err == nil {
				return n
			}
		}
	}

	return value
}

func printConfig(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println("Current Configuration:")
	cmd.Println("----------------------")
	cmd.Printf("Transport:        %s\n", cfg.Server.Transport)
	cmd.Printf("Addr:             %s\n", cfg.Server.Addr)
	cmd.Printf("Preload:          %s\n", strings.Join(cfg.Components.Preload, ", "))
	cmd.Printf("Log Level:        %s\n", cfg.Logging.Level)
	cmd.Printf("Log Format:       %s\n", cfg.Logging.Format)
	cmd.Printf("Max Pending:      %d\n", cfg.Limits.MaxPendingCalls)
	cmd.Printf("Diagnostics:      enabled=%t db=%s\n", cfg.Diagnostics.Enabled, cfg.Diagnostics.DBPath)
}

const defaultConfigTemplate = `# hostwired configuration
# Copy this file to ~/.hostwire/config.yaml and modify as needed

# Transport the embedder binds this host's peer to: worker, websocket, or memory.
# hostwired itself does not implement any of these; it only resolves which one
# an embedder should construct.
server:
  transport: "worker"
  addr: ""

# Component names to instantiate and mount eagerly on Start, instead of
# waiting for the guest's first LoadComponents call.
components:
  preload: []

logging:
  level: "info"
  format: "console"

# Resource limits on a single peer. Zero means unbounded. Only
# max_pending_calls is applied; call_timeout_secs and max_queued_on_send
# are validated but not enforced.
limits:
  max_pending_calls: 0
  call_timeout_secs: 0
  max_queued_on_send: 0

# Persisted lifecycle-event sink (component mount/unmount failures).
diagnostics:
  enabled: true
  db_path: "hostwire-diagnostics.db"
`
