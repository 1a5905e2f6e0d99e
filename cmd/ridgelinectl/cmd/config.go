package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ridgelinectl configuration",
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := map[string]any{
			"server":  viper.GetString("server"),
			"timeout": viper.GetDuration("timeout").String(),
			"json":    viper.GetBool("json"),
			"pretty":  viper.GetBool("pretty"),
		}
		if outputJSON {
			printOutput(cfg)
			return
		}
		fmt.Println("Current configuration:")
		fmt.Printf("  Server: %s\n", cfg["server"])
		fmt.Printf("  Timeout: %s\n", cfg["timeout"])
		fmt.Printf("  JSON output: %v\n", cfg["json"])
		fmt.Printf("  Pretty: %v\n", cfg["pretty"])
		if viper.GetBool("pretty") && !checkJQAvailable() {
			fmt.Println("  warning: pretty=true but jq not found in PATH")
		}
		if viper.ConfigFileUsed() != "" {
			fmt.Printf("  Config file: %s\n", viper.ConfigFileUsed())
		} else {
			fmt.Println("  Config file: none (using defaults)")
		}
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value and save it to the config file",
	Long: `Examples:
  ridgelinectl config set server http://localhost:8080
  ridgelinectl config set timeout 60s
  ridgelinectl config set pretty true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		validKeys := map[string]bool{"server": true, "timeout": true, "json": true, "pretty": true, "api-key": true}
		if !validKeys[key] {
			return fmt.Errorf("invalid configuration key: %s (valid: server, timeout, json, pretty, api-key)", key)
		}

		switch key {
		case "json", "pretty":
			switch value {
			case "true", "1", "yes", "on":
				viper.Set(key, true)
			case "false", "0", "no", "off":
				viper.Set(key, false)
			default:
				return fmt.Errorf("invalid boolean value for %s: %s", key, value)
			}
		case "timeout":
			if dur, err := time.ParseDuration(value); err == nil {
				viper.Set(key, dur)
			} else {
				return fmt.Errorf("invalid duration for timeout: %s", value)
			}
		default:
			viper.Set(key, value)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath := filepath.Join(home, ".ridgelinectl.yaml")
		if err := viper.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		fmt.Printf("Set %s = %s\n", key, value)
		fmt.Printf("Configuration saved to: %s\n", configPath)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file in the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath := filepath.Join(home, ".ridgelinectl.yaml")

		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
			}
		}

		viper.Set("server", "http://localhost:8080")
		viper.Set("timeout", "30s")
		viper.Set("json", false)
		viper.Set("pretty", false)
		if err := viper.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}

		fmt.Printf("Configuration file created: %s\n", configPath)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and server connectivity",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ridgelinectl version: %s\n", Version)
		if viper.ConfigFileUsed() != "" {
			fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
		} else {
			fmt.Println("Config file: not found (using defaults)")
		}
		if checkJQAvailable() {
			fmt.Println("jq: available")
		} else {
			fmt.Println("jq: not found in PATH (pretty output will fall back to standard formatting)")
		}
		fmt.Printf("Server: %s\n", serverAddr)

		fmt.Println("\nTesting server connectivity...")
		if _, status, err := doRequest("GET", "/health", nil); err != nil {
			fmt.Printf("Server connectivity: %v\n", err)
		} else {
			fmt.Printf("Server connectivity: OK (status %d)\n", status)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite existing config file")
}
