package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ringhist/pkg/config"
	"ringhist/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage ringhist configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (RINGHIST_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.ringhist.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources.

Sensitive values like tokens will be masked for security.`,
	Run: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".ringhist.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# ringhist configuration file
#
# Every option can also be set with environment variables prefixed with
# RINGHIST_, for example RINGHIST_REFRESH_TOKEN or RINGHIST_TIMEZONE.

# Ring API session
ring:
  # Refresh token; prefer 'ringhist auth login' over putting it here
  refresh_token: ""

  # User agent for API requests (optional)
  user_agent: ""

# History scan
scan:
  # Total events to inspect per device; 0 scans the whole feed
  history_limit: 3000

  # Inclusive end of the overnight window (the window starts at 00:00)
  window_end: "05:30"

  # IANA timezone the window is evaluated in
  timezone: "Europe/London"

  # Resume state file
  state_file: "ring_history_state.json"

# Rate limiting
rate_limit:
  # API requests per minute
  requests_per_minute: 60

  # Maximum retry attempts for transient failures
  max_retries: 3

# Recording downloads
download:
  # Output directory for recordings
  directory: "ring_videos"

  # Concurrent downloads per device
  # Range: 1-10
  concurrent_downloads: 1

# Logging
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional, empty logs to stderr)
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'ringhist auth login' to sign in")
	fmt.Println("2. Run 'ringhist config validate' to check the configuration")
	fmt.Println("3. Start scanning with 'ringhist scan'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	displayCfg := *cfg
	if displayCfg.Ring.RefreshToken != "" {
		if len(displayCfg.Ring.RefreshToken) > 8 {
			token := displayCfg.Ring.RefreshToken
			displayCfg.Ring.RefreshToken = token[:4] + "..." + token[len(token)-4:]
		} else {
			displayCfg.Ring.RefreshToken = "***"
		}
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (RINGHIST_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		possiblePaths := []string{
			".ringhist.yaml",
			".ringhist.yml",
			filepath.Join(os.Getenv("HOME"), ".ringhist.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "ringhist", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	warnings := []string{}
	problems := []string{}

	if cfg.Ring.RefreshToken == "" && os.Getenv("RINGHIST_REFRESH_TOKEN") == "" {
		warnings = append(warnings, "no refresh token configured; run 'ringhist auth login'")
	}

	if cfg.Download.Directory != "" {
		if err := os.MkdirAll(cfg.Download.Directory, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create download directory: %v", err))
		}
	}

	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:", "")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Window: 00:00-%s %s\n", cfg.Scan.WindowEnd, cfg.Scan.Timezone)
	fmt.Printf("  History limit: %d events per device\n", cfg.Scan.HistoryLimit)
	fmt.Printf("  Download directory: %s\n", cfg.Download.Directory)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
