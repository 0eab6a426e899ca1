package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kobomedia/pkg/auth"
	"kobomedia/pkg/config"
	"kobomedia/pkg/ui"
)

const defaultConfigFile = ".kobomedia.yaml"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage kobomedia configuration files.

Configuration is loaded from, in increasing priority:
  - Default values
  - Configuration file (YAML, TOML or JSON)
  - kobo.json settings file
  - Environment variables (KOBOMEDIA_*, .env files included)
  - Command line flags`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file holding every option at its default value.

The file is created as '.kobomedia.yaml' in the current directory unless a
path is given with --config. A .toml or .json extension selects that format.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The API token and
other secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite an existing file")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = defaultConfigFile
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		ui.PrintError("Configuration file already exists", path)
		return fmt.Errorf("%s exists, use --force to overwrite it", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Run 'kobomedia auth login' to store your API token")
	fmt.Fprintln(ui.Out, "2. Run 'kobomedia config validate' to check the configuration")
	fmt.Fprintln(ui.Out, "3. Start downloading with 'kobomedia <asset_uid>'")
	return nil
}

// maskSecrets returns a copy of cfg that is safe to print
func maskSecrets(cfg *config.Config) config.Config {
	masked := *cfg
	if masked.Kobo.Token != "" {
		masked.Kobo.Token = auth.MaskToken(masked.Kobo.Token)
	}
	if masked.Publish.S3.SecretAccessKey != "" {
		masked.Publish.S3.SecretAccessKey = auth.MaskToken(masked.Publish.S3.SecretAccessKey)
	}
	if masked.Dashboard.JWTSecret != "" {
		masked.Dashboard.JWTSecret = auth.MaskToken(masked.Dashboard.JWTSecret)
	}
	return masked
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	masked := maskSecrets(cfg)
	data, err := yaml.Marshal(&masked)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		return err
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	var problems []string
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if info, err := os.Stat(cfg.Output.ArchiveDirectory); err != nil || !info.IsDir() {
		problems = append(problems, fmt.Sprintf("archive directory %s does not exist", cfg.Output.ArchiveDirectory))
	}
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(ui.Out, "  - %s\n", p)
		}
		return fmt.Errorf("%d configuration problem(s)", len(problems))
	}

	if err := cfg.RequireToken(); err != nil {
		ui.PrintWarning("No API token configured", err.Error())
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Out, "\nConfiguration summary:")
	fmt.Fprintf(ui.Out, "  Server: %s\n", cfg.Kobo.KFURL)
	fmt.Fprintf(ui.Out, "  Media server: %s\n", cfg.Kobo.KCURL)
	fmt.Fprintf(ui.Out, "  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Fprintf(ui.Out, "  Archive directory: %s\n", cfg.Output.ArchiveDirectory)
	fmt.Fprintf(ui.Out, "  Questions: %s\n", cfg.Download.QuestionNames)
	fmt.Fprintf(ui.Out, "  Page size: %d\n", cfg.Download.Limit)
	fmt.Fprintf(ui.Out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
