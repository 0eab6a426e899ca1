package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile   string
	settingsFile string
	logLevel     string
	logFormat    string
	noColor      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kobomedia [asset_uid]",
	Short: "Download the media attached to KoboToolbox submissions",
	Long: `kobomedia walks every submission of a KoboToolbox form (asset), downloads
the original media files attached to the chosen questions, and packs them
into a ZIP archive named after the asset.

Server settings are read from kobo.json, a config file, KOBOMEDIA_*
environment variables and command line flags, in increasing priority.`,
	Example: `  # Download photos and audio of one asset
  kobomedia aXyz123

  # Serve the web dashboard
  kobomedia serve --listen :8501`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func isKnownCommand(name string) bool {
	for _, c := range rootCmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	return false
}

func init() {
	// RunE is assigned here rather than in the literal to avoid an
	// initialization cycle through isKnownCommand.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		// A bare asset UID is shorthand for the download command
		if len(args) > 0 && !isKnownCommand(args[0]) {
			return runDownload(cmd, args)
		}
		return cmd.Help()
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default is ./.kobomedia.yaml or ~/.config/kobomedia/config.yaml)")
	pf.StringVar(&settingsFile, "settings", "", "kobo.json settings file (default is ./kobo.json)")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.String("token", "", "KoboToolbox API token")
	pf.String("kf-url", "", "KoboToolbox form-builder server URL")
	pf.String("kc-url", "", "KoboToolbox media server URL")

	// Download flags also work on the root command: kobomedia <asset_uid>
	addDownloadFlags(rootCmd)

	rootCmd.SetVersionTemplate(`kobomedia {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
