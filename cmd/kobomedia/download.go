package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"kobomedia/pkg/harvester"
	"kobomedia/pkg/logger"
	"kobomedia/pkg/ui"
	"kobomedia/pkg/ui/tui"
)

var useTUI bool

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <asset_uid>",
	Short: "Download the media of one asset and zip it",
	Long: `Download every media file attached to the chosen questions of an asset.

Files are saved to <output>/<asset_uid>/<submission_uuid>/<file>. Files that
already exist are skipped, so an interrupted run can simply be repeated.
When the walk ends the asset directory is packed into
<archive-dir>/<asset_uid>.zip.`,
	Example: `  # Photos and audio, default settings
  kobomedia download aXyz123

  # Only signatures of submissions from one district, 50 per page
  kobomedia download aXyz123 --question-names signature \
    --query '{"district": "north"}' --limit 50

  # Full screen progress view
  kobomedia download aXyz123 --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	addDownloadFlags(downloadCmd)
	rootCmd.AddCommand(downloadCmd)
}

func addDownloadFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.String("question-names", "", "comma separated question names whose attachments are downloaded (empty for all)")
	fs.Int("limit", 0, "submissions requested per page")
	fs.String("query", "", "Mongo-style JSON filter passed to the data API")
	fs.Int("chunk-size", 0, "download buffer size in bytes")
	fs.Float64("throttle", 0, "pause in seconds after every downloaded file")
	fs.Int("verbosity", 0, "1 summary, 2 pages, 3 every file")
	fs.StringP("output", "o", "", "base output directory")
	fs.String("archive-dir", "", "directory the ZIP archive is written to")
	fs.Bool("rewrite-url", true, "download originals from the media server instead of the listed URL")
	fs.Int("max-retries", 0, "attempts for page fetches that fail before a response")
	fs.Int("timeout", 0, "HTTP timeout in seconds")
	fs.String("s3-bucket", "", "upload the finished archive to this S3 bucket")
	fs.String("s3-prefix", "", "key prefix for uploaded archives")
	fs.Bool("history", true, "record the run in the history database")
	fs.String("history-path", "", "history database path")
	fs.BoolVar(&useTUI, "tui", false, "show a full screen progress view")
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		ui.PrintError("Missing API token", err.Error())
		return err
	}

	opts := harvester.OptionsFromConfig(cfg, args[0])
	if err := opts.Validate(); err != nil {
		ui.PrintError("Invalid download options", err.Error())
		return err
	}

	interactive := useTUI && ui.IsTerminal(os.Stdout)
	if interactive {
		// Log lines would tear the full screen view; keep only the log file
		quiet, err := logger.NewWithWriter(&cfg.Logging, io.Discard)
		if err == nil {
			logger.SetLogger(quiet)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		ui.PrintError("Failed to initialize", err.Error())
		return err
	}
	defer a.Close()

	a.log.WithFields(map[string]interface{}{
		"asset":  opts.AssetUID,
		"server": cfg.Kobo.KFURL,
	}).Info("starting download")

	var result *harvester.Result
	if interactive {
		result, err = tui.NewTUI(opts.AssetUID, tea.WithAltScreen()).Run(ctx,
			func(ctx context.Context, reporter harvester.Reporter) (*harvester.Result, error) {
				return a.harvester.Run(ctx, opts, reporter)
			})
	} else {
		ui.PrintLogo()
		ui.PrintInfo("Asset", opts.AssetUID)
		reporter := ui.NewConsoleReporter(ui.Out, ui.IsTerminal(os.Stdout))
		result, err = a.harvester.Run(ctx, opts, reporter)
		reporter.Finish()
	}

	if result != nil {
		printResult(result)
	}
	if err != nil {
		if errors.Is(err, tui.ErrAborted) {
			ui.PrintWarning("Run aborted")
		} else {
			ui.PrintError("Download failed", err.Error())
		}
		return err
	}
	return nil
}

func printResult(result *harvester.Result) {
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, ui.RenderStats(result.Stats))

	if result.WalkErr != nil {
		ui.PrintWarning("Stopped early, results are partial", result.WalkErr.Error())
	}
	if result.ArchivePath != "" {
		ui.PrintInfo("Archive", result.ArchivePath)
	}
	if result.PublishedURL != "" {
		ui.PrintInfo("Published", result.PublishedURL)
	}
	if result.PublishErr != nil {
		ui.PrintWarning("Publishing failed", result.PublishErr.Error())
	}

	switch result.Status() {
	case "ok":
		ui.PrintSuccess("Download complete")
	case "partial":
		ui.PrintWarning("Download finished with problems")
	}
}
