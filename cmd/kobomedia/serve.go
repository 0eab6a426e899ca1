package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kobomedia/pkg/dashboard"
	"kobomedia/pkg/ui"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web dashboard",
	Long: `Serve a small web dashboard with the download form, recent runs and the
finished archives.

When dashboard.jwt_secret is set, run and archive endpoints require a bearer
token from 'kobomedia dashboard-token'. Prometheus metrics are served on
/metrics.`,
	Example: `  kobomedia serve --listen 127.0.0.1:8501`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	fs := serveCmd.Flags()
	fs.String("listen", "", "address the dashboard listens on (default :8501)")
	fs.StringP("output", "o", "", "base output directory")
	fs.String("archive-dir", "", "directory ZIP archives are written to and served from")
	fs.Int("max-retries", 0, "attempts for page fetches that fail before a response")
	fs.Int("timeout", 0, "HTTP timeout in seconds")
	fs.String("s3-bucket", "", "upload finished archives to this S3 bucket")
	fs.String("s3-prefix", "", "key prefix for uploaded archives")
	fs.Bool("history", true, "record runs in the history database")
	fs.String("history-path", "", "history database path")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		ui.PrintWarning("Runs will fail until a token is configured", err.Error())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		ui.PrintError("Failed to initialize", err.Error())
		return err
	}
	defer a.Close()

	if cfg.Dashboard.JWTSecret == "" {
		a.log.Warn("dashboard.jwt_secret is not set, the dashboard is open to anyone who can reach it")
	}

	ui.PrintLogo()
	ui.PrintInfo("Dashboard", cfg.Dashboard.ListenAddr)

	server := dashboard.New(cfg, a.harvester, a.runs(), a.metrics.Handler(), a.log)
	if err := server.ListenAndServe(ctx); err != nil {
		ui.PrintError("Dashboard stopped", err.Error())
		return err
	}
	return nil
}
