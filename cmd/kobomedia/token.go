package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kobomedia/pkg/dashboard"
	"kobomedia/pkg/ui"
)

// tokenCmd represents the dashboard-token command
var tokenCmd = &cobra.Command{
	Use:   "dashboard-token",
	Short: "Issue a bearer token for the dashboard",
	Long: `Issue a signed bearer token for the dashboard's run and archive
endpoints. Requires dashboard.jwt_secret (or KOBOMEDIA_JWT_SECRET).`,
	Example: `  curl -H "Authorization: Bearer $(kobomedia dashboard-token)" localhost:8501/runs`,
	Args:    cobra.NoArgs,
	RunE:    runToken,
}

func init() {
	tokenCmd.Flags().String("subject", "cli", "subject recorded in the token")
	tokenCmd.Flags().Int("ttl", 0, "lifetime in hours (default dashboard.token_ttl_hours)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	if cfg.Dashboard.JWTSecret == "" {
		return errors.New("dashboard.jwt_secret is not set, the dashboard runs without authentication")
	}

	subject, _ := cmd.Flags().GetString("subject")
	hours, _ := cmd.Flags().GetInt("ttl")
	if hours == 0 {
		hours = cfg.Dashboard.TokenTTL
	}

	token, err := dashboard.GenerateToken(cfg.Dashboard.JWTSecret, subject, time.Duration(hours)*time.Hour)
	if err != nil {
		return err
	}

	// Bare output so the token can be captured by scripts
	fmt.Fprintln(ui.Out, token)
	return nil
}
