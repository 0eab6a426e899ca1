package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kobomedia/pkg/ui"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of runs to show")
	historyCmd.Flags().String("history-path", "", "history database path")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	// --limit here counts runs, not submissions per page
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit < 1 {
		return fmt.Errorf("limit must be at least 1, got %d", limit)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	store, err := openHistory(cfg)
	if err != nil {
		ui.PrintError("Failed to open run history", err.Error())
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		ui.PrintError("Failed to list runs", err.Error())
		return err
	}
	if len(runs) == 0 {
		ui.PrintInfo("No runs recorded", store.Path())
		return nil
	}

	fmt.Fprintln(ui.Out, ui.RenderRuns(runs))
	return nil
}
