package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stratforge/domain/core"
)

var statusFlags struct {
	runID string
	limit int
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a run summary, or list recent runs",
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusFlags.runID, "run-id", "", "Run ID to inspect (omit to list recent runs)")
	f.IntVar(&statusFlags.limit, "limit", 20, "Maximum runs to list")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	runs, _, cleanup, err := openRunRepository(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if statusFlags.runID == "" {
		summaries, err := runs.ListSummaries(ctx, statusFlags.limit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}
		for _, s := range summaries {
			fmt.Fprintf(out, "%s  %-9s  %-21s  %s\n", s.RunID, s.Status, s.Report, s.CompletedAt)
		}
		return nil
	}

	runID, err := core.ParseRunID(statusFlags.runID)
	if err != nil {
		return err
	}
	summary, err := runs.GetSummary(ctx, runID)
	if err != nil {
		return err
	}
	printSummary(cmd, *summary)
	for _, a := range summary.Audits {
		fmt.Fprintf(out, "Stage %-15s in=%d out=%d repairs=%d/%d warnings=%d %dms\n",
			a.Stage, a.ArtifactsIn, a.ArtifactsOut,
			a.RepairsSucceeded, a.RepairsAttempted, a.Warnings, a.DurationMs)
	}
	return nil
}
