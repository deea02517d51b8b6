package main

import (
	"github.com/spf13/cobra"

	"stratforge/domain/core"
	"stratforge/domain/run"
)

var resumeFlags struct {
	runID      string
	candidates int
	minViable  int
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted run from its latest checkpoint",
	Long: "Rebuilds the run from the last durable checkpoint and re-enters at the\n" +
		"first incomplete stage. The plan must match the original run's plan.",
	RunE: runResume,
}

func init() {
	f := resumeCmd.Flags()
	f.StringVar(&resumeFlags.runID, "run-id", "", "Run ID to resume (required)")
	f.IntVar(&resumeFlags.candidates, "candidates", 0, "Generation fan-out of the original plan")
	f.IntVar(&resumeFlags.minViable, "min-viable", 0, "Minimum surviving artifact count of the original plan")

	_ = resumeCmd.MarkFlagRequired("run-id")
}

func runResume(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	runID, err := core.ParseRunID(resumeFlags.runID)
	if err != nil {
		return err
	}

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.close()

	candidates := p.cfg.Pipeline.Candidates
	if resumeFlags.candidates > 0 {
		candidates = resumeFlags.candidates
	}
	minViable := p.cfg.Pipeline.MinViable
	if resumeFlags.minViable > 0 {
		minViable = resumeFlags.minViable
	}

	r, err := p.driver.Resume(ctx, runID, run.DefaultPlan(candidates, minViable))
	if err != nil {
		return err
	}

	summary, execErr := p.driver.Execute(ctx, r)
	printSummary(cmd, summary)
	return execErr
}
