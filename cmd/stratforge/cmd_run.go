package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stratforge/domain/run"
)

var runFlags struct {
	candidates int
	minViable  int
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a full pipeline run",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.candidates, "candidates", 0, "Generation fan-out (default from PIPELINE_CANDIDATES)")
	f.IntVar(&runFlags.minViable, "min-viable", 0, "Minimum surviving artifact count (default from PIPELINE_MIN_VIABLE)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.close()

	candidates := p.cfg.Pipeline.Candidates
	if runFlags.candidates > 0 {
		candidates = runFlags.candidates
	}
	minViable := p.cfg.Pipeline.MinViable
	if runFlags.minViable > 0 {
		minViable = runFlags.minViable
	}

	plan := run.DefaultPlan(candidates, minViable)
	r, err := run.New(plan)
	if err != nil {
		return err
	}

	summary, execErr := p.driver.Execute(ctx, r)
	printSummary(cmd, summary)
	return execErr
}

func printSummary(cmd *cobra.Command, s run.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:     %s\n", s.RunID)
	fmt.Fprintf(out, "Status:  %s\n", s.Status)
	fmt.Fprintf(out, "Report:  %s\n", s.Report)
	if s.ReportDetail != "" {
		fmt.Fprintf(out, "Detail:  %s\n", s.ReportDetail)
	}
	if s.WinnerName != "" {
		fmt.Fprintf(out, "Winner:  %s (%s)\n", s.WinnerName, s.WinnerID)
	}
	if len(s.Warnings) > 0 {
		fmt.Fprintf(out, "Warnings: (%d)\n", len(s.Warnings))
		for _, w := range s.Warnings {
			fmt.Fprintf(out, "  [%s] %s: %s\n", w.Stage, w.Code, w.Message)
		}
	}
}
