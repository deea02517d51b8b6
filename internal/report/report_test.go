package report

import (
	"strings"
	"testing"

	"stratforge/domain/core"
	"stratforge/domain/run"
)

func summaryFixture() run.Summary {
	return run.Summary{
		RunID:      core.RunID("run-123"),
		Status:     run.StatusCompleted,
		Report:     run.ReportSuccess,
		PlanHash:   core.Hash("abc123"),
		WinnerID:   core.ArtifactID("art-1"),
		WinnerName: "buy_and_hold-1",
		Audits: []run.StageAudit{
			{
				Stage:        run.StageGenerate,
				ArtifactsIn:  0,
				ArtifactsOut: 5,
				DurationMs:   1200,
			},
			{
				Stage:            run.StageValidate,
				ArtifactsIn:      5,
				ArtifactsOut:     4,
				RepairsAttempted: 2,
				RepairsSucceeded: 1,
				Warnings:         1,
				DropsByReason:    map[string]int{"blocking_after_repair": 1},
				DurationMs:       300,
			},
		},
		Warnings: []run.Warning{
			{
				Stage:      run.StageValidate,
				ArtifactID: core.ArtifactID("art-2"),
				Code:       core.CodeWeightSumInvalid,
				Message:    "weights sum to 0.90",
			},
		},
		CreatedAt:   core.Now(),
		CompletedAt: core.Now(),
	}
}

func TestBuildMarkdown(t *testing.T) {
	md := BuildMarkdown(summaryFixture())

	for _, want := range []string{
		"# Pipeline Run run-123",
		"**Status:** completed",
		"**Report:** Success",
		"**Winner:** buy_and_hold-1 (`art-1`)",
		"| generate | 0 | 5 |",
		"| validate_repair | 5 | 4 | 1/2 | 1 |",
		"validate_repair: 1 dropped (blocking_after_repair)",
		"[WEIGHT_SUM_INVALID] art-2: weights sum to 0.90",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q\n%s", want, md)
		}
	}
}

func TestBuildMarkdown_MinimalSummary(t *testing.T) {
	md := BuildMarkdown(run.Summary{
		RunID:  core.RunID("run-456"),
		Status: run.StatusFailed,
		Reason: run.ReasonCheckpointFailure,
		Report: run.ReportFailed,
	})

	if !strings.Contains(md, "**Reason:** CHECKPOINT_FAILURE") {
		t.Errorf("report missing failure reason\n%s", md)
	}
	if strings.Contains(md, "## Stages") || strings.Contains(md, "## Warnings") {
		t.Error("empty sections should be omitted")
	}
}

func TestRenderHTML(t *testing.T) {
	html := string(RenderHTML(BuildMarkdown(summaryFixture())))

	for _, want := range []string{"<h1", "<table>", "<td>generate</td>"} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
}
