package run

import (
	"testing"

	"stratforge/domain/core"
	"stratforge/domain/strategy"
)

func TestPlanHash_Deterministic(t *testing.T) {
	p1 := DefaultPlan(5, 3)
	p2 := DefaultPlan(5, 3)
	if p1.Hash() != p2.Hash() {
		t.Error("identical plans hash differently")
	}

	p3 := DefaultPlan(6, 3)
	if p1.Hash() == p3.Hash() {
		t.Error("different fan-out should change the plan hash")
	}
}

func TestPlanHash_OrderSensitive(t *testing.T) {
	a := Plan{Stages: []StageSpec{{Name: StageGenerate}, {Name: StageValidate}}}
	b := Plan{Stages: []StageSpec{{Name: StageValidate}, {Name: StageGenerate}}}
	if a.Hash() == b.Hash() {
		t.Error("reordered stages must produce a different plan hash")
	}
}

func TestPlanValidate(t *testing.T) {
	if err := DefaultPlan(5, 3).Validate(); err != nil {
		t.Errorf("default plan rejected: %v", err)
	}
	if err := (Plan{}).Validate(); err == nil {
		t.Error("empty plan should be rejected")
	}

	dup := Plan{Stages: []StageSpec{{Name: StageGenerate}, {Name: StageGenerate}}}
	if err := dup.Validate(); err == nil {
		t.Error("duplicate stage names should be rejected")
	}
}

func TestPlanIndexOf(t *testing.T) {
	p := DefaultPlan(5, 3)
	if got := p.IndexOf(StageScore); got != 2 {
		t.Errorf("IndexOf(score_select) = %d, want 2", got)
	}
	if got := p.IndexOf("unknown"); got != -1 {
		t.Errorf("IndexOf(unknown) = %d, want -1", got)
	}
}

func TestRunLifecycle(t *testing.T) {
	r, err := New(DefaultPlan(5, 3))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if r.Status != StatusRunning {
		t.Errorf("new run status = %s, want running", r.Status)
	}
	if r.Terminal() {
		t.Error("new run should not be terminal")
	}

	for !r.Done() {
		if r.CurrentStage().Name == "" {
			t.Fatal("current stage has no name")
		}
		r.Advance()
	}
	if r.Cursor != 5 {
		t.Errorf("cursor after full advance = %d, want 5", r.Cursor)
	}

	r.Complete()
	if !r.Terminal() || r.Status != StatusCompleted {
		t.Errorf("completed run: terminal=%v status=%s", r.Terminal(), r.Status)
	}
}

func TestRunFail_CarriesReason(t *testing.T) {
	r, _ := New(DefaultPlan(5, 3))
	r.Fail(ReasonInsufficientValidArtifacts)
	if r.Status != StatusFailed || r.Reason != ReasonInsufficientValidArtifacts {
		t.Errorf("failed run: status=%s reason=%s", r.Status, r.Reason)
	}
}

func TestCheckpoint_ResumeCursor(t *testing.T) {
	r, _ := New(DefaultPlan(5, 3))
	r.Artifacts = []*strategy.Artifact{{ID: "a1", Name: "x", Assets: []string{"SPY"}}}

	// Cursor sits on the third stage; the driver checkpoints before advancing,
	// so this snapshot records stage index 2 as completed.
	r.Advance()
	r.Advance()

	cp := NewCheckpoint(r)
	if cp.Stage != StageScore {
		t.Errorf("checkpoint stage = %s, want score_select", cp.Stage)
	}
	if cp.StageIndex != 2 {
		t.Errorf("checkpoint stage index = %d, want 2", cp.StageIndex)
	}
	if cp.ResumeCursor() != 3 {
		t.Errorf("resume cursor = %d, want 3", cp.ResumeCursor())
	}
	if len(cp.Artifacts) != 1 {
		t.Errorf("checkpoint carries %d artifacts, want 1", len(cp.Artifacts))
	}
}

func TestAddWarning(t *testing.T) {
	r, _ := New(DefaultPlan(5, 3))
	r.AddWarning(StageValidate, core.Advisory("a1", core.CodeMissingQuantification, "no numbers"))

	if len(r.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(r.Warnings))
	}
	w := r.Warnings[0]
	if w.Stage != StageValidate || w.Code != core.CodeMissingQuantification || w.ArtifactID != "a1" {
		t.Errorf("warning = %+v", w)
	}
}

func TestStageAudit_RecordDrop(t *testing.T) {
	var a StageAudit
	a.RecordDrop("below_quality_gate")
	a.RecordDrop("below_quality_gate")
	a.RecordDrop("blocking_after_repair")

	if a.DropsByReason["below_quality_gate"] != 2 {
		t.Errorf("drop count = %d, want 2", a.DropsByReason["below_quality_gate"])
	}
	if a.DropsByReason["blocking_after_repair"] != 1 {
		t.Errorf("drop count = %d, want 1", a.DropsByReason["blocking_after_repair"])
	}
}

func TestSummarize_ReportCodes(t *testing.T) {
	clean, _ := New(DefaultPlan(5, 3))
	clean.Complete()
	if s := clean.Summarize(); s.Report != ReportSuccess {
		t.Errorf("clean completed run report = %s, want Success", s.Report)
	}

	warned, _ := New(DefaultPlan(5, 3))
	warned.AddWarning(StageValidate, core.Advisory("a1", core.CodeConcentrationHigh, "heavy"))
	warned.Complete()
	if s := warned.Summarize(); s.Report != ReportPartialSuccess {
		t.Errorf("warned run report = %s, want PartialSuccess", s.Report)
	}

	failed, _ := New(DefaultPlan(5, 3))
	failed.Fail(ReasonDataIntegrity)
	s := failed.Summarize()
	if s.Report != ReportFailed {
		t.Errorf("failed run report = %s, want Failed", s.Report)
	}
	if s.ReportDetail != string(ReasonDataIntegrity) {
		t.Errorf("failed run detail = %s", s.ReportDetail)
	}
}

func TestSummarize_Winner(t *testing.T) {
	r, _ := New(DefaultPlan(5, 3))
	r.Winner = &strategy.Artifact{ID: "a9", Name: "Momentum Tilt"}
	r.Complete()

	s := r.Summarize()
	if s.WinnerID != "a9" || s.WinnerName != "Momentum Tilt" {
		t.Errorf("winner = %s (%s)", s.WinnerName, s.WinnerID)
	}
}
