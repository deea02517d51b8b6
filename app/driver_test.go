package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stratforge/domain/core"
	"stratforge/domain/run"
	"stratforge/domain/strategy"
	"stratforge/domain/tree"
	"stratforge/internal/testkit"
	"stratforge/ports"
	"stratforge/score"
	"stratforge/validate"
)

type driverFixture struct {
	driver      *Driver
	generator   *testkit.ScriptedGenerator
	checkpoints *testkit.InMemoryCheckpointStore
	runs        *testkit.InMemoryRunRepository
	deployer    *testkit.AcceptAllDeployer
}

func newDriverFixture(t *testing.T, gen *testkit.ScriptedGenerator) *driverFixture {
	t.Helper()

	engine := validate.NewEngine(validate.DefaultPolicy())
	scorer, err := score.NewScorer(score.DefaultWeights())
	require.NoError(t, err)

	kit := testkit.NewTestKit()
	deployer := &testkit.AcceptAllDeployer{}
	provider := &testkit.StaticContextProvider{
		Context: &ports.MarketContext{
			AsOf:    core.Now(),
			Payload: json.RawMessage(`{"regime":"risk_on"}`),
		},
	}

	cfg := DriverConfig{
		MaxConcurrent: 2,
		CallTimeout:   5 * time.Second,
		Threshold:     0.70,
		Floors: map[score.Dimension]float64{
			score.DimStructural: 0.50,
			score.DimCoherence:  0.50,
		},
	}

	driver := NewDriver(cfg, engine, scorer, NewRetryController(engine, gen, nil),
		gen, provider, kit.Checkpoints, kit.Runs, deployer,
		[]string{"GLD", "QQQ", "SPY", "TLT"}, nil)

	return &driverFixture{
		driver:      driver,
		generator:   gen,
		checkpoints: kit.Checkpoints,
		runs:        kit.Runs,
		deployer:    deployer,
	}
}

func cleanCandidate(name string) *strategy.Artifact {
	return &strategy.Artifact{
		ID:          core.ArtifactID(core.NewID()),
		Name:        name,
		Thesis:      "Hold a diversified core allocation across stocks, bonds and gold.",
		Expectation: "Expect 6% annualized return with 10% volatility.",
		Archetype:   "buy_and_hold",
		Assets:      []string{"SPY", "TLT", "GLD"},
		Weights:     map[string]float64{"SPY": 0.34, "TLT": 0.33, "GLD": 0.33},
		Rebalance:   strategy.RebalanceQuarterly,
		Tree:        tree.Empty(),
		CreatedAt:   core.Now(),
	}
}

// narrativeRepair rewrites only the free-text fields, the way a compliant
// regeneration should.
func narrativeRepair(req ports.RegenerationRequest) (*strategy.Artifact, error) {
	revised := *req.Original
	revised.Thesis = "Hold a defensive blend through stress periods."
	revised.Expectation = "Expect 5% annualized return with 8% volatility."
	return &revised, nil
}

func TestDriver_FullRunWithRepairAndDrop(t *testing.T) {
	// Five candidates: three clean, one with a coherence defect a narrative
	// repair can fix, one with broken weights no narrative repair can fix.
	repairable := cleanCandidate("Tactical Hedge")
	repairable.Thesis = "Rotate into bonds when stress rises."

	unrepairable := cleanCandidate("Broken Book")
	unrepairable.Weights = map[string]float64{"SPY": 0.34, "TLT": 0.33, "GLD": 0.23}

	gen := &testkit.ScriptedGenerator{
		Artifacts: []*strategy.Artifact{
			cleanCandidate("Core One"),
			cleanCandidate("Core Two"),
			cleanCandidate("Core Three"),
			repairable,
			unrepairable,
		},
		RegenerateFn: narrativeRepair,
	}
	fx := newDriverFixture(t, gen)

	r, err := run.New(run.DefaultPlan(5, 3))
	require.NoError(t, err)

	summary, err := fx.driver.Execute(context.Background(), r)
	require.NoError(t, err)

	require.Equal(t, run.StatusCompleted, summary.Status)
	require.Equal(t, run.ReportPartialSuccess, summary.Report)
	require.NotNil(t, r.Winner)

	// The post-repair drop surfaces as exactly one advisory warning.
	require.Len(t, summary.Warnings, 1)
	require.Equal(t, unrepairable.ID, summary.Warnings[0].ArtifactID)
	require.Equal(t, core.CodeWeightSumInvalid, summary.Warnings[0].Code)

	// The broken-weights candidate was repaired once and still dropped.
	var validateAudit *run.StageAudit
	for i := range summary.Audits {
		if summary.Audits[i].Stage == run.StageValidate {
			validateAudit = &summary.Audits[i]
		}
	}
	require.NotNil(t, validateAudit)
	require.Equal(t, 2, validateAudit.RepairsAttempted)
	require.Equal(t, 1, validateAudit.RepairsSucceeded)
	require.Equal(t, 1, validateAudit.DropsByReason["blocking_after_repair"])
	require.Equal(t, 5, validateAudit.ArtifactsIn)
	require.Equal(t, 4, validateAudit.ArtifactsOut)

	// Each artifact gets at most one repair, ever.
	require.Len(t, gen.RegenRequests, 2)

	// The winner was deployed and every stage checkpointed.
	require.Len(t, fx.deployer.Deployed, 1)
	require.Equal(t, r.Winner.ID, fx.deployer.Deployed[0].ID)
	require.Equal(t, 5, fx.checkpoints.SaveCount())

	// Terminal summary is queryable from the repository.
	stored, err := fx.runs.GetSummary(context.Background(), r.ID)
	require.NoError(t, err)
	require.Equal(t, summary.Report, stored.Report)
}

func TestDriver_ResumeSkipsCompletedStages(t *testing.T) {
	gen := &testkit.ScriptedGenerator{}
	fx := newDriverFixture(t, gen)

	// Simulate a run interrupted after score_select (stage index 2): the
	// checkpoint carries the ranked survivors forward.
	runID := core.RunID(core.NewID())
	carried := []*strategy.Artifact{cleanCandidate("Survivor One"), cleanCandidate("Survivor Two")}
	require.NoError(t, fx.checkpoints.Save(context.Background(), run.Checkpoint{
		RunID:      runID,
		Stage:      run.StageScore,
		StageIndex: 2,
		Status:     run.StatusRunning,
		Artifacts:  carried,
		CreatedAt:  core.Now(),
	}))

	r, err := fx.driver.Resume(context.Background(), runID, run.DefaultPlan(5, 2))
	require.NoError(t, err)
	require.True(t, r.Resumed)
	require.Equal(t, 3, r.Cursor)
	require.Len(t, r.Artifacts, 2)

	summary, err := fx.driver.Execute(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, run.StatusCompleted, summary.Status)

	// Completed stages are not re-executed: no generation was re-issued and
	// the carried top-ranked artifact won.
	require.Equal(t, 0, gen.GenerateCalls)
	require.Equal(t, carried[0].ID, r.Winner.ID)
	require.Len(t, fx.deployer.Deployed, 1)
}

func TestDriver_ResumeUnknownRun(t *testing.T) {
	fx := newDriverFixture(t, &testkit.ScriptedGenerator{})

	_, err := fx.driver.Resume(context.Background(), core.RunID(core.NewID()), run.DefaultPlan(5, 3))
	require.ErrorIs(t, err, core.ErrCheckpointNotFound)
}

func TestDriver_CheckpointFailureIsFatal(t *testing.T) {
	gen := &testkit.ScriptedGenerator{
		Artifacts: []*strategy.Artifact{
			cleanCandidate("Core One"),
			cleanCandidate("Core Two"),
			cleanCandidate("Core Three"),
		},
	}
	fx := newDriverFixture(t, gen)
	fx.checkpoints.SaveErr = errors.New("disk full")

	r, err := run.New(run.DefaultPlan(3, 2))
	require.NoError(t, err)

	summary, err := fx.driver.Execute(context.Background(), r)
	require.ErrorIs(t, err, core.ErrCheckpoint)
	require.Equal(t, run.StatusFailed, summary.Status)
	require.Equal(t, run.ReasonCheckpointFailure, summary.Reason)

	// The run halted at the first stage boundary.
	require.Empty(t, fx.deployer.Deployed)
}

func TestDriver_InsufficientArtifactsFailsRun(t *testing.T) {
	gen := &testkit.ScriptedGenerator{
		Artifacts: []*strategy.Artifact{
			cleanCandidate("Core One"),
			cleanCandidate("Core Two"),
		},
		GenerateErrs: map[int]error{
			2: errors.New("upstream 500"),
			3: errors.New("upstream 500"),
			4: errors.New("upstream 500"),
		},
	}
	fx := newDriverFixture(t, gen)

	r, err := run.New(run.DefaultPlan(5, 3))
	require.NoError(t, err)

	summary, err := fx.driver.Execute(context.Background(), r)
	require.ErrorIs(t, err, core.ErrInsufficientArtifacts)
	require.Equal(t, run.StatusFailed, summary.Status)
	require.Equal(t, run.ReasonInsufficientValidArtifacts, summary.Reason)

	// Every failed call surfaces as a warning, not a silent drop.
	failures := 0
	for _, w := range summary.Warnings {
		if w.Code == core.CodeGenerationFailed {
			failures++
		}
	}
	require.Equal(t, 3, failures)
}

func TestDriver_IntegrityViolationFailsRun(t *testing.T) {
	repairable := cleanCandidate("Tactical Hedge")
	repairable.Thesis = "Rotate into bonds when stress rises."

	gen := &testkit.ScriptedGenerator{
		Artifacts: []*strategy.Artifact{
			cleanCandidate("Core One"),
			cleanCandidate("Core Two"),
			repairable,
		},
		RegenerateFn: func(req ports.RegenerationRequest) (*strategy.Artifact, error) {
			revised := *req.Original
			revised.Rebalance = strategy.RebalanceDaily // structural drift
			revised.Thesis = "Hold a defensive blend."
			return &revised, nil
		},
	}
	fx := newDriverFixture(t, gen)

	r, err := run.New(run.DefaultPlan(3, 2))
	require.NoError(t, err)

	summary, err := fx.driver.Execute(context.Background(), r)
	require.ErrorIs(t, err, core.ErrDataIntegrity)
	require.Equal(t, run.StatusFailed, summary.Status)
	require.Equal(t, run.ReasonDataIntegrity, summary.Reason)
}

func TestDriver_DeploymentRejectionFailsRun(t *testing.T) {
	gen := &testkit.ScriptedGenerator{
		Artifacts: []*strategy.Artifact{
			cleanCandidate("Core One"),
			cleanCandidate("Core Two"),
		},
	}
	fx := newDriverFixture(t, gen)
	fx.deployer.Err = &ports.RejectionError{Detail: "asset GLD not listed on platform"}

	r, err := run.New(run.DefaultPlan(2, 2))
	require.NoError(t, err)

	summary, err := fx.driver.Execute(context.Background(), r)
	require.ErrorIs(t, err, core.ErrDeploymentRejected)
	require.Equal(t, run.StatusFailed, summary.Status)
	require.Equal(t, run.ReasonDeploymentRejected, summary.Reason)

	// The rejection reason is recorded against the winner.
	found := false
	for _, w := range summary.Warnings {
		if w.Code == core.CodeDeploymentRejected {
			found = true
		}
	}
	require.True(t, found, "rejection should surface in the run log")
}

func TestDriver_CancelledBeforeFirstStage(t *testing.T) {
	gen := &testkit.ScriptedGenerator{
		Artifacts: []*strategy.Artifact{
			cleanCandidate("Core One"),
			cleanCandidate("Core Two"),
		},
	}
	fx := newDriverFixture(t, gen)

	r, err := run.New(run.DefaultPlan(2, 2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before the first stage runs

	summary, err := fx.driver.Execute(ctx, r)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, run.StatusCancelled, summary.Status)
	require.Equal(t, 0, gen.GenerateCalls)
}
