package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"stratforge/domain/core"
	"stratforge/domain/run"
	"stratforge/domain/strategy"
	"stratforge/internal"
	"stratforge/ports"
	"stratforge/score"
	"stratforge/validate"
)

// DriverConfig holds the stage machine settings, passed in at construction
type DriverConfig struct {
	MaxConcurrent int
	CallTimeout   time.Duration
	Threshold     float64
	Floors        map[score.Dimension]float64
	Guidance      ports.GenerationGuidance
}

// Driver is the top-level stage state machine. It owns the Run exclusively
// and mutates it only at stage boundaries; artifact ownership transfers at
// those boundaries (single-writer discipline). Concurrency is confined to
// the fan-out within a stage and never spans stage transitions.
type Driver struct {
	cfg         DriverConfig
	engine      *validate.Engine
	scorer      *score.Scorer
	retry       *RetryController
	generator   ports.GeneratorPort
	market      ports.ContextProviderPort
	checkpoints ports.CheckpointStore
	runs        ports.RunRepository
	deployer    ports.DeployerPort
	universe    []string
	logger      *internal.Logger
}

// NewDriver wires the pipeline driver
func NewDriver(
	cfg DriverConfig,
	engine *validate.Engine,
	scorer *score.Scorer,
	retry *RetryController,
	generator ports.GeneratorPort,
	market ports.ContextProviderPort,
	checkpoints ports.CheckpointStore,
	runs ports.RunRepository,
	deployer ports.DeployerPort,
	universe []string,
	logger *internal.Logger,
) *Driver {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Driver{
		cfg:         cfg,
		engine:      engine,
		scorer:      scorer,
		retry:       retry,
		generator:   generator,
		market:      market,
		checkpoints: checkpoints,
		runs:        runs,
		deployer:    deployer,
		universe:    universe,
		logger:      logger,
	}
}

// Execute drives the run through its remaining stages. Each stage runs its
// work, persists a checkpoint, then advances the cursor; the checkpoint
// write must durably complete before the stage counts as done.
func (d *Driver) Execute(ctx context.Context, r *run.Run) (run.Summary, error) {
	d.logger.Info("[Driver] Executing run %s from stage %d/%d", r.ID, r.Cursor, len(r.Plan.Stages))

	for !r.Done() {
		if ctx.Err() != nil {
			return d.finishCancelled(r)
		}

		spec := r.CurrentStage()
		started := time.Now()
		audit := run.StageAudit{
			Stage:       spec.Name,
			RunID:       r.ID,
			ArtifactsIn: len(r.Artifacts),
			ExecutedAt:  core.Now(),
		}

		err := d.runStage(ctx, r, spec, &audit)
		audit.ArtifactsOut = len(r.Artifacts)
		audit.Warnings = len(r.Warnings)
		audit.DurationMs = time.Since(started).Milliseconds()
		r.AddAudit(audit)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return d.finishCancelled(r)
			}
			return d.finishFailed(r, spec.Name, err)
		}

		cp := run.NewCheckpoint(r)
		if cperr := d.checkpoints.Save(ctx, cp); cperr != nil {
			// A failed checkpoint write halts the run immediately to avoid
			// an inconsistent resumable state.
			wrapped := core.NewCheckpointError(r.ID, string(spec.Name), cperr)
			return d.finishFailed(r, spec.Name, wrapped)
		}
		d.logger.Info("[Driver] Stage %s complete for run %s (%d artifacts)", spec.Name, r.ID, len(r.Artifacts))
		r.Advance()
	}

	r.Complete()
	return d.finish(r)
}

// Resume rebuilds a run from its latest checkpoint and re-enters at the
// first incomplete stage, re-issuing that stage's work exactly as if the
// run had not been interrupted.
func (d *Driver) Resume(ctx context.Context, runID core.RunID, plan run.Plan) (*run.Run, error) {
	cursor, artifacts, err := d.checkpoints.Resume(ctx, runID)
	if err != nil {
		return nil, err
	}
	if cursor >= len(plan.Stages) {
		return nil, fmt.Errorf("%w: run %s already completed all stages", core.ErrRunNotResumable, runID)
	}

	now := core.Now()
	r := &run.Run{
		ID:        runID,
		Plan:      plan,
		Cursor:    cursor,
		Status:    run.StatusRunning,
		Artifacts: artifacts,
		Resumed:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.logger.Info("[Driver] ResumedFromCheckpoint: run %s re-enters at stage %s",
		runID, plan.Stages[cursor].Name)
	return r, nil
}

func (d *Driver) runStage(ctx context.Context, r *run.Run, spec run.StageSpec, audit *run.StageAudit) error {
	switch spec.Name {
	case run.StageGenerate:
		return d.stageGenerate(ctx, r, spec, audit)
	case run.StageValidate:
		return d.stageValidateRepair(ctx, r, spec, audit)
	case run.StageScore:
		return d.stageScoreSelect(ctx, r, spec, audit)
	case run.StageFinalize:
		return d.stageFinalize(ctx, r, spec, audit)
	case run.StageDeploy:
		return d.stageDeploy(ctx, r, spec, audit)
	default:
		return fmt.Errorf("unknown stage %q in plan", spec.Name)
	}
}

// generateOutcome is one fan-out slot's result, folded after the barrier
type generateOutcome struct {
	artifact *strategy.Artifact
	audit    ports.GenerationAudit
	err      error
}

// stageGenerate fans out the external generation calls under the
// concurrency limit. The group wait is the barrier: the stage does not
// advance until every issued call has returned, failed or timed out.
// Cancellation stops new call issuance; in-flight calls drain on their
// own per-call timeout.
func (d *Driver) stageGenerate(ctx context.Context, r *run.Run, spec run.StageSpec, audit *run.StageAudit) error {
	mctx, err := d.market.Snapshot(ctx)
	if err != nil {
		return core.NewGenerationError(string(spec.Name), fmt.Errorf("market context unavailable: %w", err))
	}
	if !mctx.Present() {
		return core.NewGenerationError(string(spec.Name), errors.New("market context bundle is empty"))
	}

	outcomes := make([]generateOutcome, spec.MaxCandidates)

	g := new(errgroup.Group)
	g.SetLimit(d.cfg.MaxConcurrent)
	for i := 0; i < spec.MaxCandidates; i++ {
		if ctx.Err() != nil {
			break // stop issuing new calls; launched ones drain below
		}
		slot := i
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.CallTimeout)
			defer cancel()

			result, genErr := d.generator.Generate(callCtx, ports.StageContext{
				RunID:         r.ID,
				Stage:         spec.Name,
				Slot:          slot,
				Universe:      d.universe,
				MarketContext: mctx,
				Policy:        d.cfg.Guidance,
			})
			if genErr != nil {
				outcomes[slot] = generateOutcome{err: genErr}
				return nil // slot failure is not a stage failure
			}
			outcomes[slot] = generateOutcome{artifact: result.Artifact, audit: result.Audit}
			return nil
		})
	}
	_ = g.Wait() // barrier
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var artifacts []*strategy.Artifact
	for slot, out := range outcomes {
		switch {
		case out.err != nil && errors.Is(out.err, context.DeadlineExceeded):
			audit.RecordDrop("generation_timeout")
			r.AddWarning(spec.Name, core.Advisory("", core.CodeGenerationTimeout,
				"generation call %d timed out after %s", slot, d.cfg.CallTimeout))
		case out.err != nil:
			audit.RecordDrop("generation_failed")
			r.AddWarning(spec.Name, core.Advisory("", core.CodeGenerationFailed,
				"generation call %d failed: %v", slot, out.err))
		case out.artifact != nil:
			artifacts = append(artifacts, out.artifact)
			for _, dropped := range out.audit.Dropped {
				audit.RecordDrop("candidate_" + dropped.Reason)
			}
		}
	}

	r.Artifacts = artifacts
	if len(artifacts) < spec.MinViable {
		return fmt.Errorf("%w: stage %s produced %d of %d required",
			core.ErrInsufficientArtifacts, spec.Name, len(artifacts), spec.MinViable)
	}
	return nil
}

// repairOutcome is one repair slot's result, folded after the barrier
type repairOutcome struct {
	artifact *strategy.Artifact
	findings []core.Finding
	err      error
}

// stageValidateRepair validates every artifact, fans out one bounded
// repair per artifact with blocking findings, then drops artifacts still
// blocked. An integrity failure on any repair is fatal for the run.
func (d *Driver) stageValidateRepair(ctx context.Context, r *run.Run, spec run.StageSpec, audit *run.StageAudit) error {
	vctx := validate.Context{GlobalAssets: d.universe}

	findingsByIndex := make([][]core.Finding, len(r.Artifacts))
	for i, a := range r.Artifacts {
		findingsByIndex[i] = d.engine.Validate(a, vctx)
	}

	outcomes := make([]repairOutcome, len(r.Artifacts))
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.MaxConcurrent)
	for i, a := range r.Artifacts {
		findings := findingsByIndex[i]
		if !core.HasBlocking(findings) {
			outcomes[i] = repairOutcome{artifact: r.Artifacts[i], findings: findings}
			continue
		}
		if ctx.Err() != nil {
			outcomes[i] = repairOutcome{artifact: a, findings: findings}
			continue
		}
		slot, artifact := i, a
		audit.RepairsAttempted++
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.CallTimeout)
			defer cancel()

			repaired, refindings, repErr := d.retry.AttemptRepair(callCtx, artifact, findings, vctx)
			outcomes[slot] = repairOutcome{artifact: repaired, findings: refindings, err: repErr}
			return nil
		})
	}
	_ = g.Wait() // barrier
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var survivors []*strategy.Artifact
	for i, out := range outcomes {
		if out.err != nil {
			if core.IsFatalError(out.err) {
				// Integrity violations terminate the run; no second repair
				return out.err
			}
			audit.RecordDrop("repair_failed")
			r.AddWarning(spec.Name, core.Advisory(r.Artifacts[i].ID, core.CodeGenerationFailed,
				"repair failed: %v", out.err))
			continue
		}
		if core.HasBlocking(out.findings) {
			audit.RecordDrop("blocking_after_repair")
			blocking := core.BlockingOnly(out.findings)
			r.AddWarning(spec.Name, core.Advisory(out.artifact.ID, blocking[0].Code,
				"artifact %q dropped: %d blocking findings remain after repair", out.artifact.Name, len(blocking)))
			for _, f := range blocking {
				d.logger.Warn("[Driver] Dropping artifact %s: %s", out.artifact.ID, f)
			}
			continue
		}
		if out.artifact.RepairAttempts > 0 {
			audit.RepairsSucceeded++
		}
		for _, f := range core.AdvisoryOnly(out.findings) {
			r.AddWarning(spec.Name, f)
		}
		survivors = append(survivors, out.artifact)
	}

	r.Artifacts = survivors
	if len(survivors) < spec.MinViable {
		return fmt.Errorf("%w: stage %s kept %d of %d required",
			core.ErrInsufficientArtifacts, spec.Name, len(survivors), spec.MinViable)
	}
	return nil
}

// stageScoreSelect scores the surviving artifacts and orders them by
// composite. Scoring provides the ranking signal; the quality gate drops
// candidates that fail the threshold or a dimension floor.
func (d *Driver) stageScoreSelect(ctx context.Context, r *run.Run, spec run.StageSpec, audit *run.StageAudit) error {
	vctx := validate.Context{GlobalAssets: d.universe}

	byID := make(map[core.ArtifactID]*strategy.Artifact, len(r.Artifacts))
	var scores []score.QualityScore
	for _, a := range r.Artifacts {
		findings := d.engine.Validate(a, vctx)
		qs := d.scorer.Score(a, findings)
		if !d.scorer.PassesGate(qs, d.cfg.Threshold, d.cfg.Floors) {
			audit.RecordDrop("below_quality_gate")
			d.logger.Info("[Driver] Artifact %s below quality gate (composite %.3f)", a.ID, qs.Composite)
			continue
		}
		byID[a.ID] = a
		scores = append(scores, qs)
	}

	ranked := score.Rank(scores)
	ordered := make([]*strategy.Artifact, 0, len(ranked))
	for _, qs := range ranked {
		ordered = append(ordered, byID[qs.ArtifactID])
	}

	r.Artifacts = ordered
	if len(ordered) < spec.MinViable {
		return fmt.Errorf("%w: stage %s kept %d of %d required",
			core.ErrInsufficientArtifacts, spec.Name, len(ordered), spec.MinViable)
	}
	return nil
}

// stageFinalize carries the single top-ranked winner forward
func (d *Driver) stageFinalize(ctx context.Context, r *run.Run, spec run.StageSpec, audit *run.StageAudit) error {
	if len(r.Artifacts) == 0 {
		return fmt.Errorf("%w: no candidate to finalize", core.ErrInsufficientArtifacts)
	}
	winner := r.Artifacts[0]
	for _, a := range r.Artifacts[1:] {
		audit.RecordDrop("not_selected")
		d.logger.Debug("[Driver] Artifact %s not selected", a.ID)
	}
	r.Winner = winner
	r.Artifacts = []*strategy.Artifact{winner}
	d.logger.Info("[Driver] Run %s winner: %s (%s)", r.ID, winner.Name, winner.ID)
	return nil
}

// stageDeploy hands the winner to the external deployment target. A
// platform rejection is surfaced as a blocking finding on the failure
// path, never silently retried.
func (d *Driver) stageDeploy(ctx context.Context, r *run.Run, spec run.StageSpec, audit *run.StageAudit) error {
	if r.Winner == nil {
		return fmt.Errorf("%w: no winner to deploy", core.ErrInsufficientArtifacts)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
	defer cancel()

	result, err := d.deployer.Deploy(callCtx, r.Winner)
	if err != nil {
		var rejection *ports.RejectionError
		if errors.As(err, &rejection) {
			finding := core.Blocking(r.Winner.ID, core.CodeDeploymentRejected, "%s", rejection.Detail)
			r.AddWarning(spec.Name, finding)
			return err
		}
		return core.NewGenerationError(string(spec.Name), err)
	}

	d.logger.Info("[Driver] Run %s deployed winner %s as platform id %s", r.ID, r.Winner.ID, result.PlatformID)
	return nil
}

// finish persists the terminal summary for a completed run
func (d *Driver) finish(r *run.Run) (run.Summary, error) {
	summary := r.Summarize()
	if err := d.runs.SaveSummary(context.Background(), summary); err != nil {
		d.logger.Error("[Driver] Failed to persist summary for run %s: %v", r.ID, err)
	}
	d.logger.Info("[Driver] Run %s finished: %s (%s)", r.ID, summary.Status, summary.Report)
	return summary, nil
}

// finishFailed maps the stage error to a terminal reason and persists
func (d *Driver) finishFailed(r *run.Run, stage run.StageName, err error) (run.Summary, error) {
	switch {
	case errors.Is(err, core.ErrDataIntegrity):
		r.Fail(run.ReasonDataIntegrity)
	case errors.Is(err, core.ErrCheckpoint):
		r.Fail(run.ReasonCheckpointFailure)
	case errors.Is(err, core.ErrInsufficientArtifacts):
		r.Fail(run.ReasonInsufficientValidArtifacts)
	case errors.Is(err, core.ErrDeploymentRejected):
		r.Fail(run.ReasonDeploymentRejected)
	default:
		r.Fail(run.ReasonGenerationFailure)
	}
	d.logger.Error("[Driver] Run %s failed at stage %s: %v", r.ID, stage, err)
	summary, _ := d.finish(r)
	return summary, err
}

// finishCancelled writes the Cancelled checkpoint after in-flight work has
// drained, so a later resume re-enters at the first incomplete stage.
func (d *Driver) finishCancelled(r *run.Run) (run.Summary, error) {
	r.Cancel()
	if r.Cursor > 0 {
		cp := run.Checkpoint{
			RunID:      r.ID,
			Stage:      r.Plan.Stages[r.Cursor-1].Name,
			StageIndex: r.Cursor - 1,
			Status:     run.StatusCancelled,
			Artifacts:  r.Artifacts,
			CreatedAt:  core.Now(),
		}
		if err := d.checkpoints.Save(context.Background(), cp); err != nil {
			d.logger.Error("[Driver] Failed to write cancelled checkpoint for run %s: %v", r.ID, err)
		}
	}
	d.logger.Warn("[Driver] Run %s cancelled at stage %d", r.ID, r.Cursor)
	summary, _ := d.finish(r)
	return summary, context.Canceled
}
