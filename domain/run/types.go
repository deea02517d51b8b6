package run

import (
	"fmt"

	"stratforge/domain/core"
	"stratforge/domain/strategy"
)

// Status is the lifecycle state of a pipeline run
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ReasonCode explains a terminal Failed status
type ReasonCode string

const (
	ReasonInsufficientValidArtifacts ReasonCode = "INSUFFICIENT_VALID_ARTIFACTS"
	ReasonDataIntegrity              ReasonCode = "DATA_INTEGRITY"
	ReasonCheckpointFailure          ReasonCode = "CHECKPOINT_FAILURE"
	ReasonGenerationFailure          ReasonCode = "GENERATION_FAILURE"
	ReasonDeploymentRejected         ReasonCode = "DEPLOYMENT_REJECTED"
)

// Warning is an advisory finding surfaced to the run-level log
type Warning struct {
	Stage      StageName        `json:"stage"`
	ArtifactID core.ArtifactID  `json:"artifact_id,omitempty"`
	Code       core.FindingCode `json:"code"`
	Message    string           `json:"message"`
	At         core.Timestamp   `json:"at"`
}

// Run is the pipeline execution state. It is owned exclusively by the
// pipeline driver and mutated only at stage boundaries.
type Run struct {
	ID        core.RunID           `json:"id"`
	Plan      Plan                 `json:"plan"`
	Cursor    int                  `json:"cursor"`
	Status    Status               `json:"status"`
	Reason    ReasonCode           `json:"reason,omitempty"`
	Artifacts []*strategy.Artifact `json:"artifacts"`
	Warnings  []Warning            `json:"warnings"`
	Audits    []StageAudit         `json:"audits"`
	Winner    *strategy.Artifact   `json:"winner,omitempty"`
	Resumed   bool                 `json:"resumed"`
	CreatedAt core.Timestamp       `json:"created_at"`
	UpdatedAt core.Timestamp       `json:"updated_at"`
}

// New creates a running pipeline run over a validated plan
func New(plan Plan) (*Run, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	now := core.Now()
	return &Run{
		ID:        core.RunID(core.NewID()),
		Plan:      plan,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CurrentStage returns the stage the cursor points at
func (r *Run) CurrentStage() StageSpec {
	return r.Plan.Stages[r.Cursor]
}

// Done reports whether the cursor has moved past the last stage
func (r *Run) Done() bool {
	return r.Cursor >= len(r.Plan.Stages)
}

// Advance moves the cursor to the next stage
func (r *Run) Advance() {
	r.Cursor++
	r.UpdatedAt = core.Now()
}

// Complete marks the run completed
func (r *Run) Complete() {
	r.Status = StatusCompleted
	r.UpdatedAt = core.Now()
}

// Fail marks the run failed with a reason code
func (r *Run) Fail(reason ReasonCode) {
	r.Status = StatusFailed
	r.Reason = reason
	r.UpdatedAt = core.Now()
}

// Cancel marks the run cancelled
func (r *Run) Cancel() {
	r.Status = StatusCancelled
	r.UpdatedAt = core.Now()
}

// Terminal reports whether the run reached a terminal status
func (r *Run) Terminal() bool {
	return r.Status != StatusRunning
}

// AddWarning appends an advisory finding to the run-level warnings log
func (r *Run) AddWarning(stage StageName, f core.Finding) {
	r.Warnings = append(r.Warnings, Warning{
		Stage:      stage,
		ArtifactID: f.ArtifactID,
		Code:       f.Code,
		Message:    f.Message,
		At:         core.Now(),
	})
}

// AddAudit records a stage execution audit
func (r *Run) AddAudit(audit StageAudit) {
	r.Audits = append(r.Audits, audit)
}

// StageAudit captures the execution context and results of one stage
type StageAudit struct {
	Stage            StageName      `json:"stage"`
	RunID            core.RunID     `json:"run_id"`
	ArtifactsIn      int            `json:"artifacts_in"`
	ArtifactsOut     int            `json:"artifacts_out"`
	DropsByReason    map[string]int `json:"drops_by_reason,omitempty"`
	RepairsAttempted int            `json:"repairs_attempted"`
	RepairsSucceeded int            `json:"repairs_succeeded"`
	Warnings         int            `json:"warnings"`
	DurationMs       int64          `json:"duration_ms"`
	ExecutedAt       core.Timestamp `json:"executed_at"`
}

// RecordDrop increments the drop counter for a reason
func (a *StageAudit) RecordDrop(reason string) {
	if a.DropsByReason == nil {
		a.DropsByReason = make(map[string]int)
	}
	a.DropsByReason[reason]++
}

// ReportCode is the user-visible exit classification for a run
type ReportCode string

const (
	ReportSuccess        ReportCode = "Success"
	ReportPartialSuccess ReportCode = "PartialSuccess"
	ReportFailed         ReportCode = "Failed"
	ReportResumed        ReportCode = "ResumedFromCheckpoint"
)

// Summary is the terminal run record persisted for later inspection
type Summary struct {
	RunID         core.RunID      `json:"run_id"`
	Status        Status          `json:"status"`
	Reason        ReasonCode      `json:"reason,omitempty"`
	Report        ReportCode      `json:"report"`
	ReportDetail  string          `json:"report_detail,omitempty"`
	PlanHash      core.Hash       `json:"plan_hash"`
	Warnings      []Warning       `json:"warnings"`
	Audits        []StageAudit    `json:"audits"`
	WinnerID      core.ArtifactID `json:"winner_id,omitempty"`
	WinnerName    string          `json:"winner_name,omitempty"`
	CreatedAt     core.Timestamp  `json:"created_at"`
	CompletedAt   core.Timestamp  `json:"completed_at"`
	ResumedStages int             `json:"resumed_stages,omitempty"`
}

// Summarize builds the terminal summary record from a finished run
func (r *Run) Summarize() Summary {
	s := Summary{
		RunID:       r.ID,
		Status:      r.Status,
		Reason:      r.Reason,
		PlanHash:    core.Hash(r.Plan.Hash()),
		Warnings:    r.Warnings,
		Audits:      r.Audits,
		CreatedAt:   r.CreatedAt,
		CompletedAt: core.Now(),
	}
	if r.Winner != nil {
		s.WinnerID = r.Winner.ID
		s.WinnerName = r.Winner.Name
	}

	switch {
	case r.Status == StatusFailed || r.Status == StatusCancelled:
		s.Report = ReportFailed
		s.ReportDetail = string(r.Reason)
	case len(r.Warnings) > 0:
		s.Report = ReportPartialSuccess
		s.ReportDetail = fmt.Sprintf("%d warnings", len(r.Warnings))
	default:
		s.Report = ReportSuccess
	}
	if r.Resumed && r.Status == StatusCompleted {
		s.ResumedStages = r.Cursor
	}
	return s
}
