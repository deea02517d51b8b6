package app

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"

	"stratforge/domain/core"
	"stratforge/domain/strategy"
	"stratforge/internal"
	"stratforge/ports"
	"stratforge/validate"
)

// RetryController performs one bounded, structure-preserving regeneration
// on artifacts carrying blocking findings. It makes no semantic judgment
// of whether the repair is "better" - only structural integrity and
// re-validation.
type RetryController struct {
	engine    *validate.Engine
	generator ports.GeneratorPort
	logger    *internal.Logger
}

// NewRetryController creates a retry controller
func NewRetryController(engine *validate.Engine, generator ports.GeneratorPort, logger *internal.Logger) *RetryController {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &RetryController{
		engine:    engine,
		generator: generator,
		logger:    logger,
	}
}

// AttemptRepair regenerates the artifact's narrative fields against the
// blocking findings, at most once per artifact per run. The structural
// fields are frozen by value before the call; structural equality of the
// result is a hard postcondition, not a convention the generator is
// trusted to honor. On divergence the returned error wraps
// core.ErrDataIntegrity with a diff of what changed, and is fatal.
func (rc *RetryController) AttemptRepair(
	ctx context.Context,
	a *strategy.Artifact,
	findings []core.Finding,
	vctx validate.Context,
) (*strategy.Artifact, []core.Finding, error) {

	blocking := core.BlockingOnly(findings)
	if len(blocking) == 0 {
		// Nothing to repair; hand back the artifact untouched
		return a, findings, nil
	}
	if a.RepairAttempts >= 1 {
		return nil, nil, fmt.Errorf("%w: artifact %s", core.ErrRepairExhausted, a.ID)
	}

	frozen := a.Structural()

	descriptions := make([]string, 0, len(blocking))
	for _, f := range blocking {
		descriptions = append(descriptions, f.String())
	}

	rc.logger.Info("[RetryController] Repairing artifact %s against %d blocking findings", a.ID, len(blocking))

	result, err := rc.generator.Regenerate(ctx, ports.RegenerationRequest{
		Original:            a,
		Frozen:              frozen,
		FindingDescriptions: descriptions,
	})
	if err != nil {
		return nil, nil, core.NewGenerationError("repair", err)
	}

	revised := result.Artifact
	revised.ID = a.ID
	revised.CreatedAt = a.CreatedAt
	revised.RepairAttempts = a.RepairAttempts + 1

	if diff := cmp.Diff(frozen, revised.Structural()); diff != "" {
		rc.logger.Error("[RetryController] Regeneration altered frozen structural fields for artifact %s", a.ID)
		return nil, nil, core.NewIntegrityError(a.ID, diff)
	}

	refindings := rc.engine.Validate(revised, vctx)
	rc.logger.Info("[RetryController] Artifact %s re-validated: %d findings (%d blocking)",
		a.ID, len(refindings), len(core.BlockingOnly(refindings)))

	return revised, refindings, nil
}
