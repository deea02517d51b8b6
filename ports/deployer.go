package ports

import (
	"context"
	"fmt"

	"stratforge/domain/core"
	"stratforge/domain/strategy"
)

// DeployerPort is the external deployment target, invoked only in the
// terminal stage.
type DeployerPort interface {
	Deploy(ctx context.Context, artifact *strategy.Artifact) (*DeploymentResult, error)
}

// DeploymentResult identifies the deployed strategy on the target platform
type DeploymentResult struct {
	PlatformID string         `json:"platform_id"`
	URL        string         `json:"url,omitempty"`
	DeployedAt core.Timestamp `json:"deployed_at"`
}

// RejectionError is a platform refusal (unsupported operator, unlisted
// asset). It is surfaced as a blocking finding on the run's failure path,
// never silently retried.
type RejectionError struct {
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v: %s", core.ErrDeploymentRejected, e.Detail)
}

func (e *RejectionError) Unwrap() error {
	return core.ErrDeploymentRejected
}
