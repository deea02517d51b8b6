package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound           = errors.New("resource not found")
	ErrRunNotFound        = fmt.Errorf("%w: run", ErrNotFound)
	ErrCheckpointNotFound = fmt.Errorf("%w: checkpoint", ErrNotFound)
	ErrArtifactNotFound   = fmt.Errorf("%w: artifact", ErrNotFound)

	// Pipeline errors
	ErrDataIntegrity         = errors.New("regeneration altered frozen structural fields")
	ErrRepairExhausted       = errors.New("repair attempt already consumed")
	ErrGeneration            = errors.New("generation call failed")
	ErrCheckpoint            = errors.New("checkpoint persistence failed")
	ErrInsufficientArtifacts = errors.New("insufficient valid artifacts")
	ErrDeploymentRejected    = errors.New("deployment rejected by target")
	ErrRunNotResumable       = errors.New("run is not in a resumable state")
)

// IntegrityError carries the structural diff between the frozen snapshot
// and what the generator returned. Always fatal, never retried.
type IntegrityError struct {
	ArtifactID ArtifactID
	Diff       string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v for artifact %s:\n%s", ErrDataIntegrity, e.ArtifactID, e.Diff)
}

func (e *IntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

// NewIntegrityError creates an integrity error with the offending diff attached
func NewIntegrityError(artifactID ArtifactID, diff string) error {
	return &IntegrityError{ArtifactID: artifactID, Diff: diff}
}

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewGenerationError(stage string, err error) error {
	return fmt.Errorf("%w in stage %s: %v", ErrGeneration, stage, err)
}

func NewCheckpointError(runID RunID, stage string, err error) error {
	return fmt.Errorf("%w for run %s at stage %s: %v", ErrCheckpoint, runID, stage, err)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFatalError reports whether the error must terminate the run immediately
// rather than being handled within the stage.
func IsFatalError(err error) bool {
	return errors.Is(err, ErrDataIntegrity) || errors.Is(err, ErrCheckpoint)
}

func IsGenerationError(err error) bool {
	return errors.Is(err, ErrGeneration)
}
