package core

import "errors"

// Engine error taxonomy. Callers wrap these with fmt.Errorf("...: %w") and
// match with errors.Is.
var (
	// ErrStorageUnavailable is transient; it never blocks transaction creation.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidGoal marks a goal with a non-positive amount.
	ErrInvalidGoal = errors.New("invalid budget goal")
	// ErrCollaboratorUnavailable is retryable at the caller's discretion.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrCollaboratorRejected means the payload was refused; do not retry.
	ErrCollaboratorRejected = errors.New("collaborator rejected request")
	// ErrMultipleActiveGoals is a data anomaly, logged but never returned to users.
	ErrMultipleActiveGoals = errors.New("multiple active goals")

	ErrNotFound = errors.New("not found")
)
