package proposals

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that an operation referenced an absent proposal.
	ErrNotFound = errors.New("proposals: not found")
	// ErrInvalidInput indicates a missing or out-of-bounds field.
	ErrInvalidInput = errors.New("proposals: invalid input")

	errMissingIDProvider = errors.New("id provider is required")
	errDuplicateID       = errors.New("generated identifier already in use")
)

const (
	opStoreNew     = "proposals.store.new"
	opCreate       = "proposals.create"
	opVote         = "proposals.vote"
	opAddComment   = "proposals.add_comment"
	opUpdateStatus = "proposals.update_status"
	opRemove       = "proposals.remove"
	opStats        = "proposals.stats"
	opSeed         = "proposals.seed"
)

// ServiceError carries a stable "<operation>.<reason>" code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
