package app

import (
	"errors"
	"fmt"

	"knowledgehub/internal/model"
)

var (
	// ErrInvalidInput marks caller-supplied values that fail validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPermissionDenied marks requests the resolved access does not cover.
	// It is never downgraded to an empty result.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDocumentNotFound marks lookups of unknown document ids.
	ErrDocumentNotFound = errors.New("document not found")
)

// InvalidTransitionError reports a lifecycle transition outside the allowed
// table. From is the server-side current state, regardless of what the
// client believed it to be.
type InvalidTransitionError struct {
	DocumentID uint
	From       model.Status
	To         model.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("document %d: invalid transition %s -> %s", e.DocumentID, e.From, e.To)
}
