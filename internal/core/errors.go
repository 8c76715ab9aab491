package core

import (
	"errors"
	"fmt"
)

// Error codes for user-visible error descriptors.
const (
	ErrCodeSnapshotLoad     = "snapshot_load"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeSubmission       = "submission_failed"
	ErrCodeInvalidSelection = "invalid_selection"
	ErrCodeConnection       = "connection_error"
	ErrCodeInternal         = "internal"
)

var (
	// ErrSnapshotLoad marks a failed channel or message fetch. Retryable by the caller.
	ErrSnapshotLoad = errors.New("snapshot load failed")
	// ErrAuth marks a rejected credential. The session must be restarted with new credentials.
	ErrAuth = errors.New("unauthorized")
	// ErrSubmission marks a failed create, rename, remove or send call.
	ErrSubmission = errors.New("submission failed")
	// ErrInvalidSelection is returned when selecting a channel that is not in the store.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrConnection marks a failed or dropped push stream.
	ErrConnection = errors.New("connection error")
	// ErrClosed is returned by hub operations after teardown.
	ErrClosed = errors.New("hub closed")
	// ErrStaleSnapshot is returned when a snapshot completion was superseded by a newer load.
	ErrStaleSnapshot = errors.New("stale snapshot")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// Classify wraps cause with class unless cause already carries ErrAuth, which always wins.
func Classify(class, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrAuth) || errors.Is(cause, class) {
		return cause
	}
	return fmt.Errorf("%w: %w", class, cause)
}

// Describe maps err to the descriptor kept in the store's last error.
func Describe(err error) *CoreError {
	if err == nil {
		return nil
	}
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}

	code := ErrCodeInternal
	switch {
	case errors.Is(err, ErrAuth):
		code = ErrCodeUnauthorized
	case errors.Is(err, ErrSnapshotLoad):
		code = ErrCodeSnapshotLoad
	case errors.Is(err, ErrSubmission):
		code = ErrCodeSubmission
	case errors.Is(err, ErrInvalidSelection):
		code = ErrCodeInvalidSelection
	case errors.Is(err, ErrConnection):
		code = ErrCodeConnection
	}
	return coreError(code, err.Error())
}
