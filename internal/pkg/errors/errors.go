package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown encounter, check or learner references.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument marks malformed input, e.g. an empty or unknown style set.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAlreadyCompleted marks a duplicate terminal transition (second completion, expired check).
	ErrAlreadyCompleted = errors.New("already completed")
	// ErrEvaluationUnavailable is the one transient class: the text-evaluation collaborator failed.
	// State is guaranteed untouched when it is returned, so the caller may retry the whole call.
	ErrEvaluationUnavailable = errors.New("evaluation unavailable")
)

func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func AlreadyCompleted(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAlreadyCompleted, fmt.Sprintf(format, args...))
}

// EvaluationUnavailable keeps the collaborator failure in the chain for logging.
func EvaluationUnavailable(cause error) error {
	if cause == nil {
		return ErrEvaluationUnavailable
	}
	return fmt.Errorf("%w: %w", ErrEvaluationUnavailable, cause)
}

func Is(err, target error) bool { return errors.Is(err, target) }
