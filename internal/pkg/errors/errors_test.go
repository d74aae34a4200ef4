package errors

import (
	"context"
	"errors"
	"testing"
)

func TestConstructorsWrapSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		target error
	}{
		{"invalid", InvalidArgument("style %q not in profile", "visual"), ErrInvalidArgument},
		{"not found", NotFound("encounter %s", "abc"), ErrNotFound},
		{"already", AlreadyCompleted("check %s", "abc"), ErrAlreadyCompleted},
		{"evaluation", EvaluationUnavailable(context.DeadlineExceeded), ErrEvaluationUnavailable},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.target) {
			t.Fatalf("%s: errors.Is(%v, %v) = false", tc.name, tc.err, tc.target)
		}
	}
}

func TestEvaluationUnavailableKeepsCause(t *testing.T) {
	err := EvaluationUnavailable(context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cause lost: %v", err)
	}
	if EvaluationUnavailable(nil) != ErrEvaluationUnavailable {
		t.Fatalf("nil cause should return the bare sentinel")
	}
}
