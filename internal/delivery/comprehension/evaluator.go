// Package comprehension defines the text-evaluation collaborator that grades
// exit answers and retention recall, and an LLM-backed implementation of it.
package comprehension

import (
	"context"
	"errors"
)

// Request grades an end-of-encounter answer against the concept's key points.
type Request struct {
	ConceptID      string
	ConceptTitle   string
	ExpectedPoints []string
	Question       string
	Answer         string
}

type Result struct {
	Score         float64  `json:"score"`
	MatchedPoints []string `json:"matched_points"`
	MissingPoints []string `json:"missing_points"`
	Feedback      string   `json:"feedback"`
}

// RecallRequest grades a delayed retention answer.
type RecallRequest struct {
	ConceptID      string
	ConceptTitle   string
	ExpectedPoints []string
	Question       string
	Answer         string
	// days since the source encounter ended
	DaysSince float64
}

type RecallResult struct {
	Recall      float64 `json:"recall"`
	Confidence  float64 `json:"confidence"`
	Application float64 `json:"application"`
	Feedback    string  `json:"feedback"`
}

// Evaluator is a single blocking call. Any error means no score is available;
// callers must not substitute a default.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
	EvaluateRecall(ctx context.Context, req RecallRequest) (RecallResult, error)
}

// ErrNotConfigured reports that no grading backend is wired.
var ErrNotConfigured = errors.New("comprehension evaluator not configured")

type unconfigured struct{}

// Unconfigured fails every call, for processes that never grade answers.
func Unconfigured() Evaluator { return unconfigured{} }

func (unconfigured) Evaluate(context.Context, Request) (Result, error) {
	return Result{}, ErrNotConfigured
}

func (unconfigured) EvaluateRecall(context.Context, RecallRequest) (RecallResult, error) {
	return RecallResult{}, ErrNotConfigured
}
