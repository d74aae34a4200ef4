package comprehension

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yungbote/neurobridge-delivery/internal/clients/openai"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

type llmEvaluator struct {
	log *logger.Logger
	ai  openai.Client
}

// NewLLMEvaluator grades answers with structured-output model calls.
func NewLLMEvaluator(log *logger.Logger, ai openai.Client) (Evaluator, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ai == nil {
		return nil, fmt.Errorf("openai client required")
	}
	return &llmEvaluator{log: log.With("service", "ComprehensionEvaluator"), ai: ai}, nil
}

func unitScore(desc string) map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "maximum": 1, "description": desc}
}

func stringList() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

var exitSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"score":          unitScore("fraction of expected points the answer demonstrates"),
		"matched_points": stringList(),
		"missing_points": stringList(),
		"feedback":       map[string]any{"type": "string"},
	},
	"required":             []string{"score", "matched_points", "missing_points", "feedback"},
	"additionalProperties": false,
}

var recallSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"recall":      unitScore("did they remember the core concept correctly"),
		"confidence":  unitScore("how confidently they answered; hedging lowers it"),
		"application": unitScore("can they explain or apply it rather than recite"),
		"feedback":    map[string]any{"type": "string"},
	},
	"required":             []string{"recall", "confidence", "application", "feedback"},
	"additionalProperties": false,
}

const exitSystem = `You grade a learner's answer to an end-of-lesson check.
Compare the answer to the expected key points. A point counts as matched when the
answer demonstrates it in any wording. score is matched/total, adjusted down for
factual errors. Partial credit is fine. Keep feedback to two sentences, encouraging
and specific about gaps.`

const recallSystem = `You evaluate whether someone remembers a concept they studied earlier.
Score three things in [0,1]:
recall: did they remember the core concept correctly
confidence: how confidently they answered (hedging lowers it)
application: can they explain or apply it, not just recite it
Be generous but honest. Keep feedback brief: what they kept and what slipped.`

func (e *llmEvaluator) Evaluate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Answer) == "" {
		// an empty answer demonstrates nothing; no model call needed
		return Result{Score: 0, MissingPoints: append([]string(nil), req.ExpectedPoints...), Feedback: "No answer was given."}, nil
	}
	var user strings.Builder
	fmt.Fprintf(&user, "Concept: %s\n", conceptLabel(req.ConceptTitle, req.ConceptID))
	if q := strings.TrimSpace(req.Question); q != "" {
		fmt.Fprintf(&user, "Question: %s\n", q)
	}
	user.WriteString("Expected key points:\n")
	for _, p := range req.ExpectedPoints {
		fmt.Fprintf(&user, "- %s\n", p)
	}
	if len(req.ExpectedPoints) == 0 {
		user.WriteString("- (none listed; judge against the concept itself)\n")
	}
	fmt.Fprintf(&user, "Learner answer:\n%s\n", req.Answer)

	obj, err := e.ai.GenerateJSON(ctx, exitSystem, user.String(), "exit_check_grade", exitSchema)
	if err != nil {
		return Result{}, fmt.Errorf("grade exit answer: %w", err)
	}
	score, err := unitField(obj, "score")
	if err != nil {
		return Result{}, err
	}
	return Result{
		Score:         score,
		MatchedPoints: stringSliceFromAny(obj["matched_points"]),
		MissingPoints: stringSliceFromAny(obj["missing_points"]),
		Feedback:      strings.TrimSpace(stringFromAny(obj["feedback"])),
	}, nil
}

func (e *llmEvaluator) EvaluateRecall(ctx context.Context, req RecallRequest) (RecallResult, error) {
	if strings.TrimSpace(req.Answer) == "" {
		return RecallResult{Feedback: "No answer was given."}, nil
	}
	var user strings.Builder
	fmt.Fprintf(&user, "Concept: %s\n", conceptLabel(req.ConceptTitle, req.ConceptID))
	if req.DaysSince > 0 {
		fmt.Fprintf(&user, "Studied %.0f day(s) ago.\n", req.DaysSince)
	}
	if q := strings.TrimSpace(req.Question); q != "" {
		fmt.Fprintf(&user, "Question: %s\n", q)
	}
	if len(req.ExpectedPoints) > 0 {
		user.WriteString("Key points:\n")
		for _, p := range req.ExpectedPoints {
			fmt.Fprintf(&user, "- %s\n", p)
		}
	}
	fmt.Fprintf(&user, "Their answer:\n%s\n", req.Answer)

	obj, err := e.ai.GenerateJSON(ctx, recallSystem, user.String(), "retention_grade", recallSchema)
	if err != nil {
		return RecallResult{}, fmt.Errorf("grade recall answer: %w", err)
	}
	var out RecallResult
	if out.Recall, err = unitField(obj, "recall"); err != nil {
		return RecallResult{}, err
	}
	if out.Confidence, err = unitField(obj, "confidence"); err != nil {
		return RecallResult{}, err
	}
	if out.Application, err = unitField(obj, "application"); err != nil {
		return RecallResult{}, err
	}
	out.Feedback = strings.TrimSpace(stringFromAny(obj["feedback"]))
	return out, nil
}

func conceptLabel(title, id string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return id
}

// unitField rejects missing, non-numeric or out-of-range scores rather than
// clamping them into something that looks like a real grade.
func unitField(obj map[string]any, key string) (float64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("evaluator output missing %q", key)
	}
	f, ok := floatFromAnyRaw(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("evaluator output %q is not a number: %v", key, v)
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("evaluator output %q out of range: %v", key, f)
	}
	return f, nil
}

func floatFromAnyRaw(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func stringFromAny(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func stringSliceFromAny(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			arr = make([]any, len(ss))
			for i, s := range ss {
				arr[i] = s
			}
		} else {
			return nil
		}
	}
	out := make([]string, 0, len(arr))
	for _, x := range arr {
		if s := strings.TrimSpace(stringFromAny(x)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
