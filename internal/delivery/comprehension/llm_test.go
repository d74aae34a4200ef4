package comprehension

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

type fakeAI struct {
	obj    map[string]any
	err    error
	calls  int
	schema string
	user   string
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.calls++
	f.schema = schemaName
	f.user = user
	return f.obj, f.err
}

func newEval(t *testing.T, ai *fakeAI) Evaluator {
	t.Helper()
	log, _ := logger.New("test")
	e, err := NewLLMEvaluator(log, ai)
	if err != nil {
		t.Fatalf("NewLLMEvaluator: %v", err)
	}
	return e
}

func TestEvaluateParsesResult(t *testing.T) {
	ai := &fakeAI{obj: map[string]any{
		"score":          0.8,
		"matched_points": []any{"a", " b "},
		"missing_points": []any{"c"},
		"feedback":       " good ",
	}}
	res, err := newEval(t, ai).Evaluate(context.Background(), Request{
		ConceptID:      "c1",
		ConceptTitle:   "Photosynthesis",
		ExpectedPoints: []string{"a", "b", "c"},
		Answer:         "plants eat light",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Score != 0.8 || len(res.MatchedPoints) != 2 || res.MatchedPoints[1] != "b" || res.Feedback != "good" {
		t.Fatalf("result: got=%+v", res)
	}
	if ai.schema != "exit_check_grade" || !strings.Contains(ai.user, "Photosynthesis") {
		t.Fatalf("request: schema=%s user=%q", ai.schema, ai.user)
	}
}

func TestEvaluateRejectsOutOfRange(t *testing.T) {
	for _, bad := range []any{1.4, -0.1, "high", nil} {
		ai := &fakeAI{obj: map[string]any{"score": bad}}
		if _, err := newEval(t, ai).Evaluate(context.Background(), Request{Answer: "x"}); err == nil {
			t.Fatalf("score %v should be rejected", bad)
		}
	}
}

func TestEvaluatePropagatesError(t *testing.T) {
	boom := errors.New("upstream down")
	ai := &fakeAI{err: boom}
	if _, err := newEval(t, ai).Evaluate(context.Background(), Request{Answer: "x"}); !errors.Is(err, boom) {
		t.Fatalf("want wrapped upstream error got=%v", err)
	}
}

func TestEvaluateEmptyAnswerSkipsModel(t *testing.T) {
	ai := &fakeAI{}
	res, err := newEval(t, ai).Evaluate(context.Background(), Request{Answer: "  ", ExpectedPoints: []string{"p"}})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ai.calls != 0 || res.Score != 0 || len(res.MissingPoints) != 1 {
		t.Fatalf("empty answer: calls=%d res=%+v", ai.calls, res)
	}
}

func TestEvaluateRecall(t *testing.T) {
	ai := &fakeAI{obj: map[string]any{"recall": 0.4, "confidence": "0.5", "application": 0.3, "feedback": "ok"}}
	res, err := newEval(t, ai).EvaluateRecall(context.Background(), RecallRequest{ConceptID: "c", Answer: "something", DaysSince: 3})
	if err != nil {
		t.Fatalf("EvaluateRecall: %v", err)
	}
	if res.Recall != 0.4 || res.Confidence != 0.5 || res.Application != 0.3 {
		t.Fatalf("recall result: got=%+v", res)
	}
	if !strings.Contains(ai.user, "3 day(s) ago") {
		t.Fatalf("prompt should carry elapsed days: %q", ai.user)
	}

	ai = &fakeAI{obj: map[string]any{"recall": 0.4, "confidence": 0.5}}
	if _, err := newEval(t, ai).EvaluateRecall(context.Background(), RecallRequest{Answer: "x"}); err == nil {
		t.Fatalf("missing application should fail")
	}
}
