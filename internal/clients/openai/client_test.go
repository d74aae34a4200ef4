package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

func outputBody(t *testing.T, text string) []byte {
	t.Helper()
	body := map[string]any{
		"output": []any{
			map[string]any{
				"type": "message",
				"role": "assistant",
				"content": []any{
					map[string]any{"type": "output_text", "text": text},
				},
			},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func newTestClient(t *testing.T, url string, retries int) Client {
	t.Helper()
	log, _ := logger.New("test")
	c, err := NewClient(log, Config{APIKey: "sk-test", BaseURL: url, MaxRetries: retries, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

var schema = map[string]any{"type": "object"}

func TestGenerateJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("path: want=/v1/responses got=%s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header: got=%q", got)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		format, _ := req["text"].(map[string]any)["format"].(map[string]any)
		if format["type"] != "json_schema" || format["name"] != "grade" {
			t.Errorf("format: got=%v", format)
		}
		_, _ = w.Write(outputBody(t, `{"score":0.75}`))
	}))
	defer srv.Close()

	obj, err := newTestClient(t, srv.URL, 0).GenerateJSON(context.Background(), "sys", "user", "grade", schema)
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if obj["score"] != 0.75 {
		t.Fatalf("score: want=0.75 got=%v", obj["score"])
	}
}

func TestGenerateJSONRetriesTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(outputBody(t, `{"ok":true}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL, 1).GenerateJSON(context.Background(), "s", "u", "x", schema); err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls: want=2 got=%d", got)
	}
}

func TestGenerateJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL, 3).GenerateJSON(context.Background(), "s", "u", "x", schema); err == nil {
		t.Fatalf("expected error on 400")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls: want=1 got=%d", got)
	}
}

func TestGenerateJSONRejectsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(outputBody(t, "not json"))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL, 0).GenerateJSON(context.Background(), "s", "u", "x", schema); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	log, _ := logger.New("test")
	if _, err := NewClient(log, Config{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewClient(nil, Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected missing logger error")
	}
}
