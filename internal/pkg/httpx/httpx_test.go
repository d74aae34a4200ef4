package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{statusErr(429), true},
		{statusErr(503), true},
		{statusErr(501), false},
		{fmt.Errorf("wrapped: %w", statusErr(500)), true},
		{statusErr(400), false},
		{fmt.Errorf("boom"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("IsRetryableError(%v): want=%v got=%v", tc.err, tc.want, got)
		}
	}
}

func TestWaitHonorsRetryAfterAndCap(t *testing.T) {
	p := RetryPolicy{Base: time.Second, Max: 10 * time.Second, Jitter: 0.2}
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "3")
	if got := p.Wait(0, resp); got < 2400*time.Millisecond || got > 3600*time.Millisecond {
		t.Fatalf("retry-after: want≈3s got=%s", got)
	}
	resp.Header.Set("Retry-After", "60")
	if got := p.Wait(0, resp); got > 12*time.Second {
		t.Fatalf("capped: want<=12s got=%s", got)
	}
	for attempt := 0; attempt < 8; attempt++ {
		got := p.Wait(attempt, nil)
		if got < 800*time.Millisecond || got > 12*time.Second {
			t.Fatalf("attempt %d: wait out of bounds: %s", attempt, got)
		}
	}
}

func TestDoRetriesTransientOnly(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, Base: time.Millisecond, Max: 2 * time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) (*http.Response, error) {
		calls++
		if calls < 3 {
			return nil, statusErr(503)
		}
		return nil, nil
	}, nil)
	if err != nil || calls != 3 {
		t.Fatalf("transient: want success after 3 calls, got calls=%d err=%v", calls, err)
	}

	calls = 0
	err = p.Do(context.Background(), func(context.Context) (*http.Response, error) {
		calls++
		return nil, statusErr(400)
	}, nil)
	if calls != 1 || !errors.Is(err, statusErr(400)) {
		t.Fatalf("permanent: want one call, got calls=%d err=%v", calls, err)
	}

	calls = 0
	retried := 0
	err = p.Do(context.Background(), func(context.Context) (*http.Response, error) {
		calls++
		return nil, statusErr(500)
	}, func(int, time.Duration, error) { retried++ })
	if calls != 4 || retried != 3 || err == nil {
		t.Fatalf("exhausted: want 4 calls/3 retries, got calls=%d retried=%d err=%v", calls, retried, err)
	}
}

func TestDoStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := RetryPolicy{MaxRetries: 5}.Do(ctx, func(context.Context) (*http.Response, error) {
		called = true
		return nil, nil
	}, nil)
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("want canceled before first call, got err=%v called=%v", err, called)
	}
}
