// Package httpx holds the retry policy for outbound collaborator calls.
package httpx

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by errors that carry an upstream status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500 && code <= 599:
		return code != http.StatusNotImplemented
	}
	return false
}

// IsRetryableError reports whether a collaborator call failed transiently.
// A canceled caller context is never retryable.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

// RetryPolicy is exponential backoff with jitter, honoring Retry-After.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
	// fraction of each wait randomized in both directions
	Jitter float64
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Base <= 0 {
		p.Base = time.Second
	}
	if p.Max <= 0 {
		p.Max = 10 * time.Second
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0.2
	}
	return p
}

// Wait is the pause before retry number attempt (0-based). A Retry-After
// header on resp overrides the exponential step; the result never exceeds Max
// before jitter.
func (p RetryPolicy) Wait(attempt int, resp *http.Response) time.Duration {
	p = p.withDefaults()
	d := p.Base
	for i := 0; i < attempt && d < p.Max; i++ {
		d *= 2
	}
	if ra, ok := retryAfter(resp); ok {
		d = ra
	}
	if d > p.Max {
		d = p.Max
	}
	return jitter(d, p.Jitter)
}

// Do calls fn until it succeeds, fails permanently, or retries run out.
// onRetry, when set, sees every retried failure before the pause.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) (*http.Response, error), onRetry func(attempt int, wait time.Duration, err error)) error {
	p = p.withDefaults()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !IsRetryableError(err) {
			return err
		}
		wait := p.Wait(attempt, resp)
		if onRetry != nil {
			onRetry(attempt+1, wait, err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if ra == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(ra); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func jitter(d time.Duration, frac float64) time.Duration {
	if d <= 0 || frac == 0 {
		return d
	}
	delta := float64(d) * frac
	return time.Duration(float64(d) - delta + rand.Float64()*2*delta)
}
