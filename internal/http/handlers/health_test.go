package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestReadyReflectsPinger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		ping Pinger
		want int
	}{
		{nil, http.StatusOK},
		{func(context.Context) error { return nil }, http.StatusOK},
		{func(context.Context) error { return errors.New("down") }, http.StatusServiceUnavailable},
	}
	for i, tc := range cases {
		h := NewHealthHandler(tc.ping)
		r := gin.New()
		r.GET("/readyz", h.Ready)
		r.GET("/healthcheck", h.HealthCheck)
		if rec := do(r, http.MethodGet, "/readyz", ""); rec.Code != tc.want {
			t.Fatalf("case %d: want=%d got=%d", i, tc.want, rec.Code)
		}
		if rec := do(r, http.MethodGet, "/healthcheck", ""); rec.Code != http.StatusOK {
			t.Fatalf("case %d: liveness should always be ok, got=%d", i, rec.Code)
		}
	}
}
