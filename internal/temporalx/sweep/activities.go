package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
	"github.com/yungbote/neurobridge-delivery/internal/services"
)

type Activities struct {
	Log      *logger.Logger
	Delivery services.DeliveryService
}

// Expire expires every pending check whose grace window closed before now.
func (a *Activities) Expire(ctx context.Context, now time.Time) (Result, error) {
	if a == nil || a.Delivery == nil {
		return Result{}, fmt.Errorf("sweep: activity not configured")
	}
	n, err := a.Delivery.ExpireOverdueChecks(ctx, now)
	if err != nil {
		return Result{}, err
	}
	if a.Log != nil && n > 0 {
		a.Log.Info("Retention sweep expired checks", "count", n, "now", now)
	}
	return Result{Expired: n, At: now}, nil
}
