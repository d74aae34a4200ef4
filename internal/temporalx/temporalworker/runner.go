package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
	"github.com/yungbote/neurobridge-delivery/internal/services"
	"github.com/yungbote/neurobridge-delivery/internal/temporalx"
	"github.com/yungbote/neurobridge-delivery/internal/temporalx/sweep"
)

const (
	startMaxWait    = 60 * time.Second
	startBackoff    = 250 * time.Millisecond
	startBackoffMax = 5 * time.Second
)

type Runner struct {
	log      *logger.Logger
	tc       temporalsdkclient.Client
	cfg      temporalx.Config
	delivery services.DeliveryService
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, delivery services.DeliveryService) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if log == nil || delivery == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{
		log:      log.With("component", "TemporalWorker"),
		tc:       tc,
		cfg:      cfg.WithDefaults(),
		delivery: delivery,
	}, nil
}

// Run starts the worker, registers the sweep cron, and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	w, err := r.start(ctx)
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := r.EnsureSweepSchedule(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	r.log.Info("Temporal worker stopping")
	return nil
}

func (r *Runner) start(ctx context.Context) (worker.Worker, error) {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)
	deadline := time.Now().Add(startMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return w, nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if time.Now().After(deadline) {
			if errors.As(startErr, &nfe) {
				return nil, fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return nil, startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)

		sleep := startBackoff << (attempt - 1)
		if sleep <= 0 || sleep > startBackoffMax {
			sleep = startBackoffMax
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := r.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	acts := &sweep.Activities{Log: r.log, Delivery: r.delivery}
	w.RegisterWorkflowWithOptions(sweep.Workflow, workflow.RegisterOptions{Name: sweep.WorkflowName})
	w.RegisterActivityWithOptions(acts.Expire, activity.RegisterOptions{Name: sweep.ActivityExpire})
	return w
}

// EnsureSweepSchedule starts the cron workflow unless it is already running.
func (r *Runner) EnsureSweepSchedule(ctx context.Context) error {
	if r.cfg.SweepCron == "" {
		r.log.Info("Retention sweep cron disabled")
		return nil
	}
	_, err := r.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                                       sweep.WorkflowID,
		TaskQueue:                                r.cfg.TaskQueue,
		CronSchedule:                             r.cfg.SweepCron,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, sweep.WorkflowName)
	var already *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &already) {
		r.log.Debug("Retention sweep cron already registered", "workflow_id", sweep.WorkflowID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("register retention sweep cron: %w", err)
	}
	r.log.Info("Registered retention sweep cron", "workflow_id", sweep.WorkflowID, "cron", r.cfg.SweepCron)
	return nil
}
