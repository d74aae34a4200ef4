package sweep

import "time"

const (
	WorkflowName   = "retention_sweep"
	ActivityExpire = "retention_sweep_expire"
	// fixed workflow id so only one cron schedule exists per namespace
	WorkflowID = "retention-sweep"
)

type Result struct {
	Expired int64     `json:"expired"`
	At      time.Time `json:"at"`
}
