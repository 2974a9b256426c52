package tasks

import (
	"context"
	"time"

	"github.com/slipstream/mediabridge/internal/scheduler"
)

const CachePruneTaskID = "cache-prune"

// CachePruner drops resolution cache entries that can no longer be served.
type CachePruner interface {
	PruneCache() int
}

// RegisterCachePruneTask registers the resolution cache sweep with the scheduler.
func RegisterCachePruneTask(sched *scheduler.Scheduler, pruner CachePruner, cron string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          CachePruneTaskID,
		Name:        "Cache Prune",
		Description: "Removes resolution cache entries past their TTL and stale window",
		Cron:        cron,
		Timeout:     time.Minute,
		Func: func(ctx context.Context) error {
			pruner.PruneCache()
			return ctx.Err()
		},
	})
}
