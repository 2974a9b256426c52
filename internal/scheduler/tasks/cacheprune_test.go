package tasks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/mediabridge/internal/scheduler"
)

type countingPruner struct {
	calls atomic.Int32
}

func (p *countingPruner) PruneCache() int {
	p.calls.Add(1)
	return 3
}

func TestRegisterCachePruneTask(t *testing.T) {
	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = sched.Stop() }()

	pruner := &countingPruner{}
	require.NoError(t, RegisterCachePruneTask(sched, pruner, "*/5 * * * *"))

	info, err := sched.GetTask(CachePruneTaskID)
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", info.Cron)

	require.NoError(t, sched.RunNow(CachePruneTaskID))
	require.Eventually(t, func() bool { return pruner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}
