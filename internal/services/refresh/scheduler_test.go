package refresh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) TryRunCycle(ctx context.Context) bool {
	r.calls.Add(1)
	return true
}

func TestScheduler_RunOnStartFiresImmediately(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour, true, common.NewSilentLogger())

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, time.Millisecond)
}

func TestScheduler_WaitsForFirstTick(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour, false, common.NewSilentLogger())

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(0), runner.calls.Load())
}

func TestScheduler_TicksUntilStopped(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, 10*time.Millisecond, false, common.NewSilentLogger())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	after := runner.calls.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, after, runner.calls.Load(), "no ticks after Stop")
}

func TestScheduler_StartTwiceIsNoop(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour, true, common.NewSilentLogger())

	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := NewScheduler(&countingRunner{}, time.Hour, false, common.NewSilentLogger())
	assert.NotPanics(t, s.Stop)
}

func TestScheduler_ContextCancelEndsLoop(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, 5*time.Millisecond, false, common.NewSilentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()
	s.Stop()

	after := runner.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runner.calls.Load())
}

// Ticks that land on a running cycle are dropped by the coordinator, not queued.
func TestScheduler_OverlappingTicksSkip(t *testing.T) {
	store := cache.NewStore()
	release := make(chan struct{})
	prices := &mockPrices{fetchFn: func(ctx context.Context, symbol string) (*models.PriceQuote, error) {
		<-release
		return &models.PriceQuote{Symbol: symbol, Price: 1}, nil
	}}
	c := newTestCoordinator(store, staticSource("X"), prices, ratiosOK())
	s := NewScheduler(c, 5*time.Millisecond, true, common.NewSilentLogger())

	s.Start(context.Background())
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), prices.calls.Load(), "ticks during a running cycle start nothing")
	close(release)
	s.Stop()

	assert.False(t, store.RefreshLocked())
}
