package ticker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/training-engine/internal/models"
)

type fakeTarget struct {
	mu      sync.Mutex
	total   time.Duration
	ticks   int
	flushes int
	err     error
}

func (f *fakeTarget) Tick(dt time.Duration) *models.TaskResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
	f.total += dt
	if f.ticks == 2 {
		return &models.TaskResult{TaskID: "panel-inspection", Reason: models.FinishTimeUp}
	}
	return nil
}

func (f *fakeTarget) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return f.err
}

func (f *fakeTarget) snapshot() (int, int, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticks, f.flushes, f.total
}

func TestTickerAdvancesTarget(t *testing.T) {
	target := &fakeTarget{}
	tk := New(target, 5*time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	tk.Start(ctx)

	require.Eventually(t, func() bool {
		ticks, flushes, _ := target.snapshot()
		return ticks >= 3 && flushes >= 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}

	ticks, _, total := target.snapshot()
	assert.Greater(t, total, time.Duration(0))
	assert.GreaterOrEqual(t, total, time.Duration(ticks-1)*time.Millisecond)
}

func TestTickerSurvivesFlushErrors(t *testing.T) {
	target := &fakeTarget{err: errors.New("store down")}
	tk := New(target, 2*time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tk.Start(ctx)

	require.Eventually(t, func() bool {
		_, flushes, _ := target.snapshot()
		return flushes >= 2
	}, time.Second, time.Millisecond)
}

func TestNewDefaultsInterval(t *testing.T) {
	tk := New(&fakeTarget{}, 0, 0)
	assert.Equal(t, time.Second, tk.interval)
}
