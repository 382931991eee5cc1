// Package ticker drives the engine clock from wall time.
package ticker

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/training-engine/internal/models"
)

// Target receives elapsed time
type Target interface {
	Tick(dt time.Duration) *models.TaskResult
	Flush(ctx context.Context) error
}

// Ticker periodically advances the engine by the real time elapsed since
// the previous tick, and checkpoints state every flushEvery.
type Ticker struct {
	target     Target
	interval   time.Duration
	flushEvery time.Duration
	now        func() time.Time
	done       chan struct{}
}

// New creates a ticker. flushEvery <= 0 disables periodic checkpoints.
func New(target Target, interval, flushEvery time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}

	return &Ticker{
		target:     target,
		interval:   interval,
		flushEvery: flushEvery,
		now:        time.Now,
		done:       make(chan struct{}),
	}
}

// Start begins ticking in a goroutine until ctx is cancelled
func (t *Ticker) Start(ctx context.Context) {
	go t.run(ctx)
}

// Done is closed once the loop has exited
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}

func (t *Ticker) run(ctx context.Context) {
	defer close(t.done)
	slog.Info("ticker started", "interval", t.interval, "flush_every", t.flushEvery)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	last := t.now()
	lastFlush := last

	for {
		select {
		case <-ctx.Done():
			slog.Info("ticker stopped")
			return
		case <-ticker.C:
			now := t.now()
			t.tick(now.Sub(last))
			last = now

			if t.flushEvery > 0 && now.Sub(lastFlush) >= t.flushEvery {
				t.flush(ctx)
				lastFlush = now
			}
		}
	}
}

func (t *Ticker) tick(dt time.Duration) {
	res := t.target.Tick(dt)
	if res == nil {
		return
	}
	slog.Info("session timed out",
		"session_id", res.SessionID,
		"task_id", res.TaskID,
		"score", res.Score,
	)
}

func (t *Ticker) flush(ctx context.Context) {
	if err := t.target.Flush(ctx); err != nil {
		slog.Warn("periodic checkpoint failed", "error", err)
		return
	}
	slog.Debug("periodic checkpoint written")
}
