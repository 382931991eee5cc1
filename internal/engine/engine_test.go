package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/training-engine/internal/badges"
	"github.com/terra-clan/training-engine/internal/career"
	"github.com/terra-clan/training-engine/internal/challenge"
	"github.com/terra-clan/training-engine/internal/catalog"
	"github.com/terra-clan/training-engine/internal/events"
	"github.com/terra-clan/training-engine/internal/models"
	"github.com/terra-clan/training-engine/internal/session"
	"github.com/terra-clan/training-engine/internal/storage"
	"github.com/terra-clan/training-engine/tasks"
)

var panelViolations = []string{"working-clearance", "double-tap", "missing-knockout", "unlabeled-circuits"}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// Jan 3 2026 is a daily-xp challenge day
func newClock() *clock {
	return &clock{t: time.Date(2026, time.January, 3, 9, 0, 0, 0, time.UTC)}
}

func oneOrder(_ int, _ models.CareerTier, _ []*models.TaskDefinition) []models.WorkOrder {
	return []models.WorkOrder{
		{ID: "o1", TaskID: "panel-inspection", XPReward: 100, BonusMultiplier: 1.2, Priority: models.PriorityNormal},
	}
}

func loadCatalog(t *testing.T) *catalog.Loader {
	t.Helper()
	l := catalog.NewLoader()
	require.NoError(t, l.LoadFS(tasks.FS))
	return l
}

func newEngine(t *testing.T, store storage.Store, c *clock, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(c.now), WithLocation(time.UTC), WithPlayerID("p1"), WithOrderGenerator(oneOrder)}, opts...)
	e := New(loadCatalog(t), store, opts...)
	require.NoError(t, e.Load(context.Background()))
	return e
}

func identifyAll(t *testing.T, e *Engine) *models.TaskResult {
	t.Helper()
	var res *models.TaskResult
	for _, id := range panelViolations {
		reply, err := e.Identify(id)
		require.NoError(t, err)
		res = reply.Result
	}
	require.NotNil(t, res)
	return res
}

func TestFreePlayPerfectRunAwardsBadges(t *testing.T) {
	e := newEngine(t, storage.NewMemoryStore(), newClock())

	_, err := e.StartSession("panel-inspection", models.ModeTest)
	require.NoError(t, err)
	res := identifyAll(t, e)

	assert.Equal(t, 100, res.Score)
	assert.True(t, res.Passed)
	assert.Equal(t, models.FinishCompleted, res.Reason)

	held := map[string]bool{}
	for _, b := range e.Badges() {
		held[b.ID] = true
	}
	assert.True(t, held["panel-inspector"])
	assert.True(t, held["panel-inspector-master"])
	assert.True(t, held[badges.Perfectionist])
	assert.True(t, held[badges.NoHints])

	p, tier := e.Progress()
	assert.Equal(t, 100, p.BestScore("panel-inspection", models.ModeTest))
	assert.Zero(t, p.TotalXP)
	assert.Equal(t, models.TierApprentice, tier)

	_, counters := e.Challenge()
	assert.Zero(t, counters.XPEarned)
	assert.Equal(t, 1, counters.HintFree)
}

func TestStartUnknownTaskFailsFast(t *testing.T) {
	e := newEngine(t, storage.NewMemoryStore(), newClock())
	_, err := e.StartSession("no-such-task", models.ModePractice)
	assert.ErrorIs(t, err, catalog.ErrTaskNotFound)
	assert.Equal(t, models.SessionIdle, e.Status().State)
}

func TestWorkOrderDayFlow(t *testing.T) {
	e := newEngine(t, storage.NewMemoryStore(), newClock())

	day, err := e.StartDay()
	require.NoError(t, err)
	require.Len(t, day.Orders, 1)

	order, sid, err := e.AcceptOrder("o1")
	require.NoError(t, err)
	assert.Equal(t, "panel-inspection", order.TaskID)
	assert.Equal(t, sid, e.Status().SessionID)
	assert.Equal(t, models.ModeTest, e.Status().Mode)

	identifyAll(t, e)

	d, ok := e.Day()
	require.True(t, ok)
	assert.Equal(t, models.PhaseEndOfDay, d.Phase)
	assert.Equal(t, 120, d.Stats.XPEarned)

	_, counters := e.Challenge()
	assert.Equal(t, 120, counters.XPEarned)

	_, err = e.EndDay()
	require.NoError(t, err)
	p, _ := e.Progress()
	assert.Equal(t, 120, p.TotalXP)
	assert.Equal(t, 1, p.DaysCompleted)

	held := map[string]bool{}
	for _, b := range e.Badges() {
		held[b.ID] = true
	}
	assert.True(t, held[badges.FirstDay])
}

func TestAcceptOrderWhileSessionActive(t *testing.T) {
	e := newEngine(t, storage.NewMemoryStore(), newClock())
	_, err := e.StartDay()
	require.NoError(t, err)
	_, err = e.StartSession("lockout-tagout", models.ModePractice)
	require.NoError(t, err)

	_, _, err = e.AcceptOrder("o1")
	assert.ErrorIs(t, err, session.ErrSessionActive)

	d, _ := e.Day()
	assert.Equal(t, models.PhaseMorningBriefing, d.Phase)
}

func TestTickTimesOutWorkOrder(t *testing.T) {
	e := newEngine(t, storage.NewMemoryStore(), newClock())
	_, err := e.StartDay()
	require.NoError(t, err)
	_, _, err = e.AcceptOrder("o1")
	require.NoError(t, err)

	assert.Nil(t, e.Tick(time.Minute))
	res := e.Tick(5 * time.Minute)
	require.NotNil(t, res)
	assert.Equal(t, models.FinishTimeUp, res.Reason)
	assert.False(t, res.Passed)

	d, _ := e.Day()
	assert.Equal(t, 50, d.Stats.XPEarned)
	assert.Equal(t, 0, d.Stats.JobsPassed)
}

func TestAbandonedOrderPaysHalf(t *testing.T) {
	e := newEngine(t, storage.NewMemoryStore(), newClock())
	_, err := e.StartDay()
	require.NoError(t, err)
	_, _, err = e.AcceptOrder("o1")
	require.NoError(t, err)

	for _, id := range panelViolations[:3] {
		_, err := e.Identify(id)
		require.NoError(t, err)
	}
	res, err := e.Abandon()
	require.NoError(t, err)
	assert.Equal(t, 85, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, models.FinishAbandoned, res.Reason)

	d, _ := e.Day()
	assert.Equal(t, 50, d.Stats.XPEarned)
	assert.Zero(t, d.Stats.JobsPassed)

	held := map[string]bool{}
	for _, b := range e.Badges() {
		held[b.ID] = true
	}
	assert.False(t, held["panel-inspector"])
	assert.False(t, held["panel-inspector-master"])
	assert.False(t, held[badges.NoHints])
}

func TestFreePlayDoesNotConsumeOrder(t *testing.T) {
	e := newEngine(t, storage.NewMemoryStore(), newClock())
	_, err := e.StartDay()
	require.NoError(t, err)

	_, err = e.StartSession("panel-inspection", models.ModePractice)
	require.NoError(t, err)
	identifyAll(t, e)

	d, _ := e.Day()
	assert.Len(t, d.Orders, 1)
	assert.Zero(t, d.Stats.JobsCompleted)
}

func TestHintResetsHintFreeCounter(t *testing.T) {
	c := newClock()
	c.t = time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC) // hint-free day
	e := newEngine(t, storage.NewMemoryStore(), c)

	_, err := e.StartSession("panel-inspection", models.ModePractice)
	require.NoError(t, err)
	identifyAll(t, e)
	ch, _ := e.Challenge()
	require.Equal(t, models.ChallengeHintFree, ch.Type)
	assert.Equal(t, 1, ch.Progress)

	_, err = e.StartSession("lockout-tagout", models.ModePractice)
	require.NoError(t, err)
	_, err = e.RequestHint()
	require.NoError(t, err)

	ch, counters := e.Challenge()
	assert.Zero(t, ch.Progress)
	assert.Zero(t, counters.HintFree)
}

func TestStateSurvivesRestart(t *testing.T) {
	store := storage.NewMemoryStore()
	c := newClock()

	e := newEngine(t, store, c)
	_, err := e.StartDay()
	require.NoError(t, err)
	_, _, err = e.AcceptOrder("o1")
	require.NoError(t, err)
	identifyAll(t, e)
	_, err = e.EndDay()
	require.NoError(t, err)
	require.NoError(t, e.Flush(context.Background()))

	restored := newEngine(t, store, c)
	p, _ := restored.Progress()
	assert.Equal(t, 120, p.TotalXP)
	assert.Equal(t, 100, p.BestScore("panel-inspection", models.ModeTest))
	assert.Equal(t, len(e.Badges()), len(restored.Badges()))

	_, counters := restored.Challenge()
	assert.Equal(t, 120, counters.XPEarned)

	d, ok := restored.Day()
	require.True(t, ok)
	assert.True(t, d.Ended)

	other := New(loadCatalog(t), store, WithClock(c.now), WithPlayerID("p2"))
	require.NoError(t, other.Load(context.Background()))
	p2, _ := other.Progress()
	assert.Zero(t, p2.TotalXP)
}

func TestInterruptedOrderIsDroppedOnLoad(t *testing.T) {
	store := storage.NewMemoryStore()
	c := newClock()

	e := newEngine(t, store, c)
	_, err := e.StartDay()
	require.NoError(t, err)
	_, _, err = e.AcceptOrder("o1")
	require.NoError(t, err)
	require.NoError(t, e.Flush(context.Background()))

	restored := newEngine(t, store, c)
	d, ok := restored.Day()
	require.True(t, ok)
	assert.Nil(t, d.ActiveOrder)
	assert.Equal(t, models.PhaseBetweenJobs, d.Phase)

	_, _, err = restored.AcceptOrder("o1")
	assert.NoError(t, err)
}

func TestCorruptCheckpointStartsFresh(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "p1/progress", []byte("{broken")))

	e := newEngine(t, store, newClock())
	p, _ := e.Progress()
	assert.Zero(t, p.TotalXP)
}

func TestUnknownChallengeTypeStartsFresh(t *testing.T) {
	store := storage.NewMemoryStore()
	c := newClock()
	today := challenge.Generate(c.t)

	saved := map[string]any{
		"challenge": map[string]any{
			"id":             today.ID,
			"type":           "night-shift",
			"target":         1,
			"progress":       1,
			"complete":       true,
			"date_generated": today.DateGenerated,
		},
		"counters": map[string]any{"xp_earned": 999},
	}
	require.NoError(t, storage.SaveJSON(context.Background(), store, "p1/challenge", saved))

	e := newEngine(t, store, c)
	ch, counters := e.Challenge()
	assert.Equal(t, today.Type, ch.Type)
	assert.False(t, ch.Complete)
	assert.Zero(t, counters.XPEarned)
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) Save(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestPersistFailureKeepsRunning(t *testing.T) {
	e := newEngine(t, failingStore{storage.NewMemoryStore()}, newClock())

	var mu sync.Mutex
	var failures int
	e.Subscribe(func(ev events.Event) {
		if ev.Type == events.PersistFailed {
			mu.Lock()
			failures++
			mu.Unlock()
		}
	})

	_, err := e.StartSession("panel-inspection", models.ModeTest)
	require.NoError(t, err)
	res := identifyAll(t, e)
	assert.True(t, res.Passed)

	mu.Lock()
	assert.Equal(t, 1, failures)
	mu.Unlock()
	assert.Error(t, e.Flush(context.Background()))
}

func TestTickRollsChallengeOver(t *testing.T) {
	c := newClock()
	e := newEngine(t, storage.NewMemoryStore(), c)
	first, _ := e.Challenge()

	c.t = c.t.Add(24 * time.Hour)
	e.Tick(time.Second)
	next, counters := e.Challenge()
	assert.NotEqual(t, first.ID, next.ID)
	assert.Zero(t, counters.XPEarned)
}

func TestConcurrentCallsAreSerialized(t *testing.T) {
	e := newEngine(t, storage.NewMemoryStore(), newClock())
	_, err := e.StartSession("panel-inspection", models.ModeLearn)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.Status()
				e.Tick(time.Millisecond)
				_, _ = e.Identify("double-tap")
			}
		}()
	}
	wg.Wait()

	s := e.Status()
	assert.Equal(t, models.SessionActive, s.State)
	assert.Equal(t, 25.0, s.Completion)
}

var _ career.SessionStarter = starter{}
