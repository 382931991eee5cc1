package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/training-engine/internal/models"
)

type granterStub struct {
	grants  []int
	sources []string
}

func (g *granterStub) GrantBonusXP(amount int, source string) {
	g.grants = append(g.grants, amount)
	g.sources = append(g.sources, source)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// In 2026, Jan 1..5 map to high-scores, speed-run, daily-xp, distinct-types, hint-free
func day(d int) time.Time {
	return time.Date(2026, time.January, d, 10, 0, 0, 0, time.UTC)
}

func newGen(t *testing.T, at time.Time) (*Generator, *granterStub, *clock) {
	t.Helper()
	g := &granterStub{}
	c := &clock{t: at}
	return NewGenerator(g, WithClock(c.now), WithLocation(time.UTC)), g, c
}

func TestSplitMix64KnownVector(t *testing.T) {
	rng := NewSplitMix64(0)
	assert.Equal(t, uint64(0xE220A8397B1DCDAF), rng.Next())
}

func TestSplitMix64Range(t *testing.T) {
	rng := NewSplitMix64(42)
	for i := 0; i < 1000; i++ {
		v := rng.Range(2, 4)
		assert.GreaterOrEqual(t, v, 2)
		assert.LessOrEqual(t, v, 4)
	}
	assert.Equal(t, 7, rng.Range(7, 7))
}

func TestGenerateIsDeterministic(t *testing.T) {
	for d := 1; d <= 10; d++ {
		a := Generate(day(d))
		b := Generate(day(d).Add(3 * time.Hour))
		assert.Equal(t, a, b)
	}
}

func TestGenerateCoversYear(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 365; i++ {
		date := start.AddDate(0, 0, i)
		c := Generate(date)

		assert.Equal(t, models.ChallengeType(date.YearDay()%5), c.Type)
		assert.GreaterOrEqual(t, c.XPBonus, 50)
		assert.LessOrEqual(t, c.XPBonus, 100)
		assert.Zero(t, c.XPBonus%10)
		assert.Equal(t, date.Format(DateLayout), c.DateGenerated)

		switch c.Type {
		case models.ChallengeHintFree, models.ChallengeDistinctTypes:
			assert.True(t, c.Target >= 2 && c.Target <= 4, c.ID)
		case models.ChallengeHighScores:
			assert.True(t, c.Target >= 2 && c.Target <= 3, c.ID)
		case models.ChallengeSpeedRun:
			assert.Equal(t, 1, c.Target)
		case models.ChallengeDailyXP:
			assert.True(t, c.Target >= 300 && c.Target <= 600 && c.Target%50 == 0, c.ID)
		}
		assert.Contains(t, c.ID, c.Type.String())
	}
}

func TestTodaysChallengeIsCachedPerDate(t *testing.T) {
	gen, _, c := newGen(t, day(3))

	first := gen.TodaysChallenge()
	second := gen.TodaysChallenge()
	assert.Equal(t, first, second)
	assert.Equal(t, models.ChallengeDailyXP, first.Type)

	c.t = day(4)
	next := gen.TodaysChallenge()
	assert.NotEqual(t, first.ID, next.ID)
	assert.Equal(t, models.ChallengeDistinctTypes, next.Type)
}

func TestNewDateResetsCounters(t *testing.T) {
	gen, _, c := newGen(t, day(3))
	gen.TrackProgress(models.TaskResult{Passed: true, Score: 95, TaskType: models.TaskWiring}, 100)
	assert.Equal(t, 100, gen.Counters().XPEarned)

	c.t = day(4)
	assert.Equal(t, Counters{}, gen.Counters())
}

func TestDailyXPCompletesOnceAndGrants(t *testing.T) {
	gen, granter, _ := newGen(t, day(3))
	ch := gen.TodaysChallenge()

	completed := 0
	for i := 0; i < 20; i++ {
		if gen.TrackProgress(models.TaskResult{Score: 50, TaskType: models.TaskMeasurement}, 100) {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
	assert.Equal(t, []int{ch.XPBonus}, granter.grants)
	assert.Equal(t, []string{ch.ID}, granter.sources)

	now := gen.TodaysChallenge()
	assert.True(t, now.Complete)
	assert.Equal(t, now.Target, now.Progress)
}

func TestHighScoresRunResets(t *testing.T) {
	gen, granter, _ := newGen(t, day(1))
	ch := gen.TodaysChallenge()
	require.Equal(t, models.ChallengeHighScores, ch.Type)

	gen.TrackProgress(models.TaskResult{Score: 95, Passed: true}, 0)
	gen.TrackProgress(models.TaskResult{Score: 70}, 0)
	assert.Equal(t, 0, gen.TodaysChallenge().Progress)

	for i := 0; i < ch.Target; i++ {
		gen.TrackProgress(models.TaskResult{Score: 92, Passed: true}, 0)
	}
	assert.True(t, gen.TodaysChallenge().Complete)
	assert.Len(t, granter.grants, 1)
}

func TestSpeedRun(t *testing.T) {
	gen, _, _ := newGen(t, day(2))
	require.Equal(t, models.ChallengeSpeedRun, gen.TodaysChallenge().Type)

	assert.False(t, gen.TrackProgress(models.TaskResult{Passed: false, Elapsed: time.Minute}, 0))
	assert.False(t, gen.TrackProgress(models.TaskResult{Passed: true, Elapsed: 3 * time.Minute}, 0))
	assert.True(t, gen.TrackProgress(models.TaskResult{Passed: true, Elapsed: 90 * time.Second}, 0))
}

func TestDistinctTypes(t *testing.T) {
	gen, _, _ := newGen(t, day(4))
	ch := gen.TodaysChallenge()
	require.Equal(t, models.ChallengeDistinctTypes, ch.Type)

	gen.TrackProgress(models.TaskResult{Passed: true, TaskType: models.TaskWiring}, 0)
	gen.TrackProgress(models.TaskResult{Passed: true, TaskType: models.TaskWiring}, 0)
	gen.TrackProgress(models.TaskResult{Passed: false, TaskType: models.TaskMeasurement}, 0)
	assert.Equal(t, 1, gen.TodaysChallenge().Progress)

	types := []models.TaskType{models.TaskMeasurement, models.TaskProcedure, models.TaskViolation}
	for _, typ := range types[:ch.Target-1] {
		gen.TrackProgress(models.TaskResult{Passed: true, TaskType: typ}, 0)
	}
	assert.True(t, gen.TodaysChallenge().Complete)
}

func TestHintZeroesHintFreeCounter(t *testing.T) {
	gen, _, _ := newGen(t, day(5))
	ch := gen.TodaysChallenge()
	require.Equal(t, models.ChallengeHintFree, ch.Type)

	gen.TrackProgress(models.TaskResult{Passed: true}, 0)
	assert.Equal(t, 1, gen.TodaysChallenge().Progress)

	gen.RecordHintUsed()
	assert.Equal(t, 0, gen.TodaysChallenge().Progress)
	assert.Equal(t, 0, gen.Counters().HintFree)

	gen.TrackProgress(models.TaskResult{Passed: true, UsedHints: true}, 0)
	assert.Equal(t, 0, gen.TodaysChallenge().Progress)
}

func TestInactiveCountersStillAccumulate(t *testing.T) {
	gen, _, _ := newGen(t, day(5))
	gen.TrackProgress(models.TaskResult{Passed: true, Score: 95, Elapsed: time.Minute, TaskType: models.TaskProcedure}, 120)

	c := gen.Counters()
	assert.Equal(t, 1, c.HintFree)
	assert.Equal(t, 1, c.HighScoreStreak)
	assert.Equal(t, 1, c.SpeedRuns)
	assert.Equal(t, 120, c.XPEarned)
	assert.Equal(t, []models.TaskType{models.TaskProcedure}, c.TaskTypes)
}

func TestSnapshotRestoreKeepsSameDayProgress(t *testing.T) {
	gen, _, _ := newGen(t, day(3))
	gen.TrackProgress(models.TaskResult{}, 150)
	snap := gen.Snapshot()

	restored, granter, _ := newGen(t, day(3))
	restored.Restore(snap)
	assert.Equal(t, 150, restored.Counters().XPEarned)
	assert.Equal(t, gen.TodaysChallenge(), restored.TodaysChallenge())
	assert.Empty(t, granter.grants)

	stale, _, _ := newGen(t, day(4))
	stale.Restore(snap)
	assert.Zero(t, stale.Counters().XPEarned)
}
