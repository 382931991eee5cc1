package career

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/training-engine/internal/models"
)

type taskList []*models.TaskDefinition

func (t taskList) List() []*models.TaskDefinition { return t }

type starterStub struct {
	started []string
	err     error
}

func (s *starterStub) StartSession(taskID string, mode models.Mode) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.started = append(s.started, taskID+":"+string(mode))
	return "session-" + taskID, nil
}

func catalog() taskList {
	return taskList{
		{ID: "panel-inspection", Type: models.TaskViolation, Difficulty: 1, XPReward: 100},
		{ID: "outlet-wiring", Type: models.TaskWiring, Difficulty: 1, XPReward: 120},
		{ID: "gfci-install", Type: models.TaskProcedure, Difficulty: 2, XPReward: 150},
		{ID: "circuit-troubleshooting", Type: models.TaskTroubleshooting, Difficulty: 3, XPReward: 250},
	}
}

// fixedOrders returns three orders, each at a 1.2 multiplier
func fixedOrders(day int, _ models.CareerTier, _ []*models.TaskDefinition) []models.WorkOrder {
	return []models.WorkOrder{
		{ID: "o1", TaskID: "panel-inspection", XPReward: 105, BonusMultiplier: 1.2, Priority: models.PriorityNormal},
		{ID: "o2", TaskID: "outlet-wiring", XPReward: 125, BonusMultiplier: 1.2, Priority: models.PriorityNormal},
		{ID: "o3", TaskID: "panel-inspection", XPReward: 100, BonusMultiplier: 1.2, Priority: models.PriorityNormal},
	}
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, models.TierApprentice, TierFor(0))
	assert.Equal(t, models.TierApprentice, TierFor(1499))
	assert.Equal(t, models.TierJourneyman, TierFor(1500))
	assert.Equal(t, models.TierMaster, TierFor(4000))

	assert.Equal(t, 3, OrdersPerDay(models.TierApprentice))
	assert.Equal(t, 4, OrdersPerDay(models.TierJourneyman))
	assert.Equal(t, 5, OrdersPerDay(models.TierMaster))
}

func TestGenerateOrdersCountByTier(t *testing.T) {
	defs := catalog()
	for tier, want := range map[models.CareerTier]int{
		models.TierApprentice: 3,
		models.TierJourneyman: 4,
		models.TierMaster:     5,
	} {
		orders := GenerateOrders(7, tier, defs)
		assert.Len(t, orders, want, tier)
		for _, o := range orders {
			assert.NotEmpty(t, o.ID)
			assert.Contains(t, []float64{1.5, 1.2, 1.0}, o.BonusMultiplier)
		}
	}
}

func TestGenerateOrdersRespectsDifficulty(t *testing.T) {
	for day := 1; day < 30; day++ {
		for _, o := range GenerateOrders(day, models.TierApprentice, catalog()) {
			assert.Contains(t, []string{"panel-inspection", "outlet-wiring"}, o.TaskID)
		}
	}
	hard := taskList{{ID: "only-hard", Difficulty: 3, XPReward: 10}}
	orders := GenerateOrders(1, models.TierApprentice, hard)
	require.Len(t, orders, 3)
	assert.Equal(t, "only-hard", orders[0].TaskID)
	assert.Empty(t, GenerateOrders(1, models.TierApprentice, nil))
}

func TestGenerateOrdersIsDeterministic(t *testing.T) {
	a := GenerateOrders(12, models.TierJourneyman, catalog())
	b := GenerateOrders(12, models.TierJourneyman, catalog())
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, GenerateOrders(13, models.TierJourneyman, catalog()))
}

// The day-1 queue is pinned so a change of generator shows up as a failure
func TestGenerateOrdersPinnedSequence(t *testing.T) {
	orders := GenerateOrders(1, models.TierApprentice, catalog())
	require.Len(t, orders, 3)

	type summary struct {
		TaskID   string
		Priority models.Priority
		XP       int
		Customer string
		Address  string
		Site     string
	}
	got := make([]summary, 0, len(orders))
	for _, o := range orders {
		got = append(got, summary{o.TaskID, o.Priority, o.XPReward, o.Customer, o.Address, o.SiteType})
	}
	assert.Equal(t, []summary{
		{"outlet-wiring", models.PriorityUrgent, 150, "Greenleaf Community Center", "9435 Maple Dr", "commercial"},
		{"outlet-wiring", models.PriorityNormal, 160, "Greenleaf Community Center", "1537 Harbor Rd", "industrial"},
		{"panel-inspection", models.PriorityNormal, 120, "Dunmore Bakery", "1641 Industrial Pkwy", "industrial"},
	}, got)
}

func TestDayScenarioTwoCompletedOneDeclined(t *testing.T) {
	starter := &starterStub{}
	l := NewLoop(catalog(), starter, WithOrderGenerator(fixedOrders))

	day, err := l.StartNewDay()
	require.NoError(t, err)
	assert.Equal(t, models.PhaseMorningBriefing, day.Phase)
	require.Len(t, day.Orders, 3)

	_, sid, err := l.AcceptWorkOrder("o1")
	require.NoError(t, err)
	assert.Equal(t, "session-panel-inspection", sid)
	assert.Equal(t, []string{"panel-inspection:test"}, starter.started)

	xp1, err := l.CompleteWorkOrder(models.TaskResult{TaskID: "panel-inspection", Mode: models.ModeTest, Score: 90, Passed: true, TaskType: models.TaskViolation, Elapsed: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, int(math.Round(105*1.2)), xp1)
	d, _ := l.Day()
	assert.Equal(t, models.PhaseBetweenJobs, d.Phase)

	require.NoError(t, l.DeclineWorkOrder("o3"))

	_, _, err = l.AcceptWorkOrder("o2")
	require.NoError(t, err)
	xp2, err := l.CompleteWorkOrder(models.TaskResult{TaskID: "outlet-wiring", Mode: models.ModeTest, Score: 40, TaskType: models.TaskWiring, Elapsed: 3 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, int(math.Round(125*0.5)), xp2)

	d, _ = l.Day()
	assert.Equal(t, models.PhaseEndOfDay, d.Phase)
	assert.Equal(t, 2, d.Stats.JobsCompleted)
	assert.Equal(t, 1, d.Stats.JobsPassed)
	assert.Equal(t, 126+63, d.Stats.XPEarned)
	assert.Equal(t, 90, d.Stats.BestScore)
	assert.Equal(t, time.Minute, d.Stats.FastestTime)
	assert.Equal(t, []models.TaskType{models.TaskViolation, models.TaskWiring}, d.Stats.TaskTypes)

	ended, err := l.EndDay()
	require.NoError(t, err)
	assert.True(t, ended.Ended)
	p := l.Progress()
	assert.Equal(t, 189, p.TotalXP)
	assert.Equal(t, 1, p.DaysCompleted)
	assert.Equal(t, 1, p.CurrentDayStreak)
	assert.Equal(t, 90, p.BestScore("panel-inspection", models.ModeTest))
}

func TestAbandonedOrderCountsAsFailed(t *testing.T) {
	l := NewLoop(catalog(), &starterStub{}, WithOrderGenerator(fixedOrders))
	_, err := l.StartNewDay()
	require.NoError(t, err)
	_, _, err = l.AcceptWorkOrder("o1")
	require.NoError(t, err)

	xp, err := l.CompleteWorkOrder(models.TaskResult{
		TaskID: "panel-inspection", Mode: models.ModeTest, Score: 85, Passed: true, Reason: models.FinishAbandoned,
	})
	require.NoError(t, err)
	assert.Equal(t, int(math.Round(105*0.5)), xp)

	d, _ := l.Day()
	assert.Equal(t, 1, d.Stats.JobsCompleted)
	assert.Zero(t, d.Stats.JobsPassed)
}

func TestAcceptRules(t *testing.T) {
	starter := &starterStub{}
	l := NewLoop(catalog(), starter, WithOrderGenerator(fixedOrders))

	_, _, err := l.AcceptWorkOrder("o1")
	assert.ErrorIs(t, err, ErrNoDay)

	_, err = l.StartNewDay()
	require.NoError(t, err)
	_, _, err = l.AcceptWorkOrder("missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, _, err = l.AcceptWorkOrder("o1")
	require.NoError(t, err)
	_, _, err = l.AcceptWorkOrder("o2")
	assert.ErrorIs(t, err, ErrJobInProgress)
	_, err = l.EndDay()
	assert.ErrorIs(t, err, ErrJobInProgress)
	_, err = l.StartNewDay()
	assert.ErrorIs(t, err, ErrDayInProgress)
}

func TestAcceptFailureLeavesStateUntouched(t *testing.T) {
	starter := &starterStub{err: errors.New("task not found")}
	l := NewLoop(catalog(), starter, WithOrderGenerator(fixedOrders))
	_, err := l.StartNewDay()
	require.NoError(t, err)

	_, _, err = l.AcceptWorkOrder("o1")
	assert.Error(t, err)
	d, _ := l.Day()
	assert.Equal(t, models.PhaseMorningBriefing, d.Phase)
	assert.Nil(t, d.ActiveOrder)
	assert.Len(t, d.Orders, 3)
}

func TestCompleteRequiresMatchingOrder(t *testing.T) {
	l := NewLoop(catalog(), &starterStub{}, WithOrderGenerator(fixedOrders))
	_, err := l.CompleteWorkOrder(models.TaskResult{TaskID: "panel-inspection"})
	assert.ErrorIs(t, err, ErrNoDay)

	_, err = l.StartNewDay()
	require.NoError(t, err)
	_, err = l.CompleteWorkOrder(models.TaskResult{TaskID: "panel-inspection"})
	assert.ErrorIs(t, err, ErrOrderMismatch)

	_, _, err = l.AcceptWorkOrder("o1")
	require.NoError(t, err)
	_, err = l.CompleteWorkOrder(models.TaskResult{TaskID: "outlet-wiring"})
	assert.ErrorIs(t, err, ErrOrderMismatch)
}

func TestStreakResetsOnIdleDay(t *testing.T) {
	l := NewLoop(catalog(), &starterStub{}, WithOrderGenerator(fixedOrders))

	for i := 0; i < 2; i++ {
		_, err := l.StartNewDay()
		require.NoError(t, err)
		_, _, err = l.AcceptWorkOrder("o1")
		require.NoError(t, err)
		_, err = l.CompleteWorkOrder(models.TaskResult{TaskID: "panel-inspection", Passed: true, Score: 85})
		require.NoError(t, err)
		_, err = l.EndDay()
		require.NoError(t, err)
	}
	assert.Equal(t, 2, l.Progress().CurrentDayStreak)

	_, err := l.StartNewDay()
	require.NoError(t, err)
	_, err = l.EndDay()
	require.NoError(t, err)
	assert.Equal(t, 0, l.Progress().CurrentDayStreak)
	assert.Equal(t, 3, l.Progress().DaysCompleted)

	_, err = l.EndDay()
	assert.ErrorIs(t, err, ErrDayOver)
}

func TestTierPromotionChangesOrderCount(t *testing.T) {
	l := NewLoop(catalog(), &starterStub{})
	l.Restore(models.PlayerProgress{TotalXP: 1490}, nil)

	day, err := l.StartNewDay()
	require.NoError(t, err)
	assert.Len(t, day.Orders, 3)

	l.GrantBonusXP(20, "2026-001-daily-xp-300-60")
	_, err = l.EndDay()
	require.NoError(t, err)
	assert.Equal(t, models.TierJourneyman, l.Tier())
	progress := l.Progress()
	assert.True(t, progress.HasCompletedChallenge("2026-001-daily-xp-300-60"))

	day, err = l.StartNewDay()
	require.NoError(t, err)
	assert.Len(t, day.Orders, 4)
}

func TestBonusXPOutsideDayGoesToTotal(t *testing.T) {
	l := NewLoop(catalog(), &starterStub{})
	l.GrantBonusXP(70, "c1")
	l.GrantBonusXP(0, "c2")
	assert.Equal(t, 70, l.Progress().TotalXP)
	assert.Equal(t, []string{"c1"}, l.Progress().CompletedChallenges)
}

func TestFreePlayKeepsBestScore(t *testing.T) {
	l := NewLoop(catalog(), &starterStub{})
	l.RecordFreePlay(models.TaskResult{TaskID: "gfci-install", Mode: models.ModePractice, Score: 70})
	l.RecordFreePlay(models.TaskResult{TaskID: "gfci-install", Mode: models.ModePractice, Score: 60})
	progress := l.Progress()
	assert.Equal(t, 70, progress.BestScore("gfci-install", models.ModePractice))
	assert.Zero(t, l.Progress().TotalXP)
}

func TestDecliningLastOrderEndsQueue(t *testing.T) {
	l := NewLoop(catalog(), &starterStub{}, WithOrderGenerator(fixedOrders))
	_, err := l.StartNewDay()
	require.NoError(t, err)
	for _, id := range []string{"o1", "o2", "o3"} {
		require.NoError(t, l.DeclineWorkOrder(id))
	}
	d, _ := l.Day()
	assert.Equal(t, models.PhaseEndOfDay, d.Phase)
	assert.ErrorIs(t, l.DeclineWorkOrder("o1"), ErrDayOver)
}
