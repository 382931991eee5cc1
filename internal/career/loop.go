// Package career drives the multi-day work loop: daily work orders sized by
// career tier, day phases, daily stats and cumulative XP.
package career

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/terra-clan/training-engine/internal/events"
	"github.com/terra-clan/training-engine/internal/models"
)

// Common errors
var (
	ErrNoDay         = errors.New("no work day started")
	ErrDayInProgress = errors.New("current day has not ended")
	ErrDayOver       = errors.New("work day is over")
	ErrJobInProgress = errors.New("a work order is in progress")
	ErrOrderNotFound = errors.New("work order not found")
	ErrOrderMismatch = errors.New("result does not match the active work order")
)

// FailedMultiplier scales the XP of a failed work order
const FailedMultiplier = 0.5

// SessionStarter starts the task session behind an accepted order
type SessionStarter interface {
	StartSession(taskID string, mode models.Mode) (string, error)
}

// TaskSource lists the known task definitions
type TaskSource interface {
	List() []*models.TaskDefinition
}

// OrderGenerator builds a day's work orders
type OrderGenerator func(dayNumber int, tier models.CareerTier, defs []*models.TaskDefinition) []models.WorkOrder

// Option configures a Loop
type Option func(*Loop)

// WithOrderGenerator replaces the default seeded generator
func WithOrderGenerator(gen OrderGenerator) Option {
	return func(l *Loop) {
		l.generate = gen
	}
}

// WithPublisher sets the event sink for day cues
func WithPublisher(p events.Publisher) Option {
	return func(l *Loop) {
		l.publisher = p
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.now = now
	}
}

// Loop owns PlayerProgress and the current day. Not safe for concurrent use.
type Loop struct {
	tasks     TaskSource
	starter   SessionStarter
	generate  OrderGenerator
	publisher events.Publisher
	now       func() time.Time

	progress models.PlayerProgress
	day      *models.DayState
}

// NewLoop creates a loop with empty progress
func NewLoop(tasks TaskSource, starter SessionStarter, opts ...Option) *Loop {
	l := &Loop{
		tasks:     tasks,
		starter:   starter,
		generate:  GenerateOrders,
		publisher: events.Nop{},
		now:       time.Now,
		progress:  models.PlayerProgress{BestScores: make(map[string]map[models.Mode]int)},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Progress returns a copy of the player's progress
func (l *Loop) Progress() models.PlayerProgress {
	p := l.progress
	p.BestScores = make(map[string]map[models.Mode]int, len(l.progress.BestScores))
	for task, modes := range l.progress.BestScores {
		inner := make(map[models.Mode]int, len(modes))
		for m, s := range modes {
			inner[m] = s
		}
		p.BestScores[task] = inner
	}
	p.CompletedChallenges = append([]string(nil), l.progress.CompletedChallenges...)
	return p
}

// Tier is recomputed from committed XP on every read
func (l *Loop) Tier() models.CareerTier {
	return TierFor(l.progress.TotalXP)
}

// Day returns a copy of the current day
func (l *Loop) Day() (models.DayState, bool) {
	if l.day == nil {
		return models.DayState{}, false
	}
	return copyDay(*l.day), true
}

// ActiveOrder returns the order currently on site
func (l *Loop) ActiveOrder() (models.WorkOrder, bool) {
	if l.day == nil || l.day.ActiveOrder == nil {
		return models.WorkOrder{}, false
	}
	return *l.day.ActiveOrder, true
}

// StartNewDay resets daily counters, generates the tier's orders and
// enters the morning briefing. The previous day must have ended.
func (l *Loop) StartNewDay() (models.DayState, error) {
	if l.day != nil && !l.day.Ended {
		return models.DayState{}, ErrDayInProgress
	}

	number := l.progress.DaysCompleted + 1
	tier := l.Tier()
	var defs []*models.TaskDefinition
	if l.tasks != nil {
		defs = l.tasks.List()
	}

	l.day = &models.DayState{
		Number:    number,
		Phase:     models.PhaseMorningBriefing,
		Orders:    l.generate(number, tier, defs),
		Stats:     models.DailyStats{},
		StartedAt: l.now(),
	}

	slog.Info("work day started", "day", number, "tier", tier, "orders", len(l.day.Orders))
	l.publish(events.DayStarted, map[string]any{"day": number, "tier": tier, "orders": len(l.day.Orders)})
	return copyDay(*l.day), nil
}

// AcceptWorkOrder moves on site and starts the order's session in test mode
func (l *Loop) AcceptWorkOrder(orderID string) (models.WorkOrder, string, error) {
	if err := l.canPickOrder(); err != nil {
		return models.WorkOrder{}, "", err
	}
	idx := l.orderIndex(orderID)
	if idx < 0 {
		return models.WorkOrder{}, "", fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	order := l.day.Orders[idx]

	sessionID, err := l.starter.StartSession(order.TaskID, models.ModeTest)
	if err != nil {
		return models.WorkOrder{}, "", fmt.Errorf("failed to start session for order: %w", err)
	}

	l.day.ActiveOrder = &order
	l.day.Phase = models.PhaseOnSite

	slog.Info("work order accepted", "order_id", order.ID, "task_id", order.TaskID, "priority", order.Priority)
	l.publish(events.OrderAccepted, map[string]any{"order_id": order.ID, "session_id": sessionID})
	return order, sessionID, nil
}

// DeclineWorkOrder drops an order from the queue without XP
func (l *Loop) DeclineWorkOrder(orderID string) error {
	if err := l.canPickOrder(); err != nil {
		return err
	}
	idx := l.orderIndex(orderID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	l.removeOrder(idx)
	l.advancePhase()
	slog.Info("work order declined", "order_id", orderID)
	return nil
}

func (l *Loop) canPickOrder() error {
	if l.day == nil {
		return ErrNoDay
	}
	if l.day.Ended || l.day.Phase == models.PhaseEndOfDay {
		return ErrDayOver
	}
	if l.day.Phase == models.PhaseOnSite {
		return ErrJobInProgress
	}
	return nil
}

// CompleteWorkOrder consumes the active order and returns the XP awarded:
// round(xpReward × multiplier) on a pass, round(xpReward × 0.5) otherwise
func (l *Loop) CompleteWorkOrder(res models.TaskResult) (int, error) {
	if l.day == nil {
		return 0, ErrNoDay
	}
	active := l.day.ActiveOrder
	if active == nil || active.TaskID != res.TaskID {
		return 0, ErrOrderMismatch
	}

	mult := FailedMultiplier
	if res.Passed && res.Reason != models.FinishAbandoned {
		mult = active.BonusMultiplier
	}
	xp := int(math.Round(float64(active.XPReward) * mult))

	if idx := l.orderIndex(active.ID); idx >= 0 {
		l.removeOrder(idx)
	}
	l.day.ActiveOrder = nil

	s := &l.day.Stats
	s.JobsCompleted++
	if res.Passed && res.Reason != models.FinishAbandoned {
		s.JobsPassed++
	}
	s.XPEarned += xp
	if res.Score > s.BestScore {
		s.BestScore = res.Score
	}
	if res.Passed && (s.FastestTime == 0 || res.Elapsed < s.FastestTime) {
		s.FastestTime = res.Elapsed
	}
	if !s.HasTaskType(res.TaskType) {
		s.TaskTypes = append(s.TaskTypes, res.TaskType)
	}
	l.progress.RecordScore(res.TaskID, res.Mode, res.Score)

	l.day.Phase = models.PhaseBetweenJobs
	l.advancePhase()

	slog.Info("work order completed",
		"order_id", active.ID,
		"task_id", res.TaskID,
		"score", res.Score,
		"passed", res.Passed,
		"xp", xp,
		"phase", l.day.Phase,
	)
	l.publish(events.OrderCompleted, map[string]any{
		"order_id": active.ID,
		"xp":       xp,
		"passed":   res.Passed,
		"phase":    l.day.Phase,
	})
	return xp, nil
}

// RecordFreePlay keeps best scores for sessions outside a work order
func (l *Loop) RecordFreePlay(res models.TaskResult) {
	l.progress.RecordScore(res.TaskID, res.Mode, res.Score)
}

// GrantBonusXP credits bonus XP: into today's stats while a day is running,
// otherwise straight into total XP
func (l *Loop) GrantBonusXP(amount int, source string) {
	if amount <= 0 {
		return
	}
	if l.day != nil && !l.day.Ended {
		l.day.Stats.BonusXP += amount
	} else {
		l.progress.TotalXP += amount
	}
	if source != "" && !l.progress.HasCompletedChallenge(source) {
		l.progress.CompletedChallenges = append(l.progress.CompletedChallenges, source)
	}
	slog.Info("bonus xp granted", "amount", amount, "source", source)
}

// EndDay commits the day's XP and extends or resets the day streak
func (l *Loop) EndDay() (models.DayState, error) {
	if l.day == nil {
		return models.DayState{}, ErrNoDay
	}
	if l.day.Ended {
		return models.DayState{}, ErrDayOver
	}
	if l.day.Phase == models.PhaseOnSite {
		return models.DayState{}, ErrJobInProgress
	}

	before := l.Tier()
	l.progress.TotalXP += l.day.Stats.XPEarned + l.day.Stats.BonusXP
	l.progress.DaysCompleted++
	if l.day.Stats.JobsCompleted > 0 {
		l.progress.CurrentDayStreak++
	} else {
		l.progress.CurrentDayStreak = 0
	}
	l.day.Phase = models.PhaseEndOfDay
	l.day.Ended = true

	after := l.Tier()
	slog.Info("work day ended",
		"day", l.day.Number,
		"xp", l.day.Stats.XPEarned,
		"bonus_xp", l.day.Stats.BonusXP,
		"total_xp", l.progress.TotalXP,
		"streak", l.progress.CurrentDayStreak,
		"tier", after,
	)
	l.publish(events.DayEnded, map[string]any{
		"day":       l.day.Number,
		"xp":        l.day.Stats.XPEarned + l.day.Stats.BonusXP,
		"total_xp":  l.progress.TotalXP,
		"tier":      after,
		"promoted":  after != before,
		"streak":    l.progress.CurrentDayStreak,
		"completed": l.progress.DaysCompleted,
	})
	return copyDay(*l.day), nil
}

// Restore loads persisted progress and day state
func (l *Loop) Restore(p models.PlayerProgress, day *models.DayState) {
	if p.BestScores == nil {
		p.BestScores = make(map[string]map[models.Mode]int)
	}
	l.progress = p
	if day != nil {
		d := copyDay(*day)
		l.day = &d
	} else {
		l.day = nil
	}
}

func (l *Loop) orderIndex(id string) int {
	for i, o := range l.day.Orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (l *Loop) removeOrder(idx int) {
	l.day.Orders = append(l.day.Orders[:idx:idx], l.day.Orders[idx+1:]...)
}

func (l *Loop) advancePhase() {
	if len(l.day.Orders) == 0 {
		l.day.Phase = models.PhaseEndOfDay
	}
}

func (l *Loop) publish(t events.Type, data map[string]any) {
	l.publisher.Publish(events.Event{Type: t, Timestamp: l.now(), Data: data})
}

func copyDay(d models.DayState) models.DayState {
	d.Orders = append([]models.WorkOrder(nil), d.Orders...)
	d.Stats.TaskTypes = append([]models.TaskType(nil), d.Stats.TaskTypes...)
	if d.ActiveOrder != nil {
		o := *d.ActiveOrder
		d.ActiveOrder = &o
	}
	return d
}
