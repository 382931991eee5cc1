// Package engine is the composition root of the training engine. It owns
// one instance of every service, serializes all calls behind a single
// mutex, fans finished results out to career, badges and the daily
// challenge, and checkpoints state to the store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/training-engine/internal/badges"
	"github.com/terra-clan/training-engine/internal/career"
	"github.com/terra-clan/training-engine/internal/challenge"
	"github.com/terra-clan/training-engine/internal/events"
	"github.com/terra-clan/training-engine/internal/models"
	"github.com/terra-clan/training-engine/internal/session"
	"github.com/terra-clan/training-engine/internal/storage"
)

// persistTimeout bounds one checkpoint write
const persistTimeout = 5 * time.Second

// Catalog is the read-only task definition store
type Catalog interface {
	Get(id string) (*models.TaskDefinition, error)
	List() []*models.TaskDefinition
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides time.Now for every owned service
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation sets the zone calendar days are computed in
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithPlayerID namespaces persisted keys
func WithPlayerID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.playerID = id
		}
	}
}

// WithOrderGenerator replaces the seeded work order generator
func WithOrderGenerator(gen career.OrderGenerator) Option {
	return func(e *Engine) {
		e.orderGen = gen
	}
}

// Engine is safe for concurrent use
type Engine struct {
	mu sync.Mutex

	catalog  Catalog
	store    storage.Store
	bus      *events.Bus
	playerID string
	now      func() time.Time
	loc      *time.Location
	orderGen career.OrderGenerator

	session    *session.Orchestrator
	ledger     *badges.Ledger
	challenges *challenge.Generator
	career     *career.Loop

	// orderSession is the session id started for the active work order
	orderSession string
	challengeID  string
}

// New wires the services together. Call Load to restore persisted state.
func New(cat Catalog, store storage.Store, opts ...Option) *Engine {
	e := &Engine{
		catalog:  cat,
		store:    store,
		bus:      events.NewBus(),
		playerID: "default",
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.session = session.New(session.WithPublisher(e.bus), session.WithClock(e.now))
	e.ledger = badges.NewLedger(cat.List(), badges.WithPublisher(e.bus), badges.WithClock(e.now))

	loopOpts := []career.Option{career.WithPublisher(e.bus), career.WithClock(e.now)}
	if e.orderGen != nil {
		loopOpts = append(loopOpts, career.WithOrderGenerator(e.orderGen))
	}
	e.career = career.NewLoop(cat, starter{e}, loopOpts...)

	// Completion bonuses flow straight into the career loop
	e.challenges = challenge.NewGenerator(e.career,
		challenge.WithPublisher(e.bus),
		challenge.WithClock(e.now),
		challenge.WithLocation(e.loc),
	)

	e.session.OnFinished(e.onFinished)
	e.session.OnHintUsed(func(string) {
		e.challenges.RecordHintUsed()
	})

	return e
}

// starter lets the career loop start sessions while the engine lock is held
type starter struct{ e *Engine }

func (s starter) StartSession(taskID string, mode models.Mode) (string, error) {
	id, err := s.e.startSession(taskID, mode)
	if err != nil {
		return "", err
	}
	s.e.orderSession = id
	return id, nil
}

// Subscribe registers an event handler. Handlers run with the engine lock
// held and must not call back into the engine.
func (e *Engine) Subscribe(h events.Handler) func() {
	return e.bus.Subscribe(h)
}

// Tasks lists the catalog
func (e *Engine) Tasks() []*models.TaskDefinition {
	return e.catalog.List()
}

// Task returns one definition
func (e *Engine) Task(id string) (*models.TaskDefinition, error) {
	return e.catalog.Get(id)
}

// StartSession starts a free-play session
func (e *Engine) StartSession(taskID string, mode models.Mode) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startSession(taskID, mode)
}

func (e *Engine) startSession(taskID string, mode models.Mode) (string, error) {
	def, err := e.catalog.Get(taskID)
	if err != nil {
		return "", err
	}
	return e.session.Start(def, mode)
}

// Status returns the session snapshot
func (e *Engine) Status() models.SessionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Status()
}

// LastResult returns the most recent finished result
func (e *Engine) LastResult() (models.TaskResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.LastResult()
}

// Identify reports a tapped violation
func (e *Engine) Identify(id string) (session.Reply, error) {
	return e.act(func(o *session.Orchestrator) (session.Reply, error) { return o.Identify(id) })
}

// CompleteStep reports a completed step
func (e *Engine) CompleteStep(id string) (session.Reply, error) {
	return e.act(func(o *session.Orchestrator) (session.Reply, error) { return o.CompleteStep(id) })
}

// Measure reports a meter reading
func (e *Engine) Measure(id string, value float64) (session.Reply, error) {
	return e.act(func(o *session.Orchestrator) (session.Reply, error) { return o.Measure(id, value) })
}

// SelectGauge reports the chosen wire gauge
func (e *Engine) SelectGauge(gauge string) (session.Reply, error) {
	return e.act(func(o *session.Orchestrator) (session.Reply, error) { return o.SelectGauge(gauge) })
}

// RecordConnection reports one terminated connection
func (e *Engine) RecordConnection(quality float64) (session.Reply, error) {
	return e.act(func(o *session.Orchestrator) (session.Reply, error) { return o.RecordConnection(quality) })
}

// AddBonus adds procedure bonus points
func (e *Engine) AddBonus(points float64) (session.Reply, error) {
	return e.act(func(o *session.Orchestrator) (session.Reply, error) { return o.AddBonus(points) })
}

// AnswerDiagnostic answers a troubleshooting question
func (e *Engine) AnswerDiagnostic(id, answer string) (session.Reply, error) {
	return e.act(func(o *session.Orchestrator) (session.Reply, error) { return o.AnswerDiagnostic(id, answer) })
}

// IdentifyFault names the suspected fault
func (e *Engine) IdentifyFault(id string) (session.Reply, error) {
	return e.act(func(o *session.Orchestrator) (session.Reply, error) { return o.IdentifyFault(id) })
}

// RepairFault repairs the identified fault
func (e *Engine) RepairFault() (session.Reply, error) {
	return e.act(func(o *session.Orchestrator) (session.Reply, error) { return o.RepairFault() })
}

func (e *Engine) act(call func(*session.Orchestrator) (session.Reply, error)) (session.Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return call(e.session)
}

// RequestHint hands out guidance for the active session
func (e *Engine) RequestHint() (models.Feedback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.RequestHint()
}

// Finish ends the active session
func (e *Engine) Finish() (models.TaskResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Finish()
}

// Abandon force-finishes the active session
func (e *Engine) Abandon() (models.TaskResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Abandon()
}

// onFinished runs on the orchestrator's finish path, lock already held
func (e *Engine) onFinished(res models.TaskResult) {
	xp := 0
	if order, ok := e.career.ActiveOrder(); ok && res.SessionID == e.orderSession && order.TaskID == res.TaskID {
		earned, err := e.career.CompleteWorkOrder(res)
		if err != nil {
			slog.Warn("failed to complete work order", "order_id", order.ID, "error", err)
		} else {
			xp = earned
		}
		e.orderSession = ""
	} else {
		e.career.RecordFreePlay(res)
	}

	if res.BadgeID != "" {
		e.ledger.Award(res.BadgeID, res.TaskID, res.Score)
	}
	if res.MasteryBadgeID != "" {
		e.ledger.Award(res.MasteryBadgeID, res.TaskID, res.Score)
	}
	if res.Passed {
		e.ledger.CheckZeroHintsBadge(res.TaskID, res.UsedHints)
	}

	e.challenges.TrackProgress(res, xp)
	e.persist()
}

// Badges lists held badges
func (e *Engine) Badges() []models.Badge {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.List()
}

// Challenge returns today's challenge and counters
func (e *Engine) Challenge() (models.DailyChallenge, challenge.Counters) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.challenges.TodaysChallenge(), e.challenges.Counters()
}

// Progress returns the career record and derived tier
func (e *Engine) Progress() (models.PlayerProgress, models.CareerTier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.career.Progress(), e.career.Tier()
}

// StartDay begins a new work day
func (e *Engine) StartDay() (models.DayState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.career.StartNewDay()
	if err != nil {
		return models.DayState{}, err
	}
	e.persist()
	return day, nil
}

// Day returns the current work day
func (e *Engine) Day() (models.DayState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.career.Day()
}

// AcceptOrder starts the order's test-mode session
func (e *Engine) AcceptOrder(orderID string) (models.WorkOrder, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.State().IsActive() {
		return models.WorkOrder{}, "", session.ErrSessionActive
	}
	return e.career.AcceptWorkOrder(orderID)
}

// DeclineOrder drops an order from today's queue
func (e *Engine) DeclineOrder(orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.career.DeclineWorkOrder(orderID); err != nil {
		return err
	}
	e.persist()
	return nil
}

// EndDay commits the day and checks day badges
func (e *Engine) EndDay() (models.DayState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.career.EndDay()
	if err != nil {
		return models.DayState{}, err
	}
	p := e.career.Progress()
	e.ledger.CheckDayBadges(p.DaysCompleted, p.CurrentDayStreak)
	e.persist()
	return day, nil
}

// Tick advances session time and rolls the daily challenge over at
// midnight. It returns the result of a session the tick timed out.
func (e *Engine) Tick(dt time.Duration) *models.TaskResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.session.Tick(dt)

	c := e.challenges.TodaysChallenge()
	if c.ID != e.challengeID {
		if e.challengeID != "" {
			slog.Info("calendar day rolled over", "challenge_id", c.ID)
			e.persist()
		}
		e.challengeID = c.ID
	}
	return res
}

// Ping checks the store
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Flush writes every checkpoint now
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.save(ctx)
}

// persist checkpoints and reports failures without stopping the engine
func (e *Engine) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := e.save(ctx); err != nil {
		slog.Warn("failed to persist state", "player_id", e.playerID, "error", err)
		e.bus.Publish(events.Event{
			Type:      events.PersistFailed,
			Timestamp: e.now(),
			Data:      map[string]any{"error": err.Error()},
		})
	}
}

func (e *Engine) save(ctx context.Context) error {
	var day *models.DayState
	if d, ok := e.career.Day(); ok {
		day = &d
	}

	var errs []error
	for key, v := range map[string]any{
		keyProgress:  e.career.Progress(),
		keyBadges:    e.ledger.List(),
		keyChallenge: e.challenges.Snapshot(),
		keyDay:       day,
	} {
		if err := storage.SaveJSON(ctx, e.store, e.key(key), v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load restores persisted state. Unreadable keys are skipped with a
// warning so a corrupt checkpoint never blocks startup.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach store: %w", err)
	}

	var progress models.PlayerProgress
	progressFound := e.load(ctx, keyProgress, &progress)
	var day *models.DayState
	e.load(ctx, keyDay, &day)

	// A day left on site cannot resume its session after a restart
	if day != nil && day.ActiveOrder != nil {
		slog.Warn("dropping interrupted work order", "order_id", day.ActiveOrder.ID)
		day.ActiveOrder = nil
		day.Phase = models.PhaseBetweenJobs
		if len(day.Orders) == 0 {
			day.Phase = models.PhaseEndOfDay
		}
	}
	if progressFound || day != nil {
		e.career.Restore(progress, day)
	}

	var held []models.Badge
	if e.load(ctx, keyBadges, &held) {
		e.ledger.Restore(held)
	}

	var state challenge.State
	if e.load(ctx, keyChallenge, &state) {
		e.challenges.Restore(state)
	}
	e.challengeID = e.challenges.TodaysChallenge().ID

	slog.Info("engine state loaded",
		"player_id", e.playerID,
		"total_xp", e.career.Progress().TotalXP,
		"badges", e.ledger.Len(),
		"tier", e.career.Tier(),
	)
	return nil
}

func (e *Engine) load(ctx context.Context, name string, v any) bool {
	found, err := storage.LoadJSON(ctx, e.store, e.key(name), v)
	if err != nil {
		slog.Warn("failed to load state, starting fresh", "key", name, "error", err)
		return false
	}
	return found
}

// Persisted keys, namespaced by player id
const (
	keyProgress  = "progress"
	keyBadges    = "badges"
	keyChallenge = "challenge"
	keyDay       = "day"
)

func (e *Engine) key(name string) string {
	return e.playerID + "/" + name
}
