// Package session owns the active task session: its tracker, the test-mode
// countdown and the Idle → Active → Finished → Idle lifecycle.
//
// An Orchestrator is not safe for concurrent use. The engine serializes
// every call.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/training-engine/internal/events"
	"github.com/terra-clan/training-engine/internal/models"
	"github.com/terra-clan/training-engine/internal/tracker"
)

// Common errors
var (
	ErrSessionActive     = errors.New("a session is already active")
	ErrNoActiveSession   = errors.New("no active session")
	ErrUnsupportedAction = errors.New("action not supported by this task type")
	ErrHintsUnavailable  = errors.New("hints are not available in this mode")
	ErrNoHint            = errors.New("nothing left to hint")
	ErrInvalidMode       = errors.New("invalid mode")
	ErrNilDefinition     = errors.New("task definition is required")
)

// Reply is the outcome of one trainee event. Result is set when the event
// finished the session.
type Reply struct {
	Outcome tracker.Outcome
	Result  *models.TaskResult
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPublisher sets the event sink for cues
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator runs one session at a time
type Orchestrator struct {
	state     models.SessionState
	def       *models.TaskDefinition
	mode      models.Mode
	tracker   tracker.Tracker
	sessionID string
	startedAt time.Time
	elapsed   time.Duration
	remaining time.Duration
	armed     bool
	usedHints bool

	last       *models.TaskResult
	onFinished []func(models.TaskResult)
	onHint     []func(taskID string)

	publisher events.Publisher
	now       func() time.Time
}

// New creates an idle orchestrator
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:     models.SessionIdle,
		publisher: events.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnFinished registers a listener for every finished session
func (o *Orchestrator) OnFinished(fn func(models.TaskResult)) {
	o.onFinished = append(o.onFinished, fn)
}

// OnHintUsed registers a listener called whenever a hint is handed out
func (o *Orchestrator) OnHintUsed(fn func(taskID string)) {
	o.onHint = append(o.onHint, fn)
}

// State returns the lifecycle state
func (o *Orchestrator) State() models.SessionState {
	return o.state
}

// LastResult returns the most recent finished result, if any
func (o *Orchestrator) LastResult() (models.TaskResult, bool) {
	if o.last == nil {
		return models.TaskResult{}, false
	}
	return *o.last, true
}

// Start begins a session. The countdown is armed only in test mode.
func (o *Orchestrator) Start(def *models.TaskDefinition, mode models.Mode) (string, error) {
	if o.state.IsActive() {
		return "", ErrSessionActive
	}
	if def == nil {
		return "", ErrNilDefinition
	}
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	tr, err := tracker.ForDefinition(def, mode)
	if err != nil {
		return "", fmt.Errorf("failed to create tracker: %w", err)
	}

	o.def = def
	o.mode = mode
	o.tracker = tr
	o.sessionID = uuid.New().String()
	o.startedAt = o.now()
	o.elapsed = 0
	o.usedHints = false
	o.armed = mode == models.ModeTest && def.TimeLimit > 0
	o.remaining = 0
	if o.armed {
		o.remaining = def.TimeLimit
	}
	o.state = models.SessionActive

	slog.Info("session started",
		"session_id", o.sessionID,
		"task_id", def.ID,
		"mode", mode,
		"timer_armed", o.armed,
	)
	o.publish(events.SessionStarted, map[string]any{"mode": mode, "time_limit": def.TimeLimit.Seconds()})

	return o.sessionID, nil
}

// Tick advances session time. When the armed countdown reaches zero the
// session is force-finished and its result returned.
func (o *Orchestrator) Tick(dt time.Duration) *models.TaskResult {
	if !o.state.IsActive() || dt <= 0 {
		return nil
	}

	o.elapsed += dt
	if !o.armed {
		return nil
	}

	o.remaining -= dt
	if o.remaining > 0 {
		return nil
	}
	o.remaining = 0
	res := o.finish(models.FinishTimeUp)
	return &res
}

// Finish ends the active session. Calling it when nothing is active is a
// no-op that returns ErrNoActiveSession.
func (o *Orchestrator) Finish() (models.TaskResult, error) {
	if !o.state.IsActive() {
		return models.TaskResult{}, ErrNoActiveSession
	}
	return o.finish(models.FinishRequested), nil
}

// Abandon force-finishes the active session, scoring whatever progress exists
func (o *Orchestrator) Abandon() (models.TaskResult, error) {
	if !o.state.IsActive() {
		return models.TaskResult{}, ErrNoActiveSession
	}
	return o.finish(models.FinishAbandoned), nil
}

func (o *Orchestrator) finish(reason models.FinishReason) models.TaskResult {
	o.state = models.SessionFinished

	res := o.tracker.BuildResult(o.elapsed)
	res.SessionID = o.sessionID
	res.UsedHints = o.usedHints
	res.Reason = reason
	res.FinishedAt = o.now()
	// an abandoned run keeps its partial score but never passes
	if reason == models.FinishAbandoned {
		res.Passed = false
	}
	if res.Passed && o.mode.EarnsBadges() {
		res.BadgeID = o.def.BadgeID
	}
	if res.Passed && o.mode == models.ModeTest {
		res.MasteryBadgeID = o.def.MasteryBadgeID
	}
	o.last = &res

	slog.Info("session finished",
		"session_id", res.SessionID,
		"task_id", res.TaskID,
		"score", res.Score,
		"passed", res.Passed,
		"reason", reason,
	)
	o.publish(events.SessionFinished, map[string]any{
		"score":  res.Score,
		"passed": res.Passed,
		"reason": reason,
	})

	for _, fn := range o.onFinished {
		fn(res)
	}

	o.state = models.SessionIdle
	o.def = nil
	o.tracker = nil
	o.armed = false
	o.remaining = 0
	return res
}

// Status returns a snapshot of the session
func (o *Orchestrator) Status() models.SessionStatus {
	if !o.state.IsActive() {
		return models.SessionStatus{State: o.state}
	}
	started := o.startedAt
	return models.SessionStatus{
		State:      o.state,
		SessionID:  o.sessionID,
		TaskID:     o.def.ID,
		TaskName:   o.def.Name,
		TaskType:   o.def.Type,
		Mode:       o.mode,
		Completion: o.tracker.CompletionPercentage(),
		Score:      o.tracker.Score(o.elapsed),
		Elapsed:    o.elapsed,
		Remaining:  o.remaining,
		TimerArmed: o.armed,
		UsedHints:  o.usedHints,
		StartedAt:  &started,
	}
}

// RequestHint returns guidance for the next piece of work and marks the
// session as hint-assisted
func (o *Orchestrator) RequestHint() (models.Feedback, error) {
	if !o.state.IsActive() {
		return models.Feedback{}, ErrNoActiveSession
	}
	if !o.mode.AllowsHints() {
		return models.Feedback{}, ErrHintsUnavailable
	}
	h, ok := o.tracker.(tracker.Hinter)
	if !ok {
		return models.Feedback{}, ErrUnsupportedAction
	}
	fb, ok := h.Hint()
	if !ok {
		return models.Feedback{}, ErrNoHint
	}

	o.usedHints = true
	taskID := o.def.ID
	o.publish(events.HintUsed, map[string]any{"code": fb.Code})
	for _, fn := range o.onHint {
		fn(taskID)
	}
	return fb, nil
}

// Identify reports a tapped violation
func (o *Orchestrator) Identify(id string) (Reply, error) {
	return o.act(func(tr tracker.Tracker) (tracker.Outcome, bool) {
		c, ok := tr.(tracker.Identifier)
		if !ok {
			return tracker.Outcome{}, false
		}
		return c.Identify(id), true
	}, func(out tracker.Outcome) (events.Type, map[string]any) {
		if out.Accepted {
			return events.ViolationFound, map[string]any{"id": id, "code": out.Violation.Code}
		}
		if out.Code == tracker.OutcomeFalsePositive || out.Code == tracker.OutcomeRepeatFalsePositive {
			return events.FalsePositive, map[string]any{"id": id}
		}
		return events.ActionRejected, map[string]any{"id": id, "outcome": out.Code}
	})
}

// CompleteStep reports a performed step
func (o *Orchestrator) CompleteStep(id string) (Reply, error) {
	return o.act(func(tr tracker.Tracker) (tracker.Outcome, bool) {
		c, ok := tr.(tracker.StepCompleter)
		if !ok {
			return tracker.Outcome{}, false
		}
		return c.CompleteStep(id), true
	}, func(out tracker.Outcome) (events.Type, map[string]any) {
		if out.Accepted {
			return events.StepAccepted, map[string]any{"id": id}
		}
		return events.StepRejected, map[string]any{"id": id, "outcome": out.Code}
	})
}

// Measure reports a meter reading
func (o *Orchestrator) Measure(id string, value float64) (Reply, error) {
	return o.act(func(tr tracker.Tracker) (tracker.Outcome, bool) {
		c, ok := tr.(tracker.Measurer)
		if !ok {
			return tracker.Outcome{}, false
		}
		return c.Measure(id, value), true
	}, func(out tracker.Outcome) (events.Type, map[string]any) {
		if out.Accepted {
			return events.MeasurementTaken, map[string]any{
				"id":       id,
				"value":    value,
				"in_range": out.Measurement.InRange,
			}
		}
		return events.ActionRejected, map[string]any{"id": id, "outcome": out.Code}
	})
}

// SelectGauge reports the wire gauge chosen for a wiring task
func (o *Orchestrator) SelectGauge(gauge string) (Reply, error) {
	return o.act(func(tr tracker.Tracker) (tracker.Outcome, bool) {
		c, ok := tr.(tracker.Wirer)
		if !ok {
			return tracker.Outcome{}, false
		}
		return c.SelectGauge(gauge), true
	}, genericCue("gauge", gauge))
}

// RecordConnection reports one termination with a quality in 0..1
func (o *Orchestrator) RecordConnection(quality float64) (Reply, error) {
	return o.act(func(tr tracker.Tracker) (tracker.Outcome, bool) {
		c, ok := tr.(tracker.Wirer)
		if !ok {
			return tracker.Outcome{}, false
		}
		return c.RecordConnection(quality), true
	}, genericCue("quality", quality))
}

// AddBonus adds task-specific bonus points
func (o *Orchestrator) AddBonus(points float64) (Reply, error) {
	return o.act(func(tr tracker.Tracker) (tracker.Outcome, bool) {
		c, ok := tr.(tracker.Bonuser)
		if !ok {
			return tracker.Outcome{}, false
		}
		return c.AddBonus(points), true
	}, genericCue("points", points))
}

// AnswerDiagnostic answers a troubleshooting question
func (o *Orchestrator) AnswerDiagnostic(id, answer string) (Reply, error) {
	return o.act(func(tr tracker.Tracker) (tracker.Outcome, bool) {
		c, ok := tr.(tracker.Diagnoser)
		if !ok {
			return tracker.Outcome{}, false
		}
		return c.AnswerDiagnostic(id, answer), true
	}, genericCue("id", id))
}

// IdentifyFault names the suspected fault
func (o *Orchestrator) IdentifyFault(id string) (Reply, error) {
	return o.act(func(tr tracker.Tracker) (tracker.Outcome, bool) {
		c, ok := tr.(tracker.Diagnoser)
		if !ok {
			return tracker.Outcome{}, false
		}
		return c.IdentifyFault(id), true
	}, genericCue("id", id))
}

// RepairFault repairs the identified fault
func (o *Orchestrator) RepairFault() (Reply, error) {
	return o.act(func(tr tracker.Tracker) (tracker.Outcome, bool) {
		c, ok := tr.(tracker.Diagnoser)
		if !ok {
			return tracker.Outcome{}, false
		}
		return c.RepairFault(), true
	}, genericCue("action", "repair"))
}

func genericCue(key string, value any) func(tracker.Outcome) (events.Type, map[string]any) {
	return func(out tracker.Outcome) (events.Type, map[string]any) {
		if out.Accepted {
			return events.StepAccepted, map[string]any{key: value, "outcome": out.Code}
		}
		return events.ActionRejected, map[string]any{key: value, "outcome": out.Code}
	}
}

// act runs one capability call against the active tracker, publishes the
// cue and force-finishes once the tracker reports done
func (o *Orchestrator) act(
	call func(tracker.Tracker) (tracker.Outcome, bool),
	cue func(tracker.Outcome) (events.Type, map[string]any),
) (Reply, error) {
	if !o.state.IsActive() {
		return Reply{}, ErrNoActiveSession
	}

	out, supported := call(o.tracker)
	if !supported {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnsupportedAction, o.def.Type)
	}

	typ, data := cue(out)
	o.publish(typ, data)

	reply := Reply{Outcome: out}
	if o.tracker.Done() {
		res := o.finish(models.FinishCompleted)
		reply.Result = &res
	}
	return reply, nil
}

func (o *Orchestrator) publish(t events.Type, data map[string]any) {
	e := events.Event{
		Type:      t,
		Timestamp: o.now(),
		SessionID: o.sessionID,
		Data:      data,
	}
	if o.def != nil {
		e.TaskID = o.def.ID
	}
	o.publisher.Publish(e)
}
