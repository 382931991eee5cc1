// Package challenge generates one deterministic cross-task challenge per
// calendar day and tracks the day's progress toward it.
package challenge

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/terra-clan/training-engine/internal/events"
	"github.com/terra-clan/training-engine/internal/models"
)

// DateLayout is the calendar-day key format
const DateLayout = "2006-01-02"

// SpeedRunLimit is the elapsed time a speed-run pass must beat
const SpeedRunLimit = 2 * time.Minute

// HighScoreThreshold is the minimum score that extends a high-score run
const HighScoreThreshold = 90

// XPGranter receives bonus XP on challenge completion
type XPGranter interface {
	GrantBonusXP(amount int, source string)
}

// Counters are the day's tracking counters for all five categories. All of
// them accumulate regardless of which category is active.
type Counters struct {
	HintFree        int               `json:"hint_free"`
	HighScoreStreak int               `json:"high_score_streak"`
	SpeedRuns       int               `json:"speed_runs"`
	XPEarned        int               `json:"xp_earned"`
	TaskTypes       []models.TaskType `json:"task_types"`
}

func (c *Counters) value(t models.ChallengeType) int {
	switch t {
	case models.ChallengeHintFree:
		return c.HintFree
	case models.ChallengeHighScores:
		return c.HighScoreStreak
	case models.ChallengeSpeedRun:
		return c.SpeedRuns
	case models.ChallengeDailyXP:
		return c.XPEarned
	case models.ChallengeDistinctTypes:
		return len(c.TaskTypes)
	}
	return 0
}

func (c *Counters) addType(t models.TaskType) {
	for _, existing := range c.TaskTypes {
		if existing == t {
			return
		}
	}
	c.TaskTypes = append(c.TaskTypes, t)
}

// State is the persisted form of a generator
type State struct {
	Challenge *models.DailyChallenge `json:"challenge,omitempty"`
	Counters  Counters               `json:"counters"`
}

// Option configures a Generator
type Option func(*Generator)

// WithLocation sets the zone calendar days are computed in
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithPublisher sets the event sink for progress cues
func WithPublisher(p events.Publisher) Option {
	return func(g *Generator) {
		g.publisher = p
	}
}

// Generator caches today's challenge. Not safe for concurrent use.
type Generator struct {
	granter   XPGranter
	loc       *time.Location
	now       func() time.Time
	publisher events.Publisher

	current  *models.DailyChallenge
	counters Counters
}

// NewGenerator creates a generator that pays completion bonuses to granter
func NewGenerator(granter XPGranter, opts ...Option) *Generator {
	g := &Generator{
		granter:   granter,
		loc:       time.Local,
		now:       time.Now,
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate deterministically builds the challenge for a calendar date.
// seed = dayOfYear + year*366, type = dayOfYear mod 5; the target is drawn
// first, then the XP bonus.
func Generate(date time.Time) models.DailyChallenge {
	doy := date.YearDay()
	year := date.Year()
	rng := NewSplitMix64(uint64(doy + year*366))
	typ := models.ChallengeType(doy % models.ChallengeTypeCount)

	var target int
	var desc string
	switch typ {
	case models.ChallengeHintFree:
		target = rng.Range(2, 4)
		desc = fmt.Sprintf("Complete %d tasks without using a hint", target)
	case models.ChallengeHighScores:
		target = rng.Range(2, 3)
		desc = fmt.Sprintf("Score %d or higher on %d tasks in a row", HighScoreThreshold, target)
	case models.ChallengeSpeedRun:
		target = 1
		desc = fmt.Sprintf("Pass any task in under %d minutes", int(SpeedRunLimit.Minutes()))
	case models.ChallengeDailyXP:
		target = rng.Range(6, 12) * 50
		desc = fmt.Sprintf("Earn %d XP today", target)
	case models.ChallengeDistinctTypes:
		target = rng.Range(2, 4)
		desc = fmt.Sprintf("Pass %d different task types", target)
	}
	bonus := 50 + rng.Range(0, 5)*10

	return models.DailyChallenge{
		ID:            fmt.Sprintf("%04d-%03d-%s-%d-%d", year, doy, typ, target, bonus),
		Description:   desc,
		Type:          typ,
		Target:        target,
		XPBonus:       bonus,
		DateGenerated: date.Format(DateLayout),
	}
}

// TodaysChallenge returns the cached challenge for the current date,
// generating it and resetting the counters when the date has changed
func (g *Generator) TodaysChallenge() models.DailyChallenge {
	today := g.now().In(g.loc)
	key := today.Format(DateLayout)
	if g.current != nil && g.current.DateGenerated == key {
		return *g.current
	}

	c := Generate(today)
	g.current = &c
	g.counters = Counters{}

	slog.Info("daily challenge generated",
		"challenge_id", c.ID,
		"type", c.Type.String(),
		"target", c.Target,
		"xp_bonus", c.XPBonus,
	)
	return c
}

// Counters returns a copy of the day's counters
func (g *Generator) Counters() Counters {
	g.TodaysChallenge()
	c := g.counters
	c.TaskTypes = append([]models.TaskType(nil), g.counters.TaskTypes...)
	return c
}

// TrackProgress folds a finished result into the day's counters. xpEarned
// is the XP the result earned, excluding challenge bonuses. Returns true if
// this call completed the challenge.
func (g *Generator) TrackProgress(res models.TaskResult, xpEarned int) bool {
	g.TodaysChallenge()

	if res.Passed && !res.UsedHints {
		g.counters.HintFree++
	}
	if res.Score >= HighScoreThreshold {
		g.counters.HighScoreStreak++
	} else {
		g.counters.HighScoreStreak = 0
	}
	if res.Passed && res.Elapsed < SpeedRunLimit {
		g.counters.SpeedRuns++
	}
	if xpEarned > 0 {
		g.counters.XPEarned += xpEarned
	}
	if res.Passed {
		g.counters.addType(res.TaskType)
	}

	return g.refresh()
}

// RecordHintUsed zeroes the hint-free counter
func (g *Generator) RecordHintUsed() {
	g.TodaysChallenge()
	g.counters.HintFree = 0
	g.refresh()
}

// refresh syncs progress for the active type and completes exactly once
func (g *Generator) refresh() bool {
	c := g.current
	if c.Complete {
		return false
	}

	progress := g.counters.value(c.Type)
	if progress > c.Target {
		progress = c.Target
	}
	changed := progress != c.Progress
	c.Progress = progress

	if progress < c.Target {
		if changed {
			g.publisher.Publish(events.Event{
				Type: events.ChallengeProgress,
				Data: map[string]any{"challenge_id": c.ID, "progress": progress, "target": c.Target},
			})
		}
		return false
	}

	c.Complete = true
	slog.Info("daily challenge completed", "challenge_id", c.ID, "xp_bonus", c.XPBonus)
	if g.granter != nil {
		g.granter.GrantBonusXP(c.XPBonus, c.ID)
	}
	g.publisher.Publish(events.Event{
		Type: events.ChallengeCompleted,
		Data: map[string]any{"challenge_id": c.ID, "xp_bonus": c.XPBonus},
	})
	return true
}

// Snapshot returns the persisted form
func (g *Generator) Snapshot() State {
	s := State{Counters: g.counters}
	s.Counters.TaskTypes = append([]models.TaskType(nil), g.counters.TaskTypes...)
	if g.current != nil {
		c := *g.current
		s.Challenge = &c
	}
	return s
}

// Restore loads a persisted state. A challenge from an earlier date is
// replaced on the next query.
func (g *Generator) Restore(s State) {
	g.counters = s.Counters
	if s.Challenge != nil {
		c := *s.Challenge
		g.current = &c
	} else {
		g.current = nil
	}
}
