// Package badges keeps the trainee's badge collection and derives composite
// badges from it.
package badges

import (
	"log/slog"
	"sort"
	"time"

	"github.com/terra-clan/training-engine/internal/events"
	"github.com/terra-clan/training-engine/internal/models"
)

// Derived badge ids
const (
	Perfectionist  = "perfectionist"
	Scholar        = "scholar"
	AllTasksPassed = "all-tasks-passed"
	Master         = "master-electrician"
	FirstDay       = "first-day"
	WorkWeek       = "work-week"
	Streak3        = "streak-3"
	Streak7        = "streak-7"
	NoHints        = "no-hints"
)

var derivedNames = map[string]string{
	Perfectionist:  "Perfectionist",
	Scholar:        "Scholar",
	AllTasksPassed: "Journeyman Candidate",
	Master:         "Master Electrician",
	FirstDay:       "First Day on the Job",
	WorkWeek:       "Full Work Week",
	Streak3:        "Three-Day Streak",
	Streak7:        "Seven-Day Streak",
	NoHints:        "Self-Reliant",
}

// DefaultFoundational are the badges that unlock Scholar
var DefaultFoundational = []string{"panel-inspector", "safety-first"}

type taskBadges struct {
	taskID      string
	badgeID     string
	badgeName   string
	masteryID   string
	masteryName string
}

// Option configures a Ledger
type Option func(*Ledger)

// WithFoundational overrides the badges required for Scholar
func WithFoundational(ids ...string) Option {
	return func(l *Ledger) {
		l.foundational = append([]string(nil), ids...)
	}
}

// WithPublisher sets the event sink for award cues
func WithPublisher(p events.Publisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger holds at most one badge per id. Not safe for concurrent use.
type Ledger struct {
	badges       map[string]*models.Badge
	tasks        []taskBadges
	tiers        map[string]int
	names        map[string]string
	foundational []string
	publisher    events.Publisher
	now          func() time.Time
}

// NewLedger creates an empty ledger aware of the known task definitions
func NewLedger(defs []*models.TaskDefinition, opts ...Option) *Ledger {
	l := &Ledger{
		badges:       make(map[string]*models.Badge),
		tiers:        make(map[string]int),
		names:        make(map[string]string),
		foundational: DefaultFoundational,
		publisher:    events.Nop{},
		now:          time.Now,
	}
	for id, name := range derivedNames {
		l.tiers[id] = models.TierComposite
		l.names[id] = name
	}
	for _, def := range defs {
		tb := taskBadges{
			taskID:      def.ID,
			badgeID:     def.BadgeID,
			badgeName:   def.BadgeName,
			masteryID:   def.MasteryBadgeID,
			masteryName: def.MasteryBadgeName,
		}
		l.tasks = append(l.tasks, tb)
		if tb.badgeID != "" {
			l.tiers[tb.badgeID] = models.TierTask
			l.names[tb.badgeID] = tb.badgeName
		}
		if tb.masteryID != "" {
			l.tiers[tb.masteryID] = models.TierMastery
			l.names[tb.masteryID] = tb.masteryName
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Award creates the badge or raises its score. A lower or equal score
// leaves the badge untouched. Composite conditions are evaluated after
// every award. Returns the badges that were created or upgraded.
func (l *Ledger) Award(badgeID, sourceTaskID string, score int) []models.Badge {
	if badgeID == "" {
		return nil
	}

	var changed []models.Badge
	if b, ok := l.upsert(badgeID, sourceTaskID, score); ok {
		changed = append(changed, b)
	}
	return append(changed, l.evaluateComposites()...)
}

func (l *Ledger) upsert(id, sourceTaskID string, score int) (models.Badge, bool) {
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	if existing, ok := l.badges[id]; ok {
		if score <= existing.Score {
			return models.Badge{}, false
		}
		existing.Score = score
		existing.AwardedAt = l.now()
		if sourceTaskID != "" {
			existing.SourceTaskID = sourceTaskID
		}
		slog.Info("badge upgraded", "badge_id", id, "score", score)
		l.publish(*existing, true)
		return *existing, true
	}

	b := &models.Badge{
		ID:           id,
		Name:         l.nameOf(id),
		SourceTaskID: sourceTaskID,
		Score:        score,
		AwardedAt:    l.now(),
		Tier:         l.tierOf(id),
	}
	l.badges[id] = b
	slog.Info("badge awarded", "badge_id", id, "task_id", sourceTaskID, "score", score)
	l.publish(*b, false)
	return *b, true
}

func (l *Ledger) nameOf(id string) string {
	if n := l.names[id]; n != "" {
		return n
	}
	return id
}

func (l *Ledger) tierOf(id string) int {
	if t, ok := l.tiers[id]; ok {
		return t
	}
	return models.TierTask
}

// evaluateComposites is idempotent; held composites are skipped
func (l *Ledger) evaluateComposites() []models.Badge {
	var awarded []models.Badge
	grant := func(id string) {
		if l.Has(id) {
			return
		}
		if b, ok := l.upsert(id, "", 100); ok {
			awarded = append(awarded, b)
		}
	}

	for _, b := range l.badges {
		if b.Tier != models.TierComposite && b.Score >= 100 {
			grant(Perfectionist)
			break
		}
	}

	if len(l.foundational) > 0 && l.hasAll(l.foundational) {
		grant(Scholar)
	}

	if len(l.tasks) > 0 {
		level1 := make([]string, 0, len(l.tasks))
		level2 := make([]string, 0, len(l.tasks))
		for _, tb := range l.tasks {
			level1 = append(level1, tb.badgeID)
			level2 = append(level2, tb.masteryID)
		}
		if l.hasAll(level1) {
			grant(AllTasksPassed)
		}
		if l.hasAll(level2) {
			grant(Master)
		}
	}
	return awarded
}

func (l *Ledger) hasAll(ids []string) bool {
	for _, id := range ids {
		if id == "" || !l.Has(id) {
			return false
		}
	}
	return true
}

// CheckDayBadges awards career milestones for completed days and streaks
func (l *Ledger) CheckDayBadges(daysCompleted, streak int) []models.Badge {
	var awarded []models.Badge
	grant := func(cond bool, id string) {
		if !cond || l.Has(id) {
			return
		}
		if b, ok := l.upsert(id, "", 100); ok {
			awarded = append(awarded, b)
		}
	}
	grant(daysCompleted >= 1, FirstDay)
	grant(daysCompleted >= 5, WorkWeek)
	grant(streak >= 3, Streak3)
	grant(streak >= 7, Streak7)
	return awarded
}

// CheckZeroHintsBadge awards Self-Reliant for a task finished without hints
func (l *Ledger) CheckZeroHintsBadge(taskID string, usedHints bool) []models.Badge {
	if usedHints || l.Has(NoHints) {
		return nil
	}
	if b, ok := l.upsert(NoHints, taskID, 100); ok {
		return []models.Badge{b}
	}
	return nil
}

// Has reports whether a badge is held
func (l *Ledger) Has(id string) bool {
	_, ok := l.badges[id]
	return ok
}

// Get returns a copy of a held badge
func (l *Ledger) Get(id string) (models.Badge, bool) {
	b, ok := l.badges[id]
	if !ok {
		return models.Badge{}, false
	}
	return *b, true
}

// Len returns the number of held badges
func (l *Ledger) Len() int {
	return len(l.badges)
}

// List returns all badges ordered by tier then id
func (l *Ledger) List() []models.Badge {
	out := make([]models.Badge, 0, len(l.badges))
	for _, b := range l.badges {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Restore replaces the collection with persisted badges. Duplicate ids keep
// the highest score.
func (l *Ledger) Restore(saved []models.Badge) {
	l.badges = make(map[string]*models.Badge, len(saved))
	for _, b := range saved {
		if existing, ok := l.badges[b.ID]; ok && existing.Score >= b.Score {
			continue
		}
		b := b
		l.badges[b.ID] = &b
	}
}

func (l *Ledger) publish(b models.Badge, upgraded bool) {
	l.publisher.Publish(events.Event{
		Type:      events.BadgeAwarded,
		Timestamp: b.AwardedAt,
		TaskID:    b.SourceTaskID,
		Data: map[string]any{
			"badge_id": b.ID,
			"name":     b.Name,
			"score":    b.Score,
			"tier":     b.Tier,
			"upgraded": upgraded,
		},
	})
}
