package tracker

import (
	"time"

	"github.com/terra-clan/training-engine/internal/models"
	"github.com/terra-clan/training-engine/internal/scoring"
)

// ViolationTracker records violations found in a scene
type ViolationTracker struct {
	base
	confirmed      map[string]bool
	falsePositives map[string]bool
}

func (t *ViolationTracker) Initialize(def *models.TaskDefinition, mode models.Mode) {
	t.def = def
	t.mode = mode
	t.Reset()
}

func (t *ViolationTracker) Reset() {
	t.confirmed = make(map[string]bool)
	t.falsePositives = make(map[string]bool)
}

// Identify confirms a real violation once. Anything else is a false
// positive, counted at most once per id.
func (t *ViolationTracker) Identify(id string) Outcome {
	if v, ok := t.def.Violation(id); ok {
		if t.confirmed[id] {
			return rejected(OutcomeAlreadyFound)
		}
		t.confirmed[id] = true
		out := accepted(OutcomeConfirmed)
		out.Violation = &v
		return out
	}

	if t.falsePositives[id] {
		return rejected(OutcomeRepeatFalsePositive)
	}
	t.falsePositives[id] = true
	return rejected(OutcomeFalsePositive)
}

// Found returns the number of confirmed violations
func (t *ViolationTracker) Found() int {
	return len(t.confirmed)
}

// FalsePositives returns the number of distinct wrong ids
func (t *ViolationTracker) FalsePositives() int {
	return len(t.falsePositives)
}

func (t *ViolationTracker) Done() bool {
	return len(t.confirmed) >= len(t.def.Violations)
}

func (t *ViolationTracker) CompletionPercentage() float64 {
	return percent(len(t.confirmed), len(t.def.Violations))
}

func (t *ViolationTracker) Breakdown(elapsed time.Duration) models.ScoreBreakdown {
	return scoring.Violation(scoring.ViolationInput{
		Total:          len(t.def.Violations),
		Found:          len(t.confirmed),
		FalsePositives: len(t.falsePositives),
	}, t.timing(elapsed))
}

func (t *ViolationTracker) Score(elapsed time.Duration) int {
	return t.Breakdown(elapsed).Score
}

func (t *ViolationTracker) BuildResult(elapsed time.Duration) models.TaskResult {
	codes := make([]models.CodeResult, 0, len(t.def.Violations))
	for _, v := range t.def.Violations {
		codes = append(codes, models.CodeResult{ID: v.ID, Code: v.Code, Passed: t.confirmed[v.ID]})
	}
	return t.result(t.Breakdown(elapsed), codes, elapsed)
}

// Hint points at the first violation not yet found
func (t *ViolationTracker) Hint() (models.Feedback, bool) {
	for _, v := range t.def.Violations {
		if !t.confirmed[v.ID] {
			return models.Feedback{
				Message:     "Check the installation against " + v.Code,
				Description: v.Description,
				Code:        v.Code,
			}, true
		}
	}
	return models.Feedback{}, false
}
