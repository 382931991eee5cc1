package tracker

import (
	"fmt"
	"math"
	"time"

	"github.com/terra-clan/training-engine/internal/models"
	"github.com/terra-clan/training-engine/internal/scoring"
)

// MeasurementTracker accumulates meter readings. A repeated reading of the
// same measurement replaces the earlier one.
type MeasurementTracker struct {
	base
	results map[string]models.MeasurementResult
	order   []string
}

func (t *MeasurementTracker) Initialize(def *models.TaskDefinition, mode models.Mode) {
	t.def = def
	t.mode = mode
	t.Reset()
}

func (t *MeasurementTracker) Reset() {
	t.results = make(map[string]models.MeasurementResult)
	t.order = nil
}

func (t *MeasurementTracker) Measure(id string, value float64) Outcome {
	m, ok := t.def.Measurement(id)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return rejected(OutcomeUnknown)
	}

	r := models.MeasurementResult{
		ID:       id,
		Actual:   value,
		Target:   m.Target,
		Accuracy: scoring.Accuracy(value, m.Target, m.Tolerance),
		InRange:  math.Abs(value-m.Target) <= m.Tolerance,
	}
	if _, seen := t.results[id]; !seen {
		t.order = append(t.order, id)
	}
	t.results[id] = r

	out := accepted(OutcomeRecorded)
	out.Measurement = &r
	return out
}

// Results returns the readings in the order they were first taken
func (t *MeasurementTracker) Results() []models.MeasurementResult {
	out := make([]models.MeasurementResult, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.results[id])
	}
	return out
}

func (t *MeasurementTracker) Done() bool {
	return len(t.results) >= len(t.def.Measurements)
}

func (t *MeasurementTracker) CompletionPercentage() float64 {
	return percent(len(t.results), len(t.def.Measurements))
}

func (t *MeasurementTracker) Breakdown(elapsed time.Duration) models.ScoreBreakdown {
	in := scoring.MeasurementInput{Total: len(t.def.Measurements)}
	for _, id := range t.order {
		r := t.results[id]
		in.Accuracies = append(in.Accuracies, r.Accuracy)
		if r.InRange {
			in.WithinTolerance++
		}
	}
	return scoring.Measurement(in, t.timing(elapsed))
}

func (t *MeasurementTracker) Score(elapsed time.Duration) int {
	return t.Breakdown(elapsed).Score
}

func (t *MeasurementTracker) BuildResult(elapsed time.Duration) models.TaskResult {
	codes := make([]models.CodeResult, 0, len(t.def.Measurements))
	for _, m := range t.def.Measurements {
		codes = append(codes, models.CodeResult{ID: m.ID, Code: m.Code, Passed: t.results[m.ID].InRange})
	}
	return t.result(t.Breakdown(elapsed), codes, elapsed)
}

// Hint names the first measurement not yet taken
func (t *MeasurementTracker) Hint() (models.Feedback, bool) {
	for _, m := range t.def.Measurements {
		if _, ok := t.results[m.ID]; !ok {
			return models.Feedback{
				Message:     fmt.Sprintf("Measure %s: expect %g %s", m.Label, m.Target, m.Unit),
				Description: m.Label,
				Code:        m.Code,
			}, true
		}
	}
	return models.Feedback{}, false
}
