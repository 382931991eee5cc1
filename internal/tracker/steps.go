package tracker

import (
	"strings"
	"time"

	"github.com/terra-clan/training-engine/internal/models"
	"github.com/terra-clan/training-engine/internal/scoring"
)

// stepSequence is the ordered-step logic shared by the wiring, procedure
// and troubleshooting variants.
type stepSequence struct {
	steps     []models.StepDefinition
	mode      models.Mode
	completed []string // append-only
	cursor    int
}

func (s *stepSequence) reset(steps []models.StepDefinition, mode models.Mode) {
	s.steps = steps
	s.mode = mode
	s.completed = nil
	s.cursor = 0
}

// complete accepts any known id in test mode. In learn and practice mode
// only the step at the cursor advances; practice mode reports the expected
// step on a mismatch.
func (s *stepSequence) complete(id string) Outcome {
	idx := -1
	for i, st := range s.steps {
		if st.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return rejected(OutcomeUnknown)
	}
	if s.cursor >= len(s.steps) {
		return rejected(OutcomeAllDone)
	}

	if s.mode != models.ModeTest && s.steps[s.cursor].ID != id {
		out := rejected(OutcomeOutOfOrder)
		if s.mode == models.ModePractice {
			expected := s.steps[s.cursor]
			out.Expected = &expected
		}
		return out
	}

	s.completed = append(s.completed, id)
	s.cursor++
	return accepted(OutcomeAccepted)
}

func (s *stepSequence) done() bool {
	return s.cursor >= len(s.steps)
}

func (s *stepSequence) ids() []string {
	ids := make([]string, len(s.steps))
	for i, st := range s.steps {
		ids[i] = st.ID
	}
	return ids
}

func (s *stepSequence) completion() float64 {
	return percent(s.cursor, len(s.steps))
}

func (s *stepSequence) codes() []models.CodeResult {
	done := make(map[string]bool, len(s.completed))
	for _, id := range s.completed {
		done[id] = true
	}
	codes := make([]models.CodeResult, 0, len(s.steps))
	for _, st := range s.steps {
		codes = append(codes, models.CodeResult{ID: st.ID, Code: st.Code, Passed: done[st.ID]})
	}
	return codes
}

func (s *stepSequence) hint() (models.Feedback, bool) {
	if s.done() {
		return models.Feedback{}, false
	}
	next := s.steps[s.cursor]
	return models.Feedback{
		Message:     "Next step: " + next.Description,
		Description: next.Description,
		Code:        next.Code,
	}, true
}

// Completed returns a copy of the completed step ids in submission order
func (s *stepSequence) Completed() []string {
	return append([]string(nil), s.completed...)
}

// WiringTracker is the ordered-step variant with gauge and connection
// quality tracking.
type WiringTracker struct {
	base
	seq          stepSequence
	gaugeCorrect bool
	quality      float64
	connections  int
}

func (t *WiringTracker) Initialize(def *models.TaskDefinition, mode models.Mode) {
	t.def = def
	t.mode = mode
	t.Reset()
}

func (t *WiringTracker) Reset() {
	t.seq.reset(t.def.Steps, t.mode)
	t.gaugeCorrect = false
	t.quality = 0
	t.connections = 0
}

func (t *WiringTracker) CompleteStep(id string) Outcome {
	return t.seq.complete(id)
}

// SelectGauge records the trainee's wire choice; the latest choice counts
func (t *WiringTracker) SelectGauge(gauge string) Outcome {
	t.gaugeCorrect = t.def.Wiring != nil &&
		strings.EqualFold(strings.TrimSpace(gauge), strings.TrimSpace(t.def.Wiring.Gauge))
	if t.gaugeCorrect {
		return accepted(OutcomeCorrect)
	}
	return rejected(OutcomeIncorrect)
}

// RecordConnection adds a termination quality in 0..1, up to the number of
// expected connections
func (t *WiringTracker) RecordConnection(quality float64) Outcome {
	if t.def.Wiring == nil || t.connections >= t.def.Wiring.Connections {
		return rejected(OutcomeAllDone)
	}
	if quality < 0 {
		quality = 0
	} else if quality > 1 {
		quality = 1
	}
	t.connections++
	t.quality += quality
	return accepted(OutcomeRecorded)
}

func (t *WiringTracker) Done() bool {
	return t.seq.done()
}

func (t *WiringTracker) CompletionPercentage() float64 {
	return t.seq.completion()
}

func (t *WiringTracker) Breakdown(elapsed time.Duration) models.ScoreBreakdown {
	expected := 0
	if t.def.Wiring != nil {
		expected = t.def.Wiring.Connections
	}
	return scoring.OrderedStep(scoring.StepInput{
		Expected:            t.seq.ids(),
		Completed:           t.seq.completed,
		WireGaugeCorrect:    t.gaugeCorrect,
		ConnectionQuality:   t.quality,
		ExpectedConnections: expected,
	}, t.timing(elapsed))
}

func (t *WiringTracker) Score(elapsed time.Duration) int {
	return t.Breakdown(elapsed).Score
}

func (t *WiringTracker) BuildResult(elapsed time.Duration) models.TaskResult {
	return t.result(t.Breakdown(elapsed), t.seq.codes(), elapsed)
}

func (t *WiringTracker) Hint() (models.Feedback, bool) {
	return t.seq.hint()
}

// Completed returns the completed step ids in submission order
func (t *WiringTracker) Completed() []string {
	return t.seq.Completed()
}

// ProcedureTracker is the generic linear-step variant
type ProcedureTracker struct {
	base
	seq   stepSequence
	bonus float64
}

func (t *ProcedureTracker) Initialize(def *models.TaskDefinition, mode models.Mode) {
	t.def = def
	t.mode = mode
	t.Reset()
}

func (t *ProcedureTracker) Reset() {
	t.seq.reset(t.def.Steps, t.mode)
	t.bonus = 0
}

func (t *ProcedureTracker) CompleteStep(id string) Outcome {
	return t.seq.complete(id)
}

// AddBonus accumulates task-specific bonus points; scoring clamps the total
func (t *ProcedureTracker) AddBonus(points float64) Outcome {
	t.bonus += points
	return accepted(OutcomeRecorded)
}

func (t *ProcedureTracker) Done() bool {
	return t.seq.done()
}

func (t *ProcedureTracker) CompletionPercentage() float64 {
	return t.seq.completion()
}

func (t *ProcedureTracker) Breakdown(elapsed time.Duration) models.ScoreBreakdown {
	return scoring.GenericStep(scoring.StepInput{
		Expected:  t.seq.ids(),
		Completed: t.seq.completed,
		Bonus:     t.bonus,
	}, t.timing(elapsed))
}

func (t *ProcedureTracker) Score(elapsed time.Duration) int {
	return t.Breakdown(elapsed).Score
}

func (t *ProcedureTracker) BuildResult(elapsed time.Duration) models.TaskResult {
	return t.result(t.Breakdown(elapsed), t.seq.codes(), elapsed)
}

func (t *ProcedureTracker) Hint() (models.Feedback, bool) {
	return t.seq.hint()
}

// Completed returns the completed step ids in submission order
func (t *ProcedureTracker) Completed() []string {
	return t.seq.Completed()
}
