package tracker

import (
	"strings"
	"time"

	"github.com/terra-clan/training-engine/internal/models"
	"github.com/terra-clan/training-engine/internal/scoring"
)

// TroubleshootingTracker combines diagnostic questions, fault identification
// and repair, and ancillary steps handled by the ordered-step logic.
type TroubleshootingTracker struct {
	base
	seq        stepSequence
	answered   map[string]bool
	correct    map[string]bool
	points     int
	identified bool
	repaired   bool
}

func (t *TroubleshootingTracker) Initialize(def *models.TaskDefinition, mode models.Mode) {
	t.def = def
	t.mode = mode
	t.Reset()
}

func (t *TroubleshootingTracker) Reset() {
	t.seq.reset(t.def.Steps, t.mode)
	t.answered = make(map[string]bool)
	t.correct = make(map[string]bool)
	t.points = 0
	t.identified = false
	t.repaired = false
}

// AnswerDiagnostic allows one attempt per question
func (t *TroubleshootingTracker) AnswerDiagnostic(id, answer string) Outcome {
	q, ok := t.def.Diagnostic(id)
	if !ok {
		return rejected(OutcomeUnknown)
	}
	if t.answered[id] {
		return rejected(OutcomeAlreadyAnswered)
	}
	t.answered[id] = true

	if !strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Answer)) {
		return rejected(OutcomeIncorrect)
	}
	t.correct[id] = true
	t.points += q.Points
	return accepted(OutcomeCorrect)
}

func (t *TroubleshootingTracker) IdentifyFault(id string) Outcome {
	if t.def.Fault == nil {
		return rejected(OutcomeUnknown)
	}
	if t.identified {
		return rejected(OutcomeAlreadyFound)
	}
	if id != t.def.Fault.ID {
		return rejected(OutcomeIncorrect)
	}
	t.identified = true
	return accepted(OutcomeConfirmed)
}

// RepairFault requires the fault to be identified first
func (t *TroubleshootingTracker) RepairFault() Outcome {
	if !t.identified {
		return rejected(OutcomeNotIdentified)
	}
	if t.repaired {
		return rejected(OutcomeAllDone)
	}
	t.repaired = true
	return accepted(OutcomeAccepted)
}

func (t *TroubleshootingTracker) CompleteStep(id string) Outcome {
	return t.seq.complete(id)
}

// Done is reached once the fault is repaired
func (t *TroubleshootingTracker) Done() bool {
	return t.repaired
}

func (t *TroubleshootingTracker) CompletionPercentage() float64 {
	done := len(t.answered) + t.seq.cursor
	if t.identified {
		done++
	}
	if t.repaired {
		done++
	}
	return percent(done, len(t.def.Diagnostics)+len(t.def.Steps)+2)
}

func (t *TroubleshootingTracker) diagnosticTotal() int {
	total := 0
	for _, q := range t.def.Diagnostics {
		total += q.Points
	}
	return total
}

func (t *TroubleshootingTracker) Breakdown(elapsed time.Duration) models.ScoreBreakdown {
	return scoring.Troubleshooting(scoring.TroubleshootingInput{
		DiagnosticPoints: t.points,
		DiagnosticTotal:  t.diagnosticTotal(),
		FaultIdentified:  t.identified,
		FaultRepaired:    t.repaired,
		StepsTotal:       len(t.def.Steps),
		StepsCompleted:   len(t.seq.completed),
	}, t.timing(elapsed))
}

func (t *TroubleshootingTracker) Score(elapsed time.Duration) int {
	return t.Breakdown(elapsed).Score
}

func (t *TroubleshootingTracker) BuildResult(elapsed time.Duration) models.TaskResult {
	codes := make([]models.CodeResult, 0, len(t.def.Diagnostics)+len(t.def.Steps)+1)
	for _, q := range t.def.Diagnostics {
		codes = append(codes, models.CodeResult{ID: q.ID, Passed: t.correct[q.ID]})
	}
	if t.def.Fault != nil {
		codes = append(codes, models.CodeResult{ID: t.def.Fault.ID, Code: t.def.Fault.Code, Passed: t.repaired})
	}
	codes = append(codes, t.seq.codes()...)
	return t.result(t.Breakdown(elapsed), codes, elapsed)
}

// Hint walks the trainee through questions, then the fault, then steps
func (t *TroubleshootingTracker) Hint() (models.Feedback, bool) {
	for _, q := range t.def.Diagnostics {
		if !t.answered[q.ID] {
			return models.Feedback{Message: "Answer: " + q.Prompt, Description: q.Prompt}, true
		}
	}
	if t.def.Fault != nil && !t.repaired {
		return models.Feedback{
			Message:     "Inspect terminations per " + t.def.Fault.Code,
			Description: t.def.Fault.Description,
			Code:        t.def.Fault.Code,
		}, true
	}
	return t.seq.hint()
}
