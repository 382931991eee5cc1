// Package tracker holds the per-session mutable progress of a trainee
// against one task definition. Each task type has its own variant; the
// orchestrator discovers what a variant can do through the capability
// interfaces below.
package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/terra-clan/training-engine/internal/models"
	"github.com/terra-clan/training-engine/internal/scoring"
)

var ErrUnsupportedType = errors.New("unsupported task type")

// Tracker is implemented by every variant
type Tracker interface {
	Initialize(def *models.TaskDefinition, mode models.Mode)
	Reset()
	// CompletionPercentage is 0..100 and never decreases within a session
	CompletionPercentage() float64
	Score(elapsed time.Duration) int
	Breakdown(elapsed time.Duration) models.ScoreBreakdown
	BuildResult(elapsed time.Duration) models.TaskResult
	// Done reports that all work is finished and the session may end
	Done() bool
}

// Identifier taps violations in a scene
type Identifier interface {
	Identify(id string) Outcome
}

// StepCompleter performs procedure steps
type StepCompleter interface {
	CompleteStep(id string) Outcome
}

// Measurer records meter readings
type Measurer interface {
	Measure(id string, value float64) Outcome
}

// Wirer tracks gauge selection and termination quality
type Wirer interface {
	SelectGauge(gauge string) Outcome
	RecordConnection(quality float64) Outcome
}

// Bonuser accumulates task-specific bonus points
type Bonuser interface {
	AddBonus(points float64) Outcome
}

// Diagnoser answers troubleshooting questions and fixes the fault
type Diagnoser interface {
	AnswerDiagnostic(id, answer string) Outcome
	IdentifyFault(id string) Outcome
	RepairFault() Outcome
}

// Hinter suggests the next piece of work
type Hinter interface {
	Hint() (models.Feedback, bool)
}

// Outcome labels
const (
	OutcomeConfirmed           = "confirmed"
	OutcomeAlreadyFound        = "already_found"
	OutcomeFalsePositive       = "false_positive"
	OutcomeRepeatFalsePositive = "repeat_false_positive"
	OutcomeAccepted            = "accepted"
	OutcomeOutOfOrder          = "out_of_order"
	OutcomeUnknown             = "unknown"
	OutcomeAllDone             = "all_done"
	OutcomeRecorded            = "recorded"
	OutcomeCorrect             = "correct"
	OutcomeIncorrect           = "incorrect"
	OutcomeAlreadyAnswered     = "already_answered"
	OutcomeNotIdentified       = "fault_not_identified"
	OutcomeRejected            = "rejected"
)

// Outcome is the result of a single trainee event
type Outcome struct {
	Accepted    bool
	Code        string
	Expected    *models.StepDefinition      // practice mode feedback on a mismatch
	Measurement *models.MeasurementResult   // the stored reading
	Violation   *models.ViolationDefinition // the confirmed violation
}

func rejected(code string) Outcome {
	return Outcome{Code: code}
}

func accepted(code string) Outcome {
	return Outcome{Accepted: true, Code: code}
}

// New returns an uninitialized tracker for a task type
func New(t models.TaskType) (Tracker, error) {
	switch t {
	case models.TaskViolation:
		return &ViolationTracker{}, nil
	case models.TaskWiring:
		return &WiringTracker{}, nil
	case models.TaskProcedure:
		return &ProcedureTracker{}, nil
	case models.TaskMeasurement:
		return &MeasurementTracker{}, nil
	case models.TaskTroubleshooting:
		return &TroubleshootingTracker{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
}

// ForDefinition builds and initializes the tracker matching def.Type
func ForDefinition(def *models.TaskDefinition, mode models.Mode) (Tracker, error) {
	tr, err := New(def.Type)
	if err != nil {
		return nil, err
	}
	tr.Initialize(def, mode)
	return tr, nil
}

// base carries what every variant shares
type base struct {
	def  *models.TaskDefinition
	mode models.Mode
}

func (b *base) timing(elapsed time.Duration) scoring.Timing {
	return scoring.Timing{Mode: b.mode, Elapsed: elapsed, Limit: b.def.TimeLimit}
}

func (b *base) result(bd models.ScoreBreakdown, codes []models.CodeResult, elapsed time.Duration) models.TaskResult {
	return models.TaskResult{
		TaskID:    b.def.ID,
		TaskName:  b.def.Name,
		TaskType:  b.def.Type,
		Mode:      b.mode,
		Score:     bd.Score,
		Passed:    models.IsPassing(bd.Score),
		Breakdown: bd,
		Codes:     codes,
		Elapsed:   elapsed,
	}
}

func percent(part, whole int) float64 {
	return scoring.Ratio(float64(part), float64(whole)) * 100
}
