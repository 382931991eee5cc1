// Package scoring maps tracker counters, elapsed time and mode into a 0-100
// score with a breakdown of the counters used. Every function here is pure.
package scoring

import (
	"math"
	"time"

	"github.com/terra-clan/training-engine/internal/models"
)

// Maximum time bonus per formula
const (
	ViolationTimeBonus       = 10
	GenericStepTimeBonus     = 5
	MeasurementTimeBonus     = 10
	TroubleshootingTimeBonus = 10

	FalsePositivePenalty = 10
	MaxGenericBonus      = 10
)

// Timing describes how long a session ran against its limit
type Timing struct {
	Mode    models.Mode
	Elapsed time.Duration
	Limit   time.Duration
}

// TimeBonus returns max if less than half the limit elapsed, max/2 if less
// than three quarters elapsed, else 0. Only test mode with a limit earns it.
func TimeBonus(t Timing, max float64) float64 {
	if t.Mode != models.ModeTest || t.Limit <= 0 {
		return 0
	}
	used := float64(t.Elapsed) / float64(t.Limit)
	switch {
	case used < 0.5:
		return max
	case used < 0.75:
		return max / 2
	default:
		return 0
	}
}

// Ratio returns part/whole, 0 when whole is 0, clamped to [0,1]
func Ratio(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return clamp(part/whole, 0, 1)
}

// Finalize clamps raw to [0,100] and rounds it
func Finalize(raw float64) int {
	return int(math.Round(clamp(raw, 0, 100)))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// ViolationInput are the counters of a violation-identification tracker
type ViolationInput struct {
	Total          int
	Found          int
	FalsePositives int
}

// Violation scores foundRatio*100 - falsePositives*10 + timeBonus
func Violation(in ViolationInput, t Timing) models.ScoreBreakdown {
	found := Ratio(float64(in.Found), float64(in.Total))
	penalty := float64(in.FalsePositives * FalsePositivePenalty)
	bonus := TimeBonus(t, ViolationTimeBonus)
	raw := found*100 - penalty + bonus

	return models.ScoreBreakdown{
		Type: models.TaskViolation,
		Violation: &models.ViolationBreakdown{
			Total:          in.Total,
			Found:          in.Found,
			FalsePositives: in.FalsePositives,
			FoundRatio:     found,
			Penalty:        penalty,
		},
		TimeBonus: bonus,
		Raw:       raw,
		Score:     Finalize(raw),
	}
}

// StepInput are the counters of an ordered-step tracker
type StepInput struct {
	Expected            []string // definition order
	Completed           []string // submission order
	WireGaugeCorrect    bool
	ConnectionQuality   float64
	ExpectedConnections int
	Bonus               float64
}

// InOrder counts completed positions that match the definition at the same index
func InOrder(expected, completed []string) int {
	n := 0
	for i, id := range completed {
		if i < len(expected) && expected[i] == id {
			n++
		}
	}
	return n
}

func stepCounters(in StepInput) *models.StepBreakdown {
	inOrder := InOrder(in.Expected, in.Completed)
	return &models.StepBreakdown{
		Total:               len(in.Expected),
		Completed:           len(in.Completed),
		InOrder:             inOrder,
		StepRatio:           Ratio(float64(len(in.Completed)), float64(len(in.Expected))),
		OrderRatio:          Ratio(float64(inOrder), float64(len(in.Completed))),
		WireGaugeCorrect:    in.WireGaugeCorrect,
		ConnectionQuality:   in.ConnectionQuality,
		ExpectedConnections: in.ExpectedConnections,
		QualityRatio:        Ratio(in.ConnectionQuality, float64(in.ExpectedConnections)),
	}
}

// OrderedStep scores stepRatio*50 + orderRatio*30 + gauge 10 + qualityRatio*10.
// No time bonus applies.
func OrderedStep(in StepInput, t Timing) models.ScoreBreakdown {
	sb := stepCounters(in)
	raw := sb.StepRatio*50 + sb.OrderRatio*30 + sb.QualityRatio*10
	if sb.WireGaugeCorrect {
		raw += 10
	}

	return models.ScoreBreakdown{
		Type:  models.TaskWiring,
		Steps: sb,
		Raw:   raw,
		Score: Finalize(raw),
	}
}

// GenericStep scores stepRatio*60 + orderRatio*25 + timeBonus(5) + clamp(bonus, 0, 10)
func GenericStep(in StepInput, t Timing) models.ScoreBreakdown {
	sb := stepCounters(in)
	sb.Bonus = clamp(in.Bonus, 0, MaxGenericBonus)
	bonus := TimeBonus(t, GenericStepTimeBonus)
	raw := sb.StepRatio*60 + sb.OrderRatio*25 + bonus + sb.Bonus

	return models.ScoreBreakdown{
		Type:      models.TaskProcedure,
		Steps:     sb,
		TimeBonus: bonus,
		Raw:       raw,
		Score:     Finalize(raw),
	}
}

// MeasurementInput are the counters of a measurement tracker
type MeasurementInput struct {
	Total           int
	Accuracies      []float64 // one per distinct measurement taken
	WithinTolerance int
}

// Measurement scores meanAccuracy*70 + completionRatio*20 + timeBonus(10)
func Measurement(in MeasurementInput, t Timing) models.ScoreBreakdown {
	var sum float64
	for _, a := range in.Accuracies {
		sum += clamp(a, 0, 1)
	}
	mean := Ratio(sum, float64(len(in.Accuracies)))
	completion := Ratio(float64(len(in.Accuracies)), float64(in.Total))
	bonus := TimeBonus(t, MeasurementTimeBonus)
	raw := mean*70 + completion*20 + bonus

	return models.ScoreBreakdown{
		Type: models.TaskMeasurement,
		Measurement: &models.MeasurementBreakdown{
			Total:           in.Total,
			Taken:           len(in.Accuracies),
			WithinTolerance: in.WithinTolerance,
			MeanAccuracy:    mean,
			CompletionRatio: completion,
		},
		TimeBonus: bonus,
		Raw:       raw,
		Score:     Finalize(raw),
	}
}

// Accuracy rates a reading: 1 within tolerance, otherwise it falls off
// linearly with the distance beyond tolerance relative to the target.
func Accuracy(actual, target, tolerance float64) float64 {
	diff := math.Abs(actual - target)
	if diff <= math.Abs(tolerance) {
		return 1
	}
	scale := math.Abs(target)
	if scale == 0 {
		return 0
	}
	return clamp(1-(diff-math.Abs(tolerance))/scale, 0, 1)
}

// TroubleshootingInput are the counters of a troubleshooting tracker
type TroubleshootingInput struct {
	DiagnosticPoints int
	DiagnosticTotal  int
	FaultIdentified  bool
	FaultRepaired    bool
	StepsTotal       int
	StepsCompleted   int
}

// Troubleshooting scores diagnosticRatio*30 + identified 25 + repaired 25 +
// stepRatio*10 + timeBonus(10)
func Troubleshooting(in TroubleshootingInput, t Timing) models.ScoreBreakdown {
	diag := Ratio(float64(in.DiagnosticPoints), float64(in.DiagnosticTotal))
	steps := Ratio(float64(in.StepsCompleted), float64(in.StepsTotal))
	bonus := TimeBonus(t, TroubleshootingTimeBonus)
	raw := diag*30 + steps*10 + bonus
	if in.FaultIdentified {
		raw += 25
	}
	if in.FaultRepaired {
		raw += 25
	}

	return models.ScoreBreakdown{
		Type: models.TaskTroubleshooting,
		Troubleshooting: &models.TroubleshootingBreakdown{
			DiagnosticPoints: in.DiagnosticPoints,
			DiagnosticTotal:  in.DiagnosticTotal,
			DiagnosticRatio:  diag,
			FaultIdentified:  in.FaultIdentified,
			FaultRepaired:    in.FaultRepaired,
			StepsTotal:       in.StepsTotal,
			StepsCompleted:   in.StepsCompleted,
			StepRatio:        steps,
		},
		TimeBonus: bonus,
		Raw:       raw,
		Score:     Finalize(raw),
	}
}
