package models

import "time"

// PassingScore is the minimum score for a passing result
const PassingScore = 80

// FinishReason records why a session ended
type FinishReason string

const (
	FinishCompleted FinishReason = "completed" // tracker reported all work done
	FinishRequested FinishReason = "requested" // trainee pressed finish
	FinishTimeUp    FinishReason = "time_up"   // test countdown reached zero
	FinishAbandoned FinishReason = "abandoned"
)

// TaskResult is the immutable outcome of one finished session
type TaskResult struct {
	SessionID      string         `json:"session_id"`
	TaskID         string         `json:"task_id"`
	TaskName       string         `json:"task_name"`
	TaskType       TaskType       `json:"task_type"`
	Mode           Mode           `json:"mode"`
	Score          int            `json:"score"`
	Passed         bool           `json:"passed"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	Codes          []CodeResult   `json:"codes"`
	BadgeID        string         `json:"badge_id,omitempty"`
	MasteryBadgeID string         `json:"mastery_badge_id,omitempty"`
	Elapsed        time.Duration  `json:"elapsed"`
	UsedHints      bool           `json:"used_hints"`
	Reason         FinishReason   `json:"reason"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// CodeResult is a per-code pass/fail entry for display
type CodeResult struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Passed bool   `json:"passed"`
}

// IsPassing returns true if score meets the passing threshold
func IsPassing(score int) bool {
	return score >= PassingScore
}

// ScoreBreakdown explains a score with the raw counters that produced it.
// Exactly one of the per-type sections is set.
type ScoreBreakdown struct {
	Type            TaskType                  `json:"type"`
	Violation       *ViolationBreakdown       `json:"violation,omitempty"`
	Steps           *StepBreakdown            `json:"steps,omitempty"`
	Measurement     *MeasurementBreakdown     `json:"measurement,omitempty"`
	Troubleshooting *TroubleshootingBreakdown `json:"troubleshooting,omitempty"`
	TimeBonus       float64                   `json:"time_bonus"`
	Raw             float64                   `json:"raw"`
	Score           int                       `json:"score"`
}

// ViolationBreakdown holds the counters of a violation-identification score
type ViolationBreakdown struct {
	Total          int     `json:"total"`
	Found          int     `json:"found"`
	FalsePositives int     `json:"false_positives"`
	FoundRatio     float64 `json:"found_ratio"`
	Penalty        float64 `json:"penalty"`
}

// StepBreakdown holds the counters of an ordered-step or generic-step score
type StepBreakdown struct {
	Total               int     `json:"total"`
	Completed           int     `json:"completed"`
	InOrder             int     `json:"in_order"`
	StepRatio           float64 `json:"step_ratio"`
	OrderRatio          float64 `json:"order_ratio"`
	WireGaugeCorrect    bool    `json:"wire_gauge_correct"`
	ConnectionQuality   float64 `json:"connection_quality"`
	ExpectedConnections int     `json:"expected_connections"`
	QualityRatio        float64 `json:"quality_ratio"`
	Bonus               float64 `json:"bonus"`
}

// MeasurementBreakdown holds the counters of a measurement score
type MeasurementBreakdown struct {
	Total           int     `json:"total"`
	Taken           int     `json:"taken"`
	WithinTolerance int     `json:"within_tolerance"`
	MeanAccuracy    float64 `json:"mean_accuracy"`
	CompletionRatio float64 `json:"completion_ratio"`
}

// TroubleshootingBreakdown holds the counters of a troubleshooting score
type TroubleshootingBreakdown struct {
	DiagnosticPoints int     `json:"diagnostic_points"`
	DiagnosticTotal  int     `json:"diagnostic_total"`
	DiagnosticRatio  float64 `json:"diagnostic_ratio"`
	FaultIdentified  bool    `json:"fault_identified"`
	FaultRepaired    bool    `json:"fault_repaired"`
	StepsTotal       int     `json:"steps_total"`
	StepsCompleted   int     `json:"steps_completed"`
	StepRatio        float64 `json:"step_ratio"`
}

// MeasurementResult is one reading taken during a measurement task
type MeasurementResult struct {
	ID       string  `json:"id"`
	Actual   float64 `json:"actual"`
	Target   float64 `json:"target"`
	Accuracy float64 `json:"accuracy"` // 0..1
	InRange  bool    `json:"in_range"`
}
