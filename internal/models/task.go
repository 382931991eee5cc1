package models

import "time"

// TaskType selects the tracker variant and scoring formula for a task
type TaskType string

const (
	TaskViolation       TaskType = "violation"       // find code violations in a scene
	TaskWiring          TaskType = "wiring"          // ordered steps with gauge and connection quality
	TaskProcedure       TaskType = "procedure"       // simple linear procedure
	TaskMeasurement     TaskType = "measurement"     // meter readings against targets
	TaskTroubleshooting TaskType = "troubleshooting" // diagnose, identify and repair a fault
)

// Valid reports whether t is a known task type
func (t TaskType) Valid() bool {
	switch t {
	case TaskViolation, TaskWiring, TaskProcedure, TaskMeasurement, TaskTroubleshooting:
		return true
	}
	return false
}

// Mode is the training mode a session runs in
type Mode string

const (
	ModeLearn    Mode = "learn"    // no scoring pressure
	ModePractice Mode = "practice" // feedback on mistakes, hints available
	ModeTest     Mode = "test"     // timed, strict, badge eligible
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeLearn || m == ModePractice || m == ModeTest
}

// EarnsBadges returns true if a passing result in this mode awards the task badge
func (m Mode) EarnsBadges() bool {
	return m == ModePractice || m == ModeTest
}

// AllowsHints returns true if the trainee may request hints in this mode
func (m Mode) AllowsHints() bool {
	return m == ModeLearn || m == ModePractice
}

// Severity classifies how serious a code violation is
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityStandard Severity = "standard"
	SeverityCritical Severity = "critical"
)

// TaskDefinition is an immutable task template shared by every session that references it
type TaskDefinition struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Description  string                  `json:"description"`
	Type         TaskType                `json:"type"`
	Difficulty   int                     `json:"difficulty"` // 1..3
	TimeLimit    time.Duration           `json:"time_limit"`
	XPReward     int                     `json:"xp_reward"`
	Steps        []StepDefinition        `json:"steps,omitempty"`
	Violations   []ViolationDefinition   `json:"violations,omitempty"`
	Measurements []MeasurementDefinition `json:"measurements,omitempty"`
	Diagnostics  []DiagnosticDefinition  `json:"diagnostics,omitempty"`
	Fault        *FaultDefinition        `json:"fault,omitempty"`
	Wiring       *WiringSpec             `json:"wiring,omitempty"`

	BadgeID          string `json:"badge_id"`
	BadgeName        string `json:"badge_name"`
	MasteryBadgeID   string `json:"mastery_badge_id,omitempty"`
	MasteryBadgeName string `json:"mastery_badge_name,omitempty"`
}

// Step returns the step definition with the given id
func (d *TaskDefinition) Step(id string) (StepDefinition, bool) {
	for _, s := range d.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return StepDefinition{}, false
}

// Violation returns the violation definition with the given id
func (d *TaskDefinition) Violation(id string) (ViolationDefinition, bool) {
	for _, v := range d.Violations {
		if v.ID == id {
			return v, true
		}
	}
	return ViolationDefinition{}, false
}

// Measurement returns the measurement definition with the given id
func (d *TaskDefinition) Measurement(id string) (MeasurementDefinition, bool) {
	for _, m := range d.Measurements {
		if m.ID == id {
			return m, true
		}
	}
	return MeasurementDefinition{}, false
}

// Diagnostic returns the diagnostic question with the given id
func (d *TaskDefinition) Diagnostic(id string) (DiagnosticDefinition, bool) {
	for _, q := range d.Diagnostics {
		if q.ID == id {
			return q, true
		}
	}
	return DiagnosticDefinition{}, false
}

// ViolationDefinition is a planted code violation
type ViolationDefinition struct {
	ID          string   `json:"id"`
	Code        string   `json:"code"` // e.g. "NEC 110.26(A)"
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// StepDefinition is one step of an ordered procedure
type StepDefinition struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Code        string `json:"code,omitempty"`
}

// MeasurementDefinition is a reading the trainee must take
type MeasurementDefinition struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Unit      string  `json:"unit"`
	Target    float64 `json:"target"`
	Tolerance float64 `json:"tolerance"`
	Code      string  `json:"code,omitempty"`
}

// DiagnosticDefinition is a troubleshooting question worth a number of points
type DiagnosticDefinition struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	Answer string `json:"-"`
	Points int    `json:"points"`
}

// FaultDefinition is the hidden fault of a troubleshooting task
type FaultDefinition struct {
	ID          string `json:"id"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description"`
}

// WiringSpec holds the auxiliary requirements of a wiring task
type WiringSpec struct {
	Gauge       string `json:"gauge"`       // e.g. "12 AWG"
	Connections int    `json:"connections"` // terminations scored for quality
}
