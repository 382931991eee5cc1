package models

import (
	"time"
)

// SessionState represents the lifecycle state of the task orchestrator
type SessionState string

const (
	SessionIdle     SessionState = "idle"     // No session, ready to start one
	SessionActive   SessionState = "active"   // Trainee is working, timer ticking in test mode
	SessionFinished SessionState = "finished" // Result is being delivered
)

// IsActive returns true if a session is in progress
func (s SessionState) IsActive() bool {
	return s == SessionActive
}

// SessionStatus is a point-in-time snapshot of the active session
type SessionStatus struct {
	State      SessionState  `json:"state"`
	SessionID  string        `json:"session_id,omitempty"`
	TaskID     string        `json:"task_id,omitempty"`
	TaskName   string        `json:"task_name,omitempty"`
	TaskType   TaskType      `json:"task_type,omitempty"`
	Mode       Mode          `json:"mode,omitempty"`
	Completion float64       `json:"completion"`
	Score      int           `json:"score"`
	Elapsed    time.Duration `json:"elapsed"`
	Remaining  time.Duration `json:"remaining,omitempty"`
	TimerArmed bool          `json:"timer_armed"`
	UsedHints  bool          `json:"used_hints"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
}

// StartSessionRequest represents a request to start a task session
type StartSessionRequest struct {
	TaskID string `json:"task_id" validate:"required"`
	Mode   Mode   `json:"mode" validate:"required,oneof=learn practice test"`
}

// ActionRequest carries a discrete trainee event for the active session.
// Which fields are read depends on the action.
type ActionRequest struct {
	ID      string  `json:"id"`
	Value   float64 `json:"value,omitempty"`
	Answer  string  `json:"answer,omitempty"`
	Gauge   string  `json:"gauge,omitempty"`
	Quality float64 `json:"quality,omitempty"`
	Points  float64 `json:"points,omitempty"`
}

// ActionResponse reports the outcome of a trainee event
type ActionResponse struct {
	Accepted    bool               `json:"accepted"`
	Outcome     string             `json:"outcome"`
	Feedback    *Feedback          `json:"feedback,omitempty"`
	Measurement *MeasurementResult `json:"measurement,omitempty"`
	Status      SessionStatus      `json:"status"`
	Result      *TaskResult        `json:"result,omitempty"`
}

// StartSessionResponse identifies the session just started
type StartSessionResponse struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
}

// Feedback is shown to the trainee after a rejected action in practice mode
type Feedback struct {
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`
}
