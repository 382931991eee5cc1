package models

import "time"

// CareerTier is derived from cumulative XP
type CareerTier string

const (
	TierApprentice CareerTier = "apprentice"
	TierJourneyman CareerTier = "journeyman"
	TierMaster     CareerTier = "master"
)

// Priority of a work order
type Priority string

const (
	PriorityUrgent   Priority = "urgent"
	PriorityNormal   Priority = "normal"
	PriorityFlexible Priority = "flexible"
)

// DayPhase is the phase of the in-game work day
type DayPhase string

const (
	PhaseMorningBriefing DayPhase = "morning_briefing"
	PhaseOnSite          DayPhase = "on_site"
	PhaseBetweenJobs     DayPhase = "between_jobs"
	PhaseEndOfDay        DayPhase = "end_of_day"
)

// WorkOrder is a single-use job assignment bound to one task
type WorkOrder struct {
	ID              string   `json:"id"`
	Customer        string   `json:"customer"`
	Address         string   `json:"address"`
	TaskID          string   `json:"task_id"`
	Priority        Priority `json:"priority"`
	XPReward        int      `json:"xp_reward"`
	BonusMultiplier float64  `json:"bonus_multiplier"`
	SiteType        string   `json:"site_type"`
}

// DailyStats aggregates the work done during one day
type DailyStats struct {
	JobsCompleted int           `json:"jobs_completed"`
	JobsPassed    int           `json:"jobs_passed"`
	XPEarned      int           `json:"xp_earned"`
	BonusXP       int           `json:"bonus_xp"`
	BestScore     int           `json:"best_score"`
	FastestTime   time.Duration `json:"fastest_time"`
	TaskTypes     []TaskType    `json:"task_types"`
}

// HasTaskType reports whether a job of type t was completed today
func (s *DailyStats) HasTaskType(t TaskType) bool {
	for _, existing := range s.TaskTypes {
		if existing == t {
			return true
		}
	}
	return false
}

// DayState is the persisted state of the current work day
type DayState struct {
	Number      int         `json:"number"`
	Phase       DayPhase    `json:"phase"`
	Orders      []WorkOrder `json:"orders"`
	ActiveOrder *WorkOrder  `json:"active_order,omitempty"`
	Stats       DailyStats  `json:"stats"`
	Ended       bool        `json:"ended"`
	StartedAt   time.Time   `json:"started_at"`
}

// PlayerProgress is the long-lived career record of a trainee
type PlayerProgress struct {
	TotalXP             int                     `json:"total_xp"`
	DaysCompleted       int                     `json:"days_completed"`
	CurrentDayStreak    int                     `json:"current_day_streak"`
	BestScores          map[string]map[Mode]int `json:"best_scores"`
	CompletedChallenges []string                `json:"completed_challenges"`
}

// BestScore returns the best score for a task in a mode
func (p *PlayerProgress) BestScore(taskID string, mode Mode) int {
	return p.BestScores[taskID][mode]
}

// RecordScore keeps the higher of the stored and given score
func (p *PlayerProgress) RecordScore(taskID string, mode Mode, score int) {
	if p.BestScores == nil {
		p.BestScores = make(map[string]map[Mode]int)
	}
	if p.BestScores[taskID] == nil {
		p.BestScores[taskID] = make(map[Mode]int)
	}
	if score > p.BestScores[taskID][mode] {
		p.BestScores[taskID][mode] = score
	}
}

// HasCompletedChallenge reports whether the challenge id was completed
func (p *PlayerProgress) HasCompletedChallenge(id string) bool {
	for _, c := range p.CompletedChallenges {
		if c == id {
			return true
		}
	}
	return false
}

// AcceptOrderResponse is returned when a work order is accepted
type AcceptOrderResponse struct {
	Order     WorkOrder `json:"order"`
	SessionID string    `json:"session_id"`
}

// ProgressResponse is the career record with its derived tier
type ProgressResponse struct {
	Progress PlayerProgress `json:"progress"`
	Tier     CareerTier     `json:"tier"`
}
