package models

import "time"

// Badge tiers
const (
	TierTask      = 1 // awarded for passing a task
	TierMastery   = 2 // awarded for passing a task in test mode
	TierComposite = 3 // derived from other badges
)

// Badge is a persistent achievement record. There is at most one badge per ID.
type Badge struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SourceTaskID string    `json:"source_task_id,omitempty"`
	Score        int       `json:"score"`
	AwardedAt    time.Time `json:"awarded_at"`
	Tier         int       `json:"tier"`
}
