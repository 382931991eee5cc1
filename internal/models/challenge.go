package models

import "fmt"

// ChallengeType is one of the five daily challenge categories. The numeric
// value is the index selected by dayOfYear mod 5.
type ChallengeType int

const (
	ChallengeHintFree       ChallengeType = iota // complete N tasks without hints
	ChallengeHighScores                          // N results in a row scoring 90+
	ChallengeSpeedRun                            // pass a task in under two minutes
	ChallengeDailyXP                             // earn N XP today
	ChallengeDistinctTypes                       // pass N different task types
	challengeTypeCount
)

// ChallengeTypeCount is the number of challenge categories
const ChallengeTypeCount = int(challengeTypeCount)

var challengeSlugs = [...]string{
	ChallengeHintFree:      "hint-free",
	ChallengeHighScores:    "high-scores",
	ChallengeSpeedRun:      "speed-run",
	ChallengeDailyXP:       "daily-xp",
	ChallengeDistinctTypes: "distinct-types",
}

// String returns the stable slug used in challenge ids
func (t ChallengeType) String() string {
	if t < 0 || int(t) >= len(challengeSlugs) {
		return "unknown"
	}
	return challengeSlugs[t]
}

// MarshalText encodes the type as its slug
func (t ChallengeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a slug. Unknown slugs are an error so a checkpoint
// from a newer build is discarded rather than restored as another type.
func (t *ChallengeType) UnmarshalText(b []byte) error {
	for i, s := range challengeSlugs {
		if s == string(b) {
			*t = ChallengeType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown challenge type %q", string(b))
}

// DailyChallenge is the single cross-task goal for one calendar day
type DailyChallenge struct {
	ID            string        `json:"id"`
	Description   string        `json:"description"`
	Type          ChallengeType `json:"type"`
	Target        int           `json:"target"`
	Progress      int           `json:"progress"`
	XPBonus       int           `json:"xp_bonus"`
	Complete      bool          `json:"complete"`
	DateGenerated string        `json:"date_generated"` // YYYY-MM-DD
}
