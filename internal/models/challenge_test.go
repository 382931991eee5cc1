package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeTypeText(t *testing.T) {
	var c DailyChallenge
	require.NoError(t, json.Unmarshal([]byte(`{"type":"speed-run"}`), &c))
	assert.Equal(t, ChallengeSpeedRun, c.Type)

	out, err := json.Marshal(DailyChallenge{Type: ChallengeDistinctTypes})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"type":"distinct-types"`)
}

func TestChallengeTypeRejectsUnknownSlug(t *testing.T) {
	var c DailyChallenge
	err := json.Unmarshal([]byte(`{"type":"night-shift"}`), &c)
	assert.ErrorContains(t, err, "night-shift")
}
