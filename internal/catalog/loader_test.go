package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/training-engine/internal/models"
	"github.com/terra-clan/training-engine/tasks"
)

func TestLoadBuiltinCatalog(t *testing.T) {
	loader := NewLoader()
	require.NoError(t, loader.LoadFS(tasks.FS))

	assert.Equal(t, 7, loader.Len())
	assert.Equal(t, []string{
		"circuit-troubleshooting",
		"conduit-bending",
		"gfci-install",
		"lockout-tagout",
		"outlet-wiring",
		"panel-inspection",
		"voltage-testing",
	}, loader.IDs())

	panel, err := loader.Get("panel-inspection")
	require.NoError(t, err)
	assert.Equal(t, models.TaskViolation, panel.Type)
	assert.Len(t, panel.Violations, 4)
	assert.Equal(t, 5*time.Minute, panel.TimeLimit)
	assert.Equal(t, "panel-inspector", panel.BadgeID)
	assert.Equal(t, "panel-inspector-master", panel.MasteryBadgeID)

	wiring, err := loader.Get("outlet-wiring")
	require.NoError(t, err)
	require.NotNil(t, wiring.Wiring)
	assert.Equal(t, "12 AWG", wiring.Wiring.Gauge)
	assert.Len(t, wiring.Steps, 6)

	ts, err := loader.Get("circuit-troubleshooting")
	require.NoError(t, err)
	require.NotNil(t, ts.Fault)
	q, ok := ts.Diagnostic("upstream-reading")
	require.True(t, ok)
	assert.Equal(t, "120", q.Answer)

	for _, def := range loader.List() {
		assert.NotEmpty(t, def.MasteryBadgeID, def.ID)
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	writeTask(t, dir, "a.yaml", `
id: meter-check
name: Meter Check
type: measurement
difficulty: 1
badge: {id: meter-check-badge, name: Meter Check}
measurements:
  - {id: m1, target: 120, tolerance: 3}
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	loader := NewLoader()
	require.NoError(t, loader.LoadFromDir(dir))

	def, err := loader.Get("meter-check")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeLimit, def.TimeLimit)
	assert.Equal(t, 1, loader.Len())
}

func TestGetUnknownTask(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Get("nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string]string{
		"unknown type": `
id: x
name: X
type: dance
difficulty: 1
badge: {id: b}
`,
		"violation task without violations": `
id: x
name: X
type: violation
difficulty: 1
badge: {id: b}
`,
		"wiring task without wiring block": `
id: x
name: X
type: wiring
difficulty: 1
badge: {id: b}
steps:
  - {id: s1, description: one}
`,
		"duplicate step": `
id: x
name: X
type: procedure
difficulty: 1
badge: {id: b}
steps:
  - {id: s1, description: one}
  - {id: s1, description: again}
`,
		"missing badge": `
id: x
name: X
type: procedure
difficulty: 1
steps:
  - {id: s1, description: one}
`,
		"bad severity": `
id: x
name: X
type: violation
difficulty: 1
badge: {id: b}
violations:
  - {id: v1, code: NEC 1, severity: catastrophic}
`,
		"bad time limit": `
id: x
name: X
type: procedure
difficulty: 1
time_limit: soon
badge: {id: b}
steps:
  - {id: s1, description: one}
`,
		"difficulty out of range": `
id: x
name: X
type: procedure
difficulty: 9
badge: {id: b}
steps:
  - {id: s1, description: one}
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidTask)
		})
	}
}

func TestLoadFailsOnBrokenFile(t *testing.T) {
	dir := t.TempDir()
	writeTask(t, dir, "broken.yaml", "id: [unterminated")

	loader := NewLoader()
	assert.Error(t, loader.LoadFromDir(dir))
	assert.Zero(t, loader.Len())
}

func TestLoadIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	writeTask(t, dir, "a.yaml", `
id: meter-check
name: Meter Check
type: measurement
difficulty: 1
badge: {id: meter-check-badge, name: Meter Check}
measurements:
  - {id: m1, target: 120, tolerance: 3}
`)
	writeTask(t, dir, "b.yaml", "id: [unterminated")

	loader := NewLoader()
	require.Error(t, loader.LoadFromDir(dir))
	assert.Zero(t, loader.Len())
	_, err := loader.Get("meter-check")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestLoadRejectsSharedBadgeID(t *testing.T) {
	dir := t.TempDir()
	writeTask(t, dir, "a.yaml", `
id: meter-check
name: Meter Check
type: measurement
difficulty: 1
badge: {id: meter-badge, name: Meter}
measurements:
  - {id: m1, target: 120, tolerance: 3}
`)
	writeTask(t, dir, "b.yaml", `
id: meter-check-two
name: Meter Check Two
type: measurement
difficulty: 1
badge: {id: meter-badge, name: Meter Again}
measurements:
  - {id: m1, target: 240, tolerance: 5}
`)

	loader := NewLoader()
	assert.ErrorIs(t, loader.LoadFromDir(dir), ErrDuplicateBadge)
	assert.Zero(t, loader.Len())
}

func TestAddRejectsSharedBadgeID(t *testing.T) {
	loader := NewLoader()
	require.NoError(t, loader.Add(&models.TaskDefinition{
		ID: "first", Type: models.TaskProcedure, BadgeID: "shared",
		Steps: []models.StepDefinition{{ID: "s1"}},
	}))

	err := loader.Add(&models.TaskDefinition{
		ID: "second", Type: models.TaskProcedure, BadgeID: "other", MasteryBadgeID: "shared",
		Steps: []models.StepDefinition{{ID: "s1"}},
	})
	assert.ErrorIs(t, err, ErrDuplicateBadge)

	err = loader.Add(&models.TaskDefinition{
		ID: "third", Type: models.TaskProcedure, BadgeID: "same", MasteryBadgeID: "same",
		Steps: []models.StepDefinition{{ID: "s1"}},
	})
	assert.ErrorIs(t, err, ErrDuplicateBadge)
	assert.Equal(t, 1, loader.Len())
}

func TestAddRejectsDuplicate(t *testing.T) {
	loader := NewLoader()
	def := &models.TaskDefinition{
		ID:      "dup",
		Type:    models.TaskProcedure,
		BadgeID: "dup-badge",
		Steps:   []models.StepDefinition{{ID: "s1"}},
	}
	require.NoError(t, loader.Add(def))
	assert.ErrorIs(t, loader.Add(def), ErrDuplicateTask)
}

func writeTask(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}
