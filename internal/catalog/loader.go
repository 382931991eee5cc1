// Package catalog loads immutable task definitions from YAML and serves
// them by id.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/terra-clan/training-engine/internal/models"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrDuplicateTask  = errors.New("duplicate task id")
	ErrInvalidTask    = errors.New("invalid task definition")
	ErrDuplicateBadge = errors.New("duplicate badge id")
)

// DefaultTimeLimit applies when a task file has no time_limit
const DefaultTimeLimit = 10 * time.Minute

var validate = validator.New()

// Loader manages loading and caching of task definitions
type Loader struct {
	mu    sync.RWMutex
	tasks map[string]*models.TaskDefinition
}

// NewLoader creates an empty loader
func NewLoader() *Loader {
	return &Loader{
		tasks: make(map[string]*models.TaskDefinition),
	}
}

// LoadFromDir loads every YAML task file in a directory
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading tasks from directory", "dir", dir)
	return l.LoadFS(os.DirFS(dir))
}

// LoadFS loads every *.yaml / *.yml file at the root of fsys. A broken file
// fails the whole load so a partial catalog never reaches a session.
func (l *Loader) LoadFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	var staged []*models.TaskDefinition
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		def, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}
		staged = append(staged, def)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// check the whole batch before committing any of it
	pending := make([]*models.TaskDefinition, 0, len(staged))
	for _, def := range staged {
		if err := l.conflict(def, pending); err != nil {
			return err
		}
		pending = append(pending, def)
	}
	for _, def := range staged {
		l.tasks[def.ID] = def
		slog.Debug("task loaded", "task_id", def.ID, "type", def.Type)
	}

	slog.Info("tasks loaded", "count", len(staged))
	return nil
}

// Parse decodes and validates a single task definition
func Parse(data []byte) (*models.TaskDefinition, error) {
	var tf taskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate.Struct(tf); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTask, describe(err))
	}

	timeLimit := DefaultTimeLimit
	if tf.TimeLimit != "" {
		d, err := time.ParseDuration(tf.TimeLimit)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: bad time_limit %q", ErrInvalidTask, tf.TimeLimit)
		}
		timeLimit = d
	}

	def := &models.TaskDefinition{
		ID:               tf.ID,
		Name:             tf.Name,
		Description:      tf.Description,
		Type:             models.TaskType(tf.Type),
		Difficulty:       tf.Difficulty,
		TimeLimit:        timeLimit,
		XPReward:         tf.XPReward,
		BadgeID:          tf.Badge.ID,
		BadgeName:        tf.Badge.Name,
		MasteryBadgeID:   tf.Mastery.ID,
		MasteryBadgeName: tf.Mastery.Name,
	}

	for _, s := range tf.Steps {
		def.Steps = append(def.Steps, models.StepDefinition{ID: s.ID, Description: s.Description, Code: s.Code})
	}
	for _, v := range tf.Violations {
		def.Violations = append(def.Violations, models.ViolationDefinition{
			ID: v.ID, Code: v.Code, Description: v.Description, Severity: models.Severity(v.Severity),
		})
	}
	for _, m := range tf.Measurements {
		def.Measurements = append(def.Measurements, models.MeasurementDefinition{
			ID: m.ID, Label: m.Label, Unit: m.Unit, Target: m.Target, Tolerance: m.Tolerance, Code: m.Code,
		})
	}
	for _, q := range tf.Diagnostics {
		def.Diagnostics = append(def.Diagnostics, models.DiagnosticDefinition{
			ID: q.ID, Prompt: q.Prompt, Answer: q.Answer, Points: q.Points,
		})
	}
	if tf.Fault != nil {
		def.Fault = &models.FaultDefinition{ID: tf.Fault.ID, Code: tf.Fault.Code, Description: tf.Fault.Description}
	}
	if tf.Wiring != nil {
		def.Wiring = &models.WiringSpec{Gauge: tf.Wiring.Gauge, Connections: tf.Wiring.Connections}
	}

	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

// Validate checks the per-type requirements of a definition
func Validate(def *models.TaskDefinition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTask)
	}
	if !def.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTask, def.Type)
	}
	if def.BadgeID == "" {
		return fmt.Errorf("%w: badge id is required", ErrInvalidTask)
	}

	switch def.Type {
	case models.TaskViolation:
		if len(def.Violations) == 0 {
			return fmt.Errorf("%w: violation task needs violations", ErrInvalidTask)
		}
	case models.TaskWiring:
		if len(def.Steps) == 0 || def.Wiring == nil {
			return fmt.Errorf("%w: wiring task needs steps and a wiring block", ErrInvalidTask)
		}
	case models.TaskProcedure:
		if len(def.Steps) == 0 {
			return fmt.Errorf("%w: procedure task needs steps", ErrInvalidTask)
		}
	case models.TaskMeasurement:
		if len(def.Measurements) == 0 {
			return fmt.Errorf("%w: measurement task needs measurements", ErrInvalidTask)
		}
	case models.TaskTroubleshooting:
		if def.Fault == nil || len(def.Diagnostics) == 0 {
			return fmt.Errorf("%w: troubleshooting task needs a fault and diagnostics", ErrInvalidTask)
		}
	}

	ids := make([]string, 0, len(def.Steps)+len(def.Violations)+len(def.Measurements)+len(def.Diagnostics))
	for _, s := range def.Steps {
		ids = append(ids, "step:"+s.ID)
	}
	for _, v := range def.Violations {
		ids = append(ids, "violation:"+v.ID)
	}
	for _, m := range def.Measurements {
		ids = append(ids, "measurement:"+m.ID)
	}
	for _, q := range def.Diagnostics {
		ids = append(ids, "diagnostic:"+q.ID)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("%w: duplicate %s", ErrInvalidTask, id)
		}
		seen[id] = true
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", e.Namespace(), e.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// Get retrieves a task definition by id
func (l *Loader) Get(id string) (*models.TaskDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	def, ok := l.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return def, nil
}

// List returns all loaded definitions sorted by difficulty then id
func (l *Loader) List() []*models.TaskDefinition {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.TaskDefinition, 0, len(l.tasks))
	for _, def := range l.tasks {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Difficulty != result[j].Difficulty {
			return result[i].Difficulty < result[j].Difficulty
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// IDs returns the sorted ids of all loaded tasks
func (l *Loader) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.tasks))
	for id := range l.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of loaded tasks
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tasks)
}

// Add programmatically adds a validated definition
func (l *Loader) Add(def *models.TaskDefinition) error {
	if err := Validate(def); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.conflict(def, nil); err != nil {
		return err
	}
	l.tasks[def.ID] = def

	slog.Debug("task loaded", "task_id", def.ID, "type", def.Type)
	return nil
}

// conflict reports a task or badge id already used by a loaded or pending
// definition. Caller holds l.mu.
func (l *Loader) conflict(def *models.TaskDefinition, pending []*models.TaskDefinition) error {
	if _, exists := l.tasks[def.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, def.ID)
	}
	owners := make(map[string]string)
	claim := func(other *models.TaskDefinition) {
		for _, id := range []string{other.BadgeID, other.MasteryBadgeID} {
			if id != "" {
				owners[id] = other.ID
			}
		}
	}
	for _, other := range l.tasks {
		claim(other)
	}
	for _, other := range pending {
		if other.ID == def.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, def.ID)
		}
		claim(other)
	}
	if def.MasteryBadgeID != "" && def.MasteryBadgeID == def.BadgeID {
		return fmt.Errorf("%w: %s uses %q as both badge and mastery badge", ErrDuplicateBadge, def.ID, def.BadgeID)
	}
	for _, id := range []string{def.BadgeID, def.MasteryBadgeID} {
		if owner, taken := owners[id]; id != "" && taken {
			return fmt.Errorf("%w: %q is already awarded by %s", ErrDuplicateBadge, id, owner)
		}
	}
	return nil
}

// --- YAML file structs ---

type taskFile struct {
	ID           string            `yaml:"id" validate:"required"`
	Name         string            `yaml:"name" validate:"required"`
	Description  string            `yaml:"description"`
	Type         string            `yaml:"type" validate:"required,oneof=violation wiring procedure measurement troubleshooting"`
	Difficulty   int               `yaml:"difficulty" validate:"min=1,max=3"`
	TimeLimit    string            `yaml:"time_limit"`
	XPReward     int               `yaml:"xp_reward" validate:"gte=0"`
	Badge        badgeFile         `yaml:"badge"`
	Mastery      badgeFile         `yaml:"mastery_badge"`
	Steps        []stepFile        `yaml:"steps" validate:"dive"`
	Violations   []violationFile   `yaml:"violations" validate:"dive"`
	Measurements []measurementFile `yaml:"measurements" validate:"dive"`
	Diagnostics  []diagnosticFile  `yaml:"diagnostics" validate:"dive"`
	Fault        *faultFile        `yaml:"fault"`
	Wiring       *wiringFile       `yaml:"wiring"`
}

type badgeFile struct {
	ID   string `yaml:"id" validate:"required_with=Name"`
	Name string `yaml:"name"`
}

type stepFile struct {
	ID          string `yaml:"id" validate:"required"`
	Description string `yaml:"description" validate:"required"`
	Code        string `yaml:"code"`
}

type violationFile struct {
	ID          string `yaml:"id" validate:"required"`
	Code        string `yaml:"code" validate:"required"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity" validate:"required,oneof=minor standard critical"`
}

type measurementFile struct {
	ID        string  `yaml:"id" validate:"required"`
	Label     string  `yaml:"label"`
	Unit      string  `yaml:"unit"`
	Target    float64 `yaml:"target"`
	Tolerance float64 `yaml:"tolerance" validate:"gte=0"`
	Code      string  `yaml:"code"`
}

type diagnosticFile struct {
	ID     string `yaml:"id" validate:"required"`
	Prompt string `yaml:"prompt" validate:"required"`
	Answer string `yaml:"answer" validate:"required"`
	Points int    `yaml:"points" validate:"gt=0"`
}

type faultFile struct {
	ID          string `yaml:"id" validate:"required"`
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
}

type wiringFile struct {
	Gauge       string `yaml:"gauge" validate:"required"`
	Connections int    `yaml:"connections" validate:"gte=0"`
}
