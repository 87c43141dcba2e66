package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dstore/internal/store"
)

// DefaultStoreName is used when a scenario does not name its store.
const DefaultStoreName = "items"

// Scenario is one store scenario.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Store names the store file. Defaults to DefaultStoreName.
	Store string `yaml:"store,omitempty"`

	// QuietWindow overrides the debounce window.
	QuietWindow time.Duration `yaml:"quiet_window,omitempty"`

	// Initial is written as the store file before it is opened. When nil
	// the store starts without a file.
	Initial *string `yaml:"initial,omitempty"`

	Steps []Step `yaml:"steps"`
}

// Step is one operation plus optional expectations. Exactly one operation
// field must be set.
type Step struct {
	Create      map[string]any `yaml:"create,omitempty"`
	Update      *UpdateStep    `yaml:"update,omitempty"`
	UpdateWhere *WhereStep     `yaml:"update_where,omitempty"`
	Delete      *int64         `yaml:"delete,omitempty"`
	DeleteWhere map[string]any `yaml:"delete_where,omitempty"`
	Advance     time.Duration  `yaml:"advance,omitempty"`
	Signal      string         `yaml:"signal,omitempty"`
	Reopen      bool           `yaml:"reopen,omitempty"`

	ExpectError   string  `yaml:"expect_error,omitempty"`
	ExpectMatched *int    `yaml:"expect_matched,omitempty"`
	ExpectFile    *string `yaml:"expect_file,omitempty"`
	ExpectIDs     []int64 `yaml:"expect_ids,omitempty"`
}

// UpdateStep merges Patch into the record with ID.
type UpdateStep struct {
	ID    int64          `yaml:"id" json:"id"`
	Patch map[string]any `yaml:"patch" json:"patch"`
}

// WhereStep merges Patch into every record matching Where.
type WhereStep struct {
	Where map[string]any `yaml:"where" json:"where"`
	Patch map[string]any `yaml:"patch" json:"patch"`
}

// Step operation names, as used in traces.
const (
	OpCreate      = "create"
	OpUpdate      = "update"
	OpUpdateWhere = "update_where"
	OpDelete      = "delete"
	OpDeleteWhere = "delete_where"
	OpAdvance     = "advance"
	OpSignal      = "signal"
	OpReopen      = "reopen"
)

// ops returns the operations set on the step.
func (s Step) ops() []string {
	var ops []string
	if s.Create != nil {
		ops = append(ops, OpCreate)
	}
	if s.Update != nil {
		ops = append(ops, OpUpdate)
	}
	if s.UpdateWhere != nil {
		ops = append(ops, OpUpdateWhere)
	}
	if s.Delete != nil {
		ops = append(ops, OpDelete)
	}
	if s.DeleteWhere != nil {
		ops = append(ops, OpDeleteWhere)
	}
	if s.Advance != 0 {
		ops = append(ops, OpAdvance)
	}
	if s.Signal != "" {
		ops = append(ops, OpSignal)
	}
	if s.Reopen {
		ops = append(ops, OpReopen)
	}
	return ops
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

var errorCodes = map[string]bool{
	string(store.CodeDuplicateKey):        true,
	string(store.CodeNotFound):            true,
	string(store.CodeIdentifierImmutable): true,
	string(store.CodeInvalidRecord):       true,
	string(store.CodeClosed):              true,
	string(store.CodePersistFailed):       true,
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Store == "" {
		s.Store = DefaultStoreName
	}
	if _, err := store.NormalizeName(s.Store); err != nil {
		return err
	}
	if s.QuietWindow < 0 {
		return fmt.Errorf("quiet_window must not be negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		ops := step.ops()
		switch len(ops) {
		case 0:
			return fmt.Errorf("steps[%d]: an operation is required", i)
		case 1:
		default:
			return fmt.Errorf("steps[%d]: only one operation allowed, got %v", i, ops)
		}

		if step.Advance < 0 {
			return fmt.Errorf("steps[%d]: advance must be positive", i)
		}
		if step.Update != nil && step.Update.Patch == nil {
			return fmt.Errorf("steps[%d].update: patch is required", i)
		}
		if step.UpdateWhere != nil && (step.UpdateWhere.Where == nil || step.UpdateWhere.Patch == nil) {
			return fmt.Errorf("steps[%d].update_where: where and patch are required", i)
		}
		if step.ExpectError != "" && !errorCodes[step.ExpectError] {
			return fmt.Errorf("steps[%d]: unknown error code %q", i, step.ExpectError)
		}
		if step.ExpectMatched != nil && step.UpdateWhere == nil && step.DeleteWhere == nil {
			return fmt.Errorf("steps[%d]: expect_matched needs update_where or delete_where", i)
		}
	}
	return nil
}
