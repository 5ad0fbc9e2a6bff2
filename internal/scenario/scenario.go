package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted cache session.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario shows.
	Description string `yaml:"description"`

	// Clock is the start reading of the clock in unix milliseconds.
	Clock int64 `yaml:"clock,omitempty"`

	// LockPolicy selects the cache lock policy ("global" when empty).
	LockPolicy string `yaml:"lock_policy,omitempty"`

	// Categories are added to the built-in categories.
	Categories []CategorySpec `yaml:"categories,omitempty"`

	// Queries names the fingerprints the steps refer to.
	Queries map[string]QuerySpec `yaml:"queries"`

	Steps []Step `yaml:"steps"`
}

// CategorySpec declares an extra category.
type CategorySpec struct {
	Name    string `yaml:"name"`
	Virtual bool   `yaml:"virtual,omitempty"`

	// Identity maps identity field names to type names.
	Identity map[string]string `yaml:"identity,omitempty"`
}

// QuerySpec describes one fingerprint.
type QuerySpec struct {
	Category string `yaml:"category"`
	Resource string `yaml:"resource"`

	// Fields maps requested field names to type names.
	Fields    map[string]string `yaml:"fields,omitempty"`
	AllFields bool              `yaml:"all_fields,omitempty"`
	Condition *ConditionSpec    `yaml:"condition,omitempty"`
	Virtual   bool              `yaml:"virtual,omitempty"`
	Params    map[string]any    `yaml:"params,omitempty"`
}

// ConditionSpec is the YAML form of a condition tree. Exactly one of
// field, is_null, and, or, not is set; an empty spec matches every row.
type ConditionSpec struct {
	Field  string          `yaml:"field,omitempty"`
	Op     string          `yaml:"op,omitempty"`
	Value  any             `yaml:"value,omitempty"`
	IsNull string          `yaml:"is_null,omitempty"`
	And    []ConditionSpec `yaml:"and,omitempty"`
	Or     []ConditionSpec `yaml:"or,omitempty"`
	Not    *ConditionSpec  `yaml:"not,omitempty"`
}

// Step is one scenario action. Exactly one of the action keys is set.
type Step struct {
	// Store names a query whose Rows are stored.
	Store string           `yaml:"store,omitempty"`
	Rows  []map[string]any `yaml:"rows,omitempty"`

	// Fetch names a query to look up with MaxAge milliseconds.
	Fetch  string `yaml:"fetch,omitempty"`
	MaxAge int64  `yaml:"max_age,omitempty"`

	// Declared names a resource whose declared fields are reported.
	Declared string `yaml:"declared,omitempty"`

	// Known names a query whose known-cached state is reported.
	Known string `yaml:"known,omitempty"`

	// Advance moves the clock by this many milliseconds.
	Advance int64 `yaml:"advance,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Step kinds.
const (
	KindStore    = "store"
	KindFetch    = "fetch"
	KindDeclared = "declared"
	KindKnown    = "known"
	KindAdvance  = "advance"
)

// Kind returns the step kind, or "" when none or several action keys are
// set.
func (s Step) Kind() string {
	var kinds []string
	if s.Store != "" {
		kinds = append(kinds, KindStore)
	}
	if s.Fetch != "" {
		kinds = append(kinds, KindFetch)
	}
	if s.Declared != "" {
		kinds = append(kinds, KindDeclared)
	}
	if s.Known != "" {
		kinds = append(kinds, KindKnown)
	}
	if s.Advance != 0 {
		kinds = append(kinds, KindAdvance)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Expect is checked against the outcome of a step. Unset fields are not
// checked.
type Expect struct {
	// Outcome is the expected lookup outcome: hit, miss, stale,
	// inconsistent or purged.
	Outcome string `yaml:"outcome,omitempty"`

	// Rows are the expected rows of a hit, in order.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Error is the expected error code: SCHEMA, STORE_CONNECTIVITY,
	// DISCRIMINATOR_COLLISION, BYPASS or CLOSED.
	Error string `yaml:"error,omitempty"`

	// Fields are the expected declared fields as "Name:TYPE".
	Fields []string `yaml:"fields,omitempty"`

	Known *bool `yaml:"known,omitempty"`
}

// Load reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse parses scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// validate checks that required fields are present and that every step
// refers to a declared query.
func validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, c := range s.Categories {
		if c.Name == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
	}

	for name, q := range s.Queries {
		if q.Category == "" || q.Resource == "" {
			return fmt.Errorf("queries.%s: category and resource are required", name)
		}
	}

	for i, step := range s.Steps {
		kind := step.Kind()
		if kind == "" {
			return fmt.Errorf("steps[%d]: exactly one of store, fetch, declared, known, advance is required", i)
		}
		var query string
		switch kind {
		case KindStore:
			query = step.Store
		case KindFetch:
			query = step.Fetch
		case KindKnown:
			query = step.Known
		}
		if query != "" {
			if _, ok := s.Queries[query]; !ok {
				return fmt.Errorf("steps[%d]: unknown query %q", i, query)
			}
		}
		if kind != KindStore && step.Rows != nil {
			return fmt.Errorf("steps[%d]: rows are only allowed on store steps", i)
		}
	}
	return nil
}
