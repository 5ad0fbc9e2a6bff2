package scenario

import (
	"bytes"
	"fmt"

	"github.com/roach88/qcache/internal/canonical"
)

// Event records one executed step.
type Event struct {
	Step  int
	Op    string
	Clock int64

	Query    string
	Resource string

	// Count is the number of rows written by a store step.
	Count int

	MaxAge  int64
	Outcome string

	// Rows are the rendered rows of a hit.
	Rows []map[string]any

	// Batch is the batch stamp of a hit or stale lookup.
	Batch int64

	Fields []string
	Known  *bool
	Error  string
}

// toCanonicalMap converts an Event to a map for canonical JSON. Zero fields
// are omitted, except that a fetch always reports its rows.
func (e Event) toCanonicalMap() map[string]any {
	m := map[string]any{
		"step":  e.Step,
		"op":    e.Op,
		"clock": e.Clock,
	}
	if e.Query != "" {
		m["query"] = e.Query
	}
	if e.Resource != "" {
		m["resource"] = e.Resource
	}
	if e.Op == KindStore && e.Error == "" {
		m["count"] = e.Count
	}
	if e.MaxAge != 0 {
		m["max_age"] = e.MaxAge
	}
	if e.Outcome != "" {
		m["outcome"] = e.Outcome
	}
	if e.Rows != nil {
		rows := make([]any, len(e.Rows))
		for i, r := range e.Rows {
			rows[i] = r
		}
		m["rows"] = rows
	}
	if e.Batch != 0 {
		m["batch"] = e.Batch
	}
	if e.Fields != nil {
		m["fields"] = e.Fields
	}
	if e.Known != nil {
		m["known"] = *e.Known
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}

// Result is the outcome of a scenario run.
type Result struct {
	Name string

	// Pass is true if every expect clause matched.
	Pass bool

	Trace []Event

	// Errors lists the failed expectations. Empty if Pass is true.
	Errors []string
}

func newResult(name string) *Result {
	return &Result{Name: name, Pass: true, Trace: []Event{}, Errors: []string{}}
}

// addError records a failed expectation and marks the result as failed.
func (r *Result) addError(step int, format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf("step %d: ", step)+fmt.Sprintf(format, args...))
	r.Pass = false
}

// MarshalTrace renders the trace as canonical JSON, one event per line.
func (r *Result) MarshalTrace() ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range r.Trace {
		line, err := canonical.Marshal(e.toCanonicalMap())
		if err != nil {
			return nil, fmt.Errorf("marshal step %d: %w", e.Step, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
