package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/roach88/qcache/internal/docstore"
	"github.com/roach88/qcache/internal/resultcache"
	"github.com/roach88/qcache/internal/testutil"
)

// Option configures a run.
type Option func(*runner)

// WithLogger sets the logger handed to the cache. Logs are discarded by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) { r.logger = logger }
}

// WithDriver selects the SQLite driver of the scenario store.
func WithDriver(driver string) Option {
	return func(r *runner) { r.driver = driver }
}

type runner struct {
	logger  *slog.Logger
	driver  string
	clock   *testutil.FakeClock
	cache   *resultcache.Cache
	queries map[string]query
	result  *Result
}

// Run executes a scenario against a fresh in-memory cache and returns the
// trace. An error is returned only when the scenario cannot run at all;
// failed expectations are reported in the result.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	r := &runner{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		result: newResult(sc.Name),
	}
	for _, opt := range opts {
		opt(r)
	}

	cats, err := sc.categories()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	r.queries, err = sc.compileQueries(cats)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	policy, err := resultcache.ParseLockPolicy(sc.LockPolicy)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	r.clock = testutil.NewFakeClockAt(sc.Clock)
	r.cache, err = resultcache.Open(ctx, docstore.Config{Driver: r.driver}, cats,
		resultcache.WithClock(r.clock),
		resultcache.WithLogger(r.logger),
		resultcache.WithLockPolicy(policy),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	defer func() {
		if cerr := r.cache.Close(); cerr != nil {
			r.logger.Warn("close scenario cache", "scenario", sc.Name, "error", cerr)
		}
	}()

	for i, step := range sc.Steps {
		if err := r.execute(ctx, i+1, step); err != nil {
			return nil, fmt.Errorf("scenario %s: step %d: %w", sc.Name, i+1, err)
		}
	}
	return r.result, nil
}

func (r *runner) execute(ctx context.Context, n int, step Step) error {
	event := Event{Step: n, Op: step.Kind()}
	var err error
	switch event.Op {
	case KindStore:
		err = r.store(ctx, step, &event)
	case KindFetch:
		err = r.fetch(ctx, step, &event)
	case KindDeclared:
		err = r.declared(ctx, step, &event)
	case KindKnown:
		q := r.queries[step.Known]
		known := r.cache.HasCachedResult(q.fp)
		event.Query = step.Known
		event.Known = &known
	case KindAdvance:
		r.clock.Advance(time.Duration(step.Advance) * time.Millisecond)
	default:
		return fmt.Errorf("no action")
	}
	if err != nil {
		return err
	}
	event.Clock = r.clock.Now().UnixMilli()
	r.result.Trace = append(r.result.Trace, event)
	r.check(n, step.Expect, event)
	return nil
}

func (r *runner) store(ctx context.Context, step Step, event *Event) error {
	q := r.queries[step.Store]
	event.Query = step.Store

	rows := make([]resultcache.Row, len(step.Rows))
	for i, raw := range step.Rows {
		row, err := coerceRow(q.types, raw)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = row
	}

	err := r.cache.Store(ctx, rows, q.fp)
	if code, ok := errorCode(err); ok {
		event.Error = code
		return nil
	}
	if err != nil {
		return err
	}
	event.Count = len(rows)
	return nil
}

func (r *runner) fetch(ctx context.Context, step Step, event *Event) error {
	q := r.queries[step.Fetch]
	event.Query = step.Fetch
	event.MaxAge = step.MaxAge

	res, err := r.cache.Lookup(ctx, q.fp, time.Duration(step.MaxAge)*time.Millisecond)
	if code, ok := errorCode(err); ok {
		event.Error = code
		return nil
	}
	if err != nil {
		return err
	}

	event.Outcome = res.Outcome.String()
	if !res.BatchTime.IsZero() {
		event.Batch = res.BatchTime.UnixMilli()
	}
	if res.Outcome == resultcache.OutcomeHit {
		event.Rows = make([]map[string]any, len(res.Rows))
		for i, row := range res.Rows {
			event.Rows[i] = renderRow(row)
		}
	}
	return nil
}

func (r *runner) declared(ctx context.Context, step Step, event *Event) error {
	event.Resource = step.Declared
	fields, err := r.cache.DeclaredFields(ctx, step.Declared)
	if code, ok := errorCode(err); ok {
		event.Error = code
		return nil
	}
	if err != nil {
		return err
	}
	event.Fields = renderFields(fields)
	return nil
}

// errorCode maps a cache error to its trace code. ok is false for nil and
// for errors that abort the scenario.
func errorCode(err error) (code string, ok bool) {
	var ce *resultcache.Error
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, resultcache.ErrBypass):
		return "BYPASS", true
	case errors.Is(err, resultcache.ErrClosed):
		return "CLOSED", true
	case errors.As(err, &ce):
		return string(ce.Code), true
	}
	return "", false
}

// check compares a step event against its expect clause.
func (r *runner) check(n int, want *Expect, got Event) {
	if want == nil {
		return
	}
	if got.Error != want.Error {
		r.result.addError(n, "error %q, want %q", got.Error, want.Error)
	}
	if want.Outcome != "" && got.Outcome != want.Outcome {
		r.result.addError(n, "outcome %q, want %q", got.Outcome, want.Outcome)
	}
	if want.Rows != nil {
		q := r.queries[got.Query]
		expected := make([]map[string]any, len(want.Rows))
		for i, raw := range want.Rows {
			row, err := coerceRow(q.types, raw)
			if err != nil {
				r.result.addError(n, "expected row %d: %v", i, err)
				return
			}
			expected[i] = renderRow(row)
		}
		if !reflect.DeepEqual(got.Rows, expected) {
			r.result.addError(n, "rows %v, want %v", got.Rows, expected)
		}
	}
	if want.Fields != nil && !reflect.DeepEqual(got.Fields, want.Fields) {
		r.result.addError(n, "fields %v, want %v", got.Fields, want.Fields)
	}
	if want.Known != nil && (got.Known == nil || *got.Known != *want.Known) {
		r.result.addError(n, "known mismatch, want %v", *want.Known)
	}
}
