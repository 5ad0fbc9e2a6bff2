package resultcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/qcache/internal/condition"
	"github.com/roach88/qcache/internal/docstore"
	"github.com/roach88/qcache/internal/field"
	"github.com/roach88/qcache/internal/fingerprint"
	"github.com/roach88/qcache/internal/registry"
)

// Outcome classifies a lookup.
type Outcome int

const (
	// OutcomeMiss means no rows are cached for the fingerprint.
	OutcomeMiss Outcome = iota

	// OutcomeHit means a single fresh batch answered the lookup.
	OutcomeHit

	// OutcomeStale means the batch is older than the allowed age.
	OutcomeStale

	// OutcomeInconsistent means the matching rows span several batches.
	OutcomeInconsistent

	// OutcomePurged means the fingerprint was stored, but schema growth on
	// its resource deleted the rows afterwards. The flag stays set until the
	// same fingerprint is stored again: stores of other fingerprints on the
	// resource do not clear it, because they say nothing about this
	// fingerprint's result. A later store whose rows happen to match this
	// fingerprint's scope is served normally, since only an empty scan
	// consults the flag.
	OutcomePurged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMiss:
		return "miss"
	case OutcomeHit:
		return "hit"
	case OutcomeStale:
		return "stale"
	case OutcomeInconsistent:
		return "inconsistent"
	case OutcomePurged:
		return "purged"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the answer of a lookup. Rows is set only for OutcomeHit, and
// may be empty when the stored result itself was empty.
type Result struct {
	Outcome Outcome
	Rows    []Row

	// BatchTime is the stamp of the batch that answered the lookup. Zero
	// for misses.
	BatchTime time.Time
}

// lookup runs the consistency and freshness checks for fp. The resource
// lock must be held.
func (c *Cache) lookup(ctx context.Context, fp fingerprint.Fingerprint, maxAge time.Duration) (Result, error) {
	resource := fp.Resource().Name
	declared, err := c.registry.DeclaredFields(ctx, resource)
	if err != nil {
		return Result{}, classify("fetch", resource, err)
	}
	if declared.IsEmpty() {
		return Result{Outcome: OutcomeMiss}, nil
	}

	projection, answerable := c.projection(fp, declared)
	if !answerable {
		return Result{Outcome: OutcomeMiss}, nil
	}

	var filter condition.Expr
	if fp.Virtual() {
		filter = condition.Equal(registry.DiscriminatorField, fp.Discriminator())
	} else {
		filter = fp.Condition()
		if err := condition.Validate(filter, declared); err != nil {
			if errors.Is(err, condition.ErrUnknownField) {
				// No stored batch can have been written under this condition.
				return Result{Outcome: OutcomeMiss}, nil
			}
			return Result{}, schemaError("fetch", resource, err)
		}
	}

	now := c.clock.Now().UnixMilli()
	res, n, err := c.scan(ctx, fp, docstore.Query{
		Class:  resource,
		Fields: append(projection, registry.StampField),
		Filter: filter,
	}, declared, now, maxAge)
	if err != nil || n > 0 {
		return res, err
	}

	// An empty scan is either a miss, a purge or a stored empty result.
	entry, known := c.known.get(fp)
	switch {
	case !known:
		return Result{Outcome: OutcomeMiss}, nil
	case entry.purged:
		return Result{Outcome: OutcomePurged}, nil
	case isStale(now, entry.stamp, maxAge):
		return Result{Outcome: OutcomeStale}, nil
	}
	return Result{Outcome: OutcomeHit, Rows: []Row{}, BatchTime: stampTime(entry.stamp)}, nil
}

// projection returns the data fields to read for fp: the requested fields
// plus, for ordinary resources, the category identity, which every stored
// row carries. answerable is false when a requested field was never
// declared, so no batch can hold it.
func (c *Cache) projection(fp fingerprint.Fingerprint, declared field.Set) (names []string, answerable bool) {
	if fp.AllFields() {
		return declared.Names(), true
	}
	for _, name := range fp.Fields().Names() {
		if !declared.Has(name) {
			return nil, false
		}
	}
	fields := fp.Fields()
	if !fp.Virtual() {
		if cat, ok := c.registry.Category(fp.Resource().Category); ok {
			for _, id := range cat.Identity {
				if declared.Has(id.Name) {
					fields = fields.Union(field.NewSet(id))
				}
			}
		}
	}
	return fields.Names(), true
}

// scan streams the matching rows and returns the number of rows seen. It
// stops at the first row whose stamp differs from the first one, or as soon
// as the batch is known to be stale. Rows are closed on every path.
func (c *Cache) scan(ctx context.Context, fp fingerprint.Fingerprint, q docstore.Query, declared field.Set, now int64, maxAge time.Duration) (res Result, n int, err error) {
	resource := q.Class
	rows, err := c.store.Query(ctx, q)
	if err != nil {
		return Result{}, 0, classify("fetch", resource, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			res, err = Result{}, classify("fetch", resource, cerr)
		}
	}()

	var batch int64
	out := make([]Row, 0)
	for rows.Next() {
		raw := rows.Row()
		stamp, err := decodeStamp(raw[registry.StampField])
		if err != nil {
			return Result{}, n, schemaError("fetch", resource, err)
		}

		n++
		if n == 1 {
			batch = stamp
			if isStale(now, batch, maxAge) {
				return Result{Outcome: OutcomeStale, BatchTime: stampTime(batch)}, n, nil
			}
		} else if stamp != batch {
			c.logger.Debug("inconsistent batch",
				"fingerprint", fp.String(),
				"first", batch,
				"divergent", stamp)
			return Result{Outcome: OutcomeInconsistent}, n, nil
		}

		row, err := decodeRow(raw, declared)
		if err != nil {
			return Result{}, n, schemaError("fetch", resource, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, n, classify("fetch", resource, err)
	}
	if n == 0 {
		return Result{}, 0, nil
	}
	return Result{Outcome: OutcomeHit, Rows: out, BatchTime: stampTime(batch)}, n, nil
}

var errUnknownColumn = errors.New("unknown column")

// decodeRow converts a store row into a cache row, dropping system fields
// and NULL values.
func decodeRow(raw map[string]any, declared field.Set) (Row, error) {
	row := make(Row, len(raw))
	for name, v := range raw {
		if registry.IsSystemField(name) {
			continue
		}
		f, ok := declared.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errUnknownColumn, name)
		}
		if v == nil {
			continue
		}
		val, err := f.Type.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		row[name] = val
	}
	return row, nil
}

func decodeStamp(raw any) (int64, error) {
	v, err := field.LONG.Decode(raw)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", registry.StampField, err)
	}
	if v == nil {
		return 0, fmt.Errorf("column %q: missing batch stamp", registry.StampField)
	}
	return v.(int64), nil
}

// isStale reports whether a batch stamped at stamp is older than maxAge at
// now. A batch exactly maxAge old is still fresh.
func isStale(now, stamp int64, maxAge time.Duration) bool {
	return time.Duration(now-stamp)*time.Millisecond > maxAge
}

func stampTime(stamp int64) time.Time {
	return time.UnixMilli(stamp).UTC()
}
