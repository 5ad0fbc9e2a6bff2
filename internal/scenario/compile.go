package scenario

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/qcache/internal/condition"
	"github.com/roach88/qcache/internal/field"
	"github.com/roach88/qcache/internal/fingerprint"
	"github.com/roach88/qcache/internal/registry"
	"github.com/roach88/qcache/internal/resultcache"
)

// query is a compiled QuerySpec.
type query struct {
	fp fingerprint.Fingerprint

	// types resolves the type of every field a row or condition of this
	// query may carry: the requested fields plus the category identity.
	types field.Set
}

// categories returns the built-in categories plus those of the scenario.
func (s *Scenario) categories() ([]registry.Category, error) {
	cats := registry.DefaultCategories()
	for _, spec := range s.Categories {
		identity, err := parseFields(spec.Identity)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", spec.Name, err)
		}
		cats = append(cats, registry.Category{
			Name:     spec.Name,
			Virtual:  spec.Virtual,
			Identity: identity.Fields(),
		})
	}
	return cats, nil
}

// compileQueries builds the fingerprint of every named query.
func (s *Scenario) compileQueries(cats []registry.Category) (map[string]query, error) {
	identities := make(map[string]field.Set, len(cats))
	for _, c := range cats {
		identities[c.Name] = field.NewSet(c.Identity...)
	}

	out := make(map[string]query, len(s.Queries))
	for name, spec := range s.Queries {
		q, err := spec.compile(identities[spec.Category])
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", name, err)
		}
		out[name] = q
	}
	return out, nil
}

func (q QuerySpec) compile(identity field.Set) (query, error) {
	fields, err := parseFields(q.Fields)
	if err != nil {
		return query{}, err
	}
	types := fields.Union(identity)

	var cond condition.Expr
	if q.Condition != nil {
		cond, err = q.Condition.expr(types)
		if err != nil {
			return query{}, err
		}
	}

	fp, err := fingerprint.New(fingerprint.Spec{
		Resource:  fingerprint.Resource{Category: q.Category, Name: q.Resource},
		Fields:    fields,
		AllFields: q.AllFields,
		Condition: cond,
		Virtual:   q.Virtual,
		Params:    q.Params,
	})
	if err != nil {
		return query{}, err
	}
	return query{fp: fp, types: types}, nil
}

// parseFields converts a name to type-name map into a field set.
func parseFields(m map[string]string) (field.Set, error) {
	fields := make([]field.Field, 0, len(m))
	for name, typeName := range m {
		typ, err := field.ParseType(typeName)
		if err != nil {
			return field.Set{}, fmt.Errorf("field %s: %w", name, err)
		}
		f := field.New(name, typ)
		if err := f.Validate(); err != nil {
			return field.Set{}, err
		}
		fields = append(fields, f)
	}
	return field.NewSet(fields...), nil
}

func (c *ConditionSpec) expr(types field.Set) (condition.Expr, error) {
	switch {
	case c.Field != "":
		v, err := coerceValue(types, c.Field, c.Value)
		if err != nil {
			return nil, err
		}
		op := condition.Op(strings.ToLower(c.Op))
		if c.Op == "" {
			op = condition.Eq
		}
		if !op.Valid() {
			return nil, fmt.Errorf("%w: %q", condition.ErrUnknownOp, c.Op)
		}
		return condition.Compare{Field: c.Field, Op: op, Value: v}, nil
	case c.IsNull != "":
		return condition.IsNull{Field: c.IsNull}, nil
	case c.Not != nil:
		inner, err := c.Not.expr(types)
		if err != nil {
			return nil, err
		}
		return condition.Negate(inner), nil
	case c.Or != nil:
		children, err := exprs(c.Or, types)
		if err != nil {
			return nil, err
		}
		return condition.AnyOf(children...), nil
	default:
		children, err := exprs(c.And, types)
		if err != nil {
			return nil, err
		}
		return condition.AllOf(children...), nil
	}
}

func exprs(specs []ConditionSpec, types field.Set) ([]condition.Expr, error) {
	out := make([]condition.Expr, len(specs))
	for i := range specs {
		e, err := specs[i].expr(types)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// coerceValue converts a YAML scalar to the Go value the field type
// expects. YAML has no datetime or GUID scalar, so both arrive as strings.
// Values of unknown fields pass through unchanged.
func coerceValue(types field.Set, name string, v any) (any, error) {
	f, ok := types.Get(name)
	if !ok || v == nil {
		return v, nil
	}
	switch f.Type {
	case field.DATETIME:
		switch ts := v.(type) {
		case string:
			return field.ParseTime(ts)
		case time.Time:
			return ts.UTC(), nil
		}
	case field.GUID:
		if s, ok := v.(string); ok {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			return id, nil
		}
	}
	return v, nil
}

// coerceRow converts a YAML row into a cache row.
func coerceRow(types field.Set, row map[string]any) (resultcache.Row, error) {
	out := make(resultcache.Row, len(row))
	for name, v := range row {
		cv, err := coerceValue(types, name, v)
		if err != nil {
			return nil, err
		}
		out[name] = cv
	}
	return out, nil
}

// renderRow renders every value of row as text, for traces and
// comparisons.
func renderRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for name, v := range row {
		if v == nil {
			continue
		}
		out[name] = renderValue(v)
	}
	return out
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case uuid.UUID:
		return val.String()
	case time.Time:
		return field.FormatTime(val)
	case []byte:
		return hex.EncodeToString(val)
	default:
		return fmt.Sprint(val)
	}
}

// renderFields renders a field set as sorted "Name:TYPE" entries.
func renderFields(s field.Set) []string {
	out := make([]string, 0, s.Len())
	for _, f := range s.Fields() {
		out = append(out, f.Name+":"+string(f.Type))
	}
	slices.Sort(out)
	return out
}
