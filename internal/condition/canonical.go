package condition

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/qcache/internal/field"
)

// Canonical returns the deterministic textual form of expr.
//
// The same tree always produces the same text, so the text can stand in
// for the condition inside a query identity. The empty condition renders
// as "". Scalars follow OData literal conventions:
//
//	'O''Brien'   string (quotes doubled)
//	42  -1.5     numbers
//	true false   booleans
//	guid'…'      uuid.UUID
//	datetime'…'  time.Time (UTC, fixed width)
//	null
//
// Canonical panics on literal types that Validate rejects; validate
// conditions before rendering them.
func Canonical(expr Expr) string {
	text, err := render(expr)
	if err != nil {
		panic(err)
	}
	return text
}

// Render is like Canonical but returns an error for unsupported nodes or
// literals instead of panicking.
func Render(expr Expr) (string, error) {
	return render(expr)
}

func render(expr Expr) (string, error) {
	switch e := deref(expr).(type) {
	case nil:
		return "", nil
	case Compare:
		lit, err := Literal(e.Value)
		if err != nil {
			return "", fmt.Errorf("field %q: %w", e.Field, err)
		}
		return fmt.Sprintf("%s %s %s", e.Field, e.Op, lit), nil
	case IsNull:
		return e.Field + " eq null", nil
	case And:
		return renderJoined(e.Exprs, " and ", "", false)
	case Or:
		return renderJoined(e.Exprs, " or ", "false", true)
	case Not:
		inner, err := render(e.Expr)
		if err != nil {
			return "", err
		}
		if inner == "" {
			// not(everything) matches nothing.
			return "false", nil
		}
		return "not (" + inner + ")", nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedExpr, expr)
	}
}

// renderJoined renders children joined by sep. Empty children are
// skipped, unless absorbing is set, in which case one empty child makes the
// whole join empty (an Or with a match-all operand matches all). A single
// remaining child is rendered without parentheses.
func renderJoined(exprs []Expr, sep, empty string, absorbing bool) (string, error) {
	parts := make([]string, 0, len(exprs))
	for _, child := range exprs {
		text, err := render(child)
		if err != nil {
			return "", err
		}
		if text == "" {
			if absorbing {
				return "", nil
			}
			continue
		}
		parts = append(parts, text)
	}
	switch len(parts) {
	case 0:
		return empty, nil
	case 1:
		return parts[0], nil
	}
	for i, p := range parts {
		parts[i] = "(" + p + ")"
	}
	return strings.Join(parts, sep), nil
}

// Literal renders a scalar value in canonical literal syntax.
func Literal(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case uuid.UUID:
		return "guid'" + val.String() + "'", nil
	case time.Time:
		return "datetime'" + field.FormatTime(val) + "'", nil
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidLiteral, v)
	}
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidLiteral, f)
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// Fields returns the sorted, deduplicated names of every field referenced
// by expr.
func Fields(expr Expr) []string {
	seen := make(map[string]bool)
	collectFields(expr, seen)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func collectFields(expr Expr, seen map[string]bool) {
	switch e := deref(expr).(type) {
	case Compare:
		seen[e.Field] = true
	case IsNull:
		seen[e.Field] = true
	case And:
		for _, child := range e.Exprs {
			collectFields(child, seen)
		}
	case Or:
		for _, child := range e.Exprs {
			collectFields(child, seen)
		}
	case Not:
		collectFields(e.Expr, seen)
	}
}

// deref normalizes pointer nodes to values so callers can switch on value
// types only. A typed nil pointer becomes a nil Expr.
func deref(expr Expr) Expr {
	switch e := expr.(type) {
	case *Compare:
		if e == nil {
			return nil
		}
		return *e
	case *IsNull:
		if e == nil {
			return nil
		}
		return *e
	case *And:
		if e == nil {
			return nil
		}
		return *e
	case *Or:
		if e == nil {
			return nil
		}
		return *e
	case *Not:
		if e == nil {
			return nil
		}
		return *e
	}
	return expr
}

// Normalize returns expr with pointer nodes replaced by values at every
// level, so trees built either way can be compared and compiled alike.
func Normalize(expr Expr) Expr {
	switch e := deref(expr).(type) {
	case And:
		return And{Exprs: normalizeAll(e.Exprs)}
	case Or:
		return Or{Exprs: normalizeAll(e.Exprs)}
	case Not:
		return Not{Expr: Normalize(e.Expr)}
	default:
		return e
	}
}

func normalizeAll(exprs []Expr) []Expr {
	if exprs == nil {
		return nil
	}
	out := make([]Expr, len(exprs))
	for i, child := range exprs {
		out[i] = Normalize(child)
	}
	return out
}
