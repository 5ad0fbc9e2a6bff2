package condition

import (
	"errors"
	"fmt"

	"github.com/roach88/qcache/internal/field"
)

// Validation errors.
var (
	ErrUnknownField    = errors.New("condition references unknown field")
	ErrUnknownOp       = errors.New("unknown operator")
	ErrInvalidLiteral  = errors.New("invalid literal")
	ErrUnsupportedExpr = errors.New("unsupported condition node")
)

// Validate checks expr against the declared fields of a resource type.
//
// Rules:
//  1. Every referenced field must be declared
//  2. Operators must be known
//  3. Literals must be scalars convertible to the field's type
//  4. A nil literal may only be used with eq and ne
//
// Validate is a pure function with no side effects. It returns the first
// violation found in tree order.
func Validate(expr Expr, declared field.Set) error {
	switch e := deref(expr).(type) {
	case nil:
		return nil
	case Compare:
		f, ok := declared.Get(e.Field)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, e.Field)
		}
		if !e.Op.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownOp, e.Op)
		}
		if e.Value == nil {
			if e.Op != Eq && e.Op != Ne {
				return fmt.Errorf("%w: null with %s on %q", ErrInvalidLiteral, e.Op, e.Field)
			}
			return nil
		}
		if _, err := Literal(e.Value); err != nil {
			return fmt.Errorf("field %q: %w", e.Field, err)
		}
		if _, err := f.Type.Encode(e.Value); err != nil {
			return fmt.Errorf("field %q: %w: %v", e.Field, ErrInvalidLiteral, err)
		}
		return nil
	case IsNull:
		if !declared.Has(e.Field) {
			return fmt.Errorf("%w: %q", ErrUnknownField, e.Field)
		}
		return nil
	case And:
		return validateAll(e.Exprs, declared)
	case Or:
		return validateAll(e.Exprs, declared)
	case Not:
		return Validate(e.Expr, declared)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedExpr, expr)
	}
}

func validateAll(exprs []Expr, declared field.Set) error {
	for _, child := range exprs {
		if err := Validate(child, declared); err != nil {
			return err
		}
	}
	return nil
}
