// Package fingerprint computes the canonical identity of a cached query.
//
// A Fingerprint captures every component that makes two queries "the same
// cached query": the resource identity, the requested fields, the
// all-fields flag, the condition, the virtuality flag and the extra
// parameters of virtual tables. Equality of fingerprints is the sole
// criterion for sharing a cached result.
//
// Identity is content-addressed: Key is the canonical JSON of the
// components and Discriminator is its domain-separated SHA-256, which is
// persisted next to virtual table rows.
package fingerprint

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/qcache/internal/canonical"
	"github.com/roach88/qcache/internal/condition"
	"github.com/roach88/qcache/internal/field"
)

// Fingerprint errors.
var (
	ErrInvalidResource = errors.New("invalid resource")
	ErrInvalidParam    = errors.New("invalid parameter")
)

// Resource identifies an upstream resource type. Name is unique across
// categories and doubles as the store class name; Category selects the
// superclass the class is created under.
type Resource struct {
	Category string
	Name     string
}

func (r Resource) String() string {
	return r.Category + "/" + r.Name
}

// Spec holds the components of a fingerprint before validation.
type Spec struct {
	Resource  Resource
	Fields    field.Set
	AllFields bool
	Condition condition.Expr
	Virtual   bool

	// Params carries the extra parameterization of virtual tables
	// (period, ranges, dimensions). Values must be strings, integers,
	// bools, time.Time or uuid.UUID.
	Params map[string]any
}

// Fingerprint is the immutable, validated identity of a query.
// The zero value is not a valid fingerprint; use New.
type Fingerprint struct {
	spec          Spec
	key           string
	discriminator string
}

// New validates spec and computes its identity.
func New(spec Spec) (Fingerprint, error) {
	if err := validateResource(spec.Resource); err != nil {
		return Fingerprint{}, err
	}
	for _, f := range spec.Fields.Fields() {
		if err := f.Validate(); err != nil {
			return Fingerprint{}, err
		}
	}

	spec.Condition = condition.Normalize(spec.Condition)
	condText, err := condition.Render(spec.Condition)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: %w", spec.Resource, err)
	}

	params := make(map[string]any, len(spec.Params))
	for k, v := range spec.Params {
		cv, err := canonicalParam(v)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("fingerprint %s: param %q: %w", spec.Resource, k, err)
		}
		params[k] = cv
	}
	spec.Params = maps.Clone(spec.Params)

	obj := map[string]any{
		"resource": map[string]any{
			"category": spec.Resource.Category,
			"name":     spec.Resource.Name,
		},
		"fields":     spec.Fields.Names(),
		"all_fields": spec.AllFields,
		"condition":  condText,
		"virtual":    spec.Virtual,
		"params":     params,
	}
	data, err := canonical.Marshal(obj)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: %w", spec.Resource, err)
	}

	return Fingerprint{
		spec:          spec,
		key:           string(data),
		discriminator: canonical.HashWithDomain(canonical.DomainFingerprint, data),
	}, nil
}

// Must is like New but panics on error.
// Use only in tests or when inputs are known to be valid.
func Must(spec Spec) Fingerprint {
	fp, err := New(spec)
	if err != nil {
		panic(err)
	}
	return fp
}

// Resource returns the resource identity.
func (f Fingerprint) Resource() Resource { return f.spec.Resource }

// Fields returns the requested fields.
func (f Fingerprint) Fields() field.Set { return f.spec.Fields }

// AllFields reports whether every declared field is requested.
func (f Fingerprint) AllFields() bool { return f.spec.AllFields }

// Condition returns the normalized filter condition (nil when empty).
func (f Fingerprint) Condition() condition.Expr { return f.spec.Condition }

// Virtual reports whether the query targets a virtual table.
func (f Fingerprint) Virtual() bool { return f.spec.Virtual }

// Params returns a copy of the extra parameters.
func (f Fingerprint) Params() map[string]any { return maps.Clone(f.spec.Params) }

// Key returns the canonical identity text. Two fingerprints are equal iff
// their keys are equal.
func (f Fingerprint) Key() string { return f.key }

// Discriminator returns the content-derived identifier persisted with
// virtual table rows.
func (f Fingerprint) Discriminator() string { return f.discriminator }

// IsZero reports whether f was not produced by New.
func (f Fingerprint) IsZero() bool { return f.key == "" }

// Equal reports whether f and other identify the same cached query.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.key == other.key
}

func (f Fingerprint) String() string {
	if len(f.discriminator) < 12 {
		return f.spec.Resource.String()
	}
	return f.spec.Resource.String() + "#" + f.discriminator[:12]
}

func validateResource(r Resource) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidResource)
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("%w: %q has no category", ErrInvalidResource, r.Name)
	}
	if strings.ContainsAny(r.Name, "\"\x00\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidResource, r.Name)
	}
	return nil
}

// canonicalParam converts a parameter value to a canonical JSON scalar.
func canonicalParam(v any) (any, error) {
	switch val := v.(type) {
	case time.Time:
		return field.FormatTime(val), nil
	case uuid.UUID:
		return val.String(), nil
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return val, nil
	case nil:
		return nil, fmt.Errorf("%w: null", ErrInvalidParam)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidParam, v)
	}
}
