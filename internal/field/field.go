package field

import (
	"fmt"
	"slices"
	"strings"
)

// Field is a typed, named column description. Immutable after creation.
type Field struct {
	Name         string
	Type         Type
	OriginalName string // Name as reported by the upstream service, if different.
}

// New creates a field with the given name and type.
func New(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// WithOriginalName returns a copy of f carrying the upstream name.
func (f Field) WithOriginalName(name string) Field {
	f.OriginalName = name
	return f
}

// Label returns the upstream name when known, the field name otherwise.
func (f Field) Label() string {
	if f.OriginalName != "" {
		return f.OriginalName
	}
	return f.Name
}

// Validate checks that the field has a usable name and a known type.
// Names are used as store column identifiers, so control characters and
// double quotes are rejected.
func (f Field) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(f.Name, "\"\x00\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidName, f.Name)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("field %q: %w: %q", f.Name, ErrUnknownType, f.Type)
	}
	return nil
}

func (f Field) String() string {
	return f.Name + ":" + string(f.Type)
}

// Set is an immutable collection of fields keyed and ordered by name.
// The zero value is an empty set.
type Set struct {
	fields []Field // sorted by Name, unique names
}

// NewSet builds a set from fields. When a name repeats, the first
// occurrence wins.
func NewSet(fields ...Field) Set {
	out := make([]Field, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b Field) int { return strings.Compare(a.Name, b.Name) })
	return Set{fields: out}
}

// Len returns the number of fields.
func (s Set) Len() int {
	return len(s.fields)
}

// IsEmpty reports whether the set has no fields.
func (s Set) IsEmpty() bool {
	return len(s.fields) == 0
}

// Get returns the field with the given name.
func (s Set) Get(name string) (Field, bool) {
	i, ok := slices.BinarySearchFunc(s.fields, name, func(f Field, n string) int {
		return strings.Compare(f.Name, n)
	})
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether a field with the given name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Fields returns a copy of the fields in name order.
func (s Set) Fields() []Field {
	return slices.Clone(s.fields)
}

// Names returns the field names in order.
func (s Set) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Union returns the fields of s plus those of other not already in s.
func (s Set) Union(other Set) Set {
	all := make([]Field, 0, len(s.fields)+len(other.fields))
	all = append(all, s.fields...)
	all = append(all, other.fields...)
	return NewSet(all...)
}

// Missing returns the fields of other whose names are absent from s,
// in name order.
func (s Set) Missing(other Set) []Field {
	var missing []Field
	for _, f := range other.fields {
		if !s.Has(f.Name) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Equal reports whether both sets hold the same names.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.Names(), other.Names())
}

func (s Set) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
