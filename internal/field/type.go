package field

import (
	"errors"
	"fmt"
	"strings"
)

// Type is the logical type of a field.
type Type string

// Supported field types.
const (
	GUID     Type = "GUID"
	STRING   Type = "STRING"
	LONG     Type = "LONG"
	SHORT    Type = "SHORT"
	DOUBLE   Type = "DOUBLE"
	BOOLEAN  Type = "BOOLEAN"
	DATETIME Type = "DATETIME"
	BINARY   Type = "BINARY"
)

// Field errors.
var (
	ErrUnknownType  = errors.New("unknown field type")
	ErrTypeMismatch = errors.New("type mismatch")
	ErrInvalidName  = errors.New("invalid field name")
)

// AllTypes lists every supported type in declaration order.
var AllTypes = []Type{GUID, STRING, LONG, SHORT, DOUBLE, BOOLEAN, DATETIME, BINARY}

// ParseType parses a type name case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	switch t {
	case GUID, STRING, LONG, SHORT, DOUBLE, BOOLEAN, DATETIME, BINARY:
		return true
	}
	return false
}

// Column returns the storage affinity used for columns of this type.
func (t Type) Column() string {
	switch t {
	case LONG, SHORT, BOOLEAN:
		return "INTEGER"
	case DOUBLE:
		return "REAL"
	case BINARY:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func (t Type) String() string {
	return string(t)
}
