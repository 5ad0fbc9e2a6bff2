package resultcache

import (
	"errors"
	"fmt"

	"github.com/roach88/qcache/internal/docstore"
)

var (
	// ErrBypass is returned by Fetch and Lookup for a non-positive maxAge.
	// A zero max age means the caller wants the upstream source, not the
	// cache; callers are expected to branch around the cache instead.
	ErrBypass = errors.New("cache bypassed: maxAge must be positive")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("cache closed")
)

// ErrorCode categorizes cache errors.
type ErrorCode string

const (
	// CodeConnectivity indicates the store could not be opened or used.
	CodeConnectivity ErrorCode = "STORE_CONNECTIVITY"

	// CodeSchema indicates unexpected schema state: an undeclared column, a
	// missing mandatory value, a type mismatch or a category conflict.
	CodeSchema ErrorCode = "SCHEMA"

	// CodeCollision indicates a first virtual-table store found rows
	// already carrying its discriminator.
	CodeCollision ErrorCode = "DISCRIMINATOR_COLLISION"
)

// Error is a cache failure. Logical misses (stale or inconsistent batches)
// are never errors.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the cache operation: "fetch" or "store".
	Op string

	// Resource is the resource class involved.
	Resource string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Resource, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConnectivityError reports whether err is a store connectivity error.
// Uses errors.As to handle wrapped errors.
func IsConnectivityError(err error) bool {
	return hasCode(err, CodeConnectivity)
}

// IsSchemaError reports whether err is a schema error.
func IsSchemaError(err error) bool {
	return hasCode(err, CodeSchema)
}

// IsCollisionError reports whether err is a discriminator collision.
func IsCollisionError(err error) bool {
	return hasCode(err, CodeCollision)
}

func hasCode(err error, code ErrorCode) bool {
	ce, ok := asError(err)
	return ok && ce.Code == code
}

func asError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// classify wraps a collaborator failure. Store-level failures become
// connectivity errors, everything else is a schema error.
func classify(op, resource string, err error) error {
	if _, ok := asError(err); ok {
		return err
	}
	code := CodeSchema
	if errors.Is(err, docstore.ErrConnectivity) || errors.Is(err, docstore.ErrClosed) {
		code = CodeConnectivity
	}
	return &Error{Code: code, Op: op, Resource: resource, Err: err}
}

func schemaError(op, resource string, err error) error {
	return &Error{Code: CodeSchema, Op: op, Resource: resource, Err: err}
}

// newCollisionError builds the error of a colliding first store.
func newCollisionError(resource, discriminator string) error {
	return &Error{
		Code:     CodeCollision,
		Op:       "store",
		Resource: resource,
		Err:      fmt.Errorf("rows with discriminator %s already exist", discriminator),
	}
}

var errZeroFingerprint = errors.New("zero fingerprint")
