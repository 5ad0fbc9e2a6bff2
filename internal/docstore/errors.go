package docstore

import (
	"errors"
	"fmt"
)

// Store errors.
var (
	ErrConnectivity     = errors.New("store connectivity")
	ErrUnsupportedMode  = errors.New("unsupported store mode")
	ErrUnknownDriver    = errors.New("unknown store driver")
	ErrClosed           = errors.New("store closed")
	ErrInvalidName      = errors.New("invalid class name")
	ErrClassExists      = errors.New("class already exists")
	ErrUnknownClass     = errors.New("unknown class")
	ErrUnknownProperty  = errors.New("unknown property")
	ErrPropertyConflict = errors.New("conflicting property declaration")
	ErrMandatoryMissing = errors.New("mandatory property missing")
)

// connErr wraps a database failure for op in ErrConnectivity.
func connErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrConnectivity, err)
}
