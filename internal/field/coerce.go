package field

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the store representation of DATETIME values: always UTC
// with nanosecond precision and fixed width, so text ordering equals
// chronological ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Encode converts a Go value into the store-native representation for
// type t. A nil value encodes to nil for every type.
func (t Type) Encode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case GUID:
		id, err := toUUID(v)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	case STRING:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(t, v)
		}
		return s, nil
	case LONG:
		n, ok := toInt64(v)
		if !ok {
			return nil, mismatch(t, v)
		}
		return n, nil
	case SHORT:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt16 || n > math.MaxInt16 {
			return nil, mismatch(t, v)
		}
		return n, nil
	case DOUBLE:
		f, ok := toFloat64(v)
		if !ok {
			return nil, mismatch(t, v)
		}
		return f, nil
	case BOOLEAN:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(t, v)
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case DATETIME:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, mismatch(t, v)
		}
		return FormatTime(ts), nil
	case BINARY:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return nil, mismatch(t, v)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// Decode converts a store-native value back into the typed Go value for
// type t. It accepts the representations produced by both supported
// SQLite drivers. A nil value decodes to nil.
func (t Type) Decode(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t {
	case GUID:
		return toUUID(raw)
	case STRING:
		switch s := raw.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
		return nil, mismatch(t, raw)
	case LONG:
		n, ok := rawInt64(raw)
		if !ok {
			return nil, mismatch(t, raw)
		}
		return n, nil
	case SHORT:
		n, ok := rawInt64(raw)
		if !ok || n < math.MinInt16 || n > math.MaxInt16 {
			return nil, mismatch(t, raw)
		}
		return int16(n), nil
	case DOUBLE:
		switch f := raw.(type) {
		case float64:
			return f, nil
		case int64:
			return float64(f), nil
		case string:
			return parseFloat(t, f)
		case []byte:
			return parseFloat(t, string(f))
		}
		return nil, mismatch(t, raw)
	case BOOLEAN:
		switch b := raw.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		}
		return nil, mismatch(t, raw)
	case DATETIME:
		switch ts := raw.(type) {
		case time.Time:
			return ts.UTC(), nil
		case string:
			return ParseTime(ts)
		case []byte:
			return ParseTime(string(ts))
		}
		return nil, mismatch(t, raw)
	case BINARY:
		switch b := raw.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return nil, mismatch(t, raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// FormatTime renders ts in TimeLayout.
func FormatTime(ts time.Time) string {
	return ts.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout value, falling back to RFC 3339.
func ParseTime(s string) (time.Time, error) {
	ts, err := time.Parse(TimeLayout, s)
	if err == nil {
		return ts, nil
	}
	ts, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: DATETIME from %q", ErrTypeMismatch, s)
	}
	return ts.UTC(), nil
}

func toUUID(v any) (uuid.UUID, error) {
	switch id := v.(type) {
	case uuid.UUID:
		return id, nil
	case string:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: GUID from %q: %v", ErrTypeMismatch, id, err)
		}
		return parsed, nil
	case []byte:
		return toUUID(string(id))
	}
	return uuid.Nil, mismatch(GUID, v)
}

// toInt64 accepts every Go integer kind; unsigned values must fit int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	n, ok := toInt64(v)
	return float64(n), ok
}

// rawInt64 reads an integer column value; drivers may report integers
// declared as booleans as bool, and text as string or bytes.
func rawInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	case []byte:
		parsed, err := strconv.ParseInt(string(n), 10, 64)
		return parsed, err == nil
	}
	return 0, false
}

func parseFloat(t Type, s string) (any, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s from %q", ErrTypeMismatch, t, s)
	}
	return f, nil
}

func mismatch(t Type, v any) error {
	return fmt.Errorf("%w: %s from %T", ErrTypeMismatch, t, v)
}
