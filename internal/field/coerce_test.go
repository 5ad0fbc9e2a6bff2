package field

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGUID_RoundTrip(t *testing.T) {
	id := uuid.MustParse("6F9619FF-8B86-D011-B42D-00C04FC964FF")

	stored, err := GUID.Encode(id)
	require.NoError(t, err)
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00c04fc964ff", stored)

	decoded, err := GUID.Decode(stored)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)

	decoded, err = GUID.Decode([]byte("6f9619ff-8b86-d011-b42d-00c04fc964ff"))
	require.NoError(t, err)
	assert.Equal(t, id, decoded)
}

func TestGUID_FromString(t *testing.T) {
	stored, err := GUID.Encode("6F9619FF-8B86-D011-B42D-00C04FC964FF")
	require.NoError(t, err)
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00c04fc964ff", stored, "text is normalized")

	_, err = GUID.Encode("not-a-guid")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestDATETIME_RoundTrip(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123456789, loc)

	stored, err := DATETIME.Encode(ts)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T09:30:45.123456789Z", stored)

	decoded, err := DATETIME.Decode(stored)
	require.NoError(t, err)
	got := decoded.(time.Time)
	assert.True(t, ts.Equal(got), "instant must round-trip")
	assert.Equal(t, time.UTC, got.Location())
}

func TestDATETIME_TextOrderIsChronological(t *testing.T) {
	early := FormatTime(time.Date(2024, 1, 1, 0, 0, 0, 5, time.UTC))
	late := FormatTime(time.Date(2024, 1, 1, 0, 0, 0, 40, time.UTC))
	assert.Less(t, early, late)
	assert.Len(t, early, len(late))
}

func TestDATETIME_DecodeAcceptsDriverTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	decoded, err := DATETIME.Decode(ts.In(time.FixedZone("X", 3600)))
	require.NoError(t, err)
	assert.Equal(t, ts, decoded)

	decoded, err = DATETIME.Decode("2024-03-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, ts, decoded)
}

func TestBOOLEAN_Coercion(t *testing.T) {
	stored, err := BOOLEAN.Encode(true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored)

	for _, raw := range []any{int64(1), true} {
		got, err := BOOLEAN.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, true, got)
	}
	got, err := BOOLEAN.Decode(int64(0))
	require.NoError(t, err)
	assert.Equal(t, false, got)

	_, err = BOOLEAN.Encode("yes")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestNumeric_Coercion(t *testing.T) {
	stored, err := LONG.Encode(42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), stored)

	got, err := LONG.Decode(int64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = SHORT.Encode(70000)
	assert.ErrorIs(t, err, ErrTypeMismatch, "SHORT is range checked")

	got, err = SHORT.Decode(int64(-7))
	require.NoError(t, err)
	assert.Equal(t, int16(-7), got)

	stored, err = DOUBLE.Encode(3)
	require.NoError(t, err)
	assert.Equal(t, float64(3), stored)

	got, err = DOUBLE.Decode(int64(3))
	require.NoError(t, err)
	assert.Equal(t, float64(3), got)

	_, err = LONG.Encode(1.5)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = LONG.Encode(uint64(1) << 63)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSTRING_And_BINARY(t *testing.T) {
	got, err := STRING.Decode([]byte("Pen"))
	require.NoError(t, err)
	assert.Equal(t, "Pen", got)

	_, err = STRING.Encode(12)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	stored, err := BINARY.Encode([]byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, stored)

	got, err = BINARY.Decode([]byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)
}

func TestNil_EncodesAndDecodesToNil(t *testing.T) {
	for _, typ := range AllTypes {
		stored, err := typ.Encode(nil)
		require.NoError(t, err)
		assert.Nil(t, stored)

		decoded, err := typ.Decode(nil)
		require.NoError(t, err)
		assert.Nil(t, decoded)
	}
}
