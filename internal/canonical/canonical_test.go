package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeys(t *testing.T) {
	got, err := Marshal(map[string]any{
		"b": int64(2),
		"a": "x",
		"c": []any{true, false},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"c":[true,false]}`, string(got))
}

func TestMarshal_MapOrderIndependent(t *testing.T) {
	m1 := map[string]any{"x": 1, "y": 2, "z": 3}
	m2 := map[string]any{"z": 3, "x": 1, "y": 2}

	b1 := MustMarshal(m1)
	b2 := MustMarshal(m2)
	assert.Equal(t, b1, b2)
}

func TestMarshal_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes to the surrogate pair D83D DE00, which sorts before
	// U+FF61 in UTF-16 but after it in UTF-8.
	got := MustMarshal(map[string]any{
		"\uFF61":     "halfwidth",
		"\U0001F600": "emoji",
	})
	assert.Equal(t, "{\"\U0001F600\":\"emoji\",\"\uFF61\":\"halfwidth\"}", string(got))
}

func TestMarshal_NoHTMLEscape(t *testing.T) {
	got := MustMarshal("<a & b>")
	assert.Equal(t, `"<a & b>"`, string(got))
}

func TestMarshal_EscapesControlCharacters(t *testing.T) {
	got := MustMarshal("a\"b\\c\nd\x01")
	assert.Equal(t, `"a\"b\\c\nd\u0001"`, string(got))
}

func TestMarshal_LineSeparatorsLiteral(t *testing.T) {
	got := MustMarshal("a\u2028b\u2029c")
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))
}

func TestMarshal_NFCNormalization(t *testing.T) {
	// e + combining acute accent must serialize like the precomposed form.
	decomposed := MustMarshal("e\u0301")
	precomposed := MustMarshal("\u00e9")
	assert.Equal(t, precomposed, decomposed)
}

func TestMarshal_RejectsFloatAndNull(t *testing.T) {
	_, err := Marshal(1.5)
	assert.Error(t, err)

	_, err = Marshal(nil)
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"price": 9.99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"price"`)
}

func TestMarshal_Strings(t *testing.T) {
	got := MustMarshal([]string{"b", "a"})
	assert.Equal(t, `["b","a"]`, string(got))
}

func TestHashWithDomain(t *testing.T) {
	h1 := HashWithDomain(DomainFingerprint, []byte("data"))
	h2 := HashWithDomain(DomainFingerprint, []byte("data"))
	h3 := HashWithDomain("other/v1", []byte("data"))

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3, "domain must separate hashes")
	assert.Len(t, h1, 64)
}

func TestHash(t *testing.T) {
	h, err := Hash(DomainFingerprint, map[string]any{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, HashWithDomain(DomainFingerprint, []byte(`{"a":"b"}`)), h)

	_, err = Hash(DomainFingerprint, 1.5)
	assert.Error(t, err)
}
