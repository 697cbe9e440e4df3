package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_NationalFormats(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"formatted mobile", "(11) 99845-7676", "+5511998457676"},
		{"bare mobile with country code", "5511998457676", "+5511998457676"},
		{"spaced mobile", "11 99845 7676", "+5511998457676"},
		{"dashed with plus", "+55 11 99845-7676", "+5511998457676"},
		{"fixed line", "(11) 3333-4444", "+551133334444"},
		{"doubled country code", "555511998457676", "+5511998457676"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, canonical := range []string{"+5511998457676", "+551133334444", "+351912345678", "+12025550123"} {
		got, err := Normalize(canonical)
		require.NoError(t, err)
		assert.Equal(t, canonical, got)

		// Re-normalizing the output is a fixed point.
		again, err := Normalize(got)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestNormalize_FallbackRegions(t *testing.T) {
	// A Portuguese mobile in national format only parses under the PT fallback.
	got, err := Normalize("912 345 678")
	require.NoError(t, err)
	assert.Equal(t, "+351912345678", got)
}

func TestNormalize_Unparseable(t *testing.T) {
	for _, raw := range []string{"", "123", "abc", "---", "+123"} {
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, ErrUnparseable, "input %q", raw)
	}
}

func TestIsCanonical(t *testing.T) {
	assert.True(t, IsCanonical("+5511998457676"))
	assert.False(t, IsCanonical("5511998457676"), "missing plus")
	assert.False(t, IsCanonical("+123"), "shape ok but not a valid number")
	assert.False(t, IsCanonical("(11) 99845-7676"))
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "5511998457676", Digits("+55 (11) 99845-7676"))
	assert.Equal(t, "", Digits("no digits"))
}

func TestLastDigits(t *testing.T) {
	assert.Equal(t, "998457676", LastDigits("+5511998457676", 9))
	assert.Equal(t, "98457676", LastDigits("+5511998457676", 8))
	assert.Equal(t, "", LastDigits("123", 8), "short fragments yield no suffix")
}

func TestVendorFormat_RoundTrip(t *testing.T) {
	canonical, err := Normalize("(11) 99845-7676")
	require.NoError(t, err)
	assert.Equal(t, "5511998457676", VendorFormat(canonical))
}
