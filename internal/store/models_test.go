package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayValue_QuotesElements(t *testing.T) {
	tests := []struct {
		name  string
		array StringArray
		want  string
	}{
		{"plain", StringArray{"saas", "startup"}, `{"saas","startup"}`},
		{"comma", StringArray{"ai, ml", "devops"}, `{"ai, ml","devops"}`},
		{"braces", StringArray{"{growth}"}, `{"{growth}"}`},
		{"quotes and backslash", StringArray{`say "hi"`, `a\b`}, `{"say \"hi\"","a\\b"}`},
		{"empty element", StringArray{""}, `{""}`},
		{"empty array", StringArray{}, "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := tt.array.Value()
			require.NoError(t, err)
			assert.Equal(t, tt.want, value)
		})
	}
}

func TestStringArrayValue_NilIsNull(t *testing.T) {
	var a StringArray
	value, err := a.Value()
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestStringArrayRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		array StringArray
	}{
		{"plain", StringArray{"saas", "startup", "indie hackers"}},
		{"comma in element", StringArray{"fitness, nutrition", "coaching"}},
		{"braces in element", StringArray{"{a,b}", "c"}},
		{"quotes and backslash", StringArray{`need a "simple" tool`, `path\to\thing`}},
		{"single element", StringArray{"growth"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := tt.array.Value()
			require.NoError(t, err)

			var scanned StringArray
			require.NoError(t, scanned.Scan(value))
			assert.Equal(t, tt.array, scanned)
		})
	}
}

func TestStringArrayScan_Variants(t *testing.T) {
	var a StringArray
	require.NoError(t, a.Scan(nil))
	assert.Nil(t, a)

	require.NoError(t, a.Scan("{}"))
	assert.Equal(t, StringArray{}, a)

	require.NoError(t, a.Scan([]byte(`{"bytes","input"}`)))
	assert.Equal(t, StringArray{"bytes", "input"}, a)

	// Unquoted literals as Postgres emits them for simple values.
	require.NoError(t, a.Scan("{saas,startup}"))
	assert.Equal(t, StringArray{"saas", "startup"}, a)

	assert.Error(t, a.Scan(42))
	assert.Error(t, a.Scan("not an array"))
}
