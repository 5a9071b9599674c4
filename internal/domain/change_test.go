package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func vals(xs ...float64) []Value {
	out := make([]Value, len(xs))
	for i, x := range xs {
		out[i] = Float(x)
	}
	return out
}

func TestLatestChange(t *testing.T) {
	tests := []struct {
		name     string
		values   []Value
		expected Change
	}{
		{
			name:     "regime change",
			values:   vals(50, 50, 50, 45, 45),
			expected: Change{Current: 45, Previous: 50, Delta: -5, Valid: true},
		},
		{
			name:     "single value",
			values:   vals(50),
			expected: Change{Current: 50, Previous: 50, Delta: 0, Valid: true},
		},
		{
			name:     "all equal",
			values:   vals(42.5, 42.5, 42.5),
			expected: Change{Current: 42.5, Previous: 42.5, Delta: 0, Valid: true},
		},
		{
			name:     "only most recent regime change counts",
			values:   vals(40, 45, 50, 50),
			expected: Change{Current: 50, Previous: 45, Delta: 5, Valid: true},
		},
		{
			name:     "nulls skipped",
			values:   []Value{Float(47.5), Null(), Float(50), Null()},
			expected: Change{Current: 50, Previous: 47.5, Delta: 2.5, Valid: true},
		},
		{
			name:     "empty",
			values:   nil,
			expected: Change{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LatestChange(tt.values))
		})
	}
}

func TestPreviousRowChange(t *testing.T) {
	assert.Equal(t, Change{Current: 12, Previous: 10, Delta: 2, Valid: true}, PreviousRowChange(vals(8, 10, 12)))
	assert.Equal(t, Change{Current: 7, Previous: 7, Valid: true}, PreviousRowChange(vals(7)))
	assert.Equal(t, Change{Current: 9, Previous: 8, Delta: 1, Valid: true}, PreviousRowChange([]Value{Float(8), Null(), Float(9), Null()}))
	assert.False(t, PreviousRowChange([]Value{Null()}).Valid)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Value{Float(2), Null(), Float(4), Float(6)})
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 4.0, s.Mean, 1e-9)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 6.0, s.Max)
	assert.InDelta(t, 2.0, s.StdDev, 1e-9)

	single := Summarize(vals(5))
	assert.Equal(t, Summary{Count: 1, Mean: 5, Min: 5, Max: 5}, single)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestParseValue(t *testing.T) {
	v, ok := ParseValue(" 30.25 ")
	assert.True(t, ok)
	assert.Equal(t, Float(30.25), v)

	v, ok = ParseValue("")
	assert.True(t, ok)
	assert.False(t, v.Valid)

	v, ok = ParseValue("ND")
	assert.True(t, ok)
	assert.False(t, v.Valid)

	v, ok = ParseValue("abc")
	assert.False(t, ok)
	assert.False(t, v.Valid)

	for _, token := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity", "1e999"} {
		v, ok = ParseValue(token)
		assert.False(t, ok, token)
		assert.False(t, v.Valid, token)
	}
}

func TestValue_MarshalJSONNonFinite(t *testing.T) {
	data, err := Float(math.NaN()).MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "null", string(data))

	data, err = Float(math.Inf(1)).MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestValue_UnmarshalJSON(t *testing.T) {
	var v Value
	assert.NoError(t, v.UnmarshalJSON([]byte(`"12.5"`)))
	assert.Equal(t, Float(12.5), v)

	assert.NoError(t, v.UnmarshalJSON([]byte(`7`)))
	assert.Equal(t, Float(7), v)

	assert.NoError(t, v.UnmarshalJSON([]byte(`null`)))
	assert.False(t, v.Valid)

	assert.NoError(t, v.UnmarshalJSON([]byte(`"bad"`)))
	assert.False(t, v.Valid)
}

func TestParseWireDate(t *testing.T) {
	d, err := ParseWireDate("05-03-2024")
	assert.NoError(t, err)
	assert.Equal(t, date(2024, 3, 5), d)
	assert.Equal(t, "05-03-2024", FormatWireDate(d))

	_, err = ParseWireDate("2024-03-05")
	assert.Error(t, err)
}
