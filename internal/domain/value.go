package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Value is a nullable numeric reading.
type Value struct {
	Float float64
	Valid bool
}

// Float returns a valid value.
func Float(f float64) Value {
	return Value{Float: f, Valid: true}
}

// Null returns a missing value.
func Null() Value {
	return Value{}
}

// ParseValue converts an upstream token to a Value.
// Unparseable tokens, NaN and infinities included, become null instead of failing.
func ParseValue(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nd") {
		return Null(), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !IsFinite(f) {
		return Null(), false
	}
	return Float(f), true
}

// IsFinite reports whether f is neither NaN nor an infinity.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MarshalJSON encodes null for missing and non-finite values.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid || !IsFinite(v.Float) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON accepts null, numbers and numeric strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v, _ = ParseValue(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Float(f)
	return nil
}

// Date layouts.
const (
	// WireDateLayout is the dd-mm-yyyy format used by the upstream service and the API.
	WireDateLayout = "02-01-2006"
	// ISODateLayout is used when encoding tables for consumers.
	ISODateLayout = "2006-01-02"
)

// Day truncates t to a calendar date in UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseWireDate parses a dd-mm-yyyy date.
func ParseWireDate(s string) (time.Time, error) {
	t, err := time.Parse(WireDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// FormatWireDate formats t as dd-mm-yyyy.
func FormatWireDate(t time.Time) string {
	return t.Format(WireDateLayout)
}
