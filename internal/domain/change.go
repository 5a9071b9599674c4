package domain

// Change describes the latest value of a series against an earlier reference value.
type Change struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	Delta    float64 `json:"delta"`
	Valid    bool    `json:"valid"`
}

// LatestChange compares the last value of a series with the previous distinct value.
//
// Runs of equal values form one regime: the scan walks backward from the end until it
// finds a value different from the current one. If there is none, Previous equals
// Current and Delta is zero. Null values are skipped.
func LatestChange(values []Value) Change {
	last := -1
	for i := len(values) - 1; i >= 0; i-- {
		if values[i].Valid {
			last = i
			break
		}
	}
	if last < 0 {
		return Change{}
	}

	current := values[last].Float
	previous := current
	for i := last - 1; i >= 0; i-- {
		if values[i].Valid && values[i].Float != current {
			previous = values[i].Float
			break
		}
	}
	return Change{Current: current, Previous: previous, Delta: current - previous, Valid: true}
}

// PreviousRowChange compares the last valid value with the valid value just before it.
// A single valid value yields a zero delta.
func PreviousRowChange(values []Value) Change {
	idx := make([]int, 0, 2)
	for i := len(values) - 1; i >= 0 && len(idx) < 2; i-- {
		if values[i].Valid {
			idx = append(idx, i)
		}
	}
	switch len(idx) {
	case 0:
		return Change{}
	case 1:
		v := values[idx[0]].Float
		return Change{Current: v, Previous: v, Valid: true}
	}
	current, previous := values[idx[0]].Float, values[idx[1]].Float
	return Change{Current: current, Previous: previous, Delta: current - previous, Valid: true}
}
