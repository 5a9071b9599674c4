package evds

import "github.com/aristath/macrolens/internal/domain"

// DeriveInflation adds CPI_Annual and CPI_Monthly to a date-sorted table carrying
// CPI_Index. Changes are taken over the row sequence (12 rows back, 1 row back), not
// calendar months. Tables without CPI_Index are returned unchanged.
func DeriveInflation(t *domain.Table) *domain.Table {
	index, ok := t.Column(ColCPIIndex)
	if !ok {
		return t
	}
	return t.
		WithColumn(ColCPIAnnual, PercentChange(index, 12)).
		WithColumn(ColCPIMonthly, PercentChange(index, 1))
}

// PercentChange returns (v[i]/v[i-periods] - 1) * 100 for each row.
// Rows without a valid, non-zero reference are null.
func PercentChange(values []domain.Value, periods int) []domain.Value {
	out := make([]domain.Value, len(values))
	for i := range values {
		if i < periods {
			continue
		}
		cur, prev := values[i], values[i-periods]
		if !cur.Valid || !prev.Valid || prev.Float == 0 {
			continue
		}
		out[i] = domain.Float((cur.Float/prev.Float - 1) * 100)
	}
	return out
}
