package evds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/macrolens/internal/domain"
)

func cpiTable(index ...domain.Value) *domain.Table {
	rows := make([]domain.Row, len(index))
	for i, v := range index {
		rows[i] = domain.Row{Date: time.Date(2023, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC), Values: []domain.Value{v}}
	}
	return domain.NewTable([]string{ColCPIIndex}, rows)
}

func TestPercentChange(t *testing.T) {
	values := []domain.Value{domain.Float(100), domain.Float(110), domain.Null(), domain.Float(0), domain.Float(5)}

	out := PercentChange(values, 1)
	require.Len(t, out, 5)
	assert.False(t, out[0].Valid, "no reference row")
	assert.InDelta(t, 10.0, out[1].Float, 1e-9)
	assert.False(t, out[2].Valid, "null current")
	assert.False(t, out[3].Valid, "null reference")
	assert.False(t, out[4].Valid, "zero reference")
}

func TestDeriveInflation(t *testing.T) {
	index := make([]domain.Value, 13)
	for i := range index {
		index[i] = domain.Float(100 + float64(i))
	}
	index[12] = domain.Float(112)
	index[11] = domain.Float(110)

	out := DeriveInflation(cpiTable(index...))
	assert.Equal(t, []string{ColCPIIndex, ColCPIAnnual, ColCPIMonthly}, out.Columns())

	annual, _ := out.Column(ColCPIAnnual)
	monthly, _ := out.Column(ColCPIMonthly)
	for i := 0; i < 12; i++ {
		assert.False(t, annual[i].Valid, "row %d has fewer than 12 prior rows", i)
	}
	assert.InDelta(t, 12.0, annual[12].Float, 1e-9)
	assert.InDelta(t, 1.818, monthly[12].Float, 1e-3)
	assert.False(t, monthly[0].Valid)
}

func TestDeriveInflation_WithoutIndexColumn(t *testing.T) {
	in := domain.Empty(ColPolicyRate)
	assert.Same(t, in, DeriveInflation(in))
}

func TestDeriveInflation_DoesNotModifyInput(t *testing.T) {
	in := cpiTable(domain.Float(100), domain.Float(101))
	_ = DeriveInflation(in)
	assert.Equal(t, []string{ColCPIIndex}, in.Columns())
}
