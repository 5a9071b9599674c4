package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/macrolens/internal/domain"
	"github.com/aristath/macrolens/internal/evds"
)

type fakeSource struct {
	mu     sync.Mutex
	starts map[string]time.Time
	ends   map[string]time.Time

	fx, cpi, policy, production, labor *domain.Table
	errs                               map[string]error
}

func (f *fakeSource) record(op string, start, end time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.starts == nil {
		f.starts = map[string]time.Time{}
		f.ends = map[string]time.Time{}
	}
	f.starts[op] = start
	f.ends[op] = end
}

func (f *fakeSource) result(op string, t *domain.Table) (*domain.Table, error) {
	if err := f.errs[op]; err != nil {
		return domain.Empty(), err
	}
	if t == nil {
		return domain.Empty(), nil
	}
	return t, nil
}

func (f *fakeSource) GetExchangeRates(_ context.Context, start, end time.Time, _ ...string) (*domain.Table, error) {
	f.record("exchange_rates", start, end)
	return f.result("exchange_rates", f.fx)
}

func (f *fakeSource) GetCPI(_ context.Context, start, end time.Time) (*domain.Table, error) {
	f.record("cpi", start, end)
	return f.result("cpi", f.cpi)
}

func (f *fakeSource) GetPolicyRate(_ context.Context, start, end time.Time) (*domain.Table, error) {
	f.record("policy_rate", start, end)
	return f.result("policy_rate", f.policy)
}

func (f *fakeSource) GetProduction(_ context.Context, start, end time.Time) (*domain.Table, error) {
	f.record("production", start, end)
	return f.result("production", f.production)
}

func (f *fakeSource) GetLabor(_ context.Context, start, end time.Time) (*domain.Table, error) {
	f.record("labor", start, end)
	return f.result("labor", f.labor)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func row(d time.Time, vs ...domain.Value) domain.Row {
	return domain.Row{Date: d, Values: vs}
}

var (
	num  = domain.Float
	null = domain.Null()
	now  = time.Date(2024, 6, 30, 15, 4, 5, 0, time.UTC)
)

func fullSource() *fakeSource {
	return &fakeSource{
		fx: domain.NewTable([]string{evds.ColUSD, evds.ColEUR}, []domain.Row{
			row(date(2023, 1, 2), num(18.7), num(20.0)), // outside the chart window
			row(date(2024, 6, 26), num(32.5), num(35.0)),
			row(date(2024, 6, 27), num(32.8), null),
			row(date(2024, 6, 28), null, num(35.4)),
		}),
		cpi: domain.NewTable([]string{evds.ColCPIIndex, evds.ColCPIAnnual, evds.ColCPIMonthly}, []domain.Row{
			row(date(2024, 4, 1), num(2000), num(69.8), num(3.2)),
			row(date(2024, 5, 1), num(2070), num(75.4), num(3.4)),
		}),
		policy: domain.NewTable([]string{evds.ColPolicyRate}, []domain.Row{
			row(date(2024, 3, 1), num(45)),
			row(date(2024, 3, 22), num(50)),
			row(date(2024, 6, 1), num(50)),
		}),
		production: domain.NewTable([]string{evds.ColCapacityUtilization}, []domain.Row{
			row(date(2024, 4, 1), num(76.0)),
			row(date(2024, 5, 1), num(75.5)),
		}),
		labor: domain.NewTable([]string{evds.ColUnemploymentRate, evds.ColParticipationRate}, []domain.Row{
			row(date(2024, 4, 1), num(8.6), num(53.3)),
			row(date(2024, 5, 1), num(8.5), num(53.4)),
		}),
	}
}

func cardByKey(t *testing.T, o *Overview, key string) Card {
	t.Helper()
	for _, c := range o.Cards {
		if c.Key == key {
			return c
		}
	}
	t.Fatalf("card %s not found", key)
	return Card{}
}

func TestOverview_Window(t *testing.T) {
	src := fullSource()
	svc := NewService(src, zerolog.Nop())

	o, err := svc.Overview(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, date(2024, 6, 30), o.End)
	assert.Equal(t, date(2023, 5, 27), o.Start)
	for _, op := range []string{"exchange_rates", "cpi", "policy_rate", "production", "labor"} {
		assert.Equal(t, o.Start, src.starts[op], op)
		assert.Equal(t, o.End, src.ends[op], op)
	}
	assert.Len(t, o.Cards, 6)
}

func TestOverview_Cards(t *testing.T) {
	svc := NewService(fullSource(), zerolog.Nop())

	o, err := svc.Overview(context.Background(), now)
	require.NoError(t, err)

	cpi := cardByKey(t, o, "cpi_annual")
	assert.Nil(t, cpi.Notice)
	assert.InDelta(t, 75.4, cpi.Change.Current, 1e-9)
	assert.InDelta(t, 5.6, cpi.Change.Delta, 1e-9)

	usd := cardByKey(t, o, "usd_try")
	assert.InDelta(t, 32.8, usd.Change.Current, 1e-9, "forward filled")
	assert.InDelta(t, 0.0, usd.Change.Delta, 1e-9)
	assert.Equal(t, 3, usd.Chart.Len(), "chart keeps the last year only")
	assert.Equal(t, []string{evds.ColUSD}, usd.Chart.Columns())
	assert.Equal(t, 3, usd.Summary.Count)

	eur := cardByKey(t, o, "eur_try")
	assert.InDelta(t, 35.4, eur.Change.Current, 1e-9)
	assert.InDelta(t, 0.4, eur.Change.Delta, 1e-9)

	policy := cardByKey(t, o, "policy_rate")
	assert.Equal(t, 50.0, policy.Change.Current)
	assert.Equal(t, 45.0, policy.Change.Previous)
	assert.Equal(t, 5.0, policy.Change.Delta)

	capacity := cardByKey(t, o, "capacity_utilization")
	assert.InDelta(t, -0.5, capacity.Change.Delta, 1e-9)

	unemployment := cardByKey(t, o, "unemployment_rate")
	assert.InDelta(t, 8.5, unemployment.Change.Current, 1e-9)
	assert.InDelta(t, 8.55, unemployment.Summary.Mean, 1e-9)
}

func TestOverview_FailuresBecomeNotices(t *testing.T) {
	src := fullSource()
	src.errs = map[string]error{
		"policy_rate": &evds.Error{Kind: evds.KindTransport, Op: "policy_rate", Err: errors.New("timeout")},
	}
	src.labor = domain.Empty()

	o, err := NewService(src, zerolog.Nop()).Overview(context.Background(), now)
	require.NoError(t, err)

	policy := cardByKey(t, o, "policy_rate")
	require.NotNil(t, policy.Notice)
	assert.Equal(t, evds.NoticeFetchFailed, policy.Notice.Kind)
	assert.False(t, policy.Change.Valid)
	assert.True(t, policy.Chart.IsEmpty())

	unemployment := cardByKey(t, o, "unemployment_rate")
	require.NotNil(t, unemployment.Notice)
	assert.Equal(t, evds.NoticeNoData, unemployment.Notice.Kind)

	assert.Nil(t, cardByKey(t, o, "cpi_annual").Notice)
}

func TestOverview_MissingCredential(t *testing.T) {
	cfgErr := &evds.Error{Kind: evds.KindConfiguration, Err: evds.ErrMissingCredential}
	src := &fakeSource{errs: map[string]error{
		"exchange_rates": cfgErr, "cpi": cfgErr, "policy_rate": cfgErr, "production": cfgErr, "labor": cfgErr,
	}}

	o, err := NewService(src, zerolog.Nop()).Overview(context.Background(), now)
	require.NoError(t, err)
	for _, c := range o.Cards {
		require.NotNil(t, c.Notice, c.Key)
		assert.Equal(t, evds.NoticeMissingCredential, c.Notice.Kind, c.Key)
	}
}

func TestOverview_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(fullSource(), zerolog.Nop()).Overview(ctx, now)
	assert.ErrorIs(t, err, context.Canceled)
}
