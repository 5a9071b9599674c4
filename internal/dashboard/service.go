// Package dashboard builds the executive overview: the latest reading of every
// indicator family with its change, a one-year chart and summary statistics.
package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/macrolens/internal/domain"
	"github.com/aristath/macrolens/internal/evds"
)

const (
	// FetchWindow is how far back the overview fetches.
	FetchWindow = 400 * 24 * time.Hour
	// ChartWindow is how much history each chart shows.
	ChartWindow = 365 * 24 * time.Hour
)

// SeriesSource is the part of the series client the overview needs.
type SeriesSource interface {
	GetExchangeRates(ctx context.Context, start, end time.Time, currencies ...string) (*domain.Table, error)
	GetCPI(ctx context.Context, start, end time.Time) (*domain.Table, error)
	GetPolicyRate(ctx context.Context, start, end time.Time) (*domain.Table, error)
	GetProduction(ctx context.Context, start, end time.Time) (*domain.Table, error)
	GetLabor(ctx context.Context, start, end time.Time) (*domain.Table, error)
}

// ChangeMode selects how a card's delta is computed.
type ChangeMode int

const (
	// PreviousRow compares the last value with the one before it.
	PreviousRow ChangeMode = iota
	// PreviousRegime compares the last value with the previous distinct value.
	PreviousRegime
)

// Card is one headline metric.
type Card struct {
	Key         string         `json:"key"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Unit        string         `json:"unit"`
	Change      domain.Change  `json:"change"`
	Summary     domain.Summary `json:"summary"`
	Chart       *domain.Table  `json:"chart"`
	Notice      *evds.Notice   `json:"notice,omitempty"`
}

// Overview is the dashboard payload.
type Overview struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	GeneratedAt time.Time `json:"generated_at"`
	Cards       []Card    `json:"cards"`
}

// cardSpec describes how a card is derived from a family's table.
type cardSpec struct {
	key         string
	title       string
	description string
	unit        string
	column      string
	family      string
	mode        ChangeMode
	forwardFill bool
}

var cardSpecs = []cardSpec{
	{key: "cpi_annual", title: "Annual Inflation", description: "YoY Change", unit: "%",
		column: evds.ColCPIAnnual, family: evds.CPI.Operation},
	{key: "usd_try", title: "USD/TRY", description: "Daily Rate", unit: "TRY",
		column: evds.ColUSD, family: evds.ExchangeRates.Operation, forwardFill: true},
	{key: "eur_try", title: "EUR/TRY", description: "Daily Rate", unit: "TRY",
		column: evds.ColEUR, family: evds.ExchangeRates.Operation, forwardFill: true},
	{key: "policy_rate", title: "Policy Rate", description: "Funding cost proxy", unit: "%",
		column: evds.ColPolicyRate, family: evds.PolicyRate.Operation, mode: PreviousRegime},
	{key: "capacity_utilization", title: "Capacity Utilization", description: "Manufacturing", unit: "%",
		column: evds.ColCapacityUtilization, family: evds.Production.Operation},
	{key: "unemployment_rate", title: "Unemployment Rate", description: "Labor market", unit: "%",
		column: evds.ColUnemploymentRate, family: evds.Labor.Operation},
}

type result struct {
	table *domain.Table
	err   error
}

// Service assembles overviews.
type Service struct {
	source SeriesSource
	log    zerolog.Logger
}

// NewService creates a dashboard service.
func NewService(source SeriesSource, log zerolog.Logger) *Service {
	return &Service{
		source: source,
		log:    log.With().Str("service", "dashboard").Logger(),
	}
}

// Overview fetches every family for the window ending at now and builds the cards.
// A failing family yields a card with a notice; it does not fail the overview.
func (s *Service) Overview(ctx context.Context, now time.Time) (*Overview, error) {
	end := domain.Day(now)
	start := domain.Day(now.Add(-FetchWindow))

	results := make(map[string]*result, len(evds.Indicators))
	fetchers := map[string]func(context.Context) (*domain.Table, error){
		evds.ExchangeRates.Operation: func(ctx context.Context) (*domain.Table, error) {
			return s.source.GetExchangeRates(ctx, start, end, evds.ColUSD, evds.ColEUR)
		},
		evds.CPI.Operation: func(ctx context.Context) (*domain.Table, error) {
			return s.source.GetCPI(ctx, start, end)
		},
		evds.PolicyRate.Operation: func(ctx context.Context) (*domain.Table, error) {
			return s.source.GetPolicyRate(ctx, start, end)
		},
		evds.Production.Operation: func(ctx context.Context) (*domain.Table, error) {
			return s.source.GetProduction(ctx, start, end)
		},
		evds.Labor.Operation: func(ctx context.Context) (*domain.Table, error) {
			return s.source.GetLabor(ctx, start, end)
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for family, fetch := range fetchers {
		fetch := fetch
		r := &result{}
		results[family] = r
		g.Go(func() error {
			r.table, r.err = fetch(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chartStart := domain.Day(now.Add(-ChartWindow))
	overview := &Overview{
		Start:       start,
		End:         end,
		GeneratedAt: now,
		Cards:       make([]Card, 0, len(cardSpecs)),
	}
	for _, spec := range cardSpecs {
		r := results[spec.family]
		overview.Cards = append(overview.Cards, buildCard(spec, r.table, r.err, chartStart))
		if r.err != nil {
			s.log.Warn().Err(r.err).Str("card", spec.key).Msg("Overview card has no data")
		}
	}
	return overview, nil
}

func buildCard(spec cardSpec, table *domain.Table, err error, chartStart time.Time) Card {
	card := Card{
		Key:         spec.key,
		Title:       spec.title,
		Description: spec.description,
		Unit:        spec.unit,
		Chart:       domain.Empty(spec.column),
	}

	if table == nil {
		table = domain.Empty()
	}
	if !table.HasColumn(spec.column) {
		card.Notice = evds.NoticeFor(domain.Empty(), err)
		return card
	}

	if spec.forwardFill {
		table = table.ForwardFill()
	}
	table = table.DropNull(spec.column)
	if table.IsEmpty() {
		card.Notice = evds.NoticeFor(table, err)
		return card
	}

	values, _ := table.Column(spec.column)
	switch spec.mode {
	case PreviousRegime:
		card.Change = domain.LatestChange(values)
	default:
		card.Change = domain.PreviousRowChange(values)
	}

	card.Chart = selectColumn(table.Since(chartStart), spec.column)
	chartValues, _ := card.Chart.Column(spec.column)
	card.Summary = domain.Summarize(chartValues)
	return card
}

// selectColumn projects a table onto one value column.
func selectColumn(t *domain.Table, column string) *domain.Table {
	values, ok := t.Column(column)
	if !ok {
		return domain.Empty(column)
	}
	rows := make([]domain.Row, t.Len())
	for i, d := range t.Dates() {
		rows[i] = domain.Row{Date: d, Values: []domain.Value{values[i]}}
	}
	return domain.NewTable([]string{column}, rows)
}
