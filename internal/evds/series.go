package evds

import (
	"time"

	"github.com/aristath/macrolens/internal/domain"
)

// Upstream series codes. These must match the statistics service exactly.
const (
	CodeUSD                 = "TP.DK.USD.A"
	CodeEUR                 = "TP.DK.EUR.A"
	CodeGBP                 = "TP.DK.GBP.A"
	CodeCPIIndex            = "TP.FG.J0"
	CodePolicyRate          = "TP.APIFON4" // weighted average funding cost, used as the policy rate proxy
	CodeCapacityUtilization = "TP.KKO.MA"
	CodeUnemploymentRate    = "TP.TIG08"
	CodeParticipationRate   = "TP.TIG07"
)

// Normalized column names.
const (
	ColUSD                 = "USD"
	ColEUR                 = "EUR"
	ColGBP                 = "GBP"
	ColCPIIndex            = "CPI_Index"
	ColCPIAnnual           = "CPI_Annual"
	ColCPIMonthly          = "CPI_Monthly"
	ColPolicyRate          = "Policy_Rate"
	ColCapacityUtilization = "Capacity_Utilization"
	ColUnemploymentRate    = "Unemployment_Rate"
	ColParticipationRate   = "Participation_Rate"
)

// Upstream frequency selectors.
const (
	FrequencyNative  = 0 // omit the parameter
	FrequencyDaily   = 1
	FrequencyMonthly = 5
)

// Date layouts used by the upstream date field.
const (
	layoutDay   = "2-1-2006"
	layoutMonth = "2006-1"
)

// cpiLookbackDays is how far before the requested start CPI is fetched, so that twelve
// earlier monthly observations exist for the first in-range annual change.
const cpiLookbackDays = 550

// Series maps a logical column name to its upstream code.
type Series struct {
	Name string
	Code string
}

// Field returns the response field carrying the series values (dots become underscores).
func (s Series) Field() string {
	b := []byte(s.Code)
	for i, c := range b {
		if c == '.' {
			b[i] = '_'
		}
	}
	return string(b)
}

// Indicator describes one indicator family and everything the shared pipeline needs
// to fetch and normalize it.
type Indicator struct {
	// Operation names the family in cache keys and logs.
	Operation string
	// Slug names the family in the HTTP API.
	Slug string
	// Series lists every series of the family in output column order.
	Series []Series
	// DefaultSelection is used when the caller selects nothing. Empty means all series.
	DefaultSelection []string
	Frequency        int
	// DateLayouts are tried in order for the upstream date field.
	DateLayouts []string
	// LookbackDays extends the requested start backward before querying.
	LookbackDays int
	// DropEmptyRows removes rows whose values are all null.
	DropEmptyRows bool
	// Derive computes extra columns after sorting. Nil means none.
	Derive func(*domain.Table) *domain.Table
}

// Selection resolves requested names to series in table order.
// Unknown names are ignored; duplicates collapse.
func (ind *Indicator) Selection(names []string) []Series {
	if len(names) == 0 {
		names = ind.DefaultSelection
	}
	if len(names) == 0 {
		return append([]Series(nil), ind.Series...)
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make([]Series, 0, len(names))
	for _, s := range ind.Series {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// queryStart returns the date the upstream query starts from.
func (ind *Indicator) queryStart(start time.Time) time.Time {
	if ind.LookbackDays == 0 {
		return start
	}
	return start.AddDate(0, 0, -ind.LookbackDays)
}

// The indicator families.
var (
	ExchangeRates = &Indicator{
		Operation: "exchange_rates",
		Slug:      "exchange-rates",
		Series: []Series{
			{Name: ColUSD, Code: CodeUSD},
			{Name: ColEUR, Code: CodeEUR},
			{Name: ColGBP, Code: CodeGBP},
		},
		DefaultSelection: []string{ColUSD, ColEUR},
		Frequency:        FrequencyDaily,
		DateLayouts:      []string{layoutDay},
	}

	CPI = &Indicator{
		Operation:    "cpi",
		Slug:         "cpi",
		Series:       []Series{{Name: ColCPIIndex, Code: CodeCPIIndex}},
		Frequency:    FrequencyMonthly,
		DateLayouts:  []string{layoutMonth, layoutDay},
		LookbackDays: cpiLookbackDays,
		Derive:       DeriveInflation,
	}

	PolicyRate = &Indicator{
		Operation:     "policy_rate",
		Slug:          "policy-rate",
		Series:        []Series{{Name: ColPolicyRate, Code: CodePolicyRate}},
		DateLayouts:   []string{layoutDay},
		DropEmptyRows: true,
	}

	Production = &Indicator{
		Operation:   "production",
		Slug:        "production",
		Series:      []Series{{Name: ColCapacityUtilization, Code: CodeCapacityUtilization}},
		DateLayouts: []string{layoutMonth},
	}

	Labor = &Indicator{
		Operation: "labor",
		Slug:      "labor",
		Series: []Series{
			{Name: ColUnemploymentRate, Code: CodeUnemploymentRate},
			{Name: ColParticipationRate, Code: CodeParticipationRate},
		},
		DateLayouts: []string{layoutMonth},
	}
)

// Indicators lists every family in display order.
var Indicators = []*Indicator{ExchangeRates, CPI, PolicyRate, Production, Labor}

// IndicatorBySlug finds a family by its API slug.
func IndicatorBySlug(slug string) (*Indicator, bool) {
	for _, ind := range Indicators {
		if ind.Slug == slug {
			return ind, true
		}
	}
	return nil, false
}
