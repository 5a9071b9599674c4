// Package evds retrieves macroeconomic series from the central bank's electronic data
// delivery system and normalizes them into tables.
//
// Every indicator family goes through one pipeline: resolve series codes, query,
// parse, rename, coerce, sort, derive, filter. Results are memoized in an injected
// cache. Failures never escape as panics; an operation always returns a table (empty
// on failure) and an *Error describing what went wrong.
package evds

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/macrolens/internal/cache"
	"github.com/aristath/macrolens/internal/domain"
	"github.com/aristath/macrolens/internal/transport"
)

const (
	// DefaultBaseURL is the upstream service endpoint.
	DefaultBaseURL = "https://evds2.tcmb.gov.tr/service/evds"
	// UserAgent is required by the upstream; requests without a browser agent are rejected.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Config holds client settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client retrieves indicator families. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	fetcher transport.Fetcher
	cache   *cache.Cache
	log     zerolog.Logger
}

// NewClient creates a client.
// resultCache is optional - if nil, caching is disabled. Clients sharing a cache share
// results regardless of which client computed them.
func NewClient(cfg Config, fetcher transport.Fetcher, resultCache *cache.Cache, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		fetcher: fetcher,
		cache:   resultCache,
		log:     log.With().Str("client", "evds").Logger(),
	}
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// GetExchangeRates returns daily TRY rates for the selected currencies (USD, EUR, GBP).
// With no selection, USD and EUR are returned.
func (c *Client) GetExchangeRates(ctx context.Context, start, end time.Time, currencies ...string) (*domain.Table, error) {
	return c.Fetch(ctx, ExchangeRates, start, end, currencies...)
}

// GetCPI returns monthly CPI_Index with CPI_Annual and CPI_Monthly.
// The query starts 550 days earlier so the first in-range annual change is defined;
// rows before start are removed afterwards.
func (c *Client) GetCPI(ctx context.Context, start, end time.Time) (*domain.Table, error) {
	return c.Fetch(ctx, CPI, start, end)
}

// GetPolicyRate returns the policy rate proxy. Rows without a value are dropped.
func (c *Client) GetPolicyRate(ctx context.Context, start, end time.Time) (*domain.Table, error) {
	return c.Fetch(ctx, PolicyRate, start, end)
}

// GetProduction returns monthly manufacturing capacity utilization.
func (c *Client) GetProduction(ctx context.Context, start, end time.Time) (*domain.Table, error) {
	return c.Fetch(ctx, Production, start, end)
}

// GetLabor returns monthly unemployment and participation rates.
func (c *Client) GetLabor(ctx context.Context, start, end time.Time) (*domain.Table, error) {
	return c.Fetch(ctx, Labor, start, end)
}

// LatestPolicyChange returns the current policy rate and its change against the
// previous distinct rate in the window.
func (c *Client) LatestPolicyChange(ctx context.Context, start, end time.Time) (domain.Change, error) {
	table, err := c.GetPolicyRate(ctx, start, end)
	if err != nil {
		return domain.Change{}, err
	}
	rates, ok := table.Column(ColPolicyRate)
	if !ok {
		return domain.Change{}, nil
	}
	return domain.LatestChange(rates), nil
}

// Fetch runs the pipeline for one indicator family. The returned table is never nil
// and must not be modified; it may be shared with other callers through the cache.
func (c *Client) Fetch(ctx context.Context, ind *Indicator, start, end time.Time, names ...string) (*domain.Table, error) {
	start, end = domain.Day(start), domain.Day(end)

	if !c.HasCredential() {
		err := &Error{Kind: KindConfiguration, Op: ind.Operation, Err: ErrMissingCredential}
		c.log.Warn().Str("operation", ind.Operation).Msg("TCMB API key is missing, skipping fetch")
		return domain.Empty(), err
	}

	selected := ind.Selection(names)
	if len(selected) == 0 {
		c.log.Debug().Str("operation", ind.Operation).Strs("requested", names).Msg("No known series requested")
		return domain.Empty(), nil
	}

	params := make([]string, len(selected))
	for i, s := range selected {
		params[i] = s.Name
	}
	var (
		table *domain.Table
		err   error
	)
	if c.cache != nil {
		// The fetch is shared with other callers of the same key; it is bounded by the
		// transport timeout rather than by whichever caller started it.
		fetchCtx := context.WithoutCancel(ctx)
		key := cache.Key{Operation: ind.Operation, Start: start, End: end, Params: params}
		table, err = c.cache.GetOrCompute(ctx, key, func() (*domain.Table, error) {
			return c.retrieve(fetchCtx, ind, selected, start, end)
		})
		if err != nil && KindOf(err) == "" {
			err = &Error{Kind: KindTransport, Op: ind.Operation, Err: err}
		}
	} else {
		table, err = c.retrieve(ctx, ind, selected, start, end)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("operation", ind.Operation).Msg("Series fetch failed")
		return domain.Empty(), err
	}
	return table, nil
}

// retrieve performs the network call and normalization. Panics are reported as
// schema errors so nothing escapes the client.
func (c *Client) retrieve(ctx context.Context, ind *Indicator, selected []Series, start, end time.Time) (table *domain.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			table = nil
			err = &Error{Kind: KindSchema, Op: ind.Operation, Err: fmt.Errorf("panic while normalizing response: %v", r)}
		}
	}()

	url := c.buildURL(ind, selected, ind.queryStart(start), end)
	log := c.log.With().
		Str("fetch_id", uuid.NewString()).
		Str("operation", ind.Operation).
		Logger()
	log.Debug().Str("url", url).Msg("Fetching series")

	body, err := c.fetcher.Fetch(ctx, transport.Request{
		URL: url,
		Headers: map[string]string{
			"key":        c.apiKey,
			"User-Agent": UserAgent,
		},
	})
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: ind.Operation, Err: err}
	}

	table, stats, err := normalize(body, ind, selected)
	if err != nil {
		return nil, &Error{Kind: KindSchema, Op: ind.Operation, Err: err}
	}
	if stats.droppedDates > 0 || stats.badCells > 0 {
		log.Warn().
			Int("items", stats.items).
			Int("dropped_dates", stats.droppedDates).
			Int("bad_cells", stats.badCells).
			Msg("Unparseable upstream values")
	}

	if table.IsEmpty() {
		log.Debug().Msg("Upstream returned no data")
		return table, nil
	}

	if ind.Derive != nil {
		table = ind.Derive(table)
	}
	table = table.Filter(start, end)

	log.Debug().
		Int("items", stats.items).
		Int("rows", table.Len()).
		Int("dropped_empty", stats.droppedEmpty).
		Msg("Fetched series")
	return table, nil
}

// buildURL renders the upstream query. The service takes its parameters as a path
// segment; the credential travels only in the "key" header.
func (c *Client) buildURL(ind *Indicator, selected []Series, start, end time.Time) string {
	codes := make([]string, len(selected))
	for i, s := range selected {
		codes[i] = s.Code
	}

	params := []string{
		"series=" + strings.Join(codes, "-"),
		"startDate=" + domain.FormatWireDate(start),
		"endDate=" + domain.FormatWireDate(end),
		"type=json",
	}
	if ind.Frequency != FrequencyNative {
		params = append(params, "frequency="+strconv.Itoa(ind.Frequency))
	}
	return c.baseURL + "/" + strings.Join(params, "&")
}
