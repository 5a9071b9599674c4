package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/macrolens/internal/dashboard"
	"github.com/aristath/macrolens/internal/domain"
	"github.com/aristath/macrolens/internal/evds"
	"github.com/aristath/macrolens/internal/export"
)

// defaultLookback is the range served when no start date is given.
const defaultLookback = 730 * 24 * time.Hour

// SeriesFetcher is the part of the series client the HTTP API needs.
type SeriesFetcher interface {
	Fetch(ctx context.Context, ind *evds.Indicator, start, end time.Time, names ...string) (*domain.Table, error)
	HasCredential() bool
}

// SeriesHandlers serves indicator tables and the overview.
type SeriesHandlers struct {
	series    SeriesFetcher
	dashboard *dashboard.Service
	log       zerolog.Logger
	now       func() time.Time
}

// NewSeriesHandlers creates series handlers.
func NewSeriesHandlers(series SeriesFetcher, dash *dashboard.Service, log zerolog.Logger) *SeriesHandlers {
	return &SeriesHandlers{
		series:    series,
		dashboard: dash,
		log:       log.With().Str("component", "series_handlers").Logger(),
		now:       time.Now,
	}
}

// SeriesResponse is the consumer contract for one family.
type SeriesResponse struct {
	Family  string                   `json:"family"`
	Start   string                   `json:"start"`
	End     string                   `json:"end"`
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
	Notice  *evds.Notice             `json:"notice,omitempty"`
}

type familyInfo struct {
	Slug    string   `json:"slug"`
	Columns []string `json:"columns"`
	Default []string `json:"default,omitempty"`
}

// HandleListFamilies lists the available families and their columns.
func (h *SeriesHandlers) HandleListFamilies(w http.ResponseWriter, r *http.Request) {
	out := make([]familyInfo, 0, len(evds.Indicators))
	for _, ind := range evds.Indicators {
		info := familyInfo{Slug: ind.Slug, Default: ind.DefaultSelection}
		for _, s := range ind.Series {
			info.Columns = append(info.Columns, s.Name)
		}
		if ind == evds.CPI {
			info.Columns = append(info.Columns, evds.ColCPIAnnual, evds.ColCPIMonthly)
		}
		out = append(out, info)
	}
	writeJSON(h.log, w, http.StatusOK, out)
}

// HandleSeries returns one family's table for ?start=&end= (dd-mm-yyyy or yyyy-mm-dd).
// Exchange rates also take ?currencies=USD,EUR.
func (h *SeriesHandlers) HandleSeries(w http.ResponseWriter, r *http.Request) {
	ind, start, end, names, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	table, err := h.series.Fetch(r.Context(), ind, start, end, names...)
	writeJSON(h.log, w, http.StatusOK, SeriesResponse{
		Family:  ind.Slug,
		Start:   start.Format(domain.ISODateLayout),
		End:     end.Format(domain.ISODateLayout),
		Columns: append([]string{domain.DateColumn}, table.Columns()...),
		Rows:    table.Records(),
		Notice:  evds.NoticeFor(table, err),
	})
}

// HandleExport returns one family's table as an xlsx workbook.
func (h *SeriesHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	ind, start, end, names, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	table, err := h.series.Fetch(r.Context(), ind, start, end, names...)
	if err != nil {
		status := http.StatusBadGateway
		if evds.KindOf(err) == evds.KindConfiguration {
			status = http.StatusServiceUnavailable
		}
		writeJSON(h.log, w, status, map[string]interface{}{"notice": evds.NoticeFor(table, err)})
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, table); err != nil {
		h.log.Error().Err(err).Str("family", ind.Slug).Msg("Failed to build workbook")
		writeError(h.log, w, http.StatusInternalServerError, "failed to build workbook")
		return
	}

	filename := fmt.Sprintf("%s_%s_%s.xlsx", ind.Operation,
		start.Format(domain.ISODateLayout), end.Format(domain.ISODateLayout))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Warn().Err(err).Msg("Failed to write workbook")
	}
}

// HandleOverview returns the dashboard overview ending today.
func (h *SeriesHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.dashboard.Overview(r.Context(), h.now())
	if err != nil {
		h.log.Warn().Err(err).Msg("Overview aborted")
		writeError(h.log, w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(h.log, w, http.StatusOK, overview)
}

func (h *SeriesHandlers) parseRequest(w http.ResponseWriter, r *http.Request) (*evds.Indicator, time.Time, time.Time, []string, bool) {
	slug := chi.URLParam(r, "family")
	ind, ok := evds.IndicatorBySlug(slug)
	if !ok {
		writeError(h.log, w, http.StatusNotFound, fmt.Sprintf("unknown series family %q", slug))
		return nil, time.Time{}, time.Time{}, nil, false
	}

	q := r.URL.Query()
	end := domain.Day(h.now())
	if v := q.Get("end"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			writeError(h.log, w, http.StatusBadRequest, fmt.Sprintf("invalid end date %q", v))
			return nil, time.Time{}, time.Time{}, nil, false
		}
		end = d
	}
	start := domain.Day(end.Add(-defaultLookback))
	if v := q.Get("start"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			writeError(h.log, w, http.StatusBadRequest, fmt.Sprintf("invalid start date %q", v))
			return nil, time.Time{}, time.Time{}, nil, false
		}
		start = d
	}
	if start.After(end) {
		writeError(h.log, w, http.StatusBadRequest, "start date is after end date")
		return nil, time.Time{}, time.Time{}, nil, false
	}

	var names []string
	if v := q.Get("currencies"); v != "" && ind == evds.ExchangeRates {
		for _, n := range strings.Split(v, ",") {
			if n = strings.ToUpper(strings.TrimSpace(n)); n != "" {
				names = append(names, n)
			}
		}
	}
	return ind, start, end, names, true
}

// parseDate accepts the upstream dd-mm-yyyy form and ISO dates.
func parseDate(s string) (time.Time, error) {
	if d, err := domain.ParseWireDate(s); err == nil {
		return d, nil
	}
	d, err := time.Parse(domain.ISODateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return domain.Day(d), nil
}
