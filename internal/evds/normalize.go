package evds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/macrolens/internal/domain"
)

// dateField is the upstream date field of every item.
const dateField = "Tarih"

// parseStats counts localized parse problems in one response.
type parseStats struct {
	items        int
	droppedDates int
	droppedEmpty int
	badCells     int
}

// normalize turns a response body into a sorted table.
//
// A body without an "items" key is a valid empty result. Columns are only emitted for
// requested series whose field appears in the response. Rows whose date cannot be
// parsed are dropped; cells that cannot be parsed become null.
func normalize(body []byte, ind *Indicator, selected []Series) (*domain.Table, parseStats, error) {
	var stats parseStats

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, stats, fmt.Errorf("invalid JSON response: %w", err)
	}
	rawItems, ok := envelope["items"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawItems), []byte("null")) {
		return domain.Empty(), stats, nil
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil, stats, fmt.Errorf("unexpected items shape: %w", err)
	}
	stats.items = len(items)

	present := make([]bool, len(selected))
	rows := make([]domain.Row, 0, len(items))
	for _, item := range items {
		date, ok := parseItemDate(item[dateField], ind.DateLayouts)
		if !ok {
			stats.droppedDates++
			continue
		}

		values := make([]domain.Value, len(selected))
		anyValid := false
		for i, s := range selected {
			raw, ok := item[s.Field()]
			if !ok {
				continue
			}
			present[i] = true
			v, ok := parseCell(raw)
			if !ok {
				stats.badCells++
			}
			values[i] = v
			anyValid = anyValid || v.Valid
		}
		if ind.DropEmptyRows && !anyValid {
			stats.droppedEmpty++
			continue
		}
		rows = append(rows, domain.Row{Date: date, Values: values})
	}

	columns := make([]string, 0, len(selected))
	keep := make([]int, 0, len(selected))
	for i, s := range selected {
		if present[i] {
			columns = append(columns, s.Name)
			keep = append(keep, i)
		}
	}
	if len(columns) == 0 {
		return domain.Empty(), stats, nil
	}
	for r := range rows {
		vs := make([]domain.Value, len(keep))
		for j, i := range keep {
			vs[j] = rows[r].Values[i]
		}
		rows[r].Values = vs
	}

	return domain.NewTable(columns, domain.SortByDate(rows)), stats, nil
}

func parseItemDate(raw json.RawMessage, layouts []string) (time.Time, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Day(t), true
		}
	}
	return time.Time{}, false
}

// parseCell accepts numeric strings, finite numbers and null. Anything else is null and
// reported as unparseable.
func parseCell(raw json.RawMessage) (domain.Value, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.Null(), true
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return domain.Null(), false
		}
		return domain.ParseValue(s)
	case '{', '[', 't', 'f':
		return domain.Null(), false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || !domain.IsFinite(f) {
		return domain.Null(), false
	}
	return domain.Float(f), true
}
