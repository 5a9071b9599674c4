// Package domain provides the normalized table model shared by the series client,
// the result cache and every consumer of macroeconomic series.
package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// DateColumn is the name of the date column every table carries.
const DateColumn = "Date"

// Row is a single observation: one date plus one value per value column.
type Row struct {
	Date   time.Time
	Values []Value
}

// Table is an ordered-by-date sequence of rows with named value columns.
//
// A Table is immutable once constructed. Tables returned from the cache are shared
// between callers, so every accessor hands out copies and every transformation
// returns a new Table.
type Table struct {
	columns []string
	rows    []Row
}

// NewTable builds a table from value column names and rows.
// Rows are copied; value slices shorter than the column list are padded with nulls
// and longer ones are truncated.
func NewTable(columns []string, rows []Row) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		rows:    make([]Row, 0, len(rows)),
	}
	for _, r := range rows {
		values := make([]Value, len(columns))
		copy(values, r.Values)
		t.rows = append(t.rows, Row{Date: Day(r.Date), Values: values})
	}
	return t
}

// Empty returns a table with the given value columns and no rows.
func Empty(columns ...string) *Table {
	return NewTable(columns, nil)
}

// Columns returns the value column names (the Date column is implicit).
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// HasColumn reports whether the table carries the named value column.
func (t *Table) HasColumn(name string) bool {
	return t.columnIndex(name) >= 0
}

func (t *Table) columnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Row returns a copy of row i.
func (t *Table) Row(i int) Row {
	r := t.rows[i]
	return Row{Date: r.Date, Values: append([]Value(nil), r.Values...)}
}

// Rows returns a deep copy of all rows.
func (t *Table) Rows() []Row {
	out := make([]Row, t.Len())
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// Dates returns the date axis.
func (t *Table) Dates() []time.Time {
	out := make([]time.Time, t.Len())
	for i := range out {
		out[i] = t.rows[i].Date
	}
	return out
}

// Column returns the values of a column, aligned with Dates.
func (t *Table) Column(name string) ([]Value, bool) {
	idx := t.columnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Values[idx]
	}
	return out, true
}

// WithColumn returns a new table with the named column appended (or replaced).
// values must be aligned with the table's rows.
func (t *Table) WithColumn(name string, values []Value) *Table {
	columns := t.Columns()
	idx := t.columnIndex(name)
	if idx < 0 {
		columns = append(columns, name)
		idx = len(columns) - 1
	}
	rows := t.Rows()
	for i := range rows {
		vs := make([]Value, len(columns))
		copy(vs, rows[i].Values)
		if i < len(values) {
			vs[idx] = values[i]
		} else {
			vs[idx] = Null()
		}
		rows[i].Values = vs
	}
	return NewTable(columns, rows)
}

// Filter keeps rows with start <= Date <= end. A zero bound is open.
func (t *Table) Filter(start, end time.Time) *Table {
	if t.IsEmpty() {
		return t
	}
	start, end = Day(start), Day(end)
	kept := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		if !start.IsZero() && r.Date.Before(start) {
			continue
		}
		if !end.IsZero() && r.Date.After(end) {
			continue
		}
		kept = append(kept, r)
	}
	return NewTable(t.columns, kept)
}

// Since keeps rows dated on or after d.
func (t *Table) Since(d time.Time) *Table {
	return t.Filter(d, time.Time{})
}

// ForwardFill returns a table where every null cell takes the last non-null value
// above it in the same column. Leading nulls stay null.
func (t *Table) ForwardFill() *Table {
	rows := t.Rows()
	last := make([]Value, len(t.Columns()))
	for i := range rows {
		for j, v := range rows[i].Values {
			if v.Valid {
				last[j] = v
			} else {
				rows[i].Values[j] = last[j]
			}
		}
	}
	return NewTable(t.columns, rows)
}

// DropNull removes rows where the named column is null.
// A missing column yields an empty table.
func (t *Table) DropNull(column string) *Table {
	idx := t.columnIndex(column)
	if idx < 0 {
		return Empty(t.Columns()...)
	}
	kept := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		if r.Values[idx].Valid {
			kept = append(kept, r)
		}
	}
	return NewTable(t.columns, kept)
}

// SortByDate returns rows ordered ascending by date with duplicate dates collapsed.
// When two rows share a date, the one that appeared later wins.
func SortByDate(rows []Row) []Row {
	byDate := make(map[time.Time]int, len(rows))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		d := Day(r.Date)
		if i, ok := byDate[d]; ok {
			out[i] = Row{Date: d, Values: r.Values}
			continue
		}
		byDate[d] = len(out)
		out = append(out, Row{Date: d, Values: r.Values})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Records returns one map per row keyed by column name, with the date rendered as
// 2006-01-02 under DateColumn and nulls as invalid Values.
func (t *Table) Records() []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.rows[i]
		m := make(map[string]interface{}, len(t.columns)+1)
		m[DateColumn] = r.Date.Format(ISODateLayout)
		for j, c := range t.columns {
			m[c] = r.Values[j]
		}
		rows = append(rows, m)
	}
	return rows
}

// MarshalJSON encodes the table in the consumer shape:
// {"columns":["Date",...],"rows":[{"Date":"2024-01-31","USD":30.1},...]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
	}{Columns: append([]string{DateColumn}, t.Columns()...), Rows: t.Records()})
}
