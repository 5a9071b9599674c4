// Package export renders normalized tables as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/aristath/macrolens/internal/domain"
)

// Sheet names.
const (
	DataSheet    = "Data"
	SummarySheet = "Summary"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var summaryHeader = []interface{}{"Column", "Count", "Mean", "Min", "Max", "Std Dev"}

// WriteXLSX writes t as a workbook with a data sheet (one row per date, nulls left
// blank) and a summary sheet with descriptive statistics per column.
func WriteXLSX(w io.Writer, t *domain.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), DataSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeData(f, t); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeSummary(f, t); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeData(f *excelize.File, t *domain.Table) error {
	columns := t.Columns()

	header := make([]interface{}, 0, len(columns)+1)
	header = append(header, domain.DateColumn)
	for _, c := range columns {
		header = append(header, c)
	}
	if err := f.SetSheetRow(DataSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range t.Rows() {
		values := make([]interface{}, 0, len(r.Values)+1)
		values = append(values, r.Date)
		for _, v := range r.Values {
			if v.Valid {
				values = append(values, v.Float)
			} else {
				values = append(values, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DataSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if t.Len() > 0 {
		dateFmt := "yyyy-mm-dd"
		style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
		if err != nil {
			return fmt.Errorf("failed to create date style: %w", err)
		}
		last := fmt.Sprintf("A%d", t.Len()+1)
		if err := f.SetCellStyle(DataSheet, "A2", last, style); err != nil {
			return fmt.Errorf("failed to apply date style: %w", err)
		}
	}
	return f.SetPanes(DataSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummary(f *excelize.File, t *domain.Table) error {
	header := summaryHeader
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	for i, c := range t.Columns() {
		values, _ := t.Column(c)
		s := domain.Summarize(values)
		row := []interface{}{c, s.Count, s.Mean, s.Min, s.Max, s.StdDev}
		if s.Count == 0 {
			row = []interface{}{c, 0}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary for %s: %w", c, err)
		}
	}
	return nil
}
