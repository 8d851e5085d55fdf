package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"parking-service/internal/domain/parking"
)

const (
	violationsSheet = "Violations"
	summarySheet    = "Summary"
	timeLayout      = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

var headers = []string{"Licence plate", "Street", "Observed at"}

// WriteXLSX renders a violation report workbook. Observation times are
// written in loc.
func WriteXLSX(w io.Writer, day time.Time, entries []parking.ReportEntry, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", violationsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, title := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(violationsSheet, cell, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := f.SetCellStyle(violationsSheet, "A1", "C1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, entry := range entries {
		row := []interface{}{
			entry.LicencePlate,
			entry.StreetName,
			entry.ObservedAt.In(loc).Format(timeLayout),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(violationsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(violationsSheet, "A", "C", 20); err != nil {
		return err
	}

	if err := writeSummary(f, day, entries, headerStyle); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, day time.Time, entries []parking.ReportEntry, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	perStreet := make(map[string]int)
	for _, entry := range entries {
		perStreet[entry.StreetName]++
	}
	streets := make([]string, 0, len(perStreet))
	for street := range perStreet {
		streets = append(streets, street)
	}
	sort.Strings(streets)

	rows := [][]interface{}{
		{"Date", day.Format(dateLayout)},
		{"Total violations", len(entries)},
		{},
		{"Street", "Violations"},
	}
	for _, street := range streets {
		rows = append(rows, []interface{}{street, perStreet[street]})
	}

	for i := range rows {
		if len(rows[i]) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	return f.SetCellStyle(summarySheet, "A4", "B4", headerStyle)
}
