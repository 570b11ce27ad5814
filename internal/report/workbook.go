package report

import (
	"fmt"
	"time"

	"patient_arrivals/internal/analyzer"
	"patient_arrivals/internal/model"

	"github.com/xuri/excelize/v2"
)

const WorkbookFile = "arrivals.xlsx"

const (
	hourlySheet  = "Hourly"
	dailySheet   = "Daily"
	summarySheet = "Summary"
)

// WriteWorkbook writes the hourly and daily tables and the summary into one xlsx file.
// A nil summary leaves the Summary sheet with its header only.
func WriteWorkbook(path string, hourly, daily []model.BucketCount, summary *model.Summary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeCountSheet(f, hourlySheet, "timestamp", hourly, analyzer.FormatHour, headerStyle); err != nil {
		return err
	}
	if err := writeCountSheet(f, dailySheet, "date", daily, analyzer.FormatDate, headerStyle); err != nil {
		return err
	}
	if err := writeSummarySheet(f, summary, headerStyle); err != nil {
		return err
	}

	// NewFile starts with Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(summarySheet); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeCountSheet(f *excelize.File, sheet, keyHeader string, rows []model.BucketCount, format func(time.Time) string, style int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	if err := writeHeader(f, sheet, []string{keyHeader, "count"}, style); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "A", 22); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{format(row.BucketStart), row.Count}); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, summary *model.Summary, style int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", summarySheet, err)
	}
	if err := writeHeader(f, summarySheet, []string{"metric", "value"}, style); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "B", 22); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if summary == nil {
		return nil
	}

	values := [][]interface{}{
		{"total_patients", summary.TotalPatients},
		{"busiest_hour", summary.BusiestHour},
		{"busiest_hour_count", summary.BusiestHourCount},
		{"busiest_day", summary.BusiestDay},
		{"busiest_day_count", summary.BusiestDayCount},
		{"average_daily", summary.AverageDaily},
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &v); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}
