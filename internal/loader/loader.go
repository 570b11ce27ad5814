package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"patient_arrivals/internal/analyzer"
	"patient_arrivals/internal/model"

	"github.com/xuri/excelize/v2"
)

// ErrMissingColumn is returned when a required column is absent from the header
var ErrMissingColumn = errors.New("missing column")

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX
var ErrUnsupportedFormat = errors.New("unsupported input format")

// timestampLayouts are tried in order. Layouts without a zone parse as UTC.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02",
}

// Table is a raw input table: a header and string cells
type Table struct {
	Header []string
	Rows   [][]string
}

// Options controls how an input file is read
type Options struct {
	Columns model.Columns
	Sheet   string // xlsx sheet, first sheet when empty
}

// Load reads a CSV or XLSX file into a raw table
func Load(ctx context.Context, path string, opts Options) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return loadCSV(path)
	case ".xlsx", ".xlsm":
		return loadXLSX(path, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

func loadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV reads a table from CSV text. The first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	table := &Table{Header: trimAll(header)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", len(table.Rows)+1, err)
		}
		if isBlank(record) {
			continue
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// loadXLSX reads raw cell values so that date cells arrive as Excel serial
// numbers; those in the timestamp column are rendered back to text.
func loadXLSX(path string, opts Options) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	table := &Table{Header: trimAll(rows[0])}
	tsIdx := table.columnIndex(opts.Columns.Timestamp)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		if tsIdx >= 0 && tsIdx < len(row) {
			if serial, err := strconv.ParseFloat(strings.TrimSpace(row[tsIdx]), 64); err == nil {
				if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
					row[tsIdx] = t.Format("2006-01-02 15:04:05")
				}
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Validate checks that both configured columns exist in the header
func Validate(table *Table, cols model.Columns) error {
	for _, name := range []string{cols.Timestamp, cols.PatientID} {
		if table.columnIndex(name) < 0 {
			return fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return nil
}

// ParseEvents converts the table rows into arrival events.
// Errors name the 1-based data row.
func ParseEvents(table *Table, cols model.Columns) ([]model.ArrivalEvent, error) {
	if err := Validate(table, cols); err != nil {
		return nil, err
	}
	tsIdx := table.columnIndex(cols.Timestamp)
	idIdx := table.columnIndex(cols.PatientID)

	events := make([]model.ArrivalEvent, 0, len(table.Rows))
	for i, row := range table.Rows {
		rowNum := i + 1
		ts, err := ParseTimestamp(cell(row, tsIdx))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		id := strings.TrimSpace(cell(row, idIdx))
		if id == "" {
			return nil, fmt.Errorf("row %d: %s is empty", rowNum, cols.PatientID)
		}
		events = append(events, model.ArrivalEvent{Timestamp: ts, PatientID: id})
	}
	return events, nil
}

// ParseTimestamp parses a single timestamp cell using the accepted layouts.
// The result carries a fixed offset: UTC for zero offsets and naive values.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return analyzer.NormalizeZone(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", value)
}

// Preview returns up to n rows of the two configured columns and the total row count
func Preview(table *Table, cols model.Columns, n int) (*model.FilePreview, error) {
	if err := Validate(table, cols); err != nil {
		return nil, err
	}
	tsIdx := table.columnIndex(cols.Timestamp)
	idIdx := table.columnIndex(cols.PatientID)

	if n > len(table.Rows) {
		n = len(table.Rows)
	}
	if n < 0 {
		n = 0
	}
	preview := &model.FilePreview{
		Rows:  make([]model.PreviewRow, 0, n),
		Total: len(table.Rows),
	}
	for _, row := range table.Rows[:n] {
		preview.Rows = append(preview.Rows, model.PreviewRow{
			Timestamp: cell(row, tsIdx),
			PatientID: cell(row, idIdx),
		})
	}
	return preview, nil
}

func (t *Table) columnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
