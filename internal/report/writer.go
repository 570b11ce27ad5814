package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"patient_arrivals/internal/analyzer"
	"patient_arrivals/internal/model"
)

const (
	SummaryFile = "summary.json"
	HourlyFile  = "hourly_counts.csv"
	DailyFile   = "daily_counts.csv"
)

// WriteSummary writes the summary as indented JSON, creating parent directories
func WriteSummary(path string, summary model.Summary) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary
func ReadSummary(path string) (*model.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	var summary model.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary %s: %w", path, err)
	}
	return &summary, nil
}

// WriteHourlyCSV writes rows of (timestamp, count)
func WriteHourlyCSV(path string, rows []model.BucketCount) error {
	return writeTable(path, "timestamp", rows, analyzer.FormatHour)
}

// WriteDailyCSV writes rows of (date, count)
func WriteDailyCSV(path string, rows []model.BucketCount) error {
	return writeTable(path, "date", rows, analyzer.FormatDate)
}

func writeTable(path, keyHeader string, rows []model.BucketCount, format func(time.Time) string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{keyHeader, "count"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write([]string{format(row.BucketStart), strconv.Itoa(row.Count)}); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", filepath.Base(path), err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return nil
}
