package model

import "time"

// ArrivalEvent represents a single patient arrival row
type ArrivalEvent struct {
	Timestamp time.Time `json:"timestamp"`
	PatientID string    `json:"patient_id"`
}

// BucketCount represents the number of distinct patients seen in one time bucket
type BucketCount struct {
	BucketStart time.Time `json:"bucket_start"`
	Count       int       `json:"count"`
}

// Columns names the input fields holding the timestamp and the patient identifier
type Columns struct {
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	PatientID string `json:"patient_id" yaml:"patient_id"`
}

// DefaultColumns returns the column names used when none are configured
func DefaultColumns() Columns {
	return Columns{
		Timestamp: "timestamp",
		PatientID: "patient_id",
	}
}

// AnalysisRecord represents one row of the append-only analysis history
type AnalysisRecord struct {
	ID               int64  `json:"id" db:"id"`
	RunID            string `json:"run_id" db:"run_id"`
	FileName         string `json:"file_name" db:"file_name"`
	AnalysisDatetime string `json:"analysis_datetime" db:"analysis_datetime"`
	TotalPatients    int    `json:"total_patients" db:"total_patients"`
	BusiestHour      string `json:"busiest_hour" db:"busiest_hour"`
	BusiestDay       string `json:"busiest_day" db:"busiest_day"`
}

// PreviewRow is a raw input row shown before analysis
type PreviewRow struct {
	Timestamp string `json:"timestamp"`
	PatientID string `json:"patient_id"`
}

// FilePreview holds the first rows of an input file and its total row count
type FilePreview struct {
	FileName string       `json:"file_name"`
	Rows     []PreviewRow `json:"rows"`
	Total    int          `json:"total"`
}

// APIResponse is a generic API response wrapper
type APIResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Total   int64       `json:"total,omitempty"`
	Limit   int         `json:"limit,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Summary is the flat record produced once per analysis run.
// Instants and dates are already rendered in their canonical textual form.
type Summary struct {
	TotalPatients    int     `json:"total_patients"`
	BusiestHour      string  `json:"busiest_hour"`
	BusiestHourCount int     `json:"busiest_hour_count"`
	BusiestDay       string  `json:"busiest_day"`
	BusiestDayCount  int     `json:"busiest_day_count"`
	AverageDaily     float64 `json:"average_daily"`
}

// AnalysisResult bundles the tables and summary of one run
type AnalysisResult struct {
	Hourly  []BucketCount `json:"hourly"`
	Daily   []BucketCount `json:"daily"`
	Summary Summary       `json:"summary"`
}
