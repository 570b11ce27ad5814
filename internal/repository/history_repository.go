package repository

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"patient_arrivals/internal/model"
)

// Dialect selects the SQL flavour of the history database
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// HistoryRepository handles the append-only analysis history.
// Records are never updated or deleted.
type HistoryRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, dialect Dialect) *HistoryRepository {
	if dialect == "" {
		dialect = SQLite
	}
	return &HistoryRepository{db: db, dialect: dialect}
}

// InitSchema creates the analysis table if it does not exist
func (r *HistoryRepository) InitSchema() error {
	if _, err := r.db.Exec(r.schema()); err != nil {
		return fmt.Errorf("failed to init history schema: %w", err)
	}
	return nil
}

func (r *HistoryRepository) schema() string {
	switch r.dialect {
	case MySQL:
		return `
	CREATE TABLE IF NOT EXISTS analysis (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		run_id VARCHAR(36) NOT NULL,
		file_name VARCHAR(255) NOT NULL,
		analysis_datetime VARCHAR(32) NOT NULL,
		total_patients INTEGER,
		busiest_hour VARCHAR(40),
		busiest_day VARCHAR(10)
	)`
	case Postgres:
		return `
	CREATE TABLE IF NOT EXISTS analysis (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		analysis_datetime TEXT NOT NULL,
		total_patients INTEGER,
		busiest_hour TEXT,
		busiest_day TEXT
	)`
	default:
		return `
	CREATE TABLE IF NOT EXISTS analysis (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		analysis_datetime TEXT NOT NULL,
		total_patients INTEGER,
		busiest_hour TEXT,
		busiest_day TEXT
	)`
	}
}

// Insert appends an analysis record and sets its ID
func (r *HistoryRepository) Insert(rec *model.AnalysisRecord) error {
	query := `INSERT INTO analysis (run_id, file_name, analysis_datetime, total_patients, busiest_hour, busiest_day) 
			  VALUES (?, ?, ?, ?, ?, ?)`
	args := []interface{}{rec.RunID, rec.FileName, rec.AnalysisDatetime, rec.TotalPatients, rec.BusiestHour, rec.BusiestDay}

	// lib/pq does not implement LastInsertId
	if r.dialect == Postgres {
		var id int64
		if err := r.db.QueryRow(r.rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert analysis: %w", err)
		}
		rec.ID = id
		return nil
	}

	result, err := r.db.Exec(r.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	return nil
}

// FindAll retrieves the most recent records first. limit < 1 defaults to 20.
func (r *HistoryRepository) FindAll(limit int) ([]*model.AnalysisRecord, error) {
	if limit < 1 {
		limit = 20
	}

	query := `SELECT id, run_id, file_name, analysis_datetime, total_patients, busiest_hour, busiest_day 
			  FROM analysis ORDER BY id DESC LIMIT ?`

	rows, err := r.db.Query(r.rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis history: %w", err)
	}
	defer rows.Close()

	var records []*model.AnalysisRecord
	for rows.Next() {
		var rec model.AnalysisRecord
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.FileName, &rec.AnalysisDatetime,
			&rec.TotalPatients, &rec.BusiestHour, &rec.BusiestDay); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// FindLatest retrieves the newest record, or nil when the history is empty
func (r *HistoryRepository) FindLatest() (*model.AnalysisRecord, error) {
	query := `SELECT id, run_id, file_name, analysis_datetime, total_patients, busiest_hour, busiest_day 
			  FROM analysis ORDER BY id DESC LIMIT 1`

	var rec model.AnalysisRecord
	err := r.db.QueryRow(query).Scan(&rec.ID, &rec.RunID, &rec.FileName, &rec.AnalysisDatetime,
		&rec.TotalPatients, &rec.BusiestHour, &rec.BusiestDay)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest analysis: %w", err)
	}

	return &rec, nil
}

// CountAll returns the number of recorded analyses
func (r *HistoryRepository) CountAll() (int64, error) {
	var total int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM analysis").Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return total, nil
}

// rebind rewrites ? placeholders to $n for Postgres
func (r *HistoryRepository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
