package database

import (
	"path/filepath"
	"testing"

	"patient_arrivals/internal/config"
	"patient_arrivals/internal/model"
	"patient_arrivals/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	assert.Equal(t, repository.SQLite, Dialect(config.DatabaseConfig{Type: "sqlite"}))
	assert.Equal(t, repository.MySQL, Dialect(config.DatabaseConfig{Type: "mysql"}))
	assert.Equal(t, repository.Postgres, Dialect(config.DatabaseConfig{Type: "postgres"}))
	assert.Equal(t, repository.SQLite, Dialect(config.DatabaseConfig{}))
}

func TestOpenHistory_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "analysis_history.db")

	db, repo, err := OpenHistory(config.DatabaseConfig{Type: "sqlite", FilePath: path})
	require.NoError(t, err)
	defer db.Close()

	first := &model.AnalysisRecord{
		RunID:            "run-1",
		FileName:         "arrivals.csv",
		AnalysisDatetime: "2024-02-01 09:00:00",
		TotalPatients:    3,
		BusiestHour:      "2024-01-01 10:00:00",
		BusiestDay:       "2024-01-01",
	}
	second := *first
	second.RunID = "run-2"

	require.NoError(t, repo.Insert(first))
	require.NoError(t, repo.Insert(&second))
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	records, err := repo.FindAll(10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-2", records[0].RunID)

	latest, err := repo.FindLatest()
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.RunID)

	total, err := repo.CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// schema creation is idempotent
	require.NoError(t, repo.InitSchema())
}
