package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"patient_arrivals/internal/config"
	"patient_arrivals/internal/repository"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured history database and verifies the connection.
// For SQLite the parent directory of the file is created.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DriverName() == "sqlite3" {
		if dir := filepath.Dir(cfg.FilePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database dir: %w", err)
			}
		}
	}

	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.DriverName() == "sqlite3" {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Dialect maps the configured database type to a repository dialect
func Dialect(cfg config.DatabaseConfig) repository.Dialect {
	switch cfg.Type {
	case "mysql":
		return repository.MySQL
	case "postgres":
		return repository.Postgres
	default:
		return repository.SQLite
	}
}

// OpenHistory opens the database and returns a history repository with its schema in place
func OpenHistory(cfg config.DatabaseConfig) (*sql.DB, *repository.HistoryRepository, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, nil, err
	}

	repo := repository.NewHistoryRepository(db, Dialect(cfg))
	if err := repo.InitSchema(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}
