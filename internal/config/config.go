package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig represents the dashboard server configuration
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig represents the history database configuration
type DatabaseConfig struct {
	Type     string `yaml:"type"`      // "sqlite", "mysql" or "postgres"
	FilePath string `yaml:"file_path"` // for SQLite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"` // for Postgres
}

// InputConfig names the columns read from the arrival file
type InputConfig struct {
	TimestampColumn string `yaml:"timestamp_column"`
	PatientIDColumn string `yaml:"patient_id_column"`
	Sheet           string `yaml:"sheet"` // xlsx only, first sheet when empty
}

// OutputConfig controls which artifacts an analysis writes
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Charts   bool   `yaml:"charts"`
	Workbook bool   `yaml:"workbook"`
}

// CacheConfig represents the Redis result cache configuration.
// The cache is disabled when Addr is empty.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DSN returns the database connection string
func (d *DatabaseConfig) DSN() string {
	switch d.Type {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			d.Username, d.Password, d.Host, d.Port, d.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode)
	default:
		return d.FilePath
	}
}

// DriverName returns the SQL driver name
func (d *DatabaseConfig) DriverName() string {
	switch d.Type {
	case "mysql":
		return "mysql"
	case "postgres":
		return "postgres"
	default:
		return "sqlite3"
	}
}

// Default returns the configuration used when nothing else is provided
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8899,
		},
		Database: DatabaseConfig{
			Type:     "sqlite",
			FilePath: filepath.Join("data", "analysis_history.db"),
			Host:     "localhost",
			Port:     3306,
			Username: "root",
			Database: "patient_arrivals",
			SSLMode:  "disable",
		},
		Input: InputConfig{
			TimestampColumn: "timestamp",
			PatientIDColumn: "patient_id",
		},
		Output: OutputConfig{
			Dir:      filepath.Join("data", "output"),
			Charts:   true,
			Workbook: true,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
// A missing .env file is ignored; a missing YAML file is an error only when a path was given.
func Load(envPath, configPath string) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}
	_ = godotenv.Load(envPath)

	cfg := Default()
	if configPath != "" {
		if err := LoadFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a YAML config file on top of cfg
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_TYPE %q (want sqlite, mysql or postgres)", c.Database.Type)
	}
	if c.Database.Type == "sqlite" && c.Database.FilePath == "" {
		return fmt.Errorf("DB_FILE_PATH is required for sqlite")
	}
	if c.Input.TimestampColumn == "" || c.Input.PatientIDColumn == "" {
		return fmt.Errorf("input column names must not be empty")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvAsInt("SERVER_PORT", cfg.Server.Port)

	cfg.Database.Type = getEnv("DB_TYPE", cfg.Database.Type)
	cfg.Database.FilePath = getEnv("DB_FILE_PATH", cfg.Database.FilePath)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Username = getEnv("DB_USERNAME", cfg.Database.Username)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_DATABASE", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Input.TimestampColumn = getEnv("INPUT_TIMESTAMP_COLUMN", cfg.Input.TimestampColumn)
	cfg.Input.PatientIDColumn = getEnv("INPUT_PATIENT_ID_COLUMN", cfg.Input.PatientIDColumn)
	cfg.Input.Sheet = getEnv("INPUT_SHEET", cfg.Input.Sheet)

	cfg.Output.Dir = getEnv("OUTPUT_DIR", cfg.Output.Dir)
	cfg.Output.Charts = getEnvAsBool("OUTPUT_CHARTS", cfg.Output.Charts)
	cfg.Output.Workbook = getEnvAsBool("OUTPUT_WORKBOOK", cfg.Output.Workbook)

	cfg.Cache.Addr = getEnv("REDIS_ADDR", cfg.Cache.Addr)
	cfg.Cache.Password = getEnv("REDIS_PASSWORD", cfg.Cache.Password)
	cfg.Cache.DB = getEnvAsInt("REDIS_DB", cfg.Cache.DB)
	cfg.Cache.TTL = getEnvAsDuration("CACHE_TTL", cfg.Cache.TTL)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
