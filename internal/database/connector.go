package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
)

// Config holds database connection configuration
type Config struct {
	Type           string            `yaml:"type"`             // postgres, mysql, mssql, sqlite
	Driver         string            `yaml:"driver,omitempty"` // database/sql driver; defaults per type
	Host           string            `yaml:"host,omitempty"`
	Port           string            `yaml:"port,omitempty"`
	Database       string            `yaml:"database,omitempty"`
	Schema         string            `yaml:"schema,omitempty"` // postgres schema, mssql schema
	User           string            `yaml:"user,omitempty"`
	Password       string            `yaml:"password,omitempty"`
	Path           string            `yaml:"path,omitempty"` // sqlite file
	Params         map[string]string `yaml:"params,omitempty"`
	MaxOpenConns   int               `yaml:"max_open_conns,omitempty"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout,omitempty"`
}

// configFile is the layout of a YAML configuration file.
type configFile struct {
	Database Config `yaml:"database"`
}

// DefaultConfig returns the settings used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		MaxOpenConns:   10,
		ConnectTimeout: 10 * time.Second,
	}
}

// LoadConfig builds a configuration from defaults, the YAML file at path
// (skipped when path is empty) and the DB_* environment variables, in
// increasing order of precedence.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		file := configFile{Database: cfg}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg = file.Database
	}
	cfg = cfg.withEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFromEnv loads database configuration from environment variables
func LoadConfigFromEnv() (Config, error) {
	return LoadConfig("")
}

func (c Config) withEnv(getenv func(string) string) Config {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Type, "DB_TYPE")
	set(&c.Driver, "DB_DRIVER")
	set(&c.Host, "DB_HOST")
	set(&c.Port, "DB_PORT")
	set(&c.Database, "DB_NAME")
	set(&c.Schema, "DB_SCHEMA")
	set(&c.User, "DB_USER")
	set(&c.Password, "DB_PASSWORD")
	set(&c.Path, "DB_PATH")
	if c.Port == "" {
		switch d, err := dialect.ByName(c.Type); {
		case err != nil:
		case d.Kind() == dialect.MySQL:
			c.Port = "3306"
		case d.Kind() == dialect.Postgres:
			c.Port = "5432"
		case d.Kind() == dialect.MSSQL:
			c.Port = "1433"
		}
	}
	return c
}

// Validate reports missing or inconsistent settings.
func (c Config) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("DB_TYPE environment variable is required")
	}
	d, err := dialect.ByName(c.Type)
	if err != nil {
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	if d.Kind() == dialect.SQLite {
		if c.Path == "" && c.Database == "" {
			return fmt.Errorf("DB_PATH environment variable is required for sqlite")
		}
	} else if c.Database == "" {
		return fmt.Errorf("DB_NAME environment variable is required")
	}
	if c.Port != "" {
		if _, err := strconv.Atoi(c.Port); err != nil {
			return fmt.Errorf("invalid port %q", c.Port)
		}
	}
	if c.MaxOpenConns < 0 {
		return dberr.InvalidArgument("max_open_conns", "must not be negative")
	}
	return nil
}

// Dialect returns the dialect selected by Type.
func (c Config) Dialect() (*dialect.Dialect, error) {
	return dialect.ByName(c.Type)
}

// DriverName returns the database/sql driver to open.
func (c Config) DriverName() string {
	if c.Driver != "" {
		return c.Driver
	}
	d, err := c.Dialect()
	if err != nil {
		return c.Type
	}
	switch d.Kind() {
	case dialect.Postgres:
		return "postgres"
	case dialect.MySQL:
		return "mysql"
	case dialect.MSSQL:
		return "sqlserver"
	default:
		return "sqlite"
	}
}

// DSN returns the driver data source name.
func (c Config) DSN() (string, error) {
	d, err := c.Dialect()
	if err != nil {
		return "", err
	}
	switch d.Kind() {
	case dialect.Postgres:
		return postgresDSN(c), nil
	case dialect.MySQL:
		return mysqlDSN(c), nil
	case dialect.MSSQL:
		return mssqlDSN(c), nil
	default:
		return sqliteDSN(c), nil
	}
}

// Open connects to the configured database and verifies the connection
// within the connect timeout.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", d, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if d.Kind() == dialect.SQLite && isMemory(cfg) {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, dberr.Connection("ping "+d.Name(), err)
	}
	return OpenDB(d, db), nil
}
