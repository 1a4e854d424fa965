package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/model"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown database driver")

// Conn is an open connection to a relational database.
type Conn interface {
	Dialect() Dialect

	// Introspect describes the given schemas, or every user schema when
	// schemas is empty.
	Introspect(ctx context.Context, schemas []string) (*model.Database, error)

	// Query runs a select and returns a cursor over its rows.
	Query(ctx context.Context, query string) (Cursor, error)

	// Exec runs a statement outside any batch, e.g. DDL.
	Exec(ctx context.Context, query string) error

	// Begin starts a transaction for the inserts of one table.
	Begin(ctx context.Context) (core.BatchExecutor, error)

	Close() error
}

// Cursor iterates over query results.
type Cursor interface {
	Next() bool
	// Values returns the current row. The slice is only valid until Next.
	Values() ([]any, error)
	Err() error
	Close() error
}

// ConnConfig describes how to reach a database.
type ConnConfig struct {
	Driver   string `yaml:"driver" json:"driver"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`

	// TLS enables transport encryption. The orchestrator clears it for its
	// single degraded retry.
	TLS bool `yaml:"tls" json:"tls"`

	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// DefaultConnConfig returns pool settings used when a field is left zero.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		MaxOpenConns:      4,
		MaxIdleConns:      2,
		ConnMaxLifetime:   30 * time.Minute,
		ConnectionTimeout: 10 * time.Second,
	}
}

func (c ConnConfig) withDefaults() ConnConfig {
	d := DefaultConnConfig()
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = d.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = d.MaxIdleConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = d.ConnMaxLifetime
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = d.ConnectionTimeout
	}
	return c
}

// Open connects using the driver named in cfg. Failures to reach the server
// wrap core.ErrConnectivity.
func Open(ctx context.Context, cfg ConnConfig) (Conn, error) {
	cfg = cfg.withDefaults()
	switch strings.ToLower(cfg.Driver) {
	case "mysql", "mariadb":
		return NewMySQL(ctx, cfg)
	case "postgres", "postgresql", "pgx":
		return NewPostgres(ctx, cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}
