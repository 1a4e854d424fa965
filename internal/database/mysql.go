package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/normalize"
)

// mysqlSystemSchemas are never exported when no schema is requested.
var mysqlSystemSchemas = []string{"mysql", "information_schema", "performance_schema", "sys"}

// MySQL is a Conn backed by database/sql and go-sql-driver/mysql.
type MySQL struct {
	db     *sql.DB
	cfg    ConnConfig
	closed bool
}

// MySQLDSN builds the driver DSN for cfg.
func MySQLDSN(cfg ConnConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc.Addr = cfg.Host + ":" + strconv.Itoa(port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = cfg.ConnectionTimeout
	if cfg.TLS {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN()
}

// NewMySQL opens a pool and pings the server.
func NewMySQL(ctx context.Context, cfg ConnConfig) (*MySQL, error) {
	cfg = cfg.withDefaults()
	db, err := sql.Open("mysql", MySQLDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, core.Connectivity("ping mysql", err)
	}
	log.Printf("[MYSQL] Connected to %s:%d (tls=%v)", cfg.Host, cfg.Port, cfg.TLS)
	return &MySQL{db: db, cfg: cfg}, nil
}

func (m *MySQL) Dialect() Dialect { return MySQLDialect{} }

// Introspect reads tables, columns and keys from INFORMATION_SCHEMA.
func (m *MySQL) Introspect(ctx context.Context, schemas []string) (*model.Database, error) {
	if m.closed {
		return nil, fmt.Errorf("database is closed")
	}
	if len(schemas) == 0 {
		var err error
		if schemas, err = m.userSchemas(ctx); err != nil {
			return nil, err
		}
	}
	name := m.cfg.Database
	if name == "" {
		name = strings.Join(schemas, ",")
	}
	c := newCatalog(name, normalize.MySQL)
	c.db.ProductName = "MySQL"
	if err := m.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&c.db.ProductVersion); err != nil {
		return nil, core.Connectivity("query server version", err)
	}
	if len(schemas) == 0 {
		return c.finish()
	}

	in := placeholders(MySQLDialect{}, 1, len(schemas))
	args := make([]any, len(schemas))
	for i, s := range schemas {
		args[i] = s
	}

	if err := m.each(ctx, `
		SELECT TABLE_SCHEMA, TABLE_NAME, COALESCE(TABLE_COMMENT, '')
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA IN (`+in+`)
		ORDER BY TABLE_SCHEMA, TABLE_NAME`, args, func(rows *sql.Rows) error {
		var schema, table, comment string
		if err := rows.Scan(&schema, &table, &comment); err != nil {
			return err
		}
		c.table(schema, table).Description = comment
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	if err := m.each(ctx, `
		SELECT TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA IN (`+in+`)
		ORDER BY TABLE_SCHEMA, TABLE_NAME, ORDINAL_POSITION`, args, func(rows *sql.Rows) error {
		var schema, table, column, columnType, nullable string
		var def sql.NullString
		if err := rows.Scan(&schema, &table, &column, &columnType, &nullable, &def); err != nil {
			return err
		}
		var d *string
		if def.Valid {
			d = &def.String
		}
		c.column(schema, table, column, columnType, nil, nullable == "YES", d)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}

	if err := m.each(ctx, `
		SELECT k.TABLE_SCHEMA, k.TABLE_NAME, k.CONSTRAINT_NAME, tc.CONSTRAINT_TYPE, k.COLUMN_NAME,
		       COALESCE(k.REFERENCED_TABLE_SCHEMA, ''), COALESCE(k.REFERENCED_TABLE_NAME, ''), COALESCE(k.REFERENCED_COLUMN_NAME, '')
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
		JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		  ON tc.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA AND tc.CONSTRAINT_NAME = k.CONSTRAINT_NAME AND tc.TABLE_NAME = k.TABLE_NAME
		WHERE k.TABLE_SCHEMA IN (`+in+`)
		ORDER BY k.TABLE_SCHEMA, k.TABLE_NAME, k.CONSTRAINT_NAME, k.ORDINAL_POSITION`, args, func(rows *sql.Rows) error {
		var schema, table, constraint, kind, column, refSchema, refTable, refColumn string
		if err := rows.Scan(&schema, &table, &constraint, &kind, &column, &refSchema, &refTable, &refColumn); err != nil {
			return err
		}
		c.key(schema, table, constraint, kind, column, refSchema, refTable, refColumn)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}

	log.Printf("[MYSQL] Introspected %d schemas, %d tables", len(c.db.Schemas), len(c.tables))
	return c.finish()
}

func (m *MySQL) userSchemas(ctx context.Context) ([]string, error) {
	if m.cfg.Database != "" {
		return []string{m.cfg.Database}, nil
	}
	var out []string
	err := m.each(ctx, "SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA ORDER BY SCHEMA_NAME", nil, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		for _, sys := range mysqlSystemSchemas {
			if strings.EqualFold(name, sys) {
				return nil
			}
		}
		out = append(out, name)
		return nil
	})
	if err != nil {
		return nil, core.Connectivity("list schemas", err)
	}
	return out, nil
}

func (m *MySQL) each(ctx context.Context, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Query runs a select and returns a cursor scanning into untyped values.
func (m *MySQL) Query(ctx context.Context, query string) (Cursor, error) {
	if m.closed {
		return nil, fmt.Errorf("database is closed")
	}
	log.Printf("[MYSQL] Executing query: %s", query)
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	return &sqlCursor{rows: rows, values: make([]any, len(cols)), ptrs: make([]any, len(cols))}, nil
}

func (m *MySQL) Exec(ctx context.Context, query string) error {
	if m.closed {
		return fmt.Errorf("database is closed")
	}
	log.Printf("[MYSQL] Executing statement: %s", query)
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// Begin starts a transaction whose batches run every statement and collect
// one outcome per statement.
func (m *MySQL) Begin(ctx context.Context) (core.BatchExecutor, error) {
	if m.closed {
		return nil, fmt.Errorf("database is closed")
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.Connectivity("begin transaction", err)
	}
	return &sqlExecutor{tx: tx}, nil
}

func (m *MySQL) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// sqlCursor adapts *sql.Rows to Cursor.
type sqlCursor struct {
	rows   *sql.Rows
	values []any
	ptrs   []any
}

func (c *sqlCursor) Next() bool { return c.rows.Next() }

func (c *sqlCursor) Values() ([]any, error) {
	for i := range c.values {
		c.values[i] = nil
		c.ptrs[i] = &c.values[i]
	}
	if err := c.rows.Scan(c.ptrs...); err != nil {
		return nil, err
	}
	return c.values, nil
}

func (c *sqlCursor) Err() error   { return c.rows.Err() }
func (c *sqlCursor) Close() error { return c.rows.Close() }

// sqlExecutor runs batches inside a database/sql transaction. MySQL keeps a
// transaction usable after a failed statement, so every statement of a
// batch is attempted.
type sqlExecutor struct {
	tx    *sql.Tx
	stmt  *sql.Stmt
	query string
	done  bool
}

func (e *sqlExecutor) prepare(ctx context.Context, query string) error {
	if e.stmt != nil && e.query == query {
		return nil
	}
	if e.stmt != nil {
		e.stmt.Close()
	}
	stmt, err := e.tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	e.stmt, e.query = stmt, query
	return nil
}

func (e *sqlExecutor) ExecBatch(ctx context.Context, stmts []core.Statement) error {
	outcomes := make([]core.Outcome, len(stmts))
	var reasons map[int]string
	for i, s := range stmts {
		if err := e.prepare(ctx, s.SQL); err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		res, err := e.stmt.ExecContext(ctx, s.Args...)
		if err != nil {
			if isFatal(err) || errors.Is(err, mysql.ErrInvalidConn) {
				return core.Connectivity("execute batch", err)
			}
			outcomes[i] = core.ExecuteFailed
			if reasons == nil {
				reasons = make(map[int]string)
			}
			reasons[i] = err.Error()
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			outcomes[i] = core.Outcome(n)
		} else {
			outcomes[i] = core.SuccessNoInfo
		}
	}
	if len(reasons) > 0 {
		return &core.BatchError{
			Outcomes: outcomes,
			Reasons:  reasons,
			Err:      fmt.Errorf("%d of %d statements failed", len(reasons), len(stmts)),
		}
	}
	return nil
}

func (e *sqlExecutor) Commit(ctx context.Context) error {
	if err := e.tx.Commit(); err != nil {
		return err
	}
	e.done = true
	return nil
}

// Close releases the prepared statement and rolls back an uncommitted
// transaction.
func (e *sqlExecutor) Close() error {
	var errs []error
	if e.stmt != nil {
		errs = append(errs, e.stmt.Close())
		e.stmt = nil
	}
	if !e.done {
		e.done = true
		if err := e.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
