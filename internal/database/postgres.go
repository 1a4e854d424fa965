package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/normalize"
)

// Postgres is a Conn backed by a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	cfg  ConnConfig
}

// PostgresURL builds the connection URL for cfg.
func PostgresURL(cfg ConnConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.TLS {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "disable")
	}
	if cfg.ConnectionTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectionTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPostgres creates a pool and pings the server.
func NewPostgres(ctx context.Context, cfg ConnConfig) (*Postgres, error) {
	cfg = cfg.withDefaults()
	pcfg, err := pgxpool.ParseConfig(PostgresURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	pcfg.MaxConns = int32(cfg.MaxOpenConns)
	pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pcfg.ConnConfig.ConnectTimeout = cfg.ConnectionTimeout

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, core.Connectivity("create pool", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, core.Connectivity("ping postgres", err)
	}
	log.Printf("[POSTGRES] Connected to %s:%d (tls=%v)", cfg.Host, cfg.Port, cfg.TLS)
	return &Postgres{pool: pool, cfg: cfg}, nil
}

func (p *Postgres) Dialect() Dialect { return PostgresDialect{} }

// udtField is one attribute of a composite type as read from pg_catalog.
type udtField struct {
	name       string
	typeName   string
	udtSchema  string
	udtName    string
	composite  bool
	arrayOfUDT bool
}

// Introspect reads composite types, tables, columns and keys.
func (p *Postgres) Introspect(ctx context.Context, schemas []string) (*model.Database, error) {
	if len(schemas) == 0 {
		rows, err := p.pool.Query(ctx, `
			SELECT nspname FROM pg_catalog.pg_namespace
			WHERE nspname NOT LIKE 'pg\_%' AND nspname <> 'information_schema'
			ORDER BY nspname`)
		if err != nil {
			return nil, core.Connectivity("list schemas", err)
		}
		if schemas, err = pgx.CollectRows(rows, pgx.RowTo[string]); err != nil {
			return nil, fmt.Errorf("failed to read schemas: %w", err)
		}
	}

	c := newCatalog(p.cfg.Database, normalize.PostgreSQL)
	c.db.ProductName = "PostgreSQL"
	if err := p.pool.QueryRow(ctx, "SHOW server_version").Scan(&c.db.ProductVersion); err != nil {
		return nil, core.Connectivity("query server version", err)
	}

	udts, err := p.compositeTypes(ctx, c, schemas)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE' AND table_schema = ANY($1)
		ORDER BY table_schema, table_name`, schemas)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	var schema, table string
	if _, err := pgx.ForEachRow(rows, []any{&schema, &table}, func() error {
		c.table(schema, table)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	rows, err = p.pool.Query(ctx, `
		SELECT c.table_schema, c.table_name, c.column_name, c.data_type, c.udt_schema, c.udt_name,
		       format_type(a.atttypid, a.atttypmod), c.is_nullable = 'YES', c.column_default
		FROM information_schema.columns c
		JOIN pg_catalog.pg_namespace n ON n.nspname = c.table_schema
		JOIN pg_catalog.pg_class r ON r.relnamespace = n.oid AND r.relname = c.table_name
		JOIN pg_catalog.pg_attribute a ON a.attrelid = r.oid AND a.attname = c.column_name
		WHERE c.table_schema = ANY($1)
		ORDER BY c.table_schema, c.table_name, c.ordinal_position`, schemas)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	var column, dataType, udtSchema, udtName, formatted string
	var nillable bool
	var def *string
	if _, err := pgx.ForEachRow(rows, []any{&schema, &table, &column, &dataType, &udtSchema, &udtName, &formatted, &nillable, &def}, func() error {
		var resolved *datatype.Type
		switch dataType {
		case "USER-DEFINED":
			resolved = udts[model.TableID(udtSchema, udtName)]
		case "ARRAY":
			if elem, ok := udts[model.TableID(udtSchema, strings.TrimPrefix(udtName, "_"))]; ok {
				resolved = datatype.NewArray(elem, nil)
			}
		}
		c.column(schema, table, column, formatted, resolved, nillable, def)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}

	rows, err = p.pool.Query(ctx, `
		SELECT tc.table_schema, tc.table_name, tc.constraint_name, tc.constraint_type, kcu.column_name,
		       COALESCE(rk.table_schema, ''), COALESCE(rk.table_name, ''), COALESCE(rk.column_name, '')
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_schema = tc.constraint_schema AND kcu.constraint_name = tc.constraint_name
		LEFT JOIN information_schema.referential_constraints rc
		  ON rc.constraint_schema = tc.constraint_schema AND rc.constraint_name = tc.constraint_name
		LEFT JOIN information_schema.key_column_usage rk
		  ON rk.constraint_schema = rc.unique_constraint_schema AND rk.constraint_name = rc.unique_constraint_name
		 AND rk.ordinal_position = kcu.position_in_unique_constraint
		WHERE tc.table_schema = ANY($1) AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
		ORDER BY tc.table_schema, tc.table_name, tc.constraint_name, kcu.ordinal_position`, schemas)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	var constraint, kind, refSchema, refTable, refColumn string
	if _, err := pgx.ForEachRow(rows, []any{&schema, &table, &constraint, &kind, &column, &refSchema, &refTable, &refColumn}, func() error {
		c.key(schema, table, constraint, kind, column, refSchema, refTable, refColumn)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}

	log.Printf("[POSTGRES] Introspected %d schemas, %d tables, %d types", len(c.db.Schemas), len(c.tables), len(udts))
	return c.finish()
}

// compositeTypes reads user defined composite types and registers them on
// their schema. The result is keyed by schema.name.
func (p *Postgres) compositeTypes(ctx context.Context, c *catalog, schemas []string) (map[string]*datatype.Type, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT n.nspname, t.typname, a.attname, format_type(a.atttypid, a.atttypmod),
		       fn.nspname, ft.typname, ft.typtype = 'c',
		       COALESCE(et.typtype = 'c', false)
		FROM pg_catalog.pg_type t
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		JOIN pg_catalog.pg_class cl ON cl.oid = t.typrelid AND cl.relkind = 'c'
		JOIN pg_catalog.pg_attribute a ON a.attrelid = cl.oid AND a.attnum > 0 AND NOT a.attisdropped
		JOIN pg_catalog.pg_type ft ON ft.oid = a.atttypid
		JOIN pg_catalog.pg_namespace fn ON fn.oid = ft.typnamespace
		LEFT JOIN pg_catalog.pg_type et ON et.oid = ft.typelem AND ft.typcategory = 'A'
		WHERE n.nspname = ANY($1)
		ORDER BY n.nspname, t.typname, a.attnum`, schemas)
	if err != nil {
		return nil, fmt.Errorf("failed to query composite types: %w", err)
	}

	var order []string
	raw := make(map[string][]udtField)
	var schema, name string
	var f udtField
	if _, err := pgx.ForEachRow(rows, []any{&schema, &name, &f.name, &f.typeName, &f.udtSchema, &f.udtName, &f.composite, &f.arrayOfUDT}, func() error {
		id := model.TableID(schema, name)
		if _, ok := raw[id]; !ok {
			order = append(order, id)
		}
		raw[id] = append(raw[id], f)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to query composite types: %w", err)
	}

	resolved := make(map[string]*datatype.Type)
	var resolve func(id string, seen map[string]bool) *datatype.Type
	resolve = func(id string, seen map[string]bool) *datatype.Type {
		if t, ok := resolved[id]; ok {
			return t
		}
		fields, ok := raw[id]
		if !ok || seen[id] {
			return nil
		}
		seen[id] = true
		out := make([]datatype.Field, 0, len(fields))
		for _, f := range fields {
			var ft *datatype.Type
			switch {
			case f.composite:
				ft = resolve(model.TableID(f.udtSchema, f.udtName), seen)
			case f.arrayOfUDT:
				if elem := resolve(model.TableID(f.udtSchema, strings.TrimPrefix(f.udtName, "_")), seen); elem != nil {
					ft = datatype.NewArray(elem, nil)
				}
			}
			if ft == nil {
				ft, _ = c.norm.Normalize(f.typeName, 0, 0, 10)
			}
			if ft == nil {
				ft = datatype.NewUnsupported(f.typeName)
			}
			out = append(out, datatype.Field{Name: f.name, Type: ft})
		}
		schema, name, _ := strings.Cut(id, ".")
		t := datatype.NewStructure(schema, name, out)
		resolved[id] = t
		return t
	}
	for _, id := range order {
		t := resolve(id, make(map[string]bool))
		if t == nil {
			continue
		}
		s := t.Variant.(datatype.Structure)
		c.schema(s.Schema).Types = append(c.schema(s.Schema).Types, t)
	}
	return resolved, nil
}

func (p *Postgres) Query(ctx context.Context, query string) (Cursor, error) {
	log.Printf("[POSTGRES] Executing query: %s", query)
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &pgxCursor{rows: rows}, nil
}

func (p *Postgres) Exec(ctx context.Context, query string) error {
	log.Printf("[POSTGRES] Executing statement: %s", query)
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// Begin starts a transaction whose batches protect each statement with a
// savepoint and stop at the first failure.
func (p *Postgres) Begin(ctx context.Context) (core.BatchExecutor, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, core.Connectivity("begin transaction", err)
	}
	return &pgxExecutor{tx: tx}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

type pgxCursor struct {
	rows pgx.Rows
}

func (c *pgxCursor) Next() bool             { return c.rows.Next() }
func (c *pgxCursor) Values() ([]any, error) { return c.rows.Values() }
func (c *pgxCursor) Err() error             { return c.rows.Err() }

func (c *pgxCursor) Close() error {
	c.rows.Close()
	return nil
}

// pgxExecutor runs batches in a pgx transaction. A failed statement aborts
// a PostgreSQL transaction, so every statement runs in a nested savepoint
// and the batch returns at the first failure with a short outcome vector.
type pgxExecutor struct {
	tx   pgx.Tx
	done bool
}

func (e *pgxExecutor) ExecBatch(ctx context.Context, stmts []core.Statement) error {
	outcomes := make([]core.Outcome, 0, len(stmts))
	for i, s := range stmts {
		sp, err := e.tx.Begin(ctx)
		if err != nil {
			return core.Connectivity("create savepoint", err)
		}
		tag, err := sp.Exec(ctx, s.SQL, s.Args...)
		if err != nil {
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				return core.Connectivity("rollback to savepoint", errors.Join(err, rbErr))
			}
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) && (isFatal(err) || pgconn.Timeout(err)) {
				return core.Connectivity("execute batch", err)
			}
			return &core.BatchError{
				Outcomes: outcomes,
				Reasons:  map[int]string{i: err.Error()},
				Err:      err,
			}
		}
		if err := sp.Commit(ctx); err != nil {
			return core.Connectivity("release savepoint", err)
		}
		outcomes = append(outcomes, core.Outcome(tag.RowsAffected()))
	}
	return nil
}

func (e *pgxExecutor) Commit(ctx context.Context) error {
	if err := e.tx.Commit(ctx); err != nil {
		return err
	}
	e.done = true
	return nil
}

func (e *pgxExecutor) Close() error {
	if e.done {
		return nil
	}
	e.done = true
	if err := e.tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
