// Package postgres implements storage.Repository on a single pgx connection.
//
// Bulk loads stream the staging file through COPY FROM STDIN in text format,
// so the file written by the loader is handed to the server unchanged.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"songetl/internal/storage"
)

func init() {
	storage.Register("postgres", New)
}

// Repo implements storage.Repository for Postgres.
//
// It owns exactly one connection in autocommit mode. Each statement is its
// own transaction; a failed COPY therefore leaves the target table unchanged.
type Repo struct {
	conn *pgx.Conn
}

// New connects to cfg.DSN (URL or key=value form) and verifies the connection.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Repo{conn: conn}, nil
}

// Close closes the connection.
func (r *Repo) Close() {
	_ = r.conn.Close(context.Background())
}

// EnsureTables creates each table if it does not exist.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		sql, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.conn.Exec(ctx, sql); err != nil {
			return wrapPgErr("create table "+t.Name, err)
		}
	}
	return nil
}

// DropTables drops each table if it exists.
func (r *Repo) DropTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		if _, err := r.conn.Exec(ctx, buildDropSQL(t)); err != nil {
			return wrapPgErr("drop table "+t.Name, err)
		}
	}
	return nil
}

// CopyFromFile streams path into table with COPY FROM STDIN.
//
// Errors:
//   - On failure the connection's transaction is rolled back (if one is open)
//     before the error is returned. Postgres error detail and SQLSTATE are
//     included in the message.
func (r *Repo) CopyFromFile(ctx context.Context, table storage.TableSpec, columns []string, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open staging file: %w", err)
	}
	defer f.Close()

	tag, err := r.conn.PgConn().CopyFrom(ctx, f, buildCopySQL(table.Name, columns))
	if err != nil {
		r.rollback(ctx)
		return 0, wrapPgErr("copy into "+table.Name, err)
	}
	return tag.RowsAffected(), nil
}

// rollback discards a transaction left open or aborted on the connection.
// In autocommit mode the status is normally idle already.
func (r *Repo) rollback(ctx context.Context) {
	pc := r.conn.PgConn()
	if pc.IsClosed() {
		return
	}
	if pc.TxStatus() != 'I' {
		_, _ = r.conn.Exec(ctx, "ROLLBACK")
	}
}

// ReadTable selects columns from every row of table.
func (r *Repo) ReadTable(ctx context.Context, table string, columns []string) ([][]any, error) {
	rows, err := r.conn.Query(ctx, buildSelectSQL(table, columns))
	if err != nil {
		return nil, wrapPgErr("read "+table, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		for i := range vals {
			vals[i] = storage.NormalizeValue(vals[i])
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPgErr("read "+table, err)
	}
	return out, nil
}

func wrapPgErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s: %w (detail: %s)", op, err, pgErr.Detail)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ storage.Repository = (*Repo)(nil)
