// Package sqlite implements storage.Repository on modernc.org/sqlite.
//
// SQLite has no COPY; bulk loads decode the staging file and insert every row
// through one prepared statement inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"songetl/internal/storage"
)

func init() {
	storage.Register("sqlite", New)
}

// Repo implements storage.Repository for SQLite.
type Repo struct {
	db *sql.DB
}

// New opens cfg.DSN (a file path or "file:...?" URI) with a single connection.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One shared connection; also keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTables creates each table if it does not exist.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		ddl, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// DropTables drops each table if it exists.
func (r *Repo) DropTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(t.Name)); err != nil {
			return fmt.Errorf("drop table %s: %w", t.Name, err)
		}
	}
	return nil
}

// CopyFromFile inserts every staging row into table in one transaction.
//
// Errors:
//   - Any failure (bad field, constraint violation, ctx cancel) rolls the
//     transaction back, so the table is left unchanged.
func (r *Repo) CopyFromFile(ctx context.Context, table storage.TableSpec, columns []string, path string) (n int64, err error) {
	types, err := columnTypes(table, columns)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open staging file: %w", err)
	}
	defer f.Close()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, buildInsertSQL(table.Name, columns))
	if err != nil {
		return 0, fmt.Errorf("prepare insert into %s: %w", table.Name, err)
	}
	defer stmt.Close()

	err = storage.ScanStaging(f, len(columns), func(line int, fields []storage.StagingField) error {
		args, err := typedArgs(fields, types)
		if err != nil {
			return fmt.Errorf("staging line %d: %w", line, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into %s (staging line %d): %w", table.Name, line, err)
		}
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", table.Name, err)
	}
	return n, nil
}

// ReadTable selects columns from every row of table.
func (r *Repo) ReadTable(ctx context.Context, table string, columns []string) ([][]any, error) {
	rows, err := r.db.QueryContext(ctx, buildSelectSQL(table, columns))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		for i := range vals {
			vals[i] = storage.NormalizeValue(vals[i])
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}

func columnTypes(table storage.TableSpec, columns []string) ([]string, error) {
	types := make([]string, len(columns))
	for i, c := range columns {
		spec, ok := table.Column(c)
		if !ok {
			return nil, fmt.Errorf("table %s: unknown column %q", table.Name, c)
		}
		types[i] = spec.Type
	}
	return types, nil
}

func typedArgs(fields []storage.StagingField, types []string) ([]any, error) {
	args := make([]any, len(fields))
	for i, f := range fields {
		if f.Null {
			continue
		}
		v, err := storage.ParseTyped(f.Value, types[i])
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func sqliteType(typ string) (string, error) {
	switch typ {
	case storage.TypeText:
		return "TEXT", nil
	case storage.TypeInt, storage.TypeBigInt:
		return "INTEGER", nil
	case storage.TypeFloat:
		return "REAL", nil
	default:
		return "", fmt.Errorf("unsupported column type %q", typ)
	}
}

func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", errors.New("table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %s: no columns", t.Name)
	}

	parts := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		typ, err := sqliteType(c.Type)
		if err != nil {
			return "", fmt.Errorf("table %s column %s: %w", t.Name, c.Name, err)
		}
		def := sqlIdent(c.Name) + " " + typ
		if !c.IsNullable() {
			def += " NOT NULL"
		}
		parts = append(parts, def)
	}
	if len(t.PrimaryKey) > 0 {
		keys := make([]string, len(t.PrimaryKey))
		for i, k := range t.PrimaryKey {
			if _, ok := t.Column(k); !ok {
				return "", fmt.Errorf("table %s: primary key column %q is not declared", t.Name, k)
			}
			keys[i] = sqlIdent(k)
		}
		parts = append(parts, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqlIdent(t.Name), strings.Join(parts, ", ")), nil
}

func buildInsertSQL(table string, columns []string) string {
	cols := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = sqlIdent(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", sqlIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func buildSelectSQL(table string, columns []string) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = sqlIdent(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), sqlIdent(table))
}

var _ storage.Repository = (*Repo)(nil)
