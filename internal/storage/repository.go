// Package storage defines the backend-agnostic repository used by the loaders
// and a registry of backend factories (postgres, sqlite, mssql).
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a Repository.
//
// When to use:
//   - Use Config when constructing a Repository via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the set of operations the pipeline needs from a database.
//
// A Repository holds exactly one connection and runs in autocommit mode.
// Each backend implements bulk copy in its own idiomatic way (Postgres COPY,
// SQL Server bulk copy, SQLite batched INSERT).
type Repository interface {
	// Close releases the connection.
	//
	// Edge cases:
	//   - Callers should treat Close as "call once".
	Close()

	// EnsureTables creates the given tables if they do not exist.
	EnsureTables(ctx context.Context, tables []TableSpec) error

	// DropTables drops the given tables if they exist.
	DropTables(ctx context.Context, tables []TableSpec) error

	// CopyFromFile bulk-loads a staging file written by WriteStagingFile into
	// table. columns names the file's column order and must be a subset of
	// table.Columns.
	//
	// Errors:
	//   - On any failure the backend rolls back its current transaction and
	//     leaves the table unchanged, then returns the error.
	CopyFromFile(ctx context.Context, table TableSpec, columns []string, path string) (int64, error)

	// ReadTable returns every row of table projected onto columns. Values are
	// passed through NormalizeValue.
	ReadTable(ctx context.Context, table string, columns []string) ([][]any, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New opens a Repository using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
