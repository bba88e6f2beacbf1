package mssql

import (
	"fmt"
	"strings"

	"songetl/internal/storage"
)

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.songs" -> [dbo].[songs]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// mssqlType maps a logical column type to SQL Server DDL.
//
// Key columns get a bounded NVARCHAR because NVARCHAR(MAX) cannot be indexed.
func mssqlType(typ string, inKey bool) (string, error) {
	switch typ {
	case storage.TypeText:
		if inKey {
			return "NVARCHAR(450)", nil
		}
		return "NVARCHAR(MAX)", nil
	case storage.TypeInt:
		return "INT", nil
	case storage.TypeBigInt:
		return "BIGINT", nil
	case storage.TypeFloat:
		return "FLOAT", nil
	default:
		return "", fmt.Errorf("mssql: unsupported column type %q", typ)
	}
}

// buildCreateSQL builds CREATE TABLE guarded by OBJECT_ID so EnsureTables
// stays idempotent without IF NOT EXISTS syntax.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mssql: table %s has no columns", t.Name)
	}

	parts := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("mssql: column name is empty")
		}
		typ, err := mssqlType(c.Type, t.InPrimaryKey(c.Name))
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", t.Name, c.Name, err)
		}
		def := mssqlIdent(c.Name) + " " + typ
		if c.IsNullable() {
			def += " NULL"
		} else {
			def += " NOT NULL"
		}
		parts = append(parts, def)
	}
	if len(t.PrimaryKey) > 0 {
		keys := make([]string, len(t.PrimaryKey))
		for i, k := range t.PrimaryKey {
			if _, ok := t.Column(k); !ok {
				return "", fmt.Errorf("mssql: table %s: primary key column %q is not declared", t.Name, k)
			}
			keys[i] = mssqlIdent(k)
		}
		parts = append(parts, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(t.Name, "'", "''"),
		mssqlTableIdent(t.Name),
		strings.Join(parts, ", "),
	), nil
}

func buildDropSQL(t storage.TableSpec) string {
	return "DROP TABLE IF EXISTS " + mssqlTableIdent(t.Name)
}

func buildSelectSQL(table string, columns []string) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = mssqlIdent(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), mssqlTableIdent(table))
}
