package postgres

import (
	"fmt"
	"strings"

	"songetl/internal/storage"
)

// pgIdent quotes a single identifier.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.songs" to
// "public"."songs". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(strings.TrimSpace(name), ".")
	for i, p := range parts {
		parts[i] = pgIdent(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// pgType maps a logical column type to Postgres DDL.
func pgType(typ string) (string, error) {
	switch typ {
	case storage.TypeText:
		return "varchar", nil
	case storage.TypeInt:
		return "int", nil
	case storage.TypeBigInt:
		return "bigint", nil
	case storage.TypeFloat:
		return "double precision", nil
	default:
		return "", fmt.Errorf("unsupported column type %q", typ)
	}
}

// buildColumnDef renders a single column definition.
//
// Nullable semantics:
//   - nullable == nil  => NOT NULL
//   - nullable == true => NULL (no NOT NULL clause).
//   - nullable == false=> NOT NULL.
func buildColumnDef(c storage.ColumnSpec) (string, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return "", fmt.Errorf("column name must be set")
	}
	typ, err := pgType(c.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", name, err)
	}

	def := pgIdent(name) + " " + typ
	if !c.IsNullable() {
		def += " NOT NULL"
	}
	return def, nil
}

// buildCreateSQL builds CREATE TABLE IF NOT EXISTS for t, with a table-level
// PRIMARY KEY when t declares one.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %s: no columns", t.Name)
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 {
		for _, k := range t.PrimaryKey {
			if _, ok := t.Column(k); !ok {
				return "", fmt.Errorf("table %s: primary key column %q is not declared", t.Name, k)
			}
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(mapIdent(t.PrimaryKey), ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pgFQN(t.Name), strings.Join(defs, ", ")), nil
}

func buildDropSQL(t storage.TableSpec) string {
	return "DROP TABLE IF EXISTS " + pgFQN(t.Name)
}

// buildCopySQL builds the COPY FROM STDIN statement for a staging file.
func buildCopySQL(table string, columns []string) string {
	return fmt.Sprintf(
		`COPY %s (%s) FROM STDIN WITH (FORMAT text, DELIMITER E'\t', NULL '%s')`,
		pgFQN(table), strings.Join(mapIdent(columns), ", "), storage.NullMarker,
	)
}

func buildSelectSQL(table string, columns []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(mapIdent(columns), ", "), pgFQN(table))
}
