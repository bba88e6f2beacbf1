package postgres

import (
	"strings"
	"testing"

	"songetl/internal/storage"
)

// boolPtr is a tiny helper to avoid repeating &[]bool literals in tests.
func boolPtr(v bool) *bool { return &v }

func TestBuildCreateSQL_CompositePrimaryKey(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name:       "users",
		PrimaryKey: []string{"user_id", "level"},
		Columns: []storage.ColumnSpec{
			{Name: "user_id", Type: storage.TypeInt},
			{Name: "first_name", Type: storage.TypeText, Nullable: boolPtr(true)},
			{Name: "level", Type: storage.TypeText, Nullable: boolPtr(false)},
		},
	}

	got, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	want := `CREATE TABLE IF NOT EXISTS "users" ("user_id" int NOT NULL, "first_name" varchar, "level" varchar NOT NULL, PRIMARY KEY ("user_id", "level"))`
	if got != want {
		t.Fatalf("buildCreateSQL =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildCreateSQL_NoPrimaryKeyAndFloat(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name: "public.time",
		Columns: []storage.ColumnSpec{
			{Name: "start_time", Type: storage.TypeBigInt, Nullable: boolPtr(true)},
			{Name: "score", Type: storage.TypeFloat, Nullable: boolPtr(true)},
		},
	}
	got, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if !strings.HasPrefix(got, `CREATE TABLE IF NOT EXISTS "public"."time"`) {
		t.Fatalf("unexpected table name: %q", got)
	}
	if strings.Contains(got, "PRIMARY KEY") {
		t.Fatalf("unexpected PRIMARY KEY: %q", got)
	}
	if !strings.Contains(got, `"score" double precision`) {
		t.Fatalf("float not mapped: %q", got)
	}
}

func TestBuildCreateSQL_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec storage.TableSpec
	}{
		{"empty name", storage.TableSpec{Columns: []storage.ColumnSpec{{Name: "a", Type: storage.TypeInt}}}},
		{"no columns", storage.TableSpec{Name: "t"}},
		{"bad type", storage.TableSpec{Name: "t", Columns: []storage.ColumnSpec{{Name: "a", Type: "blob"}}}},
		{"unknown key", storage.TableSpec{Name: "t", PrimaryKey: []string{"b"}, Columns: []storage.ColumnSpec{{Name: "a", Type: storage.TypeInt}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := buildCreateSQL(tt.spec); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestBuildCopySQL(t *testing.T) {
	t.Parallel()

	got := buildCopySQL("time", []string{"start_time", "hour"})
	want := `COPY "time" ("start_time", "hour") FROM STDIN WITH (FORMAT text, DELIMITER E'\t', NULL 'NULL')`
	if got != want {
		t.Fatalf("buildCopySQL = %q, want %q", got, want)
	}
}

func TestBuildDropAndSelectSQL(t *testing.T) {
	t.Parallel()

	if got := buildDropSQL(storage.TableSpec{Name: "songs"}); got != `DROP TABLE IF EXISTS "songs"` {
		t.Fatalf("buildDropSQL = %q", got)
	}
	if got := buildSelectSQL("songs", []string{"song_id", "title"}); got != `SELECT "song_id", "title" FROM "songs"` {
		t.Fatalf("buildSelectSQL = %q", got)
	}
}
