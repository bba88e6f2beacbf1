package mssql

import (
	"strings"
	"testing"

	"songetl/internal/schema"
	"songetl/internal/storage"
)

func TestBuildCreateSQL_KeyColumnsBounded(t *testing.T) {
	t.Parallel()

	got, err := buildCreateSQL(schema.Songs)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	want := "IF OBJECT_ID(N'songs', N'U') IS NULL BEGIN CREATE TABLE [songs] (" +
		"[song_id] NVARCHAR(450) NOT NULL, [title] NVARCHAR(MAX) NULL, [artist_id] NVARCHAR(MAX) NULL, " +
		"[year] INT NULL, [duration] FLOAT NULL, PRIMARY KEY ([song_id])); END;"
	if got != want {
		t.Fatalf("buildCreateSQL =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildCreateSQL_Errors(t *testing.T) {
	t.Parallel()

	tests := []storage.TableSpec{
		{},
		{Name: "t"},
		{Name: "t", Columns: []storage.ColumnSpec{{Name: "a", Type: "xml"}}},
		{Name: "t", PrimaryKey: []string{"z"}, Columns: []storage.ColumnSpec{{Name: "a", Type: storage.TypeInt}}},
	}
	for i, spec := range tests {
		if _, err := buildCreateSQL(spec); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestIdentQuoting(t *testing.T) {
	t.Parallel()

	if got := mssqlTableIdent("dbo.time"); got != "[dbo].[time]" {
		t.Fatalf("mssqlTableIdent = %q", got)
	}
	if got := mssqlIdent("we]ird"); got != "[we]]ird]" {
		t.Fatalf("mssqlIdent = %q", got)
	}
	if got := buildSelectSQL("users", []string{"user_id", "level"}); !strings.HasPrefix(got, "SELECT [user_id], [level] FROM [users]") {
		t.Fatalf("buildSelectSQL = %q", got)
	}
	if got := buildDropSQL(schema.Time); got != "DROP TABLE IF EXISTS [time]" {
		t.Fatalf("buildDropSQL = %q", got)
	}
}
