package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRepo struct{ closeCalls int }

func (f *fakeRepo) Close() { f.closeCalls++ }

func (f *fakeRepo) EnsureTables(context.Context, []TableSpec) error { return nil }

func (f *fakeRepo) DropTables(context.Context, []TableSpec) error { return nil }

func (f *fakeRepo) ReadTable(context.Context, string, []string) ([][]any, error) {
	return nil, nil
}

func (f *fakeRepo) CopyFromFile(context.Context, TableSpec, []string, string) (int64, error) {
	return 0, nil
}

func TestRegisterAndNew(t *testing.T) {
	want := &fakeRepo{}
	var gotDSN string
	Register("fake-test", func(_ context.Context, cfg Config) (Repository, error) {
		gotDSN = cfg.DSN
		return want, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-test", DSN: "mem"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if repo != want {
		t.Fatalf("New returned %#v, want the registered repo", repo)
	}
	if gotDSN != "mem" {
		t.Fatalf("factory saw DSN %q, want mem", gotDSN)
	}

	found := false
	for _, k := range Kinds() {
		if k == "fake-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Kinds() = %v, missing fake-test", Kinds())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}

	_, err := New(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "unsupported storage.kind=nope") {
		t.Fatalf("err = %v, want unsupported kind", err)
	}

	boom := errors.New("dial failed")
	Register("fake-failing", func(context.Context, Config) (Repository, error) { return nil, boom })
	if _, err := New(context.Background(), Config{Kind: "fake-failing"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want factory error", err)
	}
}

func TestRegister_Panics(t *testing.T) {
	f := func(context.Context, Config) (Repository, error) { return nil, nil }
	Register("fake-dup", f)

	tests := []struct {
		name string
		kind string
		f    factory
	}{
		{"empty kind", "", f},
		{"nil factory", "fake-nil", nil},
		{"duplicate", "fake-dup", f},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("Register(%q) did not panic", tt.kind)
				}
			}()
			Register(tt.kind, tt.f)
		})
	}
}

func TestTableSpecHelpers(t *testing.T) {
	yes := true
	spec := TableSpec{
		Name:       "users",
		PrimaryKey: []string{"user_id", "level"},
		Columns: []ColumnSpec{
			{Name: "user_id", Type: TypeInt},
			{Name: "gender", Type: TypeText, Nullable: &yes},
			{Name: "level", Type: TypeText},
		},
	}
	if got := strings.Join(spec.ColumnNames(), ","); got != "user_id,gender,level" {
		t.Fatalf("ColumnNames = %s", got)
	}
	if !spec.InPrimaryKey("level") || spec.InPrimaryKey("gender") {
		t.Fatalf("InPrimaryKey wrong")
	}
	c, ok := spec.Column("gender")
	if !ok || !c.IsNullable() {
		t.Fatalf("Column(gender) = %+v, %v", c, ok)
	}
	if c, _ := spec.Column("user_id"); c.IsNullable() {
		t.Fatalf("user_id should be NOT NULL")
	}
}
