package store

import (
	"database/sql"
	"strings"
	"testing"
)

func nullStr(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }
func nullInt(i int64) sql.NullInt64   { return sql.NullInt64{Int64: i, Valid: true} }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadGateRejectsNonSelect(t *testing.T) {
	s := openTestStore(t)

	cases := []string{
		"DELETE FROM symbols",
		"INSERT INTO symbols (scip_id, name, kind) VALUES ('a','b','c')",
		"DROP TABLE symbols",
		"  -- comment\n  UPDATE symbols SET name='x'",
	}
	for _, q := range cases {
		if _, err := s.Query(q); err == nil {
			t.Errorf("Query(%q) should have been rejected", q)
		}
	}
}

func TestReadGateAcceptsSelectAndWith(t *testing.T) {
	s := openTestStore(t)

	cases := []string{
		"SELECT 1",
		"  \n\t SELECT * FROM symbols",
		"-- leading comment\nSELECT * FROM symbols",
		"/* block */ WITH x AS (SELECT 1) SELECT * FROM x",
		"select * from symbols",
	}
	for _, q := range cases {
		if _, err := s.Query(q); err != nil {
			t.Errorf("Query(%q) unexpectedly rejected: %v", q, err)
		}
	}
}

func TestS1QueryByName(t *testing.T) {
	s := openTestStore(t)
	file := "auth.src"
	err := s.Rebuild([]SymbolRow{
		{SCIPID: "sym-auth", Name: "AuthService", Kind: "class", File: nullStr(file), Line: nullInt(10)},
	}, nil, nil)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	res, err := s.Query("SELECT name,kind,line FROM symbols WHERE name='AuthService'")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	row := res.Rows[0]
	if row["name"] != "AuthService" || row["kind"] != "class" {
		t.Errorf("unexpected row: %+v", row)
	}
}

func TestS2ReadOnlyEnforcement(t *testing.T) {
	s := openTestStore(t)
	if err := s.Rebuild([]SymbolRow{{SCIPID: "a", Name: "Foo", Kind: "class"}}, nil, nil); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	if _, err := s.Query("DELETE FROM symbols"); err == nil {
		t.Fatalf("DELETE should be rejected")
	}

	res, err := s.Query("SELECT COUNT(*) AS c FROM symbols")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got := res.Rows[0]["c"]; got != int64(1) {
		t.Errorf("count after rejected DELETE = %v, want 1", got)
	}
}

func TestS5ContainerQuery(t *testing.T) {
	s := openTestStore(t)
	err := s.Rebuild([]SymbolRow{
		{SCIPID: "sym-c", Name: "C", Kind: "class"},
		{SCIPID: "sym-m", Name: "m", Kind: "method", ContainerID: nullStr("sym-c")},
	}, nil, nil)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	res, err := s.Query("SELECT name FROM symbols WHERE container_id=(SELECT scip_id FROM symbols WHERE name='C')")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	found := false
	for _, row := range res.Rows {
		if row["name"] == "m" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected result set to include {name: m}, got %+v", res.Rows)
	}
}

func TestToTextEmptyResult(t *testing.T) {
	r := &Result{Columns: []string{"name"}, Rows: []Row{}}
	if got := r.ToText(); got != "(0 rows)" {
		t.Errorf("ToText() = %q, want %q", got, "(0 rows)")
	}
}

func TestToTextFormatsTable(t *testing.T) {
	r := &Result{Columns: []string{"name"}, Rows: []Row{{"name": "Foo"}}}
	text := r.ToText()
	if !strings.Contains(text, "| name |") || !strings.Contains(text, "(1 rows)") {
		t.Errorf("unexpected text output: %q", text)
	}
}

func TestRebuildIsAtomicReplace(t *testing.T) {
	s := openTestStore(t)
	if err := s.Rebuild([]SymbolRow{{SCIPID: "a", Name: "Foo", Kind: "class"}}, nil, nil); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if err := s.Rebuild([]SymbolRow{{SCIPID: "b", Name: "Bar", Kind: "class"}}, nil, nil); err != nil {
		t.Fatalf("second Rebuild() error = %v", err)
	}

	res, err := s.Query("SELECT name FROM symbols")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0]["name"] != "Bar" {
		t.Errorf("expected only Bar after second rebuild, got %+v", res.Rows)
	}
}
