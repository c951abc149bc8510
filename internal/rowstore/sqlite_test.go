package rowstore

import (
	"errors"
	"reflect"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBooks(t *testing.T, s *SQLiteStore) {
	t.Helper()
	err := s.SeedSheet("books", [][]string{
		{"参考書ID", "参考書名", "科目"},
		{"gmb001", "青チャート IA", "数学"},
		{"", "", ""},
		{"gmb002", "速読英単語", "英語"},
	})
	if err != nil {
		t.Fatalf("seeding: %v", err)
	}
}

func TestValuesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedBooks(t, s)

	rows, err := s.Values("books")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	if rows[1][1] != "青チャート IA" {
		t.Fatalf("rows[1][1] = %q", rows[1][1])
	}
}

func TestValuesUnknownSheet(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Values("nope")
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("err = %v, want ErrSheetNotFound", err)
	}
}

func TestSeedSheetReplaces(t *testing.T) {
	s := newTestStore(t)
	seedBooks(t, s)
	if err := s.SeedSheet("books", [][]string{{"only"}}); err != nil {
		t.Fatalf("reseeding: %v", err)
	}
	rows, err := s.Values("books")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "only" {
		t.Fatalf("unexpected rows after reseed: %v", rows)
	}
}

func TestUpdateCell(t *testing.T) {
	s := newTestStore(t)
	seedBooks(t, s)

	if err := s.UpdateCell("books", 2, 1, "白チャート IA"); err != nil {
		t.Fatalf("UpdateCell: %v", err)
	}
	rows, _ := s.Values("books")
	if rows[1][1] != "白チャート IA" {
		t.Fatalf("cell = %q after update", rows[1][1])
	}
}

func TestUpdateCellExtendsRow(t *testing.T) {
	s := newTestStore(t)
	seedBooks(t, s)

	if err := s.UpdateCell("books", 2, 5, "extra"); err != nil {
		t.Fatalf("UpdateCell: %v", err)
	}
	rows, _ := s.Values("books")
	got := rows[1]
	want := []string{"gmb001", "青チャート IA", "数学", "", "", "extra"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("row = %v, want %v", got, want)
	}
}

func TestUpdateCellMissingRow(t *testing.T) {
	s := newTestStore(t)
	seedBooks(t, s)
	err := s.UpdateCell("books", 99, 0, "x")
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("err = %v, want ErrSheetNotFound", err)
	}
}

func TestBatchUpdate(t *testing.T) {
	s := newTestStore(t)
	seedBooks(t, s)

	err := s.BatchUpdate("books", []CellUpdate{
		{Row: 2, Col: 2, Value: "数学IA"},
		{Row: 4, Col: 2, Value: "英語長文"},
	})
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}
	rows, _ := s.Values("books")
	if rows[1][2] != "数学IA" || rows[3][2] != "英語長文" {
		t.Fatalf("unexpected cells: %v / %v", rows[1], rows[3])
	}
}

func TestAppendRows(t *testing.T) {
	s := newTestStore(t)
	seedBooks(t, s)

	err := s.AppendRows("books", [][]string{
		{"gmb003", "物理のエッセンス", "物理"},
	})
	if err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	rows, _ := s.Values("books")
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	if rows[4][0] != "gmb003" {
		t.Fatalf("appended row = %v", rows[4])
	}
}

func TestAppendRowsNewSheet(t *testing.T) {
	s := newTestStore(t)
	if err := s.AppendRows("fresh", [][]string{{"a"}, {"b"}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	rows, err := s.Values("fresh")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "a" || rows[1][0] != "b" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestDeleteRowsShifts(t *testing.T) {
	s := newTestStore(t)
	seedBooks(t, s)

	// Remove the blank spacer row; the remaining rows shift up.
	if err := s.DeleteRows("books", 3, 1); err != nil {
		t.Fatalf("DeleteRows: %v", err)
	}
	rows, _ := s.Values("books")
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[2][0] != "gmb002" {
		t.Fatalf("rows[2] = %v, want gmb002 row", rows[2])
	}
}

func TestDeleteRowsBlock(t *testing.T) {
	s := newTestStore(t)
	if err := s.SeedSheet("x", [][]string{{"1"}, {"2"}, {"3"}, {"4"}, {"5"}}); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	if err := s.DeleteRows("x", 2, 2); err != nil {
		t.Fatalf("DeleteRows: %v", err)
	}
	rows, _ := s.Values("x")
	want := [][]string{{"1"}, {"4"}, {"5"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestDeleteRowsMissing(t *testing.T) {
	s := newTestStore(t)
	seedBooks(t, s)
	err := s.DeleteRows("books", 50, 2)
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("err = %v, want ErrSheetNotFound", err)
	}
}

func TestAppliedMigrations(t *testing.T) {
	s := newTestStore(t)
	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Fatalf("versions = %v, want [1 ...]", versions)
	}
}
