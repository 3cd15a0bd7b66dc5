package sheet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kozaktomas/attendx/internal/attendance"
)

var day = time.Date(2025, 3, 14, 0, 0, 0, 0, time.Local)

func openBook(t *testing.T) *Book {
	t.Helper()
	b, err := Open(filepath.Join(t.TempDir(), "attendance sheets"), day)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return b
}

func TestOpen(t *testing.T) {
	b := openBook(t)
	if filepath.Base(b.Path()) != "attendance_2025-03-14.xlsx" {
		t.Errorf("unexpected path %s", b.Path())
	}
	if _, err := os.Stat(filepath.Dir(b.Path())); err != nil {
		t.Errorf("directory should be created: %v", err)
	}
}

func TestEnsureSheet(t *testing.T) {
	b := openBook(t)

	res, err := b.EnsureSheet("Math")
	if err != nil {
		t.Fatalf("EnsureSheet failed: %v", err)
	}
	if res != FileCreated {
		t.Errorf("first call = %v; want FileCreated", res)
	}

	res, err = b.EnsureSheet("Physics")
	if err != nil || res != SheetAdded {
		t.Errorf("second subject = (%v, %v); want SheetAdded", res, err)
	}

	res, err = b.EnsureSheet("Math")
	if err != nil || res != SheetExists {
		t.Errorf("existing subject = (%v, %v); want SheetExists", res, err)
	}

	sheets, err := b.Sheets()
	if err != nil {
		t.Fatalf("Sheets failed: %v", err)
	}
	if len(sheets) != 2 || sheets[0] != "Math" || sheets[1] != "Physics" {
		t.Errorf("sheets = %v; want [Math Physics]", sheets)
	}

	f, err := excelize.OpenFile(b.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("Physics")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0][0] != "Name" || rows[0][1] != "Time" {
		t.Errorf("header missing: %v", rows)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	b := openBook(t)
	entries := []attendance.Entry{
		{Name: "zoe", At: time.Date(2025, 3, 14, 9, 0, 1, 999_000_000, time.Local)},
		{Name: "adam", At: time.Date(2025, 3, 14, 9, 5, 0, 0, time.Local)},
	}

	if err := b.Save("Math", entries); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := b.Load("Math")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != len(entries) {
		t.Fatalf("loaded %d entries; want %d", len(loaded), len(entries))
	}
	for i, e := range entries {
		if loaded[i].Name != e.Name {
			t.Errorf("entry %d name = %q; want %q", i, loaded[i].Name, e.Name)
		}
		if want := e.At.Truncate(time.Second); !loaded[i].At.Equal(want) {
			t.Errorf("entry %d time = %v; want %v", i, loaded[i].At, want)
		}
	}
}

func TestSaveOverwritesSheet(t *testing.T) {
	b := openBook(t)
	first := []attendance.Entry{
		{Name: "a", At: day.Add(time.Hour)},
		{Name: "b", At: day.Add(time.Hour)},
		{Name: "c", At: day.Add(time.Hour)},
	}
	if err := b.Save("Math", first); err != nil {
		t.Fatal(err)
	}
	second := []attendance.Entry{{Name: "a", At: day.Add(3 * time.Hour)}}
	if err := b.Save("Math", second); err != nil {
		t.Fatal(err)
	}

	loaded, err := b.Load("Math")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || !loaded[0].At.Equal(day.Add(3*time.Hour)) {
		t.Errorf("sheet should hold only the latest record, got %v", loaded)
	}
}

func TestSavePreservesOtherSheets(t *testing.T) {
	b := openBook(t)
	if err := b.Save("Math", []attendance.Entry{{Name: "alice", At: day.Add(time.Hour)}}); err != nil {
		t.Fatal(err)
	}
	if err := b.Save("Physics", []attendance.Entry{{Name: "bob", At: day.Add(2 * time.Hour)}}); err != nil {
		t.Fatal(err)
	}

	math, err := b.Load("Math")
	if err != nil || len(math) != 1 || math[0].Name != "alice" {
		t.Errorf("Math sheet changed: %v, %v", math, err)
	}
	physics, err := b.Load("Physics")
	if err != nil || len(physics) != 1 || physics[0].Name != "bob" {
		t.Errorf("Physics sheet wrong: %v, %v", physics, err)
	}
}

func TestLoad_Missing(t *testing.T) {
	b := openBook(t)
	entries, err := b.Load("Math")
	if err != nil || entries != nil {
		t.Errorf("missing workbook = (%v, %v); want (nil, nil)", entries, err)
	}

	if _, err := b.EnsureSheet("Physics"); err != nil {
		t.Fatal(err)
	}
	entries, err = b.Load("Math")
	if err != nil || entries != nil {
		t.Errorf("missing sheet = (%v, %v); want (nil, nil)", entries, err)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	b := openBook(t)
	if err := os.WriteFile(b.Path(), []byte("definitely not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	entries, err := b.Load("Math")
	if err == nil {
		t.Error("expected error for corrupt workbook")
	}
	if len(entries) != 0 {
		t.Errorf("corrupt workbook should yield no entries, got %v", entries)
	}
}

func TestLoad_SkipsBadRows(t *testing.T) {
	b := openBook(t)
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Math"); err != nil {
		t.Fatal(err)
	}
	rows := [][]any{
		{"Name", "Time"},
		{"alice", "2025-03-14 09:00:00"},
		{"bob", "yesterday"},
		{"", "2025-03-14 09:00:00"},
		{"carol"},
		{"dave", "2025-03-14 10:30:15"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Math", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(b.Path()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	entries, err := b.Load("Math")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "alice" || entries[1].Name != "dave" {
		t.Errorf("expected alice and dave, got %v", entries)
	}
}

func TestEnsureSheet_InsertsMissingHeader(t *testing.T) {
	b := openBook(t)
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Math"); err != nil {
		t.Fatal(err)
	}
	row := []any{"alice", "2025-03-14 09:00:00"}
	if err := f.SetSheetRow("Math", "A1", &row); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(b.Path()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := b.EnsureSheet("Math"); err != nil {
		t.Fatal(err)
	}
	entries, err := b.Load("Math")
	if err != nil || len(entries) != 1 || entries[0].Name != "alice" {
		t.Errorf("existing row should survive header insertion, got %v, %v", entries, err)
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Math", "Math"},
		{"  Data Structures  ", "Data Structures"},
		{"CS/IT: Lab [A]?", "CS_IT_ Lab _A__"},
		{"'quoted'", "quoted"},
		{"", "Attendance"},
		{strings.Repeat("x", 40), strings.Repeat("x", 31)},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := SheetName(tc.input); got != tc.expected {
				t.Errorf("SheetName(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}
