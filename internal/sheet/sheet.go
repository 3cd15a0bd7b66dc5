// Package sheet stores attendance in per-day xlsx workbooks with one sheet
// per subject.
package sheet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/kozaktomas/attendx/internal/attendance"
	"github.com/kozaktomas/attendx/internal/constants"
)

const (
	maxSheetNameLen  = 31
	defaultSheetName = "Attendance"
)

// EnsureResult tells what EnsureSheet had to do.
type EnsureResult int

const (
	SheetExists EnsureResult = iota
	SheetAdded
	FileCreated
)

// Book is the workbook of a single day.
type Book struct {
	path string
}

// FileName returns the workbook file name for date.
func FileName(date time.Time) string {
	return constants.SheetFilePrefix + date.Format(constants.DateLayout) + ".xlsx"
}

// Open returns the book for date inside dir, creating dir when needed.
// The workbook file itself is created lazily by EnsureSheet or Save.
func Open(dir string, date time.Time) (*Book, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attendance directory: %w", err)
	}
	return &Book{path: filepath.Join(dir, FileName(date))}, nil
}

// Path returns the workbook path.
func (b *Book) Path() string {
	return b.path
}

// SheetName converts a subject to a valid worksheet name: at most 31
// characters and none of : \ / ? * [ ].
func SheetName(subject string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(subject))
	name = strings.Trim(name, "'")
	if utf8.RuneCountInString(name) > maxSheetNameLen {
		name = string([]rune(name)[:maxSheetNameLen])
	}
	if name == "" {
		return defaultSheetName
	}
	return name
}

// EnsureSheet makes sure the workbook exists and has a sheet for subject
// starting with the Name/Time header.
func (b *Book) EnsureSheet(subject string) (EnsureResult, error) {
	f, result, err := b.open(subject)
	if err != nil {
		return result, err
	}
	defer f.Close()

	if err := f.SaveAs(b.path); err != nil {
		return result, fmt.Errorf("failed to save workbook %s: %w", b.path, err)
	}
	return result, nil
}

// Load reads the subject's rows. Rows without a name or with an unparsable
// time are skipped. A missing workbook or sheet yields no entries and no
// error; an unreadable workbook is returned as an error so the caller can
// report it and continue with an empty record.
func (b *Book) Load(subject string) ([]attendance.Entry, error) {
	f, err := excelize.OpenFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", b.path, err)
	}
	defer f.Close()

	name := SheetName(subject)
	idx, err := f.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil, nil
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}

	var entries []attendance.Entry
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		at, err := time.ParseInLocation(constants.TimeLayout, strings.TrimSpace(row[1]), time.Local)
		if err != nil {
			continue
		}
		entries = append(entries, attendance.Entry{Name: strings.TrimSpace(row[0]), At: at})
	}
	return entries, nil
}

// Save replaces the subject's sheet with the header followed by entries.
// Other sheets are left untouched.
func (b *Book) Save(subject string, entries []attendance.Entry) error {
	f, _, err := b.open(subject)
	if err != nil {
		return err
	}
	defer f.Close()

	name := SheetName(subject)
	if err := clearSheet(f, name); err != nil {
		return err
	}
	if err := writeHeader(f, name); err != nil {
		return err
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to resolve cell: %w", err)
		}
		row := []any{e.Name, e.At.Format(constants.TimeLayout)}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", e.Name, err)
		}
	}

	if err := f.SaveAs(b.path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", b.path, err)
	}
	return nil
}

// Sheets lists the worksheet names of the workbook.
func (b *Book) Sheets() ([]string, error) {
	f, err := excelize.OpenFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", b.path, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// open opens the workbook, or creates it with the subject as its only
// sheet, and guarantees the subject sheet carries the header.
func (b *Book) open(subject string) (*excelize.File, EnsureResult, error) {
	name := SheetName(subject)

	f, err := excelize.OpenFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		f = excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
			f.Close()
			return nil, FileCreated, fmt.Errorf("failed to name sheet %q: %w", name, err)
		}
		if err := writeHeader(f, name); err != nil {
			f.Close()
			return nil, FileCreated, err
		}
		return f, FileCreated, nil
	}
	if err != nil {
		return nil, SheetExists, fmt.Errorf("failed to open workbook %s: %w", b.path, err)
	}

	result := SheetExists
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		f.Close()
		return nil, result, fmt.Errorf("failed to look up sheet %q: %w", name, err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, result, fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
		result = SheetAdded
	}

	rows, err := f.GetRows(name)
	if err != nil {
		f.Close()
		return nil, result, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}
	if len(rows) > 0 && !isHeader(rows[0]) {
		if err := f.InsertRows(name, 1, 1); err != nil {
			f.Close()
			return nil, result, fmt.Errorf("failed to insert header into %q: %w", name, err)
		}
	}
	if err := writeHeader(f, name); err != nil {
		f.Close()
		return nil, result, err
	}
	return f, result, nil
}

func writeHeader(f *excelize.File, sheet string) error {
	header := []any{constants.HeaderName, constants.HeaderTime}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header to %q: %w", sheet, err)
	}
	return nil
}

func clearSheet(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	for i := len(rows); i >= 1; i-- {
		if err := f.RemoveRow(sheet, i); err != nil {
			return fmt.Errorf("failed to clear sheet %q: %w", sheet, err)
		}
	}
	return nil
}

func isHeader(row []string) bool {
	return len(row) >= 2 &&
		strings.EqualFold(strings.TrimSpace(row[0]), constants.HeaderName) &&
		strings.EqualFold(strings.TrimSpace(row[1]), constants.HeaderTime)
}
