package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

const (
	// Defaults for TruncateTableForPrompt when the caller passes zero.
	DefaultPromptRows  = 50
	DefaultPromptChars = 8000
	// DefaultPreviewRows is how many rows the table preview shows.
	DefaultPreviewRows = 15

	truncatedMarker = "\n... [truncated]"
)

var (
	ErrUnsupportedTable = errors.New("unsupported table format, use .csv, .xls or .xlsx")
	ErrEmptyTable       = errors.New("table has no header row")
	ErrUnknownColumn    = errors.New("unknown column")
)

// FileReadError wraps any failure to turn an upload into a Table.
type FileReadError struct {
	Err error
}

func (e *FileReadError) Error() string {
	return "failed to read table: " + e.Err.Error()
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}

// Table is a parsed spreadsheet: a header row and string cells. Every row
// has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// TableInput is an uploaded CSV or Excel file.
type TableInput struct {
	Data     []byte
	FileName string
}

// ReadTable parses r according to the extension of filename.
func ReadTable(r io.Reader, filename string) (*Table, error) {
	var (
		records [][]string
		err     error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	case ".xls":
		records, err = readXLS(r)
	default:
		return nil, &FileReadError{Err: ErrUnsupportedTable}
	}
	if err != nil {
		return nil, &FileReadError{Err: err}
	}

	t, err := newTable(records)
	if err != nil {
		return nil, &FileReadError{Err: err}
	}
	return t, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	return f.GetRows(sheets[0])
}

func readXLS(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptyTable
	}
	// ReadAllCells walks every sheet; capping it at the first sheet's row
	// count keeps the other sheets out.
	return wb.ReadAllCells(int(sheet.MaxRow) + 1), nil
}

func newTable(records [][]string) (*Table, error) {
	// skip leading blank lines
	for len(records) > 0 && isBlankRow(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}

	header := records[0]
	width := len(header)
	for _, rec := range records[1:] {
		if len(rec) > width {
			width = len(rec)
		}
	}

	t := &Table{Columns: make([]string, width)}
	used := make(map[string]bool, width)
	for i := range t.Columns {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		// repeated headers become name.1, name.2, ...
		if used[name] {
			base := name
			for k := 1; used[name]; k++ {
				name = base + "." + strconv.Itoa(k)
			}
		}
		used[name] = true
		t.Columns[i] = name
	}

	for _, rec := range records[1:] {
		if isBlankRow(rec) {
			continue
		}
		row := make([]string, width)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func isBlankRow(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// parseCell parses a numeric cell. Blank cells and NaN or infinite values
// count as missing.
func parseCell(cell string) (float64, bool, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}

// NumericColumns lists the columns whose non-empty cells all parse as
// numbers. Columns without a single finite value are not numeric.
func (t *Table) NumericColumns() []string {
	var cols []string
	for i, name := range t.Columns {
		seen := false
		numeric := true
		for _, row := range t.Rows {
			_, ok, err := parseCell(row[i])
			if err != nil {
				numeric = false
				break
			}
			seen = seen || ok
		}
		if seen && numeric {
			cols = append(cols, name)
		}
	}
	return cols
}

// Head returns a table with at most n rows. Rows are shared, not copied.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// Select projects the table onto cols, in the given order.
func (t *Table) Select(cols []string) (*Table, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j := t.ColumnIndex(c)
		if j < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
		idx[i] = j
	}

	out := &Table{Columns: append([]string(nil), cols...), Rows: make([][]string, len(t.Rows))}
	for r, row := range t.Rows {
		sel := make([]string, len(idx))
		for i, j := range idx {
			sel[i] = row[j]
		}
		out.Rows[r] = sel
	}
	return out, nil
}

// Floats parses every cell of col. Empty cells and non-finite values are
// reported as missing.
func (t *Table) Floats(col string) (values []float64, present []bool, err error) {
	j := t.ColumnIndex(col)
	if j < 0 {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
	}

	values = make([]float64, len(t.Rows))
	present = make([]bool, len(t.Rows))
	for i, row := range t.Rows {
		v, ok, err := parseCell(row[j])
		if err != nil {
			return nil, nil, fmt.Errorf("column %q row %d: %w", col, i+1, err)
		}
		values[i] = v
		present[i] = ok
	}
	return values, present, nil
}

// CSV renders the table with a header row.
func (t *Table) CSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return "", err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Preview returns the first n rows for display.
func Preview(t *Table, n int) *Table {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	return t.Head(n)
}

// TruncateTableForPrompt renders the numeric columns of t (all columns when
// none are numeric) as CSV. The result holds at most maxRows data rows and at
// most maxChars characters, truncation marker included. Zero limits select
// DefaultPromptRows and DefaultPromptChars.
func TruncateTableForPrompt(t *Table, maxRows, maxChars int) (string, error) {
	if maxRows <= 0 {
		maxRows = DefaultPromptRows
	}
	if maxChars <= 0 {
		maxChars = DefaultPromptChars
	}

	sample := t
	if cols := t.NumericColumns(); len(cols) > 0 {
		var err error
		if sample, err = t.Select(cols); err != nil {
			return "", err
		}
	}

	text, err := sample.Head(maxRows).CSV()
	if err != nil {
		return "", fmt.Errorf("failed to render table sample: %w", err)
	}
	return truncateChars(text, maxChars), nil
}

func truncateChars(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}

	runes := []rune(s)
	keep := maxChars - utf8.RuneCountInString(truncatedMarker)
	if keep < 0 {
		return string(runes[:maxChars])
	}
	return string(runes[:keep]) + truncatedMarker
}
