package table

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrUnsupportedFormat is returned when a file extension has no registered reader.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrCorruptFile is returned when a file cannot be parsed by its reader.
	ErrCorruptFile = errors.New("unreadable file")
	// ErrNoHeader is returned when a file has no non-empty row to use as header.
	ErrNoHeader = errors.New("header row could not be detected")
)

// Format identifies a tabular input encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Reader parses raw file contents into rows of cells. The first non-empty row is the header.
type Reader interface {
	ReadRecords(data []byte) ([][]any, error)
}

var readers = map[Format]Reader{
	FormatCSV:  csvReader{},
	FormatXLSX: xlsxReader{},
}

// FormatFromName resolves the input format from a file name extension.
func FormatFromName(fileName string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Table is an in-memory spreadsheet with named, ordered columns.
// Cells hold nil, string, int64, float64, bool or time.Time.
type Table struct {
	Columns []string
	Rows    [][]any
	index   map[string]int
}

// New builds a table, padding or truncating rows to the column count.
func New(columns []string, rows [][]any) *Table {
	t := &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]any, len(rows)),
		index:   make(map[string]int, len(columns)),
	}
	for i, name := range t.Columns {
		t.index[name] = i
	}
	for i, row := range rows {
		t.Rows[i] = padRow(row, len(columns))
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether name is a column of the table.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Row returns the i-th data row (0-based).
func (t *Table) Row(i int) Row {
	return Row{table: t, cells: t.Rows[i]}
}

// Head returns up to n rows for previews.
func (t *Table) Head(n int) [][]any {
	if n <= 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// Row is a read-only view of one data row.
type Row struct {
	table *Table
	cells []any
}

// Value returns the cell under column, or nil when the column is unknown or the cell empty.
func (r Row) Value(column string) any {
	idx, ok := r.table.index[column]
	if !ok || idx >= len(r.cells) {
		return nil
	}
	return r.cells[idx]
}

// Load reads the whole input and parses it with the reader registered for the file's extension.
func Load(fileName string, src io.Reader) (*Table, error) {
	format, err := FormatFromName(fileName)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return Parse(format, data)
}

// Parse parses data using the reader registered for format.
func Parse(format Format, data []byte) (*Table, error) {
	reader, ok := readers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrCorruptFile)
	}
	records, err := reader.ReadRecords(data)
	if err != nil {
		return nil, err
	}
	return normalize(records)
}

func normalize(records [][]any) (*Table, error) {
	var header []any
	var rows [][]any
	for _, record := range records {
		if isBlank(record) {
			continue
		}
		if header == nil {
			header = record
			continue
		}
		rows = append(rows, record)
	}
	if header == nil {
		return nil, ErrNoHeader
	}

	// Cells past the header get generated column names instead of being dropped.
	width := len(header)
	for _, row := range rows {
		if n := filledWidth(row); n > width {
			width = n
		}
	}
	return New(headerNames(padRow(header, width)), rows), nil
}

// filledWidth is the length of record up to its last non-empty cell.
func filledWidth(record []any) int {
	for i := len(record) - 1; i >= 0; i-- {
		if !IsEmpty(record[i]) {
			return i + 1
		}
	}
	return 0
}

// headerNames trims and NFC-normalizes header cells. Blank names become column_N and
// repeated names are disambiguated by position: the second "Phone" becomes "Phone_2".
func headerNames(raw []any) []string {
	names := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for idx, cell := range raw {
		name := norm.NFC.String(strings.TrimSpace(FormatCell(cell)))
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}
		names[idx] = uniqueName(name, seen)
	}
	return names
}

func uniqueName(name string, seen map[string]int) string {
	count := seen[name]
	seen[name] = count + 1
	if count == 0 {
		return name
	}
	candidate := fmt.Sprintf("%s_%d", name, count+1)
	for seen[candidate] > 0 {
		count++
		candidate = fmt.Sprintf("%s_%d", name, count+1)
	}
	seen[candidate] = 1
	return candidate
}

func isBlank(record []any) bool {
	for _, cell := range record {
		if !IsEmpty(cell) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether a cell carries no value.
func IsEmpty(cell any) bool {
	switch v := cell.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func padRow(row []any, length int) []any {
	padded := make([]any, length)
	copy(padded, row)
	return padded
}
