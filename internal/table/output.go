package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/crmimport/internal/domain"
	"github.com/xuri/excelize/v2"
)

// RemoteIDColumn is the trailing column appended to the annotated output table.
const RemoteIDColumn = "REMOTE_ID"

// OutputSheet is the sheet name of the annotated workbook.
const OutputSheet = "imported"

// LogColumns is the header of the import log.
var LogColumns = []string{"row", "result", "remote_id", "payload"}

// FormatCell renders a cell as text. Midnight timestamps render as a calendar date.
func FormatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(v)
	}
}

// Annotate returns a copy of t with a trailing REMOTE_ID column holding remoteIDs
// in row order; blank identifiers become empty cells.
func Annotate(t *Table, remoteIDs []string) (*Table, error) {
	if len(remoteIDs) != t.Len() {
		return nil, fmt.Errorf("expected %d remote ids, got %d", t.Len(), len(remoteIDs))
	}

	seen := make(map[string]int, len(t.Columns)+1)
	for _, name := range t.Columns {
		seen[name]++
	}
	columns := append(append([]string(nil), t.Columns...), uniqueName(RemoteIDColumn, seen))

	rows := make([][]any, t.Len())
	for i, row := range t.Rows {
		out := make([]any, 0, len(row)+1)
		out = append(out, row...)
		if remoteIDs[i] != "" {
			out = append(out, remoteIDs[i])
		} else {
			out = append(out, nil)
		}
		rows[i] = out
	}
	return New(columns, rows), nil
}

// WriteXLSX writes t as a single-sheet workbook.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), OutputSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(t.Columns))
	for i, name := range t.Columns {
		header[i] = name
	}
	if err := f.SetSheetRow(OutputSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range t.Rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		cells := make([]any, len(row))
		copy(cells, row)
		if err := f.SetSheetRow(OutputSheet, axis, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteCSV writes t as comma separated text.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = FormatCell(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Write encodes t in the given format.
func Write(w io.Writer, format Format, t *Table) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// LogRecord renders one outcome as a log line.
func LogRecord(outcome domain.ImportOutcome) ([]string, error) {
	payload, err := PayloadText(outcome.Payload)
	if err != nil {
		return nil, err
	}
	return []string{
		strconv.Itoa(outcome.RowIndex),
		outcome.ResultText(),
		outcome.RemoteID,
		payload,
	}, nil
}

// PayloadText encodes a payload as compact JSON without HTML escaping.
func PayloadText(payload domain.RecordPayload) (string, error) {
	if payload == nil {
		payload = domain.RecordPayload{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// WriteLog writes the full import log as CSV.
func WriteLog(w io.Writer, outcomes []domain.ImportOutcome) error {
	lw, err := NewLogWriter(w)
	if err != nil {
		return err
	}
	for _, outcome := range outcomes {
		if err := lw.Append(outcome); err != nil {
			return err
		}
	}
	return nil
}

// LogWriter appends outcomes to a CSV log, flushing after every row so an
// interrupted run keeps everything written so far.
type LogWriter struct {
	mu     sync.Mutex
	writer *csv.Writer
}

// NewLogWriter writes the log header and returns a writer ready for rows.
func NewLogWriter(w io.Writer) (*LogWriter, error) {
	lw := &LogWriter{writer: csv.NewWriter(w)}
	if err := lw.writeRecord(LogColumns); err != nil {
		return nil, fmt.Errorf("failed to write log header: %w", err)
	}
	return lw, nil
}

// Append writes one outcome.
func (l *LogWriter) Append(outcome domain.ImportOutcome) error {
	record, err := LogRecord(outcome)
	if err != nil {
		return err
	}
	return l.writeRecord(record)
}

// RecordOutcome lets the log writer act as a per-row recorder for an import run.
func (l *LogWriter) RecordOutcome(_ context.Context, _ uuid.UUID, outcome domain.ImportOutcome) error {
	return l.Append(outcome)
}

func (l *LogWriter) writeRecord(record []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Write(record); err != nil {
		return err
	}
	l.writer.Flush()
	return l.writer.Error()
}
