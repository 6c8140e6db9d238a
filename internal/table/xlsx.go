package table

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

type xlsxReader struct{}

func (xlsxReader) ReadRecords(data []byte) ([][]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open xlsx: %v", ErrCorruptFile, err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrCorruptFile)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read rows from xlsx: %v", ErrCorruptFile, err)
	}

	sc := &sheetCells{file: f, sheet: sheet, styleKinds: map[int]numberKind{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		sc.date1904 = *props.Date1904
	}
	out := make([][]any, len(rows))
	for r, row := range rows {
		cells := make([]any, len(row))
		for c, raw := range row {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			value, err := sc.value(c+1, r+1, raw)
			if err != nil {
				return nil, err
			}
			cells[c] = value
		}
		out[r] = cells
	}
	return out, nil
}

// numberKind classifies a numeric cell by its number format.
type numberKind int

const (
	kindNumber numberKind = iota
	kindDate
	kindClock
)

// sheetCells converts raw cell text into typed values using cell types and number formats.
type sheetCells struct {
	file       *excelize.File
	sheet      string
	styleKinds map[int]numberKind
	date1904   bool
}

func (s *sheetCells) value(col, row int, raw string) (any, error) {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	cellType, err := s.file.GetCellType(s.sheet, axis)
	if err != nil {
		return nil, fmt.Errorf("%w: cell %s: %v", ErrCorruptFile, axis, err)
	}

	switch cellType {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeDate:
		if ts, err := ParseTimestamp(raw); err == nil {
			return ts, nil
		}
		return raw, nil
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
		return raw, nil
	}

	num, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw, nil
	}
	switch s.numberKind(axis) {
	case kindDate:
		if ts, err := excelize.ExcelDateToTime(num, s.date1904); err == nil {
			return ts, nil
		}
	case kindClock:
		return clockText(num), nil
	}
	if num == math.Trunc(num) && math.Abs(num) < 1e15 {
		return int64(num), nil
	}
	return num, nil
}

func (s *sheetCells) numberKind(axis string) numberKind {
	styleID, err := s.file.GetCellStyle(s.sheet, axis)
	if err != nil || styleID == 0 {
		return kindNumber
	}
	if cached, ok := s.styleKinds[styleID]; ok {
		return cached
	}
	kind := kindNumber
	if style, err := s.file.GetStyle(styleID); err == nil && style != nil {
		kind = classifyNumFmt(style.NumFmt, style.CustomNumFmt)
	}
	s.styleKinds[styleID] = kind
	return kind
}

var literalInFormat = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

// classifyNumFmt tells calendar formats from time-of-day and duration formats.
// Builtins 18-21 and 45-47 carry no date part.
func classifyNumFmt(numFmt int, custom *string) numberKind {
	switch {
	case numFmt >= 14 && numFmt <= 17,
		numFmt == 22,
		numFmt >= 27 && numFmt <= 36,
		numFmt >= 50 && numFmt <= 58:
		return kindDate
	case numFmt >= 18 && numFmt <= 21,
		numFmt >= 45 && numFmt <= 47:
		return kindClock
	}
	if custom == nil {
		return kindNumber
	}
	raw := strings.ToLower(*custom)
	code := literalInFormat.ReplaceAllString(raw, "")
	switch {
	case strings.ContainsAny(code, "dy") || strings.Contains(code, "mmm"):
		return kindDate
	case strings.ContainsAny(code, "hs") || strings.Contains(raw, "[h]") || strings.Contains(raw, "[m]"):
		return kindClock
	}
	return kindNumber
}

func isDateFormat(numFmt int, custom *string) bool {
	return classifyNumFmt(numFmt, custom) == kindDate
}

// clockText renders a day fraction as HH:MM:SS; durations may exceed 24 hours.
func clockText(days float64) string {
	total := int64(math.Round(math.Abs(days) * 86400))
	sign := ""
	if days < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, total/3600, total%3600/60, total%60)
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006/01/02",
	"02.01.2006",
}

// ParseTimestamp parses the date and date-time layouts accepted in text cells.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format %q", raw)
}
