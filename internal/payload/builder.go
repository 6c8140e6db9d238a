// Package payload turns spreadsheet rows into CRM record payloads.
package payload

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/table"
)

const isoDate = "2006-01-02"

// Row gives access to the raw cells of one source row by column name.
type Row interface {
	Value(column string) any
}

// Build converts row into a record payload following mapping. Empty cells produce no key.
// Temporal cells become ISO calendar dates. Columns bound to EMAIL or PHONE are collected
// into deduplicated {VALUE, VALUE_TYPE} lists in first-seen order.
func Build(row Row, mapping domain.ColumnMapping) (domain.RecordPayload, error) {
	out := domain.RecordPayload{}
	pending := map[string][]domain.MultiValue{}
	var multiOrder []string

	for _, binding := range mapping.Bindings {
		value, ok, err := coerce(binding.Field, row.Value(binding.Column))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", binding.Column, err)
		}
		if !ok {
			continue
		}

		fieldID := binding.Field.ID
		if domain.IsMultiValue(fieldID) {
			if _, seen := pending[fieldID]; !seen {
				multiOrder = append(multiOrder, fieldID)
			}
			pending[fieldID] = append(pending[fieldID], domain.MultiValue{
				Value:     table.FormatCell(value),
				ValueType: domain.DefaultValueType,
			})
			continue
		}
		out[fieldID] = value
	}

	for _, fieldID := range multiOrder {
		if entries := Dedupe(pending[fieldID]); len(entries) > 0 {
			out[fieldID] = entries
		}
	}
	return out, nil
}

// Dedupe trims values, drops blank ones and removes repeated (VALUE_TYPE, VALUE) pairs,
// keeping the first occurrence.
func Dedupe(entries []domain.MultiValue) []domain.MultiValue {
	type key struct{ valueType, value string }
	seen := make(map[key]struct{}, len(entries))
	cleaned := make([]domain.MultiValue, 0, len(entries))
	for _, entry := range entries {
		value := strings.TrimSpace(entry.Value)
		if value == "" {
			continue
		}
		valueType := entry.ValueType
		if valueType == "" {
			valueType = domain.DefaultValueType
		}
		k := key{valueType, value}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		cleaned = append(cleaned, domain.MultiValue{Value: value, ValueType: valueType})
	}
	return cleaned
}

// coerce returns the payload value for a raw cell; ok is false when the cell is empty.
func coerce(field domain.FieldDescriptor, raw any) (any, bool, error) {
	switch v := raw.(type) {
	case nil:
		return nil, false, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, false, nil
		}
		if field.Kind == domain.FieldKindDate {
			if ts, err := table.ParseTimestamp(v); err == nil {
				return ts.Format(isoDate), true, nil
			}
		}
		return v, true, nil
	case time.Time:
		if v.IsZero() {
			return nil, false, nil
		}
		return v.Format(isoDate), true, nil
	case float64:
		if math.IsNaN(v) {
			return nil, false, nil
		}
		if math.IsInf(v, 0) {
			return nil, false, fmt.Errorf("infinite number cannot be sent")
		}
		return v, true, nil
	case int64, int, bool:
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported cell type %T", raw)
	}
}
