package mapping

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rpattn/crmimport/internal/domain"
)

// Skip is the selection that leaves a column out of the import.
const Skip = ""

var (
	// ErrUnknownColumn is returned when a selection names a column that is not in the table.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnknownField is returned when a selection names a field outside the catalog.
	ErrUnknownField = errors.New("unknown field")
	// ErrDuplicateTarget is returned when two columns select the same single-valued field.
	ErrDuplicateTarget = errors.New("field selected by more than one column")
	// ErrEmptyMapping is returned when no column is selected.
	ErrEmptyMapping = errors.New("define at least one mapping")
)

// Build binds columns to catalog fields from the per-column selections, keeping table column
// order. Columns without a selection, or with Skip, are left out. Required fields are not
// checked here; the CRM reports them per row on create.
func Build(columns []string, catalog domain.FieldCatalog, selections map[string]string) (domain.ColumnMapping, error) {
	known := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		known[column] = struct{}{}
	}
	for column := range selections {
		if _, ok := known[column]; !ok {
			return domain.ColumnMapping{}, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
	}

	var mapping domain.ColumnMapping
	targets := make(map[string]string)
	for _, column := range columns {
		fieldID := strings.TrimSpace(selections[column])
		if fieldID == Skip {
			continue
		}
		descriptor, ok := catalog[fieldID]
		if !ok {
			return domain.ColumnMapping{}, fmt.Errorf("%w: %q for column %q", ErrUnknownField, fieldID, column)
		}
		if previous, taken := targets[fieldID]; taken && !domain.IsMultiValue(fieldID) {
			return domain.ColumnMapping{}, fmt.Errorf("%w: %s (columns %q and %q)", ErrDuplicateTarget, fieldID, previous, column)
		}
		targets[fieldID] = column
		mapping.Bindings = append(mapping.Bindings, domain.ColumnBinding{Column: column, Field: descriptor})
	}

	if mapping.Len() == 0 {
		return domain.ColumnMapping{}, ErrEmptyMapping
	}
	return mapping, nil
}

// ParseSpecs parses "Column=FIELD" pairs. The last "=" separates the field so column
// names may contain "=". A column listed twice keeps its last selection.
func ParseSpecs(specs []string) (map[string]string, error) {
	selections := make(map[string]string, len(specs))
	for _, spec := range specs {
		idx := strings.LastIndex(spec, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid mapping %q: expected Column=FIELD", spec)
		}
		column := strings.TrimSpace(spec[:idx])
		fieldID := strings.ToUpper(strings.TrimSpace(spec[idx+1:]))
		if column == "" {
			return nil, fmt.Errorf("invalid mapping %q: empty column", spec)
		}
		selections[column] = fieldID
	}
	return selections, nil
}

// Suggest preselects fields whose identifier or label equals a column name, ignoring case.
// Scalar fields are suggested for at most one column.
func Suggest(columns []string, catalog domain.FieldCatalog) map[string]string {
	lookup := make(map[string]string, len(catalog)*2)
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, key := range []string{strings.ToLower(id), strings.ToLower(catalog[id].Label)} {
			if _, exists := lookup[key]; !exists {
				lookup[key] = id
			}
		}
	}

	suggested := make(map[string]string)
	used := make(map[string]bool)
	for _, column := range columns {
		id, ok := lookup[strings.ToLower(strings.TrimSpace(column))]
		if !ok || (used[id] && !domain.IsMultiValue(id)) {
			continue
		}
		used[id] = true
		suggested[column] = id
	}
	return suggested
}
