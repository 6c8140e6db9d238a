package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/mapping"
)

const columnsPerGroup = 5

// chooseMapping asks for a target field per column. Preset selections win over suggestions.
func chooseMapping(columns []string, catalog domain.FieldCatalog, preset map[string]string) (map[string]string, error) {
	values := initialSelections(columns, catalog, preset)
	options := fieldOptions(catalog)

	var groups []*huh.Group
	var fields []huh.Field
	for i, column := range columns {
		fields = append(fields, huh.NewSelect[string]().
			Title(column).
			Options(options...).
			Height(8).
			Value(&values[i]))
		if len(fields) == columnsPerGroup || i == len(columns)-1 {
			groups = append(groups, huh.NewGroup(fields...))
			fields = nil
		}
	}

	var confirmed bool
	groups = append(groups, huh.NewGroup(
		huh.NewConfirm().
			Title("Start the import?").
			Affirmative("Import").
			Negative("Cancel").
			Value(&confirmed),
	))

	if err := huh.NewForm(groups...).WithTheme(huh.ThemeDracula()).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, fmt.Errorf("import cancelled")
		}
		return nil, fmt.Errorf("form error: %w", err)
	}
	if !confirmed {
		return nil, fmt.Errorf("import cancelled")
	}

	selections := make(map[string]string, len(columns))
	for i, column := range columns {
		if values[i] != mapping.Skip {
			selections[column] = values[i]
		}
	}
	return selections, nil
}

func initialSelections(columns []string, catalog domain.FieldCatalog, preset map[string]string) []string {
	suggested := mapping.Suggest(columns, catalog)
	values := make([]string, len(columns))
	for i, column := range columns {
		if fieldID, ok := preset[column]; ok {
			values[i] = fieldID
			continue
		}
		values[i] = suggested[column]
	}
	return values
}

func fieldOptions(catalog domain.FieldCatalog) []huh.Option[string] {
	options := []huh.Option[string]{huh.NewOption("(skip)", mapping.Skip)}
	for _, field := range catalog.Sorted() {
		options = append(options, huh.NewOption(fmt.Sprintf("%s [%s]", field.Label, field.ID), field.ID))
	}
	return options
}
