package domain

// ColumnBinding binds one source column to a target field.
type ColumnBinding struct {
	Column string          `json:"column"`
	Field  FieldDescriptor `json:"field"`
}

// ColumnMapping is the ordered set of column bindings chosen for an import.
// A column appears at most once; EMAIL and PHONE may be targeted by several columns.
type ColumnMapping struct {
	Bindings []ColumnBinding `json:"bindings"`
}

// Len returns the number of mapped columns.
func (m ColumnMapping) Len() int {
	return len(m.Bindings)
}

// FieldFor returns the field bound to column.
func (m ColumnMapping) FieldFor(column string) (FieldDescriptor, bool) {
	for _, binding := range m.Bindings {
		if binding.Column == column {
			return binding.Field, true
		}
	}
	return FieldDescriptor{}, false
}
