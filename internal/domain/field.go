package domain

import (
	"sort"
	"strings"
)

// FieldKind represents the type tag of a CRM field.
type FieldKind string

const (
	FieldKindString      FieldKind = "string"
	FieldKindInteger     FieldKind = "integer"
	FieldKindDouble      FieldKind = "double"
	FieldKindBoolean     FieldKind = "boolean"
	FieldKindEnumeration FieldKind = "enumeration"
	FieldKindDate        FieldKind = "date"
	FieldKindDatetime    FieldKind = "datetime"
	FieldKindMultifield  FieldKind = "crm_multifield"
)

// Identity fields. Both are multi-valued and used for duplicate lookup.
const (
	FieldEmail = "EMAIL"
	FieldPhone = "PHONE"
)

// DefaultValueType is the VALUE_TYPE attached to every multi-value entry built from a cell.
const DefaultValueType = "WORK"

var importableKinds = map[FieldKind]struct{}{
	FieldKindString:      {},
	FieldKindInteger:     {},
	FieldKindDouble:      {},
	FieldKindBoolean:     {},
	FieldKindEnumeration: {},
	FieldKindDate:        {},
	FieldKindDatetime:    {},
	FieldKindMultifield:  {},
}

// Importable reports whether values of this kind can be written by an import.
func (k FieldKind) Importable() bool {
	_, ok := importableKinds[k]
	return ok
}

// FieldDescriptor describes a writable CRM field as fetched from the remote catalog.
type FieldDescriptor struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Writable bool      `json:"writable"`
	Required bool      `json:"required"`
}

// IsMultiValue reports whether the identifier is one of the fixed multi-valued fields.
func IsMultiValue(fieldID string) bool {
	return fieldID == FieldEmail || fieldID == FieldPhone
}

// IsCustomField reports whether the identifier belongs to a user-defined field.
func IsCustomField(fieldID string) bool {
	return strings.HasPrefix(strings.ToUpper(fieldID), "UF_CRM")
}

// FieldCatalog is the set of importable fields keyed by identifier.
type FieldCatalog map[string]FieldDescriptor

// Sorted returns the descriptors ordered by case-insensitive label, then identifier.
func (c FieldCatalog) Sorted() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(c))
	for _, field := range c {
		out = append(out, field)
	}
	sortDescriptors(out)
	return out
}

func sortDescriptors(fields []FieldDescriptor) {
	sort.SliceStable(fields, func(i, j int) bool {
		li, lj := strings.ToLower(fields[i].Label), strings.ToLower(fields[j].Label)
		if li != lj {
			return li < lj
		}
		return fields[i].ID < fields[j].ID
	})
}
