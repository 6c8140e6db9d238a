package mapping

import (
	"errors"
	"testing"

	"github.com/rpattn/crmimport/internal/domain"
)

func testCatalog() domain.FieldCatalog {
	return domain.FieldCatalog{
		"NAME":      {ID: "NAME", Label: "Name", Kind: domain.FieldKindString, Writable: true},
		"LAST_NAME": {ID: "LAST_NAME", Label: "Last name", Kind: domain.FieldKindString, Writable: true},
		"EMAIL":     {ID: "EMAIL", Label: "E-mail", Kind: domain.FieldKindMultifield, Writable: true},
		"PHONE":     {ID: "PHONE", Label: "Phone", Kind: domain.FieldKindMultifield, Writable: true},
	}
}

func TestBuildKeepsColumnOrderAndSkips(t *testing.T) {
	columns := []string{"Name", "Notes", "Work mail", "Home mail"}
	selections := map[string]string{
		"Home mail": "EMAIL",
		"Name":      "NAME",
		"Notes":     Skip,
		"Work mail": "EMAIL",
	}

	mapping, err := Build(columns, testCatalog(), selections)
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	if mapping.Len() != 3 {
		t.Fatalf("expected 3 bindings, got %d", mapping.Len())
	}
	order := []string{"Name", "Work mail", "Home mail"}
	for i, binding := range mapping.Bindings {
		if binding.Column != order[i] {
			t.Fatalf("binding %d: expected column %s, got %s", i, order[i], binding.Column)
		}
	}
	if field, ok := mapping.FieldFor("Work mail"); !ok || field.ID != "EMAIL" {
		t.Fatalf("expected Work mail bound to EMAIL, got %+v", field)
	}
	if _, ok := mapping.FieldFor("Notes"); ok {
		t.Fatalf("expected skipped column to be unbound")
	}
}

func TestBuildRejectsInvalidSelections(t *testing.T) {
	columns := []string{"Name", "Surname"}

	cases := []struct {
		name       string
		selections map[string]string
		want       error
	}{
		{"unknown column", map[string]string{"Nope": "NAME"}, ErrUnknownColumn},
		{"unknown field", map[string]string{"Name": "TITLE"}, ErrUnknownField},
		{"scalar twice", map[string]string{"Name": "NAME", "Surname": "NAME"}, ErrDuplicateTarget},
		{"nothing selected", map[string]string{"Name": Skip}, ErrEmptyMapping},
	}
	for _, tc := range cases {
		_, err := Build(columns, testCatalog(), tc.selections)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseSpecs(t *testing.T) {
	got, err := ParseSpecs([]string{"Name=name", " Email = EMAIL ", "a=b=PHONE"})
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	want := map[string]string{"Name": "NAME", "Email": "EMAIL", "a=b": "PHONE"}
	for column, field := range want {
		if got[column] != field {
			t.Fatalf("expected %s=%s, got %q", column, field, got[column])
		}
	}

	for _, bad := range []string{"Name", "=NAME"} {
		if _, err := ParseSpecs([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestSuggestMatchesIDsAndLabels(t *testing.T) {
	got := Suggest([]string{"name", "Last Name", "Phone", "phone", "Comments"}, testCatalog())

	if got["name"] != "NAME" || got["Last Name"] != "LAST_NAME" {
		t.Fatalf("unexpected suggestions %v", got)
	}
	if got["Phone"] != "PHONE" || got["phone"] != "PHONE" {
		t.Fatalf("expected multi-valued field suggested twice, got %v", got)
	}
	if _, ok := got["Comments"]; ok {
		t.Fatalf("did not expect a suggestion for Comments")
	}
}
