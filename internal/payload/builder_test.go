package payload

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rpattn/crmimport/internal/domain"
)

type stubRow map[string]any

func (r stubRow) Value(column string) any {
	return r[column]
}

func field(id string, kind domain.FieldKind) domain.FieldDescriptor {
	return domain.FieldDescriptor{ID: id, Label: id, Kind: kind, Writable: true}
}

func mappingOf(bindings ...domain.ColumnBinding) domain.ColumnMapping {
	return domain.ColumnMapping{Bindings: bindings}
}

func bind(column, id string, kind domain.FieldKind) domain.ColumnBinding {
	return domain.ColumnBinding{Column: column, Field: field(id, kind)}
}

func TestBuildEmailValue(t *testing.T) {
	mapping := mappingOf(bind("Email", domain.FieldEmail, domain.FieldKindMultifield))

	got, err := Build(stubRow{"Email": "a@x.com"}, mapping)
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	want := domain.RecordPayload{
		"EMAIL": []domain.MultiValue{{Value: "a@x.com", ValueType: "WORK"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}

func TestBuildOmitsEmptyValues(t *testing.T) {
	mapping := mappingOf(
		bind("Email", domain.FieldEmail, domain.FieldKindMultifield),
		bind("Name", "NAME", domain.FieldKindString),
		bind("Score", "UF_CRM_SCORE", domain.FieldKindDouble),
	)

	for _, row := range []stubRow{
		{"Email": "", "Name": nil, "Score": math.NaN()},
		{"Email": nil, "Name": "   "},
		{"Email": "  "},
	} {
		got, err := Build(row, mapping)
		if err != nil {
			t.Fatalf("build returned error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty payload for %#v, got %#v", row, got)
		}
	}
}

func TestBuildDeduplicatesPhones(t *testing.T) {
	mapping := mappingOf(
		bind("Mobile", domain.FieldPhone, domain.FieldKindMultifield),
		bind("Office", domain.FieldPhone, domain.FieldKindMultifield),
		bind("Home", domain.FieldPhone, domain.FieldKindMultifield),
	)

	same, err := Build(stubRow{"Mobile": "555-0100", "Office": "555-0100"}, mapping)
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	if want := []domain.MultiValue{{Value: "555-0100", ValueType: "WORK"}}; !reflect.DeepEqual(same["PHONE"], want) {
		t.Fatalf("expected single phone, got %#v", same["PHONE"])
	}

	distinct, err := Build(stubRow{"Mobile": "555-0100", "Office": "555-0199", "Home": " 555-0100 "}, mapping)
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	want := []domain.MultiValue{
		{Value: "555-0100", ValueType: "WORK"},
		{Value: "555-0199", ValueType: "WORK"},
	}
	if !reflect.DeepEqual(distinct["PHONE"], want) {
		t.Fatalf("expected %#v, got %#v", want, distinct["PHONE"])
	}
}

func TestBuildNumericPhoneRendersWithoutDecimals(t *testing.T) {
	mapping := mappingOf(bind("Phone", domain.FieldPhone, domain.FieldKindMultifield))

	got, err := Build(stubRow{"Phone": int64(5550100)}, mapping)
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	if v, _ := got.FirstValue("PHONE"); v != "5550100" {
		t.Fatalf("expected 5550100, got %q", v)
	}
}

func TestBuildDates(t *testing.T) {
	mapping := mappingOf(
		bind("Birthday", "BIRTHDATE", domain.FieldKindDate),
		bind("Seen", "UF_CRM_SEEN", domain.FieldKindDatetime),
		bind("Note", "COMMENTS", domain.FieldKindString),
	)

	cases := []stubRow{
		{"Birthday": time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"Birthday": time.Date(2024, 3, 5, 23, 59, 59, 0, time.UTC)},
		{"Birthday": "2024-03-05"},
		{"Birthday": "2024-03-05 08:15:00"},
	}
	for _, row := range cases {
		got, err := Build(row, mapping)
		if err != nil {
			t.Fatalf("build returned error: %v", err)
		}
		if got["BIRTHDATE"] != "2024-03-05" {
			t.Fatalf("expected 2024-03-05 for %#v, got %#v", row, got["BIRTHDATE"])
		}
	}

	got, err := Build(stubRow{
		"Seen": time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC),
		"Note": "2024-03-05 10:30",
	}, mapping)
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	if got["UF_CRM_SEEN"] != "2024-03-05" {
		t.Fatalf("expected datetime cell truncated to date, got %#v", got["UF_CRM_SEEN"])
	}
	if got["COMMENTS"] != "2024-03-05 10:30" {
		t.Fatalf("expected text to pass through unchanged, got %#v", got["COMMENTS"])
	}
}

func TestBuildPassesScalarsThrough(t *testing.T) {
	mapping := mappingOf(
		bind("Age", "UF_CRM_AGE", domain.FieldKindInteger),
		bind("Opt-in", "EXPORT", domain.FieldKindBoolean),
		bind("Ratio", "UF_CRM_RATIO", domain.FieldKindDouble),
	)

	got, err := Build(stubRow{"Age": int64(30), "Opt-in": true, "Ratio": 0.25}, mapping)
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	want := domain.RecordPayload{"UF_CRM_AGE": int64(30), "EXPORT": true, "UF_CRM_RATIO": 0.25}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}

func TestBuildRejectsUnsupportedCells(t *testing.T) {
	mapping := mappingOf(bind("Blob", "COMMENTS", domain.FieldKindString))

	if _, err := Build(stubRow{"Blob": []byte("x")}, mapping); err == nil {
		t.Fatalf("expected error for unsupported cell type")
	}
	if _, err := Build(stubRow{"Blob": math.Inf(1)}, mapping); err == nil {
		t.Fatalf("expected error for infinite number")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	mapping := mappingOf(
		bind("Name", "NAME", domain.FieldKindString),
		bind("Email", domain.FieldEmail, domain.FieldKindMultifield),
		bind("Email 2", domain.FieldEmail, domain.FieldKindMultifield),
	)
	row := stubRow{"Name": "Alice", "Email": "a@x.com", "Email 2": "b@x.com"}

	first, err := Build(row, mapping)
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	second, err := Build(row, mapping)
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical payloads, got %#v and %#v", first, second)
	}
	if v, _ := first.FirstValue(domain.FieldEmail); v != "a@x.com" {
		t.Fatalf("expected first email to keep column order, got %q", v)
	}
}

func TestDedupeDefaultsValueType(t *testing.T) {
	got := Dedupe([]domain.MultiValue{{Value: "a"}, {Value: "a", ValueType: "WORK"}, {Value: "a", ValueType: "HOME"}})
	want := []domain.MultiValue{{Value: "a", ValueType: "WORK"}, {Value: "a", ValueType: "HOME"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}
