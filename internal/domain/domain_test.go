package domain

import (
	"encoding/json"
	"testing"
)

func TestFieldCatalogSortedByLabel(t *testing.T) {
	catalog := FieldCatalog{
		"NAME":      {ID: "NAME", Label: "name"},
		"EMAIL":     {ID: "EMAIL", Label: "E-mail"},
		"LAST_NAME": {ID: "LAST_NAME", Label: "Name"},
	}

	got := catalog.Sorted()
	want := []string{"EMAIL", "LAST_NAME", "NAME"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestIdentityOfUsesFirstEntries(t *testing.T) {
	payload := RecordPayload{
		FieldEmail: []MultiValue{{Value: "a@x.com", ValueType: DefaultValueType}, {Value: "b@x.com", ValueType: DefaultValueType}},
		"NAME":     "Ann",
	}

	id := IdentityOf(payload)
	if id.Email != "a@x.com" || id.Phone != "" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.Empty() {
		t.Fatalf("identity with email should not be empty")
	}
	if !IdentityOf(RecordPayload{}).Empty() {
		t.Fatalf("expected empty identity for empty payload")
	}
}

func TestOutcomeResultText(t *testing.T) {
	if got := (ImportOutcome{Result: ResultCreated, RemoteID: "5"}).ResultText(); got != "Created" {
		t.Fatalf("unexpected text %q", got)
	}
	failed := ImportOutcome{Result: ResultFailed, Message: "Name is required"}
	if got := failed.ResultText(); got != "Failed: Name is required" {
		t.Fatalf("unexpected text %q", got)
	}
	if failed.Succeeded() {
		t.Fatalf("failed outcome must not count as success")
	}
	if !(ImportOutcome{Result: ResultDuplicateFound, RemoteID: "9"}).Succeeded() {
		t.Fatalf("duplicate with id counts as success")
	}
}

func TestIsCustomField(t *testing.T) {
	if !IsCustomField("uf_crm_1700") || IsCustomField("NAME") {
		t.Fatalf("custom field detection is wrong")
	}
}

func TestRecordPayloadRoundTripKeepsIdentity(t *testing.T) {
	stored := []byte(`{"NAME":"Ann","EMAIL":[{"VALUE":"a@x.com","VALUE_TYPE":"WORK"}],"PHONE":[{"VALUE":"555","VALUE_TYPE":"WORK"}]}`)

	var payload RecordPayload
	if err := json.Unmarshal(stored, &payload); err != nil {
		t.Fatalf("unmarshal returned error: %v", err)
	}
	if _, ok := payload[FieldEmail].([]MultiValue); !ok {
		t.Fatalf("expected EMAIL as []MultiValue, got %T", payload[FieldEmail])
	}
	id := IdentityOf(payload)
	if id.Email != "a@x.com" || id.Phone != "555" {
		t.Fatalf("unexpected identity after decode: %+v", id)
	}
	if payload["NAME"] != "Ann" {
		t.Fatalf("unexpected scalar value %#v", payload["NAME"])
	}
}
