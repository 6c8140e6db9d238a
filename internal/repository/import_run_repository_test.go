package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/crmimport/internal/domain"
)

func TestImportRunRepository_RequiresPool(t *testing.T) {
	repo := NewImportRunRepository(nil)
	ctx := context.Background()

	if err := repo.StartRun(ctx, domain.ImportRun{ID: uuid.New()}); err == nil {
		t.Fatalf("expected error from StartRun without a pool")
	}
	if err := repo.RecordOutcome(ctx, uuid.New(), domain.ImportOutcome{RowIndex: 1}); err == nil {
		t.Fatalf("expected error from RecordOutcome without a pool")
	}
	if _, err := repo.GetRun(ctx, uuid.New()); err == nil {
		t.Fatalf("expected error from GetRun without a pool")
	}
	if _, err := repo.ListOutcomes(ctx, uuid.New()); err == nil {
		t.Fatalf("expected error from ListOutcomes without a pool")
	}
}

func TestNullableText(t *testing.T) {
	if nullableText("").Valid {
		t.Fatalf("expected blank text to be NULL")
	}
	got := nullableText("42")
	if !got.Valid || got.String != "42" {
		t.Fatalf("unexpected text value: %#v", got)
	}
}

func TestDecodePayloadRestoresMultiValues(t *testing.T) {
	payload, err := decodePayload([]byte(`{"NAME":"Ann","EMAIL":[{"VALUE":"a@x.com","VALUE_TYPE":"WORK"}]}`))
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	if got := domain.IdentityOf(payload).Email; got != "a@x.com" {
		t.Fatalf("expected email identity after decode, got %q", got)
	}

	empty, err := decodePayload(nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty payload, got %#v (%v)", empty, err)
	}
}
