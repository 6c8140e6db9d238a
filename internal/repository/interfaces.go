package repository

import (
	"context"

	"github.com/rpattn/crmimport/internal/domain"

	"github.com/google/uuid"
)

// ImportRunRepository persists import runs and their per-row outcomes.
type ImportRunRepository interface {
	StartRun(ctx context.Context, run domain.ImportRun) error
	RecordOutcome(ctx context.Context, runID uuid.UUID, outcome domain.ImportOutcome) error
	FinishRun(ctx context.Context, run domain.ImportRun) error
	GetRun(ctx context.Context, runID uuid.UUID) (*domain.ImportRun, error)
	ListOutcomes(ctx context.Context, runID uuid.UUID) ([]domain.ImportOutcome, error)
}
