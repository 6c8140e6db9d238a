package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/crmimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type importRunRepository struct {
	pool *pgxpool.Pool
}

// NewImportRunRepository wires a repository backed by pgxpool.
func NewImportRunRepository(pool *pgxpool.Pool) ImportRunRepository {
	return &importRunRepository{pool: pool}
}

func (r *importRunRepository) StartRun(ctx context.Context, run domain.ImportRun) error {
	if r.pool == nil {
		return fmt.Errorf("import run repository not initialized")
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO import_runs (id, file_name, endpoint, check_duplicates, total_rows, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID,
		run.FileName,
		run.Endpoint,
		run.CheckDuplicates,
		run.Summary.TotalRows,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record import run: %w", err)
	}
	return nil
}

func (r *importRunRepository) RecordOutcome(ctx context.Context, runID uuid.UUID, outcome domain.ImportOutcome) error {
	if r.pool == nil {
		return fmt.Errorf("import run repository not initialized")
	}

	payload, err := json.Marshal(outcome.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for row %d: %w", outcome.RowIndex, err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO import_outcomes (run_id, row_index, result, remote_id, message, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (run_id, row_index) DO UPDATE
		   SET result = EXCLUDED.result,
		       remote_id = EXCLUDED.remote_id,
		       message = EXCLUDED.message,
		       payload = EXCLUDED.payload`,
		runID,
		outcome.RowIndex,
		string(outcome.Result),
		nullableText(outcome.RemoteID),
		nullableText(outcome.Message),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome for row %d: %w", outcome.RowIndex, err)
	}
	return nil
}

func (r *importRunRepository) FinishRun(ctx context.Context, run domain.ImportRun) error {
	if r.pool == nil {
		return fmt.Errorf("import run repository not initialized")
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_runs
		 SET total_rows = $2, success_count = $3, failure_count = $4, finished_at = $5
		 WHERE id = $1`,
		run.ID,
		run.Summary.TotalRows,
		run.Summary.SuccessCount,
		run.Summary.FailureCount,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to finish import run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, run.ID)
	}
	return nil
}

func (r *importRunRepository) GetRun(ctx context.Context, runID uuid.UUID) (*domain.ImportRun, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("import run repository not initialized")
	}

	var (
		run        domain.ImportRun
		finishedAt pgtype.Timestamptz
	)
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, file_name, endpoint, check_duplicates, total_rows, success_count, failure_count, started_at, finished_at
		 FROM import_runs
		 WHERE id = $1`,
		runID,
	).Scan(
		&run.ID,
		&run.FileName,
		&run.Endpoint,
		&run.CheckDuplicates,
		&run.Summary.TotalRows,
		&run.Summary.SuccessCount,
		&run.Summary.FailureCount,
		&run.StartedAt,
		&finishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load import run: %w", err)
	}
	if finishedAt.Valid {
		finished := finishedAt.Time
		run.FinishedAt = &finished
	}
	return &run, nil
}

func (r *importRunRepository) ListOutcomes(ctx context.Context, runID uuid.UUID) ([]domain.ImportOutcome, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("import run repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT row_index, result, remote_id, message, payload
		 FROM import_outcomes
		 WHERE run_id = $1
		 ORDER BY row_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []domain.ImportOutcome{}
	for rows.Next() {
		var (
			outcome  domain.ImportOutcome
			result   string
			remoteID pgtype.Text
			message  pgtype.Text
			payload  []byte
		)
		if scanErr := rows.Scan(&outcome.RowIndex, &result, &remoteID, &message, &payload); scanErr != nil {
			return nil, fmt.Errorf("failed to scan import outcome: %w", scanErr)
		}
		outcome.Result = domain.ResultKind(result)
		outcome.RemoteID = remoteID.String
		outcome.Message = message.String
		if outcome.Payload, err = decodePayload(payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload for row %d: %w", outcome.RowIndex, err)
		}
		outcomes = append(outcomes, outcome)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import outcomes: %w", rowsErr)
	}
	return outcomes, nil
}

func decodePayload(raw []byte) (domain.RecordPayload, error) {
	payload := domain.RecordPayload{}
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func nullableText(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}
