package importer

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/logging"
	"github.com/rpattn/crmimport/internal/metrics"
	"github.com/rpattn/crmimport/internal/payload"
	"github.com/rpattn/crmimport/internal/table"
)

// Recorder receives every outcome as soon as its row is finished.
type Recorder interface {
	RecordOutcome(ctx context.Context, runID uuid.UUID, outcome domain.ImportOutcome) error
}

// RunStore persists runs and their outcomes.
type RunStore interface {
	Recorder
	StartRun(ctx context.Context, run domain.ImportRun) error
	FinishRun(ctx context.Context, run domain.ImportRun) error
}

// ProgressFunc is called after each row with the number of rows done so far.
type ProgressFunc func(done, total int, outcome domain.ImportOutcome)

// Result is everything an import produces.
type Result struct {
	Run      domain.ImportRun       `json:"run"`
	Summary  domain.ImportSummary   `json:"summary"`
	Outcomes []domain.ImportOutcome `json:"outcomes"`
	Output   *table.Table           `json:"-"`
}

// RemoteIDs returns the per-row identifiers in row order, "" where none.
func (r *Result) RemoteIDs() []string {
	ids := make([]string, len(r.Outcomes))
	for i, outcome := range r.Outcomes {
		ids[i] = outcome.RemoteID
	}
	return ids
}

// WriteLog writes the row log as CSV.
func (r *Result) WriteLog(w io.Writer) error {
	return table.WriteLog(w, r.Outcomes)
}

// WriteOutput writes the input table with its REMOTE_ID column.
func (r *Result) WriteOutput(w io.Writer, format table.Format) error {
	return table.Write(w, format, r.Output)
}

// Service drives imports row by row.
type Service struct {
	store   RunStore
	metrics *metrics.Registry
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStore persists runs and outcomes incrementally.
func WithStore(store RunStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithMetrics records row and run metrics.
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) {
		s.logger = logging.OrDefault(logger, "importer")
	}
}

// NewService creates an import service.
func NewService(opts ...Option) *Service {
	s := &Service{
		logger: logging.Named("importer"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type runOptions struct {
	progress  ProgressFunc
	recorders []Recorder
}

// RunOption configures a single run.
type RunOption func(*runOptions)

// WithProgress reports progress after each row.
func WithProgress(fn ProgressFunc) RunOption {
	return func(o *runOptions) {
		o.progress = fn
	}
}

// WithRecorder adds a recorder for this run only.
func WithRecorder(r Recorder) RunOption {
	return func(o *runOptions) {
		if r != nil {
			o.recorders = append(o.recorders, r)
		}
	}
}

// Run imports every row of the session's table, one row at a time. Row failures become
// outcomes and never stop the run; only an invalid session returns an error.
func (s *Service) Run(ctx context.Context, sess *Session, opts ...RunOption) (*Result, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}

	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	recorders := ro.recorders
	if s.store != nil {
		recorders = append([]Recorder{s.store}, recorders...)
	}

	started := s.now()
	run := domain.ImportRun{
		ID:              sess.ID,
		FileName:        sess.FileName,
		Endpoint:        endpointHost(sess.Remote.Endpoint()),
		CheckDuplicates: sess.CheckDuplicates,
		StartedAt:       started,
	}
	total := sess.Table.Len()
	run.Summary.TotalRows = total

	if s.store != nil {
		if err := s.store.StartRun(ctx, run); err != nil {
			s.logger.Warnw("failed to persist run start", "run_id", run.ID, "error", err)
		}
	}

	s.logger.Infow("import started",
		"run_id", run.ID,
		"file", sess.FileName,
		"rows", total,
		"mapped_columns", sess.Mapping.Len(),
		"check_duplicates", sess.CheckDuplicates,
	)

	outcomes := make([]domain.ImportOutcome, 0, total)
	for idx := 0; idx < total; idx++ {
		outcome := s.processRow(ctx, sess, idx)
		outcomes = append(outcomes, outcome)

		if outcome.Succeeded() {
			run.Summary.SuccessCount++
		} else {
			run.Summary.FailureCount++
		}
		s.metrics.ObserveRow(outcome.Result)
		s.logOutcome(run.ID, outcome)

		for _, rec := range recorders {
			if err := rec.RecordOutcome(ctx, run.ID, outcome); err != nil {
				s.logger.Warnw("failed to record outcome", "run_id", run.ID, "row", outcome.RowIndex, "error", err)
			}
		}
		if ro.progress != nil {
			ro.progress(idx+1, total, outcome)
		}
	}

	finished := s.now()
	run.FinishedAt = &finished

	result := &Result{Run: run, Summary: run.Summary, Outcomes: outcomes}
	output, err := table.Annotate(sess.Table, result.RemoteIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to annotate output: %w", err)
	}
	result.Output = output

	if s.store != nil {
		if err := s.store.FinishRun(ctx, run); err != nil {
			s.logger.Warnw("failed to persist run summary", "run_id", run.ID, "error", err)
		}
	}
	s.metrics.ObserveRun(finished.Sub(started))
	s.logger.Infow("import finished",
		"run_id", run.ID,
		"success", run.Summary.SuccessCount,
		"failure", run.Summary.FailureCount,
		"duration", finished.Sub(started),
	)
	return result, nil
}

// processRow runs build, duplicate check and create for one row. It always returns an outcome.
func (s *Service) processRow(ctx context.Context, sess *Session, idx int) (outcome domain.ImportOutcome) {
	outcome = domain.ImportOutcome{RowIndex: idx + 1, Payload: domain.RecordPayload{}}
	defer func() {
		if r := recover(); r != nil {
			outcome.Result = domain.ResultError
			outcome.RemoteID = ""
			outcome.Message = fmt.Sprintf("panic: %v", r)
		}
	}()

	record, err := payload.Build(sess.Table.Row(idx), sess.Mapping)
	if err != nil {
		outcome.Result = domain.ResultError
		outcome.Message = err.Error()
		return outcome
	}
	outcome.Payload = record

	identity := domain.IdentityOf(record)
	if sess.CheckDuplicates && !identity.Empty() {
		existing, found, err := sess.Remote.FindDuplicate(ctx, identity)
		if err != nil {
			outcome.Result = domain.ResultError
			outcome.Message = err.Error()
			return outcome
		}
		if found {
			outcome.Result = domain.ResultDuplicateFound
			outcome.RemoteID = existing
			return outcome
		}
	}

	created, err := sess.Remote.Create(ctx, record)
	if err != nil {
		outcome.Result = domain.ResultError
		outcome.Message = err.Error()
		return outcome
	}
	if created.ID == "" {
		outcome.Result = domain.ResultFailed
		outcome.Message = created.Description
		return outcome
	}
	outcome.Result = domain.ResultCreated
	outcome.RemoteID = created.ID
	return outcome
}

func (s *Service) logOutcome(runID uuid.UUID, outcome domain.ImportOutcome) {
	fields := []any{"run_id", runID, "row", outcome.RowIndex, "result", outcome.Result, "remote_id", outcome.RemoteID}
	switch outcome.Result {
	case domain.ResultCreated, domain.ResultDuplicateFound:
		s.logger.Debugw("row imported", fields...)
	default:
		s.logger.Warnw("row not imported", append(fields, "message", outcome.Message)...)
	}
}

// endpointHost keeps only scheme and host; webhook paths embed credentials.
func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
