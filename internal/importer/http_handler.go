package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/rpattn/crmimport/internal/crm"
	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/logging"
	"github.com/rpattn/crmimport/internal/mapping"
	"github.com/rpattn/crmimport/internal/table"
)

const (
	maxUploadBytes = 32 << 20
	previewRows    = 50
)

// ClientFactory creates a CRM client for a webhook URL.
type ClientFactory func(webhook string) (Client, error)

// OutcomeReader reads persisted runs back.
type OutcomeReader interface {
	GetRun(ctx context.Context, runID uuid.UUID) (*domain.ImportRun, error)
	ListOutcomes(ctx context.Context, runID uuid.UUID) ([]domain.ImportOutcome, error)
}

type artifacts struct {
	log    []byte
	output []byte
}

// Handler exposes field discovery, preview and import over HTTP.
type Handler struct {
	service   *Service
	clients   ClientFactory
	outcomes  OutcomeReader
	fields    *cache.Cache
	artifacts *cache.Cache
	logger    *zap.SugaredLogger

	checkDuplicates bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithOutcomeReader enables the persisted outcomes endpoint.
func WithOutcomeReader(reader OutcomeReader) HandlerOption {
	return func(h *Handler) {
		h.outcomes = reader
	}
}

// WithDefaultCheckDuplicates sets duplicate checking for requests that omit checkDuplicates.
func WithDefaultCheckDuplicates(enabled bool) HandlerOption {
	return func(h *Handler) {
		h.checkDuplicates = enabled
	}
}

// WithCacheTTL sets how long field catalogs and import artifacts are kept.
func WithCacheTTL(fields, artifactTTL time.Duration) HandlerOption {
	return func(h *Handler) {
		h.fields = cache.New(fields, 2*fields)
		h.artifacts = cache.New(artifactTTL, 2*artifactTTL)
	}
}

// NewHTTPHandler wires the import routes onto a chi router.
func NewHTTPHandler(service *Service, clients ClientFactory, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:   service,
		clients:   clients,
		fields:    cache.New(5*time.Minute, 10*time.Minute),
		artifacts: cache.New(time.Hour, 2*time.Hour),
		logger:    logging.Named("importer.http"),

		checkDuplicates: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the handler's routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/fields", h.handleFields)
	r.Post("/preview", h.handlePreview)
	r.Post("/imports", h.handleImport)
	r.Get("/imports/{id}/log.csv", h.handleLog)
	r.Get("/imports/{id}/output.xlsx", h.handleOutput)
	r.Get("/imports/{id}/outcomes", h.handleOutcomes)
	return r
}

type fieldsRequest struct {
	Webhook string `json:"webhook"`
}

func (h *Handler) handleFields(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	client, err := h.clients(req.Webhook)
	if err != nil {
		writeError(w, err)
		return
	}
	catalog, err := h.catalog(r.Context(), client)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog.Sorted())
}

// catalog returns the cached field catalog of the client's endpoint, fetching it on a miss.
func (h *Handler) catalog(ctx context.Context, client Client) (domain.FieldCatalog, error) {
	key := client.Endpoint()
	if cached, ok := h.fields.Get(key); ok {
		return cached.(domain.FieldCatalog), nil
	}
	catalog, err := client.Fields(ctx)
	if err != nil {
		return nil, err
	}
	h.fields.SetDefault(key, catalog)
	return catalog, nil
}

type previewResponse struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"totalRows"`
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	fileName, tbl, err := readUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows := make([][]string, 0, previewRows)
	for _, row := range tbl.Head(previewRows) {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = table.FormatCell(cell)
		}
		rows = append(rows, cells)
	}
	h.logger.Debugw("preview generated", "file", fileName, "rows", tbl.Len())
	writeJSON(w, http.StatusOK, previewResponse{Columns: tbl.Columns, Rows: rows, TotalRows: tbl.Len()})
}

type importResponse struct {
	RunID    uuid.UUID              `json:"runId"`
	Summary  domain.ImportSummary   `json:"summary"`
	Outcomes []domain.ImportOutcome `json:"outcomes"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	fileName, tbl, err := readUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	selections := map[string]string{}
	if raw := strings.TrimSpace(r.FormValue("mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &selections); err != nil {
			http.Error(w, fmt.Sprintf("invalid mapping: %v", err), http.StatusBadRequest)
			return
		}
	}

	checkDuplicates := h.checkDuplicates
	if raw := strings.TrimSpace(r.FormValue("checkDuplicates")); raw != "" {
		checkDuplicates, err = strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid checkDuplicates: %v", err), http.StatusBadRequest)
			return
		}
	}

	client, err := h.clients(r.FormValue("webhook"))
	if err != nil {
		writeError(w, err)
		return
	}
	catalog, err := h.catalog(r.Context(), client)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := NewSession(client, catalog, fileName, tbl, selections, checkDuplicates)
	if err != nil {
		writeError(w, err)
		return
	}
	defer sess.Close()

	// A client disconnect must not leave the run half recorded.
	result, err := h.service.Run(context.WithoutCancel(r.Context()), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	h.storeArtifacts(result)

	writeJSON(w, http.StatusOK, importResponse{
		RunID:    result.Run.ID,
		Summary:  result.Summary,
		Outcomes: result.Outcomes,
	})
}

func (h *Handler) storeArtifacts(result *Result) {
	var logBuf, outBuf bytes.Buffer
	if err := result.WriteLog(&logBuf); err != nil {
		h.logger.Warnw("failed to render import log", "run_id", result.Run.ID, "error", err)
	}
	if err := result.WriteOutput(&outBuf, table.FormatXLSX); err != nil {
		h.logger.Warnw("failed to render output workbook", "run_id", result.Run.ID, "error", err)
	}
	h.artifacts.SetDefault(result.Run.ID.String(), artifacts{log: logBuf.Bytes(), output: outBuf.Bytes()})
}

func (h *Handler) cachedArtifacts(w http.ResponseWriter, r *http.Request) (artifacts, bool) {
	runID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid run id: %v", err), http.StatusBadRequest)
		return artifacts{}, false
	}
	cached, ok := h.artifacts.Get(runID.String())
	if !ok {
		http.Error(w, "import artifacts not found", http.StatusNotFound)
		return artifacts{}, false
	}
	return cached.(artifacts), true
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	a, ok := h.cachedArtifacts(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="import_log.csv"`)
	_, _ = w.Write(a.log)
}

func (h *Handler) handleOutput(w http.ResponseWriter, r *http.Request) {
	a, ok := h.cachedArtifacts(w, r)
	if !ok {
		return
	}
	if len(a.output) == 0 {
		http.Error(w, "output workbook unavailable", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="imported.xlsx"`)
	_, _ = w.Write(a.output)
}

type outcomesResponse struct {
	Run      *domain.ImportRun      `json:"run"`
	Outcomes []domain.ImportOutcome `json:"outcomes"`
}

func (h *Handler) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if h.outcomes == nil {
		http.Error(w, "run history is not enabled", http.StatusNotFound)
		return
	}
	runID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid run id: %v", err), http.StatusBadRequest)
		return
	}

	run, err := h.outcomes.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	outcomes, err := h.outcomes.ListOutcomes(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomesResponse{Run: run, Outcomes: outcomes})
}

func readUpload(r *http.Request) (string, *table.Table, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, badRequest(fmt.Errorf("invalid form data: %w", err))
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, badRequest(fmt.Errorf("file required: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, badRequest(fmt.Errorf("failed to read file: %w", err))
	}
	tbl, err := table.Load(header.Filename, bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	return header.Filename, tbl, nil
}

type requestError struct {
	err error
}

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return requestError{err: err}
}

func statusFor(err error) int {
	var reqErr requestError
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, table.ErrUnsupportedFormat),
		errors.Is(err, table.ErrCorruptFile),
		errors.Is(err, table.ErrNoHeader),
		errors.Is(err, crm.ErrInvalidEndpoint),
		errors.Is(err, mapping.ErrUnknownColumn),
		errors.Is(err, mapping.ErrUnknownField),
		errors.Is(err, mapping.ErrDuplicateTarget),
		errors.Is(err, mapping.ErrEmptyMapping),
		errors.Is(err, ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, crm.ErrSchemaUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
