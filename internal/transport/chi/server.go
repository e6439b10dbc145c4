package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/momentum-hq/momentum/internal/domain"
	dombatch "github.com/momentum-hq/momentum/internal/domain/batch"
	domdoc "github.com/momentum-hq/momentum/internal/domain/document"
	domver "github.com/momentum-hq/momentum/internal/domain/version"
	batchuc "github.com/momentum-hq/momentum/internal/usecase/batch"
	healthuc "github.com/momentum-hq/momentum/internal/usecase/health"
	"github.com/momentum-hq/momentum/internal/usecase/lifecycle"
	transferuc "github.com/momentum-hq/momentum/internal/usecase/transfer"
	versioninguc "github.com/momentum-hq/momentum/internal/usecase/versioning"
)

const (
	maxBatchSize  = 100
	maxImportBody = 16 << 20
)

// Error codes returned in the error envelope.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeForbidden        = "forbidden"
	codeNotFound         = "collection_not_found"
	codeDocumentNotFound = "document_not_found"
	codeVersionNotFound  = "version_not_found"
	codeNotVersioned     = "not_versioned"
	codeHookFailed       = "hook_failed"
	codeInternalError    = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the engine over a hand-routed chi REST surface.
type Server struct {
	lifecycle     *lifecycle.Service
	versions      *versioninguc.Service
	batch         *batchuc.Service
	transfer      *transferuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	lc *lifecycle.Service,
	versions *versioninguc.Service,
	batch *batchuc.Service,
	transfer *transferuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		lifecycle: lc,
		versions:  versions,
		batch:     batch,
		transfer:  transfer,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		hookFailureHandler,
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, codeUnauthorized),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, codeForbidden),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrVersionNotFound, http.StatusNotFound, codeVersionNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrNotVersioned, http.StatusBadRequest, codeNotVersioned),
	}
	return s
}

// Routes mounts every endpoint on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/{collection}", func(r chi.Router) {
		r.Get("/", s.ListDocuments)
		r.Post("/", s.CreateDocument)
		r.Post("/batch", s.BatchApply)
		r.Get("/export", s.ExportCollection)
		r.Post("/import", s.ImportCollection)
		r.Post("/versions/compare", s.CompareVersions)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetDocument)
			r.Patch("/", s.PatchDocument)
			r.Delete("/", s.DeleteDocument)
			r.Post("/publish", s.PublishVersion)
			r.Get("/versions", s.ListVersions)
			r.Post("/versions/compare", s.CompareVersions)
		})
	})
}

// CreateDocument handles POST /api/{collection}.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var data domdoc.Document
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	doc, err := s.lifecycle.Create(r.Context(), AccessContext(r.Context()), collectionParam(r), data)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// ListDocuments handles GET /api/{collection}.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page")
	limit := queryInt(r, "limit")

	var filter domain.Filter
	if raw := r.URL.Query().Get("where"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid where parameter: "+err.Error())
			return
		}
	}

	res, err := s.lifecycle.Find(r.Context(), AccessContext(r.Context()), collectionParam(r), filter, page, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetDocument handles GET /api/{collection}/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.lifecycle.FindByID(
		r.Context(), AccessContext(r.Context()), collectionParam(r), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// PatchDocument handles PATCH /api/{collection}/{id}.
func (s *Server) PatchDocument(w http.ResponseWriter, r *http.Request) {
	var partial domdoc.Document
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	doc, err := s.lifecycle.Update(
		r.Context(), AccessContext(r.Context()), collectionParam(r), chi.URLParam(r, "id"), partial)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/{collection}/{id}. The removed document
// is echoed back.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.lifecycle.Delete(
		r.Context(), AccessContext(r.Context()), collectionParam(r), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// batchRequest is the body of POST /api/{collection}/batch.
type batchRequest struct {
	Operation string `json:"operation"`
	Items     []struct {
		ID   string          `json:"id,omitempty"`
		Data domdoc.Document `json:"data,omitempty"`
	} `json:"items"`
}

type batchResultItem struct {
	Index  int            `json:"index"`
	ID     string         `json:"id,omitempty"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

type batchResponse struct {
	Results   []batchResultItem `json:"results"`
	Docs      []domdoc.Document `json:"docs"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// BatchApply handles POST /api/{collection}/batch.
func (s *Server) BatchApply(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// An empty items array is a valid batch; only the upper bound is enforced.
	if len(req.Items) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("items count must not exceed %d", maxBatchSize))
		return
	}

	items := make([]batchuc.Item, len(req.Items))
	for i, item := range req.Items {
		items[i] = batchuc.Item{Operation: dombatch.Operation(req.Operation), ID: item.ID, Data: item.Data}
	}

	outcome, err := s.batch.Apply(
		r.Context(), AccessContext(r.Context()), collectionParam(r),
		dombatch.Operation(req.Operation), items)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := batchResponse{Docs: outcome.Docs, Results: make([]batchResultItem, len(outcome.Results))}
	for i, res := range outcome.Results {
		resp.Results[i] = batchResultToItem(res)
		if res.Status() == dombatch.StatusOK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ExportCollection handles GET /api/{collection}/export.
func (s *Server) ExportCollection(w http.ResponseWriter, r *http.Request) {
	slug := collectionParam(r)

	format, err := transferuc.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	rctx := AccessContext(r.Context())
	if format == transferuc.FormatCSV {
		data, total, err := s.transfer.ExportCSV(r.Context(), rctx, slug)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", slug+".csv"))
		w.Header().Set("X-Total-Docs", strconv.Itoa(total))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	export, err := s.transfer.ExportJSON(r.Context(), rctx, slug)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

// importRequest is the JSON body of POST /api/{collection}/import.
type importRequest struct {
	Docs []domdoc.Document `json:"docs"`
}

// ImportCollection handles POST /api/{collection}/import. A text/csv body is
// parsed as delimited rows; anything else is the JSON docs envelope.
func (s *Server) ImportCollection(w http.ResponseWriter, r *http.Request) {
	slug := collectionParam(r)
	rctx := AccessContext(r.Context())

	var (
		docs    []domdoc.Document
		csvData string
	)
	if isCSVRequest(r) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Read request body: "+err.Error())
			return
		}
		csvData = string(body)
	} else {
		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return
		}
		docs = req.Docs
	}

	result, err := s.transfer.Import(r.Context(), rctx, slug, docs, csvData)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type versionItem struct {
	ID          string          `json:"id"`
	ParentDocID string          `json:"parentDocId"`
	Data        domdoc.Document `json:"data"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// PublishVersion handles POST /api/{collection}/{id}/publish.
func (s *Server) PublishVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.versions.Publish(
		r.Context(), AccessContext(r.Context()), collectionParam(r), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, versionToItem(v))
}

// ListVersions handles GET /api/{collection}/{id}/versions.
func (s *Server) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.versions.List(
		r.Context(), AccessContext(r.Context()), collectionParam(r), chi.URLParam(r, "id"),
		queryInt(r, "limit"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]versionItem, len(versions))
	for i, v := range versions {
		items[i] = versionToItem(v)
	}

	writeJSON(w, http.StatusOK, map[string]any{"versions": items, "total": len(items)})
}

// compareRequest is the body of POST /api/{collection}/versions/compare.
type compareRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CompareVersions handles POST /api/{collection}/versions/compare.
func (s *Server) CompareVersions(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	diffs, err := s.versions.Compare(
		r.Context(), AccessContext(r.Context()), collectionParam(r), req.From, req.To)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"differences": diffs, "total": len(diffs)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func collectionParam(r *http.Request) string {
	return chi.URLParam(r, "collection")
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

func isCSVRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "text/csv" || ct == "application/csv"
}

func versionToItem(v domver.Version) versionItem {
	return versionItem{
		ID:          v.ID(),
		ParentDocID: v.ParentDocID(),
		Data:        v.Data(),
		CreatedAt:   time.UnixMilli(v.CreatedAt()).UTC(),
	}
}

func batchResultToItem(r dombatch.Result) batchResultItem {
	item := batchResultItem{
		Index:  r.Index(),
		ID:     r.ID(),
		Status: string(r.Status()),
	}
	if r.Err() != nil {
		item.Error = &ErrorResponse{
			Code:    batchErrorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
		var verr *domain.ValidationError
		if errors.As(r.Err(), &verr) {
			item.Error.Violations = verr.Violations
		}
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	sentinels := []error{
		domain.ErrUnauthorized,
		domain.ErrForbidden,
		domain.ErrDocumentNotFound,
		domain.ErrVersionNotFound,
		domain.ErrNotFound,
		domain.ErrNotVersioned,
		domain.ErrHookFailed,
		domain.ErrValidation,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler handles ValidationError with the per-field violation list.
func validationHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	resp := ErrorResponse{Code: codeValidationFailed, Message: msg}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Violations = verr.Violations
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return true
}

// hookFailureHandler handles hook errors. A post-commit failure reports which
// hook broke while the mutation stands; a pre-commit failure reports an
// aborted operation.
func hookFailureHandler(w http.ResponseWriter, err error, _ string) bool {
	var herr *domain.HookError
	if !errors.As(err, &herr) {
		return false
	}
	msg := fmt.Sprintf("%s hook failed; operation aborted", herr.Hook)
	if herr.Committed {
		msg = fmt.Sprintf("%s hook failed; the change was already applied", herr.Hook)
	}
	writeError(w, http.StatusInternalServerError, codeHookFailed, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func batchErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return codeValidationFailed
	case errors.Is(err, domain.ErrUnauthorized):
		return codeUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return codeForbidden
	case errors.Is(err, domain.ErrDocumentNotFound):
		return codeDocumentNotFound
	case errors.Is(err, domain.ErrNotFound):
		return codeNotFound
	case errors.Is(err, domain.ErrHookFailed):
		return codeHookFailed
	default:
		return codeInternalError
	}
}
