package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/importer/orchestrator"
	"github.com/smartkubik/import-api/internal/importer/parser"
	"github.com/smartkubik/import-api/internal/importer/preset"
	"github.com/smartkubik/import-api/internal/models"
	"github.com/smartkubik/import-api/internal/worker"
)

// ImportService is the import pipeline as seen by HTTP. *orchestrator.Orchestrator implements it.
type ImportService interface {
	HandleUpload(ctx context.Context, req orchestrator.UploadRequest) (*orchestrator.UploadResult, error)
	UpdateMapping(ctx context.Context, tenantID, jobID string, upd orchestrator.MappingUpdate) (*models.ImportJob, error)
	ValidateJob(ctx context.Context, tenantID, userID, jobID string) (*orchestrator.ValidationReport, error)
	ExecuteImport(ctx context.Context, tenantID, userID, jobID string) (*orchestrator.ExecuteResult, error)
	RollbackJob(ctx context.Context, tenantID, userID, jobID string) (*importer.RollbackResult, error)
	DeleteJob(ctx context.Context, tenantID, jobID string) error
	GetJob(ctx context.Context, tenantID, jobID string) (*models.ImportJob, error)
	ListJobs(ctx context.Context, tenantID string, f models.ImportJobFilter) (*orchestrator.JobPage, error)
	JobErrors(ctx context.Context, tenantID, jobID string, offset, limit int) (*orchestrator.ErrorPage, error)
	ExportErrors(ctx context.Context, tenantID, jobID string) ([]byte, string, error)
	FieldDefinitions(entityType string) ([]importer.FieldDefinition, error)
	Template(entityType string) ([]byte, string, error)
	Presets(entityType string) ([]preset.Preset, error)
}

type ImportHandler struct {
	imports     ImportService
	maxFileSize int64
	logger      zerolog.Logger
}

func NewImportHandler(imports ImportService, maxFileSize int64, logger zerolog.Logger) *ImportHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &ImportHandler{
		imports:     imports,
		maxFileSize: maxFileSize,
		logger:      logger.With().Str("handler", "imports").Logger(),
	}
}

// Upload takes a multipart form with the spreadsheet in "file" and the job settings as
// form values: entity_type, mapping_preset, update_existing, skip_errors, batch_size.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := identity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	opts := models.DefaultImportOptions()
	if opts.UpdateExisting, err = formBool(r, "update_existing", opts.UpdateExisting); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.SkipErrors, err = formBool(r, "skip_errors", opts.SkipErrors); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if raw := strings.TrimSpace(r.FormValue("batch_size")); raw != "" {
		if opts.BatchSize, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "batch_size must be a number")
			return
		}
	}

	res, err := h.imports.HandleUpload(r.Context(), orchestrator.UploadRequest{
		TenantID:      tenantID,
		UserID:        userID,
		EntityType:    strings.TrimSpace(r.FormValue("entity_type")),
		FileName:      header.Filename,
		MimeType:      header.Header.Get("Content-Type"),
		Data:          data,
		MappingPreset: strings.TrimSpace(r.FormValue("mapping_preset")),
		Options:       opts,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *ImportHandler) UpdateMapping(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := identity(w, r)
	if !ok {
		return
	}
	var upd orchestrator.MappingUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	job, err := h.imports.UpdateMapping(r.Context(), tenantID, mux.Vars(r)["id"], upd)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *ImportHandler) Validate(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := identity(w, r)
	if !ok {
		return
	}
	report, err := h.imports.ValidateJob(r.Context(), tenantID, userID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Execute answers 202 for a queued job and 200 with the counters for an inline run.
func (h *ImportHandler) Execute(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := identity(w, r)
	if !ok {
		return
	}
	res, err := h.imports.ExecuteImport(r.Context(), tenantID, userID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	status := http.StatusOK
	if res.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (h *ImportHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := identity(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, err := h.imports.ListJobs(r.Context(), tenantID, models.ImportJobFilter{
		EntityType: q.Get("entity_type"),
		Status:     models.ImportStatus(q.Get("status")),
		CreatedBy:  q.Get("created_by"),
		Limit:      queryInt(r, "limit", 0),
		Offset:     queryInt(r, "offset", 0),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ImportHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := identity(w, r)
	if !ok {
		return
	}
	job, err := h.imports.GetJob(r.Context(), tenantID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *ImportHandler) Errors(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := identity(w, r)
	if !ok {
		return
	}
	page, err := h.imports.JobErrors(r.Context(), tenantID, mux.Vars(r)["id"], queryInt(r, "offset", 0), queryInt(r, "limit", 0))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ImportHandler) ExportErrors(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := identity(w, r)
	if !ok {
		return
	}
	data, name, err := h.imports.ExportErrors(r.Context(), tenantID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeFile(w, xlsxContentType, name, data)
}

func (h *ImportHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := identity(w, r)
	if !ok {
		return
	}
	res, err := h.imports.RollbackJob(r.Context(), tenantID, userID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ImportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.imports.DeleteJob(r.Context(), tenantID, mux.Vars(r)["id"]); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImportHandler) Fields(w http.ResponseWriter, r *http.Request) {
	defs, err := h.imports.FieldDefinitions(mux.Vars(r)["entityType"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"fields": defs})
}

func (h *ImportHandler) Template(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.imports.Template(mux.Vars(r)["entityType"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeFile(w, xlsxContentType, name, data)
}

func (h *ImportHandler) Presets(w http.ResponseWriter, r *http.Request) {
	presets, err := h.imports.Presets(mux.Vars(r)["entityType"])
	if err != nil {
		h.fail(w, err)
		return
	}
	if presets == nil {
		presets = []preset.Preset{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"presets": presets})
}

// fail maps pipeline errors onto status codes. Unexpected errors are logged and hidden.
func (h *ImportHandler) fail(w http.ResponseWriter, err error) {
	var parseErr *parser.ParseError
	switch {
	case errors.Is(err, importer.ErrUnsupportedEntityType),
		errors.Is(err, importer.ErrPreconditionFailed),
		errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, importer.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "Import job not found")
	case errors.Is(err, importer.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, importer.ErrRollbackForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, worker.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "Import queue is full, try again later")
	default:
		h.logger.Error().Err(err).Msg("import request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func formBool(r *http.Request, key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Errorf("%s must be true or false", key)
	}
	return v, nil
}
