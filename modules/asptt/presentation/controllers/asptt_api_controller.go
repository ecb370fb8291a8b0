package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/review"
	"github.com/iota-uz/asptt-sync/modules/asptt/services"
	"github.com/iota-uz/asptt-sync/pkg/application"
	"github.com/iota-uz/asptt-sync/pkg/composables"
	"github.com/iota-uz/asptt-sync/pkg/httpapi"
)

const uploadFormField = "file"

type AspttAPIController struct {
	imports   *services.ImportService
	reviews   *services.ReviewService
	settings  func() services.Settings
	apiPrefix string
}

// NewAspttAPIController reads settings on every request so the season default
// follows the clock.
func NewAspttAPIController(app application.Application, settings func() services.Settings) application.Controller {
	return &AspttAPIController{
		imports:   app.Service(services.ImportService{}).(*services.ImportService),
		reviews:   app.Service(services.ReviewService{}).(*services.ReviewService),
		settings:  settings,
		apiPrefix: "/asptt/api",
	}
}

func (c *AspttAPIController) Key() string {
	return c.apiPrefix
}

func (c *AspttAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("/uploads", c.Stage).Methods(http.MethodPost)
	api.HandleFunc("/uploads/{handle}", c.Discard).Methods(http.MethodDelete)
	api.HandleFunc("/uploads/{handle}/state", c.GetState).Methods(http.MethodGet)
	api.HandleFunc("/uploads/{handle}/state", c.SaveState).Methods(http.MethodPut)
	api.HandleFunc("/uploads/{handle}/preview", c.Preview).Methods(http.MethodGet)
	api.HandleFunc("/uploads/{handle}/commit", c.Commit).Methods(http.MethodPost)
	api.HandleFunc("/uploads/{handle}/errors", c.ExportErrors).Methods(http.MethodGet)

	api.HandleFunc("/imports/rollback", c.Rollback).Methods(http.MethodPost)
	api.HandleFunc("/imports/logs", c.ListLogs).Methods(http.MethodGet)

	api.HandleFunc("/documents:bulk", c.Bulk).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id:[0-9]+}", c.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id:[0-9]+}/club", c.SetClub).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id:[0-9]+}/{action}", c.Transition).Methods(http.MethodPost)

	api.HandleFunc("/aliases", c.SaveAlias).Methods(http.MethodPost)
}

func (c *AspttAPIController) Stage(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, services.CodeInvalidParams, "multipart field \"file\" is required")
		return
	}
	defer func() { _ = file.Close() }()

	res, err := c.imports.Stage(r.Context(), header.Filename, file)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (c *AspttAPIController) Discard(w http.ResponseWriter, r *http.Request) {
	if err := c.imports.Discard(r.Context(), mux.Vars(r)["handle"]); err != nil {
		writeServiceError(w, requestIDFrom(r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *AspttAPIController) GetState(w http.ResponseWriter, r *http.Request) {
	params, err := c.imports.Params(r.Context(), mux.Vars(r)["handle"])
	if err != nil {
		writeServiceError(w, requestIDFrom(r), err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

func (c *AspttAPIController) SaveState(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	var params reconcile.Params
	if err := httpapi.DecodeJSON(r.Body, &params); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, services.CodeInvalidParams, "invalid json body")
		return
	}
	if err := c.imports.SaveParams(r.Context(), mux.Vars(r)["handle"], params); err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

func (c *AspttAPIController) Preview(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	handle := mux.Vars(r)["handle"]
	params, err := c.imports.Params(r.Context(), handle)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	if v := strings.TrimSpace(r.URL.Query().Get("rows")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeAPIError(w, http.StatusBadRequest, requestID, services.CodeInvalidParams, "rows must be a non-negative integer")
			return
		}
		params.PreviewRows = n
	}
	res, err := c.imports.Preview(r.Context(), handle, params, c.settings())
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type commitRequest struct {
	DryRun bool `json:"dry_run"`
}

func (c *AspttAPIController) Commit(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	handle := mux.Vars(r)["handle"]
	var req commitRequest
	if err := httpapi.DecodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, services.CodeInvalidParams, "invalid json body")
		return
	}
	params, err := c.imports.Params(r.Context(), handle)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	sum, err := c.imports.Commit(r.Context(), handle, params, c.settings(), services.CommitOptions{DryRun: req.DryRun})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (c *AspttAPIController) ExportErrors(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	handle := mux.Vars(r)["handle"]
	format, err := services.ParseExportFormat(strings.ToLower(r.URL.Query().Get("format")))
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	params, err := c.imports.Params(r.Context(), handle)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	// Resolve before writing headers so a failure still gets a JSON error.
	report, err := c.imports.ErrorRows(r.Context(), handle, params, c.settings())
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(report.FileName, format)))
	w.Header().Set("X-Error-Rows", strconv.Itoa(len(report.Rows)))
	w.WriteHeader(http.StatusOK)
	if err := services.WriteErrorReport(w, report, format); err != nil {
		if logger := composables.UseLogger(r.Context()); logger != nil {
			logger.WithError(err).Error("asptt.export.write_failed")
		}
	}
}

func (c *AspttAPIController) Rollback(w http.ResponseWriter, r *http.Request) {
	res, err := c.imports.Rollback(r.Context(), c.settings())
	if err != nil {
		writeServiceError(w, requestIDFrom(r), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *AspttAPIController) ListLogs(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, services.CodeInvalidParams, "limit must be an integer")
			return
		}
		limit = n
	}
	logs, err := c.imports.ListImportLogs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	type logsResponse struct {
		Logs any `json:"logs"`
	}
	writeJSON(w, http.StatusOK, logsResponse{Logs: logs})
}

func (c *AspttAPIController) Transition(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	id, ok := documentID(w, r, requestID)
	if !ok {
		return
	}
	res, err := c.reviews.Transition(r.Context(), id, review.Action(mux.Vars(r)["action"]))
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type bulkRequest struct {
	Action string  `json:"action"`
	IDs    []int64 `json:"ids"`
}

func (c *AspttAPIController) Bulk(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	var req bulkRequest
	if err := httpapi.DecodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, services.CodeInvalidParams, "invalid json body")
		return
	}
	res, err := c.reviews.Bulk(r.Context(), req.IDs, review.Action(req.Action))
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *AspttAPIController) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	id, ok := documentID(w, r, requestID)
	if !ok {
		return
	}
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	res, err := c.reviews.Delete(r.Context(), id, confirm)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *AspttAPIController) SetClub(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	id, ok := documentID(w, r, requestID)
	if !ok {
		return
	}
	var req services.RelinkRequest
	if err := httpapi.DecodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, services.CodeInvalidParams, "invalid json body")
		return
	}
	res, err := c.reviews.SetClub(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type aliasRequest struct {
	ClubID int64  `json:"club_id"`
	Alias  string `json:"alias"`
}

func (c *AspttAPIController) SaveAlias(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	var req aliasRequest
	if err := httpapi.DecodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, services.CodeInvalidParams, "invalid json body")
		return
	}
	res, err := c.imports.SaveAlias(r.Context(), req.ClubID, req.Alias)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func documentID(w http.ResponseWriter, r *http.Request, requestID string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeAPIError(w, http.StatusBadRequest, requestID, services.CodeInvalidParams, "document id is invalid")
		return 0, false
	}
	return id, true
}

func exportName(fileName string, format services.ExportFormat) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" || base == "." {
		base = "asptt"
	}
	return base + "_errors." + string(format)
}

func requestIDFrom(r *http.Request) string {
	if v, ok := composables.UseRequestID(r.Context()); ok {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Request-ID")); v != "" {
		return v
	}
	return uuid.NewString()
}

func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		writeAPIError(w, svcErr.Status, requestID, svcErr.Code, svcErr.Message)
		return
	}
	writeAPIError(w, http.StatusInternalServerError, requestID, services.CodeInternal, err.Error())
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string) {
	_ = httpapi.WriteError(w, status, requestID, code, message)
}

func writeJSON[T any](w http.ResponseWriter, status int, payload T) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
