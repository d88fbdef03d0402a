package guard

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for protected deletion and recovery.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the guard handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers guard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/check/{entity}/{id}", h.handleCheck)
	r.Delete("/{entity}/{id}", h.handleDelete)
	r.Get("/deletion-log", h.handleListLog)
	r.Post("/deletion-log/{logID}/recover", h.handleRecover)
}

type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message,omitempty"`
}

type logEntryResponse struct {
	ID            string  `json:"id"`
	TableName     string  `json:"table_name"`
	RecordID      int64   `json:"record_id"`
	DeletedBy     int64   `json:"deleted_by"`
	DeletedAt     string  `json:"deleted_at"`
	IsRecoverable bool    `json:"is_recoverable"`
	RecoveredAt   *string `json:"recovered_at,omitempty"`
}

func toLogResponse(e DeletionLogEntry) logEntryResponse {
	out := logEntryResponse{
		ID: e.ID.String(), TableName: e.TableName, RecordID: e.RecordID,
		DeletedBy: e.DeletedBy, DeletedAt: e.DeletedAt.Format(time.RFC3339),
		IsRecoverable: e.IsRecoverable,
	}
	if e.RecoveredAt != nil {
		s := e.RecoveredAt.Format(time.RFC3339)
		out.RecoveredAt = &s
	}
	return out
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "record id must be numeric")
		return
	}
	allowed, violation, err := h.service.Check(r.Context(), entity, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := checkResponse{Allowed: allowed}
	if violation != nil {
		resp.Rule = violation.Rule
		resp.Message = violation.Message
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "record id must be numeric")
		return
	}
	entry, err := h.service.AuthorizeDelete(r.Context(), entity, id, httpx.Actor(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLogResponse(entry))
}

func (h *Handler) handleListLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.ListLog(r.Context(), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]logEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toLogResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleRecover(w http.ResponseWriter, r *http.Request) {
	logID, err := uuid.Parse(chi.URLParam(r, "logID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "log id must be a uuid")
		return
	}
	entry, err := h.service.Recover(r.Context(), logID, httpx.Actor(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLogResponse(entry))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var violation *Violation
	switch {
	case errors.As(err, &violation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Deletion Rejected", violation.Message)
	case errors.Is(err, ErrUnknownEntity):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Entity", err.Error())
	case errors.Is(err, ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotRecoverable):
		httpx.Problem(w, http.StatusConflict, "Not Recoverable", err.Error())
	default:
		h.logger.Error("guard handler failure", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
