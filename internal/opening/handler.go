package opening

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes the opening entry endpoint.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the opening handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers opening routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
}

type createRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	entry, err := h.service.CreateOpeningEntry(r.Context(), date, httpx.Actor(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":           entry.ID,
		"entry_number": entry.EntryNumber,
		"total_debit":  entry.TotalDebit,
		"total_credit": entry.TotalCredit,
		"lines":        len(entry.Lines),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrOpeningEntryExists):
		httpx.Problem(w, http.StatusConflict, "Opening Entry Exists", err.Error())
	case errors.Is(err, ledger.ErrTooFewLines):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Nothing To Post", "no account carries an opening balance")
	default:
		h.logger.Error("opening handler failure", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
