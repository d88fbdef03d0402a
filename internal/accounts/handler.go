package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the chart of accounts.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the accounts handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/deactivate", h.handleDeactivate)
}

type createAccountRequest struct {
	Code         string `json:"code" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Type         string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	CurrencyCode string `json:"currency_code" validate:"omitempty,len=3"`
}

type accountResponse struct {
	ID           int64   `json:"id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	ParentID     *int64  `json:"parent_id,omitempty"`
	Balance      float64 `json:"balance"`
	IsActive     bool    `json:"is_active"`
	IsSystem     bool    `json:"is_system"`
	CurrencyCode string  `json:"currency_code"`
	CreatedAt    string  `json:"created_at"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID: a.ID, Code: a.Code, Name: a.Name, Type: string(a.Type),
		ParentID: a.ParentID, Balance: a.Balance, IsActive: a.IsActive,
		IsSystem: a.IsSystem, CurrencyCode: a.CurrencyCode,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	acc, err := h.service.Create(r.Context(), CreateInput{
		Code:         req.Code,
		Name:         req.Name,
		Type:         AccountType(req.Type),
		CurrencyCode: req.CurrencyCode,
	}, httpx.Actor(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	accs, err := h.service.List(r.Context(), activeOnly)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accs))
	for _, a := range accs {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "account id must be numeric")
		return
	}
	acc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "account id must be numeric")
		return
	}
	if err := h.service.Deactivate(r.Context(), id, httpx.Actor(r)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrCodeTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrParentNotFound), errors.Is(err, ErrSystemAccount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Rejected", err.Error())
	default:
		h.logger.Error("accounts handler failure", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
