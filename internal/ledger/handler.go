package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for journal entries.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers journal entry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handlePost)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/reverse", h.handleReverse)
}

type lineRequest struct {
	AccountID   int64   `json:"account_id" validate:"required"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description"`
}

type postEntryRequest struct {
	Date         string        `json:"date" validate:"required,datetime=2006-01-02"`
	Description  string        `json:"description" validate:"required"`
	DocumentType string        `json:"document_type"`
	Lines        []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reverseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type lineResponse struct {
	ID          int64   `json:"id"`
	AccountID   int64   `json:"account_id"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description,omitempty"`
}

type entryResponse struct {
	ID             int64          `json:"id"`
	EntryNumber    string         `json:"entry_number"`
	DocumentType   string         `json:"document_type"`
	Date           string         `json:"date"`
	Description    string         `json:"description"`
	Status         string         `json:"status"`
	TotalDebit     float64        `json:"total_debit"`
	TotalCredit    float64        `json:"total_credit"`
	IsOpening      bool           `json:"is_opening"`
	IsDepreciation bool           `json:"is_depreciation"`
	FiscalYear     int            `json:"fiscal_year"`
	ReversalOfID   *int64         `json:"reversal_of_id,omitempty"`
	ReversalReason *string        `json:"reversal_reason,omitempty"`
	Lines          []lineResponse `json:"lines,omitempty"`
}

func toEntryResponse(e JournalEntry) entryResponse {
	out := entryResponse{
		ID: e.ID, EntryNumber: e.EntryNumber, DocumentType: e.DocumentType,
		Date: e.Date.Format("2006-01-02"), Description: e.Description,
		Status: string(e.Status), TotalDebit: e.TotalDebit, TotalCredit: e.TotalCredit,
		IsOpening: e.IsOpening, IsDepreciation: e.IsDepreciation, FiscalYear: e.FiscalYear,
		ReversalOfID: e.ReversalOfID, ReversalReason: e.ReversalReason,
	}
	for _, l := range e.Lines {
		out.Lines = append(out.Lines, lineResponse{
			ID: l.ID, AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Description: l.Description,
		})
	}
	return out
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	input := EntryInput{
		Date:         date,
		Description:  req.Description,
		DocumentType: req.DocumentType,
		PostedBy:     httpx.Actor(r),
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Description: l.Description,
		})
	}
	entry, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "entry id must be numeric")
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Reverse(r.Context(), ReverseInput{EntryID: id, Reason: req.Reason, ActorID: httpx.Actor(r)})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "entry id must be numeric")
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListEntries(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unbalanced Entry", err.Error())
	case errors.Is(err, ErrAccountInactive), errors.Is(err, ErrPeriodClosed), errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Rejected", err.Error())
	case errors.Is(err, ErrAlreadyReversed), errors.Is(err, ErrOpeningEntryExists):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("ledger handler failure", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
