package assets

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for fixed assets and depreciation.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the assets handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/schedule", h.handleGenerateSchedule)
	r.Get("/{id}/schedule", h.handleListSchedule)
	r.Post("/depreciation/run", h.handleProcessDue)
}

type createAssetRequest struct {
	Code                 string  `json:"code" validate:"required"`
	Name                 string  `json:"name" validate:"required"`
	PurchaseCost         float64 `json:"purchase_cost" validate:"required,gt=0"`
	SalvageValue         float64 `json:"salvage_value" validate:"gte=0"`
	UsefulLifeYears      int     `json:"useful_life_years" validate:"required,gte=1"`
	Method               string  `json:"method" validate:"required,oneof=STRAIGHT_LINE DECLINING_BALANCE"`
	PurchaseDate         string  `json:"purchase_date" validate:"required,datetime=2006-01-02"`
	ExpenseAccountID     int64   `json:"expense_account_id" validate:"required"`
	AccumulatedAccountID int64   `json:"accumulated_account_id" validate:"required"`
}

type runRequest struct {
	AsOf string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

type assetResponse struct {
	ID                   int64   `json:"id"`
	Code                 string  `json:"code"`
	Name                 string  `json:"name"`
	PurchaseCost         float64 `json:"purchase_cost"`
	SalvageValue         float64 `json:"salvage_value"`
	UsefulLifeYears      int     `json:"useful_life_years"`
	Method               string  `json:"method"`
	PurchaseDate         string  `json:"purchase_date"`
	Status               string  `json:"status"`
	ExpenseAccountID     int64   `json:"expense_account_id"`
	AccumulatedAccountID int64   `json:"accumulated_account_id"`
}

type scheduleResponse struct {
	ID             int64   `json:"id"`
	ScheduleDate   string  `json:"schedule_date"`
	Amount         float64 `json:"amount"`
	Accumulated    float64 `json:"accumulated"`
	BookValue      float64 `json:"book_value"`
	Status         string  `json:"status"`
	JournalEntryID *int64  `json:"journal_entry_id,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

func toAssetResponse(a FixedAsset) assetResponse {
	return assetResponse{
		ID: a.ID, Code: a.Code, Name: a.Name,
		PurchaseCost: a.PurchaseCost, SalvageValue: a.SalvageValue,
		UsefulLifeYears: a.UsefulLifeYears, Method: string(a.Method),
		PurchaseDate: a.PurchaseDate.Format("2006-01-02"), Status: string(a.Status),
		ExpenseAccountID: a.ExpenseAccountID, AccumulatedAccountID: a.AccumulatedAccountID,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	purchaseDate, _ := time.Parse("2006-01-02", req.PurchaseDate)
	asset, err := h.service.Create(r.Context(), CreateInput{
		Code:                 req.Code,
		Name:                 req.Name,
		PurchaseCost:         req.PurchaseCost,
		SalvageValue:         req.SalvageValue,
		UsefulLifeYears:      req.UsefulLifeYears,
		Method:               DepreciationMethod(req.Method),
		PurchaseDate:         purchaseDate,
		ExpenseAccountID:     req.ExpenseAccountID,
		AccumulatedAccountID: req.AccumulatedAccountID,
	}, httpx.Actor(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAssetResponse(asset))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	assets, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "asset id must be numeric")
		return
	}
	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssetResponse(asset))
}

func (h *Handler) handleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "asset id must be numeric")
		return
	}
	rows, err := h.service.GenerateSchedule(r.Context(), id, httpx.Actor(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"rows": rows})
}

func (h *Handler) handleListSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Path", "asset id must be numeric")
		return
	}
	rows, err := h.service.Schedule(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]scheduleResponse, 0, len(rows))
	for _, s := range rows {
		out = append(out, scheduleResponse{
			ID: s.ID, ScheduleDate: s.ScheduleDate.Format("2006-01-02"),
			Amount: s.Amount, Accumulated: s.Accumulated, BookValue: s.BookValue,
			Status: string(s.Status), JournalEntryID: s.JournalEntryID, Notes: s.Notes,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleProcessDue(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	asOf := time.Now()
	if req.AsOf != "" {
		asOf, _ = time.Parse("2006-01-02", req.AsOf)
	}
	result, err := h.service.ProcessDue(r.Context(), asOf, httpx.Actor(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAssetNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrRunInProgress):
		httpx.Problem(w, http.StatusConflict, "Run In Progress", err.Error())
	default:
		h.logger.Error("assets handler failure", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
