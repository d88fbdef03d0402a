package sequence

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes read access to document sequences.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the sequence handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sequence routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
}

type sequenceResponse struct {
	DocumentType  string `json:"document_type"`
	FiscalYear    int    `json:"fiscal_year"`
	CurrentNumber int64  `json:"current_number"`
	Prefix        string `json:"prefix"`
	FormatPattern string `json:"format_pattern"`
	UpdatedAt     string `json:"updated_at"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	seqs, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]sequenceResponse, 0, len(seqs))
	for _, s := range seqs {
		out = append(out, sequenceResponse{
			DocumentType:  s.DocumentType,
			FiscalYear:    s.FiscalYear,
			CurrentNumber: s.CurrentNumber,
			Prefix:        s.Prefix,
			FormatPattern: s.FormatPattern,
			UpdatedAt:     s.UpdatedAt.Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotConfigured) {
		httpx.Problem(w, http.StatusNotFound, "Not Configured", err.Error())
		return
	}
	h.logger.Error("sequence handler failure", slog.Any("error", err))
	httpx.RespondError(w, err)
}
