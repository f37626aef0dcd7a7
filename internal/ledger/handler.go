package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dairyops/dairyops/internal/platform/httpx"
)

// Handler manages ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{customerID}/statement", h.statement)
	r.Get("/{customerID}/balance", h.balance)
	r.Post("/{customerID}/advance", h.advancePayment)
	r.Post("/sync-invoices", h.syncInvoices)
}

// AdvancePaymentRequest records an advance credit.
type AdvancePaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func customerParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	customerID, err := customerParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	entries, err := h.service.Statement(r.Context(), customerID)
	if err != nil {
		h.logger.Error("ledger statement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	customerID, err := customerParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	summary, err := h.service.CalculateBalance(r.Context(), customerID)
	if err != nil {
		h.logger.Error("ledger balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) advancePayment(w http.ResponseWriter, r *http.Request) {
	customerID, err := customerParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	var req AdvancePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.LogAdvancePayment(r.Context(), customerID, req.Amount)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("advance payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) syncInvoices(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SyncInvoices(r.Context())
	if err != nil {
		h.logger.Error("sync invoices to ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
