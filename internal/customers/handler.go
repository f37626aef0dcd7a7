package customers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dairyops/dairyops/internal/platform/httpx"
)

// Handler manages customer endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listCustomers)
	r.Post("/", h.createCustomer)
	r.Get("/{id}", h.getCustomer)
	r.Patch("/{id}", h.updateCustomer)

	r.Get("/{id}/subscriptions", h.listSubscriptions)
	r.Post("/{id}/subscriptions", h.addSubscription)
	r.Delete("/{id}/subscriptions/{lineID}", h.cancelSubscription)

	r.Get("/{id}/vacations", h.listVacations)
	r.Post("/{id}/vacations", h.addVacation)
	r.Delete("/{id}/vacations/{vacationID}", h.cancelVacation)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidSubscriptionType),
		errors.Is(err, ErrInvalidVacation),
		errors.Is(err, ErrScheduleRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	list, err := h.service.ListCustomers(r.Context(), activeOnly)
	if err != nil {
		h.respondServiceError(w, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": list})
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer, err := h.service.CreateCustomer(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	var req UpdateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateCustomer(r.Context(), id, req); err != nil {
		h.respondServiceError(w, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	lines, err := h.service.ListSubscriptions(r.Context(), id, activeOnly)
	if err != nil {
		h.respondServiceError(w, "list subscriptions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"subscriptions": lines})
}

func (h *Handler) addSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	var req AddSubscriptionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	line, err := h.service.AddSubscription(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, "add subscription", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

func (h *Handler) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	lineID, err := pathID(r, "lineID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "line id must be numeric")
		return
	}
	if err := h.service.CancelSubscription(r.Context(), id, lineID); err != nil {
		h.respondServiceError(w, "cancel subscription", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (h *Handler) listVacations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	vacations, err := h.service.ListVacations(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "list vacations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vacations": vacations})
}

func (h *Handler) addVacation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	var req AddVacationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	vacation, err := h.service.AddVacation(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, "add vacation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, vacation)
}

func (h *Handler) cancelVacation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "customer id must be numeric")
		return
	}
	vacationID, err := pathID(r, "vacationID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "vacation id must be numeric")
		return
	}
	if err := h.service.CancelVacation(r.Context(), id, vacationID); err != nil {
		h.respondServiceError(w, "cancel vacation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cancelled": true})
}
