package cattle

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dairyops/dairyops/internal/platform/httpx"
)

// Handler manages herd endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers herd routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listCattle)
	r.Post("/", h.createCattle)
	r.Get("/{cattleID}", h.getCattle)
	r.Patch("/{cattleID}", h.updateCattle)
	r.Get("/{cattleID}/breeding", h.listBreeding)
	r.Post("/{cattleID}/breeding", h.addBreeding)
	r.Get("/{cattleID}/production", h.listProduction)
	r.Post("/{cattleID}/production", h.recordProduction)
	r.Post("/status/run", h.runStatusRules)
}

func cattleID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "cattleID"), 10, 64)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "cattle not found")
	case errors.Is(err, ErrDuplicateTag):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidDate):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("cattle request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) listCattle(w http.ResponseWriter, r *http.Request) {
	herd, err := h.service.List(r.Context(), Status(r.URL.Query().Get("status")))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cattle": herd})
}

func (h *Handler) createCattle(w http.ResponseWriter, r *http.Request) {
	var req CreateCattleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) getCattle(w http.ResponseWriter, r *http.Request) {
	id, err := cattleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "cattle ID must be numeric")
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) updateCattle(w http.ResponseWriter, r *http.Request) {
	id, err := cattleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "cattle ID must be numeric")
		return
	}
	var req UpdateCattleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) listBreeding(w http.ResponseWriter, r *http.Request) {
	id, err := cattleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "cattle ID must be numeric")
		return
	}
	records, err := h.service.ListBreedingRecords(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) addBreeding(w http.ResponseWriter, r *http.Request) {
	id, err := cattleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "cattle ID must be numeric")
		return
	}
	var req BreedingRecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rec, err := h.service.AddBreedingRecord(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) listProduction(w http.ResponseWriter, r *http.Request) {
	id, err := cattleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "cattle ID must be numeric")
		return
	}
	now := time.Now().UTC()
	from := now.AddDate(0, -1, 0)
	to := now
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.ParseInLocation("2006-01-02", v, time.UTC); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from must be YYYY-MM-DD")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.ParseInLocation("2006-01-02", v, time.UTC); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "to must be YYYY-MM-DD")
			return
		}
	}
	yields, err := h.service.ListProduction(r.Context(), id, from, to)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"production": yields})
}

func (h *Handler) recordProduction(w http.ResponseWriter, r *http.Request) {
	id, err := cattleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "cattle ID must be numeric")
		return
	}
	var req ProductionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.RecordProduction(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) runStatusRules(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunStatusRules(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
