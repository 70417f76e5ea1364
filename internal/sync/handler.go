package sync

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/devonjones/cortex-gateway/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrJobNotFound, Status: http.StatusNotFound, Kind: httputil.KindNotFound},
	{Error: ErrJobNotCancellable, Status: http.StatusBadRequest, Kind: httputil.KindInvalid},
	{Error: ErrWindowRequired, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: ErrConflictingWindows, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: ErrInvalidDays, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: ErrInvalidAfterDate, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
}

// Handler handles HTTP requests for Gmail sync backfill jobs.
type Handler struct {
	service *Service
}

// NewHandler creates a new sync handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers sync routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sync", func(r chi.Router) {
		r.Post("/backfill", h.Create)
		r.Get("/backfill", h.List)
		r.Get("/backfill/{id}", h.Get)
		r.Post("/backfill/{id}/cancel", h.Cancel)
	})
}

// CreateJobRequest represents the request body for creating a backfill job.
type CreateJobRequest struct {
	Days  *int   `json:"days"`
	After string `json:"after"`
}

// Create handles POST /sync/backfill request.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid json")
		return
	}

	job, err := h.service.Create(r.Context(), CreateRequest{Days: req.Days, After: req.After})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusCreated, job)
}

// List handles GET /sync/backfill request.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := JobFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  DefaultJobLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Limit = v
		}
	}

	jobs, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, err.Error())
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// Get handles GET /sync/backfill/{id} request.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, job)
}

// Cancel handles POST /sync/backfill/{id}/cancel request.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"id":     job.ID,
		"status": job.Status,
	})
}
