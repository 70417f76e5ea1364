package queue

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Pagination constants.
const (
	DefaultFailedLimit = 50
	MaxFailedLimit     = 500
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNoFilter, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: ErrConflictingFilters, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: ErrInvalidQueue, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: ErrInvalidDays, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: ErrJobNotFound, Status: http.StatusNotFound, Kind: httputil.KindNotFound},
	{Error: ErrJobNotFailed, Status: http.StatusBadRequest, Kind: httputil.KindInvalid},
	{Error: ErrActiveDuplicate, Status: http.StatusConflict, Kind: httputil.KindConflict},
}

// Handler handles HTTP requests for queue management and backfill triggers.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new queue handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers queue management routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/queue", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Get("/failed", h.ListFailed)
		r.Post("/failed/retry-all", h.RetryAll)
		r.Post("/failed/{id}/retry", h.Retry)
		r.Delete("/failed/{id}", h.Delete)
	})

	r.Route("/backfill", func(r chi.Router) {
		r.Post("/", h.StartBackfill)
		r.Get("/status", h.BackfillStatus)
		r.Post("/cancel", h.CancelBackfill)
	})
}

// Stats handles GET /queue/stats request.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"queues": stats})
}

// ListFailed handles GET /queue/failed request.
func (h *Handler) ListFailed(w http.ResponseWriter, r *http.Request) {
	queueName := r.URL.Query().Get("queue")
	if queueName != "" && !domain.QueueName(queueName).IsValid() {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "unknown queue: "+queueName)
		return
	}

	limit := parseIntParam(r, "limit", DefaultFailedLimit)
	if limit < 1 || limit > MaxFailedLimit {
		limit = DefaultFailedLimit
	}
	offset := parseIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	items, err := h.service.ListFailed(r.Context(), queueName, limit, offset)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

// Retry handles POST /queue/failed/{id}/retry request.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid job id")
		return
	}

	item, err := h.service.Retry(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// RetryAll handles POST /queue/failed/retry-all request.
func (h *Handler) RetryAll(w http.ResponseWriter, r *http.Request) {
	queueName := r.URL.Query().Get("queue")
	if queueName == "" {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "queue parameter is required")
		return
	}

	count, err := h.service.RetryAll(r.Context(), domain.QueueName(queueName))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"retried": count})
}

// Delete handles DELETE /queue/failed/{id} request.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid job id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartBackfillRequest represents the request body for starting a backfill.
type StartBackfillRequest struct {
	Queue        string `json:"queue" validate:"required"`
	Days         int    `json:"days" validate:"omitempty,min=0,max=3650"`
	GmailLabelID string `json:"gmail_label_id"`
	Force        bool   `json:"force"`
	Priority     *int   `json:"priority"`
}

// StartBackfill handles POST /backfill request. It re-enqueues already
// synced messages from a trailing date window.
func (h *Handler) StartBackfill(w http.ResponseWriter, r *http.Request) {
	var req StartBackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	enqueue := EnqueueRequest{
		Queue:        domain.QueueName(req.Queue),
		Trigger:      TriggerBackfill,
		Days:         req.Days,
		GmailLabelID: req.GmailLabelID,
		Force:        req.Force,
		Priority:     req.Priority,
	}

	count, err := h.service.Enqueue(r.Context(), enqueue)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusAccepted, map[string]interface{}{
		"queue":    req.Queue,
		"enqueued": count,
		"days":     enqueue.effectiveDays(),
	})
}

// BackfillStatus handles GET /backfill/status request.
func (h *Handler) BackfillStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.BackfillStats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"queues": stats})
}

// CancelBackfillRequest represents the request body for cancelling a backfill.
type CancelBackfillRequest struct {
	Queue string `json:"queue" validate:"required"`
}

// CancelBackfill handles POST /backfill/cancel request.
func (h *Handler) CancelBackfill(w http.ResponseWriter, r *http.Request) {
	var req CancelBackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	count, err := h.service.CancelBackfill(r.Context(), domain.QueueName(req.Queue))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"queue":     req.Queue,
		"cancelled": count,
	})
}

func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
