package triage

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/devonjones/cortex-gateway/internal/pkg/httputil"
	"github.com/devonjones/cortex-gateway/internal/queue"
	"github.com/go-chi/chi/v5"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: queue.ErrNoFilter, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: queue.ErrConflictingFilters, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: queue.ErrInvalidDays, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
}

// Handler handles HTTP requests for the triage module.
type Handler struct {
	service *Service
}

// NewHandler creates a new triage handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers triage routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/triage", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Post("/rerun", h.Rerun)
		r.Get("/classifications", h.ListClassifications)
	})
}

// Stats handles GET /triage/stats request.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// RerunHTTPRequest represents the request body for POST /triage/rerun.
type RerunHTTPRequest struct {
	GmailIDs []string `json:"gmail_ids"`
	Senders  []string `json:"senders"`
	Label    string   `json:"label"`
	Days     int      `json:"days"`
	Force    bool     `json:"force"`
	Priority *int     `json:"priority"`
}

// Rerun handles POST /triage/rerun request.
func (h *Handler) Rerun(w http.ResponseWriter, r *http.Request) {
	var req RerunHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid json")
		return
	}

	// drop empty sender patterns instead of matching nothing
	senders := make([]string, 0, len(req.Senders))
	for _, s := range req.Senders {
		if s != "" {
			senders = append(senders, s)
		}
	}

	count, err := h.service.Rerun(r.Context(), RerunRequest{
		GmailIDs: req.GmailIDs,
		Senders:  senders,
		Label:    req.Label,
		Days:     req.Days,
		Force:    req.Force,
		Priority: req.Priority,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"count":     count,
		"gmail_ids": req.GmailIDs,
		"senders":   senders,
		"label":     req.Label,
		"force":     req.Force,
	})
}

// ListClassifications handles GET /triage/classifications request.
func (h *Handler) ListClassifications(w http.ResponseWriter, r *http.Request) {
	filter := ClassificationFilter{
		Label:  r.URL.Query().Get("label"),
		Action: r.URL.Query().Get("action"),
		Limit:  queryInt(r, "limit", DefaultClassificationLimit),
		Offset: queryInt(r, "offset", 0),
	}
	if filter.Limit < 1 || filter.Limit > MaxClassificationLimit {
		filter.Limit = DefaultClassificationLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	classifications, err := h.service.ListClassifications(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"classifications": classifications,
		"count":           len(classifications),
		"limit":           filter.Limit,
		"offset":          filter.Offset,
	})
}

func queryInt(r *http.Request, name string, def int) int {
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
