package emails

import (
	"net/http"
	"strconv"

	"github.com/devonjones/cortex-gateway/internal/bodystore"
	"github.com/devonjones/cortex-gateway/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrEmailNotFound, Status: http.StatusNotFound, Kind: httputil.KindNotFound},
	{Error: ErrBodyNotFound, Status: http.StatusNotFound, Kind: httputil.KindNotFound},
	{Error: bodystore.ErrUnavailable, Status: http.StatusBadGateway, Kind: httputil.KindUnavailable, Message: "body store unavailable"},
}

// Handler handles HTTP requests for the emails module.
type Handler struct {
	service *Service
}

// NewHandler creates a new emails handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers email browsing routes. Fixed segments come before
// the gmail_id wildcard so /stats is not swallowed by it.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/emails", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/stats", h.Stats)
		r.Get("/by-label/{labelID}", h.ListByLabel)
		r.Get("/sender/{fromAddr}/classifications", h.SenderClassifications)
		r.Get("/classifications/distribution", h.ClassificationDistribution)
		r.Get("/uncategorized/top-senders", h.UncategorizedTopSenders)
		r.Get("/{gmailID}", h.Get)
		r.Get("/{gmailID}/body", h.GetBody)
		r.Get("/{gmailID}/text", h.GetText)
	})
}

// List handles GET /emails request.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Label:  r.URL.Query().Get("label"),
		Limit:  clamp(queryInt(r, "limit", DefaultListLimit), DefaultListLimit, MaxListLimit),
		Offset: max(queryInt(r, "offset", 0), 0),
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"emails": result,
		"count":  len(result),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Get handles GET /emails/{gmailID} request.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "gmailID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// GetBody handles GET /emails/{gmailID}/body request.
func (h *Handler) GetBody(w http.ResponseWriter, r *http.Request) {
	body, err := h.service.GetBody(r.Context(), chi.URLParam(r, "gmailID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, body)
}

// GetText handles GET /emails/{gmailID}/text request.
func (h *Handler) GetText(w http.ResponseWriter, r *http.Request) {
	gmailID := chi.URLParam(r, "gmailID")

	text, err := h.service.GetText(r.Context(), gmailID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{
		"gmail_id": gmailID,
		"text":     text,
	})
}

// Stats handles GET /emails/stats request.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// ListByLabel handles GET /emails/by-label/{labelID} request.
func (h *Handler) ListByLabel(w http.ResponseWriter, r *http.Request) {
	limit := clamp(queryInt(r, "limit", DefaultListLimit), DefaultListLimit, MaxListLimit)
	offset := max(queryInt(r, "offset", 0), 0)

	result, err := h.service.ListByLabel(r.Context(), chi.URLParam(r, "labelID"), limit, offset)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"label":  result.Label,
		"emails": result.Emails,
		"count":  len(result.Emails),
		"limit":  limit,
		"offset": offset,
	})
}

// SenderClassifications handles GET /emails/sender/{fromAddr}/classifications
// request.
func (h *Handler) SenderClassifications(w http.ResponseWriter, r *http.Request) {
	fromAddr := chi.URLParam(r, "fromAddr")

	result, err := h.service.SenderClassifications(r.Context(), fromAddr)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	var total int64
	for _, row := range result {
		total += row.Count
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"from_addr":       fromAddr,
		"classifications": result,
		"total":           total,
	})
}

// ClassificationDistribution handles GET /emails/classifications/distribution
// request.
func (h *Handler) ClassificationDistribution(w http.ResponseWriter, r *http.Request) {
	limit := clamp(queryInt(r, "limit", DefaultDistributionLimit), DefaultDistributionLimit, MaxDistributionLimit)

	result, err := h.service.ClassificationDistribution(r.Context(), limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"labels": result,
		"count":  len(result),
		"limit":  limit,
	})
}

// UncategorizedTopSenders handles GET /emails/uncategorized/top-senders
// request.
func (h *Handler) UncategorizedTopSenders(w http.ResponseWriter, r *http.Request) {
	limit := clamp(queryInt(r, "limit", DefaultTopSendersLimit), DefaultTopSendersLimit, MaxTopSendersLimit)

	result, err := h.service.UncategorizedTopSenders(r.Context(), r.URL.Query().Get("label"), limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"senders": result,
		"count":   len(result),
		"limit":   limit,
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

func clamp(v, def, maxVal int) int {
	if v < 1 || v > maxVal {
		return def
	}
	return v
}
