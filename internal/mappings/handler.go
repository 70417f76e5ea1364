package mappings

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// DefaultHistoryLimit bounds the audit trail response.
const DefaultHistoryLimit = 100

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrMappingNotFound, Status: http.StatusNotFound, Kind: httputil.KindNotFound},
	{Error: ErrMappingExists, Status: http.StatusConflict, Kind: httputil.KindConflict},
	{Error: ErrInvalidMappingType, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: ErrActorRequired, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
}

// Handler handles HTTP requests for email mappings.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new mappings handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers mapping routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/mappings", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Get("/history/{email}", h.History)
	})
}

// CreateMappingRequest represents the request body for creating a mapping.
type CreateMappingRequest struct {
	MappingType  string `json:"mapping_type" validate:"required,oneof=priority fallback"`
	EmailAddress string `json:"email_address" validate:"required,email"`
	Label        string `json:"label" validate:"required,min=1,max=255"`
	Archive      *bool  `json:"archive"`
	MarkRead     *bool  `json:"mark_read"`
}

// UpdateMappingRequest represents the request body for updating a mapping.
type UpdateMappingRequest struct {
	MappingType  string `json:"mapping_type" validate:"required,oneof=priority fallback"`
	EmailAddress string `json:"email_address" validate:"required,email"`
	Label        string `json:"label" validate:"required,min=1,max=255"`
	Archive      *bool  `json:"archive"`
	MarkRead     *bool  `json:"mark_read"`
}

// List handles GET /mappings request.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		MappingType:    r.URL.Query().Get("type"),
		EmailAddress:   r.URL.Query().Get("email"),
		IncludeDeleted: r.URL.Query().Get("include_deleted") == "true",
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"mappings": result,
		"count":    len(result),
	})
}

// Create handles POST /mappings request. The X-Created-By header identifies
// the actor for the audit trail.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	mapping := &domain.EmailMapping{
		MappingType:  domain.MappingType(req.MappingType),
		EmailAddress: req.EmailAddress,
		Label:        req.Label,
		Archive:      req.Archive,
		MarkRead:     req.MarkRead,
		CreatedBy:    httputil.Actor(r, httputil.HeaderCreatedBy),
	}

	created, err := h.service.Create(r.Context(), mapping)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusCreated, created)
}

// Update handles PUT /mappings/{id} request.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid mapping id")
		return
	}

	var req UpdateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	actor := httputil.Actor(r, httputil.HeaderUpdatedBy)

	updated, err := h.service.Update(r.Context(), id, func(m *domain.EmailMapping) error {
		m.MappingType = domain.MappingType(req.MappingType)
		m.EmailAddress = req.EmailAddress
		m.Label = req.Label
		m.Archive = req.Archive
		m.MarkRead = req.MarkRead
		m.UpdatedBy = &actor
		return nil
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /mappings/{id} request. Soft delete: the row stays
// for the audit trail, uniqueness frees up immediately.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid mapping id")
		return
	}

	if err := h.service.Delete(r.Context(), id, httputil.Actor(r, httputil.HeaderUpdatedBy)); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /mappings/history/{email} request.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	entries, err := h.service.History(r.Context(), email, DefaultHistoryLimit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"email":   email,
		"history": entries,
		"count":   len(entries),
	})
}
