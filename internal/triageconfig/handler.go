package triageconfig

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/devonjones/cortex-gateway/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// maxConfigBody bounds uploaded config documents.
const maxConfigBody = 1 << 20

// diffLineCap bounds the diff response; full documents are a download away.
const diffLineCap = 100

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrVersionNotFound, Status: http.StatusNotFound, Kind: httputil.KindNotFound},
	{Error: ErrNoActiveConfig, Status: http.StatusNotFound, Kind: httputil.KindNotFound},
	{Error: ErrEmptyConfig, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: ErrInvalidConfig, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
	{Error: ErrActorRequired, Status: http.StatusBadRequest, Kind: httputil.KindValidation},
}

// Handler handles HTTP requests for triage config management.
type Handler struct {
	service *Service
}

// NewHandler creates a new config handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers config routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/config", func(r chi.Router) {
		r.Get("/", h.GetActive)
		r.Post("/", h.Import)
		r.Put("/", h.Import)
		r.Get("/versions", h.ListVersions)
		r.Get("/versions/{version}", h.GetVersion)
		r.Post("/validate", h.Validate)
		r.Post("/rollback/{version}", h.Rollback)
		r.Get("/diff/{v1}/{v2}", h.Diff)
	})
}

// GetActive handles GET /config request. The active config is served as a
// YAML download.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	content, err := h.service.ActiveContent(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.YAML(w, http.StatusOK, "config.yaml", []byte(content))
}

// GetVersion handles GET /config/versions/{version} request.
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid version number")
		return
	}

	content, err := h.service.VersionContent(r.Context(), version)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.YAML(w, http.StatusOK, fmt.Sprintf("config-v%d.yaml", version), []byte(content))
}

// ListVersions handles GET /config/versions request.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", DefaultVersionLimit)
	offset := queryInt(r, "offset", 0)

	versions, total, err := h.service.ListVersions(r.Context(), limit, offset)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"versions": versions,
		"limit":    limit,
		"offset":   offset,
		"total":    total,
	})
}

// Import handles POST and PUT /config requests. The body is the raw YAML
// document; actor and notes ride on headers.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "failed to read body")
		return
	}
	if len(content) == 0 {
		httputil.HandleError(r.Context(), w, ErrEmptyConfig, errorMappings)
		return
	}

	createdBy := httputil.Actor(r, httputil.HeaderCreatedBy)
	var notes *string
	if n := r.Header.Get(httputil.HeaderNotes); n != "" {
		notes = &n
	}

	version, err := h.service.Import(r.Context(), content, createdBy, notes)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "config created",
		"version":    version,
		"created_by": createdBy,
		"notes":      notes,
	})
}

// Validate handles POST /config/validate request. Nothing is stored.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "failed to read body")
		return
	}

	stats, problems, err := h.service.Validate(content)
	if err != nil {
		httputil.JSON(w, http.StatusBadRequest, map[string]interface{}{
			"valid":  false,
			"errors": problems,
		})
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
		"stats": stats,
	})
}

// Rollback handles POST /config/rollback/{version} request.
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid version number")
		return
	}

	createdBy := httputil.Actor(r, httputil.HeaderCreatedBy)
	var notes *string
	if n := r.Header.Get(httputil.HeaderNotes); n != "" {
		notes = &n
	}

	newVersion, err := h.service.Rollback(r.Context(), version, createdBy, notes)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]interface{}{
		"message":          fmt.Sprintf("rolled back to version %d", version),
		"new_version":      newVersion,
		"rolled_back_from": version,
		"created_by":       createdBy,
	})
}

// Diff handles GET /config/diff/{v1}/{v2} request.
func (h *Handler) Diff(w http.ResponseWriter, r *http.Request) {
	v1, err1 := strconv.Atoi(chi.URLParam(r, "v1"))
	v2, err2 := strconv.Atoi(chi.URLParam(r, "v2"))
	if err1 != nil || err2 != nil {
		httputil.Error(w, http.StatusBadRequest, httputil.KindValidation, "invalid version number")
		return
	}

	diff, err := h.service.DiffVersions(r.Context(), v1, v2)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"v1": v1,
		"v2": v2,
		"stats": map[string]int{
			"lines_added":    len(diff.Added),
			"lines_removed":  len(diff.Removed),
			"total_lines_v1": diff.TotalLinesV1,
			"total_lines_v2": diff.TotalLinesV2,
		},
		"added":   capLines(diff.Added),
		"removed": capLines(diff.Removed),
	})
}

func capLines(lines []string) []string {
	if len(lines) > diffLineCap {
		return lines[:diffLineCap]
	}
	return lines
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
