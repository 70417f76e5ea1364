package gmailauth

import (
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/devonjones/cortex-gateway/internal/pkg/ctxlog"
	"github.com/devonjones/cortex-gateway/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNoToken, Status: http.StatusNotFound, Kind: httputil.KindNotFound},
	{Error: ErrNoRefreshToken, Status: http.StatusBadRequest, Kind: httputil.KindInvalid},
}

// Handler serves the OAuth token management endpoints.
type Handler struct {
	store       *Store
	states      *stateStore
	redirectURL string
}

// NewHandler creates an OAuth handler. redirectURL must be the externally
// reachable /oauth/callback address registered with the OAuth client.
func NewHandler(store *Store, redirectURL string, stateTTL time.Duration) *Handler {
	return &Handler{
		store:       store,
		states:      newStateStore(stateTTL),
		redirectURL: redirectURL,
	}
}

// RegisterRoutes registers OAuth routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/oauth", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/refresh", h.Refresh)
		r.Get("/start", h.Start)
		r.Get("/callback", h.Callback)
	})
}

// Status handles GET /oauth/status request.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	tf, err := h.store.Load()
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	var expiry interface{} = "unknown"
	if tf.Expiry != nil {
		expiry = tf.Expiry.Format(time.RFC3339)
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"token_path":        h.store.Path(),
		"has_refresh_token": tf.RefreshToken != "",
		"expiry":            expiry,
		"scopes":            tf.Scopes,
		"actions": map[string]string{
			"refresh": "/oauth/refresh",
			"new":     "/oauth/start",
		},
	})
}

// Refresh handles POST /oauth/refresh request: a non-interactive refresh
// using the stored refresh token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	tf, err := h.store.Load()
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if tf.RefreshToken == "" {
		httputil.HandleError(r.Context(), w, ErrNoRefreshToken, errorMappings)
		return
	}

	cfg := tf.OAuthConfig(h.redirectURL)
	tok, err := cfg.TokenSource(r.Context(), tf.OAuth2Token()).Token()
	if err != nil {
		ctxlog.FromContext(r.Context()).Warn("token refresh failed", "error", err)
		httputil.Error(w, http.StatusBadGateway, httputil.KindUnavailable,
			"token refresh failed; the refresh token may be revoked")
		return
	}

	if err := h.store.Update(tok); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	ctxlog.FromContext(r.Context()).Info("refreshed gmail token", "expiry", tok.Expiry)
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "token refreshed",
		"expiry":  tok.Expiry.Format(time.RFC3339),
	})
}

// Start handles GET /oauth/start request: redirects to the Google consent
// screen. Offline access with forced consent so a refresh token comes back.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	tf, err := h.store.Load()
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	state, err := h.states.Issue()
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, httputil.KindInternal, "failed to issue state")
		return
	}

	url := tf.OAuthConfig(h.redirectURL).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)

	ctxlog.FromContext(r.Context()).Info("starting oauth flow", "redirect_url", h.redirectURL)
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback handles GET /oauth/callback request from Google.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" || !h.states.Consume(state) {
		h.renderPage(w, http.StatusBadRequest, "Authorization Failed",
			"Invalid or expired state parameter. Start the flow again from /oauth/start.")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.renderPage(w, http.StatusBadRequest, "Authorization Failed",
			"Missing authorization code in callback.")
		return
	}

	tf, err := h.store.Load()
	if err != nil {
		h.renderPage(w, http.StatusInternalServerError, "Authorization Failed",
			"Token file with client credentials not found.")
		return
	}

	tok, err := tf.OAuthConfig(h.redirectURL).Exchange(r.Context(), code)
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("code exchange failed", "error", err)
		h.renderPage(w, http.StatusBadGateway, "Authorization Failed",
			"Exchanging the authorization code failed.")
		return
	}

	if err := h.store.Update(tok); err != nil {
		ctxlog.FromContext(r.Context()).Error("token save failed", "error", err)
		h.renderPage(w, http.StatusInternalServerError, "Authorization Failed",
			"Saving the new token failed.")
		return
	}

	ctxlog.FromContext(r.Context()).Info("oauth flow completed", "expiry", tok.Expiry)
	h.renderPage(w, http.StatusOK, "Authorization Successful",
		fmt.Sprintf("Gmail token saved. Expires %s. You can close this window and restart the sync worker.",
			tok.Expiry.Format(time.RFC3339)))
}

// renderPage writes the minimal human-facing result page for the browser
// half of the flow.
func (h *Handler) renderPage(w http.ResponseWriter, status int, heading, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<html>
<head><title>Gmail OAuth</title></head>
<body style="font-family: sans-serif; max-width: 600px; margin: 50px auto;">
<h1>%s</h1>
<p>%s</p>
<p><a href="/oauth/status">Token status</a></p>
</body>
</html>`, html.EscapeString(heading), html.EscapeString(message))
}
