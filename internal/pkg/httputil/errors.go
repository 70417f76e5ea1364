package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/devonjones/cortex-gateway/internal/pkg/ctxlog"
	"github.com/devonjones/cortex-gateway/internal/pkg/postgres"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Kind    ErrorKind
	Message string // if empty, uses err.Error()
}

// HandleError maps a domain error to an HTTP response using provided mappings.
// If no mapping matches, logs the error and returns 500 Internal Server Error
// with a generic message; internal detail never reaches the caller.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			msg := m.Message
			if msg == "" {
				msg = err.Error()
			}
			Error(w, m.Status, m.Kind, msg)
			return
		}
	}
	if errors.Is(err, postgres.ErrPoolExhausted) {
		ctxlog.FromContext(ctx).Warn("connection pool exhausted", "error", err)
		Error(w, http.StatusServiceUnavailable, KindUnavailable, "database busy")
		return
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, KindInternal, "internal error")
}
