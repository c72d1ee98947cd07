package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/business-cards/internal/pkg/ctxlog"
)

// ErrorMapping binds a sentinel error to the status and message a client sees.
// An empty Message exposes the sentinel's own text.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// HandleError writes the first mapping that matches err.
// Unmapped errors become 500 with a generic message; the cause is only logged.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	logger := ctxlog.FromContext(ctx)

	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}

		msg := m.Message
		if msg == "" {
			msg = m.Error.Error()
		}
		if m.Status >= http.StatusInternalServerError {
			logger.Error("request failed", "error", err)
		} else {
			logger.Debug("request rejected", "status", m.Status, "error", err)
		}
		Error(w, m.Status, msg)
		return
	}

	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
