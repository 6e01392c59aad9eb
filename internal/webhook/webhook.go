// Package webhook authenticates platform webhook deliveries and hands the
// decoded event to a callback.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/drewdunne/prbounty/internal/metrics"
)

// maxBodyBytes bounds a delivery's payload.
const maxBodyBytes = 5 << 20

// ErrIgnored tells a handler to acknowledge a delivery it does not act on.
var ErrIgnored = errors.New("event ignored")

var (
	errMissingCredential = errors.New("missing credential")
	errBadCredential     = errors.New("invalid credential")
)

// handler is the shared delivery flow: read, authenticate, decode, act.
type handler[E any] struct {
	// verify authenticates the delivery before anything is decoded.
	verify func(h http.Header, body []byte) error
	decode func(h http.Header, body []byte) (*E, error)
	handle func(ctx context.Context, event *E) error
}

// ServeHTTP implements http.Handler.
func (h handler[E]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.WebhookReceived()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := h.verify(r.Header, body); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	event, err := h.decode(r.Header, body)
	if err != nil {
		http.Error(w, "failed to parse payload", http.StatusBadRequest)
		return
	}

	respond(w, h.handle(r.Context(), event))
}

// respond maps the callback result to a status. Ignored deliveries are
// acknowledged so the platform does not retry them.
func respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		metrics.WebhookProcessed()
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, ErrIgnored):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		http.Error(w, "failed to process event", http.StatusInternalServerError)
	}
}
