// Package sse serves the platform's live event stream over Server-Sent
// Events. Each connection registers a subscription with the event hub and
// relays every matched event as a "data: {json}" frame until the client
// disconnects.
package sse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tably-labs/tably/events"
)

// HeartbeatInterval is the interval between SSE heartbeat comments.
const HeartbeatInterval = 15 * time.Second

// sendBuffer is the per-connection event queue depth. Events beyond it are
// dropped for that connection rather than blocking the fan-out.
const sendBuffer = 64

// IdentityResolver maps a connection token to a subscriber identity.
// Implementations must degrade invalid tokens to the anonymous identity
// instead of failing.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (events.Identity, error)
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Hub      *events.Hub
	Resolver IdentityResolver

	// CookieName optionally names a session cookie to read the token from
	// when neither the query parameter nor the Authorization header carry
	// one.
	CookieName string

	Logger *slog.Logger
}

// Handler is the SSE connection adapter. A stream is never rejected for
// authentication reasons: connections without a valid token subscribe as
// anonymous clients and still receive the broadcast kinds.
type Handler struct {
	hub        *events.Hub
	resolver   IdentityResolver
	cookieName string
	logger     *slog.Logger
}

// NewHandler creates an SSE handler over the given hub.
func NewHandler(cfg HandlerConfig) *Handler {
	hub := cfg.Hub
	if hub == nil {
		hub = events.NewHub(events.HubConfig{Logger: cfg.Logger})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:        hub,
		resolver:   cfg.Resolver,
		cookieName: cfg.CookieName,
		logger:     logger,
	}
}

// ServeHTTP implements http.Handler. The first frame on every stream is the
// connection acknowledgment; afterwards the stream carries whatever the hub
// fans out to this subscription, with a ": ping" comment every heartbeat
// interval to keep intermediaries from closing the idle connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	identity := h.identify(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	deliverer := events.NewQueueDeliverer(sendBuffer)
	sub := h.hub.Register(identity.Subscription(deliverer))
	defer h.hub.Unregister(sub.ID)

	h.logger.Debug("sse stream opened",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"role", string(sub.Role),
	)
	defer h.logger.Debug("sse stream closed", "subscription_id", sub.ID)

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case e := <-deliverer.Events():
			data, err := e.Encode()
			if err != nil {
				h.logger.Error("encode stream event",
					"kind", string(e.Kind),
					"error", err,
				)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// identify resolves the request's token. Resolution failures are logged and
// the connection proceeds as anonymous.
func (h *Handler) identify(r *http.Request) events.Identity {
	if h.resolver == nil {
		return events.Anonymous()
	}
	identity, err := h.resolver.Resolve(r.Context(), h.token(r))
	if err != nil {
		h.logger.Warn("resolve stream identity", "error", err)
		return events.Anonymous()
	}
	return identity
}

// token extracts the session token from the query string, the Authorization
// header, or the session cookie, in that order.
func (h *Handler) token(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if h.cookieName != "" {
		if cookie, err := r.Cookie(h.cookieName); err == nil {
			return cookie.Value
		}
	}
	return ""
}

