// Package ws serves the platform's live event stream over WebSocket. It is
// the second connection adapter next to the SSE one; both feed from the
// same event hub and speak the same JSON frame format.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tably-labs/tably/events"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxInboundBytes caps client frames. The stream is one-directional;
	// clients have nothing meaningful to send.
	maxInboundBytes = 512

	sendBuffer = 64
)

// IdentityResolver maps a connection token to a subscriber identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (events.Identity, error)
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Hub      *events.Hub
	Resolver IdentityResolver

	// CookieName optionally names a session cookie to read the token from.
	CookieName string

	// CheckOrigin overrides the upgrader origin check. The default accepts
	// every origin, matching the platform's open CORS policy.
	CheckOrigin func(r *http.Request) bool

	Logger *slog.Logger
}

// Handler upgrades HTTP requests to WebSocket connections subscribed to the
// event hub. Like the SSE adapter it never rejects a connection over
// authentication: a bad token yields an anonymous subscription.
type Handler struct {
	hub        *events.Hub
	resolver   IdentityResolver
	cookieName string
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a WebSocket handler over the given hub.
func NewHandler(cfg HandlerConfig) *Handler {
	hub := cfg.Hub
	if hub == nil {
		hub = events.NewHub(events.HubConfig{Logger: cfg.Logger})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub:        hub,
		resolver:   cfg.Resolver,
		cookieName: cfg.CookieName,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// ServeHTTP implements http.Handler. The first frame on every connection is
// the connection acknowledgment, then the hub's matched events follow as
// text frames until either side closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := h.identify(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade", "error", err)
		return
	}

	deliverer := events.NewQueueDeliverer(sendBuffer)
	sub := h.hub.Register(identity.Subscription(deliverer))

	h.logger.Debug("websocket opened",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"role", string(sub.Role),
	)

	closed := make(chan struct{})
	go h.readLoop(conn, closed)
	h.writeLoop(conn, sub.ID, deliverer, closed)
}

// readLoop drains and discards inbound frames. Its only job is to run the
// pong handler and to notice when the peer goes away.
func (h *Handler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxInboundBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop pushes queued events and periodic pings until the connection
// dies, then removes the subscription.
func (h *Handler) writeLoop(conn *websocket.Conn, subID string, deliverer *events.QueueDeliverer, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.hub.Unregister(subID)
		_ = conn.Close()
		h.logger.Debug("websocket closed", "subscription_id", subID)
	}()

	for {
		select {
		case <-closed:
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
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

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
