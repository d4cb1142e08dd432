package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tably-labs/tably/events"
	"github.com/tably-labs/tably/ws"
)

type frame struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

type stubResolver struct {
	identities map[string]events.Identity
}

func (r *stubResolver) Resolve(_ context.Context, token string) (events.Identity, error) {
	if id, ok := r.identities[token]; ok {
		return id, nil
	}
	return events.Anonymous(), nil
}

func newFixture(t *testing.T, resolver ws.IdentityResolver) (*events.Hub, string) {
	t.Helper()

	hub := events.NewHub(events.HubConfig{})
	handler := ws.NewHandler(ws.HandlerConfig{Hub: hub, Resolver: resolver})
	mux := http.NewServeMux()
	mux.Handle("GET /api/events/ws", handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return hub, "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws"
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err, "dial %s", url)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err, "read frame")
	var f frame
	require.NoError(t, json.Unmarshal(data, &f), "decode frame %q", data)
	return f
}

func TestHandler_ConnectedAckIsFirstFrame(t *testing.T) {
	_, url := newFixture(t, nil)

	conn := dial(t, url, nil)
	ack := readFrame(t, conn)
	require.Equal(t, string(events.KindConnected), ack.Type)
}

func TestHandler_BroadcastReachesAnonymousConnection(t *testing.T) {
	hub, url := newFixture(t, nil)

	conn := dial(t, url, nil)
	readFrame(t, conn) // ack

	hub.Publish(events.NewRestaurantStatus("r1", false, "La Parrilla is now closed"))

	f := readFrame(t, conn)
	require.Equal(t, string(events.KindRestaurantStatus), f.Type)
	require.Equal(t, "r1", f.Data["restaurantId"])
	require.Equal(t, false, f.Data["isOpen"])
}

func TestHandler_TokenBindsConnectionToIdentity(t *testing.T) {
	resolver := &stubResolver{identities: map[string]events.Identity{
		"cook-token": {
			UserID:       "cook-1",
			Role:         events.RoleClient,
			StaffRole:    events.StaffCook,
			RestaurantID: "r1",
		},
	}}
	hub, url := newFixture(t, resolver)

	conn := dial(t, url+"?token=cook-token", nil)
	readFrame(t, conn) // ack

	// Sales elsewhere skip this cook; the one at r1 is the next frame.
	hub.Publish(events.NewSale("r2", map[string]any{"id": "sale-other"}))
	hub.Publish(events.NewSale("r1", map[string]any{"id": "sale-mine"}))

	f := readFrame(t, conn)
	require.Equal(t, string(events.KindSaleNew), f.Type)
	require.Equal(t, "sale-mine", f.Data["sale"].(map[string]any)["id"])
}

func TestHandler_AuthorizationHeaderCarriesToken(t *testing.T) {
	resolver := &stubResolver{identities: map[string]events.Identity{
		"header-token": {UserID: "client-3", Role: events.RoleClient},
	}}
	hub, url := newFixture(t, resolver)

	header := http.Header{}
	header.Set("Authorization", "Bearer header-token")
	conn := dial(t, url, header)
	readFrame(t, conn) // ack

	hub.Publish(events.NewReservationUpdate("client-3", map[string]any{"id": "res-3"}))

	f := readFrame(t, conn)
	require.Equal(t, string(events.KindReservationUpdate), f.Type)
}

func TestHandler_CloseRemovesSubscription(t *testing.T) {
	hub, url := newFixture(t, nil)

	conn := dial(t, url, nil)
	readFrame(t, conn) // ack

	require.Equal(t, 1, hub.Registry().Len())

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.Registry().Len() == 0
	}, 2*time.Second, 5*time.Millisecond, "subscription not removed after close")
}

func TestHandler_InvalidTokenDegradesToAnonymous(t *testing.T) {
	resolver := &stubResolver{identities: map[string]events.Identity{}}
	hub, url := newFixture(t, resolver)

	conn := dial(t, url+"?token=bogus", nil)
	readFrame(t, conn) // connection accepted, not rejected

	hub.Publish(events.NewReservation("r1", map[string]any{"id": "res-1"}))
	hub.Publish(events.NewAnnouncement(map[string]any{"title": "hola"}))

	f := readFrame(t, conn)
	require.Equal(t, string(events.KindAnnouncement), f.Type)
}
