// Package events provides the real-time event distribution core for Tably.
// It defines the typed domain event model, a concurrency-safe subscription
// registry, and a fan-out hub that delivers published events to every
// matching live subscription. Connection adapters (SSE, WebSocket) and
// domain mutation handlers communicate exclusively through this package.
package events

import (
	"encoding/json"
	"time"
)

// Kind identifies a domain event type. The string value is the wire-level
// type name sent to clients.
type Kind string

const (
	// KindRestaurantStatus signals a restaurant opening or closing.
	KindRestaurantStatus Kind = "restaurant:status"

	// KindRestaurantHours signals an update to a restaurant's weekly hours.
	KindRestaurantHours Kind = "restaurant:hours"

	// KindReservationNew signals a reservation created at a restaurant.
	KindReservationNew Kind = "reservation:new"

	// KindReservationUpdate signals a status change on an existing reservation.
	KindReservationUpdate Kind = "reservation:update"

	// KindSaleNew signals a sale (kitchen ticket) created at a restaurant.
	KindSaleNew Kind = "sale:new"

	// KindSaleUpdate signals a change to an existing sale.
	KindSaleUpdate Kind = "sale:update"

	// KindOrderNew is the legacy order notification retained for older
	// clients; it targets the same audience as KindSaleNew.
	KindOrderNew Kind = "order:new"

	// KindAnnouncement is a platform-wide announcement broadcast.
	KindAnnouncement Kind = "announcement:new"

	// KindConnected is the acknowledgment frame sent once to a newly
	// registered subscription. It is never fanned out via Publish.
	KindConnected Kind = "connected"
)

// Event is one immutable, transient domain event. It exists only for the
// duration of a single fan-out pass and is never persisted.
type Event struct {
	Kind Kind
	Data any
	Time time.Time
}

// RestaurantStatusData is the payload for KindRestaurantStatus.
type RestaurantStatusData struct {
	RestaurantID string `json:"restaurantId"`
	IsOpen       bool   `json:"isOpen"`
	Message      string `json:"message"`
}

// RestaurantHoursData is the payload for KindRestaurantHours.
type RestaurantHoursData struct {
	RestaurantID string `json:"restaurantId"`
	Hours        any    `json:"hours"`
}

// ReservationNewData is the payload for KindReservationNew.
type ReservationNewData struct {
	RestaurantID string `json:"restaurantId"`
	Reservation  any    `json:"reservation"`
}

// ReservationUpdateData is the payload for KindReservationUpdate. ClientID
// is the user the reservation belongs to and is the delivery target.
type ReservationUpdateData struct {
	ClientID    string `json:"-"`
	Reservation any    `json:"reservation"`
}

// SaleData is the payload for KindSaleNew and KindSaleUpdate.
type SaleData struct {
	RestaurantID string `json:"restaurantId"`
	Sale         any    `json:"sale"`
}

// OrderData is the payload for KindOrderNew.
type OrderData struct {
	RestaurantID string `json:"restaurantId"`
	Order        any    `json:"order"`
}

// AnnouncementData is the payload for KindAnnouncement.
type AnnouncementData struct {
	Announcement any `json:"announcement"`
}

// ConnectedData is the payload for KindConnected.
type ConnectedData struct {
	Message string `json:"message"`
}

// NewRestaurantStatus builds a restaurant open/closed transition event.
func NewRestaurantStatus(restaurantID string, isOpen bool, message string) Event {
	return Event{
		Kind: KindRestaurantStatus,
		Data: RestaurantStatusData{RestaurantID: restaurantID, IsOpen: isOpen, Message: message},
		Time: time.Now().UTC(),
	}
}

// NewRestaurantHours builds a weekly-hours update event.
func NewRestaurantHours(restaurantID string, hours any) Event {
	return Event{
		Kind: KindRestaurantHours,
		Data: RestaurantHoursData{RestaurantID: restaurantID, Hours: hours},
		Time: time.Now().UTC(),
	}
}

// NewReservation builds a new-reservation event for a restaurant's owner.
func NewReservation(restaurantID string, reservation any) Event {
	return Event{
		Kind: KindReservationNew,
		Data: ReservationNewData{RestaurantID: restaurantID, Reservation: reservation},
		Time: time.Now().UTC(),
	}
}

// NewReservationUpdate builds a reservation-update event addressed to the
// reservation's client.
func NewReservationUpdate(clientID string, reservation any) Event {
	return Event{
		Kind: KindReservationUpdate,
		Data: ReservationUpdateData{ClientID: clientID, Reservation: reservation},
		Time: time.Now().UTC(),
	}
}

// NewSale builds a new-sale event for a restaurant's kitchen and service staff.
func NewSale(restaurantID string, sale any) Event {
	return Event{
		Kind: KindSaleNew,
		Data: SaleData{RestaurantID: restaurantID, Sale: sale},
		Time: time.Now().UTC(),
	}
}

// NewSaleUpdate builds a sale-update event for all staff of a restaurant.
func NewSaleUpdate(restaurantID string, sale any) Event {
	return Event{
		Kind: KindSaleUpdate,
		Data: SaleData{RestaurantID: restaurantID, Sale: sale},
		Time: time.Now().UTC(),
	}
}

// NewOrder builds a legacy new-order event.
func NewOrder(restaurantID string, order any) Event {
	return Event{
		Kind: KindOrderNew,
		Data: OrderData{RestaurantID: restaurantID, Order: order},
		Time: time.Now().UTC(),
	}
}

// NewAnnouncement builds a platform-wide announcement event.
func NewAnnouncement(announcement any) Event {
	return Event{
		Kind: KindAnnouncement,
		Data: AnnouncementData{Announcement: announcement},
		Time: time.Now().UTC(),
	}
}

// NewConnected builds the acknowledgment event sent to a fresh subscription.
func NewConnected() Event {
	return Event{
		Kind: KindConnected,
		Data: ConnectedData{Message: "event stream established"},
		Time: time.Now().UTC(),
	}
}

// wireEvent is the JSON shape sent to clients.
type wireEvent struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode serializes the event to its wire representation:
// one JSON object {"type": ..., "data": {...}, "timestamp": ...}.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(wireEvent{
		Type:      string(e.Kind),
		Data:      e.Data,
		Timestamp: e.Time,
	})
}
