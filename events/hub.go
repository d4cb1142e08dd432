package events

import (
	"fmt"
	"log/slog"
	"time"
)

// Observer receives fan-out outcomes. Implementations translate them into
// metrics; a nil observer disables the hook.
type Observer interface {
	// EventPublished is called once per Publish with the number of
	// subscriptions that matched the targeting predicate.
	EventPublished(kind Kind, matched int)

	// DeliveryFailed is called for each subscriber whose Deliver returned
	// an error during fan-out.
	DeliveryFailed(kind Kind)

	// SubscriptionOpened and SubscriptionClosed track registry membership.
	SubscriptionOpened()
	SubscriptionClosed()
}

// HubConfig configures a Hub.
type HubConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Observer Observer
}

// Hub is the publish/fan-out engine. Publish evaluates the per-kind
// targeting predicate against every live subscription and invokes each
// match's deliverer. Delivery is best-effort fire-and-forget: failures are
// logged per subscriber and never abort delivery to the rest, and nothing
// propagates back to the publisher.
type Hub struct {
	registry *Registry
	logger   *slog.Logger
	observer Observer
}

// NewHub creates a Hub over the given registry. A nil registry gets a fresh
// one; a nil logger falls back to slog.Default().
func NewHub(cfg HubConfig) *Hub {
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: registry,
		logger:   logger,
		observer: cfg.Observer,
	}
}

// Registry exposes the hub's subscription registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register adds a subscription and sends it the connection acknowledgment
// directly, outside the general publish path.
func (h *Hub) Register(cfg SubscriptionConfig) *Subscription {
	sub := h.registry.Register(cfg)
	if h.observer != nil {
		h.observer.SubscriptionOpened()
	}

	if err := sub.Deliver(NewConnected()); err != nil {
		h.logger.Warn("send connection ack",
			"subscription_id", sub.ID,
			"error", err,
		)
	}
	return sub
}

// Unregister removes a subscription. Idempotent.
func (h *Hub) Unregister(id string) {
	before := h.registry.Len()
	h.registry.Unregister(id)
	if h.observer != nil && h.registry.Len() < before {
		h.observer.SubscriptionClosed()
	}
}

// Publish fans the event out to every matching live subscription. The
// registry snapshot is taken once; deliverers are invoked outside any lock.
func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	matched := 0
	for _, sub := range h.registry.Snapshot() {
		if !Matches(e, sub) {
			continue
		}
		matched++

		if err := h.deliver(e, sub); err != nil {
			h.logger.Error("deliver event",
				"kind", string(e.Kind),
				"subscription_id", sub.ID,
				"error", err,
			)
			if h.observer != nil {
				h.observer.DeliveryFailed(e.Kind)
			}
		}
	}

	if h.observer != nil {
		h.observer.EventPublished(e.Kind, matched)
	}
	h.logger.Debug("event published",
		"kind", string(e.Kind),
		"matched", matched,
	)
}

// deliver invokes one subscriber's deliverer, converting a panic into an
// error so a misbehaving transport cannot abort the fan-out pass.
func (h *Hub) deliver(e Event, sub *Subscription) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("deliverer panic: %v", rec)
		}
	}()
	return sub.Deliver(e)
}

// Matches reports whether a subscription should receive an event, per the
// platform's targeting rules:
//
//   - restaurant:status   -> every client-role subscription (anonymous included)
//   - restaurant:hours    -> subscriptions bound to that restaurant
//   - reservation:new     -> owner subscriptions bound to that restaurant
//   - reservation:update  -> the reservation's client
//   - sale:new, order:new -> that restaurant's owner, or staff with role
//     cook, waiter, administrator, or manager
//   - sale:update         -> every subscription bound to that restaurant
//   - announcement:new    -> every live subscription
//   - connected           -> never fanned out (sent directly on register)
func Matches(e Event, s *Subscription) bool {
	switch e.Kind {
	case KindRestaurantStatus:
		return s.Role == RoleClient

	case KindRestaurantHours:
		d, ok := e.Data.(RestaurantHoursData)
		return ok && boundTo(s, d.RestaurantID)

	case KindReservationNew:
		d, ok := e.Data.(ReservationNewData)
		return ok && s.Role == RoleOwner && boundTo(s, d.RestaurantID)

	case KindReservationUpdate:
		d, ok := e.Data.(ReservationUpdateData)
		return ok && s.UserID == d.ClientID && d.ClientID != ""

	case KindSaleNew:
		d, ok := e.Data.(SaleData)
		return ok && boundTo(s, d.RestaurantID) && kitchenAudience(s)

	case KindOrderNew:
		d, ok := e.Data.(OrderData)
		return ok && boundTo(s, d.RestaurantID) && kitchenAudience(s)

	case KindSaleUpdate:
		d, ok := e.Data.(SaleData)
		return ok && boundTo(s, d.RestaurantID)

	case KindAnnouncement:
		return true

	case KindConnected:
		return false
	}
	return false
}

// boundTo reports whether the subscription is bound to the given restaurant.
// An empty restaurant id on either side never matches.
func boundTo(s *Subscription, restaurantID string) bool {
	return restaurantID != "" && s.RestaurantID == restaurantID
}

// kitchenAudience reports whether the subscription belongs to the kitchen
// and service audience for new sales and orders.
func kitchenAudience(s *Subscription) bool {
	if s.Role == RoleOwner {
		return true
	}
	switch s.StaffRole {
	case StaffCook, StaffWaiter, StaffAdministrator, StaffManager:
		return true
	}
	return false
}
