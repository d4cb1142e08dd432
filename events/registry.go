package events

import (
	"sync"

	"github.com/google/uuid"
)

// Role is the coarse business role associated with a subscription.
type Role string

const (
	// RoleClient is the consumer-side role. Anonymous connections default
	// to it so that public broadcasts remain reachable without credentials.
	RoleClient Role = "client"

	// RoleOwner is the restaurant-owner role.
	RoleOwner Role = "owner"
)

// StaffRole is the fine-grained staff role nested under the owner-side
// business role, used for kitchen and service targeting.
type StaffRole string

const (
	StaffAdministrator StaffRole = "administrator"
	StaffManager       StaffRole = "manager"
	StaffCashier       StaffRole = "cashier"
	StaffCook          StaffRole = "cook"
	StaffWaiter        StaffRole = "waiter"
)

// AnonymousUser is the sentinel user id for unauthenticated subscriptions.
const AnonymousUser = "anonymous"

// Deliverer pushes one serialized event to an underlying transport. It must
// be safe to invoke concurrently with registry mutation. Implementations
// should not block indefinitely; a typical implementation hands the event to
// a buffered channel drained by the connection's writer goroutine.
type Deliverer interface {
	Deliver(Event) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(Event) error

// Deliver implements Deliverer.
func (f DelivererFunc) Deliver(e Event) error { return f(e) }

// Subscription is one live binding between a connected client and its
// delivery criteria. Immutable after registration.
type Subscription struct {
	ID           string
	UserID       string
	Role         Role
	StaffRole    StaffRole
	RestaurantID string

	deliverer Deliverer
}

// Deliver pushes an event to the subscription's transport.
func (s *Subscription) Deliver(e Event) error {
	return s.deliverer.Deliver(e)
}

// SubscriptionConfig describes a subscription to register. Zero values for
// UserID and Role are normalized to the anonymous client identity.
type SubscriptionConfig struct {
	UserID       string
	Role         Role
	StaffRole    StaffRole
	RestaurantID string
	Deliverer    Deliverer
}

// Registry is the process-wide set of live subscriptions. It supports
// concurrent registration, removal, and snapshot iteration. The registry is
// the only shared mutable state in the event core; delivery itself happens
// outside its lock.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscription)}
}

// Register inserts a new subscription and returns it. The subscription is
// visible to fan-out passes as soon as Register returns. Registering on a
// closed registry returns the subscription without storing it, so the
// caller's delivery path simply never fires.
func (r *Registry) Register(cfg SubscriptionConfig) *Subscription {
	userID := cfg.UserID
	if userID == "" {
		userID = AnonymousUser
	}
	role := cfg.Role
	if role == "" {
		role = RoleClient
	}
	deliverer := cfg.Deliverer
	if deliverer == nil {
		deliverer = DelivererFunc(func(Event) error { return nil })
	}

	sub := &Subscription{
		ID:           uuid.New().String(),
		UserID:       userID,
		Role:         role,
		StaffRole:    cfg.StaffRole,
		RestaurantID: cfg.RestaurantID,
		deliverer:    deliverer,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return sub
	}
	r.subs[sub.ID] = sub
	return sub
}

// Unregister removes a subscription by id. Unknown ids and repeated calls
// are no-ops. After Unregister returns, no new fan-out pass will deliver to
// the subscription; a pass already holding a snapshot may complete at most
// one more delivery.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
}

// Snapshot returns a copy of the live subscription set. The returned slice
// is owned by the caller; concurrent registry mutation never corrupts it.
func (r *Registry) Snapshot() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}

// Len reports the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Close removes all subscriptions and rejects future registrations.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.subs = make(map[string]*Subscription)
	return nil
}
