package events

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
)

// recorder is a test deliverer that records every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []Event
	fail   error
	panics bool
}

func (r *recorder) Deliver(e Event) error {
	if r.panics {
		panic("transport gone")
	}
	if r.fail != nil {
		return r.fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// fanoutCount returns how many recorded events are not the connection ack.
func (r *recorder) fanoutCount() int {
	n := 0
	for _, k := range r.kinds() {
		if k != KindConnected {
			n++
		}
	}
	return n
}

func TestHub_TargetingMatrix(t *testing.T) {
	hub := NewHub(HubConfig{})

	// One subscription per attribute combination used by the targeting rules.
	recorders := map[string]*recorder{}
	register := func(label string, cfg SubscriptionConfig) {
		rec := &recorder{}
		cfg.Deliverer = rec
		recorders[label] = rec
		hub.Register(cfg)
	}

	register("anon", SubscriptionConfig{})
	register("client1", SubscriptionConfig{UserID: "c1", Role: RoleClient})
	register("ownerR1", SubscriptionConfig{UserID: "o1", Role: RoleOwner, RestaurantID: "R1"})
	register("ownerR2", SubscriptionConfig{UserID: "o2", Role: RoleOwner, RestaurantID: "R2"})
	register("cookR1", SubscriptionConfig{UserID: "s1", Role: RoleClient, StaffRole: StaffCook, RestaurantID: "R1"})
	register("waiterR1", SubscriptionConfig{UserID: "s2", Role: RoleClient, StaffRole: StaffWaiter, RestaurantID: "R1"})
	register("cashierR1", SubscriptionConfig{UserID: "s3", Role: RoleClient, StaffRole: StaffCashier, RestaurantID: "R1"})
	register("managerR1", SubscriptionConfig{UserID: "s4", Role: RoleClient, StaffRole: StaffManager, RestaurantID: "R1"})
	register("adminR1", SubscriptionConfig{UserID: "s5", Role: RoleClient, StaffRole: StaffAdministrator, RestaurantID: "R1"})

	all := []string{"anon", "client1", "ownerR1", "ownerR2", "cookR1", "waiterR1", "cashierR1", "managerR1", "adminR1"}

	tests := []struct {
		name  string
		event Event
		want  []string
	}{
		{
			name:  "restaurant status reaches every client-role viewer",
			event: NewRestaurantStatus("R1", true, "Trattoria is now open"),
			// Every non-owner subscription is client-role, staff included.
			want: []string{"anon", "client1", "cookR1", "waiterR1", "cashierR1", "managerR1", "adminR1"},
		},
		{
			name:  "hours update reaches subscriptions bound to the restaurant",
			event: NewRestaurantHours("R1", map[string]any{"monday": "09:00-22:00"}),
			want:  []string{"ownerR1", "cookR1", "waiterR1", "cashierR1", "managerR1", "adminR1"},
		},
		{
			name:  "new reservation reaches only the restaurant's owner",
			event: NewReservation("R1", map[string]any{"id": "res-1"}),
			want:  []string{"ownerR1"},
		},
		{
			name:  "reservation update reaches only the reservation's client",
			event: NewReservationUpdate("c1", map[string]any{"id": "res-1"}),
			want:  []string{"client1"},
		},
		{
			name:  "new sale reaches owner and kitchen staff, not the cashier",
			event: NewSale("R1", map[string]any{"id": "sale-1"}),
			want:  []string{"ownerR1", "cookR1", "waiterR1", "managerR1", "adminR1"},
		},
		{
			name:  "legacy new order targets the kitchen audience",
			event: NewOrder("R1", map[string]any{"id": "ord-1"}),
			want:  []string{"ownerR1", "cookR1", "waiterR1", "managerR1", "adminR1"},
		},
		{
			name:  "sale update reaches all staff of the restaurant",
			event: NewSaleUpdate("R1", map[string]any{"id": "sale-1"}),
			want:  []string{"ownerR1", "cookR1", "waiterR1", "cashierR1", "managerR1", "adminR1"},
		},
		{
			name:  "announcement reaches everyone",
			event: NewAnnouncement(map[string]any{"title": "maintenance"}),
			want:  all,
		},
		{
			name:  "sale for another restaurant reaches nobody here",
			event: NewSale("R9", map[string]any{"id": "sale-9"}),
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := map[string]int{}
			for label, rec := range recorders {
				before[label] = rec.fanoutCount()
			}

			hub.Publish(tt.event)

			var got []string
			for label, rec := range recorders {
				if rec.fanoutCount() > before[label] {
					got = append(got, label)
				}
			}
			sort.Strings(got)

			want := append([]string(nil), tt.want...)
			sort.Strings(want)

			if len(got) != len(want) {
				t.Fatalf("delivered to %v, want %v", got, want)
			}
			for i := range got {
				if got[i] != want[i] {
					t.Fatalf("delivered to %v, want %v", got, want)
				}
			}
		})
	}
}

func TestHub_ConnectionAckSentOnceDirectly(t *testing.T) {
	hub := NewHub(HubConfig{})

	rec := &recorder{}
	hub.Register(SubscriptionConfig{Deliverer: rec})

	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != KindConnected {
		t.Fatalf("got %v, want exactly one connected ack", kinds)
	}

	// The ack kind never travels through general publish.
	hub.Publish(Event{Kind: KindConnected, Data: ConnectedData{}})
	if got := len(rec.kinds()); got != 1 {
		t.Errorf("connected published via fan-out: %d events, want 1", got)
	}
}

func TestHub_FailingSubscriberDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(HubConfig{})

	first := &recorder{}
	broken := &recorder{fail: errors.New("write: broken pipe")}
	third := &recorder{}
	hub.Register(SubscriptionConfig{Deliverer: first})
	hub.Register(SubscriptionConfig{Deliverer: broken})
	hub.Register(SubscriptionConfig{Deliverer: third})

	hub.Publish(NewAnnouncement("hello"))

	if first.fanoutCount() != 1 {
		t.Errorf("first subscriber missed the event")
	}
	if third.fanoutCount() != 1 {
		t.Errorf("third subscriber missed the event")
	}
}

func TestHub_PanickingSubscriberIsContained(t *testing.T) {
	hub := NewHub(HubConfig{})

	ok := &recorder{}
	hub.Register(SubscriptionConfig{Deliverer: &recorder{panics: true}})
	hub.Register(SubscriptionConfig{Deliverer: ok})

	hub.Publish(NewAnnouncement("still standing"))

	if ok.fanoutCount() != 1 {
		t.Errorf("healthy subscriber missed the event after a peer panic")
	}
}

func TestHub_UnregisterIsTerminal(t *testing.T) {
	hub := NewHub(HubConfig{})

	rec := &recorder{}
	sub := hub.Register(SubscriptionConfig{UserID: "c1", Deliverer: rec})

	hub.Unregister(sub.ID)
	hub.Publish(NewAnnouncement("after unregister"))
	hub.Publish(NewRestaurantStatus("R1", true, "open"))

	if got := rec.fanoutCount(); got != 0 {
		t.Errorf("got %d deliveries after unregister, want 0", got)
	}

	// Repeated and unknown unregisters are silent no-ops.
	hub.Unregister(sub.ID)
	hub.Unregister("unknown")
}

func TestHub_AnonymousBroadcastReachability(t *testing.T) {
	hub := NewHub(HubConfig{})

	anon := &recorder{}
	authed := &recorder{}
	hub.Register(SubscriptionConfig{Deliverer: anon})
	hub.Register(SubscriptionConfig{UserID: "c1", Role: RoleClient, Deliverer: authed})

	hub.Publish(NewRestaurantStatus("R1", false, "closed"))
	hub.Publish(NewAnnouncement("both of you"))

	if anon.fanoutCount() != authed.fanoutCount() {
		t.Errorf("anonymous got %d events, authenticated client got %d; want equal",
			anon.fanoutCount(), authed.fanoutCount())
	}
	if anon.fanoutCount() != 2 {
		t.Errorf("got %d broadcasts, want 2", anon.fanoutCount())
	}
}

func TestHub_CrossRestaurantSaleReachesNeitherViewerNorOtherOwner(t *testing.T) {
	hub := NewHub(HubConfig{})

	anon := &recorder{}
	owner := &recorder{}
	hub.Register(SubscriptionConfig{Deliverer: anon})
	hub.Register(SubscriptionConfig{UserID: "o1", Role: RoleOwner, RestaurantID: "R1", Deliverer: owner})

	hub.Publish(NewSale("R2", map[string]any{"id": "sale-2"}))

	if anon.fanoutCount() != 0 {
		t.Errorf("anonymous client received a sale event")
	}
	if owner.fanoutCount() != 0 {
		t.Errorf("owner of another restaurant received the sale event")
	}
}

func TestEvent_EncodeWireFormat(t *testing.T) {
	e := NewRestaurantStatus("R1", true, "Trattoria is now open")

	data, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	for _, want := range []string{
		`"type":"restaurant:status"`,
		`"restaurantId":"R1"`,
		`"isOpen":true`,
		`"message":"Trattoria is now open"`,
		`"timestamp":`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("wire frame %s missing %s", data, want)
		}
	}
}
