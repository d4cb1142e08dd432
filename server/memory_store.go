package server

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation used by tests and dry
// runs. All methods are safe for concurrent use.
type MemoryStore struct {
	mu            sync.RWMutex
	restaurants   map[string]Restaurant
	reservations  map[string]Reservation
	sales         map[string]Sale
	announcements []Announcement
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		restaurants:  make(map[string]Restaurant),
		reservations: make(map[string]Reservation),
		sales:        make(map[string]Sale),
	}
}

// CreateRestaurant inserts a restaurant record.
func (s *MemoryStore) CreateRestaurant(_ context.Context, rec Restaurant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.restaurants[rec.ID] = rec
	return nil
}

// GetRestaurant retrieves a restaurant by ID.
func (s *MemoryStore) GetRestaurant(_ context.Context, id string) (Restaurant, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.restaurants[id]
	return rec, ok, nil
}

// FindRestaurantByOwner retrieves the restaurant owned by a user.
func (s *MemoryStore) FindRestaurantByOwner(_ context.Context, ownerID string) (Restaurant, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.restaurants {
		if rec.OwnerID == ownerID {
			return rec, true, nil
		}
	}
	return Restaurant{}, false, nil
}

// ListActiveRestaurants returns every active restaurant sorted by name.
func (s *MemoryStore) ListActiveRestaurants(_ context.Context) ([]Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Restaurant
	for _, rec := range s.restaurants {
		if rec.IsActive {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateRestaurantOpen persists a restaurant's open/closed flag.
func (s *MemoryStore) UpdateRestaurantOpen(_ context.Context, id string, isOpen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.restaurants[id]
	if !ok {
		return ErrRestaurantNotFound
	}
	rec.IsOpen = isOpen
	rec.UpdatedAt = time.Now().UTC()
	s.restaurants[id] = rec
	return nil
}

// UpdateRestaurantHours persists a restaurant's weekly schedule.
func (s *MemoryStore) UpdateRestaurantHours(_ context.Context, id string, hours WeeklyHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.restaurants[id]
	if !ok {
		return ErrRestaurantNotFound
	}
	rec.Hours = hours
	rec.UpdatedAt = time.Now().UTC()
	s.restaurants[id] = rec
	return nil
}

// CreateReservation inserts a reservation record.
func (s *MemoryStore) CreateReservation(_ context.Context, rec Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Status == "" {
		rec.Status = ReservationPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.reservations[rec.ID] = rec
	return nil
}

// GetReservation retrieves a reservation by ID.
func (s *MemoryStore) GetReservation(_ context.Context, id string) (Reservation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.reservations[id]
	return rec, ok, nil
}

// UpdateReservationStatus changes a reservation's status.
func (s *MemoryStore) UpdateReservationStatus(_ context.Context, id, status string) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.reservations[id]
	if !ok {
		return Reservation{}, ErrReservationNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	s.reservations[id] = rec
	return rec, nil
}

// CreateSale inserts a sale record.
func (s *MemoryStore) CreateSale(_ context.Context, rec Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Status == "" {
		rec.Status = SalePending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.sales[rec.ID] = rec
	return nil
}

// GetSale retrieves a sale by ID.
func (s *MemoryStore) GetSale(_ context.Context, id string) (Sale, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sales[id]
	return rec, ok, nil
}

// UpdateSaleStatus changes a sale's status.
func (s *MemoryStore) UpdateSaleStatus(_ context.Context, id, status string) (Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sales[id]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	s.sales[id] = rec
	return rec, nil
}

// CreateAnnouncement inserts an announcement record.
func (s *MemoryStore) CreateAnnouncement(_ context.Context, rec Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.announcements = append(s.announcements, rec)
	return nil
}

// ListAnnouncements returns the most recent announcements.
func (s *MemoryStore) ListAnnouncements(_ context.Context, limit int) ([]Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.announcements) {
		limit = len(s.announcements)
	}
	out := make([]Announcement, 0, limit)
	for i := len(s.announcements) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.announcements[i])
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
