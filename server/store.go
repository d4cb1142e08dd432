// Package server implements the Tably HTTP API: domain persistence,
// authentication, the mutation endpoints that feed the real-time event hub,
// and the background reconciler that keeps restaurant open/closed state in
// line with declared weekly hours.
package server

import (
	"context"
	"errors"
	"time"
)

// Restaurant is one tenant on the platform.
type Restaurant struct {
	ID        string      `json:"id"`
	OwnerID   string      `json:"ownerId"`
	Name      string      `json:"name"`
	IsActive  bool        `json:"isActive"`
	IsOpen    bool        `json:"isOpen"`
	Hours     WeeklyHours `json:"openingHours,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Reservation statuses.
const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationCancelled = "cancelled"
)

// Reservation is a client's table booking at a restaurant.
type Reservation struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	ClientID     string    `json:"clientId"`
	Date         time.Time `json:"date"`
	PartySize    int       `json:"partySize"`
	Status       string    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sale statuses.
const (
	SalePending   = "pending"
	SalePreparing = "preparing"
	SaleReady     = "ready"
	SaleDelivered = "delivered"
	SaleCancelled = "cancelled"
)

// SaleItem is one line of a sale.
type SaleItem struct {
	MenuItem string  `json:"menuItem"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Sale is a kitchen/service ticket created at a restaurant.
type Sale struct {
	ID           string     `json:"id"`
	RestaurantID string     `json:"restaurantId"`
	CreatedBy    string     `json:"createdBy"`
	Status       string     `json:"status"`
	Items        []SaleItem `json:"items"`
	Total        float64    `json:"total"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Announcement is a platform-wide notice broadcast to every connected
// client.
type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"created_at"`
}

// Sentinel errors for store operations.
var (
	ErrRestaurantNotFound  = errors.New("restaurant not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrSaleNotFound        = errors.New("sale not found")
)

// RestaurantStore persists restaurants and their open/closed state. The
// status reconciler consumes exactly ListActiveRestaurants and
// UpdateRestaurantOpen.
type RestaurantStore interface {
	CreateRestaurant(ctx context.Context, rec Restaurant) error

	GetRestaurant(ctx context.Context, id string) (Restaurant, bool, error)

	// FindRestaurantByOwner resolves the restaurant owned by a user, used
	// when an owner credential carries no restaurant binding.
	FindRestaurantByOwner(ctx context.Context, ownerID string) (Restaurant, bool, error)

	ListActiveRestaurants(ctx context.Context) ([]Restaurant, error)

	UpdateRestaurantOpen(ctx context.Context, id string, isOpen bool) error

	UpdateRestaurantHours(ctx context.Context, id string, hours WeeklyHours) error
}

// ReservationStore persists reservations.
type ReservationStore interface {
	CreateReservation(ctx context.Context, rec Reservation) error

	GetReservation(ctx context.Context, id string) (Reservation, bool, error)

	UpdateReservationStatus(ctx context.Context, id, status string) (Reservation, error)
}

// SaleStore persists sales.
type SaleStore interface {
	CreateSale(ctx context.Context, rec Sale) error

	GetSale(ctx context.Context, id string) (Sale, bool, error)

	UpdateSaleStatus(ctx context.Context, id, status string) (Sale, error)
}

// AnnouncementStore persists announcements.
type AnnouncementStore interface {
	CreateAnnouncement(ctx context.Context, rec Announcement) error

	ListAnnouncements(ctx context.Context, limit int) ([]Announcement, error)
}

// Store aggregates every domain store. The SQLite implementation backs all
// of them with one database handle.
type Store interface {
	RestaurantStore
	ReservationStore
	SaleStore
	AnnouncementStore

	Close() error
}
