package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const domainSQLiteSchema = `
CREATE TABLE IF NOT EXISTS restaurants (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	is_open INTEGER NOT NULL DEFAULT 0,
	opening_hours BLOB,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_restaurants_owner ON restaurants(owner_id);
CREATE INDEX IF NOT EXISTS idx_restaurants_active ON restaurants(is_active);

CREATE TABLE IF NOT EXISTS reservations (
	id TEXT PRIMARY KEY,
	restaurant_id TEXT NOT NULL,
	client_id TEXT NOT NULL,
	date TEXT NOT NULL,
	party_size INTEGER NOT NULL,
	status TEXT NOT NULL,
	notes TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY(restaurant_id) REFERENCES restaurants(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_reservations_restaurant ON reservations(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_reservations_client ON reservations(client_id);

CREATE TABLE IF NOT EXISTS sales (
	id TEXT PRIMARY KEY,
	restaurant_id TEXT NOT NULL,
	created_by TEXT NOT NULL,
	status TEXT NOT NULL,
	items_json BLOB NOT NULL,
	total REAL NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY(restaurant_id) REFERENCES restaurants(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sales_restaurant ON sales(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_sales_status ON sales(status);

CREATE TABLE IF NOT EXISTS announcements (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	body TEXT,
	created_by TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// SQLiteStoreConfig configures the SQLite domain store.
type SQLiteStoreConfig struct {
	DSN string
}

// SQLiteStore persists restaurants, reservations, sales, and announcements
// in SQLite behind one database handle.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed domain store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("domain store sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("domain sqlite store open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("domain sqlite store set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("domain sqlite store enable foreign keys: %w", err)
	}

	if _, err := db.Exec(domainSQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("domain sqlite store create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle so the auth store can share it.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Restaurants ---

// CreateRestaurant inserts a restaurant record.
func (s *SQLiteStore) CreateRestaurant(ctx context.Context, rec Restaurant) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	hours, err := encodeHours(rec.Hours)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO restaurants (id, owner_id, name, is_active, is_open, opening_hours, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.OwnerID,
		rec.Name,
		boolToInt(rec.IsActive),
		boolToInt(rec.IsOpen),
		hours,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("domain sqlite store create restaurant: %w", err)
	}
	return nil
}

// GetRestaurant retrieves a restaurant by ID.
func (s *SQLiteStore) GetRestaurant(ctx context.Context, id string) (Restaurant, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, owner_id, name, is_active, is_open, opening_hours, created_at, updated_at
FROM restaurants
WHERE id = ?`, id)

	rec, err := scanRestaurant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Restaurant{}, false, nil
		}
		return Restaurant{}, false, err
	}
	return rec, true, nil
}

// FindRestaurantByOwner retrieves the restaurant owned by a user.
func (s *SQLiteStore) FindRestaurantByOwner(ctx context.Context, ownerID string) (Restaurant, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, owner_id, name, is_active, is_open, opening_hours, created_at, updated_at
FROM restaurants
WHERE owner_id = ?
LIMIT 1`, ownerID)

	rec, err := scanRestaurant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Restaurant{}, false, nil
		}
		return Restaurant{}, false, err
	}
	return rec, true, nil
}

// ListActiveRestaurants returns every active restaurant with its schedule
// and persisted open state.
func (s *SQLiteStore) ListActiveRestaurants(ctx context.Context) ([]Restaurant, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, owner_id, name, is_active, is_open, opening_hours, created_at, updated_at
FROM restaurants
WHERE is_active = 1
ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("domain sqlite store list restaurants: %w", err)
	}
	defer rows.Close()

	var out []Restaurant
	for rows.Next() {
		rec, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("domain sqlite store list restaurants rows: %w", err)
	}
	return out, nil
}

// UpdateRestaurantOpen persists a restaurant's open/closed flag.
func (s *SQLiteStore) UpdateRestaurantOpen(ctx context.Context, id string, isOpen bool) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE restaurants
SET is_open = ?, updated_at = ?
WHERE id = ?`,
		boolToInt(isOpen),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("domain sqlite store update restaurant open: %w", err)
	}
	return requireAffected(res, ErrRestaurantNotFound)
}

// UpdateRestaurantHours persists a restaurant's weekly schedule.
func (s *SQLiteStore) UpdateRestaurantHours(ctx context.Context, id string, hours WeeklyHours) error {
	encoded, err := encodeHours(hours)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE restaurants
SET opening_hours = ?, updated_at = ?
WHERE id = ?`,
		encoded,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("domain sqlite store update restaurant hours: %w", err)
	}
	return requireAffected(res, ErrRestaurantNotFound)
}

// --- Reservations ---

// CreateReservation inserts a reservation record.
func (s *SQLiteStore) CreateReservation(ctx context.Context, rec Reservation) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Status == "" {
		rec.Status = ReservationPending
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO reservations (id, restaurant_id, client_id, date, party_size, status, notes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.RestaurantID,
		rec.ClientID,
		rec.Date.UTC().Format(time.RFC3339Nano),
		rec.PartySize,
		rec.Status,
		nullIfEmpty(rec.Notes),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("domain sqlite store create reservation: %w", err)
	}
	return nil
}

// GetReservation retrieves a reservation by ID.
func (s *SQLiteStore) GetReservation(ctx context.Context, id string) (Reservation, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, restaurant_id, client_id, date, party_size, status, notes, created_at, updated_at
FROM reservations
WHERE id = ?`, id)

	rec, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reservation{}, false, nil
		}
		return Reservation{}, false, err
	}
	return rec, true, nil
}

// UpdateReservationStatus changes a reservation's status and returns the
// updated record.
func (s *SQLiteStore) UpdateReservationStatus(ctx context.Context, id, status string) (Reservation, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE reservations
SET status = ?, updated_at = ?
WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return Reservation{}, fmt.Errorf("domain sqlite store update reservation: %w", err)
	}
	if err := requireAffected(res, ErrReservationNotFound); err != nil {
		return Reservation{}, err
	}

	rec, _, err := s.GetReservation(ctx, id)
	return rec, err
}

// --- Sales ---

// CreateSale inserts a sale record.
func (s *SQLiteStore) CreateSale(ctx context.Context, rec Sale) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Status == "" {
		rec.Status = SalePending
	}

	items, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("domain sqlite store encode sale items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO sales (id, restaurant_id, created_by, status, items_json, total, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.RestaurantID,
		rec.CreatedBy,
		rec.Status,
		items,
		rec.Total,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("domain sqlite store create sale: %w", err)
	}
	return nil
}

// GetSale retrieves a sale by ID.
func (s *SQLiteStore) GetSale(ctx context.Context, id string) (Sale, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, restaurant_id, created_by, status, items_json, total, created_at, updated_at
FROM sales
WHERE id = ?`, id)

	rec, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Sale{}, false, nil
		}
		return Sale{}, false, err
	}
	return rec, true, nil
}

// UpdateSaleStatus changes a sale's status and returns the updated record.
func (s *SQLiteStore) UpdateSaleStatus(ctx context.Context, id, status string) (Sale, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE sales
SET status = ?, updated_at = ?
WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return Sale{}, fmt.Errorf("domain sqlite store update sale: %w", err)
	}
	if err := requireAffected(res, ErrSaleNotFound); err != nil {
		return Sale{}, err
	}

	rec, _, err := s.GetSale(ctx, id)
	return rec, err
}

// --- Announcements ---

// CreateAnnouncement inserts an announcement record.
func (s *SQLiteStore) CreateAnnouncement(ctx context.Context, rec Announcement) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO announcements (id, title, body, created_by, created_at)
VALUES (?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Title,
		nullIfEmpty(rec.Body),
		rec.CreatedBy,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("domain sqlite store create announcement: %w", err)
	}
	return nil
}

// ListAnnouncements returns the most recent announcements.
func (s *SQLiteStore) ListAnnouncements(ctx context.Context, limit int) ([]Announcement, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, body, created_by, created_at
FROM announcements
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("domain sqlite store list announcements: %w", err)
	}
	defer rows.Close()

	var out []Announcement
	for rows.Next() {
		var (
			rec       Announcement
			body      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &body, &rec.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("domain sqlite store scan announcement: %w", err)
		}
		rec.Body = body.String
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("domain sqlite store parse announcement created_at: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("domain sqlite store list announcements rows: %w", err)
	}
	return out, nil
}

// --- Scan helpers ---

func scanRestaurant(scanner rowScanner) (Restaurant, error) {
	var (
		rec       Restaurant
		isActive  int
		isOpen    int
		hours     []byte
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&rec.ID, &rec.OwnerID, &rec.Name, &isActive, &isOpen, &hours, &createdAt, &updatedAt); err != nil {
		return Restaurant{}, err
	}

	rec.IsActive = isActive != 0
	rec.IsOpen = isOpen != 0

	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &rec.Hours); err != nil {
			return Restaurant{}, fmt.Errorf("domain sqlite store decode opening hours: %w", err)
		}
	}

	var err error
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Restaurant{}, fmt.Errorf("domain sqlite store parse created_at: %w", err)
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Restaurant{}, fmt.Errorf("domain sqlite store parse updated_at: %w", err)
	}
	return rec, nil
}

func scanReservation(scanner rowScanner) (Reservation, error) {
	var (
		rec       Reservation
		date      string
		notes     sql.NullString
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&rec.ID, &rec.RestaurantID, &rec.ClientID, &date, &rec.PartySize, &rec.Status, &notes, &createdAt, &updatedAt); err != nil {
		return Reservation{}, err
	}

	rec.Notes = notes.String

	var err error
	rec.Date, err = time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return Reservation{}, fmt.Errorf("domain sqlite store parse reservation date: %w", err)
	}
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Reservation{}, fmt.Errorf("domain sqlite store parse created_at: %w", err)
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Reservation{}, fmt.Errorf("domain sqlite store parse updated_at: %w", err)
	}
	return rec, nil
}

func scanSale(scanner rowScanner) (Sale, error) {
	var (
		rec       Sale
		items     []byte
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&rec.ID, &rec.RestaurantID, &rec.CreatedBy, &rec.Status, &items, &rec.Total, &createdAt, &updatedAt); err != nil {
		return Sale{}, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &rec.Items); err != nil {
			return Sale{}, fmt.Errorf("domain sqlite store decode sale items: %w", err)
		}
	}

	var err error
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Sale{}, fmt.Errorf("domain sqlite store parse created_at: %w", err)
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Sale{}, fmt.Errorf("domain sqlite store parse updated_at: %w", err)
	}
	return rec, nil
}

func encodeHours(hours WeeklyHours) ([]byte, error) {
	if hours == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(hours)
	if err != nil {
		return nil, fmt.Errorf("domain sqlite store encode opening hours: %w", err)
	}
	return encoded, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("domain sqlite store affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
