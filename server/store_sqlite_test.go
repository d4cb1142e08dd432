package server

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testRestaurant(id, ownerID string) Restaurant {
	now := time.Now().UTC().Truncate(time.Second)
	return Restaurant{
		ID:       id,
		OwnerID:  ownerID,
		Name:     "Test Kitchen " + id,
		IsActive: true,
		Hours: WeeklyHours{
			"monday": {Open: true, OpenTime: "09:00", CloseTime: "22:00"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLiteStore_RestaurantRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := testRestaurant("r1", "owner-1")
	if err := store.CreateRestaurant(ctx, rec); err != nil {
		t.Fatalf("CreateRestaurant: %v", err)
	}

	got, ok, err := store.GetRestaurant(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("GetRestaurant: ok=%v err=%v", ok, err)
	}
	if got.Name != rec.Name || got.OwnerID != "owner-1" || got.IsOpen {
		t.Fatalf("got %+v", got)
	}
	if !got.Hours["monday"].Open || got.Hours["monday"].CloseTime != "22:00" {
		t.Fatalf("hours did not survive the round trip: %+v", got.Hours)
	}

	byOwner, ok, err := store.FindRestaurantByOwner(ctx, "owner-1")
	if err != nil || !ok || byOwner.ID != "r1" {
		t.Fatalf("FindRestaurantByOwner: %+v ok=%v err=%v", byOwner, ok, err)
	}

	if _, ok, _ := store.GetRestaurant(ctx, "missing"); ok {
		t.Fatal("missing restaurant reported found")
	}
}

func TestSQLiteStore_RestaurantUpdates(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.CreateRestaurant(ctx, testRestaurant("r1", "owner-1")); err != nil {
		t.Fatalf("CreateRestaurant: %v", err)
	}

	if err := store.UpdateRestaurantOpen(ctx, "r1", true); err != nil {
		t.Fatalf("UpdateRestaurantOpen: %v", err)
	}
	got, _, _ := store.GetRestaurant(ctx, "r1")
	if !got.IsOpen {
		t.Fatal("open flag not persisted")
	}

	hours := WeeklyHours{"friday": {Open: true, OpenTime: "18:00", CloseTime: "23:30"}}
	if err := store.UpdateRestaurantHours(ctx, "r1", hours); err != nil {
		t.Fatalf("UpdateRestaurantHours: %v", err)
	}
	got, _, _ = store.GetRestaurant(ctx, "r1")
	if got.Hours["friday"].CloseTime != "23:30" {
		t.Fatalf("hours not persisted: %+v", got.Hours)
	}

	if err := store.UpdateRestaurantOpen(ctx, "missing", true); !errors.Is(err, ErrRestaurantNotFound) {
		t.Fatalf("UpdateRestaurantOpen(missing) = %v, want ErrRestaurantNotFound", err)
	}
	if err := store.UpdateRestaurantHours(ctx, "missing", hours); !errors.Is(err, ErrRestaurantNotFound) {
		t.Fatalf("UpdateRestaurantHours(missing) = %v, want ErrRestaurantNotFound", err)
	}
}

func TestSQLiteStore_ListActiveRestaurants(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	active := testRestaurant("r1", "owner-1")
	inactive := testRestaurant("r2", "owner-2")
	inactive.IsActive = false
	for _, rec := range []Restaurant{active, inactive} {
		if err := store.CreateRestaurant(ctx, rec); err != nil {
			t.Fatalf("CreateRestaurant(%s): %v", rec.ID, err)
		}
	}

	list, err := store.ListActiveRestaurants(ctx)
	if err != nil {
		t.Fatalf("ListActiveRestaurants: %v", err)
	}
	if len(list) != 1 || list[0].ID != "r1" {
		t.Fatalf("list = %+v", list)
	}
}

func TestSQLiteStore_ReservationLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.CreateRestaurant(ctx, testRestaurant("r1", "owner-1")); err != nil {
		t.Fatalf("CreateRestaurant: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec := Reservation{
		ID:           "res-1",
		RestaurantID: "r1",
		ClientID:     "client-1",
		Date:         now.Add(48 * time.Hour),
		PartySize:    4,
		Status:       ReservationPending,
		Notes:        "birthday",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateReservation(ctx, rec); err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	got, ok, err := store.GetReservation(ctx, "res-1")
	if err != nil || !ok {
		t.Fatalf("GetReservation: ok=%v err=%v", ok, err)
	}
	if got.ClientID != "client-1" || got.PartySize != 4 || got.Notes != "birthday" {
		t.Fatalf("got %+v", got)
	}

	updated, err := store.UpdateReservationStatus(ctx, "res-1", ReservationConfirmed)
	if err != nil {
		t.Fatalf("UpdateReservationStatus: %v", err)
	}
	if updated.Status != ReservationConfirmed {
		t.Fatalf("status = %q", updated.Status)
	}

	if _, err := store.UpdateReservationStatus(ctx, "missing", ReservationConfirmed); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("UpdateReservationStatus(missing) = %v, want ErrReservationNotFound", err)
	}
}

func TestSQLiteStore_SaleLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.CreateRestaurant(ctx, testRestaurant("r1", "owner-1")); err != nil {
		t.Fatalf("CreateRestaurant: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec := Sale{
		ID:           "sale-1",
		RestaurantID: "r1",
		CreatedBy:    "cashier-1",
		Status:       SalePending,
		Items: []SaleItem{
			{MenuItem: "Empanada", Quantity: 6, Price: 2.5},
		},
		Total:     15,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateSale(ctx, rec); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	got, ok, err := store.GetSale(ctx, "sale-1")
	if err != nil || !ok {
		t.Fatalf("GetSale: ok=%v err=%v", ok, err)
	}
	if len(got.Items) != 1 || got.Items[0].MenuItem != "Empanada" || got.Total != 15 {
		t.Fatalf("got %+v", got)
	}

	updated, err := store.UpdateSaleStatus(ctx, "sale-1", SaleReady)
	if err != nil {
		t.Fatalf("UpdateSaleStatus: %v", err)
	}
	if updated.Status != SaleReady {
		t.Fatalf("status = %q", updated.Status)
	}

	if _, err := store.UpdateSaleStatus(ctx, "missing", SaleReady); !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("UpdateSaleStatus(missing) = %v, want ErrSaleNotFound", err)
	}
}

func TestSQLiteStore_Announcements(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	for i, title := range []string{"first", "second", "third"} {
		rec := Announcement{
			ID:        title,
			Title:     title,
			Body:      "body " + title,
			CreatedBy: "owner-1",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateAnnouncement(ctx, rec); err != nil {
			t.Fatalf("CreateAnnouncement(%s): %v", title, err)
		}
	}

	list, err := store.ListAnnouncements(ctx, 2)
	if err != nil {
		t.Fatalf("ListAnnouncements: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	// Newest first.
	if list[0].Title != "third" || list[1].Title != "second" {
		t.Fatalf("order = %q, %q", list[0].Title, list[1].Title)
	}
}

func TestAuthSQLiteStore_UserAndSessions(t *testing.T) {
	store := newTestSQLiteStore(t)
	auth := newTestAuthStore(t, store)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	user := UserRecord{
		ID:           "u1",
		Email:        "cook@example.com",
		Name:         "Cook",
		PasswordHash: "x",
		Role:         "client",
		StaffRole:    "cook",
		RestaurantID: "r1",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := auth.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := auth.CreateUser(ctx, user); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate CreateUser = %v, want ErrUserExists", err)
	}

	got, ok, err := auth.GetUserByEmail(ctx, "cook@example.com")
	if err != nil || !ok {
		t.Fatalf("GetUserByEmail: ok=%v err=%v", ok, err)
	}
	if got.StaffRole != "cook" || got.RestaurantID != "r1" {
		t.Fatalf("staff fields not persisted: %+v", got)
	}

	sess := SessionRecord{
		ID:        "s1",
		UserID:    "u1",
		Token:     "tok-1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	if err := auth.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	fetched, ok, err := auth.GetSessionByToken(ctx, "tok-1")
	if err != nil || !ok || fetched.UserID != "u1" {
		t.Fatalf("GetSessionByToken: %+v ok=%v err=%v", fetched, ok, err)
	}

	if err := auth.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, ok, _ := auth.GetSessionByToken(ctx, "tok-1"); ok {
		t.Fatal("deleted session still resolvable")
	}
}

func TestAuthSQLiteStore_ExpiredSessions(t *testing.T) {
	store := newTestSQLiteStore(t)
	auth := newTestAuthStore(t, store)
	ctx := context.Background()

	now := time.Now().UTC()
	user := UserRecord{ID: "u1", Email: "a@example.com", PasswordHash: "x", Role: "client", CreatedAt: now, UpdatedAt: now}
	if err := auth.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	expired := SessionRecord{
		ID:        "s-old",
		UserID:    "u1",
		Token:     "tok-old",
		ExpiresAt: now.Add(-time.Hour),
		CreatedAt: now.Add(-2 * time.Hour),
	}
	if err := auth.CreateSession(ctx, expired); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, _, err := auth.GetSessionByToken(ctx, "tok-old"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expired lookup = %v, want ErrSessionExpired", err)
	}

	if err := auth.CleanExpiredSessions(ctx); err != nil {
		t.Fatalf("CleanExpiredSessions: %v", err)
	}
	if _, ok, err := auth.GetSessionByToken(ctx, "tok-old"); ok || errors.Is(err, ErrSessionExpired) {
		t.Fatalf("session survived cleanup: ok=%v err=%v", ok, err)
	}
}
