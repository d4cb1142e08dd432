package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tably-labs/tably/events"
)

// --- Restaurants ---

func (s *Server) handleListRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := s.store.ListActiveRestaurants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if restaurants == nil {
		restaurants = []Restaurant{}
	}
	writeJSON(w, http.StatusOK, restaurants)
}

func (s *Server) handleGetRestaurant(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := s.store.GetRestaurant(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "restaurant not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRestaurantRequest is the JSON body for POST /api/restaurants.
type CreateRestaurantRequest struct {
	Name  string      `json:"name"`
	Hours WeeklyHours `json:"openingHours,omitempty"`
}

func (s *Server) handleCreateRestaurant(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok || id.Role != events.RoleOwner {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "only owners can create restaurants")
		return
	}

	var req CreateRestaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
		return
	}

	now := time.Now().UTC()
	rec := Restaurant{
		ID:        uuid.New().String(),
		OwnerID:   id.UserID,
		Name:      req.Name,
		IsActive:  true,
		Hours:     req.Hours,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateRestaurant(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleToggleRestaurant(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	rec, found, err := s.store.GetRestaurant(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "restaurant not found")
		return
	}
	if rec.OwnerID != id.UserID {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "you do not own this restaurant")
		return
	}

	rec.IsOpen = !rec.IsOpen
	if err := s.store.UpdateRestaurantOpen(r.Context(), rec.ID, rec.IsOpen); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	message := rec.Name + " is now closed"
	if rec.IsOpen {
		message = rec.Name + " is now open"
	}
	s.hub.Publish(events.NewRestaurantStatus(rec.ID, rec.IsOpen, message))

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateHours(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	rec, found, err := s.store.GetRestaurant(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "restaurant not found")
		return
	}
	if rec.OwnerID != id.UserID {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "you do not own this restaurant")
		return
	}

	var hours WeeklyHours
	if err := json.NewDecoder(r.Body).Decode(&hours); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}

	if err := s.store.UpdateRestaurantHours(r.Context(), rec.ID, hours); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	rec.Hours = hours

	s.hub.Publish(events.NewRestaurantHours(rec.ID, hours))

	writeJSON(w, http.StatusOK, rec)
}

// --- Reservations ---

// CreateReservationRequest is the JSON body for creating a reservation.
type CreateReservationRequest struct {
	Date      time.Time `json:"date"`
	PartySize int       `json:"partySize"`
	Notes     string    `json:"notes,omitempty"`
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	restaurant, found, err := s.store.GetRestaurant(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "restaurant not found")
		return
	}

	var req CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	if req.PartySize <= 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "partySize must be positive")
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date is required")
		return
	}

	now := time.Now().UTC()
	rec := Reservation{
		ID:           uuid.New().String(),
		RestaurantID: restaurant.ID,
		ClientID:     id.UserID,
		Date:         req.Date,
		PartySize:    req.PartySize,
		Status:       ReservationPending,
		Notes:        req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateReservation(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	s.hub.Publish(events.NewReservation(restaurant.ID, rec))

	writeJSON(w, http.StatusCreated, rec)
}

// UpdateStatusRequest is the JSON body for status transitions on
// reservations and sales.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	if !validReservationStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid reservation status")
		return
	}

	rec, found, err := s.store.GetReservation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "reservation not found")
		return
	}
	if !s.staffOf(r, id, rec.RestaurantID) && rec.ClientID != id.UserID {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not your reservation")
		return
	}

	updated, err := s.store.UpdateReservationStatus(r.Context(), rec.ID, req.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	s.hub.Publish(events.NewReservationUpdate(updated.ClientID, updated))

	writeJSON(w, http.StatusOK, updated)
}

// --- Sales ---

// CreateSaleRequest is the JSON body for creating a sale.
type CreateSaleRequest struct {
	Items []SaleItem `json:"items"`
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	restaurantID := r.PathValue("id")
	if !s.staffOf(r, id, restaurantID) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "staff access required")
		return
	}

	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "at least one item is required")
		return
	}

	total := 0.0
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "item quantity must be positive")
			return
		}
		total += float64(item.Quantity) * item.Price
	}

	now := time.Now().UTC()
	rec := Sale{
		ID:           uuid.New().String(),
		RestaurantID: restaurantID,
		CreatedBy:    id.UserID,
		Status:       SalePending,
		Items:        req.Items,
		Total:        total,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateSale(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	s.hub.Publish(events.NewSale(restaurantID, rec))

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	if !validSaleStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid sale status")
		return
	}

	rec, found, err := s.store.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "sale not found")
		return
	}
	if !s.staffOf(r, id, rec.RestaurantID) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "staff access required")
		return
	}

	updated, err := s.store.UpdateSaleStatus(r.Context(), rec.ID, req.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	s.hub.Publish(events.NewSaleUpdate(updated.RestaurantID, updated))

	writeJSON(w, http.StatusOK, updated)
}

// --- Announcements ---

// CreateAnnouncementRequest is the JSON body for creating an announcement.
type CreateAnnouncementRequest struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

func (s *Server) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := s.store.ListAnnouncements(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if announcements == nil {
		announcements = []Announcement{}
	}
	writeJSON(w, http.StatusOK, announcements)
}

func (s *Server) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok || (id.Role != events.RoleOwner && id.StaffRole != events.StaffAdministrator) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "announcement access required")
		return
	}

	var req CreateAnnouncementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "title is required")
		return
	}

	rec := Announcement{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Body:      req.Body,
		CreatedBy: id.UserID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAnnouncement(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	s.hub.Publish(events.NewAnnouncement(rec))

	writeJSON(w, http.StatusCreated, rec)
}

// --- Helpers ---

// staffOf reports whether the identity belongs to a restaurant's staff:
// its owner, or a staff-role user bound to it.
func (s *Server) staffOf(r *http.Request, id events.Identity, restaurantID string) bool {
	if id.Role == events.RoleOwner {
		rec, ok, err := s.store.FindRestaurantByOwner(r.Context(), id.UserID)
		if err != nil {
			s.logger.Warn("resolve owned restaurant", "user_id", id.UserID, "error", err)
			return false
		}
		return ok && rec.ID == restaurantID
	}
	return id.StaffRole != "" && id.RestaurantID == restaurantID
}

func validReservationStatus(status string) bool {
	switch status {
	case ReservationPending, ReservationConfirmed, ReservationCancelled:
		return true
	}
	return false
}

func validSaleStatus(status string) bool {
	switch status {
	case SalePending, SalePreparing, SaleReady, SaleDelivered, SaleCancelled:
		return true
	}
	return false
}
