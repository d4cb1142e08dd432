package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tably-labs/tably/events"
)

const (
	// SessionDuration defines how long a session is valid.
	SessionDuration = 7 * 24 * time.Hour // 7 days

	// AuthCookieName is the name of the session cookie.
	AuthCookieName = "tably_session"
)

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for POST /api/auth/login.
type LoginResponse struct {
	User  *UserResponse `json:"user"`
	Token string        `json:"token"`
}

// UserResponse is the public user data returned in auth responses.
type UserResponse struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	Name         string           `json:"name,omitempty"`
	Role         events.Role      `json:"role"`
	StaffRole    events.StaffRole `json:"staffRole,omitempty"`
	RestaurantID string           `json:"restaurantId,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// RegisterRequest is the JSON body for POST /api/auth/register.
type RegisterRequest struct {
	Email        string           `json:"email"`
	Password     string           `json:"password"`
	Name         string           `json:"name,omitempty"`
	Role         events.Role      `json:"role,omitempty"`
	StaffRole    events.StaffRole `json:"staffRole,omitempty"`
	RestaurantID string           `json:"restaurantId,omitempty"`
}

func userResponse(user UserRecord) *UserResponse {
	return &UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
		StaffRole:    user.StaffRole,
		RestaurantID: user.RestaurantID,
		CreatedAt:    user.CreatedAt,
	}
}

// handleLogin authenticates a user and creates a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.authStore == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "auth store not configured")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}

	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "email is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "password is required")
		return
	}

	user, ok, err := s.authStore.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		return
	}

	token, err := generateSessionToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "failed to generate session token")
		return
	}

	now := time.Now().UTC()
	sess := SessionRecord{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(SessionDuration),
		CreatedAt: now,
	}

	if err := s.authStore.CreateSession(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	setSessionCookie(w, token, sess.ExpiresAt)

	writeJSON(w, http.StatusOK, LoginResponse{
		User:  userResponse(user),
		Token: token,
	})
}

// handleLogout invalidates the current session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.authStore == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "auth store not configured")
		return
	}

	token := extractSessionToken(r)
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	sess, ok, err := s.authStore.GetSessionByToken(r.Context(), token)
	if err != nil && !errors.Is(err, ErrSessionExpired) {
		s.logger.Warn("logout session lookup failed", "error", err)
	}

	if ok {
		if err := s.authStore.DeleteSession(r.Context(), sess.ID); err != nil {
			s.logger.Warn("logout session delete failed", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the current authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if s.authStore == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "auth store not configured")
		return
	}

	token := extractSessionToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no session token provided")
		return
	}

	sess, ok, err := s.authStore.GetSessionByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			writeError(w, http.StatusUnauthorized, "SESSION_EXPIRED", "session has expired")
			return
		}
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session token")
		return
	}

	user, ok, err := s.authStore.GetUserByID(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "user not found")
		return
	}

	writeJSON(w, http.StatusOK, userResponse(user))
}

// handleRegister creates a new user account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.authStore == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "auth store not configured")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}

	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "email is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "password is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "password must be at least 8 characters")
		return
	}

	role := req.Role
	switch role {
	case "":
		role = events.RoleClient
	case events.RoleClient, events.RoleOwner:
	default:
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role")
		return
	}
	if req.StaffRole != "" && !validStaffRole(req.StaffRole) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid staff role")
		return
	}
	// Staff accounts are clients bound to a restaurant.
	if req.StaffRole != "" && req.RestaurantID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "staff accounts require a restaurant")
		return
	}

	_, exists, err := s.authStore.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "USER_EXISTS", "a user with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "HASH_ERROR", "failed to hash password")
		return
	}

	now := time.Now().UTC()
	user := UserRecord{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(req.Email),
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         role,
		StaffRole:    req.StaffRole,
		RestaurantID: req.RestaurantID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.authStore.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, ErrUserExists) {
			writeError(w, http.StatusConflict, "USER_EXISTS", "a user with this email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	token, err := generateSessionToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "TOKEN_ERROR", "failed to generate session token")
		return
	}

	sess := SessionRecord{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(SessionDuration),
		CreatedAt: now,
	}

	if err := s.authStore.CreateSession(r.Context(), sess); err != nil {
		s.logger.Warn("failed to create session after registration", "user_id", user.ID, "error", err)
	}

	setSessionCookie(w, token, sess.ExpiresAt)

	writeJSON(w, http.StatusCreated, LoginResponse{
		User:  userResponse(user),
		Token: token,
	})
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func validStaffRole(role events.StaffRole) bool {
	switch role {
	case events.StaffAdministrator, events.StaffManager, events.StaffCashier, events.StaffCook, events.StaffWaiter:
		return true
	}
	return false
}

// generateSessionToken creates a cryptographically secure random token.
func generateSessionToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
