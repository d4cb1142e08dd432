package server

import (
	"context"
	"errors"

	"github.com/tably-labs/tably/events"
)

// TokenVerifier resolves session tokens to subscriber identities for the
// real-time connection adapters. A missing, unknown, or expired token is
// reported as not-ok, never as a hard failure; the adapters degrade such
// connections to anonymous rather than rejecting them.
type TokenVerifier struct {
	auth AuthStore
}

// NewTokenVerifier creates a verifier backed by the given auth store.
func NewTokenVerifier(auth AuthStore) *TokenVerifier {
	return &TokenVerifier{auth: auth}
}

// Verify looks up the session and its user, returning the decoded identity.
// The boolean is false for any token that does not map to a live session.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (events.Identity, bool, error) {
	if v == nil || v.auth == nil || token == "" {
		return events.Identity{}, false, nil
	}

	sess, ok, err := v.auth.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return events.Identity{}, false, nil
		}
		return events.Identity{}, false, err
	}
	if !ok {
		return events.Identity{}, false, nil
	}

	user, ok, err := v.auth.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return events.Identity{}, false, err
	}
	if !ok {
		return events.Identity{}, false, nil
	}

	return events.Identity{
		UserID:       user.ID,
		Role:         user.Role,
		StaffRole:    user.StaffRole,
		RestaurantID: user.RestaurantID,
	}, true, nil
}

// ConnectionResolver turns connection tokens into fully bound subscriber
// identities. Owner identities get their restaurant binding filled in from
// the restaurant store, since owner accounts are not staff-bound and carry
// no restaurant on the user record itself.
type ConnectionResolver struct {
	verifier    *TokenVerifier
	restaurants RestaurantStore
}

// NewConnectionResolver creates a resolver over the auth and restaurant
// stores. Either store may be nil; resolution then degrades gracefully.
func NewConnectionResolver(auth AuthStore, restaurants RestaurantStore) *ConnectionResolver {
	return &ConnectionResolver{
		verifier:    NewTokenVerifier(auth),
		restaurants: restaurants,
	}
}

// Resolve maps a token to an identity. Invalid or absent tokens yield the
// anonymous identity; only infrastructure failures return an error.
func (r *ConnectionResolver) Resolve(ctx context.Context, token string) (events.Identity, error) {
	if r == nil {
		return events.Anonymous(), nil
	}

	id, ok, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return events.Anonymous(), err
	}
	if !ok {
		return events.Anonymous(), nil
	}

	if id.Role == events.RoleOwner && id.RestaurantID == "" && r.restaurants != nil {
		rec, found, err := r.restaurants.FindRestaurantByOwner(ctx, id.UserID)
		if err != nil {
			return events.Anonymous(), err
		}
		if found {
			id.RestaurantID = rec.ID
		}
	}
	return id, nil
}
