package events

// Identity is the decoded subscriber identity a connection adapter binds a
// subscription to. The zero value is the anonymous client identity.
type Identity struct {
	UserID       string
	Role         Role
	StaffRole    StaffRole
	RestaurantID string
}

// Anonymous is the identity used for connections without a valid credential.
func Anonymous() Identity {
	return Identity{UserID: AnonymousUser, Role: RoleClient}
}

// Subscription builds the registration config for this identity with the
// given deliverer.
func (id Identity) Subscription(d Deliverer) SubscriptionConfig {
	return SubscriptionConfig{
		UserID:       id.UserID,
		Role:         id.Role,
		StaffRole:    id.StaffRole,
		RestaurantID: id.RestaurantID,
		Deliverer:    d,
	}
}
