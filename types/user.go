package types

import "time"

// Credentials are the identity provider credentials attached to a user once
// the login loop reaches the connected state.
type Credentials struct {
	AccessToken   string    `json:"accessToken"`
	ExpiresIn     int       `json:"expiresIn"`
	ExpiresAt     time.Time `json:"expiresAt"`
	SignedRequest string    `json:"signedRequest,omitempty"`
}

// Expired reports whether the access token is past its expiry at now.
func (c Credentials) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// User is the authenticated planner user, keyed by the identity provider's user ID.
type User struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Email       string       `json:"email,omitempty"`
	Credentials Credentials  `json:"-"`
	Coordinates *Coordinates `json:"coords,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Clone returns a copy that shares no pointers with u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Coordinates != nil {
		coords := *u.Coordinates
		c.Coordinates = &coords
	}
	return &c
}

// HasCoordinates reports whether a location has been attached to the user.
func (u *User) HasCoordinates() bool {
	return u != nil && u.Coordinates != nil
}

// Profile is the subset of the identity provider's /me response the planner uses.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
