package types

import "time"

// Participant is a member of a trip's live participant set, keyed by UserID.
type Participant struct {
	UserID      string       `json:"userId"`
	TripID      string       `json:"tripId"`
	Name        string       `json:"name,omitempty"`
	Coordinates *Coordinates `json:"coords,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
