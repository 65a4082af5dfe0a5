package types

import "time"

// Airport identifies a trip origin or destination. Code is the only field
// compared when deciding whether a destination changed.
type Airport struct {
	Code        string       `json:"code"`
	Name        string       `json:"name,omitempty"`
	City        string       `json:"city,omitempty"`
	Country     string       `json:"country,omitempty"`
	Coordinates *Coordinates `json:"coords,omitempty"`
}

// AirportCode returns the code of a, or "" when a is nil.
func AirportCode(a *Airport) string {
	if a == nil {
		return ""
	}
	return a.Code
}

// Trip is a shared travel plan synchronized between participants.
type Trip struct {
	ID          string                 `json:"id"`
	OwnerID     string                 `json:"userId"`
	Name        string                 `json:"name,omitempty"`
	Origin      *Airport               `json:"origin,omitempty"`
	Destination *Airport               `json:"destination,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Clone deep-copies the airport pointers so callers can hold a snapshot while
// the live trip keeps changing.
func (t Trip) Clone() Trip {
	c := t
	c.Origin = cloneAirport(t.Origin)
	c.Destination = cloneAirport(t.Destination)
	if t.Fields != nil {
		c.Fields = make(map[string]interface{}, len(t.Fields))
		for k, v := range t.Fields {
			c.Fields[k] = v
		}
	}
	return c
}

func cloneAirport(a *Airport) *Airport {
	if a == nil {
		return nil
	}
	c := *a
	if a.Coordinates != nil {
		coords := *a.Coordinates
		c.Coordinates = &coords
	}
	return &c
}

// TripSummary is a row of the user's trip list shown in the sidebar.
type TripSummary struct {
	ID          string `json:"id"`
	OwnerID     string `json:"userId"`
	Name        string `json:"name,omitempty"`
	Destination string `json:"destination,omitempty"`
}
