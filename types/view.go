package types

// ViewEventType names an interaction reported by the map or sidebar.
type ViewEventType string

const (
	ViewEventAirportClick               ViewEventType = "airport-click"
	ViewEventRelocate                   ViewEventType = "relocate"
	ViewEventTripClick                  ViewEventType = "trip-click"
	ViewEventShowTrip                   ViewEventType = "show-trip"
	ViewEventShowTripList               ViewEventType = "show-trip-list"
	ViewEventOriginAirportSelected      ViewEventType = "origin-airport-selected"
	ViewEventDestinationAirportSelected ViewEventType = "destination-airport-selected"
)

// IsValid reports whether t is one of the known view events.
func (t ViewEventType) IsValid() bool {
	switch t {
	case ViewEventAirportClick, ViewEventRelocate, ViewEventTripClick, ViewEventShowTrip,
		ViewEventShowTripList, ViewEventOriginAirportSelected, ViewEventDestinationAirportSelected:
		return true
	default:
		return false
	}
}

// ViewEvent is published by view adapters. Only the fields relevant to Type are set.
type ViewEvent struct {
	Type    ViewEventType `json:"type"`
	Trip    *Trip         `json:"trip,omitempty"`
	Airport *Airport      `json:"airport,omitempty"`
}

// NavigationParams are the page parameters parsed from the navigation path.
type NavigationParams struct {
	TripID string `json:"trip,omitempty"`
	UserID string `json:"user,omitempty"`
}

// ViewUpdateType names a message pushed from the controller to a view.
type ViewUpdateType string

const (
	ViewUpdateRender             ViewUpdateType = "render"
	ViewUpdateDisplayTrip        ViewUpdateType = "display-trip"
	ViewUpdateMapTrip            ViewUpdateType = "map-trip"
	ViewUpdateDestinationChanged ViewUpdateType = "destination-changed"
	ViewUpdateParticipants       ViewUpdateType = "participants"
	ViewUpdateNavigate           ViewUpdateType = "navigate"
	ViewUpdateToast              ViewUpdateType = "toast"
)

// ViewUpdate is the message written to a connected browser.
type ViewUpdate struct {
	Type         ViewUpdateType      `json:"type"`
	View         string              `json:"view,omitempty"`
	User         *User               `json:"user,omitempty"`
	Trip         *Trip               `json:"trip,omitempty"`
	Trips        []TripSummary       `json:"trips,omitempty"`
	Participants []Participant       `json:"participants,omitempty"`
	Destination  *DestinationChanged `json:"destination,omitempty"`
	Path         string              `json:"path,omitempty"`
	Level        string              `json:"level,omitempty"`
	Message      string              `json:"message,omitempty"`
}
