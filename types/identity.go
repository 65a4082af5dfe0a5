package types

// LoginStatus is the identity provider's view of the current session.
type LoginStatus string

const (
	LoginStatusConnected     LoginStatus = "connected"
	LoginStatusNotAuthorized LoginStatus = "not_authorized"
	LoginStatusUnknown       LoginStatus = "unknown"
)

// AuthResponse carries the credentials of a connected login.
type AuthResponse struct {
	UserID        string `json:"userID"`
	AccessToken   string `json:"accessToken"`
	ExpiresIn     int    `json:"expiresIn"`
	SignedRequest string `json:"signedRequest,omitempty"`
	// GrantedScopes is nil when the provider does not report scopes.
	GrantedScopes []string `json:"grantedScopes,omitempty"`
}

// LoginResponse is returned by both the status check and the login prompt.
type LoginResponse struct {
	Status       LoginStatus   `json:"status"`
	AuthResponse *AuthResponse `json:"authResponse,omitempty"`
}

// Connected reports whether the response carries usable credentials.
func (r *LoginResponse) Connected() bool {
	return r != nil && r.Status == LoginStatusConnected && r.AuthResponse != nil && r.AuthResponse.UserID != ""
}
