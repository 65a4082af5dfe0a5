package identity

import (
	"context"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/internal/auth"
	"github.com/NomadCrew/nomad-crew-planner/types"
)

// DevProvider is always connected as a fixed user. It is used when no
// provider URL is configured.
type DevProvider struct {
	UserID    string
	Name      string
	AppID     string
	AppSecret string
	Scope     []string
}

var _ Provider = (*DevProvider)(nil)

func (p *DevProvider) LoginStatus(ctx context.Context) (*types.LoginResponse, error) {
	return p.connected()
}

func (p *DevProvider) Login(ctx context.Context, scope []string) (*types.LoginResponse, error) {
	return p.connected()
}

func (p *DevProvider) Profile(ctx context.Context, accessToken string) (*types.Profile, error) {
	return &types.Profile{ID: p.UserID, Name: p.Name}, nil
}

func (p *DevProvider) connected() (*types.LoginResponse, error) {
	resp := &types.AuthResponse{
		UserID:        p.UserID,
		AccessToken:   "dev-" + p.UserID,
		ExpiresIn:     int(time.Hour.Seconds()),
		GrantedScopes: p.Scope,
	}
	if p.AppSecret != "" {
		signed, err := auth.SignRequest(p.UserID, p.AppID, p.AppSecret, time.Hour)
		if err != nil {
			return nil, err
		}
		resp.SignedRequest = signed
	}
	return &types.LoginResponse{Status: types.LoginStatusConnected, AuthResponse: resp}, nil
}
