// Package identity talks to the social login provider.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/NomadCrew/nomad-crew-planner/config"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"go.uber.org/zap"
)

// Provider is the login provider contract. Login blocks until the
// interactive prompt completes or ctx ends.
type Provider interface {
	LoginStatus(ctx context.Context) (*types.LoginResponse, error)
	Login(ctx context.Context, scope []string) (*types.LoginResponse, error)
	Profile(ctx context.Context, accessToken string) (*types.Profile, error)
}

// HTTPProvider calls the provider's JSON API.
type HTTPProvider struct {
	baseURL  string
	appID    string
	appToken string
	client   *http.Client
	log      *zap.SugaredLogger
}

var _ Provider = (*HTTPProvider)(nil)

func NewHTTPProvider(cfg config.AuthConfig, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout()}
	}
	return &HTTPProvider{
		baseURL:  strings.TrimRight(cfg.ProviderURL, "/"),
		appID:    cfg.AppID,
		appToken: cfg.AccessToken,
		client:   client,
		log:      logger.GetLogger().Named("identity"),
	}
}

func (p *HTTPProvider) LoginStatus(ctx context.Context) (*types.LoginResponse, error) {
	params := url.Values{}
	params.Add("app_id", p.appID)

	var resp types.LoginResponse
	if err := p.do(ctx, http.MethodGet, "/v1/login_status?"+params.Encode(), nil, p.appToken, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *HTTPProvider) Login(ctx context.Context, scope []string) (*types.LoginResponse, error) {
	body := map[string]string{
		"app_id": p.appID,
		"scope":  strings.Join(scope, ","),
	}

	var resp types.LoginResponse
	if err := p.do(ctx, http.MethodPost, "/v1/login", body, p.appToken, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *HTTPProvider) Profile(ctx context.Context, accessToken string) (*types.Profile, error) {
	params := url.Values{}
	params.Add("fields", "id,name,email")

	var profile types.Profile
	if err := p.do(ctx, http.MethodGet, "/v1/me?"+params.Encode(), nil, accessToken, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body interface{}, token string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.log.Warnw("Identity provider returned an error",
			"path", strings.SplitN(path, "?", 2)[0],
			"status", resp.StatusCode,
			"token", logger.MaskToken(token),
		)
		return fmt.Errorf("identity provider error: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
