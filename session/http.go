package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPProvider signs in against a kedai server's session endpoint.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{BaseURL: strings.TrimRight(baseURL, "/"), Client: http.DefaultClient}
}

func (p *HTTPProvider) SignIn(ctx context.Context) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/session", nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return Identity{}, ErrAnonymousDisabled
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Identity{}, fmt.Errorf("sign in: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	if identity.UID == "" || identity.Token == "" {
		return Identity{}, fmt.Errorf("sign in: incomplete identity")
	}
	return identity, nil
}
