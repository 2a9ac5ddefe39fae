package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// UserInfo is the identity the external provider vouches for.
type UserInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// HTTPDoer is the outbound HTTP surface the provider client needs. The
// circuit-broken httpclient satisfies it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ProviderClient verifies external-provider access tokens against the
// provider's userinfo endpoint.
type ProviderClient struct {
	name        string
	userinfoURL string
	http        HTTPDoer
}

// NewProviderClient creates a provider client for the named provider.
func NewProviderClient(name, userinfoURL string, doer HTTPDoer) *ProviderClient {
	return &ProviderClient{name: name, userinfoURL: userinfoURL, http: doer}
}

// Name returns the provider name stored on users created through it.
func (c *ProviderClient) Name() string {
	return c.name
}

// VerifyAccessToken presents the token to the userinfo endpoint. A 2xx
// response with a subject proves the token; 401/403 means the token is bad.
func (c *ProviderClient) VerifyAccessToken(ctx context.Context, accessToken string) (*UserInfo, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, apperrors.InvalidInput("provider access token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call userinfo endpoint: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.Unauthorized("provider rejected the access token")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo response: %w", err)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("userinfo response missing subject")
	}

	return &info, nil
}
