package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/placemate/mailsentry/internal/mail"
)

// Token represents OAuth tokens
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// BetterAuthClient fetches per-recipient OAuth tokens from BetterAuth.
// BetterAuth owns storage and refresh; the pipeline only reads.
type BetterAuthClient struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

// NewBetterAuthClient creates a client to fetch tokens from BetterAuth
func NewBetterAuthClient(authServerURL, serviceKey string) *BetterAuthClient {
	return &BetterAuthClient{
		baseURL:    authServerURL,
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// GetToken fetches the OAuth token for one recipient's provider account.
// A 404 means the recipient never connected that provider.
func (c *BetterAuthClient) GetToken(ctx context.Context, recipientID string, provider mail.Provider) (*Token, error) {
	slug, err := providerSlug(provider)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/auth/users/%s/accounts/%s/token", c.baseURL, recipientID, slug)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, fmt.Errorf("no %s account connected", slug)
	}

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    int64  `json:"expires_at"` // unix timestamp
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Token{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Expiry:       time.Unix(result.ExpiresAt, 0),
	}, nil
}

func providerSlug(provider mail.Provider) (string, error) {
	switch provider {
	case mail.ProviderGmail:
		return "google", nil
	case mail.ProviderOutlook:
		return "microsoft", nil
	default:
		return "", fmt.Errorf("unsupported provider %q", provider)
	}
}
