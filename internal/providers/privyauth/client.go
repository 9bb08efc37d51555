// Package privyauth is the REST client for the external identity/auth
// provider: identity linking, the authenticated-session query, off-device
// message signing, and bearer-token verification.
package privyauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crosspay/go-backend/internal/app"
	"crosspay/go-backend/pkg/models"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	BaseURL string
	AppID   string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	appID      string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("identity provider base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		appID:   cfg.AppID,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

func (c *Client) SessionInfo(ctx context.Context) (models.ProviderSession, error) {
	raw, err := c.do(ctx, http.MethodGet, "/v1/session", nil)
	if err != nil {
		return models.ProviderSession{}, err
	}
	var parsed models.ProviderSession
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.ProviderSession{}, fmt.Errorf("malformed session response: %w", err)
	}
	return parsed, nil
}

// Link asks the provider to run its linking flow for the kind and returns the
// confirmed identity record. The provider owns the interactive part; this
// call suspends until it completes or the user cancels.
func (c *Client) Link(ctx context.Context, kind models.IdentityKind) (models.LinkedIdentity, error) {
	raw, err := c.do(ctx, http.MethodPost, "/v1/links", map[string]string{
		"kind": string(kind),
	})
	if err != nil {
		return models.LinkedIdentity{}, err
	}
	var parsed models.LinkedIdentity
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.LinkedIdentity{}, fmt.Errorf("malformed link response: %w", err)
	}
	if parsed.Kind == "" || parsed.ExternalID == "" {
		return models.LinkedIdentity{}, errors.New("link response is missing kind or external id")
	}
	return parsed, nil
}

func (c *Client) Unlink(ctx context.Context, kind models.IdentityKind, externalID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/links", map[string]string{
		"kind":    string(kind),
		"subject": externalID,
	})
	return err
}

// SignMessage delegates signing to the signer capability bound to the given
// wallet address and returns the signature as produced by the provider.
func (c *Client) SignMessage(ctx context.Context, address, message string) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, "/v1/sign", map[string]string{
		"address": address,
		"message": message,
	})
	if err != nil {
		return "", err
	}
	var parsed struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("malformed sign response: %w", err)
	}
	if parsed.Signature == "" {
		return "", errors.New("sign response carries no signature")
	}
	return parsed.Signature, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.appID != "" {
		req.Header.Set("privy-app-id", c.appID)
	}
	if c.apiKey != "" {
		req.SetBasicAuth(c.appID, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		message := strings.TrimSpace(string(raw))
		if len(message) > 200 {
			message = message[:200]
		}
		return nil, fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, message)
	}
	return raw, nil
}

var _ app.IdentityProvider = (*Client)(nil)
