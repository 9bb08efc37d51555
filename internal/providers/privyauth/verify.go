package privyauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"crosspay/go-backend/pkg/models"
)

// VerifyToken is a pass-through verification of a bearer access token. The
// token's claims are extracted locally without signature validation (the
// provider holds the verification key); the authoritative answer comes from
// the provider's verify endpoint.
func (c *Client) VerifyToken(ctx context.Context, token string) (models.TokenVerification, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.TokenVerification{}, errors.New("token is required")
	}

	result := models.TokenVerification{}
	if claims, err := unverifiedClaims(token); err == nil {
		result.Subject = claims.Subject
		result.AppID = claims.Audience
		if claims.ExpiresAt != nil {
			result.ExpiresAt = claims.ExpiresAt.Time
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verify", nil)
	if err != nil {
		return models.TokenVerification{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.appID != "" {
		req.Header.Set("privy-app-id", c.appID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.TokenVerification{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.TokenVerification{}, err
	}
	if resp.StatusCode >= 400 {
		return models.TokenVerification{}, fmt.Errorf("token verification failed with status %d", resp.StatusCode)
	}

	result.Verified = true
	result.Raw = json.RawMessage(raw)
	return result, nil
}

type tokenClaims struct {
	Subject   string           `json:"sub"`
	Audience  string           `json:"aud"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

func (c *tokenClaims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c *tokenClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (c *tokenClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c *tokenClaims) GetIssuer() (string, error)                   { return "", nil }
func (c *tokenClaims) GetSubject() (string, error)                  { return c.Subject, nil }
func (c *tokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings{c.Audience}, nil
}

func unverifiedClaims(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
