// Package enclave is the REST client for the smart-account/transaction
// service: account provisioning, balance reads, transaction assembly, and
// relayed submission.
package enclave

import (
	"bytes"
	"context"
	"encoding/hex"
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

const (
	apiKeyHeader   = "x-api-key"
	defaultTimeout = 30 * time.Second
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("enclave base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
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

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("enclave returned status %d", e.Status)
	}
	return fmt.Sprintf("enclave returned status %d: %s", e.Status, e.Message)
}

type smartAccountResponse struct {
	Wallet struct {
		SCWAddress string `json:"scw_address"`
	} `json:"wallet"`
}

func (c *Client) CreateSmartAccount(ctx context.Context, ownerAddress string) (models.SmartAccount, error) {
	owner, err := models.NormalizeAddress(ownerAddress)
	if err != nil {
		return models.SmartAccount{}, err
	}
	raw, err := c.do(ctx, http.MethodPost, "/v1/smart-account", map[string]any{
		"ownerAddress": owner,
	})
	if err != nil {
		return models.SmartAccount{}, err
	}
	var parsed smartAccountResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.SmartAccount{}, fmt.Errorf("malformed smart account response: %w", err)
	}
	scw, err := models.NormalizeAddress(parsed.Wallet.SCWAddress)
	if err != nil {
		return models.SmartAccount{}, fmt.Errorf("smart account response carries no valid scw address")
	}
	return models.SmartAccount{
		OwnerAddress: owner,
		SCWAddress:   scw,
		Raw:          raw,
	}, nil
}

func (c *Client) GetSmartBalance(ctx context.Context, scwAddress string) (string, error) {
	scw, err := models.NormalizeAddress(scwAddress)
	if err != nil {
		return "", err
	}
	raw, err := c.do(ctx, http.MethodGet, "/v1/smart-balance/"+scw, nil)
	if err != nil {
		return "", err
	}
	var parsed struct {
		NetBalance string `json:"netBalance"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("malformed balance response: %w", err)
	}
	if strings.TrimSpace(parsed.NetBalance) == "" {
		return "", errors.New("balance response carries no netBalance")
	}
	return parsed.NetBalance, nil
}

type transactionDetail struct {
	EncodedData           string `json:"encodedData"`
	TargetContractAddress string `json:"targetContractAddress"`
	Value                 int64  `json:"value"`
}

type orderData struct {
	Amount string `json:"amount"`
	Type   string `json:"type"`
}

func (c *Client) BuildTransaction(ctx context.Context, ti models.TransactionIntent, scwAddress string, mode models.SignMode) (models.PreparedTransaction, error) {
	raw, err := c.do(ctx, http.MethodPost, "/v1/transactions/build", map[string]any{
		"transactionDetails": []transactionDetail{{
			EncodedData:           "0x" + hex.EncodeToString(ti.EncodedCall),
			TargetContractAddress: ti.TargetContract,
			Value:                 ti.NativeValue,
		}},
		"network":    ti.DestinationChainID,
		"scwAddress": scwAddress,
		"orderData": orderData{
			Amount: ti.OrderAmount,
			Type:   string(ti.OrderType),
		},
		"signMode": string(mode),
	})
	if err != nil {
		return models.PreparedTransaction{}, err
	}
	var parsed struct {
		MessageToSign string          `json:"messageToSign"`
		UserOp        json.RawMessage `json:"userOp"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.PreparedTransaction{}, fmt.Errorf("malformed build response: %w", err)
	}
	if parsed.MessageToSign == "" || len(parsed.UserOp) == 0 {
		return models.PreparedTransaction{}, errors.New("build response is missing messageToSign or userOp")
	}
	return models.PreparedTransaction{
		MessageToSign: parsed.MessageToSign,
		UserOp:        parsed.UserOp,
	}, nil
}

// SubmitTransaction sends the signed payload for relayed execution. Only a
// failure after the request was dispatched maps to app.ErrUnknownOutcome: the
// backend may have accepted the operation, so the caller must not treat it as
// a confirmed failure or resubmit. Errors before dispatch, such as a payload
// that does not encode, stay local and are safe to surface as rejections.
func (c *Client) SubmitTransaction(ctx context.Context, payload models.SignedPayload, destinationChainID int64, scwAddress string) (models.SubmissionReceipt, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/transactions/submit", map[string]any{
		"signature":  payload.Signature,
		"userOp":     payload.UserOp,
		"network":    destinationChainID,
		"scwAddress": scwAddress,
		"signMode":   string(payload.SignMode),
	})
	if err != nil {
		return models.SubmissionReceipt{}, err
	}
	raw, err := c.send(req)
	if err != nil {
		var rejection *apiError
		if errors.As(err, &rejection) {
			return models.SubmissionReceipt{}, err
		}
		return models.SubmissionReceipt{}, fmt.Errorf("%w: %s", app.ErrUnknownOutcome, err)
	}
	return models.SubmissionReceipt{
		Raw:         raw,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
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
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	return req, nil
}

// send dispatches the request; any error it returns means the request was
// already on the wire (or a non-2xx response came back).
func (c *Client) send(req *http.Request) (json.RawMessage, error) {
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
		return nil, &apiError{Status: resp.StatusCode, Message: extractErrorMessage(raw)}
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

func extractErrorMessage(raw []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	if parsed.Error != "" {
		return parsed.Error
	}
	return parsed.Message
}

var _ app.AccountService = (*Client)(nil)
