package models

import (
	"encoding/json"
	"strings"
	"time"
)

// IdentityKind enumerates the external identity types the auth provider can
// attach to a session.
type IdentityKind string

const (
	IdentityKindEmail   IdentityKind = "email"
	IdentityKindPhone   IdentityKind = "phone"
	IdentityKindWallet  IdentityKind = "wallet"
	IdentityKindGoogle  IdentityKind = "google"
	IdentityKindTwitter IdentityKind = "twitter"
	IdentityKindDiscord IdentityKind = "discord"
)

// ParseIdentityKind normalizes a raw kind string; ok is false for unknown kinds.
func ParseIdentityKind(raw string) (IdentityKind, bool) {
	switch IdentityKind(strings.ToLower(strings.TrimSpace(raw))) {
	case IdentityKindEmail:
		return IdentityKindEmail, true
	case IdentityKindPhone:
		return IdentityKindPhone, true
	case IdentityKindWallet:
		return IdentityKindWallet, true
	case IdentityKindGoogle:
		return IdentityKindGoogle, true
	case IdentityKindTwitter:
		return IdentityKindTwitter, true
	case IdentityKindDiscord:
		return IdentityKindDiscord, true
	}
	return "", false
}

type LinkedIdentity struct {
	Kind       IdentityKind `json:"kind"`
	ExternalID string       `json:"external_id"`
	LinkedAt   time.Time    `json:"linked_at,omitempty"`
}

// SmartAccount is the provider-derived contract account for an owner key.
// Re-derivation for the same owner yields the same scw address.
type SmartAccount struct {
	OwnerAddress string          `json:"owner_address"`
	SCWAddress   string          `json:"scw_address"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// Balance is the smart account token balance in base units (integer string).
type Balance struct {
	Amount  string    `json:"amount"`
	Display string    `json:"display,omitempty"`
	AsOf    time.Time `json:"as_of"`
}

type TransferRequest struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

type OrderType string

const (
	// OrderAmountOut means the recipient must receive the exact amount on the
	// destination chain; the provider accounts for source-side costs.
	OrderAmountOut OrderType = "AMOUNT_OUT"
	OrderAmountIn  OrderType = "AMOUNT_IN"
)

type SignMode string

const (
	SignModeECDSA      SignMode = "ECDSA"
	SignModeSessionKey SignMode = "SESSION_KEY"
)

// TransactionIntent is an immutable, single-use description of an on-chain
// call plus its cross-chain order accounting.
type TransactionIntent struct {
	EncodedCall        []byte    `json:"encoded_call"`
	TargetContract     string    `json:"target_contract"`
	NativeValue        int64     `json:"native_value"`
	OrderAmount        string    `json:"order_amount"`
	OrderType          OrderType `json:"order_type"`
	DestinationChainID int64     `json:"destination_chain_id"`
}

// PreparedTransaction is the provider-assembled signable structure.
type PreparedTransaction struct {
	MessageToSign string          `json:"message_to_sign"`
	UserOp        json.RawMessage `json:"user_op"`
}

// SignedPayload binds a signature to the user operation it was produced for.
type SignedPayload struct {
	Signature string          `json:"signature"`
	UserOp    json.RawMessage `json:"user_op"`
	SignMode  SignMode        `json:"sign_mode"`
}

type SubmissionReceipt struct {
	TransferID  string          `json:"transfer_id"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

type TransferOutcome string

const (
	TransferOutcomeSubmitted TransferOutcome = "submitted"
	TransferOutcomeFailed    TransferOutcome = "failed"
	// TransferOutcomeUnknown means the submission produced no backend response;
	// it must not be treated as a confirmed failure or blindly resubmitted.
	TransferOutcomeUnknown TransferOutcome = "unknown"
)

type TransferResult struct {
	TransferID string             `json:"transfer_id"`
	Outcome    TransferOutcome    `json:"outcome"`
	Stage      string             `json:"stage,omitempty"`
	Receipt    *SubmissionReceipt `json:"receipt,omitempty"`
}

// TokenVerification is the opaque pass-through result of verifying a bearer
// access token against the identity provider.
type TokenVerification struct {
	Verified  bool            `json:"verified"`
	Subject   string          `json:"subject,omitempty"`
	AppID     string          `json:"app_id,omitempty"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

type ProvisioningState string

const (
	ProvisioningUninitialized ProvisioningState = "uninitialized"
	ProvisioningInFlight      ProvisioningState = "provisioning"
	ProvisioningReady         ProvisioningState = "ready"
)

// SessionSnapshot is a read-only view of the process session.
type SessionSnapshot struct {
	Ready             bool              `json:"ready"`
	Authenticated     bool              `json:"authenticated"`
	PrimaryAddress    string            `json:"primary_address,omitempty"`
	LinkedIdentities  []LinkedIdentity  `json:"linked_identities"`
	SmartAccount      *SmartAccount     `json:"smart_account,omitempty"`
	Balance           *Balance          `json:"balance,omitempty"`
	ProvisioningState ProvisioningState `json:"provisioning_state"`
}

type MetricsSnapshot struct {
	ErrorCounters       map[string]int             `json:"error_counters"`
	OperationStats      map[string]OperationMetric `json:"operation_stats"`
	LastUpdatedAt       time.Time                  `json:"last_updated_at"`
	NotificationBacklog int                        `json:"notification_backlog"`
}

type OperationMetric struct {
	Count         int   `json:"count"`
	Errors        int   `json:"errors"`
	AvgLatencyMs  int64 `json:"avg_latency_ms"`
	MaxLatencyMs  int64 `json:"max_latency_ms"`
	LastLatencyMs int64 `json:"last_latency_ms"`
}

// ProviderSession mirrors the identity provider's authenticated-session query.
type ProviderSession struct {
	Ready            bool             `json:"ready"`
	Authenticated    bool             `json:"authenticated"`
	LinkedIdentities []LinkedIdentity `json:"linked_identities"`
}
