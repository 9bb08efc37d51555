package app

import (
	"context"
	"log/slog"
	"time"

	"crosspay/go-backend/internal/intent"
	"crosspay/go-backend/pkg/models"
)

// IdentityProvider is the external auth provider that links identities to the
// session and produces signatures with the user's primary key. Every call is
// a round trip; the session mutates only after the provider confirms.
type IdentityProvider interface {
	SessionInfo(ctx context.Context) (models.ProviderSession, error)
	Link(ctx context.Context, kind models.IdentityKind) (models.LinkedIdentity, error)
	Unlink(ctx context.Context, kind models.IdentityKind, externalID string) error
	SignMessage(ctx context.Context, address, message string) (string, error)
	VerifyToken(ctx context.Context, token string) (models.TokenVerification, error)
}

// AccountService is the smart-account/transaction backend: provisioning,
// balance reads, signable-payload assembly, and relayed submission.
type AccountService interface {
	CreateSmartAccount(ctx context.Context, ownerAddress string) (models.SmartAccount, error)
	GetSmartBalance(ctx context.Context, scwAddress string) (string, error)
	BuildTransaction(ctx context.Context, ti models.TransactionIntent, scwAddress string, mode models.SignMode) (models.PreparedTransaction, error)
	SubmitTransaction(ctx context.Context, payload models.SignedPayload, destinationChainID int64, scwAddress string) (models.SubmissionReceipt, error)
}

// NotificationBus carries session events to RPC stream subscribers. The
// in-process NotificationHub is the default implementation.
type NotificationBus interface {
	Subscribe(fromSeq int64) ([]NotificationEvent, <-chan NotificationEvent, func())
	Publish(method string, payload any) NotificationEvent
	BacklogSize() int
}

type ServiceOptions struct {
	Identity IdentityProvider
	Accounts AccountService
	Asset    intent.Asset
	Hub      NotificationBus
	Metrics  *PipelineMetrics
	Logger   *slog.Logger
}

// Notification methods published on the bus.
const (
	NotifyIdentityLinked    = "identity_linked"
	NotifyIdentityUnlinked  = "identity_unlinked"
	NotifyAccountReady      = "account_ready"
	NotifyBalanceUpdated    = "balance_updated"
	NotifyTransferSubmitted = "transfer_submitted"
	NotifySessionTornDown   = "session_torn_down"
)

const SignMessageTimeout = 60 * time.Second
