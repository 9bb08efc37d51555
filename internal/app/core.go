package app

import (
	"context"

	"crosspay/go-backend/pkg/models"
)

type CoreAPI interface {
	SessionStatus() models.SessionSnapshot
	Logout() error

	LinkIdentity(ctx context.Context, kind models.IdentityKind) (models.LinkedIdentity, error)
	UnlinkIdentity(ctx context.Context, kind models.IdentityKind, externalID string) error
	CanRemoveIdentity() bool
	ListIdentities() []models.LinkedIdentity
	VerifyToken(ctx context.Context, token string) (models.TokenVerification, error)

	EnsureSmartAccount(ctx context.Context) (models.SmartAccount, error)
	GetBalance() (models.Balance, bool)
	RefreshBalance(ctx context.Context) (models.Balance, error)

	SignMessage(ctx context.Context, message string) (string, error)
	SendTransfer(ctx context.Context, req models.TransferRequest) (models.TransferResult, error)

	GetMetrics() models.MetricsSnapshot
}
