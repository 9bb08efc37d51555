package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"crosspay/go-backend/internal/intent"
	"crosspay/go-backend/internal/platform/privacylog"
	"crosspay/go-backend/pkg/models"
)

// Service is the single-session orchestrator. It owns the Session, drives
// provisioning and balance refreshes off identity-link events, and runs the
// transfer pipeline.
type Service struct {
	identity IdentityProvider
	accounts AccountService
	asset    intent.Asset

	session     *Session
	provisioner *Provisioner
	balances    *BalanceReader

	hub     NotificationBus
	pipe    *PipelineMetrics
	metrics *ServiceMetricsState
	logger  *slog.Logger

	// Serializes unlink round trips so the size precheck a caller passed
	// still holds when its provider call lands.
	unlinkMu sync.Mutex
}

func DefaultLogger() *slog.Logger {
	return slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stdout, nil)))
}

func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Identity == nil {
		return nil, errors.New("identity provider is required")
	}
	if opts.Accounts == nil {
		return nil, errors.New("account service is required")
	}
	asset := opts.Asset
	if asset.Contract == "" {
		asset = intent.USDCOptimism()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewNotificationHub(256)
	}
	logger := opts.Logger
	if logger == nil {
		logger = DefaultLogger()
	}
	return &Service{
		identity:    opts.Identity,
		accounts:    opts.Accounts,
		asset:       asset,
		session:     NewSession(),
		provisioner: NewProvisioner(opts.Accounts),
		balances:    NewBalanceReader(opts.Accounts, asset.Decimals),
		hub:         hub,
		pipe:        opts.Metrics,
		metrics:     NewServiceMetricsState(),
		logger:      logger,
	}, nil
}

// Start queries the identity provider's authenticated-session state and, when
// a wallet identity is already linked, kicks off provisioning and the first
// balance read in the background.
func (s *Service) Start(ctx context.Context) error {
	ps, err := s.identity.SessionInfo(ctx)
	if err != nil {
		return fmt.Errorf("identity session query failed: %w", err)
	}
	epoch := s.session.Begin(ps)
	s.logger.Info("session established",
		"authenticated", ps.Authenticated,
		"linked_identities", len(ps.LinkedIdentities))

	if primary, ok := s.session.PrimaryAddress(); ok && ps.Authenticated {
		go s.establishAccount(context.WithoutCancel(ctx), epoch, primary)
	}
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	_ = ctx
	return s.Logout()
}

func (s *Service) SubscribeNotifications(cursor int64) ([]NotificationEvent, <-chan NotificationEvent, func()) {
	return s.hub.Subscribe(cursor)
}

func (s *Service) SessionStatus() models.SessionSnapshot {
	return s.session.Snapshot(s.provisioner.State())
}

// Logout tears the session down. In-flight suspended operations resolve
// against a bumped epoch and are discarded.
func (s *Service) Logout() error {
	s.session.Teardown()
	s.provisioner.Reset()
	s.hub.Publish(NotifySessionTornDown, nil)
	s.logger.Info("session torn down")
	return nil
}

func (s *Service) CanRemoveIdentity() bool {
	return s.session.LinkCount() > 1
}

func (s *Service) ListIdentities() []models.LinkedIdentity {
	return s.session.Links()
}

// LinkIdentity asks the provider to attach a new identity of the given kind.
// The session mutates only after the provider confirms; a teardown during the
// round trip leaves state unchanged.
func (s *Service) LinkIdentity(ctx context.Context, kind models.IdentityKind) (models.LinkedIdentity, error) {
	started := time.Now()
	li, err := s.linkIdentity(ctx, kind)
	s.observe("identity_link", StageLink, started, err)
	return li, err
}

func (s *Service) linkIdentity(ctx context.Context, kind models.IdentityKind) (models.LinkedIdentity, error) {
	if !s.session.Authenticated() {
		return models.LinkedIdentity{}, wrapStage(StageLink, ErrNotAuthenticated)
	}
	epoch := s.session.Epoch()

	li, err := s.identity.Link(ctx, kind)
	if err != nil {
		return models.LinkedIdentity{}, wrapStage(StageLink, err)
	}
	if !s.session.AddLink(epoch, li) {
		return models.LinkedIdentity{}, wrapStage(StageLink, ErrSessionTornDown)
	}
	s.hub.Publish(NotifyIdentityLinked, li)
	s.logger.Info("identity linked", "kind", kind)

	if kind == models.IdentityKindWallet {
		if primary, ok := s.session.PrimaryAddress(); ok {
			go s.establishAccount(context.WithoutCancel(ctx), epoch, primary)
		}
	}
	return li, nil
}

// UnlinkIdentity removes a linked identity. Removing the last one is rejected
// locally before any provider call.
func (s *Service) UnlinkIdentity(ctx context.Context, kind models.IdentityKind, externalID string) error {
	started := time.Now()
	err := s.unlinkIdentity(ctx, kind, externalID)
	s.observe("identity_unlink", StageUnlink, started, err)
	return err
}

func (s *Service) unlinkIdentity(ctx context.Context, kind models.IdentityKind, externalID string) error {
	s.unlinkMu.Lock()
	defer s.unlinkMu.Unlock()

	if !s.session.Authenticated() {
		return wrapStage(StageUnlink, ErrNotAuthenticated)
	}
	if !s.session.HasLink(kind, externalID) {
		return wrapStage(StageUnlink, ErrIdentityNotLinked)
	}
	if s.session.LinkCount() <= 1 {
		return wrapStage(StageUnlink, ErrLastLinkedIdentity)
	}
	epoch := s.session.Epoch()

	if err := s.identity.Unlink(ctx, kind, externalID); err != nil {
		return wrapStage(StageUnlink, err)
	}
	if err := s.session.RemoveLink(epoch, kind, externalID); err != nil {
		return wrapStage(StageUnlink, err)
	}
	s.hub.Publish(NotifyIdentityUnlinked, models.LinkedIdentity{Kind: kind, ExternalID: externalID})
	s.logger.Info("identity unlinked", "kind", kind)
	return nil
}

func (s *Service) VerifyToken(ctx context.Context, token string) (models.TokenVerification, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.TokenVerification{}, errors.New("token is required")
	}
	return s.identity.VerifyToken(ctx, token)
}

// EnsureSmartAccount provisions (or returns the cached) smart account for the
// session's primary address.
func (s *Service) EnsureSmartAccount(ctx context.Context) (models.SmartAccount, error) {
	started := time.Now()
	account, err := s.ensureSmartAccount(ctx)
	s.observe("account_ensure", StageProvision, started, err)
	return account, err
}

func (s *Service) ensureSmartAccount(ctx context.Context) (models.SmartAccount, error) {
	if !s.session.Authenticated() {
		return models.SmartAccount{}, wrapStage(StageProvision, ErrNotAuthenticated)
	}
	primary, ok := s.session.PrimaryAddress()
	if !ok {
		return models.SmartAccount{}, wrapStage(StageProvision, ErrNoPrimaryWallet)
	}
	epoch := s.session.Epoch()

	account, err := s.provisioner.EnsureAccount(ctx, primary)
	if err != nil {
		return models.SmartAccount{}, err
	}
	if !s.session.SetAccount(epoch, account) {
		return models.SmartAccount{}, wrapStage(StageProvision, ErrSessionTornDown)
	}
	if _, ok := s.session.Balance(); !ok {
		// First balance read for a freshly provisioned account. The
		// background path during Start does the same; this covers the
		// case where that attempt failed and an explicit ensure
		// succeeded later.
		s.refreshBalanceInBackground(ctx, epoch, account.SCWAddress)
	}
	return account, nil
}

// refreshBalanceInBackground re-reads the balance without blocking the
// caller. The session absorbs the result only if the epoch still matches.
func (s *Service) refreshBalanceInBackground(ctx context.Context, epoch uint64, scwAddress string) {
	go func() {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		balance, err := s.balances.Refresh(refreshCtx, scwAddress)
		if err != nil {
			s.logger.Error("background balance refresh failed", "error", err)
			s.metrics.RecordOpError("balance_refresh_background", StageBalance)
			return
		}
		if s.session.SetBalance(epoch, scwAddress, balance) {
			s.hub.Publish(NotifyBalanceUpdated, balance)
		}
	}()
}

func (s *Service) GetBalance() (models.Balance, bool) {
	return s.session.Balance()
}

// RefreshBalance re-reads the smart account balance. On failure the session
// keeps its stale value.
func (s *Service) RefreshBalance(ctx context.Context) (models.Balance, error) {
	started := time.Now()
	balance, err := s.refreshBalance(ctx)
	s.observe("balance_refresh", StageBalance, started, err)
	return balance, err
}

func (s *Service) refreshBalance(ctx context.Context) (models.Balance, error) {
	account, ok := s.session.Account()
	if !ok {
		return models.Balance{}, wrapStage(StageBalance, ErrNoSmartAccount)
	}
	epoch := s.session.Epoch()

	balance, err := s.balances.Refresh(ctx, account.SCWAddress)
	if err != nil {
		return models.Balance{}, err
	}
	if !s.session.SetBalance(epoch, account.SCWAddress, balance) {
		return models.Balance{}, wrapStage(StageBalance, ErrSessionTornDown)
	}
	s.hub.Publish(NotifyBalanceUpdated, balance)
	return balance, nil
}

// SignMessage delegates an ad-hoc message signature to the signer bound to
// the session's primary wallet.
func (s *Service) SignMessage(ctx context.Context, message string) (string, error) {
	started := time.Now()
	signature, err := s.signMessage(ctx, message)
	s.observe("message_sign", StageSign, started, err)
	return signature, err
}

func (s *Service) signMessage(ctx context.Context, message string) (string, error) {
	if !s.session.Authenticated() {
		return "", wrapStage(StageSign, ErrNotAuthenticated)
	}
	primary, ok := s.session.PrimaryAddress()
	if !ok {
		return "", wrapStage(StageSign, fmt.Errorf("%w: %s", ErrSigningRejected, ErrNoPrimaryWallet))
	}

	ctx, cancel := context.WithTimeout(ctx, SignMessageTimeout)
	defer cancel()
	signature, err := s.identity.SignMessage(ctx, primary, message)
	if err != nil {
		return "", wrapStage(StageSign, fmt.Errorf("%w: %s", ErrSigningRejected, err))
	}
	return signature, nil
}

func (s *Service) GetMetrics() models.MetricsSnapshot {
	counters, opStats, updatedAt := s.metrics.Snapshot()
	return models.MetricsSnapshot{
		ErrorCounters:       counters,
		OperationStats:      opStats,
		LastUpdatedAt:       updatedAt,
		NotificationBacklog: s.hub.BacklogSize(),
	}
}

// establishAccount reacts to a primary address becoming available: provision,
// then the first balance read. Errors are logged, not retried; the next
// explicit call may try again.
func (s *Service) establishAccount(ctx context.Context, epoch uint64, primary string) {
	account, err := s.provisioner.EnsureAccount(ctx, primary)
	if err != nil {
		s.logger.Error("smart account provisioning failed", "error", err)
		s.metrics.RecordOpError("account_establish", StageProvision)
		return
	}
	if !s.session.SetAccount(epoch, account) {
		s.logger.Info("discarding provisioned account for torn-down session")
		return
	}
	s.hub.Publish(NotifyAccountReady, account)
	s.logger.Info("smart account ready", "scw_address", account.SCWAddress)

	balance, err := s.balances.Refresh(ctx, account.SCWAddress)
	if err != nil {
		s.logger.Error("initial balance read failed", "error", err)
		s.metrics.RecordOpError("account_establish", StageBalance)
		return
	}
	if s.session.SetBalance(epoch, account.SCWAddress, balance) {
		s.hub.Publish(NotifyBalanceUpdated, balance)
	}
}

func (s *Service) observe(operation, stage string, started time.Time, err error) {
	s.pipe.Observe(stage, started, err)
	s.metrics.RecordOp(operation, started)
	if err != nil {
		failed := FailedStage(err)
		if failed == "" {
			failed = stage
		}
		s.metrics.RecordOpError(operation, failed)
	}
}

var _ DaemonService = (*Service)(nil)
