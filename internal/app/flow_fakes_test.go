package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"crosspay/go-backend/pkg/models"
)

const (
	testOwner = "0x52908400098527886E0F7030069857D2E4169EE7"
	testSCW   = "0xde709f2102306220921060314715629080e2fb77"
)

type fakeIdentityProvider struct {
	mu          sync.Mutex
	linkCalls   int
	unlinkCalls int
	signCalls   int

	sessionFn func(ctx context.Context) (models.ProviderSession, error)
	linkFn    func(ctx context.Context, kind models.IdentityKind) (models.LinkedIdentity, error)
	unlinkFn  func(ctx context.Context, kind models.IdentityKind, externalID string) error
	signFn    func(ctx context.Context, address, message string) (string, error)
}

func (f *fakeIdentityProvider) SessionInfo(ctx context.Context) (models.ProviderSession, error) {
	if f.sessionFn != nil {
		return f.sessionFn(ctx)
	}
	return models.ProviderSession{
		Ready:         true,
		Authenticated: true,
		LinkedIdentities: []models.LinkedIdentity{
			{Kind: models.IdentityKindWallet, ExternalID: testOwner},
		},
	}, nil
}

func (f *fakeIdentityProvider) Link(ctx context.Context, kind models.IdentityKind) (models.LinkedIdentity, error) {
	f.mu.Lock()
	f.linkCalls++
	f.mu.Unlock()
	if f.linkFn != nil {
		return f.linkFn(ctx, kind)
	}
	return models.LinkedIdentity{Kind: kind, ExternalID: "ext-" + string(kind)}, nil
}

func (f *fakeIdentityProvider) Unlink(ctx context.Context, kind models.IdentityKind, externalID string) error {
	f.mu.Lock()
	f.unlinkCalls++
	f.mu.Unlock()
	if f.unlinkFn != nil {
		return f.unlinkFn(ctx, kind, externalID)
	}
	return nil
}

func (f *fakeIdentityProvider) SignMessage(ctx context.Context, address, message string) (string, error) {
	f.mu.Lock()
	f.signCalls++
	f.mu.Unlock()
	if f.signFn != nil {
		return f.signFn(ctx, address, message)
	}
	return "0xsignature", nil
}

func (f *fakeIdentityProvider) VerifyToken(ctx context.Context, token string) (models.TokenVerification, error) {
	return models.TokenVerification{Verified: true}, nil
}

func (f *fakeIdentityProvider) calls() (link, unlink, sign int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linkCalls, f.unlinkCalls, f.signCalls
}

type fakeAccountService struct {
	mu           sync.Mutex
	createCalls  int
	balanceCalls int
	buildCalls   int
	submitCalls  int

	createFn  func(ctx context.Context, ownerAddress string) (models.SmartAccount, error)
	balanceFn func(ctx context.Context, scwAddress string) (string, error)
	buildFn   func(ctx context.Context, ti models.TransactionIntent, scwAddress string, mode models.SignMode) (models.PreparedTransaction, error)
	submitFn  func(ctx context.Context, payload models.SignedPayload, destinationChainID int64, scwAddress string) (models.SubmissionReceipt, error)
}

func (f *fakeAccountService) CreateSmartAccount(ctx context.Context, ownerAddress string) (models.SmartAccount, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(ctx, ownerAddress)
	}
	return models.SmartAccount{OwnerAddress: ownerAddress, SCWAddress: testSCW}, nil
}

func (f *fakeAccountService) GetSmartBalance(ctx context.Context, scwAddress string) (string, error) {
	f.mu.Lock()
	f.balanceCalls++
	f.mu.Unlock()
	if f.balanceFn != nil {
		return f.balanceFn(ctx, scwAddress)
	}
	return "10500000", nil
}

func (f *fakeAccountService) BuildTransaction(ctx context.Context, ti models.TransactionIntent, scwAddress string, mode models.SignMode) (models.PreparedTransaction, error) {
	f.mu.Lock()
	f.buildCalls++
	f.mu.Unlock()
	if f.buildFn != nil {
		return f.buildFn(ctx, ti, scwAddress, mode)
	}
	return models.PreparedTransaction{MessageToSign: "0xmessage", UserOp: []byte(`{"nonce":"0x1"}`)}, nil
}

func (f *fakeAccountService) SubmitTransaction(ctx context.Context, payload models.SignedPayload, destinationChainID int64, scwAddress string) (models.SubmissionReceipt, error) {
	f.mu.Lock()
	f.submitCalls++
	f.mu.Unlock()
	if f.submitFn != nil {
		return f.submitFn(ctx, payload, destinationChainID, scwAddress)
	}
	return models.SubmissionReceipt{Raw: []byte(`{"status":"ok"}`)}, nil
}

func (f *fakeAccountService) calls() (create, balance, build, submit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.balanceCalls, f.buildCalls, f.submitCalls
}

func newTestService(t *testing.T, identity IdentityProvider, accounts AccountService) *Service {
	t.Helper()
	svc, err := NewService(ServiceOptions{
		Identity: identity,
		Accounts: accounts,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

// startedService begins an authenticated session with a linked wallet and
// waits for the background account establishment to settle.
func startedService(t *testing.T, identity *fakeIdentityProvider, accounts *fakeAccountService) *Service {
	t.Helper()
	if identity == nil {
		identity = &fakeIdentityProvider{}
	}
	svc := newTestService(t, identity, accounts)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool {
		_, ok := svc.GetBalance()
		return ok
	})
	return svc
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
