package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"crosspay/go-backend/internal/intent"
	"crosspay/go-backend/pkg/models"
)

const testRecipient = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"

func TestSendTransferRunsStagesInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(stage string) {
		mu.Lock()
		order = append(order, stage)
		mu.Unlock()
	}

	identity := &fakeIdentityProvider{
		signFn: func(ctx context.Context, address, message string) (string, error) {
			record("sign")
			if message != "0xmessage" {
				t.Errorf("expected the prepared message, got %q", message)
			}
			return "0xsignature", nil
		},
	}
	accounts := &fakeAccountService{
		buildFn: func(ctx context.Context, ti models.TransactionIntent, scwAddress string, mode models.SignMode) (models.PreparedTransaction, error) {
			record("build")
			if ti.OrderAmount != "10500000" {
				t.Errorf("expected scaled amount 10500000, got %q", ti.OrderAmount)
			}
			if ti.OrderType != models.OrderAmountOut {
				t.Errorf("expected AMOUNT_OUT order, got %q", ti.OrderType)
			}
			if mode != models.SignModeECDSA {
				t.Errorf("expected ECDSA sign mode, got %q", mode)
			}
			return models.PreparedTransaction{MessageToSign: "0xmessage", UserOp: []byte(`{"nonce":"0x1"}`)}, nil
		},
		submitFn: func(ctx context.Context, payload models.SignedPayload, destinationChainID int64, scwAddress string) (models.SubmissionReceipt, error) {
			record("submit")
			if payload.Signature != "0xsignature" {
				t.Errorf("expected the collected signature, got %q", payload.Signature)
			}
			return models.SubmissionReceipt{Raw: []byte(`{"status":"ok"}`)}, nil
		},
	}
	svc := startedService(t, identity, accounts)

	result, err := svc.SendTransfer(context.Background(), models.TransferRequest{
		Amount: "10.5", Recipient: testRecipient,
	})
	if err != nil {
		t.Fatalf("SendTransfer failed: %v", err)
	}
	if result.Outcome != models.TransferOutcomeSubmitted {
		t.Fatalf("expected submitted outcome, got %q", result.Outcome)
	}
	if result.Receipt == nil || result.Receipt.TransferID != result.TransferID {
		t.Fatalf("unexpected receipt: %+v", result.Receipt)
	}

	mu.Lock()
	got := fmt.Sprint(order)
	mu.Unlock()
	if got != "[build sign submit]" {
		t.Fatalf("unexpected stage order: %s", got)
	}
}

func TestSendTransferValidationNeverReachesProvider(t *testing.T) {
	identity := &fakeIdentityProvider{}
	accounts := &fakeAccountService{}
	svc := startedService(t, identity, accounts)

	cases := []models.TransferRequest{
		{Amount: "10,5", Recipient: testRecipient},
		{Amount: "", Recipient: testRecipient},
		{Amount: "1e5", Recipient: testRecipient},
		{Amount: "1", Recipient: "not-an-address"},
	}
	for _, req := range cases {
		result, err := svc.SendTransfer(context.Background(), req)
		if err == nil {
			t.Fatalf("expected rejection for %+v", req)
		}
		if !errors.Is(err, intent.ErrInvalidAmount) && !errors.Is(err, intent.ErrInvalidRecipient) {
			t.Fatalf("expected a validation error for %+v, got %v", req, err)
		}
		if result.Outcome != models.TransferOutcomeFailed || result.Stage != StageBuild {
			t.Fatalf("unexpected result for %+v: %+v", req, result)
		}
	}
	if _, _, build, submit := accounts.calls(); build != 0 || submit != 0 {
		t.Fatalf("expected no provider calls, got build=%d submit=%d", build, submit)
	}
	if _, _, sign := identity.calls(); sign != 0 {
		t.Fatalf("expected no sign calls, got %d", sign)
	}
}

func TestSendTransferBuildRejectionAbortsPipeline(t *testing.T) {
	identity := &fakeIdentityProvider{}
	accounts := &fakeAccountService{
		buildFn: func(ctx context.Context, ti models.TransactionIntent, scwAddress string, mode models.SignMode) (models.PreparedTransaction, error) {
			return models.PreparedTransaction{}, errors.New("insufficient liquidity")
		},
	}
	svc := startedService(t, identity, accounts)

	result, err := svc.SendTransfer(context.Background(), models.TransferRequest{
		Amount: "1", Recipient: testRecipient,
	})
	if !errors.Is(err, ErrBuildRejected) {
		t.Fatalf("expected ErrBuildRejected, got %v", err)
	}
	if result.Outcome != models.TransferOutcomeFailed || result.Stage != StageBuild {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, _, sign := identity.calls(); sign != 0 {
		t.Fatalf("expected no sign call after build rejection, got %d", sign)
	}
}

func TestSendTransferSigningRejectionAbortsSubmission(t *testing.T) {
	identity := &fakeIdentityProvider{
		signFn: func(ctx context.Context, address, message string) (string, error) {
			return "", errors.New("user declined")
		},
	}
	accounts := &fakeAccountService{}
	svc := startedService(t, identity, accounts)

	result, err := svc.SendTransfer(context.Background(), models.TransferRequest{
		Amount: "1", Recipient: testRecipient,
	})
	if !errors.Is(err, ErrSigningRejected) {
		t.Fatalf("expected ErrSigningRejected, got %v", err)
	}
	if result.Outcome != models.TransferOutcomeFailed || result.Stage != StageSign {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, _, _, submit := accounts.calls(); submit != 0 {
		t.Fatalf("expected no submission after signing rejection, got %d", submit)
	}
	if _, _, sign := identity.calls(); sign != 1 {
		t.Fatalf("expected exactly one signing attempt, got %d", sign)
	}
}

func TestSendTransferDistinguishesUnknownOutcomeFromRejection(t *testing.T) {
	accounts := &fakeAccountService{
		submitFn: func(ctx context.Context, payload models.SignedPayload, destinationChainID int64, scwAddress string) (models.SubmissionReceipt, error) {
			return models.SubmissionReceipt{}, fmt.Errorf("%w: connection reset", ErrUnknownOutcome)
		},
	}
	svc := startedService(t, &fakeIdentityProvider{}, accounts)

	result, err := svc.SendTransfer(context.Background(), models.TransferRequest{
		Amount: "1", Recipient: testRecipient,
	})
	if !errors.Is(err, ErrUnknownOutcome) {
		t.Fatalf("expected ErrUnknownOutcome, got %v", err)
	}
	if errors.Is(err, ErrSubmissionRejected) {
		t.Fatal("an unknown outcome must not read as a confirmed rejection")
	}
	if result.Outcome != models.TransferOutcomeUnknown {
		t.Fatalf("expected unknown outcome, got %q", result.Outcome)
	}
	if _, _, _, submit := accounts.calls(); submit != 1 {
		t.Fatalf("expected no automatic resubmission, got %d submit calls", submit)
	}
}

func TestSendTransferBackendRejectionIsConfirmedFailure(t *testing.T) {
	accounts := &fakeAccountService{
		submitFn: func(ctx context.Context, payload models.SignedPayload, destinationChainID int64, scwAddress string) (models.SubmissionReceipt, error) {
			return models.SubmissionReceipt{}, errors.New("userop validation failed")
		},
	}
	svc := startedService(t, &fakeIdentityProvider{}, accounts)

	result, err := svc.SendTransfer(context.Background(), models.TransferRequest{
		Amount: "1", Recipient: testRecipient,
	})
	if !errors.Is(err, ErrSubmissionRejected) {
		t.Fatalf("expected ErrSubmissionRejected, got %v", err)
	}
	if result.Outcome != models.TransferOutcomeFailed || result.Stage != StageSubmit {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSendTransferWithoutSmartAccount(t *testing.T) {
	identity := &fakeIdentityProvider{
		sessionFn: func(ctx context.Context) (models.ProviderSession, error) {
			return models.ProviderSession{
				Ready:         true,
				Authenticated: true,
				LinkedIdentities: []models.LinkedIdentity{
					{Kind: models.IdentityKindEmail, ExternalID: "user@example.com"},
				},
			}, nil
		},
	}
	svc := newTestService(t, identity, &fakeAccountService{})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err := svc.SendTransfer(context.Background(), models.TransferRequest{
		Amount: "1", Recipient: testRecipient,
	})
	if !errors.Is(err, ErrNoSmartAccount) {
		t.Fatalf("expected ErrNoSmartAccount, got %v", err)
	}
}

func TestSendTransferPublishesSubmittedNotification(t *testing.T) {
	svc := startedService(t, &fakeIdentityProvider{}, &fakeAccountService{})
	_, ch, cancel := svc.SubscribeNotifications(0)
	defer cancel()

	if _, err := svc.SendTransfer(context.Background(), models.TransferRequest{
		Amount: "1", Recipient: testRecipient,
	}); err != nil {
		t.Fatalf("SendTransfer failed: %v", err)
	}

	waitFor(t, func() bool {
		select {
		case evt := <-ch:
			return evt.Method == NotifyTransferSubmitted
		default:
			return false
		}
	})
}
