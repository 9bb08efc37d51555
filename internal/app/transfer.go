package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crosspay/go-backend/internal/intent"
	"crosspay/go-backend/pkg/models"
)

// SendTransfer runs the transfer pipeline: build the intent locally, have the
// provider assemble the signable payload, collect one signature bound to that
// payload, then submit for relayed execution. Stages run strictly in that
// order; the first failure aborts the rest and all partial progress is
// discarded. Nothing is on-chain before submission succeeds.
//
// Successive transfers are not serialized here; callers that need to prevent
// overlap must disable re-entry themselves.
func (s *Service) SendTransfer(ctx context.Context, req models.TransferRequest) (models.TransferResult, error) {
	transferID := uuid.NewString()
	logger := s.logger.With("transfer_id", transferID)

	if !s.session.Authenticated() {
		return failedResult(transferID, ""), ErrNotAuthenticated
	}
	account, ok := s.session.Account()
	if !ok {
		return failedResult(transferID, ""), ErrNoSmartAccount
	}
	primary, ok := s.session.PrimaryAddress()
	if !ok {
		return failedResult(transferID, ""), ErrNoPrimaryWallet
	}
	epoch := s.session.Epoch()

	// Stage 1: pure local construction, no signing, no submission.
	buildStarted := time.Now()
	ti, err := intent.Build(req, s.asset, s.asset.ChainID)
	if err != nil {
		// Validation failures never reach the provider.
		s.observe("transfer_send", StageBuild, buildStarted, err)
		return failedResult(transferID, StageBuild), wrapStage(StageBuild, err)
	}

	prepared, err := s.accounts.BuildTransaction(ctx, ti, account.SCWAddress, models.SignModeECDSA)
	s.observe("transfer_send", StageBuild, buildStarted, err)
	if err != nil {
		logger.Error("transaction build rejected", "error", err)
		return failedResult(transferID, StageBuild), wrapStage(StageBuild, fmt.Errorf("%w: %s", ErrBuildRejected, err))
	}
	if s.session.Epoch() != epoch {
		return failedResult(transferID, StageBuild), wrapStage(StageBuild, ErrSessionTornDown)
	}

	// Stage 2: one signature, bound to this intent's message. A rejection
	// aborts the transfer; there is no local retry.
	signStarted := time.Now()
	signature, err := s.identity.SignMessage(ctx, primary, prepared.MessageToSign)
	s.observe("transfer_send", StageSign, signStarted, err)
	if err != nil {
		logger.Info("signature declined", "error", err)
		return failedResult(transferID, StageSign), wrapStage(StageSign, fmt.Errorf("%w: %s", ErrSigningRejected, err))
	}
	if s.session.Epoch() != epoch {
		return failedResult(transferID, StageSign), wrapStage(StageSign, ErrSessionTornDown)
	}

	payload := models.SignedPayload{
		Signature: signature,
		UserOp:    prepared.UserOp,
		SignMode:  models.SignModeECDSA,
	}

	// Stage 3: submission. A backend rejection is a confirmed failure; a
	// transport failure with no response is an unknown outcome and is never
	// resubmitted automatically.
	submitStarted := time.Now()
	receipt, err := s.accounts.SubmitTransaction(ctx, payload, ti.DestinationChainID, account.SCWAddress)
	s.observe("transfer_send", StageSubmit, submitStarted, err)
	if err != nil {
		if errors.Is(err, ErrUnknownOutcome) {
			logger.Warn("submission outcome unknown", "error", err)
			return models.TransferResult{
				TransferID: transferID,
				Outcome:    models.TransferOutcomeUnknown,
				Stage:      StageSubmit,
			}, wrapStage(StageSubmit, err)
		}
		logger.Error("submission rejected", "error", err)
		return failedResult(transferID, StageSubmit), wrapStage(StageSubmit, fmt.Errorf("%w: %s", ErrSubmissionRejected, err))
	}

	receipt.TransferID = transferID
	if receipt.SubmittedAt.IsZero() {
		receipt.SubmittedAt = time.Now().UTC()
	}
	result := models.TransferResult{
		TransferID: transferID,
		Outcome:    models.TransferOutcomeSubmitted,
		Receipt:    &receipt,
	}
	s.hub.Publish(NotifyTransferSubmitted, result)
	logger.Info("transfer submitted",
		"order_amount", ti.OrderAmount,
		"destination_chain_id", ti.DestinationChainID)

	// The submitted transfer will change the balance; refresh opportunistically.
	go func() {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		balance, err := s.balances.Refresh(refreshCtx, account.SCWAddress)
		if err != nil {
			logger.Info("post-transfer balance refresh failed", "error", err)
			return
		}
		if s.session.SetBalance(epoch, account.SCWAddress, balance) {
			s.hub.Publish(NotifyBalanceUpdated, balance)
		}
	}()

	return result, nil
}

func failedResult(transferID, stage string) models.TransferResult {
	return models.TransferResult{
		TransferID: transferID,
		Outcome:    models.TransferOutcomeFailed,
		Stage:      stage,
	}
}
