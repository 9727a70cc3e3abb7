// internal/usecase/confirmation_usecase.go
package usecase

import (
	"context"
	"strings"
	"time"

	"custody-service/internal/chains/evm"
	"custody-service/internal/domain"
	"custody-service/internal/events"
	"custody-service/internal/metrics"
	"custody-service/pkg/apperr"

	"go.uber.org/zap"
)

// ============================================================================
// CONFIRMATION PROTOCOL
// ============================================================================

// Confirm executes a quoted intent at most once. The Quoted->Executing
// compare-and-set happens before any call that moves value.
func (uc *IntentUsecase) Confirm(ctx context.Context, accountID int64, intentToken string) (*domain.Intent, error) {
	const op = "usecase.Confirm"

	intent, err := uc.load(ctx, accountID, intentToken)
	if err != nil {
		return nil, uc.reject(err)
	}
	if err := uc.checkQuoted(ctx, intent); err != nil {
		return nil, uc.reject(err)
	}
	if !intent.Estimate.Sufficient {
		return nil, uc.reject(apperr.Newf(apperr.CodeInsufficientBalance, op,
			"balance %s does not cover total cost %s", intent.Estimate.NativeBalance, intent.Estimate.TotalCost))
	}

	if uc.locker != nil {
		lock, err := uc.locker.LockIntent(ctx, intent.ID, uc.config.LockTTL)
		switch {
		case apperr.Is(err, apperr.CodeAlreadyProcessing):
			return nil, uc.reject(err)
		case err != nil:
			uc.logger.Warn("Confirm lock unavailable, relying on intent state",
				zap.String("intent_id", intent.ID),
				zap.Error(err))
		default:
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					uc.logger.Warn("Failed to release confirm lock",
						zap.String("intent_id", intent.ID),
						zap.Error(err))
				}
			}()
		}
	}

	won, err := uc.intentRepo.Transition(ctx, intent.ID, domain.IntentStatusQuoted, domain.IntentStatusExecuting)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := uc.intentRepo.Get(ctx, intent.ID)
		if err != nil {
			return nil, err
		}
		if err := stateError(current); err != nil {
			return nil, uc.reject(err)
		}
		return nil, uc.reject(apperr.New(apperr.CodeAlreadyProcessing, op, "intent is being processed"))
	}
	intent.Status = domain.IntentStatusExecuting

	uc.logger.Info("Intent executing",
		zap.String("intent_id", intent.ID),
		zap.Int64("account_id", intent.AccountID),
		zap.String("kind", string(intent.Kind)),
		zap.String("chain", intent.Chain))

	result, submitErr := uc.submit(ctx, intent)

	// the outcome is recorded even if the caller has gone away
	recordCtx := context.WithoutCancel(ctx)

	if submitErr != nil {
		code := apperr.CodeOf(submitErr)
		message := apperr.Message(submitErr)
		uc.recordOutcome(recordCtx, intent, domain.IntentStatusFailed, func(ctx context.Context) error {
			return uc.intentRepo.MarkFailed(ctx, intent.ID, string(code), message)
		})
		intent.Status = domain.IntentStatusFailed
		intent.FailureCode = string(code)
		intent.FailureMessage = message
		intent.UpdatedAt = uc.now()

		uc.logger.Error("Intent execution failed",
			zap.String("intent_id", intent.ID),
			zap.String("code", string(code)),
			zap.Error(submitErr))
		uc.finish(recordCtx, intent)
		return nil, submitErr
	}

	intent.Result = result
	// the transaction is on chain, so the caller gets its hash even when the
	// store keeps failing
	uc.recordOutcome(recordCtx, intent, domain.IntentStatusExecuted, func(ctx context.Context) error {
		return uc.intentRepo.MarkExecuted(ctx, intent.ID, result)
	})
	intent.Status = domain.IntentStatusExecuted
	intent.UpdatedAt = uc.now()

	uc.logger.Info("Intent executed",
		zap.String("intent_id", intent.ID),
		zap.String("chain", intent.Chain),
		zap.String("tx_hash", result.TxHash))
	uc.finish(recordCtx, intent)
	return intent, nil
}

// submit re-validates the stored intent and calls the adapter exactly once.
func (uc *IntentUsecase) submit(ctx context.Context, intent *domain.Intent) (*domain.SubmitResult, error) {
	const op = "usecase.submit"

	secret, err := uc.wallets.RevealSecret(ctx, intent.AccountID, intent.FromAddress)
	if err != nil {
		return nil, err
	}

	info, err := uc.registry.Resolve(intent.Chain)
	if err != nil {
		return nil, err
	}
	if err := evm.ValidateAddress(intent.FromAddress); err != nil {
		return nil, err
	}
	if err := evm.ValidateAddress(intent.Counterparty); err != nil {
		return nil, err
	}
	if intent.Amount == nil || intent.Amount.Sign() <= 0 {
		return nil, apperr.New(apperr.CodeInvalidAmount, op, "stored intent amount must be greater than 0")
	}

	switch intent.Kind {
	case domain.IntentKindBuy:
		return uc.adapter.BuildAndSubmitSwap(ctx, &domain.SwapRequest{
			Chain:    info.Name,
			From:     intent.FromAddress,
			ToToken:  intent.Counterparty,
			AmountIn: intent.Amount,
			Secret:   secret,
			Slippage: uc.config.Slippage,
			Deadline: uc.config.SwapDeadline,
		})
	case domain.IntentKindSend:
		asset, err := uc.registry.Asset(info.Name, intent.TokenSymbol)
		if err != nil {
			return nil, err
		}
		if !asset.IsNative() && !strings.EqualFold(*asset.ContractAddr, intent.TokenContract) {
			return nil, apperr.Newf(apperr.CodeUnsupportedToken, op, "stored contract for %s does not match %s", asset.Symbol, info.Name)
		}
		return uc.adapter.BuildAndSubmitTransfer(ctx, &domain.TransferRequest{
			Chain:  info.Name,
			From:   intent.FromAddress,
			To:     intent.Counterparty,
			Asset:  asset,
			Amount: intent.Amount,
			Secret: secret,
		})
	}
	return nil, apperr.Newf(apperr.CodeInvalidRequest, op, "unknown intent kind %q", intent.Kind)
}

// Cancel abandons a quoted intent. Cancelling twice is not an error.
func (uc *IntentUsecase) Cancel(ctx context.Context, accountID int64, intentToken string) (*domain.Intent, error) {
	intent, err := uc.load(ctx, accountID, intentToken)
	if err != nil {
		return nil, err
	}
	if intent.Status == domain.IntentStatusCancelled {
		return intent, nil
	}
	if err := uc.checkQuoted(ctx, intent); err != nil {
		return nil, err
	}

	won, err := uc.intentRepo.Transition(ctx, intent.ID, domain.IntentStatusQuoted, domain.IntentStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := uc.intentRepo.Get(ctx, intent.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.IntentStatusCancelled {
			return current, nil
		}
		return nil, stateError(current)
	}

	intent.Status = domain.IntentStatusCancelled
	intent.UpdatedAt = uc.now()

	uc.logger.Info("Intent cancelled",
		zap.String("intent_id", intent.ID),
		zap.Int64("account_id", accountID))
	uc.finish(ctx, intent)
	return intent, nil
}

// Get returns an intent for status polling, applying the TTL lazily.
func (uc *IntentUsecase) Get(ctx context.Context, accountID int64, intentID string) (*domain.Intent, error) {
	intent, err := uc.owned(ctx, accountID, intentID)
	if err != nil {
		return nil, err
	}
	if intent.IsExpired(uc.now()) {
		if _, err := uc.expire(ctx, intent); err != nil {
			return nil, err
		}
		return uc.intentRepo.Get(ctx, intent.ID)
	}
	return intent, nil
}

// ExpireStale moves every Quoted intent past its TTL to Expired and
// returns how many moved.
func (uc *IntentUsecase) ExpireStale(ctx context.Context, before time.Time) (int, error) {
	expired, err := uc.intentRepo.ExpireStale(ctx, before)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	metrics.IntentsSwept.Add(float64(len(expired)))
	evts := make([]domain.IntentEvent, 0, len(expired))
	for _, intent := range expired {
		metrics.IntentOutcomes.WithLabelValues(string(intent.Kind), string(intent.Status)).Inc()
		evts = append(evts, events.IntentEvent(intent, uc.now()))
	}
	if uc.publisher != nil {
		uc.publisher.Publish(ctx, evts...)
	}
	return len(expired), nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (uc *IntentUsecase) load(ctx context.Context, accountID int64, intentToken string) (*domain.Intent, error) {
	claims, err := uc.signer.Verify(strings.TrimSpace(intentToken))
	if err != nil {
		return nil, err
	}
	if claims.AccountID != accountID {
		return nil, apperr.New(apperr.CodeNotFound, "usecase.loadIntent", "intent not found")
	}
	return uc.owned(ctx, accountID, claims.IntentID)
}

// owned hides other accounts' intents behind NotFound.
func (uc *IntentUsecase) owned(ctx context.Context, accountID int64, intentID string) (*domain.Intent, error) {
	intent, err := uc.intentRepo.Get(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.AccountID != accountID {
		return nil, apperr.New(apperr.CodeNotFound, "usecase.loadIntent", "intent not found")
	}
	return intent, nil
}

// checkQuoted returns nil only for a Quoted intent whose TTL has not passed.
func (uc *IntentUsecase) checkQuoted(ctx context.Context, intent *domain.Intent) error {
	if err := stateError(intent); err != nil {
		return err
	}
	if !intent.IsExpired(uc.now()) {
		return nil
	}
	current, err := uc.expire(ctx, intent)
	if err != nil {
		return err
	}
	return stateError(current)
}

// expire moves a Quoted intent whose TTL passed to Expired and returns the
// resulting state.
func (uc *IntentUsecase) expire(ctx context.Context, intent *domain.Intent) (*domain.Intent, error) {
	won, err := uc.intentRepo.Transition(ctx, intent.ID, domain.IntentStatusQuoted, domain.IntentStatusExpired)
	if err != nil {
		return nil, err
	}
	if !won {
		return uc.intentRepo.Get(ctx, intent.ID)
	}

	expired := *intent
	expired.Status = domain.IntentStatusExpired
	expired.UpdatedAt = uc.now()
	uc.logger.Info("Intent expired",
		zap.String("intent_id", intent.ID),
		zap.Time("expires_at", intent.ExpiresAt))
	uc.finish(ctx, &expired)
	return &expired, nil
}

// recordOutcome stores a submitted intent's outcome, retrying with backoff. An
// outcome that still cannot be stored leaves the intent Executing, which
// blocks any further confirm; it is counted so it can be reconciled.
func (uc *IntentUsecase) recordOutcome(ctx context.Context, intent *domain.Intent, status domain.IntentStatus, store func(context.Context) error) {
	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		if err = store(ctx); err == nil {
			return
		}
		uc.logger.Warn("Failed to record intent outcome",
			zap.String("intent_id", intent.ID),
			zap.String("status", string(status)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < recordAttempts {
			time.Sleep(time.Duration(attempt) * uc.recordBackoff)
		}
	}

	metrics.IntentRecordFailures.WithLabelValues(string(status)).Inc()
	fields := []zap.Field{
		zap.String("intent_id", intent.ID),
		zap.Int64("account_id", intent.AccountID),
		zap.String("status", string(status)),
		zap.Error(err),
	}
	if intent.Result != nil {
		fields = append(fields, zap.String("tx_hash", intent.Result.TxHash))
	}
	uc.logger.Error("Intent outcome not recorded; intent left executing", fields...)
}

func (uc *IntentUsecase) finish(ctx context.Context, intent *domain.Intent) {
	metrics.IntentOutcomes.WithLabelValues(string(intent.Kind), string(intent.Status)).Inc()
	if uc.publisher != nil {
		uc.publisher.Publish(ctx, events.IntentEvent(intent, uc.now()))
	}
}

func (uc *IntentUsecase) reject(err error) error {
	metrics.ConfirmRejections.WithLabelValues(string(apperr.CodeOf(err))).Inc()
	return err
}

// stateError maps a non-Quoted state to the error a confirm or cancel gets.
func stateError(intent *domain.Intent) error {
	const op = "usecase.intentState"

	switch intent.Status {
	case domain.IntentStatusQuoted:
		return nil
	case domain.IntentStatusExecuting:
		return apperr.New(apperr.CodeAlreadyProcessing, op, "intent is being processed")
	case domain.IntentStatusExecuted, domain.IntentStatusFailed, domain.IntentStatusCancelled:
		return apperr.Newf(apperr.CodeAlreadyProcessed, op, "intent already %s", intent.Status)
	case domain.IntentStatusExpired:
		return apperr.New(apperr.CodeExpired, op, "intent has expired; request a new quote")
	}
	return apperr.Newf(apperr.CodeInternal, op, "intent in unknown state %q", intent.Status)
}
