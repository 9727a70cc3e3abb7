package usecase

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"custody-service/internal/chains/evm"
	"custody-service/internal/domain"
	"custody-service/internal/metrics"
	"custody-service/internal/repository"
	"custody-service/internal/token"
	"custody-service/pkg/apperr"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNormalize(t *testing.T, address string) string {
	t.Helper()
	normalized, err := evm.NormalizeAddress(address)
	require.NoError(t, err)
	return normalized
}

func TestQuoteBuyAndConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.withWallet(t, 1)

	quoted, err := f.intents.QuoteBuy(ctx, 1, BuyParams{Chain: "ETH", Contract: pepe})
	require.NoError(t, err)

	intent := quoted.Intent
	assert.Equal(t, domain.IntentStatusQuoted, intent.Status)
	assert.Equal(t, "ethereum", intent.Chain)
	assert.Equal(t, mustNormalize(t, pepe), intent.Counterparty)
	assert.Equal(t, "10000000000000000", intent.Amount.String())
	assert.Equal(t, f.clock.Now().Add(DefaultIntentTTL), intent.ExpiresAt)

	est := intent.Estimate
	assert.Equal(t, domain.PriceSourceRoute, est.PriceSource)
	assert.Equal(t, "5000000000000000000000", est.EstimatedOut.String())
	// 250000 gas at 1 gwei
	assert.Equal(t, "250000000000000", est.Fee.String())
	assert.Equal(t, "10250000000000000", est.TotalCost.String())
	assert.True(t, est.Sufficient)

	confirmed, err := f.intents.Confirm(ctx, 1, quoted.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusExecuted, confirmed.Status)
	assert.Equal(t, "0xswap", confirmed.Result.TxHash)

	require.Len(t, f.adapter.swaps, 1)
	swap := f.adapter.swaps[0]
	assert.Equal(t, created.Wallet.Address, swap.From)
	assert.Equal(t, created.Secret, swap.Secret)
	assert.Equal(t, intent.Counterparty, swap.ToToken)
	assert.Equal(t, intent.Amount.String(), swap.AmountIn.String())

	stored, err := f.intents.Get(ctx, 1, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusExecuted, stored.Status)
	assert.Equal(t, "0xswap", stored.Result.TxHash)

	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeAlreadyProcessed, apperr.CodeOf(err))
	assert.Equal(t, 1, f.adapter.submits())
	assert.Equal(t, []domain.IntentStatus{domain.IntentStatusExecuted}, f.publisher.statuses())
}

func TestQuoteBuyFallsBackToUnitPrice(t *testing.T) {
	f := newFixture(t)
	f.withWallet(t, 1)
	f.adapter.routeErr = apperr.New(apperr.CodeUpstreamUnavailable, "fake", "no route")
	// 0.001 native buys 5 tokens, so 0.01 buys 50
	f.adapter.sampleOut = new(big.Int).Mul(big.NewInt(5), big.NewInt(1e18))

	quoted, err := f.intents.QuoteBuy(context.Background(), 1, BuyParams{Chain: "base", Contract: pepe, Amount: "0.01"})
	require.NoError(t, err)
	assert.Equal(t, domain.PriceSourceUnitPrice, quoted.Intent.Estimate.PriceSource)
	assert.Equal(t, "50000000000000000000", quoted.Intent.Estimate.EstimatedOut.String())
}

func TestQuoteBuyWithoutAnyPriceFails(t *testing.T) {
	f := newFixture(t)
	f.withWallet(t, 1)
	f.adapter.routeErr = apperr.New(apperr.CodeUpstreamUnavailable, "fake", "aggregator down")
	f.adapter.sampleErr = errors.New("sample quote failed")

	_, err := f.intents.QuoteBuy(context.Background(), 1, BuyParams{Chain: "polygon", Contract: pepe})
	assert.Equal(t, apperr.CodeUpstreamUnavailable, apperr.CodeOf(err))
}

func TestQuoteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.intents.QuoteBuy(ctx, 1, BuyParams{Chain: "ethereum", Contract: pepe})
	assert.Equal(t, apperr.CodeNoWallet, apperr.CodeOf(err))

	f.withWallet(t, 1)
	cases := []struct {
		name   string
		params BuyParams
		code   apperr.Code
	}{
		{"unknown chain", BuyParams{Chain: "solana", Contract: pepe}, apperr.CodeInvalidChain},
		{"bad contract", BuyParams{Chain: "eth", Contract: "0x12"}, apperr.CodeInvalidAddress},
		{"negative amount", BuyParams{Chain: "eth", Contract: pepe, Amount: "-1"}, apperr.CodeInvalidAmount},
		{"too precise", BuyParams{Chain: "eth", Contract: pepe, Amount: "0.0000000000000000001"}, apperr.CodeInvalidAmount},
		{"beyond evm word", BuyParams{Chain: "eth", Contract: pepe, Amount: "1e80"}, apperr.CodeInvalidAmount},
		{"huge exponent", BuyParams{Chain: "eth", Contract: pepe, Amount: "1e5000000"}, apperr.CodeInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.intents.QuoteBuy(ctx, 1, tc.params)
			assert.Equal(t, tc.code, apperr.CodeOf(err))
		})
	}

	_, err = f.intents.QuoteSend(ctx, 1, SendParams{Chain: "polygon", To: recipient, Amount: "1", Token: "DOGE"})
	assert.Equal(t, apperr.CodeUnsupportedToken, apperr.CodeOf(err))
	_, err = f.intents.QuoteSend(ctx, 1, SendParams{Chain: "polygon", To: "nope", Amount: "1"})
	assert.Equal(t, apperr.CodeInvalidAddress, apperr.CodeOf(err))
	_, err = f.intents.QuoteSend(ctx, 1, SendParams{Chain: "polygon", To: recipient, Amount: "0"})
	assert.Equal(t, apperr.CodeInvalidAmount, apperr.CodeOf(err))
	_, err = f.intents.QuoteSend(ctx, 1, SendParams{Chain: "polygon", To: recipient, Amount: "1e80"})
	assert.Equal(t, apperr.CodeInvalidAmount, apperr.CodeOf(err))
	assert.Equal(t, 0, f.adapter.submits())
}

func TestQuoteRateLimited(t *testing.T) {
	f := newFixture(t)
	f.withWallet(t, 1)
	f.intents.WithLimiter(fakeLimiter{err: apperr.New(apperr.CodeRateLimited, "fake", "slow down")})

	_, err := f.intents.QuoteSend(context.Background(), 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	assert.Equal(t, apperr.CodeRateLimited, apperr.CodeOf(err))
}

func TestQuoteSendTokenNeedsBothBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)

	usdc := "0x2791bca1f2de4661ed88a30c99a7a9449aa84174"
	f.adapter.tokenBalances[usdc] = big.NewInt(5_000_000)

	quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "matic", To: recipient, Amount: "10", Token: "usdc"})
	require.NoError(t, err)
	est := quoted.Intent.Estimate
	assert.Equal(t, "10000000", est.AmountIn.String())
	assert.Equal(t, est.Fee.String(), est.TotalCost.String())
	assert.False(t, est.Sufficient)

	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeInsufficientBalance, apperr.CodeOf(err))

	f.adapter.tokenBalances[usdc] = big.NewInt(10_000_000)
	quoted, err = f.intents.QuoteSend(ctx, 1, SendParams{Chain: "polygon", To: recipient, Amount: "10", Token: "USDC"})
	require.NoError(t, err)
	require.True(t, quoted.Intent.Estimate.Sufficient)

	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	require.NoError(t, err)
	require.Len(t, f.adapter.transfers, 1)
	transfer := f.adapter.transfers[0]
	assert.Equal(t, "USDC", transfer.Asset.Symbol)
	assert.Equal(t, mustNormalize(t, recipient), transfer.To)
	assert.Equal(t, "10000000", transfer.Amount.String())
}

func TestQuoteSendNativeTotal(t *testing.T) {
	f := newFixture(t)
	f.withWallet(t, 1)

	quoted, err := f.intents.QuoteSend(context.Background(), 1, SendParams{Chain: "arb", To: recipient, Amount: "0.5"})
	require.NoError(t, err)
	est := quoted.Intent.Estimate
	assert.Equal(t, "ETH", quoted.Intent.TokenSymbol)
	assert.Equal(t, "500021000000000000", est.TotalCost.String())
	assert.True(t, est.Sufficient)
	assert.Nil(t, est.TokenBalance)
}

func TestInsufficientConfirmLeavesIntentQuoted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)
	f.adapter.native = big.NewInt(0)

	quoted, err := f.intents.QuoteBuy(ctx, 1, BuyParams{Chain: "eth", Contract: pepe})
	require.NoError(t, err)
	require.False(t, quoted.Intent.Estimate.Sufficient)

	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeInsufficientBalance, apperr.CodeOf(err))
	assert.Equal(t, 0, f.adapter.submits())

	stored, err := f.intents.Get(ctx, 1, quoted.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusQuoted, stored.Status)

	cancelled, err := f.intents.Cancel(ctx, 1, quoted.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusCancelled, cancelled.Status)

	again, err := f.intents.Cancel(ctx, 1, quoted.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusCancelled, again.Status)

	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeAlreadyProcessed, apperr.CodeOf(err))
	assert.Equal(t, []domain.IntentStatus{domain.IntentStatusCancelled}, f.publisher.statuses())
}

func TestConcurrentConfirmSubmitsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)

	quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	require.NoError(t, err)

	const callers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		codes     []apperr.Code
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.intents.Confirm(ctx, 1, quoted.Token)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			codes = append(codes, apperr.CodeOf(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, f.adapter.submits())
	for _, code := range codes {
		assert.Contains(t, []apperr.Code{apperr.CodeAlreadyProcessing, apperr.CodeAlreadyProcessed}, code)
	}
}

func TestCancelWhileExecuting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)
	f.adapter.started = make(chan struct{})
	f.adapter.release = make(chan struct{})

	quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.intents.Confirm(ctx, 1, quoted.Token)
		done <- err
	}()
	<-f.adapter.started

	_, err = f.intents.Cancel(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeAlreadyProcessing, apperr.CodeOf(err))
	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeAlreadyProcessing, apperr.CodeOf(err))

	close(f.adapter.release)
	require.NoError(t, <-done)

	_, err = f.intents.Cancel(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeAlreadyProcessed, apperr.CodeOf(err))
}

func TestCancelRacesConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)

	for i := 0; i < 20; i++ {
		quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
		require.NoError(t, err)
		before := f.adapter.submits()

		var (
			wg                    sync.WaitGroup
			confirmErr, cancelErr error
		)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, confirmErr = f.intents.Confirm(ctx, 1, quoted.Token)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, cancelErr = f.intents.Cancel(ctx, 1, quoted.Token)
		}()
		close(start)
		wg.Wait()

		stored, err := f.intents.Get(ctx, 1, quoted.Intent.ID)
		require.NoError(t, err)

		if confirmErr == nil {
			assert.Contains(t, []apperr.Code{apperr.CodeAlreadyProcessing, apperr.CodeAlreadyProcessed}, apperr.CodeOf(cancelErr))
			assert.Equal(t, domain.IntentStatusExecuted, stored.Status)
			assert.Equal(t, before+1, f.adapter.submits())
		} else {
			require.NoError(t, cancelErr, "one of confirm and cancel must win")
			assert.Equal(t, apperr.CodeAlreadyProcessed, apperr.CodeOf(confirmErr))
			assert.Equal(t, domain.IntentStatusCancelled, stored.Status)
			assert.Equal(t, before, f.adapter.submits())
		}
	}
}

// flakyIntentRepo fails the first n outcome writes.
type flakyIntentRepo struct {
	*repository.MemoryIntentRepository
	mu    sync.Mutex
	fails int
	calls int
}

func (r *flakyIntentRepo) fail() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.fails {
		return errors.New("connection reset")
	}
	return nil
}

func (r *flakyIntentRepo) MarkExecuted(ctx context.Context, id string, result *domain.SubmitResult) error {
	if err := r.fail(); err != nil {
		return err
	}
	return r.MemoryIntentRepository.MarkExecuted(ctx, id, result)
}

func (r *flakyIntentRepo) MarkFailed(ctx context.Context, id, code, message string) error {
	if err := r.fail(); err != nil {
		return err
	}
	return r.MemoryIntentRepository.MarkFailed(ctx, id, code, message)
}

func TestExecutedOutcomeIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)
	repo := &flakyIntentRepo{MemoryIntentRepository: f.intentRepo, fails: recordAttempts - 1}
	f.intents.intentRepo = repo
	f.intents.recordBackoff = 0

	quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.IntentRecordFailures.WithLabelValues(string(domain.IntentStatusExecuted)))
	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	require.NoError(t, err)
	assert.Equal(t, recordAttempts, repo.calls)

	stored, err := f.intents.Get(ctx, 1, quoted.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusExecuted, stored.Status)
	assert.Equal(t, "0xtransfer", stored.Result.TxHash)
	assert.Equal(t, before, testutil.ToFloat64(metrics.IntentRecordFailures.WithLabelValues(string(domain.IntentStatusExecuted))))
}

func TestUnrecordedOutcomeIsCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)
	f.intents.intentRepo = &flakyIntentRepo{MemoryIntentRepository: f.intentRepo, fails: recordAttempts}
	f.intents.recordBackoff = 0

	quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	require.NoError(t, err)

	counter := metrics.IntentRecordFailures.WithLabelValues(string(domain.IntentStatusExecuted))
	before := testutil.ToFloat64(counter)

	executed, err := f.intents.Confirm(ctx, 1, quoted.Token)
	require.NoError(t, err, "the transaction hash is still returned")
	assert.Equal(t, domain.IntentStatusExecuted, executed.Status)
	assert.Equal(t, "0xtransfer", executed.Result.TxHash)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	stored, err := f.intents.Get(ctx, 1, quoted.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusExecuting, stored.Status)

	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeAlreadyProcessing, apperr.CodeOf(err))
	assert.Equal(t, 1, f.adapter.submits())
}

func TestExpiredIntentIsRejectedAndRequoteGetsNewID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)

	quoted, err := f.intents.QuoteBuy(ctx, 1, BuyParams{Chain: "eth", Contract: pepe})
	require.NoError(t, err)

	f.clock.Advance(DefaultIntentTTL + time.Second)

	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeExpired, apperr.CodeOf(err))
	_, err = f.intents.Cancel(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeExpired, apperr.CodeOf(err))
	assert.Equal(t, 0, f.adapter.submits())

	stored, err := f.intents.Get(ctx, 1, quoted.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusExpired, stored.Status)

	requoted, err := f.intents.QuoteBuy(ctx, 1, BuyParams{Chain: "eth", Contract: pepe})
	require.NoError(t, err)
	assert.NotEqual(t, quoted.Intent.ID, requoted.Intent.ID)
	assert.NotEqual(t, quoted.Token, requoted.Token)
}

func TestGetAppliesTTLLazily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)

	quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "base", To: recipient, Amount: "0.1"})
	require.NoError(t, err)

	f.clock.Advance(DefaultIntentTTL)
	stored, err := f.intents.Get(ctx, 1, quoted.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusExpired, stored.Status)
	assert.Equal(t, []domain.IntentStatus{domain.IntentStatusExpired}, f.publisher.statuses())

	_, err = f.intents.Get(ctx, 2, quoted.Intent.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestConfirmRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)

	quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	require.NoError(t, err)

	tampered := quoted.Token[:len(quoted.Token)-2] + "xx"
	_, err = f.intents.Confirm(ctx, 1, tampered)
	assert.Equal(t, apperr.CodeInvalidIntentToken, apperr.CodeOf(err))

	foreign, err := token.NewSigner([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	forged, err := foreign.Sign(quoted.Intent)
	require.NoError(t, err)
	_, err = f.intents.Confirm(ctx, 1, forged)
	assert.Equal(t, apperr.CodeInvalidIntentToken, apperr.CodeOf(err))

	_, err = f.intents.Confirm(ctx, 2, quoted.Token)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	_, err = f.intents.Cancel(ctx, 2, quoted.Token)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.Equal(t, 0, f.adapter.submits())
}

func TestFailedSubmitIsRecordedAndNotRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)
	f.adapter.submitErr = apperr.New(apperr.CodeExecutionFailed, "fake", "execution reverted")

	quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	require.NoError(t, err)

	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeExecutionFailed, apperr.CodeOf(err))

	stored, err := f.intents.Get(ctx, 1, quoted.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusFailed, stored.Status)
	assert.Equal(t, string(apperr.CodeExecutionFailed), stored.FailureCode)
	assert.Equal(t, "execution reverted", stored.FailureMessage)

	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeAlreadyProcessed, apperr.CodeOf(err))
	assert.Equal(t, 1, f.adapter.submits())
}

func TestConfirmFailsWhenWalletWasDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.withWallet(t, 1)

	quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	require.NoError(t, err)
	require.NoError(t, f.wallets.Delete(ctx, 1, created.Wallet.Address))

	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.Equal(t, 0, f.adapter.submits())

	stored, err := f.intents.Get(ctx, 1, quoted.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusFailed, stored.Status)
}

func TestConfirmLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)

	quoted, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	require.NoError(t, err)

	held := &fakeLocker{err: apperr.New(apperr.CodeAlreadyProcessing, "fake", "locked")}
	f.intents.WithLocker(held)
	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	assert.Equal(t, apperr.CodeAlreadyProcessing, apperr.CodeOf(err))
	assert.Equal(t, 0, f.adapter.submits())

	// a redis outage falls back to the intent state
	f.intents.WithLocker(&fakeLocker{err: errors.New("connection refused")})
	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	require.NoError(t, err)

	quoted, err = f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	require.NoError(t, err)
	locker := &fakeLocker{}
	f.intents.WithLocker(locker)
	_, err = f.intents.Confirm(ctx, 1, quoted.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, locker.released)
	assert.Equal(t, 2, f.adapter.submits())
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withWallet(t, 1)

	for i := 0; i < 2; i++ {
		_, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
		require.NoError(t, err)
	}
	kept, err := f.intents.QuoteSend(ctx, 1, SendParams{Chain: "eth", To: recipient, Amount: "0.1"})
	require.NoError(t, err)
	_, err = f.intents.Confirm(ctx, 1, kept.Token)
	require.NoError(t, err)

	n, err := f.intents.ExpireStale(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.clock.Advance(time.Hour)
	n, err = f.intents.ExpireStale(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []domain.IntentStatus{
		domain.IntentStatusExecuted,
		domain.IntentStatusExpired,
		domain.IntentStatusExpired,
	}, f.publisher.statuses())
}
