// internal/usecase/intent_usecase.go
package usecase

import (
	"context"
	"math/big"
	"strconv"
	"strings"
	"time"

	"custody-service/internal/cache"
	"custody-service/internal/chains/evm"
	"custody-service/internal/chains/registry"
	"custody-service/internal/domain"
	"custody-service/internal/metrics"
	"custody-service/internal/quote"
	"custody-service/internal/repository"
	"custody-service/internal/token"
	"custody-service/pkg/apperr"
	"custody-service/pkg/id"
	"custody-service/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultIntentTTL      = 5 * time.Minute
	DefaultBuyAmount      = "0.01"
	DefaultConfirmLockTTL = 2 * time.Minute

	// attempts to store a submitted intent's outcome
	recordAttempts = 3
)

// ConfirmLocker serializes confirms of one intent across instances.
type ConfirmLocker interface {
	LockIntent(ctx context.Context, intentID string, ttl time.Duration) (cache.Releaser, error)
}

type QuoteLimiter interface {
	Allow(ctx context.Context, accountID int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.IntentEvent)
}

type IntentConfig struct {
	TTL              time.Duration
	DefaultBuyAmount string
	Slippage         float64
	SwapDeadline     time.Duration
	LockTTL          time.Duration
}

type BuyParams struct {
	Chain    string `json:"chain"`
	Contract string `json:"contract"`
	Amount   string `json:"amount"`
}

type SendParams struct {
	Chain  string `json:"chain"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Token  string `json:"token"`
}

type IntentUsecase struct {
	wallets    *WalletUsecase
	adapter    domain.ChainAdapter
	intentRepo repository.IntentRepository
	signer     *token.Signer
	registry   *registry.Registry
	locker     ConfirmLocker
	limiter    QuoteLimiter
	publisher  EventPublisher
	config     IntentConfig
	now        func() time.Time
	logger     *zap.Logger

	recordBackoff time.Duration
}

func NewIntentUsecase(
	wallets *WalletUsecase,
	adapter domain.ChainAdapter,
	intentRepo repository.IntentRepository,
	signer *token.Signer,
	reg *registry.Registry,
	config IntentConfig,
	logger *zap.Logger,
) *IntentUsecase {
	if config.TTL <= 0 {
		config.TTL = DefaultIntentTTL
	}
	if strings.TrimSpace(config.DefaultBuyAmount) == "" {
		config.DefaultBuyAmount = DefaultBuyAmount
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultConfirmLockTTL
	}
	return &IntentUsecase{
		wallets:       wallets,
		adapter:       adapter,
		intentRepo:    intentRepo,
		signer:        signer,
		registry:      reg,
		config:        config,
		now:           time.Now,
		logger:        logger,
		recordBackoff: 200 * time.Millisecond,
	}
}

// WithLocker enables the redis confirm lock.
func (uc *IntentUsecase) WithLocker(locker ConfirmLocker) *IntentUsecase {
	uc.locker = locker
	return uc
}

func (uc *IntentUsecase) WithLimiter(limiter QuoteLimiter) *IntentUsecase {
	uc.limiter = limiter
	return uc
}

func (uc *IntentUsecase) WithPublisher(publisher EventPublisher) *IntentUsecase {
	uc.publisher = publisher
	return uc
}

func (uc *IntentUsecase) WithClock(now func() time.Time) *IntentUsecase {
	uc.now = now
	return uc
}

// ============================================================================
// QUOTES
// ============================================================================

// QuoteBuy prices spending native currency on a token and records the
// quoted intent. Nothing is submitted until the intent is confirmed.
func (uc *IntentUsecase) QuoteBuy(ctx context.Context, accountID int64, params BuyParams) (*domain.QuotedIntent, error) {
	const op = "usecase.QuoteBuy"

	info, err := uc.registry.Resolve(params.Chain)
	if err != nil {
		return nil, err
	}
	contract, err := evm.NormalizeAddress(params.Contract)
	if err != nil {
		return nil, err
	}
	amountStr := strings.TrimSpace(params.Amount)
	if amountStr == "" {
		amountStr = uc.config.DefaultBuyAmount
	}
	amountIn, err := utils.ParseAmount(amountStr, quote.NativeDecimals)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidAmount, op, err)
	}

	wallet, err := uc.wallets.Require(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := uc.allow(ctx, accountID); err != nil {
		return nil, err
	}

	var (
		nativeBalance *big.Int
		meta          *domain.TokenMetadata
		route         *domain.SwapQuote
		routeErr      error
		sample        *domain.SwapQuote
		gasPrice      *big.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nativeBalance, err = uc.adapter.NativeBalance(gctx, info.Name, wallet.Address)
		return err
	})
	g.Go(func() error {
		var err error
		meta, err = uc.adapter.TokenMetadata(gctx, info.Name, contract)
		return err
	})
	g.Go(func() error {
		route, routeErr = uc.adapter.SwapQuote(gctx, info.Name, "", contract, amountIn)
		return nil
	})
	g.Go(func() error {
		var err error
		sample, err = uc.adapter.SwapQuote(gctx, info.Name, info.WrappedToken, contract, quote.SampleAmount)
		if err != nil {
			uc.logger.Debug("Unit price sample quote failed",
				zap.String("chain", info.Name),
				zap.String("contract", contract),
				zap.Error(err))
			sample = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		gasPrice, err = uc.adapter.GasPrice(gctx, info.Name)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	in := quote.BuyInput{
		AmountIn:      amountIn,
		NativeBalance: nativeBalance,
		TokenDecimals: meta.Decimals,
		Now:           uc.now(),
	}
	var gas uint64
	if routeErr == nil && route != nil {
		in.RouteOut = route.AmountOut
		gas = route.Gas
	}
	if sample != nil {
		if price, ok := quote.UnitPriceFromSample(sample.AmountIn, sample.AmountOut, meta.Decimals); ok {
			in.UnitPrice = &price
		}
	}
	in.GasFee = quote.SwapGasFee(gasPrice, gas)

	if in.RouteOut == nil && in.UnitPrice == nil && routeErr != nil {
		uc.logger.Warn("No price available for buy",
			zap.String("chain", info.Name),
			zap.String("contract", contract),
			zap.Error(routeErr))
		return nil, routeErr
	}

	estimate, err := quote.EstimateBuy(in)
	if err != nil {
		return nil, err
	}

	intent := &domain.Intent{
		Kind:          domain.IntentKindBuy,
		Chain:         info.Name,
		AccountID:     accountID,
		FromAddress:   wallet.Address,
		Counterparty:  contract,
		TokenSymbol:   meta.Symbol,
		TokenContract: contract,
		TokenDecimals: meta.Decimals,
		Amount:        amountIn,
		Estimate:      estimate,
	}
	return uc.record(ctx, intent)
}

// QuoteSend prices a transfer of the native asset or a supported token.
func (uc *IntentUsecase) QuoteSend(ctx context.Context, accountID int64, params SendParams) (*domain.QuotedIntent, error) {
	const op = "usecase.QuoteSend"

	info, err := uc.registry.Resolve(params.Chain)
	if err != nil {
		return nil, err
	}
	to, err := evm.NormalizeAddress(params.To)
	if err != nil {
		return nil, err
	}
	symbol := strings.TrimSpace(params.Token)
	if symbol == "" {
		symbol = registry.NativeSymbolAlias
	}
	asset, err := uc.registry.Asset(info.Name, symbol)
	if err != nil {
		return nil, err
	}
	amount, err := utils.ParseAmount(params.Amount, asset.Decimals)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidAmount, op, err)
	}

	wallet, err := uc.wallets.Require(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := uc.allow(ctx, accountID); err != nil {
		return nil, err
	}

	var (
		nativeBalance *big.Int
		tokenBalance  *big.Int
		fee           *domain.Fee
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nativeBalance, err = uc.adapter.NativeBalance(gctx, info.Name, wallet.Address)
		return err
	})
	if !asset.IsNative() {
		g.Go(func() error {
			var err error
			tokenBalance, err = uc.adapter.TokenBalance(gctx, info.Name, wallet.Address, *asset.ContractAddr)
			return err
		})
	}
	g.Go(func() error {
		var err error
		fee, err = uc.adapter.EstimateTransferFee(gctx, info.Name, asset)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	estimate := quote.EstimateSend(quote.SendInput{
		Amount:        amount,
		Native:        asset.IsNative(),
		NativeBalance: nativeBalance,
		TokenBalance:  tokenBalance,
		Fee:           fee.Amount,
		Now:           uc.now(),
	})

	intent := &domain.Intent{
		Kind:          domain.IntentKindSend,
		Chain:         info.Name,
		AccountID:     accountID,
		FromAddress:   wallet.Address,
		Counterparty:  to,
		TokenSymbol:   asset.Symbol,
		TokenDecimals: asset.Decimals,
		Amount:        amount,
		Estimate:      estimate,
	}
	if asset.ContractAddr != nil {
		intent.TokenContract = *asset.ContractAddr
	}
	return uc.record(ctx, intent)
}

func (uc *IntentUsecase) allow(ctx context.Context, accountID int64) error {
	if uc.limiter == nil {
		return nil
	}
	return uc.limiter.Allow(ctx, accountID)
}

// record stores a fresh Quoted intent and signs its token.
func (uc *IntentUsecase) record(ctx context.Context, intent *domain.Intent) (*domain.QuotedIntent, error) {
	now := uc.now()
	intent.ID = id.GenerateULID("int")
	intent.Status = domain.IntentStatusQuoted
	intent.QuotedAt = now
	intent.UpdatedAt = now
	intent.ExpiresAt = now.Add(uc.config.TTL)

	if err := uc.intentRepo.Create(ctx, intent); err != nil {
		return nil, err
	}

	signed, err := uc.signer.Sign(intent)
	if err != nil {
		return nil, err
	}

	metrics.IntentsQuoted.WithLabelValues(
		string(intent.Kind), intent.Chain, strconv.FormatBool(intent.Estimate.Sufficient),
	).Inc()

	uc.logger.Info("Intent quoted",
		zap.String("intent_id", intent.ID),
		zap.Int64("account_id", intent.AccountID),
		zap.String("kind", string(intent.Kind)),
		zap.String("chain", intent.Chain),
		zap.String("amount", intent.Amount.String()),
		zap.String("total_cost", intent.Estimate.TotalCost.String()),
		zap.Bool("sufficient", intent.Estimate.Sufficient))

	return &domain.QuotedIntent{Intent: intent, Token: signed}, nil
}
