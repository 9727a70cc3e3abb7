// internal/chains/adapter.go
package chains

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"custody-service/internal/chains/evm"
	"custody-service/internal/chains/oneinch"
	"custody-service/internal/chains/registry"
	"custody-service/internal/domain"
	"custody-service/internal/metrics"
	"custody-service/pkg/apperr"

	"go.uber.org/zap"
)

const (
	DefaultSlippage     = 0.05
	DefaultSwapDeadline = 20 * time.Minute
)

// ChainClient is the per-network client; *evm.Client implements it.
type ChainClient interface {
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, address, contract string) (*big.Int, error)
	TokenMetadata(ctx context.Context, contract string) (*domain.TokenMetadata, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateTransferFee(ctx context.Context, asset *domain.Asset) (*domain.Fee, error)
	SendNative(ctx context.Context, from, to string, amount *big.Int, secret string) (*domain.SubmitResult, error)
	SendERC20(ctx context.Context, from, to, contract string, amount *big.Int, secret string) (*domain.SubmitResult, error)
	SendRaw(ctx context.Context, from, secret string, raw *evm.RawTx) (*domain.SubmitResult, error)
	TransactionStatus(ctx context.Context, txHash string) (*domain.TransactionStatus, error)
}

// BalanceProvider answers balance and metadata queries; *nodit.Client implements it.
type BalanceProvider interface {
	NativeBalance(ctx context.Context, chain, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, chain, address, contract string) (*big.Int, error)
	TokensOwned(ctx context.Context, chain, address string) ([]domain.TokenHolding, error)
	TokenMetadata(ctx context.Context, chain, contract string) (*domain.TokenMetadata, error)
}

// SwapBuilder prices and builds aggregator swaps; *oneinch.Client implements it.
type SwapBuilder interface {
	Quote(ctx context.Context, chainID int64, src, dst string, amount *big.Int) (*oneinch.Quote, error)
	BuildSwap(ctx context.Context, p oneinch.SwapParams) (*oneinch.Swap, error)
}

type Options struct {
	Slippage float64
	Deadline time.Duration
}

// Adapter implements domain.ChainAdapter over the registry, per-chain RPC
// clients, an optional hosted balance provider and the swap aggregator.
type Adapter struct {
	registry *registry.Registry
	clients  map[string]ChainClient
	balances BalanceProvider
	swaps    SwapBuilder
	opts     Options
	logger   *zap.Logger
}

var _ domain.ChainAdapter = (*Adapter)(nil)

// NewAdapter wires the adapter. A nil provider means balances come from RPC.
func NewAdapter(reg *registry.Registry, clients map[string]ChainClient, provider BalanceProvider, swaps SwapBuilder, opts Options, logger *zap.Logger) *Adapter {
	if opts.Slippage <= 0 {
		opts.Slippage = DefaultSlippage
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultSwapDeadline
	}
	if provider == nil {
		provider = &rpcProvider{registry: reg, clients: clients}
	}
	return &Adapter{
		registry: reg,
		clients:  clients,
		balances: provider,
		swaps:    swaps,
		opts:     opts,
		logger:   logger,
	}
}

func (a *Adapter) client(chain string) (domain.ChainInfo, ChainClient, error) {
	info, err := a.registry.Resolve(chain)
	if err != nil {
		return domain.ChainInfo{}, nil, err
	}
	client, ok := a.clients[info.Name]
	if !ok {
		return domain.ChainInfo{}, nil, apperr.Newf(apperr.CodeUpstreamUnavailable, "chains.client", "no RPC client configured for %s", info.Name)
	}
	return info, client, nil
}

func (a *Adapter) NativeBalance(ctx context.Context, chain, address string) (balance *big.Int, err error) {
	info, err := a.registry.Resolve(chain)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveAdapterCall(info.Name, "native_balance", start, err) }(time.Now())

	return a.balances.NativeBalance(ctx, info.Name, address)
}

// TokenBalance accepts a registry symbol or a contract address.
func (a *Adapter) TokenBalance(ctx context.Context, chain, address, token string) (balance *big.Int, err error) {
	info, err := a.registry.Resolve(chain)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveAdapterCall(info.Name, "token_balance", start, err) }(time.Now())

	contract := token
	if !strings.HasPrefix(token, "0x") {
		asset, err := a.registry.Asset(info.Name, token)
		if err != nil {
			return nil, err
		}
		if asset.IsNative() {
			return a.balances.NativeBalance(ctx, info.Name, address)
		}
		contract = *asset.ContractAddr
	}
	return a.balances.TokenBalance(ctx, info.Name, address, contract)
}

func (a *Adapter) TokensOwned(ctx context.Context, chain, address string) (holdings []domain.TokenHolding, err error) {
	info, err := a.registry.Resolve(chain)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveAdapterCall(info.Name, "tokens_owned", start, err) }(time.Now())

	return a.balances.TokensOwned(ctx, info.Name, address)
}

// TokenMetadata prefers the provider and falls back to reading the contract.
func (a *Adapter) TokenMetadata(ctx context.Context, chain, contract string) (meta *domain.TokenMetadata, err error) {
	info, client, err := a.client(chain)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveAdapterCall(info.Name, "token_metadata", start, err) }(time.Now())

	meta, providerErr := a.balances.TokenMetadata(ctx, info.Name, contract)
	if providerErr == nil {
		return meta, nil
	}
	if _, onChain := a.balances.(*rpcProvider); onChain {
		return nil, providerErr
	}

	a.logger.Debug("Provider metadata unavailable, reading contract",
		zap.String("chain", info.Name),
		zap.String("contract", contract),
		zap.Error(providerErr))

	return contractMetadata(ctx, client, contract)
}

// contractMetadata reads ERC-20 metadata on chain. A contract that does not
// answer decimals() is not a token we can trade.
func contractMetadata(ctx context.Context, client ChainClient, contract string) (*domain.TokenMetadata, error) {
	meta, err := client.TokenMetadata(ctx, contract)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.CodeUnsupportedToken, "chains.TokenMetadata", err)
	}
	return meta, nil
}

// SwapQuote prices amountIn of fromToken in toToken. Empty or native symbols
// map to the aggregator's native placeholder.
func (a *Adapter) SwapQuote(ctx context.Context, chain, fromToken, toToken string, amountIn *big.Int) (quote *domain.SwapQuote, err error) {
	info, err := a.registry.Resolve(chain)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveAdapterCall(info.Name, "swap_quote", start, err) }(time.Now())

	if a.swaps == nil {
		return nil, apperr.New(apperr.CodeUpstreamUnavailable, "chains.SwapQuote", "swap aggregator not configured")
	}

	src, dst := aggregatorToken(info, fromToken), aggregatorToken(info, toToken)
	q, err := a.swaps.Quote(ctx, info.ChainID, src, dst, amountIn)
	if err != nil {
		return nil, err
	}
	return &domain.SwapQuote{
		FromToken: src,
		ToToken:   dst,
		AmountIn:  q.AmountIn,
		AmountOut: q.AmountOut,
		Gas:       q.Gas,
		Route:     q.Protocols,
	}, nil
}

func (a *Adapter) GasPrice(ctx context.Context, chain string) (price *big.Int, err error) {
	info, client, err := a.client(chain)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveAdapterCall(info.Name, "gas_price", start, err) }(time.Now())

	return client.GasPrice(ctx)
}

func (a *Adapter) EstimateTransferFee(ctx context.Context, chain string, asset *domain.Asset) (fee *domain.Fee, err error) {
	info, client, err := a.client(chain)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveAdapterCall(info.Name, "transfer_fee", start, err) }(time.Now())

	return client.EstimateTransferFee(ctx, asset)
}

// BuildAndSubmitSwap builds the swap through the aggregator and submits it.
// The whole build+submit is bounded by the swap deadline.
func (a *Adapter) BuildAndSubmitSwap(ctx context.Context, req *domain.SwapRequest) (result *domain.SubmitResult, err error) {
	const op = "chains.BuildAndSubmitSwap"

	info, client, err := a.client(req.Chain)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveAdapterCall(info.Name, "submit_swap", start, err) }(time.Now())

	if a.swaps == nil {
		return nil, apperr.New(apperr.CodeUpstreamUnavailable, op, "swap aggregator not configured")
	}

	deadline := req.Deadline
	if deadline <= 0 {
		deadline = a.opts.Deadline
	}
	slippage := req.Slippage
	if slippage <= 0 {
		slippage = a.opts.Slippage
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	swap, err := a.swaps.BuildSwap(ctx, oneinch.SwapParams{
		ChainID:  info.ChainID,
		Src:      aggregatorToken(info, req.FromToken),
		Dst:      aggregatorToken(info, req.ToToken),
		Amount:   req.AmountIn,
		From:     req.From,
		Slippage: slippage,
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("Swap built",
		zap.String("chain", info.Name),
		zap.String("from", req.From),
		zap.String("router", swap.Tx.To),
		zap.String("amount_in", req.AmountIn.String()),
		zap.String("expected_out", swap.AmountOut.String()))

	result, err = client.SendRaw(ctx, req.From, req.Secret, &evm.RawTx{
		To:       swap.Tx.To,
		Data:     swap.Tx.Data,
		Value:    swap.Tx.Value,
		Gas:      swap.Tx.Gas,
		GasPrice: swap.Tx.GasPrice,
	})
	if err != nil {
		return nil, err
	}
	result.AmountOut = swap.AmountOut
	return result, nil
}

func (a *Adapter) BuildAndSubmitTransfer(ctx context.Context, req *domain.TransferRequest) (result *domain.SubmitResult, err error) {
	info, client, err := a.client(req.Chain)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveAdapterCall(info.Name, "submit_transfer", start, err) }(time.Now())

	if req.Asset.IsNative() {
		return client.SendNative(ctx, req.From, req.To, req.Amount, req.Secret)
	}
	if req.Asset.ContractAddr == nil {
		return nil, apperr.Newf(apperr.CodeUnsupportedToken, "chains.BuildAndSubmitTransfer", "token %s has no contract on %s", req.Asset.Symbol, info.Name)
	}
	return client.SendERC20(ctx, req.From, req.To, *req.Asset.ContractAddr, req.Amount, req.Secret)
}

func (a *Adapter) TransactionStatus(ctx context.Context, chain, txHash string) (status *domain.TransactionStatus, err error) {
	info, client, err := a.client(chain)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { metrics.ObserveAdapterCall(info.Name, "tx_status", start, err) }(time.Now())

	return client.TransactionStatus(ctx, txHash)
}

func aggregatorToken(info domain.ChainInfo, token string) string {
	sym := strings.ToUpper(strings.TrimSpace(token))
	if sym == "" || sym == registry.NativeSymbolAlias || sym == info.NativeSymbol {
		return oneinch.NativeToken
	}
	return token
}

// Dial opens one RPC client per registered chain.
func Dial(ctx context.Context, reg *registry.Registry, alchemyKey string, overrides map[string]string, logger *zap.Logger) (map[string]ChainClient, error) {
	clients := make(map[string]ChainClient)
	for _, name := range reg.List() {
		info, err := reg.Resolve(name)
		if err != nil {
			return nil, err
		}
		client, err := evm.Dial(ctx, info, evm.DefaultConfig(registry.RPCURL(info, alchemyKey, overrides), info.ChainID), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s: %w", name, err)
		}
		clients[info.Name] = client
	}
	return clients, nil
}
