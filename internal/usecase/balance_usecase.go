// internal/usecase/balance_usecase.go
package usecase

import (
	"context"
	"math/big"
	"regexp"
	"strings"

	"custody-service/internal/chains/evm"
	"custody-service/internal/chains/registry"
	"custody-service/internal/domain"
	"custody-service/pkg/apperr"
	"custody-service/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Stablecoins are checked directly when the provider reports no holdings.
var fallbackTokens = []string{"USDT", "USDC"}

type BalanceUsecase struct {
	wallets  *WalletUsecase
	adapter  domain.ChainAdapter
	registry *registry.Registry
	logger   *zap.Logger
}

func NewBalanceUsecase(wallets *WalletUsecase, adapter domain.ChainAdapter, reg *registry.Registry, logger *zap.Logger) *BalanceUsecase {
	return &BalanceUsecase{
		wallets:  wallets,
		adapter:  adapter,
		registry: reg,
		logger:   logger,
	}
}

// Balances reports the wallet's holdings. An empty chain means every chain;
// a token narrows the answer to that one asset. A failing chain is reported
// in place without failing the others.
func (uc *BalanceUsecase) Balances(ctx context.Context, accountID int64, chain, token string) (*domain.Portfolio, error) {
	wallet, err := uc.wallets.Require(ctx, accountID)
	if err != nil {
		return nil, err
	}

	chains := uc.registry.List()
	if strings.TrimSpace(chain) != "" {
		info, err := uc.registry.Resolve(chain)
		if err != nil {
			return nil, err
		}
		chains = []string{info.Name}
	}

	token = strings.TrimSpace(token)
	if token != "" {
		if err := uc.validateToken(chains, token); err != nil {
			return nil, err
		}
	}

	results := make([]domain.ChainBalances, len(chains))
	var g errgroup.Group
	for i, name := range chains {
		i, name := i, name
		g.Go(func() error {
			balances, err := uc.chainBalances(ctx, name, wallet.Address, token)
			results[i] = domain.ChainBalances{Chain: name, Balances: balances}
			if err != nil {
				uc.logger.Warn("Balance lookup failed",
					zap.String("chain", name),
					zap.String("address", wallet.Address),
					zap.Error(err))
				results[i].Balances = nil
				results[i].Error = apperr.Message(err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return &domain.Portfolio{
		AccountID: accountID,
		Address:   wallet.Address,
		Chains:    results,
	}, nil
}

func (uc *BalanceUsecase) validateToken(chains []string, token string) error {
	if strings.HasPrefix(token, "0x") {
		return evm.ValidateAddress(token)
	}
	for _, name := range chains {
		if _, err := uc.registry.Asset(name, token); err != nil {
			return err
		}
	}
	return nil
}

func (uc *BalanceUsecase) chainBalances(ctx context.Context, chain, address, token string) ([]domain.AssetBalance, error) {
	info, err := uc.registry.Resolve(chain)
	if err != nil {
		return nil, err
	}

	if token != "" {
		balance, err := uc.single(ctx, info, address, token)
		if err != nil {
			return nil, err
		}
		return []domain.AssetBalance{*balance}, nil
	}

	native, err := uc.adapter.NativeBalance(ctx, info.Name, address)
	if err != nil {
		return nil, err
	}
	nativeAsset := registry.NativeAsset(info)
	balances := []domain.AssetBalance{assetBalance(nativeAsset.Symbol, nativeAsset.Symbol, "", nativeAsset.Decimals, native)}

	holdings, err := uc.adapter.TokensOwned(ctx, info.Name, address)
	if err != nil {
		return nil, err
	}
	for _, h := range holdings {
		if h.Balance == nil || h.Balance.Sign() == 0 {
			continue
		}
		balances = append(balances, assetBalance(h.Symbol, h.Name, h.Contract, h.Decimals, h.Balance))
	}
	if len(balances) > 1 {
		return balances, nil
	}

	for _, symbol := range fallbackTokens {
		asset, ok := info.Tokens[symbol]
		if !ok {
			continue
		}
		amount, err := uc.adapter.TokenBalance(ctx, info.Name, address, *asset.ContractAddr)
		if err != nil {
			return nil, err
		}
		if amount.Sign() > 0 {
			balances = append(balances, assetBalance(asset.Symbol, asset.Symbol, *asset.ContractAddr, asset.Decimals, amount))
		}
	}
	return balances, nil
}

func (uc *BalanceUsecase) single(ctx context.Context, info domain.ChainInfo, address, token string) (*domain.AssetBalance, error) {
	if strings.HasPrefix(token, "0x") {
		meta, err := uc.adapter.TokenMetadata(ctx, info.Name, token)
		if err != nil {
			return nil, err
		}
		amount, err := uc.adapter.TokenBalance(ctx, info.Name, address, token)
		if err != nil {
			return nil, err
		}
		b := assetBalance(meta.Symbol, meta.Name, meta.Contract, meta.Decimals, amount)
		return &b, nil
	}

	asset, err := uc.registry.Asset(info.Name, token)
	if err != nil {
		return nil, err
	}
	if asset.IsNative() {
		amount, err := uc.adapter.NativeBalance(ctx, info.Name, address)
		if err != nil {
			return nil, err
		}
		b := assetBalance(asset.Symbol, asset.Symbol, "", asset.Decimals, amount)
		return &b, nil
	}

	amount, err := uc.adapter.TokenBalance(ctx, info.Name, address, *asset.ContractAddr)
	if err != nil {
		return nil, err
	}
	b := assetBalance(asset.Symbol, asset.Symbol, *asset.ContractAddr, asset.Decimals, amount)
	return &b, nil
}

// TransactionStatus looks up a submitted transaction on a chain.
func (uc *BalanceUsecase) TransactionStatus(ctx context.Context, chain, txHash string) (*domain.TransactionStatus, error) {
	info, err := uc.registry.Resolve(chain)
	if err != nil {
		return nil, err
	}
	if !txHashPattern.MatchString(txHash) {
		return nil, apperr.New(apperr.CodeInvalidRequest, "usecase.TransactionStatus", "transaction hash must be 0x followed by 64 hex characters")
	}
	return uc.adapter.TransactionStatus(ctx, info.Name, txHash)
}

func assetBalance(symbol, name, contract string, decimals int32, amount *big.Int) domain.AssetBalance {
	amount = utils.BigOrZero(amount)
	return domain.AssetBalance{
		Symbol:    symbol,
		Name:      name,
		Contract:  contract,
		Decimals:  decimals,
		Amount:    amount,
		Formatted: utils.FormatUnits(amount, decimals),
	}
}
