// internal/chains/rpc_provider.go
package chains

import (
	"context"
	"math/big"
	"sort"

	"custody-service/internal/chains/registry"
	"custody-service/internal/domain"
	"custody-service/pkg/apperr"
)

// rpcProvider answers balance queries straight from the chain when no hosted
// provider is configured. It cannot enumerate holdings, so TokensOwned only
// covers the tokens the registry knows.
type rpcProvider struct {
	registry *registry.Registry
	clients  map[string]ChainClient
}

func (p *rpcProvider) client(chain string) (ChainClient, error) {
	client, ok := p.clients[chain]
	if !ok {
		return nil, apperr.Newf(apperr.CodeUpstreamUnavailable, "chains.rpcProvider", "no RPC client configured for %s", chain)
	}
	return client, nil
}

func (p *rpcProvider) NativeBalance(ctx context.Context, chain, address string) (*big.Int, error) {
	client, err := p.client(chain)
	if err != nil {
		return nil, err
	}
	return client.NativeBalance(ctx, address)
}

func (p *rpcProvider) TokenBalance(ctx context.Context, chain, address, contract string) (*big.Int, error) {
	client, err := p.client(chain)
	if err != nil {
		return nil, err
	}
	return client.TokenBalance(ctx, address, contract)
}

func (p *rpcProvider) TokensOwned(ctx context.Context, chain, address string) ([]domain.TokenHolding, error) {
	info, err := p.registry.Resolve(chain)
	if err != nil {
		return nil, err
	}
	client, err := p.client(info.Name)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(info.Tokens))
	for symbol := range info.Tokens {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var holdings []domain.TokenHolding
	for _, symbol := range symbols {
		asset := info.Tokens[symbol]
		balance, err := client.TokenBalance(ctx, address, *asset.ContractAddr)
		if err != nil {
			return nil, err
		}
		if balance.Sign() == 0 {
			continue
		}
		holdings = append(holdings, domain.TokenHolding{
			Contract: *asset.ContractAddr,
			Symbol:   asset.Symbol,
			Name:     asset.Symbol,
			Decimals: asset.Decimals,
			Balance:  balance,
		})
	}
	return holdings, nil
}

func (p *rpcProvider) TokenMetadata(ctx context.Context, chain, contract string) (*domain.TokenMetadata, error) {
	client, err := p.client(chain)
	if err != nil {
		return nil, err
	}
	return contractMetadata(ctx, client, contract)
}
