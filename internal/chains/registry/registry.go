// internal/chains/registry/registry.go
package registry

import (
	"fmt"
	"strings"
	"sync"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"
)

const (
	Ethereum = "ethereum"
	Polygon  = "polygon"
	Base     = "base"
	Arbitrum = "arbitrum"
)

// NativeSymbolAlias is accepted as the native asset on every chain.
const NativeSymbolAlias = "ETH"

func stablecoins(chain, usdt, usdc string) map[string]domain.Asset {
	return map[string]domain.Asset{
		"USDT": {Chain: chain, Symbol: "USDT", ContractAddr: &usdt, Decimals: 6, Type: domain.AssetTypeToken},
		"USDC": {Chain: chain, Symbol: "USDC", ContractAddr: &usdc, Decimals: 6, Type: domain.AssetTypeToken},
	}
}

// DefaultChains returns the supported mainnets.
func DefaultChains() []domain.ChainInfo {
	return []domain.ChainInfo{
		{
			Name:         Ethereum,
			ChainID:      1,
			NativeSymbol: "ETH",
			RPCPrefix:    "eth",
			WrappedToken: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			Tokens: stablecoins(Ethereum,
				"0xdAC17F958D2ee523a2206206994597C13D831ec7",
				"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		},
		{
			Name:         Polygon,
			ChainID:      137,
			NativeSymbol: "POL",
			RPCPrefix:    "polygon",
			WrappedToken: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
			Tokens: stablecoins(Polygon,
				"0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
				"0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
		},
		{
			Name:         Base,
			ChainID:      8453,
			NativeSymbol: "ETH",
			RPCPrefix:    "base",
			WrappedToken: "0x4200000000000000000000000000000000000006",
			Tokens: stablecoins(Base,
				"0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb",
				"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		},
		{
			Name:         Arbitrum,
			ChainID:      42161,
			NativeSymbol: "ETH",
			RPCPrefix:    "arb",
			WrappedToken: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
			Tokens: stablecoins(Arbitrum,
				"0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9",
				"0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		},
	}
}

var defaultAliases = map[string]string{
	"eth":   Ethereum,
	"pol":   Polygon,
	"matic": Polygon,
	"arb":   Arbitrum,
}

type Registry struct {
	chains  map[string]domain.ChainInfo
	order   []string
	aliases map[string]string
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		chains:  make(map[string]domain.ChainInfo),
		aliases: make(map[string]string),
	}
}

// NewDefaultRegistry returns a registry with the supported mainnets and their aliases.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, info := range DefaultChains() {
		r.Register(info)
	}
	for alias, name := range defaultAliases {
		r.Alias(alias, name)
	}
	return r
}

// Register adds a chain to registry
func (r *Registry) Register(info domain.ChainInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(info.Name)
	info.Name = name
	if _, exists := r.chains[name]; !exists {
		r.order = append(r.order, name)
	}
	r.chains[name] = info
}

func (r *Registry) Alias(alias, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[strings.ToLower(alias)] = strings.ToLower(name)
}

// Resolve maps a user-supplied chain name or alias to its chain.
func (r *Registry) Resolve(name string) (domain.ChainInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}

	info, ok := r.chains[key]
	if !ok {
		return domain.ChainInfo{}, apperr.Newf(apperr.CodeInvalidChain, "registry.Resolve",
			"unsupported chain %q, supported: %s", name, strings.Join(r.order, ", "))
	}
	return info, nil
}

// List returns all registered chains in registration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Asset resolves a transfer token symbol on a chain. "ETH" and the chain's
// own native symbol both mean the native asset.
func (r *Registry) Asset(chain, symbol string) (*domain.Asset, error) {
	info, err := r.Resolve(chain)
	if err != nil {
		return nil, err
	}

	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" || sym == NativeSymbolAlias || sym == info.NativeSymbol {
		return NativeAsset(info), nil
	}

	asset, ok := info.Tokens[sym]
	if !ok {
		return nil, apperr.Newf(apperr.CodeUnsupportedToken, "registry.Asset",
			"unsupported token %q on %s, supported: ETH, USDT, USDC", symbol, info.Name)
	}
	return &asset, nil
}

// TokenByContract finds a known token on a chain by contract address.
func (r *Registry) TokenByContract(chain, contract string) (*domain.Asset, bool) {
	info, err := r.Resolve(chain)
	if err != nil {
		return nil, false
	}
	for _, asset := range info.Tokens {
		if asset.ContractAddr != nil && strings.EqualFold(*asset.ContractAddr, contract) {
			a := asset
			return &a, true
		}
	}
	return nil, false
}

func NativeAsset(info domain.ChainInfo) *domain.Asset {
	return &domain.Asset{
		Chain:    info.Name,
		Symbol:   info.NativeSymbol,
		Decimals: 18,
		Type:     domain.AssetTypeNative,
	}
}

// RPCURL returns the chain's Alchemy endpoint unless an override is set.
func RPCURL(info domain.ChainInfo, alchemyKey string, overrides map[string]string) string {
	if url, ok := overrides[info.Name]; ok && url != "" {
		return url
	}
	return fmt.Sprintf("https://%s-mainnet.g.alchemy.com/v2/%s", info.RPCPrefix, alchemyKey)
}
