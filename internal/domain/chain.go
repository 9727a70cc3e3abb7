// internal/domain/chain.go
package domain

import (
	"context"
	"math/big"
	"time"
)

// ChainAdapter is the boundary between the core and external networks.
// Query methods are safe to repeat; submit methods must be called at most
// once per confirmed intent.
type ChainAdapter interface {
	NativeBalance(ctx context.Context, chain, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, chain, address, token string) (*big.Int, error)
	TokensOwned(ctx context.Context, chain, address string) ([]TokenHolding, error)
	TokenMetadata(ctx context.Context, chain, contract string) (*TokenMetadata, error)

	SwapQuote(ctx context.Context, chain, fromToken, toToken string, amountIn *big.Int) (*SwapQuote, error)
	GasPrice(ctx context.Context, chain string) (*big.Int, error)
	EstimateTransferFee(ctx context.Context, chain string, asset *Asset) (*Fee, error)

	BuildAndSubmitSwap(ctx context.Context, req *SwapRequest) (*SubmitResult, error)
	BuildAndSubmitTransfer(ctx context.Context, req *TransferRequest) (*SubmitResult, error)

	TransactionStatus(ctx context.Context, chain, txHash string) (*TransactionStatus, error)
}

// ChainInfo is the static description of a supported network.
type ChainInfo struct {
	Name         string
	ChainID      int64
	NativeSymbol string
	RPCPrefix    string
	WrappedToken string
	Tokens       map[string]Asset // keyed by upper-case symbol
}

type AssetType string

const (
	AssetTypeNative AssetType = "native"
	AssetTypeToken  AssetType = "token"
)

type Asset struct {
	Chain        string
	Symbol       string
	ContractAddr *string
	Decimals     int32
	Type         AssetType
}

func (a *Asset) IsNative() bool {
	return a == nil || a.Type == AssetTypeNative
}

type TokenMetadata struct {
	Contract string `json:"contract"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

type TokenHolding struct {
	Contract string   `json:"contract"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Decimals int32    `json:"decimals"`
	Balance  *big.Int `json:"balance"`
}

type Fee struct {
	Amount   *big.Int `json:"amount"`
	Currency string   `json:"currency"`
	GasLimit uint64   `json:"gas_limit"`
	GasPrice *big.Int `json:"gas_price"`
}

type SwapQuote struct {
	FromToken string   `json:"from_token"`
	ToToken   string   `json:"to_token"`
	AmountIn  *big.Int `json:"amount_in"`
	AmountOut *big.Int `json:"amount_out"`
	Gas       uint64   `json:"gas"`
	Route     []string `json:"route,omitempty"`
}

type SwapRequest struct {
	Chain     string
	From      string
	FromToken string
	ToToken   string
	AmountIn  *big.Int
	Secret    string
	Slippage  float64
	Deadline  time.Duration
}

type TransferRequest struct {
	Chain  string
	From   string
	To     string
	Asset  *Asset
	Amount *big.Int
	Secret string
}

type SubmitResult struct {
	TxHash    string    `json:"tx_hash"`
	AmountOut *big.Int  `json:"amount_out,omitempty"`
	FeePaid   *big.Int  `json:"fee_paid"`
	Timestamp time.Time `json:"timestamp"`
}

type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

type TransactionStatus struct {
	Chain         string   `json:"chain"`
	TxHash        string   `json:"tx_hash"`
	Status        TxStatus `json:"status"`
	BlockNumber   *uint64  `json:"block_number,omitempty"`
	GasUsed       uint64   `json:"gas_used,omitempty"`
	Confirmations uint64   `json:"confirmations"`
}
