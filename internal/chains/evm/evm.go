// internal/chains/evm/evm.go
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// RPC is the subset of ethclient.Client the chain client needs.
type RPC interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type Config struct {
	RPCURL        string
	ChainID       *big.Int
	GasLimitETH   uint64
	GasLimitERC20 uint64
	MaxGasPrice   *big.Int
	Confirmations uint64
}

func DefaultConfig(rpcURL string, chainID int64) *Config {
	return &Config{
		RPCURL:        rpcURL,
		ChainID:       big.NewInt(chainID),
		GasLimitETH:   21000,             // Standard ETH transfer
		GasLimitERC20: 65000,             // ERC-20 transfer
		MaxGasPrice:   big.NewInt(100e9), // 100 Gwei
		Confirmations: 12,
	}
}

// Client talks to one EVM network.
type Client struct {
	chain  domain.ChainInfo
	rpc    RPC
	logger *zap.Logger
	config *Config
}

// Dial connects lazily; no RPC call is made until first use.
func Dial(ctx context.Context, chain domain.ChainInfo, config *Config, logger *zap.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, config.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", chain.Name, err)
	}

	logger.Info("EVM chain initialized",
		zap.String("chain", chain.Name),
		zap.String("chain_id", config.ChainID.String()))

	return NewClient(chain, rpc, config, logger), nil
}

func NewClient(chain domain.ChainInfo, rpc RPC, config *Config, logger *zap.Logger) *Client {
	return &Client{
		chain:  chain,
		rpc:    rpc,
		logger: logger.With(zap.String("chain", chain.Name)),
		config: config,
	}
}

// Name returns chain name
func (c *Client) Name() string {
	return c.chain.Name
}

// NativeBalance returns the native balance in wei.
func (c *Client) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	balance, err := c.rpc.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, upstream("evm.NativeBalance", fmt.Errorf("failed to get %s balance: %w", c.chain.NativeSymbol, err))
	}
	return balance, nil
}

// GasPrice returns the suggested gas price, capped at MaxGasPrice.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, upstream("evm.GasPrice", fmt.Errorf("failed to get gas price: %w", err))
	}
	return c.capGasPrice(gasPrice), nil
}

func (c *Client) capGasPrice(gasPrice *big.Int) *big.Int {
	if gasPrice.Cmp(c.config.MaxGasPrice) > 0 {
		return new(big.Int).Set(c.config.MaxGasPrice)
	}
	return gasPrice
}

// EstimateTransferFee estimates the fee for a native or ERC-20 transfer.
// The fee is always paid in the native asset.
func (c *Client) EstimateTransferFee(ctx context.Context, asset *domain.Asset) (*domain.Fee, error) {
	gasPrice, err := c.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	gasLimit := c.config.GasLimitETH
	if !asset.IsNative() {
		gasLimit = c.config.GasLimitERC20
	}

	return &domain.Fee{
		Amount:   new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit)),
		Currency: c.chain.NativeSymbol,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
	}, nil
}

// TransactionStatus reports the receipt state of a submitted transaction.
func (c *Client) TransactionStatus(ctx context.Context, txHash string) (*domain.TransactionStatus, error) {
	status := &domain.TransactionStatus{
		Chain:  c.chain.Name,
		TxHash: txHash,
		Status: domain.TxStatusPending,
	}

	receipt, err := c.rpc.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return status, nil
	}
	if err != nil {
		return nil, upstream("evm.TransactionStatus", fmt.Errorf("failed to get receipt: %w", err))
	}

	blockNum := receipt.BlockNumber.Uint64()
	status.BlockNumber = &blockNum
	status.GasUsed = receipt.GasUsed

	if current, err := c.rpc.BlockNumber(ctx); err == nil && current >= blockNum {
		status.Confirmations = current - blockNum
	}

	switch {
	case receipt.Status != types.ReceiptStatusSuccessful:
		status.Status = domain.TxStatusFailed
	case status.Confirmations >= c.config.Confirmations:
		status.Status = domain.TxStatusConfirmed
	}

	return status, nil
}

func upstream(op string, err error) error {
	return apperr.Wrap(apperr.CodeUpstreamUnavailable, op, err)
}
