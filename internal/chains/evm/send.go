// internal/chains/evm/send.go
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// RawTx is a pre-built call, e.g. from a swap aggregator.
type RawTx struct {
	To       string
	Data     []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

// SendNative transfers the native asset.
func (c *Client) SendNative(ctx context.Context, from, to string, amount *big.Int, secret string) (*domain.SubmitResult, error) {
	c.logger.Info("Sending native asset",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("amount", amount.String()))

	return c.submit(ctx, from, secret, &RawTx{
		To:    to,
		Value: amount,
		Gas:   c.config.GasLimitETH,
	})
}

// SendERC20 transfers an ERC-20 token; gas is paid in the native asset.
func (c *Client) SendERC20(ctx context.Context, from, to, contract string, amount *big.Int, secret string) (*domain.SubmitResult, error) {
	c.logger.Info("Sending ERC-20 token",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("contract", contract),
		zap.String("amount", amount.String()))

	data, err := packTransfer(to, amount)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeExecutionFailed, "evm.SendERC20", err)
	}

	return c.submit(ctx, from, secret, &RawTx{
		To:    contract,
		Data:  data,
		Value: big.NewInt(0), // Value is 0 for ERC-20 transfer
		Gas:   c.config.GasLimitERC20,
	})
}

// SendRaw signs and submits a pre-built call. Missing gas fields are filled in.
func (c *Client) SendRaw(ctx context.Context, from, secret string, raw *RawTx) (*domain.SubmitResult, error) {
	c.logger.Info("Sending prepared transaction",
		zap.String("from", from),
		zap.String("to", raw.To),
		zap.Int("data_len", len(raw.Data)))

	return c.submit(ctx, from, secret, raw)
}

func (c *Client) submit(ctx context.Context, from, secret string, raw *RawTx) (*domain.SubmitResult, error) {
	const op = "evm.submit"

	privateKey, err := signerKey(secret, from)
	if err != nil {
		return nil, err
	}

	fromAddr := common.HexToAddress(from)
	toAddr := common.HexToAddress(raw.To)
	value := raw.Value
	if value == nil {
		value = big.NewInt(0)
	}

	// Everything before SendTransaction is safe to retry: nothing is on the wire yet.
	nonce, err := c.rpc.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return nil, upstream(op, fmt.Errorf("failed to get nonce: %w", err))
	}

	gasPrice := raw.GasPrice
	if gasPrice == nil || gasPrice.Sign() == 0 {
		if gasPrice, err = c.GasPrice(ctx); err != nil {
			return nil, err
		}
	} else {
		gasPrice = c.capGasPrice(gasPrice)
	}

	gasLimit := raw.Gas
	if gasLimit == 0 {
		gasLimit, err = c.rpc.EstimateGas(ctx, ethereum.CallMsg{From: fromAddr, To: &toAddr, Value: value, Data: raw.Data})
		if err != nil {
			return nil, classifySubmitError(op, fmt.Errorf("failed to estimate gas: %w", err))
		}
	}

	tx := types.NewTransaction(nonce, toAddr, value, gasLimit, gasPrice, raw.Data)

	signedTx, err := signTransaction(tx, privateKey, c.config.ChainID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeExecutionFailed, op, err)
	}

	if err := c.rpc.SendTransaction(ctx, signedTx); err != nil {
		return nil, classifySubmitError(op, fmt.Errorf("failed to send transaction: %w", err))
	}

	txHash := signedTx.Hash().Hex()
	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))

	c.logger.Info("Transaction sent",
		zap.String("tx_hash", txHash),
		zap.Uint64("nonce", nonce),
		zap.String("fee", fee.String()))

	return &domain.SubmitResult{
		TxHash:    txHash,
		FeePaid:   fee,
		Timestamp: time.Now(),
	}, nil
}

// classifySubmitError separates node-side balance rejection from other failures.
// Once SendTransaction has been called the outcome is ambiguous, so anything
// that is not a definite rejection is reported as an execution failure.
func classifySubmitError(op string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
		return apperr.Wrap(apperr.CodeInsufficientBalance, op, err)
	}
	return apperr.Wrap(apperr.CodeExecutionFailed, op, err)
}
