// internal/chains/evm/erc20.go
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"custody-service/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ERC-20 ABI for the calls the custody flow needs
const erc20ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "_to", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "symbol",
		"outputs": [{"name": "", "type": "string"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "name",
		"outputs": [{"name": "", "type": "string"}],
		"type": "function"
	}
]`

var parsedERC20 abi.ABI

func init() {
	var err error
	parsedERC20, err = abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic(fmt.Sprintf("erc20 abi: %v", err))
	}
}

func (c *Client) callERC20(ctx context.Context, contract, method string, args ...interface{}) ([]byte, error) {
	data, err := parsedERC20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	contractAddr := common.HexToAddress(contract)
	result, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &contractAddr, Data: data}, nil)
	if err != nil {
		return nil, upstream("evm.callERC20", fmt.Errorf("failed to call %s on %s: %w", method, contract, err))
	}
	return result, nil
}

// TokenBalance gets ERC-20 token balance
func (c *Client) TokenBalance(ctx context.Context, address, contract string) (*big.Int, error) {
	result, err := c.callERC20(ctx, contract, "balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, err
	}

	// Address never interacted with the token
	if len(result) == 0 {
		return big.NewInt(0), nil
	}

	var balance *big.Int
	if err := parsedERC20.UnpackIntoInterface(&balance, "balanceOf", result); err != nil {
		return nil, fmt.Errorf("failed to unpack balance: %w", err)
	}
	if balance == nil {
		balance = big.NewInt(0)
	}

	c.logger.Debug("ERC-20 balance retrieved",
		zap.String("address", address),
		zap.String("contract", contract),
		zap.String("balance", balance.String()))

	return balance, nil
}

// TokenMetadata reads decimals, symbol and name from the contract itself.
func (c *Client) TokenMetadata(ctx context.Context, contract string) (*domain.TokenMetadata, error) {
	meta := &domain.TokenMetadata{Contract: common.HexToAddress(contract).Hex()}

	raw, err := c.callERC20(ctx, contract, "decimals")
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("contract %s does not implement decimals()", contract)
	}
	var decimals uint8
	if err := parsedERC20.UnpackIntoInterface(&decimals, "decimals", raw); err != nil {
		return nil, fmt.Errorf("failed to unpack decimals: %w", err)
	}
	meta.Decimals = int32(decimals)

	// symbol and name are optional in ERC-20
	if raw, err := c.callERC20(ctx, contract, "symbol"); err == nil && len(raw) > 0 {
		_ = parsedERC20.UnpackIntoInterface(&meta.Symbol, "symbol", raw)
	}
	if raw, err := c.callERC20(ctx, contract, "name"); err == nil && len(raw) > 0 {
		_ = parsedERC20.UnpackIntoInterface(&meta.Name, "name", raw)
	}

	return meta, nil
}

func packTransfer(to string, amount *big.Int) ([]byte, error) {
	data, err := parsedERC20.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer: %w", err)
	}
	return data, nil
}
