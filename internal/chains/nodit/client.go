// internal/chains/nodit/client.go
package nodit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://web3.nodit.io/v1"
	network        = "mainnet"
	maxBodyBytes   = 4 << 20
)

// Client is the Nodit Web3 data API client used as the balance provider.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// NativeBalance returns the account's native balance in wei.
func (c *Client) NativeBalance(ctx context.Context, chain, address string) (*big.Int, error) {
	const op = "nodit.NativeBalance"

	status, body, err := c.post(ctx, op, chain, "account/getAccountBalance", map[string]interface{}{
		"accountAddress": address,
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return big.NewInt(0), nil
	}

	obj, err := negotiateObject(op, body, "balance")
	if err != nil {
		return nil, err
	}
	return parseQuantity(op, obj["balance"])
}

// TokenBalance returns the holding of one ERC-20 contract in base units.
func (c *Client) TokenBalance(ctx context.Context, chain, address, contract string) (*big.Int, error) {
	const op = "nodit.TokenBalance"

	status, body, err := c.post(ctx, op, chain, "token/getTokenBalanceByContract", map[string]interface{}{
		"contractAddress": contract,
		"accountAddress":  address,
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return big.NewInt(0), nil
	}

	obj, err := negotiateObject(op, body, "balance")
	if err != nil {
		return nil, err
	}
	return parseQuantity(op, obj["balance"])
}

// TokensOwned lists every ERC-20 the account holds on the chain.
func (c *Client) TokensOwned(ctx context.Context, chain, address string) ([]domain.TokenHolding, error) {
	const op = "nodit.TokensOwned"

	status, body, err := c.post(ctx, op, chain, "token/getTokensOwnedByAccount", map[string]interface{}{
		"accountAddress": address,
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	items, err := negotiateList(op, body)
	if err != nil {
		return nil, err
	}

	holdings := make([]domain.TokenHolding, 0, len(items))
	for i, raw := range items {
		var entry tokenEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, mismatch(op, "item %d: %v", i, err)
		}
		fields := entry.fields()
		if !common.IsHexAddress(fields.Address) {
			return nil, mismatch(op, "item %d: contract address %q is invalid", i, fields.Address)
		}
		decimals, err := parseDecimals(op, fields.Decimals)
		if err != nil {
			return nil, err
		}
		balance, err := parseQuantity(op, entry.Balance)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, domain.TokenHolding{
			Contract: common.HexToAddress(fields.Address).Hex(),
			Symbol:   fields.Symbol,
			Name:     fields.Name,
			Decimals: decimals,
			Balance:  balance,
		})
	}

	c.logger.Debug("Tokens owned retrieved",
		zap.String("chain", chain),
		zap.String("address", address),
		zap.Int("count", len(holdings)))

	return holdings, nil
}

// TokenMetadata looks up decimals, symbol and name for a contract.
func (c *Client) TokenMetadata(ctx context.Context, chain, contract string) (*domain.TokenMetadata, error) {
	const op = "nodit.TokenMetadata"

	status, body, err := c.post(ctx, op, chain, "token/getTokenContractMetadataByContracts", map[string]interface{}{
		"contractAddresses": []string{contract},
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, apperr.Newf(apperr.CodeNotFound, op, "no metadata for contract %s on %s", contract, chain)
	}

	var raw json.RawMessage
	if items, err := negotiateList(op, body); err == nil {
		if len(items) == 0 {
			return nil, apperr.Newf(apperr.CodeNotFound, op, "no metadata for contract %s on %s", contract, chain)
		}
		raw = items[0]
	} else {
		// single object form
		obj, objErr := negotiateObject(op, body, "decimals")
		if objErr != nil {
			return nil, objErr
		}
		if raw, err = json.Marshal(obj); err != nil {
			return nil, mismatch(op, "%v", err)
		}
	}

	var entry tokenEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, mismatch(op, "metadata: %v", err)
	}
	fields := entry.fields()
	decimals, err := parseDecimals(op, fields.Decimals)
	if err != nil {
		return nil, err
	}

	address := fields.Address
	if !common.IsHexAddress(address) {
		address = contract
	}
	return &domain.TokenMetadata{
		Contract: common.HexToAddress(address).Hex(),
		Name:     fields.Name,
		Symbol:   fields.Symbol,
		Decimals: decimals,
	}, nil
}

// post returns the status and body for 2xx and 404; every other outcome is an
// upstream error.
func (c *Client) post(ctx context.Context, op, chain, path string, payload interface{}) (int, []byte, error) {
	if !c.Enabled() {
		return 0, nil, apperr.New(apperr.CodeUpstreamUnavailable, op, "balance provider credentials not configured")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, chain, network, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, op, fmt.Errorf("nodit %s: %w", path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.CodeUpstreamUnavailable, op, fmt.Errorf("nodit %s: read body: %w", path, err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Warn("Nodit request failed",
			zap.String("chain", chain),
			zap.String("operation", path),
			zap.Int("status", resp.StatusCode))
		return 0, nil, apperr.Newf(apperr.CodeUpstreamUnavailable, op, "nodit %s returned status %d", path, resp.StatusCode)
	}
	return resp.StatusCode, body, nil
}
