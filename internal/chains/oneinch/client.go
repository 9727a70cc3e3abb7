// internal/chains/oneinch/client.go
package oneinch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"custody-service/pkg/apperr"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.1inch.dev/swap/v6.0"

	// NativeToken is the aggregator's placeholder for the chain's native asset.
	NativeToken = "0xEeeeeEeeeEeEeEeEeEeeEEEeeeeEeeeeeeeEEeE"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// Quote is an indicative route; nothing is reserved.
type Quote struct {
	Src       string
	Dst       string
	AmountIn  *big.Int
	AmountOut *big.Int
	Gas       uint64
	Protocols []string
}

// SwapTx is the unsigned call the aggregator wants the wallet to send.
type SwapTx struct {
	To       string
	Data     []byte
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
}

type Swap struct {
	Quote
	Tx SwapTx
}

type SwapParams struct {
	ChainID  int64
	Src      string
	Dst      string
	Amount   *big.Int
	From     string
	Slippage float64 // fraction, 0.05 = 5%
}

type quoteResponse struct {
	DstAmount     string          `json:"dstAmount"`
	ToTokenAmount string          `json:"toTokenAmount"`
	Gas           json.Number     `json:"gas"`
	Protocols     json.RawMessage `json:"protocols"`
	Tx            *txResponse     `json:"tx"`
}

type txResponse struct {
	To       string      `json:"to"`
	Data     string      `json:"data"`
	Value    string      `json:"value"`
	Gas      json.Number `json:"gas"`
	GasPrice string      `json:"gasPrice"`
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

func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// Quote prices amount of src in dst without building a transaction.
func (c *Client) Quote(ctx context.Context, chainID int64, src, dst string, amount *big.Int) (*Quote, error) {
	const op = "oneinch.Quote"

	params := url.Values{}
	params.Set("src", src)
	params.Set("dst", dst)
	params.Set("amount", amount.String())
	params.Set("includeGas", "true")
	params.Set("includeProtocols", "true")

	var resp quoteResponse
	if err := c.get(ctx, op, chainID, "quote", params, &resp); err != nil {
		return nil, err
	}
	return decodeQuote(op, src, dst, amount, &resp)
}

// BuildSwap asks the aggregator for a ready-to-sign swap call.
func (c *Client) BuildSwap(ctx context.Context, p SwapParams) (*Swap, error) {
	const op = "oneinch.BuildSwap"

	params := url.Values{}
	params.Set("src", p.Src)
	params.Set("dst", p.Dst)
	params.Set("amount", p.Amount.String())
	params.Set("from", p.From)
	params.Set("slippage", strconv.FormatFloat(p.Slippage*100, 'f', -1, 64))
	params.Set("includeGas", "true")

	var resp quoteResponse
	if err := c.get(ctx, op, p.ChainID, "swap", params, &resp); err != nil {
		return nil, err
	}

	quote, err := decodeQuote(op, p.Src, p.Dst, p.Amount, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Tx == nil || resp.Tx.To == "" {
		return nil, apperr.New(apperr.CodeSchemaMismatch, op, "swap response has no transaction")
	}

	data, err := hexutil.Decode(resp.Tx.Data)
	if err != nil {
		return nil, apperr.Newf(apperr.CodeSchemaMismatch, op, "swap calldata is not hex: %v", err)
	}
	value, err := parseAmount(resp.Tx.Value, true)
	if err != nil {
		return nil, apperr.Newf(apperr.CodeSchemaMismatch, op, "swap value: %v", err)
	}
	gasPrice, err := parseAmount(resp.Tx.GasPrice, true)
	if err != nil {
		return nil, apperr.Newf(apperr.CodeSchemaMismatch, op, "swap gas price: %v", err)
	}
	gas, _ := strconv.ParseUint(resp.Tx.Gas.String(), 10, 64)

	return &Swap{
		Quote: *quote,
		Tx: SwapTx{
			To:       resp.Tx.To,
			Data:     data,
			Value:    value,
			Gas:      gas,
			GasPrice: gasPrice,
		},
	}, nil
}

func decodeQuote(op, src, dst string, amount *big.Int, resp *quoteResponse) (*Quote, error) {
	raw := resp.DstAmount
	if raw == "" {
		raw = resp.ToTokenAmount // v5 field name
	}
	out, err := parseAmount(raw, false)
	if err != nil {
		return nil, apperr.Newf(apperr.CodeSchemaMismatch, op, "quote output amount: %v", err)
	}

	gas, _ := strconv.ParseUint(resp.Gas.String(), 10, 64)
	return &Quote{
		Src:       src,
		Dst:       dst,
		AmountIn:  new(big.Int).Set(amount),
		AmountOut: out,
		Gas:       gas,
		Protocols: protocolNames(resp.Protocols),
	}, nil
}

func parseAmount(s string, allowEmpty bool) (*big.Int, error) {
	if s == "" {
		if allowEmpty {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("missing")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%q is not a non-negative integer", s)
	}
	return v, nil
}

// protocolNames flattens the nested route description into unique names.
func protocolNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	var walk func(node interface{})
	walk = func(node interface{}) {
		switch v := node.(type) {
		case []interface{}:
			for _, child := range v {
				walk(child)
			}
		case map[string]interface{}:
			if name, ok := v["name"].(string); ok && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	walk(tree)
	return names
}

func (c *Client) get(ctx context.Context, op string, chainID int64, path string, params url.Values, out interface{}) error {
	if c.apiKey == "" {
		return apperr.New(apperr.CodeUpstreamUnavailable, op, "aggregator credentials not configured")
	}

	endpoint := fmt.Sprintf("%s/%d/%s?%s", c.baseURL, chainID, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeUpstreamUnavailable, op, fmt.Errorf("1inch %s: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("1inch request failed",
			zap.Int64("chain_id", chainID),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(snippet)))
		return apperr.Newf(apperr.CodeUpstreamUnavailable, op, "1inch %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Newf(apperr.CodeSchemaMismatch, op, "1inch %s: malformed response: %v", path, err)
	}
	return nil
}
