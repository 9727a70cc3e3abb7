// internal/handler/dto.go
package handler

import (
	"math/big"
	"time"

	"custody-service/internal/domain"
	"custody-service/internal/quote"
	"custody-service/pkg/utils"
)

// amounts are returned as base-unit strings plus a formatted decimal

type amountResponse struct {
	Units     string `json:"units"`
	Formatted string `json:"formatted"`
}

func amount(v *big.Int, decimals int32) *amountResponse {
	if v == nil {
		return nil
	}
	return &amountResponse{Units: v.String(), Formatted: utils.FormatUnits(v, decimals)}
}

type walletResponse struct {
	Address   string    `json:"address"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

type createdWalletResponse struct {
	Wallet  walletResponse `json:"wallet"`
	Secret  string         `json:"secret"`
	Warning string         `json:"warning"`
}

func walletToResponse(w *domain.WalletRecord) walletResponse {
	return walletResponse{Address: w.Address, Label: w.Label, CreatedAt: w.CreatedAt}
}

type estimateResponse struct {
	AmountIn      *amountResponse `json:"amount_in"`
	EstimatedOut  *amountResponse `json:"estimated_out,omitempty"`
	Fee           *amountResponse `json:"fee"`
	TotalCost     *amountResponse `json:"total_cost"`
	NativeBalance *amountResponse `json:"native_balance"`
	TokenBalance  *amountResponse `json:"token_balance,omitempty"`
	Sufficient    bool            `json:"sufficient"`
	PriceSource   string          `json:"price_source,omitempty"`
}

type resultResponse struct {
	TxHash    string          `json:"tx_hash"`
	AmountOut *amountResponse `json:"amount_out,omitempty"`
	FeePaid   *amountResponse `json:"fee_paid,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type intentResponse struct {
	ID             string           `json:"id"`
	Kind           string           `json:"kind"`
	Status         string           `json:"status"`
	Chain          string           `json:"chain"`
	From           string           `json:"from"`
	Counterparty   string           `json:"counterparty"`
	Token          string           `json:"token"`
	TokenContract  string           `json:"token_contract,omitempty"`
	Amount         *amountResponse  `json:"amount"`
	Estimate       estimateResponse `json:"estimate"`
	QuotedAt       time.Time        `json:"quoted_at"`
	ExpiresAt      time.Time        `json:"expires_at"`
	Result         *resultResponse  `json:"result,omitempty"`
	FailureCode    string           `json:"failure_code,omitempty"`
	FailureMessage string           `json:"failure_message,omitempty"`
}

type quotedIntentResponse struct {
	Intent      intentResponse `json:"intent"`
	IntentToken string         `json:"intent_token"`
}

func intentToResponse(i *domain.Intent) intentResponse {
	// buys spend native and receive the token; sends move the token itself
	inDecimals, outDecimals := i.TokenDecimals, i.TokenDecimals
	if i.Kind == domain.IntentKindBuy {
		inDecimals = quote.NativeDecimals
	}
	e := i.Estimate

	resp := intentResponse{
		ID:            i.ID,
		Kind:          string(i.Kind),
		Status:        string(i.Status),
		Chain:         i.Chain,
		From:          i.FromAddress,
		Counterparty:  i.Counterparty,
		Token:         i.TokenSymbol,
		TokenContract: i.TokenContract,
		Amount:        amount(i.Amount, inDecimals),
		Estimate: estimateResponse{
			AmountIn:      amount(e.AmountIn, inDecimals),
			EstimatedOut:  amount(e.EstimatedOut, outDecimals),
			Fee:           amount(e.Fee, quote.NativeDecimals),
			TotalCost:     amount(e.TotalCost, quote.NativeDecimals),
			NativeBalance: amount(e.NativeBalance, quote.NativeDecimals),
			TokenBalance:  amount(e.TokenBalance, i.TokenDecimals),
			Sufficient:    e.Sufficient,
			PriceSource:   string(e.PriceSource),
		},
		QuotedAt:       i.QuotedAt,
		ExpiresAt:      i.ExpiresAt,
		FailureCode:    i.FailureCode,
		FailureMessage: i.FailureMessage,
	}
	if i.Result != nil {
		resp.Result = &resultResponse{
			TxHash:    i.Result.TxHash,
			AmountOut: amount(i.Result.AmountOut, outDecimals),
			FeePaid:   amount(i.Result.FeePaid, quote.NativeDecimals),
			Timestamp: i.Result.Timestamp,
		}
	}
	return resp
}

type assetBalanceResponse struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Contract string `json:"contract,omitempty"`
	Units    string `json:"units"`
	Balance  string `json:"balance"`
}

type chainBalancesResponse struct {
	Chain    string                 `json:"chain"`
	Balances []assetBalanceResponse `json:"balances"`
	Error    string                 `json:"error,omitempty"`
}

type portfolioResponse struct {
	Address string                  `json:"address"`
	Chains  []chainBalancesResponse `json:"chains"`
}

func portfolioToResponse(p *domain.Portfolio) portfolioResponse {
	resp := portfolioResponse{Address: p.Address, Chains: make([]chainBalancesResponse, 0, len(p.Chains))}
	for _, c := range p.Chains {
		chain := chainBalancesResponse{Chain: c.Chain, Error: c.Error, Balances: []assetBalanceResponse{}}
		for _, b := range c.Balances {
			chain.Balances = append(chain.Balances, assetBalanceResponse{
				Symbol:   b.Symbol,
				Name:     b.Name,
				Contract: b.Contract,
				Units:    utils.BigOrZero(b.Amount).String(),
				Balance:  b.Formatted,
			})
		}
		resp.Chains = append(resp.Chains, chain)
	}
	return resp
}
