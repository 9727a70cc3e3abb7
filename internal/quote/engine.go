// internal/quote/engine.go
package quote

import (
	"math/big"
	"time"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"

	"github.com/shopspring/decimal"
)

const (
	NativeDecimals int32 = 18

	// DefaultSwapGasLimit is used when the route does not report gas.
	DefaultSwapGasLimit uint64 = 250000
)

// SampleAmount is the native amount (0.001) used to discover a unit price.
var SampleAmount = big.NewInt(1e15)

type BuyInput struct {
	AmountIn      *big.Int // native base units
	NativeBalance *big.Int
	RouteOut      *big.Int         // token base units; nil when no route answered
	UnitPrice     *decimal.Decimal // native per whole token; nil when unknown
	TokenDecimals int32
	GasFee        *big.Int
	Now           time.Time
}

type SendInput struct {
	Amount        *big.Int
	Native        bool
	NativeBalance *big.Int
	TokenBalance  *big.Int
	Fee           *big.Int
	Now           time.Time
}

// EstimateBuy prices a native-for-token swap. The route output wins; a unit
// price is the fallback. With neither there is no estimate.
func EstimateBuy(in BuyInput) (domain.Estimate, error) {
	const op = "quote.EstimateBuy"

	estimate := domain.Estimate{
		AmountIn:      copyInt(in.AmountIn),
		Fee:           copyInt(in.GasFee),
		NativeBalance: copyInt(in.NativeBalance),
		QuotedAt:      in.Now,
		PriceSource:   domain.PriceSourceNone,
	}

	switch {
	case in.RouteOut != nil && in.RouteOut.Sign() > 0:
		estimate.EstimatedOut = copyInt(in.RouteOut)
		estimate.PriceSource = domain.PriceSourceRoute
	case in.UnitPrice != nil && in.UnitPrice.IsPositive():
		estimate.EstimatedOut = TokensForNative(estimate.AmountIn, *in.UnitPrice, in.TokenDecimals)
		estimate.PriceSource = domain.PriceSourceUnitPrice
	default:
		return domain.Estimate{}, apperr.New(apperr.CodeUpstreamUnavailable, op, "no price available for token")
	}

	estimate.TotalCost = new(big.Int).Add(estimate.AmountIn, estimate.Fee)
	estimate.Sufficient = estimate.NativeBalance.Cmp(estimate.TotalCost) >= 0
	return estimate, nil
}

// EstimateSend prices a transfer. Fees are always paid in the native asset,
// so a token send needs both the token amount and the native fee covered.
func EstimateSend(in SendInput) domain.Estimate {
	estimate := domain.Estimate{
		AmountIn:      copyInt(in.Amount),
		Fee:           copyInt(in.Fee),
		NativeBalance: copyInt(in.NativeBalance),
		QuotedAt:      in.Now,
	}

	if in.Native {
		estimate.TotalCost = new(big.Int).Add(estimate.AmountIn, estimate.Fee)
		estimate.Sufficient = estimate.NativeBalance.Cmp(estimate.TotalCost) >= 0
		return estimate
	}

	estimate.TokenBalance = copyInt(in.TokenBalance)
	estimate.TotalCost = copyInt(estimate.Fee)
	estimate.Sufficient = estimate.NativeBalance.Cmp(estimate.TotalCost) >= 0 &&
		estimate.TokenBalance.Cmp(estimate.AmountIn) >= 0
	return estimate
}

// TokensForNative converts a native amount to token base units at a unit
// price expressed in native per whole token. The result is truncated.
func TokensForNative(amountIn *big.Int, unitPrice decimal.Decimal, tokenDecimals int32) *big.Int {
	native := decimal.NewFromBigInt(amountIn, -NativeDecimals)
	tokens := native.DivRound(unitPrice, tokenDecimals+NativeDecimals)
	return tokens.Shift(tokenDecimals).Truncate(0).BigInt()
}

// UnitPriceFromSample derives native per whole token from a sample quote.
func UnitPriceFromSample(sampleIn, sampleOut *big.Int, tokenDecimals int32) (decimal.Decimal, bool) {
	if sampleIn == nil || sampleOut == nil || sampleIn.Sign() <= 0 || sampleOut.Sign() <= 0 {
		return decimal.Zero, false
	}
	native := decimal.NewFromBigInt(sampleIn, -NativeDecimals)
	tokens := decimal.NewFromBigInt(sampleOut, -tokenDecimals)
	return native.DivRound(tokens, NativeDecimals+tokenDecimals), true
}

// SwapGasFee is gasPrice * gas, using the default limit when gas is unknown.
func SwapGasFee(gasPrice *big.Int, gas uint64) *big.Int {
	if gas == 0 {
		gas = DefaultSwapGasLimit
	}
	return new(big.Int).Mul(copyInt(gasPrice), new(big.Int).SetUint64(gas))
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
