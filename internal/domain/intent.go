// internal/domain/intent.go
package domain

import (
	"math/big"
	"time"
)

type IntentKind string

const (
	IntentKindBuy  IntentKind = "buy"
	IntentKindSend IntentKind = "send"
)

type IntentStatus string

const (
	IntentStatusQuoted    IntentStatus = "quoted"
	IntentStatusExecuting IntentStatus = "executing"
	IntentStatusExecuted  IntentStatus = "executed"
	IntentStatusFailed    IntentStatus = "failed"
	IntentStatusCancelled IntentStatus = "cancelled"
	IntentStatusExpired   IntentStatus = "expired"
)

// CanTransition encodes the intent state machine.
func CanTransition(from, to IntentStatus) bool {
	switch from {
	case IntentStatusQuoted:
		return to == IntentStatusExecuting || to == IntentStatusCancelled || to == IntentStatusExpired
	case IntentStatusExecuting:
		return to == IntentStatusExecuted || to == IntentStatusFailed
	}
	return false
}

type PriceSource string

const (
	PriceSourceRoute     PriceSource = "route"
	PriceSourceUnitPrice PriceSource = "unit_price"
	PriceSourceNone      PriceSource = "none"
)

// Estimate is the priced snapshot taken at quote time. All amounts are base units.
type Estimate struct {
	AmountIn      *big.Int    `json:"amount_in"`
	EstimatedOut  *big.Int    `json:"estimated_out,omitempty"`
	Fee           *big.Int    `json:"fee"`
	TotalCost     *big.Int    `json:"total_cost"`
	NativeBalance *big.Int    `json:"native_balance"`
	TokenBalance  *big.Int    `json:"token_balance,omitempty"`
	Sufficient    bool        `json:"sufficient"`
	PriceSource   PriceSource `json:"price_source,omitempty"`
	QuotedAt      time.Time   `json:"quoted_at"`
}

// Intent is a quoted value-moving operation bound to one confirm/cancel outcome.
type Intent struct {
	ID            string       `json:"id"`
	AccountID     int64        `json:"account_id"`
	Kind          IntentKind   `json:"kind"`
	Status        IntentStatus `json:"status"`
	Chain         string       `json:"chain"`
	FromAddress   string       `json:"from_address"`
	Counterparty  string       `json:"counterparty"`
	TokenSymbol   string       `json:"token_symbol"`
	TokenContract string       `json:"token_contract,omitempty"`
	TokenDecimals int32        `json:"token_decimals"`
	Amount        *big.Int     `json:"amount"`
	Estimate      Estimate     `json:"estimate"`

	QuotedAt  time.Time `json:"quoted_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Result         *SubmitResult `json:"result,omitempty"`
	FailureCode    string        `json:"failure_code,omitempty"`
	FailureMessage string        `json:"failure_message,omitempty"`
}

// IsExpired applies the TTL lazily; only Quoted intents can expire.
func (i *Intent) IsExpired(now time.Time) bool {
	return i.Status == IntentStatusQuoted && !now.Before(i.ExpiresAt)
}

// QuotedIntent is what quote hands back to the front end.
type QuotedIntent struct {
	Intent *Intent `json:"intent"`
	Token  string  `json:"token"`
}

// IntentEvent is published when an intent leaves the Quoted state.
type IntentEvent struct {
	EventID   string       `json:"event_id"`
	IntentID  string       `json:"intent_id"`
	AccountID int64        `json:"account_id"`
	Kind      IntentKind   `json:"kind"`
	Chain     string       `json:"chain"`
	Status    IntentStatus `json:"status"`
	TxHash    string       `json:"tx_hash,omitempty"`
	Failure   string       `json:"failure,omitempty"`
	At        time.Time    `json:"at"`
}
