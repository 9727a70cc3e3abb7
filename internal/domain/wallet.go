// internal/domain/wallet.go
package domain

import (
	"math/big"
	"time"
)

// WalletRecord is the persisted custodial wallet. EncryptedSecret is never
// serialized out of the service.
type WalletRecord struct {
	ID              int64     `json:"id"`
	AccountID       int64     `json:"account_id"`
	Label           string    `json:"label"`
	Address         string    `json:"address"`
	EncryptedSecret string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreatedWallet is returned once by create; the caller displays and discards Secret.
type CreatedWallet struct {
	Wallet *WalletRecord `json:"wallet"`
	Secret string        `json:"secret"`
}

// KeyPair is a freshly generated or imported secp256k1 key.
type KeyPair struct {
	Address   string
	Secret    string
	PublicKey string
}

type Portfolio struct {
	AccountID int64           `json:"account_id"`
	Address   string          `json:"address"`
	Chains    []ChainBalances `json:"chains"`
}

type ChainBalances struct {
	Chain    string         `json:"chain"`
	Balances []AssetBalance `json:"balances"`
	Error    string         `json:"error,omitempty"`
}

type AssetBalance struct {
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	Contract  string   `json:"contract"`
	Decimals  int32    `json:"decimals"`
	Amount    *big.Int `json:"amount"`
	Formatted string   `json:"formatted"`
}
