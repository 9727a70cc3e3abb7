// internal/chains/evm/signer.go
package evm

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"custody-service/pkg/apperr"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// signerKey parses the secret and checks it controls the expected sender.
func signerKey(secret, from string) (*ecdsa.PrivateKey, error) {
	const op = "evm.signerKey"

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(secret), "0x"))
	if err != nil {
		return nil, apperr.New(apperr.CodeIntegrity, op, "stored secret is not a valid private key")
	}

	derived := crypto.PubkeyToAddress(privateKey.PublicKey)
	if !strings.EqualFold(derived.Hex(), from) {
		return nil, apperr.New(apperr.CodeIntegrity, op, "stored secret does not control the wallet address")
	}
	return privateKey, nil
}

// signTransaction signs an EVM transaction with EIP-155 replay protection
func signTransaction(tx *types.Transaction, privateKey *ecdsa.PrivateKey, chainID *big.Int) (*types.Transaction, error) {
	signer := types.NewEIP155Signer(chainID)
	signedTx, err := types.SignTx(tx, signer, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signedTx, nil
}
