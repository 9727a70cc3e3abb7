// internal/chains/evm/wallet.go
package evm

import (
	"crypto/ecdsa"
	"fmt"
	"regexp"
	"strings"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	secretPattern  = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
)

// GenerateKey creates a fresh secp256k1 keypair.
func GenerateKey() (*domain.KeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return keyPairFrom(privateKey)
}

// KeyFromSecret validates a hex private key and derives its address.
func KeyFromSecret(secret string) (*domain.KeyPair, error) {
	const op = "evm.KeyFromSecret"

	secret = strings.TrimSpace(secret)
	if !secretPattern.MatchString(secret) {
		return nil, apperr.New(apperr.CodeInvalidSecret, op, "private key must be 64 hex characters, optionally 0x-prefixed")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(secret, "0x"))
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidSecret, op, "private key is not a valid secp256k1 key")
	}
	return keyPairFrom(privateKey)
}

func keyPairFrom(privateKey *ecdsa.PrivateKey) (*domain.KeyPair, error) {
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to cast public key")
	}

	return &domain.KeyPair{
		Address:   crypto.PubkeyToAddress(*publicKeyECDSA).Hex(),
		Secret:    hexutil.Encode(crypto.FromECDSA(privateKey)),
		PublicKey: hexutil.Encode(crypto.FromECDSAPub(publicKeyECDSA)),
	}, nil
}

// ValidateAddress checks shape and, for mixed-case input, the EIP-55 checksum.
func ValidateAddress(address string) error {
	const op = "evm.ValidateAddress"

	if !addressPattern.MatchString(address) {
		return apperr.Newf(apperr.CodeInvalidAddress, op, "invalid address %q: expected 0x followed by 40 hex characters", address)
	}

	body := address[2:]
	mixedCase := strings.ToLower(body) != body && strings.ToUpper(body) != body
	if mixedCase && common.HexToAddress(address).Hex() != address {
		return apperr.Newf(apperr.CodeInvalidAddress, op, "invalid address checksum %q", address)
	}
	return nil
}

// NormalizeAddress validates and returns the checksummed form.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if err := ValidateAddress(address); err != nil {
		return "", err
	}
	return common.HexToAddress(address).Hex(), nil
}
