// internal/usecase/wallet_usecase.go
package usecase

import (
	"context"
	"fmt"
	"strings"

	"custody-service/internal/chains/evm"
	"custody-service/internal/domain"
	"custody-service/internal/repository"
	"custody-service/pkg/apperr"

	"go.uber.org/zap"
)

const defaultWalletLabel = "Main Wallet"

// SecretCipher is the key vault; *security.Encryption implements it.
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type WalletUsecase struct {
	walletRepo repository.WalletRepository
	cipher     SecretCipher
	logger     *zap.Logger
}

func NewWalletUsecase(
	walletRepo repository.WalletRepository,
	cipher SecretCipher,
	logger *zap.Logger,
) *WalletUsecase {
	return &WalletUsecase{
		walletRepo: walletRepo,
		cipher:     cipher,
		logger:     logger,
	}
}

// Create generates a new wallet. The plaintext secret is returned exactly
// once and never stored or logged.
func (uc *WalletUsecase) Create(ctx context.Context, accountID int64, label string) (*domain.CreatedWallet, error) {
	if err := uc.ensureNoWallet(ctx, accountID); err != nil {
		return nil, err
	}

	keys, err := evm.GenerateKey()
	if err != nil {
		return nil, err
	}

	wallet, err := uc.store(ctx, accountID, label, keys)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("Wallet created",
		zap.Int64("account_id", accountID),
		zap.String("address", wallet.Address))

	return &domain.CreatedWallet{Wallet: wallet, Secret: keys.Secret}, nil
}

// Import stores an existing private key. The secret is validated before
// anything is written.
func (uc *WalletUsecase) Import(ctx context.Context, accountID int64, secret, label string) (*domain.WalletRecord, error) {
	keys, err := evm.KeyFromSecret(secret)
	if err != nil {
		return nil, err
	}

	if err := uc.ensureNoWallet(ctx, accountID); err != nil {
		return nil, err
	}

	wallet, err := uc.store(ctx, accountID, label, keys)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("Wallet imported",
		zap.Int64("account_id", accountID),
		zap.String("address", wallet.Address))

	return wallet, nil
}

// Get returns the account's newest wallet, or nil when it has none.
func (uc *WalletUsecase) Get(ctx context.Context, accountID int64) (*domain.WalletRecord, error) {
	if err := validateAccount(accountID); err != nil {
		return nil, err
	}
	wallet, err := uc.walletRepo.GetLatest(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return wallet, nil
}

// Require is Get that treats a missing wallet as a validation failure.
func (uc *WalletUsecase) Require(ctx context.Context, accountID int64) (*domain.WalletRecord, error) {
	wallet, err := uc.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, apperr.New(apperr.CodeNoWallet, "usecase.RequireWallet", "no wallet found for this account")
	}
	return wallet, nil
}

// Delete removes exactly the (account, address) wallet.
func (uc *WalletUsecase) Delete(ctx context.Context, accountID int64, address string) error {
	const op = "usecase.DeleteWallet"

	if err := validateAccount(accountID); err != nil {
		return err
	}
	normalized, err := evm.NormalizeAddress(address)
	if err != nil {
		return err
	}

	deleted, err := uc.walletRepo.Delete(ctx, accountID, normalized)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.Newf(apperr.CodeNotFound, op, "no wallet %s for this account", normalized)
	}
	return nil
}

// RevealSecret decrypts the secret for one signing operation. It is never cached.
func (uc *WalletUsecase) RevealSecret(ctx context.Context, accountID int64, address string) (string, error) {
	const op = "usecase.RevealSecret"

	wallet, err := uc.walletRepo.GetByAddress(ctx, accountID, address)
	if err != nil {
		return "", fmt.Errorf("failed to load wallet: %w", err)
	}
	if wallet == nil {
		return "", apperr.Newf(apperr.CodeNotFound, op, "no wallet %s for this account", address)
	}

	secret, err := uc.cipher.Decrypt(wallet.EncryptedSecret)
	if err != nil {
		uc.logger.Error("Stored wallet secret failed integrity check",
			zap.Int64("account_id", accountID),
			zap.String("address", address))
		return "", err
	}
	return secret, nil
}

func (uc *WalletUsecase) ensureNoWallet(ctx context.Context, accountID int64) error {
	existing, err := uc.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperr.Newf(apperr.CodeAlreadyExists, "usecase.Wallet", "account already has wallet %s", existing.Address)
	}
	return nil
}

func (uc *WalletUsecase) store(ctx context.Context, accountID int64, label string, keys *domain.KeyPair) (*domain.WalletRecord, error) {
	encrypted, err := uc.cipher.Encrypt(keys.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = defaultWalletLabel
	}

	wallet := &domain.WalletRecord{
		AccountID:       accountID,
		Label:           label,
		Address:         keys.Address,
		EncryptedSecret: encrypted,
	}
	if err := uc.walletRepo.Create(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

func validateAccount(accountID int64) error {
	if accountID <= 0 {
		return apperr.New(apperr.CodeInvalidRequest, "usecase.validateAccount", "account id must be a positive integer")
	}
	return nil
}
