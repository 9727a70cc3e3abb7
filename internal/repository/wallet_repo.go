// internal/repository/wallet_repo.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresWalletRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewWalletRepository(pool *pgxpool.Pool, logger *zap.Logger) *PostgresWalletRepository {
	return &PostgresWalletRepository{pool: pool, logger: logger}
}

// Create serializes writers per account with a transaction-scoped advisory
// lock, so the existence check and the insert cannot interleave.
func (r *PostgresWalletRepository) Create(ctx context.Context, wallet *domain.WalletRecord) error {
	const op = "repository.WalletCreate"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, wallet.AccountID); err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM wallets WHERE account_id = $1)`,
		wallet.AccountID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check existing wallet: %w", err)
	}
	if exists {
		return apperr.New(apperr.CodeAlreadyExists, op, "account already has a wallet")
	}

	query := `
		INSERT INTO wallets (account_id, label, address, encrypted_secret)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, query,
		wallet.AccountID,
		wallet.Label,
		wallet.Address,
		wallet.EncryptedSecret,
	).Scan(&wallet.ID, &wallet.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.CodeAlreadyExists, op, "wallet address already exists for account")
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit wallet: %w", err)
	}

	r.logger.Info("Wallet stored",
		zap.Int64("account_id", wallet.AccountID),
		zap.Int64("wallet_id", wallet.ID),
		zap.String("address", wallet.Address))

	return nil
}

// GetLatest returns the newest wallet for the account
func (r *PostgresWalletRepository) GetLatest(ctx context.Context, accountID int64) (*domain.WalletRecord, error) {
	query := `
		SELECT id, account_id, label, address, encrypted_secret, created_at
		FROM wallets
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, accountID))
}

func (r *PostgresWalletRepository) GetByAddress(ctx context.Context, accountID int64, address string) (*domain.WalletRecord, error) {
	query := `
		SELECT id, account_id, label, address, encrypted_secret, created_at
		FROM wallets
		WHERE account_id = $1 AND address = $2
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, accountID, address))
}

func (r *PostgresWalletRepository) Delete(ctx context.Context, accountID int64, address string) (bool, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM wallets WHERE account_id = $1 AND address = $2`,
		accountID, address)
	if err != nil {
		return false, fmt.Errorf("failed to delete wallet: %w", err)
	}

	deleted := result.RowsAffected() > 0
	if deleted {
		r.logger.Info("Wallet deleted",
			zap.Int64("account_id", accountID),
			zap.String("address", address))
	}
	return deleted, nil
}

func (r *PostgresWalletRepository) scanOne(row pgx.Row) (*domain.WalletRecord, error) {
	wallet := &domain.WalletRecord{}
	err := row.Scan(
		&wallet.ID,
		&wallet.AccountID,
		&wallet.Label,
		&wallet.Address,
		&wallet.EncryptedSecret,
		&wallet.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}
