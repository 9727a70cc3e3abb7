// internal/repository/intent_repo.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresIntentRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewIntentRepository(pool *pgxpool.Pool, logger *zap.Logger) *PostgresIntentRepository {
	return &PostgresIntentRepository{pool: pool, logger: logger}
}

const intentColumns = `
	id, account_id, kind, status, chain, from_address, counterparty,
	token_symbol, token_contract, token_decimals, amount::text, estimate,
	quoted_at, expires_at, updated_at,
	tx_hash, amount_out::text, fee_paid::text, submitted_at,
	failure_code, failure_message
`

func (r *PostgresIntentRepository) Create(ctx context.Context, intent *domain.Intent) error {
	estimate, err := json.Marshal(intent.Estimate)
	if err != nil {
		return fmt.Errorf("failed to encode estimate: %w", err)
	}

	query := `
		INSERT INTO intents (
			id, account_id, kind, status, chain, from_address, counterparty,
			token_symbol, token_contract, token_decimals, amount, estimate,
			quoted_at, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12, $13, $14, $13)
	`
	_, err = r.pool.Exec(ctx, query,
		intent.ID,
		intent.AccountID,
		intent.Kind,
		intent.Status,
		intent.Chain,
		intent.FromAddress,
		intent.Counterparty,
		intent.TokenSymbol,
		intent.TokenContract,
		intent.TokenDecimals,
		intent.Amount.String(),
		estimate,
		intent.QuotedAt,
		intent.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Newf(apperr.CodeAlreadyExists, "repository.IntentCreate", "intent %s already exists", intent.ID)
		}
		return fmt.Errorf("failed to create intent: %w", err)
	}
	intent.UpdatedAt = intent.QuotedAt
	return nil
}

func (r *PostgresIntentRepository) Get(ctx context.Context, id string) (*domain.Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM intents WHERE id = $1`

	intent, err := scanIntent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeNotFound, "repository.IntentGet", "intent %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}
	return intent, nil
}

// Transition only succeeds from the expected status.
func (r *PostgresIntentRepository) Transition(ctx context.Context, id string, from, to domain.IntentStatus) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, fmt.Errorf("illegal intent transition %s -> %s", from, to)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE intents
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition intent: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *PostgresIntentRepository) MarkExecuted(ctx context.Context, id string, res *domain.SubmitResult) error {
	var amountOut *string
	if res.AmountOut != nil {
		s := res.AmountOut.String()
		amountOut = &s
	}
	feePaid := "0"
	if res.FeePaid != nil {
		feePaid = res.FeePaid.String()
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE intents
		SET status = 'executed',
			tx_hash = $2,
			amount_out = $3::numeric,
			fee_paid = $4::numeric,
			submitted_at = $5,
			updated_at = NOW()
		WHERE id = $1 AND status = 'executing'
	`, id, res.TxHash, amountOut, feePaid, res.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to mark intent executed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("intent %s not found or not executing", id)
	}

	r.logger.Info("Intent executed",
		zap.String("intent_id", id),
		zap.String("tx_hash", res.TxHash))
	return nil
}

func (r *PostgresIntentRepository) MarkFailed(ctx context.Context, id, code, message string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE intents
		SET status = 'failed',
			failure_code = $2,
			failure_message = $3,
			updated_at = NOW()
		WHERE id = $1 AND status = 'executing'
	`, id, code, message)
	if err != nil {
		return fmt.Errorf("failed to mark intent failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("intent %s not found or not executing", id)
	}

	r.logger.Warn("Intent failed",
		zap.String("intent_id", id),
		zap.String("code", code))
	return nil
}

func (r *PostgresIntentRepository) ExpireStale(ctx context.Context, before time.Time) ([]*domain.Intent, error) {
	query := `
		UPDATE intents
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'quoted' AND expires_at <= $1
		RETURNING ` + intentColumns

	rows, err := r.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to expire intents: %w", err)
	}
	defer rows.Close()

	var expired []*domain.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired intent: %w", err)
		}
		expired = append(expired, intent)
	}
	return expired, rows.Err()
}

func scanIntent(row pgx.Row) (*domain.Intent, error) {
	intent := &domain.Intent{}
	var (
		amount         string
		estimate       []byte
		txHash         *string
		amountOut      *string
		feePaid        *string
		submittedAt    *time.Time
		failureCode    *string
		failureMessage *string
	)

	err := row.Scan(
		&intent.ID,
		&intent.AccountID,
		&intent.Kind,
		&intent.Status,
		&intent.Chain,
		&intent.FromAddress,
		&intent.Counterparty,
		&intent.TokenSymbol,
		&intent.TokenContract,
		&intent.TokenDecimals,
		&amount,
		&estimate,
		&intent.QuotedAt,
		&intent.ExpiresAt,
		&intent.UpdatedAt,
		&txHash,
		&amountOut,
		&feePaid,
		&submittedAt,
		&failureCode,
		&failureMessage,
	)
	if err != nil {
		return nil, err
	}

	if intent.Amount, err = parseNumeric(amount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(estimate, &intent.Estimate); err != nil {
		return nil, fmt.Errorf("failed to decode estimate: %w", err)
	}

	if txHash != nil {
		result := &domain.SubmitResult{TxHash: *txHash}
		if amountOut != nil {
			if result.AmountOut, err = parseNumeric(*amountOut); err != nil {
				return nil, err
			}
		}
		if feePaid != nil {
			if result.FeePaid, err = parseNumeric(*feePaid); err != nil {
				return nil, err
			}
		}
		if submittedAt != nil {
			result.Timestamp = *submittedAt
		}
		intent.Result = result
	}
	if failureCode != nil {
		intent.FailureCode = *failureCode
	}
	if failureMessage != nil {
		intent.FailureMessage = *failureMessage
	}
	return intent, nil
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}
	return v, nil
}
