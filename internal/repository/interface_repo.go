// internal/repository/interface_repo.go
package repository

import (
	"context"
	"errors"
	"time"

	"custody-service/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

type WalletRepository interface {
	// Create inserts the account's wallet; a second wallet is AlreadyExists.
	Create(ctx context.Context, wallet *domain.WalletRecord) error
	// GetLatest returns the newest wallet, or nil when the account has none.
	GetLatest(ctx context.Context, accountID int64) (*domain.WalletRecord, error)
	GetByAddress(ctx context.Context, accountID int64, address string) (*domain.WalletRecord, error)
	// Delete removes the (account, address) row and reports whether it existed.
	Delete(ctx context.Context, accountID int64, address string) (bool, error)
}

type IntentRepository interface {
	Create(ctx context.Context, intent *domain.Intent) error
	// Get returns NotFound for unknown ids.
	Get(ctx context.Context, id string) (*domain.Intent, error)
	// Transition is the compare-and-set on status. false means the intent
	// was not in the expected state.
	Transition(ctx context.Context, id string, from, to domain.IntentStatus) (bool, error)
	MarkExecuted(ctx context.Context, id string, result *domain.SubmitResult) error
	MarkFailed(ctx context.Context, id, code, message string) error
	// ExpireStale moves Quoted intents whose TTL passed before the cutoff to Expired.
	ExpireStale(ctx context.Context, before time.Time) ([]*domain.Intent, error)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
