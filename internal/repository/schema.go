// internal/repository/schema.go
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is idempotent and applied at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS wallets (
	id               BIGSERIAL PRIMARY KEY,
	account_id       BIGINT      NOT NULL,
	label            TEXT        NOT NULL DEFAULT '',
	address          TEXT        NOT NULL,
	encrypted_secret TEXT        NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (account_id, address)
);

CREATE INDEX IF NOT EXISTS idx_wallets_account_created
	ON wallets (account_id, created_at DESC);

CREATE TABLE IF NOT EXISTS intents (
	id              TEXT PRIMARY KEY,
	account_id      BIGINT         NOT NULL,
	kind            TEXT           NOT NULL,
	status          TEXT           NOT NULL,
	chain           TEXT           NOT NULL,
	from_address    TEXT           NOT NULL,
	counterparty    TEXT           NOT NULL,
	token_symbol    TEXT           NOT NULL DEFAULT '',
	token_contract  TEXT           NOT NULL DEFAULT '',
	token_decimals  INTEGER        NOT NULL,
	amount          NUMERIC(78, 0) NOT NULL,
	estimate        JSONB          NOT NULL,
	quoted_at       TIMESTAMPTZ    NOT NULL,
	expires_at      TIMESTAMPTZ    NOT NULL,
	updated_at      TIMESTAMPTZ    NOT NULL DEFAULT NOW(),
	tx_hash         TEXT,
	amount_out      NUMERIC(78, 0),
	fee_paid        NUMERIC(78, 0),
	submitted_at    TIMESTAMPTZ,
	failure_code    TEXT,
	failure_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_intents_quoted_expiry
	ON intents (expires_at) WHERE status = 'quoted';
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
