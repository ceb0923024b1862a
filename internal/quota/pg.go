package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgLedger keeps quota accounts in Postgres.
//
// Schema:
//
//	CREATE TABLE quota_accounts (
//	    principal_id TEXT PRIMARY KEY,
//	    tier         TEXT NOT NULL DEFAULT 'free',
//	    bytes_used   BIGINT NOT NULL DEFAULT 0
//	);
type PgLedger struct {
	db *pgxpool.Pool
}

var _ Ledger = (*PgLedger)(nil)

func NewPgLedger(db *pgxpool.Pool) *PgLedger {
	return &PgLedger{db: db}
}

func (l *PgLedger) Account(ctx context.Context, principal string) (Account, error) {
	acct := Account{Principal: principal}
	err := l.db.QueryRow(ctx, `
		SELECT tier, bytes_used
		FROM quota_accounts
		WHERE principal_id = $1
	`, principal).Scan(&acct.Tier, &acct.BytesUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: %s", ErrUnknownPrincipal, principal)
		}
		return Account{}, fmt.Errorf("load quota account: %w", err)
	}
	return acct, nil
}

func (l *PgLedger) Commit(ctx context.Context, principal string, n int64) error {
	tag, err := l.db.Exec(ctx, `
		UPDATE quota_accounts
		SET bytes_used = bytes_used + $2
		WHERE principal_id = $1
	`, principal, n)
	if err != nil {
		return fmt.Errorf("commit quota: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPrincipal, principal)
	}
	return nil
}

// EnsureAccount creates the principal's quota row if it does not exist.
// Called when a token is provisioned.
func (l *PgLedger) EnsureAccount(ctx context.Context, principal, tier string) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO quota_accounts (principal_id, tier)
		VALUES ($1, $2)
		ON CONFLICT (principal_id) DO UPDATE SET tier = EXCLUDED.tier
	`, principal, tier)
	if err != nil {
		return fmt.Errorf("ensure quota account: %w", err)
	}
	return nil
}
