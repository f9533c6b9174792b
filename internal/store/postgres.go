package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"codetrack/internal/db"
	"codetrack/internal/models"
)

// Postgres is the production Gateway on pgx.
type Postgres struct {
	db *db.DB
}

func NewPostgres(dbConn *db.DB) *Postgres {
	return &Postgres{db: dbConn}
}

// Init creates the schema if missing.
func (p *Postgres) Init(ctx context.Context) error {
	_, err := p.db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS platform_accounts (
			id BIGSERIAL PRIMARY KEY,
			owner_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			platform_username TEXT NOT NULL,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			last_synced_at TIMESTAMPTZ,
			profile_data JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (owner_id, platform, platform_username)
		);
		CREATE INDEX IF NOT EXISTS idx_platform_accounts_owner ON platform_accounts (owner_id);
		CREATE INDEX IF NOT EXISTS idx_platform_accounts_synced ON platform_accounts (last_synced_at NULLS FIRST);
	`)
	if err != nil {
		return fmt.Errorf("init_schema_failed: %w", err)
	}
	return nil
}

const accountColumns = `id, owner_id, platform, platform_username, is_verified, last_synced_at, profile_data, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.PlatformAccount, error) {
	var (
		a       models.PlatformAccount
		rawJSON []byte
	)
	err := row.Scan(&a.ID, &a.OwnerID, &a.Platform, &a.PlatformUsername,
		&a.IsVerified, &a.LastSyncedAt, &rawJSON, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoAccount
		}
		return nil, err
	}
	if len(rawJSON) > 0 {
		var profile models.CanonicalProfile
		if err := json.Unmarshal(rawJSON, &profile); err == nil {
			a.ProfileData = &profile
		}
	}
	return &a, nil
}

func (p *Postgres) Get(ctx context.Context, ownerID, platform, username string) (*models.PlatformAccount, error) {
	row := p.db.Pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM platform_accounts
		 WHERE owner_id = $1 AND platform = $2 AND platform_username = $3`,
		ownerID, platform, username)
	return scanAccount(row)
}

func (p *Postgres) GetByID(ctx context.Context, id int64, ownerID string) (*models.PlatformAccount, error) {
	row := p.db.Pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM platform_accounts WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	return scanAccount(row)
}

// Upsert inserts or replaces one account row. profile_data is replaced
// wholesale and is_verified only ever goes false -> true.
func (p *Postgres) Upsert(ctx context.Context, account *models.PlatformAccount) (*models.PlatformAccount, error) {
	profileJSON, err := models.MarshalProfile(account.ProfileData)
	if err != nil {
		return nil, fmt.Errorf("marshal_profile_failed: %w", err)
	}

	row := p.db.Pool.QueryRow(ctx,
		`INSERT INTO platform_accounts
			(owner_id, platform, platform_username, is_verified, last_synced_at, profile_data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (owner_id, platform, platform_username) DO UPDATE SET
			is_verified = platform_accounts.is_verified OR EXCLUDED.is_verified,
			last_synced_at = COALESCE(EXCLUDED.last_synced_at, platform_accounts.last_synced_at),
			profile_data = EXCLUDED.profile_data,
			updated_at = NOW()
		 RETURNING `+accountColumns,
		account.OwnerID, account.Platform, account.PlatformUsername,
		account.IsVerified, account.LastSyncedAt, profileJSON)
	return scanAccount(row)
}

func (p *Postgres) Delete(ctx context.Context, id int64, ownerID string) error {
	tag, err := p.db.Pool.Exec(ctx,
		`DELETE FROM platform_accounts WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoAccount
	}
	return nil
}

func (p *Postgres) ListByOwner(ctx context.Context, ownerID string) ([]models.PlatformAccount, error) {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT `+accountColumns+` FROM platform_accounts
		 WHERE owner_id = $1 ORDER BY platform, platform_username`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (p *Postgres) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.PlatformAccount, error) {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT `+accountColumns+` FROM platform_accounts
		 WHERE last_synced_at IS NULL OR last_synced_at < $1
		 ORDER BY last_synced_at ASC NULLS FIRST
		 LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Pool.Ping(ctx)
}

func collectAccounts(rows pgx.Rows) ([]models.PlatformAccount, error) {
	var out []models.PlatformAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
