package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/rental-ledger/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT k.id, k.key_hash, k.name, k.party_id, p.role
		FROM api_keys k JOIN parties p ON p.id = k.party_id
		WHERE k.key_hash = $1 AND k.active = TRUE`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, party_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash, name = EXCLUDED.name,
			party_id = EXCLUDED.party_id, active = TRUE`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	db *DB
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var info auth.APIKeyInfo
	err := r.db.q(ctx).QueryRow(ctx, getAPIKeyByHashSQL, hash).Scan(
		&info.ID, &info.KeyHash, &info.Name, &info.PartyID, &info.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnauthorized
		}
		return nil, errors.Wrap(err, "find api key by hash")
	}
	return &info, nil
}

// Upsert stores an API key hash for a party. Used by the seeder.
func (r *APIKeyRepository) Upsert(ctx context.Context, info auth.APIKeyInfo) error {
	_, err := r.db.q(ctx).Exec(ctx, upsertAPIKeySQL, info.ID, info.KeyHash, info.Name, info.PartyID)
	if err != nil {
		return errors.Wrapf(err, "upsert api key %q", info.ID)
	}
	return nil
}
