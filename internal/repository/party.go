package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/rental-ledger/internal/domain/party"
)

const (
	getPartySQL = `SELECT id, role, name, company_name, gstin, address FROM parties WHERE id = $1`

	upsertPartySQL = `INSERT INTO parties (id, role, name, company_name, gstin, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role, name = EXCLUDED.name, company_name = EXCLUDED.company_name,
			gstin = EXCLUDED.gstin, address = EXCLUDED.address`
)

var _ party.Repository = (*PartyRepository)(nil)

// PartyRepository implements party.Repository backed by PostgreSQL.
type PartyRepository struct {
	db *DB
}

// GetByID returns a party by id.
func (r *PartyRepository) GetByID(ctx context.Context, id string) (*party.Party, error) {
	var p party.Party
	err := r.db.q(ctx).QueryRow(ctx, getPartySQL, id).Scan(
		&p.ID, &p.Role, &p.Name, &p.CompanyName, &p.GSTIN, &p.Address,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, party.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get party %q", id)
	}
	return &p, nil
}

// Upsert inserts or replaces a party. Used by the seeder.
func (r *PartyRepository) Upsert(ctx context.Context, p party.Party) error {
	_, err := r.db.q(ctx).Exec(ctx, upsertPartySQL, p.ID, p.Role, p.Name, p.CompanyName, p.GSTIN, p.Address)
	if err != nil {
		return errors.Wrapf(err, "upsert party %q", p.ID)
	}
	return nil
}
