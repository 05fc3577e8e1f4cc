package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rental-ledger/internal/domain/party"
)

type mockKeyRepo struct {
	info     *APIKeyInfo
	err      error
	lastHash string
}

func (m *mockKeyRepo) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	m.lastHash = hash
	return m.info, m.err
}

func TestAuthenticate(t *testing.T) {
	pepper := []byte("pepper")
	repo := &mockKeyRepo{info: &APIKeyInfo{
		ID:      "k1",
		KeyHash: HashKey(pepper, "secret-key"),
		PartyID: "cust-1",
		Role:    party.RoleCustomer,
	}}
	a := NewAuthenticator(repo, pepper)

	p, err := a.Authenticate(context.Background(), "secret-key")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", p.PartyID)
	assert.Equal(t, party.RoleCustomer, p.Role)
	assert.Equal(t, HashKey(pepper, "secret-key"), repo.lastHash)
	assert.True(t, p.Is(party.RoleVendor, party.RoleCustomer))
	assert.False(t, p.Is(party.RoleAdmin))
}

func TestAuthenticate_Rejects(t *testing.T) {
	pepper := []byte("pepper")

	t.Run("empty key", func(t *testing.T) {
		a := NewAuthenticator(&mockKeyRepo{}, pepper)
		_, err := a.Authenticate(context.Background(), "")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown key", func(t *testing.T) {
		a := NewAuthenticator(&mockKeyRepo{err: errors.New("no rows")}, pepper)
		_, err := a.Authenticate(context.Background(), "nope")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("stored hash mismatch", func(t *testing.T) {
		repo := &mockKeyRepo{info: &APIKeyInfo{KeyHash: HashKey(pepper, "other")}}
		a := NewAuthenticator(repo, pepper)
		_, err := a.Authenticate(context.Background(), "secret-key")
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{PartyID: "v1", Role: party.RoleVendor})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "v1", p.PartyID)
}
