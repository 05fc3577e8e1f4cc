package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"

	"github.com/xenking/rental-ledger/internal/domain/party"
)

// ErrUnauthorized is returned for unknown, inactive or mismatching keys.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyInfo holds the identity bound to a stored API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	PartyID string
	Role    party.Role
}

// Principal is the authenticated caller of a request.
type Principal struct {
	KeyID   string
	PartyID string
	Role    party.Role
}

// Is reports whether the principal has one of the given roles.
func (p Principal) Is(roles ...party.Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey returns the hex HMAC-SHA256 of key under pepper. Stored key hashes
// are produced with the same function.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticator resolves raw API keys into principals.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator with the given key store and pepper.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Authenticate hashes the raw key, looks it up and compares the stored hash in
// constant time.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (Principal, error) {
	if rawKey == "" {
		return Principal{}, ErrUnauthorized
	}
	hexHash := HashKey(a.pepper, rawKey)

	info, err := a.keys.FindByHash(ctx, hexHash)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	computed, _ := hex.DecodeString(hexHash)
	if subtle.ConstantTimeCompare(computed, stored) != 1 {
		return Principal{}, ErrUnauthorized
	}

	return Principal{KeyID: info.ID, PartyID: info.PartyID, Role: info.Role}, nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
