// Package refresh issues, rotates and revokes the opaque refresh tokens kept
// on each account. Only the SHA-256 digest of a token is persisted; each
// account holds at most one live token.
package refresh

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/wgdashboard/wg_dashboard/internal/models"
	"github.com/wgdashboard/wg_dashboard/internal/repo"
)

const (
	TokenBytes = 64
	DefaultTTL = 48 * time.Hour
)

// ErrNotAuthorized covers unknown, rotated, revoked and expired tokens alike.
var ErrNotAuthorized = errors.New("bad refresh token")

type AccountStore interface {
	FindAccountByRefreshHash(ctx context.Context, hash string) (*models.Account, error)
	SetRefreshToken(ctx context.Context, accountID uint, hash string, expiry time.Time) error
	SwapRefreshToken(ctx context.Context, accountID uint, oldHash, newHash string, newExpiry time.Time) error
	RevokeRefreshToken(ctx context.Context, accountID uint, hash string) error
}

type Store struct {
	accounts AccountStore
	ttl      time.Duration
	now      func() time.Time
	random   func([]byte) (int, error)
}

func NewStore(accounts AccountStore, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{accounts: accounts, ttl: ttl, now: time.Now, random: rand.Read}
}

func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (s *Store) newToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := s.random(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Issue overwrites any existing refresh session on acc with a fresh token.
func (s *Store) Issue(ctx context.Context, acc *models.Account) (string, time.Time, error) {
	token, err := s.newToken()
	if err != nil {
		return "", time.Time{}, err
	}
	hash := Sha256Hex(token)
	exp := s.now().Add(s.ttl).UTC()

	if err := s.accounts.SetRefreshToken(ctx, acc.ID, hash, exp); err != nil {
		return "", time.Time{}, err
	}
	acc.RefreshTokenHash = &hash
	acc.RefreshTokenExpiry = exp
	return token, exp, nil
}

func (s *Store) lookup(ctx context.Context, presented string) (*models.Account, string, error) {
	if presented == "" {
		return nil, "", ErrNotAuthorized
	}
	hash := Sha256Hex(presented)
	acc, err := s.accounts.FindAccountByRefreshHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", ErrNotAuthorized
		}
		return nil, "", err
	}
	if !s.now().Before(acc.RefreshTokenExpiry) {
		return nil, "", ErrNotAuthorized
	}
	return acc, hash, nil
}

// Rotate exchanges a live token for a new one. The presented token stops
// working as soon as Rotate succeeds.
func (s *Store) Rotate(ctx context.Context, presented string) (string, time.Time, *models.Account, error) {
	acc, oldHash, err := s.lookup(ctx, presented)
	if err != nil {
		return "", time.Time{}, nil, err
	}

	token, err := s.newToken()
	if err != nil {
		return "", time.Time{}, nil, err
	}
	newHash := Sha256Hex(token)
	exp := s.now().Add(s.ttl).UTC()

	if err := s.accounts.SwapRefreshToken(ctx, acc.ID, oldHash, newHash, exp); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return "", time.Time{}, nil, ErrNotAuthorized
		}
		return "", time.Time{}, nil, err
	}
	acc.RefreshTokenHash = &newHash
	acc.RefreshTokenExpiry = exp
	return token, exp, acc, nil
}

// Revoke ends a live session without issuing a replacement and returns the
// owning account id. The digest is cleared and the expiry set to the zero
// instant, so neither the token nor a rotation racing with it can revive it.
func (s *Store) Revoke(ctx context.Context, presented string) (uint, error) {
	acc, hash, err := s.lookup(ctx, presented)
	if err != nil {
		return 0, err
	}
	if err := s.accounts.RevokeRefreshToken(ctx, acc.ID, hash); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return 0, ErrNotAuthorized
		}
		return 0, err
	}
	return acc.ID, nil
}
