package hash

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const DefaultCost = 12

var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// Hasher wraps bcrypt. At most `workers` hash or verify operations run at
// once; callers beyond that wait on their context.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce   sync.Once
	dummyDigest []byte
}

func New(cost, workers int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers))}
}

func (h *Hasher) HashPassword(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashbytes), nil
}

// CheckPassword reports whether password matches digest. A malformed digest
// or a cancelled context yields false.
func (h *Hasher) CheckPassword(ctx context.Context, digest, password string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	return err == nil
}

// CheckDummy spends the same bcrypt work as CheckPassword against a digest
// no password matches. Login calls it for unknown usernames so response time
// does not reveal which accounts exist.
func (h *Hasher) CheckDummy(ctx context.Context, password string) bool {
	h.dummyOnce.Do(func() {
		digest, err := bcrypt.GenerateFromPassword([]byte("wg-dashboard-no-such-account"), h.cost)
		if err == nil {
			h.dummyDigest = digest
		}
	})
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	_ = bcrypt.CompareHashAndPassword(h.dummyDigest, []byte(password))
	return false
}

// Cost returns the work factor embedded in digest.
func Cost(digest string) (int, error) {
	c, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return 0, errors.Join(errors.New("malformed digest"), err)
	}
	return c, nil
}
