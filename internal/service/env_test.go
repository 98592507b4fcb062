package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wgdashboard/wg_dashboard/internal/authz"
	"github.com/wgdashboard/wg_dashboard/internal/db"
	"github.com/wgdashboard/wg_dashboard/internal/events"
	"github.com/wgdashboard/wg_dashboard/internal/hash"
	"github.com/wgdashboard/wg_dashboard/internal/models"
	"github.com/wgdashboard/wg_dashboard/internal/refresh"
	"github.com/wgdashboard/wg_dashboard/internal/repo"
	"github.com/wgdashboard/wg_dashboard/internal/tokens"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	repo     *repo.GormRepo
	hasher   *hash.Hasher
	codec    *tokens.Codec
	sessions *SessionService
	users    *UserService
	peers    *PeerService
	events   *recordingPublisher
}

func newTestEnv(t *testing.T, boot BootstrapSettings) *testEnv {
	t.Helper()
	gdb, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := repo.New(gdb)
	h := hash.New(bcrypt.MinCost, 4)
	codec := tokens.NewCodec(tokens.CodecConfig{Key: []byte("test-secret-test-secret-test-secret")})
	pub := &recordingPublisher{}

	return &testEnv{
		repo:     r,
		hasher:   h,
		codec:    codec,
		sessions: NewSessionService(r, h, codec, refresh.NewStore(r, refresh.DefaultTTL), pub, boot),
		users:    &UserService{Repo: r, Events: pub},
		peers:    &PeerService{Repo: r, Events: pub},
		events:   pub,
	}
}

// seedAccount stores an account directly, bypassing signup.
func (e *testEnv) seedAccount(t *testing.T, username, password, role string) *models.Account {
	t.Helper()
	digest, err := e.hasher.HashPassword(context.Background(), password)
	require.NoError(t, err)
	acc := &models.Account{Username: username, Role: role, PasswordHash: digest}
	require.NoError(t, e.repo.CreateAccount(context.Background(), acc))
	return acc
}

func actorOf(acc *models.Account) authz.Actor {
	return authz.Actor{ID: acc.ID, Role: acc.Role}
}

func strPtr(s string) *string { return &s }
