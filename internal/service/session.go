package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wgdashboard/wg_dashboard/internal/authz"
	"github.com/wgdashboard/wg_dashboard/internal/events"
	"github.com/wgdashboard/wg_dashboard/internal/hash"
	"github.com/wgdashboard/wg_dashboard/internal/logging"
	"github.com/wgdashboard/wg_dashboard/internal/models"
	"github.com/wgdashboard/wg_dashboard/internal/refresh"
	"github.com/wgdashboard/wg_dashboard/internal/repo"
	"github.com/wgdashboard/wg_dashboard/internal/tokens"
)

type SessionService struct {
	Repo   *repo.GormRepo
	Hasher *hash.Hasher
	Codec  *tokens.Codec
	Store  *refresh.Store
	Events events.Publisher

	bootstrap     BootstrapSettings
	bootstrapOnce sync.Once
	bootstrapErr  error
}

func NewSessionService(r *repo.GormRepo, h *hash.Hasher, codec *tokens.Codec, store *refresh.Store, pub events.Publisher, boot BootstrapSettings) *SessionService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &SessionService{
		Repo:      r,
		Hasher:    h,
		Codec:     codec,
		Store:     store,
		Events:    pub,
		bootstrap: boot,
	}
}

// SessionResult is what a successful login or refresh hands back to the
// transport: a bearer token for the body and a refresh token for the cookie.
type SessionResult struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
	Account      models.AccountProfile
}

type SignupRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
}

func (s *SessionService) Login(ctx context.Context, username, password string) (*SessionResult, error) {
	l := logging.FromContext(ctx).With("svc", "session.login", "username", username)

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrBadRequest)
	}

	acc, err := s.Repo.FindAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.Hasher.CheckDummy(ctx, password)
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrInternal, ctx.Err())
			}
			l.Warn("login_failed", "reason", "unknown username")
			return nil, ErrIncorrectCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("%w: find account: %v", ErrInternal, err)
	}

	if !s.Hasher.CheckPassword(ctx, acc.PasswordHash, password) {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, ctx.Err())
		}
		l.Warn("login_failed", "reason", "password mismatch")
		return nil, ErrIncorrectCredentials
	}

	res, err := s.mint(ctx, acc)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	publish(ctx, s.Events, events.New(events.UserLoggedIn, acc.ID, map[string]any{"username": acc.Username}))
	l.Info("login_successful", "account_id", acc.ID)
	return res, nil
}

// mint issues a fresh refresh token for acc and an access token carrying its
// current claims.
func (s *SessionService) mint(ctx context.Context, acc *models.Account) (*SessionResult, error) {
	refreshToken, refreshExp, err := s.Store.Issue(ctx, acc)
	if err != nil {
		return nil, fmt.Errorf("%w: issue refresh token: %v", ErrInternal, err)
	}
	return s.withAccess(acc, refreshToken, refreshExp)
}

func (s *SessionService) withAccess(acc *models.Account, refreshToken string, refreshExp time.Time) (*SessionResult, error) {
	access, accessExp, err := s.Codec.Issue(tokens.ClaimsFor(acc))
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %v", ErrInternal, err)
	}
	return &SessionResult{
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
		Account:      acc.Profile(),
	}, nil
}

func (s *SessionService) Signup(ctx context.Context, req SignupRequest) (*models.AccountProfile, error) {
	l := logging.FromContext(ctx).With("svc", "session.signup", "username", req.Username)

	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrBadRequest)
	}

	taken, err := s.Repo.UsernameTaken(ctx, req.Username, 0)
	if err != nil {
		l.Error("signup_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if taken {
		l.Warn("signup_failed", "status", 400, "reason", "username taken")
		return nil, fmt.Errorf("%w: username already taken", ErrBadRequest)
	}

	digest, err := s.hashPassword(ctx, req.Password)
	if err != nil {
		l.Warn("signup_failed", "error", err)
		return nil, err
	}

	acc := &models.Account{
		Username:     req.Username,
		Name:         normalizeName(req.Name),
		Role:         models.RoleUser,
		PasswordHash: digest,
	}
	if err := s.Repo.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			l.Warn("signup_failed", "status", 400, "reason", "username taken")
			return nil, fmt.Errorf("%w: username already taken", ErrBadRequest)
		}
		l.Error("signup_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("%w: create account: %v", ErrInternal, err)
	}

	publish(ctx, s.Events, events.New(events.UserRegistered, acc.ID, map[string]any{"username": acc.Username}))
	l.Info("signup_successful", "account_id", acc.ID)
	profile := acc.Profile()
	return &profile, nil
}

// ChangePassword replaces the password of targetID. A caller that may not
// act on targetID gets ErrNotFound, same as for a missing account.
func (s *SessionService) ChangePassword(ctx context.Context, targetID uint, newPassword string, actor authz.Actor) error {
	l := logging.FromContext(ctx).With("svc", "session.passwd", "target_id", targetID, "actor_id", actor.ID)

	if !actor.CanAccess(targetID) {
		l.Warn("passwd_failed", "status", 404, "reason", "not authorized")
		return fmt.Errorf("%w: account %d", ErrNotFound, targetID)
	}

	if _, err := s.Repo.FindAccountByID(ctx, targetID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: account %d", ErrNotFound, targetID)
		}
		l.Error("passwd_failed", "status", 500, "error", err)
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrBadRequest)
	}

	digest, err := s.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePasswordHash(ctx, targetID, digest); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: account %d", ErrNotFound, targetID)
		}
		l.Error("passwd_failed", "status", 500, "error", err)
		return fmt.Errorf("%w: save password: %v", ErrInternal, err)
	}

	publish(ctx, s.Events, events.New(events.PasswordChanged, targetID, map[string]any{"actor_id": actor.ID}))
	l.Info("passwd_successful")
	return nil
}

func (s *SessionService) Refresh(ctx context.Context, presented string) (*SessionResult, error) {
	l := logging.FromContext(ctx).With("svc", "session.refresh")

	token, exp, acc, err := s.Store.Rotate(ctx, presented)
	if err != nil {
		if errors.Is(err, refresh.ErrNotAuthorized) {
			l.Warn("refresh_failed", "status", 401)
			return nil, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("%w: rotate refresh token: %v", ErrInternal, err)
	}

	res, err := s.withAccess(acc, token, exp)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, events.New(events.TokenRefreshed, acc.ID, nil))
	l.Info("refresh_success", "account_id", acc.ID)
	return res, nil
}

func (s *SessionService) Revoke(ctx context.Context, presented string) error {
	l := logging.FromContext(ctx).With("svc", "session.revoke")

	accountID, err := s.Store.Revoke(ctx, presented)
	if err != nil {
		if errors.Is(err, refresh.ErrNotAuthorized) {
			l.Warn("revoke_failed", "status", 401)
			return fmt.Errorf("%w: %v", ErrNotAuthorized, err)
		}
		l.Error("revoke_failed", "status", 500, "error", err)
		return fmt.Errorf("%w: revoke refresh token: %v", ErrInternal, err)
	}

	publish(ctx, s.Events, events.New(events.TokenRevoked, accountID, nil))
	l.Info("revoke_success", "account_id", accountID)
	return nil
}

func (s *SessionService) hashPassword(ctx context.Context, password string) (string, error) {
	digest, err := s.Hasher.HashPassword(ctx, password)
	if err != nil {
		if errors.Is(err, hash.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password is too long", ErrBadRequest)
		}
		return "", fmt.Errorf("%w: hash password: %v", ErrInternal, err)
	}
	return digest, nil
}

func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}
	n := strings.TrimSpace(*name)
	if n == "" {
		return nil
	}
	return &n
}
