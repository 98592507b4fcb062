package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wgdashboard/wg_dashboard/internal/config"
	"github.com/wgdashboard/wg_dashboard/internal/logging"
	"github.com/wgdashboard/wg_dashboard/internal/models"
	"github.com/wgdashboard/wg_dashboard/internal/repo"
)

// SettingBootstrapDisabled is the settings row written after the first
// admin has been created in production.
const SettingBootstrapDisabled = "admin_bootstrap_disabled"

// BootstrapSettings is resolved once at startup and decides whether the
// session service may create the first administrator.
type BootstrapSettings struct {
	Enabled  bool
	Username string
	Password string
	Name     string
	// PersistDisable records a successful bootstrap so later starts skip it.
	PersistDisable bool
}

// ResolveBootstrap combines the configured admin credentials with the
// persisted disable flag. In production the flag wins unless admin.Reset is
// set.
func ResolveBootstrap(ctx context.Context, r *repo.GormRepo, admin config.AdminConfig, production bool) (BootstrapSettings, error) {
	bs := BootstrapSettings{
		Enabled:        admin.Initialize,
		Username:       admin.Username,
		Password:       admin.Password,
		Name:           admin.Name,
		PersistDisable: production,
	}
	if !production || !bs.Enabled {
		return bs, nil
	}

	if admin.Reset {
		if err := r.PutSetting(ctx, SettingBootstrapDisabled, "false"); err != nil {
			return bs, fmt.Errorf("reset bootstrap flag: %w", err)
		}
		return bs, nil
	}

	v, ok, err := r.GetSetting(ctx, SettingBootstrapDisabled)
	if err != nil {
		return bs, fmt.Errorf("read bootstrap flag: %w", err)
	}
	if ok {
		if disabled, _ := strconv.ParseBool(v); disabled {
			bs.Enabled = false
		}
	}
	return bs, nil
}

// Bootstrap creates the initial administrator at most once per process.
// Later calls return the outcome of the first.
func (s *SessionService) Bootstrap(ctx context.Context) error {
	s.bootstrapOnce.Do(func() {
		s.bootstrapErr = s.runBootstrap(ctx)
	})
	return s.bootstrapErr
}

func (s *SessionService) runBootstrap(ctx context.Context) error {
	l := logging.FromContext(ctx).With("svc", "session.bootstrap")
	bs := s.bootstrap

	hasAdmin, err := s.Repo.AdminExists(ctx)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}

	if !bs.Enabled {
		if !hasAdmin {
			l.Warn("bootstrap_skipped", "reason", "no admin account exists and bootstrap is disabled")
		}
		return nil
	}
	if hasAdmin {
		l.Info("bootstrap_skipped", "reason", "admin already exists")
		return nil
	}

	taken, err := s.Repo.UsernameTaken(ctx, bs.Username, 0)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		l.Warn("bootstrap_skipped", "reason", "username already taken", "username", bs.Username)
		return nil
	}

	digest, err := s.hashPassword(ctx, bs.Password)
	if err != nil {
		return err
	}
	acc := &models.Account{
		Username:     bs.Username,
		Name:         normalizeName(&bs.Name),
		Role:         models.RoleAdmin,
		PasswordHash: digest,
	}
	if err := s.Repo.CreateAccount(ctx, acc); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	l.Info("bootstrap_admin_created", "account_id", acc.ID, "username", acc.Username)

	if bs.PersistDisable {
		if err := s.Repo.PutSetting(ctx, SettingBootstrapDisabled, "true"); err != nil {
			return fmt.Errorf("persist bootstrap flag: %w", err)
		}
	}
	return nil
}
