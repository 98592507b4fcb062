package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wgdashboard/wg_dashboard/internal/config"
	"github.com/wgdashboard/wg_dashboard/internal/models"
)

func adminSettings() BootstrapSettings {
	return BootstrapSettings{Enabled: true, Username: "admin", Password: "admin", Name: "Development Admin"}
}

func TestBootstrap_CreatesAdminOnce(t *testing.T) {
	env := newTestEnv(t, adminSettings())
	ctx := context.Background()

	require.NoError(t, env.sessions.Bootstrap(ctx))
	require.NoError(t, env.sessions.Bootstrap(ctx))

	accounts, err := env.repo.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "admin", accounts[0].Username)
	assert.Equal(t, models.RoleAdmin, accounts[0].Role)

	res, err := env.sessions.Login(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.Account.Role)

	_, ok, err := env.repo.GetSetting(ctx, SettingBootstrapDisabled)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBootstrap_SkipsWhenAdminExists(t *testing.T) {
	env := newTestEnv(t, adminSettings())
	ctx := context.Background()
	env.seedAccount(t, "root", "pw", models.RoleAdmin)

	require.NoError(t, env.sessions.Bootstrap(ctx))

	taken, err := env.repo.UsernameTaken(ctx, "admin", 0)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestBootstrap_UsernameCollisionCreatesNothing(t *testing.T) {
	env := newTestEnv(t, adminSettings())
	ctx := context.Background()
	env.seedAccount(t, "admin", "pw", models.RoleUser)

	require.NoError(t, env.sessions.Bootstrap(ctx))

	hasAdmin, err := env.repo.AdminExists(ctx)
	require.NoError(t, err)
	assert.False(t, hasAdmin)
}

func TestBootstrap_Disabled(t *testing.T) {
	env := newTestEnv(t, BootstrapSettings{Enabled: false, Username: "admin", Password: "admin"})
	ctx := context.Background()

	require.NoError(t, env.sessions.Bootstrap(ctx))

	accounts, err := env.repo.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestBootstrap_PersistsDisableFlag(t *testing.T) {
	boot := adminSettings()
	boot.PersistDisable = true
	env := newTestEnv(t, boot)
	ctx := context.Background()

	require.NoError(t, env.sessions.Bootstrap(ctx))

	v, ok, err := env.repo.GetSetting(ctx, SettingBootstrapDisabled)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "true", v)

	admin := config.AdminConfig{Initialize: true, Username: "admin", Password: "admin"}
	resolved, err := ResolveBootstrap(ctx, env.repo, admin, true)
	require.NoError(t, err)
	assert.False(t, resolved.Enabled)

	admin.Reset = true
	resolved, err = ResolveBootstrap(ctx, env.repo, admin, true)
	require.NoError(t, err)
	assert.True(t, resolved.Enabled)
	v, _, err = env.repo.GetSetting(ctx, SettingBootstrapDisabled)
	require.NoError(t, err)
	assert.Equal(t, "false", v)
}

func TestResolveBootstrap_DevelopmentIgnoresFlag(t *testing.T) {
	env := newTestEnv(t, BootstrapSettings{})
	ctx := context.Background()
	require.NoError(t, env.repo.PutSetting(ctx, SettingBootstrapDisabled, "true"))

	admin := config.AdminConfig{Initialize: true, Username: "admin", Password: "admin", Name: "Development Admin"}
	resolved, err := ResolveBootstrap(ctx, env.repo, admin, false)
	require.NoError(t, err)
	assert.True(t, resolved.Enabled)
	assert.False(t, resolved.PersistDisable)
	assert.Equal(t, "Development Admin", resolved.Name)
}
