package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wgdashboard/wg_dashboard/internal/authz"
	"github.com/wgdashboard/wg_dashboard/internal/events"
	"github.com/wgdashboard/wg_dashboard/internal/logging"
	"github.com/wgdashboard/wg_dashboard/internal/models"
	"github.com/wgdashboard/wg_dashboard/internal/repo"
)

type UserService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

type ProfileUpdate struct {
	ID       uint    `json:"id"`
	Username string  `json:"username"`
	Name     *string `json:"name"`
	Role     string  `json:"role"`
}

func (s *UserService) List(ctx context.Context) ([]models.AccountProfile, error) {
	items, err := s.Repo.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", ErrInternal, err)
	}
	out := make([]models.AccountProfile, 0, len(items))
	for i := range items {
		out = append(out, items[i].Profile())
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id uint, actor authz.Actor) (*models.AccountProfile, error) {
	if !actor.CanAccess(id) {
		return nil, fmt.Errorf("%w: account %d", ErrNotFound, id)
	}
	acc, err := s.Repo.FindAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: account %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	profile := acc.Profile()
	return &profile, nil
}

// Update rewrites username, name and role of account id. A non-admin may
// only keep the role they already hold; that check runs before ownership.
// The actor's role is read from storage, not from the token that carried it.
func (s *UserService) Update(ctx context.Context, id uint, req ProfileUpdate, actor authz.Actor) (*models.AccountProfile, error) {
	l := logging.FromContext(ctx).With("svc", "users.update", "target_id", id, "actor_id", actor.ID)

	if req.ID != id {
		return nil, fmt.Errorf("%w: id in path and body differ", ErrBadRequest)
	}
	current, err := s.Repo.FindAccountByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("update_failed", "status", 404, "reason", "actor account gone")
			return nil, fmt.Errorf("%w: account %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	actor.Role = current.Role

	if !authz.CanAssignRole(actor.Role, req.Role) {
		l.Warn("update_failed", "status", 403, "reason", "role change", "role", req.Role)
		return nil, fmt.Errorf("%w: cannot assign role %q", ErrForbiddenRole, req.Role)
	}
	if !actor.CanAccess(id) {
		l.Warn("update_failed", "status", 404, "reason", "not authorized")
		return nil, fmt.Errorf("%w: account %d", ErrNotFound, id)
	}
	if req.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrBadRequest)
	}
	if !models.IsValidRole(req.Role) {
		return nil, fmt.Errorf("%w: role %q is not valid", ErrBadRequest, req.Role)
	}

	taken, err := s.Repo.UsernameTaken(ctx, req.Username, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if taken {
		return nil, fmt.Errorf("%w: username already taken", ErrBadRequest)
	}

	name := normalizeName(req.Name)
	if err := s.Repo.UpdateAccountProfile(ctx, id, req.Username, name, req.Role); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, fmt.Errorf("%w: account %d", ErrNotFound, id)
		case errors.Is(err, repo.ErrDuplicate):
			return nil, fmt.Errorf("%w: username already taken", ErrBadRequest)
		}
		l.Error("update_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("%w: update account: %v", ErrInternal, err)
	}

	publish(ctx, s.Events, events.New(events.UserUpdated, id, map[string]any{"actor_id": actor.ID, "role": req.Role}))
	l.Info("update_successful")
	return &models.AccountProfile{ID: id, Username: req.Username, Name: name, Role: req.Role}, nil
}

// Delete removes the account and all of its peers.
func (s *UserService) Delete(ctx context.Context, id uint, actor authz.Actor) error {
	l := logging.FromContext(ctx).With("svc", "users.delete", "target_id", id, "actor_id", actor.ID)

	if !actor.CanAccess(id) {
		return fmt.Errorf("%w: account %d", ErrNotFound, id)
	}
	if err := s.Repo.DeleteAccount(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: account %d", ErrNotFound, id)
		}
		l.Error("delete_failed", "status", 500, "error", err)
		return fmt.Errorf("%w: delete account: %v", ErrInternal, err)
	}

	publish(ctx, s.Events, events.New(events.UserDeleted, id, map[string]any{"actor_id": actor.ID}))
	l.Info("delete_successful")
	return nil
}
