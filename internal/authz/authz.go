// Package authz holds the owner-or-admin decision used before any mutation
// of an account or peer.
package authz

import "github.com/wgdashboard/wg_dashboard/internal/models"

// IsAuthorized reports whether the actor may act on a resource owned by
// targetOwnerID.
func IsAuthorized(targetOwnerID, actorID uint, actorRole string) bool {
	return actorRole == models.RoleAdmin || actorID == targetOwnerID
}

// CanAssignRole reports whether an actor holding actorRole may write newRole
// onto an account. Only admins may change a role to something other than
// their own, which blocks self-escalation independently of IsAuthorized.
func CanAssignRole(actorRole, newRole string) bool {
	return actorRole == models.RoleAdmin || actorRole == newRole
}

// Actor is the authenticated caller as seen by the services.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) CanAccess(targetOwnerID uint) bool {
	return IsAuthorized(targetOwnerID, a.ID, a.Role)
}
