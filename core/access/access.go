// Package access decides what a principal may see and change.
// Every check is a pure predicate; callers turn a false result into ErrDenied.
package access

import "github.com/pkg/errors"

// Roles
const (
	RoleUser     = "ROLE_USER" // base role, always granted
	RoleDelegate = "ROLE_DELEGATE"
	RoleAdmin    = "ROLE_ADMIN"
)

var (
	AllRoles = []string{RoleUser, RoleDelegate, RoleAdmin}

	ErrDenied = errors.New("permission denied")
)

// Principal is the authenticated actor of a request.
type Principal struct {
	UserID   string
	Roles    []string
	GroupIDs []string
}

func (p Principal) HasRole(role string) bool {
	if role == RoleUser {
		return true
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p Principal) IsAdmin() bool { return p.HasRole(RoleAdmin) }

// IsDelegate reports the delegate capability. Admins hold every capability.
func (p Principal) IsDelegate() bool { return p.IsAdmin() || p.HasRole(RoleDelegate) }

func (p Principal) InGroup(groupID string) bool {
	for _, id := range p.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// SharesGroup reports whether any of groupIDs is one of the principal's groups.
func (p Principal) SharesGroup(groupIDs []string) bool {
	for _, id := range groupIDs {
		if p.InGroup(id) {
			return true
		}
	}
	return false
}

// Resource is anything scoped by groups, like an assignment.
type Resource interface {
	ScopeGroupIDs() []string
	CreatorID() string
}

func CanView(p Principal, r Resource) bool {
	if p.IsAdmin() {
		return true
	}
	return p.SharesGroup(r.ScopeGroupIDs())
}

func CanMutate(p Principal, r Resource) bool {
	if p.IsAdmin() {
		return true
	}
	if creator := r.CreatorID(); creator != "" && creator == p.UserID {
		return true
	}
	return p.SharesGroup(r.ScopeGroupIDs())
}

// CanReview checks a suggestion reviewer against the groups of the suggestion's assignment.
func CanReview(p Principal, assignment Resource) bool {
	if p.IsAdmin() {
		return true
	}
	return p.HasRole(RoleDelegate) && p.SharesGroup(assignment.ScopeGroupIDs())
}

// ScopeGroupIDs returns the group filter for listings: nil means unrestricted.
func ScopeGroupIDs(p Principal) []string {
	if p.IsAdmin() {
		return nil
	}
	if p.GroupIDs == nil {
		return []string{}
	}
	return p.GroupIDs
}
