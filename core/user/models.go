package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/access"
)

// Roles
const (
	RoleUser     = access.RoleUser
	RoleDelegate = access.RoleDelegate
	RoleAdmin    = access.RoleAdmin
)

var (
	AllRoles = access.AllRoles

	Roles = []Role{
		{Name: "Étudiant", Value: RoleUser},
		{Name: "Délégué", Value: RoleDelegate},
		{Name: "Administrateur", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	GroupIDs     []string  `json:"group_ids"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) FullName() string {
	return core.CleanString(u.FirstName + " " + u.LastName)
}

// HasRole reports whether u holds role. The base role is always held.
func (u User) HasRole(role string) bool {
	return role == RoleUser || core.ContainsString(u.Roles, role)
}

func (u User) IsAdmin() bool    { return u.HasRole(RoleAdmin) }
func (u User) IsDelegate() bool { return u.HasRole(RoleDelegate) }

// AddRole is a no-op when u already holds role.
func (u *User) AddRole(role string) {
	if !core.ContainsString(u.Roles, role) {
		u.Roles = append(u.Roles, role)
	}
}

func (u *User) RemoveRole(role string) {
	if role == RoleUser {
		return
	}
	roles := u.Roles[:0]
	for _, r := range u.Roles {
		if r != role {
			roles = append(roles, r)
		}
	}
	u.Roles = roles
}

// Principal projects u onto the actor every access check works with.
func (u User) Principal() access.Principal {
	roles := normalizeRoles(u.Roles)
	groups := make([]string, len(u.GroupIDs))
	copy(groups, u.GroupIDs)
	return access.Principal{UserID: u.ID, Roles: roles, GroupIDs: groups}
}

// normalizeRoles prepends the base role and drops duplicates.
func normalizeRoles(roles []string) []string {
	return core.UniqueStrings(append([]string{RoleUser}, roles...))
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email     string   `json:"email" validate:"required,email"`
	FirstName string   `json:"first_name" validate:"required,notblank"`
	LastName  string   `json:"last_name" validate:"required,notblank"`
	Password  string   `json:"password" validate:"required,min=6,max=4096"`
	Roles     []string `json:"roles" validate:"omitempty,dive,allroles"`
	GroupIDs  []string `json:"group_ids" validate:"omitempty,dive,uuid"`
}

func (nu *NewUser) Clean() {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
}

// RegisterUser is the self sign-up form.
type RegisterUser struct {
	Email      string `json:"email" validate:"required,email"`
	FirstName  string `json:"first_name" validate:"required,notblank"`
	LastName   string `json:"last_name" validate:"required,notblank"`
	Password   string `json:"password" validate:"required,min=6,max=4096"`
	AgreeTerms bool   `json:"agree_terms" validate:"required"`
	GroupID    string `json:"group_id" validate:"omitempty,uuid"`
}

func (ru *RegisterUser) Clean() {
	ru.Email = core.CleanString(ru.Email, true /* lower */)
	ru.FirstName = core.CleanString(ru.FirstName)
	ru.LastName = core.CleanString(ru.LastName)
	ru.GroupID = core.CleanString(ru.GroupID)
}

func (ru RegisterUser) NewUser() NewUser {
	nu := NewUser{
		Email:     ru.Email,
		FirstName: ru.FirstName,
		LastName:  ru.LastName,
		Password:  ru.Password,
	}
	if ru.GroupID != "" {
		nu.GroupIDs = []string{ru.GroupID}
	}
	return nu
}

type QueryFilter struct {
	Search  string `query:"search"`
	Role    string `query:"role"`
	GroupID string `query:"group_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true /* lower */)
}
