package user

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
)

var (
	// errors
	ErrNotFound     = errors.New("user not found")
	ErrEmailExists  = errors.New("a user with this email already exists")
	ErrUnknownGroup = errors.New("group not found")
)

type (
	Repository interface {
		// CreateUser stores usr and its memberships (usr.GroupIDs).
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of the names or the email.
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		// UpdateUser saves names, roles, password hash, active flag and timestamps. Memberships are untouched.
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, logger: logger}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string) error {
	_, err := svc.repo.GetUserByEmail(ctx, email)
	switch errors.Cause(err) {
	case ErrNotFound:
		return nil
	case nil:
		return core.FieldInvalid("email", ErrEmailExists)
	default:
		return errors.Wrap(err, "checking email uniqueness")
	}
}

// Create stores a new active user. The base role is always granted.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	now := core.NowFunc()
	usr := User{
		Email:     nu.Email,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		IsActive:  true,
		Roles:     normalizeRoles(nu.Roles),
		GroupIDs:  core.UniqueStrings(nu.GroupIDs),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrUnknownGroup {
			return User{}, core.FieldInvalid("group_id", err)
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.logger.Info("user created", map[string]interface{}{"user_id": usr.ID, "groups": usr.GroupIDs})
	return usr, nil
}

// Register signs a student up, joining the chosen group if any.
func (svc *Service) Register(ctx context.Context, ru RegisterUser) (User, error) {
	ru.Clean()
	return svc.Create(ctx, ru.NewUser())
}

// Authenticate returns the active user matching email and password.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if !usr.IsActive {
		return User{}, ErrNotFound
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.NowFunc()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// GrantRole adds role to the user with id.
func (svc *Service) GrantRole(ctx context.Context, id, role string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if core.ContainsString(usr.Roles, role) {
		return usr, nil
	}
	usr.AddRole(role)
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// RevokeRole removes role from the user with id. The base role cannot be revoked.
func (svc *Service) RevokeRole(ctx context.Context, id, role string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !core.ContainsString(usr.Roles, role) {
		return usr, nil
	}
	usr.RemoveRole(role)
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}
