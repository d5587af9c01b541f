package group

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("group not found")
	ErrNotMember        = errors.New("user is not a member of this group")
	ErrTooManyDelegates = errors.Errorf("a group cannot have more than %d active delegates", MaxActiveDelegates)
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		QueryGroups(ctx context.Context) ([]Group, error)
		AddMember(ctx context.Context, groupID, userID string) error
		RemoveMember(ctx context.Context, groupID, userID string) error
		// MemberIDs returns the ids of the members of every given group, without duplicates.
		MemberIDs(ctx context.Context, groupIDs ...string) ([]string, error)
		CreateDelegate(ctx context.Context, d Delegate) (Delegate, error)
		UpdateDelegate(ctx context.Context, d Delegate) error
		// QueryDelegates lists the terms flagged active of a group (by group) or of a user (by user).
		QueryDelegates(ctx context.Context, filter DelegateFilter) ([]Delegate, error)
	}

	DelegateFilter struct {
		GroupID    string
		UserID     string
		ActiveOnly bool
	}

	Service struct {
		repo   Repository
		usrSvc *user.Service
		tx     core.Transactor
		logger core.Logger
	}
)

func NewService(repo Repository, usrSvc *user.Service, tx core.Transactor, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(usrSvc, "usrSvc"),
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, usrSvc: usrSvc, tx: tx, logger: logger}
}

func (svc *Service) Create(ctx context.Context, ng NewGroup) (Group, error) {
	ng.Clean()
	now := core.NowFunc()
	return svc.repo.CreateGroup(ctx, Group{
		Name:        ng.Name,
		Type:        ng.Type,
		Description: ng.Description,
		UpdatedAt:   &now,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *Service) Query(ctx context.Context) ([]Group, error) {
	return svc.repo.QueryGroups(ctx)
}

func (svc *Service) AddMember(ctx context.Context, groupID, userID string) error {
	if _, err := svc.repo.GetGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := svc.usrSvc.GetByID(ctx, userID); err != nil {
		return err
	}
	return svc.repo.AddMember(ctx, groupID, userID)
}

func (svc *Service) RemoveMember(ctx context.Context, groupID, userID string) error {
	return svc.repo.RemoveMember(ctx, groupID, userID)
}

// Members lists the users of a group, flagging its active delegates.
func (svc *Service) Members(ctx context.Context, groupID string) ([]Member, error) {
	if _, err := svc.repo.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	usrs, err := svc.usrSvc.Query(ctx, user.QueryFilter{GroupID: groupID})
	if err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	delegates, err := svc.ActiveDelegates(ctx, groupID)
	if err != nil {
		return nil, err
	}
	isDelegate := make(map[string]bool, len(delegates))
	for _, d := range delegates {
		isDelegate[d.UserID] = true
	}

	members := make([]Member, 0, len(usrs))
	for _, usr := range usrs {
		members = append(members, Member{
			UserID:     usr.ID,
			Email:      usr.Email,
			FirstName:  usr.FirstName,
			LastName:   usr.LastName,
			IsDelegate: isDelegate[usr.ID],
		})
	}
	return members, nil
}

// ActiveDelegates returns the terms of a group that are open and not expired.
func (svc *Service) ActiveDelegates(ctx context.Context, groupID string) ([]Delegate, error) {
	terms, err := svc.repo.QueryDelegates(ctx, DelegateFilter{GroupID: groupID, ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying delegates")
	}
	return activeAt(terms, core.NowFunc()), nil
}

func activeAt(terms []Delegate, now time.Time) []Delegate {
	active := make([]Delegate, 0, len(terms))
	for _, d := range terms {
		if d.ActiveAt(now) {
			active = append(active, d)
		}
	}
	return active
}

// ToggleDelegate closes the user's open term in the group, or opens a new one.
// Opening fails with ErrTooManyDelegates when the group is full. The delegate role follows the user's
// open terms: granted on opening, revoked when the last one closes.
func (svc *Service) ToggleDelegate(ctx context.Context, groupID, userID string) (Delegate, error) {
	var term Delegate
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.GetGroup(ctx, groupID); err != nil {
			return err
		}
		usr, err := svc.usrSvc.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		now := core.NowFunc()
		active, err := svc.ActiveDelegates(ctx, groupID)
		if err != nil {
			return err
		}
		for _, d := range active {
			if d.UserID == userID {
				term, err = svc.closeTerm(ctx, d, now)
				return err
			}
		}

		if len(active) >= MaxActiveDelegates {
			return ErrTooManyDelegates
		}
		if !core.ContainsString(usr.GroupIDs, groupID) {
			return ErrNotMember
		}
		if term, err = svc.repo.CreateDelegate(ctx, newDelegate(userID, groupID, now)); err != nil {
			return errors.Wrap(err, "creating delegate")
		}
		_, err = svc.usrSvc.GrantRole(ctx, userID, user.RoleDelegate)
		return errors.Wrap(err, "granting delegate role")
	})
	if err != nil {
		return Delegate{}, err
	}

	svc.logger.Info("delegate toggled", map[string]interface{}{
		"group_id": groupID, "user_id": userID, "active": term.IsActive,
	})
	return term, nil
}

func (svc *Service) closeTerm(ctx context.Context, d Delegate, now time.Time) (Delegate, error) {
	d.IsActive = false
	d.EndDate = now
	if err := svc.repo.UpdateDelegate(ctx, d); err != nil {
		return Delegate{}, errors.Wrap(err, "closing delegate term")
	}

	open, err := svc.repo.QueryDelegates(ctx, DelegateFilter{UserID: d.UserID, ActiveOnly: true})
	if err != nil {
		return Delegate{}, errors.Wrap(err, "querying delegate terms")
	}
	if len(activeAt(open, now)) == 0 {
		if _, err = svc.usrSvc.RevokeRole(ctx, d.UserID, user.RoleDelegate); err != nil {
			return Delegate{}, errors.Wrap(err, "revoking delegate role")
		}
	}
	return d, nil
}
