package inmemdb

import (
	"context"
	"sort"

	"github.com/NoheilaRamdani/sae401/core/group"
	"github.com/NoheilaRamdani/sae401/core/user"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) *groupRepository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	defer repo.db.lock(ctx)()

	grp.ID = newID()
	repo.db.group.rows[grp.ID] = grp
	return grp, nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, id string) (group.Group, error) {
	defer repo.db.rlock(ctx)()

	if grp, ok := repo.db.group.rows[id]; ok {
		return grp, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) QueryGroups(ctx context.Context) ([]group.Group, error) {
	defer repo.db.rlock(ctx)()

	grps := make([]group.Group, 0, len(repo.db.group.rows))
	for _, grp := range repo.db.group.rows {
		grps = append(grps, grp)
	}
	sort.Slice(grps, func(i, j int) bool { return grps[i].Name < grps[j].Name })
	return grps, nil
}

func (repo *groupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.group.rows[groupID]; !ok {
		return group.ErrNotFound
	}
	if _, ok := repo.db.user.rows[userID]; !ok {
		return user.ErrNotFound
	}
	repo.db.membership.rows[membershipKey(userID, groupID)] = membership{UserID: userID, GroupID: groupID}
	return nil
}

func (repo *groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	defer repo.db.lock(ctx)()
	delete(repo.db.membership.rows, membershipKey(userID, groupID))
	return nil
}

func (repo *groupRepository) MemberIDs(ctx context.Context, groupIDs ...string) ([]string, error) {
	wanted := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}

	defer repo.db.rlock(ctx)()

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, m := range repo.db.membership.rows {
		if wanted[m.GroupID] && !seen[m.UserID] {
			seen[m.UserID] = true
			ids = append(ids, m.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *groupRepository) CreateDelegate(ctx context.Context, d group.Delegate) (group.Delegate, error) {
	defer repo.db.lock(ctx)()

	d.ID = newID()
	repo.db.delegate.rows[d.ID] = d
	return d, nil
}

func (repo *groupRepository) UpdateDelegate(ctx context.Context, d group.Delegate) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.delegate.rows[d.ID]; !ok {
		return group.ErrNotFound
	}
	repo.db.delegate.rows[d.ID] = d
	return nil
}

func (repo *groupRepository) QueryDelegates(ctx context.Context, filter group.DelegateFilter) ([]group.Delegate, error) {
	defer repo.db.rlock(ctx)()

	terms := make([]group.Delegate, 0)
	for _, d := range repo.db.delegate.rows {
		if filter.GroupID != "" && d.GroupID != filter.GroupID {
			continue
		}
		if filter.UserID != "" && d.UserID != filter.UserID {
			continue
		}
		if filter.ActiveOnly && !d.IsActive {
			continue
		}
		terms = append(terms, d)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].StartDate.Before(terms[j].StartDate) })
	return terms, nil
}
