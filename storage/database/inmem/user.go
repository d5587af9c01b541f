package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

// groupIDs returns the sorted ids of the groups userID belongs to. The caller holds the store lock.
func (repo *userRepository) groupIDs(userID string) []string {
	ids := make([]string, 0)
	for _, m := range repo.db.membership.rows {
		if m.UserID == userID {
			ids = append(ids, m.GroupID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (repo *userRepository) withGroups(usr user.User) user.User {
	usr.Roles = copyStrings(usr.Roles)
	usr.GroupIDs = repo.groupIDs(usr.ID)
	return usr
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()

	for _, id := range usr.GroupIDs {
		if _, ok := repo.db.group.rows[id]; !ok {
			return user.User{}, user.ErrUnknownGroup
		}
	}
	for _, u := range repo.db.user.rows {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}

	usr.ID = newID()
	stored := usr
	stored.Roles = copyStrings(usr.Roles)
	stored.GroupIDs = nil
	repo.db.user.rows[usr.ID] = stored
	for _, groupID := range usr.GroupIDs {
		repo.db.membership.rows[membershipKey(usr.ID, groupID)] = membership{UserID: usr.ID, GroupID: groupID}
	}
	return repo.withGroups(stored), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	defer repo.db.rlock(ctx)()

	usr, ok := repo.db.user.rows[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return repo.withGroups(usr), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	defer repo.db.rlock(ctx)()

	for _, usr := range repo.db.user.rows {
		if usr.Email == email {
			return repo.withGroups(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	unlock := repo.db.rlock(ctx)
	usrs := make([]user.User, 0, len(repo.db.user.rows))
	for _, usr := range repo.db.user.rows {
		usr = repo.withGroups(usr)
		if filter.Search != "" && !matchesSearch(usr, filter.Search) {
			continue
		}
		if filter.Role != "" && !usr.HasRole(filter.Role) {
			continue
		}
		if filter.GroupID != "" && !core.ContainsString(usr.GroupIDs, filter.GroupID) {
			continue
		}
		usrs = append(usrs, usr)
	}
	unlock()

	sort.Slice(usrs, func(i, j int) bool {
		if usrs[i].LastName != usrs[j].LastName {
			return usrs[i].LastName < usrs[j].LastName
		}
		return usrs[i].Email < usrs[j].Email
	})
	return usrs, nil
}

func matchesSearch(usr user.User, search string) bool {
	for _, field := range []string{usr.FirstName, usr.LastName, usr.Email} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()

	orig, ok := repo.db.user.rows[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	orig.FirstName = usr.FirstName
	orig.LastName = usr.LastName
	orig.IsActive = usr.IsActive
	orig.Roles = copyStrings(usr.Roles)
	orig.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	orig.UpdatedAt = usr.UpdatedAt
	orig.LastLogin = usr.LastLogin
	repo.db.user.rows[usr.ID] = orig
	return repo.withGroups(orig), nil
}
