package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/user"
	"github.com/NoheilaRamdani/sae401/storage/database"
)

var userColumns = []string{
	"id", "email", "first_name", "last_name", "is_active", "roles", "password_hash",
	"created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

func (r userRow) user(groupIDs []string) user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		GroupIDs:     groupIDs,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	repository
	tx core.Transactor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{repository: repository{db: db}, tx: database.NewTransactor(db)}
}

// groupIDs returns the memberships of every given user.
func (repo userRepository) groupIDs(ctx context.Context, userIDs ...string) (map[string][]string, error) {
	var rows []struct {
		UserID  string `db:"user_id"`
		GroupID string `db:"group_id"`
	}
	err := repo.selectAll(ctx, &rows, psql.Select("user_id", "group_id").
		From("user_group").
		Where(anyOf("user_id", userIDs)).
		OrderBy("group_id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying memberships")
	}

	groups := make(map[string][]string, len(userIDs))
	for _, id := range userIDs {
		groups[id] = []string{}
	}
	for _, r := range rows {
		groups[r.UserID] = append(groups[r.UserID], r.GroupID)
	}
	return groups, nil
}

func (repo userRepository) getOne(ctx context.Context, where sq.Sqlizer) (user.User, error) {
	var row userRow
	if err := repo.get(ctx, &row, psql.Select(userColumns...).From(`"user"`).Where(where)); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	groups, err := repo.groupIDs(ctx, row.ID)
	if err != nil {
		return user.User{}, err
	}
	return row.user(groups[row.ID]), nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	err := repo.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := repo.run(ctx, psql.Insert(`"user"`).
			Columns(userColumns...).
			Values(usr.ID, usr.Email, usr.FirstName, usr.LastName, usr.IsActive, pq.StringArray(usr.Roles),
				usr.PasswordHash, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), nullTime(usr.LastLogin)))
		if err != nil {
			if pqErrCode(err) == pgUniqueViolation {
				return user.ErrEmailExists
			}
			return errors.Wrap(err, "inserting user")
		}

		if len(usr.GroupIDs) == 0 {
			return nil
		}
		ins := psql.Insert("user_group").Columns("user_id", "group_id")
		for _, groupID := range usr.GroupIDs {
			if !validID(groupID) {
				return user.ErrUnknownGroup
			}
			ins = ins.Values(usr.ID, groupID)
		}
		if _, err = repo.run(ctx, ins); err != nil {
			if pqErrCode(err) == pgForeignKeyViolation {
				return user.ErrUnknownGroup
			}
			return errors.Wrap(err, "inserting memberships")
		}
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !validID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.getOne(ctx, sq.Eq{"id": id})
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getOne(ctx, sq.Eq{"email": email})
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	q := psql.Select(userColumns...).From(`"user"`).OrderBy("last_name", "email")

	// users with a name or email matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		q = q.Where(sq.Or{
			sq.ILike{"first_name": val},
			sq.ILike{"last_name": val},
			sq.ILike{"email": val},
		})
	}
	if filter.Role != "" {
		q = q.Where("? = ANY(roles)", filter.Role)
	}
	if filter.GroupID != "" {
		if !validID(filter.GroupID) {
			return []user.User{}, nil
		}
		q = q.Where("id IN (SELECT user_id FROM user_group WHERE group_id = ?)", filter.GroupID)
	}

	var rows []userRow
	if err := repo.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	groups, err := repo.groupIDs(ctx, ids...)
	if err != nil {
		return nil, err
	}

	usrs := make([]user.User, 0, len(rows))
	for _, r := range rows {
		usrs = append(usrs, r.user(groups[r.ID]))
	}
	return usrs, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.run(ctx, psql.Update(`"user"`).
		SetMap(map[string]interface{}{
			"first_name":    usr.FirstName,
			"last_name":     usr.LastName,
			"is_active":     usr.IsActive,
			"roles":         pq.StringArray(usr.Roles),
			"password_hash": usr.PasswordHash,
			"updated_at":    usr.UpdatedAt.UTC(),
			"last_login":    nullTime(usr.LastLogin),
		}).
		Where(sq.Eq{"id": usr.ID}))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
