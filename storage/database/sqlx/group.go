package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core/group"
	"github.com/NoheilaRamdani/sae401/core/user"
)

var (
	groupColumns    = []string{"id", "name", "type", "description", "updated_at"}
	delegateColumns = []string{"id", "user_id", "group_id", "start_date", "end_date", "is_active"}
)

type groupRow struct {
	ID          string     `db:"id"`
	Name        string     `db:"name"`
	Type        string     `db:"type"`
	Description *string    `db:"description"`
	UpdatedAt   *time.Time `db:"updated_at"`
}

func (r groupRow) group() group.Group {
	return group.Group(r)
}

type delegateRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	GroupID   string    `db:"group_id"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	IsActive  bool      `db:"is_active"`
}

func (r delegateRow) delegate() group.Delegate {
	return group.Delegate{
		ID:        r.ID,
		UserID:    r.UserID,
		GroupID:   r.GroupID,
		StartDate: r.StartDate.UTC(),
		EndDate:   r.EndDate.UTC(),
		IsActive:  r.IsActive,
	}
}

type groupRepository struct {
	repository
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) *groupRepository {
	return &groupRepository{repository{db: db}}
}

func (repo groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	grp.ID = uuid.New().String()
	_, err := repo.run(ctx, psql.Insert(`"group"`).
		Columns(groupColumns...).
		Values(grp.ID, grp.Name, grp.Type, grp.Description, grp.UpdatedAt))
	if err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return grp, nil
}

func (repo groupRepository) GetGroup(ctx context.Context, id string) (group.Group, error) {
	if !validID(id) {
		return group.Group{}, group.ErrNotFound
	}
	var row groupRow
	if err := repo.get(ctx, &row, psql.Select(groupColumns...).From(`"group"`).Where(sq.Eq{"id": id})); err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "getting group")
	}
	return row.group(), nil
}

func (repo groupRepository) QueryGroups(ctx context.Context) ([]group.Group, error) {
	var rows []groupRow
	if err := repo.selectAll(ctx, &rows, psql.Select(groupColumns...).From(`"group"`).OrderBy("name")); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	grps := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		grps = append(grps, r.group())
	}
	return grps, nil
}

func (repo groupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	if !validID(groupID) {
		return group.ErrNotFound
	}
	if !validID(userID) {
		return user.ErrNotFound
	}
	_, err := repo.run(ctx, psql.Insert("user_group").
		Columns("user_id", "group_id").
		Values(userID, groupID).
		Suffix("ON CONFLICT DO NOTHING"))
	if err != nil {
		if pqErrCode(err) == pgForeignKeyViolation {
			return group.ErrNotFound
		}
		return errors.Wrap(err, "adding member")
	}
	return nil
}

func (repo groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	if !validID(groupID) || !validID(userID) {
		return nil
	}
	_, err := repo.run(ctx, psql.Delete("user_group").Where(sq.Eq{"user_id": userID, "group_id": groupID}))
	return errors.Wrap(err, "removing member")
}

func (repo groupRepository) MemberIDs(ctx context.Context, groupIDs ...string) ([]string, error) {
	var ids []string
	err := repo.selectAll(ctx, &ids, psql.Select("DISTINCT user_id").
		From("user_group").
		Where(anyOf("group_id", groupIDs)).
		OrderBy("user_id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	return ids, nil
}

func (repo groupRepository) CreateDelegate(ctx context.Context, d group.Delegate) (group.Delegate, error) {
	d.ID = uuid.New().String()
	_, err := repo.run(ctx, psql.Insert("delegate").
		Columns(delegateColumns...).
		Values(d.ID, d.UserID, d.GroupID, d.StartDate.UTC(), d.EndDate.UTC(), d.IsActive))
	if err != nil {
		return group.Delegate{}, errors.Wrap(err, "inserting delegate")
	}
	return d, nil
}

func (repo groupRepository) UpdateDelegate(ctx context.Context, d group.Delegate) error {
	res, err := repo.run(ctx, psql.Update("delegate").
		Set("end_date", d.EndDate.UTC()).
		Set("is_active", d.IsActive).
		Where(sq.Eq{"id": d.ID}))
	if err != nil {
		return errors.Wrap(err, "updating delegate")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return group.ErrNotFound
	}
	return nil
}

func (repo groupRepository) QueryDelegates(ctx context.Context, filter group.DelegateFilter) ([]group.Delegate, error) {
	q := psql.Select(delegateColumns...).From("delegate").OrderBy("start_date")
	if filter.GroupID != "" {
		if !validID(filter.GroupID) {
			return []group.Delegate{}, nil
		}
		q = q.Where(sq.Eq{"group_id": filter.GroupID})
	}
	if filter.UserID != "" {
		if !validID(filter.UserID) {
			return []group.Delegate{}, nil
		}
		q = q.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.ActiveOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}

	var rows []delegateRow
	if err := repo.selectAll(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying delegates")
	}
	terms := make([]group.Delegate, 0, len(rows))
	for _, r := range rows {
		terms = append(terms, r.delegate())
	}
	return terms, nil
}
