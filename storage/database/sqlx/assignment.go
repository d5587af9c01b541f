package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/assignment"
)

var assignmentColumns = []string{
	"id", "title", "description", "due_date", "subject_id", "created_by", "submission_type",
	"submission_url", "submission_other", "course_location", "type", "is_completed", "created_at", "updated_at",
}

type assignmentRow struct {
	ID              string     `db:"id"`
	Title           string     `db:"title"`
	Description     *string    `db:"description"`
	DueDate         time.Time  `db:"due_date"`
	SubjectID       *string    `db:"subject_id"`
	CreatedBy       *string    `db:"created_by"`
	SubmissionType  string     `db:"submission_type"`
	SubmissionURL   *string    `db:"submission_url"`
	SubmissionOther *string    `db:"submission_other"`
	CourseLocation  *string    `db:"course_location"`
	Type            string     `db:"type"`
	IsCompleted     bool       `db:"is_completed"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at"`
}

func (r assignmentRow) assignment(groupIDs []string) assignment.Assignment {
	a := assignment.Assignment{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		DueDate:         r.DueDate.UTC(),
		SubjectID:       core.StringValue(r.SubjectID),
		GroupIDs:        groupIDs,
		CreatedBy:       r.CreatedBy,
		SubmissionType:  assignment.SubmissionType(r.SubmissionType),
		SubmissionURL:   r.SubmissionURL,
		SubmissionOther: r.SubmissionOther,
		CourseLocation:  r.CourseLocation,
		Type:            assignment.Type(r.Type),
		IsCompleted:     r.IsCompleted,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.UpdatedAt != nil {
		updated := r.UpdatedAt.UTC()
		a.UpdatedAt = &updated
	}
	return a
}

type assignmentRepository struct {
	repository
	tx core.Transactor
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB, tx core.Transactor) *assignmentRepository {
	return &assignmentRepository{repository: repository{db: db}, tx: tx}
}

func (repo assignmentRepository) groupIDs(ctx context.Context, ids ...string) (map[string][]string, error) {
	var rows []struct {
		AssignmentID string `db:"assignment_id"`
		GroupID      string `db:"group_id"`
	}
	err := repo.selectAll(ctx, &rows, psql.Select("assignment_id", "group_id").
		From("assignment_group").
		Where(anyOf("assignment_id", ids)).
		OrderBy("group_id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying assignment groups")
	}

	groups := make(map[string][]string, len(ids))
	for _, r := range rows {
		groups[r.AssignmentID] = append(groups[r.AssignmentID], r.GroupID)
	}
	return groups, nil
}

func (repo assignmentRepository) withGroups(ctx context.Context, rows []assignmentRow) ([]assignment.Assignment, error) {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	groups, err := repo.groupIDs(ctx, ids...)
	if err != nil {
		return nil, err
	}
	list := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.assignment(groups[r.ID]))
	}
	return list, nil
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	a.ID = uuid.New().String()
	err := repo.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := repo.run(ctx, psql.Insert("assignment").
			Columns(assignmentColumns...).
			Values(a.ID, a.Title, a.Description, a.DueDate.UTC(), core.StringPtr(a.SubjectID), a.CreatedBy,
				string(a.SubmissionType), a.SubmissionURL, a.SubmissionOther, a.CourseLocation, string(a.Type),
				a.IsCompleted, a.CreatedAt.UTC(), a.UpdatedAt))
		if err != nil {
			return errors.Wrap(err, "inserting assignment")
		}

		ins := psql.Insert("assignment_group").Columns("assignment_id", "group_id")
		for _, groupID := range a.GroupIDs {
			ins = ins.Values(a.ID, groupID)
		}
		_, err = repo.run(ctx, ins)
		return errors.Wrap(err, "inserting assignment groups")
	})
	if err != nil {
		return assignment.Assignment{}, err
	}
	return a, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	if !validID(id) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	var row assignmentRow
	if err := repo.get(ctx, &row, psql.Select(assignmentColumns...).From("assignment").Where(sq.Eq{"id": id})); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "getting assignment")
	}
	list, err := repo.withGroups(ctx, []assignmentRow{row})
	if err != nil {
		return assignment.Assignment{}, err
	}
	return list[0], nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	res, err := repo.run(ctx, psql.Update("assignment").
		SetMap(map[string]interface{}{
			"title":            a.Title,
			"description":      a.Description,
			"due_date":         a.DueDate.UTC(),
			"subject_id":       core.StringPtr(a.SubjectID),
			"created_by":       a.CreatedBy,
			"submission_type":  string(a.SubmissionType),
			"submission_url":   a.SubmissionURL,
			"submission_other": a.SubmissionOther,
			"course_location":  a.CourseLocation,
			"type":             string(a.Type),
			"is_completed":     a.IsCompleted,
			"updated_at":       a.UpdatedAt,
		}).
		Where(sq.Eq{"id": a.ID}))
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return repo.GetAssignment(ctx, a.ID)
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	if !validID(id) {
		return assignment.ErrNotFound
	}
	res, err := repo.run(ctx, psql.Delete("assignment").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter assignment.QueryFilter, ordering core.DBOrdering, page *core.Pagination) ([]assignment.Assignment, int, error) {
	q := psql.Select(assignmentColumns...).From("assignment")

	// assignments of any of the scope groups
	if filter.GroupIDs != nil {
		q = q.Where(sq.Expr("id IN (SELECT assignment_id FROM assignment_group WHERE ?)", anyOf("group_id", filter.GroupIDs)))
	}
	if filter.GroupID != "" {
		if !validID(filter.GroupID) {
			return []assignment.Assignment{}, 0, nil
		}
		q = q.Where("id IN (SELECT assignment_id FROM assignment_group WHERE group_id = ?)", filter.GroupID)
	}
	if filter.SubjectID != "" {
		if !validID(filter.SubjectID) {
			return []assignment.Assignment{}, 0, nil
		}
		q = q.Where(sq.Eq{"subject_id": filter.SubjectID})
	}
	if filter.Type != "" {
		q = q.Where(sq.Eq{"type": string(filter.Type)})
	}
	if filter.DueFrom != nil {
		q = q.Where(sq.GtOrEq{"due_date": filter.DueFrom.UTC()})
	}
	if filter.DueBefore != nil {
		q = q.Where(sq.Lt{"due_date": filter.DueBefore.UTC()})
	}
	if filter.IsCompleted != nil {
		q = q.Where(sq.Eq{"is_completed": *filter.IsCompleted})
	}

	total, err := repo.count(ctx, q)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting assignments")
	}

	q = q.OrderBy(ordering.String(), "id")
	if page != nil {
		q = q.Limit(uint64(page.Limit())).Offset(uint64(page.Offset()))
	}
	var rows []assignmentRow
	if err = repo.selectAll(ctx, &rows, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying assignments")
	}
	list, err := repo.withGroups(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
