package inmemdb

import (
	"context"
	"sort"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func copyAssignment(a assignment.Assignment) assignment.Assignment {
	a.GroupIDs = copyStrings(a.GroupIDs)
	return a
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	defer repo.db.lock(ctx)()

	a.ID = newID()
	repo.db.assignment.rows[a.ID] = copyAssignment(a)
	return copyAssignment(a), nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	defer repo.db.rlock(ctx)()

	if a, ok := repo.db.assignment.rows[id]; ok {
		return copyAssignment(a), nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	defer repo.db.lock(ctx)()

	orig, ok := repo.db.assignment.rows[a.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	a.GroupIDs = orig.GroupIDs
	a.CreatedAt = orig.CreatedAt
	repo.db.assignment.rows[a.ID] = copyAssignment(a)
	return copyAssignment(a), nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	for _, s := range repo.db.suggestion.rows {
		if s.AssignmentID == id {
			return errForeignKey
		}
	}
	if _, ok := repo.db.assignment.rows[id]; !ok {
		return assignment.ErrNotFound
	}
	delete(repo.db.assignment.rows, id)
	return nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, filter assignment.QueryFilter, ordering core.DBOrdering, page *core.Pagination) ([]assignment.Assignment, int, error) {
	unlock := repo.db.rlock(ctx)
	list := make([]assignment.Assignment, 0)
	for _, a := range repo.db.assignment.rows {
		if matchesAssignment(a, filter) {
			list = append(list, copyAssignment(a))
		}
	}
	unlock()

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.DueDate.Equal(b.DueDate) {
			if ordering.Ascending {
				return a.DueDate.Before(b.DueDate)
			}
			return a.DueDate.After(b.DueDate)
		}
		return a.ID < b.ID
	})

	total := len(list)
	if page != nil {
		list = paginate(list, *page)
	}
	return list, total, nil
}

func matchesAssignment(a assignment.Assignment, f assignment.QueryFilter) bool {
	if f.GroupIDs != nil && !intersects(a.GroupIDs, f.GroupIDs) {
		return false
	}
	if f.GroupID != "" && !core.ContainsString(a.GroupIDs, f.GroupID) {
		return false
	}
	if f.SubjectID != "" && a.SubjectID != f.SubjectID {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.DueFrom != nil && a.DueDate.Before(*f.DueFrom) {
		return false
	}
	if f.DueBefore != nil && !a.DueDate.Before(*f.DueBefore) {
		return false
	}
	if f.IsCompleted != nil && a.IsCompleted != *f.IsCompleted {
		return false
	}
	return true
}

func intersects(a, b []string) bool {
	for _, s := range a {
		if core.ContainsString(b, s) {
			return true
		}
	}
	return false
}

// paginate returns the requested page of list, empty past the end.
func paginate[T any](list []T, page core.Pagination) []T {
	offset := page.Offset()
	if offset < 0 || offset >= len(list) {
		return []T{}
	}
	end := offset + page.Limit()
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}
