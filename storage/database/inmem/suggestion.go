package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/suggestion"
)

// errForeignKey mirrors the database refusing to delete an assignment still referenced by suggestions.
var errForeignKey = errors.New("assignment is still referenced by suggestions")

type suggestionRepository struct {
	db *DB
}

var (
	_ suggestion.Repository = (*suggestionRepository)(nil) // interface compliance check
)

func NewSuggestionRepository(db *DB) *suggestionRepository {
	return &suggestionRepository{db: db}
}

func copySuggestion(s suggestion.Suggestion) suggestion.Suggestion {
	s.ProposedChanges = append(suggestion.Patch(nil), s.ProposedChanges...)
	originals := make(suggestion.Originals, len(s.OriginalValues))
	for k, v := range s.OriginalValues {
		originals[k] = v
	}
	s.OriginalValues = originals
	return s
}

func (repo *suggestionRepository) CreateSuggestion(ctx context.Context, s suggestion.Suggestion) (suggestion.Suggestion, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.assignment.rows[s.AssignmentID]; !ok {
		return suggestion.Suggestion{}, errors.New("suggestion references an unknown assignment")
	}

	s.ID = newID()
	repo.db.suggestion.rows[s.ID] = copySuggestion(s)
	return copySuggestion(s), nil
}

func (repo *suggestionRepository) GetSuggestion(ctx context.Context, id string) (suggestion.Suggestion, error) {
	defer repo.db.rlock(ctx)()

	if s, ok := repo.db.suggestion.rows[id]; ok {
		return copySuggestion(s), nil
	}
	return suggestion.Suggestion{}, suggestion.ErrNotFound
}

func (repo *suggestionRepository) QuerySuggestions(ctx context.Context, filter suggestion.QueryFilter, page *core.Pagination) ([]suggestion.Suggestion, int, error) {
	unlock := repo.db.rlock(ctx)
	var groupsOf map[string][]string
	if filter.GroupIDs != nil {
		groupsOf = make(map[string][]string, len(repo.db.assignment.rows))
		for id, a := range repo.db.assignment.rows {
			groupsOf[id] = a.GroupIDs
		}
	}

	list := make([]suggestion.Suggestion, 0)
	for _, s := range repo.db.suggestion.rows {
		if filter.GroupIDs != nil && !intersects(groupsOf[s.AssignmentID], filter.GroupIDs) {
			continue
		}
		if filter.AssignmentID != "" && s.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		list = append(list, copySuggestion(s))
	}
	unlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})

	total := len(list)
	if page != nil {
		list = paginate(list, *page)
	}
	return list, total, nil
}

func (repo *suggestionRepository) TransitionSuggestion(ctx context.Context, id string, to suggestion.Status, reviewerID string, at time.Time) (suggestion.Suggestion, error) {
	defer repo.db.lock(ctx)()

	s, ok := repo.db.suggestion.rows[id]
	if !ok {
		return suggestion.Suggestion{}, suggestion.ErrNotFound
	}
	if s.Status != suggestion.StatusPending {
		return suggestion.Suggestion{}, suggestion.ErrAlreadyTerminal
	}
	s.Status = to
	s.ReviewedBy = &reviewerID
	s.ReviewedAt = &at
	repo.db.suggestion.rows[id] = s
	return copySuggestion(s), nil
}

func (repo *suggestionRepository) DeleteSuggestionsByAssignment(ctx context.Context, assignmentID string) error {
	defer repo.db.lock(ctx)()

	for id, s := range repo.db.suggestion.rows {
		if s.AssignmentID == assignmentID {
			delete(repo.db.suggestion.rows, id)
		}
	}
	return nil
}
