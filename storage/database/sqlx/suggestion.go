package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/suggestion"
	"github.com/NoheilaRamdani/sae401/storage/database"
)

var suggestionColumns = []string{
	"id", "assignment_id", "suggested_by", "message", "proposed_changes", "original_values",
	"status", "created_at", "reviewed_by", "reviewed_at",
}

type suggestionRow struct {
	ID              string     `db:"id"`
	AssignmentID    string     `db:"assignment_id"`
	SuggestedBy     string     `db:"suggested_by"`
	Message         *string    `db:"message"`
	ProposedChanges []byte     `db:"proposed_changes"`
	OriginalValues  []byte     `db:"original_values"`
	Status          string     `db:"status"`
	CreatedAt       time.Time  `db:"created_at"`
	ReviewedBy      *string    `db:"reviewed_by"`
	ReviewedAt      *time.Time `db:"reviewed_at"`
}

func (r suggestionRow) suggestion() (suggestion.Suggestion, error) {
	s := suggestion.Suggestion{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		SuggestedBy:  r.SuggestedBy,
		Message:      r.Message,
		Status:       suggestion.Status(r.Status),
		CreatedAt:    r.CreatedAt.UTC(),
		ReviewedBy:   r.ReviewedBy,
	}
	if err := json.Unmarshal(r.ProposedChanges, &s.ProposedChanges); err != nil {
		return suggestion.Suggestion{}, errors.Wrap(err, "decoding proposed changes")
	}
	if err := json.Unmarshal(r.OriginalValues, &s.OriginalValues); err != nil {
		return suggestion.Suggestion{}, errors.Wrap(err, "decoding original values")
	}
	if r.ReviewedAt != nil {
		at := r.ReviewedAt.UTC()
		s.ReviewedAt = &at
	}
	return s, nil
}

type suggestionRepository struct {
	repository
}

var _ suggestion.Repository = (*suggestionRepository)(nil) // interface compliance check

func NewSuggestionRepository(db *sqlx.DB) *suggestionRepository {
	return &suggestionRepository{repository{db: db}}
}

func (repo suggestionRepository) CreateSuggestion(ctx context.Context, s suggestion.Suggestion) (suggestion.Suggestion, error) {
	changes, err := json.Marshal(s.ProposedChanges)
	if err != nil {
		return suggestion.Suggestion{}, errors.Wrap(err, "encoding proposed changes")
	}
	originals, err := json.Marshal(s.OriginalValues)
	if err != nil {
		return suggestion.Suggestion{}, errors.Wrap(err, "encoding original values")
	}

	s.ID = uuid.New().String()
	_, err = repo.run(ctx, psql.Insert("suggestion").
		Columns(suggestionColumns...).
		Values(s.ID, s.AssignmentID, s.SuggestedBy, s.Message, string(changes), string(originals),
			string(s.Status), s.CreatedAt.UTC(), s.ReviewedBy, s.ReviewedAt))
	if err != nil {
		return suggestion.Suggestion{}, errors.Wrap(err, "inserting suggestion")
	}
	return s, nil
}

// GetSuggestion reads the row FOR UPDATE inside a transaction, so concurrent reviews queue up.
func (repo suggestionRepository) GetSuggestion(ctx context.Context, id string) (suggestion.Suggestion, error) {
	if !validID(id) {
		return suggestion.Suggestion{}, suggestion.ErrNotFound
	}
	q := psql.Select(suggestionColumns...).From("suggestion").Where(sq.Eq{"id": id})
	if database.InTx(ctx) {
		q = q.Suffix("FOR UPDATE")
	}

	var row suggestionRow
	if err := repo.get(ctx, &row, q); err != nil {
		return suggestion.Suggestion{}, trapNoRowsErr(err, suggestion.ErrNotFound, "getting suggestion")
	}
	return row.suggestion()
}

func (repo suggestionRepository) QuerySuggestions(ctx context.Context, filter suggestion.QueryFilter, page *core.Pagination) ([]suggestion.Suggestion, int, error) {
	q := psql.Select(suggestionColumns...).From("suggestion")

	// suggestions on assignments of any of the scope groups
	if filter.GroupIDs != nil {
		q = q.Where(sq.Expr("assignment_id IN (SELECT assignment_id FROM assignment_group WHERE ?)", anyOf("group_id", filter.GroupIDs)))
	}
	if filter.AssignmentID != "" {
		if !validID(filter.AssignmentID) {
			return []suggestion.Suggestion{}, 0, nil
		}
		q = q.Where(sq.Eq{"assignment_id": filter.AssignmentID})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}

	total, err := repo.count(ctx, q)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting suggestions")
	}

	q = q.OrderBy("created_at DESC", "id")
	if page != nil {
		q = q.Limit(uint64(page.Limit())).Offset(uint64(page.Offset()))
	}
	var rows []suggestionRow
	if err = repo.selectAll(ctx, &rows, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying suggestions")
	}

	list := make([]suggestion.Suggestion, 0, len(rows))
	for _, r := range rows {
		s, err := r.suggestion()
		if err != nil {
			return nil, 0, err
		}
		list = append(list, s)
	}
	return list, total, nil
}

// TransitionSuggestion only updates a PENDING row: zero rows updated means another review won.
func (repo suggestionRepository) TransitionSuggestion(ctx context.Context, id string, to suggestion.Status, reviewerID string, at time.Time) (suggestion.Suggestion, error) {
	if !validID(id) {
		return suggestion.Suggestion{}, suggestion.ErrNotFound
	}
	res, err := repo.run(ctx, psql.Update("suggestion").
		Set("status", string(to)).
		Set("reviewed_by", reviewerID).
		Set("reviewed_at", at.UTC()).
		Where(sq.Eq{"id": id, "status": string(suggestion.StatusPending)}))
	if err != nil {
		return suggestion.Suggestion{}, errors.Wrap(err, "updating suggestion status")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return suggestion.Suggestion{}, errors.Wrap(err, "updating suggestion status")
	}
	s, err := repo.GetSuggestion(ctx, id)
	if err != nil {
		return suggestion.Suggestion{}, err
	}
	if n == 0 {
		return suggestion.Suggestion{}, suggestion.ErrAlreadyTerminal
	}
	return s, nil
}

func (repo suggestionRepository) DeleteSuggestionsByAssignment(ctx context.Context, assignmentID string) error {
	if !validID(assignmentID) {
		return nil
	}
	_, err := repo.run(ctx, psql.Delete("suggestion").Where(sq.Eq{"assignment_id": assignmentID}))
	return errors.Wrap(err, "deleting suggestions")
}
