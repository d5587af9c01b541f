package inmemdb

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/assignment"
	"github.com/NoheilaRamdani/sae401/core/suggestion"
)

func TestDB_WithinTx(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewAssignmentRepository(db)
	a, err := repo.CreateAssignment(ctx, assignment.Assignment{Title: "A", GroupIDs: []string{"g1"}})
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = db.WithinTx(ctx, func(ctx context.Context) error {
		a.Title = "B"
		if _, err := repo.UpdateAssignment(ctx, a); err != nil {
			return err
		}
		// nested units join the outer one
		return db.WithinTx(ctx, func(ctx context.Context) error {
			_, err := repo.CreateAssignment(ctx, assignment.Assignment{Title: "C"})
			require.NoError(t, err)
			return errBoom
		})
	})
	assert.Equal(t, errBoom, err)

	got, err := repo.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
	_, total, err := repo.QueryAssignments(ctx, assignment.QueryFilter{}, core.DBOrdering{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	assert.Panics(t, func() {
		_ = db.WithinTx(ctx, func(ctx context.Context) error {
			_, _ = repo.CreateAssignment(ctx, assignment.Assignment{Title: "D"})
			panic("boom")
		})
	})
	_, total, err = repo.QueryAssignments(ctx, assignment.QueryFilter{}, core.DBOrdering{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestDB_WithinTx_concurrentCallers(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewAssignmentRepository(db)
	a, err := repo.CreateAssignment(ctx, assignment.Assignment{Title: "A"})
	require.NoError(t, err)

	errBoom := errors.New("boom")
	written := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- db.WithinTx(ctx, func(ctx context.Context) error {
			b := a
			b.Title = "B"
			if _, err := repo.UpdateAssignment(ctx, b); err != nil {
				return err
			}
			close(written)
			<-release
			return errBoom
		})
	}()
	<-written

	created := make(chan assignment.Assignment, 1)
	go func() {
		c, err := repo.CreateAssignment(ctx, assignment.Assignment{Title: "C"})
		assert.NoError(t, err)
		created <- c
	}()
	seen := make(chan string, 1)
	go func() {
		got, err := repo.GetAssignment(ctx, a.ID)
		assert.NoError(t, err)
		seen <- got.Title
	}()

	select {
	case <-created:
		t.Fatal("write went through while a unit of work was open")
	case title := <-seen:
		t.Fatalf("read %q while a unit of work was open", title)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.Equal(t, errBoom, <-txDone)
	c := <-created
	assert.Equal(t, "A", <-seen)

	got, err := repo.GetAssignment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "C", got.Title)
	_, total, err := repo.QueryAssignments(ctx, assignment.QueryFilter{}, core.DBOrdering{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestAssignmentRepository_QueryAssignments(t *testing.T) {
	ctx := context.Background()
	repo := NewAssignmentRepository(Open())
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, groups := range [][]string{{"g1"}, {"g2"}, {"g1", "g2"}, {"g3"}} {
		_, err := repo.CreateAssignment(ctx, assignment.Assignment{
			Title:    string(rune('A' + i)),
			DueDate:  base.Add(time.Duration(i) * time.Hour),
			GroupIDs: groups,
			Type:     assignment.TypeDevoir,
		})
		require.NoError(t, err)
	}
	from := base.Add(time.Hour)

	tests := []struct {
		name      string
		filter    assignment.QueryFilter
		ordering  core.DBOrdering
		page      *core.Pagination
		want      []string
		wantTotal int
	}{
		{name: "unrestricted", ordering: core.DBOrdering{Ascending: true}, want: []string{"A", "B", "C", "D"}, wantTotal: 4},
		{name: "descending", want: []string{"D", "C", "B", "A"}, wantTotal: 4},
		{name: "empty scope", filter: assignment.QueryFilter{GroupIDs: []string{}}, want: []string{}, wantTotal: 0},
		{name: "scope", filter: assignment.QueryFilter{GroupIDs: []string{"g1"}}, ordering: core.DBOrdering{Ascending: true}, want: []string{"A", "C"}, wantTotal: 2},
		{name: "scope and group", filter: assignment.QueryFilter{GroupIDs: []string{"g1", "g3"}, GroupID: "g2"}, want: []string{"C"}, wantTotal: 1},
		{name: "due from", filter: assignment.QueryFilter{DueFrom: &from}, ordering: core.DBOrdering{Ascending: true}, want: []string{"B", "C", "D"}, wantTotal: 3},
		{name: "paginated", ordering: core.DBOrdering{Ascending: true}, page: &core.Pagination{Page: 2, PageSize: 3}, want: []string{"D"}, wantTotal: 4},
		{name: "huge page", page: &core.Pagination{Page: math.MaxInt / 3, PageSize: 3}, want: []string{}, wantTotal: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, total, err := repo.QueryAssignments(ctx, tt.filter, tt.ordering, tt.page)
			require.NoError(t, err)
			titles := make([]string, 0, len(list))
			for _, a := range list {
				titles = append(titles, a.Title)
			}
			assert.Equal(t, tt.want, titles)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestSuggestionRepository_TransitionSuggestion(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewSuggestionRepository(db)
	assignments := NewAssignmentRepository(db)
	a, err := assignments.CreateAssignment(ctx, assignment.Assignment{Title: "A"})
	require.NoError(t, err)

	_, err = repo.CreateSuggestion(ctx, suggestion.Suggestion{AssignmentID: "unknown", Status: suggestion.StatusPending})
	assert.Error(t, err)
	s, err := repo.CreateSuggestion(ctx, suggestion.Suggestion{AssignmentID: a.ID, Status: suggestion.StatusPending})
	require.NoError(t, err)

	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	got, err := repo.TransitionSuggestion(ctx, s.ID, suggestion.StatusRejected, "u1", at)
	require.NoError(t, err)
	assert.Equal(t, suggestion.StatusRejected, got.Status)
	assert.Equal(t, "u1", core.StringValue(got.ReviewedBy))
	assert.Equal(t, at, *got.ReviewedAt)

	_, err = repo.TransitionSuggestion(ctx, s.ID, suggestion.StatusAccepted, "u2", at)
	assert.Equal(t, suggestion.ErrAlreadyTerminal, err)
	_, err = repo.TransitionSuggestion(ctx, "unknown", suggestion.StatusAccepted, "u2", at)
	assert.Equal(t, suggestion.ErrNotFound, err)

	// assignments referenced by suggestions cannot be deleted
	assert.Equal(t, errForeignKey, assignments.DeleteAssignment(ctx, a.ID))
	require.NoError(t, repo.DeleteSuggestionsByAssignment(ctx, a.ID))
	assert.NoError(t, assignments.DeleteAssignment(ctx, a.ID))
}
