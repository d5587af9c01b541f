package suggestion_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/access"
	"github.com/NoheilaRamdani/sae401/core/assignment"
	"github.com/NoheilaRamdani/sae401/core/suggestion"
	"github.com/NoheilaRamdani/sae401/core/user"
	testutil "github.com/NoheilaRamdani/sae401/tests"
)

type fixture struct {
	env      *testutil.Env
	ctx      context.Context
	admin    user.User
	delegate user.User // delegate of G1
	other    user.User // delegate of G2
	student  user.User // member of G1
	outsider user.User // member of G2 only
	a        assignment.Assignment
}

// tick makes core.NowFunc advance one second per call.
func tick(t *testing.T, start time.Time) {
	var mu sync.Mutex
	clock := start
	orig := core.NowFunc
	core.NowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	t.Cleanup(func() { core.NowFunc = orig })
}

func setup(t *testing.T) fixture {
	tick(t, time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC))
	env := testutil.NewEnv()
	g1 := env.CreateGroup(t, "TP1")
	g2 := env.CreateGroup(t, "TP2")
	sub := env.CreateSubject(t, "R2.01", "Développement web", "#ff0000")

	f := fixture{
		env:      env,
		ctx:      context.Background(),
		admin:    env.CreateUser(t, "admin@mmi.fr", "Ada", []string{user.RoleAdmin}),
		delegate: env.CreateUser(t, "delegate@mmi.fr", "Dan", []string{user.RoleDelegate}, g1.ID),
		other:    env.CreateUser(t, "other@mmi.fr", "Olga", []string{user.RoleDelegate}, g2.ID),
		student:  env.CreateUser(t, "student@mmi.fr", "Sam", nil, g1.ID),
		outsider: env.CreateUser(t, "outsider@mmi.fr", "Oscar", nil, g2.ID),
	}
	f.a = env.CreateAssignment(t, "Old", time.Date(2025, 6, 1, 21, 59, 0, 0, time.UTC), sub.ID, g1.ID)
	return f
}

func (f fixture) form(mutate func(*assignment.Form)) suggestion.SubmitForm {
	form := assignment.FormOf(f.a, f.env.Conf.Location())
	if mutate != nil {
		mutate(&form)
	}
	return suggestion.SubmitForm{Form: form}
}

func (f fixture) submitTitle(t *testing.T, by user.User, title string) suggestion.Suggestion {
	t.Helper()
	s, err := f.env.SuggestionSvc.Submit(f.ctx, by.Principal(), f.a.ID, f.form(func(form *assignment.Form) { form.Title = title }))
	require.NoError(t, err)
	return s
}

func TestService_Submit(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name          string
		by            user.User
		assignmentID  string
		form          suggestion.SubmitForm
		wantErr       error
		wantChanges   map[suggestion.Field]*string
		wantOriginals suggestion.Originals
	}{
		{
			name:         "no changes",
			by:           f.delegate,
			assignmentID: f.a.ID,
			form:         f.form(nil),
			wantErr:      suggestion.ErrNoChanges,
		},
		{
			name:         "outsider",
			by:           f.outsider,
			assignmentID: f.a.ID,
			form:         f.form(func(form *assignment.Form) { form.Title = "New" }),
			wantErr:      access.ErrDenied,
		},
		{
			name:         "unknown assignment",
			by:           f.admin,
			assignmentID: "nope",
			form:         f.form(func(form *assignment.Form) { form.Title = "New" }),
			wantErr:      assignment.ErrNotFound,
		},
		{
			name:          "title changed by a student",
			by:            f.student,
			assignmentID:  f.a.ID,
			form:          f.form(func(form *assignment.Form) { form.Title = "New" }),
			wantChanges:   map[suggestion.Field]*string{suggestion.FieldTitle: core.StringPtr("New")},
			wantOriginals: suggestion.Originals{suggestion.FieldTitle: "Old"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.env.SuggestionSvc.Submit(f.ctx, tt.by.Principal(), tt.assignmentID, tt.form)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, s.ID)
			assert.Equal(t, suggestion.StatusPending, s.Status)
			assert.Equal(t, tt.by.ID, s.SuggestedBy)
			assert.Equal(t, tt.wantChanges, s.ProposedChanges.Map())
			assert.Equal(t, tt.wantOriginals, s.OriginalValues)
		})
	}

	t.Run("unknown subject", func(t *testing.T) {
		form := f.form(func(form *assignment.Form) { form.SubjectID = "5f0f3a32-9c43-4a55-9d5e-3a1a1f8e0b11" })
		_, err := f.env.SuggestionSvc.Submit(f.ctx, f.student.Principal(), f.a.ID, form)
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.True(t, ok)
	})
}

func TestService_Approve(t *testing.T) {
	f := setup(t)
	s := f.submitTitle(t, f.delegate, "New")

	approved, err := f.env.SuggestionSvc.Approve(f.ctx, f.admin.Principal(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, suggestion.StatusAccepted, approved.Status)
	assert.Equal(t, f.admin.ID, core.StringValue(approved.ReviewedBy))
	assert.NotNil(t, approved.ReviewedAt)

	a, err := f.env.AssignmentRepo.GetAssignment(f.ctx, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", a.Title)
	require.NotNil(t, a.UpdatedAt)
	updatedAt := *a.UpdatedAt

	// second review is refused and the assignment is left alone
	_, err = f.env.SuggestionSvc.Approve(f.ctx, f.admin.Principal(), s.ID)
	assert.Equal(t, suggestion.ErrAlreadyTerminal, errors.Cause(err))
	_, err = f.env.SuggestionSvc.Reject(f.ctx, f.admin.Principal(), s.ID)
	assert.Equal(t, suggestion.ErrAlreadyTerminal, errors.Cause(err))

	a, err = f.env.AssignmentRepo.GetAssignment(f.ctx, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, updatedAt, *a.UpdatedAt)

	// the author hears about it
	sent := f.env.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, f.delegate.Email, sent[0].To[0].Address)
	assert.Equal(t, "Suggestion acceptée : New", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "acceptée")
	assert.Equal(t, []string{core.EventSuggestionReviewed}, f.env.Events.Types())
}

func TestService_Approve_DueDateRoundTrip(t *testing.T) {
	f := setup(t)
	form := f.form(func(form *assignment.Form) { form.DueDate = "2025-06-02 10:00:00" })
	form.Title = "Renamed"

	s, err := f.env.SuggestionSvc.Submit(f.ctx, f.student.Principal(), f.a.ID, form)
	require.NoError(t, err)
	_, err = f.env.SuggestionSvc.Approve(f.ctx, f.delegate.Principal(), s.ID)
	require.NoError(t, err)

	a, err := f.env.AssignmentRepo.GetAssignment(f.ctx, f.a.ID)
	require.NoError(t, err)
	loc := f.env.Conf.Location()
	assert.True(t, time.Date(2025, 6, 2, 10, 0, 0, 0, loc).Equal(a.DueDate))

	_, err = f.env.SuggestionSvc.Submit(f.ctx, f.student.Principal(), f.a.ID, form)
	assert.Equal(t, suggestion.ErrNoChanges, errors.Cause(err))
}

func TestService_Approve_RemovedSubject(t *testing.T) {
	f := setup(t)
	sub := f.env.CreateSubject(t, "R2.02", "Intégration", "")
	form := f.form(func(form *assignment.Form) {
		form.Title = "New"
		form.SubjectID = sub.ID
	})
	s, err := f.env.SuggestionSvc.Submit(f.ctx, f.student.Principal(), f.a.ID, form)
	require.NoError(t, err)

	deleter, ok := f.env.SubjectRepo.(interface {
		DeleteSubject(ctx context.Context, id string) error
	})
	require.True(t, ok)
	require.NoError(t, deleter.DeleteSubject(f.ctx, sub.ID))

	_, err = f.env.SuggestionSvc.Approve(f.ctx, f.admin.Principal(), s.ID)
	require.NoError(t, err)

	a, err := f.env.AssignmentRepo.GetAssignment(f.ctx, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", a.Title)
	assert.Equal(t, f.a.SubjectID, a.SubjectID)
}

func TestService_Reject(t *testing.T) {
	f := setup(t)
	s := f.submitTitle(t, f.student, "New")

	_, err := f.env.SuggestionSvc.Reject(f.ctx, f.student.Principal(), s.ID)
	assert.Equal(t, access.ErrDenied, errors.Cause(err))
	_, err = f.env.SuggestionSvc.Reject(f.ctx, f.other.Principal(), s.ID)
	assert.Equal(t, access.ErrDenied, errors.Cause(err))

	rejected, err := f.env.SuggestionSvc.Reject(f.ctx, f.delegate.Principal(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, suggestion.StatusRejected, rejected.Status)

	a, err := f.env.AssignmentRepo.GetAssignment(f.ctx, f.a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Old", a.Title)
	assert.Nil(t, a.UpdatedAt)

	_, err = f.env.SuggestionSvc.Approve(f.ctx, f.delegate.Principal(), s.ID)
	assert.Equal(t, suggestion.ErrAlreadyTerminal, errors.Cause(err))

	_, err = f.env.SuggestionSvc.Approve(f.ctx, f.admin.Principal(), "unknown")
	assert.Equal(t, suggestion.ErrNotFound, errors.Cause(err))
}

func TestService_Approve_Concurrent(t *testing.T) {
	f := setup(t)
	s := f.submitTitle(t, f.student, "New")

	const n = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.env.SuggestionSvc.Approve(f.ctx, f.admin.Principal(), s.ID)
		}(i)
	}
	wg.Wait()

	var won, terminal int
	for _, err := range errs {
		switch errors.Cause(err) {
		case nil:
			won++
		case suggestion.ErrAlreadyTerminal:
			terminal++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, n-1, terminal)
	assert.Len(t, f.env.Events.Events(), 1)
}

func TestService_Pending(t *testing.T) {
	f := setup(t)
	for _, title := range []string{"A", "B", "C", "D", "E", "F"} {
		f.submitTitle(t, f.student, title)
	}

	list, err := f.env.SuggestionSvc.Pending(f.ctx, f.delegate.Principal())
	require.NoError(t, err)
	require.Len(t, list, suggestion.PendingLimit)
	assert.Equal(t, f.student.Email, list[0].SuggestedBy)
	assert.Equal(t, "Old", list[0].Assignment.Title)
	assert.Equal(t, "R2.01", list[0].Assignment.SubjectCode)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].CreatedAt.After(list[i].CreatedAt))
	}

	// scoped to the reviewer's groups
	list, err = f.env.SuggestionSvc.Pending(f.ctx, f.other.Principal())
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.env.SuggestionSvc.Pending(f.ctx, f.student.Principal())
	assert.Equal(t, access.ErrDenied, errors.Cause(err))
}

func TestService_History(t *testing.T) {
	f := setup(t)
	for i := 0; i < 12; i++ {
		f.submitTitle(t, f.student, string(rune('A'+i)))
	}

	tests := []struct {
		name      string
		reviewer  user.User
		page      int
		wantItems int
		wantTotal int
		wantPages int
	}{
		{name: "first page", reviewer: f.delegate, page: 1, wantItems: 10, wantTotal: 12, wantPages: 2},
		{name: "second page", reviewer: f.delegate, page: 2, wantItems: 2, wantTotal: 12, wantPages: 2},
		{name: "past the end", reviewer: f.admin, page: 3, wantItems: 0, wantTotal: 12, wantPages: 2},
		{name: "huge page", reviewer: f.admin, page: math.MaxInt / 10, wantItems: 0, wantTotal: 12, wantPages: 2},
		{name: "other group", reviewer: f.other, page: 1, wantItems: 0, wantTotal: 0, wantPages: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.env.SuggestionSvc.History(f.ctx, tt.reviewer.Principal(), core.Pagination{Page: tt.page})
			require.NoError(t, err)
			assert.Len(t, page.Items, tt.wantItems)
			assert.Equal(t, tt.wantTotal, page.Total)
			assert.Equal(t, tt.wantPages, page.Pages)
		})
	}
}

func TestService_Get(t *testing.T) {
	f := setup(t)
	form := f.form(func(form *assignment.Form) { form.Description = core.StringPtr("Lire le chapitre 2") })
	s, err := f.env.SuggestionSvc.Submit(f.ctx, f.student.Principal(), f.a.ID, form)
	require.NoError(t, err)

	rv, err := f.env.SuggestionSvc.Get(f.ctx, f.delegate.Principal(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, f.student.Email, rv.Author)
	require.Len(t, rv.Changes, 1)
	assert.Equal(t, suggestion.FieldDescription, rv.Changes[0].Field)
	assert.Contains(t, rv.DescriptionDiff, "+Lire le chapitre 2")

	_, err = f.env.SuggestionSvc.Get(f.ctx, f.student.Principal(), s.ID)
	assert.Equal(t, access.ErrDenied, errors.Cause(err))
}

func TestService_DeleteAssignmentCascades(t *testing.T) {
	f := setup(t)
	s := f.submitTitle(t, f.student, "New")

	require.NoError(t, f.env.AssignmentSvc.Delete(f.ctx, f.delegate.Principal(), f.a.ID))

	_, err := f.env.SuggestionRepo.GetSuggestion(f.ctx, s.ID)
	assert.Equal(t, suggestion.ErrNotFound, errors.Cause(err))
	_, err = f.env.AssignmentRepo.GetAssignment(f.ctx, f.a.ID)
	assert.Equal(t, assignment.ErrNotFound, errors.Cause(err))
}
