package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/NoheilaRamdani/sae401/apps/api/echo"
	"github.com/NoheilaRamdani/sae401/core/assignment"
	"github.com/NoheilaRamdani/sae401/core/group"
	"github.com/NoheilaRamdani/sae401/core/subject"
	"github.com/NoheilaRamdani/sae401/core/suggestion"
	"github.com/NoheilaRamdani/sae401/core/user"
	"github.com/NoheilaRamdani/sae401/tests"
)

type fixture struct {
	env      *testutil.Env
	srv      *Server
	g1, g2   group.Group
	subj     subject.Subject
	admin    user.User
	delegate user.User
	student  user.User
	outsider user.User
	a        assignment.Assignment
}

func newFixture(t *testing.T) *fixture {
	env, srv := setup(t)
	f := &fixture{env: env, srv: srv}
	f.g1 = env.CreateGroup(t, "TP1")
	f.g2 = env.CreateGroup(t, "TP2")
	f.subj = env.CreateSubject(t, "R2.01", "Développement web", "#ff0000")
	f.admin = env.CreateUser(t, "admin@mmi.fr", "Admin", []string{user.RoleAdmin})
	f.delegate = env.CreateUser(t, "delegue@mmi.fr", "Delegue", []string{user.RoleDelegate}, f.g1.ID)
	f.student = env.CreateUser(t, "etudiant@mmi.fr", "Etudiant", nil, f.g1.ID)
	f.outsider = env.CreateUser(t, "autre@mmi.fr", "Autre", nil, f.g2.ID)
	f.a = env.CreateAssignment(t, "Old", now.Add(48*time.Hour), f.subj.ID, f.g1.ID)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body []byte) (int, []byte) {
	req, rec := newAuthRequest(method, path, token, body)
	f.srv.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func (f *fixture) form(t *testing.T, mutate func(*suggestion.SubmitForm)) []byte {
	form := suggestion.SubmitForm{Form: assignment.FormOf(f.a, f.env.Conf.Location())}
	if mutate != nil {
		mutate(&form)
	}
	return marchallObj(t, form)
}

func TestHome(t *testing.T) {
	_, srv := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to MMI Agenda API!", rec.Body.String())
}

func TestUserAPI(t *testing.T) {
	f := newFixture(t)
	studentToken := getToken(t, f.env, f.student)

	runHTTPTests(t, f.srv, []httpTest{
		{
			name:     "login: wrong password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"email": "etudiant@mmi.fr", "password": "nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name:     "login: missing fields",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "this field is required", "password": "this field is required"}`),
		},
		{
			name:     "me: missing token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "roles: student",
			method:   http.MethodGet,
			path:     "/v1/users/roles",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "roles: admin",
			method:   http.MethodGet,
			path:     "/v1/users/roles",
			token:    getToken(t, f.env, f.admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, user.Roles),
		},
	})

	t.Run("login", func(t *testing.T) {
		code, body := f.do(t, http.MethodPost, "/v1/users/login", "",
			[]byte(`{"email": " Etudiant@MMI.fr ", "password": "`+testutil.Password+`"}`))
		require.Equal(t, http.StatusOK, code, string(body))

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		claims := new(Claims)
		_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(f.env.Conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, f.student.ID, claims.Subject)
		assert.False(t, claims.IsDelegate)

		code, body = f.do(t, http.MethodPost, "/v1/users/token-refresh", resp.Token, nil)
		assert.Equal(t, http.StatusOK, code, string(body))
	})

	t.Run("me", func(t *testing.T) {
		code, body := f.do(t, http.MethodGet, "/v1/users/me", studentToken, nil)
		require.Equal(t, http.StatusOK, code)

		var usr user.User
		require.NoError(t, json.Unmarshal(body, &usr))
		assert.Equal(t, f.student.ID, usr.ID)
		assert.Equal(t, []string{f.g1.ID}, usr.GroupIDs)
		assert.NotContains(t, string(body), "password")
	})

	t.Run("register", func(t *testing.T) {
		body := marchallObj(t, user.RegisterUser{
			Email: "nouveau@mmi.fr", FirstName: "Jean", LastName: "Dupont",
			Password: testutil.Password, AgreeTerms: true, GroupID: f.g2.ID,
		})
		code, resp := f.do(t, http.MethodPost, "/v1/users/register", "", body)
		require.Equal(t, http.StatusCreated, code, string(resp))

		usr, err := f.env.UserSvc.GetByEmail(context.Background(), "nouveau@mmi.fr")
		require.NoError(t, err)
		assert.Equal(t, []string{f.g2.ID}, usr.GroupIDs)

		code, resp = f.do(t, http.MethodPost, "/v1/users/register", "", body)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.JSONEq(t, `{"email": "a user with this email already exists"}`, string(resp))

		body = []byte(`{"email": "x@mmi.fr", "first_name": "X", "last_name": "Y", "password": "` + testutil.Password + `"}`)
		code, resp = f.do(t, http.MethodPost, "/v1/users/register", "", body)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.JSONEq(t, `{"agree_terms": "this field is required"}`, string(resp))
	})

	t.Run("deactivated user", func(t *testing.T) {
		usr := f.student
		usr.IsActive = false
		_, err := f.env.UserRepo.UpdateUser(context.Background(), usr)
		require.NoError(t, err)

		code, body := f.do(t, http.MethodGet, "/v1/assignments", studentToken, nil)
		assert.Equal(t, http.StatusForbidden, code)
		assert.JSONEq(t, `{"error": "account deactivated"}`, string(body))
	})
}

func TestGroupAPI(t *testing.T) {
	f := newFixture(t)
	adminToken := getToken(t, f.env, f.admin)
	studentToken := getToken(t, f.env, f.student)
	path := "/v1/groups/" + f.g1.ID

	groups, err := f.env.GroupSvc.Query(context.Background())
	require.NoError(t, err)

	runHTTPTests(t, f.srv, []httpTest{
		{
			name:     "list: public",
			method:   http.MethodGet,
			path:     "/v1/groups",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, groups),
		},
		{
			name:     "members: other group",
			method:   http.MethodGet,
			path:     "/v1/groups/" + f.g2.ID + "/members",
			token:    studentToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: group.ErrNotFound.Error()}),
		},
		{
			name:     "toggle delegate: student",
			method:   http.MethodPost,
			path:     path + "/delegates/" + f.student.ID + "/toggle",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "toggle delegate: not a member",
			method:   http.MethodPost,
			path:     path + "/delegates/" + f.outsider.ID + "/toggle",
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: group.ErrNotMember.Error()}),
		},
		{
			name:     "create: student",
			method:   http.MethodPost,
			path:     "/v1/groups",
			body:     []byte(`{"name": "TD3", "type": "TD"}`),
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "create: admin",
			method:   http.MethodPost,
			path:     "/v1/groups",
			body:     []byte(`{"name": " TD3 ", "type": "TD"}`),
			token:    adminToken,
			wantCode: http.StatusCreated,
		},
	})

	t.Run("toggle delegate", func(t *testing.T) {
		code, body := f.do(t, http.MethodPost, path+"/delegates/"+f.student.ID+"/toggle", adminToken, nil)
		require.Equal(t, http.StatusOK, code, string(body))

		var d group.Delegate
		require.NoError(t, json.Unmarshal(body, &d))
		assert.True(t, d.IsActive)

		usr, err := f.env.UserSvc.GetByID(context.Background(), f.student.ID)
		require.NoError(t, err)
		assert.True(t, usr.IsDelegate())

		// the role is read from the store: the old token now reaches delegate endpoints
		code, _ = f.do(t, http.MethodGet, "/v1/suggestions/pending", studentToken, nil)
		assert.Equal(t, http.StatusOK, code)

		code, body = f.do(t, http.MethodGet, path+"/members", studentToken, nil)
		require.Equal(t, http.StatusOK, code)
		var members []group.Member
		require.NoError(t, json.Unmarshal(body, &members))
		assert.Len(t, members, 2)
	})
}

func TestSubjectAPI(t *testing.T) {
	f := newFixture(t)

	runHTTPTests(t, f.srv, []httpTest{
		{
			name:     "list",
			method:   http.MethodGet,
			path:     "/v1/subjects",
			token:    getToken(t, f.env, f.student),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []subject.Subject{f.subj}),
		},
		{
			name:     "create: bad color",
			method:   http.MethodPost,
			path:     "/v1/subjects",
			body:     []byte(`{"code": "R2.02", "name": "Intégration", "color": "rouge"}`),
			token:    getToken(t, f.env, f.admin),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "create: delegate",
			method:   http.MethodPost,
			path:     "/v1/subjects",
			body:     []byte(`{"code": "R2.02", "name": "Intégration"}`),
			token:    getToken(t, f.env, f.delegate),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "create: admin",
			method:   http.MethodPost,
			path:     "/v1/subjects",
			body:     []byte(`{"code": "R2.02", "name": "Intégration"}`),
			token:    getToken(t, f.env, f.admin),
			wantCode: http.StatusCreated,
		},
	})
}

func TestAssignmentAPI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	studentToken := getToken(t, f.env, f.student)
	delegateToken := getToken(t, f.env, f.delegate)
	outsiderToken := getToken(t, f.env, f.outsider)
	path := "/v1/assignments/" + f.a.ID

	upcoming, err := f.env.AssignmentSvc.ListUpcoming(ctx, f.student.Principal(), assignment.Filters{})
	require.NoError(t, err)
	require.Len(t, upcoming, 1)

	newBody := func(groupID string) []byte {
		return marchallObj(t, assignment.NewAssignment{
			Form: assignment.Form{
				Title:     "Rendu maquette",
				DueDate:   "2025-05-10 23:59:00",
				SubjectID: f.subj.ID,
				Type:      assignment.TypeDevoir,
			},
			GroupIDs: []string{groupID},
		})
	}

	runHTTPTests(t, f.srv, []httpTest{
		{
			name:     "upcoming: missing token",
			method:   http.MethodGet,
			path:     "/v1/assignments",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "upcoming: member",
			method:   http.MethodGet,
			path:     "/v1/assignments",
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, upcoming),
		},
		{
			name:     "upcoming: other group",
			method:   http.MethodGet,
			path:     "/v1/assignments",
			token:    outsiderToken,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
		{
			name:     "upcoming: filtered out",
			method:   http.MethodGet,
			path:     "/v1/assignments?type=examen",
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
		{
			name:     "retrieve: member",
			method:   http.MethodGet,
			path:     path,
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, upcoming[0]),
		},
		{
			name:     "retrieve: other group",
			method:   http.MethodGet,
			path:     path,
			token:    outsiderToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "retrieve: unknown",
			method:   http.MethodGet,
			path:     "/v1/assignments/3f1d0f0e-5b1a-4c47-9d0e-6f7a2b1c9d11",
			token:    studentToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: assignment.ErrNotFound.Error()}),
		},
		{
			name:     "create: student",
			method:   http.MethodPost,
			path:     "/v1/assignments",
			body:     newBody(f.g1.ID),
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "create: missing title",
			method:   http.MethodPost,
			path:     "/v1/assignments",
			body:     []byte(`{"due_date": "2025-05-10 23:59:00", "type": "devoir", "group_ids": ["` + f.g1.ID + `"]}`),
			token:    delegateToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title": "this field is required"}`),
		},
		{
			name:     "create: foreign group",
			method:   http.MethodPost,
			path:     "/v1/assignments",
			body:     newBody(f.g2.ID),
			token:    delegateToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "create: delegate",
			method:   http.MethodPost,
			path:     "/v1/assignments",
			body:     newBody(f.g1.ID),
			token:    delegateToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "update: student",
			method:   http.MethodPut,
			path:     path,
			body:     f.form(t, nil),
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "toggle complete: other group",
			method:   http.MethodPost,
			path:     path + "/toggle-complete",
			token:    outsiderToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "toggle complete: member",
			method:   http.MethodPost,
			path:     path + "/toggle-complete",
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, ToggleCompleteResponse{Success: true, IsCompleted: true}),
		},
		{
			name:     "delete: student",
			method:   http.MethodDelete,
			path:     path,
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})

	assert.Len(t, f.env.Mail.Sent(), 2) // delegate and student of TP1

	t.Run("update", func(t *testing.T) {
		body := f.form(t, func(form *suggestion.SubmitForm) { form.Title = "Updated" })
		code, resp := f.do(t, http.MethodPut, path, delegateToken, body)
		require.Equal(t, http.StatusOK, code, string(resp))

		a, err := f.env.AssignmentRepo.GetAssignment(ctx, f.a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Updated", a.Title)
		assert.NotNil(t, a.UpdatedAt)
	})

	t.Run("history", func(t *testing.T) {
		code, resp := f.do(t, http.MethodGet, "/v1/assignments/history?page=abc", studentToken, nil)
		require.Equal(t, http.StatusOK, code)

		var page assignment.Page
		require.NoError(t, json.Unmarshal(resp, &page))
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 2, page.Total)
		assert.Len(t, page.Items, 2)
	})

	t.Run("calendar", func(t *testing.T) {
		code, resp := f.do(t, http.MethodGet, "/v1/calendar/events", studentToken, nil)
		require.Equal(t, http.StatusOK, code)

		var events []assignment.CalendarEvent
		require.NoError(t, json.Unmarshal(resp, &events))
		require.Len(t, events, 2)
		assert.Equal(t, []string{"completed-event"}, events[0].ClassNames)

		req, rec := newAuthRequest(http.MethodGet, "/v1/calendar.ics", studentToken)
		f.srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "X-WR-CALNAME:Rendus de etudiant@mmi.fr")
		assert.Equal(t, 2, strings.Count(rec.Body.String(), "BEGIN:VEVENT"))
	})

	t.Run("delete", func(t *testing.T) {
		code, _ := f.do(t, http.MethodDelete, path, delegateToken, nil)
		assert.Equal(t, http.StatusNoContent, code)

		code, _ = f.do(t, http.MethodGet, path, studentToken, nil)
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestSuggestionAPI(t *testing.T) {
	f := newFixture(t)
	studentToken := getToken(t, f.env, f.student)
	delegateToken := getToken(t, f.env, f.delegate)
	submitPath := "/v1/assignments/" + f.a.ID + "/suggestions"

	retitle := f.form(t, func(form *suggestion.SubmitForm) {
		form.Title = "New"
		msg := "Le titre a changé"
		form.Message = &msg
	})

	runHTTPTests(t, f.srv, []httpTest{
		{
			name:     "submit: no changes",
			method:   http.MethodPost,
			path:     submitPath,
			body:     f.form(t, nil),
			token:    studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "no changes to suggest"}),
		},
		{
			name:     "submit: other group",
			method:   http.MethodPost,
			path:     submitPath,
			body:     retitle,
			token:    getToken(t, f.env, f.outsider),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "submit: bad date",
			method:   http.MethodPost,
			path:     submitPath,
			body:     f.form(t, func(form *suggestion.SubmitForm) { form.DueDate = "demain" }),
			token:    studentToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"due_date": "invalid date, expected YYYY-MM-DD HH:MM:SS"}`),
		},
		{
			name:     "pending: student",
			method:   http.MethodGet,
			path:     "/v1/suggestions/pending",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "pending: empty",
			method:   http.MethodGet,
			path:     "/v1/suggestions/pending",
			token:    delegateToken,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
	})

	code, body := f.do(t, http.MethodPost, submitPath, studentToken, retitle)
	require.Equal(t, http.StatusCreated, code, string(body))
	var submitted SubmitResponse
	require.NoError(t, json.Unmarshal(body, &submitted))
	assert.Equal(t, suggestion.StatusPending, submitted.Status)
	assert.JSONEq(t, `{"id": "`+submitted.ID+`", "status": "PENDING", "proposed_changes": {"title": "New"}, "original_values": {"title": "Old"}}`, string(body))

	path := "/v1/suggestions/" + submitted.ID

	t.Run("pending", func(t *testing.T) {
		code, body := f.do(t, http.MethodGet, "/v1/suggestions/pending", delegateToken, nil)
		require.Equal(t, http.StatusOK, code)

		var items []suggestion.Summary
		require.NoError(t, json.Unmarshal(body, &items))
		require.Len(t, items, 1)
		assert.Equal(t, "etudiant@mmi.fr", items[0].SuggestedBy)
		assert.Equal(t, "R2.01", items[0].Assignment.SubjectCode)
	})

	t.Run("review view", func(t *testing.T) {
		code, body := f.do(t, http.MethodGet, path, delegateToken, nil)
		require.Equal(t, http.StatusOK, code)

		var rv suggestion.Review
		require.NoError(t, json.Unmarshal(body, &rv))
		require.Len(t, rv.Changes, 1)
		assert.Equal(t, suggestion.FieldTitle, rv.Changes[0].Field)
		assert.Equal(t, "Old", rv.Changes[0].Original)
	})

	t.Run("approve", func(t *testing.T) {
		code, body := f.do(t, http.MethodPost, path+"/approve", studentToken, nil)
		assert.Equal(t, http.StatusForbidden, code, string(body))

		code, body = f.do(t, http.MethodPost, path+"/approve", delegateToken, nil)
		require.Equal(t, http.StatusOK, code, string(body))
		var s suggestion.Suggestion
		require.NoError(t, json.Unmarshal(body, &s))
		assert.Equal(t, suggestion.StatusAccepted, s.Status)

		a, err := f.env.AssignmentRepo.GetAssignment(context.Background(), f.a.ID)
		require.NoError(t, err)
		assert.Equal(t, "New", a.Title)

		code, body = f.do(t, http.MethodPost, path+"/reject", delegateToken, nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.JSONEq(t, `{"error": "suggestion has already been reviewed"}`, string(body))
	})

	t.Run("history", func(t *testing.T) {
		code, body := f.do(t, http.MethodGet, "/v1/suggestions/history", delegateToken, nil)
		require.Equal(t, http.StatusOK, code)

		var page suggestion.SummaryPage
		require.NoError(t, json.Unmarshal(body, &page))
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, suggestion.StatusAccepted, page.Items[0].Status)
	})
}
