// Package testutil assembles the services, on the in-memory store or on Postgres, and builds fixtures for tests.
package testutil

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/assignment"
	"github.com/NoheilaRamdani/sae401/core/group"
	"github.com/NoheilaRamdani/sae401/core/subject"
	"github.com/NoheilaRamdani/sae401/core/suggestion"
	"github.com/NoheilaRamdani/sae401/core/user"
	emailsvc "github.com/NoheilaRamdani/sae401/services/email"
	eventsvc "github.com/NoheilaRamdani/sae401/services/events"
	logsvc "github.com/NoheilaRamdani/sae401/services/logger"
	"github.com/NoheilaRamdani/sae401/storage/database"
	inmemdb "github.com/NoheilaRamdani/sae401/storage/database/inmem"
	sqlxrepos "github.com/NoheilaRamdani/sae401/storage/database/sqlx"
)

const Password = "Passw0rd!x"

// Env is a fully wired application. DB is nil on Postgres.
type Env struct {
	Conf   *core.Config
	Logger core.Logger
	DB     *inmemdb.DB
	Mail   *emailsvc.ConsoleServiceMock
	Events *eventsvc.RecorderPublisher

	UserRepo       user.Repository
	GroupRepo      group.Repository
	SubjectRepo    subject.Repository
	AssignmentRepo assignment.Repository
	SuggestionRepo suggestion.Repository

	UserSvc       *user.Service
	GroupSvc      *group.Service
	SubjectSvc    *subject.Service
	AssignmentSvc *assignment.Service
	SuggestionSvc *suggestion.Service
}

func NewEnv() *Env {
	db := inmemdb.Open()
	env := &Env{
		DB:             db,
		UserRepo:       inmemdb.NewUserRepository(db),
		GroupRepo:      inmemdb.NewGroupRepository(db),
		SubjectRepo:    inmemdb.NewSubjectRepository(db),
		AssignmentRepo: inmemdb.NewAssignmentRepository(db),
		SuggestionRepo: inmemdb.NewSuggestionRepository(db),
	}
	env.wire(db)
	return env
}

// NewSQLEnv wires the services on the Postgres database at TEST_DATABASE_URL, migrated and emptied.
// The test is skipped when the variable is unset.
func NewSQLEnv(t *testing.T) *Env {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("OpenURL() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if _, err = db.Exec(`TRUNCATE suggestion, assignment_group, assignment, subject, delegate, user_group, "group", "user"`); err != nil {
		t.Fatalf("truncating tables failed: %v", err)
	}

	tx := database.NewTransactor(db)
	env := &Env{
		UserRepo:       sqlxrepos.NewUserRepository(db),
		GroupRepo:      sqlxrepos.NewGroupRepository(db),
		SubjectRepo:    sqlxrepos.NewSubjectRepository(db),
		AssignmentRepo: sqlxrepos.NewAssignmentRepository(db, tx),
		SuggestionRepo: sqlxrepos.NewSuggestionRepository(db),
	}
	env.wire(tx)
	return env
}

func (env *Env) wire(tx core.Transactor) {
	conf := core.NewTestConfig()
	logger := logsvc.NewLogger(io.Discard, conf)

	env.Conf = conf
	env.Logger = logger
	env.Mail = emailsvc.NewConsoleServiceMock(conf, logger)
	env.Events = new(eventsvc.RecorderPublisher)

	env.UserSvc = user.NewService(env.UserRepo, logger)
	env.GroupSvc = group.NewService(env.GroupRepo, env.UserSvc, tx, logger)
	env.SubjectSvc = subject.NewService(env.SubjectRepo)
	env.AssignmentSvc = assignment.NewService(assignment.Deps{
		Repo:        env.AssignmentRepo,
		Subjects:    env.SubjectRepo,
		Groups:      env.GroupRepo,
		Suggestions: env.SuggestionRepo,
		Tx:          tx,
		Notifier:    assignment.NewNotifier(env.UserRepo, env.GroupRepo, env.Mail, conf, logger),
		Events:      env.Events,
		Conf:        conf,
		Logger:      logger,
	})
	env.SuggestionSvc = suggestion.NewService(suggestion.Deps{
		Repo:        env.SuggestionRepo,
		Assignments: env.AssignmentRepo,
		Subjects:    env.SubjectRepo,
		Users:       env.UserRepo,
		Tx:          tx,
		MailSvc:     env.Mail,
		Events:      env.Events,
		Conf:        conf,
		Logger:      logger,
	})
}

// CreateUser stores an active user with Password, the given extra roles and memberships.
func (env *Env) CreateUser(t *testing.T, email, firstName string, roles []string, groupIDs ...string) user.User {
	t.Helper()
	now := core.NowFunc()
	usr := user.User{
		Email:     email,
		FirstName: firstName,
		LastName:  "Test",
		IsActive:  true,
		Roles:     append([]string{user.RoleUser}, roles...),
		GroupIDs:  groupIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := env.UserRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateGroup(t *testing.T, name string) group.Group {
	t.Helper()
	grp, err := env.GroupRepo.CreateGroup(context.Background(), group.Group{Name: name, Type: "TP"})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return grp
}

func (env *Env) CreateSubject(t *testing.T, code, name, color string) subject.Subject {
	t.Helper()
	sub, err := env.SubjectRepo.CreateSubject(context.Background(), subject.Subject{Code: code, Name: name, Color: color})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return sub
}

// CreateAssignment stores a devoir due at due, without notifying anyone.
func (env *Env) CreateAssignment(t *testing.T, title string, due time.Time, subjectID string, groupIDs ...string) assignment.Assignment {
	t.Helper()
	a, err := env.AssignmentRepo.CreateAssignment(context.Background(), assignment.Assignment{
		Title:     title,
		DueDate:   due.UTC(),
		SubjectID: subjectID,
		GroupIDs:  groupIDs,
		Type:      assignment.TypeDevoir,
		CreatedAt: core.NowFunc(),
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

// FreezeTime sets core.NowFunc to return now until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now.UTC() }
	t.Cleanup(func() { core.NowFunc = orig })
}
