package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/NoheilaRamdani/sae401/apps/api/echo"
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

type (
	Options struct {
		// InMemory keeps everything in process memory instead of Postgres.
		InMemory bool
	}

	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Closer releases a resource on shutdown.
	Closer func() error

	Storage struct {
		dig.Out
		Users       user.Repository
		Groups      group.Repository
		Subjects    subject.Repository
		Assignments assignment.Repository
		Suggestions suggestion.Repository
		Remover     assignment.SuggestionRemover
		Tx          core.Transactor
		Close       Closer `name:"dbClose"`
	}

	Events struct {
		dig.Out
		Publisher core.EventPublisher
		Close     Closer `name:"eventsClose"`
	}

	assignmentParams struct {
		dig.In
		Repo        assignment.Repository
		Subjects    subject.Repository
		Groups      group.Repository
		Suggestions assignment.SuggestionRemover
		Tx          core.Transactor
		Notifier    *assignment.Notifier
		Events      core.EventPublisher
		Conf        *core.Config
		Logger      core.Logger
	}

	suggestionParams struct {
		dig.In
		Repo        suggestion.Repository
		Assignments assignment.Repository
		Subjects    subject.Repository
		Users       user.Repository
		Tx          core.Transactor
		MailSvc     core.EmailService
		Events      core.EventPublisher
		Conf        *core.Config
		Logger      core.Logger
	}

	serverParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		UserSvc       *user.Service
		GroupSvc      *group.Service
		SubjectSvc    *subject.Service
		AssignmentSvc *assignment.Service
		SuggestionSvc *suggestion.Service
		Validate      *validator.Validate
		Translator    ut.Translator
	}
)

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewStdoutLogger(conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewStdoutLogger(conf)
}

func newStorage(opts Options) func(conf *core.Config, loggerParam DBLoggerParam) Storage {
	return func(conf *core.Config, loggerParam DBLoggerParam) Storage {
		if opts.InMemory {
			loggerParam.Logger.Warn("using the in-memory store: data is lost on exit")
			db := inmemdb.Open()
			suggestions := inmemdb.NewSuggestionRepository(db)
			return Storage{
				Users:       inmemdb.NewUserRepository(db),
				Groups:      inmemdb.NewGroupRepository(db),
				Subjects:    inmemdb.NewSubjectRepository(db),
				Assignments: inmemdb.NewAssignmentRepository(db),
				Suggestions: suggestions,
				Remover:     suggestions,
				Tx:          db,
				Close:       func() error { return nil },
			}
		}

		if err := database.CreateIfNotExist(conf); err != nil {
			loggerParam.Logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
		db, err := database.Open(conf)
		if err != nil {
			loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		if err = database.Migrate(db.DB); err != nil {
			loggerParam.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
		}

		tx := database.NewTransactor(db)
		suggestions := sqlxrepos.NewSuggestionRepository(db)
		return Storage{
			Users:       sqlxrepos.NewUserRepository(db),
			Groups:      sqlxrepos.NewGroupRepository(db),
			Subjects:    sqlxrepos.NewSubjectRepository(db),
			Assignments: sqlxrepos.NewAssignmentRepository(db, tx),
			Suggestions: suggestions,
			Remover:     suggestions,
			Tx:          tx,
			Close:       db.Close,
		}
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newEvents(conf *core.Config, logger core.Logger) (Events, error) {
	pub, closeFn, err := eventsvc.New(conf, logger)
	if err != nil {
		return Events{}, errors.Wrap(err, "connecting to the broker")
	}
	return Events{Publisher: pub, Close: closeFn}, nil
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	return validate, translator
}

func newAssignmentService(p assignmentParams) *assignment.Service {
	return assignment.NewService(assignment.Deps{
		Repo:        p.Repo,
		Subjects:    p.Subjects,
		Groups:      p.Groups,
		Suggestions: p.Suggestions,
		Tx:          p.Tx,
		Notifier:    p.Notifier,
		Events:      p.Events,
		Conf:        p.Conf,
		Logger:      p.Logger,
	})
}

func newSuggestionService(p suggestionParams) *suggestion.Service {
	return suggestion.NewService(suggestion.Deps{
		Repo:        p.Repo,
		Assignments: p.Assignments,
		Subjects:    p.Subjects,
		Users:       p.Users,
		Tx:          p.Tx,
		MailSvc:     p.MailSvc,
		Events:      p.Events,
		Conf:        p.Conf,
		Logger:      p.Logger,
	})
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		UserSvc:       p.UserSvc,
		GroupSvc:      p.GroupSvc,
		SubjectSvc:    p.SubjectSvc,
		AssignmentSvc: p.AssignmentSvc,
		SuggestionSvc: p.SuggestionSvc,
		Validate:      p.Validate,
		Translator:    p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New(opts Options) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage(opts)))
	must(c.Provide(newEmailService))
	must(c.Provide(newEvents))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(group.NewService))
	must(c.Provide(subject.NewService))
	must(c.Provide(assignment.NewNotifier))
	must(c.Provide(newAssignmentService))
	must(c.Provide(newSuggestionService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

// Visualize writes the dependency graph in DOT format to stdout.
func Visualize(c *dig.Container) error {
	return dig.Visualize(c, os.Stdout)
}
