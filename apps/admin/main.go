package main

import (
	"fmt"
	"os"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/assignment"
	"github.com/NoheilaRamdani/sae401/core/group"
	"github.com/NoheilaRamdani/sae401/core/user"
	emailsvc "github.com/NoheilaRamdani/sae401/services/email"
	eventsvc "github.com/NoheilaRamdani/sae401/services/events"
	logsvc "github.com/NoheilaRamdani/sae401/services/logger"
	"github.com/NoheilaRamdani/sae401/storage/database"
	sqlxrepos "github.com/NoheilaRamdani/sae401/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewStdoutLogger(conf)

	// set up DB
	errAndDie(logger, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(logger, err)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	events, closeEvents, err := eventsvc.New(conf, logger)
	errAndDie(logger, err)

	tx := database.NewTransactor(db)
	usrRepo := sqlxrepos.NewUserRepository(db)
	grpRepo := sqlxrepos.NewGroupRepository(db)
	usrSvc := user.NewService(usrRepo, logger)
	asgSvc := assignment.NewService(assignment.Deps{
		Repo:        sqlxrepos.NewAssignmentRepository(db, tx),
		Subjects:    sqlxrepos.NewSubjectRepository(db),
		Groups:      grpRepo,
		Suggestions: sqlxrepos.NewSuggestionRepository(db),
		Tx:          tx,
		Notifier:    assignment.NewNotifier(usrRepo, grpRepo, mailSvc, conf, logger),
		Events:      events,
		Conf:        conf,
		Logger:      logger,
	})

	// start CLI
	cli := commandLine{
		db:     db.DB,
		usrSvc: usrSvc,
		grpSvc: group.NewService(grpRepo, usrSvc, tx, logger),
		asgSvc: asgSvc,
	}
	err = cli.run(os.Args)

	_ = closeEvents()
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
