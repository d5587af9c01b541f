package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/NoheilaRamdani/sae401/core/assignment"
	"github.com/NoheilaRamdani/sae401/core/group"
	"github.com/NoheilaRamdani/sae401/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sql.DB
	usrSvc *user.Service
	grpSvc *group.Service
	asgSvc *assignment.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) on the embedded migrations")
	fmt.Println("  adduser -email EMAIL -first NAME -last NAME [-admin] [-groups ID,ID] - create or update a user")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
	fmt.Println("  delegate -group ID -email EMAIL - open or close the user's delegate term")
	fmt.Println("  remind - email the members of assignments due in 24h or 72h")
}

// promptPassword reads a password without echo. An empty one prints usage.
func promptPassword(usage func()) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserFirst := addUserCmd.String("first", "", "The user's first name.")
	addUserLast := addUserCmd.String("last", "", "The user's last name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin role.")
	addUserGroups := addUserCmd.String("groups", "", "Comma separated group IDs to join.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	delegateCmd := flag.NewFlagSet("delegate", flag.ContinueOnError)
	delegateGroup := delegateCmd.String("group", "", "The group ID.")
	delegateEmail := delegateCmd.String("email", "", "The member's email.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserFirst == "" || *addUserLast == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		var groupIDs []string
		if *addUserGroups != "" {
			groupIDs = strings.Split(*addUserGroups, ",")
		}
		return cli.addUser(user.NewUser{
			Email:     *addUserEmail,
			FirstName: *addUserFirst,
			LastName:  *addUserLast,
			Password:  pwd,
			GroupIDs:  groupIDs,
		}, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "delegate":
		if err := delegateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *delegateGroup == "" || *delegateEmail == "" {
			delegateCmd.Usage()
			return errHelp
		}
		return cli.toggleDelegate(*delegateGroup, *delegateEmail)

	case "remind":
		return cli.remind()

	default:
		cli.printUsage()
		return errHelp
	}
}
