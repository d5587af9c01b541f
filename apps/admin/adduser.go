package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core/user"
)

// addUser creates nu, or updates the password of the user with the same email.
func (cli *commandLine) addUser(nu user.NewUser, isAdmin bool) error {
	ctx := context.Background()
	nu.Clean()

	usr, err := cli.usrSvc.GetByEmail(ctx, nu.Email)
	switch errors.Cause(err) {
	case user.ErrNotFound:
		if isAdmin {
			nu.Roles = []string{user.RoleAdmin}
		}
		usr, err = cli.usrSvc.Create(ctx, nu)
		if err != nil {
			return err
		}
		fmt.Printf("created user %s\n", usr.ID)
		return nil
	case nil:
	default:
		return err
	}

	if err = cli.usrSvc.SetPassword(ctx, usr.Email, nu.Password); err != nil {
		return err
	}
	if isAdmin {
		if _, err = cli.usrSvc.GrantRole(ctx, usr.ID, user.RoleAdmin); err != nil {
			return err
		}
	}
	fmt.Printf("updated user %s\n", usr.ID)
	return nil
}
