package main

import (
	"context"
	"fmt"

	"github.com/NoheilaRamdani/sae401/core"
)

func (cli *commandLine) toggleDelegate(groupID, email string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	d, err := cli.grpSvc.ToggleDelegate(ctx, groupID, usr.ID)
	if err != nil {
		return err
	}
	if d.ActiveAt(core.NowFunc()) {
		fmt.Printf("%s is delegate of %s until %s\n", usr.Email, groupID, d.EndDate.Format(core.DisplayLayout))
	} else {
		fmt.Printf("%s is no longer delegate of %s\n", usr.Email, groupID)
	}
	return nil
}

func (cli *commandLine) remind() error {
	views, err := cli.asgSvc.RemindDueSoon(context.Background(), core.NowFunc())
	if err != nil {
		return err
	}
	fmt.Printf("%d reminder(s) sent\n", len(views))
	return nil
}
