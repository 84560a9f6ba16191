package main

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.users.GetByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
	if err != nil {
		return err
	}
	if msg := user.CheckPasswordPolicy(pwd, usr.Name, usr.Username, usr.Email); msg != "" {
		return errors.New(msg)
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	return cli.users.Update(ctx, usr)
}
