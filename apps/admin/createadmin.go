package main

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// createAdmin creates an admin owner, or promotes the user owning uname or email.
func (cli *commandLine) createAdmin(name, uname, email, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	if msg := user.CheckPasswordPolicy(pwd, name, uname, email); msg != "" {
		return errors.New(msg)
	}

	usr, err := cli.users.GetByUsernameOrEmail(ctx, uname)
	if pkgerrors.Cause(err) == user.ErrNotFound {
		usr, err = cli.users.GetByUsernameOrEmail(ctx, email)
	}
	switch {
	case pkgerrors.Cause(err) == user.ErrNotFound:
		usr, err = user.NewRecord(user.NewUser{
			Name:     name,
			Username: uname,
			Email:    email,
			Password: pwd,
			Roles:    []string{user.RoleAdminOwner},
		}, time.Now())
		if err != nil {
			return err
		}
		return pkgerrors.Wrap(cli.users.Create(ctx, usr), "creating admin")
	case err != nil:
		return err
	}

	if !usr.HasAnyRole(user.RoleAdminOwner) {
		usr.Roles = append(usr.Roles, user.RoleAdminOwner)
	}
	usr.IsActive = true
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	return pkgerrors.Wrap(cli.users.Update(ctx, usr), "promoting admin")
}
