// Package admin implements the management commands of the accounts CLI:
// applying migrations and creating a superuser.
package admin

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/dmitrijs2005/accounts/internal/flagx"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/validation"
)

// ErrUsage is returned for a missing or unknown command.
var ErrUsage = errors.New("usage: cli <migrate|createsuperuser> [flags]")

const maxPasswordTries = 3

type Accounts interface {
	CreateSuperuser(ctx context.Context, userName, email, password string) (*models.User, error)
}

type Migrator interface {
	Migrate(ctx context.Context) error
}

type CLI struct {
	accounts Accounts
	migrator Migrator
	in       *bufio.Reader
	out      io.Writer
}

func New(accounts Accounts, migrator Migrator, in io.Reader, out io.Writer) *CLI {
	return &CLI{accounts: accounts, migrator: migrator, in: bufio.NewReader(in), out: out}
}

// Run executes the command named by args[0].
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "migrate":
		if err := c.migrator.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Migrations applied.")
		return nil
	case "createsuperuser":
		return c.createSuperuser(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprintln(c.out, ErrUsage.Error())
		return nil
	default:
		return ErrUsage
	}
}

func (c *CLI) createSuperuser(ctx context.Context, args []string) error {
	var userName, email string
	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	fs.SetOutput(c.out)
	fs.StringVar(&userName, "username", "", "Username")
	fs.StringVar(&email, "email", "", "Email address")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-username", "--username", "-email", "--email"})); err != nil {
		return err
	}

	var err error
	if userName == "" {
		if userName, err = GetSimpleText(c.in, "Username", c.out); err != nil {
			return err
		}
	}
	if email == "" {
		if email, err = GetSimpleText(c.in, "Email address", c.out); err != nil {
			return err
		}
	}

	for try := 1; ; try++ {
		password, err := c.readNewPassword()
		if err != nil {
			return err
		}

		u, err := c.accounts.CreateSuperuser(ctx, userName, email, password)
		if err == nil {
			fmt.Fprintf(c.out, "Superuser %s created successfully.\n", u.UserName)
			return nil
		}

		var verrs validation.Errors
		if !errors.As(err, &verrs) {
			return err
		}
		c.printErrors(verrs)

		// Only password problems can be fixed by asking again.
		if try >= maxPasswordTries || len(verrs) != 1 || !verrs.Has("password") {
			return err
		}
	}
}

const msgPasswordMismatch = "Error: Your passwords didn't match."

var errPasswordMismatch = errors.New("passwords did not match")

func (c *CLI) readNewPassword() (string, error) {
	for try := 1; ; try++ {
		p1, err := GetPassword(c.in, "Password", c.out)
		if err != nil {
			return "", err
		}
		p2, err := GetPassword(c.in, "Password (again)", c.out)
		if err != nil {
			return "", err
		}
		if p1 == p2 {
			return p1, nil
		}
		fmt.Fprintln(c.out, msgPasswordMismatch)
		if try >= maxPasswordTries {
			return "", errPasswordMismatch
		}
	}
}

func (c *CLI) printErrors(verrs validation.Errors) {
	fields := make([]string, 0, len(verrs))
	for f := range verrs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		for _, m := range verrs[f] {
			fmt.Fprintf(c.out, "Error (%s): %s\n", f, m)
		}
	}
}
