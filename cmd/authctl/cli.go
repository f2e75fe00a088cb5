package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mkrupp/localauth/internal/domain"
	"github.com/mkrupp/localauth/internal/svc/authsvc"
)

const usage = `usage: authctl <command> [flags] [args]

commands:
  init                                  create the store and default accounts
  useradd -admin NAME [-name N] [-role R] USERNAME
                                        create a user
  passwd USERNAME                       change a password
  passwd -reset -admin NAME USERNAME    reset a password as admin
  status USERNAME                       show login state
  strength                              rate a password
`

var (
	ErrUsage            = errors.New("invalid usage")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// cli runs authctl subcommands against an AuthManager.
type cli struct {
	authMgr *authsvc.AuthManager
	in      *bufio.Reader
	out     io.Writer

	// readPassword prompts for a secret. Without a terminal it reads a line from in.
	readPassword func(prompt string) (string, error)
}

func newCLI(authMgr *authsvc.AuthManager, stdin io.Reader, out io.Writer) *cli {
	c := &cli{
		authMgr: authMgr,
		in:      bufio.NewReader(stdin),
		out:     out,
	}

	c.readPassword = c.readLine

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		c.readPassword = func(prompt string) (string, error) {
			fmt.Fprint(c.out, prompt)

			pw, err := term.ReadPassword(fd)
			fmt.Fprintln(c.out)

			if err != nil {
				return "", fmt.Errorf("read password: %w", err)
			}

			return string(pw), nil
		}
	}

	return c
}

// Run dispatches args[0] to its subcommand.
func (c *cli) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)

		return ErrUsage
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "init":
		return c.init(ctx)
	case "useradd":
		return c.useradd(ctx, rest)
	case "passwd":
		return c.passwd(ctx, rest)
	case "status":
		return c.status(ctx, rest)
	case "strength":
		return c.strength()
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)

		return nil
	default:
		fmt.Fprint(c.out, usage)

		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (c *cli) init(ctx context.Context) error {
	if err := c.authMgr.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintln(c.out, "credential store ready")

	return nil
}

func (c *cli) useradd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	fs.SetOutput(c.out)

	admin := fs.String("admin", "", "username of the admin creating the user")
	name := fs.String("name", "", "display name (defaults to USERNAME)")
	role := fs.String("role", string(domain.RoleViewer), "role: admin, editor or viewer")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	} else if fs.NArg() != 1 || *admin == "" {
		return fmt.Errorf("%w: useradd -admin NAME USERNAME", ErrUsage)
	}

	principal, err := c.authenticate(ctx, *admin)
	if err != nil {
		return err
	}

	username := fs.Arg(0)
	if *name == "" {
		*name = username
	}

	password, err := c.newPassword()
	if err != nil {
		return err
	}

	info, err := c.authMgr.CreateUser(ctx, domain.NewUser{
		Name:     *name,
		Username: username,
		Password: password,
		Role:     domain.Role(*role),
	}, principal.Role)
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(c.out, "created %s (%s) with id %s\n", info.Username, info.Role, info.ID)

	return nil
}

func (c *cli) passwd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	fs.SetOutput(c.out)

	reset := fs.Bool("reset", false, "reset without the old password (requires -admin)")
	admin := fs.String("admin", "", "username of the admin performing the reset")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	} else if fs.NArg() != 1 || *reset != (*admin != "") {
		return fmt.Errorf("%w: passwd [-reset -admin NAME] USERNAME", ErrUsage)
	}

	var (
		username    = fs.Arg(0)
		oldPassword string
		err         error
	)

	if *reset {
		principal, err := c.authenticate(ctx, *admin)
		if err != nil {
			return err
		} else if principal.Role != domain.RoleAdmin {
			return domain.ErrForbidden
		}
	} else {
		oldPassword, err = c.readPassword("Current password: ")
		if err != nil {
			return err
		}
	}

	newPassword, err := c.newPassword()
	if err != nil {
		return err
	}

	if err := c.authMgr.ChangePassword(ctx, username, oldPassword, newPassword, *reset); err != nil {
		return describe(err)
	}

	fmt.Fprintf(c.out, "password of %s changed\n", username)

	return nil
}

func (c *cli) status(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: status USERNAME", ErrUsage)
	}

	status := c.authMgr.Status(ctx, args[0])

	fmt.Fprintf(c.out, "username:             %s\n", status.Username)
	fmt.Fprintf(c.out, "must change password: %t\n", status.MustChangePassword)
	fmt.Fprintf(c.out, "remaining attempts:   %d\n", status.RemainingAttempts)
	fmt.Fprintf(c.out, "lockout seconds:      %d\n", status.LockoutSeconds)

	return nil
}

func (c *cli) strength() error {
	password, err := c.readPassword("Password: ")
	if err != nil {
		return err
	}

	result := authsvc.ValidatePassword(password)

	fmt.Fprintf(c.out, "strength: %d (%s)\n", result.Strength, authsvc.StrengthLabel(result.Strength))
	fmt.Fprintf(c.out, "valid:    %t\n", result.Valid)

	for _, reason := range result.Errors {
		fmt.Fprintf(c.out, "  - %s\n", reason)
	}

	for _, suggestion := range authsvc.PasswordSuggestions(password) {
		fmt.Fprintf(c.out, "  * %s\n", suggestion)
	}

	return nil
}

func (c *cli) authenticate(ctx context.Context, username string) (domain.UserInfo, error) {
	password, err := c.readPassword("Password for " + username + ": ")
	if err != nil {
		return domain.UserInfo{}, err
	}

	info, err := c.authMgr.Authenticate(ctx, username, password)
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("authenticate %s: %w", username, err)
	}

	return info, nil
}

func (c *cli) newPassword() (string, error) {
	password, err := c.readPassword("New password: ")
	if err != nil {
		return "", err
	}

	confirm, err := c.readPassword("Repeat new password: ")
	if err != nil {
		return "", err
	}

	if password != confirm {
		return "", ErrPasswordMismatch
	}

	return password, nil
}

func (c *cli) readLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)

	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read line: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// describe spells out validation reasons one per line.
func describe(err error) error {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	return fmt.Errorf("%w:\n  - %s", domain.ErrValidation, strings.Join(verr.Reasons, "\n  - "))
}
