// Package cli implements authctl, a small administrative client that runs
// the auth core against the configured database:
//
//	authctl register [email]   create a user (password read without echo)
//	authctl login [email]      print an access token
//	authctl verify <token>     print the user a token belongs to
//	authctl deactivate <id>    soft-delete a user
//	authctl show <email>       print a user
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/shopscale-auth/internal/common"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/models"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/schemas"
)

// AuthService is the part of services.AuthService the CLI drives.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	Deactivate(ctx context.Context, id string) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// ErrUsage is returned for unknown commands or missing arguments.
var ErrUsage = errors.New("usage: authctl [flags] register|login|verify|deactivate|show [args]")

type App struct {
	auth   AuthService
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(auth AuthService, in io.Reader, out io.Writer) *App {
	return &App{auth: auth, reader: bufio.NewReader(in), out: out}
}

// Run executes the subcommand in args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "verify":
		return a.verify(ctx, rest)
	case "deactivate":
		return a.deactivate(ctx, rest)
	case "show":
		return a.show(ctx, rest)
	case "help":
		_, err := fmt.Fprintln(a.out, ErrUsage.Error())
		return err
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, ErrUsage)
	}
}

func (a *App) register(ctx context.Context, args []string) error {
	email, password, err := a.credentials(args)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.auth.Register(ctx, email, string(password))
	if err != nil {
		return err
	}
	return a.printUser(user)
}

func (a *App) login(ctx context.Context, args []string) error {
	email, password, err := a.credentials(args)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	token, _, err := a.auth.Login(ctx, email, string(password))
	if err != nil {
		if common.IsAuthFailure(err) {
			return common.ErrorUnauthorized
		}
		return err
	}
	_, err = fmt.Fprintln(a.out, token)
	return err
}

func (a *App) verify(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	user, err := a.auth.Authenticate(ctx, args[0])
	if err != nil {
		return err
	}
	return a.printUser(user)
}

func (a *App) deactivate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	if err := a.auth.Deactivate(ctx, args[0]); err != nil {
		return err
	}
	_, err := fmt.Fprintf(a.out, "user %s deactivated\n", args[0])
	return err
}

func (a *App) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	user, err := a.auth.FindByEmail(ctx, args[0])
	if err != nil {
		return err
	}
	return a.printUser(user)
}

// credentials takes the email from args or prompts for it, then reads the
// password from the terminal.
func (a *App) credentials(args []string) (string, []byte, error) {
	var email string
	switch len(args) {
	case 0:
		var err error
		if email, err = GetSimpleText(a.reader, "Email", a.out); err != nil {
			return "", nil, err
		}
	case 1:
		email = args[0]
	default:
		return "", nil, ErrUsage
	}

	password, err := GetPassword(a.out, "Password: ")
	if err != nil {
		return "", nil, fmt.Errorf("read password: %w", err)
	}
	return email, password, nil
}

func (a *App) printUser(user *models.User) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(schemas.NewUserResponse(user))
}
