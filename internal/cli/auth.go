package cli

import (
	"flag"
	"fmt"

	v1 "github.com/shenikar/cityvoice/internal/handler/http/v1"
	"github.com/shenikar/cityvoice/internal/localcache"
)

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *app) runRegister(args []string) error {
	fs := a.newFlagSet("register")
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email")
	password := fs.String("password", "", "Password (at least 6 characters)")
	role := fs.String("role", "", "Role: citizen, moderator, official, admin")
	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if *name == "" || *email == "" || *password == "" {
		return fmt.Errorf("usage: cityvoice register --name NAME --email EMAIL --password PASSWORD [--role ROLE]")
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	resp, err := client.Register(v1.RegisterRequest{Username: *name, Email: *email, Password: *password, Role: *role})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	a.printValue(resp, func() {
		fmt.Fprintf(a.out, "%s (id %s)\n", resp.Message, resp.ID)
	})
	return nil
}

func (a *app) runLogin(args []string) error {
	fs := a.newFlagSet("login")
	email := fs.String("email", "", "Email")
	password := fs.String("password", "", "Password")
	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("usage: cityvoice login --email EMAIL --password PASSWORD")
	}

	token, err := NewClient(a.gf.api, "").Login(*email, *password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	user, err := NewClient(a.gf.api, token).Me()
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	session := localcache.Session{LoggedIn: true, UserName: user.Username, UserEmail: user.Email, Token: token}
	if err := a.cache.SaveSession(a.ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	a.printValue(user, func() {
		fmt.Fprintf(a.out, "Logged in as %s <%s> (%s)\n", user.Username, user.Email, user.Role)
	})
	return nil
}

func (a *app) runLogout(_ []string) error {
	if err := a.cache.Logout(a.ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Fprintln(a.errOut, "Logged out")
	return nil
}
