package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/platinummonkey/idctl/pkg/admin"
	"github.com/platinummonkey/idctl/pkg/identity"
	"github.com/platinummonkey/idctl/pkg/session"
)

func (a *App) newLoginCommand() *Command {
	var username, password string
	return a.leaf("login", "Log in and store the session token", func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		var err error
		if username == "" {
			if username, err = a.prompt("Username"); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = a.prompt("Password"); err != nil {
				return err
			}
		}
		if err := requireFlag(username, "username"); err != nil {
			return err
		}

		token, err := a.Backend.Login(ctx, username, password)
		if err != nil {
			return err
		}
		if err := a.Session.SetToken(ctx, token.AccessToken); err != nil {
			// the session is live; only persisting it failed
			fmt.Fprintf(a.Out, "warning: %v\n", err)
		}
		_ = a.Session.WaitHydration(ctx)

		user := a.Session.User()
		if user == nil {
			return fmt.Errorf("login succeeded but the token could not be decoded")
		}
		fmt.Fprintf(a.Out, "Logged in as %s\n", user.DisplayName())
		return nil
	}, func(fs *flag.FlagSet) {
		fs.StringVar(&username, "username", "", "Username (email)")
		fs.StringVar(&password, "password", "", "Password; prompted when omitted")
	})
}

func (a *App) newLogoutCommand() *Command {
	return a.leaf("logout", "Log out and clear the stored token", func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := a.Session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.Out, "Logged out")
		return nil
	}, nil)
}

// whoamiView is the JSON shape of whoami
type whoamiView struct {
	ID       string              `json:"id"`
	Email    string              `json:"email"`
	Name     string              `json:"name"`
	Admin    bool                `json:"admin"`
	Roles    map[string][]string `json:"roles"`
	Hydrated bool                `json:"hydrated"`
}

func (a *App) newWhoamiCommand() *Command {
	var format *string
	return a.leaf("whoami", "Show the signed-in user", func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if _, err := a.Session.RequireToken(); err != nil {
			return err
		}
		// a stale profile is still worth showing
		_ = a.Session.HydrateNow(ctx)

		user := a.Session.User()
		if user == nil {
			return session.ErrNotLoggedIn
		}
		view := whoamiView{
			ID:       user.ID,
			Email:    user.Email,
			Name:     user.DisplayName(),
			Admin:    a.Session.IsAdmin(),
			Roles:    user.Roles,
			Hydrated: user.Hydrated,
		}
		return a.render(*format, view, func(w io.Writer) {
			row(w, "ID", view.ID)
			row(w, "EMAIL", view.Email)
			row(w, "NAME", view.Name)
			row(w, "ADMIN", yesNo(view.Admin))
			services := make([]string, 0, len(view.Roles))
			for svc := range view.Roles {
				services = append(services, svc)
			}
			sort.Strings(services)
			for _, svc := range services {
				row(w, "ROLES", svc+": "+strings.Join(view.Roles[svc], ", "))
			}
		})
	}, func(fs *flag.FlagSet) {
		format = outputFlag(fs)
	})
}

func (a *App) newProfileCommand() *Command {
	group := a.group("profile", "Manage your own profile")

	var first, middle, last, email string
	group.add(a.leaf("update", "Update your name or email", func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		current, err := a.Backend.CurrentProfile(ctx)
		if err != nil {
			return err
		}
		set := visited(fs)
		req := identity.UpdateProfileRequest{
			FirstName:  current.FirstName,
			MiddleName: current.MiddleName,
			LastName:   current.LastName,
			Email:      current.Email,
		}
		if set["first"] {
			req.FirstName = first
		}
		if set["middle"] {
			req.MiddleName = &middle
		}
		if set["last"] {
			req.LastName = last
		}
		if set["email"] {
			req.Email = email
		}

		profile, err := admin.NewAccount(a.Backend, a.Session).UpdateProfile(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "Profile updated: %s <%s>\n", profile.FullName(), profile.Email)
		return nil
	}, func(fs *flag.FlagSet) {
		fs.StringVar(&first, "first", "", "First name")
		fs.StringVar(&middle, "middle", "", "Middle name; empty clears it")
		fs.StringVar(&last, "last", "", "Last name")
		fs.StringVar(&email, "email", "", "Email address")
	}))

	return group
}

func (a *App) newPasswdCommand() *Command {
	var current, next, confirm string
	return a.leaf("passwd", "Change your password", func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if _, err := a.Session.RequireToken(); err != nil {
			return err
		}
		for _, p := range []struct {
			value *string
			label string
		}{
			{&current, "Current password"},
			{&next, "New password"},
			{&confirm, "Confirm new password"},
		} {
			if *p.value != "" {
				continue
			}
			v, err := a.prompt(p.label)
			if err != nil {
				return err
			}
			*p.value = v
		}

		if err := admin.NewAccount(a.Backend, a.Session).ChangePassword(ctx, current, next, confirm); err != nil {
			return err
		}
		fmt.Fprintln(a.Out, "Password changed")
		return nil
	}, func(fs *flag.FlagSet) {
		fs.StringVar(&current, "current", "", "Current password; prompted when omitted")
		fs.StringVar(&next, "new", "", "New password; prompted when omitted")
		fs.StringVar(&confirm, "confirm", "", "New password again; prompted when omitted")
	})
}
