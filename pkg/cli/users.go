package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/platinummonkey/idctl/pkg/admin"
	"github.com/platinummonkey/idctl/pkg/identity"
)

func (a *App) newUsersCommand() *Command {
	group := a.group("users", "Manage user accounts")
	users := admin.NewUsers(a.Backend)

	printList := func(list []identity.UserProfile) error {
		return a.render(FormatTable, list, usersTable(list))
	}

	var listFormat *string
	group.add(a.leaf("list", "List users", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		list, err := users.List(ctx)
		if err != nil {
			return err
		}
		return a.render(*listFormat, list, usersTable(list))
	}), func(fs *flag.FlagSet) { listFormat = outputFlag(fs) }))

	var showFormat *string
	group.add(a.leaf("show", "Show one user", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "user id"); err != nil {
			return err
		}
		user, err := users.Show(ctx, args[0])
		if err != nil {
			return err
		}
		return a.render(*showFormat, user, usersTable([]identity.UserProfile{*user}))
	}), func(fs *flag.FlagSet) { showFormat = outputFlag(fs) }))

	var create identity.CreateUserRequest
	group.add(a.leaf("create", "Create a user", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if create.Password == "" {
			p, err := a.prompt("Password")
			if err != nil {
				return err
			}
			create.Password = p
		}
		list, err := users.Create(ctx, create)
		if err != nil {
			return err
		}
		return printList(list)
	}), func(fs *flag.FlagSet) {
		fs.StringVar(&create.FirstName, "first", "", "First name")
		fs.StringVar(&create.MiddleName, "middle", "", "Middle name")
		fs.StringVar(&create.LastName, "last", "", "Last name")
		fs.StringVar(&create.Email, "email", "", "Email address")
		fs.StringVar(&create.Password, "password", "", "Initial password; prompted when omitted")
	}))

	var first, middle, last, email string
	group.add(a.leaf("update", "Update a user's profile; unset flags keep their values", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "user id"); err != nil {
			return err
		}
		current, err := users.Show(ctx, args[0])
		if err != nil {
			return err
		}

		req := identity.UpdateProfileRequest{
			FirstName:  current.FirstName,
			MiddleName: current.MiddleName,
			LastName:   current.LastName,
			Email:      current.Email,
		}
		set := visited(fs)
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

		list, err := users.Update(ctx, args[0], req)
		if err != nil {
			return err
		}
		return printList(list)
	}), func(fs *flag.FlagSet) {
		fs.StringVar(&first, "first", "", "First name")
		fs.StringVar(&middle, "middle", "", "Middle name; empty clears it")
		fs.StringVar(&last, "last", "", "Last name")
		fs.StringVar(&email, "email", "", "Email address")
	}))

	byID := []struct {
		name, description string
		op                func(context.Context, string) ([]identity.UserProfile, error)
	}{
		{"activate", "Activate a user", users.Activate},
		{"deactivate", "Deactivate a user", users.Deactivate},
		{"unlock", "Unlock a locked-out account", users.Unlock},
		{"delete", "Delete a user", users.Delete},
	}
	for _, c := range byID {
		group.add(a.leaf(c.name, c.description, a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
			if err := requireArgs(args, 1, "user id"); err != nil {
				return err
			}
			list, err := c.op(ctx, args[0])
			if err != nil {
				return fmt.Errorf("%s %s: %w", c.name, args[0], err)
			}
			return printList(list)
		}), nil))
	}

	return group
}
