package cli

import (
	"context"
	"errors"
	"flag"
	"io"
	"strings"

	"github.com/platinummonkey/idctl/pkg/admin"
	"github.com/platinummonkey/idctl/pkg/reconciler"
)

// applyIDs sets ids on or off. A single id is applied immediately; several
// are saved as one batch.
func applyIDs(ctx context.Context, ids []string, on bool, toggle func(context.Context, string, bool) error, editor *reconciler.Editor) error {
	if len(ids) == 1 {
		return toggle(ctx, ids[0], on)
	}
	for _, id := range ids {
		if err := editor.Select(id, on); err != nil {
			return err
		}
	}
	return editor.Save(ctx)
}

func (a *App) newRolePermissionsCommand() *Command {
	group := a.group("role-permissions", "Show or change which permissions a role holds")

	var roleID, serviceID string
	scope := func(fs *flag.FlagSet) {
		fs.StringVar(&roleID, "role", "", "Role id (required)")
		fs.StringVar(&serviceID, "service", "", "Service id of the role (required)")
	}
	open := func(ctx context.Context) (*admin.RolePermissionsScreen, error) {
		if err := requireFlag(roleID, "role"); err != nil {
			return nil, err
		}
		if err := requireFlag(serviceID, "service"); err != nil {
			return nil, err
		}
		screen := admin.NewRolePermissionsScreen(a.Backend, roleID, serviceID, a.Editor)
		return screen, screen.Refresh(ctx)
	}
	printScreen := func(format string, screen *admin.RolePermissionsScreen) error {
		rows := screen.Rows()
		return a.render(format, rows, func(w io.Writer) {
			row(w, "ASSIGNED", "ID", "NAME", "RESOURCE", "ACTION")
			for _, p := range rows {
				row(w, check(p.Assigned), p.ID, p.Name, p.Resource, p.Action)
			}
		})
	}

	var format *string
	group.add(a.leaf("show", "Show the service's permissions and which the role holds", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		screen, err := open(ctx)
		if err != nil {
			return err
		}
		return printScreen(*format, screen)
	}), func(fs *flag.FlagSet) {
		scope(fs)
		format = outputFlag(fs)
	}))

	change := func(on bool) func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		return func(ctx context.Context, fs *flag.FlagSet, args []string) error {
			if err := requireArgs(args, 1, "permission id"); err != nil {
				return err
			}
			screen, err := open(ctx)
			if err != nil {
				return err
			}
			err = applyIDs(ctx, args, on, screen.Toggle, screen.Editor())
			return errors.Join(err, printScreen(FormatTable, screen))
		}
	}
	group.add(a.leaf("assign", "Give the role one or more permissions", a.adminOnly(change(true)), scope))
	group.add(a.leaf("unassign", "Take one or more permissions from the role", a.adminOnly(change(false)), scope))

	return group
}

func (a *App) newUserRolesCommand() *Command {
	group := a.group("user-roles", "Show or change a user's roles across all services")

	var userID string
	userFlag := func(fs *flag.FlagSet) {
		fs.StringVar(&userID, "user", "", "User id (required)")
	}
	open := func(ctx context.Context) (*admin.UserRolesScreen, error) {
		if err := requireFlag(userID, "user"); err != nil {
			return nil, err
		}
		screen := admin.NewUserRolesScreen(a.Backend, userID, a.Editor)
		return screen, screen.Refresh(ctx)
	}
	printScreen := func(format string, screen *admin.UserRolesScreen) error {
		groups := screen.Groups()
		return a.render(format, groups, func(w io.Writer) {
			row(w, "SERVICE", "ASSIGNED", "ID", "ROLE")
			for _, g := range groups {
				for _, r := range g.Roles {
					row(w, g.Service.Name, check(r.Assigned), r.ID, r.Name)
				}
			}
		})
	}

	var format *string
	group.add(a.leaf("show", "Show every role grouped by service", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		screen, err := open(ctx)
		if err != nil {
			return err
		}
		return printScreen(*format, screen)
	}), func(fs *flag.FlagSet) {
		userFlag(fs)
		format = outputFlag(fs)
	}))

	change := func(on bool) func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		return func(ctx context.Context, fs *flag.FlagSet, args []string) error {
			if err := requireArgs(args, 1, "role id"); err != nil {
				return err
			}
			screen, err := open(ctx)
			if err != nil {
				return err
			}
			err = applyIDs(ctx, args, on, screen.Toggle, screen.Editor())
			return errors.Join(err, printScreen(FormatTable, screen))
		}
	}
	group.add(a.leaf("grant", "Grant the user one or more roles", a.adminOnly(change(true)), userFlag))
	group.add(a.leaf("revoke", "Revoke one or more roles from the user", a.adminOnly(change(false)), userFlag))

	return group
}

func (a *App) newUserServicesCommand() *Command {
	group := a.group("user-services", "Show or change a user's services and their roles")

	var userID string
	userFlag := func(fs *flag.FlagSet) {
		fs.StringVar(&userID, "user", "", "User id (required)")
	}
	open := func(ctx context.Context) (*admin.UserServicesScreen, error) {
		if err := requireFlag(userID, "user"); err != nil {
			return nil, err
		}
		screen := admin.NewUserServicesScreen(a.Backend, userID, a.Editor)
		return screen, screen.Refresh(ctx)
	}
	printScreen := func(format string, screen *admin.UserServicesScreen) error {
		assigned := screen.Assigned()
		return a.render(format, assigned, func(w io.Writer) {
			row(w, "SERVICE", "ID", "ROLES")
			for _, s := range assigned {
				var names []string
				for _, r := range s.Roles {
					for _, id := range s.AssignedRoleIDs {
						if r.ID == id {
							names = append(names, r.Name)
						}
					}
				}
				roles := strings.Join(names, ", ")
				if roles == "" {
					roles = "-"
				}
				row(w, s.Service.Name, s.Service.ID, roles)
			}
			for _, s := range screen.Unassigned() {
				row(w, s.Name+" (not assigned)", s.ID, "-")
			}
		})
	}

	var format *string
	group.add(a.leaf("show", "Show assigned services with the user's roles", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		screen, err := open(ctx)
		if err != nil {
			return err
		}
		return printScreen(*format, screen)
	}), func(fs *flag.FlagSet) {
		userFlag(fs)
		format = outputFlag(fs)
	}))

	group.add(a.leaf("assign", "Assign a service to the user", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "service id"); err != nil {
			return err
		}
		screen, err := open(ctx)
		if err != nil {
			return err
		}
		if _, err := screen.AssignService(ctx, args[0]); err != nil {
			return err
		}
		return printScreen(FormatTable, screen)
	}), userFlag))

	group.add(a.leaf("unassign", "Remove a service from the user", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "service id"); err != nil {
			return err
		}
		screen, err := open(ctx)
		if err != nil {
			return err
		}
		if err := screen.UnassignService(ctx, args[0]); err != nil {
			return err
		}
		return printScreen(FormatTable, screen)
	}), userFlag))

	var serviceID string
	group.add(a.leaf("set-roles", "Set exactly which roles the user holds in a service", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireFlag(serviceID, "service"); err != nil {
			return err
		}
		screen, err := open(ctx)
		if err != nil {
			return err
		}
		err = screen.SaveRoles(ctx, serviceID, splitIDs(args))
		return errors.Join(err, printScreen(FormatTable, screen))
	}), func(fs *flag.FlagSet) {
		userFlag(fs)
		fs.StringVar(&serviceID, "service", "", "Service id (required)")
	}))

	return group
}

// splitIDs accepts ids as separate arguments, comma-separated, or both
func splitIDs(args []string) []string {
	var ids []string
	for _, arg := range args {
		for _, id := range strings.Split(arg, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func check(b bool) string {
	if b {
		return "[x]"
	}
	return "[ ]"
}
