package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/platinummonkey/idctl/pkg/admin"
	"github.com/platinummonkey/idctl/pkg/identity"
)

func (a *App) newServicesCommand() *Command {
	group := a.group("services", "Manage registered services")
	services := admin.NewServices(a.Backend)

	var listFormat *string
	group.add(a.leaf("list", "List services", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		list, err := services.List(ctx)
		if err != nil {
			return err
		}
		return a.render(*listFormat, list, servicesTable(list))
	}), func(fs *flag.FlagSet) { listFormat = outputFlag(fs) }))

	var showFormat *string
	group.add(a.leaf("show", "Show one service", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "service id"); err != nil {
			return err
		}
		svc, err := services.Show(ctx, args[0])
		if err != nil {
			return err
		}
		return a.render(*showFormat, svc, servicesTable([]identity.Service{*svc}))
	}), func(fs *flag.FlagSet) { showFormat = outputFlag(fs) }))

	var in admin.ServiceInput
	serviceFlags := func(fs *flag.FlagSet) {
		fs.StringVar(&in.Name, "name", "", "Service name")
		fs.StringVar(&in.Description, "description", "", "Description")
		fs.StringVar(&in.URL, "url", "", "Base URL")
		fs.StringVar(&in.Port, "port", "", "Port")
		fs.BoolVar(&in.Active, "active", true, "Whether the service is active")
	}

	group.add(a.leaf("create", "Create a service", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		list, err := services.Create(ctx, in)
		if err != nil {
			return err
		}
		return a.render(FormatTable, list, servicesTable(list))
	}), serviceFlags))

	var update admin.ServiceInput
	group.add(a.leaf("update", "Update a service; unset flags keep their values", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "service id"); err != nil {
			return err
		}
		current, err := services.Show(ctx, args[0])
		if err != nil {
			return err
		}

		merged := serviceInputFrom(current)
		set := visited(fs)
		if set["name"] {
			merged.Name = update.Name
		}
		if set["description"] {
			merged.Description = update.Description
		}
		if set["url"] {
			merged.URL = update.URL
		}
		if set["port"] {
			merged.Port = update.Port
		}
		if set["active"] {
			merged.Active = update.Active
		}

		list, err := services.Update(ctx, args[0], merged)
		if err != nil {
			return err
		}
		return a.render(FormatTable, list, servicesTable(list))
	}), func(fs *flag.FlagSet) {
		fs.StringVar(&update.Name, "name", "", "Service name")
		fs.StringVar(&update.Description, "description", "", "Description; empty clears it")
		fs.StringVar(&update.URL, "url", "", "Base URL; empty clears it")
		fs.StringVar(&update.Port, "port", "", "Port; empty clears it")
		fs.BoolVar(&update.Active, "active", true, "Whether the service is active")
	}))

	group.add(a.leaf("delete", "Delete a service", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "service id"); err != nil {
			return err
		}
		list, err := services.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		return a.render(FormatTable, list, servicesTable(list))
	}), nil))

	return group
}

func serviceInputFrom(s *identity.Service) admin.ServiceInput {
	in := admin.ServiceInput{
		Name:        s.Name,
		Description: orEmpty(s.Description),
		URL:         orEmpty(s.URL),
		Active:      s.IsActive,
	}
	if s.Port != nil {
		in.Port = strconv.Itoa(*s.Port)
	}
	return in
}

func (a *App) newRolesCommand() *Command {
	group := a.group("roles", "Manage the roles of a service")

	var serviceID string
	serviceFlag := func(fs *flag.FlagSet) {
		fs.StringVar(&serviceID, "service", "", "Service id (required)")
	}
	roles := func() (*admin.Roles, error) {
		if err := requireFlag(serviceID, "service"); err != nil {
			return nil, err
		}
		return admin.NewRoles(a.Backend, serviceID), nil
	}

	var format *string
	group.add(a.leaf("list", "List roles", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		r, err := roles()
		if err != nil {
			return err
		}
		list, err := r.List(ctx)
		if err != nil {
			return err
		}
		return a.render(*format, list, rolesTable(list))
	}), func(fs *flag.FlagSet) {
		serviceFlag(fs)
		format = outputFlag(fs)
	}))

	var name, description string
	group.add(a.leaf("create", "Create a role", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		r, err := roles()
		if err != nil {
			return err
		}
		list, err := r.Create(ctx, name, description)
		if err != nil {
			return err
		}
		return a.render(FormatTable, list, rolesTable(list))
	}), func(fs *flag.FlagSet) {
		serviceFlag(fs)
		fs.StringVar(&name, "name", "", "Role name")
		fs.StringVar(&description, "description", "", "Description")
	}))

	var newName, newDescription string
	group.add(a.leaf("update", "Update a role; unset flags keep their values", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "role id"); err != nil {
			return err
		}
		r, err := roles()
		if err != nil {
			return err
		}
		current, err := r.Find(ctx, args[0])
		if err != nil {
			return err
		}

		set := visited(fs)
		n, d := current.Name, current.Description
		if set["name"] {
			n = newName
		}
		if set["description"] {
			d = newDescription
		}
		list, err := r.Update(ctx, args[0], n, d)
		if err != nil {
			return err
		}
		return a.render(FormatTable, list, rolesTable(list))
	}), func(fs *flag.FlagSet) {
		serviceFlag(fs)
		fs.StringVar(&newName, "name", "", "Role name")
		fs.StringVar(&newDescription, "description", "", "Description")
	}))

	group.add(a.leaf("delete", "Delete a role", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "role id"); err != nil {
			return err
		}
		r, err := roles()
		if err != nil {
			return err
		}
		list, err := r.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		return a.render(FormatTable, list, rolesTable(list))
	}), serviceFlag))

	return group
}

func (a *App) newPermissionsCommand() *Command {
	group := a.group("permissions", "Manage the permissions of a service")

	var serviceID string
	serviceFlag := func(fs *flag.FlagSet) {
		fs.StringVar(&serviceID, "service", "", "Service id (required)")
	}
	permissions := func() (*admin.Permissions, error) {
		if err := requireFlag(serviceID, "service"); err != nil {
			return nil, err
		}
		return admin.NewPermissions(a.Backend, serviceID), nil
	}
	inputFlags := func(in *admin.PermissionInput) func(fs *flag.FlagSet) {
		return func(fs *flag.FlagSet) {
			serviceFlag(fs)
			fs.StringVar(&in.Name, "name", "", "Permission name")
			fs.StringVar(&in.Resource, "resource", "", "Resource, e.g. invoice")
			fs.StringVar(&in.Action, "action", "", "Action, e.g. read")
			fs.StringVar(&in.Description, "description", "", "Description")
		}
	}
	printList := func(list []identity.Permission) error {
		return a.render(FormatTable, list, permissionsTable(list))
	}

	var format *string
	group.add(a.leaf("list", "List permissions", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		p, err := permissions()
		if err != nil {
			return err
		}
		list, err := p.List(ctx)
		if err != nil {
			return err
		}
		return a.render(*format, list, permissionsTable(list))
	}), func(fs *flag.FlagSet) {
		serviceFlag(fs)
		format = outputFlag(fs)
	}))

	var create admin.PermissionInput
	group.add(a.leaf("create", "Create a permission", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		p, err := permissions()
		if err != nil {
			return err
		}
		list, err := p.Create(ctx, create)
		if err != nil {
			return err
		}
		return printList(list)
	}), inputFlags(&create)))

	var update admin.PermissionInput
	group.add(a.leaf("update", "Update a permission; unset flags keep their values", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "permission id"); err != nil {
			return err
		}
		p, err := permissions()
		if err != nil {
			return err
		}
		list, err := p.List(ctx)
		if err != nil {
			return err
		}
		var merged *admin.PermissionInput
		for _, perm := range list {
			if perm.ID == args[0] {
				merged = &admin.PermissionInput{Name: perm.Name, Resource: perm.Resource, Action: perm.Action, Description: perm.Description}
			}
		}
		if merged == nil {
			return fmt.Errorf("permission %s not found in service %s", args[0], serviceID)
		}

		set := visited(fs)
		if set["name"] {
			merged.Name = update.Name
		}
		if set["resource"] {
			merged.Resource = update.Resource
		}
		if set["action"] {
			merged.Action = update.Action
		}
		if set["description"] {
			merged.Description = update.Description
		}

		list, err = p.Update(ctx, args[0], *merged)
		if err != nil {
			return err
		}
		return printList(list)
	}), inputFlags(&update)))

	group.add(a.leaf("delete", "Delete a permission", a.adminOnly(func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := requireArgs(args, 1, "permission id"); err != nil {
			return err
		}
		p, err := permissions()
		if err != nil {
			return err
		}
		list, err := p.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		return printList(list)
	}), serviceFlag))

	return group
}
