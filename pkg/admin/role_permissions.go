package admin

import (
	"context"
	"sync"

	"github.com/platinummonkey/idctl/pkg/identity"
	"github.com/platinummonkey/idctl/pkg/reconciler"
)

// PermissionRow is one permission of the role's service with its state
type PermissionRow struct {
	identity.Permission
	Assigned bool
	Selected bool
}

// RolePermissionsScreen edits which permissions of a service a role holds,
// one checkbox at a time
type RolePermissionsScreen struct {
	api       AssignmentAPI
	roleID    string
	serviceID string
	editor    *reconciler.Editor

	mu    sync.Mutex
	perms []identity.PermissionForRole
}

func NewRolePermissionsScreen(api AssignmentAPI, roleID, serviceID string, opts reconciler.Options) *RolePermissionsScreen {
	s := &RolePermissionsScreen{api: api, roleID: roleID, serviceID: serviceID}
	if opts.Name == "" {
		opts.Name = "role_permissions"
	}
	s.editor = reconciler.NewEditor(reconciler.Funcs{
		LoadFunc: s.load,
		AssignFunc: func(ctx context.Context, id string) error {
			return api.AssignPermission(ctx, roleID, id)
		},
		UnassignFunc: func(ctx context.Context, id string) error {
			return api.UnassignPermission(ctx, roleID, id)
		},
	}, opts)
	return s
}

func (s *RolePermissionsScreen) load(ctx context.Context) ([]string, error) {
	perms, err := s.api.RolePermissions(ctx, s.roleID, s.serviceID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.perms = perms
	s.mu.Unlock()

	var ids []string
	for _, p := range perms {
		if p.IsAssigned {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// Refresh re-fetches the permissions and their assignment state
func (s *RolePermissionsScreen) Refresh(ctx context.Context) error {
	return s.editor.Refresh(ctx)
}

// Toggle assigns or unassigns one permission immediately
func (s *RolePermissionsScreen) Toggle(ctx context.Context, permissionID string, on bool) error {
	return s.editor.ToggleNow(ctx, permissionID, on)
}

// Rows returns the permissions in server order
func (s *RolePermissionsScreen) Rows() []PermissionRow {
	s.mu.Lock()
	perms := s.perms
	s.mu.Unlock()

	rows := make([]PermissionRow, 0, len(perms))
	for _, p := range perms {
		rows = append(rows, PermissionRow{
			Permission: p.Permission,
			Assigned:   s.editor.Assigned(p.ID),
			Selected:   s.editor.Selected(p.ID),
		})
	}
	return rows
}

func (s *RolePermissionsScreen) Editor() *reconciler.Editor {
	return s.editor
}
