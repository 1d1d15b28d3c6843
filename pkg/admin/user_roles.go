package admin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/platinummonkey/idctl/pkg/async"
	"github.com/platinummonkey/idctl/pkg/identity"
	"github.com/platinummonkey/idctl/pkg/reconciler"
)

// RoleRow is one role with its state for the user
type RoleRow struct {
	identity.Role
	Assigned bool
	Selected bool
}

// RoleGroup is the roles of one service
type RoleGroup struct {
	Service identity.Service
	Roles   []RoleRow
}

// UserRolesScreen edits every role a user holds across all services, one
// checkbox at a time
type UserRolesScreen struct {
	api         AssignmentAPI
	userID      string
	concurrency int
	editor      *reconciler.Editor

	mu     sync.Mutex
	groups []serviceRoles
}

type serviceRoles struct {
	service identity.Service
	roles   []identity.Role
}

func NewUserRolesScreen(api AssignmentAPI, userID string, opts reconciler.Options) *UserRolesScreen {
	s := &UserRolesScreen{api: api, userID: userID, concurrency: opts.Concurrency}
	if opts.Name == "" {
		opts.Name = "user_roles"
	}
	s.editor = reconciler.NewEditor(reconciler.Funcs{
		LoadFunc: s.load,
		AssignFunc: func(ctx context.Context, id string) error {
			return api.AssignRole(ctx, userID, id)
		},
		UnassignFunc: func(ctx context.Context, id string) error {
			return api.UnassignRole(ctx, userID, id)
		},
	}, opts)
	return s
}

func (s *UserRolesScreen) load(ctx context.Context) ([]string, error) {
	services, err := s.api.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	userRoles, err := s.api.UserRoles(ctx, s.userID)
	if err != nil {
		return nil, err
	}

	var withID []identity.Service
	for _, svc := range services {
		if svc.ID != "" {
			withID = append(withID, svc)
		}
	}

	groups := make([]serviceRoles, len(withID))
	errs := async.Batch(ctx, withIndex(withID), s.concurrency, func(ctx context.Context, item indexed[identity.Service]) error {
		roles, err := s.api.ListRoles(ctx, item.value.ID)
		if err != nil {
			return fmt.Errorf("load roles for %s: %w", item.value.Name, err)
		}
		sort.SliceStable(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
		groups[item.index] = serviceRoles{service: item.value, roles: roles}
		return nil
	})
	if err := firstError(errs); err != nil {
		return nil, err
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].service.Name < groups[j].service.Name })

	s.mu.Lock()
	s.groups = groups
	s.mu.Unlock()

	ids := make([]string, 0, len(userRoles))
	for _, r := range userRoles {
		if r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

// Refresh re-fetches services, their roles, and the user's roles
func (s *UserRolesScreen) Refresh(ctx context.Context) error {
	return s.editor.Refresh(ctx)
}

// Toggle grants or revokes one role immediately
func (s *UserRolesScreen) Toggle(ctx context.Context, roleID string, on bool) error {
	return s.editor.ToggleNow(ctx, roleID, on)
}

// Groups returns roles grouped by service, both sorted by name
func (s *UserRolesScreen) Groups() []RoleGroup {
	s.mu.Lock()
	groups := s.groups
	s.mu.Unlock()

	out := make([]RoleGroup, 0, len(groups))
	for _, g := range groups {
		group := RoleGroup{Service: g.service, Roles: make([]RoleRow, 0, len(g.roles))}
		for _, r := range g.roles {
			group.Roles = append(group.Roles, RoleRow{
				Role:     r,
				Assigned: s.editor.Assigned(r.ID),
				Selected: s.editor.Selected(r.ID),
			})
		}
		out = append(out, group)
	}
	return out
}

func (s *UserRolesScreen) Editor() *reconciler.Editor {
	return s.editor
}

type indexed[T any] struct {
	index int
	value T
}

func withIndex[T any](items []T) []indexed[T] {
	out := make([]indexed[T], len(items))
	for i, v := range items {
		out[i] = indexed[T]{index: i, value: v}
	}
	return out
}
