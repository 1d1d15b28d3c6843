package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/platinummonkey/idctl/pkg/async"
	"github.com/platinummonkey/idctl/pkg/identity"
	"github.com/platinummonkey/idctl/pkg/reconciler"
)

var (
	ErrServiceNotAssigned = errors.New("admin: service is not assigned to the user")
	ErrUnknownRole        = errors.New("admin: role does not belong to the service")
)

// ServiceRoles is an assigned service with its roles and the ones the user
// holds
type ServiceRoles struct {
	Service         identity.Service
	Roles           []identity.Role
	AssignedRoleIDs []string
}

// UserServicesScreen manages which services a user is assigned to and,
// per assigned service, which of its roles the user holds. Role edits are
// saved as a batch.
//
// Service assignment and role grants are separate relations. Unassigning a
// service does not revoke its roles on the server, but roles are only shown
// under assigned services, so the service disappears with all its roles.
type UserServicesScreen struct {
	api    AssignmentAPI
	userID string
	opts   reconciler.Options

	mu       sync.Mutex
	assigned []ServiceRoles
	all      []identity.Service
	editors  map[string]*reconciler.Editor
}

func NewUserServicesScreen(api AssignmentAPI, userID string, opts reconciler.Options) *UserServicesScreen {
	if opts.Name == "" {
		opts.Name = "user_service_roles"
	}
	return &UserServicesScreen{
		api:     api,
		userID:  userID,
		opts:    opts,
		editors: make(map[string]*reconciler.Editor),
	}
}

// Refresh re-fetches assigned services, all services, the user's roles, and
// the roles of every assigned service
func (s *UserServicesScreen) Refresh(ctx context.Context) error {
	var assigned, all []identity.Service
	var userRoles []identity.Role

	loads := []func(context.Context) error{
		func(ctx context.Context) (err error) { assigned, err = s.api.UserServices(ctx, s.userID); return err },
		func(ctx context.Context) (err error) { all, err = s.api.ListServices(ctx); return err },
		func(ctx context.Context) (err error) { userRoles, err = s.api.UserRoles(ctx, s.userID); return err },
	}
	if err := firstError(async.Batch(ctx, loads, 0, func(ctx context.Context, load func(context.Context) error) error {
		return load(ctx)
	})); err != nil {
		return err
	}

	var withID []identity.Service
	for _, svc := range assigned {
		if svc.ID != "" {
			withID = append(withID, svc)
		}
	}

	entries := make([]ServiceRoles, len(withID))
	errs := async.Batch(ctx, withIndex(withID), s.opts.Concurrency, func(ctx context.Context, item indexed[identity.Service]) error {
		roles, err := s.api.ListRoles(ctx, item.value.ID)
		if err != nil {
			return fmt.Errorf("load roles for %s: %w", item.value.Name, err)
		}
		sort.SliceStable(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
		entries[item.index] = ServiceRoles{
			Service:         item.value,
			Roles:           roles,
			AssignedRoleIDs: roleIDsIn(userRoles, item.value.ID),
		}
		return nil
	})
	if err := firstError(errs); err != nil {
		return err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Service.Name < entries[j].Service.Name })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.assigned = entries
	s.all = all
	// editors are primed from the previous snapshot
	clear(s.editors)
	return nil
}

// Assigned returns the assigned services sorted by name
func (s *UserServicesScreen) Assigned() []ServiceRoles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.assigned)
}

// Unassigned returns the services the user could be assigned to
func (s *UserServicesScreen) Unassigned() []identity.Service {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []identity.Service
	for _, svc := range s.all {
		if svc.ID == "" {
			continue
		}
		if _, ok := s.entryLocked(svc.ID); !ok {
			out = append(out, svc)
		}
	}
	return out
}

// RolesUnder returns the role ids shown for the user under serviceID; none
// when the service is not assigned
func (s *UserServicesScreen) RolesUnder(serviceID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entryLocked(serviceID)
	if !ok {
		return nil
	}
	return slices.Clone(entry.AssignedRoleIDs)
}

// AssignService links the service to the user, refreshes, and opens the
// role editor for it
func (s *UserServicesScreen) AssignService(ctx context.Context, serviceID string) (*reconciler.Editor, error) {
	if err := s.api.AssignService(ctx, s.userID, serviceID); err != nil {
		return nil, err
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.EditRoles(serviceID)
}

// UnassignService removes the service link and refreshes
func (s *UserServicesScreen) UnassignService(ctx context.Context, serviceID string) error {
	if err := s.api.UnassignService(ctx, s.userID, serviceID); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// EditRoles returns the role editor for an assigned service, primed with
// the roles from the last refresh
func (s *UserServicesScreen) EditRoles(serviceID string) (*reconciler.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entryLocked(serviceID)
	if !ok {
		return nil, ErrServiceNotAssigned
	}
	if ed, ok := s.editors[serviceID]; ok {
		return ed, nil
	}

	api, userID := s.api, s.userID
	ed := reconciler.NewEditor(reconciler.Funcs{
		LoadFunc: func(ctx context.Context) ([]string, error) {
			roles, err := api.UserRoles(ctx, userID)
			if err != nil {
				return nil, err
			}
			return roleIDsIn(roles, serviceID), nil
		},
		AssignFunc: func(ctx context.Context, id string) error {
			return api.AssignRole(ctx, userID, id)
		},
		UnassignFunc: func(ctx context.Context, id string) error {
			return api.UnassignRole(ctx, userID, id)
		},
	}, s.opts)
	if err := ed.Prime(entry.AssignedRoleIDs); err != nil {
		return nil, err
	}
	s.editors[serviceID] = ed
	return ed, nil
}

// SaveRoles makes roleIDs the user's roles under serviceID, then refreshes
// the screen
func (s *UserServicesScreen) SaveRoles(ctx context.Context, serviceID string, roleIDs []string) error {
	ed, err := s.EditRoles(serviceID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	entry, _ := s.entryLocked(serviceID)
	s.mu.Unlock()
	for _, id := range roleIDs {
		if !slices.ContainsFunc(entry.Roles, func(r identity.Role) bool { return r.ID == id }) {
			return fmt.Errorf("%w: %s", ErrUnknownRole, id)
		}
	}

	if err := ed.SetPending(roleIDs); err != nil {
		return err
	}
	saveErr := ed.Save(ctx)
	if err := s.Refresh(ctx); err != nil {
		return errors.Join(saveErr, err)
	}
	return saveErr
}

// entryLocked finds an assigned service. Caller holds mu.
func (s *UserServicesScreen) entryLocked(serviceID string) (ServiceRoles, bool) {
	for _, e := range s.assigned {
		if e.Service.ID == serviceID {
			return e, true
		}
	}
	return ServiceRoles{}, false
}

func roleIDsIn(roles []identity.Role, serviceID string) []string {
	ids := []string{}
	for _, r := range roles {
		if r.ServiceID == serviceID && r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
