package admin

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/platinummonkey/idctl/pkg/identity"
	"github.com/platinummonkey/idctl/pkg/session"
)

// fakeAPI is an in-memory identity service
type fakeAPI struct {
	mu sync.Mutex

	services     []identity.Service
	roles        []identity.Role
	permissions  []identity.Permission
	users        []identity.UserProfile
	rolePerms    map[string]map[string]bool
	userRoles    map[string]map[string]bool
	userServices map[string]map[string]bool

	fail  map[string]error
	calls []string
	seq   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		rolePerms:    map[string]map[string]bool{},
		userRoles:    map[string]map[string]bool{},
		userServices: map[string]map[string]bool{},
		fail:         map[string]error{},
	}
}

// seed builds two services with roles and permissions and one user
func seed() *fakeAPI {
	f := newFakeAPI()
	f.services = []identity.Service{
		{ID: "s-id", Name: "identity-service", IsActive: true},
		{ID: "s-bill", Name: "billing", IsActive: true},
		{ID: "s-docs", Name: "docs", IsActive: false},
	}
	f.roles = []identity.Role{
		{ID: "r-admin", Name: "admin", ServiceID: "s-id"},
		{ID: "r-viewer", Name: "viewer", ServiceID: "s-id"},
		{ID: "r-clerk", Name: "clerk", ServiceID: "s-bill"},
		{ID: "r-auditor", Name: "auditor", ServiceID: "s-bill"},
	}
	f.permissions = []identity.Permission{
		{ID: "p-x", Name: "read", Resource: "invoice", Action: "read", ServiceID: "s-bill"},
		{ID: "p-y", Name: "write", Resource: "invoice", Action: "write", ServiceID: "s-bill"},
		{ID: "p-new", Name: "refund", Resource: "invoice", Action: "refund", ServiceID: "s-bill"},
	}
	f.users = []identity.UserProfile{{ID: "u-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", IsActive: true}}
	f.rolePerms["r-clerk"] = map[string]bool{"p-x": true, "p-y": true}
	f.userRoles["u-1"] = map[string]bool{"r-clerk": true}
	f.userServices["u-1"] = map[string]bool{"s-bill": true}
	return f
}

func (f *fakeAPI) record(name string, args ...string) error {
	key := name
	for _, a := range args {
		key += ":" + a
	}
	f.calls = append(f.calls, key)
	if err := f.fail[key]; err != nil {
		return err
	}
	return f.fail[name]
}

func (f *fakeAPI) failWith(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[key] = err
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeAPI) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// mutations filters the call log to assignment writes
func (f *fakeAPI) mutations() []string {
	var out []string
	for _, c := range f.callLog() {
		for _, prefix := range []string{"Assign", "Unassign"} {
			if len(c) > len(prefix) && c[:len(prefix)] == prefix {
				out = append(out, c)
			}
		}
	}
	return out
}

func (f *fakeAPI) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-new%d", prefix, f.seq)
}

func notFound() error {
	return &identity.APIError{Status: http.StatusNotFound, Detail: "Not found"}
}

func (f *fakeAPI) ListServices(ctx context.Context) ([]identity.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListServices"); err != nil {
		return nil, err
	}
	return slices.Clone(f.services), nil
}

func (f *fakeAPI) GetService(ctx context.Context, serviceID string) (*identity.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetService", serviceID); err != nil {
		return nil, err
	}
	for _, s := range f.services {
		if s.ID == serviceID {
			return &s, nil
		}
	}
	return nil, notFound()
}

func (f *fakeAPI) CreateService(ctx context.Context, req identity.ServiceRequest) (*identity.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateService", req.Name); err != nil {
		return nil, err
	}
	s := identity.Service{ID: f.nextID("s"), Name: req.Name, Description: req.Description, IsActive: req.IsActive, URL: req.URL, Port: req.Port}
	f.services = append(f.services, s)
	return &s, nil
}

func (f *fakeAPI) UpdateService(ctx context.Context, serviceID string, req identity.ServiceRequest) (*identity.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateService", serviceID); err != nil {
		return nil, err
	}
	for i := range f.services {
		if f.services[i].ID == serviceID {
			f.services[i] = identity.Service{ID: serviceID, Name: req.Name, Description: req.Description, IsActive: req.IsActive, URL: req.URL, Port: req.Port}
			s := f.services[i]
			return &s, nil
		}
	}
	return nil, notFound()
}

func (f *fakeAPI) DeleteService(ctx context.Context, serviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteService", serviceID); err != nil {
		return err
	}
	f.services = slices.DeleteFunc(f.services, func(s identity.Service) bool { return s.ID == serviceID })
	return nil
}

func (f *fakeAPI) ListRoles(ctx context.Context, serviceID string) ([]identity.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListRoles", serviceID); err != nil {
		return nil, err
	}
	var out []identity.Role
	for _, r := range f.roles {
		if r.ServiceID == serviceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateRole(ctx context.Context, req identity.RoleRequest) (*identity.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateRole", req.Name); err != nil {
		return nil, err
	}
	r := identity.Role{ID: f.nextID("r"), Name: req.Name, Description: req.Description, ServiceID: req.ServiceID}
	f.roles = append(f.roles, r)
	return &r, nil
}

func (f *fakeAPI) UpdateRole(ctx context.Context, roleID string, req identity.RoleRequest) (*identity.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateRole", roleID); err != nil {
		return nil, err
	}
	for i := range f.roles {
		if f.roles[i].ID == roleID {
			f.roles[i].Name = req.Name
			f.roles[i].Description = req.Description
			r := f.roles[i]
			return &r, nil
		}
	}
	return nil, notFound()
}

func (f *fakeAPI) DeleteRole(ctx context.Context, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteRole", roleID); err != nil {
		return err
	}
	f.roles = slices.DeleteFunc(f.roles, func(r identity.Role) bool { return r.ID == roleID })
	return nil
}

func (f *fakeAPI) ListPermissions(ctx context.Context, serviceID string) ([]identity.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListPermissions", serviceID); err != nil {
		return nil, err
	}
	var out []identity.Permission
	for _, p := range f.permissions {
		if p.ServiceID == serviceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreatePermission(ctx context.Context, req identity.PermissionRequest) (*identity.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreatePermission", req.Name); err != nil {
		return nil, err
	}
	p := identity.Permission{ID: f.nextID("p"), Name: req.Name, Resource: req.Resource, Action: req.Action, Description: req.Description, ServiceID: req.ServiceID}
	f.permissions = append(f.permissions, p)
	return &p, nil
}

func (f *fakeAPI) UpdatePermission(ctx context.Context, permissionID string, req identity.PermissionRequest) (*identity.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdatePermission", permissionID); err != nil {
		return nil, err
	}
	for i := range f.permissions {
		if f.permissions[i].ID == permissionID {
			f.permissions[i].Name = req.Name
			f.permissions[i].Resource = req.Resource
			f.permissions[i].Action = req.Action
			f.permissions[i].Description = req.Description
			p := f.permissions[i]
			return &p, nil
		}
	}
	return nil, notFound()
}

func (f *fakeAPI) DeletePermission(ctx context.Context, permissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeletePermission", permissionID); err != nil {
		return err
	}
	f.permissions = slices.DeleteFunc(f.permissions, func(p identity.Permission) bool { return p.ID == permissionID })
	return nil
}

func (f *fakeAPI) ListUsers(ctx context.Context) ([]identity.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListUsers"); err != nil {
		return nil, err
	}
	return slices.Clone(f.users), nil
}

func (f *fakeAPI) GetUser(ctx context.Context, userID string) (*identity.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetUser", userID); err != nil {
		return nil, err
	}
	for _, u := range f.users {
		if u.ID == userID {
			return &u, nil
		}
	}
	return nil, notFound()
}

func (f *fakeAPI) CreateUser(ctx context.Context, req identity.CreateUserRequest) (*identity.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateUser", req.Email); err != nil {
		return nil, err
	}
	u := identity.UserProfile{ID: f.nextID("u"), FirstName: req.FirstName, LastName: req.LastName, Email: req.Email, IsActive: true}
	f.users = append(f.users, u)
	return &u, nil
}

func (f *fakeAPI) UpdateUser(ctx context.Context, userID string, req identity.UpdateProfileRequest) (*identity.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateUser", userID); err != nil {
		return nil, err
	}
	for i := range f.users {
		if f.users[i].ID == userID {
			f.users[i].FirstName = req.FirstName
			f.users[i].MiddleName = req.MiddleName
			f.users[i].LastName = req.LastName
			f.users[i].Email = req.Email
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, notFound()
}

func (f *fakeAPI) setActive(name, userID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(name, userID); err != nil {
		return err
	}
	for i := range f.users {
		if f.users[i].ID == userID {
			f.users[i].IsActive = active
			return nil
		}
	}
	return notFound()
}

func (f *fakeAPI) ActivateUser(ctx context.Context, userID string) error {
	return f.setActive("ActivateUser", userID, true)
}

func (f *fakeAPI) DeactivateUser(ctx context.Context, userID string) error {
	return f.setActive("DeactivateUser", userID, false)
}

func (f *fakeAPI) UnlockAccount(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("UnlockAccount", userID)
}

func (f *fakeAPI) DeleteUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteUser", userID); err != nil {
		return err
	}
	f.users = slices.DeleteFunc(f.users, func(u identity.UserProfile) bool { return u.ID == userID })
	return nil
}

func (f *fakeAPI) ChangePassword(ctx context.Context, req identity.ChangePasswordRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("ChangePassword", req.CurrentPassword, req.NewPassword)
}

func (f *fakeAPI) RolePermissions(ctx context.Context, roleID, serviceID string) ([]identity.PermissionForRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RolePermissions", roleID, serviceID); err != nil {
		return nil, err
	}
	var out []identity.PermissionForRole
	for _, p := range f.permissions {
		if p.ServiceID == serviceID {
			out = append(out, identity.PermissionForRole{Permission: p, IsAssigned: f.rolePerms[roleID][p.ID]})
		}
	}
	return out, nil
}

func (f *fakeAPI) edge(rel map[string]map[string]bool, owner, id string, on bool) {
	if rel[owner] == nil {
		rel[owner] = map[string]bool{}
	}
	if on {
		rel[owner][id] = true
	} else {
		delete(rel[owner], id)
	}
}

func (f *fakeAPI) AssignPermission(ctx context.Context, roleID, permissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AssignPermission", roleID, permissionID); err != nil {
		return err
	}
	f.edge(f.rolePerms, roleID, permissionID, true)
	return nil
}

func (f *fakeAPI) UnassignPermission(ctx context.Context, roleID, permissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UnassignPermission", roleID, permissionID); err != nil {
		return err
	}
	f.edge(f.rolePerms, roleID, permissionID, false)
	return nil
}

func (f *fakeAPI) UserRoles(ctx context.Context, userID string) ([]identity.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UserRoles", userID); err != nil {
		return nil, err
	}
	var out []identity.Role
	for _, r := range f.roles {
		if f.userRoles[userID][r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAPI) AssignRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AssignRole", userID, roleID); err != nil {
		return err
	}
	f.edge(f.userRoles, userID, roleID, true)
	return nil
}

func (f *fakeAPI) UnassignRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UnassignRole", userID, roleID); err != nil {
		return err
	}
	f.edge(f.userRoles, userID, roleID, false)
	return nil
}

func (f *fakeAPI) UserServices(ctx context.Context, userID string) ([]identity.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UserServices", userID); err != nil {
		return nil, err
	}
	var out []identity.Service
	for _, s := range f.services {
		if f.userServices[userID][s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeAPI) AssignService(ctx context.Context, userID, serviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AssignService", userID, serviceID); err != nil {
		return err
	}
	f.edge(f.userServices, userID, serviceID, true)
	return nil
}

// UnassignService only removes the service edge; role edges stay
func (f *fakeAPI) UnassignService(ctx context.Context, userID, serviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UnassignService", userID, serviceID); err != nil {
		return err
	}
	f.edge(f.userServices, userID, serviceID, false)
	return nil
}

// fakeSession satisfies Authorizer and SelfSession
type fakeSession struct {
	user       *session.User
	admin      bool
	tokenErr   error
	hydrated   int
	hydrateErr error
}

func (s *fakeSession) RequireToken() (string, error) {
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return "tok", nil
}

func (s *fakeSession) IsAdmin() bool { return s.admin }

func (s *fakeSession) User() *session.User { return s.user.Clone() }

func (s *fakeSession) HydrateNow(ctx context.Context) error {
	s.hydrated++
	return s.hydrateErr
}

var _ API = (*fakeAPI)(nil)
