package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/platinummonkey/idctl/pkg/identity"
)

// Validation errors raised before any request is sent
var (
	ErrNameRequired = errors.New("admin: name is required")
	ErrInvalidPort  = errors.New("admin: port must be a number")
)

// ErrRoleNotFound is returned by Roles.Find for an id the service lacks
var ErrRoleNotFound = errors.New("admin: role not found")

// ServiceInput is the operator's form for a service. Empty optional fields
// are sent as null.
type ServiceInput struct {
	Name        string
	Description string
	URL         string
	Port        string
	Active      bool
}

func (in ServiceInput) request() (identity.ServiceRequest, error) {
	req := identity.ServiceRequest{
		Name:        strings.TrimSpace(in.Name),
		Description: optional(in.Description),
		URL:         optional(in.URL),
		IsActive:    in.Active,
	}
	if req.Name == "" {
		return req, ErrNameRequired
	}
	if port := strings.TrimSpace(in.Port); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return req, ErrInvalidPort
		}
		req.Port = &n
	}
	return req, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Services is the service catalog. Mutations return the re-fetched list.
type Services struct {
	api CatalogAPI
}

func NewServices(api CatalogAPI) *Services {
	return &Services{api: api}
}

func (s *Services) List(ctx context.Context) ([]identity.Service, error) {
	return s.api.ListServices(ctx)
}

func (s *Services) Show(ctx context.Context, serviceID string) (*identity.Service, error) {
	return s.api.GetService(ctx, serviceID)
}

func (s *Services) Create(ctx context.Context, in ServiceInput) ([]identity.Service, error) {
	req, err := in.request()
	if err != nil {
		return nil, err
	}
	if _, err := s.api.CreateService(ctx, req); err != nil {
		return nil, err
	}
	return s.List(ctx)
}

func (s *Services) Update(ctx context.Context, serviceID string, in ServiceInput) ([]identity.Service, error) {
	req, err := in.request()
	if err != nil {
		return nil, err
	}
	if _, err := s.api.UpdateService(ctx, serviceID, req); err != nil {
		return nil, err
	}
	return s.List(ctx)
}

func (s *Services) Delete(ctx context.Context, serviceID string) ([]identity.Service, error) {
	if err := s.api.DeleteService(ctx, serviceID); err != nil {
		return nil, err
	}
	return s.List(ctx)
}

// Roles is the role catalog of one service
type Roles struct {
	api       CatalogAPI
	serviceID string
}

func NewRoles(api CatalogAPI, serviceID string) *Roles {
	return &Roles{api: api, serviceID: serviceID}
}

func (r *Roles) List(ctx context.Context) ([]identity.Role, error) {
	return r.api.ListRoles(ctx, r.serviceID)
}

// Find returns the role with roleID. A role of another service, or none at
// all, is ErrRoleNotFound.
func (r *Roles) Find(ctx context.Context, roleID string) (*identity.Role, error) {
	roles, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		if roles[i].ID == roleID {
			return &roles[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s in service %s", ErrRoleNotFound, roleID, r.serviceID)
}

func (r *Roles) Create(ctx context.Context, name, description string) ([]identity.Role, error) {
	req := identity.RoleRequest{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		ServiceID:   r.serviceID,
	}
	if req.Name == "" {
		return nil, ErrNameRequired
	}
	if _, err := r.api.CreateRole(ctx, req); err != nil {
		return nil, err
	}
	return r.List(ctx)
}

func (r *Roles) Update(ctx context.Context, roleID, name, description string) ([]identity.Role, error) {
	req := identity.RoleRequest{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}
	if req.Name == "" {
		return nil, ErrNameRequired
	}
	if _, err := r.api.UpdateRole(ctx, roleID, req); err != nil {
		return nil, err
	}
	return r.List(ctx)
}

func (r *Roles) Delete(ctx context.Context, roleID string) ([]identity.Role, error) {
	if err := r.api.DeleteRole(ctx, roleID); err != nil {
		return nil, err
	}
	return r.List(ctx)
}

// PermissionInput is the operator's form for a permission
type PermissionInput struct {
	Name        string
	Resource    string
	Action      string
	Description string
}

func (in PermissionInput) request(serviceID string) (identity.PermissionRequest, error) {
	req := identity.PermissionRequest{
		ServiceID:   serviceID,
		Name:        strings.TrimSpace(in.Name),
		Resource:    strings.TrimSpace(in.Resource),
		Action:      strings.TrimSpace(in.Action),
		Description: strings.TrimSpace(in.Description),
	}
	if req.Name == "" {
		return req, ErrNameRequired
	}
	return req, nil
}

// Permissions is the permission catalog of one service
type Permissions struct {
	api       CatalogAPI
	serviceID string
}

func NewPermissions(api CatalogAPI, serviceID string) *Permissions {
	return &Permissions{api: api, serviceID: serviceID}
}

func (p *Permissions) List(ctx context.Context) ([]identity.Permission, error) {
	return p.api.ListPermissions(ctx, p.serviceID)
}

func (p *Permissions) Create(ctx context.Context, in PermissionInput) ([]identity.Permission, error) {
	req, err := in.request(p.serviceID)
	if err != nil {
		return nil, err
	}
	if _, err := p.api.CreatePermission(ctx, req); err != nil {
		return nil, err
	}
	return p.List(ctx)
}

func (p *Permissions) Update(ctx context.Context, permissionID string, in PermissionInput) ([]identity.Permission, error) {
	req, err := in.request("")
	if err != nil {
		return nil, err
	}
	if _, err := p.api.UpdatePermission(ctx, permissionID, req); err != nil {
		return nil, err
	}
	return p.List(ctx)
}

func (p *Permissions) Delete(ctx context.Context, permissionID string) ([]identity.Permission, error) {
	if err := p.api.DeletePermission(ctx, permissionID); err != nil {
		return nil, err
	}
	return p.List(ctx)
}
