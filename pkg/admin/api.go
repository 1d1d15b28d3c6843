package admin

import (
	"context"

	"github.com/platinummonkey/idctl/pkg/identity"
)

// CatalogAPI covers the service, role and permission catalogs
type CatalogAPI interface {
	ListServices(ctx context.Context) ([]identity.Service, error)
	GetService(ctx context.Context, serviceID string) (*identity.Service, error)
	CreateService(ctx context.Context, req identity.ServiceRequest) (*identity.Service, error)
	UpdateService(ctx context.Context, serviceID string, req identity.ServiceRequest) (*identity.Service, error)
	DeleteService(ctx context.Context, serviceID string) error

	ListRoles(ctx context.Context, serviceID string) ([]identity.Role, error)
	CreateRole(ctx context.Context, req identity.RoleRequest) (*identity.Role, error)
	UpdateRole(ctx context.Context, roleID string, req identity.RoleRequest) (*identity.Role, error)
	DeleteRole(ctx context.Context, roleID string) error

	ListPermissions(ctx context.Context, serviceID string) ([]identity.Permission, error)
	CreatePermission(ctx context.Context, req identity.PermissionRequest) (*identity.Permission, error)
	UpdatePermission(ctx context.Context, permissionID string, req identity.PermissionRequest) (*identity.Permission, error)
	DeletePermission(ctx context.Context, permissionID string) error
}

// UserAPI covers account administration and self-service
type UserAPI interface {
	ListUsers(ctx context.Context) ([]identity.UserProfile, error)
	GetUser(ctx context.Context, userID string) (*identity.UserProfile, error)
	CreateUser(ctx context.Context, req identity.CreateUserRequest) (*identity.UserProfile, error)
	UpdateUser(ctx context.Context, userID string, req identity.UpdateProfileRequest) (*identity.UserProfile, error)
	ActivateUser(ctx context.Context, userID string) error
	DeactivateUser(ctx context.Context, userID string) error
	UnlockAccount(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, req identity.ChangePasswordRequest) error
}

// AssignmentAPI covers the three assignment relations
type AssignmentAPI interface {
	ListServices(ctx context.Context) ([]identity.Service, error)
	ListRoles(ctx context.Context, serviceID string) ([]identity.Role, error)

	RolePermissions(ctx context.Context, roleID, serviceID string) ([]identity.PermissionForRole, error)
	AssignPermission(ctx context.Context, roleID, permissionID string) error
	UnassignPermission(ctx context.Context, roleID, permissionID string) error

	UserRoles(ctx context.Context, userID string) ([]identity.Role, error)
	AssignRole(ctx context.Context, userID, roleID string) error
	UnassignRole(ctx context.Context, userID, roleID string) error

	UserServices(ctx context.Context, userID string) ([]identity.Service, error)
	AssignService(ctx context.Context, userID, serviceID string) error
	UnassignService(ctx context.Context, userID, serviceID string) error
}

// API is everything the admin screens use; *identity.Client implements it
type API interface {
	CatalogAPI
	UserAPI
	AssignmentAPI
}

var _ API = (*identity.Client)(nil)
