package identity

import (
	"context"
	"net/http"
)

// UserRoles returns the roles held by userID across all services
func (c *Client) UserRoles(ctx context.Context, userID string) ([]Role, error) {
	return list[Role](ctx, c, call{method: http.MethodGet, path: userRolesPath(userID), fallback: "Failed to load user roles"})
}

// AssignRole grants roleID to userID
func (c *Client) AssignRole(ctx context.Context, userID, roleID string) error {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     pathRoleAssign,
		body:     userRoleRequest{UserID: userID, RoleID: roleID},
		fallback: "Failed to assign role",
	}, nil)
}

// UnassignRole revokes roleID from userID
func (c *Client) UnassignRole(ctx context.Context, userID, roleID string) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     pathRoleUnassign,
		body:     userRoleRequest{UserID: userID, RoleID: roleID},
		fallback: "Failed to unassign role",
	}, nil)
}

// RolePermissions lists the permissions of serviceID with their assignment
// state for roleID
func (c *Client) RolePermissions(ctx context.Context, roleID, serviceID string) ([]PermissionForRole, error) {
	return list[PermissionForRole](ctx, c, call{
		method:   http.MethodGet,
		path:     rolePermissionsPath(roleID),
		query:    serviceQuery(serviceID),
		fallback: "Failed to load permissions",
	})
}

// AssignPermission grants permissionID to roleID
func (c *Client) AssignPermission(ctx context.Context, roleID, permissionID string) error {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     rolePermissionPath(roleID, permissionID),
		fallback: "Failed to assign permission",
	}, nil)
}

// UnassignPermission revokes permissionID from roleID
func (c *Client) UnassignPermission(ctx context.Context, roleID, permissionID string) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     rolePermissionPath(roleID, permissionID),
		fallback: "Failed to unassign permission",
	}, nil)
}

// UserServices returns the services userID is assigned to
func (c *Client) UserServices(ctx context.Context, userID string) ([]Service, error) {
	return list[Service](ctx, c, call{method: http.MethodGet, path: userServicesPath(userID), fallback: "Failed to load user services"})
}

// AssignService links userID to serviceID without granting any role
func (c *Client) AssignService(ctx context.Context, userID, serviceID string) error {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     pathUserServiceAssign,
		body:     userServiceRequest{UserID: userID, ServiceID: serviceID},
		fallback: "Failed to assign service",
	}, nil)
}

// UnassignService removes the link between userID and serviceID. Roles the
// user holds under the service are left alone.
func (c *Client) UnassignService(ctx context.Context, userID, serviceID string) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     userServicePath(userID, serviceID),
		fallback: "Failed to unassign service",
	}, nil)
}
