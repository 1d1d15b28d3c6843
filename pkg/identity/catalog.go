package identity

import (
	"context"
	"net/http"
)

// ListServices returns every registered service
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	return list[Service](ctx, c, call{method: http.MethodGet, path: pathServices, fallback: "Failed to load services"})
}

// GetService returns one service
func (c *Client) GetService(ctx context.Context, serviceID string) (*Service, error) {
	var out Service
	if err := c.do(ctx, call{method: http.MethodGet, path: servicePath(serviceID), fallback: "Failed to load service"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateService registers a service
func (c *Client) CreateService(ctx context.Context, req ServiceRequest) (*Service, error) {
	var out Service
	if err := c.do(ctx, call{method: http.MethodPost, path: pathServices, body: req, fallback: "Failed to create service"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateService replaces a service definition
func (c *Client) UpdateService(ctx context.Context, serviceID string, req ServiceRequest) (*Service, error) {
	var out Service
	if err := c.do(ctx, call{method: http.MethodPut, path: servicePath(serviceID), body: req, fallback: "Failed to update service"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteService removes a service
func (c *Client) DeleteService(ctx context.Context, serviceID string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: servicePath(serviceID), fallback: "Failed to delete service"}, nil)
}

// ListRoles returns the roles of one service
func (c *Client) ListRoles(ctx context.Context, serviceID string) ([]Role, error) {
	return list[Role](ctx, c, call{method: http.MethodGet, path: rolesPath(serviceID), fallback: "Failed to load roles"})
}

// CreateRole adds a role to req.ServiceID
func (c *Client) CreateRole(ctx context.Context, req RoleRequest) (*Role, error) {
	var out Role
	if err := c.do(ctx, call{method: http.MethodPost, path: pathRoles, body: req, fallback: "Failed to create role"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRole renames or redescribes a role
func (c *Client) UpdateRole(ctx context.Context, roleID string, req RoleRequest) (*Role, error) {
	var out Role
	if err := c.do(ctx, call{method: http.MethodPut, path: rolesPath(roleID), body: req, fallback: "Failed to update role"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRole removes a role
func (c *Client) DeleteRole(ctx context.Context, roleID string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: rolesPath(roleID), fallback: "Failed to delete role"}, nil)
}

// ListPermissions returns the permissions of one service
func (c *Client) ListPermissions(ctx context.Context, serviceID string) ([]Permission, error) {
	return list[Permission](ctx, c, call{
		method:   http.MethodGet,
		path:     pathPermissions,
		query:    serviceQuery(serviceID),
		fallback: "Failed to load permissions",
	})
}

// CreatePermission adds a permission to req.ServiceID
func (c *Client) CreatePermission(ctx context.Context, req PermissionRequest) (*Permission, error) {
	var out Permission
	if err := c.do(ctx, call{method: http.MethodPost, path: pathPermissions, body: req, fallback: "Failed to create permission"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePermission replaces a permission definition
func (c *Client) UpdatePermission(ctx context.Context, permissionID string, req PermissionRequest) (*Permission, error) {
	var out Permission
	err := c.do(ctx, call{method: http.MethodPut, path: permissionPath(permissionID), body: req, fallback: "Failed to update permission"}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePermission removes a permission. The server may refuse while roles
// still hold it.
func (c *Client) DeletePermission(ctx context.Context, permissionID string) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     permissionPath(permissionID),
		fallback: "Failed to delete permission (may still be assigned to other roles)",
	}, nil)
}
