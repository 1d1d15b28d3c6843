package identity

import "net/url"

const apiPrefix = "/api/v1"

// Identity service paths, relative to the gateway base URL
const (
	pathLogin          = apiPrefix + "/auth/login"
	pathCreateUser     = apiPrefix + "/auth"
	pathUnlockAccount  = apiPrefix + "/auth/unlock-account"
	pathChangePassword = apiPrefix + "/auth/change-password"

	pathProfileCurrent = apiPrefix + "/profile/current"
	pathProfileAll     = apiPrefix + "/profile/all"

	pathServices = apiPrefix + "/services"

	pathRoles        = apiPrefix + "/roles"
	pathRoleAssign   = apiPrefix + "/roles/assign"
	pathRoleUnassign = apiPrefix + "/roles/unassign"

	pathPermissions = apiPrefix + "/permissions"

	pathUserServiceAssign = apiPrefix + "/users/services/assign"
)

func seg(s string) string {
	return url.PathEscape(s)
}

func profilePath(userID string) string {
	return apiPrefix + "/profile/" + seg(userID)
}

func servicePath(serviceID string) string {
	return pathServices + "/" + seg(serviceID)
}

// rolesPath serves both "list roles of a service" and "update/delete role";
// the server distinguishes by method
func rolesPath(id string) string {
	return pathRoles + "/" + seg(id)
}

func userRolesPath(userID string) string {
	return pathRoles + "/user/" + seg(userID)
}

func permissionPath(permissionID string) string {
	return pathPermissions + "/" + seg(permissionID)
}

func rolePermissionsPath(roleID string) string {
	return pathRoles + "/" + seg(roleID) + "/permissions"
}

func rolePermissionPath(roleID, permissionID string) string {
	return rolePermissionsPath(roleID) + "/" + seg(permissionID)
}

func userServicesPath(userID string) string {
	return apiPrefix + "/users/services/" + seg(userID)
}

func userServicePath(userID, serviceID string) string {
	return userServicesPath(userID) + "/" + seg(serviceID)
}

func serviceQuery(serviceID string) url.Values {
	return url.Values{"service_id": {serviceID}}
}
