// Package identity is a typed client for the identity service REST API:
// login, accounts and profiles, the service/role/permission catalogs, and
// the role-permission, user-role and user-service assignment endpoints.
//
// Protected calls take their bearer token from a TokenSource, normally the
// session manager, and fail with session.ErrNotLoggedIn before any request
// is sent when there is none. Non-2xx responses become *APIError with the
// server's detail message; transport failures wrap ErrNetwork.
package identity
