// Package admin implements the administration screens on top of the
// identity client: the service, role, permission and user catalogs, the
// caller's own account, and the three assignment screens (permissions of a
// role, roles of a user, services of a user) built on reconciler editors.
//
// Catalog mutations return the re-fetched list so callers always render
// server state. Gate decides whether admin operations are offered at all;
// it does not replace server-side authorization.
package admin
