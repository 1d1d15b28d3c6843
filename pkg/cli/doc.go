// Package cli provides the idctl command-line interface for identity and
// access management.
//
// # Overview
//
// This package implements the `idctl` tool: logging in, inspecting the
// signed-in user, and, for administrators, managing services, roles,
// permissions, users, and the assignments between them.
//
// # Commands
//
// login / logout / whoami: Session management
//
//	idctl login --username ada@example.com
//	idctl whoami -o json
//	idctl logout
//
// profile, passwd: Your own account
//
//	idctl profile update --first Ada --last Lovelace
//	idctl passwd
//
// services, roles, permissions, users: Catalogs (admin only)
//
//	idctl services create --name billing --port 8080
//	idctl roles list --service <service-id>
//	idctl permissions create --service <service-id> --name refund --resource invoice --action refund
//	idctl users deactivate <user-id>
//
// role-permissions, user-roles: Immediate toggles (admin only)
//
//	idctl role-permissions assign --role <role-id> --service <service-id> <permission-id>
//	idctl user-roles grant --user <user-id> <role-id>
//
// user-services: Service assignment with batched role edits (admin only)
//
//	idctl user-services assign --user <user-id> <service-id>
//	idctl user-services set-roles --user <user-id> --service <service-id> <role-id>,<role-id>
//
// List and show commands accept -o json.
//
// # Configuration
//
// See pkg/config. The identity API URL is usually all that is needed:
//
//	export IDCTL_API_URL="https://identity.example.com"
//
// # Related Packages
//
//   - pkg/admin: Screens and catalogs behind the admin commands
//   - pkg/session: Token persistence and the signed-in user
package cli
