package session

import (
	"encoding/json"
	"maps"
	"strings"
)

// User is the signed-in identity: token claims, enriched with the server
// profile once it has been fetched.
type User struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Roles RoleMap `json:"roles"`

	// Profile holds server profile fields other than id, email and roles
	Profile map[string]any `json:"profile,omitempty"`
	// Hydrated is set once a server profile has been merged
	Hydrated bool `json:"hydrated"`
}

// UserFromClaims builds the claims-only user
func UserFromClaims(c *Claims) *User {
	return &User{
		ID:    c.Subject,
		Email: c.Email,
		Roles: c.Roles.Clone(),
	}
}

// Clone returns a deep copy of u
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = u.Roles.Clone()
	out.Profile = maps.Clone(u.Profile)
	return &out
}

// Merge overlays a server profile payload onto u. Fields the payload carries
// win; fields it omits (or sends as null) keep their claims value, so the
// roles claim survives a profile without roles.
func (u *User) Merge(profile map[string]any) {
	if u.Profile == nil {
		u.Profile = make(map[string]any)
	}

	for key, value := range profile {
		switch key {
		case "id":
			if s, ok := value.(string); ok && s != "" {
				u.ID = s
			}
		case "email":
			if s, ok := value.(string); ok && s != "" {
				u.Email = s
			}
		case "roles":
			if value == nil {
				continue
			}
			data, err := json.Marshal(value)
			if err != nil {
				continue
			}
			var roles RoleMap
			if err := json.Unmarshal(data, &roles); err == nil && len(roles) > 0 {
				u.Roles = roles
			}
		default:
			u.Profile[key] = value
		}
	}

	u.Hydrated = true
}

// DisplayName joins first, middle and last names from the profile, falling
// back to the email address
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	var parts []string
	for _, key := range []string{"first_name", "middle_name", "last_name"} {
		if s, ok := u.Profile[key].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return u.Email
	}
	return strings.Join(parts, " ")
}

// IsAdmin reports whether user holds adminRole in the identityService roles.
// A nil user or a missing claim is not admin.
func IsAdmin(user *User, identityService, adminRole string) bool {
	if user == nil {
		return false
	}
	return user.Roles.Has(identityService, adminRole)
}
