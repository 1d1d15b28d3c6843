package admin

import "errors"

// ErrAdminRequired is returned for admin operations by a non-admin session
var ErrAdminRequired = errors.New("admin: administrator role required")

// Authorizer is the slice of the session the gate needs
type Authorizer interface {
	RequireToken() (string, error)
	IsAdmin() bool
}

// Gate hides admin operations from sessions without the admin role. It only
// shapes the user experience; the identity service enforces access.
type Gate struct {
	session Authorizer
}

func NewGate(session Authorizer) *Gate {
	return &Gate{session: session}
}

// RequireAdmin returns the session error when not logged in, and
// ErrAdminRequired when logged in without the admin role
func (g *Gate) RequireAdmin() error {
	if _, err := g.session.RequireToken(); err != nil {
		return err
	}
	if !g.session.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}
