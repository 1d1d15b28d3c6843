package session

import "errors"

var (
	// ErrNotLoggedIn means there is no usable token; send the user to login
	ErrNotLoggedIn = errors.New("session: not logged in")
	// ErrSessionExpired means the token's exp claim is in the past
	ErrSessionExpired = errors.New("session: token expired")
	// ErrMalformedToken means the token claims could not be decoded
	ErrMalformedToken = errors.New("session: malformed token")
)
