package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/idctl/pkg/identity"
	"github.com/platinummonkey/idctl/pkg/session"
)

// Profile field limits enforced before sending
const (
	MaxNameLength     = 50
	MaxEmailLength    = 100
	MinPasswordLength = 8
)

var (
	ErrPasswordMismatch = errors.New("admin: new password and confirmation do not match")
	ErrPasswordTooShort = fmt.Errorf("admin: new password must be at least %d characters long", MinPasswordLength)
	ErrEmailRequired    = errors.New("admin: email is required")
)

// Users is the account catalog. Mutations return the re-fetched list.
type Users struct {
	api UserAPI
}

func NewUsers(api UserAPI) *Users {
	return &Users{api: api}
}

func (u *Users) List(ctx context.Context) ([]identity.UserProfile, error) {
	return u.api.ListUsers(ctx)
}

func (u *Users) Show(ctx context.Context, userID string) (*identity.UserProfile, error) {
	return u.api.GetUser(ctx, userID)
}

func (u *Users) Create(ctx context.Context, req identity.CreateUserRequest) ([]identity.UserProfile, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.MiddleName = strings.TrimSpace(req.MiddleName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateProfile(req.FirstName, req.MiddleName, req.LastName, req.Email); err != nil {
		return nil, err
	}
	if len(req.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if _, err := u.api.CreateUser(ctx, req); err != nil {
		return nil, err
	}
	return u.List(ctx)
}

func (u *Users) Update(ctx context.Context, userID string, req identity.UpdateProfileRequest) ([]identity.UserProfile, error) {
	req = normalizeProfile(req)
	if err := validateProfile(req.FirstName, deref(req.MiddleName), req.LastName, req.Email); err != nil {
		return nil, err
	}
	if _, err := u.api.UpdateUser(ctx, userID, req); err != nil {
		return nil, err
	}
	return u.List(ctx)
}

func (u *Users) Activate(ctx context.Context, userID string) ([]identity.UserProfile, error) {
	return u.mutate(ctx, userID, u.api.ActivateUser)
}

func (u *Users) Deactivate(ctx context.Context, userID string) ([]identity.UserProfile, error) {
	return u.mutate(ctx, userID, u.api.DeactivateUser)
}

func (u *Users) Unlock(ctx context.Context, userID string) ([]identity.UserProfile, error) {
	return u.mutate(ctx, userID, u.api.UnlockAccount)
}

func (u *Users) Delete(ctx context.Context, userID string) ([]identity.UserProfile, error) {
	return u.mutate(ctx, userID, u.api.DeleteUser)
}

func (u *Users) mutate(ctx context.Context, userID string, op func(context.Context, string) error) ([]identity.UserProfile, error) {
	if err := op(ctx, userID); err != nil {
		return nil, err
	}
	return u.List(ctx)
}

// SelfSession is the slice of the session the account screen needs
type SelfSession interface {
	User() *session.User
	HydrateNow(ctx context.Context) error
}

// Account is the signed-in user's own profile and password
type Account struct {
	api     UserAPI
	session SelfSession
}

func NewAccount(api UserAPI, s SelfSession) *Account {
	return &Account{api: api, session: s}
}

// UpdateProfile saves the caller's own profile and refreshes the session
// user from the server. A failed refresh is not an error; the update
// already succeeded.
func (a *Account) UpdateProfile(ctx context.Context, req identity.UpdateProfileRequest) (*identity.UserProfile, error) {
	user := a.session.User()
	if user == nil || user.ID == "" {
		return nil, session.ErrNotLoggedIn
	}

	req = normalizeProfile(req)
	if err := validateProfile(req.FirstName, deref(req.MiddleName), req.LastName, req.Email); err != nil {
		return nil, err
	}

	profile, err := a.api.UpdateUser(ctx, user.ID, req)
	if err != nil {
		return nil, err
	}
	_ = a.session.HydrateNow(ctx)
	return profile, nil
}

// ChangePassword checks the new password locally, then submits it
func (a *Account) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if next != confirm {
		return ErrPasswordMismatch
	}
	if len(next) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return a.api.ChangePassword(ctx, identity.ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
	})
}

func normalizeProfile(req identity.UpdateProfileRequest) identity.UpdateProfileRequest {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if req.MiddleName != nil {
		req.MiddleName = optional(*req.MiddleName)
	}
	return req
}

func validateProfile(first, middle, last, email string) error {
	names := []struct{ label, value string }{
		{"first name", first},
		{"middle name", middle},
		{"last name", last},
	}
	for _, n := range names {
		if len(n.value) > MaxNameLength {
			return fmt.Errorf("admin: %s must be at most %d characters", n.label, MaxNameLength)
		}
	}
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("admin: email must be at most %d characters", MaxEmailLength)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
