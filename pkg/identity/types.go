package identity

import "golang.org/x/oauth2"

// Service is a registered backend service
type Service struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsActive    bool    `json:"is_active"`
	URL         *string `json:"url"`
	Port        *int    `json:"port"`
}

// ServiceRequest is the create/update body for a service
type ServiceRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsActive    bool    `json:"is_active"`
	URL         *string `json:"url"`
	Port        *int    `json:"port"`
}

// Role is a named role scoped to one service
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ServiceID   string `json:"service_id"`
}

// RoleRequest is the create/update body for a role
type RoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ServiceID   string `json:"service_id,omitempty"`
}

// Permission is an action on a resource, scoped to one service
type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
	ServiceID   string `json:"service_id"`
}

// PermissionForRole is a service permission annotated with whether a given
// role holds it
type PermissionForRole struct {
	Permission
	IsAssigned bool `json:"is_assigned"`
}

// PermissionRequest is the create/update body for a permission
type PermissionRequest struct {
	ServiceID   string `json:"service_id,omitempty"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// UserProfile is the server view of a user account
type UserProfile struct {
	ID         string  `json:"id"`
	FirstName  string  `json:"first_name"`
	MiddleName *string `json:"middle_name"`
	LastName   string  `json:"last_name"`
	Email      string  `json:"email"`
	IsActive   bool    `json:"is_active"`
	IsVerified bool    `json:"is_verified"`
	CreatedAt  *string `json:"created_at"`
	UpdatedAt  *string `json:"updated_at"`
}

// FullName joins the non-empty name parts
func (p *UserProfile) FullName() string {
	name := p.FirstName
	if p.MiddleName != nil && *p.MiddleName != "" {
		name += " " + *p.MiddleName
	}
	if p.LastName != "" {
		name += " " + p.LastName
	}
	return name
}

// CreateUserRequest registers a new account
type CreateUserRequest struct {
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// UpdateProfileRequest replaces the editable profile fields
type UpdateProfileRequest struct {
	FirstName  string  `json:"first_name"`
	MiddleName *string `json:"middle_name"`
	LastName   string  `json:"last_name"`
	Email      string  `json:"email"`
}

// ChangePasswordRequest changes the caller's own password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// TokenResponse is the login response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// OAuth2 converts the response into an oauth2 token
func (t *TokenResponse) OAuth2() *oauth2.Token {
	return &oauth2.Token{AccessToken: t.AccessToken, TokenType: t.TokenType}
}

type unlockAccountRequest struct {
	UserID string `json:"user_id"`
}

type userRoleRequest struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

type userServiceRequest struct {
	UserID    string `json:"user_id"`
	ServiceID string `json:"service_id"`
}
