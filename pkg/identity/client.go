package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/idctl/pkg/gateway"
	"github.com/platinummonkey/idctl/pkg/session"
)

const maxResponseBytes = 10 << 20

// TokenSource supplies the bearer token for protected calls
type TokenSource interface {
	RequireToken() (string, error)
}

// Client is a typed client for the identity service REST API
type Client struct {
	gw     *gateway.Gateway
	tokens TokenSource
	log    *logrus.Logger
}

// NewClient creates a client. tokens may be nil for a client that only logs in.
func NewClient(gw *gateway.Gateway, tokens TokenSource, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.New()
	}
	return &Client{gw: gw, tokens: tokens, log: log}
}

type call struct {
	method   string
	path     string
	query    url.Values
	body     any
	form     url.Values
	fallback string

	// token overrides the TokenSource
	token  string
	public bool
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	token := cl.token
	if !cl.public && token == "" {
		if c.tokens == nil {
			return session.ErrNotLoggedIn
		}
		var err error
		if token, err = c.tokens.RequireToken(); err != nil {
			return err
		}
	}

	req := &gateway.Request{
		Method: cl.method,
		Path:   cl.path,
		Query:  cl.query,
		Header: make(http.Header),
	}
	req.Header.Set("Accept", "application/json")
	switch {
	case cl.form != nil:
		req.Body = strings.NewReader(cl.form.Encode())
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case cl.body != nil:
		data, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("identity: encode request: %w", err)
		}
		req.Body = bytes.NewReader(data)
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.gw.Call(ctx, req, token)
	if err != nil {
		if errors.Is(err, gateway.ErrNoBaseURL) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Detail: extractDetail(body, cl.fallback)}
		c.log.WithFields(logrus.Fields{
			"method": cl.method,
			"path":   cl.path,
			"status": resp.StatusCode,
		}).Debug(apiErr.Detail)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("identity: decode response from %s: %w", cl.path, err)
	}
	return nil
}

// list fetches a JSON array. A 2xx body that is not an array reads as empty.
func list[T any](ctx context.Context, c *Client, cl call) ([]T, error) {
	var raw json.RawMessage
	if err := c.do(ctx, cl, &raw); err != nil {
		return nil, err
	}
	items := []T{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return items, nil
	}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("identity: decode response from %s: %w", cl.path, err)
	}
	return items, nil
}

// Login exchanges credentials for an access token
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	var out TokenResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   pathLogin,
		form:   url.Values{"username": {username}, "password": {password}},
		public: true,
	}, &out)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail == "" {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			apiErr.Detail = "Invalid credentials"
		case http.StatusLocked:
			apiErr.Detail = "Account locked"
		default:
			apiErr.Detail = "Login failed"
		}
	}
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errors.New("identity: login response has no access token")
	}
	return out.OAuth2(), nil
}

// CreateUser registers a new account
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*UserProfile, error) {
	var out UserProfile
	err := c.do(ctx, call{method: http.MethodPost, path: pathCreateUser, body: req, fallback: "Failed to create user"}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UnlockAccount clears a lockout on userID
func (c *Client) UnlockAccount(ctx context.Context, userID string) error {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     pathUnlockAccount,
		body:     unlockAccountRequest{UserID: userID},
		fallback: "Failed to unlock account",
	}, nil)
}

// ChangePassword changes the signed-in user's password
func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     pathChangePassword,
		body:     req,
		fallback: "Failed to change password",
	}, nil)
}

// FetchProfile loads the profile of the user token belongs to as a raw map,
// for merging into the session user
func (c *Client) FetchProfile(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     pathProfileCurrent,
		token:    token,
		public:   token == "",
		fallback: "Failed to load profile",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentProfile loads the signed-in user's profile
func (c *Client) CurrentProfile(ctx context.Context) (*UserProfile, error) {
	var out UserProfile
	if err := c.do(ctx, call{method: http.MethodGet, path: pathProfileCurrent, fallback: "Failed to load profile"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers returns every account
func (c *Client) ListUsers(ctx context.Context) ([]UserProfile, error) {
	return list[UserProfile](ctx, c, call{method: http.MethodGet, path: pathProfileAll, fallback: "Failed to load users"})
}

// GetUser returns one account
func (c *Client) GetUser(ctx context.Context, userID string) (*UserProfile, error) {
	var out UserProfile
	if err := c.do(ctx, call{method: http.MethodGet, path: profilePath(userID), fallback: "Failed to load user"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser replaces the editable fields of an account
func (c *Client) UpdateUser(ctx context.Context, userID string, req UpdateProfileRequest) (*UserProfile, error) {
	var out UserProfile
	err := c.do(ctx, call{method: http.MethodPut, path: profilePath(userID), body: req, fallback: "Failed to update user"}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ActivateUser re-enables an account
func (c *Client) ActivateUser(ctx context.Context, userID string) error {
	return c.do(ctx, call{method: http.MethodPut, path: profilePath(userID) + "/activate", fallback: "Failed to activate user"}, nil)
}

// DeactivateUser disables an account
func (c *Client) DeactivateUser(ctx context.Context, userID string) error {
	return c.do(ctx, call{method: http.MethodPut, path: profilePath(userID) + "/deactivate", fallback: "Failed to deactivate user"}, nil)
}

// DeleteUser removes an account
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: profilePath(userID), fallback: "Failed to delete account"}, nil)
}
