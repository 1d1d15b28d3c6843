package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/idctl/pkg/config"
	"github.com/platinummonkey/idctl/pkg/identity"
	"github.com/platinummonkey/idctl/pkg/observability"
	"github.com/platinummonkey/idctl/pkg/session"
)

const (
	testUser     = "ada@example.com"
	testPassword = "correct horse"
)

// backend is an in-memory identity service over HTTP
type backend struct {
	t *testing.T

	mu           sync.Mutex
	admin        bool
	services     []identity.Service
	roles        []identity.Role
	permissions  []identity.Permission
	rolePerms    map[string]map[string]bool
	userRoles    map[string]bool
	userServices map[string]bool
	calls        []string
}

func newBackend(t *testing.T) *backend {
	return &backend{
		t:     t,
		admin: true,
		services: []identity.Service{
			{ID: "s-id", Name: "identity-service", IsActive: true},
			{ID: "s-bill", Name: "billing", IsActive: true},
		},
		roles: []identity.Role{
			{ID: "r-admin", Name: "admin", ServiceID: "s-id"},
			{ID: "r-clerk", Name: "clerk", ServiceID: "s-bill"},
			{ID: "r-auditor", Name: "auditor", ServiceID: "s-bill"},
		},
		permissions: []identity.Permission{
			{ID: "p-x", Name: "read", Resource: "invoice", Action: "read", ServiceID: "s-bill"},
			{ID: "p-y", Name: "write", Resource: "invoice", Action: "write", ServiceID: "s-bill"},
			{ID: "p-new", Name: "refund", Resource: "invoice", Action: "refund", ServiceID: "s-bill"},
		},
		rolePerms:    map[string]map[string]bool{"r-clerk": {"p-x": true, "p-y": true}},
		userRoles:    map[string]bool{"r-clerk": true},
		userServices: map[string]bool{"s-bill": true},
	}
}

// token mints an access token for u-1. Caller holds mu.
func (b *backend) token() string {
	roles := map[string][]string{"billing": {"clerk"}}
	if b.admin {
		roles["identity-service"] = []string{"admin"}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &session.Claims{
		Email: testUser,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("server-side-secret"))
	require.NoError(b.t, err)
	return signed
}

// setAdmin controls the roles of tokens issued from now on and returns one
func (b *backend) setAdmin(admin bool) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.admin = admin
	return b.token()
}

func (b *backend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// writes returns the non-GET calls
func (b *backend) writes() []string {
	var out []string
	for _, c := range b.callLog() {
		if !strings.HasPrefix(c, "GET ") {
			out = append(out, c)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("username") != testUser || r.PostForm.Get("password") != testPassword {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": b.token(), "token_type": "bearer"})
	})
	mux.HandleFunc("GET /api/v1/profile/current", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "u-1", "email": testUser, "first_name": "Ada", "last_name": "Lovelace", "is_active": true,
		})
	})
	mux.HandleFunc("POST /api/v1/auth/change-password", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/v1/services", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.services)
	})
	mux.HandleFunc("GET /api/v1/roles/{serviceID}", func(w http.ResponseWriter, r *http.Request) {
		var out []identity.Role
		for _, role := range b.roles {
			if role.ServiceID == r.PathValue("serviceID") {
				out = append(out, role)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	// roles/user/{userID} and roles/{roleID}/permissions share a shape
	mux.HandleFunc("GET /api/v1/roles/{first}/{second}", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.PathValue("first") == "user":
			out := []identity.Role{}
			for _, role := range b.roles {
				if b.userRoles[role.ID] {
					out = append(out, role)
				}
			}
			writeJSON(w, http.StatusOK, out)
		case r.PathValue("second") == "permissions":
			roleID := r.PathValue("first")
			var out []identity.PermissionForRole
			for _, p := range b.permissions {
				if p.ServiceID == r.URL.Query().Get("service_id") {
					out = append(out, identity.PermissionForRole{Permission: p, IsAssigned: b.rolePerms[roleID][p.ID]})
				}
			}
			writeJSON(w, http.StatusOK, out)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("POST /api/v1/roles/{roleID}/permissions/{permissionID}", func(w http.ResponseWriter, r *http.Request) {
		set := b.rolePerms[r.PathValue("roleID")]
		if set == nil {
			set = map[string]bool{}
			b.rolePerms[r.PathValue("roleID")] = set
		}
		set[r.PathValue("permissionID")] = true
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/roles/assign", func(w http.ResponseWriter, r *http.Request) {
		b.userRoles[decodeField(r, "role_id")] = true
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /api/v1/roles/unassign", func(w http.ResponseWriter, r *http.Request) {
		delete(b.userRoles, decodeField(r, "role_id"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/v1/users/services/{userID}", func(w http.ResponseWriter, r *http.Request) {
		out := []identity.Service{}
		for _, s := range b.services {
			if b.userServices[s.ID] {
				out = append(out, s)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("DELETE /api/v1/users/services/{userID}/{serviceID}", func(w http.ResponseWriter, r *http.Request) {
		delete(b.userServices, r.PathValue("serviceID"))
		w.WriteHeader(http.StatusNoContent)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		call := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			call += "?" + r.URL.RawQuery
		}
		b.calls = append(b.calls, call)
		mux.ServeHTTP(w, r)
	})
}

func decodeField(r *http.Request, field string) string {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body[field]
}

// harness runs commands against a backend through a real App
type harness struct {
	t       *testing.T
	backend *backend
	app     *App
	out     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := newBackend(t)
	srv := httptest.NewServer(b.routes())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.Session.StoreType = config.StoreMemory

	out := &bytes.Buffer{}
	app, closeApp, err := NewApp(context.Background(), cfg, Deps{
		Logger:   observability.Discard(),
		Registry: prometheus.NewRegistry(),
		In:       strings.NewReader(""),
		Out:      out,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeApp() })

	return &harness{t: t, backend: b, app: app, out: out}
}

// run executes one command line on a freshly built command tree
func (h *harness) run(args ...string) (string, error) {
	h.out.Reset()
	h.app.stdin = nil
	err := NewRootCommand(h.app).Execute(context.Background(), args)
	return h.out.String(), err
}

func (h *harness) input(s string) {
	h.app.In = strings.NewReader(s)
}

// login signs in directly through the session, skipping the login command
func (h *harness) login(admin bool) {
	h.t.Helper()
	token := h.backend.setAdmin(admin)
	ctx := context.Background()
	require.NoError(h.t, h.app.Session.SetToken(ctx, token))
	require.NoError(h.t, h.app.Session.WaitHydration(ctx))
}
