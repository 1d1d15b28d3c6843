package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "client-never-sees-this-key"

// mintToken signs claims with a throwaway key; the decoder ignores it
func mintToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return token
}

func userToken(t *testing.T, sub, email string, roles map[string][]string) string {
	t.Helper()
	now := time.Now()
	return mintToken(t, &Claims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
}

// fakeProfiles is a ProfileFetcher whose responses tests control
type fakeProfiles struct {
	mu      sync.Mutex
	profile map[string]any
	err     error
	gate    chan struct{}
	calls   atomic.Int32
	tokens  []string
}

func (f *fakeProfiles) FetchProfile(ctx context.Context, token string) (map[string]any, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

// failingStore fails every operation
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Load(ctx context.Context) (string, error)      { return "", errStoreDown }
func (failingStore) Save(ctx context.Context, token string) error { return errStoreDown }
func (failingStore) Clear(ctx context.Context) error              { return errStoreDown }
