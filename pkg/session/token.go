package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// RoleMap maps a service key to the role names held in that service,
// e.g. {"identity-service": ["admin"]}.
type RoleMap map[string][]string

// UnmarshalJSON decodes a roles claim leniently. Entries that are not lists
// of strings are skipped and a claim that is not an object decodes to an
// empty map, so a bad roles claim never makes the whole token unusable.
func (r *RoleMap) UnmarshalJSON(data []byte) error {
	out := RoleMap{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*r = out
		return nil
	}

	for service, value := range raw {
		var names []string
		if err := json.Unmarshal(value, &names); err != nil {
			continue
		}
		out[service] = names
	}

	*r = out
	return nil
}

// Has reports whether role is held in service
func (r RoleMap) Has(service, role string) bool {
	return slices.Contains(r[service], role)
}

// Clone returns a deep copy of r
func (r RoleMap) Clone() RoleMap {
	out := make(RoleMap, len(r))
	for service, names := range r {
		out[service] = slices.Clone(names)
	}
	return out
}

// Claims is the identity token payload
type Claims struct {
	Email string  `json:"email"`
	Roles RoleMap `json:"roles"`
	jwt.RegisteredClaims
}

// Expired reports whether the exp claim is set and before now
func (c *Claims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return now.After(c.ExpiresAt.Time)
}

// UnmarshalJSON accepts a numeric sub claim as well as a string
func (c *Claims) UnmarshalJSON(data []byte) error {
	type plain Claims
	aux := struct {
		*plain
		Subject json.RawMessage `json:"sub,omitempty"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.Subject = ""
	var number json.Number
	switch raw := bytes.TrimSpace(aux.Subject); {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		return json.Unmarshal(raw, &c.Subject)
	case json.Unmarshal(raw, &number) == nil:
		c.Subject = number.String()
	default:
		return fmt.Errorf("sub claim must be a string or number")
	}
	return nil
}

func (c *Claims) clone() *Claims {
	out := *c
	out.Roles = c.Roles.Clone()
	out.Audience = slices.Clone(c.Audience)
	return &out
}

// Decoder reads token claims without verifying the signature. Verification
// belongs to the identity service; decoded claims only drive presentation.
type Decoder struct {
	parser *jwt.Parser
	cache  *lru.LRU[string, *Claims]
}

// DefaultDecoderCacheSize bounds the number of memoized tokens
const DefaultDecoderCacheSize = 64

// NewDecoder creates a decoder that memoizes up to size tokens for ttl.
// A size <= 0 disables memoization.
func NewDecoder(size int, ttl time.Duration) *Decoder {
	d := &Decoder{
		parser: jwt.NewParser(),
	}
	if size > 0 {
		d.cache = lru.NewLRU[string, *Claims](size, nil, ttl)
	}
	return d
}

// Decode returns the claims embedded in token. Only the payload segment is
// read; the header, including alg, is not inspected. Failures wrap
// ErrMalformedToken.
func (d *Decoder) Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	if d.cache != nil {
		if claims, ok := d.cache.Get(token); ok {
			return claims.clone(), nil
		}
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: token contains an invalid number of segments", ErrMalformedToken)
	}
	payload, err := d.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: could not base64 decode payload: %v", ErrMalformedToken, err)
	}
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("%w: could not json decode payload: %v", ErrMalformedToken, err)
	}
	if claims.Roles == nil {
		claims.Roles = RoleMap{}
	}

	if d.cache != nil {
		d.cache.Add(token, claims.clone())
	}
	return claims, nil
}

// Services returns the service keys present in the roles claim, sorted
func (c *Claims) Services() []string {
	return slices.Sorted(maps.Keys(c.Roles))
}
