// Package session resolves the console's identity from a bearer token: who
// is signed in, which roles the token carries, and whether the operator may
// see administrator pages.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the normalized administrator role.
const RoleAdmin = "ADMIN"

// ErrMalformedToken is returned when a token's claims cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")

// Claims is the decoded, unverified payload of a token.
type Claims map[string]any

// DecodeClaims reads the payload segment of a JWT. Neither the header nor
// the signature is examined: the backend verifies every request, and the
// console only needs the claims to decide what to show.
func DecodeClaims(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: expected dot-separated segments", ErrMalformedToken)
	}
	payload, err := jwt.NewParser(jwt.WithPaddingAllowed()).DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	mc := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &mc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	if mc == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformedToken)
	}
	return Claims(mc), nil
}

// Email returns the email claim, falling back to the subject.
func (c Claims) Email() string {
	if e, ok := c["email"].(string); ok && e != "" {
		return e
	}
	sub, _ := c["sub"].(string)
	return sub
}

// roleSource is one claim that may carry roles. List sources must hold an
// array; a list claim of any other shape is ignored.
type roleSource struct {
	claim string
	list  bool
}

// roleSources are consulted in priority order; their entries are merged.
var roleSources = []roleSource{
	{claim: "roles", list: true},
	{claim: "authorities", list: true},
	{claim: "role"},
	{claim: "authority"},
}

// ExtractRoles returns the normalized role set carried by the claims:
// upper-cased, without a ROLE_ prefix, blanks dropped, duplicates removed
// with first-seen order kept.
func ExtractRoles(c Claims) []string {
	var roles []string
	seen := make(map[string]bool)
	for _, src := range roleSources {
		raw, ok := c[src.claim]
		if !ok || raw == nil {
			continue
		}
		var entries []any
		if src.list {
			list, ok := raw.([]any)
			if !ok {
				continue
			}
			entries = list
		} else {
			entries = []any{raw}
		}
		for _, entry := range entries {
			role := normalizeRole(roleName(entry))
			if role == "" || seen[role] {
				continue
			}
			seen[role] = true
			roles = append(roles, role)
		}
	}
	return roles
}

// roleName reads a role entry: a bare string, or an object naming the role
// in "name" or "role".
func roleName(entry any) string {
	switch v := entry.(type) {
	case string:
		return v
	case map[string]any:
		if n, ok := v["name"].(string); ok && strings.TrimSpace(n) != "" {
			return n
		}
		if r, ok := v["role"].(string); ok {
			return r
		}
	}
	return ""
}

func normalizeRole(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.TrimSpace(strings.TrimPrefix(s, "ROLE_"))
}
