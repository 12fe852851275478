package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shopdesk/shopdesk/internal/shoptwin/store"
	pkgstore "github.com/shopdesk/shopdesk/pkg/store"
)

// Role claim shapes the twin can issue. Real backends disagree on where
// roles live in a token; RoleClaimNone matches a backend that only puts the
// subject in the token, leaving clients to probe for admin access.
const (
	RoleClaimRoles       = "roles"
	RoleClaimAuthorities = "authorities"
	RoleClaimRole        = "role"
	RoleClaimAuthority   = "authority"
	RoleClaimNone        = "none"
)

// RoleClaimStyles lists the accepted --role-claim values.
var RoleClaimStyles = []string{RoleClaimNone, RoleClaimRoles, RoleClaimAuthorities, RoleClaimRole, RoleClaimAuthority}

var errInvalidToken = errors.New("invalid token")

// JWTManager issues and verifies HS256 session tokens against the twin's
// simulated clock.
type JWTManager struct {
	secret []byte
	style  string
	ttl    time.Duration
	clock  *pkgstore.Clock
}

// NewJWTManager creates a manager. An unknown style is an error.
func NewJWTManager(secret, style string, clock *pkgstore.Clock) (*JWTManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	switch style {
	case RoleClaimNone, RoleClaimRoles, RoleClaimAuthorities, RoleClaimRole, RoleClaimAuthority:
	default:
		return nil, fmt.Errorf("unknown role claim style %q (want one of %s)", style, strings.Join(RoleClaimStyles, ", "))
	}
	return &JWTManager{secret: []byte(secret), style: style, ttl: 24 * time.Hour, clock: clock}, nil
}

// GenerateToken signs a token for the user.
func (m *JWTManager) GenerateToken(u store.User) (string, error) {
	now := m.clock.Now()
	claims := jwt.MapClaims{
		"sub": u.Email,
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
	}
	if u.Phone != "" {
		claims["phone"] = u.Phone
	}
	m.addRoles(claims, u.Roles)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

func (m *JWTManager) addRoles(claims jwt.MapClaims, roles []string) {
	if len(roles) == 0 {
		return
	}
	switch m.style {
	case RoleClaimRoles:
		prefixed := make([]string, len(roles))
		for i, r := range roles {
			prefixed[i] = "ROLE_" + r
		}
		claims["roles"] = prefixed
	case RoleClaimAuthorities:
		list := make([]map[string]string, len(roles))
		for i, r := range roles {
			list[i] = map[string]string{"name": "ROLE_" + r}
		}
		claims["authorities"] = list
	case RoleClaimRole:
		claims["role"] = roles[0]
	case RoleClaimAuthority:
		claims["authority"] = map[string]string{"name": "ROLE_" + roles[0]}
	}
}

// Subject verifies a token and returns its subject.
func (m *JWTManager) Subject(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errInvalidToken
	}
	return sub, nil
}
