package session

import (
	"encoding/base64"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestDecodeClaims(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "ops@shop.test", "roles": []string{"ADMIN"}})

	c, err := DecodeClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@shop.test", c.Email())
	assert.Equal(t, []string{"ADMIN"}, ExtractRoles(c))
}

func TestDecodeClaimsIgnoresHeader(t *testing.T) {
	seg := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	payload := seg(`{"sub":"a@b.com","roles":["ROLE_ADMIN"]}`)

	headers := map[string]string{
		"no alg":      seg(`{"typ":"JWT"}`),
		"unknown alg": seg(`{"alg":"HS999"}`),
		"opaque":      "xx",
		"empty":       "",
	}
	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			c, err := DecodeClaims(header + "." + payload + ".sig")
			require.NoError(t, err)
			assert.Equal(t, "a@b.com", c.Email())
			assert.Equal(t, []string{RoleAdmin}, ExtractRoles(c))
		})
	}

	c, err := DecodeClaims("h." + payload)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", c.Email())
}

func TestDecodeClaimsMalformed(t *testing.T) {
	for _, tok := range []string{"garbage", "a.b.c", "x.!!!.y", "h." + base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`)) + ".s", "h.bnVsbA.s"} {
		_, err := DecodeClaims(tok)
		assert.ErrorIs(t, err, ErrMalformedToken, tok)
	}
}

func TestClaimsEmailPrefersEmailClaim(t *testing.T) {
	c := Claims{"sub": "42", "email": "real@shop.test"}
	assert.Equal(t, "real@shop.test", c.Email())
	assert.Equal(t, "", Claims{}.Email())
}

func TestExtractRolesShapes(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   []string
	}{
		{
			name:   "roles array of strings",
			claims: Claims{"roles": []any{"admin", "customer"}},
			want:   []string{"ADMIN", "CUSTOMER"},
		},
		{
			name:   "authorities array of objects",
			claims: Claims{"authorities": []any{map[string]any{"authority": "x", "name": "ROLE_ADMIN"}}},
			want:   []string{"ADMIN"},
		},
		{
			name:   "object with role field",
			claims: Claims{"roles": []any{map[string]any{"role": "role_customer"}}},
			want:   []string{"CUSTOMER"},
		},
		{
			name:   "single role string",
			claims: Claims{"role": "ROLE_ADMIN"},
			want:   []string{"ADMIN"},
		},
		{
			name:   "single authority object",
			claims: Claims{"authority": map[string]any{"name": "customer"}},
			want:   []string{"CUSTOMER"},
		},
		{
			name: "union keeps first-seen order and drops duplicates",
			claims: Claims{
				"roles":       []any{"ROLE_CUSTOMER"},
				"authorities": []any{"ADMIN", "customer"},
				"role":        "admin",
			},
			want: []string{"CUSTOMER", "ADMIN"},
		},
		{
			name:   "blanks dropped",
			claims: Claims{"roles": []any{"", "  ", "ROLE_", map[string]any{}}},
			want:   nil,
		},
		{
			name:   "non-array roles ignored",
			claims: Claims{"roles": "ADMIN"},
			want:   nil,
		},
		{
			name:   "no role claims",
			claims: Claims{"sub": "x"},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRoles(tt.claims))
		})
	}
}
