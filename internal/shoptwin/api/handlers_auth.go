package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopdesk/shopdesk/internal/shoptwin/store"
	"github.com/shopdesk/shopdesk/pkg/twincore"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login. The token is returned as plain text.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.store.Authenticate(strings.TrimSpace(req.Email), req.Password)
	if errors.Is(err, store.ErrBadCredentials) {
		twincore.Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		storeError(w, err)
		return
	}
	token, err := h.jwtMgr.GenerateToken(u)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	twincore.Text(w, http.StatusOK, token)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Role     string `json:"role"`
}

// Register handles POST /auth/register. Creating an administrator requires
// an administrator's bearer token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	fields := map[string]string{}
	switch {
	case req.Email == "":
		fields["email"] = "Email is required"
	case !strings.Contains(req.Email, "@"):
		fields["email"] = "Email must be valid"
	}
	if req.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		twincore.FieldErrors(w, fields)
		return
	}

	role := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(req.Role), "ROLE_"))
	switch role {
	case "", store.RoleCustomer:
	case store.RoleAdmin:
		if u, ok := h.bearerUser(r); !ok || !u.IsAdmin() {
			twincore.Error(w, http.StatusForbidden, "Only administrators can create administrator accounts")
			return
		}
	default:
		twincore.FieldErrors(w, map[string]string{"role": "Role must be CUSTOMER or ADMIN"})
		return
	}

	if _, err := h.store.Register(req.Email, req.Password, req.Phone, req.Address, role); err != nil {
		storeError(w, err)
		return
	}
	twincore.Text(w, http.StatusOK, "User registered successfully")
}
