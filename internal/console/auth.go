package console

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopdesk/shopdesk/internal/guard"
	"github.com/shopdesk/shopdesk/internal/session"
)

// AuthPage signs operators in and out and registers users.
type AuthPage struct {
	api    API
	sess   Session
	logger *slog.Logger
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token and starts a session with it.
func (a *AuthPage) Login(ctx context.Context, email, password string) (Outcome, error) {
	creds := credentials{Email: strings.TrimSpace(email), Password: password}
	errs := FieldErrors{}
	if creds.Email == "" {
		errs["email"] = "Email is required"
	}
	if creds.Password == "" {
		errs["password"] = "Password is required"
	}
	if len(errs) > 0 {
		return Outcome{}, invalid(errs)
	}

	token, err := a.api.PostText(ctx, "/auth/login", creds)
	if err != nil {
		return Outcome{}, submitFailed(err, "Login failed. Check credentials.")
	}
	if err := a.sess.Login(ctx, token); err != nil {
		return Outcome{}, &SubmitError{Message: "Login failed: the server returned an unusable token", Err: err}
	}
	a.logger.Info("signed in", "email", creds.Email)
	return Outcome{Notice: "Signed in as " + creds.Email, Next: guard.PageDefault}, nil
}

// RegisterForm is the new-user form.
type RegisterForm struct {
	Email    string
	Password string
	Phone    string
	Address  string
	Role     string
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Role     string `json:"role"`
}

// RoleCustomer is the role assigned to self-registered users.
const RoleCustomer = "CUSTOMER"

// Register creates a user. Only an admin may choose the role; everyone
// else registers customers.
func (a *AuthPage) Register(ctx context.Context, f RegisterForm) (Outcome, error) {
	req := registerRequest{
		Email:    strings.TrimSpace(f.Email),
		Password: f.Password,
		Phone:    strings.TrimSpace(f.Phone),
		Address:  strings.TrimSpace(f.Address),
		Role:     RoleCustomer,
	}
	errs := FieldErrors{}
	if req.Email == "" {
		errs["email"] = "Email is required"
	}
	if req.Password == "" {
		errs["password"] = "Password is required"
	}
	if len(errs) > 0 {
		return Outcome{}, invalid(errs)
	}
	if role := strings.ToUpper(strings.TrimSpace(f.Role)); role != "" && a.sess.Snapshot().IsAdmin {
		req.Role = role
	}

	var ack string
	if err := a.api.Post(ctx, "/auth/register", req, &ack); err != nil {
		return Outcome{}, submitFailed(err, "Registration failed")
	}
	return Outcome{Notice: "User created successfully", Next: guard.PageLogin, Delay: 1800 * time.Millisecond}, nil
}

// Logout ends the session.
func (a *AuthPage) Logout(ctx context.Context) (Outcome, error) {
	if err := a.sess.Logout(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Notice: "Signed out", Next: guard.PageLogin}, nil
}

// WhoAmI returns the current session.
func (a *AuthPage) WhoAmI() session.Snapshot {
	return a.sess.Snapshot()
}
