// Package guard decides whether a console page may be shown for the current
// session, or where the operator should be sent instead.
package guard

import (
	"context"
	"fmt"

	"github.com/shopdesk/shopdesk/internal/session"
)

// Page names used as redirect targets.
const (
	PageLogin   = "login"
	PageDefault = "products"
)

// PendingMessage is shown while admin status is being resolved.
const PendingMessage = "Checking permissions..."

// Outcome is the kind of decision a guard reaches.
type Outcome int

const (
	Allow Outcome = iota
	// Pending means the decision depends on an admin probe still in flight.
	Pending
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Pending:
		return "pending"
	case Redirect:
		return "redirect"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Decision is a guard's verdict. Target is set for redirects.
type Decision struct {
	Outcome Outcome
	Target  string
	Reason  string
}

// Allowed reports whether the page may render.
func (d Decision) Allowed() bool { return d.Outcome == Allow }

// Guard evaluates a session snapshot.
type Guard func(session.Snapshot) Decision

func allow() Decision { return Decision{Outcome: Allow} }

func redirect(target, reason string) Decision {
	return Decision{Outcome: Redirect, Target: target, Reason: reason}
}

// RequireSession sends anonymous operators to the login page.
func RequireSession(s session.Snapshot) Decision {
	if !s.HasToken() {
		return redirect(PageLogin, "login required")
	}
	return allow()
}

// RequireAdmin sends anonymous operators to login, waits while admin status
// resolves, and sends non-admins to the default page.
func RequireAdmin(s session.Snapshot) Decision {
	if !s.HasToken() {
		return redirect(PageLogin, "login required")
	}
	if s.AdminCheckPending {
		return Decision{Outcome: Pending, Reason: PendingMessage}
	}
	if !s.IsAdmin {
		return redirect(PageDefault, "administrator access required")
	}
	return allow()
}

// Evaluate runs guards in order and returns the first non-allow decision.
func Evaluate(s session.Snapshot, guards ...Guard) Decision {
	for _, g := range guards {
		if d := g(s); d.Outcome != Allow {
			return d
		}
	}
	return allow()
}

// Waiter exposes the session to guards that need to wait out a probe.
type Waiter interface {
	Snapshot() session.Snapshot
	WaitResolved(ctx context.Context) (session.Snapshot, error)
}

// Await evaluates guards, and if the result is Pending waits for the session
// to resolve and evaluates again. onPending, when non-nil, is called once
// before waiting so callers can show PendingMessage.
func Await(ctx context.Context, w Waiter, onPending func(), guards ...Guard) (Decision, error) {
	d := Evaluate(w.Snapshot(), guards...)
	if d.Outcome != Pending {
		return d, nil
	}
	if onPending != nil {
		onPending()
	}
	s, err := w.WaitResolved(ctx)
	if err != nil {
		return d, fmt.Errorf("waiting for permissions: %w", err)
	}
	return Evaluate(s, guards...), nil
}

// DeniedError reports a redirect decision as an error for one-shot commands.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	switch e.Decision.Target {
	case PageLogin:
		return "not logged in (run `shopctl login`)"
	case PageDefault:
		return "administrator access required"
	}
	return e.Decision.Reason
}

// Err converts a non-allow decision to a *DeniedError, or nil.
func (d Decision) Err() error {
	if d.Outcome == Allow {
		return nil
	}
	return &DeniedError{Decision: d}
}
