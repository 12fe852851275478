package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/shopdesk/shopdesk/internal/storage"
)

// ErrEmptyToken is returned by Login when the backend handed back no token.
var ErrEmptyToken = errors.New("empty token")

// Status is the coarse session state.
type Status int

const (
	StatusAnonymous Status = iota
	// StatusResolving means a token is present but admin status is still
	// being probed.
	StatusResolving
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusResolving:
		return "resolving"
	case StatusReady:
		return "ready"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Snapshot is an immutable view of the session. Readers must not modify
// Claims or Roles.
type Snapshot struct {
	Token             string
	Claims            Claims
	Email             string
	Roles             []string
	IsAdmin           bool
	AdminCheckPending bool
}

// HasToken reports whether someone is signed in.
func (s Snapshot) HasToken() bool { return s.Token != "" }

// Status derives the coarse state from the snapshot.
func (s Snapshot) Status() Status {
	switch {
	case !s.HasToken():
		return StatusAnonymous
	case s.AdminCheckPending:
		return StatusResolving
	default:
		return StatusReady
	}
}

// Prober checks whether a token grants administrator access. A nil error
// means it does.
type Prober interface {
	ProbeAdmin(ctx context.Context, token string) error
}

// Manager owns the session. It is the only writer; everyone else reads
// Snapshots. Each token change bumps a generation and cancels the in-flight
// admin probe, and a probe result from an older generation is dropped.
type Manager struct {
	store  storage.Store
	prober Prober
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64
	snap    Snapshot
	cancel  context.CancelFunc
	pending chan struct{} // closed when the current probe settles
}

// NewManager creates an anonymous Manager. Call Init to load a stored token.
func NewManager(store storage.Store, prober Prober, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, prober: prober, logger: logger}
}

// Init resolves the session from the persisted token. A malformed stored
// token is cleared and leaves the session anonymous without failing Init.
func (m *Manager) Init(ctx context.Context) error {
	token, err := m.store.Get(ctx, storage.KeyToken)
	if err != nil {
		return fmt.Errorf("loading stored token: %w", err)
	}
	if err := m.apply(ctx, strings.TrimSpace(token)); err != nil && !errors.Is(err, ErrMalformedToken) {
		return err
	}
	return nil
}

// Login persists token and replaces the session with one resolved from it.
func (m *Manager) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if err := m.store.Set(ctx, storage.KeyToken, token); err != nil {
		return fmt.Errorf("persisting token: %w", err)
	}
	return m.apply(ctx, token)
}

// Logout clears the in-memory session, then the persisted token. Calling it
// when already anonymous is a no-op apart from the storage delete.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	m.stopProbeLocked()
	m.snap = Snapshot{}
	m.mu.Unlock()

	if err := m.store.Delete(ctx, storage.KeyToken); err != nil {
		return fmt.Errorf("clearing stored token: %w", err)
	}
	return nil
}

// Close cancels any in-flight probe. The session keeps its last state.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.snap.AdminCheckPending = false
	m.stopProbeLocked()
}

// Snapshot returns the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// WaitResolved blocks until no admin probe is pending, then returns the
// session.
func (m *Manager) WaitResolved(ctx context.Context) (Snapshot, error) {
	for {
		m.mu.Lock()
		snap, ch := m.snap, m.pending
		m.mu.Unlock()

		if !snap.AdminCheckPending || ch == nil {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

func (m *Manager) apply(ctx context.Context, token string) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.stopProbeLocked()

	if token == "" {
		m.snap = Snapshot{}
		m.mu.Unlock()
		return nil
	}

	claims, err := DecodeClaims(token)
	if err != nil {
		m.snap = Snapshot{}
		m.mu.Unlock()
		m.logger.Warn("discarding malformed token", "err", err)
		if derr := m.store.Delete(ctx, storage.KeyToken); derr != nil {
			return fmt.Errorf("clearing malformed token: %w", derr)
		}
		return err
	}

	snap := Snapshot{
		Token:  token,
		Claims: claims,
		Email:  claims.Email(),
		Roles:  ExtractRoles(claims),
	}
	if len(snap.Roles) > 0 {
		snap.IsAdmin = slices.Contains(snap.Roles, RoleAdmin)
		m.snap = snap
		m.mu.Unlock()
		return nil
	}

	// No role claim: ask the backend.
	snap.AdminCheckPending = true
	m.snap = snap
	probeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.pending = make(chan struct{})
	m.mu.Unlock()

	go m.probe(probeCtx, gen, token)
	return nil
}

func (m *Manager) probe(ctx context.Context, gen uint64, token string) {
	err := m.prober.ProbeAdmin(ctx, token)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		m.logger.Debug("dropping stale admin probe", "generation", gen)
		return
	}
	m.snap.IsAdmin = err == nil
	m.snap.AdminCheckPending = false
	m.logger.Debug("admin probe settled", "admin", m.snap.IsAdmin, "err", err)
	m.stopProbeLocked()
}

// stopProbeLocked cancels the in-flight probe and releases its waiters.
func (m *Manager) stopProbeLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.pending != nil {
		close(m.pending)
		m.pending = nil
	}
}
