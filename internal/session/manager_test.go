package session

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/shopdesk/internal/storage"
)

// fakeProber blocks each probe until the test releases it.
type fakeProber struct {
	mu      sync.Mutex
	results map[string]chan error
	calls   []string
}

func newFakeProber() *fakeProber {
	return &fakeProber{results: make(map[string]chan error)}
}

func (p *fakeProber) ch(token string) chan error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.results[token]
	if !ok {
		c = make(chan error, 1)
		p.results[token] = c
	}
	return c
}

func (p *fakeProber) ProbeAdmin(ctx context.Context, token string) error {
	p.mu.Lock()
	p.calls = append(p.calls, token)
	p.mu.Unlock()
	select {
	case err := <-p.ch(token):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakeProber) resolve(token string, err error) { p.ch(token) <- err }

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestInitWithoutToken(t *testing.T) {
	m := NewManager(storage.NewMemory(), newFakeProber(), nil)
	require.NoError(t, m.Init(context.Background()))

	s := m.Snapshot()
	assert.Equal(t, StatusAnonymous, s.Status())
	assert.False(t, s.IsAdmin)
}

func TestInitWithRoleClaims(t *testing.T) {
	st := storage.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, storage.KeyToken, signToken(t, jwt.MapClaims{
		"sub":   "admin@shop.test",
		"roles": []string{"ROLE_ADMIN"},
	})))
	prober := newFakeProber()

	m := NewManager(st, prober, nil)
	require.NoError(t, m.Init(ctx))

	s := m.Snapshot()
	assert.Equal(t, StatusReady, s.Status())
	assert.True(t, s.IsAdmin)
	assert.Equal(t, "admin@shop.test", s.Email)
	assert.Zero(t, prober.callCount(), "role claims make the probe unnecessary")
}

func TestInitMalformedTokenClearsStorage(t *testing.T) {
	st := storage.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, storage.KeyToken, "not-a-jwt"))

	m := NewManager(st, newFakeProber(), nil)
	require.NoError(t, m.Init(ctx))

	assert.Equal(t, StatusAnonymous, m.Snapshot().Status())
	v, _ := st.Get(ctx, storage.KeyToken)
	assert.Empty(t, v)
}

func TestInitKeepsTokenWithUnreadableHeader(t *testing.T) {
	st := storage.NewMemory()
	ctx := context.Background()
	token := "opaque." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"ops@shop.test","roles":["ROLE_ADMIN"]}`)) + ".sig"
	require.NoError(t, st.Set(ctx, storage.KeyToken, token))

	m := NewManager(st, newFakeProber(), nil)
	require.NoError(t, m.Init(ctx))

	snap := m.Snapshot()
	assert.Equal(t, token, snap.Token)
	assert.True(t, snap.IsAdmin)
	v, _ := st.Get(ctx, storage.KeyToken)
	assert.Equal(t, token, v)
}

func TestLoginMalformedTokenFails(t *testing.T) {
	st := storage.NewMemory()
	m := NewManager(st, newFakeProber(), nil)

	err := m.Login(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMalformedToken)
	v, _ := st.Get(context.Background(), storage.KeyToken)
	assert.Empty(t, v)
	assert.ErrorIs(t, m.Login(context.Background(), "  "), ErrEmptyToken)
}

func TestLoginWithoutRolesProbes(t *testing.T) {
	prober := newFakeProber()
	m := NewManager(storage.NewMemory(), prober, nil)
	token := signToken(t, jwt.MapClaims{"sub": "ops@shop.test"})

	require.NoError(t, m.Login(context.Background(), token))
	s := m.Snapshot()
	assert.Equal(t, StatusResolving, s.Status(), "resolving is distinct from anonymous")
	assert.True(t, s.HasToken())

	prober.resolve(token, nil)
	s, err := m.WaitResolved(waitCtx(t))
	require.NoError(t, err)
	assert.True(t, s.IsAdmin)
	assert.Equal(t, StatusReady, s.Status())
}

func TestProbeFailureMeansNotAdmin(t *testing.T) {
	prober := newFakeProber()
	m := NewManager(storage.NewMemory(), prober, nil)
	token := signToken(t, jwt.MapClaims{"sub": "c@shop.test"})

	require.NoError(t, m.Login(context.Background(), token))
	prober.resolve(token, errors.New("403"))

	s, err := m.WaitResolved(waitCtx(t))
	require.NoError(t, err)
	assert.False(t, s.IsAdmin)
	assert.False(t, s.AdminCheckPending)
}

func TestStaleProbeIsDropped(t *testing.T) {
	prober := newFakeProber()
	m := NewManager(storage.NewMemory(), prober, nil)
	ctx := context.Background()

	first := signToken(t, jwt.MapClaims{"sub": "first@shop.test"})
	second := signToken(t, jwt.MapClaims{"sub": "second@shop.test"})

	require.NoError(t, m.Login(ctx, first))
	require.NoError(t, m.Login(ctx, second))

	// The first probe reports admin after being superseded; it must not win.
	prober.resolve(first, nil)
	prober.resolve(second, errors.New("forbidden"))

	s, err := m.WaitResolved(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "second@shop.test", s.Email)
	assert.False(t, s.IsAdmin)
}

func TestLogoutDuringProbe(t *testing.T) {
	prober := newFakeProber()
	st := storage.NewMemory()
	m := NewManager(st, prober, nil)
	ctx := context.Background()
	token := signToken(t, jwt.MapClaims{"sub": "a@shop.test"})

	require.NoError(t, m.Login(ctx, token))
	require.NoError(t, m.Logout(ctx))
	prober.resolve(token, nil)

	s, err := m.WaitResolved(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StatusAnonymous, s.Status())
	assert.False(t, s.IsAdmin)

	v, _ := st.Get(ctx, storage.KeyToken)
	assert.Empty(t, v)

	// idempotent
	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, StatusAnonymous, m.Snapshot().Status())
}

func TestWaitResolvedHonorsContext(t *testing.T) {
	prober := newFakeProber()
	m := NewManager(storage.NewMemory(), prober, nil)
	require.NoError(t, m.Login(context.Background(), signToken(t, jwt.MapClaims{"sub": "x"})))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s, err := m.WaitResolved(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, s.AdminCheckPending)

	m.Close()
	s, err = m.WaitResolved(waitCtx(t))
	require.NoError(t, err)
	assert.False(t, s.AdminCheckPending)
}

func TestProbeOutlivesCallerContext(t *testing.T) {
	prober := newFakeProber()
	m := NewManager(storage.NewMemory(), prober, nil)
	token := signToken(t, jwt.MapClaims{"sub": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Login(ctx, token))
	cancel()

	prober.resolve(token, nil)
	s, err := m.WaitResolved(waitCtx(t))
	require.NoError(t, err)
	assert.True(t, s.IsAdmin)
}
