package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/shopdesk/shopdesk/internal/client"
	"github.com/shopdesk/shopdesk/internal/session"
)

type reply struct {
	body string
	err  error
	wait chan struct{}
}

// fakeAPI answers requests from a script keyed by "METHOD path". Unscripted
// requests get a 404.
type fakeAPI struct {
	mu     sync.Mutex
	routes map[string]reply
	calls  []string
	bodies map[string]any
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{routes: make(map[string]reply), bodies: make(map[string]any)}
}

func (f *fakeAPI) on(method, path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = reply{body: body}
}

func (f *fakeAPI) fail(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = reply{err: apiError(method, path, status, body)}
}

// block makes a scripted route wait until the returned channel is closed.
func (f *fakeAPI) block(method, path string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	r := f.routes[method+" "+path]
	r.wait = ch
	f.routes[method+" "+path] = r
	return ch
}

func (f *fakeAPI) called(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method+" "+path {
			n++
		}
	}
	return n
}

func (f *fakeAPI) body(method, path string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[method+" "+path]
}

func apiError(method, path string, status int, body string) *client.APIError {
	return &client.APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Message:    client.ExtractMessage([]byte(body)),
		Body:       []byte(body),
	}
}

func (f *fakeAPI) do(ctx context.Context, method, path string, body, out any) error {
	key := method + " " + path
	f.mu.Lock()
	f.calls = append(f.calls, key)
	if body != nil {
		f.bodies[key] = body
	}
	r, ok := f.routes[key]
	f.mu.Unlock()

	if !ok {
		return apiError(method, path, http.StatusNotFound, `{"error":"no route"}`)
	}
	if r.wait != nil {
		select {
		case <-r.wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.err != nil {
		return r.err
	}
	switch dst := out.(type) {
	case nil:
		return nil
	case *string:
		*dst = r.body
		return nil
	default:
		if r.body == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(r.body), out); err != nil {
			return fmt.Errorf("fake %s: %w", key, err)
		}
		return nil
	}
}

func (f *fakeAPI) Get(ctx context.Context, path string, out any) error {
	return f.do(ctx, http.MethodGet, path, nil, out)
}

func (f *fakeAPI) Post(ctx context.Context, path string, body, out any) error {
	return f.do(ctx, http.MethodPost, path, body, out)
}

func (f *fakeAPI) Put(ctx context.Context, path string, body, out any) error {
	return f.do(ctx, http.MethodPut, path, body, out)
}

func (f *fakeAPI) Delete(ctx context.Context, path string, out any) error {
	return f.do(ctx, http.MethodDelete, path, nil, out)
}

func (f *fakeAPI) PostText(ctx context.Context, path string, body any) (string, error) {
	var s string
	err := f.do(ctx, http.MethodPost, path, body, &s)
	return s, err
}

type fakeSession struct {
	snap     session.Snapshot
	loginErr error
}

func (s *fakeSession) Login(_ context.Context, token string) error {
	if s.loginErr != nil {
		return s.loginErr
	}
	s.snap = session.Snapshot{Token: token}
	return nil
}

func (s *fakeSession) Logout(context.Context) error {
	s.snap = session.Snapshot{}
	return nil
}

func (s *fakeSession) Snapshot() session.Snapshot { return s.snap }

func newTestConsole() (*Console, *fakeAPI, *fakeSession) {
	api := newFakeAPI()
	sess := &fakeSession{}
	return New(api, sess, nil), api, sess
}
