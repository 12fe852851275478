package console

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopdesk/shopdesk/internal/client"
)

// SessionExpired replaces the error of any read rejected with 401.
const SessionExpired = "Session expired. Please logout and login again."

// State is the render state of a View.
type State int

const (
	Loading State = iota
	Failed
	Empty
	Populated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Failed:
		return "error"
	case Empty:
		return "empty"
	case Populated:
		return "populated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// View is what a page renders. Err is set only in the Failed state.
type View[T any] struct {
	State State
	Data  T
	Err   string
}

func populated[T any](data T, empty bool) View[T] {
	if empty {
		return View[T]{State: Empty, Data: data}
	}
	return View[T]{State: Populated, Data: data}
}

func failed[T any](err error, fallback string) View[T] {
	return View[T]{State: Failed, Err: readError(err, fallback)}
}

// readError maps a read failure to display text.
func readError(err error, fallback string) string {
	if errors.Is(err, client.ErrUnauthorized) {
		return SessionExpired
	}
	return client.Message(err, fallback)
}

// Page owns the lifetime of one mounted view. Each Mount gets its own
// context; results committed under an older generation, or after Unmount,
// are discarded.
type Page[T any] struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	view   View[T]
}

func (p *Page[T]) begin(parent context.Context) (context.Context, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.view = View[T]{State: Loading}
	return ctx, p.gen
}

func (p *Page[T]) commit(gen uint64, v View[T]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false
	}
	p.view = v
	return true
}

// Mount runs load under a fresh mount context and returns the resulting
// view. If the page was remounted or unmounted meanwhile the result is
// dropped and the current view returned instead.
func (p *Page[T]) Mount(ctx context.Context, load func(context.Context) View[T]) View[T] {
	mctx, gen := p.begin(ctx)
	v := load(mctx)
	if !p.commit(gen, v) {
		return p.View()
	}
	return v
}

// Unmount cancels the in-flight load and resets the view.
func (p *Page[T]) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.view = View[T]{}
}

// View returns the current view.
func (p *Page[T]) View() View[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// update applies a local change to the view without starting a new mount
// and returns the previous view. It supersedes any in-flight mount, whose
// result is then dropped like that of an older generation.
func (p *Page[T]) update(fn func(View[T]) View[T]) View[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	prev := p.view
	p.view = fn(prev)
	return prev
}

// replace swaps the view in place, returning the previous one.
func (p *Page[T]) replace(v View[T]) View[T] {
	return p.update(func(View[T]) View[T] { return v })
}

// Outcome is the result of a successful mutation: a transient notice and,
// optionally, the page to move to after Delay.
type Outcome struct {
	Notice string
	Next   string
	Delay  time.Duration
}

// FieldErrors maps form field names to validation messages.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := slices.Sorted(maps.Keys(f))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, ", ")
}

// SubmitError is a failed mutation. Message is what to show; Fields holds
// local validation failures when the request never left the client.
type SubmitError struct {
	Message string
	Fields  FieldErrors
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }

func (e *SubmitError) Unwrap() error { return e.Err }

func invalid(fields FieldErrors) *SubmitError {
	return &SubmitError{Message: fields.Error(), Fields: fields}
}

func submitFailed(err error, fallback string) *SubmitError {
	return &SubmitError{Message: client.Message(err, fallback), Err: err}
}
