// Package storage persists the console's client-side state (the bearer token
// and the API base-URL override) so it survives between runs until logout.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Well-known keys.
const (
	KeyToken   = "token"
	KeyBaseURL = "baseUrl"
)

// Store is a small string key/value store. Get returns "" with a nil error
// when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	StateFile string
	Redis     RedisOptions
}

// Open builds the configured backend. The returned close function releases
// any connection the backend holds.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	noop := func() error { return nil }
	switch opts.Backend {
	case "", BackendFile:
		f, err := NewFile(opts.StateFile)
		if err != nil {
			return nil, nil, err
		}
		return f, noop, nil
	case BackendRedis:
		r, err := NewRedis(ctx, opts.Redis)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case BackendMemory:
		return NewMemory(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// Memory is an in-process Store used by tests and one-off shells.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
