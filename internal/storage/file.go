package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// File keeps state in a YAML map on disk. Every Get re-reads the file so a
// login in one terminal is visible to a shell running in another.
type File struct {
	mu   sync.Mutex
	path string
}

// DefaultStatePath returns ~/.shopdesk/state.yaml.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".shopdesk", "state.yaml"), nil
}

// NewFile returns a File store at path, or at DefaultStatePath when path is empty.
func NewFile(path string) (*File, error) {
	if path == "" {
		p, err := DefaultStatePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &File{path: path}, nil
}

// Path returns the backing file location.
func (f *File) Path() string { return f.path }

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, err := f.read()
	if err != nil {
		return "", err
	}
	return state[key], nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, err := f.read()
	if err != nil {
		return err
	}
	state[key] = value
	return f.write(state)
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := state[key]; !ok {
		return nil
	}
	delete(state, key)
	return f.write(state)
}

func (f *File) read() (map[string]string, error) {
	state := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return nil, fmt.Errorf("reading state %s: %w", f.path, err)
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state %s: %w", f.path, err)
	}
	if state == nil {
		state = make(map[string]string)
	}
	return state, nil
}

// write stores the map with 0600 permissions since it holds a bearer token.
func (f *File) write(state map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing state %s: %w", f.path, err)
	}
	return nil
}
