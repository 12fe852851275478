// Package scenario loads and runs scripted API flows against a shop backend:
// ordered HTTP steps with variable capture and JSONPath assertions. It is
// how an operator checks that a backend deployment (or a twin-shop) still
// honors the contract the console depends on.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a complete flow loaded from a YAML or JSON file.
type Scenario struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description,omitempty"`
	Setup       Setup             `yaml:"setup" json:"setup"`
	Variables   map[string]string `yaml:"variables" json:"variables,omitempty"`
	Steps       []Step            `yaml:"steps" json:"steps"`

	dir string
}

// Setup runs against the twin control plane before the steps. Against a
// real backend leave it empty.
type Setup struct {
	Reset bool   `yaml:"reset" json:"reset,omitempty"`
	Seed  string `yaml:"seed" json:"seed,omitempty"`
}

// Step is a single request/assert pair.
type Step struct {
	Name    string  `yaml:"name" json:"name"`
	Request Request `yaml:"request" json:"request"`
	// Capture maps variable names to JSONPath expressions evaluated on the
	// response. The path "$text" captures the whole body as text, which is
	// how the login token is picked up.
	Capture map[string]string `yaml:"capture" json:"capture,omitempty"`
	Assert  *Assert           `yaml:"assert" json:"assert,omitempty"`
}

// Request is the HTTP request a step makes. Path is relative to the base
// URL. Token, when it expands to a non-empty string, is sent as a bearer
// token.
type Request struct {
	Method  string            `yaml:"method" json:"method"`
	Path    string            `yaml:"path" json:"path"`
	Token   string            `yaml:"token" json:"token,omitempty"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`
	Body    any               `yaml:"body" json:"body,omitempty"`
}

// Assert is what a step expects back.
type Assert struct {
	Status       int               `yaml:"status" json:"status,omitempty"`
	BodyContains string            `yaml:"body_contains" json:"body_contains,omitempty"`
	Headers      map[string]string `yaml:"headers" json:"headers,omitempty"`
	Body         map[string]any    `yaml:"body" json:"body,omitempty"`
}

// LoadScenario parses a single scenario file. The format follows the
// extension.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (expected .json, .yaml, or .yml)", ext)
	}

	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	for i, st := range s.Steps {
		if st.Request.Method == "" || st.Request.Path == "" {
			return nil, fmt.Errorf("scenario %s: step %d (%s) needs a method and a path", path, i+1, st.Name)
		}
	}
	s.dir = filepath.Dir(path)
	return &s, nil
}

// LoadDir loads every scenario file in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var scenarios []*Scenario
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	return scenarios, nil
}

// Load loads a file or every scenario in a directory.
func Load(path string) ([]*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario path %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	s, err := LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return []*Scenario{s}, nil
}
