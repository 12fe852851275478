package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopdesk/shopdesk/internal/client"
)

// TextPath captures the whole response body as trimmed text.
const TextPath = "$text"

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Passed   bool
	Status   int
	Duration time.Duration
	Error    string // empty when passed
}

// Result records the outcome of an entire scenario.
type Result struct {
	ScenarioName string
	Passed       bool
	Steps        []StepResult
	Duration     time.Duration
}

// Runner executes scenarios against one backend.
type Runner struct {
	baseURL string
	http    *http.Client
	admin   *client.AdminClient
	vars    map[string]string
}

// Option configures a Runner.
type Option func(*Runner)

// WithHTTPClient replaces the default 10-second client.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Runner) { r.http = hc }
}

// NewRunner creates a Runner for the backend at baseURL.
func NewRunner(baseURL string, opts ...Option) *Runner {
	baseURL = strings.TrimRight(baseURL, "/")
	r := &Runner{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		admin:   client.NewAdmin(baseURL),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a scenario. Steps keep running after a failure so one run
// reports every broken expectation; the error return is for setup only.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	start := time.Now()
	result := &Result{ScenarioName: s.Name, Passed: true}

	r.vars = map[string]string{"base_url": r.baseURL}
	for k, v := range s.Variables {
		r.vars[k] = v
	}

	if err := r.runSetup(s); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	for i := range s.Steps {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sr := r.runStep(ctx, &s.Steps[i])
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Passed = false
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Vars returns the variables captured by the last run.
func (r *Runner) Vars() map[string]string {
	out := make(map[string]string, len(r.vars))
	for k, v := range r.vars {
		out[k] = v
	}
	return out
}

func (r *Runner) runSetup(s *Scenario) error {
	if s.Setup.Reset {
		if _, err := r.admin.Reset(); err != nil {
			return err
		}
	}
	if s.Setup.Seed != "" {
		path := s.Setup.Seed
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}
		if _, err := r.admin.Seed(path); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step *Step) StepResult {
	start := time.Now()
	sr := StepResult{Name: step.Name}
	fail := func(format string, args ...any) StepResult {
		sr.Error = fmt.Sprintf(format, args...)
		sr.Duration = time.Since(start)
		return sr
	}

	path, err := ExpandTemplates(step.Request.Path, r.vars)
	if err != nil {
		return fail("template expansion in path: %v", err)
	}

	var reqBody io.Reader
	if step.Request.Body != nil {
		body, err := r.buildBody(step.Request.Body)
		if err != nil {
			return fail("building request body: %v", err)
		}
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(step.Request.Method), r.baseURL+path, reqBody)
	if err != nil {
		return fail("building request: %v", err)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if step.Request.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if step.Request.Token != "" {
		token, err := ExpandTemplates(step.Request.Token, r.vars)
		if err != nil {
			return fail("template expansion in token: %v", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for k, v := range step.Request.Headers {
		expanded, err := ExpandTemplates(v, r.vars)
		if err != nil {
			return fail("template expansion in header %q: %v", k, err)
		}
		req.Header.Set(k, expanded)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fail("request failed: %v", err)
	}
	defer resp.Body.Close()
	sr.Status = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail("reading response body: %v", err)
	}

	if step.Assert != nil {
		if err := r.runAssertions(step.Assert, resp, respBody); err != nil {
			return fail("%v", err)
		}
	}

	for name, path := range step.Capture {
		if path == TextPath {
			r.vars[name] = strings.TrimSpace(string(respBody))
			continue
		}
		val, err := ExtractJSONPath(respBody, path)
		if err != nil {
			return fail("capture %q: %v", name, err)
		}
		r.vars[name] = stringify(val)
	}

	sr.Passed = true
	sr.Duration = time.Since(start)
	return sr
}

// buildBody renders the request body as JSON. A string value that is
// exactly one placeholder becomes a bare number or boolean when the
// variable holds one, so ids captured from responses can be posted back as
// numbers.
func (r *Runner) buildBody(body any) (string, error) {
	if s, ok := body.(string); ok {
		return ExpandTemplates(s, r.vars)
	}
	resolved, err := r.resolveValue(body)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("marshaling body: %w", err)
	}
	return string(data), nil
}

func (r *Runner) resolveValue(v any) (any, error) {
	switch t := v.(type) {
	case string:
		if name, ok := wholePlaceholder(t); ok {
			s, err := resolveExpr(name, r.vars)
			if err != nil {
				return nil, err
			}
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return json.Number(strconv.FormatFloat(n, 'f', -1, 64)), nil
			}
			if b, err := strconv.ParseBool(s); err == nil {
				return b, nil
			}
			return s, nil
		}
		return ExpandTemplates(t, r.vars)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			resolved, err := r.resolveValue(val)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			resolved, err := r.resolveValue(val)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func (r *Runner) runAssertions(a *Assert, resp *http.Response, body []byte) error {
	if a.Status != 0 && resp.StatusCode != a.Status {
		return fmt.Errorf("expected status %d, got %d: %s", a.Status, resp.StatusCode, snippet(body))
	}

	if a.BodyContains != "" {
		want, err := ExpandTemplates(a.BodyContains, r.vars)
		if err != nil {
			return fmt.Errorf("template expansion in body_contains: %v", err)
		}
		if !bytes.Contains(body, []byte(want)) {
			return fmt.Errorf("body does not contain %q: %s", want, snippet(body))
		}
	}

	for key, expected := range a.Headers {
		if actual := resp.Header.Get(key); !strings.HasPrefix(actual, expected) {
			return fmt.Errorf("header %q: expected %q, got %q", key, expected, actual)
		}
	}

	if len(a.Body) > 0 {
		expanded := make(map[string]any, len(a.Body))
		for path, expected := range a.Body {
			if s, ok := expected.(string); ok {
				v, err := ExpandTemplates(s, r.vars)
				if err != nil {
					return fmt.Errorf("template expansion in assertion %q: %v", path, err)
				}
				expanded[path] = v
				continue
			}
			expanded[path] = expected
		}
		if err := EvaluateBodyAssertions(body, expanded); err != nil {
			return err
		}
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

func stringify(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}
