// Package procmgr runs a local twin-shop in the background for
// `shopctl twin up|down|status`: starting it detached, tracking its PID and
// sending its output to a log file.
package procmgr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"
)

// DefaultBinary is looked up on PATH when no binary is given.
const DefaultBinary = "twin-shop"

// Entry tracks the running twin.
type Entry struct {
	PID     int       `json:"pid"`
	Port    int       `json:"port"`
	Binary  string    `json:"binary"`
	LogFile string    `json:"log_file"`
	Started time.Time `json:"started"`
}

// URL is where the twin serves.
func (e Entry) URL() string { return "http://localhost:" + strconv.Itoa(e.Port) }

// Options selects the binary and its flags.
type Options struct {
	Binary       string
	Port         int
	SeedFile     string
	RoleClaim    string
	DemoPayments bool
	Verbose      bool
}

func (o Options) args() ([]string, error) {
	args := []string{"--port", strconv.Itoa(o.Port)}
	if o.Verbose {
		args = append(args, "--verbose")
	}
	if o.RoleClaim != "" {
		args = append(args, "--role-claim", o.RoleClaim)
	}
	if o.DemoPayments {
		args = append(args, "--demo-payments")
	}
	if o.SeedFile != "" {
		seedPath, err := filepath.Abs(o.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("resolving seed path: %w", err)
		}
		args = append(args, "--seed-file", seedPath)
	}
	return args, nil
}

// Manager keeps its PID file and logs under dir.
type Manager struct {
	dir string
}

// New creates a Manager rooted at dir (normally ~/.shopdesk).
func New(dir string) *Manager {
	return &Manager{dir: dir}
}

func (m *Manager) pidFile() string { return filepath.Join(m.dir, "twin.json") }

// Load returns the tracked twin, or ok=false when none is recorded.
func (m *Manager) Load() (Entry, bool, error) {
	data, err := os.ReadFile(m.pidFile())
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("parsing %s: %w", m.pidFile(), err)
	}
	return e, true, nil
}

func (m *Manager) save(e Entry) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.pidFile(), data, 0o644)
}

// Start launches the twin detached with output redirected to a log file
// and records it. A twin that is already running is returned as is.
func (m *Manager) Start(opts Options) (Entry, error) {
	if e, ok, err := m.Load(); err == nil && ok && IsRunning(e.PID) {
		return e, nil
	}

	name := opts.Binary
	if name == "" {
		name = DefaultBinary
	}
	binary, err := exec.LookPath(name)
	if err != nil {
		return Entry{}, fmt.Errorf("twin binary not found: %w", err)
	}
	if binary, err = filepath.Abs(binary); err != nil {
		return Entry{}, fmt.Errorf("resolving binary path: %w", err)
	}
	args, err := opts.args()
	if err != nil {
		return Entry{}, err
	}

	logDir := filepath.Join(m.dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return Entry{}, fmt.Errorf("creating log dir: %w", err)
	}
	logPath := filepath.Join(logDir, "twin-shop.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("creating log file: %w", err)
	}

	cmd := exec.Command(binary, args...)
	cmd.Env = os.Environ()
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setDetachedProcessAttrs(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return Entry{}, fmt.Errorf("starting twin-shop: %w", err)
	}
	go func() {
		cmd.Wait()
		logFile.Close()
	}()

	e := Entry{
		PID:     cmd.Process.Pid,
		Port:    opts.Port,
		Binary:  binary,
		LogFile: logPath,
		Started: time.Now(),
	}
	if err := m.save(e); err != nil {
		return e, fmt.Errorf("saving pid state: %w", err)
	}
	return e, nil
}

// Stop sends SIGTERM to the tracked twin, waits up to five seconds, then
// falls back to SIGKILL. The PID file is removed either way.
func (m *Manager) Stop() (Entry, bool, error) {
	e, ok, err := m.Load()
	if err != nil || !ok {
		return e, false, err
	}
	defer os.Remove(m.pidFile())

	if !IsRunning(e.PID) {
		return e, false, nil
	}
	proc, err := os.FindProcess(e.PID)
	if err != nil {
		return e, false, nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return e, false, nil
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !IsRunning(e.PID) {
			return e, true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	proc.Signal(syscall.SIGKILL)
	time.Sleep(100 * time.Millisecond)
	return e, true, nil
}

// IsRunning reports whether a process with pid is alive.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 probes existence.
	return proc.Signal(syscall.Signal(0)) == nil
}
