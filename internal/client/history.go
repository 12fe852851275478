package client

import (
	"sync"
	"time"
)

// HistorySize is how many recent calls the client remembers.
const HistorySize = 6

// Call records one API request for the `history` command.
type Call struct {
	Time      time.Time     `json:"time"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration"`
	RequestID string        `json:"requestId"`
	Err       string        `json:"error,omitempty"`
}

// History is a bounded, thread-safe ring of recent calls.
type History struct {
	mu      sync.Mutex
	calls   []Call
	maxSize int
}

// NewHistory creates a history keeping at most maxSize calls.
func NewHistory(maxSize int) *History {
	return &History{calls: make([]Call, 0, maxSize), maxSize: maxSize}
}

// Add appends a call, evicting the oldest at capacity.
func (h *History) Add(c Call) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.calls) >= h.maxSize {
		h.calls = h.calls[1:]
	}
	h.calls = append(h.calls, c)
}

// Calls returns the recorded calls, newest first.
func (h *History) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	for i, c := range h.calls {
		out[len(h.calls)-1-i] = c
	}
	return out
}
