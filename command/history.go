package command

import (
	"sync"
	"time"
)

// DefaultHistoryLimit caps the number of retained records per run.
const DefaultHistoryLimit = 256

// Record is one applied command, as seen after execution.
type Record struct {
	CommandID  string    `json:"command_id"`
	Kind       Kind      `json:"kind"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

// History is a bounded, append-only log of executed commands. When the limit
// is reached the oldest records are evicted. Safe for concurrent use.
type History struct {
	mu      sync.Mutex
	limit   int
	records []Record
}

// NewHistory creates a history with the given capacity. A non-positive limit
// falls back to DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Append records the outcome of an executed command.
func (h *History) Append(cmd Command, execErr error) {
	rec := Record{
		CommandID:  cmd.ID(),
		Kind:       cmd.Kind(),
		Status:     cmd.Status(),
		ExecutedAt: time.Now(),
	}
	if execErr != nil {
		rec.Error = execErr.Error()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	if len(h.records) > h.limit {
		h.records = h.records[len(h.records)-h.limit:]
	}
}

// Records returns a copy of the retained records, oldest first.
func (h *History) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// Len reports the number of retained records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
