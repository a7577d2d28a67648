package call

import (
	"fmt"
	"sync"
	"time"
)

// DiagEntry is one diagnostic line with its capture time.
type DiagEntry struct {
	At  time.Time
	Msg string
}

// DiagSink is a bounded in-memory diagnostic log. The session writes its
// transition history here instead of a global accumulator; when full, the
// oldest entries are dropped.
type DiagSink struct {
	mu      sync.Mutex
	max     int
	entries []DiagEntry
	clock   Clock
}

// NewDiagSink creates a sink keeping at most max entries.
func NewDiagSink(max int, clock Clock) *DiagSink {
	if max <= 0 {
		max = 64
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &DiagSink{max: max, clock: clock}
}

// Add records a formatted entry. Nil sinks are a no-op so callers never
// need to guard.
func (d *DiagSink) Add(format string, args ...any) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = append(d.entries, DiagEntry{At: d.clock.Now(), Msg: fmt.Sprintf(format, args...)})
	if len(d.entries) > d.max {
		d.entries = d.entries[len(d.entries)-d.max:]
	}
}

// Entries returns a copy of the retained entries, oldest first.
func (d *DiagSink) Entries() []DiagEntry {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]DiagEntry, len(d.entries))
	copy(out, d.entries)
	return out
}
