// Package monitor implements the supervision engine: the per-project
// context window, violation ledger, supervisor state machine, and the
// orchestrator that runs supervisors concurrently.
package monitor

import (
	"github.com/steveyegge/shepherd/internal/transcript"
)

// ContextWindow is a fixed-capacity sliding buffer of the most recent
// conversation messages for one project. Capacity is fixed at construction;
// eviction is FIFO by index. Owned and mutated only by the supervisor's
// goroutine.
type ContextWindow struct {
	capacity int
	messages []transcript.Message
}

// NewContextWindow creates a window holding at most capacity messages.
func NewContextWindow(capacity int) *ContextWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return &ContextWindow{
		capacity: capacity,
		messages: make([]transcript.Message, 0, capacity),
	}
}

// Append adds a message to the tail, evicting from the head once the
// window exceeds capacity.
func (w *ContextWindow) Append(msg transcript.Message) {
	w.messages = append(w.messages, msg)
	if len(w.messages) > w.capacity {
		over := len(w.messages) - w.capacity
		copy(w.messages, w.messages[over:])
		w.messages = w.messages[:w.capacity]
	}
}

// Snapshot returns an immutable ordered copy, most recent last. The copy is
// what gets handed to an analysis call.
func (w *ContextWindow) Snapshot() []transcript.Message {
	out := make([]transcript.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Len returns the number of buffered messages.
func (w *ContextWindow) Len() int {
	return len(w.messages)
}

// Capacity returns the fixed window capacity K.
func (w *ContextWindow) Capacity() int {
	return w.capacity
}
