package monitor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/steveyegge/shepherd/internal/transcript"
)

// SuggestionWriter hands corrective suggestions to the host tool's hook
// through per-project files under <stateDir>/suggestions. The hook is the
// sole consumer and deletes a file after reading it (at-most-once
// delivery). When the feedback feature is disabled the writer is inert.
type SuggestionWriter struct {
	dir     string
	enabled bool
}

// NewSuggestionWriter creates a writer rooted at the shepherd state
// directory.
func NewSuggestionWriter(stateDir string, enabled bool) *SuggestionWriter {
	return &SuggestionWriter{
		dir:     filepath.Join(stateDir, "suggestions"),
		enabled: enabled,
	}
}

// Enabled reports whether the feedback feature is on.
func (w *SuggestionWriter) Enabled() bool {
	return w.enabled
}

// Path returns the deterministic suggestion file path for a project.
func (w *SuggestionWriter) Path(projectID string) string {
	return filepath.Join(w.dir, transcript.ProjectKey(projectID)+".md")
}

// Write atomically replaces the project's pending suggestion with text
// (write-temp-then-rename). Any unconsumed prior suggestion is overwritten:
// latest wins, so suggestions never queue up. Returns the written path, or
// ("", nil) when the feature is disabled.
func (w *SuggestionWriter) Write(projectID, text string) (string, error) {
	if !w.enabled || text == "" {
		return "", nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create suggestions directory: %w", err)
	}

	path := w.Path(projectID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to write suggestion: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to publish suggestion: %w", err)
	}
	return path, nil
}
