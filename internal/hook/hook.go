// Package hook implements the prompt-submit hook: it reads the host tool's
// hook payload from stdin and, when the watcher left a suggestion for the
// current project, prints it so the host prepends it to the user's prompt.
//
// The hook must never break the user's workflow: every failure path is a
// silent no-op.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/steveyegge/shepherd/internal/config"
	"github.com/steveyegge/shepherd/internal/monitor"
)

// payload is the subset of the hook input we care about.
type payload struct {
	Cwd string `json:"cwd"`
}

// Run reads the hook payload from in, emits any pending suggestion for the
// payload's working directory to out, and consumes the suggestion file so
// it fires once. Always returns nil; failures are swallowed.
func Run(in io.Reader, out io.Writer, stateDir string) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	if p.Cwd == "" {
		return nil
	}

	if stateDir == "" {
		stateDir = config.DefaultStateDir()
	}
	path := monitor.NewSuggestionWriter(stateDir, true).Path(p.Cwd)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	suggestion := strings.TrimSpace(string(data))
	if suggestion != "" {
		fmt.Fprintf(out, "%s\n", suggestion)
	}

	// Consume the file so the suggestion fires exactly once.
	_ = os.Remove(path)
	return nil
}
