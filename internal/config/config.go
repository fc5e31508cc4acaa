// Package config loads shepherd's rule and project configuration from the
// state directory (default ~/.shepherd) and holds the runtime options
// injected into the monitoring engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSeed is used when a settings file omits the persona seed.
const DefaultSeed = "You are a software engineering supervisor monitoring a developer conversation."

// Rule is an externally supplied development rule. The engine treats it as
// opaque beyond its ID and description.
type Rule struct {
	// ID is the configured rule name, e.g. "test-coverage"
	ID string
	// Description is the human-readable violation description
	Description string
}

// Settings holds the persona seed and the ordered rule set for one watcher.
type Settings struct {
	// Seed is the supervisor persona text prepended to every analysis request
	Seed string
	// Rules are the configured rules in file order
	Rules []Rule
}

// ConfigError indicates an invalid or missing configuration. It is fatal for
// the project it belongs to and must not affect sibling projects.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DefaultStateDir returns the default shepherd state directory (~/.shepherd).
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shepherd"
	}
	return filepath.Join(home, ".shepherd")
}

// settingsFile is the on-disk shape of settings.yaml / settings.json.
// Rules is kept as a yaml.Node so the configured rule order survives
// decoding (a plain map would shuffle it).
type settingsFile struct {
	Seed  string    `yaml:"seed" json:"seed"`
	Rules yaml.Node `yaml:"rules" json:"rules"`
}

// LoadSettings reads the rule configuration from the state directory. Both
// settings.yaml and settings.json are accepted (JSON is a YAML subset);
// YAML wins when both exist.
func LoadSettings(stateDir string) (*Settings, error) {
	candidates := []string{
		filepath.Join(stateDir, "settings.yaml"),
		filepath.Join(stateDir, "settings.json"),
	}

	for _, path := range candidates {
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
		settings, err := parseSettings(raw)
		if err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
		return settings, nil
	}

	return nil, &ConfigError{
		Path: filepath.Join(stateDir, "settings.yaml"),
		Err:  fmt.Errorf("no settings file found (searched %v): %w", candidates, os.ErrNotExist),
	}
}

func parseSettings(raw []byte) (*Settings, error) {
	var file settingsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	settings := &Settings{Seed: file.Seed}
	if settings.Seed == "" {
		settings.Seed = DefaultSeed
	}

	if file.Rules.Kind == 0 {
		return nil, fmt.Errorf("settings missing required \"rules\" section")
	}
	if file.Rules.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("\"rules\" must be a mapping of rule name to description")
	}

	// A mapping node's Content alternates key, value in document order.
	seen := make(map[string]bool)
	for i := 0; i+1 < len(file.Rules.Content); i += 2 {
		key := file.Rules.Content[i]
		value := file.Rules.Content[i+1]
		if key.Value == "" {
			return nil, fmt.Errorf("rule %d has an empty name", i/2+1)
		}
		if seen[key.Value] {
			return nil, fmt.Errorf("duplicate rule %q", key.Value)
		}
		if value.Kind != yaml.ScalarNode || value.Value == "" {
			return nil, fmt.Errorf("rule %q has an empty description", key.Value)
		}
		seen[key.Value] = true
		settings.Rules = append(settings.Rules, Rule{
			ID:          key.Value,
			Description: value.Value,
		})
	}

	if len(settings.Rules) == 0 {
		return nil, fmt.Errorf("settings contain no rules")
	}
	return settings, nil
}

// projectsFile is the on-disk shape of projects.json.
type projectsFile struct {
	Projects []string `yaml:"projects" json:"projects"`
}

// LoadProjects reads the multi-project list from projects.json in the state
// directory. Paths that do not exist or are not directories are skipped with
// a warning; an empty result is a ConfigError.
func LoadProjects(stateDir string) ([]string, error) {
	path := filepath.Join(stateDir, "projects.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var file projectsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("invalid projects file: %w", err)}
	}

	var valid []string
	for _, p := range file.Projects {
		abs, err := filepath.Abs(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping project %q: %v\n", p, err)
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			fmt.Fprintf(os.Stderr, "warning: project path is not a directory: %s\n", abs)
			continue
		}
		valid = append(valid, abs)
	}

	if len(valid) == 0 {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("no valid projects configured")}
	}
	return valid, nil
}

// Options are the runtime parameters injected into the engine. They are
// parsed by the CLI and passed in as plain values.
type Options struct {
	// Verbose enables debug output
	Verbose bool
	// HeartbeatEvery emits a heartbeat every N processed messages (0 disables)
	HeartbeatEvery int
	// ContextSize is the context window capacity K
	ContextSize int
	// FeedbackEnabled turns on suggestion file handoff
	FeedbackEnabled bool
	// PollInterval is how often each supervisor polls its log
	PollInterval time.Duration
	// StateDir is the shepherd state directory
	StateDir string
}

// DefaultOptions returns the default runtime parameters.
func DefaultOptions() Options {
	return Options{
		HeartbeatEvery: 10,
		ContextSize:    10,
		PollInterval:   500 * time.Millisecond,
		StateDir:       DefaultStateDir(),
	}
}

// ExampleSettings is written by `shepherd init` when no configuration exists.
const ExampleSettings = `{
  "seed": "You are an experienced software engineering supervisor monitoring a junior developer's AI coding assistant. You have high standards for code quality, testing practices, and professional development habits. Be vigilant about catching issues early before they become problems.",
  "rules": {
    "test-coverage": "Every code change must be covered with comprehensive unit tests before being considered complete. Watch for commits or 'done' declarations without corresponding tests.",
    "test-failures": "Failing unit tests are never acceptable and must be fixed immediately. Watch for developers ignoring, skipping, or postponing test fixes.",
    "code-review": "All code should be properly reviewed and meet quality standards. Watch for rushed implementations or skipped review processes.",
    "documentation": "Complex functions and API changes require proper documentation. Watch for missing or inadequate documentation.",
    "error-handling": "Proper error handling and edge case consideration is mandatory. Watch for naive implementations that don't handle failures gracefully."
  }
}
`
