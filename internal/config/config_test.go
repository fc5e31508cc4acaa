package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSettingsJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.json", `{
		"seed": "supervise carefully",
		"rules": {
			"test-coverage": "changes need tests",
			"error-handling": "handle failures",
			"documentation": "document APIs"
		}
	}`)

	settings, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "supervise carefully", settings.Seed)
	require.Len(t, settings.Rules, 3)

	// Rule order must match file order.
	assert.Equal(t, "test-coverage", settings.Rules[0].ID)
	assert.Equal(t, "error-handling", settings.Rules[1].ID)
	assert.Equal(t, "documentation", settings.Rules[2].ID)
	assert.Equal(t, "changes need tests", settings.Rules[0].Description)
}

func TestLoadSettingsYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.yaml", `
seed: watch the assistant
rules:
  code-review: review everything
  test-failures: never ignore failing tests
`)

	settings, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "watch the assistant", settings.Seed)
	require.Len(t, settings.Rules, 2)
	assert.Equal(t, "code-review", settings.Rules[0].ID)
	assert.Equal(t, "test-failures", settings.Rules[1].ID)
}

func TestLoadSettingsDefaultSeed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.json", `{"rules": {"r1": "desc"}}`)

	settings, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultSeed, settings.Seed)
}

func TestLoadSettingsErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing rules", content: `{"seed": "s"}`},
		{name: "empty rules", content: `{"rules": {}}`},
		{name: "rules not a mapping", content: `{"rules": ["a", "b"]}`},
		{name: "empty description", content: `{"rules": {"r1": ""}}`},
		{name: "invalid syntax", content: `{"rules": {`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "settings.json", tt.content)

			_, err := LoadSettings(dir)
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
		})
	}
}

func TestLoadSettingsNotFound(t *testing.T) {
	_, err := LoadSettings(t.TempDir())
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestLoadSettingsDuplicateRule(t *testing.T) {
	dir := t.TempDir()
	// YAML allows duplicate keys at the node level; the loader must not.
	writeFile(t, dir, "settings.yaml", "rules:\n  r1: first\n  r1: second\n")

	_, err := LoadSettings(dir)
	require.Error(t, err)
}

func TestLoadProjects(t *testing.T) {
	dir := t.TempDir()
	proj1 := filepath.Join(dir, "proj1")
	proj2 := filepath.Join(dir, "proj2")
	require.NoError(t, os.MkdirAll(proj1, 0755))
	require.NoError(t, os.MkdirAll(proj2, 0755))

	writeFile(t, dir, "projects.json",
		`{"projects": ["`+proj1+`", "`+proj2+`", "/nonexistent/path"]}`)

	projects, err := LoadProjects(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{proj1, proj2}, projects)
}

func TestLoadProjectsAllInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "projects.json", `{"projects": ["/nope", "/also/nope"]}`)

	_, err := LoadProjects(dir)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestLoadProjectsMissingFile(t *testing.T) {
	_, err := LoadProjects(t.TempDir())
	require.Error(t, err)
}

func TestExampleSettingsParses(t *testing.T) {
	settings, err := parseSettings([]byte(ExampleSettings))
	require.NoError(t, err)
	assert.Len(t, settings.Rules, 5)
	assert.Equal(t, "test-coverage", settings.Rules[0].ID)
}
