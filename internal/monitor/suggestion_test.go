package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestionWriteAndReplace(t *testing.T) {
	dir := t.TempDir()
	w := NewSuggestionWriter(dir, true)

	path, err := w.Write("/home/dev/acme", "add unit tests")
	require.NoError(t, err)
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "add unit tests", string(data))

	// Latest suggestion wins, same path.
	path2, err := w.Write("/home/dev/acme", "handle the error return")
	require.NoError(t, err)
	assert.Equal(t, path, path2)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "handle the error return", string(data))
}

func TestSuggestionWriteExactBytes(t *testing.T) {
	dir := t.TempDir()
	w := NewSuggestionWriter(dir, true)

	// The file must hold the suggestion verbatim, no added trailing
	// newline: the hook prepends it to the user's prompt as-is.
	path, err := w.Write("/home/dev/acme", "add unit tests")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("add unit tests"), data)
}

func TestSuggestionPathUsesProjectKey(t *testing.T) {
	w := NewSuggestionWriter("/state", true)
	path := w.Path("/home/dev/acme")
	assert.Equal(t, filepath.Join("/state", "suggestions", "-home-dev-acme.md"), path)
}

func TestSuggestionWriterDisabled(t *testing.T) {
	dir := t.TempDir()
	w := NewSuggestionWriter(dir, false)

	path, err := w.Write("/home/dev/acme", "add unit tests")
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "disabled writer created files")
}

func TestSuggestionWriterSkipsEmptyText(t *testing.T) {
	dir := t.TempDir()
	w := NewSuggestionWriter(dir, true)

	path, err := w.Write("/home/dev/acme", "")
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = os.Stat(filepath.Join(dir, "suggestions"))
	assert.True(t, os.IsNotExist(err), "empty suggestion created the directory")
}

func TestSuggestionWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	w := NewSuggestionWriter(dir, true)

	_, err := w.Write("/home/dev/acme", "add unit tests")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "suggestions"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "-home-dev-acme.md", entries[0].Name())
}
