package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoLog indicates the project has no conversation log yet. The supervisor
// treats this as "waiting for logs", not a failure.
var ErrNoLog = errors.New("no conversation log found")

// ErrNoLogRoot indicates the host tool's log root directory is missing
// entirely. Startup cannot proceed for this project.
var ErrNoLogRoot = errors.New("conversation log root not found")

// DefaultLogRoot returns the host tool's conversation log directory
// (~/.claude/projects).
func DefaultLogRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "projects")
}

// ProjectKey converts an absolute project path to the host tool's log
// directory name: path separators become dashes.
func ProjectKey(projectPath string) string {
	return strings.ReplaceAll(projectPath, string(filepath.Separator), "-")
}

// Batch is the result of one poll: zero or more new complete messages in
// index order, plus a rotation marker when the cursor was reset.
type Batch struct {
	// Messages are the new complete messages since the last poll
	Messages []Message
	// Rotated is true when the log rotated or truncated during this poll
	Rotated bool
	// RotationNote describes the rotation for the event stream
	RotationNote string
}

// Source is an incremental reader over one project's conversation log. It
// tracks the newest .jsonl file in the project's log directory and a byte
// cursor within it. Not safe for concurrent use; each supervisor owns
// exactly one Source.
type Source struct {
	projectPath string
	logRoot     string

	logPath   string
	offset    int64
	nextIndex int64
}

// Open creates a Source for a project and positions the cursor at the tail
// of the newest log so historical messages are never replayed. Returns
// ErrNoLog when the project has no log yet and ErrNoLogRoot when the host
// tool's log directory is missing.
func Open(projectPath, logRoot string) (*Source, error) {
	if logRoot == "" {
		logRoot = DefaultLogRoot()
	}
	if _, err := os.Stat(logRoot); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoLogRoot, logRoot)
	}

	s := &Source{
		projectPath: projectPath,
		logRoot:     logRoot,
		nextIndex:   1,
	}

	path, err := s.findLatestLog()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat log %s: %w", path, err)
	}

	s.logPath = path
	s.offset = info.Size()
	return s, nil
}

// LogPath returns the log file currently being followed.
func (s *Source) LogPath() string {
	return s.logPath
}

// findLatestLog returns the most recently modified .jsonl file in the
// project's log directory.
func (s *Source) findLatestLog() (string, error) {
	dir := filepath.Join(s.logRoot, ProjectKey(s.projectPath))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoLog, dir)
	}

	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().UnixNano() > newestMod {
			newest = filepath.Join(dir, entry.Name())
			newestMod = info.ModTime().UnixNano()
		}
	}

	if newest == "" {
		return "", fmt.Errorf("%w: no .jsonl files in %s", ErrNoLog, dir)
	}
	return newest, nil
}

// Poll reads any complete lines appended since the last poll. It detects
// two anomalies without failing: a newer log file superseding the current
// one, and truncation of the current file. In both cases the cursor resets
// to the new tail and Batch.Rotated is set.
//
// The returned batch preserves log order; indices are assigned here and are
// strictly increasing for the life of the Source.
func (s *Source) Poll(ctx context.Context) (Batch, error) {
	var batch Batch

	// A newer session log supersedes the current one. Start at its tail
	// so messages from before the switch are not replayed.
	if newest, err := s.findLatestLog(); err == nil && newest != s.logPath {
		info, statErr := os.Stat(newest)
		if statErr != nil {
			return batch, fmt.Errorf("failed to stat log %s: %w", newest, statErr)
		}
		batch.Rotated = true
		batch.RotationNote = fmt.Sprintf("switched to new log %s", filepath.Base(newest))
		s.logPath = newest
		s.offset = info.Size()
		return batch, nil
	}

	info, err := os.Stat(s.logPath)
	if err != nil {
		return batch, fmt.Errorf("failed to stat log %s: %w", s.logPath, err)
	}

	if info.Size() < s.offset {
		// The file shrank under the cursor: rewritten in place. Reset to
		// the current tail and keep going.
		batch.Rotated = true
		batch.RotationNote = fmt.Sprintf("log truncated (size %d < cursor %d), cursor reset",
			info.Size(), s.offset)
		s.offset = info.Size()
		return batch, nil
	}

	if info.Size() == s.offset {
		return batch, nil
	}

	f, err := os.Open(s.logPath)
	if err != nil {
		return batch, fmt.Errorf("failed to open log %s: %w", s.logPath, err)
	}
	defer f.Close()

	if _, err := f.Seek(s.offset, 0); err != nil {
		return batch, fmt.Errorf("failed to seek log %s: %w", s.logPath, err)
	}

	buf := make([]byte, info.Size()-s.offset)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return batch, fmt.Errorf("failed to read log %s: %w", s.logPath, err)
	}
	buf = buf[:n]

	// Only consume complete lines; a partially written trailing line stays
	// beyond the cursor and is re-read on the next poll.
	for len(buf) > 0 {
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}
		nl := bytes.IndexByte(buf, '\n')
		if nl < 0 {
			break
		}
		line := buf[:nl]
		buf = buf[nl+1:]
		s.offset += int64(nl + 1)

		role, content, ts, ok := parseEntry(line)
		if !ok {
			continue
		}
		batch.Messages = append(batch.Messages, Message{
			Index:     s.nextIndex,
			Role:      role,
			Content:   content,
			Timestamp: ts,
		})
		s.nextIndex++
	}

	return batch, nil
}
