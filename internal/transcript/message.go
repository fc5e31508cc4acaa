// Package transcript reads an AI coding assistant's conversation logs
// incrementally. Logs are append-only .jsonl files owned by the host tool;
// this package only needs read access and a byte cursor.
package transcript

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message written by the human developer
	RoleUser Role = "user"
	// RoleAssistant is a message written by the coding assistant
	RoleAssistant Role = "assistant"
)

// Message is one complete conversation entry. Messages are immutable once
// created; indices increase strictly per project.
type Message struct {
	// Index is the per-project monotonic message index
	Index int64
	// Role is who authored the message
	Role Role
	// Content is the extracted message text
	Content string
	// Timestamp is when the host tool recorded the entry
	Timestamp time.Time
}

// logEntry is the host tool's on-disk record shape. User entries carry
// message.content as a string; assistant entries carry an array of content
// blocks with type "text".
type logEntry struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	Content string `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// parseEntry decodes one log line into (role, content, timestamp). It
// returns ok=false for malformed lines and for partial/streaming entries
// that carry no usable text yet.
func parseEntry(line []byte) (Role, string, time.Time, bool) {
	var entry logEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return "", "", time.Time{}, false
	}

	var role Role
	switch entry.Type {
	case "user":
		role = RoleUser
	case "assistant":
		role = RoleAssistant
	default:
		return "", "", time.Time{}, false
	}

	content := extractContent(&entry)
	if strings.TrimSpace(content) == "" {
		return "", "", time.Time{}, false
	}

	ts, err := time.Parse(time.RFC3339, entry.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	return role, content, ts, true
}

// extractContent pulls the text out of the nested message structure,
// falling back to the top-level content field for older log formats.
func extractContent(entry *logEntry) string {
	raw := entry.Message.Content
	if len(raw) > 0 {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}

		var blocks []contentBlock
		if err := json.Unmarshal(raw, &blocks); err == nil {
			var parts []string
			for _, b := range blocks {
				if b.Type == "text" && b.Text != "" {
					parts = append(parts, b.Text)
				}
			}
			return strings.Join(parts, " ")
		}
	}
	return entry.Content
}
