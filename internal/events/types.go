// Package events defines the monitoring event stream emitted by project
// supervisors and consumed by the display layer and the event store.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of monitoring event.
type EventType string

const (
	// EventTypeViolationAlert indicates a rule violation was detected
	EventTypeViolationAlert EventType = "violation_alert"
	// EventTypeHeartbeat indicates a periodic liveness report for a project
	EventTypeHeartbeat EventType = "heartbeat"
	// EventTypeLogRotation indicates the conversation log rotated or truncated
	EventTypeLogRotation EventType = "log_rotation"
	// EventTypeMonitorError indicates a recoverable monitoring failure
	EventTypeMonitorError EventType = "monitor_error"
	// EventTypeProjectStopped indicates a supervisor reached its terminal state
	EventTypeProjectStopped EventType = "project_stopped"
	// EventTypeSuggestionWritten indicates a suggestion file was handed off
	EventTypeSuggestionWritten EventType = "suggestion_written"
	// EventTypeWatchStarted indicates a supervisor began monitoring a project
	EventTypeWatchStarted EventType = "watch_started"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
)

// Event is a single record on the monitoring stream. Events from different
// projects interleave without ordering guarantees; events for one project
// arrive in message-index order.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event was emitted
	Timestamp time.Time `json:"timestamp"`
	// ProjectID is the project path this event belongs to
	ProjectID string `json:"project_id"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data
	Data map[string]interface{} `json:"data,omitempty"`
}

// AlertData contains structured data for violation alert events.
type AlertData struct {
	// RuleID is the configured rule that was violated
	RuleID string `json:"rule_id"`
	// Reasoning is the analyst's explanation of the violation
	Reasoning string `json:"reasoning"`
	// Suggestion is optional corrective advice for the assistant
	Suggestion string `json:"suggestion,omitempty"`
	// StopRequest marks the built-in ignored-stop-request check
	StopRequest bool `json:"stop_request,omitempty"`
	// MessageIndex is the conversation index the violation was seen at
	MessageIndex int64 `json:"message_index"`
}

// HeartbeatData contains structured data for heartbeat events.
type HeartbeatData struct {
	// MessagesProcessed is the cumulative message count for the project
	MessagesProcessed int64 `json:"messages_processed"`
	// AlertsRaised is the alert count since the previous heartbeat
	AlertsRaised int `json:"alerts_raised"`
}

// setData marshals a typed payload into the event's Data map.
func (e *Event) setData(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("failed to unmarshal event data: %w", err)
	}
	e.Data = m
	return nil
}

// GetAlertData extracts the typed alert payload from a violation alert event.
func (e *Event) GetAlertData() (*AlertData, error) {
	if e.Type != EventTypeViolationAlert {
		return nil, fmt.Errorf("event type is %s, not %s", e.Type, EventTypeViolationAlert)
	}
	return decodeData[AlertData](e)
}

// GetHeartbeatData extracts the typed heartbeat payload from a heartbeat event.
func (e *Event) GetHeartbeatData() (*HeartbeatData, error) {
	if e.Type != EventTypeHeartbeat {
		return nil, fmt.Errorf("event type is %s, not %s", e.Type, EventTypeHeartbeat)
	}
	return decodeData[HeartbeatData](e)
}

func decodeData[T any](e *Event) (*T, error) {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s data: %w", e.Type, err)
	}
	return &out, nil
}

// Filter selects events when reading them back from the event store.
type Filter struct {
	// ProjectID filters by project (empty = all projects)
	ProjectID string
	// Type filters by event type (empty = all types)
	Type EventType
	// AfterTime returns only events emitted after this time
	AfterTime time.Time
	// Limit caps the number of returned events (0 = no limit)
	Limit int
}
