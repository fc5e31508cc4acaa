package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func newEvent(typ EventType, projectID string, severity EventSeverity, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Timestamp: time.Now(),
		ProjectID: projectID,
		Severity:  severity,
		Message:   message,
	}
}

// NewAlertEvent creates an Event for a detected rule violation.
func NewAlertEvent(projectID string, data AlertData) (*Event, error) {
	event := newEvent(EventTypeViolationAlert, projectID, SeverityWarning,
		fmt.Sprintf("rule %q violated", data.RuleID))
	if err := event.setData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewHeartbeatEvent creates a periodic liveness Event for a project.
func NewHeartbeatEvent(projectID string, data HeartbeatData) (*Event, error) {
	msg := fmt.Sprintf("%d messages processed", data.MessagesProcessed)
	if data.AlertsRaised > 0 {
		msg = fmt.Sprintf("%d messages processed, %d alerts raised",
			data.MessagesProcessed, data.AlertsRaised)
	}
	event := newEvent(EventTypeHeartbeat, projectID, SeverityInfo, msg)
	if err := event.setData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewLogRotationEvent creates an Event noting the conversation log rotated.
// Rotation is not an error; the supervisor keeps running.
func NewLogRotationEvent(projectID, message string) *Event {
	return newEvent(EventTypeLogRotation, projectID, SeverityInfo, message)
}

// NewMonitorErrorEvent creates an Event for a recoverable per-project failure.
func NewMonitorErrorEvent(projectID, message string) *Event {
	return newEvent(EventTypeMonitorError, projectID, SeverityError, message)
}

// NewProjectStoppedEvent creates an Event marking a supervisor's terminal state.
func NewProjectStoppedEvent(projectID, reason string) *Event {
	return newEvent(EventTypeProjectStopped, projectID, SeverityWarning, reason)
}

// NewSuggestionWrittenEvent creates an Event noting a suggestion handoff.
func NewSuggestionWrittenEvent(projectID, path string) *Event {
	return newEvent(EventTypeSuggestionWritten, projectID, SeverityInfo,
		fmt.Sprintf("suggestion written to %s", path))
}

// NewWatchStartedEvent creates an Event marking the start of supervision.
func NewWatchStartedEvent(projectID, logPath string) *Event {
	return newEvent(EventTypeWatchStarted, projectID, SeverityInfo,
		fmt.Sprintf("watching %s", logPath))
}
