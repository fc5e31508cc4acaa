package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/steveyegge/shepherd/internal/events"
)

// displayEvent formats and prints a single event with color.
func displayEvent(event *events.Event) {
	timestamp := event.Timestamp.Format("15:04:05")

	switch event.Type {
	case events.EventTypeViolationAlert:
		displayAlert(event)
	case events.EventTypeHeartbeat:
		gray := color.New(color.FgHiBlack)
		gray.Printf("[%s] %s %s\n", timestamp, event.ProjectID, event.Message)
	case events.EventTypeMonitorError:
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("[%s] %s %s: %s\n", timestamp, red("✗"), event.ProjectID, event.Message)
	case events.EventTypeProjectStopped:
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("[%s] %s %s\n", timestamp, yellow(event.ProjectID), event.Message)
	case events.EventTypeWatchStarted:
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("[%s] %s %s\n", timestamp, green("👁"), event.Message)
	default:
		fmt.Printf("[%s] %s %s\n", timestamp, event.ProjectID, event.Message)
	}
}

// displayAlert renders a violation alert in the ALERT/REASON/SUGGESTION
// layout so alerts stand out from the heartbeat noise.
func displayAlert(event *events.Event) {
	data, err := event.GetAlertData()
	if err != nil {
		fmt.Printf("🚨 %s: %s\n", event.ProjectID, event.Message)
		return
	}

	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	fmt.Println()
	red.Printf("🚨 ALERT: %s (%s)\n", data.RuleID, event.ProjectID)
	if data.Reasoning != "" {
		yellow.Printf("REASON: %s\n", data.Reasoning)
	}
	if data.Suggestion != "" {
		green.Printf("SUGGESTION: %s\n", data.Suggestion)
	}
	if data.StopRequest {
		red.Println("The user asked the assistant to stop and it kept going.")
	}
	fmt.Println()
}
