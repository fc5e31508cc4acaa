package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/shepherd/internal/config"
	"github.com/steveyegge/shepherd/internal/events"
	"github.com/steveyegge/shepherd/internal/storage/sqlite"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent supervision events",
	Long: `Display recent events recorded by 'shepherd watch' and optionally follow
live updates.

Shows alerts, heartbeats, log rotations, and errors across all watched
projects, or a single project with --project.`,
	Run: func(cmd *cobra.Command, args []string) {
		follow, _ := cmd.Flags().GetBool("follow")
		project, _ := cmd.Flags().GetString("project")
		limit, _ := cmd.Flags().GetInt("limit")
		stateDir, _ := cmd.Flags().GetString("state-dir")

		store, err := sqlite.Open(filepath.Join(stateDir, "events.db"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening event database: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		if follow {
			runTailFollow(ctx, store, project, limit)
		} else {
			runTailOnce(ctx, store, project, limit)
		}
	},
}

func init() {
	tailCmd.Flags().BoolP("follow", "f", false, "Follow mode - watch for live updates (Ctrl+C to stop)")
	tailCmd.Flags().StringP("project", "p", "", "Filter events by project path")
	tailCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show initially")
	tailCmd.Flags().String("state-dir", config.DefaultStateDir(), "Shepherd state directory")
	rootCmd.AddCommand(tailCmd)
}

// runTailOnce shows recent events and exits.
func runTailOnce(ctx context.Context, store *sqlite.EventStore, project string, limit int) {
	recent, err := store.Recent(ctx, project, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching events: %v\n", err)
		os.Exit(1)
	}

	if len(recent) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No events found\n\n", yellow("✨"))
		return
	}

	for _, event := range recent {
		displayEvent(event)
	}
}

// runTailFollow shows recent events and keeps polling for new ones.
func runTailFollow(ctx context.Context, store *sqlite.EventStore, project string, limit int) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("\n%s Following live updates (Ctrl+C to stop)...\n\n", cyan("👁"))

	recent, err := store.Recent(ctx, project, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching events: %v\n", err)
		os.Exit(1)
	}
	for _, event := range recent {
		displayEvent(event)
	}

	// Polling is inclusive at the boundary timestamp, with printed IDs
	// tracked so events sharing a timestamp are neither lost nor repeated.
	var lastTimestamp time.Time
	printedAtLast := map[string]bool{}
	markPrinted := func(event *events.Event) {
		if event.Timestamp.After(lastTimestamp) {
			lastTimestamp = event.Timestamp
			printedAtLast = map[string]bool{event.ID: true}
			return
		}
		printedAtLast[event.ID] = true
	}
	for _, event := range recent {
		markPrinted(event)
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nStopped following")
			return
		case <-ticker.C:
			newEvents, err := store.Since(ctx, project, lastTimestamp)
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nError fetching new events: %v\n", err)
				continue
			}
			for _, event := range newEvents {
				if printedAtLast[event.ID] {
					continue
				}
				displayEvent(event)
				markPrinted(event)
			}
		}
	}
}
