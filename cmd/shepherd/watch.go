package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/shepherd/internal/ai"
	"github.com/steveyegge/shepherd/internal/config"
	"github.com/steveyegge/shepherd/internal/monitor"
	"github.com/steveyegge/shepherd/internal/storage/sqlite"
)

var watchOpts = config.DefaultOptions()

var watchCmd = &cobra.Command{
	Use:   "watch [project-path]",
	Short: "Watch a project's assistant session for rule violations",
	Long: `Start supervising one or more projects. With a project path, only that
project is watched. Without one, every entry in projects.json under the
state directory is watched concurrently.

Alerts print to the terminal and are recorded in the event database so
'shepherd tail' can replay them later. With --feedback, suggestions are
also handed to the assistant through the prompt-submit hook.

Requires ANTHROPIC_API_KEY to be set.

Example:
  shepherd watch ~/myproject
  shepherd watch ~/myproject --feedback -c 20
  shepherd watch                     # all configured projects`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runWatch(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().BoolVarP(&watchOpts.Verbose, "verbose", "v", false, "Show analysis activity")
	watchCmd.Flags().IntVarP(&watchOpts.HeartbeatEvery, "heartbeat", "b", watchOpts.HeartbeatEvery, "Heartbeat every N messages (0 disables)")
	watchCmd.Flags().IntVarP(&watchOpts.ContextSize, "context-size", "c", watchOpts.ContextSize, "Number of recent messages sent to analysis")
	watchCmd.Flags().BoolVar(&watchOpts.FeedbackEnabled, "feedback", false, "Write suggestions for the prompt-submit hook")
	watchCmd.Flags().DurationVar(&watchOpts.PollInterval, "poll-interval", watchOpts.PollInterval, "How often to poll the conversation log")
	watchCmd.Flags().StringVar(&watchOpts.StateDir, "state-dir", watchOpts.StateDir, "Shepherd state directory")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(args []string) error {
	settings, err := config.LoadSettings(watchOpts.StateDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no configuration found, run 'shepherd init' first")
		}
		return err
	}

	var projects []string
	if len(args) == 1 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid project path: %w", err)
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return fmt.Errorf("project path is not a directory: %s", abs)
		}
		projects = []string{abs}
	} else {
		projects, err = config.LoadProjects(watchOpts.StateDir)
		if err != nil {
			return err
		}
	}

	analyst, err := ai.NewAnthropicAnalyst(&ai.Config{
		Model:   ai.GetModel(),
		Retry:   ai.DefaultRetryConfig(),
		Verbose: watchOpts.Verbose,
	})
	if err != nil {
		return err
	}

	// The event store is best effort; watching works without history.
	var sink monitor.EventSink
	store, err := sqlite.Open(filepath.Join(watchOpts.StateDir, "events.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: event history disabled: %v\n", err)
	} else {
		defer store.Close()
		sink = store

		retention, err := config.EventRetentionFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		} else if pruned, err := store.Prune(context.Background(), retention); err != nil {
			fmt.Fprintf(os.Stderr, "warning: event pruning failed: %v\n", err)
		} else if pruned > 0 && watchOpts.Verbose {
			fmt.Printf("Pruned %d old event(s)\n", pruned)
		}
	}

	writer := monitor.NewSuggestionWriter(watchOpts.StateDir, watchOpts.FeedbackEnabled)
	orch, err := monitor.NewOrchestrator(projects, monitor.SupervisorConfig{
		Settings:       settings,
		Analyst:        analyst,
		Suggestions:    writer,
		ContextSize:    watchOpts.ContextSize,
		HeartbeatEvery: watchOpts.HeartbeatEvery,
		PollInterval:   watchOpts.PollInterval,
		Verbose:        watchOpts.Verbose,
	}, sink)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s Watching %d project(s) with %d rule(s), context window %d (Ctrl+C to stop)\n",
		cyan("🐑"), len(projects), len(settings.Rules), watchOpts.ContextSize)
	if watchOpts.FeedbackEnabled {
		fmt.Printf("   Feedback enabled: suggestions land in %s\n",
			filepath.Join(watchOpts.StateDir, "suggestions"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range orch.Events() {
			displayEvent(event)
		}
	}()

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
		cancel()
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			fmt.Fprintln(os.Stderr, "warning: shutdown timed out")
			return nil
		}
	case <-done:
		// All supervisors stopped on their own.
	}

	var totalMessages, totalAlerts int64
	for _, projectID := range orch.Projects() {
		messages, alerts := orch.Supervisor(projectID).Stats()
		totalMessages += messages
		totalAlerts += alerts
	}
	fmt.Printf("📊 Final status: %d total messages processed, %d alerts raised\n",
		totalMessages, totalAlerts)
	return nil
}
