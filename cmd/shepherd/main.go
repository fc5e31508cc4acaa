package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shepherd",
	Short: "Supervise AI coding assistant sessions against your development rules",
	Long: `Shepherd watches the conversation logs your AI coding assistant writes,
analyzes the recent exchange against a configurable set of development
rules, and raises alerts when the assistant violates them.

Run 'shepherd init' once to create the configuration, then
'shepherd watch <project-path>' to start supervising a session.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
