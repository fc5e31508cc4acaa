package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/shepherd/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the shepherd state directory with example configuration",
	Long: `Initialize shepherd by creating the state directory with a starter
rule configuration.

This creates:
  - <state-dir>/settings.json (example rules, edit to taste)
  - <state-dir>/suggestions/ (suggestion handoff directory)

Existing configuration is never overwritten.

Example:
  shepherd init
  shepherd init --state-dir /tmp/shepherd-test`,
	Run: func(cmd *cobra.Command, args []string) {
		stateDir, _ := cmd.Flags().GetString("state-dir")
		if err := runInit(stateDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	initCmd.Flags().String("state-dir", config.DefaultStateDir(), "Shepherd state directory")
	rootCmd.AddCommand(initCmd)
}

func runInit(stateDir string) error {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if err := os.MkdirAll(filepath.Join(stateDir, "suggestions"), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	settingsPath := filepath.Join(stateDir, "settings.json")
	if _, err := config.LoadSettings(stateDir); err == nil {
		fmt.Printf("%s Configuration already exists, leaving it alone\n", yellow("•"))
	} else {
		if err := os.WriteFile(settingsPath, []byte(config.ExampleSettings), 0644); err != nil {
			return fmt.Errorf("failed to write settings: %w", err)
		}
		fmt.Printf("%s Wrote example configuration to %s\n", green("✓"), settingsPath)
	}

	fmt.Printf("%s State directory ready at %s\n", green("✓"), stateDir)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to match your standards\n", settingsPath)
	fmt.Println("  2. Set ANTHROPIC_API_KEY")
	fmt.Println("  3. Run: shepherd watch <project-path>")
	return nil
}
