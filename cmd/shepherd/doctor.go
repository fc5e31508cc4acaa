package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/shepherd/internal/config"
	"github.com/steveyegge/shepherd/internal/storage/sqlite"
	"github.com/steveyegge/shepherd/internal/transcript"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check shepherd installation and environment health",
	Long: `Run health checks to diagnose common shepherd configuration issues.

This command checks for:
- State directory and rule configuration
- ANTHROPIC_API_KEY
- The assistant's conversation log root
- Event database accessibility

Exit codes:
  0 - All checks passed
  1 - One or more checks failed`,
	Run: func(cmd *cobra.Command, args []string) {
		stateDir, _ := cmd.Flags().GetString("state-dir")
		if !runDoctor(stateDir) {
			os.Exit(1)
		}
	},
}

func init() {
	doctorCmd.Flags().String("state-dir", config.DefaultStateDir(), "Shepherd state directory")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(stateDir string) bool {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Printf("Running shepherd health checks...\n\n")
	failures := 0

	fmt.Printf("%s Rule configuration\n", cyan("→"))
	settings, err := config.LoadSettings(stateDir)
	if err != nil {
		failures++
		fmt.Printf("  %s %v\n", red("✗"), err)
		fmt.Printf("    Run 'shepherd init' to create it\n")
	} else {
		fmt.Printf("  %s %d rule(s) configured\n", green("✓"), len(settings.Rules))
	}

	fmt.Printf("%s API key\n", cyan("→"))
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		failures++
		fmt.Printf("  %s ANTHROPIC_API_KEY is not set\n", red("✗"))
	} else {
		fmt.Printf("  %s ANTHROPIC_API_KEY is set\n", green("✓"))
	}

	fmt.Printf("%s Conversation log root\n", cyan("→"))
	logRoot := transcript.DefaultLogRoot()
	if info, err := os.Stat(logRoot); err != nil || !info.IsDir() {
		// Not fatal: the assistant creates it on first use.
		fmt.Printf("  %s %s does not exist yet\n", yellow("•"), logRoot)
		fmt.Printf("    It appears after the assistant's first session\n")
	} else {
		fmt.Printf("  %s %s\n", green("✓"), logRoot)
	}

	fmt.Printf("%s Event database\n", cyan("→"))
	store, err := sqlite.Open(filepath.Join(stateDir, "events.db"))
	if err != nil {
		failures++
		fmt.Printf("  %s Cannot open event database: %v\n", red("✗"), err)
	} else {
		store.Close()
		fmt.Printf("  %s %s\n", green("✓"), filepath.Join(stateDir, "events.db"))
	}

	fmt.Println()
	if failures > 0 {
		fmt.Printf("%s %d check(s) failed\n", red("✗"), failures)
		return false
	}
	fmt.Printf("%s All checks passed\n", green("✓"))
	return true
}
