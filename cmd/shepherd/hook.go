package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/shepherd/internal/config"
	"github.com/steveyegge/shepherd/internal/hook"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Prompt-submit hook entry point (called by the assistant, not by you)",
	Long: `Read the assistant's prompt-submit hook payload from stdin and print any
pending suggestion for the payload's working directory. The suggestion is
consumed so it fires exactly once.

Register it in the assistant's hook configuration:

  {"hooks": {"UserPromptSubmit": [{"hooks": [{"type": "command", "command": "shepherd hook"}]}]}}

This command never fails: any problem results in empty output so the
user's session is never interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		stateDir, _ := cmd.Flags().GetString("state-dir")
		_ = hook.Run(os.Stdin, os.Stdout, stateDir)
	},
}

func init() {
	hookCmd.Flags().String("state-dir", config.DefaultStateDir(), "Shepherd state directory")
	rootCmd.AddCommand(hookCmd)
}
