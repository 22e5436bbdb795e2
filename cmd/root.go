package cmd

import (
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "cuecard",
	Short: "Streamed AI answers for interview prep, with a durable chat log",
	Long: `cuecard streams an answer from Gemini or OpenAI for a prompt and any
screenshots you attach, and keeps every turn in a JSON file per session.

Examples:
  cuecard ask "explain two-pointer technique"
  cuecard ask --image problem.png "what is the optimal approach?"
  cuecard chat
  cuecard sessions list`,
	SilenceUsage:               true,
	SilenceErrors:              true,
	TraverseChildren:           true,
	SuggestionsMinimumDistance: 1,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log_level")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// SetVersion records the build version shown by --version and `version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
	rootCmd.Version = version
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}
