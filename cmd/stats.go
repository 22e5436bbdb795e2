package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/cuecard/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics and streaming latency",
	Long: `Display a dashboard of your cuecard usage: turn counts, completion
rate, time to first token, answer length and provider breakdown.

Data is collected automatically and stored locally in ~/.cuecard/stats.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := stats.Summarize()
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)

		cyan.Fprintf(os.Stderr, "\n  cuecard stats\n\n")

		if summary.TotalTurns == 0 {
			dim.Fprintln(os.Stderr, "  No data yet. Ask something and come back.")
			fmt.Fprintln(os.Stderr)
			return nil
		}

		// Overview
		green.Fprintf(os.Stderr, "  Turns:       ")
		fmt.Fprintf(os.Stderr, "%d total", summary.TotalTurns)
		dim.Fprintf(os.Stderr, "  (%d today, %d this week)\n", summary.TodayCount, summary.ThisWeekCount)

		green.Fprintf(os.Stderr, "  Completed:   ")
		if summary.CompletionRate >= 90 {
			fmt.Fprintf(os.Stderr, "%.0f%%\n", summary.CompletionRate)
		} else {
			yellow.Fprintf(os.Stderr, "%.0f%%\n", summary.CompletionRate)
		}

		// Latency
		green.Fprintf(os.Stderr, "  First token: ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgFirstTokenMs)
		green.Fprintf(os.Stderr, "  Full answer: ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgDurationMs)
		green.Fprintf(os.Stderr, "  Characters:  ")
		fmt.Fprintf(os.Stderr, "%d streamed\n", summary.TotalChars)

		printBreakdown(cyan, dim, "Outcomes", summary.OutcomeBreakdown, summary.TotalTurns)
		printBreakdown(cyan, dim, "Providers", summary.ProviderBreakdown, summary.TotalTurns)

		if len(summary.SubcmdBreakdown) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Subcommands")
			for _, sub := range sortedKeys(summary.SubcmdBreakdown) {
				dim.Fprintf(os.Stderr, "  %-14s ", sub)
				fmt.Fprintf(os.Stderr, "%d\n", summary.SubcmdBreakdown[sub])
			}
		}

		if len(summary.TopModels) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Top Models")
			for i, mc := range summary.TopModels {
				dim.Fprintf(os.Stderr, "  %d. ", i+1)
				fmt.Fprintf(os.Stderr, "%s ", mc.Model)
				dim.Fprintf(os.Stderr, "(%dx)\n", mc.Count)
			}
		}

		fmt.Fprintln(os.Stderr)
		return nil
	},
}

func printBreakdown(title, label *color.Color, name string, counts map[string]int, total int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr)
	title.Fprintf(os.Stderr, "  %s\n", name)
	for _, k := range sortedKeys(counts) {
		pct := float64(counts[k]) / float64(total) * 100
		bar := strings.Repeat("█", int(pct/5))
		label.Fprintf(os.Stderr, "  %-10s ", k)
		fmt.Fprintf(os.Stderr, "%s %d (%.0f%%)\n", bar, counts[k], pct)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
