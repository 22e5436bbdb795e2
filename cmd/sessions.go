package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/cuecard/internal/content"
	"github.com/arin/cuecard/internal/session"
	"github.com/arin/cuecard/internal/ui"
)

var (
	sessionsLimit int
	exportFormat  string
	exportOutput  string
	watchTail     int
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"history"},
	Short:   "Browse saved chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		sessions, err := a.store.ListSavedSessions()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if sessionsLimit > 0 && len(sessions) > sessionsLimit {
			sessions = sessions[:sessionsLimit]
		}
		fmt.Println(ui.SessionList(sessions))
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved session",
	Long:  "Print a saved session. The id may be any unique prefix of the session ID.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		sess, err := findSession(a, args[0])
		if err != nil {
			return err
		}

		fmt.Println(ui.SessionHeader(*sess))
		renderer := ui.NewContentRenderer(os.Stdout)
		dim := color.New(color.FgHiBlack)
		for _, m := range sess.Messages {
			fmt.Printf("\n%s ", ui.SenderLabel(m.Sender))
			dim.Println(m.Timestamp.Local().Format("2006-01-02 15:04:05"))
			if m.Sender == session.SenderAI {
				if err := renderer.Render(content.NewBuilder(m.Content).Build().Finish()); err != nil {
					return err
				}
				continue
			}
			fmt.Println(m.Content)
		}
		return nil
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a session as json, yaml or markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		sess, err := findSession(a, args[0])
		if err != nil {
			return err
		}

		if exportOutput == "" || exportOutput == "-" {
			if err := session.Export(os.Stdout, sess, exportFormat); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			return nil
		}
		if err := exportToFile(exportOutput, sess, exportFormat); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(os.Stderr, "  ✓ Exported %s to %s\n", sess.ID, exportOutput)
		return nil
	},
}

var sessionsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow sessions as they are written",
	Long: `Show a live transcript of whichever session is being written, for
example by a 'cuecard chat' running in another terminal. Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		color.New(color.FgHiBlack).Fprintf(os.Stderr, "  Watching %s (Ctrl+C to stop)\n\n", a.store.Dir())
		return a.store.Watch(ctx, func(s session.Session) {
			fmt.Println(ui.TranscriptPanel(s, watchTail))
		})
	},
}

func findSession(a *app, id string) (*session.Session, error) {
	sess, err := a.store.LoadSession(id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return nil, fmt.Errorf("no session matches %q (see: cuecard sessions list)", id)
	case err != nil:
		return nil, err
	}
	return sess, nil
}

func init() {
	sessionsListCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Number of sessions to show (0 for all)")
	sessionsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", session.FormatMarkdown, "Export format: json, yaml or markdown")
	sessionsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
	sessionsWatchCmd.Flags().IntVarP(&watchTail, "tail", "t", 4, "Messages to show per update (0 for all)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsWatchCmd)
}

// exportToFile writes sess to path. A failed close is reported since it can
// mean the export never reached disk.
func exportToFile(path string, sess *session.Session, format string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to write %s: %w", path, cerr)
		}
	}()
	if err := session.Export(f, sess, format); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return nil
}
