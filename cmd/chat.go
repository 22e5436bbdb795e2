package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/cuecard/internal/ai"
	"github.com/arin/cuecard/internal/session"
	"github.com/arin/cuecard/internal/ui"
)

const transcriptTail = 6

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start a conversational session. Context carries over between messages
and every turn is appended to the session file as soon as it happens.

Ctrl+C stops the answer being streamed, or ends the session when pressed at
the prompt. Type 'exit' or 'quit' to end the session, or '/new' to start a
fresh one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		// SIGTERM and SIGHUP end the session cleanly. SIGINT cancels the
		// turn in flight, or ends the session at the prompt.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
		defer stop()
		interrupts := make(chan os.Signal, 1)
		signal.Notify(interrupts, os.Interrupt)
		defer signal.Stop(interrupts)

		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)
		green := color.New(color.FgGreen)

		fmt.Fprintln(os.Stderr)
		cyan.Fprintln(os.Stderr, "  cuecard chat")
		dim.Fprintf(os.Stderr, "  %s · %s\n", a.client.Provider().Name(), a.cfg.ActiveModel())
		dim.Fprintf(os.Stderr, "  Type 'exit' to quit, '/new' for a fresh session.\n\n")

		a.store.StartNewSession()
		defer a.store.CloseCurrentSession()

		lines := readLines(os.Stdin)
		for {
			green.Fprint(os.Stderr, "  you → ")
			var input string
			select {
			case <-ctx.Done():
				dim.Fprintf(os.Stderr, "\n  Session saved.\n\n")
				return nil
			case <-interrupts:
				dim.Fprintf(os.Stderr, "\n  Session saved.\n\n")
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				input = strings.TrimSpace(line)
			}

			switch input {
			case "":
				continue
			case "exit", "quit", "bye":
				dim.Fprintf(os.Stderr, "\n  Later!\n\n")
				return nil
			case "/new":
				a.store.StartNewSession()
				dim.Fprintf(os.Stderr, "  Started a new session.\n\n")
				continue
			}

			history := historyOf(a.store.CurrentSession())
			a.store.AddUserMessage(input)

			turnCtx, stopTurn := cancelOnSignal(ctx, interrupts)
			cyan.Fprint(os.Stderr, "  ai → ")
			res, err := a.answer(turnCtx, ai.Request{Prompt: input, History: history}, turnOptions{subcommand: "chat"})
			stopTurn()
			if err != nil {
				fmt.Fprintf(os.Stderr, "  Error: %v\n\n", err)
				continue
			}
			if res.State == ai.StateCompleted && strings.TrimSpace(res.Text) != "" {
				a.store.AddAIResponse(res.Text)
			}
			if a.cfg.ShowTranscript {
				if sess := a.store.CurrentSession(); sess != nil {
					fmt.Fprintln(os.Stderr, ui.TranscriptPanel(*sess, transcriptTail))
				}
			}
		}
	},
}

// historyOf converts the saved messages into request history.
func historyOf(sess *session.Session) []ai.Turn {
	if sess == nil {
		return nil
	}
	turns := make([]ai.Turn, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		role := ai.RoleUser
		if m.Sender == session.SenderAI {
			role = ai.RoleAssistant
		}
		turns = append(turns, ai.Turn{Role: role, Text: m.Content})
	}
	return turns
}

// cancelOnSignal returns a context cancelled when sig fires. stop releases
// the watcher without consuming a signal that has not arrived yet.
func cancelOnSignal(parent context.Context, sig <-chan os.Signal) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-sig:
			cancel()
		case <-done:
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		close(done)
		<-exited
		cancel()
	}
}

// readLines feeds stdin lines into a channel so the loop can also wait on
// signals.
func readLines(f *os.File) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}

