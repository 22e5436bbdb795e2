package cmd

import (
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/cuecard/internal/ai"
	"github.com/arin/cuecard/internal/ui"
)

var (
	askImages []string
	askRender bool
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Stream one answer, optionally about screenshots",
	Long: `Ask a single question and stream the answer to the terminal. Attach
screenshots with --image (PNG, JPEG or GIF); they are sent as JPEG.
The exchange is saved as a one-turn session when save_chats_locally is on.

Examples:
  cuecard ask "what is the time complexity of heapify?"
  cuecard ask --image q1.png --image q2.png "solve this"
  cuecard ask --render "compare BFS and DFS in a table"
  pbpaste | cuecard ask`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.TrimSpace(strings.Join(args, " "))
		if prompt == "" && !ui.IsTerminal(os.Stdin) {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			prompt = strings.TrimSpace(string(data))
		}
		if prompt == "" {
			return fmt.Errorf("nothing to ask: pass a prompt or pipe one in")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}

		var images []image.Image
		for _, path := range askImages {
			img, err := ai.DecodeImageFile(path)
			if err != nil {
				return err
			}
			images = append(images, img)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.store.StartNewSession()
		defer a.store.CloseCurrentSession()
		a.store.AddUserMessage(prompt)

		if len(images) > 0 {
			color.New(color.FgHiBlack).Fprintf(os.Stderr, "  %d screenshot(s) attached\n", len(images))
		}
		fmt.Fprintln(os.Stderr)

		res, err := a.answer(ctx, ai.Request{Prompt: prompt, Images: images}, turnOptions{
			subcommand: "ask",
			prefix:     "  ",
			render:     askRender,
		})
		if err != nil {
			return err
		}
		if res.State == ai.StateCompleted && strings.TrimSpace(res.Text) != "" {
			a.store.AddAIResponse(res.Text)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringArrayVarP(&askImages, "image", "i", nil, "Attach a screenshot (repeatable)")
	askCmd.Flags().BoolVarP(&askRender, "render", "r", false, "Render the finished answer as markdown")
}
