package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/arin/cuecard/internal/ai"
	"github.com/arin/cuecard/internal/stats"
	"github.com/arin/cuecard/internal/ui"
)

// turnOptions control how one answer is shown.
type turnOptions struct {
	subcommand string
	prefix     string
	// render waits for the finished answer and draws it as markdown
	// instead of printing tokens as they arrive.
	render bool
}

// answer streams one response to stdout and records its stats. A
// cancelled turn is not an error.
func (a *app) answer(ctx context.Context, req ai.Request, opts turnOptions) (ui.StreamResult, error) {
	start := time.Now()
	sp := ui.NewSpinner("Thinking...")
	sp.Start()

	events, err := a.client.Generate(ctx, req)
	if err != nil {
		sp.Stop()
		if errors.Is(err, ai.ErrMissingCredential) {
			return ui.StreamResult{}, fmt.Errorf("%w\n  %s", err, credentialHint(a.cfg))
		}
		return ui.StreamResult{}, err
	}

	var out io.Writer = os.Stdout
	if opts.render {
		out = io.Discard
	}
	res := ui.RenderStream(out, events, ui.StreamOptions{Prefix: opts.prefix, OnFirstToken: sp.Stop})

	a.recordTurn(opts.subcommand, len(req.Images), res, time.Since(start))

	switch res.State {
	case ai.StateFailed:
		return res, res.Err
	case ai.StateCancelled:
		color.New(color.FgHiBlack).Fprintln(os.Stderr, "  (cancelled)")
		return res, nil
	}
	if opts.render {
		if err := ui.NewContentRenderer(os.Stdout).Render(res.Content); err != nil {
			return res, fmt.Errorf("failed to render answer: %w", err)
		}
	}
	return res, nil
}

func (a *app) recordTurn(subcommand string, images int, res ui.StreamResult, elapsed time.Duration) {
	outcome := stats.OutcomeCompleted
	switch res.State {
	case ai.StateFailed:
		outcome = stats.OutcomeFailed
	case ai.StateCancelled:
		outcome = stats.OutcomeCancelled
	}
	r := stats.Turn(subcommand, a.client.Provider().Name(), a.cfg.ActiveModel(), images,
		res.FirstToken, elapsed, len(res.Text), outcome)
	if err := stats.Save(r); err != nil {
		a.logger.Debug("failed to save stats", "error", err)
	}
}
