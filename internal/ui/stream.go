// Rendering of streaming AI events as they arrive.

package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/arin/cuecard/internal/ai"
	"github.com/arin/cuecard/internal/content"
)

// StreamResult describes how a rendered stream ended.
type StreamResult struct {
	// Text is the answer exactly as streamed.
	Text string
	// Content is the model from the last event; Finished once completed.
	Content content.StreamContent
	// State is Completed, Failed or Cancelled. A channel that closes
	// without a terminal event was cancelled.
	State ai.State
	// FirstToken is the delay before the first delta; zero if none came.
	FirstToken time.Duration
	Err        error
}

// StreamOptions tune RenderStream.
type StreamOptions struct {
	// Prefix is written before the first token (e.g. "  ").
	Prefix string
	// OnFirstToken runs once before the first delta is written; the CLI
	// stops its spinner here.
	OnFirstToken func()
}

// RenderStream writes each delta from events to w in real time and returns
// once the channel closes.
func RenderStream(w io.Writer, events <-chan ai.Event, opts StreamOptions) StreamResult {
	start := time.Now()
	res := StreamResult{State: ai.StateCancelled}
	first := true

	for ev := range events {
		switch ev.State {
		case ai.StateStreaming:
			if ev.Delta == "" {
				continue
			}
			if first {
				res.FirstToken = time.Since(start)
				if opts.OnFirstToken != nil {
					opts.OnFirstToken()
				}
				fmt.Fprint(w, opts.Prefix)
				first = false
			}
			fmt.Fprint(w, ev.Delta)
			res.Text = ev.Text
			res.Content = ev.Content
		case ai.StateCompleted, ai.StateFailed:
			res.State = ev.State
			res.Text = ev.Text
			res.Content = ev.Content
			res.Err = ev.Err
		}
	}
	if first && opts.OnFirstToken != nil {
		opts.OnFirstToken()
	}

	// Ensure we end with a newline.
	if res.Text != "" && !strings.HasSuffix(res.Text, "\n") {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	return res
}
