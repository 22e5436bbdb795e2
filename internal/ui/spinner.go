// Package ui provides terminal UI helpers.
package ui

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Spinner shows a waiting indicator until the first token arrives.
type Spinner struct {
	s       *spinner.Spinner
	w       io.Writer
	once    sync.Once
	enabled bool
}

// NewSpinner creates a spinner with the given message on stderr. It stays
// silent when stderr is not a terminal.
func NewSpinner(msg string) *Spinner {
	return newSpinner(os.Stderr, msg, IsTerminal(os.Stderr))
}

func newSpinner(w io.Writer, msg string, enabled bool) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  " + msg
	_ = s.Color("cyan")
	return &Spinner{s: s, w: w, enabled: enabled}
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	if sp.enabled {
		sp.s.Start()
	}
}

// Stop halts the spinner and clears the line. Safe to call more than once.
func (sp *Spinner) Stop() {
	sp.once.Do(func() {
		if sp.enabled {
			sp.s.Stop()
		}
	})
}

// Success stops the spinner and prints a green check.
func (sp *Spinner) Success(msg string) {
	sp.Stop()
	color.New(color.FgGreen).Fprintf(sp.w, "  ✓ %s\n", msg)
}

// Fail stops the spinner and prints a red cross.
func (sp *Spinner) Fail(msg string) {
	sp.Stop()
	color.New(color.FgRed).Fprintf(sp.w, "  ✗ %s\n", msg)
}
