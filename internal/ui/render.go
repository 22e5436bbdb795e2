package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/arin/cuecard/internal/content"
)

const wordWrap = 80

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ContentRenderer draws a StreamContent. Markdown is styled with glamour on
// a terminal and written verbatim otherwise, so piped output stays clean.
type ContentRenderer struct {
	w        io.Writer
	md       *glamour.TermRenderer
	collapse bool
}

// RenderOption configures a ContentRenderer.
type RenderOption func(*ContentRenderer)

// WithStyledMarkdown forces glamour rendering on or off.
func WithStyledMarkdown(on bool) RenderOption {
	return func(r *ContentRenderer) {
		if !on {
			r.md = nil
			return
		}
		if r.md == nil {
			r.md = newMarkdownRenderer()
		}
	}
}

// WithCollapsed renders the collapsed form of collapsible entries.
func WithCollapsed(on bool) RenderOption {
	return func(r *ContentRenderer) { r.collapse = on }
}

func NewContentRenderer(w io.Writer, opts ...RenderOption) *ContentRenderer {
	r := &ContentRenderer{w: w}
	if IsTerminal(w) {
		r.md = newMarkdownRenderer()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newMarkdownRenderer() *glamour.TermRenderer {
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return nil
	}
	return md
}

// Render writes every item followed by any item errors.
func (r *ContentRenderer) Render(sc content.StreamContent) error {
	for _, item := range sc.Items {
		switch v := item.Value.(type) {
		case content.Markdown:
			if err := r.markdown(v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported content item %s (%T)", item.ID, v)
		}
	}
	red := color.New(color.FgRed)
	for _, ie := range sc.Errors {
		if _, err := red.Fprintf(r.w, "  ✗ %s: %v\n", ie.ID, ie.Err); err != nil {
			return err
		}
	}
	return nil
}

func (r *ContentRenderer) markdown(m content.Markdown) error {
	text := m.Content
	if r.collapse && m.Collapsible() {
		text = m.Collapsed
	}
	if r.md != nil {
		if out, err := r.md.Render(text); err == nil {
			_, err = io.WriteString(r.w, out)
			return err
		}
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(r.w, text)
	return err
}
