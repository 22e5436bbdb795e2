package session

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// Export writes sess to w in the named format.
func Export(w io.Writer, sess *Session, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(sess); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown, "md":
		return exportMarkdown(w, sess)
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, yaml, markdown)", format)
	}
}

func exportMarkdown(w io.Writer, sess *Session) error {
	_, _ = fmt.Fprintf(w, "# Chat %s\n\n", sess.ID)
	_, _ = fmt.Fprintf(w, "**Started:** %s  \n", sess.CreatedAt.Local().Format(time.DateTime))
	_, _ = fmt.Fprintf(w, "**Updated:** %s  \n", sess.LastUpdatedAt.Local().Format(time.DateTime))
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(sess.Messages))

	for _, msg := range sess.Messages {
		who := "You"
		if msg.Sender == SenderAI {
			who = "AI"
		}
		if _, err := fmt.Fprintf(w, "---\n\n**%s** (%s)\n\n%s\n\n", who, msg.Timestamp.Local().Format(time.TimeOnly), msg.Content); err != nil {
			return err
		}
	}
	return nil
}
