// Package session keeps an append-only log of one conversation at a time.
// Each session is stored as a single JSON file that is rewritten after
// every message.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Message is one turn in a session. It never changes once appended.
type Message struct {
	ID        string            `json:"id" yaml:"id"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Content   string            `json:"content" yaml:"content"`
	Sender    Sender            `json:"sender" yaml:"sender"`
	Metadata  map[string]string `json:"metadata" yaml:"metadata,omitempty"`
}

// Session is one continuous conversation.
type Session struct {
	ID            string    `json:"id" yaml:"id"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt" yaml:"lastUpdatedAt"`
	Messages      []Message `json:"messages" yaml:"messages"`
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:            uuid.NewString(),
		CreatedAt:     now,
		LastUpdatedAt: now,
		Messages:      []Message{},
	}
}

func newMessage(now time.Time, sender Sender, content string, metadata map[string]string) Message {
	var md map[string]string
	if len(metadata) > 0 {
		md = make(map[string]string, len(metadata))
		for k, v := range metadata {
			md[k] = v
		}
	}
	return Message{
		ID:        uuid.NewString(),
		Timestamp: now,
		Content:   content,
		Sender:    sender,
		Metadata:  md,
	}
}

// clone returns a deep copy so callers never alias the store's state.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}

// FileName is the on-disk name for s: creation time, then ID, so repeated
// saves of one session always land on the same file.
func (s *Session) FileName() string {
	return filePrefix + s.CreatedAt.Format(fileTimeLayout) + "_" + s.ID + fileExt
}

// Preview returns the first user message, truncated for listings.
func (s *Session) Preview(max int) string {
	for _, m := range s.Messages {
		if m.Sender != SenderUser || m.Content == "" {
			continue
		}
		runes := []rune(m.Content)
		if max > 3 && len(runes) > max {
			return string(runes[:max-3]) + "..."
		}
		return m.Content
	}
	return ""
}
