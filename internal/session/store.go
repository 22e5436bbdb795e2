package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arin/cuecard/internal/logging"
)

var (
	// ErrNotFound is returned when no saved session matches an ID.
	ErrNotFound = errors.New("session not found")
	// ErrAmbiguous is returned when an ID prefix matches several sessions.
	ErrAmbiguous = errors.New("session id is ambiguous")
)

// Preferences is the slice of user settings the store consults on every
// save. A nil Preferences always saves.
type Preferences interface {
	SaveChatsLocally() bool
}

// Store owns the session directory and the single current session.
// Persistence is best-effort: write failures are logged and the in-memory
// session stays authoritative.
type Store struct {
	mu       sync.Mutex
	dir      string
	prefs    Preferences
	logger   *slog.Logger
	now      func() time.Time
	current  *Session
	dirReady bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.OrDiscard(l) }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store writing into dir. The directory is created on
// first save.
func NewStore(dir string, prefs Preferences, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		prefs:  prefs,
		logger: logging.Discard(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the directory sessions are saved in.
func (s *Store) Dir() string {
	return s.dir
}

// StartNewSession saves and replaces any active session with a fresh one.
func (s *Store) StartNewSession() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.saveLocked()
	}
	s.current = newSession(s.now())
	s.logger.Debug("started chat session", "session", s.current.ID)
	// Empty sessions are filtered here; the file appears with the first message.
	s.saveLocked()
	return *s.current.clone()
}

// CurrentSession returns a copy of the active session, or nil.
func (s *Store) CurrentSession() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.clone()
}

// AddUserMessage appends a user turn and saves.
func (s *Store) AddUserMessage(text string) (Message, bool) {
	return s.AddMessage(SenderUser, text, nil)
}

// AddAIResponse appends an AI turn and saves.
func (s *Store) AddAIResponse(text string) (Message, bool) {
	return s.AddMessage(SenderAI, text, nil)
}

// AddMessage appends a message and saves before returning. It reports false
// when there is no active session.
func (s *Store) AddMessage(sender Sender, text string, metadata map[string]string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		s.logger.Warn("no active chat session, message dropped", "sender", sender)
		return Message{}, false
	}

	now := s.now()
	msg := newMessage(now, sender, text, metadata)
	s.current.Messages = append(s.current.Messages, msg)
	s.current.LastUpdatedAt = now
	s.saveLocked()
	return msg, true
}

// SaveCurrentSession writes the active session to disk. It does nothing when
// there is no session, the session is empty, or local saving is disabled.
func (s *Store) SaveCurrentSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked()
}

// CloseCurrentSession saves and then forgets the active session.
func (s *Store) CloseCurrentSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	s.saveLocked()
	s.logger.Debug("closed chat session", "session", s.current.ID)
	s.current = nil
}

func (s *Store) saveLocked() {
	sess := s.current
	if sess == nil || len(sess.Messages) == 0 {
		return
	}
	if s.prefs != nil && !s.prefs.SaveChatsLocally() {
		return
	}
	if err := s.write(sess); err != nil {
		d := Diagnose(s.dir)
		s.logger.Error("failed to save chat session",
			"session", sess.ID,
			"error", err,
			"dir", d.Dir,
			"parent_writable", d.ParentWritable,
			"free_bytes", d.FreeBytes,
		)
	}
}

func (s *Store) write(sess *Session) error {
	if !s.dirReady {
		if err := prepareDir(s.dir); err != nil {
			return err
		}
		s.dirReady = true
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, sess.FileName()), data, filePerm); err != nil {
		// The directory may have been removed underneath us.
		s.dirReady = false
		return err
	}
	return nil
}

// ListSavedSessions decodes every session file in the directory, newest
// first. Files that fail to decode are logged and skipped.
func (s *Store) ListSavedSessions() ([]Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	var sessions []Session
	for _, entry := range entries {
		if entry.IsDir() || !isSessionFile(entry.Name()) {
			continue
		}
		sess, err := readSession(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable session file", "file", entry.Name(), "error", err)
			continue
		}
		sessions = append(sessions, *sess)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// LoadSession returns the saved session whose ID equals or starts with id.
func (s *Store) LoadSession(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isSessionFile(name) {
			continue
		}
		sessID := sessionIDFromFileName(name)
		if sessID == id {
			matches = []string{name}
			break
		}
		if strings.HasPrefix(sessID, id) {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return readSession(filepath.Join(s.dir, matches[0]))
	default:
		return nil, fmt.Errorf("%w: %q matches %d sessions", ErrAmbiguous, id, len(matches))
	}
}

func readSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	if sess.ID == "" {
		return nil, errors.New("missing session id")
	}
	return &sess, nil
}

// sessionIDFromFileName extracts the ID from chat_<date>_<time>_<id>.json.
func sessionIDFromFileName(name string) string {
	base := strings.TrimSuffix(name, fileExt)
	base = strings.TrimPrefix(base, filePrefix)
	if len(base) <= len(fileTimeLayout)+1 {
		return ""
	}
	return base[len(fileTimeLayout)+1:]
}
