package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	doneMarker = []byte("[DONE]")
	dataField  = []byte("data:")
)

// envelopeScanner walks a growing receive buffer and hands out one complete
// JSON document at a time. SSE field lines, "data:" prefixes and the
// punctuation of a streamed JSON array are skipped. A document that has not
// fully arrived is left in place until more bytes come in; the cursor means
// each byte is decoded once rather than re-parsing the whole buffer.
type envelopeScanner struct {
	buf    []byte
	cursor int
	done   bool
}

// Write appends received bytes, dropping what has already been consumed.
func (s *envelopeScanner) Write(p []byte) {
	if s.cursor > 0 {
		s.buf = append(s.buf[:0], s.buf[s.cursor:]...)
		s.cursor = 0
	}
	s.buf = append(s.buf, p...)
}

// Done reports whether a literal [DONE] marker was seen.
func (s *envelopeScanner) Done() bool {
	return s.done
}

// Pending returns the unconsumed bytes.
func (s *envelopeScanner) Pending() []byte {
	return s.buf[s.cursor:]
}

// Next returns the next complete document. ok is false when more bytes are
// needed. A non-nil err means bytes were skipped because they could not be
// decoded; callers log it and keep going.
func (s *envelopeScanner) Next() (doc []byte, ok bool, err error) {
	for s.cursor < len(s.buf) {
		rest := s.buf[s.cursor:]
		if isPartial(rest, doneMarker) || isPartial(rest, dataField) {
			return nil, false, nil
		}
		switch c := rest[0]; {
		case bytes.HasPrefix(rest, doneMarker):
			s.cursor += len(doneMarker)
			s.done = true
			return nil, false, nil
		case isSpace(c) || c == ',' || c == '[' || c == ']':
			s.cursor++
		case bytes.HasPrefix(rest, dataField):
			s.cursor += len(dataField)
		case c == ':' || isLetter(c):
			// event:, id:, retry: or a comment line.
			if !s.skipLine() {
				return nil, false, nil
			}
		case c == '{':
			return s.decodeObject()
		default:
			skipped := s.skipLine()
			if !skipped {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("skipped undecodable line starting with %q", c)
		}
	}
	return nil, false, nil
}

func (s *envelopeScanner) decodeObject() ([]byte, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(s.buf[s.cursor:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		// Malformed document: resynchronise on the next line once it exists.
		if !s.skipLine() {
			return nil, false, fmt.Errorf("envelope not decodable yet: %w", err)
		}
		return nil, false, fmt.Errorf("skipped malformed envelope: %w", err)
	}
	s.cursor += int(dec.InputOffset())
	return raw, true, nil
}

// skipLine advances past the next newline. It reports false when the line
// has not finished arriving.
func (s *envelopeScanner) skipLine() bool {
	i := bytes.IndexByte(s.buf[s.cursor:], '\n')
	if i < 0 {
		return false
	}
	s.cursor += i + 1
	return true
}

// isPartial reports whether b is a strict prefix of marker, i.e. the marker
// may still be arriving.
func isPartial(b, marker []byte) bool {
	return len(b) < len(marker) && bytes.HasPrefix(marker, b)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
