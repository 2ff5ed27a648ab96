package core

import (
	"io"
	"strings"
	"unicode"
)

// tagStreamer forwards the body of the first <tag>...</tag> block of a
// streamed reply to w as the chunks arrive. Text that could still turn out to
// be part of a tag or trailing whitespace is held back until it is decided.
type tagStreamer struct {
	openTag  string
	closeTag string
	w        io.Writer
	buf      string
	inside   bool
	done     bool
	emitted  bool
}

func newTagStreamer(tag string, w io.Writer) *tagStreamer {
	return &tagStreamer{openTag: "<" + tag + ">", closeTag: "</" + tag + ">", w: w}
}

func (s *tagStreamer) Write(chunk string) error {
	if s.done {
		return nil
	}
	s.buf += chunk
	if !s.inside {
		i := strings.Index(s.buf, s.openTag)
		if i < 0 {
			s.buf = s.buf[len(s.buf)-partialSuffix(s.buf, s.openTag):]
			return nil
		}
		s.buf = s.buf[i+len(s.openTag):]
		s.inside = true
	}

	if i := strings.Index(s.buf, s.closeTag); i >= 0 {
		body := s.buf[:i]
		s.buf = ""
		s.inside = false
		s.done = true
		return s.emit(strings.TrimRightFunc(body, unicode.IsSpace))
	}

	held := partialSuffix(s.buf, s.closeTag)
	ready := strings.TrimRightFunc(s.buf[:len(s.buf)-held], unicode.IsSpace)
	s.buf = s.buf[len(ready):]
	return s.emit(ready)
}

// Flush writes whatever is held back when the stream ended inside the block.
func (s *tagStreamer) Flush() error {
	if !s.inside || s.done {
		return nil
	}
	s.done = true
	body := strings.TrimRightFunc(s.buf, unicode.IsSpace)
	s.buf = ""
	return s.emit(body)
}

// Emitted reports whether any text reached the writer.
func (s *tagStreamer) Emitted() bool {
	return s.emitted
}

func (s *tagStreamer) emit(text string) error {
	if !s.emitted {
		text = strings.TrimLeftFunc(text, unicode.IsSpace)
	}
	if text == "" {
		return nil
	}
	s.emitted = true
	_, err := io.WriteString(s.w, text)
	return err
}

// partialSuffix returns the length of the longest proper prefix of tag that
// text ends with.
func partialSuffix(text, tag string) int {
	for n := min(len(tag)-1, len(text)); n > 0; n-- {
		if strings.HasSuffix(text, tag[:n]) {
			return n
		}
	}
	return 0
}
