// Package sanitize removes terminal formatting from text captured from agents
// so it can be shown on a non-terminal surface.
package sanitize

import "strings"

const esc = 0x1b

// states of an escape sequence that is still being read
const (
	wantIntroducer = iota
	inParameters
	inIntermediates
)

type pendingEscape struct {
	pos   int
	state int
}

// Strip returns text with every escape sequence of the form ESC, an
// introducer in @-_, parameter bytes 0-?, intermediate bytes space-/ and a
// final byte @-~ removed. Partial sequences, such as a trailing ESC, are kept
// as they are.
//
// Removing a sequence can join the text around it into a new sequence; those
// are removed as well, so the result never contains a complete sequence.
func Strip(text string) string {
	if strings.IndexByte(text, esc) < 0 {
		return text
	}

	out := make([]byte, 0, len(text))
	// only the top entry can still complete; the ones below resume when the
	// sequence above them is removed
	var stack []pendingEscape
	for i := 0; i < len(text); i++ {
		b := text[i]
		out = append(out, b)
		if b == esc {
			stack = append(stack, pendingEscape{pos: len(out) - 1, state: wantIntroducer})
			continue
		}
		if len(stack) == 0 {
			continue
		}

		top := &stack[len(stack)-1]
		switch state := next(top.state, b); state {
		case complete:
			out = out[:top.pos]
			stack = stack[:len(stack)-1]
		case invalid:
			stack = stack[:0]
		default:
			top.state = state
		}
	}
	return string(out)
}

const (
	complete = -1
	invalid  = -2
)

func next(state int, b byte) int {
	switch state {
	case wantIntroducer:
		if b >= '@' && b <= '_' {
			return inParameters
		}
	case inParameters:
		switch {
		case b >= '0' && b <= '?':
			return inParameters
		case b >= ' ' && b <= '/':
			return inIntermediates
		case b >= '@' && b <= '~':
			return complete
		}
	case inIntermediates:
		switch {
		case b >= ' ' && b <= '/':
			return inIntermediates
		case b >= '@' && b <= '~':
			return complete
		}
	}
	return invalid
}
