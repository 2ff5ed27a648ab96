package core

import (
	"bytes"
	"strings"
	"testing"
)

func streamAll(t *testing.T, chunks []string) (string, *tagStreamer) {
	t.Helper()
	var out bytes.Buffer
	s := newTagStreamer("response", &out)
	for _, c := range chunks {
		if err := s.Write(c); err != nil {
			t.Fatalf("Write(%q): %v", c, err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return out.String(), s
}

func TestTagStreamerSplitTags(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{"single chunk", []string{"<response>Hello</response>"}, "Hello"},
		{"open tag split", []string{"<resp", "onse>Hi there</response>"}, "Hi there"},
		{"close tag split", []string{"<response>Hi", " there</res", "ponse>ignored"}, "Hi there"},
		{"whitespace trimmed", []string{"<response>\n  ", "Rest well", "\n\n</response>"}, "Rest well"},
		{"inner whitespace kept", []string{"<response>a ", " b", "\nc</response>"}, "a  b\nc"},
		{"preamble ignored", []string{"<thinking>x < y</thinking>", "<response>ok</response>"}, "ok"},
		{"only first block", []string{"<response>one</response><response>two</response>"}, "one"},
		{"lookalike tag", []string{"<response>a </respite> b</response>"}, "a </respite> b"},
		{"no block", []string{"plain text"}, ""},
		{"unterminated", []string{"<response>partial ", "answer  "}, "partial answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := streamAll(t, tt.chunks)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTagStreamerByteByByte(t *testing.T) {
	reply := "<thinking>plan</thinking>\n<response>\nStay hydrated.\nSee a doctor if fever persists.\n</response>\n<task_status>completed</task_status>"
	chunks := strings.Split(reply, "")
	got, s := streamAll(t, chunks)
	if got != "Stay hydrated.\nSee a doctor if fever persists." {
		t.Errorf("got %q", got)
	}
	if !s.Emitted() {
		t.Error("Emitted() = false")
	}
}

func TestTagStreamerNothingEmitted(t *testing.T) {
	_, s := streamAll(t, []string{"<response>", "  ", "</response>"})
	if s.Emitted() {
		t.Error("blank response should not count as emitted")
	}
}

func TestPartialSuffix(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"abc", 0},
		{"abc<", 1},
		{"abc</res", 5},
		{"</response", 10},
		{"</response>", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := partialSuffix(tt.text, "</response>"); got != tt.want {
			t.Errorf("partialSuffix(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
