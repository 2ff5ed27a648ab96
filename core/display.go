package core

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// panelPrinter renders tool and team calls as coloured terminal panels. The
// output always carries ANSI styling, whatever the destination is.
type panelPrinter struct {
	frame lipgloss.Style
	title lipgloss.Style
	muted lipgloss.Style
	call  lipgloss.Style
}

func newPanelPrinter(w io.Writer) *panelPrinter {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.ANSI256)

	accent := lipgloss.Color("#00FFFF")
	secondary := lipgloss.Color("#7D7D7D")
	success := lipgloss.Color("#00FF00")

	return &panelPrinter{
		frame: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondary).
			Padding(0, 1),
		title: r.NewStyle().
			Bold(true).
			Foreground(accent),
		muted: r.NewStyle().
			Foreground(secondary),
		call: r.NewStyle().
			Foreground(success),
	}
}

func (p *panelPrinter) toolCall(w io.Writer, agentName string, call ToolCall) error {
	body := p.title.Render("Running tool") + " " + p.muted.Render(agentName) + "\n" +
		p.call.Render(call.ToolName+"("+formatArgs(call.Parameters)+")")
	_, err := fmt.Fprintln(w, p.frame.Render(body))
	return err
}

func (p *panelPrinter) agentCall(w io.Writer, agentName string, call AgentCall) error {
	body := p.title.Render("Delegating") + " " + p.muted.Render(agentName+" → "+call.AgentName) + "\n" +
		p.call.Render(call.Input)
	_, err := fmt.Fprintln(w, p.frame.Render(body))
	return err
}

// formatArgs renders parameters as key=value pairs in key order.
func formatArgs(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(params[k])
		if err != nil {
			v = []byte(fmt.Sprint(params[k]))
		}
		parts = append(parts, k+"="+string(v))
	}
	return strings.Join(parts, ", ")
}
