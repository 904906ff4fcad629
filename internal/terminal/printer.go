// Package terminal renders colored output and reads line-based answers.
package terminal

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Kind selects the style of a printed message.
type Kind int

const (
	Info Kind = iota
	Success
	Warning
	Error
	Content
)

var (
	colorInfo    = lipgloss.Color("#4169E1")
	colorSuccess = lipgloss.Color("#2E8B57")
	colorWarning = lipgloss.Color("#FFD700")
	colorError   = lipgloss.Color("#FF0000")
	colorContent = lipgloss.Color("#808080")
)

// Printer writes styled messages. Warnings and errors go to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	styles map[Kind]lipgloss.Style
}

// NewPrinter creates a printer. Color is emitted only when the writer is a
// terminal that supports it.
func NewPrinter(out, errOut io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:    out,
		errOut: errOut,
		styles: map[Kind]lipgloss.Style{
			Info:    r.NewStyle().Foreground(colorInfo),
			Success: r.NewStyle().Foreground(colorSuccess).Bold(true),
			Warning: r.NewStyle().Foreground(colorWarning),
			Error:   r.NewStyle().Foreground(colorError).Bold(true),
			Content: r.NewStyle().Foreground(colorContent),
		},
	}
}

// Print writes msg followed by a newline.
func (p *Printer) Print(kind Kind, msg string) {
	w := p.out
	if kind == Warning || kind == Error {
		w = p.errOut
	}
	style, ok := p.styles[kind]
	if !ok {
		style = lipgloss.NewStyle()
	}
	_, _ = fmt.Fprintln(w, style.Render(msg))
}

func (p *Printer) Infof(format string, args ...any)    { p.Print(Info, fmt.Sprintf(format, args...)) }
func (p *Printer) Successf(format string, args ...any) { p.Print(Success, fmt.Sprintf(format, args...)) }
func (p *Printer) Warnf(format string, args ...any)    { p.Print(Warning, fmt.Sprintf(format, args...)) }
func (p *Printer) Errorf(format string, args ...any)   { p.Print(Error, fmt.Sprintf(format, args...)) }

// Content prints msg in the muted content style.
func (p *Printer) Content(msg string) { p.Print(Content, msg) }
