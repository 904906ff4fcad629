package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoInput is returned when input ends before an answer is read.
var ErrNoInput = errors.New("no input available")

// Prompter asks questions on a line-based terminal. It implements the
// negotiation Reviewer and the oauth Confirmer.
type Prompter struct {
	in      *bufio.Reader
	out     io.Writer
	printer *Printer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer, printer *Printer) *Prompter {
	if printer == nil {
		printer = NewPrinter(out, out)
	}
	return &Prompter{in: bufio.NewReader(in), out: out, printer: printer}
}

func (p *Prompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Input asks question and returns the trimmed answer.
func (p *Prompter) Input(ctx context.Context, question string) (string, error) {
	_, _ = fmt.Fprintf(p.out, "%s ", question)
	line, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. An empty answer selects def.
func (p *Prompter) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		answer, err := p.Input(ctx, question+" "+hint)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		p.printer.Warnf("Please answer y or n.")
	}
}

// SelectFiles lists files and returns the chosen subset in listing order.
func (p *Prompter) SelectFiles(ctx context.Context, files []string) ([]string, error) {
	p.printer.Infof("Select files to stage:")
	for i, f := range files {
		_, _ = fmt.Fprintf(p.out, "  %2d) %s\n", i+1, f)
	}
	for {
		answer, err := p.Input(ctx, "Files (e.g. 1,3-5; a for all; empty for none):")
		if err != nil {
			return nil, err
		}
		idx, err := ParseSelection(answer, len(files))
		if err != nil {
			p.printer.Warnf("%v", err)
			continue
		}
		selected := make([]string, 0, len(idx))
		for _, i := range idx {
			selected = append(selected, files[i])
		}
		return selected, nil
	}
}

// ParseSelection parses "1,3-5" or "a" against n items and returns sorted
// zero-based indices without duplicates.
func ParseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	chosen := make([]bool, n)
	switch input {
	case "":
		return []int{}, nil
	case "a", "all", "*":
		for i := range chosen {
			chosen[i] = true
		}
	default:
		for _, part := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' }) {
			lo, hi, isRange := strings.Cut(part, "-")
			start, err := strconv.Atoi(lo)
			if err != nil {
				return nil, fmt.Errorf("invalid selection %q", part)
			}
			end := start
			if isRange {
				if end, err = strconv.Atoi(hi); err != nil {
					return nil, fmt.Errorf("invalid selection %q", part)
				}
			}
			if start < 1 || end > n || start > end {
				return nil, fmt.Errorf("selection %q out of range 1-%d", part, n)
			}
			for i := start; i <= end; i++ {
				chosen[i-1] = true
			}
		}
	}
	out := make([]int, 0, n)
	for i, ok := range chosen {
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

// WaitForAuthorization shows authURL and blocks until the user presses Enter.
func (p *Prompter) WaitForAuthorization(ctx context.Context, authURL string) error {
	p.printer.Infof("Please authorize evergit by visiting this URL:")
	p.printer.Content(authURL)
	_, err := p.Input(ctx, "Press Enter once you have completed the authorization in the browser.")
	return err
}

// Approve shows draft and asks whether to commit it.
func (p *Prompter) Approve(ctx context.Context, draft string) (bool, error) {
	p.printer.Infof("Commit message:")
	p.printer.Content(draft)
	return p.Confirm(ctx, "Do you want to commit with this message?", true)
}

// Feedback asks whether to try again and, if so, for the feedback text.
// Declining returns an empty string.
func (p *Prompter) Feedback(ctx context.Context) (string, error) {
	again, err := p.Confirm(ctx, "Would you like to provide feedback on the commit message and try again?", false)
	if err != nil || !again {
		return "", err
	}
	return p.Input(ctx, "Please provide feedback:")
}
