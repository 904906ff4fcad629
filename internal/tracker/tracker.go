// Package tracker fetches issue context used to enrich commit prompts.
package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Bug is the issue context attached to a prompt.
type Bug struct {
	ID          string
	Title       string
	Description string
	Messages    []Message
}

// Message is one comment on a bug, in remote listing order.
type Message struct {
	Author  string
	Subject string
	Body    string
}

// Tracker fetches a bug by identifier. A failure is returned as an error;
// callers never receive partial context.
type Tracker interface {
	Name() string
	FetchBug(ctx context.Context, id string) (*Bug, error)
}

// ParseBugNumber accepts "42" or "#42" and returns the positive integer.
func ParseBugNumber(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid bug number %q", s)
	}
	return n, nil
}

// Render formats bug as a prompt block. Output depends only on bug.
func Render(bug *Bug) string {
	if bug == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Bug #%s: %s\n", bug.ID, Sanitize(bug.Title))
	if desc := Sanitize(bug.Description); desc != "" {
		b.WriteString("\nDescription:\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	if len(bug.Messages) > 0 {
		b.WriteString("\nMessages:\n")
		for i, m := range bug.Messages {
			fmt.Fprintf(&b, "\n[%d] %s", i+1, m.Author)
			if subject := Sanitize(m.Subject); subject != "" {
				fmt.Fprintf(&b, ": %s", subject)
			}
			b.WriteString("\n")
			if body := Sanitize(m.Body); body != "" {
				b.WriteString(body)
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
