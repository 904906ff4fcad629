package prompt

import (
	"strings"
	"text/template"
)

// Input is everything the user prompt is built from.
type Input struct {
	Name  string
	Email string

	// BugNumber is empty when no bug is referenced.
	BugNumber string
	// Tracker names the bug source, e.g. "Launchpad" or "GitHub".
	Tracker string
	// BugBlock is the rendered bug context.
	BugBlock string

	Diff string
}

// Round is one rejected draft and the feedback that rejected it.
type Round struct {
	Draft    string
	Feedback string
}

var userTemplate = template.Must(template.New("user").Parse(
	`Author: {{.Name}} <{{.Email}}>
{{- if .BugNumber}}

{{with .Tracker}}{{.}} {{end}}Bug Number: {{.BugNumber}}
{{- if .BugBlock}}

Bug Context:
{{.BugBlock}}
{{- end}}
{{- end}}

Diff:
{{.Diff}}`))

const feedbackText = `{{.Base}}
{{range $i, $r := .Rounds}}
Previous commit message (attempt {{inc $i}}):
{{$r.Draft}}

Feedback on attempt {{inc $i}}:
{{$r.Feedback}}
{{end}}
Write a new commit message that addresses all of the feedback above. Output the commit message only.`

var feedbackTemplate = template.Must(template.New("feedback").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(feedbackText))

// BuildUserPrompt renders the identity line, the optional bug number and
// bug block, then the diff, in that order.
func BuildUserPrompt(in Input) string {
	return render(userTemplate, in)
}

// WithFeedback appends every prior draft and its feedback to base. With no
// rounds base is returned unchanged.
func WithFeedback(base string, rounds []Round) string {
	if len(rounds) == 0 {
		return base
	}
	return render(feedbackTemplate, map[string]any{"Base": base, "Rounds": rounds})
}

func render(t *template.Template, data any) string {
	var sb strings.Builder
	_ = t.Execute(&sb, data)
	return sb.String()
}
