package tracker

import (
	"regexp"
	"strings"
)

var (
	reInvisible    = regexp.MustCompile("[\u200B\u200C\u200D\uFEFF\u00AD]")
	reControl      = regexp.MustCompile("[\u0000-\u0008\u000B\u000C\u000E-\u001F\u007F-\u009F]")
	reBidi         = regexp.MustCompile("[\u202A-\u202E\u2066-\u2069]")
	reHTMLComments = regexp.MustCompile(`<!--[\s\S]*?-->`)
	reBlankRuns    = regexp.MustCompile(`\n{3,}`)

	secretPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bgh[posr]_[A-Za-z0-9]{36}\b`),
		regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{11,221}\b`),
		regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}\b`),
		regexp.MustCompile(`(?i)\boauth_token_secret=[^&\s]+`),
	}
)

// StripHTMLComments removes HTML comments.
func StripHTMLComments(s string) string {
	return reHTMLComments.ReplaceAllString(s, "")
}

// StripInvisibleCharacters removes zero-width, soft hyphen, control and
// bidi override characters. Tabs and newlines are kept.
func StripInvisibleCharacters(s string) string {
	s = reInvisible.ReplaceAllString(s, "")
	s = reControl.ReplaceAllString(s, "")
	return reBidi.ReplaceAllString(s, "")
}

// RedactSecrets censors token-like strings before they reach a prompt.
func RedactSecrets(s string) string {
	for _, re := range secretPatterns {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// Sanitize cleans remote text before it is placed in a prompt.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = StripHTMLComments(s)
	s = StripInvisibleCharacters(s)
	s = RedactSecrets(s)
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
