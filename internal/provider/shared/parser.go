package shared

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ShapeMatcher recognizes one response envelope. It returns the extracted
// text and true on a structural match.
type ShapeMatcher struct {
	Name  string
	Match func(body []byte) (string, bool)
}

// ResponseShapes lists the envelopes self-hosted backends are known to return,
// in priority order. The first match wins.
var ResponseShapes = []ShapeMatcher{
	{Name: "openai-choices", Match: matchChoices},
	{Name: "message-content", Match: matchNonEmptyString("message.content")},
	{Name: "content", Match: matchContentField},
	{Name: "bare-string", Match: matchBareString},
}

// ExtractContent runs body through ResponseShapes and returns the trimmed
// content of the first match along with the matcher name.
func ExtractContent(body []byte) (content, shape string, ok bool) {
	for _, m := range ResponseShapes {
		if text, matched := m.Match(body); matched {
			return strings.TrimSpace(text), m.Name, true
		}
	}
	return "", "", false
}

func matchNonEmptyString(path string) func([]byte) (string, bool) {
	return func(body []byte) (string, bool) {
		if !isJSONObject(body) {
			return "", false
		}
		r := gjson.GetBytes(body, path)
		if r.Type != gjson.String || r.Str == "" {
			return "", false
		}
		return r.Str, true
	}
}

// matchChoices requires "choices" to be an array; gjson would otherwise
// resolve "choices.0" against an object key named "0".
func matchChoices(body []byte) (string, bool) {
	if !gjson.GetBytes(body, "choices").IsArray() {
		return "", false
	}
	return matchNonEmptyString("choices.0.message.content")(body)
}

// matchContentField accepts any string-typed top-level "content", including "".
func matchContentField(body []byte) (string, bool) {
	if !isJSONObject(body) {
		return "", false
	}
	r := gjson.GetBytes(body, "content")
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

// matchBareString accepts a JSON string literal or a non-empty body that is
// not JSON at all (plain text).
func matchBareString(body []byte) (string, bool) {
	if gjson.ValidBytes(body) {
		r := gjson.ParseBytes(body)
		if r.Type == gjson.String {
			return r.Str, true
		}
		return "", false
	}
	text := string(body)
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

func isJSONObject(body []byte) bool {
	return gjson.ValidBytes(body) && gjson.ParseBytes(body).IsObject()
}

// ExtractModelNames reads model identifiers from the first path that yields a
// JSON array, e.g. "models.#.name" or "data.#.id".
func ExtractModelNames(body []byte, paths ...string) ([]string, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	for _, path := range paths {
		arrayPath, field, _ := strings.Cut(path, ".#.")
		arr := gjson.GetBytes(body, arrayPath)
		if !arr.IsArray() {
			continue
		}
		names := make([]string, 0, len(arr.Array()))
		for _, item := range arr.Array() {
			if v := item.Get(field); v.Exists() && v.String() != "" {
				names = append(names, v.String())
			}
		}
		return names, true
	}
	return nil, false
}
