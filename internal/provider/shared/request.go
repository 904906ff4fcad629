package shared

// CompletionRequest is a single-turn completion call. It is built fresh for
// every call and never mutated.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
}

// ChatMessage is the role/content pair sent to chat endpoints.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Messages returns the system + user message pair for req.
func (r CompletionRequest) Messages() []ChatMessage {
	return []ChatMessage{
		{Role: "system", Content: r.SystemPrompt},
		{Role: "user", Content: r.UserPrompt},
	}
}

// TruncateString truncates a string for logging.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
