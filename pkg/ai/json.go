package ai

import "strings"

// StripCodeFence removes a surrounding ``` or ```json fence from a model
// reply. Text without a leading fence is returned trimmed.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExtractJSONObject returns the JSON object in a model reply: the fenced
// span from the first '{' to the last '}' after any fence is removed.
// Text with no braces is returned as is so the caller's decoder reports it.
func ExtractJSONObject(text string) string {
	text = StripCodeFence(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return text
	}
	return text[start : end+1]
}
