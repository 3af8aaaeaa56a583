package activity

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
)

// Chat maps a debate transcript to its display form. AI turns become
// "assistant" and every message carries its Markdown rendered as HTML.
func Chat(msgs []DebateMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == RoleAI {
			role = "assistant"
		}
		out = append(out, ChatMessage{
			Role:    role,
			Content: m.Content,
			HTML:    renderMarkdown(m.Content),
		})
	}
	return out
}

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the input is not passed through.
func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return html.EscapeString(md)
	}
	return buf.String()
}
