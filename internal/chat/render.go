package chat

import "strings"

// RenderDialogue flattens messages into alternating "user:"/"assistant:"
// lines for prompts that take the conversation as plain text. Anything that
// is not a user message renders under the assistant label.
func RenderDialogue(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		label := RoleAssistant
		if m.Role == RoleUser {
			label = RoleUser
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
