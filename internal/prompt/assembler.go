package prompt

import "strings"

// Role values used in chat-completion message lists.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in an ordered chat-completion message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const memoryPreamble = "Things you remember about this person and past conversations:"

// Assemble builds the per-turn message list: one persona system message,
// an optional memory summary, the bounded recent history oldest-first, and
// the current user input last. Deterministic for identical inputs.
func Assemble(persona string, memories []string, history []Message, input string) []Message {
	out := make([]Message, 0, len(history)+3)
	out = append(out, Message{Role: RoleSystem, Content: persona})

	if summary := summarizeMemories(memories); summary != "" {
		out = append(out, Message{Role: RoleSystem, Content: summary})
	}

	out = append(out, history...)
	out = append(out, Message{Role: RoleUser, Content: input})
	return out
}

// summarizeMemories joins retrieved snippets into one system message body.
// Empty or whitespace-only snippets are dropped; no memories means no
// message at all, never an empty-content one.
func summarizeMemories(memories []string) string {
	kept := make([]string, 0, len(memories))
	for _, m := range memories {
		m = strings.TrimSpace(m)
		if m != "" {
			kept = append(kept, "- "+m)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return memoryPreamble + "\n" + strings.Join(kept, "\n")
}

// HasSystemMessage reports whether any message in the list carries the
// system role.
func HasSystemMessage(messages []Message) bool {
	for _, m := range messages {
		if m.Role == RoleSystem {
			return true
		}
	}
	return false
}
