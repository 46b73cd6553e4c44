package providers

import (
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/chaicafe/modelgate/internal/shared/models"
)

const (
	exampleMarker = "[Example Chat]"
	startMarker   = "[Start a new Chat]"
)

// systemParts returns the ordered non-empty blocks of the system
// context: instruction, description, personality, scenario, then the
// example exchange bracketed by its marker, then the closing marker.
func systemParts(sc SystemContext) []string {
	parts := make([]string, 0, 7)
	for _, p := range []string{sc.Instruction, sc.Description, sc.Personality, sc.Scenario} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if sc.ExampleExchange != "" {
		parts = append(parts, exampleMarker, sc.ExampleExchange)
	}
	parts = append(parts, startMarker)
	return parts
}

// systemBlock joins the system parts with blank lines for chat-style
// backends.
func systemBlock(sc SystemContext) string {
	return strings.Join(systemParts(sc), "\n\n")
}

// chatMessages builds the OpenAI-protocol message sequence: system
// block, rolling history with "character" mapped to "assistant", then
// the new user turn.
func chatMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemBlock(req.System),
	})
	for _, m := range req.History {
		role := openai.ChatMessageRoleAssistant
		if m.Role == RoleUser {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
	return msgs
}

// normalizeUsage fills the usage triple, deriving the total from
// input+output when the backend omits it.
func normalizeUsage(prompt, completion, total int) models.Usage {
	if total == 0 {
		total = prompt + completion
	}
	return models.Usage{
		InputTokens:  prompt,
		OutputTokens: completion,
		TotalTokens:  total,
	}
}
