package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PromptTemplate holds the instructions sent to the text-generation service.
// {{BOT}}, {{CHANNEL}} and {{MESSAGE}} are substituted when a prompt is built.
type PromptTemplate struct {
	ChannelInstruction string
	DirectInstruction  string
	SmartReply         string
}

// DefaultPromptTemplate returns the default prompt template
func DefaultPromptTemplate() PromptTemplate {
	return PromptTemplate{
		ChannelInstruction: `You are a helpful and creative chat bot named {{BOT}} in a chat room called "{{CHANNEL}}". Keep your responses concise and conversational.`,

		DirectInstruction: `You are a helpful and creative chat bot named {{BOT}} in a private conversation. Keep your responses concise and conversational.`,

		SmartReply: `Based on the last message, suggest three concise, relevant, and distinct smart replies for a user in a chat application. The last message is: "{{MESSAGE}}". Return the suggestions as a JSON array of strings. For example: ["Got it!", "Thanks!", "I'll check it out."].`,
	}
}

// MaxSuggestions is the number of smart replies kept from a response
const MaxSuggestions = 3

// PromptBuilder builds prompts for the bot and the smart reply advisor
type PromptBuilder struct {
	template PromptTemplate
	botName  string
}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder(botName string, template ...PromptTemplate) *PromptBuilder {
	tmpl := DefaultPromptTemplate()
	if len(template) > 0 {
		tmpl = template[0]
	}

	return &PromptBuilder{
		template: tmpl,
		botName:  botName,
	}
}

// SystemInstruction builds the instruction a bot session is opened with
func (b *PromptBuilder) SystemInstruction(conv Conversation) string {
	instruction := b.template.DirectInstruction
	if conv.IsChannel() {
		instruction = strings.Replace(b.template.ChannelInstruction, "{{CHANNEL}}", conv.Name(), 1)
	}
	return strings.Replace(instruction, "{{BOT}}", b.botName, 1)
}

// SmartReplyPrompt builds the one-shot prompt asking for reply suggestions
func (b *PromptBuilder) SmartReplyPrompt(lastMessage string) string {
	return strings.Replace(b.template.SmartReply, "{{MESSAGE}}", lastMessage, 1)
}

// ParseSuggestions extracts the reply list from a model response. Markdown
// code fences around the JSON array are tolerated.
func ParseSuggestions(response string) ([]string, error) {
	cleaned := strings.ReplaceAll(response, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var items []any
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions: %w", err)
	}

	// Entries that are not strings are skipped
	suggestions := make([]string, 0, len(items))
	for _, item := range items {
		if text, ok := item.(string); ok {
			suggestions = append(suggestions, text)
		}
	}
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	return suggestions, nil
}
