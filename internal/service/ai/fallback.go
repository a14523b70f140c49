package ai

import (
	"context"
	"fmt"
	"krisbot/chat-api/internal/model"
	"strings"
)

// cannedReplies is scanned in order, the first keyword that's a substring
// of the (lower-cased, trimmed) latest user message wins.
var cannedReplies = []struct {
	keyword string
	reply   string
}{
	{"hello", "Hello! I'm Kris Bot. How can I help you today?"},
	{"hi", "Hi there! What can I do for you?"},
	{"help", "I'm here to help! You can ask me questions, have conversations, or upload files for analysis."},
	{"how are you", "I'm doing well, thank you for asking! How are you?"},
	{"what can you do", "I can chat with you, help answer questions, and process uploaded files. However, I need API keys configured to provide AI-powered responses."},
}

// Fallback answers deterministically when no real provider is configured.
// It only ever looks at the latest user message.
type Fallback struct{}

func (f *Fallback) Name() string { return "Fallback" }

func (f *Fallback) Complete(_ context.Context, messages []model.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	original := messages[len(messages)-1].Content
	lower := strings.ToLower(strings.TrimSpace(original))

	for _, c := range cannedReplies {
		if strings.Contains(lower, c.keyword) {
			return c.reply, nil
		}
	}

	return fmt.Sprintf("I received your message: '%s'. To provide intelligent responses, please configure OpenAI or Anthropic API keys in the environment variables.", original), nil
}
