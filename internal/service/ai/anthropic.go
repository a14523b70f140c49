package ai

import (
	"context"
	"krisbot/chat-api/internal/model"
)

// Anthropic is a placeholder in the provider chain. It reports itself as
// configured but answers every request with a fixed notice instead of
// calling out. Kept explicit so a configured-but-unimplemented provider
// is a reply, never a crash.
type Anthropic struct{}

func (a *Anthropic) Name() string { return "Anthropic" }

func (a *Anthropic) Complete(_ context.Context, _ []model.Message) (string, error) {
	return "Anthropic integration not yet implemented. Please configure OpenAI API key.", nil
}
