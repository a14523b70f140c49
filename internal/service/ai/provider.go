// Package ai selects a chat completion provider and produces assistant
// replies. Providers form an ordered chain, the first configured one wins
// and a deterministic keyword fallback always sits at the end.
package ai

import (
	"context"
	"fmt"
	"krisbot/chat-api/internal/model"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Provider is one chat completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []model.Message) (string, error)
}

// Service walks its provider chain for every request.
type Service struct {
	providers []Provider
}

// NewService builds the provider chain from config, in strict priority
// order: OpenAI, Anthropic, then the fallback which is always present.
func NewService() *Service {
	var providers []Provider

	if key := viper.GetString("ai.openai_api_key"); key != "" {
		providers = append(providers, NewOpenAI(key))
	}

	if key := viper.GetString("ai.anthropic_api_key"); key != "" {
		providers = append(providers, &Anthropic{})
	}

	providers = append(providers, &Fallback{})

	return &Service{providers: providers}
}

// NewServiceWith builds a service over an explicit chain. Used in tests.
func NewServiceWith(providers ...Provider) *Service {
	return &Service{providers: append(providers, &Fallback{})}
}

// GetResponse produces one assistant reply for the conversation history
// plus the new user message. A provider failure is downgraded into a
// reply whose text is the error, it never fails the request.
func (s *Service) GetResponse(ctx context.Context, history []model.Message, message string) string {
	messages := make([]model.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, model.Message{Role: model.RoleUser, Content: message})

	p := s.providers[0]

	reply, err := p.Complete(ctx, messages)
	if err != nil {
		zap.L().Warn("Provider call failed", zap.String("provider", p.Name()), zap.Error(err))
		return fmt.Sprintf("Error with %s API: %v", p.Name(), err)
	}

	return reply
}
