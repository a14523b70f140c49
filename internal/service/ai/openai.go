package ai

import (
	"context"
	"errors"
	"krisbot/chat-api/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI proxies the conversation to the OpenAI chat completion API.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  openai.GPT3Dot5Turbo,
	}
}

func (o *OpenAI) Name() string { return "OpenAI" }

// Complete sends the full message list, history included, in a single
// attempt. The caller resends the whole history every call so there is
// no state to keep here.
func (o *OpenAI) Complete(ctx context.Context, messages []model.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   1000,
		Temperature: 0.7,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}

	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}

	return resp.Choices[0].Message.Content, nil
}
