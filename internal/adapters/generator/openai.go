package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sarthi/internal/domain"
	"sarthi/internal/infra/openai"
)

// OpenAI генерирует задачи через Chat Completions совместимый API.
type OpenAI struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

var (
	_ domain.TaskGenerator = (*OpenAI)(nil)
	_ domain.TextGenerator = (*OpenAI)(nil)
)

// NewOpenAI создаёт генератор поверх клиента OpenAI.
func NewOpenAI(client *openai.Client, model string) *OpenAI {
	return &OpenAI{client: client, model: model, now: time.Now}
}

// GenerateTasks запрашивает рекомендации мест в формате json_object.
func (o *OpenAI) GenerateTasks(ctx context.Context, req domain.TaskRequest) ([]domain.GeneratedPlace, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          o.model,
		Messages:       []openai.ChatMessage{openai.TextMessage(openai.RoleUser, BuildTaskPrompt(req))},
		Temperature:    0.7,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, err
	}
	content, err := firstChoice(resp)
	if err != nil {
		return nil, err
	}
	return ParseTasks(content, req.City, o.now())
}

// GenerateText отвечает на свободный запрос.
func (o *OpenAI) GenerateText(ctx context.Context, req domain.TextRequest) (string, error) {
	messages := make([]openai.ChatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.TextMessage(openai.RoleSystem, req.System))
	}
	if len(req.Image) > 0 {
		messages = append(messages, openai.ImageMessage(req.Prompt, req.Image, req.ImageMIME))
	} else {
		messages = append(messages, openai.TextMessage(openai.RoleUser, req.Prompt))
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: float64(req.Temperature),
		MaxTokens:   int(req.MaxTokens),
	})
	if err != nil {
		return "", err
	}
	content, err := firstChoice(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	content := resp.Choices[0].Message.Text()
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return content, nil
}
