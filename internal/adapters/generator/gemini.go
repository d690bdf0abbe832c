package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
)

// Gemini генерирует задачи и ответы чата через Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

var (
	_ domain.TaskGenerator = (*Gemini)(nil)
	_ domain.TextGenerator = (*Gemini)(nil)
)

// NewGemini создаёт клиента Gemini.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, logger zerolog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is empty")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
		log:     logger.With().Str("component", "gemini").Logger(),
		now:     time.Now,
	}, nil
}

// GenerateTasks запрашивает рекомендации мест. Thinking отключён ради скорости.
func (g *Gemini) GenerateTasks(ctx context.Context, req domain.TaskRequest) ([]domain.GeneratedPlace, error) {
	content, err := g.generate(ctx, "generate_tasks", genai.Text(BuildTaskPrompt(req)), &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	})
	if err != nil {
		return nil, err
	}
	g.log.Debug().Str("city", req.City).Int("chars", len(content)).Msg("gemini: получен ответ с задачами")
	return ParseTasks(content, req.City, g.now())
}

// GenerateText отвечает на свободный запрос, при наличии картинки: мультимодально.
func (g *Gemini) GenerateText(ctx context.Context, req domain.TextRequest) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image, mime))
	}
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	content, err := g.generate(ctx, "generate_text", []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (g *Gemini) generate(ctx context.Context, op string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	metrics.ObserveNetworkRequest("gemini", op, g.model, start, err)
	if err != nil {
		return "", fmt.Errorf("gemini: %s: %w", op, err)
	}
	if usage := resp.UsageMetadata; usage != nil {
		metrics.ObserveLLMGeneration(g.model, time.Since(start), int(usage.PromptTokenCount), int(usage.CandidatesTokenCount), int(usage.TotalTokenCount))
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
