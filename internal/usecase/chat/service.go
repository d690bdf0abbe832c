package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"sarthi/internal/adapters/generator"
	"sarthi/internal/domain"
)

const (
	chatTemperature = 0.7
	chatMaxTokens   = 1800
)

// ErrTranslation: сбой перевода запроса или ответа.
var ErrTranslation = errors.New("translation failed")

// ErrModelUnavailable: генеративная модель не настроена или вернула ошибку.
var ErrModelUnavailable = errors.New("chat model unavailable")

// Service ведёт мультиязычный диалог: перевод на английский, ответ модели, обратный перевод.
type Service struct {
	translator domain.Translator
	model      domain.TextGenerator
	log        zerolog.Logger
}

// NewService создаёт сервис чата.
func NewService(translator domain.Translator, model domain.TextGenerator, logger zerolog.Logger) *Service {
	return &Service{translator: translator, model: model, log: logger.With().Str("component", "chat").Logger()}
}

// Input: реплика пользователя.
type Input struct {
	UserLanguage string
	Message      string
	// Cities: города глав пользователя для контекста.
	Cities []string
}

// Reply: ответ ассистента на языке пользователя.
type Reply struct {
	UserLanguage string `json:"user_language"`
	UserMessage  string `json:"user_message"`
	AIResponse   string `json:"ai_response"`
}

// Chat обрабатывает реплику.
func (s *Service) Chat(ctx context.Context, in Input) (Reply, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return Reply{}, domain.Validationf("Message is required")
	}
	lang := strings.ToLower(strings.TrimSpace(in.UserLanguage))
	if lang == "" {
		lang = "en"
	}

	englishText := message
	if lang != "en" {
		translated, err := s.translate(ctx, message, lang, "en")
		if err != nil {
			return Reply{}, err
		}
		englishText = translated
	}

	if s.model == nil {
		return Reply{}, ErrModelUnavailable
	}
	answer, err := s.model.GenerateText(ctx, domain.TextRequest{
		System:      generator.ChatSystemPrompt,
		Prompt:      generator.BuildChatPrompt(generator.BuildChatContext(in.Cities), englishText),
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("chat: модель не ответила")
		return Reply{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	if lang != "en" {
		answer, err = s.translate(ctx, answer, "en", lang)
		if err != nil {
			return Reply{}, err
		}
	}
	return Reply{UserLanguage: lang, UserMessage: in.Message, AIResponse: answer}, nil
}

func (s *Service) translate(ctx context.Context, text, src, dst string) (string, error) {
	if s.translator == nil {
		return "", fmt.Errorf("%w: Translation %s→%s failed: translator not configured", ErrTranslation, src, dst)
	}
	out, err := s.translator.Translate(ctx, text, src, dst)
	if err != nil {
		s.log.Warn().Err(err).Str("from", src).Str("to", dst).Msg("chat: перевод не удался")
		return "", fmt.Errorf("%w: Translation %s→%s failed: %w", ErrTranslation, src, dst, err)
	}
	return out, nil
}
