package tasks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
)

// Service подбирает места для города: кэш, затем генератор, затем запасной список.
type Service struct {
	generator domain.TaskGenerator
	cache     domain.Cache
	ttl       time.Duration
	log       zerolog.Logger
}

var _ domain.TaskSuggester = (*Service)(nil)

// NewService создаёт сервис. generator и cache могут быть nil.
func NewService(generator domain.TaskGenerator, cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		generator: generator,
		cache:     cache,
		ttl:       ttl,
		log:       logger.With().Str("component", "tasks").Logger(),
	}
}

// Generate проверяет запрос и возвращает предложения. Ошибка бывает только у невалидного запроса.
func (s *Service) Generate(ctx context.Context, req domain.TaskRequest) ([]domain.GeneratedPlace, error) {
	req.City = strings.TrimSpace(req.City)
	req.Country = strings.TrimSpace(req.Country)
	if req.City == "" {
		return nil, domain.Validationf("City is required")
	}
	if err := req.Preferences.Validate(); err != nil {
		return nil, domain.Validationf("Preferences are required")
	}
	return s.Suggest(ctx, req), nil
}

// Suggest всегда возвращает список мест. Сбои генератора и кэша только логируются.
func (s *Service) Suggest(ctx context.Context, req domain.TaskRequest) []domain.GeneratedPlace {
	key := cacheKey(req)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached
	}
	if s.generator == nil {
		s.log.Warn().Str("city", req.City).Msg("tasks: генератор не настроен, используем запасной список")
		metrics.TaskFallbackTotal.Inc()
		return Fallback(req.City)
	}

	start := time.Now()
	generated, err := s.generator.GenerateTasks(ctx, req)
	if err == nil && len(generated) == 0 {
		err = errors.New("generator returned no places")
	}
	if err != nil {
		s.log.Warn().Err(err).Str("city", req.City).Dur("duration", time.Since(start)).Msg("tasks: генерация не удалась, используем запасной список")
		metrics.TaskFallbackTotal.Inc()
		return Fallback(req.City)
	}
	s.log.Info().Str("city", req.City).Int("places", len(generated)).Dur("duration", time.Since(start)).Msg("tasks: места сгенерированы")
	s.toCache(ctx, key, generated)
	return generated
}

func (s *Service) fromCache(ctx context.Context, key string) ([]domain.GeneratedPlace, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.log.Warn().Err(err).Msg("tasks: ошибка чтения кэша")
		}
		return nil, false
	}
	var places []domain.GeneratedPlace
	if err := json.Unmarshal(data, &places); err != nil || len(places) == 0 {
		return nil, false
	}
	return places, true
}

func (s *Service) toCache(ctx context.Context, key string, places []domain.GeneratedPlace) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(places)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.log.Warn().Err(err).Msg("tasks: ошибка записи кэша")
	}
}

func cacheKey(req domain.TaskRequest) string {
	prefs := req.Preferences.Normalize()
	for i := range prefs.Interests {
		prefs.Interests[i] = strings.ToLower(prefs.Interests[i])
	}
	payload, _ := json.Marshal(struct {
		City    string             `json:"city"`
		Country string             `json:"country"`
		Prefs   domain.Preferences `json:"prefs"`
	}{strings.ToLower(req.City), strings.ToLower(req.Country), prefs})
	sum := sha256.Sum256(payload)
	return "tasks:" + hex.EncodeToString(sum[:16])
}
