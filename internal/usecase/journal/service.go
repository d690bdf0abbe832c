package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
)

// Service управляет главами, местами и прогрессом пользователя.
type Service struct {
	users    domain.UserRepo
	chapters domain.ChapterRepo
	tasks    domain.TaskSuggester
	events   domain.EventQueue
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// Option настраивает сервис.
type Option func(*Service)

// WithEvents включает публикацию событий прогресса.
func WithEvents(queue domain.EventQueue) Option {
	return func(s *Service) { s.events = queue }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator подменяет генератор идентификаторов глав.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService создаёт сервис журнала.
func NewService(users domain.UserRepo, chapters domain.ChapterRepo, tasks domain.TaskSuggester, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		chapters: chapters,
		tasks:    tasks,
		log:      logger.With().Str("component", "journal").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnboardInput: данные первичной регистрации.
type OnboardInput struct {
	UserID      string
	TGUserID    *int64
	BasicInfo   domain.BasicInfo
	Preferences domain.Preferences
}

// Onboard создаёт пользователя с нулевой статистикой.
func (s *Service) Onboard(ctx context.Context, in OnboardInput) (domain.User, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return domain.User{}, domain.Validationf("user id is required")
	}
	if err := in.BasicInfo.Validate(); err != nil {
		return domain.User{}, err
	}
	prefs := in.Preferences.Normalize()
	if err := prefs.Validate(); err != nil {
		return domain.User{}, err
	}
	now := s.now().UTC()
	user, err := s.users.CreateUser(ctx, domain.User{
		ID:          userID,
		TGUserID:    in.TGUserID,
		BasicInfo:   in.BasicInfo,
		Preferences: prefs,
		Stats:       domain.Stats{Tier: domain.TierWanderer},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return domain.User{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("создание пользователя: %w", err)
	}
	s.publish(ctx, domain.ProgressEvent{Type: domain.EventUserOnboarded, UserID: user.ID, Tier: user.Stats.Tier})
	return user, nil
}

// GetProfile возвращает пользователя со всеми главами. Ранг выводится из XP при чтении.
func (s *Service) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	user, chapters, err := s.load(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{User: user, Chapters: chapters}, nil
}

// GetChapter возвращает главу пользователя.
func (s *Service) GetChapter(ctx context.Context, userID, chapterID string) (domain.Chapter, error) {
	return s.chapters.GetChapter(ctx, userID, chapterID)
}

// ListChapters возвращает главы пользователя.
func (s *Service) ListChapters(ctx context.Context, userID string) ([]domain.Chapter, error) {
	return s.chapters.ListChapters(ctx, userID)
}

// UpdatePreferences перезаписывает предпочтения.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, prefs domain.Preferences) (domain.Preferences, error) {
	prefs = prefs.Normalize()
	if err := prefs.Validate(); err != nil {
		return domain.Preferences{}, err
	}
	if err := s.users.UpdatePreferences(ctx, userID, prefs); err != nil {
		return domain.Preferences{}, err
	}
	return prefs, nil
}

// UpdateBasicInfo перезаписывает анкету.
func (s *Service) UpdateBasicInfo(ctx context.Context, userID string, info domain.BasicInfo) (domain.BasicInfo, error) {
	info.Name = strings.TrimSpace(info.Name)
	info.Email = strings.TrimSpace(info.Email)
	if err := info.Validate(); err != nil {
		return domain.BasicInfo{}, err
	}
	if err := s.users.UpdateBasicInfo(ctx, userID, info); err != nil {
		return domain.BasicInfo{}, err
	}
	return info, nil
}

// CreateChapterInput: параметры новой главы.
type CreateChapterInput struct {
	City        string
	Country     *string
	Description *string
}

// ChapterResult: глава и обновлённая статистика пользователя.
type ChapterResult struct {
	Chapter domain.Chapter `json:"chapter"`
	Stats   domain.Stats   `json:"stats"`
}

// CreateChapter создаёт главу с предложенными местами. Сбой генерации не прерывает создание.
func (s *Service) CreateChapter(ctx context.Context, userID string, in CreateChapterInput) (ChapterResult, error) {
	city := strings.TrimSpace(in.City)
	if city == "" {
		return ChapterResult{}, domain.Validationf("city is required")
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return ChapterResult{}, err
	}

	req := domain.TaskRequest{City: city, Preferences: user.Preferences}
	if in.Country != nil {
		req.Country = strings.TrimSpace(*in.Country)
	}
	suggestions := s.tasks.Suggest(ctx, req)

	chapter := domain.Chapter{
		ID:          s.newID(),
		UserID:      userID,
		City:        city,
		Country:     trimmed(in.Country),
		Description: trimmed(in.Description),
		Places:      placesFromSuggestions(suggestions),
		CreatedAt:   s.now().UTC(),
	}
	created, err := s.chapters.CreateChapter(ctx, chapter)
	if err != nil {
		return ChapterResult{}, fmt.Errorf("сохранение главы: %w", err)
	}
	if _, err := s.users.AdjustChaptersCreated(ctx, userID, 1); err != nil {
		return ChapterResult{}, fmt.Errorf("счётчик глав: %w", err)
	}
	_, stats, err := s.recomputeStats(ctx, userID)
	if err != nil {
		return ChapterResult{}, err
	}
	s.log.Info().Str("user_id", userID).Str("chapter_id", created.ID).Int("places", len(created.Places)).Msg("journal: глава создана")
	s.publish(ctx, domain.ProgressEvent{Type: domain.EventChapterCreated, UserID: userID, ChapterID: created.ID, XP: stats.XP, Tier: stats.Tier})
	return ChapterResult{Chapter: created, Stats: stats}, nil
}

// DeleteChapter удаляет главу и уменьшает счётчик (не ниже нуля).
func (s *Service) DeleteChapter(ctx context.Context, userID, chapterID string) (domain.Stats, error) {
	if err := s.chapters.DeleteChapter(ctx, userID, chapterID); err != nil {
		return domain.Stats{}, err
	}
	if _, err := s.users.AdjustChaptersCreated(ctx, userID, -1); err != nil {
		return domain.Stats{}, fmt.Errorf("счётчик глав: %w", err)
	}
	prev, stats, err := s.recomputeStats(ctx, userID)
	if err != nil {
		return domain.Stats{}, err
	}
	s.publish(ctx, domain.ProgressEvent{Type: domain.EventChapterDeleted, UserID: userID, ChapterID: chapterID, XP: stats.XP, Tier: stats.Tier})
	s.publishTierChange(ctx, userID, chapterID, prev, stats)
	return stats, nil
}

// ToggleResult: результат переключения статуса места.
type ToggleResult struct {
	Chapter domain.Chapter `json:"chapter"`
	Place   domain.Place   `json:"place"`
	Stats   domain.Stats   `json:"stats"`
}

// TogglePlace переключает место pending⇄done и пересчитывает прогресс.
func (s *Service) TogglePlace(ctx context.Context, userID, chapterID, placeID string) (ToggleResult, error) {
	var toggled domain.Place
	chapter, err := s.chapters.MutatePlaces(ctx, userID, chapterID, func(places []domain.Place) ([]domain.Place, error) {
		for i := range places {
			if places[i].PlaceID != placeID {
				continue
			}
			places[i] = places[i].Toggle(s.now())
			toggled = places[i]
			return places, nil
		}
		return nil, domain.NotFoundf("place %s in chapter %s", placeID, chapterID)
	})
	if err != nil {
		return ToggleResult{}, err
	}
	metrics.PlaceTogglesTotal.WithLabelValues(string(toggled.Status)).Inc()

	prev, stats, err := s.recomputeStats(ctx, userID)
	if err != nil {
		return ToggleResult{}, err
	}

	eventType := domain.EventPlaceReopened
	if toggled.Done() {
		eventType = domain.EventPlaceCompleted
	}
	s.publish(ctx, domain.ProgressEvent{
		Type:      eventType,
		UserID:    userID,
		ChapterID: chapterID,
		PlaceID:   placeID,
		XP:        domain.PlaceXP(toggled),
		Tier:      stats.Tier,
	})
	s.publishTierChange(ctx, userID, chapterID, prev, stats)
	return ToggleResult{Chapter: chapter, Place: toggled, Stats: stats}, nil
}

// AddPlace добавляет место в главу. place_id должен быть уникален внутри главы.
func (s *Service) AddPlace(ctx context.Context, userID, chapterID string, place domain.Place) (ChapterResult, error) {
	place.Name = strings.TrimSpace(place.Name)
	if err := place.Validate(); err != nil {
		return ChapterResult{}, err
	}
	place.PlaceID = strings.TrimSpace(place.PlaceID)
	if place.PlaceID == "" {
		id := strings.ReplaceAll(s.newID(), "-", "")
		if len(id) > 12 {
			id = id[:12]
		}
		place.PlaceID = "custom_" + id
	}
	if strings.TrimSpace(place.Type) == "" {
		place.Type = "Attraction"
	}
	if !(place.Done() && place.VisitedOn != nil) {
		place.Status = domain.PlaceStatusPending
		place.VisitedOn = nil
	}

	chapter, err := s.chapters.MutatePlaces(ctx, userID, chapterID, func(places []domain.Place) ([]domain.Place, error) {
		for _, existing := range places {
			if existing.PlaceID == place.PlaceID {
				return nil, domain.Validationf("place %s already exists in chapter", place.PlaceID)
			}
		}
		return append(places, place), nil
	})
	if err != nil {
		return ChapterResult{}, err
	}
	prev, stats, err := s.recomputeStats(ctx, userID)
	if err != nil {
		return ChapterResult{}, err
	}
	if place.Done() {
		s.publish(ctx, domain.ProgressEvent{Type: domain.EventPlaceCompleted, UserID: userID, ChapterID: chapterID, PlaceID: place.PlaceID, XP: domain.PlaceXP(place), Tier: stats.Tier})
	}
	s.publishTierChange(ctx, userID, chapterID, prev, stats)
	return ChapterResult{Chapter: chapter, Stats: stats}, nil
}

// RemovePlace удаляет место из главы.
func (s *Service) RemovePlace(ctx context.Context, userID, chapterID, placeID string) (ChapterResult, error) {
	chapter, err := s.chapters.MutatePlaces(ctx, userID, chapterID, func(places []domain.Place) ([]domain.Place, error) {
		for i := range places {
			if places[i].PlaceID == placeID {
				return append(places[:i:i], places[i+1:]...), nil
			}
		}
		return nil, domain.NotFoundf("place %s in chapter %s", placeID, chapterID)
	})
	if err != nil {
		return ChapterResult{}, err
	}
	prev, stats, err := s.recomputeStats(ctx, userID)
	if err != nil {
		return ChapterResult{}, err
	}
	s.publishTierChange(ctx, userID, chapterID, prev, stats)
	return ChapterResult{Chapter: chapter, Stats: stats}, nil
}

func (s *Service) load(ctx context.Context, userID string) (domain.User, []domain.Chapter, error) {
	var (
		user     domain.User
		chapters []domain.Chapter
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.users.GetUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		chapters, err = s.chapters.ListChapters(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.User{}, nil, err
	}
	user.Stats = user.Stats.WithDerivedTier()
	return user, chapters, nil
}

// recomputeStats пересчитывает агрегат по всем главам и сохраняет его. Возвращает прежнюю и новую статистику.
func (s *Service) recomputeStats(ctx context.Context, userID string) (domain.Stats, domain.Stats, error) {
	user, chapters, err := s.load(ctx, userID)
	if err != nil {
		return domain.Stats{}, domain.Stats{}, fmt.Errorf("загрузка прогресса: %w", err)
	}
	stats := domain.ComputeStats(chapters, user.Stats.ChaptersCreated)
	if err := s.users.UpdateStats(ctx, userID, stats); err != nil {
		return domain.Stats{}, domain.Stats{}, fmt.Errorf("сохранение прогресса: %w", err)
	}
	return user.Stats, stats, nil
}

func (s *Service) publishTierChange(ctx context.Context, userID, chapterID string, prev, next domain.Stats) {
	if prev.Tier == next.Tier {
		return
	}
	metrics.TierPromotionsTotal.WithLabelValues(string(next.Tier)).Inc()
	s.log.Info().Str("user_id", userID).Str("from", string(prev.Tier)).Str("to", string(next.Tier)).Msg("journal: ранг изменился")
	s.publish(ctx, domain.ProgressEvent{
		Type:      domain.EventTierChanged,
		UserID:    userID,
		ChapterID: chapterID,
		XP:        next.XP,
		Tier:      next.Tier,
		PrevTier:  prev.Tier,
	})
}

// publish не влияет на результат операции: прогресс уже сохранён.
func (s *Service) publish(ctx context.Context, event domain.ProgressEvent) {
	if s.events == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(event.Type)).Msg("journal: не удалось опубликовать событие")
	}
}

func placesFromSuggestions(suggestions []domain.GeneratedPlace) []domain.Place {
	places := make([]domain.Place, 0, len(suggestions))
	seen := make(map[string]struct{}, len(suggestions))
	for _, suggestion := range suggestions {
		place := suggestion.ToPlace()
		if _, ok := seen[place.PlaceID]; ok {
			base := place.PlaceID
			for n := 2; ; n++ {
				id := fmt.Sprintf("%s_%d", base, n)
				if _, taken := seen[id]; !taken {
					place.PlaceID = id
					break
				}
			}
		}
		seen[place.PlaceID] = struct{}{}
		places = append(places, place)
	}
	return places
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
