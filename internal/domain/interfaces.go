package domain

import (
	"context"
	"errors"
	"time"
)

// UserRepo управляет документами пользователей.
type UserRepo interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, userID string) (User, error)
	GetUserByTGID(ctx context.Context, tgUserID int64) (User, error)
	UpdateBasicInfo(ctx context.Context, userID string, info BasicInfo) error
	UpdatePreferences(ctx context.Context, userID string, prefs Preferences) error
	UpdateStats(ctx context.Context, userID string, stats Stats) error
	// AdjustChaptersCreated атомарно меняет счётчик глав (не ниже нуля) и возвращает новое значение.
	AdjustChaptersCreated(ctx context.Context, userID string, delta int) (int, error)
}

// PlacesMutation изменяет массив мест главы целиком.
type PlacesMutation func(places []Place) ([]Place, error)

// ChapterRepo управляет главами пользователя.
type ChapterRepo interface {
	CreateChapter(ctx context.Context, chapter Chapter) (Chapter, error)
	GetChapter(ctx context.Context, userID, chapterID string) (Chapter, error)
	ListChapters(ctx context.Context, userID string) ([]Chapter, error)
	DeleteChapter(ctx context.Context, userID, chapterID string) error
	// MutatePlaces читает массив мест, применяет mutate и записывает массив целиком.
	MutatePlaces(ctx context.Context, userID, chapterID string, mutate PlacesMutation) (Chapter, error)
}

// TaskRequest: входные данные для генерации мест.
type TaskRequest struct {
	City        string      `json:"city"`
	Country     string      `json:"country,omitempty"`
	Preferences Preferences `json:"preferences"`
}

// TaskGenerator предлагает места для города. Может вернуть ошибку: вызывающий
// код обязан откатиться на запасной список.
type TaskGenerator interface {
	GenerateTasks(ctx context.Context, req TaskRequest) ([]GeneratedPlace, error)
}

// TaskSuggester всегда возвращает список мест, при сбоях: запасной.
type TaskSuggester interface {
	Suggest(ctx context.Context, req TaskRequest) []GeneratedPlace
}

// TextGenerator: генеративная модель для свободного текста.
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// TextRequest описывает запрос к генеративной модели.
type TextRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int32
	Image       []byte
	ImageMIME   string
}

// Translator переводит текст между языками.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// ErrCacheMiss возвращается, если ключ отсутствует в кэше.
var ErrCacheMiss = errors.New("cache miss")

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
