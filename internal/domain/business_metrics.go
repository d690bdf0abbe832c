package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *string
	ChapterID  *string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}

// ProgressEventType: тип события прогресса пользователя.
type ProgressEventType string

const (
	// EventUserOnboarded фиксирует завершение онбординга.
	EventUserOnboarded ProgressEventType = "user_onboarded"
	// EventChapterCreated фиксирует создание главы.
	EventChapterCreated ProgressEventType = "chapter_created"
	// EventChapterDeleted фиксирует удаление главы.
	EventChapterDeleted ProgressEventType = "chapter_deleted"
	// EventPlaceCompleted фиксирует отметку места как посещённого.
	EventPlaceCompleted ProgressEventType = "place_completed"
	// EventPlaceReopened фиксирует снятие отметки.
	EventPlaceReopened ProgressEventType = "place_reopened"
	// EventTierChanged фиксирует смену ранга.
	EventTierChanged ProgressEventType = "tier_changed"
)

// ProgressEvent публикуется в очередь после изменения прогресса.
type ProgressEvent struct {
	ID         string            `json:"event_id"`
	Type       ProgressEventType `json:"type"`
	UserID     string            `json:"user_id"`
	ChapterID  string            `json:"chapter_id,omitempty"`
	PlaceID    string            `json:"place_id,omitempty"`
	XP         int               `json:"xp"`
	Tier       Tier              `json:"tier,omitempty"`
	PrevTier   Tier              `json:"prev_tier,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	// Attempts считает неудачные обработки события.
	Attempts int `json:"attempts,omitempty"`
}

// AsBusinessMetric превращает событие в запись для аналитики.
func (e ProgressEvent) AsBusinessMetric() BusinessMetric {
	metric := BusinessMetric{
		Event:      string(e.Type),
		OccurredAt: e.OccurredAt,
		Metadata:   map[string]any{"event_id": e.ID, "xp": e.XP},
	}
	if e.UserID != "" {
		id := e.UserID
		metric.UserID = &id
	}
	if e.ChapterID != "" {
		id := e.ChapterID
		metric.ChapterID = &id
	}
	if e.PlaceID != "" {
		metric.Metadata["place_id"] = e.PlaceID
	}
	if e.Tier != "" {
		metric.Metadata["tier"] = string(e.Tier)
	}
	if e.PrevTier != "" {
		metric.Metadata["prev_tier"] = string(e.PrevTier)
	}
	return metric
}

// EventAckFunc подтверждает обработку или просит повторную доставку события.
type EventAckFunc func(success bool) error

// EventQueue описывает очередь событий прогресса.
type EventQueue interface {
	Publish(ctx context.Context, event ProgressEvent) error
	Receive(ctx context.Context) (ProgressEvent, EventAckFunc, error)
}
