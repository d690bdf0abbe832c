package domain

import (
	"context"
	"time"
)

// ChatTurn: один вопрос и ответ в сессии по изображению.
type ChatTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ImageSession хранит снимок, результат OCR и историю вопросов.
type ImageSession struct {
	ID             string         `json:"id"`
	Image          []byte         `json:"image"`
	ImageMIME      string         `json:"image_mime"`
	Latitude       string         `json:"latitude"`
	Longitude      string         `json:"longitude"`
	TargetLanguage string         `json:"target_language"`
	LocationInfo   string         `json:"location_info"`
	OCRText        string         `json:"ocr_text"`
	OCRResult      map[string]any `json:"ocr_result,omitempty"`
	History        []ChatTurn     `json:"history"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActive     time.Time      `json:"last_active"`
}

// ImageSessionStore хранит сессии с TTL от последней активности.
type ImageSessionStore interface {
	Save(ctx context.Context, session ImageSession) error
	Get(ctx context.Context, sessionID string) (ImageSession, error)
}
