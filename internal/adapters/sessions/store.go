package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sarthi/internal/domain"
)

// Store хранит сессии изображений в domain.Cache (Redis в проде).
type Store struct {
	cache domain.Cache
	ttl   time.Duration
}

var _ domain.ImageSessionStore = (*Store)(nil)

// NewStore создаёт хранилище. ttl продлевается при каждом сохранении.
func NewStore(cache domain.Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{cache: cache, ttl: ttl}
}

func key(id string) string { return "image_session:" + id }

// Save сохраняет сессию.
func (s *Store) Save(ctx context.Context, session domain.ImageSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.cache.Set(ctx, key(session.ID), data, s.ttl)
}

// Get возвращает сессию или domain.ErrNotFound, если она истекла.
func (s *Store) Get(ctx context.Context, sessionID string) (domain.ImageSession, error) {
	if sessionID == "" {
		return domain.ImageSession{}, domain.NotFoundf("invalid or expired session_id")
	}
	data, err := s.cache.Get(ctx, key(sessionID))
	if errors.Is(err, domain.ErrCacheMiss) {
		return domain.ImageSession{}, domain.NotFoundf("invalid or expired session_id")
	}
	if err != nil {
		return domain.ImageSession{}, err
	}
	var session domain.ImageSession
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.ImageSession{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}
