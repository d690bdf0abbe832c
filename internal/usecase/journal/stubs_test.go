package journal

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"sarthi/internal/domain"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]domain.User{}} }

func (m *memUsers) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return domain.User{}, domain.ErrAlreadyExists
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memUsers) GetUser(_ context.Context, userID string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return domain.User{}, domain.NotFoundf("user %s", userID)
	}
	return user, nil
}

func (m *memUsers) GetUserByTGID(_ context.Context, tgUserID int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.TGUserID != nil && *user.TGUserID == tgUserID {
			return user, nil
		}
	}
	return domain.User{}, domain.NotFoundf("telegram user %d", tgUserID)
}

func (m *memUsers) update(userID string, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return domain.NotFoundf("user %s", userID)
	}
	fn(&user)
	m.users[userID] = user
	return nil
}

func (m *memUsers) UpdateBasicInfo(_ context.Context, userID string, info domain.BasicInfo) error {
	return m.update(userID, func(u *domain.User) { u.BasicInfo = info })
}

func (m *memUsers) UpdatePreferences(_ context.Context, userID string, prefs domain.Preferences) error {
	return m.update(userID, func(u *domain.User) { u.Preferences = prefs })
}

func (m *memUsers) UpdateStats(_ context.Context, userID string, stats domain.Stats) error {
	return m.update(userID, func(u *domain.User) { u.Stats = stats.WithDerivedTier() })
}

func (m *memUsers) AdjustChaptersCreated(_ context.Context, userID string, delta int) (int, error) {
	var count int
	err := m.update(userID, func(u *domain.User) {
		u.Stats.ChaptersCreated += delta
		if u.Stats.ChaptersCreated < 0 {
			u.Stats.ChaptersCreated = 0
		}
		count = u.Stats.ChaptersCreated
	})
	return count, err
}

type memChapters struct {
	mu       sync.Mutex
	chapters map[string]domain.Chapter
}

func newMemChapters() *memChapters { return &memChapters{chapters: map[string]domain.Chapter{}} }

// clone отвязывает срез мест, как это делает сериализация в БД.
func clone(ch domain.Chapter) domain.Chapter {
	data, _ := json.Marshal(ch.Places)
	var places []domain.Place
	_ = json.Unmarshal(data, &places)
	ch.Places = places
	return ch
}

func (m *memChapters) CreateChapter(_ context.Context, chapter domain.Chapter) (domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chapters[chapter.ID] = clone(chapter)
	return clone(chapter), nil
}

func (m *memChapters) GetChapter(_ context.Context, userID, chapterID string) (domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chapters[chapterID]
	if !ok || ch.UserID != userID {
		return domain.Chapter{}, domain.NotFoundf("chapter %s", chapterID)
	}
	return clone(ch), nil
}

func (m *memChapters) ListChapters(_ context.Context, userID string) ([]domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Chapter, 0)
	for _, ch := range m.chapters {
		if ch.UserID == userID {
			out = append(out, clone(ch))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memChapters) DeleteChapter(_ context.Context, userID, chapterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chapters[chapterID]
	if !ok || ch.UserID != userID {
		return domain.NotFoundf("chapter %s", chapterID)
	}
	delete(m.chapters, chapterID)
	return nil
}

func (m *memChapters) MutatePlaces(_ context.Context, userID, chapterID string, mutate domain.PlacesMutation) (domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chapters[chapterID]
	if !ok || ch.UserID != userID {
		return domain.Chapter{}, domain.NotFoundf("chapter %s", chapterID)
	}
	ch = clone(ch)
	places, err := mutate(ch.Places)
	if err != nil {
		return domain.Chapter{}, err
	}
	ch.Places = places
	m.chapters[chapterID] = clone(ch)
	return ch, nil
}

type stubSuggester struct {
	places []domain.GeneratedPlace
}

func (s stubSuggester) Suggest(context.Context, domain.TaskRequest) []domain.GeneratedPlace {
	return s.places
}

type recordingQueue struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (q *recordingQueue) Publish(_ context.Context, event domain.ProgressEvent) error {
	q.mu.Lock()
	q.events = append(q.events, event)
	q.mu.Unlock()
	return nil
}

func (q *recordingQueue) Receive(ctx context.Context) (domain.ProgressEvent, domain.EventAckFunc, error) {
	<-ctx.Done()
	return domain.ProgressEvent{}, nil, ctx.Err()
}

func (q *recordingQueue) types() []domain.ProgressEventType {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.ProgressEventType, 0, len(q.events))
	for _, e := range q.events {
		out = append(out, e.Type)
	}
	return out
}
