package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
)

const chapterColumns = `id, user_id, city, country, description, ai_suggested_places, created_at`

func scanChapter(row pgx.Row) (domain.Chapter, error) {
	var (
		chapter     domain.Chapter
		country     sql.NullString
		description sql.NullString
		places      []byte
	)
	if err := row.Scan(&chapter.ID, &chapter.UserID, &chapter.City, &country, &description, &places, &chapter.CreatedAt); err != nil {
		return domain.Chapter{}, err
	}
	if country.Valid {
		v := country.String
		chapter.Country = &v
	}
	if description.Valid {
		v := description.String
		chapter.Description = &v
	}
	if len(places) > 0 {
		if err := json.Unmarshal(places, &chapter.Places); err != nil {
			return domain.Chapter{}, fmt.Errorf("decode places: %w", err)
		}
	}
	if chapter.Places == nil {
		chapter.Places = []domain.Place{}
	}
	return chapter, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func encodePlaces(places []domain.Place) ([]byte, error) {
	if places == nil {
		places = []domain.Place{}
	}
	return json.Marshal(places)
}

// CreateChapter сохраняет новую главу вместе с местами.
func (p *Postgres) CreateChapter(ctx context.Context, chapter domain.Chapter) (domain.Chapter, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	places, err := encodePlaces(chapter.Places)
	if err != nil {
		return domain.Chapter{}, err
	}
	if chapter.CreatedAt.IsZero() {
		chapter.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	created, err := scanChapter(p.pool.QueryRow(ctx, `
INSERT INTO chapters (id, user_id, city, country, description, ai_suggested_places, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+chapterColumns,
		chapter.ID, chapter.UserID, chapter.City, nullString(chapter.Country), nullString(chapter.Description), places, chapter.CreatedAt))
	metrics.ObserveNetworkRequest("postgres", "chapters_insert", "chapters", start, err)
	return created, err
}

// GetChapter возвращает главу пользователя.
func (p *Postgres) GetChapter(ctx context.Context, userID, chapterID string) (domain.Chapter, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	chapter, err := scanChapter(p.pool.QueryRow(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id=$1 AND user_id=$2`, chapterID, userID))
	metrics.ObserveNetworkRequest("postgres", "chapters_get", "chapters", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Chapter{}, domain.NotFoundf("chapter %s", chapterID)
	}
	return chapter, err
}

// ListChapters возвращает главы пользователя, новые первыми.
func (p *Postgres) ListChapters(ctx context.Context, userID string) ([]domain.Chapter, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	metrics.ObserveNetworkRequest("postgres", "chapters_list", "chapters", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chapters := make([]domain.Chapter, 0)
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, chapter)
	}
	return chapters, rows.Err()
}

// DeleteChapter удаляет главу пользователя.
func (p *Postgres) DeleteChapter(ctx context.Context, userID, chapterID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM chapters WHERE id=$1 AND user_id=$2`, chapterID, userID)
	metrics.ObserveNetworkRequest("postgres", "chapters_delete", "chapters", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("chapter %s", chapterID)
	}
	return nil
}

// MutatePlaces читает массив мест под блокировкой строки, применяет mutate и записывает его целиком.
func (p *Postgres) MutatePlaces(ctx context.Context, userID, chapterID string, mutate domain.PlacesMutation) (domain.Chapter, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "chapters", start, err)
	if err != nil {
		return domain.Chapter{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	chapter, err := lockChapter(ctx, tx, userID, chapterID)
	if err != nil {
		return domain.Chapter{}, err
	}
	places, err := mutate(chapter.Places)
	if err != nil {
		return domain.Chapter{}, err
	}
	payload, err := encodePlaces(places)
	if err != nil {
		return domain.Chapter{}, err
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `UPDATE chapters SET ai_suggested_places=$3 WHERE id=$1 AND user_id=$2`, chapterID, userID, payload)
	metrics.ObserveNetworkRequest("postgres", "chapters_update_places", "chapters", start, err)
	if err != nil {
		return domain.Chapter{}, err
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "chapters", start, err)
	if err != nil {
		return domain.Chapter{}, err
	}
	chapter.Places = places
	return chapter, nil
}

func lockChapter(ctx context.Context, tx pgx.Tx, userID, chapterID string) (domain.Chapter, error) {
	start := time.Now()
	chapter, err := scanChapter(tx.QueryRow(ctx, `
SELECT `+chapterColumns+`
FROM chapters
WHERE id=$1 AND user_id=$2
FOR UPDATE
`, chapterID, userID))
	metrics.ObserveNetworkRequest("postgres", "chapters_lock", "chapters", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Chapter{}, domain.NotFoundf("chapter %s", chapterID)
	}
	return chapter, err
}
