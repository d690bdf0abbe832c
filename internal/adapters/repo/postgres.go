package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo           = (*Postgres)(nil)
	_ domain.ChapterRepo        = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

const queryTimeout = 5 * time.Second

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), queryTimeout)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, queryTimeout)
}

const userColumns = `id, tg_user_id, basic_info, preferences, xp, tier, chapters_created, places_visited, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user        domain.User
		tgUserID    sql.NullInt64
		basicInfo   []byte
		preferences []byte
		tier        string
	)
	err := row.Scan(&user.ID, &tgUserID, &basicInfo, &preferences, &user.Stats.XP, &tier, &user.Stats.ChaptersCreated, &user.Stats.PlacesVisited, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}
	if tgUserID.Valid {
		id := tgUserID.Int64
		user.TGUserID = &id
	}
	if len(basicInfo) > 0 {
		if err := json.Unmarshal(basicInfo, &user.BasicInfo); err != nil {
			return domain.User{}, fmt.Errorf("decode basic_info: %w", err)
		}
	}
	if len(preferences) > 0 {
		if err := json.Unmarshal(preferences, &user.Preferences); err != nil {
			return domain.User{}, fmt.Errorf("decode preferences: %w", err)
		}
	}
	// ранг в БД может устареть, источник истины: XP
	user.Stats = user.Stats.WithDerivedTier()
	return user, nil
}

// CreateUser создаёт пользователя. Повторный онбординг возвращает domain.ErrAlreadyExists.
func (p *Postgres) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	basicInfo, err := json.Marshal(user.BasicInfo)
	if err != nil {
		return domain.User{}, err
	}
	preferences, err := json.Marshal(user.Preferences)
	if err != nil {
		return domain.User{}, err
	}
	var tgUserID sql.NullInt64
	if user.TGUserID != nil {
		tgUserID = sql.NullInt64{Int64: *user.TGUserID, Valid: true}
	}
	stats := user.Stats.WithDerivedTier()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO users (id, tg_user_id, basic_info, preferences, xp, tier, chapters_created, places_visited)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING
RETURNING `+userColumns,
		user.ID, tgUserID, basicInfo, preferences, stats.XP, string(stats.Tier), stats.ChaptersCreated, stats.PlacesVisited)
	created, err := scanUser(row)
	metrics.ObserveNetworkRequest("postgres", "users_insert", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrAlreadyExists, user.ID)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return created, err
}

// GetUser возвращает пользователя по идентификатору.
func (p *Postgres) GetUser(ctx context.Context, userID string) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	user, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
	metrics.ObserveNetworkRequest("postgres", "users_get", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.NotFoundf("user %s", userID)
	}
	return user, err
}

// GetUserByTGID возвращает пользователя, привязанного к Telegram.
func (p *Postgres) GetUserByTGID(ctx context.Context, tgUserID int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	user, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tg_user_id=$1`, tgUserID))
	metrics.ObserveNetworkRequest("postgres", "users_get_by_tgid", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.NotFoundf("telegram user %d", tgUserID)
	}
	return user, err
}

// UpdateBasicInfo перезаписывает анкету пользователя.
func (p *Postgres) UpdateBasicInfo(ctx context.Context, userID string, info domain.BasicInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return p.updateUser(ctx, "users_update_basic_info", `UPDATE users SET basic_info=$2, updated_at=now() WHERE id=$1`, userID, payload)
}

// UpdatePreferences перезаписывает предпочтения пользователя.
func (p *Postgres) UpdatePreferences(ctx context.Context, userID string, prefs domain.Preferences) error {
	payload, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return p.updateUser(ctx, "users_update_preferences", `UPDATE users SET preferences=$2, updated_at=now() WHERE id=$1`, userID, payload)
}

// UpdateStats сохраняет пересчитанный агрегат. Ранг всегда выводится из XP.
func (p *Postgres) UpdateStats(ctx context.Context, userID string, stats domain.Stats) error {
	stats = stats.WithDerivedTier()
	return p.updateUser(ctx, "users_update_stats", `
UPDATE users
SET xp=$2, tier=$3, chapters_created=GREATEST($4, 0), places_visited=$5, updated_at=now()
WHERE id=$1
`, userID, stats.XP, string(stats.Tier), stats.ChaptersCreated, stats.PlacesVisited)
}

// AdjustChaptersCreated меняет счётчик созданных глав на delta.
func (p *Postgres) AdjustChaptersCreated(ctx context.Context, userID string, delta int) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
UPDATE users
SET chapters_created = GREATEST(chapters_created + $2, 0), updated_at = now()
WHERE id = $1
RETURNING chapters_created
`, userID, delta).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "users_adjust_chapters", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.NotFoundf("user %s", userID)
	}
	return count, err
}

func (p *Postgres) updateUser(ctx context.Context, op, query string, args ...any) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", op, "users", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("user %v", args[0])
	}
	return nil
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var userID sql.NullString
	if metric.UserID != nil {
		userID = sql.NullString{String: *metric.UserID, Valid: true}
	}
	var chapterID sql.NullString
	if metric.ChapterID != nil {
		chapterID = sql.NullString{String: *metric.ChapterID, Valid: true}
	}
	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, chapter_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, userID, chapterID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}
