// Package bootstrap собирает общие зависимости процессов из конфигурации.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sarthi/internal/adapters/bhashini"
	"sarthi/internal/adapters/generator"
	"sarthi/internal/adapters/repo"
	"sarthi/internal/domain"
	"sarthi/internal/infra/cache"
	"sarthi/internal/infra/config"
	"sarthi/internal/infra/db"
	"sarthi/internal/infra/openai"
	"sarthi/internal/infra/queue"
	"sarthi/internal/usecase/chat"
	"sarthi/internal/usecase/journal"
	"sarthi/internal/usecase/tasks"
)

// Deps: долгоживущие клиенты процесса. Закрываются через Close.
type Deps struct {
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Repo       *repo.Postgres
	Cache      domain.Cache
	Events     domain.EventQueue
	Tasks      domain.TaskGenerator
	Text       domain.TextGenerator
	Translator domain.Translator

	closers []func()
}

// Build подключает Postgres, Redis, очередь событий и AI-клиентов.
func Build(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*Deps, error) {
	d := &Deps{}

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	d.Pool = pool
	d.closers = append(d.closers, pool.Close)
	if err := db.Migrate(ctx, pool); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	d.Repo = repo.NewPostgres(pool)

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			d.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		d.Redis = client
		d.closers = append(d.closers, func() { _ = client.Close() })
		d.Cache = cache.NewRedis(client, "sarthi:")
	} else {
		logger.Warn().Msg("bootstrap: REDIS_ADDR не задан, кэш и сессии живут в памяти процесса")
		d.Cache = cache.NewMemory()
	}

	if err := d.buildEvents(cfg, logger); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.buildAI(ctx, cfg, logger); err != nil {
		d.Close()
		return nil, err
	}
	if cfg.Bhashini.AuthToken != "" {
		d.Translator = bhashini.NewClient(cfg.Bhashini.AuthToken, cfg.Bhashini.APIURL, cfg.Bhashini.MTServiceID, cfg.Bhashini.Timeout)
	} else {
		logger.Warn().Msg("bootstrap: BHASHINI_AUTH_TOKEN не задан, чат работает только на английском")
	}
	return d, nil
}

func (d *Deps) buildEvents(cfg config.AppConfig, logger zerolog.Logger) error {
	switch cfg.Queue.Driver {
	case "rabbitmq":
		q, err := queue.NewRabbitEventQueue(cfg.Queue.RabbitURL, cfg.Queue.Key)
		if err != nil {
			return fmt.Errorf("rabbitmq queue: %w", err)
		}
		d.Events = q
		d.closers = append(d.closers, func() { _ = q.Close() })
	case "redis", "":
		if d.Redis == nil {
			logger.Warn().Msg("bootstrap: очередь событий отключена, Redis не настроен")
			return nil
		}
		d.Events = queue.NewRedisEventQueue(d.Redis, cfg.Queue.Key)
	default:
		return fmt.Errorf("unknown EVENTS_QUEUE_DRIVER %q", cfg.Queue.Driver)
	}
	return nil
}

func (d *Deps) buildAI(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) error {
	switch cfg.AI.Provider {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			logger.Warn().Msg("bootstrap: OPENAI_API_KEY не задан, используется запасной список мест")
			return nil
		}
		gen := generator.NewOpenAI(openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout), cfg.OpenAI.Model)
		d.Tasks, d.Text = gen, gen
	case "gemini", "":
		if cfg.Gemini.APIKey == "" {
			logger.Warn().Msg("bootstrap: GEMINI_API_KEY не задан, используется запасной список мест")
			return nil
		}
		gen, err := generator.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout, logger)
		if err != nil {
			return fmt.Errorf("gemini client: %w", err)
		}
		d.Tasks, d.Text = gen, gen
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", cfg.AI.Provider)
	}
	return nil
}

// TasksService собирает генерацию мест с кэшем.
func (d *Deps) TasksService(cfg config.AppConfig, logger zerolog.Logger) *tasks.Service {
	return tasks.NewService(d.Tasks, d.Cache, cfg.Tasks.CacheTTL, logger)
}

// JournalService собирает сценарии дневника.
func (d *Deps) JournalService(suggester domain.TaskSuggester, logger zerolog.Logger) *journal.Service {
	var opts []journal.Option
	if d.Events != nil {
		opts = append(opts, journal.WithEvents(d.Events))
	}
	return journal.NewService(d.Repo, d.Repo, suggester, logger, opts...)
}

// ChatService собирает мультиязычный чат.
func (d *Deps) ChatService(logger zerolog.Logger) *chat.Service {
	return chat.NewService(d.Translator, d.Text, logger)
}

// Close освобождает ресурсы в обратном порядке.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
