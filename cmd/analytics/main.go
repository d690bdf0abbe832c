package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"sarthi/internal/bootstrap"
	"sarthi/internal/infra/config"
	applog "sarthi/internal/infra/log"
	"sarthi/internal/infra/metrics"
	"sarthi/internal/usecase/analytics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("analytics: не удалось инициализировать зависимости")
	}
	defer deps.Close()
	if deps.Events == nil {
		logger.Fatal().Msg("analytics: очередь событий не настроена (REDIS_ADDR или RABBITMQ_URL)")
	}

	logger.Info().Str("driver", cfg.Queue.Driver).Msg("analytics: запуск обработки очереди")
	analytics.NewWorker(deps.Events, deps.Repo, logger).Run(ctx)
	logger.Info().Msg("analytics: остановлен")
}
