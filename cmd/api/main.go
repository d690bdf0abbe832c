package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"sarthi/internal/adapters/httpapi"
	"sarthi/internal/adapters/pipeline"
	"sarthi/internal/adapters/sessions"
	"sarthi/internal/bootstrap"
	"sarthi/internal/infra/config"
	httpinfra "sarthi/internal/infra/http"
	applog "sarthi/internal/infra/log"
	"sarthi/internal/infra/metrics"
	"sarthi/internal/usecase/media"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось инициализировать зависимости")
	}
	defer deps.Close()

	tasksService := deps.TasksService(cfg, applog.Component(logger, "tasks"))
	journalService := deps.JournalService(tasksService, applog.Component(logger, "journal"))
	chatService := deps.ChatService(logger)

	speechRunner := pipeline.NewRunner(pipeline.Mode{
		Name:            "speech",
		Dir:             cfg.Speech.Dir,
		Script:          cfg.Speech.Script,
		Interpreters:    cfg.Speech.Interpreters,
		RequiredModules: cfg.Speech.RequiredModules,
		LegacySidecar:   cfg.Speech.LegacySidecar,
		Timeout:         cfg.Pipeline.Timeout,
	}, logger)
	ocrMode := pipeline.Mode{
		Name:            "ocr",
		Dir:             cfg.OCR.Dir,
		Script:          cfg.OCR.Script,
		Interpreters:    cfg.OCR.Interpreters,
		RequiredModules: cfg.OCR.RequiredModules,
		Timeout:         cfg.Pipeline.Timeout,
	}
	if cfg.Gemini.APIKey != "" {
		ocrMode.Env = []string{"GEMINI_API_KEY=" + cfg.Gemini.APIKey}
	}
	ocrRunner := pipeline.NewRunner(ocrMode, logger)

	mediaService := media.NewService(
		speechRunner,
		ocrRunner,
		sessions.NewStore(deps.Cache, cfg.Sessions.ImageTTL),
		deps.Text,
		media.Options{
			WorkRoot:      cfg.Pipeline.WorkRoot,
			SpeechTarget:  cfg.Speech.DefaultTarget,
			OCRTarget:     cfg.OCR.DefaultTarget,
			ForceLocalASR: cfg.Speech.ForceLocalASR,
		},
		logger,
	)

	server := httpinfra.NewServer(logger, httpinfra.Options{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
	})
	httpapi.New(journalService, tasksService, chatService, mediaService, httpapi.Options{
		PingMessage:    cfg.PingMessage,
		AuthSecret:     cfg.AuthSecret,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		SessionTTL:     cfg.Sessions.ImageTTL,
	}, logger).Register(server.Router)

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки сервера")
	}
}
