package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
)

// Worker переносит события прогресса из очереди в business_metrics.
type Worker struct {
	queue   domain.EventQueue
	metrics domain.BusinessMetricRepo
	log     zerolog.Logger
	backoff time.Duration
}

// NewWorker создаёт обработчик очереди.
func NewWorker(queue domain.EventQueue, repo domain.BusinessMetricRepo, logger zerolog.Logger) *Worker {
	return &Worker{
		queue:   queue,
		metrics: repo,
		log:     logger.With().Str("component", "analytics").Logger(),
		backoff: time.Second,
	}
}

// Run читает очередь до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	for {
		event, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("analytics: ошибка чтения очереди")
			if !sleep(ctx, w.backoff) {
				return
			}
			continue
		}
		w.handle(ctx, event, ack)
	}
}

func (w *Worker) handle(ctx context.Context, event domain.ProgressEvent, ack domain.EventAckFunc) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	err := w.metrics.RecordBusinessMetric(ctx, event.AsBusinessMetric())
	status := "success"
	if err != nil {
		status = "error"
		w.log.Error().Err(err).Str("event", string(event.Type)).Str("event_id", event.ID).Msg("analytics: не удалось сохранить событие")
	}
	metrics.EventsProcessedTotal.WithLabelValues(string(event.Type), status).Inc()
	if ack == nil {
		return
	}
	if ackErr := ack(err == nil); ackErr != nil {
		w.log.Error().Err(ackErr).Str("event_id", event.ID).Msg("analytics: не удалось подтвердить событие")
	}
	if err != nil {
		sleep(ctx, w.backoff)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
