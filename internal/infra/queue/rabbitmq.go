package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
)

// RabbitEventQueue реализует очередь событий через AMQP 0-9-1.
type RabbitEventQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.EventQueue = (*RabbitEventQueue)(nil)

// NewRabbitEventQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitEventQueue(amqpURL, queue string) (*RabbitEventQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitEventQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Publish публикует событие как persistent-сообщение.
func (q *RabbitEventQueue) Publish(ctx context.Context, event domain.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Receive ждёт следующее сообщение. ack(false) публикует его повторно, пока не исчерпан MaxAttempts.
func (q *RabbitEventQueue) Receive(ctx context.Context) (domain.ProgressEvent, domain.EventAckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.ProgressEvent{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.ProgressEvent{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.ProgressEvent{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			var event domain.ProgressEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				// битое сообщение повторно не доставляем
				_ = d.Reject(false)
				metrics.ObserveNetworkRequest("rabbitmq", "consume", q.queue, time.Now(), err)
				continue
			}
			ack := func(success bool) error {
				if success {
					return d.Ack(false)
				}
				retry, ok := nextAttempt(event)
				if !ok {
					metrics.EventsDroppedTotal.WithLabelValues(string(event.Type)).Inc()
					return d.Reject(false)
				}
				// повтор публикуется в конец очереди со счётчиком попыток
				if err := q.Publish(context.Background(), retry); err != nil {
					return d.Nack(false, true)
				}
				return d.Ack(false)
			}
			return event, ack, nil
		}
	}
}

func (q *RabbitEventQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	if err := q.ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает канал и соединение.
func (q *RabbitEventQueue) Close() error {
	_ = q.ch.Close()
	return q.conn.Close()
}
