package queue

import (
	"testing"

	"sarthi/internal/domain"
)

func TestNextAttemptDropsPoisonEvent(t *testing.T) {
	event := domain.ProgressEvent{ID: "e1", Type: domain.EventPlaceCompleted}
	retries := 0
	for {
		next, ok := nextAttempt(event)
		if !ok {
			break
		}
		event = next
		retries++
		if retries > MaxAttempts {
			t.Fatalf("событие повторяется бесконечно")
		}
	}
	if retries != MaxAttempts-1 {
		t.Fatalf("ожидали %d повторов, получили %d", MaxAttempts-1, retries)
	}
	if event.ID != "e1" || event.Attempts != MaxAttempts-1 {
		t.Fatalf("неожиданное событие после повторов: %+v", event)
	}
}
