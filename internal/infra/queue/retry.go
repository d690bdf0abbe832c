package queue

import "sarthi/internal/domain"

// MaxAttempts ограничивает число неудачных обработок одного события.
const MaxAttempts = 5

// nextAttempt увеличивает счётчик попыток. false означает, что событие надо отбросить.
func nextAttempt(event domain.ProgressEvent) (domain.ProgressEvent, bool) {
	event.Attempts++
	return event, event.Attempts < MaxAttempts
}
