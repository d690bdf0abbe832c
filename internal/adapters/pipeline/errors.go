package pipeline

import (
	"errors"

	"sarthi/internal/domain"
)

// Error описывает сбой внешнего пайплайна вместе с диагностикой для операторов.
type Error struct {
	// Kind: один из domain.ErrEnvironmentUnavailable, ErrPipelineFailed, ErrResultParse, ErrOutputMissing.
	Kind       error
	Detail     string
	Stdout     string
	Stderr     string
	Candidates []string
	// Result: JSON, который вернул процесс, если он был разобран.
	Result map[string]any
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.Kind }

// AsError достаёт *Error из цепочки ошибок.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrEnvironmentUnavailable):
		return "environment_unavailable"
	case errors.Is(err, domain.ErrResultParse):
		return "parse_error"
	case errors.Is(err, domain.ErrOutputMissing):
		return "output_missing"
	case errors.Is(err, domain.ErrPipelineFailed):
		return "failed"
	default:
		return "error"
	}
}
