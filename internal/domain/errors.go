package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation: некорректный или неполный запрос клиента.
	ErrValidation = errors.New("validation error")
	// ErrNotFound: пользователь, глава или место не найдены.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists: пользователь уже прошёл онбординг.
	ErrAlreadyExists = errors.New("already exists")

	// ErrEnvironmentUnavailable: ни один интерпретатор не прошёл проверку импорта.
	ErrEnvironmentUnavailable = errors.New("pipeline environment unavailable")
	// ErrPipelineFailed: внешний процесс завершился с ошибкой.
	ErrPipelineFailed = errors.New("pipeline failed")
	// ErrResultParse: ни stdout, ни sidecar-файл не содержат валидный JSON.
	ErrResultParse = errors.New("failed to parse pipeline output")
	// ErrOutputMissing: результат ссылается на несуществующий файл.
	ErrOutputMissing = errors.New("pipeline output missing")
)

// Validationf оборачивает ErrValidation с пояснением для клиента.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf оборачивает ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
