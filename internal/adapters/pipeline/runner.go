package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sarthi/internal/domain"
	"sarthi/internal/infra/metrics"
)

// waitDelay ограничивает ожидание потомков убитого процесса, державших stdout.
const waitDelay = 2 * time.Second

// EnvResultPath передаёт дочернему процессу путь sidecar-файла результата.
const EnvResultPath = "PIPELINE_RESULT_PATH"

// Mode описывает один внешний пайплайн (речь или OCR).
type Mode struct {
	Name            string
	Dir             string
	Script          string
	Interpreters    []string
	RequiredModules []string
	// ProbeArgs заменяет стандартную проверку `-c "import ..."`.
	ProbeArgs []string
	// Env добавляется к окружению родителя при каждом запуске.
	Env []string
	// LegacySidecar: фиксированный путь результата, который проверяется после sidecar запроса.
	LegacySidecar string
	// Timeout ограничивает запуск; 0: без ограничения, кроме контекста запроса.
	Timeout time.Duration
}

// Invocation: параметры одного запуска.
type Invocation struct {
	Args []string
	Env  []string
	// SidecarPath: путь внутри рабочего каталога запроса, куда скрипт может записать JSON.
	SidecarPath string
	// OutputKey: поле результата с путём к артефакту, который обязан существовать.
	OutputKey string
	// WorkDir: каталог запроса; относительные пути артефактов разрешаются от него.
	WorkDir string
}

// Result: разобранный ответ пайплайна.
type Result struct {
	Payload     map[string]any
	Output      []byte
	Stdout      string
	Stderr      string
	Interpreter string
}

// Runner запускает скрипт пайплайна в отдельном процессе.
type Runner struct {
	mode Mode
	log  zerolog.Logger

	mu       sync.Mutex
	resolved string
}

// NewRunner создаёт раннер для режима. Относительный Dir разрешается от текущего
// каталога процесса, потому что дочерний процесс запускается уже внутри Dir.
func NewRunner(mode Mode, logger zerolog.Logger) *Runner {
	log := logger.With().Str("component", "pipeline").Str("mode", mode.Name).Logger()
	if mode.Dir != "" && !filepath.IsAbs(mode.Dir) {
		if abs, err := filepath.Abs(mode.Dir); err == nil {
			mode.Dir = abs
		} else {
			log.Warn().Err(err).Str("dir", mode.Dir).Msg("pipeline: не удалось получить абсолютный путь")
		}
	}
	return &Runner{mode: mode, log: log}
}

// Mode возвращает конфигурацию раннера.
func (r *Runner) Mode() Mode { return r.mode }

// Run выполняет скрипт и возвращает разобранный результат.
func (r *Runner) Run(ctx context.Context, inv Invocation) (Result, error) {
	start := time.Now()
	res, err := r.run(ctx, inv)
	metrics.ObservePipeline(r.mode.Name, statusLabel(err), time.Since(start))
	if err != nil {
		r.log.Error().Err(err).Dur("duration", time.Since(start)).Msg("pipeline: запуск завершился ошибкой")
		return res, err
	}
	r.log.Info().Dur("duration", time.Since(start)).Msg("pipeline: запуск завершён")
	return res, nil
}

func (r *Runner) run(ctx context.Context, inv Invocation) (Result, error) {
	exe, err := r.Interpreter(ctx)
	if err != nil {
		return Result{}, err
	}
	if r.mode.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.mode.Timeout)
		defer cancel()
	}

	script := r.mode.Script
	if !filepath.IsAbs(script) && r.mode.Dir != "" {
		script = filepath.Join(r.mode.Dir, script)
	}
	cmd := exec.CommandContext(ctx, exe, append([]string{script}, inv.Args...)...)
	if r.mode.Dir != "" {
		cmd.Dir = r.mode.Dir
	}
	cmd.Env = append(os.Environ(), r.mode.Env...)
	cmd.Env = append(cmd.Env, inv.Env...)
	if inv.SidecarPath != "" {
		cmd.Env = append(cmd.Env, EnvResultPath+"="+inv.SidecarPath)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	res := Result{Interpreter: exe}
	runErr := cmd.Run()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) && ctx.Err() == nil {
			// интерпретатор не запустился: окружение сломалось после проверки
			r.forget(exe)
			if _, err := r.Interpreter(ctx); err != nil {
				return res, err
			}
		}
		detail := strings.TrimSpace(res.Stderr)
		if ctxErr := ctx.Err(); ctxErr != nil {
			detail = fmt.Sprintf("interrupted: %v", ctxErr)
		} else if detail == "" {
			detail = runErr.Error()
		}
		return res, &Error{Kind: domain.ErrPipelineFailed, Detail: detail, Stdout: res.Stdout, Stderr: res.Stderr}
	}

	payload, parseErr := decodeResult(stdout.Bytes())
	if parseErr != nil {
		r.log.Warn().Err(parseErr).Msg("pipeline: stdout не JSON, пробуем sidecar")
		payload = r.readSidecar(inv.SidecarPath, r.mode.LegacySidecar)
		if payload == nil {
			return res, &Error{Kind: domain.ErrResultParse, Detail: parseErr.Error(), Stdout: res.Stdout, Stderr: res.Stderr}
		}
	}
	res.Payload = payload

	if msg, ok := payload["error"]; ok && msg != nil && msg != "" {
		return res, &Error{Kind: domain.ErrPipelineFailed, Detail: fmt.Sprint(msg), Stdout: res.Stdout, Stderr: res.Stderr, Result: payload}
	}

	if inv.OutputKey != "" {
		output, err := readArtifact(payload, inv.OutputKey, inv.WorkDir, r.mode.Dir)
		if err != nil {
			return res, &Error{Kind: domain.ErrOutputMissing, Detail: err.Error(), Stdout: res.Stdout, Stderr: res.Stderr, Result: payload}
		}
		res.Output = output
	}
	return res, nil
}

func (r *Runner) readSidecar(paths ...string) map[string]any {
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		payload, err := decodeResult(data)
		if err != nil {
			r.log.Warn().Err(err).Str("path", path).Msg("pipeline: sidecar не разобран")
			continue
		}
		return payload
	}
	return nil
}

func decodeResult(data []byte) (map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty output")
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("result is not a JSON object")
	}
	return payload, nil
}

func readArtifact(payload map[string]any, key string, dirs ...string) ([]byte, error) {
	path, _ := payload[key].(string)
	if path == "" {
		return nil, fmt.Errorf("result has no %s", key)
	}
	if !filepath.IsAbs(path) {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, path)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}
