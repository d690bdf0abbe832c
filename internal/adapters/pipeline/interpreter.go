package pipeline

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"sarthi/internal/domain"
)

const probeTimeout = 20 * time.Second

// Candidates возвращает интерпретаторы в порядке приоритета: сначала из venv каталога режима, затем системные.
func (m Mode) Candidates() []string {
	var venv, system []string
	for _, name := range m.Interpreters {
		if name == "" {
			continue
		}
		if filepath.IsAbs(name) {
			system = append(system, name)
			continue
		}
		if m.Dir != "" {
			venv = append(venv, filepath.Join(m.Dir, "venv", "bin", name))
		}
		system = append(system, name)
	}
	return append(venv, system...)
}

func (m Mode) probeArgs() []string {
	if len(m.ProbeArgs) > 0 {
		return m.ProbeArgs
	}
	if len(m.RequiredModules) == 0 {
		return []string{"-c", "pass"}
	}
	return []string{"-c", "import " + strings.Join(m.RequiredModules, ", ")}
}

// Interpreter находит первый кандидат, который существует и проходит пробный импорт.
// Успешный результат запоминается до первого сбоя запуска.
func (r *Runner) Interpreter(ctx context.Context) (string, error) {
	r.mu.Lock()
	resolved := r.resolved
	r.mu.Unlock()
	if resolved != "" {
		return resolved, nil
	}

	candidates := r.mode.Candidates()
	for _, candidate := range candidates {
		exe, err := exec.LookPath(candidate)
		if err != nil {
			r.log.Debug().Str("candidate", candidate).Msg("pipeline: интерпретатор не найден")
			continue
		}
		if err := r.probe(ctx, exe); err != nil {
			r.log.Debug().Err(err).Str("candidate", exe).Msg("pipeline: пробный импорт не прошёл")
			continue
		}
		r.mu.Lock()
		r.resolved = exe
		r.mu.Unlock()
		r.log.Info().Str("interpreter", exe).Str("mode", r.mode.Name).Msg("pipeline: выбран интерпретатор")
		return exe, nil
	}
	return "", &Error{
		Kind:       domain.ErrEnvironmentUnavailable,
		Detail:     "no interpreter passed the import check: " + strings.Join(candidates, ", "),
		Candidates: candidates,
	}
}

// forget сбрасывает запомненный интерпретатор, если это всё ещё exe.
func (r *Runner) forget(exe string) {
	r.mu.Lock()
	if r.resolved == exe {
		r.resolved = ""
	}
	r.mu.Unlock()
	r.log.Warn().Str("interpreter", exe).Msg("pipeline: интерпретатор не запустился, повторяем проверку")
}

func (r *Runner) probe(ctx context.Context, exe string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, exe, r.mode.probeArgs()...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &probeError{err: err, out: strings.TrimSpace(string(out))}
	}
	return nil
}

type probeError struct {
	err error
	out string
}

func (e *probeError) Error() string {
	if e.out == "" {
		return e.err.Error()
	}
	return e.err.Error() + ": " + e.out
}

func (e *probeError) Unwrap() error { return e.err }
