package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace: рабочий каталог одного запроса. Все пути пайплайна живут внутри него.
type Workspace struct {
	Dir string
}

// NewWorkspace создаёт каталог <root>/<mode>-<uuid>.
func NewWorkspace(root, mode string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir work root: %w", err)
	}
	dir := filepath.Join(root, mode+"-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Path возвращает путь файла внутри рабочего каталога.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// WriteFile сохраняет данные и возвращает полный путь.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	path := w.Path(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// Cleanup удаляет каталог целиком.
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.Dir)
}
