package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// NewLocal returns a sandbox that runs code as local processes, each call in
// its own temporary directory. It offers no resource isolation and is meant
// for development.
func NewLocal(cfg Config, logger *slog.Logger) *Runner {
	return newRunner(localBackend{}, cfg, logger)
}

type localBackend struct{}

func (localBackend) Name() string { return "local" }

func (localBackend) Prepare(_ context.Context, _ LanguageConfig, files map[string]string) (workspace, error) {
	dir, err := createTempCodeDir(files)
	if err != nil {
		return nil, err
	}
	return &localWorkspace{dir: dir}, nil
}

type localWorkspace struct {
	dir string
}

func (w *localWorkspace) Exec(ctx context.Context, cmd []string) (*ExecResult, error) {
	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	c.Dir = w.dir
	c.Env = append(os.Environ(), "NO_COLOR=1", "PYTHONDONTWRITEBYTECODE=1")

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound):
		// missing interpreter is reported like a failed command
		res.ExitCode = 127
		res.Stderr = fmt.Sprintf("%s: command not found", cmd[0])
	default:
		return nil, err
	}
	return res, nil
}

func (w *localWorkspace) Close() error {
	return os.RemoveAll(w.dir)
}

func createTempCodeDir(files map[string]string) (string, error) {
	dir, err := os.MkdirTemp("", "champ-run-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	return dir, nil
}
