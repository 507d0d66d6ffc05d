package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/champ/internal/domain"
)

// workspace is one isolated execution environment holding the files of a
// single call
type workspace interface {
	Exec(ctx context.Context, cmd []string) (*ExecResult, error)
	Close() error
}

// backend creates workspaces
type backend interface {
	Name() string
	Prepare(ctx context.Context, lang LanguageConfig, files map[string]string) (workspace, error)
}

// Runner implements Sandbox on top of a backend
type Runner struct {
	backend   backend
	languages map[domain.Language]LanguageConfig
	cfg       Config
	logger    *slog.Logger
}

var _ Sandbox = (*Runner)(nil)

func newRunner(b backend, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		backend:   b,
		languages: DefaultLanguageConfigs(),
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Backend returns the backend name
func (r *Runner) Backend() string {
	return r.backend.Name()
}

// Run type-checks (where the language supports it) and executes code
func (r *Runner) Run(ctx context.Context, code string, lang domain.Language) (*RunResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}
	lc, err := lookupLanguage(r.languages, lang)
	if err != nil {
		return nil, err
	}

	ws, err := r.backend.Prepare(ctx, lc, lc.files(code))
	if err != nil {
		return nil, fmt.Errorf("prepare %s workspace: %w", r.backend.Name(), err)
	}
	defer r.closeWorkspace(ws)

	result := &RunResult{Logs: []string{}}

	if typeErrors, err := r.typeCheck(ctx, ws, lc); err != nil {
		return nil, err
	} else if typeErrors != "" {
		result.TypeErrors = typeErrors
		result.Error = "type check failed"
		return result, nil
	}

	res, err := r.exec(ctx, ws, lc.Run)
	if err != nil {
		return nil, err
	}

	result.Logs = splitLogs(res.Stdout)
	switch {
	case res.TimedOut:
		result.Error = fmt.Sprintf("execution timed out after %s", r.cfg.Timeout)
	case res.ExitCode != 0:
		result.Error = errorMessage(res)
	default:
		result.Success = true
	}

	r.logger.Debug("code run finished",
		"backend", r.backend.Name(),
		"language", lc.Language,
		"success", result.Success,
		"duration", res.Duration)
	return result, nil
}

// RunWithTests executes code followed by testCode; the tests pass when the
// combined program exits cleanly.
func (r *Runner) RunWithTests(ctx context.Context, code, testCode string, lang domain.Language) (*TestRunResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}
	lc, err := lookupLanguage(r.languages, lang)
	if err != nil {
		return nil, err
	}

	ws, err := r.backend.Prepare(ctx, lc, lc.files(withTests(code, testCode)))
	if err != nil {
		return nil, fmt.Errorf("prepare %s workspace: %w", r.backend.Name(), err)
	}
	defer r.closeWorkspace(ws)

	if typeErrors, err := r.typeCheck(ctx, ws, lc); err != nil {
		return nil, err
	} else if typeErrors != "" {
		return &TestRunResult{Error: typeErrors}, nil
	}

	res, err := r.exec(ctx, ws, lc.Run)
	if err != nil {
		return nil, err
	}

	switch {
	case res.TimedOut:
		return &TestRunResult{Error: fmt.Sprintf("tests timed out after %s", r.cfg.Timeout)}, nil
	case res.ExitCode != 0:
		return &TestRunResult{Error: errorMessage(res)}, nil
	}
	return &TestRunResult{Passed: true}, nil
}

// typeCheck returns formatted diagnostics, or "" when the code checks or
// the checker is unavailable
func (r *Runner) typeCheck(ctx context.Context, ws workspace, lc LanguageConfig) (string, error) {
	if len(lc.TypeCheck) == 0 {
		return "", nil
	}
	res, err := r.exec(ctx, ws, lc.TypeCheck)
	if err != nil {
		return "", err
	}
	if res.ExitCode == 0 || res.TimedOut {
		return "", nil
	}
	diagnostics := parseTypeErrors(res.Stdout + "\n" + res.Stderr)
	if diagnostics == "" {
		r.logger.Warn("type checker unavailable, skipping",
			"backend", r.backend.Name(),
			"language", lc.Language,
			"output", truncate(strings.TrimSpace(res.Stderr+res.Stdout), 200))
	}
	return diagnostics, nil
}

func (r *Runner) exec(ctx context.Context, ws workspace, cmd []string) (*ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	res, err := ws.Exec(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("exec %s: %w", cmd[0], err)
	}
	res.Stdout = truncate(res.Stdout, r.cfg.MaxOutput)
	res.Stderr = truncate(res.Stderr, r.cfg.MaxOutput)
	return res, nil
}

func (r *Runner) closeWorkspace(ws workspace) {
	if err := ws.Close(); err != nil {
		r.logger.Warn("failed to clean up workspace", "backend", r.backend.Name(), "error", err)
	}
}
