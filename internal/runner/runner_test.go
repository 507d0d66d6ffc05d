package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/champ/internal/domain"
)

// fakeBackend answers commands from a script keyed by the command's first word
type fakeBackend struct {
	results  map[string]*ExecResult
	prepared []map[string]string
	closed   int
	err      error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Prepare(ctx context.Context, lang LanguageConfig, files map[string]string) (workspace, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.prepared = append(f.prepared, files)
	return &fakeWorkspace{backend: f}, nil
}

type fakeWorkspace struct {
	backend *fakeBackend
}

func (w *fakeWorkspace) Exec(ctx context.Context, cmd []string) (*ExecResult, error) {
	if res, ok := w.backend.results[cmd[0]]; ok {
		copied := *res
		return &copied, nil
	}
	return &ExecResult{}, nil
}

func (w *fakeWorkspace) Close() error {
	w.backend.closed++
	return nil
}

func TestRunner_Run(t *testing.T) {
	tests := []struct {
		name           string
		lang           domain.Language
		results        map[string]*ExecResult
		wantSuccess    bool
		wantLogs       []string
		wantError      string
		wantTypeErrors string
	}{
		{
			name:        "success with logs",
			lang:        domain.LanguageTypeScript,
			results:     map[string]*ExecResult{"node": {Stdout: "hello\nworld\n"}},
			wantSuccess: true,
			wantLogs:    []string{"hello", "world"},
		},
		{
			name: "runtime error",
			lang: domain.LanguagePython,
			results: map[string]*ExecResult{"python3": {
				ExitCode: 1,
				Stdout:   "before\n",
				Stderr:   "Traceback (most recent call last):\n  File \"main.py\", line 2\nZeroDivisionError: division by zero\n",
			}},
			wantLogs:  []string{"before"},
			wantError: "ZeroDivisionError: division by zero",
		},
		{
			name: "type errors stop the run",
			lang: domain.LanguageTypeScript,
			results: map[string]*ExecResult{
				"npx":  {ExitCode: 2, Stdout: "/tmp/champ-run-1/main.ts(1,7): error TS2322: Type 'string' is not assignable to type 'number'.\n"},
				"node": {Stdout: "should not run\n"},
			},
			wantError:      "type check failed",
			wantLogs:       []string{},
			wantTypeErrors: "main.ts(1,7): TS2322: Type 'string' is not assignable to type 'number'.",
		},
		{
			name: "missing type checker is skipped",
			lang: domain.LanguageTypeScript,
			results: map[string]*ExecResult{
				"npx":  {ExitCode: 1, Stderr: "npm ERR! could not determine executable to run\n"},
				"node": {Stdout: "ran\n"},
			},
			wantSuccess: true,
			wantLogs:    []string{"ran"},
		},
		{
			name:      "timeout",
			lang:      domain.LanguagePython,
			results:   map[string]*ExecResult{"python3": {TimedOut: true, ExitCode: -1}},
			wantLogs:  []string{},
			wantError: "execution timed out after 10s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{results: tt.results}
			r := newRunner(fb, DefaultConfig(), nil)

			res, err := r.Run(context.Background(), "code", tt.lang)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", res.Success, tt.wantSuccess)
			}
			if strings.Join(res.Logs, "|") != strings.Join(tt.wantLogs, "|") {
				t.Errorf("Logs = %q, want %q", res.Logs, tt.wantLogs)
			}
			if res.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", res.Error, tt.wantError)
			}
			if res.TypeErrors != tt.wantTypeErrors {
				t.Errorf("TypeErrors = %q, want %q", res.TypeErrors, tt.wantTypeErrors)
			}
			if fb.closed != 1 {
				t.Errorf("workspaces closed = %d, want 1", fb.closed)
			}
		})
	}
}

func TestRunner_RunWithTests(t *testing.T) {
	fb := &fakeBackend{results: map[string]*ExecResult{}}
	r := newRunner(fb, DefaultConfig(), nil)

	res, err := r.RunWithTests(context.Background(), "def add(a, b): return a + b", "assert add(1, 2) == 3", domain.LanguagePython)
	if err != nil {
		t.Fatalf("RunWithTests() error = %v", err)
	}
	if !res.Passed {
		t.Errorf("Passed = false, error %q", res.Error)
	}
	src := fb.prepared[0]["main.py"]
	if !strings.HasPrefix(src, "def add") || !strings.Contains(src, "assert add(1, 2) == 3") {
		t.Errorf("combined source = %q", src)
	}

	fb.results["python3"] = &ExecResult{ExitCode: 1, Stderr: "AssertionError: expected 3\n"}
	res, _ = r.RunWithTests(context.Background(), "x = 1", "assert x == 2", domain.LanguagePython)
	if res.Passed || res.Error != "AssertionError: expected 3" {
		t.Errorf("result = %+v", res)
	}
}

func TestRunner_FreshWorkspacePerCall(t *testing.T) {
	fb := &fakeBackend{results: map[string]*ExecResult{}}
	r := newRunner(fb, DefaultConfig(), nil)

	r.Run(context.Background(), "console.log(1)", domain.LanguageTypeScript)
	r.Run(context.Background(), "console.log(2)", domain.LanguageTypeScript)

	if len(fb.prepared) != 2 || fb.closed != 2 {
		t.Fatalf("prepared = %d, closed = %d", len(fb.prepared), fb.closed)
	}
	if fb.prepared[0]["main.ts"] == fb.prepared[1]["main.ts"] {
		t.Error("each call should get its own files")
	}
	if fb.prepared[0]["tsconfig.json"] == "" {
		t.Error("typescript workspaces need a tsconfig")
	}
}

func TestRunner_InfrastructureErrors(t *testing.T) {
	r := newRunner(&fakeBackend{}, DefaultConfig(), nil)
	ctx := context.Background()

	if _, err := r.Run(ctx, "  ", domain.LanguagePython); !errors.Is(err, ErrEmptyCode) {
		t.Errorf("empty code error = %v", err)
	}
	if _, err := r.Run(ctx, "x", domain.Language("cobol")); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("unsupported language error = %v", err)
	}

	down := errors.New("daemon down")
	r = newRunner(&fakeBackend{err: down}, DefaultConfig(), nil)
	if _, err := r.RunWithTests(ctx, "x", "y", domain.LanguagePython); !errors.Is(err, down) {
		t.Errorf("prepare error = %v", err)
	}
}

func TestParseTypeErrors(t *testing.T) {
	out := strings.Join([]string{
		"/tmp/champ-run-42/main.ts(3,5): error TS2345: Argument of type 'string' is not assignable.",
		"some unrelated line",
		"main.ts(10,1): error TS1005: ';' expected.",
	}, "\n")
	want := "main.ts(3,5): TS2345: Argument of type 'string' is not assignable.\nmain.ts(10,1): TS1005: ';' expected."
	if got := parseTypeErrors(out); got != want {
		t.Errorf("parseTypeErrors() = %q, want %q", got, want)
	}
	if got := parseTypeErrors("npm ERR! nothing"); got != "" {
		t.Errorf("parseTypeErrors(noise) = %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		res  ExecResult
		want string
	}{
		{ExecResult{ExitCode: 1, Stderr: "file:1\nthrow x\nError: boom\n    at main.ts:1:7\n"}, "Error: boom"},
		{ExecResult{ExitCode: 1, Stdout: "last words\n"}, "last words"},
		{ExecResult{ExitCode: 3}, "process exited with code 3"},
	}
	for _, tt := range tests {
		if got := errorMessage(&tt.res); got != tt.want {
			t.Errorf("errorMessage(%+v) = %q, want %q", tt.res, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc\n... output truncated" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("abc", 3); got != "abc" {
		t.Errorf("truncate() = %q", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Timeout: time.Second}.withDefaults()
	if cfg.Timeout != time.Second || cfg.MemoryMB != 256 || cfg.MaxOutput != 64*1024 {
		t.Errorf("withDefaults() = %+v", cfg)
	}
}
