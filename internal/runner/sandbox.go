// Package runner executes learner code in isolation. Every call gets a fresh
// workspace so no state leaks between runs.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/champ/internal/domain"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrEmptyCode           = errors.New("no code to run")
)

// Sandbox runs code and test snippets. The returned error is reserved for
// infrastructure failures; failing user code is reported in the result.
type Sandbox interface {
	Run(ctx context.Context, code string, lang domain.Language) (*RunResult, error)
	RunWithTests(ctx context.Context, code, testCode string, lang domain.Language) (*TestRunResult, error)
}

// RunResult is the outcome of running a program
type RunResult struct {
	Success    bool     `json:"success"`
	Logs       []string `json:"logs"`
	Error      string   `json:"error,omitempty"`
	TypeErrors string   `json:"typeErrors,omitempty"`
}

// TestRunResult is the outcome of running code against its tests
type TestRunResult struct {
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// ExecResult holds the raw output of one command
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Config holds limits shared by all backends
type Config struct {
	Timeout    time.Duration
	MemoryMB   int
	CPULimit   float64
	NetworkOff bool
	// MaxOutput caps captured stdout and stderr in bytes
	MaxOutput int
}

// DefaultConfig returns default execution limits
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		MemoryMB:   256,
		CPULimit:   0.5,
		NetworkOff: true,
		MaxOutput:  64 * 1024,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MemoryMB <= 0 {
		c.MemoryMB = def.MemoryMB
	}
	if c.CPULimit <= 0 {
		c.CPULimit = def.CPULimit
	}
	if c.MaxOutput <= 0 {
		c.MaxOutput = def.MaxOutput
	}
	return c
}
