package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/champ/internal/config"
	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/runner"
)

// cmdRun runs a source file, through the daemon when it is up and with the
// local runner otherwise
func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	testsPath := fs.String("tests", "", "test file to run against the code")
	langFlag := fs.String("lang", "", "language (typescript, python); detected from the extension when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: champ run [--tests file] [--lang language] <file>")
	}

	path := fs.Arg(0)
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read code: %w", err)
	}

	lang, err := detectLanguage(path, *langFlag)
	if err != nil {
		return err
	}

	var testCode []byte
	if *testsPath != "" {
		if testCode, err = os.ReadFile(*testsPath); err != nil {
			return fmt.Errorf("read tests: %w", err)
		}
	}

	if isRunning() {
		return runViaDaemon(string(code), string(testCode), lang)
	}
	return runLocally(string(code), string(testCode), lang)
}

func detectLanguage(path, flagValue string) (domain.Language, error) {
	if flagValue != "" {
		return domain.ParseLanguage(flagValue)
	}
	switch ext := filepath.Ext(path); ext {
	case ".ts", ".tsx", ".js":
		return domain.LanguageTypeScript, nil
	case ".py":
		return domain.LanguagePython, nil
	default:
		return "", fmt.Errorf("cannot detect language from %q, use --lang", ext)
	}
}

func runViaDaemon(code, testCode string, lang domain.Language) error {
	body := map[string]string{"code": code, "language": string(lang)}
	if testCode != "" {
		body["testCode"] = testCode
		var res runner.TestRunResult
		if err := postJSON("/v1/run/tests", body, &res); err != nil {
			return fmt.Errorf("run tests: %w", err)
		}
		printTestResult(&res)
		return nil
	}

	var res runner.RunResult
	if err := postJSON("/v1/run", body, &res); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	printRunResult(&res)
	return nil
}

func runLocally(code, testCode string, lang domain.Language) error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	r := runner.NewLocal(runner.Config{
		Timeout:   time.Duration(cfg.Runner.TimeoutSeconds) * time.Second,
		MaxOutput: cfg.Runner.MaxOutputBytes,
	}, logger)

	ctx := context.Background()
	if testCode != "" {
		res, err := r.RunWithTests(ctx, code, testCode, lang)
		if err != nil {
			return err
		}
		printTestResult(res)
		return nil
	}

	res, err := r.Run(ctx, code, lang)
	if err != nil {
		return err
	}
	printRunResult(res)
	return nil
}

func printRunResult(res *runner.RunResult) {
	for _, line := range res.Logs {
		fmt.Println(line)
	}
	if res.TypeErrors != "" {
		fmt.Printf("\nType errors:\n%s\n", res.TypeErrors)
	}
	if res.Success {
		fmt.Println("\n✓ Run succeeded")
		return
	}
	fmt.Printf("\n✗ Run failed: %s\n", res.Error)
}

func printTestResult(res *runner.TestRunResult) {
	if res.Passed {
		fmt.Println("✓ Tests passed")
		return
	}
	fmt.Printf("✗ Tests failed: %s\n", res.Error)
}
