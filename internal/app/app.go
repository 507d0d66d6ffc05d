// Package app wires the champ services from a LocalConfig.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/champ/content"
	"github.com/felixgeelhaar/champ/internal/config"
	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/generator"
	"github.com/felixgeelhaar/champ/internal/lesson"
	"github.com/felixgeelhaar/champ/internal/llm"
	"github.com/felixgeelhaar/champ/internal/practice"
	"github.com/felixgeelhaar/champ/internal/progress"
	"github.com/felixgeelhaar/champ/internal/recap"
	"github.com/felixgeelhaar/champ/internal/runner"
	"github.com/felixgeelhaar/champ/internal/sprint"
	"github.com/felixgeelhaar/champ/internal/storage"
	"github.com/felixgeelhaar/champ/internal/storage/local"
	"github.com/felixgeelhaar/champ/internal/storage/sqlite"
	"github.com/felixgeelhaar/champ/internal/syncer"
)

// App holds all application dependencies
type App struct {
	Config    *config.LocalConfig
	Store     storage.Store
	Sync      syncer.Port
	LLM       *llm.Registry
	Generator generator.Generator
	Sandbox   runner.Sandbox
	Catalog   *lesson.Catalog
	Modules   []domain.Module

	Progress *progress.Service
	Practice *practice.Tracker
	Sprints  *sprint.Service
	Recap    *recap.Service
	Lessons  *lesson.Service

	dispatcher *syncer.Dispatcher
	logger     *slog.Logger
	closers    []func() error
}

// Options holds settings for application initialization
type Options struct {
	Config *config.LocalConfig
	// ChampDir is the data directory, ~/.champ when empty
	ChampDir string
	Logger   *slog.Logger
	// Now overrides the clock of every service
	Now func() time.Time
}

// New creates the application with all services wired
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultLocalConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := opts.ChampDir
	if dir == "" {
		d, err := config.EnsureChampDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	a := &App{Config: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	store, err := a.openStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.Store = store

	a.Sync = a.setupSync(ctx)

	a.LLM = llm.NewRegistry()
	setupLLMProviders(a.LLM, cfg.LLM, logger)
	a.closers = append(a.closers, a.LLM.Close)
	a.Generator = a.setupGenerator()

	a.Sandbox = a.setupSandbox()

	catalog, modules, err := loadContent(cfg.Content)
	if err != nil {
		return nil, err
	}
	a.Catalog = catalog
	a.Modules = modules

	userID := cfg.User.ID
	a.Progress = progress.NewService(store, a.Sync, progress.Config{UserID: userID, Logger: logger, Now: opts.Now})
	a.Practice = practice.NewTracker(store, a.Generator, a.Sync, practice.Config{UserID: userID, Logger: logger, Now: opts.Now})
	a.Sprints = sprint.NewService(modules, store, a.Generator, a.Sync, a.Progress, sprint.Config{
		UserID:            userID,
		ExerciseXP:        cfg.Sprint.ExerciseXP,
		CompletionBonusXP: cfg.Sprint.CompletionBonusXP,
		Queue: sprint.QueueConfig{
			BatchSize: cfg.Sprint.BatchSize,
			LowWater:  cfg.Sprint.LowWater,
		},
		Logger: logger,
		Now:    opts.Now,
	})
	a.Recap = recap.NewService(store, a.Generator, a.Progress, catalog, a.Progress, recap.Config{
		UserID:  userID,
		RecapXP: cfg.Recap.XP,
		Logger:  logger,
		Now:     opts.Now,
	})
	a.Lessons = lesson.NewService(catalog, a.Progress, a.Sandbox, logger)

	logger.Info("champ initialized",
		"user_id", userID,
		"storage", cfg.Storage.Backend,
		"courses", len(catalog.Courses()),
		"lessons", catalog.Count(),
		"modules", len(modules))

	ok = true
	return a, nil
}

func (a *App) openStore(dir string) (storage.Store, error) {
	path := a.Config.StoragePath(dir)

	switch a.Config.Storage.Backend {
	case "file":
		return local.NewStore(path)
	case "sqlite", "":
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(); err != nil {
			return nil, err
		}
		return sqlite.NewSlotStore(db), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, a.Config.Storage.Backend)
	}
}

func (a *App) setupGenerator() generator.Generator {
	gc := a.Config.Generator
	switch gc.Mode {
	case "http":
		if gc.URL == "" {
			a.logger.Warn("generator mode http without url, generation disabled")
			return generator.Unavailable{}
		}
		return generator.NewHTTPClient(generator.HTTPConfig{
			BaseURL:   gc.URL,
			APIKey:    gc.APIKey,
			Timeout:   time.Duration(gc.TimeoutSeconds) * time.Second,
			ChunkSize: gc.ChunkSize,
		})
	case "off":
		return generator.Unavailable{}
	}

	provider, err := a.LLM.Default()
	if err != nil {
		a.logger.Warn("no LLM provider configured, generation disabled", "error", err)
		return generator.Unavailable{}
	}
	rcfg := llm.DefaultResilientConfig()
	rcfg.Logger = a.logger
	resilient := llm.NewResilientProvider(provider, rcfg)
	a.closers = append(a.closers, resilient.Close)

	gen := generator.DefaultConfig()
	gen.ChunkSize = gc.ChunkSize
	gen.Logger = a.logger
	return generator.NewService(resilient, gen)
}

func (a *App) setupSandbox() runner.Sandbox {
	rc := a.Config.Runner
	cfg := runner.Config{
		Timeout:    time.Duration(rc.TimeoutSeconds) * time.Second,
		MemoryMB:   rc.Docker.MemoryMB,
		CPULimit:   rc.Docker.CPULimit,
		NetworkOff: rc.Docker.NetworkOff,
		MaxOutput:  rc.MaxOutputBytes,
	}

	if rc.Executor == "docker" {
		images := make(map[domain.Language]string, len(rc.Docker.Images))
		for name, img := range rc.Docker.Images {
			lang, err := domain.ParseLanguage(name)
			if err != nil {
				a.logger.Warn("ignoring image for unknown language", "language", name)
				continue
			}
			images[lang] = img
		}
		d, err := runner.NewDocker(runner.DockerConfig{Config: cfg, Images: images}, a.logger)
		if err == nil {
			a.closers = append(a.closers, d.Close)
			return d
		}
		a.logger.Warn("Docker sandbox not available, using local runner", "error", err)
	}
	return runner.NewLocal(cfg, a.logger)
}

// loadContent reads courses and sprint modules from disk when configured,
// otherwise from the built-in content
func loadContent(cc config.ContentConfig) (*lesson.Catalog, []domain.Module, error) {
	var loader *lesson.Loader
	if cc.CoursesDir != "" {
		loader = lesson.NewLoader(os.DirFS(cc.CoursesDir), ".")
	} else {
		loader = lesson.NewLoader(content.FS, content.CoursesDir)
	}
	catalog, err := lesson.NewCatalog(loader)
	if err != nil {
		return nil, nil, fmt.Errorf("load courses: %w", err)
	}

	var modFS fs.FS = content.FS
	modPath := content.ModulesFile
	if cc.ModulesFile != "" {
		modFS = os.DirFS(filepath.Dir(cc.ModulesFile))
		modPath = filepath.Base(cc.ModulesFile)
	}
	modules, err := sprint.LoadModules(modFS, modPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load modules: %w", err)
	}
	return catalog, modules, nil
}

// SyncStats reports dispatcher counters when remote sync is enabled
func (a *App) SyncStats() (syncer.Stats, bool) {
	if a.dispatcher == nil {
		return syncer.Stats{}, false
	}
	return a.dispatcher.Stats(), true
}

// Close stops background work and releases resources in reverse order
func (a *App) Close() error {
	if a.Sprints != nil {
		a.Sprints.Close()
	}
	if a.Recap != nil {
		a.Recap.Close()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
