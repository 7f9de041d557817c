package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"DailyBriefing/internal/config"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/infrastructure/extract"
	"DailyBriefing/internal/infrastructure/llm"
	"DailyBriefing/internal/infrastructure/mailer"
	"DailyBriefing/internal/infrastructure/parser"
	"DailyBriefing/internal/infrastructure/render"
	"DailyBriefing/internal/infrastructure/scheduler"
	"DailyBriefing/internal/infrastructure/storage"
	"DailyBriefing/internal/infrastructure/telegram"
	"DailyBriefing/internal/logging"
	"DailyBriefing/internal/metrics"
	"DailyBriefing/internal/ports"
	"DailyBriefing/internal/usecase"
)

// ErrNoDocument is returned by Send when the output directory holds no
// rendered edition.
var ErrNoDocument = errors.New("no document found")

// RunOptions are the command line knobs of a single batch.
type RunOptions struct {
	User   string
	DryRun bool
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sql.DB
	store   *storage.SQLStore
	client  *http.Client
	metrics *metrics.Run
	pusher  *metrics.Pusher
}

// New opens the database and prepares the shared adapters. The generation
// backend is created per batch so that maintenance commands need no API key.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	if cfg.Database.Driver == storage.DialectSQLite && cfg.Database.DSN != ":memory:" {
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}

	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLStore(db, cfg.Database.Driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	run := metrics.NewRun()
	return &Application{
		cfg:     cfg,
		logger:  baseLogger,
		db:      db,
		store:   store,
		client:  &http.Client{Timeout: 30 * time.Second},
		metrics: run,
		pusher:  metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, run),
	}, nil
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Run performs one batch over all active users.
func (a *Application) Run(ctx context.Context, opts RunOptions) ([]domain.RunReport, error) {
	pipeline, closeFn, err := a.pipeline(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	started := time.Now()
	day := started.In(a.cfg.Scheduler.Location())
	reports, err := pipeline.RunAll(ctx, day)
	a.afterBatch(ctx, started, reports, err)
	return reports, err
}

// Schedule runs the batch daily until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	pipeline, closeFn, err := a.pipeline(ctx, RunOptions{})
	if err != nil {
		return err
	}
	defer closeFn()

	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger)
	if err != nil {
		return err
	}

	sched := usecase.NewScheduler(driver, pipeline, a.logger)
	sched.AfterRun = func(ctx context.Context, trigger time.Time, reports []domain.RunReport, err error) {
		a.afterBatch(ctx, trigger, reports, err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Location().String())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Send delivers an existing document. An empty path picks the newest
// document in the output directory.
func (a *Application) Send(ctx context.Context, path string) (string, error) {
	if a.cfg.Delivery.To == "" {
		return "", &config.MissingError{Names: []string{"KINDLE_EMAIL"}}
	}
	if path == "" {
		latest, err := LatestDocument(a.cfg.Paths.Output)
		if err != nil {
			return "", err
		}
		path = latest
	}

	m := mailer.NewSMTPMailer(a.cfg.SMTP, a.cfg.Delivery, a.logger)
	if err := m.Send(ctx, path, a.cfg.Delivery.To); err != nil {
		return path, err
	}
	return path, nil
}

// Migrate creates the schema. New already does this; the command exists so
// operators can prepare a database without running a batch.
func (a *Application) Migrate(ctx context.Context) error {
	return a.store.Migrate(ctx)
}

// Seed imports the users declared in the configuration file.
func (a *Application) Seed(ctx context.Context) (int, error) {
	users := a.cfg.FileUsers()
	if len(users) == 0 {
		return 0, errors.New("no users declared in the configuration file")
	}
	return a.store.SeedUsers(ctx, users)
}

func (a *Application) pipeline(ctx context.Context, opts RunOptions) (*usecase.Pipeline, func(), error) {
	registry, err := a.registry()
	if err != nil {
		return nil, nil, err
	}

	generator, closeFn, err := a.generator(ctx)
	if err != nil {
		return nil, nil, err
	}

	var images *extract.ImageStore
	if a.cfg.Preferences.IncludeImages {
		images = extract.NewImageStore(a.cfg.Paths.Images, a.client)
	}

	renderer, err := render.NewRenderer(render.Settings{
		OutputDir: a.cfg.Paths.Output,
		Formats:   a.cfg.Preferences.Formats,
		MultiUser: a.cfg.MultiUser(),
		Options: render.Options{
			TableOfContents:   a.cfg.Preferences.TableOfContents,
			CandidateAppendix: a.cfg.Preferences.CandidateAppendix,
			IncludeImages:     a.cfg.Preferences.IncludeImages,
		},
	}, render.DefaultRegistry(a.logger, render.WithFont(a.cfg.Paths.Font)), a.logger)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	deps := usecase.PipelineDeps{
		Registry:  registry,
		History:   a.store,
		Fetcher:   parser.NewRSSFetcher(a.client, a.logger),
		Generator: generator,
		Extractor: extract.NewReadabilityExtractor(a.client, images, a.logger),
		Renderer:  renderer,
		Observer:  a.metrics,
		Logger:    a.logger,
	}
	if a.cfg.Delivery.Enabled {
		deps.Mailer = mailer.NewSMTPMailer(a.cfg.SMTP, a.cfg.Delivery, a.logger)
	}
	if notifier := telegram.NewNotifier(a.cfg.Notifications.Telegram, a.logger); notifier.Configured() {
		deps.Notifier = notifier
	}

	pipeline := usecase.NewPipeline(deps, usecase.PipelineOptions{
		ScanLimit:     a.cfg.Preferences.RSSScanLimit,
		MaxArticles:   a.cfg.Preferences.MaxArticles,
		BodyCharLimit: a.cfg.Preferences.BodyCharLimit,
		Deliver:       a.cfg.Delivery.Enabled,
		DryRun:        opts.DryRun,
		UserFilter:    opts.User,
	})
	return pipeline, closeFn, nil
}

func (a *Application) generator(ctx context.Context) (ports.Generator, func(), error) {
	logger := a.logger.With("provider", a.cfg.LLM.Provider, "model", a.cfg.LLM.Model)

	switch a.cfg.LLM.Provider {
	case config.ProviderOpenAI:
		return llm.NewCurator(llm.NewChatGPTClient(a.cfg.LLM), logger), func() {}, nil
	case config.ProviderGemini, "":
		completer, err := llm.NewGeminiCompleter(ctx, a.cfg.LLM)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := completer.Close(); err != nil {
				a.logger.Warn("close gemini client", "error", err)
			}
		}
		return llm.NewCurator(completer, logger), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unsupported llm provider %q", a.cfg.LLM.Provider)
	}
}

func (a *Application) registry() (ports.UserRegistry, error) {
	switch a.cfg.Registry {
	case config.RegistryDatabase:
		return a.store, nil
	case config.RegistryFile:
		return storage.NewFileRegistry(a.cfg.FileUsers()), nil
	default:
		return nil, fmt.Errorf("unknown registry %q", a.cfg.Registry)
	}
}

func (a *Application) afterBatch(ctx context.Context, started time.Time, reports []domain.RunReport, err error) {
	a.metrics.BatchFinished(started, time.Now(), err)
	if pushErr := a.pusher.Push(ctx); pushErr != nil {
		a.logger.Warn("push metrics", "error", pushErr)
	}

	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
		}
	}
	a.logger.Info("batch summary", "users", len(reports), "failed", failed)
}

// LatestDocument returns the most recently written edition in dir.
func LatestDocument(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read output dir: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var docs []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".pdf" && ext != ".epub" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		docs = append(docs, candidate{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoDocument, dir)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].modTime.Equal(docs[j].modTime) {
			return docs[i].path > docs[j].path
		}
		return docs[i].modTime.After(docs[j].modTime)
	})
	return docs[0].path, nil
}
