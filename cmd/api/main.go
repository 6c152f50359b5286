package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/essay-workshop/internal/application"
	appanalysis "github.com/bryanwahyu/essay-workshop/internal/application/analysis"
	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/application/pipeline"
	"github.com/bryanwahyu/essay-workshop/internal/application/workshop"
	"github.com/bryanwahyu/essay-workshop/internal/config"
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
	anthropicai "github.com/bryanwahyu/essay-workshop/internal/infra/ai/anthropic"
	openaiai "github.com/bryanwahyu/essay-workshop/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/essay-workshop/internal/infra/db/mysql"
	"github.com/bryanwahyu/essay-workshop/internal/infra/db/postgres"
	"github.com/bryanwahyu/essay-workshop/internal/infra/httpserver"
	"github.com/bryanwahyu/essay-workshop/internal/infra/logging"
	minioStore "github.com/bryanwahyu/essay-workshop/internal/infra/storage"
	"github.com/bryanwahyu/essay-workshop/internal/middleware"
)

func main() {
	// path config.yaml; empty means defaults plus environment
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Format, cfg.Logging.Level)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	lib, err := loadLibrary(cfg.LibraryPath)
	if err != nil {
		return err
	}
	client, err := buildClient(cfg)
	if err != nil {
		return err
	}
	caller := genai.NewCaller(client, cfg.AI.Policy)

	svc := &appanalysis.Service{
		Pipeline: pipeline.New(caller, lib, cfg.Pipeline),
		Editor:   workshop.NewEditor(caller, lib, cfg.Workshop),
		Clock:    application.SystemClock{},
		Logger:   slog.Default(),
	}
	deps := []middleware.Dependency{
		{Name: "library", Checker: libraryCheck(lib)},
		{Name: "ai_provider", Checker: providerCheck(cfg, client)},
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		deps = append(deps, middleware.Dependency{Name: "database", Checker: &middleware.DatabaseHealthChecker{DB: db}})
		if cfg.Database.Driver == config.DriverPostgres {
			svc.Repo, svc.RunErrors = postgres.NewAnalysisRepository(db), postgres.NewRunErrorRepository(db)
		} else {
			svc.Repo, svc.RunErrors = mysqlp.NewAnalysisRepository(db), mysqlp.NewRunErrorRepository(db)
		}
	}

	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		svc.Reports = store
		// optional: report archiving never fails an analysis
		deps = append(deps, middleware.Dependency{Name: "report_store", Checker: middleware.CheckFunc(store.Ping), Optional: true})
	}

	stopLimiter := make(chan struct{})
	defer close(stopLimiter)
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RequestsPerSecond, stopLimiter)
	}

	handler := httpserver.NewRouter(svc, httpserver.Options{
		Logger:       slog.Default(),
		APIKeys:      cfg.Auth.APIKeys,
		RateLimiter:  limiter,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Dependencies: deps,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// a full analysis makes dozens of generative calls
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr, "provider", cfg.AI.Provider, "storage", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	slog.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx2)
}

func loadLibrary(path string) (*library.Library, error) {
	if path == "" {
		return library.Load()
	}
	return library.LoadFile(path)
}

// libraryCheck fails when the pattern tables could not serve the editor.
func libraryCheck(lib *library.Library) middleware.CheckFunc {
	return func(context.Context) error {
		if lib == nil || len(lib.Strategies()) == 0 {
			return errors.New("pattern library not loaded")
		}
		if lib.EssaySpeak.Len() == 0 || lib.Cliches.Len() == 0 {
			return errors.New("pattern library has empty phrase tables")
		}
		return nil
	}
}

// providerCheck fails when no generative client is configured.
func providerCheck(cfg *config.Config, client ai.Client) middleware.CheckFunc {
	return func(context.Context) error {
		if client == nil {
			return fmt.Errorf("no client for provider %q", cfg.AI.Provider)
		}
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("provider %q has no API key", cfg.AI.Provider)
		}
		return nil
	}
}

func buildClient(cfg *config.Config) (ai.Client, error) {
	switch cfg.AI.Provider {
	case config.ProviderAnthropic:
		c, err := anthropicai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderOpenAI:
		return openaiai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.AI.Provider)
	}
}

// openDatabase connects and migrates the configured store; no driver means
// results are not persisted.
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	var (
		db      *sql.DB
		err     error
		migrate func(context.Context, *sql.DB) error
	)
	switch cfg.Database.Driver {
	case "":
		return nil, nil
	case config.DriverPostgres:
		db, err = postgres.Connect(ctx, cfg.DSN())
		migrate = postgres.Migrate
	default:
		db, err = mysqlp.Connect(ctx, cfg.DSN())
		migrate = mysqlp.Migrate
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
