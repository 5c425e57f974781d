package main

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	"backend-scampr/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	errListen   = errors.New("listen failed")
	errShutdown = errors.New("shutdown failed")
)

func testConfig() config.Config {
	return config.Config{ServerPort: ":0", APIPrefix: "/api/v1", JWTSecret: "secret"}
}

// blockingListen stands in for app.Listen: it returns once shutdownFn runs.
func blockingListen(t *testing.T) ListenFunc {
	t.Helper()
	stop := make(chan struct{})
	oldShutdown := shutdownFn
	shutdownFn = func(app *fiber.App, ctx context.Context) error {
		close(stop)
		return oldShutdown(app, ctx)
	}
	t.Cleanup(func() { shutdownFn = oldShutdown })

	return func(*fiber.App, string) error {
		<-stop
		return nil
	}
}

func TestRunShutsDownOnSignal(t *testing.T) {
	listen := blockingListen(t)
	inner := shutdownFn
	var hadDeadline bool
	shutdownFn = func(app *fiber.App, ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return inner(app, ctx)
	}

	signals := make(chan os.Signal, 1)
	signals <- syscall.SIGTERM

	if err := Run(context.Background(), testConfig(), nil, nil, zap.NewNop(), signals, listen); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !hadDeadline {
		t.Fatalf("expected shutdown to be bounded by a deadline")
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Run(ctx, testConfig(), nil, nil, nil, make(chan os.Signal), blockingListen(t)); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunReturnsListenError(t *testing.T) {
	err := Run(context.Background(), testConfig(), nil, nil, nil, make(chan os.Signal), func(*fiber.App, string) error {
		return errListen
	})
	if !errors.Is(err, errListen) {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestRunReturnsShutdownError(t *testing.T) {
	oldShutdown := shutdownFn
	shutdownFn = func(*fiber.App, context.Context) error { return errShutdown }
	defer func() { shutdownFn = oldShutdown }()

	signals := make(chan os.Signal, 1)
	signals <- syscall.SIGINT

	err := Run(context.Background(), testConfig(), nil, nil, nil, signals, func(*fiber.App, string) error { return nil })
	if !errors.Is(err, errShutdown) {
		t.Fatalf("expected shutdown error, got %v", err)
	}
}

func TestRunClosesRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	signals := make(chan os.Signal, 1)
	signals <- syscall.SIGINT

	if err := Run(context.Background(), testConfig(), nil, client, zap.NewNop(), signals, blockingListen(t)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := client.Ping(context.Background()).Err(); !errors.Is(err, redis.ErrClosed) {
		t.Fatalf("expected closed redis client, got %v", err)
	}
}

func TestRealMainLogsDegradedDependencies(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	var gotLevel string
	var ranWith *zap.Logger
	deps := mainDeps{
		loadConfig: func() config.Config {
			cfg := testConfig()
			cfg.LogLevel = "debug"
			return cfg
		},
		newLogger: func(level string) *zap.Logger {
			gotLevel = level
			return logger
		},
		connectPostgres: func(config.Config) (*pgxpool.Pool, error) { return nil, errors.New("no postgres") },
		connectRedis:    func(config.Config) (*redis.Client, error) { return nil, errors.New("no redis") },
		notify:          func(chan<- os.Signal, ...os.Signal) {},
		run: func(_ context.Context, _ config.Config, pg *pgxpool.Pool, rdb *redis.Client, log *zap.Logger, _ <-chan os.Signal, _ ListenFunc) error {
			if pg != nil || rdb != nil {
				t.Fatalf("expected missing dependencies to be passed as nil")
			}
			ranWith = log
			return errListen
		},
	}

	realMain(deps)

	if gotLevel != "debug" {
		t.Fatalf("expected logger built at configured level, got %q", gotLevel)
	}
	if ranWith != logger {
		t.Fatalf("expected run to receive the configured logger")
	}
	for msg, level := range map[string]zapcore.Level{
		"postgres connection failed":                         zapcore.ErrorLevel,
		"redis unavailable, streaming to local clients only": zapcore.WarnLevel,
		"server exited with error":                           zapcore.ErrorLevel,
	} {
		entries := logs.FilterMessage(msg).All()
		if len(entries) != 1 || entries[0].Level != level {
			t.Fatalf("expected one %s entry %q, got %v", level, msg, entries)
		}
	}
}

func TestDefaultDeps(t *testing.T) {
	deps := defaultDeps()
	if deps.loadConfig == nil || deps.newLogger == nil || deps.connectPostgres == nil ||
		deps.connectRedis == nil || deps.notify == nil || deps.run == nil {
		t.Fatalf("expected default deps to be set")
	}
}

func TestMainUsesOverrides(t *testing.T) {
	oldProvider, oldRunner := mainDepsProvider, mainRunner
	defer func() { mainDepsProvider, mainRunner = oldProvider, oldRunner }()

	called := false
	mainDepsProvider = func() mainDeps { return mainDeps{} }
	mainRunner = func(mainDeps) { called = true }

	main()
	if !called {
		t.Fatalf("expected main runner to be called")
	}
}
