package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/sms-webhook/internal/api"
	"github.com/LeventeLantos/sms-webhook/internal/cache"
	"github.com/LeventeLantos/sms-webhook/internal/config"
	"github.com/LeventeLantos/sms-webhook/internal/extract"
	"github.com/LeventeLantos/sms-webhook/internal/logging"
	"github.com/LeventeLantos/sms-webhook/internal/metrics"
	"github.com/LeventeLantos/sms-webhook/internal/repo"
	"github.com/LeventeLantos/sms-webhook/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics.Init()

	dialect, err := repo.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return err
	}

	db, err := repo.Open(ctx, dialect, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	messages := repo.NewSQLMessageRepo(db, dialect)
	if err := messages.EnsureSchema(ctx); err != nil {
		return err
	}

	var opts []extract.Option
	if !cfg.Extractor.RecursiveFallback {
		opts = append(opts, extract.WithoutRecursiveFallback())
	}
	ex := extract.New(opts...)

	svc := service.New(ex, messages).WithLogger(logger)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.Redis.Address, err)
		}
		svc.WithCache(cache.NewRedisCache(rdb, cfg.Redis.TTL))
	}

	h := api.NewHandler(svc, cfg.Server.StrictErrors).WithLogger(logger)

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           loggingMiddleware(api.Router(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("sms webhook server starting",
		"addr", srv.Addr,
		"driver", cfg.Database.Driver,
		"redis", cfg.Redis.Enabled,
		"strategies", ex.Strategies(),
		"strict_errors", cfg.Server.StrictErrors,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", reqID,
		)
	})
}
