package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docpipe/internal/config"
	"github.com/kailas-cloud/docpipe/internal/db"
	dbRedis "github.com/kailas-cloud/docpipe/internal/db/redis"
	logpkg "github.com/kailas-cloud/docpipe/internal/logger"
	"github.com/kailas-cloud/docpipe/internal/metrics"
	"github.com/kailas-cloud/docpipe/internal/plan"
	contactrepo "github.com/kailas-cloud/docpipe/internal/repository/contact"
	criteriarepo "github.com/kailas-cloud/docpipe/internal/repository/criteria"
	spillrepo "github.com/kailas-cloud/docpipe/internal/repository/spill"
	chiTransport "github.com/kailas-cloud/docpipe/internal/transport/chi"
	healthuc "github.com/kailas-cloud/docpipe/internal/usecase/health"
	queryuc "github.com/kailas-cloud/docpipe/internal/usecase/query"
	"github.com/kailas-cloud/docpipe/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docpipe API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("key_prefix", cfg.Storage.KeyPrefix),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Search indexes. A failed contact index only disables pushdown, the
	// pipeline still filters everything itself.
	prefix := cfg.Storage.KeyPrefix
	contactIndex := ensureContactIndex(ctx, store, prefix, logger)
	ensureCriteriaIndex(ctx, store, prefix, logger)

	// Create repositories (domain-native, no adapters)
	contactRepo, err := contactrepo.New(store, prefix, cfg.Pipeline.FetchPoolSize)
	if err != nil {
		logger.Fatal("Failed to create contact repository", zap.Error(err))
	}
	defer contactRepo.Close()

	criteriaRepo, err := criteriarepo.New(store, prefix, cfg.Pipeline.CriteriaCacheSize)
	if err != nil {
		logger.Fatal("Failed to create criteria repository", zap.Error(err))
	}

	spillStore := spillrepo.New(store, prefix, time.Duration(cfg.Pipeline.SpillTTLSec)*time.Second)

	// Create use case services
	planner := plan.NewPlanner(contactIndex, cfg.Pipeline.MaxFanOut)
	querySvc := queryuc.New(planner, contactRepo, criteriaRepo, spillStore, cfg.Pipeline.MaxRows)
	healthSvc := healthuc.New(store, store, contactrepo.IndexName(prefix))

	// Create chi server
	server := chiTransport.NewServer(querySvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// ensureContactIndex creates the compound FT index over the contact
// collection and returns its plan-time description. Returns nil when the
// index cannot be created; queries then run without pushdown.
func ensureContactIndex(ctx context.Context, store *dbRedis.Store, prefix string, logger *zap.Logger) *plan.Index {
	def := db.NewIndex(contactrepo.IndexName(prefix)).
		OnJSON().
		Prefix(contactrepo.KeyPrefix(prefix)).
		TagAs("$.initiative_id", "initiative_id").
		NumericAs("$.questions[*].category", "question_category").
		NumericAs("$.questions[*].answers[*].value", "answer_value").
		MustBuild()

	if err := store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		logger.Warn("Contact index unavailable, queries will scan",
			zap.String("index", def.Name), zap.Error(err))
		return nil
	}

	logger.Info("Contact index ready", zap.String("index", def.Name))
	return &plan.Index{
		Name: def.Name,
		Fields: []string{
			plan.FieldInitiative,
			plan.FieldCategory,
			plan.FieldAnswer,
		},
	}
}

// ensureCriteriaIndex creates the (value, initiative) FT index used by the
// correlated lookup. Lookup correctness does not depend on it; without the
// index every lookup fails and queries surface store errors.
func ensureCriteriaIndex(ctx context.Context, store *dbRedis.Store, prefix string, logger *zap.Logger) {
	def := db.NewIndex(criteriarepo.IndexName(prefix)).
		OnJSON().
		Prefix(criteriarepo.KeyPrefix(prefix)).
		NumericAs("$.value", "value").
		TagAs("$.initiative_id", "initiative_id").
		MustBuild()

	if err := store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		logger.Warn("Criteria index unavailable",
			zap.String("index", def.Name), zap.Error(err))
		return
	}
	logger.Info("Criteria index ready", zap.String("index", def.Name))
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line: one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
