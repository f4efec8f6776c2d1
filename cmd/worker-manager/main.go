// cmd/worker-manager/main.go
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"policy-extraction-workers/internal/common/camunda"
	"policy-extraction-workers/internal/common/config"
	"policy-extraction-workers/internal/common/database"
	apperrors "policy-extraction-workers/internal/common/errors"
	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/internal/common/observability"
	"policy-extraction-workers/internal/extraction"
	"policy-extraction-workers/internal/extraction/confidence"
	"policy-extraction-workers/internal/extraction/mapper"
	"policy-extraction-workers/pkg/registry"

	ei "policy-extraction-workers/internal/workers/policy/extract-installments"
	mpf "policy-extraction-workers/internal/workers/policy/map-policy-fields"
	spr "policy-extraction-workers/internal/workers/policy/store-policy-record"
	vpr "policy-extraction-workers/internal/workers/policy/validate-policy-record"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer func() {
		if err := obs.Shutdown(); err != nil {
			zapLog.Warn("observability shutdown failed", zap.Error(err))
		}
	}()

	ctx := context.Background()

	// --- Extraction engine ---
	engine, err := newEngine(cfg.Extraction, log)
	if err != nil {
		zapLog.Fatal("extraction engine init failed", zap.Error(err))
	}
	zapLog.Info("Extraction rules loaded", zap.String("rulesVersion", engine.RulesVersion()))

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(apperrors.NewDatabaseConnectionFailedError(err)))
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("postgres schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis (mapping cache; workers run without it) ---
	redis := database.NewRedis(cfg.Database.Redis)
	defer redis.Close()
	err = retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 5, time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Warn("redis unavailable, mapping cache degraded", zap.Error(err))
	} else {
		zapLog.Info("Redis connected successfully")
	}

	// --- Workers ---
	workers := camunda.NewRegistry(zeebe.GetClient(), log)

	workers.Register(mpf.TaskType, config.GetWorkerConfig(cfg, mpf.TaskType), mpf.NewHandler(
		&mpf.Config{
			Timeout:  config.GetDuration(config.GetWorkerConfig(cfg, mpf.TaskType).Timeout),
			CacheTTL: cfg.Extraction.CacheTTLDuration(),
		},
		engine, redis.Client, obs, log,
	))

	workers.Register(ei.TaskType, config.GetWorkerConfig(cfg, ei.TaskType), ei.NewHandler(
		&ei.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, ei.TaskType).Timeout)},
		engine, obs, log,
	))

	workers.Register(vpr.TaskType, config.GetWorkerConfig(cfg, vpr.TaskType), vpr.NewHandler(
		&vpr.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, vpr.TaskType).Timeout)},
		engine, obs, log,
	))

	workers.Register(spr.TaskType, config.GetWorkerConfig(cfg, spr.TaskType), spr.NewHandler(
		&spr.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, spr.TaskType).Timeout)},
		pg.DB, engine, obs, log,
	))

	zapLog.Info("Workers registered", zap.Strings("taskTypes", workers.TaskTypes()))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status":       "healthy",
			"rulesVersion": engine.RulesVersion(),
			"time":         time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		for name, check := range map[string]func(context.Context) error{
			"zeebe":    zeebe.HealthCheck,
			"postgres": pg.Ping,
			"redis":    redis.Ping,
		} {
			if err := check(checkCtx); err != nil {
				checks[name] = err.Error()
				if name != "redis" {
					status = http.StatusServiceUnavailable
				}
				continue
			}
			checks[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		writeStatus(w, status, map[string]interface{}{
			"status": state,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func newEngine(cfg config.ExtractionConfig, log logger.Logger) (*extraction.Engine, error) {
	rules, err := registry.Load(cfg.RulesPath)
	if err != nil {
		return nil, apperrors.NewRulesLoadFailedError(cfg.RulesPath, err)
	}
	return extraction.NewEngine(rules,
		extraction.WithLogger(log),
		extraction.WithDefaults(mapper.Defaults{
			LineOfBusiness: cfg.Defaults.LineOfBusiness,
			Currency:       cfg.Defaults.Currency,
			BrokerID:       cfg.Defaults.BrokerID,
			CategoryID:     cfg.Defaults.CategoryID,
		}),
		extraction.WithThresholds(confidence.Thresholds{
			MinCompleteness:  cfg.Validation.MinCompleteness,
			LowConfidence:    cfg.Validation.LowConfidenceThreshold,
			ReviewConfidence: cfg.Validation.ReviewConfidenceThreshold,
		}),
	)
}

func writeStatus(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
