// cmd/pipeline-server/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"loan-pipeline/internal/common/config"
	"loan-pipeline/internal/common/database"
	stderrors "loan-pipeline/internal/common/errors"
	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/common/observability"
	"loan-pipeline/internal/common/validation"
	"loan-pipeline/internal/external"
	"loan-pipeline/internal/models"
	"loan-pipeline/internal/pipeline"
	"loan-pipeline/internal/stages/intake"
	"loan-pipeline/internal/stages/sanction"
	"loan-pipeline/internal/stages/underwriting"
	"loan-pipeline/internal/stages/verification"
	"loan-pipeline/internal/store"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pipeline server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("pipeline-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init External Service Clients ---
	dialogue := external.NewHTTPDialogueClient(
		cfg.Services.Dialogue.BaseURL,
		cfg.Services.Dialogue.APIKey,
		config.GetDuration(cfg.Services.Dialogue.Timeout),
	)
	ocr := external.NewHTTPOCRClient(
		cfg.Services.OCR.BaseURL,
		cfg.Services.OCR.APIKey,
		config.GetDuration(cfg.Services.OCR.Timeout),
	)
	bureau := external.NewHTTPCreditBureauClient(
		cfg.Services.CreditBureau.BaseURL,
		cfg.Services.CreditBureau.APIKey,
		config.GetDuration(cfg.Services.CreditBureau.Timeout),
	)
	identity := external.NewHTTPIdentityClient(
		cfg.Services.CreditBureau.BaseURL,
		cfg.Services.CreditBureau.APIKey,
		config.GetDuration(cfg.Services.CreditBureau.Timeout),
	)
	renderer := external.NewHTTPRenderClient(
		cfg.Services.Renderer.BaseURL,
		"",
		config.GetDuration(cfg.Services.Renderer.Timeout),
	)
	zapLog.Info("All external service clients initialized")

	// --- Stores ---
	history := store.NewPostgresHistory(pg, log)
	sessions := store.NewRedisStore(redis, history, log)

	// --- Stage Handlers ---
	handlers := map[models.Stage]pipeline.StageHandler{}

	if config.IsStageEnabled(cfg, intake.StageName) {
		handlers[models.StageIntake] = intake.NewHandler(
			&intake.Config{
				Timeout: config.GetDuration(config.GetStageConfig(cfg, intake.StageName).Timeout),
			},
			dialogue, log,
		)
	}

	if config.IsStageEnabled(cfg, verification.StageName) {
		handlers[models.StageVerification] = verification.NewHandler(
			&verification.Config{
				Timeout:        config.GetDuration(config.GetStageConfig(cfg, verification.StageName).Timeout),
				MaxNameRetries: config.GetStageConfig(cfg, verification.StageName).MaxRetries,
			},
			identity, log,
		)
	}

	if config.IsStageEnabled(cfg, underwriting.StageName) {
		handlers[models.StageUnderwriting] = underwriting.NewHandler(
			&underwriting.Config{
				Timeout: config.GetDuration(config.GetStageConfig(cfg, underwriting.StageName).Timeout),
			},
			cfg.Underwriting, ocr, bureau, log,
		)
	}

	if config.IsStageEnabled(cfg, sanction.StageName) {
		handlers[models.StageSanction] = sanction.NewHandler(
			&sanction.Config{
				Timeout: config.GetDuration(config.GetStageConfig(cfg, sanction.StageName).Timeout),
			},
			cfg.Underwriting, renderer, log,
		)
	}

	if len(handlers) != len(models.ActiveStages) {
		zapLog.Fatal("all pipeline stages must be enabled",
			zap.Int("enabled", len(handlers)),
			zap.Int("required", len(models.ActiveStages)),
		)
	}
	zapLog.Info("All stage handlers registered successfully")

	orchestrator := pipeline.NewOrchestrator(sessions, history, handlers, cfg.Pipeline, log, obs)

	// --- HTTP Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/turn", handleTurn(orchestrator))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := http.StatusOK
		body := map[string]string{"status": "ready"}
		if err := pg.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "not ready", "reason": "postgres unreachable"}
		} else if err := redis.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "not ready", "reason": "redis unreachable"}
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	go func() {
		zapLog.Info("Pipeline server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Pipeline server stopped gracefully")
}

// handleTurn validates the inbound payload against the turn schema and
// hands it to the orchestrator.
func handleTurn(orchestrator *pipeline.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		result, err := validation.ValidateAgainstSchema(body, validation.TurnRequestSchema)
		if err != nil || !result.Valid {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			if result != nil {
				json.NewEncoder(w).Encode(map[string]interface{}{"errors": result.Errors})
			} else {
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid JSON payload"})
			}
			return
		}

		var input models.TurnInput
		if err := json.Unmarshal(body, &input); err != nil {
			http.Error(w, "invalid turn payload", http.StatusBadRequest)
			return
		}

		// Customer refs are phone-format MSISDNs.
		if !validation.ValidatePhone(input.CustomerRef) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "customerRef must be a phone-format identifier"})
			return
		}

		resp, err := orchestrator.HandleTurn(r.Context(), &input)
		if err != nil {
			writeTurnError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func writeTurnError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if stdErr, ok := err.(*stderrors.StandardError); ok {
		status := http.StatusUnprocessableEntity
		if stdErr.Retryable {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":      string(stdErr.Code),
			"message":   stdErr.Message,
			"retryable": stdErr.Retryable,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
}
