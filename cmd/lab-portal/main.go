package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/genelab/lab-portal/internal/backend"
	"github.com/genelab/lab-portal/internal/events"
	fileshandler "github.com/genelab/lab-portal/internal/files/handler"
	filesservice "github.com/genelab/lab-portal/internal/files/service"
	"github.com/genelab/lab-portal/internal/files/validation"
	intakehandler "github.com/genelab/lab-portal/internal/intake/handler"
	"github.com/genelab/lab-portal/internal/intake/processor"
	"github.com/genelab/lab-portal/internal/intake/repository"
	intakeservice "github.com/genelab/lab-portal/internal/intake/service"
	"github.com/genelab/lab-portal/internal/intake/storage"
	labhandler "github.com/genelab/lab-portal/internal/lab/handler"
	labservice "github.com/genelab/lab-portal/internal/lab/service"
	patienthandler "github.com/genelab/lab-portal/internal/patient/handler"
	patientservice "github.com/genelab/lab-portal/internal/patient/service"
	"github.com/genelab/lab-portal/pkg/config"
	"github.com/genelab/lab-portal/pkg/database"
	"github.com/genelab/lab-portal/pkg/httputil"
	"github.com/genelab/lab-portal/pkg/i18n"
	"github.com/genelab/lab-portal/pkg/logger"
	"github.com/genelab/lab-portal/pkg/messaging"
	"github.com/genelab/lab-portal/pkg/metrics"
)

const serviceName = "lab-portal"

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Lab Portal")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Events are best effort: the portal keeps serving without a broker
	var publisher *events.LabEventPublisher
	var rmq *messaging.RabbitMQ
	if rmq, err = messaging.New(&cfg.RabbitMQ, log); err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, events disabled")
		rmq = nil
	} else {
		defer rmq.Close()
		if publisher, err = events.NewFromRabbitMQ(rmq, log); err != nil {
			log.Warn().Err(err).Msg("failed to create event publisher, events disabled")
			publisher = nil
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Lab backend
	backendClient := backend.NewClient(cfg.Backend, log, m)

	// OCR intake
	resultCache, err := storage.NewResultCache(cfg.OCR.CacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create OCR result cache")
	}
	intakeService := intakeservice.NewService(intakeservice.Config{
		Registry: processor.NewRegistry(
			processor.NewOCREngineProcessor(cfg.OCR, log, m),
			processor.NewPassthroughProcessor(),
		),
		Jobs:    storage.NewJobStore(cfg.OCR.JobTTL),
		Cache:   resultCache,
		Audit:   repository.NewAuditRepository(db.DB),
		Events:  publisher,
		Metrics: m,
	}, log)

	// Services
	patientService, err := patientservice.NewService(backendClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register patient validators")
	}
	filesService := filesservice.NewService(backendClient, validation.DefaultRules(), publisher, m, cfg.Uploads.MaxParallel, log)
	labService := labservice.NewService(backendClient, publisher, m, log)

	// Handlers
	patientHandler := patienthandler.NewHandler(patientService, log)
	filesHandler := fileshandler.NewHandler(filesService, cfg.Uploads.MaxBatchSize, log)
	intakeHandler := intakehandler.NewHandler(intakeService, log)
	labHandler := labhandler.NewHandler(labService, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(i18n.Middleware)
	r.Use(httputil.Identity)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Name", "X-User-Email", "X-User-Role"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(m.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		if err := backendClient.Health(r.Context()); err != nil {
			status["backend"] = map[string]string{"status": "unhealthy", "error": err.Error()}
		} else {
			status["backend"] = map[string]string{"status": "healthy"}
		}
		httputil.JSON(w, http.StatusOK, status)
	})
	r.Handle("/metrics", promhttp.Handler())

	// Routes that stream sequencing files outlive the server timeouts
	transfer := httputil.Transfer(cfg.Server.TransferTimeout, log)

	r.Route("/api/v1", func(r chi.Router) {
		// Patient folders and their files
		r.Route("/patient-folders", func(r chi.Router) {
			r.Get("/", patientHandler.List)
			r.Post("/", patientHandler.Create)
			r.Get("/{id}", patientHandler.Get)
			r.Patch("/{id}", patientHandler.Update)
			r.Delete("/{id}", patientHandler.Delete)

			r.Get("/{id}/files", filesHandler.List)
			r.With(transfer).Post("/{id}/files", filesHandler.Upload)
			r.Post("/{id}/files/validate", filesHandler.Validate)
		})
		r.With(transfer).Get("/files/{fileId}/download", filesHandler.Download)
		r.Delete("/files/{fileId}", filesHandler.Delete)

		// OCR intake
		r.Route("/intake", func(r chi.Router) {
			r.With(transfer).Post("/ocr", intakeHandler.StartOCR)
			r.Get("/ocr/{jobId}", intakeHandler.GetJob)
			r.Post("/map", intakeHandler.Map)
			r.Get("/defaults", intakeHandler.Defaults)
			r.Get("/audit", intakeHandler.ListAudit)
		})

		// Lab sessions
		r.Route("/lab-sessions", func(r chi.Router) {
			r.Get("/", labHandler.ListSessions)
			r.Get("/{id}", labHandler.GetSession)
			r.Post("/{id}/assign", labHandler.AssignLabcodes)
			r.Post("/{id}/result-tests", labHandler.AssignResultTest)
			r.Get("/{id}/fastq-pairs", labHandler.ListFastqPairs)
			r.With(transfer).Post("/{id}/fastq-pairs", labHandler.UploadFastqPair)
			r.Get("/{id}/etl-results", labHandler.ListEtlResults)
		})
		r.Route("/fastq-pairs/{id}", func(r chi.Router) {
			r.Delete("/", labHandler.DeleteFastqPair)
			r.With(transfer).Get("/download", labHandler.DownloadFastqPair)
			r.Post("/reject", labHandler.RejectFastqPair)
		})
		r.Route("/etl-results/{id}", func(r chi.Router) {
			r.Post("/approve", labHandler.ApproveEtlResult)
			r.Post("/reject", labHandler.RejectEtlResult)
			r.With(transfer).Get("/download", labHandler.DownloadEtlResult)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// let running OCR jobs write their audit rows
	intakeService.Wait()

	log.Info().Msg("server stopped")
}
