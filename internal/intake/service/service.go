package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/genelab/lab-portal/internal/events"
	"github.com/genelab/lab-portal/internal/intake/domain"
	"github.com/genelab/lab-portal/internal/intake/mapping"
	"github.com/genelab/lab-portal/internal/intake/processor"
	"github.com/genelab/lab-portal/internal/intake/storage"
	"github.com/genelab/lab-portal/pkg/actor"
	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/logger"
	"github.com/genelab/lab-portal/pkg/messaging"
	"github.com/genelab/lab-portal/pkg/metrics"
)

// AuditStore persists intake audit entries
type AuditStore interface {
	Insert(ctx context.Context, e *domain.AuditEntry) error
	// ListRecent pages through one requester's entries. An empty requester is an error.
	ListRecent(ctx context.Context, requestedBy string, page, perPage int) ([]domain.AuditEntry, int64, error)
}

// Service orchestrates OCR intake: cache lookup → dispatch → reconcile → cleanup
type Service struct {
	registry *processor.Registry
	jobs     *storage.JobStore
	cache    *storage.ResultCache
	audit    AuditStore
	events   *events.LabEventPublisher
	metrics  *metrics.Metrics
	log      *logger.Logger

	jobTimeout time.Duration
	wg         sync.WaitGroup
}

// Config wires the service's collaborators. Audit, Events and Metrics may be nil.
type Config struct {
	Registry   *processor.Registry
	Jobs       *storage.JobStore
	Cache      *storage.ResultCache
	Audit      AuditStore
	Events     *events.LabEventPublisher
	Metrics    *metrics.Metrics
	JobTimeout time.Duration
}

// NewService creates a new intake service
func NewService(cfg Config, log *logger.Logger) *Service {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	return &Service{
		registry:   cfg.Registry,
		jobs:       cfg.Jobs,
		cache:      cfg.Cache,
		audit:      cfg.Audit,
		events:     cfg.Events,
		metrics:    cfg.Metrics,
		log:        log.WithComponent("intake"),
		jobTimeout: cfg.JobTimeout,
	}
}

// run carries per-job state from StartIntake into the background goroutine
type run struct {
	jobID       string
	fileName    string
	hash        string
	requestedBy string
	start       time.Time
}

// StartIntake creates a new intake job for an uploaded requisition.
// Returns the job immediately so the caller can poll for results; a cached
// result completes the job before this returns.
// The data slice is zeroed once processing is done and must not be reused by the caller.
func (s *Service) StartIntake(ctx context.Context, data []byte, fileName string) (*domain.IntakeJob, error) {
	if len(data) == 0 {
		return nil, errors.BadRequestWithKey("files.need_at_least_one_file")
	}

	r := run{
		jobID:       storage.GenerateJobID(),
		fileName:    fileName,
		hash:        storage.ContentHash(data),
		requestedBy: actor.OrSystem(ctx).ID,
		start:       time.Now(),
	}

	s.jobs.Store(&domain.IntakeJob{
		JobID:     r.jobID,
		Status:    domain.StatusProcessing,
		FileName:  fileName,
		CreatedAt: r.start,
	})

	if cached, ok := s.cache.Get(r.hash); ok {
		storage.ZeroBytes(data)
		s.metrics.IncIntakeCacheHit()
		s.log.Info().
			Str("job_id", r.jobID).
			Str("processor", cached.Processor).
			Msg("intake served from result cache")
		s.complete(ctx, r, cached.Result, cached.Processor, true)
		return s.jobs.Get(r.jobID), nil
	}

	kind := processor.DetectKind(data)
	processors := s.registry.FindProcessors(kind)
	if len(processors) == 0 {
		storage.ZeroBytes(data)
		s.fail(ctx, r, "", errors.BadRequestWithKey("errors.ocr_no_processor"))
		return s.jobs.Get(r.jobID), nil
	}

	// The request context ends with the 202 response; processing keeps the
	// caller's values (actor, request ID) but not its cancellation.
	bgCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processAsync(bgCtx, r, data, kind, processors)
	}()

	return s.jobs.Get(r.jobID), nil
}

// processAsync runs extraction in a background goroutine
func (s *Service) processAsync(ctx context.Context, r run, data []byte, kind domain.ContentKind, processors []processor.Processor) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	log := s.log.WithJobID(r.jobID)

	// Try processors in order; if one fails, fall through to the next
	var (
		result   *domain.OCRResult
		procName string
		lastErr  error
	)
	for _, proc := range processors {
		log.Info().
			Str("processor", proc.Name()).
			Str("kind", string(kind)).
			Msg("trying document extraction")

		result, lastErr = proc.Process(ctx, data, r.fileName)
		if lastErr == nil {
			procName = proc.Name()
			break
		}
		procName = proc.Name()
		log.Warn().Err(lastErr).
			Str("processor", proc.Name()).
			Msg("processor failed, trying next")
	}

	// Scan bytes are dropped as soon as no processor needs them
	storage.ZeroBytes(data)

	if lastErr != nil {
		log.Error().Err(lastErr).Msg("all processors failed")
		s.fail(ctx, r, procName, lastErr)
		return
	}

	s.cache.Add(r.hash, storage.CachedResult{Result: result, Processor: procName})
	s.complete(ctx, r, result, procName, false)
}

func (s *Service) complete(ctx context.Context, r run, result *domain.OCRResult, procName string, cached bool) {
	if result == nil {
		result = &domain.OCRResult{}
	}
	values, warnings := mapping.Reconcile(result)
	now := time.Now()
	duration := now.Sub(r.start)

	s.jobs.Update(r.jobID, func(j *domain.IntakeJob) {
		j.Status = domain.StatusCompleted
		j.DocumentName = result.DocumentName
		j.FormValues = &values
		j.Warnings = warnings
		j.Processor = procName
		j.Cached = cached
		j.CompletedAt = &now
	})

	s.metrics.ObserveIntake(string(domain.StatusCompleted), procName, duration)
	s.writeAudit(ctx, &domain.AuditEntry{
		JobID:         r.jobID,
		DocumentName:  result.DocumentName,
		FormType:      string(values.FormType),
		FieldsMapped:  mapping.FieldsMapped(values),
		Warnings:      warnings,
		Processor:     procName,
		Cached:        cached,
		Status:        string(domain.StatusCompleted),
		DurationMs:    duration.Milliseconds(),
		ContentSHA256: r.hash,
		RequestedBy:   r.requestedBy,
	})
	s.events.PublishIntakeCompleted(ctx, messaging.IntakeCompletedEvent{
		JobID:        r.jobID,
		DocumentName: result.DocumentName,
		FormType:     string(values.FormType),
		Processor:    procName,
		Cached:       cached,
		Warnings:     warnings,
		RequestedBy:  r.requestedBy,
	})

	s.log.Info().
		Str("job_id", r.jobID).
		Str("form_type", string(values.FormType)).
		Int("warnings", len(warnings)).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("intake completed")
}

func (s *Service) fail(ctx context.Context, r run, procName string, err error) {
	now := time.Now()
	duration := now.Sub(r.start)
	message := err.Error()

	var appErr *errors.AppError
	s.jobs.Update(r.jobID, func(j *domain.IntakeJob) {
		j.Status = domain.StatusFailed
		j.Processor = procName
		j.Error = message
		j.CompletedAt = &now
		if errors.As(err, &appErr) {
			j.Error = appErr.Message
			j.ErrorKey = appErr.MessageKey
			j.ErrorParams = appErr.Params
		}
	})

	if procName == "" {
		procName = "none"
	}
	s.metrics.ObserveIntake(string(domain.StatusFailed), procName, duration)
	s.writeAudit(ctx, &domain.AuditEntry{
		JobID:         r.jobID,
		Processor:     procName,
		Status:        string(domain.StatusFailed),
		Error:         &message,
		DurationMs:    duration.Milliseconds(),
		ContentSHA256: r.hash,
		RequestedBy:   r.requestedBy,
	})
	s.events.PublishIntakeFailed(ctx, messaging.IntakeFailedEvent{
		JobID:       r.jobID,
		Error:       message,
		RequestedBy: r.requestedBy,
	})
}

// writeAudit records the job outcome; audit failures never fail the job
func (s *Service) writeAudit(ctx context.Context, e *domain.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Insert(context.WithoutCancel(ctx), e); err != nil {
		s.log.Error().Err(err).Str("job_id", e.JobID).Msg("failed to write intake audit entry")
	}
}

// GetJob retrieves an intake job by ID
func (s *Service) GetJob(jobID string) (*domain.IntakeJob, error) {
	job := s.jobs.Get(jobID)
	if job == nil {
		notFound := errors.NotFound("intake job")
		notFound.MessageKey = "errors.ocr_job_not_found"
		return nil, notFound
	}
	return job, nil
}

// Map reconciles an OCR payload synchronously
func (s *Service) Map(result *domain.OCRResult) (domain.FormValues, []string) {
	return mapping.Reconcile(result)
}

// Defaults returns the empty form
func (s *Service) Defaults() domain.FormValues {
	return mapping.DefaultFormValues()
}

// ListAudit returns requestedBy's audit entries, newest first
func (s *Service) ListAudit(ctx context.Context, requestedBy string, page, perPage int) ([]domain.AuditEntry, int64, error) {
	if requestedBy == "" {
		return nil, 0, errors.Unauthorized()
	}
	if s.audit == nil {
		return []domain.AuditEntry{}, 0, nil
	}
	entries, total, err := s.audit.ListRecent(ctx, requestedBy, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list intake audit: %w", err)
	}
	return entries, total, nil
}

// Wait blocks until all in-flight jobs finish. Used on shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}
