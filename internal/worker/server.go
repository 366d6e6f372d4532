package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dunamismax/pixelmod/internal/config"
	"github.com/dunamismax/pixelmod/internal/domain"
	"github.com/dunamismax/pixelmod/internal/modifier"
	"github.com/dunamismax/pixelmod/internal/queue"
	"github.com/dunamismax/pixelmod/internal/store"
	"github.com/dunamismax/pixelmod/internal/webhook"
)

// ObjectStore moves sources and outputs of object jobs between the bucket
// and local scratch files.
type ObjectStore interface {
	Download(ctx context.Context, objectKey, path string) error
	Upload(ctx context.Context, objectKey, path, contentType string) error
}

// Locker serializes exports that target the same destination.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

type Server struct {
	logger     *zap.Logger
	server     *asynq.Server
	sem        chan struct{}
	exporter   modifier.Exporter
	objects    ObjectStore
	jobStore   store.JobStore
	locker     Locker
	notifier   Notifier
	lockTTL    time.Duration
	scratchDir string
	metrics    *metrics
	tracer     trace.Tracer
}

// Notifier reports finished jobs to the webhook of their request.
type Notifier interface {
	Notify(ctx context.Context, endpoint string, ev webhook.Event) error
}

// Deps are the collaborators a Server runs jobs with. Everything but the
// Exporter may be nil.
type Deps struct {
	Exporter modifier.Exporter
	Objects  ObjectStore
	JobStore store.JobStore
	Locker   Locker
	Notifier Notifier
}

func NewServer(
	logger *zap.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	lockCfg config.LockConfig,
	deps Deps,
) (*Server, error) {
	if deps.Exporter == nil {
		return nil, fmt.Errorf("exporter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("worker")

	s := newServer(logger, workerCfg, lockCfg, deps)
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: workerCfg.Concurrency,
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			LogLevel: asynq.InfoLevel,
			Logger:   logger.Named("asynq").Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Warn("task failed",
					zap.String("type", task.Type()),
					zap.Int("retry", retried),
					zap.Int("max_retry", maxRetry),
					zap.Error(err),
				)
			}),
		},
	)
	return s, nil
}

func newServer(logger *zap.Logger, workerCfg config.WorkerConfig, lockCfg config.LockConfig, deps Deps) *Server {
	return &Server{
		logger:     logger,
		sem:        make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		exporter:   deps.Exporter,
		objects:    deps.Objects,
		jobStore:   deps.JobStore,
		locker:     deps.Locker,
		notifier:   deps.Notifier,
		lockTTL:    lockCfg.TTL,
		scratchDir: workerCfg.ScratchDir,
		metrics:    newMetrics(),
		tracer:     otel.Tracer("pixelmod/worker"),
	}
}

// Start begins consuming tasks in the background; stop with Shutdown.
func (s *Server) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeModifyImage, s.handleModifyImage)
	return s.server.Start(mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleModifyImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseModifyImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	req := payload.Request

	ctx, span := s.tracer.Start(ctx, "worker.modify_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_type", req.SourceType),
		attribute.Int("job.operations", len(req.Operations)),
		attribute.Int("job.outputs", len(req.Outputs())),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(req.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(req.SourceType, outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	log := s.logger.With(zap.String("job_id", payload.JobID), zap.String("source_type", req.SourceType))
	log.Info("modifying image", zap.String("source", req.Source), zap.Int("outputs", len(req.Outputs())))

	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing, "")

	results, err := s.process(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "modify failed")

		if isPermanent(err) {
			s.updateJobStatus(ctx, payload.JobID, domain.JobStatusFailed, err.Error())
			s.notify(ctx, payload, domain.JobStatusFailed, nil, err)
			log.Warn("job rejected", zap.Error(err))
			return fmt.Errorf("modify image: %w: %w", err, asynq.SkipRetry)
		}

		if lastAttempt(ctx) {
			s.updateJobStatus(ctx, payload.JobID, domain.JobStatusFailed, err.Error())
			s.notify(ctx, payload, domain.JobStatusFailed, nil, err)
		} else {
			s.updateJobStatus(ctx, payload.JobID, domain.JobStatusQueued, err.Error())
		}
		return fmt.Errorf("modify image: %w", err)
	}

	log.Info("job finished", zap.Int("outputs", len(results)), zap.Duration("elapsed", time.Since(startedAt)))
	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusSucceeded, "")
	s.notify(ctx, payload, domain.JobStatusSucceeded, results, nil)

	outcome = domain.JobStatusSucceeded
	span.SetStatus(codes.Ok, "modified")
	return nil
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status, errMsg string) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status, errMsg); err != nil {
		s.logger.Warn("job status update failed",
			zap.String("job_id", jobID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

// notify delivers the outcome to the request webhook. Delivery failures are
// logged only; the outputs are already written.
func (s *Server) notify(ctx context.Context, payload queue.ModifyImagePayload, status string, results []result, jobErr error) {
	if s.notifier == nil || payload.Request.WebhookURL == "" {
		return
	}

	ev := webhook.Event{
		Type:       webhook.EventJobSucceeded,
		JobID:      payload.JobID,
		Status:     status,
		Source:     payload.Request.Source,
		OccurredAt: time.Now().UTC(),
	}
	if jobErr != nil {
		ev.Type = webhook.EventJobFailed
		ev.Error = jobErr.Error()
	}
	for _, r := range results {
		ev.Outputs = append(ev.Outputs, webhook.Output{
			Name:     r.Name,
			Target:   r.Target,
			MimeType: r.MimeType.String(),
			Width:    r.Width,
			Height:   r.Height,
		})
	}

	if err := s.notifier.Notify(ctx, payload.Request.WebhookURL, ev); err != nil {
		s.logger.Warn("webhook delivery failed", zap.String("job_id", payload.JobID), zap.Error(err))
	}
}

// isPermanent reports whether retrying err can never succeed.
func isPermanent(err error) bool {
	return modifier.IsValidation(err) ||
		errors.Is(err, modifier.ErrUnsupportedFormat) ||
		errors.Is(err, errNoObjectStore)
}

func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried >= maxRetry
}
