package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dunamismax/pixelmod/internal/domain"
	"github.com/dunamismax/pixelmod/internal/modifier"
	"github.com/dunamismax/pixelmod/internal/queue"
	"github.com/dunamismax/pixelmod/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	logger      *zap.Logger
	queueClient queueEnqueuer
	jobStore    store.JobStore
	objects     objectChecker
	tracer      trace.Tracer
	metrics     *metrics
	mux         *http.ServeMux
}

type queueEnqueuer interface {
	EnqueueModifyImage(ctx context.Context, payload queue.ModifyImagePayload) (*asynq.TaskInfo, error)
}

type objectChecker interface {
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

// NewServer wires the job submission API. objects may be nil, in which case
// object sources are rejected.
func NewServer(logger *zap.Logger, queueClient queueEnqueuer, jobStore store.JobStore, objects objectChecker, tracer trace.Tracer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:      logger.Named("api"),
		queueClient: queueClient,
		jobStore:    jobStore,
		objects:     objects,
		tracer:      tracer,
		metrics:     newMetrics(),
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.withTracing(s.metrics.withHTTPMetrics(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type jobResponse struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Queue     string    `json:"queue,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req domain.ModifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.checkSource(r.Context(), req); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, errSourceCheck) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err)
		return
	}

	now := time.Now().UTC()
	job := domain.Job{
		ID:        uuid.NewString(),
		Status:    domain.JobStatusCreated,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobStore.Create(r.Context(), job); err != nil {
		s.logger.Error("create job failed", zap.String("job_id", job.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("failed to create job"))
		return
	}

	info, err := s.queueClient.EnqueueModifyImage(r.Context(), queue.ModifyImagePayload{
		JobID:       job.ID,
		Request:     req,
		RequestedAt: now,
	})
	if err != nil {
		s.logger.Error("enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		if _, err := s.jobStore.UpdateStatus(r.Context(), job.ID, domain.JobStatusFailed, "enqueue failed"); err != nil {
			s.logger.Warn("update status failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, errors.New("failed to enqueue job"))
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(info.Queue).Inc()

	if queued, err := s.jobStore.UpdateStatus(r.Context(), job.ID, domain.JobStatusQueued, ""); err != nil {
		s.logger.Warn("update status failed", zap.String("job_id", job.ID), zap.Error(err))
	} else {
		job = queued
	}

	writeJSON(w, http.StatusAccepted, jobResponse{
		JobID:     job.ID,
		Status:    domain.JobStatusQueued,
		Queue:     info.Queue,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Error("fetch job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("failed to load job"))
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, store.ErrJobNotFound)
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	})
}

var errSourceCheck = errors.New("source check failed")

// checkSource rejects requests that can never succeed. Local sources are
// probed and every output's commands are dry-run against the real size.
func (s *Server) checkSource(ctx context.Context, req domain.ModifyRequest) error {
	if req.SourceType == domain.SourceTypeObject {
		if s.objects == nil {
			return errors.New("object sources are not enabled")
		}
		exists, err := s.objects.ObjectExists(ctx, req.Source)
		if err != nil {
			return fmt.Errorf("%w: %w", errSourceCheck, err)
		}
		if !exists {
			return fmt.Errorf("%w: object %s", modifier.ErrResourceNotFound, req.Source)
		}
		return nil
	}

	base, err := modifier.Open(req.Source)
	if err != nil {
		return err
	}
	if err := base.ApplyAll(req.Operations); err != nil {
		return err
	}
	for _, v := range req.Outputs() {
		if err := base.Clone().ApplyAll(v.Operations); err != nil {
			return fmt.Errorf("variant %s: %w", v.Name, err)
		}
		if v.MimeType != "" {
			if _, err := modifier.ParseMimeType(v.MimeType); err != nil {
				return fmt.Errorf("variant %s: %w", v.Name, err)
			}
		}
	}
	return nil
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if decoder.More() {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(err.Error())})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
