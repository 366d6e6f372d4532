package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dunamismax/pixelmod/internal/domain"
	"github.com/dunamismax/pixelmod/internal/modifier"
	"github.com/dunamismax/pixelmod/internal/queue"
	"github.com/dunamismax/pixelmod/internal/storage"
)

var errNoObjectStore = errors.New("object storage is not configured")

// output is one resolved export of a job.
type output struct {
	name     string
	pipeline *modifier.Pipeline
	mimeType modifier.MimeType
	// target is the local path or object key the result ends up at.
	target string
	// file is where the backend writes; equal to target for local jobs.
	file string
}

// result describes one written output.
type result struct {
	Name     string
	Target   string
	MimeType modifier.MimeType
	Width    int
	Height   int
}

// process runs every output of the job and returns what was written.
// All commands are validated before the first export so a bad variant
// never leaves the others half written.
func (s *Server) process(ctx context.Context, payload queue.ModifyImagePayload) ([]result, error) {
	req := payload.Request

	scratch, err := os.MkdirTemp(s.scratchDir, "pixelmod-job-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	sourcePath, err := s.fetchSource(ctx, req, scratch)
	if err != nil {
		return nil, err
	}

	base, err := modifier.Open(sourcePath)
	if err != nil {
		return nil, err
	}
	if err := base.ApplyAll(req.Operations); err != nil {
		return nil, fmt.Errorf("base operations: %w", err)
	}

	outputs, err := s.planOutputs(req, base, scratch)
	if err != nil {
		return nil, err
	}

	results := make([]result, 0, len(outputs))
	for _, out := range outputs {
		if err := s.export(ctx, req, out); err != nil {
			return nil, fmt.Errorf("output %s: %w", out.name, err)
		}
		results = append(results, result{
			Name:     out.name,
			Target:   out.target,
			MimeType: out.mimeType,
			Width:    out.pipeline.Width(),
			Height:   out.pipeline.Height(),
		})
	}
	return results, nil
}

// fetchSource places a private copy of the source in scratch. Exports
// reload their source, so a variant written over the original must not
// change what the following variants read.
func (s *Server) fetchSource(ctx context.Context, req domain.ModifyRequest, scratch string) (string, error) {
	if req.SourceType != domain.SourceTypeObject {
		local := filepath.Join(scratch, "source"+filepath.Ext(req.Source))
		if err := copyFile(req.Source, local); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", modifier.ErrResourceNotFound, req.Source)
			}
			return "", fmt.Errorf("copy source %s: %w", req.Source, err)
		}
		return local, nil
	}
	if s.objects == nil {
		return "", errNoObjectStore
	}

	local := filepath.Join(scratch, "source"+path.Ext(req.Source))
	if err := s.objects.Download(ctx, req.Source, local); err != nil {
		if storage.IsNotFound(err) {
			return "", fmt.Errorf("%w: object %s", modifier.ErrResourceNotFound, req.Source)
		}
		return "", err
	}
	return local, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *Server) planOutputs(req domain.ModifyRequest, base *modifier.Pipeline, scratch string) ([]output, error) {
	variants := req.Outputs()
	outputs := make([]output, 0, len(variants))

	for i, v := range variants {
		p := base.Clone()
		if err := p.ApplyAll(v.Operations); err != nil {
			return nil, fmt.Errorf("variant %s: %w", v.Name, err)
		}

		mimeType := p.Source().MimeType
		if v.MimeType != "" {
			parsed, err := modifier.ParseMimeType(v.MimeType)
			if err != nil {
				return nil, fmt.Errorf("variant %s: %w", v.Name, err)
			}
			mimeType = parsed
		}

		target := v.Destination
		if target == "" {
			target = req.Source
		}

		file := target
		if req.SourceType == domain.SourceTypeObject {
			file = filepath.Join(scratch, fmt.Sprintf("output-%d.%s", i, mimeType.Extension()))
		}

		outputs = append(outputs, output{
			name:     v.Name,
			pipeline: p,
			mimeType: mimeType,
			target:   target,
			file:     file,
		})
	}
	return outputs, nil
}

func (s *Server) export(ctx context.Context, req domain.ModifyRequest, out output) error {
	release, err := s.lock(ctx, req.SourceType+":"+out.target)
	if err != nil {
		return err
	}
	defer release()

	for _, op := range out.pipeline.All() {
		s.metrics.operationsTotal.WithLabelValues(op.Kind().String()).Inc()
	}

	err = s.exporter.Export(ctx, out.pipeline,
		modifier.WithDestination(out.file),
		modifier.WithMimeType(out.mimeType),
	)
	if err != nil {
		return err
	}

	if req.SourceType == domain.SourceTypeObject {
		if err := s.objects.Upload(ctx, out.target, out.file, out.mimeType.String()); err != nil {
			return err
		}
	}

	s.metrics.outputsTotal.WithLabelValues(out.mimeType.String()).Inc()
	s.logger.Debug("output written",
		zap.String("variant", out.name),
		zap.String("target", out.target),
		zap.String("mime_type", out.mimeType.String()),
		zap.Int("width", out.pipeline.Width()),
		zap.Int("height", out.pipeline.Height()),
	)
	return nil
}

func (s *Server) lock(ctx context.Context, name string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, name, s.lockTTL)
	if err != nil {
		s.metrics.lockConflictsTotal.Inc()
		return nil, fmt.Errorf("lock destination: %w", err)
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release destination lock", zap.String("name", name), zap.Error(err))
		}
	}, nil
}
