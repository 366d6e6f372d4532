// Command pixelmod applies modification commands to an image, either in
// process or by submitting a job to the worker queue.
//
//	pixelmod --in cat.png --out cat.jpg --op "crop 1.5" --op "resize max_800 600" --op greyscale
//	pixelmod --enqueue --object --in uploads/cat.png --out thumbs/cat.jpg --op "resize 0.25"
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dunamismax/pixelmod/internal/backend"
	"github.com/dunamismax/pixelmod/internal/config"
	"github.com/dunamismax/pixelmod/internal/domain"
	"github.com/dunamismax/pixelmod/internal/logging"
	"github.com/dunamismax/pixelmod/internal/modifier"
	"github.com/dunamismax/pixelmod/internal/queue"
	"github.com/dunamismax/pixelmod/internal/store"
)

type options struct {
	configPath string
	in         string
	out        string
	mimeType   string
	ops        []string
	backend    string
	quality    int
	gravity    string
	enqueue    bool
	object     bool
	webhookURL string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "pixelmod:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("pixelmod", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVarP(&opts.in, "in", "i", "", "source image path (or object key with --object)")
	fs.StringVarP(&opts.out, "out", "o", "", "destination; defaults to overwriting the source")
	fs.StringVarP(&opts.mimeType, "mime", "m", "", "output mime type or format name (jpeg, png, gif)")
	fs.StringArrayVar(&opts.ops, "op", nil, `command to enqueue, repeatable ("crop 1.5", "resize max_800 600", "watermark logo.png", "greyscale")`)
	fs.StringVar(&opts.backend, "backend", "", "raster backend: std, imaging or govips")
	fs.IntVar(&opts.quality, "quality", 0, "JPEG quality 1-100")
	fs.StringVar(&opts.gravity, "gravity", "", "watermark placement")
	fs.BoolVar(&opts.enqueue, "enqueue", false, "submit a job instead of processing in process")
	fs.BoolVar(&opts.object, "object", false, "treat --in and --out as object keys (requires --enqueue)")
	fs.StringVar(&opts.webhookURL, "webhook", "", "URL notified when the job finishes (requires --enqueue)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.in == "" {
		return options{}, fmt.Errorf("--in is required")
	}
	if (opts.object || opts.webhookURL != "") && !opts.enqueue {
		return options{}, fmt.Errorf("--object and --webhook require --enqueue")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.backend != "" {
		cfg.Backend.Name = opts.backend
	}
	if opts.quality != 0 {
		cfg.Backend.Quality = opts.quality
	}
	if opts.gravity != "" {
		cfg.Backend.Gravity = opts.gravity
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("cli")

	if opts.enqueue {
		return enqueue(ctx, cfg, logger, opts, stdout)
	}
	return modify(ctx, cfg, logger, opts, stdout)
}

func modify(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts options, stdout io.Writer) error {
	if err := backend.Startup(); err != nil {
		return err
	}
	defer backend.Shutdown()

	exporter, err := backend.New(cfg.Backend.Name, backend.Options{
		Quality: cfg.Backend.Quality,
		Gravity: cfg.Backend.Gravity,
		Padding: cfg.Backend.Padding,
	})
	if err != nil {
		return err
	}

	p, err := modifier.Open(opts.in)
	if err != nil {
		return err
	}
	if err := p.ApplyAll(opts.ops); err != nil {
		return err
	}

	var exportOpts []modifier.ExportOption
	if opts.out != "" {
		exportOpts = append(exportOpts, modifier.WithDestination(opts.out))
	}
	if opts.mimeType != "" {
		mimeType, err := modifier.ParseMimeType(opts.mimeType)
		if err != nil {
			return err
		}
		exportOpts = append(exportOpts, modifier.WithMimeType(mimeType))
	}

	startedAt := time.Now()
	if err := exporter.Export(ctx, p, exportOpts...); err != nil {
		return err
	}

	dst := opts.out
	if dst == "" {
		dst = opts.in
	}
	logger.Debug("image written",
		zap.String("source", opts.in),
		zap.Int("operations", p.Len()),
		zap.Duration("elapsed", time.Since(startedAt)),
	)
	_, err = fmt.Fprintf(stdout, "%s %dx%d\n", dst, p.Width(), p.Height())
	return err
}

func enqueue(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts options, stdout io.Writer) error {
	sourceType := domain.SourceTypeLocalFile
	if opts.object {
		sourceType = domain.SourceTypeObject
	}

	now := time.Now().UTC()
	job := domain.Job{
		ID:     uuid.NewString(),
		Status: domain.JobStatusQueued,
		Request: domain.ModifyRequest{
			SourceType:  sourceType,
			Source:      opts.in,
			Destination: opts.out,
			MimeType:    opts.mimeType,
			Operations:  opts.ops,
			WebhookURL:  opts.webhookURL,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := job.Request.Validate(); err != nil {
		return err
	}

	jobStore, closeStore, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	if err := jobStore.Create(ctx, job); err != nil {
		return err
	}

	client := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("queue client close failed", zap.Error(err))
		}
	}()

	info, err := client.EnqueueModifyImage(ctx, queue.ModifyImagePayload{
		JobID:       job.ID,
		Request:     job.Request,
		RequestedAt: now,
	})
	if err != nil {
		if _, updateErr := jobStore.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, err.Error()); updateErr != nil {
			logger.Warn("job status update failed", zap.Error(updateErr))
		}
		return err
	}

	logger.Info("job enqueued", zap.String("job_id", job.ID), zap.String("queue", info.Queue))
	_, err = fmt.Fprintln(stdout, job.ID)
	return err
}
