package modifier

import (
	"context"
	"fmt"
	"strings"
)

type exportOptions struct {
	path     string
	mimeType MimeType
}

type ExportOption func(*exportOptions)

// WithDestination overrides the output path (default: source path).
func WithDestination(path string) ExportOption {
	return func(o *exportOptions) {
		o.path = path
	}
}

// WithMimeType overrides the output format (default: source mime type).
func WithMimeType(m MimeType) ExportOption {
	return func(o *exportOptions) {
		o.mimeType = m
	}
}

// Export loads the source through b, replays the queue in insertion
// order and writes the result. The pipeline is not modified, so a failed
// export can be retried. With an empty queue the source is re-encoded,
// which converts formats.
func Export[H any](ctx context.Context, p *Pipeline, b Backend[H], opts ...ExportOption) error {
	o := exportOptions{
		path:     p.source.Path,
		mimeType: p.source.MimeType,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !o.mimeType.Supported() {
		return fmt.Errorf("%w: target mime type %q", ErrUnsupportedFormat, o.mimeType)
	}
	if strings.TrimSpace(o.path) == "" {
		return fmt.Errorf("%w: destination path is required", ErrExport)
	}

	img, err := b.Load(ctx, p.source.Path)
	if err != nil {
		return fmt.Errorf("%w: %w: load %s: %w", ErrExport, ErrBackend, p.source.Path, err)
	}
	if r, ok := b.(Releaser[H]); ok {
		defer func() { r.Release(img) }()
	}

	for i, op := range p.queue {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrExport, ctx.Err())
		default:
		}

		next, err := apply(ctx, b, img, op)
		if err != nil {
			return fmt.Errorf("%w: %w: step %d %s: %w", ErrExport, ErrBackend, i, op.Kind(), err)
		}
		img = next
	}

	if err := b.Export(ctx, img, o.path, o.mimeType); err != nil {
		return fmt.Errorf("%w: write %s as %s: %w", ErrExport, o.path, o.mimeType, err)
	}
	return nil
}

func apply[H any](ctx context.Context, b Backend[H], img H, op Operation) (H, error) {
	switch op := op.(type) {
	case Crop:
		return b.Crop(ctx, img, op)
	case Resize:
		return b.Resize(ctx, img, op)
	case Watermark:
		return b.Watermark(ctx, img, op)
	case Greyscale:
		return b.Greyscale(ctx, img)
	default:
		return img, fmt.Errorf("unhandled operation %T", op)
	}
}
