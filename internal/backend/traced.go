package backend

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelmod/internal/modifier"
)

type traced[H any] struct {
	inner  modifier.Backend[H]
	tracer trace.Tracer
}

// Traced wraps b so that every call runs inside a span.
func Traced[H any](b modifier.Backend[H], tracer trace.Tracer) modifier.Backend[H] {
	return &traced[H]{inner: b, tracer: tracer}
}

func (t *traced[H]) Load(ctx context.Context, path string) (H, error) {
	ctx, span := t.tracer.Start(ctx, "backend.load", trace.WithAttributes(attribute.String("image.path", path)))
	defer span.End()

	img, err := t.inner.Load(ctx, path)
	return img, finish(span, err)
}

func (t *traced[H]) Crop(ctx context.Context, img H, op modifier.Crop) (H, error) {
	ctx, span := t.tracer.Start(ctx, "backend.crop", trace.WithAttributes(
		attribute.Int("crop.top", op.Top),
		attribute.Int("crop.left", op.Left),
		attribute.Int("crop.bottom", op.Bottom),
		attribute.Int("crop.right", op.Right),
	))
	defer span.End()

	out, err := t.inner.Crop(ctx, img, op)
	return out, finish(span, err)
}

func (t *traced[H]) Resize(ctx context.Context, img H, op modifier.Resize) (H, error) {
	ctx, span := t.tracer.Start(ctx, "backend.resize", trace.WithAttributes(
		attribute.Int("resize.width", op.Width),
		attribute.Int("resize.height", op.Height),
	))
	defer span.End()

	out, err := t.inner.Resize(ctx, img, op)
	return out, finish(span, err)
}

func (t *traced[H]) Watermark(ctx context.Context, img H, op modifier.Watermark) (H, error) {
	ctx, span := t.tracer.Start(ctx, "backend.watermark", trace.WithAttributes(attribute.String("watermark.path", op.Path)))
	defer span.End()

	out, err := t.inner.Watermark(ctx, img, op)
	return out, finish(span, err)
}

func (t *traced[H]) Greyscale(ctx context.Context, img H) (H, error) {
	ctx, span := t.tracer.Start(ctx, "backend.greyscale")
	defer span.End()

	out, err := t.inner.Greyscale(ctx, img)
	return out, finish(span, err)
}

func (t *traced[H]) Export(ctx context.Context, img H, path string, mimeType modifier.MimeType) error {
	ctx, span := t.tracer.Start(ctx, "backend.export", trace.WithAttributes(
		attribute.String("export.path", path),
		attribute.String("export.mime_type", mimeType.String()),
	))
	defer span.End()

	return finish(span, t.inner.Export(ctx, img, path, mimeType))
}

func (t *traced[H]) Release(img H) {
	if r, ok := t.inner.(modifier.Releaser[H]); ok {
		r.Release(img)
	}
}

func finish(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
