package modifier

import "context"

// Backend executes queued operations on a concrete raster library. H is
// the backend's image handle; every call consumes the previous handle and
// returns the one to use next.
type Backend[H any] interface {
	Load(ctx context.Context, path string) (H, error)
	Crop(ctx context.Context, img H, op Crop) (H, error)
	Resize(ctx context.Context, img H, op Resize) (H, error)
	Watermark(ctx context.Context, img H, op Watermark) (H, error)
	Greyscale(ctx context.Context, img H) (H, error)
	// Export encodes img as mimeType and writes it to path. Implementations
	// must not leave a partial file at path on failure.
	Export(ctx context.Context, img H, path string, mimeType MimeType) error
}

// Releaser is implemented by backends whose handles hold native
// resources. Export calls Release once with the last handle it obtained.
type Releaser[H any] interface {
	Release(img H)
}

// Exporter is a Backend with its handle type bound, so callers can hold
// backends of different handle types behind one interface.
type Exporter interface {
	Export(ctx context.Context, p *Pipeline, opts ...ExportOption) error
}

type boundExporter[H any] struct {
	backend Backend[H]
}

// Bind wraps b as an Exporter.
func Bind[H any](b Backend[H]) Exporter {
	return boundExporter[H]{backend: b}
}

func (e boundExporter[H]) Export(ctx context.Context, p *Pipeline, opts ...ExportOption) error {
	return Export(ctx, p, e.backend, opts...)
}
