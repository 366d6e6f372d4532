// Package backend provides raster implementations of modifier.Backend.
//
// Std depends only on the standard library and golang.org/x/image,
// Imaging uses github.com/disintegration/imaging, and Govips binds libvips
// when built with the govips tag and cgo.
package backend

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelmod/internal/modifier"
)

const (
	NameStd     = "std"
	NameImaging = "imaging"
	NameGovips  = "govips"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrUnavailable    = errors.New("backend not compiled in")
	ErrCropBounds     = errors.New("crop rectangle outside image")
)

const (
	defaultQuality = 85
	defaultPadding = 12
)

type Options struct {
	// Quality is the JPEG quality, 1-100.
	Quality int
	// Gravity places watermarks: north, northeast, east, southeast (default), ...
	Gravity string
	// Padding is the watermark distance from the image edge in pixels.
	Padding int
	// Tracer, when set, wraps every backend call in a span.
	Tracer trace.Tracer
}

func (o Options) quality() int {
	if o.Quality <= 0 || o.Quality > 100 {
		return defaultQuality
	}
	return o.Quality
}

func (o Options) padding() int {
	if o.Padding < 0 {
		return 0
	}
	if o.Padding == 0 {
		return defaultPadding
	}
	return o.Padding
}

// New returns the named backend bound as an Exporter. An empty name
// selects imaging.
func New(name string, opts Options) (modifier.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameImaging:
		return bind[image.Image](NewImaging(opts), opts), nil
	case NameStd:
		return bind[image.Image](NewStd(opts), opts), nil
	case NameGovips:
		return newGovips(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

func bind[H any](b modifier.Backend[H], opts Options) modifier.Exporter {
	if opts.Tracer != nil {
		return modifier.Bind(Traced(b, opts.Tracer))
	}
	return modifier.Bind(b)
}

// cropRect maps edge offsets onto the bounds of an image.
func cropRect(bounds image.Rectangle, op modifier.Crop) (image.Rectangle, error) {
	r := image.Rect(
		bounds.Min.X+op.Left,
		bounds.Min.Y+op.Top,
		bounds.Max.X-op.Right,
		bounds.Max.Y-op.Bottom,
	)
	if r.Empty() || !r.In(bounds) {
		return image.Rectangle{}, fmt.Errorf("%w: %s on %dx%d", ErrCropBounds, op, bounds.Dx(), bounds.Dy())
	}
	return r, nil
}

// overlayPosition returns the top-left corner for an overlay of the given
// size inside bounds.
func overlayPosition(bounds image.Rectangle, size image.Point, gravity string, pad int) image.Point {
	minX, minY := bounds.Min.X, bounds.Min.Y
	maxX, maxY := bounds.Max.X, bounds.Max.Y

	leftX := minX + pad
	centerX := minX + (bounds.Dx()-size.X)/2
	rightX := maxX - size.X - pad

	topY := minY + pad
	centerY := minY + (bounds.Dy()-size.Y)/2
	bottomY := maxY - size.Y - pad

	var x, y int
	switch strings.ToLower(strings.TrimSpace(gravity)) {
	case "northwest":
		x, y = leftX, topY
	case "north":
		x, y = centerX, topY
	case "northeast":
		x, y = rightX, topY
	case "west":
		x, y = leftX, centerY
	case "center":
		x, y = centerX, centerY
	case "east":
		x, y = rightX, centerY
	case "southwest":
		x, y = leftX, bottomY
	case "south":
		x, y = centerX, bottomY
	default:
		x, y = rightX, bottomY
	}

	return image.Pt(clamp(x, minX, maxX), clamp(y, minY, maxY))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", modifier.ErrResourceNotFound, path)
	}
	return fmt.Errorf("open %s: %w", path, err)
}
