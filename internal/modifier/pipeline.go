package modifier

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"slices"
	"strings"
)

// Source describes the image a pipeline starts from.
type Source struct {
	Path     string
	Width    int
	Height   int
	MimeType MimeType
}

// Pipeline accumulates operations against an image of known size. Each
// call validates its arguments against the running size, which reflects
// every crop and resize queued so far. No pixel work happens until Export.
//
// A Pipeline is not safe for concurrent use.
type Pipeline struct {
	source Source
	width  int
	height int
	queue  []Operation
}

func New(src Source) (*Pipeline, error) {
	if src.Width <= 0 || src.Height <= 0 {
		return nil, fmt.Errorf("%w: source size %dx%d", ErrInvalidDimension, src.Width, src.Height)
	}
	if !src.MimeType.Supported() {
		return nil, fmt.Errorf("%w: source mime type %q", ErrUnsupportedFormat, src.MimeType)
	}

	return &Pipeline{
		source: src,
		width:  src.Width,
		height: src.Height,
	}, nil
}

func (p *Pipeline) Source() Source {
	return p.source
}

// Width returns the running width.
func (p *Pipeline) Width() int {
	return p.width
}

// Height returns the running height.
func (p *Pipeline) Height() int {
	return p.height
}

func (p *Pipeline) Len() int {
	return len(p.queue)
}

// Operations returns a copy of the queue in insertion order.
func (p *Pipeline) Operations() []Operation {
	return slices.Clone(p.queue)
}

// All iterates the queue in insertion order.
func (p *Pipeline) All() iter.Seq2[int, Operation] {
	return func(yield func(int, Operation) bool) {
		for i, op := range p.queue {
			if !yield(i, op) {
				return
			}
		}
	}
}

// Clone returns an independent copy. Operations are values, so copying
// the slice is a deep copy.
func (p *Pipeline) Clone() *Pipeline {
	return &Pipeline{
		source: p.source,
		width:  p.width,
		height: p.height,
		queue:  slices.Clone(p.queue),
	}
}

// CropRatio crops to the given width:height ratio.
func (p *Pipeline) CropRatio(ratio float64) error {
	c, err := ResolveCropRatio(p.width, p.height, ratio)
	if err != nil {
		return err
	}
	p.enqueueCrop(c)
	return nil
}

// CropBox crops to a width x height region.
func (p *Pipeline) CropBox(width, height int) error {
	c, err := ResolveCropBox(p.width, p.height, width, height)
	if err != nil {
		return err
	}
	p.enqueueCrop(c)
	return nil
}

// CropEdges removes explicit pixel counts from each edge.
func (p *Pipeline) CropEdges(top, left, bottom, right int) error {
	c, err := ResolveCropEdges(p.width, p.height, top, left, bottom, right)
	if err != nil {
		return err
	}
	p.enqueueCrop(c)
	return nil
}

// Resize scales to width x height; see ResolveResize for the meaning of
// zero and maximum dimensions.
func (p *Pipeline) Resize(width, height Dimension) error {
	r, err := ResolveResize(p.width, p.height, width, height)
	if err != nil {
		return err
	}
	p.enqueueResize(r)
	return nil
}

// ResizeScale scales both sides by scale.
func (p *Pipeline) ResizeScale(scale float64) error {
	r, err := ResolveResizeScale(p.width, p.height, scale)
	if err != nil {
		return err
	}
	p.enqueueResize(r)
	return nil
}

// Watermark queues an overlay of the image at path. The file must exist
// now; it is not checked again before export.
func (p *Pipeline) Watermark(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty watermark path", ErrResourceNotFound)
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: watermark %s", ErrResourceNotFound, path)
	case err != nil:
		return fmt.Errorf("%w: watermark %s: %v", ErrResourceNotFound, path, err)
	case !info.Mode().IsRegular():
		return fmt.Errorf("%w: watermark %s is not a regular file", ErrResourceNotFound, path)
	}

	p.queue = append(p.queue, Watermark{Path: path})
	return nil
}

// Greyscale queues a conversion to greyscale. Repeated calls queue
// repeated operations.
func (p *Pipeline) Greyscale() {
	p.queue = append(p.queue, Greyscale{})
}

func (p *Pipeline) enqueueCrop(c Crop) {
	if c.IsZero() {
		return
	}
	p.queue = append(p.queue, c)
	p.width, p.height = c.Apply(p.width, p.height)
}

func (p *Pipeline) enqueueResize(r Resize) {
	if r.Width == p.width && r.Height == p.height {
		return
	}
	p.queue = append(p.queue, r)
	p.width, p.height = r.Width, r.Height
}
