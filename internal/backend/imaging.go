package backend

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"github.com/dunamismax/pixelmod/internal/modifier"
)

// Imaging is a Backend built on github.com/disintegration/imaging.
type Imaging struct {
	opts Options
}

func NewImaging(opts Options) *Imaging {
	return &Imaging{opts: opts}
}

func (b *Imaging) Load(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Stored pixel order, like Probe; EXIF orientation is not applied.
	img, err := imaging.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}
	return img, nil
}

func (b *Imaging) Crop(_ context.Context, img image.Image, op modifier.Crop) (image.Image, error) {
	r, err := cropRect(img.Bounds(), op)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, r), nil
}

func (b *Imaging) Resize(_ context.Context, img image.Image, op modifier.Resize) (image.Image, error) {
	if op.Width <= 0 || op.Height <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", op.Width, op.Height)
	}
	return imaging.Resize(img, op.Width, op.Height, imaging.Lanczos), nil
}

func (b *Imaging) Watermark(_ context.Context, img image.Image, op modifier.Watermark) (image.Image, error) {
	overlay, err := imaging.Open(op.Path)
	if err != nil {
		return nil, openError(op.Path, err)
	}

	at := overlayPosition(img.Bounds(), overlay.Bounds().Size(), b.opts.Gravity, b.opts.padding())
	return imaging.Overlay(img, overlay, at, 1.0), nil
}

func (b *Imaging) Greyscale(_ context.Context, img image.Image) (image.Image, error) {
	return imaging.Grayscale(img), nil
}

func (b *Imaging) Export(ctx context.Context, img image.Image, path string, mimeType modifier.MimeType) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	format, err := imagingFormat(mimeType)
	if err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		if err := imaging.Encode(w, img, format, imaging.JPEGQuality(b.opts.quality())); err != nil {
			return fmt.Errorf("encode %s: %w", mimeType, err)
		}
		return nil
	})
}

func imagingFormat(mimeType modifier.MimeType) (imaging.Format, error) {
	switch mimeType {
	case modifier.MimeJPEG:
		return imaging.JPEG, nil
	case modifier.MimePNG:
		return imaging.PNG, nil
	case modifier.MimeGIF:
		return imaging.GIF, nil
	default:
		return 0, fmt.Errorf("%w: %s", modifier.ErrUnsupportedFormat, mimeType)
	}
}
