//go:build govips && cgo

package backend

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/dunamismax/pixelmod/internal/modifier"
)

// Govips is a Backend built on libvips. Operations mutate the handle in
// place and return it.
type Govips struct {
	opts Options
}

func NewGovips(opts Options) *Govips {
	return &Govips{opts: opts}
}

func (g *Govips) Load(ctx context.Context, path string) (*vips.ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := vips.NewImageFromFile(path)
	if err != nil {
		return nil, openError(path, err)
	}
	return img, nil
}

func (g *Govips) Crop(_ context.Context, img *vips.ImageRef, op modifier.Crop) (*vips.ImageRef, error) {
	r, err := cropRect(image.Rect(0, 0, img.Width(), img.Height()), op)
	if err != nil {
		return img, err
	}
	if err := img.ExtractArea(r.Min.X, r.Min.Y, r.Dx(), r.Dy()); err != nil {
		return img, fmt.Errorf("extract area: %w", err)
	}
	return img, nil
}

func (g *Govips) Resize(_ context.Context, img *vips.ImageRef, op modifier.Resize) (*vips.ImageRef, error) {
	if img.Width() <= 0 || img.Height() <= 0 {
		return img, fmt.Errorf("source image has invalid size")
	}
	hscale := float64(op.Width) / float64(img.Width())
	vscale := float64(op.Height) / float64(img.Height())
	if hscale <= 0 || vscale <= 0 {
		return img, fmt.Errorf("invalid resize target %dx%d", op.Width, op.Height)
	}

	if err := img.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return img, fmt.Errorf("resize image: %w", err)
	}
	return img, nil
}

func (g *Govips) Watermark(_ context.Context, img *vips.ImageRef, op modifier.Watermark) (*vips.ImageRef, error) {
	overlay, err := vips.NewImageFromFile(op.Path)
	if err != nil {
		return img, openError(op.Path, err)
	}
	defer overlay.Close()

	at := overlayPosition(
		image.Rect(0, 0, img.Width(), img.Height()),
		image.Pt(overlay.Width(), overlay.Height()),
		g.opts.Gravity,
		g.opts.padding(),
	)
	if err := img.Composite(overlay, vips.BlendModeOver, at.X, at.Y); err != nil {
		return img, fmt.Errorf("apply watermark: %w", err)
	}
	return img, nil
}

func (g *Govips) Greyscale(_ context.Context, img *vips.ImageRef) (*vips.ImageRef, error) {
	if err := img.ToColorSpace(vips.InterpretationBW); err != nil {
		return img, fmt.Errorf("convert to greyscale: %w", err)
	}
	return img, nil
}

func (g *Govips) Export(ctx context.Context, img *vips.ImageRef, path string, mimeType modifier.MimeType) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := exportGovipsImage(img, mimeType, g.opts.quality())
	if err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (g *Govips) Release(img *vips.ImageRef) {
	if img != nil {
		img.Close()
	}
}

func exportGovipsImage(img *vips.ImageRef, mimeType modifier.MimeType, quality int) ([]byte, error) {
	switch mimeType {
	case modifier.MimeJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = quality
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case modifier.MimePNG:
		data, _, err := img.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case modifier.MimeGIF:
		data, _, err := img.ExportGIF(vips.NewGifExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", modifier.ErrUnsupportedFormat, mimeType)
	}
}
