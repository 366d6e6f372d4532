package backend

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/dunamismax/pixelmod/internal/modifier"
)

// Std is a Backend built on image/* and golang.org/x/image/draw.
type Std struct {
	opts Options
}

func NewStd(opts Options) *Std {
	return &Std{opts: opts}
}

func (s *Std) Load(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decodeFile(path)
}

func (s *Std) Crop(_ context.Context, img image.Image, op modifier.Crop) (image.Image, error) {
	r, err := cropRect(img.Bounds(), op)
	if err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, r.Min, xdraw.Src)
	return dst, nil
}

func (s *Std) Resize(_ context.Context, img image.Image, op modifier.Resize) (image.Image, error) {
	if op.Width <= 0 || op.Height <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", op.Width, op.Height)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, op.Width, op.Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst, nil
}

func (s *Std) Watermark(_ context.Context, img image.Image, op modifier.Watermark) (image.Image, error) {
	overlay, err := decodeFile(op.Path)
	if err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(img.Bounds())
	xdraw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, xdraw.Src)

	size := overlay.Bounds().Size()
	at := overlayPosition(dst.Bounds(), size, s.opts.Gravity, s.opts.padding())
	xdraw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(size)}, overlay, overlay.Bounds().Min, xdraw.Over)
	return dst, nil
}

func (s *Std) Greyscale(_ context.Context, img image.Image) (image.Image, error) {
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			l := luma(c.R, c.G, c.B)
			dst.SetNRGBA(x, y, color.NRGBA{R: l, G: l, B: l, A: c.A})
		}
	}
	return dst, nil
}

func (s *Std) Export(ctx context.Context, img image.Image, path string, mimeType modifier.MimeType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		return encodeImage(w, img, mimeType, s.opts.quality())
	})
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func encodeImage(w io.Writer, img image.Image, mimeType modifier.MimeType, quality int) error {
	switch mimeType {
	case modifier.MimeJPEG:
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
	case modifier.MimePNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(w, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	case modifier.MimeGIF:
		if err := gif.Encode(w, img, &gif.Options{NumColors: 256}); err != nil {
			return fmt.Errorf("encode gif: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", modifier.ErrUnsupportedFormat, mimeType)
	}
	return nil
}

// luma uses the ITU-R BT.601 weights in 16.16 fixed point.
func luma(r, g, b uint8) uint8 {
	y := (19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16
	return uint8(y)
}
