package backend

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dunamismax/pixelmod/internal/modifier"
)

var backendNames = []string{NameStd, NameImaging}

func TestExportCropResizeGreyscale(t *testing.T) {
	for _, name := range backendNames {
		t.Run(name, func(t *testing.T) {
			tmp := t.TempDir()
			src := writeTestPNG(t, filepath.Join(tmp, "in.png"), 240, 120)
			dst := filepath.Join(tmp, "out", "result.png")

			p, err := modifier.Open(src)
			require.NoError(t, err)
			require.NoError(t, p.ApplyAll([]string{"crop 1", "resize 0.5", "greyscale"}))

			exporter, err := New(name, Options{})
			require.NoError(t, err)
			require.NoError(t, exporter.Export(context.Background(), p, modifier.WithDestination(dst), modifier.WithMimeType(modifier.MimePNG)))

			img := readImage(t, dst)
			assert.Equal(t, image.Pt(60, 60), img.Bounds().Size())
			for y := 0; y < 60; y += 5 {
				for x := 0; x < 60; x += 5 {
					c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
					require.Equal(t, c.R, c.G, "pixel %d,%d", x, y)
					require.Equal(t, c.G, c.B, "pixel %d,%d", x, y)
				}
			}
			assertNoTempFiles(t, filepath.Dir(dst))
		})
	}
}

func TestExportWatermark(t *testing.T) {
	for _, name := range backendNames {
		t.Run(name, func(t *testing.T) {
			tmp := t.TempDir()
			src := writeSolidPNG(t, filepath.Join(tmp, "in.png"), 60, 60, color.NRGBA{A: 255})
			mark := writeSolidPNG(t, filepath.Join(tmp, "mark.png"), 10, 10, color.NRGBA{R: 255, A: 255})
			dst := filepath.Join(tmp, "out.png")

			p, err := modifier.Open(src)
			require.NoError(t, err)
			require.NoError(t, p.Watermark(mark))

			exporter, err := New(name, Options{})
			require.NoError(t, err)
			require.NoError(t, exporter.Export(context.Background(), p, modifier.WithDestination(dst)))

			img := readImage(t, dst)
			// southeast with 12px padding puts the mark at 38,38.
			assert.Equal(t, color.NRGBA{R: 255, A: 255}, color.NRGBAModel.Convert(img.At(40, 40)))
			assert.Equal(t, color.NRGBA{A: 255}, color.NRGBAModel.Convert(img.At(10, 10)))
		})
	}
}

func TestExportFormatConversion(t *testing.T) {
	for _, name := range backendNames {
		t.Run(name, func(t *testing.T) {
			tmp := t.TempDir()
			src := writeTestPNG(t, filepath.Join(tmp, "in.png"), 32, 16)

			p, err := modifier.Open(src)
			require.NoError(t, err)

			exporter, err := New(name, Options{Quality: 70})
			require.NoError(t, err)

			for _, mt := range []modifier.MimeType{modifier.MimeJPEG, modifier.MimeGIF} {
				dst := filepath.Join(tmp, "out."+mt.Extension())
				require.NoError(t, exporter.Export(context.Background(), p, modifier.WithDestination(dst), modifier.WithMimeType(mt)))

				got, err := modifier.Probe(dst)
				require.NoError(t, err)
				assert.Equal(t, mt, got.MimeType)
				assert.Equal(t, 32, got.Width)
				assert.Equal(t, 16, got.Height)
			}
		})
	}
}

func TestExportWatermarkRemovedBeforeExport(t *testing.T) {
	for _, name := range backendNames {
		t.Run(name, func(t *testing.T) {
			tmp := t.TempDir()
			src := writeTestPNG(t, filepath.Join(tmp, "in.png"), 20, 20)
			mark := writeTestPNG(t, filepath.Join(tmp, "mark.png"), 4, 4)
			dst := filepath.Join(tmp, "out.png")

			p, err := modifier.Open(src)
			require.NoError(t, err)
			require.NoError(t, p.Watermark(mark))
			require.NoError(t, os.Remove(mark))

			exporter, err := New(name, Options{})
			require.NoError(t, err)
			err = exporter.Export(context.Background(), p, modifier.WithDestination(dst))

			require.ErrorIs(t, err, modifier.ErrExport)
			require.ErrorIs(t, err, modifier.ErrResourceNotFound)
			assert.False(t, modifier.IsValidation(err))
			assert.NoFileExists(t, dst)
		})
	}
}

func TestBackendExportLeavesNoPartialFile(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "out.webp")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	err := NewStd(Options{}).Export(context.Background(), img, dst, "image/webp")
	require.ErrorIs(t, err, modifier.ErrUnsupportedFormat)
	assert.NoFileExists(t, dst)
	assertNoTempFiles(t, tmp)
}

func TestCropRectRejectsOutOfBounds(t *testing.T) {
	_, err := cropRect(image.Rect(0, 0, 10, 10), modifier.Crop{Left: 6, Right: 6})
	assert.ErrorIs(t, err, ErrCropBounds)

	r, err := cropRect(image.Rect(5, 5, 15, 15), modifier.Crop{Top: 1, Left: 2, Bottom: 3, Right: 4})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(7, 6, 11, 12), r)
}

func TestOverlayPosition(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)
	size := image.Pt(20, 10)

	tests := map[string]image.Point{
		"":          image.Pt(68, 28),
		"southeast": image.Pt(68, 28),
		"northwest": image.Pt(12, 12),
		"north":     image.Pt(40, 12),
		"center":    image.Pt(40, 20),
		"west":      image.Pt(12, 20),
		"southwest": image.Pt(12, 28),
	}
	for gravity, want := range tests {
		assert.Equal(t, want, overlayPosition(bounds, size, gravity, 12), gravity)
	}

	// Oversized overlays are pinned to the top-left corner.
	assert.Equal(t, image.Pt(0, 0), overlayPosition(bounds, image.Pt(200, 200), "", 12))
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New("magick", Options{})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestTracedRecordsSpans(t *testing.T) {
	tmp := t.TempDir()
	src := writeTestPNG(t, filepath.Join(tmp, "in.png"), 40, 20)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	p, err := modifier.Open(src)
	require.NoError(t, err)
	require.NoError(t, p.CropRatio(1))
	p.Greyscale()

	exporter, err := New(NameStd, Options{Tracer: provider.Tracer("test")})
	require.NoError(t, err)
	require.NoError(t, exporter.Export(context.Background(), p, modifier.WithDestination(filepath.Join(tmp, "out.png"))))

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"backend.load", "backend.crop", "backend.greyscale", "backend.export"}, names)
}

func TestExportIgnoresExifOrientation(t *testing.T) {
	for _, name := range backendNames {
		t.Run(name, func(t *testing.T) {
			tmp := t.TempDir()
			src := writeRotatedJPEG(t, filepath.Join(tmp, "rotated.jpg"), 40, 20)
			dst := filepath.Join(tmp, "square.jpg")

			p, err := modifier.Open(src)
			require.NoError(t, err)
			require.Equal(t, 40, p.Width())
			require.Equal(t, 20, p.Height())
			require.NoError(t, p.CropBox(20, 20))

			exporter, err := New(name, Options{})
			require.NoError(t, err)
			require.NoError(t, exporter.Export(context.Background(), p, modifier.WithDestination(dst)))

			assert.Equal(t, image.Pt(20, 20), readImage(t, dst).Bounds().Size())
		})
	}
}

// writeRotatedJPEG writes a w x h JPEG whose EXIF block carries
// orientation 6 (rotate 90 CW on display).
func writeRotatedJPEG(t testing.TB, path string, w, h int) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	raw := buf.Bytes()
	require.Equal(t, []byte{0xFF, 0xD8}, raw[:2])

	exif := []byte("Exif\x00\x00" +
		"MM\x00\x2a\x00\x00\x00\x08" + // big-endian TIFF header, IFD at 8
		"\x00\x01" + // one entry
		"\x01\x12\x00\x03\x00\x00\x00\x01\x00\x06\x00\x00" + // Orientation SHORT = 6
		"\x00\x00\x00\x00")
	segLen := len(exif) + 2
	app1 := append([]byte{0xFF, 0xE1, byte(segLen >> 8), byte(segLen)}, exif...)

	out := append([]byte{0xFF, 0xD8}, app1...)
	out = append(out, raw[2:]...)
	require.NoError(t, os.WriteFile(path, out, 0o644))
	return path
}

func writeTestPNG(t testing.TB, path string, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}
	writePNG(t, path, img)
	return path
}

func writeSolidPNG(t testing.TB, path string, w, h int, c color.NRGBA) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	writePNG(t, path, img)
	return path
}

func writePNG(t testing.TB, path string, img image.Image) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func readImage(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, _, err := image.Decode(f)
	require.NoError(t, err)
	return img
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
