package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunamismax/pixelmod/internal/modifier"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestRunModifiesLocalFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.gif")
	writePNG(t, in, 160, 120)

	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"--in", in,
		"--out", out,
		"--mime", "gif",
		"--backend", "std",
		"--op", "crop 1",
		"--op", "resize max_60 60",
	}, &stdout)
	require.NoError(t, err)
	assert.Equal(t, out+" 60x60\n", stdout.String())

	src, err := modifier.Probe(out)
	require.NoError(t, err)
	assert.Equal(t, modifier.MimeGIF, src.MimeType)
	assert.Equal(t, 60, src.Width)
	assert.Equal(t, 60, src.Height)
}

func TestRunRejectsBadCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writePNG(t, in, 10, 10)

	err := run(context.Background(), []string{"--in", in, "--op", "rotate 90"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, modifier.ErrUnknownCommand)
}

func TestParseFlags(t *testing.T) {
	_, err := parseFlags(nil)
	assert.Error(t, err)

	_, err = parseFlags([]string{"--in", "a.png", "--object"})
	assert.Error(t, err)

	opts, err := parseFlags([]string{"-i", "a.png", "--op", "watermark my logo.png", "--op", "greyscale"})
	require.NoError(t, err)
	assert.Equal(t, []string{"watermark my logo.png", "greyscale"}, opts.ops)
}
