package modifier

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// Probe reads the header of the image at path and describes it as a
// Source. Only the header is decoded.
func Probe(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Source{}, fmt.Errorf("%w: open source %s: %v", ErrResourceNotFound, path, err)
		}
		return Source{}, fmt.Errorf("open source %s: %w", path, err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return Source{}, fmt.Errorf("detect mime type of %s: %w", path, err)
	}
	mimeType, err := ParseMimeType(mt.String())
	if err != nil {
		return Source{}, fmt.Errorf("source %s: %w", path, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Source{}, fmt.Errorf("rewind %s: %w", path, err)
	}
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Source{}, fmt.Errorf("decode header of %s: %w", path, err)
	}

	return Source{
		Path:     path,
		Width:    cfg.Width,
		Height:   cfg.Height,
		MimeType: mimeType,
	}, nil
}

// Open probes path and starts a pipeline on it.
func Open(path string) (*Pipeline, error) {
	src, err := Probe(path)
	if err != nil {
		return nil, err
	}
	return New(src)
}
