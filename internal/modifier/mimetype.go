package modifier

import (
	"fmt"
	"strings"
)

type MimeType string

const (
	MimeJPEG MimeType = "image/jpeg"
	MimeGIF  MimeType = "image/gif"
	MimePNG  MimeType = "image/png"
)

var supportedMimeTypes = map[MimeType]string{
	MimeJPEG: "jpg",
	MimeGIF:  "gif",
	MimePNG:  "png",
}

// ParseMimeType accepts full mime types as well as bare format names
// ("jpg", "png") and the common jpeg aliases.
func ParseMimeType(in string) (MimeType, error) {
	s := strings.ToLower(strings.TrimSpace(in))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.TrimPrefix(s, "image/")

	switch s {
	case "jpeg", "jpg", "pjpeg":
		return MimeJPEG, nil
	case "png", "x-png":
		return MimePNG, nil
	case "gif":
		return MimeGIF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, in)
	}
}

func (m MimeType) Supported() bool {
	_, ok := supportedMimeTypes[m]
	return ok
}

// Extension returns the conventional file extension without the dot.
func (m MimeType) Extension() string {
	return supportedMimeTypes[m]
}

func (m MimeType) String() string {
	return string(m)
}
