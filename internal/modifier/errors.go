package modifier

import "errors"

// Enqueue-time errors. A call that returns one of these leaves the
// pipeline untouched.
var (
	ErrInvalidDimension     = errors.New("invalid dimension")
	ErrResourceNotFound     = errors.New("resource not found")
	ErrInvalidArgumentCount = errors.New("invalid argument count")
	ErrUnknownCommand       = errors.New("unknown command")
)

// Export-time errors. The queue survives them and export may be retried.
var (
	ErrBackend           = errors.New("backend failure")
	ErrExport            = errors.New("export failed")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// IsValidation reports whether err was raised while enqueueing, as
// opposed to while exporting.
func IsValidation(err error) bool {
	if errors.Is(err, ErrExport) {
		return false
	}
	return errors.Is(err, ErrInvalidDimension) ||
		errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrInvalidArgumentCount) ||
		errors.Is(err, ErrUnknownCommand)
}
