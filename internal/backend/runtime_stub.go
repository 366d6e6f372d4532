//go:build !govips || !cgo

package backend

import (
	"fmt"

	"github.com/dunamismax/pixelmod/internal/modifier"
)

func Startup() error {
	return nil
}

func Shutdown() {}

func newGovips(Options) (modifier.Exporter, error) {
	return nil, fmt.Errorf("%w: %s (build with -tags govips and cgo)", ErrUnavailable, NameGovips)
}
