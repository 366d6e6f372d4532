//go:build govips && cgo

package backend

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/dunamismax/pixelmod/internal/modifier"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

// Startup initialises libvips. It is safe to call more than once.
func Startup() error {
	startupOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func newGovips(opts Options) (modifier.Exporter, error) {
	if err := Startup(); err != nil {
		return nil, err
	}
	return bind[*vips.ImageRef](NewGovips(opts), opts), nil
}
