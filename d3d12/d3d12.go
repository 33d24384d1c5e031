// Package d3d12 registers the Direct3D 12 backend with gfx under the name
// "d3d12". Import it for its side effect:
//
//	import _ "render-hal/d3d12"
//
// Swapchains need a gfx.NativeWindow surface. On platforms other than
// Windows gfx.Open fails with gfx.ErrUnsupported.
package d3d12

import (
	"errors"

	"render-hal/gfx"
	"render-hal/internal/d3d12"
	"render-hal/internal/d3d12/dx"
)

// Name is the backend name passed to gfx.Open.
const Name = d3d12.Name

func init() {
	gfx.Register(Name, open)
}

func open(opts gfx.Options) (gfx.Backend, error) {
	dev, err := dx.Open(opts.Debug)
	if err != nil {
		if errors.Is(err, gfx.ErrUnsupported) {
			return nil, &gfx.ConfigurationError{Op: "open d3d12", Err: err}
		}
		return nil, &gfx.BackendFatalError{Op: "open d3d12", Err: err}
	}
	b, err := d3d12.New(dev, opts)
	if err != nil {
		dev.Release()
		return nil, &gfx.BackendFatalError{Op: "open d3d12", Err: err}
	}
	return b, nil
}
