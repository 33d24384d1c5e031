// Package opengl registers the OpenGL 4.1 backend with gfx under the name
// "opengl". Import it for its side effect:
//
//	import _ "render-hal/opengl"
//
// gfx.Open("opengl", ...) needs Options.Surface to be a gfx.GLSurface. The
// surface's context is made current on the calling goroutine, which must stay
// locked to its OS thread for the device's lifetime.
package opengl

import (
	"fmt"

	"render-hal/gfx"
	"render-hal/internal/opengl"
	"render-hal/internal/opengl/gogl"
)

// Name is the backend name passed to gfx.Open.
const Name = "opengl"

func init() {
	gfx.Register(Name, open)
}

func open(opts gfx.Options) (gfx.Backend, error) {
	surface, ok := opts.Surface.(gfx.GLSurface)
	if !ok {
		return nil, &gfx.ConfigurationError{Op: "open opengl", Err: fmt.Errorf("surface %T has no GL context", opts.Surface)}
	}
	surface.MakeContextCurrent()
	ctx, err := gogl.Load()
	if err != nil {
		return nil, &gfx.BackendFatalError{Op: "open opengl", Err: err}
	}
	b, err := opengl.New(ctx, surface)
	if err != nil {
		return nil, &gfx.BackendFatalError{Op: "open opengl", Err: err}
	}
	gfx.Logger().Info("opengl: context ready", "renderer", b.Info().Renderer, "version", b.Info().Version)
	return b, nil
}
