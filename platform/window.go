// Package platform opens glfw windows that serve as gfx surfaces. A window
// created for OpenGL owns a 4.1 core context and is a gfx.GLSurface; on
// Windows every window is also a gfx.NativeWindow for Direct3D 12.
//
// glfw must be driven from the main thread, which this package locks.
package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"render-hal/gfx"
)

func init() {
	runtime.LockOSThread()
}

// API selects the client API the window is created for.
type API int

const (
	APIOpenGL API = iota
	// APINone creates a window without a GL context, for explicit APIs.
	APINone
)

type WindowConfig struct {
	Width     int
	Height    int
	Title     string
	Resizable bool
	API       API
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Width:     1280,
		Height:    720,
		Title:     "render-hal",
		Resizable: true,
	}
}

type Window struct {
	handle   *glfw.Window
	api      API
	onResize func(width, height int)
}

var _ gfx.GLSurface = (*Window)(nil)

func NewWindow(config WindowConfig) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, boolToInt(config.Resizable))
	switch config.API {
	case APIOpenGL:
		glfw.WindowHint(glfw.ContextVersionMajor, 4)
		glfw.WindowHint(glfw.ContextVersionMinor, 1)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	case APINone:
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	default:
		glfw.Terminate()
		return nil, fmt.Errorf("unknown window API %d", config.API)
	}

	handle, err := glfw.CreateWindow(config.Width, config.Height, config.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w := &Window{handle: handle, api: config.API}
	handle.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if w.onResize != nil && width > 0 && height > 0 {
			w.onResize(width, height)
		}
	})
	gfx.Logger().Debug("platform: window created", "title", config.Title, "width", config.Width, "height", config.Height)
	return w, nil
}

func (w *Window) ShouldClose() bool {
	return w.handle.ShouldClose()
}

func (w *Window) SetShouldClose(v bool) {
	w.handle.SetShouldClose(v)
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

// FramebufferSize is the drawable size in pixels, which differs from the
// window size on high-DPI displays.
func (w *Window) FramebufferSize() (int, int) {
	return w.handle.GetFramebufferSize()
}

// SetResizeCallback is called with the new framebuffer size. Minimizing
// does not report a zero size.
func (w *Window) SetResizeCallback(cb func(width, height int)) {
	w.onResize = cb
}

func (w *Window) MakeContextCurrent() {
	if w.api == APIOpenGL {
		w.handle.MakeContextCurrent()
	}
}

func (w *Window) SwapBuffers() {
	if w.api == APIOpenGL {
		w.handle.SwapBuffers()
	}
}

// SwapInterval applies to the current context.
func (w *Window) SwapInterval(interval int) {
	if w.api == APIOpenGL {
		glfw.SwapInterval(interval)
	}
}

func (w *Window) SetTitle(title string) {
	w.handle.SetTitle(title)
}

func (w *Window) IsKeyPressed(key Key) bool {
	return w.handle.GetKey(glfw.Key(key)) == glfw.Press
}

// SetKeyCallback reports key presses.
func (w *Window) SetKeyCallback(cb func(key Key)) {
	w.handle.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action == glfw.Press {
			cb(Key(key))
		}
	})
}

func (w *Window) Destroy() {
	w.handle.Destroy()
	glfw.Terminate()
}

func boolToInt(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}

type Key int

const (
	KeySpace  = Key(glfw.KeySpace)
	KeyEscape = Key(glfw.KeyEscape)
	KeyF      = Key(glfw.KeyF)
	KeyV      = Key(glfw.KeyV)
)
