package gfx

// Surface is a presentation target supplied by the windowing layer.
type Surface interface {
	// FramebufferSize returns the drawable size in pixels.
	FramebufferSize() (width, height int)
}

// GLSurface is a Surface that owns a GL context.
type GLSurface interface {
	Surface
	MakeContextCurrent()
	SwapBuffers()
	SwapInterval(interval int)
}

// NativeWindow is a Surface backed by an OS window handle (HWND on Windows).
type NativeWindow interface {
	Surface
	NativeHandle() uintptr
}
