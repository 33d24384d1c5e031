//go:build windows

package platform

import (
	"unsafe"

	"render-hal/gfx"
)

var _ gfx.NativeWindow = (*Window)(nil)

// NativeHandle returns the window's HWND.
func (w *Window) NativeHandle() uintptr {
	return uintptr(unsafe.Pointer(w.handle.GetWin32Window()))
}
