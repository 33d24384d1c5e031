// Package dx implements d3d12.Device over the Direct3D 12, DXGI and
// D3DCompiler COM APIs. COM methods are called through their vtables with
// golang.org/x/sys/windows; no cgo is involved.
//
// On other platforms Open reports gfx.ErrUnsupported.
package dx
