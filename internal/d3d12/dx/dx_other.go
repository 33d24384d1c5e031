//go:build !windows

package dx

import (
	"fmt"

	"render-hal/gfx"
	"render-hal/internal/d3d12"
)

// Open always fails outside Windows.
func Open(debug bool) (d3d12.Device, error) {
	return nil, fmt.Errorf("%w: Direct3D 12 is only available on Windows", gfx.ErrUnsupported)
}
