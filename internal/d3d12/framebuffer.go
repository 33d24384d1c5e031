package d3d12

import (
	"fmt"

	"render-hal/gfx"
)

// framebuffer only names its attachments. The RTV and DSV descriptors
// belong to the textures and are bound with OMSetRenderTargets per pass.
type framebuffer struct {
	color         []gfx.Handle
	depth         gfx.Handle
	width, height uint32
}

func (b *Backend) CreateFramebuffer(color []gfx.Handle, depth gfx.Handle) (gfx.Handle, error) {
	fb := &framebuffer{color: append([]gfx.Handle(nil), color...), depth: depth}
	for _, h := range color {
		tex, err := lookup(&b.textures, "texture", h)
		if err != nil {
			return 0, err
		}
		if tex.rtv == nil {
			return 0, &gfx.ConfigurationError{Op: "create framebuffer", Err: fmt.Errorf("color attachment %q is not a render target", tex.desc.Label)}
		}
		fb.width, fb.height = tex.desc.Width, tex.desc.Height
	}
	if depth != 0 {
		tex, err := lookup(&b.textures, "texture", depth)
		if err != nil {
			return 0, err
		}
		if tex.dsv == nil {
			return 0, &gfx.ConfigurationError{Op: "create framebuffer", Err: fmt.Errorf("depth attachment %q has format %v", tex.desc.Label, tex.desc.Format)}
		}
		fb.width, fb.height = tex.desc.Width, tex.desc.Height
	}
	return b.framebuffers.Insert(fb), nil
}

func (b *Backend) DestroyFramebuffer(h gfx.Handle) {
	b.framebuffers.Remove(h)
}
