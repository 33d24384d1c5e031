package opengl

import (
	"fmt"

	"render-hal/gfx"
)

type framebuffer struct {
	fbo           uint32
	colors        int
	depth         gfx.PixelFormat
	width, height uint32
}

func (b *Backend) CreateFramebuffer(color []gfx.Handle, depth gfx.Handle) (gfx.Handle, error) {
	colors := make([]*texture, len(color))
	for i, h := range color {
		tex, err := lookup(&b.textures, "texture", h)
		if err != nil {
			return 0, err
		}
		colors[i] = tex
	}
	var depthTex *texture
	if depth != 0 {
		tex, err := lookup(&b.textures, "texture", depth)
		if err != nil {
			return 0, err
		}
		depthTex = tex
	}
	fbo, err := b.newFBO(colors, depthTex)
	if err != nil {
		return 0, &gfx.ConfigurationError{Op: "create framebuffer", Err: err}
	}
	fb := &framebuffer{fbo: fbo, colors: len(colors)}
	if len(colors) > 0 {
		fb.width, fb.height = colors[0].desc.Width, colors[0].desc.Height
	}
	if depthTex != nil {
		fb.depth = depthTex.desc.Format
		fb.width, fb.height = depthTex.desc.Width, depthTex.desc.Height
	}
	return b.framebuffers.Insert(fb), nil
}

// newFBO builds and checks a framebuffer object, then restores the bound
// render target.
func (b *Backend) newFBO(colors []*texture, depth *texture) (uint32, error) {
	fbo := b.gl.GenFramebuffer()
	b.gl.BindFramebuffer(FRAMEBUFFER, fbo)
	bufs := make([]uint32, len(colors))
	for i, tex := range colors {
		bufs[i] = COLOR_ATTACHMENT0 + uint32(i)
		b.gl.FramebufferTexture2D(FRAMEBUFFER, bufs[i], TEXTURE_2D, tex.id, 0)
	}
	if depth != nil {
		attachment := uint32(DEPTH_ATTACHMENT)
		if depth.desc.Format.HasStencil() {
			attachment = DEPTH_STENCIL_ATTACHMENT
		}
		b.gl.FramebufferTexture2D(FRAMEBUFFER, attachment, TEXTURE_2D, depth.id, 0)
	}
	if len(bufs) == 0 {
		b.gl.DrawBuffers([]uint32{NONE})
		b.gl.ReadBuffer(NONE)
	} else {
		b.gl.DrawBuffers(bufs)
	}
	status := b.gl.CheckFramebufferStatus(FRAMEBUFFER)
	b.gl.BindFramebuffer(FRAMEBUFFER, b.boundFBO())
	if status != FRAMEBUFFER_COMPLETE {
		b.gl.DeleteFramebuffer(fbo)
		return 0, fmt.Errorf("framebuffer incomplete: status=0x%X", status)
	}
	return fbo, nil
}

func (b *Backend) DestroyFramebuffer(h gfx.Handle) {
	fb, ok := b.framebuffers.Remove(h)
	if !ok {
		return
	}
	if b.bound.framebuffer == h {
		b.bound = target{}
		b.gl.BindFramebuffer(FRAMEBUFFER, 0)
	}
	b.gl.DeleteFramebuffer(fb.fbo)
}

// boundFBO returns the GL name of the bound render target, 0 for the default
// framebuffer.
func (b *Backend) boundFBO() uint32 {
	if fb, ok := b.framebuffers.Get(b.bound.framebuffer); ok {
		return fb.fbo
	}
	if sc, ok := b.swapchains.Get(b.bound.swapchain); ok && int(sc.current) < len(sc.fbos) {
		return sc.fbos[sc.current]
	}
	return 0
}
