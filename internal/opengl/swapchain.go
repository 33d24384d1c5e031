package opengl

import (
	"fmt"

	"render-hal/gfx"
)

// swapchain renders into offscreen textures, one framebuffer object each,
// and presents by blitting the current one to the window's default
// framebuffer before swapping.
type swapchain struct {
	surface gfx.GLSurface
	desc    gfx.SwapchainDescription
	color   []gfx.Handle
	depth   gfx.Handle
	fbos    []uint32
	current uint32
}

func (b *Backend) CreateSwapchain(surface gfx.Surface, desc gfx.SwapchainDescription) (gfx.Handle, error) {
	gs, ok := surface.(gfx.GLSurface)
	if !ok {
		return 0, &gfx.ConfigurationError{Op: "opengl create swapchain", Err: fmt.Errorf("surface %T has no GL context", surface)}
	}
	sc := &swapchain{surface: gs, desc: desc}
	if err := b.allocSwapchain(sc); err != nil {
		return 0, err
	}
	gs.SwapInterval(swapInterval(desc.VSync))
	return b.swapchains.Insert(sc), nil
}

func swapInterval(vsync bool) int {
	if vsync {
		return 1
	}
	return 0
}

func (b *Backend) allocSwapchain(sc *swapchain) error {
	d := sc.desc
	if d.DepthFormat != gfx.PixelFormatUndefined {
		h, err := b.CreateTexture(gfx.TextureDescription{
			Width: d.Width, Height: d.Height, MipLevels: 1,
			Format: d.DepthFormat, Usage: gfx.TextureUsageDepthStencil, Label: "swapchain depth",
		})
		if err != nil {
			return err
		}
		sc.depth = h
	}
	depth, _ := b.textures.Get(sc.depth)
	for i := range d.BufferCount {
		h, err := b.CreateTexture(gfx.TextureDescription{
			Width: d.Width, Height: d.Height, MipLevels: 1,
			Format: d.ColorFormat, Usage: gfx.TextureUsageRenderTarget | gfx.TextureUsageSampled,
			Label: fmt.Sprintf("swapchain color %d", i),
		})
		if err != nil {
			b.freeSwapchain(sc)
			return err
		}
		sc.color = append(sc.color, h)
		tex, _ := b.textures.Get(h)
		fbo, err := b.newFBO([]*texture{tex}, depth)
		if err != nil {
			b.freeSwapchain(sc)
			return &gfx.BackendFatalError{Op: "opengl create swapchain", Err: err}
		}
		sc.fbos = append(sc.fbos, fbo)
	}
	sc.current %= d.BufferCount
	return nil
}

func (b *Backend) freeSwapchain(sc *swapchain) {
	for _, fbo := range sc.fbos {
		b.gl.DeleteFramebuffer(fbo)
	}
	for _, h := range sc.color {
		b.DestroyTexture(h)
	}
	if sc.depth != 0 {
		b.DestroyTexture(sc.depth)
	}
	sc.fbos, sc.color, sc.depth = nil, nil, 0
}

// ResizeSwapchain waits for the GPU, recreates the buffers at the new size
// and rebinds the swapchain if it was the bound render target.
func (b *Backend) ResizeSwapchain(h gfx.Handle, width, height uint32) error {
	sc, err := lookup(&b.swapchains, "swapchain", h)
	if err != nil {
		return err
	}
	b.gl.Finish()
	wasBound := b.bound.swapchain == h
	if wasBound {
		b.bound = target{}
		b.gl.BindFramebuffer(FRAMEBUFFER, 0)
	}
	b.freeSwapchain(sc)
	sc.desc.Width, sc.desc.Height = width, height
	if err := b.allocSwapchain(sc); err != nil {
		return err
	}
	if wasBound {
		b.bound = target{swapchain: h}
		b.gl.BindFramebuffer(FRAMEBUFFER, sc.fbos[sc.current])
	}
	b.checkError("resize swapchain")
	return nil
}

func (b *Backend) AcquireSwapchain(h gfx.Handle) (uint32, error) {
	sc, err := lookup(&b.swapchains, "swapchain", h)
	if err != nil {
		return 0, err
	}
	return sc.current, nil
}

func (b *Backend) PresentSwapchain(h gfx.Handle) error {
	sc, err := lookup(&b.swapchains, "swapchain", h)
	if err != nil {
		return err
	}
	w, ht := sc.surface.FramebufferSize()
	filter := uint32(NEAREST)
	if uint32(w) != sc.desc.Width || uint32(ht) != sc.desc.Height {
		filter = LINEAR
	}
	b.gl.BindFramebuffer(READ_FRAMEBUFFER, sc.fbos[sc.current])
	b.gl.ReadBuffer(COLOR_ATTACHMENT0)
	b.gl.BindFramebuffer(DRAW_FRAMEBUFFER, 0)
	b.gl.BlitFramebuffer(0, 0, int32(sc.desc.Width), int32(sc.desc.Height), 0, 0, int32(w), int32(ht), COLOR_BUFFER_BIT, filter)
	sc.surface.SwapBuffers()
	sc.current = (sc.current + 1) % sc.desc.BufferCount
	b.gl.BindFramebuffer(FRAMEBUFFER, b.boundFBO())
	b.checkError("present")
	return nil
}

func (b *Backend) SetSwapchainVSync(h gfx.Handle, enabled bool) error {
	sc, err := lookup(&b.swapchains, "swapchain", h)
	if err != nil {
		return err
	}
	sc.desc.VSync = enabled
	sc.surface.SwapInterval(swapInterval(enabled))
	return nil
}

func (b *Backend) SwapchainState(h gfx.Handle) gfx.SwapchainState {
	sc, ok := b.swapchains.Get(h)
	if !ok {
		return gfx.SwapchainState{}
	}
	return gfx.SwapchainState{
		Width:   sc.desc.Width,
		Height:  sc.desc.Height,
		Buffers: append([]gfx.Handle(nil), sc.color...),
		Depth:   sc.depth,
		Current: sc.current,
	}
}

func (b *Backend) DestroySwapchain(h gfx.Handle) {
	sc, ok := b.swapchains.Remove(h)
	if !ok {
		return
	}
	if b.bound.swapchain == h {
		b.bound = target{}
		b.gl.BindFramebuffer(FRAMEBUFFER, 0)
	}
	b.freeSwapchain(sc)
}
