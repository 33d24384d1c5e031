package d3d12

import (
	"fmt"

	"render-hal/gfx"
)

// swapchain wraps a DXGI flip-model swap chain. Its buffers are entered in
// the texture table like any render target so passes can resolve them the
// same way; they rest in the PRESENT state.
type swapchain struct {
	window gfx.NativeWindow
	desc   gfx.SwapchainDescription
	chain  SwapChain
	format Format
	color  []gfx.Handle
	depth  gfx.Handle
	// frames holds, per buffer, the fence value of the last submission that
	// rendered into it.
	frames  []uint64
	current uint32
}

// swapFormat returns the buffer format of a swap chain. Flip-model buffers
// cannot be sRGB; sRGB swapchains get sRGB render target views instead.
func swapFormat(f gfx.PixelFormat) (Format, error) {
	switch f {
	case gfx.PixelFormatBGRA8Unorm, gfx.PixelFormatBGRA8UnormSRGB:
		return FormatBGRA8Unorm, nil
	case gfx.PixelFormatRGBA8Unorm, gfx.PixelFormatRGBA8UnormSRGB:
		return FormatRGBA8Unorm, nil
	case gfx.PixelFormatRGBA16Float:
		return FormatRGBA16Float, nil
	}
	return 0, configErr("d3d12 create swapchain", "%v cannot be presented", f)
}

func (b *Backend) CreateSwapchain(surface gfx.Surface, desc gfx.SwapchainDescription) (gfx.Handle, error) {
	win, ok := surface.(gfx.NativeWindow)
	if !ok {
		return 0, &gfx.ConfigurationError{Op: "d3d12 create swapchain", Err: fmt.Errorf("surface %T has no native window handle", surface)}
	}
	format, err := swapFormat(desc.ColorFormat)
	if err != nil {
		return 0, err
	}
	chain, err := b.dev.CreateSwapChain(win.NativeHandle(), SwapChainDesc{
		Width: desc.Width, Height: desc.Height, Buffers: desc.BufferCount, Format: format,
	})
	if err != nil {
		return 0, b.fatal("create swapchain", err)
	}
	sc := &swapchain{window: win, desc: desc, chain: chain, format: format}
	if err := b.allocSwapchain(sc); err != nil {
		b.freeSwapchain(sc)
		chain.Release()
		return 0, err
	}
	return b.swapchains.Insert(sc), nil
}

// allocSwapchain wraps the chain's buffers and creates the depth buffer.
func (b *Backend) allocSwapchain(sc *swapchain) error {
	d := sc.desc
	view, err := dxgiFormat(d.ColorFormat, false)
	if err != nil {
		return err
	}
	for i := range d.BufferCount {
		res, err := sc.chain.Buffer(i)
		if err != nil {
			return b.fatal("get swapchain buffer", err)
		}
		tex := &texture{
			res: res,
			desc: gfx.TextureDescription{
				Width: d.Width, Height: d.Height, MipLevels: 1,
				Format: d.ColorFormat, Usage: gfx.TextureUsageRenderTarget,
				Label: fmt.Sprintf("swapchain color %d", i),
			},
			formats: textureFormats{resource: sc.format, view: view.view},
			rest:    StatePresent,
		}
		if err := b.createViews(tex); err != nil {
			b.freeTexture(tex)
			return err
		}
		sc.color = append(sc.color, b.textures.Insert(tex))
	}
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
	sc.frames = make([]uint64, d.BufferCount)
	sc.current = sc.chain.CurrentIndex()
	return nil
}

// freeSwapchain releases the buffer wrappers right away. The caller has
// waited for the GPU: DXGI refuses to resize while references remain.
func (b *Backend) freeSwapchain(sc *swapchain) {
	for _, h := range append(sc.color, sc.depth) {
		if tex, ok := b.textures.Remove(h); ok {
			for _, heap := range []DescriptorHeap{tex.srv, tex.rtv, tex.dsv} {
				if heap != nil {
					heap.Release()
				}
			}
			tex.res.Release()
		}
	}
	sc.color, sc.depth = nil, 0
}

// ResizeSwapchain drains the queue, drops every buffer reference and
// recreates the buffers at the new size. Render targets are bound per
// command list here, so there is no binding to restore; the new handles
// are picked up by the next render pass on the swapchain.
func (b *Backend) ResizeSwapchain(h gfx.Handle, width, height uint32) error {
	sc, err := lookup(&b.swapchains, "swapchain", h)
	if err != nil {
		return err
	}
	if err := b.WaitIdle(); err != nil {
		return err
	}
	b.freeSwapchain(sc)
	if err := sc.chain.ResizeBuffers(sc.desc.BufferCount, width, height, sc.format); err != nil {
		return b.fatal("resize swapchain", err)
	}
	sc.desc.Width, sc.desc.Height = width, height
	return b.allocSwapchain(sc)
}

// AcquireSwapchain waits until the GPU is done with the buffer DXGI hands
// out next.
func (b *Backend) AcquireSwapchain(h gfx.Handle) (uint32, error) {
	sc, err := lookup(&b.swapchains, "swapchain", h)
	if err != nil {
		return 0, err
	}
	sc.current = sc.chain.CurrentIndex()
	if err := b.wait(sc.frames[sc.current]); err != nil {
		return 0, err
	}
	return sc.current, nil
}

func (b *Backend) PresentSwapchain(h gfx.Handle) error {
	sc, err := lookup(&b.swapchains, "swapchain", h)
	if err != nil {
		return err
	}
	var interval uint32
	if sc.desc.VSync {
		interval = 1
	}
	if err := sc.chain.Present(interval); err != nil {
		return b.fatal("present", err)
	}
	sc.current = sc.chain.CurrentIndex()
	b.collect()
	return nil
}

func (b *Backend) SetSwapchainVSync(h gfx.Handle, enabled bool) error {
	sc, err := lookup(&b.swapchains, "swapchain", h)
	if err != nil {
		return err
	}
	sc.desc.VSync = enabled
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
	if b.lost == nil {
		if err := b.WaitIdle(); err != nil {
			gfx.Logger().Warn("d3d12: destroying swapchain without idle GPU", "error", err)
		}
	}
	b.freeSwapchain(sc)
	sc.chain.Release()
}
