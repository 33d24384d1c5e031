package gfx

import "fmt"

// RenderTarget is what a render pass draws into: a *Framebuffer or a
// *Swapchain, never both.
type RenderTarget interface {
	Width() uint32
	Height() uint32
	renderTarget() refCounted
}

// FramebufferDescription lists the attachments of an offscreen target.
type FramebufferDescription struct {
	Color []*Texture
	Depth *Texture
}

func (d FramebufferDescription) validate() (w, h uint32, err error) {
	if len(d.Color) == 0 && d.Depth == nil {
		return 0, 0, fmt.Errorf("framebuffer has no attachments")
	}
	if len(d.Color) > MaxColorTargets {
		return 0, 0, fmt.Errorf("%d color attachments, max %d", len(d.Color), MaxColorTargets)
	}
	size := func(t *Texture) error {
		if w == 0 {
			w, h = t.desc.Width, t.desc.Height
		}
		if t.desc.Width != w || t.desc.Height != h {
			return fmt.Errorf("attachment %q is %dx%d, framebuffer is %dx%d", t.desc.Label, t.desc.Width, t.desc.Height, w, h)
		}
		return nil
	}
	for i, t := range d.Color {
		if t == nil || t.released() {
			return 0, 0, fmt.Errorf("color attachment %d released", i)
		}
		if t.desc.Usage&TextureUsageRenderTarget == 0 {
			return 0, 0, fmt.Errorf("color attachment %d lacks render target usage", i)
		}
		if err := size(t); err != nil {
			return 0, 0, err
		}
	}
	if d.Depth != nil {
		if d.Depth.released() {
			return 0, 0, fmt.Errorf("depth attachment released")
		}
		if d.Depth.desc.Usage&TextureUsageDepthStencil == 0 {
			return 0, 0, fmt.Errorf("depth attachment lacks depth-stencil usage")
		}
		if err := size(d.Depth); err != nil {
			return 0, 0, err
		}
	}
	return w, h, nil
}

// Framebuffer is an offscreen render target made of textures.
type Framebuffer struct {
	refs
	dev           *GraphicsDevice
	handle        Handle
	color         []*Texture
	depth         *Texture
	width, height uint32
}

func (f *Framebuffer) Width() uint32                { return f.width }
func (f *Framebuffer) Height() uint32               { return f.height }
func (f *Framebuffer) Handle() Handle               { return f.handle }
func (f *Framebuffer) ColorAttachments() []*Texture { return f.color }
func (f *Framebuffer) DepthAttachment() *Texture    { return f.depth }

// renderTarget returns nil for a nil Framebuffer so a typed nil is not mistaken
// for a target.
func (f *Framebuffer) renderTarget() refCounted {
	if f == nil {
		return nil
	}
	return f
}

func (f *Framebuffer) free() {
	f.dev.backend.DestroyFramebuffer(f.handle)
	for _, t := range f.color {
		t.Release()
	}
	if f.depth != nil {
		f.depth.Release()
	}
}

// RenderPassSpecification couples a target with load operations.
type RenderPassSpecification struct {
	Target             RenderTarget
	ColorLoadOp        LoadOp
	DepthStencilLoadOp LoadOp
	ClearColor         Color
	ClearDepth         float32
	ClearStencil       uint8
}

// RenderPass is a validated RenderPassSpecification. It keeps its target
// alive.
type RenderPass struct {
	refs
	spec RenderPassSpecification
}

func (p *RenderPass) Specification() RenderPassSpecification { return p.spec }

// Framebuffer returns the target framebuffer, or nil for a swapchain pass.
func (p *RenderPass) Framebuffer() *Framebuffer {
	fb, _ := p.spec.Target.(*Framebuffer)
	return fb
}

// Swapchain returns the target swapchain, or nil for a framebuffer pass.
func (p *RenderPass) Swapchain() *Swapchain {
	sc, _ := p.spec.Target.(*Swapchain)
	return sc
}

func (p *RenderPass) info() RenderPassInfo {
	info := RenderPassInfo{
		ColorLoadOp:        p.spec.ColorLoadOp,
		DepthStencilLoadOp: p.spec.DepthStencilLoadOp,
		ClearColor:         p.spec.ClearColor,
		ClearDepth:         p.spec.ClearDepth,
		ClearStencil:       p.spec.ClearStencil,
		Width:              p.spec.Target.Width(),
		Height:             p.spec.Target.Height(),
	}
	switch t := p.spec.Target.(type) {
	case *Framebuffer:
		info.Framebuffer = t.handle
	case *Swapchain:
		info.Swapchain = t.handle
	}
	return info
}
