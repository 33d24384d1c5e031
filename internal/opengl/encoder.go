package opengl

import (
	"errors"

	"render-hal/gfx"
)

type vertexBinding struct {
	buf    *buffer
	offset uint64
}

// encoder executes commands as they are replayed. GL has nothing to defer,
// so Finish only drains diagnostics and Abort cannot undo issued calls.
type encoder struct {
	b        *Backend
	pipeline *pipeline
	vertex   map[uint32]vertexBinding
	index    *buffer
	indexFmt gfx.IndexFormat
	indexOff uint64
	sets     map[uint32]*resourceSet
	height   int32 // of the bound target
}

func (b *Backend) Encode() (gfx.Encoder, error) {
	return &encoder{
		b:      b,
		vertex: map[uint32]vertexBinding{},
		sets:   map[uint32]*resourceSet{},
	}, nil
}

func (e *encoder) BeginRenderPass(info gfx.RenderPassInfo) error {
	gl := e.b.gl
	var (
		fbo        uint32
		colors     int
		depthFmt   gfx.PixelFormat
		w, h       uint32
		renderedTo target
	)
	switch {
	case info.Swapchain != 0:
		sc, err := lookup(&e.b.swapchains, "swapchain", info.Swapchain)
		if err != nil {
			return err
		}
		fbo, colors, depthFmt = sc.fbos[sc.current], 1, sc.desc.DepthFormat
		w, h = sc.desc.Width, sc.desc.Height
		renderedTo.swapchain = info.Swapchain
	default:
		fb, err := lookup(&e.b.framebuffers, "framebuffer", info.Framebuffer)
		if err != nil {
			return err
		}
		fbo, colors, depthFmt = fb.fbo, fb.colors, fb.depth
		w, h = fb.width, fb.height
		renderedTo.framebuffer = info.Framebuffer
	}
	gl.BindFramebuffer(FRAMEBUFFER, fbo)
	e.b.bound = renderedTo
	e.height = int32(h)
	gl.Viewport(0, 0, int32(w), int32(h))
	gl.DepthRange(0, 1)
	gl.Scissor(0, 0, int32(w), int32(h))

	clearColor := info.ColorLoadOp == gfx.LoadOpClear && colors > 0
	clearDepth := info.DepthStencilLoadOp == gfx.LoadOpClear && depthFmt != gfx.PixelFormatUndefined
	if !clearColor && !clearDepth {
		return nil
	}
	// Clears honor write masks and the scissor test; the pipeline state is
	// re-applied below.
	gl.Disable(SCISSOR_TEST)
	if clearColor {
		c := info.ClearColor
		for i := range colors {
			gl.ColorMaski(uint32(i), true, true, true, true)
			gl.ClearBufferfv(COLOR, int32(i), [4]float32{c.R, c.G, c.B, c.A})
		}
	}
	if clearDepth {
		gl.DepthMask(true)
		if depthFmt.HasStencil() {
			gl.StencilMask(0xFF)
			gl.ClearBufferfi(DEPTH_STENCIL, 0, info.ClearDepth, int32(info.ClearStencil))
		} else {
			gl.ClearBufferfv(DEPTH, 0, [4]float32{info.ClearDepth})
		}
	}
	if e.pipeline != nil {
		e.pipeline.applyState(gl)
	}
	e.b.checkError("begin render pass")
	return nil
}

func (e *encoder) EndRenderPass() error { return nil }

// SetViewport and SetScissor flip their top-left rectangles against the
// height of the bound target; GL window coordinates start at the bottom left.
func (e *encoder) SetViewport(v gfx.Viewport) error {
	y := float32(e.height) - v.Y - v.Height
	e.b.gl.Viewport(int32(v.X), int32(y), int32(v.Width), int32(v.Height))
	e.b.gl.DepthRange(float64(v.MinDepth), float64(v.MaxDepth))
	return nil
}

func (e *encoder) SetScissor(s gfx.Scissor) error {
	e.b.gl.Scissor(s.X, e.height-s.Y-s.Height, s.Width, s.Height)
	return nil
}

func (e *encoder) BindPipeline(h gfx.Handle) error {
	p, err := lookup(&e.b.pipelines, "pipeline", h)
	if err != nil {
		return err
	}
	p.bind(e.b.gl)
	e.pipeline = p
	return nil
}

func (e *encoder) BindVertexBuffer(slot uint32, h gfx.Handle, offset uint64) error {
	buf, err := lookup(&e.b.buffers, "buffer", h)
	if err != nil {
		return err
	}
	e.vertex[slot] = vertexBinding{buf: buf, offset: offset}
	return nil
}

func (e *encoder) BindIndexBuffer(h gfx.Handle, format gfx.IndexFormat, offset uint64) error {
	buf, err := lookup(&e.b.buffers, "buffer", h)
	if err != nil {
		return err
	}
	e.index, e.indexFmt, e.indexOff = buf, format, offset
	e.b.gl.BindBuffer(ELEMENT_ARRAY_BUFFER, buf.id)
	return nil
}

func (e *encoder) BindResourceSet(set uint32, h gfx.Handle) error {
	if h == 0 {
		delete(e.sets, set)
		return nil
	}
	rs, err := lookup(&e.b.sets, "resource set", h)
	if err != nil {
		return err
	}
	e.sets[set] = rs
	return nil
}

func (e *encoder) UpdateBuffer(h gfx.Handle, offset uint64, data []byte) error {
	return e.b.WriteBuffer(h, offset, data)
}

func (e *encoder) Draw(topology gfx.PrimitiveTopology, vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	mode, err := primitiveMode(topology)
	if err != nil {
		return err
	}
	if err := e.flush(firstInstance); err != nil {
		return err
	}
	e.b.gl.DrawArraysInstanced(mode, int32(firstVertex), int32(vertexCount), int32(instanceCount))
	return nil
}

func (e *encoder) DrawIndexed(topology gfx.PrimitiveTopology, indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	mode, err := primitiveMode(topology)
	if err != nil {
		return err
	}
	if e.index == nil {
		return &gfx.ResourceMisuseError{Op: "opengl draw indexed", Err: errors.New("no index buffer bound")}
	}
	if err := e.flush(firstInstance); err != nil {
		return err
	}
	offset := uintptr(e.indexOff + uint64(firstIndex)*uint64(e.indexFmt.Size()))
	e.b.gl.DrawElementsInstancedBaseVertex(mode, int32(indexCount), indexType(e.indexFmt), offset, int32(instanceCount), baseVertex)
	return nil
}

// flush points every attribute of the bound pipeline at its vertex buffer and
// binds the resource sets the pipeline declares. GL 4.1 has no base instance,
// so firstInstance is folded into the offsets of per-instance attributes.
func (e *encoder) flush(firstInstance uint32) error {
	p := e.pipeline
	if p == nil {
		return &gfx.ResourceMisuseError{Op: "opengl draw", Err: gfx.ErrNoPipeline}
	}
	gl := e.b.gl
	for _, a := range p.attribs {
		vb, ok := e.vertex[a.slot]
		if !ok {
			gl.DisableVertexAttribArray(a.location)
			continue
		}
		off := vb.offset + uint64(a.elem.Offset)
		divisor := uint32(0)
		if a.instanced {
			off += uint64(firstInstance) * uint64(a.stride)
			divisor = 1
		}
		gl.BindBuffer(ARRAY_BUFFER, vb.buf.id)
		gl.EnableVertexAttribArray(a.location)
		comps, xtype := int32(a.elem.Components), elementType(a.elem.Type)
		switch t := a.elem.Type; {
		case (t == gfx.ElementInt32 || t == gfx.ElementUint32) && !a.elem.Normalized:
			gl.VertexAttribIPointer(a.location, comps, xtype, int32(a.stride), uintptr(off))
		default:
			normalized := a.elem.Normalized || t == gfx.ElementUnorm8
			gl.VertexAttribPointer(a.location, comps, xtype, normalized, int32(a.stride), uintptr(off))
		}
		gl.VertexAttribDivisor(a.location, divisor)
	}
	for loc := uint32(len(p.attribs)); loc < e.b.attribsUsed; loc++ {
		gl.DisableVertexAttribArray(loc)
	}
	e.b.attribsUsed = uint32(len(p.attribs))

	for set, rs := range e.sets {
		if p.desc.LayoutFor(set) == nil {
			continue
		}
		e.b.bindSet(p, rs)
	}
	return nil
}

func (e *encoder) Finish() error {
	e.b.checkError("submit")
	return nil
}

func (e *encoder) Abort() {
	e.b.checkError("aborted submit")
	gfx.Logger().Debug("opengl: submission aborted; calls already issued stay applied")
}
