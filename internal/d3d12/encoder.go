package d3d12

import (
	"errors"

	"render-hal/gfx"
)

type vertexBinding struct {
	buf    *buffer
	offset uint64
}

// pass is the render pass being recorded.
type pass struct {
	colors        []*texture
	depth         *texture
	width, height uint32
}

// encoder records one submission into a native command list. Nothing
// reaches the GPU until Finish.
type encoder struct {
	b    *Backend
	a    *allocator
	list CommandList

	pipeline *pipeline
	vertex   map[uint32]vertexBinding
	index    *buffer
	sets     map[uint32]*resourceSet
	// dirty sets are copied to the rings before the next draw.
	dirty    map[uint32]bool
	topology PrimitiveTopology
	scissor  *Rect
	applied  Rect
	pass     *pass

	staging []Resource
	// frames are the swapchain buffers this submission renders into.
	frames map[*swapchain]uint32
}

func (b *Backend) Encode() (gfx.Encoder, error) {
	a, l, err := b.openList()
	if err != nil {
		return nil, err
	}
	b.views.used, b.samplers.used = 0, 0
	l.SetDescriptorHeaps([]DescriptorHeap{b.views.heap, b.samplers.heap})
	return &encoder{
		b:      b,
		a:      a,
		list:   l,
		vertex: map[uint32]vertexBinding{},
		sets:   map[uint32]*resourceSet{},
		dirty:  map[uint32]bool{},
		frames: map[*swapchain]uint32{},
	}, nil
}

func (e *encoder) BeginRenderPass(info gfx.RenderPassInfo) error {
	p := &pass{width: info.Width, height: info.Height}
	switch {
	case info.Swapchain != 0:
		sc, err := lookup(&e.b.swapchains, "swapchain", info.Swapchain)
		if err != nil {
			return err
		}
		color, err := lookup(&e.b.textures, "swapchain buffer", sc.color[sc.current])
		if err != nil {
			return err
		}
		p.colors = []*texture{color}
		if sc.depth != 0 {
			p.depth, _ = e.b.textures.Get(sc.depth)
		}
		p.width, p.height = sc.desc.Width, sc.desc.Height
		e.frames[sc] = sc.current
	default:
		fb, err := lookup(&e.b.framebuffers, "framebuffer", info.Framebuffer)
		if err != nil {
			return err
		}
		for _, h := range fb.color {
			tex, err := lookup(&e.b.textures, "texture", h)
			if err != nil {
				return err
			}
			p.colors = append(p.colors, tex)
		}
		if fb.depth != 0 {
			tex, err := lookup(&e.b.textures, "texture", fb.depth)
			if err != nil {
				return err
			}
			p.depth = tex
		}
		p.width, p.height = fb.width, fb.height
	}

	var (
		barriers []Barrier
		rtvs     []CPUDescriptor
		dsv      *CPUDescriptor
	)
	for _, tex := range p.colors {
		if tex.rest != StateRenderTarget {
			barriers = append(barriers, Barrier{Resource: tex.res, Before: tex.rest, After: StateRenderTarget})
		}
		rtvs = append(rtvs, tex.rtv.CPUStart())
	}
	if p.depth != nil {
		if p.depth.rest != StateDepthWrite {
			barriers = append(barriers, Barrier{Resource: p.depth.res, Before: p.depth.rest, After: StateDepthWrite})
		}
		d := p.depth.dsv.CPUStart()
		dsv = &d
	}
	if len(barriers) > 0 {
		e.list.ResourceBarrier(barriers)
	}
	e.list.OMSetRenderTargets(rtvs, dsv)
	e.pass = p

	if info.ColorLoadOp == gfx.LoadOpClear {
		c := info.ClearColor
		for _, rtv := range rtvs {
			e.list.ClearRenderTargetView(rtv, [4]float32{c.R, c.G, c.B, c.A})
		}
	}
	if dsv != nil && info.DepthStencilLoadOp == gfx.LoadOpClear {
		flags := ClearDepth
		if p.depth.desc.Format.HasStencil() {
			flags |= ClearStencil
		}
		e.list.ClearDepthStencilView(*dsv, flags, info.ClearDepth, info.ClearStencil)
	}

	e.list.RSSetViewport(Viewport{Width: float32(p.width), Height: float32(p.height), MaxDepth: 1})
	e.scissor = nil
	e.applied = Rect{Right: int32(p.width), Bottom: int32(p.height)}
	e.list.RSSetScissorRect(e.applied)
	return nil
}

func (e *encoder) EndRenderPass() error {
	p := e.pass
	if p == nil {
		return nil
	}
	var barriers []Barrier
	for _, tex := range p.colors {
		if tex.rest != StateRenderTarget {
			barriers = append(barriers, Barrier{Resource: tex.res, Before: StateRenderTarget, After: tex.rest})
		}
	}
	if p.depth != nil && p.depth.rest != StateDepthWrite {
		barriers = append(barriers, Barrier{Resource: p.depth.res, Before: StateDepthWrite, After: p.depth.rest})
	}
	if len(barriers) > 0 {
		e.list.ResourceBarrier(barriers)
	}
	e.pass = nil
	return nil
}

func (e *encoder) SetViewport(v gfx.Viewport) error {
	e.list.RSSetViewport(Viewport{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height, MinDepth: v.MinDepth, MaxDepth: v.MaxDepth})
	return nil
}

func (e *encoder) SetScissor(s gfx.Scissor) error {
	e.scissor = &Rect{Left: s.X, Top: s.Y, Right: s.X + s.Width, Bottom: s.Y + s.Height}
	return nil
}

func (e *encoder) BindPipeline(h gfx.Handle) error {
	p, err := lookup(&e.b.pipelines, "pipeline", h)
	if err != nil {
		return err
	}
	if p == e.pipeline {
		return nil
	}
	e.list.SetGraphicsRootSignature(p.root)
	e.list.SetPipelineState(p.pso)
	e.list.OMSetStencilRef(uint32(p.desc.DepthStencil.StencilRef))
	e.pipeline = p
	// Root arguments do not survive a root signature change.
	for set := range e.sets {
		e.dirty[set] = true
	}
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
	e.index = buf
	e.list.IASetIndexBuffer(&IndexBufferView{
		Address: buf.res.GPUAddress() + offset,
		Size:    uint32(buf.desc.SizeInBytes - offset),
		Format:  indexFormat(format),
	})
	return nil
}

func (e *encoder) BindResourceSet(set uint32, h gfx.Handle) error {
	if h == 0 {
		delete(e.sets, set)
		delete(e.dirty, set)
		return nil
	}
	rs, err := lookup(&e.b.sets, "resource set", h)
	if err != nil {
		return err
	}
	e.sets[set] = rs
	e.dirty[set] = true
	return nil
}

// UpdateBuffer records a staged copy into the list, so it lands between the
// draws recorded before and after it.
func (e *encoder) UpdateBuffer(h gfx.Handle, offset uint64, data []byte) error {
	buf, err := lookup(&e.b.buffers, "buffer", h)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	staging, err := e.b.stage(data)
	if err != nil {
		return err
	}
	e.staging = append(e.staging, staging)
	copyToBuffer(e.list, buf, offset, staging, uint64(len(data)))
	return nil
}

func (e *encoder) Draw(prim gfx.PrimitiveTopology, vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := e.flush(prim); err != nil {
		return err
	}
	e.list.DrawInstanced(vertexCount, instanceCount, firstVertex, firstInstance)
	return nil
}

func (e *encoder) DrawIndexed(prim gfx.PrimitiveTopology, indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	if e.index == nil {
		return &gfx.ResourceMisuseError{Op: "d3d12 draw indexed", Err: errors.New("no index buffer bound")}
	}
	if err := e.flush(prim); err != nil {
		return err
	}
	e.list.DrawIndexedInstanced(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	return nil
}

// flush sets the input assembler, scissor and descriptor tables the next
// draw needs.
func (e *encoder) flush(prim gfx.PrimitiveTopology) error {
	p := e.pipeline
	if p == nil {
		return &gfx.ResourceMisuseError{Op: "d3d12 draw", Err: gfx.ErrNoPipeline}
	}
	t, err := topology(prim)
	if err != nil {
		return err
	}
	if t != e.topology {
		e.list.IASetPrimitiveTopology(t)
		e.topology = t
	}

	for slot, l := range p.desc.VertexLayouts {
		vb, ok := e.vertex[uint32(slot)]
		if !ok {
			continue
		}
		e.list.IASetVertexBuffers(uint32(slot), []VertexBufferView{{
			Address: vb.buf.res.GPUAddress() + vb.offset,
			Size:    uint32(vb.buf.desc.SizeInBytes - vb.offset),
			Stride:  l.Stride,
		}})
	}

	rect := Rect{Right: int32(e.passWidth()), Bottom: int32(e.passHeight())}
	if p.desc.Rasterizer.ScissorTest && e.scissor != nil {
		rect = *e.scissor
	}
	if rect != e.applied {
		e.list.RSSetScissorRect(rect)
		e.applied = rect
	}

	for set, rs := range e.sets {
		if !e.dirty[set] {
			continue
		}
		tab, ok := p.params[set]
		if !ok {
			continue
		}
		if err := e.bindTables(rs, tab); err != nil {
			return err
		}
		delete(e.dirty, set)
	}
	return nil
}

// bindTables copies a set's CPU descriptors into the rings and points the
// root parameters at the copies.
func (e *encoder) bindTables(rs *resourceSet, t tables) error {
	b := e.b
	if t.views >= 0 && rs.nViews > 0 {
		cpu, gpu, err := b.alloc(b.views, rs.nViews)
		if err != nil {
			return err
		}
		b.dev.CopyDescriptors(rs.nViews, cpu, rs.viewHeap.CPUStart(), HeapTypeCBVSRVUAV)
		e.list.SetGraphicsRootDescriptorTable(uint32(t.views), gpu)
	}
	if t.samplers >= 0 && rs.nSamp > 0 {
		cpu, gpu, err := b.alloc(b.samplers, rs.nSamp)
		if err != nil {
			return err
		}
		b.dev.CopyDescriptors(rs.nSamp, cpu, rs.sampHeap.CPUStart(), HeapTypeSampler)
		e.list.SetGraphicsRootDescriptorTable(uint32(t.samplers), gpu)
	}
	return nil
}

func (e *encoder) passWidth() uint32 {
	if e.pass == nil {
		return 0
	}
	return e.pass.width
}

func (e *encoder) passHeight() uint32 {
	if e.pass == nil {
		return 0
	}
	return e.pass.height
}

// Finish executes the list. Staging buffers and the allocator are recycled
// once the fence passes the submission's value.
func (e *encoder) Finish() error {
	if err := e.EndRenderPass(); err != nil {
		return err
	}
	v, err := e.b.submit("submit", e.a, e.list)
	for _, s := range e.staging {
		e.b.release(s)
	}
	e.staging = nil
	if err != nil {
		return err
	}
	for sc, i := range e.frames {
		sc.frames[i] = v
	}
	return nil
}

// Abort closes the list without executing it.
func (e *encoder) Abort() {
	e.b.discard(e.a, e.list)
	for _, s := range e.staging {
		s.Release()
	}
	e.staging = nil
	gfx.Logger().Debug("d3d12: submission aborted")
}
