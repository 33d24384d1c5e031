package d3d12

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// fakeDevice is an in-memory D3D12: copies move bytes, barriers are checked
// against tracked resource states, and draws are snapshotted with the state
// they would read.
type fakeDevice struct {
	live        map[*fakeObject]string
	nextAddr    uint64
	nextCPU     CPUDescriptor
	nextGPU     GPUDescriptor
	descriptors map[CPUDescriptor]descriptor
	visible     []*fakeHeap

	draws    []drawCall
	clears   []clearCall
	errs     []string
	executed int

	roots      []*RootSignatureDesc
	psos       []*PipelineStateDesc
	swapchains []*fakeSwapChain
	resources  []*fakeResource
	fences     []*fakeFence

	hang      bool
	signalled uint64
	removed   error
	fenceWait []time.Duration
}

const fakeIncrement = 32

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		live:        map[*fakeObject]string{},
		nextAddr:    0x10000,
		nextCPU:     0x1000,
		nextGPU:     0x100000,
		descriptors: map[CPUDescriptor]descriptor{},
	}
}

// liveKinds counts unreleased objects by kind.
func (d *fakeDevice) liveKinds() map[string]int {
	out := map[string]int{}
	for _, k := range d.live {
		out[k]++
	}
	return out
}

func (d *fakeDevice) errorf(format string, args ...any) {
	d.errs = append(d.errs, fmt.Sprintf(format, args...))
}

type fakeObject struct {
	dev      *fakeDevice
	kind     string
	released bool
}

func (d *fakeDevice) object(kind string) *fakeObject {
	o := &fakeObject{dev: d, kind: kind}
	d.live[o] = kind
	return o
}

func (o *fakeObject) Release() {
	if o.released {
		o.dev.errorf("double release of %s", o.kind)
		return
	}
	o.released = true
	delete(o.dev.live, o)
}

// ── Resources ───────────────────────────────────────────────────────────────

type fakeResource struct {
	*fakeObject
	heap   HeapType
	addr   uint64
	data   []byte
	tex    *TextureDesc
	levels [][]byte
	state  ResourceState
}

func (r *fakeResource) GPUAddress() uint64 { return r.addr }
func (r *fakeResource) Unmap()             {}

func (r *fakeResource) Map() ([]byte, error) {
	if r.heap != HeapUpload && r.heap != HeapReadback {
		return nil, errors.New("map of a default-heap resource")
	}
	return r.data, nil
}

func formatSize(f Format) uint32 {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	}
	return 4
}

func (d *fakeDevice) AdapterName() string { return "fake adapter" }

func (d *fakeDevice) CreateBuffer(heap HeapType, size uint64, initial ResourceState) (Resource, error) {
	r := &fakeResource{fakeObject: d.object(fmt.Sprintf("buffer(%d)", heap)), heap: heap, addr: d.nextAddr, data: make([]byte, size), state: initial}
	d.nextAddr += size + 0x1000
	d.resources = append(d.resources, r)
	return r, nil
}

// bufferAt returns the live buffer whose GPU address range holds addr.
func (d *fakeDevice) bufferAt(addr uint64) *fakeResource {
	for _, r := range d.resources {
		if !r.released && addr >= r.addr && addr < r.addr+uint64(len(r.data)) {
			return r
		}
	}
	return nil
}

func (d *fakeDevice) CreateTexture(desc TextureDesc, initial ResourceState, _ *ClearValue) (Resource, error) {
	r := &fakeResource{fakeObject: d.object("texture"), heap: HeapDefault, tex: &desc, state: initial}
	for level := range desc.MipLevels {
		w, h := max(desc.Width>>level, 1), max(desc.Height>>level, 1)
		r.levels = append(r.levels, make([]byte, w*h*formatSize(desc.Format)))
	}
	return r, nil
}

// ── Descriptors ─────────────────────────────────────────────────────────────

type descriptor struct {
	kind    string
	res     *fakeResource
	addr    uint64
	size    uint32
	format  Format
	sampler SamplerDesc
}

type fakeHeap struct {
	*fakeObject
	typ DescriptorHeapType
	n   uint32
	cpu CPUDescriptor
	gpu GPUDescriptor
}

func (h *fakeHeap) CPUStart() CPUDescriptor { return h.cpu }
func (h *fakeHeap) GPUStart() GPUDescriptor { return h.gpu }

func (d *fakeDevice) CreateDescriptorHeap(t DescriptorHeapType, n uint32, shaderVisible bool) (DescriptorHeap, error) {
	h := &fakeHeap{fakeObject: d.object(fmt.Sprintf("heap(%d)", t)), typ: t, n: n, cpu: d.nextCPU}
	d.nextCPU += CPUDescriptor(n*fakeIncrement + 0x100)
	if shaderVisible {
		h.gpu = d.nextGPU
		d.nextGPU += GPUDescriptor(n*fakeIncrement + 0x100)
		d.visible = append(d.visible, h)
	}
	return h, nil
}

func (d *fakeDevice) DescriptorSize(DescriptorHeapType) uint32 { return fakeIncrement }

func (d *fakeDevice) CreateConstantBufferView(addr uint64, size uint32, dst CPUDescriptor) {
	if size%cbvAlignment != 0 {
		d.errorf("constant buffer view size %d is not aligned", size)
	}
	d.descriptors[dst] = descriptor{kind: "cbv", addr: addr, size: size}
}

func (d *fakeDevice) CreateShaderResourceView(r Resource, format Format, _ uint32, dst CPUDescriptor) {
	d.descriptors[dst] = descriptor{kind: "srv", res: r.(*fakeResource), format: format}
}

func (d *fakeDevice) CreateSampler(desc SamplerDesc, dst CPUDescriptor) {
	d.descriptors[dst] = descriptor{kind: "sampler", sampler: desc}
}

func (d *fakeDevice) CreateRenderTargetView(r Resource, format Format, dst CPUDescriptor) {
	d.descriptors[dst] = descriptor{kind: "rtv", res: r.(*fakeResource), format: format}
}

func (d *fakeDevice) CreateDepthStencilView(r Resource, format Format, dst CPUDescriptor) {
	d.descriptors[dst] = descriptor{kind: "dsv", res: r.(*fakeResource), format: format}
}

func (d *fakeDevice) CopyDescriptors(n uint32, dst, src CPUDescriptor, _ DescriptorHeapType) {
	for i := range n {
		s, ok := d.descriptors[src.Offset(i, fakeIncrement)]
		if !ok {
			delete(d.descriptors, dst.Offset(i, fakeIncrement))
			continue
		}
		d.descriptors[dst.Offset(i, fakeIncrement)] = s
	}
}

// table resolves n descriptors of a shader-visible table.
func (d *fakeDevice) table(gpu GPUDescriptor, n int) []descriptor {
	for _, h := range d.visible {
		end := h.gpu + GPUDescriptor(h.n*fakeIncrement)
		if gpu < h.gpu || gpu >= end {
			continue
		}
		cpu := h.cpu + CPUDescriptor(gpu-h.gpu)
		out := make([]descriptor, n)
		for i := range out {
			out[i] = d.descriptors[cpu.Offset(uint32(i), fakeIncrement)]
		}
		return out
	}
	return nil
}

// ── Pipelines and shaders ───────────────────────────────────────────────────

func (d *fakeDevice) CreateRootSignature(desc *RootSignatureDesc) (Object, error) {
	d.roots = append(d.roots, desc)
	return d.object("root signature"), nil
}

type fakePSO struct {
	*fakeObject
	desc *PipelineStateDesc
}

func (d *fakeDevice) CreatePipelineState(desc *PipelineStateDesc) (Object, error) {
	if len(desc.VS) == 0 {
		return nil, errors.New("E_INVALIDARG: no vertex shader")
	}
	d.psos = append(d.psos, desc)
	return &fakePSO{fakeObject: d.object("pipeline state"), desc: desc}, nil
}

func (d *fakeDevice) CompileShader(src []byte, entry, target string) ([]byte, error) {
	if bytes.Contains(src, []byte("syntax error")) {
		return nil, fmt.Errorf("shader(1,1): error X3000: syntax error")
	}
	return []byte(target + ":" + entry), nil
}

// ── Queue ───────────────────────────────────────────────────────────────────

type fakeAllocator struct {
	*fakeObject
	resets int
}

func (a *fakeAllocator) Reset() error {
	a.resets++
	return nil
}

func (d *fakeDevice) CreateCommandAllocator() (CommandAllocator, error) {
	return &fakeAllocator{fakeObject: d.object("allocator")}, nil
}

type fakeFence struct {
	*fakeObject
	completed uint64
}

func (f *fakeFence) Completed() uint64 { return f.completed }

func (f *fakeFence) Wait(value uint64, timeout time.Duration) (bool, error) {
	f.dev.fenceWait = append(f.dev.fenceWait, timeout)
	return f.completed >= value, nil
}

func (d *fakeDevice) CreateFence() (Fence, error) {
	f := &fakeFence{fakeObject: d.object("fence")}
	d.fences = append(d.fences, f)
	return f, nil
}

// Signal completes immediately unless the GPU is hung.
func (d *fakeDevice) Signal(f Fence, value uint64) error {
	d.signalled = value
	if !d.hang {
		f.(*fakeFence).completed = value
	}
	return nil
}

func (d *fakeDevice) ExecuteCommandList(l CommandList) {
	fl := l.(*fakeList)
	if !fl.closed {
		d.errorf("executed an open command list")
	}
	d.executed++
	st := &execState{tables: map[uint32]GPUDescriptor{}, vertex: map[uint32]VertexBufferView{}}
	for _, cmd := range fl.cmds {
		cmd(st)
	}
}

func (d *fakeDevice) RemovedReason() error { return d.removed }
func (d *fakeDevice) Release()             {}

// ── Command lists ───────────────────────────────────────────────────────────

type execState struct {
	pso        *fakePSO
	topology   PrimitiveTopology
	tables     map[uint32]GPUDescriptor
	vertex     map[uint32]VertexBufferView
	index      *IndexBufferView
	rtvs       []descriptor
	dsv        *descriptor
	viewport   Viewport
	scissor    Rect
	stencilRef uint32
}

type drawCall struct {
	pso           *PipelineStateDesc
	topology      PrimitiveTopology
	count         uint32
	instances     uint32
	first         uint32
	baseVertex    int32
	firstInstance uint32
	indexed       bool
	vertex        map[uint32]VertexBufferView
	index         *IndexBufferView
	tables        map[uint32][]descriptor
	ubos          map[uint64][]byte
	rtvs          []descriptor
	dsv           *descriptor
	viewport      Viewport
	scissor       Rect
	stencilRef    uint32
}

type clearCall struct {
	view    descriptor
	color   [4]float32
	flags   ClearFlags
	depth   float32
	stencil uint8
}

type fakeList struct {
	*fakeObject
	cmds   []func(*execState)
	closed bool
}

func (d *fakeDevice) CreateCommandList(CommandAllocator) (CommandList, error) {
	return &fakeList{fakeObject: d.object("command list")}, nil
}

func (l *fakeList) record(cmd func(*execState)) {
	if l.closed {
		l.dev.errorf("recorded into a closed command list")
	}
	l.cmds = append(l.cmds, cmd)
}

func (l *fakeList) Reset(CommandAllocator) error {
	if !l.closed {
		return errors.New("reset of an open command list")
	}
	l.cmds, l.closed = nil, false
	return nil
}

func (l *fakeList) Close() error {
	if l.closed {
		return errors.New("command list already closed")
	}
	l.closed = true
	return nil
}

func (l *fakeList) ResourceBarrier(barriers []Barrier) {
	bs := append([]Barrier(nil), barriers...)
	l.record(func(*execState) {
		for _, b := range bs {
			r := b.Resource.(*fakeResource)
			if r.state != b.Before {
				l.dev.errorf("barrier on %s: state is %#x, barrier assumes %#x", r.kind, r.state, b.Before)
			}
			r.state = b.After
		}
	})
}

func (l *fakeList) CopyBufferRegion(dst Resource, dstOffset uint64, src Resource, srcOffset, size uint64) {
	l.record(func(*execState) {
		d, s := dst.(*fakeResource), src.(*fakeResource)
		if d.heap == HeapDefault && d.state != StateCopyDest {
			l.dev.errorf("copy into buffer in state %#x", d.state)
		}
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	})
}

func (l *fakeList) CopyBufferToTexture(dst Resource, sub uint32, src Resource, fp Footprint) {
	l.record(func(*execState) {
		d, s := dst.(*fakeResource), src.(*fakeResource)
		if d.state != StateCopyDest {
			l.dev.errorf("copy into texture in state %#x", d.state)
		}
		if fp.RowPitch%pitchAlignment != 0 {
			l.dev.errorf("row pitch %d is not aligned", fp.RowPitch)
		}
		row := fp.Width * formatSize(fp.Format)
		for y := range fp.Height {
			copy(d.levels[sub][y*row:(y+1)*row], s.data[fp.Offset+uint64(y*fp.RowPitch):])
		}
	})
}

func (l *fakeList) CopyTextureToBuffer(dst Resource, fp Footprint, src Resource, sub uint32) {
	l.record(func(*execState) {
		d, s := dst.(*fakeResource), src.(*fakeResource)
		if s.state != StateCopySource {
			l.dev.errorf("copy from texture in state %#x", s.state)
		}
		row := fp.Width * formatSize(fp.Format)
		for y := range fp.Height {
			copy(d.data[fp.Offset+uint64(y*fp.RowPitch):], s.levels[sub][y*row:(y+1)*row])
		}
	})
}

func (l *fakeList) SetDescriptorHeaps(heaps []DescriptorHeap) {
	for _, h := range heaps {
		if h.GPUStart() == 0 {
			l.dev.errorf("bound a heap that is not shader visible")
		}
	}
}

func (l *fakeList) SetGraphicsRootSignature(Object) {
	l.record(func(st *execState) { clear(st.tables) })
}

func (l *fakeList) SetPipelineState(pso Object) {
	l.record(func(st *execState) { st.pso = pso.(*fakePSO) })
}

func (l *fakeList) SetGraphicsRootDescriptorTable(param uint32, base GPUDescriptor) {
	l.record(func(st *execState) { st.tables[param] = base })
}

func (l *fakeList) IASetPrimitiveTopology(t PrimitiveTopology) {
	l.record(func(st *execState) { st.topology = t })
}

func (l *fakeList) IASetVertexBuffers(start uint32, views []VertexBufferView) {
	vs := append([]VertexBufferView(nil), views...)
	l.record(func(st *execState) {
		for i, v := range vs {
			st.vertex[start+uint32(i)] = v
		}
	})
}

func (l *fakeList) IASetIndexBuffer(view *IndexBufferView) {
	v := *view
	l.record(func(st *execState) { st.index = &v })
}

func (l *fakeList) RSSetViewport(v Viewport)   { l.record(func(st *execState) { st.viewport = v }) }
func (l *fakeList) RSSetScissorRect(r Rect)    { l.record(func(st *execState) { st.scissor = r }) }
func (l *fakeList) OMSetStencilRef(ref uint32) { l.record(func(st *execState) { st.stencilRef = ref }) }

func (l *fakeList) OMSetRenderTargets(rtvs []CPUDescriptor, dsv *CPUDescriptor) {
	views := append([]CPUDescriptor(nil), rtvs...)
	var depth *CPUDescriptor
	if dsv != nil {
		v := *dsv
		depth = &v
	}
	l.record(func(st *execState) {
		st.rtvs = nil
		for _, v := range views {
			desc := l.dev.descriptors[v]
			if desc.res.state != StateRenderTarget {
				l.dev.errorf("render target in state %#x", desc.res.state)
			}
			st.rtvs = append(st.rtvs, desc)
		}
		st.dsv = nil
		if depth != nil {
			desc := l.dev.descriptors[*depth]
			st.dsv = &desc
		}
	})
}

func (l *fakeList) ClearRenderTargetView(rtv CPUDescriptor, color [4]float32) {
	l.record(func(*execState) {
		l.dev.clears = append(l.dev.clears, clearCall{view: l.dev.descriptors[rtv], color: color})
	})
}

func (l *fakeList) ClearDepthStencilView(dsv CPUDescriptor, flags ClearFlags, depth float32, stencil uint8) {
	l.record(func(*execState) {
		l.dev.clears = append(l.dev.clears, clearCall{view: l.dev.descriptors[dsv], flags: flags, depth: depth, stencil: stencil})
	})
}

func (l *fakeList) snapshot(st *execState, dc drawCall) drawCall {
	if st.pso == nil {
		l.dev.errorf("draw without pipeline state")
	} else {
		dc.pso = st.pso.desc
	}
	dc.topology = st.topology
	dc.vertex = map[uint32]VertexBufferView{}
	for k, v := range st.vertex {
		dc.vertex[k] = v
	}
	// Tables are resolved now: the ring slots are reused by later lists.
	dc.tables = map[uint32][]descriptor{}
	dc.ubos = map[uint64][]byte{}
	for param, gpu := range st.tables {
		dc.tables[param] = l.dev.table(gpu, 4)
		for _, desc := range dc.tables[param] {
			if desc.kind == "cbv" {
				if r := l.dev.bufferAt(desc.addr); r != nil {
					dc.ubos[desc.addr] = append([]byte(nil), r.data[desc.addr-r.addr:]...)
				}
			}
		}
	}
	dc.index, dc.rtvs, dc.dsv = st.index, st.rtvs, st.dsv
	dc.viewport, dc.scissor, dc.stencilRef = st.viewport, st.scissor, st.stencilRef
	return dc
}

func (l *fakeList) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	l.record(func(st *execState) {
		l.dev.draws = append(l.dev.draws, l.snapshot(st, drawCall{
			count: vertexCount, instances: instanceCount, first: startVertex, firstInstance: startInstance,
		}))
	})
}

func (l *fakeList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	l.record(func(st *execState) {
		l.dev.draws = append(l.dev.draws, l.snapshot(st, drawCall{
			count: indexCount, instances: instanceCount, first: startIndex, baseVertex: baseVertex,
			firstInstance: startInstance, indexed: true,
		}))
	})
}

// ── Swap chains ─────────────────────────────────────────────────────────────

type fakeSwapChain struct {
	*fakeObject
	hwnd     uintptr
	desc     SwapChainDesc
	buffers  []*fakeResource
	current  uint32
	presents []uint32
}

func (d *fakeDevice) CreateSwapChain(hwnd uintptr, desc SwapChainDesc) (SwapChain, error) {
	sc := &fakeSwapChain{fakeObject: d.object("swap chain"), hwnd: hwnd, desc: desc}
	d.swapchains = append(d.swapchains, sc)
	return sc, nil
}

// Buffer returns a new reference to buffer i, as IDXGISwapChain::GetBuffer
// does.
func (s *fakeSwapChain) Buffer(i uint32) (Resource, error) {
	r := &fakeResource{
		fakeObject: s.dev.object("swap chain buffer"),
		heap:       HeapDefault,
		tex:        &TextureDesc{Width: s.desc.Width, Height: s.desc.Height, MipLevels: 1, Format: s.desc.Format},
		state:      StatePresent,
	}
	s.buffers = append(s.buffers, r)
	return r, nil
}

func (s *fakeSwapChain) CurrentIndex() uint32 { return s.current }

func (s *fakeSwapChain) Present(sync uint32) error {
	s.presents = append(s.presents, sync)
	for _, b := range s.buffers {
		if !b.released && b.state != StatePresent {
			s.dev.errorf("presented a buffer in state %#x", b.state)
		}
	}
	s.current = (s.current + 1) % s.desc.Buffers
	return nil
}

func (s *fakeSwapChain) ResizeBuffers(n, width, height uint32, format Format) error {
	for _, b := range s.buffers {
		if !b.released {
			return errors.New("DXGI_ERROR_INVALID_CALL: buffers still referenced")
		}
	}
	s.buffers = nil
	s.desc.Buffers, s.desc.Width, s.desc.Height, s.desc.Format = n, width, height, format
	s.current = 0
	return nil
}

// ── Surfaces ────────────────────────────────────────────────────────────────

type fakeWindow struct{ w, h int }

func (w *fakeWindow) FramebufferSize() (int, int) { return w.w, w.h }
func (w *fakeWindow) NativeHandle() uintptr       { return 0xBEEF }
