// Package d3d12 implements gfx.Backend on Direct3D 12.
//
// Unlike GL, D3D12 makes the application own memory residency, resource
// state and CPU/GPU synchronization. The backend keeps one direct queue and
// one fence: every submission signals the next fence value, command
// allocators and deferred releases are keyed by that value, and every CPU
// wait is bounded by Options.FenceTimeout. Buffers live in the default heap
// and are written through upload-heap staging buffers.
//
// The native API is reached through the Device interface; package dx
// provides the Windows implementation.
package d3d12

import (
	"errors"
	"fmt"
	"time"

	"render-hal/gfx"
	"render-hal/internal/handle"
)

const (
	// Name is the backend name used in DeviceInfo.
	Name = "d3d12"

	// Constant buffer views must be 256-byte aligned, as must texture row
	// pitches in copy footprints.
	cbvAlignment   = 256
	pitchAlignment = 256

	viewRingSize    = 8192
	samplerRingSize = 1024
	maxAllocators   = 16
)

type buffer struct {
	res   Resource
	desc  gfx.BufferDescription
	size  uint64
	state ResourceState
}

// rest is the state a buffer sits in between copies.
func (b *buffer) rest() ResourceState {
	if b.desc.Kind == gfx.BufferKindIndex {
		return StateIndexBuffer
	}
	return StateVertexAndConstantBuffer
}

type texture struct {
	res     Resource
	desc    gfx.TextureDescription
	formats textureFormats
	rest    ResourceState
	srv     DescriptorHeap
	rtv     DescriptorHeap
	dsv     DescriptorHeap
}

type sampler struct {
	heap DescriptorHeap
}

type allocator struct {
	a CommandAllocator
	// value is the fence value of the last submission recorded with a.
	value uint64
}

type grave struct {
	value uint64
	obj   Object
}

var _ gfx.Backend = (*Backend)(nil)

// Backend is the Direct3D 12 gfx.Backend.
type Backend struct {
	dev     Device
	info    gfx.DeviceInfo
	timeout time.Duration
	incr    [4]uint32

	fence      Fence
	fenceValue uint64
	allocators []*allocator
	lists      []CommandList
	graveyard  []grave
	lost       error

	views    *ring
	samplers *ring

	buffers      handle.Table[*buffer]
	textures     handle.Table[*texture]
	samplerObjs  handle.Table[*sampler]
	shaders      handle.Table[*shader]
	pipelines    handle.Table[*pipeline]
	sets         handle.Table[*resourceSet]
	framebuffers handle.Table[*framebuffer]
	swapchains   handle.Table[*swapchain]
}

// New creates a backend on dev. The backend owns dev afterwards and
// releases it in Close.
func New(dev Device, opts gfx.Options) (*Backend, error) {
	b := &Backend{
		dev:     dev,
		timeout: opts.FenceTimeout,
		info:    gfx.DeviceInfo{Backend: Name, Renderer: dev.AdapterName(), Version: "12.0"},
	}
	if b.timeout == 0 {
		b.timeout = gfx.DefaultFenceTimeout
	}
	for t := HeapTypeCBVSRVUAV; t <= HeapTypeDSV; t++ {
		b.incr[t] = dev.DescriptorSize(t)
	}
	fence, err := dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("failed to create fence: %w", err)
	}
	b.fence = fence
	if b.views, err = b.newRing(HeapTypeCBVSRVUAV, viewRingSize); err != nil {
		fence.Release()
		return nil, err
	}
	if b.samplers, err = b.newRing(HeapTypeSampler, samplerRingSize); err != nil {
		b.views.heap.Release()
		fence.Release()
		return nil, err
	}
	gfx.Logger().Info("d3d12: device created", "adapter", b.info.Renderer, "fenceTimeout", b.timeout)
	return b, nil
}

func (b *Backend) Info() gfx.DeviceInfo { return b.info }

func (b *Backend) ShaderFormats() []gfx.ShaderFormat {
	return []gfx.ShaderFormat{gfx.ShaderFormatHLSL, gfx.ShaderFormatDXBC}
}

func lookup[T any](t *handle.Table[T], kind string, h gfx.Handle) (T, error) {
	v, ok := t.Get(h)
	if !ok {
		return v, &gfx.ResourceMisuseError{Op: "d3d12", Err: fmt.Errorf("%w: %s %#x", gfx.ErrReleased, kind, uint64(h))}
	}
	return v, nil
}

// fatal records err as the reason the device is lost. A removed device
// reports its own reason in place of err.
func (b *Backend) fatal(op string, err error) error {
	if reason := b.dev.RemovedReason(); reason != nil {
		err = fmt.Errorf("%w: %w", gfx.ErrDeviceLost, reason)
	}
	if b.lost == nil {
		b.lost = err
		gfx.Logger().Error("d3d12: device lost", "op", op, "error", err)
	}
	return &gfx.BackendFatalError{Op: "d3d12 " + op, Err: err}
}

func (b *Backend) alive() error {
	if b.lost != nil {
		return &gfx.BackendFatalError{Op: "d3d12", Err: fmt.Errorf("%w: %w", gfx.ErrDeviceLost, b.lost)}
	}
	return nil
}

// ── Synchronization ─────────────────────────────────────────────────────────

// signal asks the queue to set the fence to the next value once all work
// submitted so far has finished, and returns that value.
func (b *Backend) signal() (uint64, error) {
	v := b.fenceValue + 1
	if err := b.dev.Signal(b.fence, v); err != nil {
		return 0, b.fatal("signal", err)
	}
	b.fenceValue = v
	return v, nil
}

// wait blocks until the fence reaches v. Running out of time loses the
// device: the GPU is hung or removed and nothing it owns can be trusted.
func (b *Backend) wait(v uint64) error {
	if b.fence.Completed() >= v {
		return nil
	}
	done, err := b.fence.Wait(v, b.timeout)
	if err != nil {
		return b.fatal("fence wait", err)
	}
	if !done {
		return b.fatal("fence wait", fmt.Errorf("%w: value %d not reached after %v (completed %d)",
			gfx.ErrFenceTimeout, v, b.timeout, b.fence.Completed()))
	}
	b.collect()
	return nil
}

// release frees obj once the GPU is past everything submitted so far.
func (b *Backend) release(obj Object) {
	if obj == nil {
		return
	}
	if b.fence.Completed() >= b.fenceValue {
		obj.Release()
		return
	}
	b.graveyard = append(b.graveyard, grave{value: b.fenceValue, obj: obj})
}

// collect releases every deferred object the GPU is done with.
func (b *Backend) collect() {
	done := b.fence.Completed()
	kept := b.graveyard[:0]
	for _, g := range b.graveyard {
		if g.value <= done {
			g.obj.Release()
		} else {
			kept = append(kept, g)
		}
	}
	clear(b.graveyard[len(kept):])
	b.graveyard = kept
}

// ── Command lists ───────────────────────────────────────────────────────────

// allocator returns a command allocator the GPU has finished with, creating
// one while the pool is small and waiting for the oldest otherwise.
func (b *Backend) allocator() (*allocator, error) {
	done := b.fence.Completed()
	oldest := -1
	for i, a := range b.allocators {
		if a.value <= done {
			return b.takeAllocator(i)
		}
		if oldest < 0 || a.value < b.allocators[oldest].value {
			oldest = i
		}
	}
	if len(b.allocators) >= maxAllocators {
		if err := b.wait(b.allocators[oldest].value); err != nil {
			return nil, err
		}
		return b.takeAllocator(oldest)
	}
	a, err := b.dev.CreateCommandAllocator()
	if err != nil {
		return nil, b.fatal("create command allocator", err)
	}
	return &allocator{a: a}, nil
}

func (b *Backend) takeAllocator(i int) (*allocator, error) {
	a := b.allocators[i]
	b.allocators = append(b.allocators[:i], b.allocators[i+1:]...)
	if err := a.a.Reset(); err != nil {
		a.a.Release()
		return nil, b.fatal("reset command allocator", err)
	}
	return a, nil
}

// openList returns a command list in the recording state.
func (b *Backend) openList() (*allocator, CommandList, error) {
	if err := b.alive(); err != nil {
		return nil, nil, err
	}
	a, err := b.allocator()
	if err != nil {
		return nil, nil, err
	}
	if n := len(b.lists); n > 0 {
		l := b.lists[n-1]
		b.lists = b.lists[:n-1]
		if err := l.Reset(a.a); err != nil {
			b.allocators = append(b.allocators, a)
			l.Release()
			return nil, nil, b.fatal("reset command list", err)
		}
		return a, l, nil
	}
	l, err := b.dev.CreateCommandList(a.a)
	if err != nil {
		b.allocators = append(b.allocators, a)
		return nil, nil, b.fatal("create command list", err)
	}
	return a, l, nil
}

// submit closes l, executes it and returns the fence value that marks its
// completion. Both l and a go back to their pools.
func (b *Backend) submit(op string, a *allocator, l CommandList) (uint64, error) {
	defer func() {
		b.lists = append(b.lists, l)
		b.allocators = append(b.allocators, a)
	}()
	if err := l.Close(); err != nil {
		a.value = b.fenceValue
		return 0, b.fatal(op, fmt.Errorf("close command list: %w", err))
	}
	b.dev.ExecuteCommandList(l)
	v, err := b.signal()
	if err != nil {
		return 0, err
	}
	a.value = v
	b.collect()
	return v, nil
}

// discard closes l without executing it.
func (b *Backend) discard(a *allocator, l CommandList) {
	_ = l.Close()
	a.value = b.fenceValue
	b.lists = append(b.lists, l)
	b.allocators = append(b.allocators, a)
}

// immediate records fn into its own command list and submits it.
func (b *Backend) immediate(op string, fn func(l CommandList)) (uint64, error) {
	a, l, err := b.openList()
	if err != nil {
		return 0, err
	}
	fn(l)
	return b.submit(op, a, l)
}

// ── Buffers ─────────────────────────────────────────────────────────────────

func (b *Backend) CreateBuffer(desc gfx.BufferDescription, data []byte) (gfx.Handle, error) {
	size := desc.SizeInBytes
	if desc.Kind == gfx.BufferKindUniform {
		size = align(size, cbvAlignment)
	}
	res, err := b.dev.CreateBuffer(HeapDefault, size, StateCommon)
	if err != nil {
		return 0, b.fatal("create buffer", err)
	}
	buf := &buffer{res: res, desc: desc, size: size, state: StateCommon}
	init := make([]byte, desc.SizeInBytes)
	copy(init, data)
	if err := b.writeBuffer(buf, 0, init); err != nil {
		res.Release()
		return 0, err
	}
	return b.buffers.Insert(buf), nil
}

func (b *Backend) WriteBuffer(h gfx.Handle, offset uint64, data []byte) error {
	buf, err := lookup(&b.buffers, "buffer", h)
	if err != nil {
		return err
	}
	return b.writeBuffer(buf, offset, data)
}

// writeBuffer copies data through a staging buffer on its own submission.
// Queue order makes the write visible to every later command list, so the
// CPU does not wait.
func (b *Backend) writeBuffer(buf *buffer, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	staging, err := b.stage(data)
	if err != nil {
		return err
	}
	_, err = b.immediate("write buffer", func(l CommandList) {
		copyToBuffer(l, buf, offset, staging, uint64(len(data)))
	})
	b.release(staging)
	return err
}

// stage returns an upload-heap buffer holding data.
func (b *Backend) stage(data []byte) (Resource, error) {
	res, err := b.dev.CreateBuffer(HeapUpload, uint64(len(data)), StateGenericRead)
	if err != nil {
		return nil, b.fatal("create staging buffer", err)
	}
	mem, err := res.Map()
	if err != nil {
		res.Release()
		return nil, b.fatal("map staging buffer", err)
	}
	copy(mem, data)
	res.Unmap()
	return res, nil
}

func copyToBuffer(l CommandList, buf *buffer, offset uint64, src Resource, n uint64) {
	l.ResourceBarrier([]Barrier{{Resource: buf.res, Before: buf.state, After: StateCopyDest}})
	l.CopyBufferRegion(buf.res, offset, src, 0, n)
	l.ResourceBarrier([]Barrier{{Resource: buf.res, Before: StateCopyDest, After: buf.rest()}})
	buf.state = buf.rest()
}

func (b *Backend) ReadBuffer(h gfx.Handle, offset uint64, dst []byte) error {
	buf, err := lookup(&b.buffers, "buffer", h)
	if err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	n := uint64(len(dst))
	readback, err := b.dev.CreateBuffer(HeapReadback, n, StateCopyDest)
	if err != nil {
		return b.fatal("create readback buffer", err)
	}
	defer readback.Release()
	v, err := b.immediate("read buffer", func(l CommandList) {
		l.ResourceBarrier([]Barrier{{Resource: buf.res, Before: buf.state, After: StateCopySource}})
		l.CopyBufferRegion(readback, 0, buf.res, offset, n)
		l.ResourceBarrier([]Barrier{{Resource: buf.res, Before: StateCopySource, After: buf.state}})
	})
	if err != nil {
		return err
	}
	if err := b.wait(v); err != nil {
		return err
	}
	mem, err := readback.Map()
	if err != nil {
		return b.fatal("map readback buffer", err)
	}
	copy(dst, mem)
	readback.Unmap()
	return nil
}

func (b *Backend) DestroyBuffer(h gfx.Handle) {
	if buf, ok := b.buffers.Remove(h); ok {
		b.release(buf.res)
	}
}

// ── Textures ────────────────────────────────────────────────────────────────

func (b *Backend) CreateTexture(desc gfx.TextureDescription) (gfx.Handle, error) {
	sampled := desc.Usage&gfx.TextureUsageSampled != 0
	formats, err := dxgiFormat(desc.Format, sampled)
	if err != nil {
		return 0, err
	}
	tex := &texture{desc: desc, formats: formats}
	var clearValue *ClearValue
	switch {
	case sampled:
		tex.rest = StateShaderResource
	case desc.Format.IsDepth():
		tex.rest = StateDepthWrite
	default:
		tex.rest = StateRenderTarget
	}
	if desc.Format.IsDepth() {
		clearValue = &ClearValue{Format: formats.view, Depth: 1}
	} else if desc.Usage&gfx.TextureUsageRenderTarget != 0 {
		clearValue = &ClearValue{Format: formats.view}
	}
	res, err := b.dev.CreateTexture(TextureDesc{
		Width:        desc.Width,
		Height:       desc.Height,
		MipLevels:    desc.MipLevels,
		Format:       formats.resource,
		RenderTarget: desc.Usage&gfx.TextureUsageRenderTarget != 0,
		DepthStencil: desc.Format.IsDepth(),
	}, tex.rest, clearValue)
	if err != nil {
		return 0, b.fatal("create texture", err)
	}
	tex.res = res
	if err := b.createViews(tex); err != nil {
		b.freeTexture(tex)
		return 0, err
	}
	return b.textures.Insert(tex), nil
}

// createViews gives the texture its own single-descriptor heaps for the
// views its usage calls for. Resource sets copy from the SRV heap.
func (b *Backend) createViews(tex *texture) error {
	var err error
	if tex.desc.Usage&gfx.TextureUsageSampled != 0 {
		if tex.srv, err = b.dev.CreateDescriptorHeap(HeapTypeCBVSRVUAV, 1, false); err != nil {
			return b.fatal("create srv heap", err)
		}
		b.dev.CreateShaderResourceView(tex.res, tex.formats.srv, tex.desc.MipLevels, tex.srv.CPUStart())
	}
	if tex.desc.Format.IsDepth() {
		if tex.dsv, err = b.dev.CreateDescriptorHeap(HeapTypeDSV, 1, false); err != nil {
			return b.fatal("create dsv heap", err)
		}
		b.dev.CreateDepthStencilView(tex.res, tex.formats.view, tex.dsv.CPUStart())
	} else if tex.desc.Usage&gfx.TextureUsageRenderTarget != 0 {
		if tex.rtv, err = b.dev.CreateDescriptorHeap(HeapTypeRTV, 1, false); err != nil {
			return b.fatal("create rtv heap", err)
		}
		b.dev.CreateRenderTargetView(tex.res, tex.formats.view, tex.rtv.CPUStart())
	}
	return nil
}

// footprint lays out one mip level in a copy buffer.
func (tex *texture) footprint(level uint32) (Footprint, uint64) {
	w, h := max(tex.desc.Width>>level, 1), max(tex.desc.Height>>level, 1)
	pitch := align(uint64(w*tex.desc.Format.BytesPerPixel()), pitchAlignment)
	return Footprint{Format: tex.formats.resource, Width: w, Height: h, RowPitch: uint32(pitch)}, pitch * uint64(h)
}

func depthCopyErr(op string, tex *texture) error {
	if tex.desc.Format.IsDepth() {
		return &gfx.ResourceMisuseError{Op: op, Err: fmt.Errorf("%w: copying %v texture data", gfx.ErrUnsupported, tex.desc.Format)}
	}
	return nil
}

func (b *Backend) WriteTexture(h gfx.Handle, level uint32, data []byte) error {
	tex, err := lookup(&b.textures, "texture", h)
	if err != nil {
		return err
	}
	if err := depthCopyErr("d3d12 write texture", tex); err != nil {
		return err
	}
	fp, size := tex.footprint(level)
	row := uint64(fp.Width * tex.desc.Format.BytesPerPixel())
	pitched := make([]byte, size)
	for y := range uint64(fp.Height) {
		copy(pitched[y*uint64(fp.RowPitch):], data[y*row:(y+1)*row])
	}
	staging, err := b.stage(pitched)
	if err != nil {
		return err
	}
	_, err = b.immediate("write texture", func(l CommandList) {
		l.ResourceBarrier([]Barrier{{Resource: tex.res, Before: tex.rest, After: StateCopyDest}})
		l.CopyBufferToTexture(tex.res, level, staging, fp)
		l.ResourceBarrier([]Barrier{{Resource: tex.res, Before: StateCopyDest, After: tex.rest}})
	})
	b.release(staging)
	return err
}

func (b *Backend) ReadTexture(h gfx.Handle, level uint32, dst []byte) error {
	tex, err := lookup(&b.textures, "texture", h)
	if err != nil {
		return err
	}
	if err := depthCopyErr("d3d12 read texture", tex); err != nil {
		return err
	}
	fp, size := tex.footprint(level)
	readback, err := b.dev.CreateBuffer(HeapReadback, size, StateCopyDest)
	if err != nil {
		return b.fatal("create readback buffer", err)
	}
	defer readback.Release()
	v, err := b.immediate("read texture", func(l CommandList) {
		l.ResourceBarrier([]Barrier{{Resource: tex.res, Before: tex.rest, After: StateCopySource}})
		l.CopyTextureToBuffer(readback, fp, tex.res, level)
		l.ResourceBarrier([]Barrier{{Resource: tex.res, Before: StateCopySource, After: tex.rest}})
	})
	if err != nil {
		return err
	}
	if err := b.wait(v); err != nil {
		return err
	}
	mem, err := readback.Map()
	if err != nil {
		return b.fatal("map readback buffer", err)
	}
	defer readback.Unmap()
	row := uint64(fp.Width * tex.desc.Format.BytesPerPixel())
	for y := range uint64(fp.Height) {
		copy(dst[y*row:(y+1)*row], mem[y*uint64(fp.RowPitch):])
	}
	return nil
}

func (b *Backend) freeTexture(tex *texture) {
	for _, heap := range []DescriptorHeap{tex.srv, tex.rtv, tex.dsv} {
		if heap != nil {
			b.release(heap)
		}
	}
	b.release(tex.res)
}

func (b *Backend) DestroyTexture(h gfx.Handle) {
	if tex, ok := b.textures.Remove(h); ok {
		b.freeTexture(tex)
	}
}

// ── Samplers ────────────────────────────────────────────────────────────────

func (b *Backend) CreateSampler(desc gfx.SamplerDescription) (gfx.Handle, error) {
	heap, err := b.dev.CreateDescriptorHeap(HeapTypeSampler, 1, false)
	if err != nil {
		return 0, b.fatal("create sampler heap", err)
	}
	c := desc.BorderColor
	sd := SamplerDesc{
		Filter:        samplerFilter(desc),
		AddressU:      addressMode(desc.AddressU),
		AddressV:      addressMode(desc.AddressV),
		AddressW:      addressMode(desc.AddressW),
		MaxAnisotropy: max(desc.MaxAnisotropy, 1),
		Compare:       ComparisonNever,
		BorderColor:   [4]float32{c.R, c.G, c.B, c.A},
		MinLOD:        desc.MinLOD,
		MaxLOD:        desc.MaxLOD,
	}
	if desc.CompareEnable {
		sd.Compare = comparison(desc.Compare)
	}
	b.dev.CreateSampler(sd, heap.CPUStart())
	return b.samplerObjs.Insert(&sampler{heap: heap}), nil
}

func (b *Backend) DestroySampler(h gfx.Handle) {
	if s, ok := b.samplerObjs.Remove(h); ok {
		b.release(s.heap)
	}
}

// ── Frames ──────────────────────────────────────────────────────────────────

func (b *Backend) BeginFrame() error {
	if err := b.alive(); err != nil {
		return err
	}
	if reason := b.dev.RemovedReason(); reason != nil {
		return b.fatal("begin frame", reason)
	}
	b.collect()
	return nil
}

func (b *Backend) EndFrame() error {
	b.collect()
	return nil
}

// WaitIdle blocks until the queue has drained.
func (b *Backend) WaitIdle() error {
	if err := b.alive(); err != nil {
		return err
	}
	v, err := b.signal()
	if err != nil {
		return err
	}
	return b.wait(v)
}

// Close waits for the GPU and releases every native object. A lost device
// is torn down without waiting.
func (b *Backend) Close() error {
	var errs []error
	if b.lost == nil {
		if err := b.WaitIdle(); err != nil {
			errs = append(errs, err)
		}
	}
	b.swapchains.Each(func(h gfx.Handle, _ *swapchain) { b.DestroySwapchain(h) })
	b.framebuffers.Each(func(h gfx.Handle, _ *framebuffer) { b.DestroyFramebuffer(h) })
	b.sets.Each(func(h gfx.Handle, _ *resourceSet) { b.DestroyResourceSet(h) })
	b.pipelines.Each(func(h gfx.Handle, _ *pipeline) { b.DestroyPipeline(h) })
	b.shaders.Each(func(h gfx.Handle, _ *shader) { b.DestroyShader(h) })
	b.samplerObjs.Each(func(h gfx.Handle, _ *sampler) { b.DestroySampler(h) })
	b.textures.Each(func(h gfx.Handle, _ *texture) { b.DestroyTexture(h) })
	b.buffers.Each(func(h gfx.Handle, _ *buffer) { b.DestroyBuffer(h) })

	for _, g := range b.graveyard {
		g.obj.Release()
	}
	b.graveyard = nil
	for _, l := range b.lists {
		l.Release()
	}
	for _, a := range b.allocators {
		a.a.Release()
	}
	b.lists, b.allocators = nil, nil
	b.views.heap.Release()
	b.samplers.heap.Release()
	b.fence.Release()
	b.dev.Release()
	gfx.Logger().Debug("d3d12: device closed")
	return errors.Join(errs...)
}
