package d3d12

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"render-hal/gfx"
)

// ring is a shader-visible descriptor heap that command lists copy resource
// set tables into. D3D12 binds one such heap per type at a time, so every
// set is staged in its own CPU heap and copied here at draw time.
type ring struct {
	heap DescriptorHeap
	kind DescriptorHeapType
	size uint32
	incr uint32
	head uint32
	// used counts the descriptors taken by the list being recorded.
	used uint32
}

func (b *Backend) newRing(kind DescriptorHeapType, size uint32) (*ring, error) {
	heap, err := b.dev.CreateDescriptorHeap(kind, size, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader-visible descriptor heap: %w", err)
	}
	return &ring{heap: heap, kind: kind, size: size, incr: b.incr[kind]}, nil
}

var errRingExhausted = errors.New("descriptor heap exhausted by a single command list")

// alloc reserves n contiguous descriptors. Wrapping around waits for every
// earlier submission, since those may still read the front of the ring.
func (b *Backend) alloc(r *ring, n uint32) (CPUDescriptor, GPUDescriptor, error) {
	if r.used+n > r.size {
		return 0, 0, b.fatal("allocate descriptors", fmt.Errorf("%w (%d of %d)", errRingExhausted, r.used+n, r.size))
	}
	if r.head+n > r.size {
		if err := b.wait(b.fenceValue); err != nil {
			return 0, 0, err
		}
		r.used += r.size - r.head
		r.head = 0
	}
	cpu := r.heap.CPUStart().Offset(r.head, r.incr)
	gpu := r.heap.GPUStart().Offset(r.head, r.incr)
	r.head += n
	r.used += n
	return cpu, gpu, nil
}

// resourceSet keeps its descriptors in two CPU heaps: one table of views
// ordered by binding, and one table holding the sampler of each texture.
type resourceSet struct {
	spec     *gfx.ResourceSetSpecification
	slots    map[uint32]uint32
	samplers map[uint32]uint32
	viewHeap DescriptorHeap
	sampHeap DescriptorHeap
	nViews   uint32
	nSamp    uint32
}

// tableOrder returns the bindings of spec in descriptor table order.
func tableOrder(spec *gfx.ResourceSetSpecification) []gfx.ResourceBinding {
	return slices.SortedFunc(slices.Values(spec.Bindings), func(a, c gfx.ResourceBinding) int {
		return cmp.Compare(a.Binding, c.Binding)
	})
}

func (b *Backend) CreateResourceSet(spec *gfx.ResourceSetSpecification) (gfx.Handle, error) {
	rs := &resourceSet{spec: spec, slots: map[uint32]uint32{}, samplers: map[uint32]uint32{}}
	for _, rb := range tableOrder(spec) {
		rs.slots[rb.Binding] = rs.nViews
		rs.nViews++
		if rb.Kind == gfx.BindingSampledTexture {
			rs.samplers[rb.Binding] = rs.nSamp
			rs.nSamp++
		}
	}
	var err error
	if rs.nViews > 0 {
		if rs.viewHeap, err = b.dev.CreateDescriptorHeap(HeapTypeCBVSRVUAV, rs.nViews, false); err != nil {
			return 0, b.fatal("create resource set heap", err)
		}
	}
	if rs.nSamp > 0 {
		if rs.sampHeap, err = b.dev.CreateDescriptorHeap(HeapTypeSampler, rs.nSamp, false); err != nil {
			b.release(rs.viewHeap)
			return 0, b.fatal("create resource set heap", err)
		}
	}
	return b.sets.Insert(rs), nil
}

// WriteResourceSet writes the descriptors for one slot right away; command
// lists pick them up the next time the set is bound.
func (b *Backend) WriteResourceSet(h gfx.Handle, slot uint32, w gfx.ResourceWrite) error {
	rs, err := lookup(&b.sets, "resource set", h)
	if err != nil {
		return err
	}
	idx, ok := rs.slots[slot]
	if !ok {
		return &gfx.ResourceMisuseError{Op: "d3d12 write resource set", Err: fmt.Errorf("set %d has no binding %d", rs.spec.Set, slot)}
	}
	dst := rs.viewHeap.CPUStart().Offset(idx, b.incr[HeapTypeCBVSRVUAV])
	switch w.Kind {
	case gfx.BindingUniformBuffer:
		buf, err := lookup(&b.buffers, "buffer", w.Buffer)
		if err != nil {
			return err
		}
		size := buf.size
		if w.Size > 0 {
			size = min(align(w.Size, cbvAlignment), buf.size)
		}
		b.dev.CreateConstantBufferView(buf.res.GPUAddress(), uint32(size), dst)
	case gfx.BindingSampledTexture:
		tex, err := lookup(&b.textures, "texture", w.Texture)
		if err != nil {
			return err
		}
		s, err := lookup(&b.samplerObjs, "sampler", w.Sampler)
		if err != nil {
			return err
		}
		if tex.srv == nil {
			return &gfx.ResourceMisuseError{Op: "d3d12 write resource set", Err: fmt.Errorf("texture %q was not created with sampled usage", tex.desc.Label)}
		}
		b.dev.CopyDescriptors(1, dst, tex.srv.CPUStart(), HeapTypeCBVSRVUAV)
		sdst := rs.sampHeap.CPUStart().Offset(rs.samplers[slot], b.incr[HeapTypeSampler])
		b.dev.CopyDescriptors(1, sdst, s.heap.CPUStart(), HeapTypeSampler)
	default:
		return &gfx.ConfigurationError{Op: "d3d12 write resource set", Err: fmt.Errorf("unsupported binding kind %v", w.Kind)}
	}
	return nil
}

func (b *Backend) DestroyResourceSet(h gfx.Handle) {
	rs, ok := b.sets.Remove(h)
	if !ok {
		return
	}
	if rs.viewHeap != nil {
		b.release(rs.viewHeap)
	}
	if rs.sampHeap != nil {
		b.release(rs.sampHeap)
	}
}
