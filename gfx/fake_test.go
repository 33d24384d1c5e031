package gfx

import (
	"fmt"
	"slices"
)

// fakeBackend is an in-memory Backend that records what the device asks of it.
type fakeBackend struct {
	next      Handle
	live      map[Handle]string
	destroyed []Handle

	buffers    map[Handle][]byte
	textures   map[Handle][]byte
	sets       map[Handle]map[uint32]ResourceWrite
	pipelines  map[Handle]*PipelineDescription
	swapchains map[Handle]*SwapchainState

	draws      []fakeDraw
	passes     []RenderPassInfo
	submits    int
	aborts     int
	waits      int
	presents   int
	encodeErr  error
	acquireErr error
}

type fakeDraw struct {
	Topology  PrimitiveTopology
	Count     uint32
	Instances uint32
	First     uint32
	Indexed   bool
	Pipeline  Handle
	Vertex    Handle
	Sets      map[uint32]Handle
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		live:       map[Handle]string{},
		buffers:    map[Handle][]byte{},
		textures:   map[Handle][]byte{},
		sets:       map[Handle]map[uint32]ResourceWrite{},
		pipelines:  map[Handle]*PipelineDescription{},
		swapchains: map[Handle]*SwapchainState{},
	}
}

func newFakeDevice() (*GraphicsDevice, *fakeBackend) {
	fb := newFakeBackend()
	d, err := NewGraphicsDevice(fb, Options{})
	if err != nil {
		panic(err)
	}
	return d, fb
}

func (f *fakeBackend) alloc(kind string) Handle {
	f.next++
	f.live[f.next] = kind
	return f.next
}

func (f *fakeBackend) destroy(h Handle) {
	if _, ok := f.live[h]; !ok {
		panic(fmt.Sprintf("double destroy of handle %d", h))
	}
	delete(f.live, h)
	f.destroyed = append(f.destroyed, h)
}

func (f *fakeBackend) Info() DeviceInfo {
	return DeviceInfo{Backend: "fake", Renderer: "memory", Version: "1"}
}

func (f *fakeBackend) ShaderFormats() []ShaderFormat { return []ShaderFormat{ShaderFormatGLSL} }

func (f *fakeBackend) CreateBuffer(desc BufferDescription, data []byte) (Handle, error) {
	h := f.alloc("buffer")
	buf := make([]byte, desc.SizeInBytes)
	copy(buf, data)
	f.buffers[h] = buf
	return h, nil
}

func (f *fakeBackend) WriteBuffer(h Handle, offset uint64, data []byte) error {
	copy(f.buffers[h][offset:], data)
	return nil
}

func (f *fakeBackend) ReadBuffer(h Handle, offset uint64, dst []byte) error {
	copy(dst, f.buffers[h][offset:])
	return nil
}

func (f *fakeBackend) DestroyBuffer(h Handle) { f.destroy(h); delete(f.buffers, h) }

func (f *fakeBackend) CreateTexture(desc TextureDescription) (Handle, error) {
	h := f.alloc("texture")
	f.textures[h] = make([]byte, desc.LevelSize(0))
	return h, nil
}

func (f *fakeBackend) WriteTexture(h Handle, level uint32, data []byte) error {
	if level == 0 {
		copy(f.textures[h], data)
	}
	return nil
}

func (f *fakeBackend) ReadTexture(h Handle, level uint32, dst []byte) error {
	if level == 0 {
		copy(dst, f.textures[h])
	}
	return nil
}

func (f *fakeBackend) DestroyTexture(h Handle) { f.destroy(h); delete(f.textures, h) }

func (f *fakeBackend) CreateSampler(SamplerDescription) (Handle, error) { return f.alloc("sampler"), nil }
func (f *fakeBackend) DestroySampler(h Handle)                         { f.destroy(h) }
func (f *fakeBackend) CreateShader(ShaderDescription) (Handle, error)   { return f.alloc("shader"), nil }
func (f *fakeBackend) DestroyShader(h Handle)                          { f.destroy(h) }

func (f *fakeBackend) CreatePipeline(desc *PipelineDescription, shader Handle) (Handle, error) {
	if _, ok := f.live[shader]; !ok {
		return 0, fmt.Errorf("unknown shader %d", shader)
	}
	h := f.alloc("pipeline")
	f.pipelines[h] = desc
	return h, nil
}

func (f *fakeBackend) DestroyPipeline(h Handle) { f.destroy(h); delete(f.pipelines, h) }

func (f *fakeBackend) CreateResourceSet(*ResourceSetSpecification) (Handle, error) {
	h := f.alloc("resource set")
	f.sets[h] = map[uint32]ResourceWrite{}
	return h, nil
}

func (f *fakeBackend) WriteResourceSet(h Handle, slot uint32, w ResourceWrite) error {
	f.sets[h][slot] = w
	return nil
}

func (f *fakeBackend) DestroyResourceSet(h Handle) { f.destroy(h); delete(f.sets, h) }

func (f *fakeBackend) CreateFramebuffer([]Handle, Handle) (Handle, error) {
	return f.alloc("framebuffer"), nil
}

func (f *fakeBackend) DestroyFramebuffer(h Handle) { f.destroy(h) }

func (f *fakeBackend) CreateSwapchain(_ Surface, desc SwapchainDescription) (Handle, error) {
	h := f.alloc("swapchain")
	st := &SwapchainState{Width: desc.Width, Height: desc.Height}
	for range desc.BufferCount {
		st.Buffers = append(st.Buffers, f.alloc("swapchain buffer"))
	}
	f.swapchains[h] = st
	return h, nil
}

func (f *fakeBackend) ResizeSwapchain(h Handle, width, height uint32) error {
	f.waits++
	st := f.swapchains[h]
	for i, b := range st.Buffers {
		f.destroy(b)
		st.Buffers[i] = f.alloc("swapchain buffer")
	}
	st.Width, st.Height, st.Current = width, height, 0
	return nil
}

func (f *fakeBackend) AcquireSwapchain(h Handle) (uint32, error) {
	if f.acquireErr != nil {
		return 0, f.acquireErr
	}
	return f.swapchains[h].Current, nil
}

func (f *fakeBackend) PresentSwapchain(h Handle) error {
	st := f.swapchains[h]
	st.Current = (st.Current + 1) % uint32(len(st.Buffers))
	f.presents++
	return nil
}

func (f *fakeBackend) SetSwapchainVSync(Handle, bool) error { return nil }

func (f *fakeBackend) SwapchainState(h Handle) SwapchainState {
	st := *f.swapchains[h]
	st.Buffers = slices.Clone(st.Buffers)
	return st
}

func (f *fakeBackend) DestroySwapchain(h Handle) {
	for _, b := range f.swapchains[h].Buffers {
		f.destroy(b)
	}
	f.destroy(h)
	delete(f.swapchains, h)
}

func (f *fakeBackend) BeginFrame() error { return nil }
func (f *fakeBackend) EndFrame() error   { return nil }
func (f *fakeBackend) WaitIdle() error   { f.waits++; return nil }
func (f *fakeBackend) Close() error      { return nil }

func (f *fakeBackend) Encode() (Encoder, error) {
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	return &fakeEncoder{f: f, sets: map[uint32]Handle{}}, nil
}

type fakeEncoder struct {
	f        *fakeBackend
	pipeline Handle
	vertex   Handle
	sets     map[uint32]Handle
	draws    []fakeDraw
	passes   []RenderPassInfo
	updates  []func()
}

func (e *fakeEncoder) BeginRenderPass(info RenderPassInfo) error {
	e.passes = append(e.passes, info)
	return nil
}

func (e *fakeEncoder) EndRenderPass() error           { return nil }
func (e *fakeEncoder) SetViewport(Viewport) error     { return nil }
func (e *fakeEncoder) SetScissor(Scissor) error       { return nil }
func (e *fakeEncoder) BindPipeline(h Handle) error    { e.pipeline = h; return nil }
func (e *fakeEncoder) BindResourceSet(set uint32, h Handle) error {
	e.sets[set] = h
	return nil
}

func (e *fakeEncoder) BindVertexBuffer(_ uint32, h Handle, _ uint64) error {
	e.vertex = h
	return nil
}

func (e *fakeEncoder) BindIndexBuffer(Handle, IndexFormat, uint64) error { return nil }

func (e *fakeEncoder) UpdateBuffer(h Handle, offset uint64, data []byte) error {
	e.updates = append(e.updates, func() { copy(e.f.buffers[h][offset:], data) })
	return nil
}

func (e *fakeEncoder) record(d fakeDraw) {
	d.Pipeline, d.Vertex = e.pipeline, e.vertex
	d.Sets = map[uint32]Handle{}
	for k, v := range e.sets {
		d.Sets[k] = v
	}
	e.draws = append(e.draws, d)
}

func (e *fakeEncoder) Draw(t PrimitiveTopology, count, instances, first, _ uint32) error {
	e.record(fakeDraw{Topology: t, Count: count, Instances: instances, First: first})
	return nil
}

func (e *fakeEncoder) DrawIndexed(t PrimitiveTopology, count, instances, first uint32, _ int32, _ uint32) error {
	e.record(fakeDraw{Topology: t, Count: count, Instances: instances, First: first, Indexed: true})
	return nil
}

func (e *fakeEncoder) Finish() error {
	for _, u := range e.updates {
		u()
	}
	e.f.draws = append(e.f.draws, e.draws...)
	e.f.passes = append(e.f.passes, e.passes...)
	e.f.submits++
	return nil
}

func (e *fakeEncoder) Abort() { e.f.aborts++ }

type fakeSurface struct{ w, h int }

func (s fakeSurface) FramebufferSize() (int, int) { return s.w, s.h }
