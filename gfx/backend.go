package gfx

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Backend is the function table a native graphics API implements. gfx
// objects hold opaque Handles into it and never see native types.
//
// Backend methods are called from the goroutine that owns the device.
type Backend interface {
	Info() DeviceInfo
	// ShaderFormats lists accepted shader payload formats, preferred first.
	ShaderFormats() []ShaderFormat

	CreateBuffer(desc BufferDescription, data []byte) (Handle, error)
	WriteBuffer(h Handle, offset uint64, data []byte) error
	ReadBuffer(h Handle, offset uint64, dst []byte) error
	DestroyBuffer(h Handle)

	CreateTexture(desc TextureDescription) (Handle, error)
	WriteTexture(h Handle, level uint32, data []byte) error
	ReadTexture(h Handle, level uint32, dst []byte) error
	DestroyTexture(h Handle)

	CreateSampler(desc SamplerDescription) (Handle, error)
	DestroySampler(h Handle)

	CreateShader(desc ShaderDescription) (Handle, error)
	DestroyShader(h Handle)

	CreatePipeline(desc *PipelineDescription, shader Handle) (Handle, error)
	DestroyPipeline(h Handle)

	CreateResourceSet(spec *ResourceSetSpecification) (Handle, error)
	WriteResourceSet(h Handle, slot uint32, w ResourceWrite) error
	DestroyResourceSet(h Handle)

	CreateFramebuffer(color []Handle, depth Handle) (Handle, error)
	DestroyFramebuffer(h Handle)

	CreateSwapchain(surface Surface, desc SwapchainDescription) (Handle, error)
	// ResizeSwapchain waits for pending GPU work, releases the old buffers
	// and views, recreates them and restores any framebuffer binding.
	ResizeSwapchain(h Handle, width, height uint32) error
	AcquireSwapchain(h Handle) (uint32, error)
	PresentSwapchain(h Handle) error
	SetSwapchainVSync(h Handle, enabled bool) error
	SwapchainState(h Handle) SwapchainState
	DestroySwapchain(h Handle)

	BeginFrame() error
	EndFrame() error
	// Encode starts translating one command list into native work.
	Encode() (Encoder, error)
	WaitIdle() error
	Close() error
}

// Encoder receives the replayed commands of one submission in order.
type Encoder interface {
	BeginRenderPass(info RenderPassInfo) error
	EndRenderPass() error
	SetViewport(v Viewport) error
	SetScissor(s Scissor) error
	BindPipeline(h Handle) error
	BindVertexBuffer(slot uint32, h Handle, offset uint64) error
	BindIndexBuffer(h Handle, format IndexFormat, offset uint64) error
	// BindResourceSet binds h at the given set index. A zero handle unbinds.
	BindResourceSet(set uint32, h Handle) error
	UpdateBuffer(h Handle, offset uint64, data []byte) error
	Draw(topology PrimitiveTopology, vertexCount, instanceCount, firstVertex, firstInstance uint32) error
	DrawIndexed(topology PrimitiveTopology, indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error
	// Finish hands the encoded work to the GPU.
	Finish() error
	// Abort discards everything encoded so far.
	Abort()
}

// DeviceInfo describes the native device behind a Backend.
type DeviceInfo struct {
	Backend  string
	Renderer string
	Version  string
}

// ResourceWrite is one slot update of a resource set.
type ResourceWrite struct {
	Kind    BindingKind
	Buffer  Handle
	Texture Handle
	Sampler Handle
	Size    uint64
}

// RenderPassInfo is a render pass resolved to backend handles. Exactly one
// of Framebuffer and Swapchain is non-zero.
type RenderPassInfo struct {
	Framebuffer        Handle
	Swapchain          Handle
	ColorLoadOp        LoadOp
	DepthStencilLoadOp LoadOp
	ClearColor         Color
	ClearDepth         float32
	ClearStencil       uint8
	Width, Height      uint32
}

// SwapchainState is the backend view of a swapchain's current buffers.
type SwapchainState struct {
	Width, Height uint32
	Buffers       []Handle
	Depth         Handle
	Current       uint32
}

// Options configure device creation.
type Options struct {
	// Surface is needed by backends whose context is tied to a window (GL).
	Surface Surface
	// Debug enables native validation layers where available.
	Debug bool
	// FenceTimeout bounds every CPU wait on the GPU. Exceeding it is fatal.
	FenceTimeout time.Duration
}

// DefaultFenceTimeout is used when Options.FenceTimeout is zero.
const DefaultFenceTimeout = 5 * time.Second

// Factory creates a Backend.
type Factory func(opts Options) (Backend, error)

var (
	factoriesMu sync.Mutex
	factories   = map[string]Factory{}
)

// Register makes a backend available to Open under name.
// Registering the same name twice panics.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if f == nil {
		panic("gfx: Register with nil factory")
	}
	if _, dup := factories[name]; dup {
		panic("gfx: Register called twice for backend " + name)
	}
	factories[name] = f
	Logger().Debug("gfx: backend registered", "name", name)
}

// Backends returns the names of the registered backends, sorted.
func Backends() []string {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Open creates a GraphicsDevice using the backend registered under name.
func Open(name string, opts Options) (*GraphicsDevice, error) {
	factoriesMu.Lock()
	f, ok := factories[name]
	factoriesMu.Unlock()
	if !ok {
		return nil, configErr("open", fmt.Errorf("%w %q (registered: %v)", ErrUnknownBackend, name, Backends()))
	}
	if opts.FenceTimeout == 0 {
		opts.FenceTimeout = DefaultFenceTimeout
	}
	b, err := f(opts)
	if err != nil {
		return nil, asFatal("create "+name+" device", err)
	}
	return NewGraphicsDevice(b, opts)
}
