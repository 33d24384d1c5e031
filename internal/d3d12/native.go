package d3d12

import "time"

// Device is the native surface the backend drives: an ID3D12Device with its
// direct command queue, the DXGI factory that creates swap chains, and the
// HLSL compiler. Package dx implements it over COM on Windows; tests use an
// in-memory fake. Enum-typed values carry the D3D12/DXGI numeric constants
// so implementations can pass them through unchanged.
type Device interface {
	// AdapterName describes the GPU the device was created on.
	AdapterName() string

	CreateBuffer(heap HeapType, size uint64, initial ResourceState) (Resource, error)
	CreateTexture(desc TextureDesc, initial ResourceState, clear *ClearValue) (Resource, error)

	CreateDescriptorHeap(t DescriptorHeapType, n uint32, shaderVisible bool) (DescriptorHeap, error)
	DescriptorSize(t DescriptorHeapType) uint32
	CreateConstantBufferView(addr uint64, size uint32, dst CPUDescriptor)
	CreateShaderResourceView(r Resource, format Format, mips uint32, dst CPUDescriptor)
	CreateSampler(desc SamplerDesc, dst CPUDescriptor)
	CreateRenderTargetView(r Resource, format Format, dst CPUDescriptor)
	CreateDepthStencilView(r Resource, format Format, dst CPUDescriptor)
	CopyDescriptors(n uint32, dst, src CPUDescriptor, t DescriptorHeapType)

	CreateRootSignature(desc *RootSignatureDesc) (Object, error)
	CreatePipelineState(desc *PipelineStateDesc) (Object, error)
	CompileShader(src []byte, entry, target string) ([]byte, error)

	CreateCommandAllocator() (CommandAllocator, error)
	CreateCommandList(a CommandAllocator) (CommandList, error)
	CreateFence() (Fence, error)
	ExecuteCommandList(l CommandList)
	Signal(f Fence, value uint64) error

	CreateSwapChain(hwnd uintptr, desc SwapChainDesc) (SwapChain, error)

	// RemovedReason returns nil while the device is healthy.
	RemovedReason() error
	Release()
}

// Object is any COM object the backend owns a reference to.
type Object interface {
	Release()
}

type Resource interface {
	Object
	GPUAddress() uint64
	// Map returns the CPU view of an upload or readback resource.
	Map() ([]byte, error)
	Unmap()
}

type DescriptorHeap interface {
	Object
	CPUStart() CPUDescriptor
	GPUStart() GPUDescriptor
}

type CommandAllocator interface {
	Object
	Reset() error
}

type Fence interface {
	Object
	Completed() uint64
	// Wait blocks until the fence reaches value. It reports false when
	// timeout elapses first.
	Wait(value uint64, timeout time.Duration) (bool, error)
}

type SwapChain interface {
	Object
	Buffer(i uint32) (Resource, error)
	CurrentIndex() uint32
	Present(syncInterval uint32) error
	ResizeBuffers(n, width, height uint32, format Format) error
}

// CommandList is an ID3D12GraphicsCommandList.
type CommandList interface {
	Object
	Reset(a CommandAllocator) error
	Close() error

	ResourceBarrier(barriers []Barrier)
	CopyBufferRegion(dst Resource, dstOffset uint64, src Resource, srcOffset, size uint64)
	CopyBufferToTexture(dst Resource, subresource uint32, src Resource, fp Footprint)
	CopyTextureToBuffer(dst Resource, fp Footprint, src Resource, subresource uint32)

	SetDescriptorHeaps(heaps []DescriptorHeap)
	SetGraphicsRootSignature(rs Object)
	SetPipelineState(pso Object)
	SetGraphicsRootDescriptorTable(param uint32, base GPUDescriptor)

	IASetPrimitiveTopology(t PrimitiveTopology)
	IASetVertexBuffers(startSlot uint32, views []VertexBufferView)
	IASetIndexBuffer(view *IndexBufferView)
	RSSetViewport(v Viewport)
	RSSetScissorRect(r Rect)
	OMSetRenderTargets(rtvs []CPUDescriptor, dsv *CPUDescriptor)
	OMSetStencilRef(ref uint32)
	ClearRenderTargetView(rtv CPUDescriptor, color [4]float32)
	ClearDepthStencilView(dsv CPUDescriptor, flags ClearFlags, depth float32, stencil uint8)

	DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32)
	DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)
}

// CPUDescriptor and GPUDescriptor are D3D12_CPU/GPU_DESCRIPTOR_HANDLE.
type (
	CPUDescriptor uintptr
	GPUDescriptor uint64
)

// Offset returns the handle n descriptors past h.
func (h CPUDescriptor) Offset(n, increment uint32) CPUDescriptor {
	return h + CPUDescriptor(n*increment)
}

func (h GPUDescriptor) Offset(n, increment uint32) GPUDescriptor {
	return h + GPUDescriptor(n*increment)
}

// ── Enumerations ────────────────────────────────────────────────────────────

type HeapType uint32

const (
	HeapDefault  HeapType = 1
	HeapUpload   HeapType = 2
	HeapReadback HeapType = 3
)

type ResourceState uint32

const (
	StateCommon                  ResourceState = 0
	StatePresent                 ResourceState = 0
	StateVertexAndConstantBuffer ResourceState = 0x1
	StateIndexBuffer             ResourceState = 0x2
	StateRenderTarget            ResourceState = 0x4
	StateDepthWrite              ResourceState = 0x10
	StateNonPixelShaderResource  ResourceState = 0x40
	StatePixelShaderResource     ResourceState = 0x80
	StateCopyDest                ResourceState = 0x400
	StateCopySource              ResourceState = 0x800
	StateGenericRead             ResourceState = 0xAC3
	StateShaderResource                        = StateNonPixelShaderResource | StatePixelShaderResource
)

type DescriptorHeapType uint32

const (
	HeapTypeCBVSRVUAV DescriptorHeapType = 0
	HeapTypeSampler   DescriptorHeapType = 1
	HeapTypeRTV       DescriptorHeapType = 2
	HeapTypeDSV       DescriptorHeapType = 3
)

// Format is a DXGI_FORMAT.
type Format uint32

const (
	FormatUnknown        Format = 0
	FormatRGBA32Float    Format = 2
	FormatRGBA32Uint     Format = 3
	FormatRGBA32Sint     Format = 4
	FormatRGB32Float     Format = 6
	FormatRGB32Uint      Format = 7
	FormatRGB32Sint      Format = 8
	FormatRGBA16Float    Format = 10
	FormatRG32Float      Format = 16
	FormatRG32Uint       Format = 17
	FormatRG32Sint       Format = 18
	FormatRGBA8Unorm     Format = 28
	FormatRGBA8UnormSRGB Format = 29
	FormatRGBA8Uint      Format = 30
	FormatR32Typeless    Format = 39
	FormatD32Float       Format = 40
	FormatR32Float       Format = 41
	FormatR32Uint        Format = 42
	FormatR32Sint        Format = 43
	FormatR24G8Typeless  Format = 44
	FormatD24UnormS8Uint Format = 45
	FormatR24UnormX8     Format = 46
	FormatRG8Unorm       Format = 49
	FormatRG8Uint        Format = 50
	FormatR16Uint        Format = 57
	FormatR8Unorm        Format = 61
	FormatR8Uint         Format = 62
	FormatBGRA8Unorm     Format = 87
	FormatBGRA8UnormSRGB Format = 91
)

type ComparisonFunc uint32

const (
	ComparisonNever ComparisonFunc = iota + 1
	ComparisonLess
	ComparisonEqual
	ComparisonLessEqual
	ComparisonGreater
	ComparisonNotEqual
	ComparisonGreaterEqual
	ComparisonAlways
)

type StencilOp uint32

const (
	StencilOpKeep StencilOp = iota + 1
	StencilOpZero
	StencilOpReplace
	StencilOpIncrSat
	StencilOpDecrSat
	StencilOpInvert
	StencilOpIncr
	StencilOpDecr
)

type Blend uint32

const (
	BlendZero Blend = iota + 1
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDestAlpha
	BlendInvDestAlpha
	BlendDestColor
	BlendInvDestColor
)

type BlendOp uint32

const (
	BlendOpAdd BlendOp = iota + 1
	BlendOpSubtract
	BlendOpRevSubtract
	BlendOpMin
	BlendOpMax
)

type (
	FillMode uint32
	CullMode uint32
)

const (
	FillWireframe FillMode = 2
	FillSolid     FillMode = 3

	CullNone  CullMode = 1
	CullFront CullMode = 2
	CullBack  CullMode = 3
)

// Filter is a D3D12_FILTER bit pattern.
type Filter uint32

const (
	FilterMipLinear   Filter = 0x1
	FilterMagLinear   Filter = 0x4
	FilterMinLinear   Filter = 0x10
	FilterAnisotropic Filter = 0x55
	FilterComparison  Filter = 0x80
)

type AddressMode uint32

const (
	AddressWrap AddressMode = iota + 1
	AddressMirror
	AddressClamp
	AddressBorder
)

type TopologyType uint32

const (
	TopologyTypePoint    TopologyType = 1
	TopologyTypeLine     TopologyType = 2
	TopologyTypeTriangle TopologyType = 3
)

type PrimitiveTopology uint32

const (
	PrimitivePointList     PrimitiveTopology = 1
	PrimitiveLineList      PrimitiveTopology = 2
	PrimitiveLineStrip     PrimitiveTopology = 3
	PrimitiveTriangleList  PrimitiveTopology = 4
	PrimitiveTriangleStrip PrimitiveTopology = 5
)

type RangeType uint32

const (
	RangeSRV     RangeType = 0
	RangeCBV     RangeType = 2
	RangeSampler RangeType = 3
)

type ClearFlags uint32

const (
	ClearDepth   ClearFlags = 0x1
	ClearStencil ClearFlags = 0x2
)

// ── Descriptions ────────────────────────────────────────────────────────────

type TextureDesc struct {
	Width, Height uint32
	MipLevels     uint32
	Format        Format
	RenderTarget  bool
	DepthStencil  bool
}

type ClearValue struct {
	Format  Format
	Color   [4]float32
	Depth   float32
	Stencil uint8
}

// Footprint is a D3D12_PLACED_SUBRESOURCE_FOOTPRINT.
type Footprint struct {
	Offset        uint64
	Format        Format
	Width, Height uint32
	RowPitch      uint32
}

type SamplerDesc struct {
	Filter                       Filter
	AddressU, AddressV, AddressW AddressMode
	MaxAnisotropy                uint32
	Compare                      ComparisonFunc
	BorderColor                  [4]float32
	MinLOD, MaxLOD               float32
}

type DescriptorRange struct {
	Type     RangeType
	Count    uint32
	Register uint32
	Space    uint32
	// Offset is the range's first descriptor within its table.
	Offset uint32
}

// RootParameter is a descriptor table visible to all stages.
type RootParameter struct {
	Ranges []DescriptorRange
}

type RootSignatureDesc struct {
	Parameters []RootParameter
}

type InputElement struct {
	SemanticName  string
	SemanticIndex uint32
	Format        Format
	Slot          uint32
	Offset        uint32
	PerInstance   bool
}

type RasterizerDesc struct {
	Fill                  FillMode
	Cull                  CullMode
	FrontCounterClockwise bool
	DepthClip             bool
}

type RenderTargetBlend struct {
	Enable             bool
	Src, Dst           Blend
	Op                 BlendOp
	SrcAlpha, DstAlpha Blend
	OpAlpha            BlendOp
	WriteMask          uint8
}

type StencilFace struct {
	Fail, DepthFail, Pass StencilOp
	Func                  ComparisonFunc
}

type DepthStencilDesc struct {
	DepthEnable      bool
	DepthWrite       bool
	DepthFunc        ComparisonFunc
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	Front, Back      StencilFace
}

type PipelineStateDesc struct {
	RootSignature Object
	VS, PS        []byte
	InputLayout   []InputElement
	Rasterizer    RasterizerDesc
	Blend         []RenderTargetBlend
	DepthStencil  DepthStencilDesc
	Topology      TopologyType
	RTVFormats    []Format
	DSVFormat     Format
}

type SwapChainDesc struct {
	Width, Height uint32
	Buffers       uint32
	Format        Format
}

// Barrier is a transition barrier over all subresources.
type Barrier struct {
	Resource      Resource
	Before, After ResourceState
}

type VertexBufferView struct {
	Address uint64
	Size    uint32
	Stride  uint32
}

type IndexBufferView struct {
	Address uint64
	Size    uint32
	Format  Format
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type Rect struct {
	Left, Top, Right, Bottom int32
}
