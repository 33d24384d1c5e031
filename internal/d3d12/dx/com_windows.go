//go:build windows

package dx

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	d3d12DLL    = windows.NewLazySystemDLL("d3d12.dll")
	dxgiDLL     = windows.NewLazySystemDLL("dxgi.dll")
	compilerDLL = windows.NewLazySystemDLL("d3dcompiler_47.dll")

	procD3D12CreateDevice           = d3d12DLL.NewProc("D3D12CreateDevice")
	procD3D12GetDebugInterface      = d3d12DLL.NewProc("D3D12GetDebugInterface")
	procD3D12SerializeRootSignature = d3d12DLL.NewProc("D3D12SerializeRootSignature")
	procCreateDXGIFactory2          = dxgiDLL.NewProc("CreateDXGIFactory2")
	procD3DCompile                  = compilerDLL.NewProc("D3DCompile")
)

var (
	iidID3D12Device              = windows.GUID{Data1: 0x189819f1, Data2: 0x1db6, Data3: 0x4b57, Data4: [8]byte{0xbe, 0x54, 0x18, 0x21, 0x33, 0x9b, 0x85, 0xf7}}
	iidID3D12CommandQueue        = windows.GUID{Data1: 0x0ec870a6, Data2: 0x5d7e, Data3: 0x4c22, Data4: [8]byte{0x8c, 0xfc, 0x5b, 0xaa, 0xe0, 0x76, 0x16, 0xed}}
	iidID3D12CommandAllocator    = windows.GUID{Data1: 0x6102dee4, Data2: 0xaf59, Data3: 0x4b09, Data4: [8]byte{0xb9, 0x99, 0xb4, 0x4d, 0x73, 0xf0, 0x9b, 0x24}}
	iidID3D12GraphicsCommandList = windows.GUID{Data1: 0x5b160d0f, Data2: 0xac1b, Data3: 0x4185, Data4: [8]byte{0x8b, 0xa8, 0xb3, 0xae, 0x42, 0xa5, 0xa4, 0x55}}
	iidID3D12DescriptorHeap      = windows.GUID{Data1: 0x8efb471d, Data2: 0x616c, Data3: 0x4f49, Data4: [8]byte{0x90, 0xf7, 0x12, 0x7b, 0xb7, 0x63, 0xfa, 0x51}}
	iidID3D12Resource            = windows.GUID{Data1: 0x696442be, Data2: 0xa72e, Data3: 0x4059, Data4: [8]byte{0xbc, 0x79, 0x5b, 0x5c, 0x98, 0x04, 0x0f, 0xad}}
	iidID3D12Fence               = windows.GUID{Data1: 0x0a753dcf, Data2: 0xc4d8, Data3: 0x4b91, Data4: [8]byte{0xad, 0xf6, 0xbe, 0x5a, 0x60, 0xd9, 0x5a, 0x76}}
	iidID3D12RootSignature       = windows.GUID{Data1: 0xc54a6b66, Data2: 0x72df, Data3: 0x4ee8, Data4: [8]byte{0x8b, 0xe5, 0xa9, 0x46, 0xa1, 0x42, 0x92, 0x14}}
	iidID3D12PipelineState       = windows.GUID{Data1: 0x765a30f3, Data2: 0xf624, Data3: 0x4c6f, Data4: [8]byte{0xa8, 0x28, 0xac, 0xe9, 0x48, 0x62, 0x24, 0x45}}
	iidID3D12Debug               = windows.GUID{Data1: 0x344488b7, Data2: 0x6846, Data3: 0x474b, Data4: [8]byte{0xb9, 0x89, 0xf0, 0x27, 0x44, 0x82, 0x45, 0xe0}}
	iidIDXGIFactory4             = windows.GUID{Data1: 0x1bc6ea02, Data2: 0xef36, Data3: 0x464f, Data4: [8]byte{0xbf, 0x0c, 0x21, 0xca, 0x39, 0xe5, 0x16, 0x8a}}
	iidIDXGISwapChain3           = windows.GUID{Data1: 0x94d99bdb, Data2: 0xf1f8, Data3: 0x4ab0, Data4: [8]byte{0xb2, 0x36, 0x7d, 0xa0, 0x17, 0x0e, 0xda, 0xb1}}
)

// ── Vtable slots ────────────────────────────────────────────────────────────

// IUnknown
const (
	methodQueryInterface = 0
	methodRelease        = 2
)

// ID3D12Device
const (
	deviceCreateCommandQueue          = 8
	deviceCreateCommandAllocator      = 9
	deviceCreateGraphicsPipelineState = 10
	deviceCreateCommandList           = 12
	deviceCreateDescriptorHeap        = 14
	deviceGetDescriptorIncrementSize  = 15
	deviceCreateRootSignature         = 16
	deviceCreateConstantBufferView    = 17
	deviceCreateShaderResourceView    = 18
	deviceCreateRenderTargetView      = 20
	deviceCreateDepthStencilView      = 21
	deviceCreateSampler               = 22
	deviceCopyDescriptorsSimple       = 24
	deviceCreateCommittedResource     = 27
	deviceCreateFence                 = 36
	deviceGetDeviceRemovedReason      = 37
)

// ID3D12CommandQueue
const (
	queueExecuteCommandLists = 10
	queueSignal              = 14
)

// ID3D12Resource
const (
	resourceMap                  = 8
	resourceUnmap                = 9
	resourceGetGPUVirtualAddress = 11
)

// ID3D12DescriptorHeap
const (
	heapGetCPUDescriptorHandleForHeapStart = 9
	heapGetGPUDescriptorHandleForHeapStart = 10
)

const allocatorReset = 8

// ID3D12Fence
const (
	fenceGetCompletedValue    = 8
	fenceSetEventOnCompletion = 9
)

// ID3D12GraphicsCommandList
const (
	listClose                          = 9
	listReset                          = 10
	listDrawInstanced                  = 12
	listDrawIndexedInstanced           = 13
	listCopyBufferRegion               = 15
	listCopyTextureRegion              = 16
	listIASetPrimitiveTopology         = 20
	listRSSetViewports                 = 21
	listRSSetScissorRects              = 22
	listOMSetStencilRef                = 24
	listSetPipelineState               = 25
	listResourceBarrier                = 26
	listSetDescriptorHeaps             = 28
	listSetGraphicsRootSignature       = 30
	listSetGraphicsRootDescriptorTable = 32
	listIASetIndexBuffer               = 43
	listIASetVertexBuffers             = 44
	listOMSetRenderTargets             = 46
	listClearDepthStencilView          = 47
	listClearRenderTargetView          = 48
)

const debugEnableDebugLayer = 3

// ID3DBlob
const (
	blobGetBufferPointer = 3
	blobGetBufferSize    = 4
)

// IDXGIFactory4
const (
	factoryMakeWindowAssociation  = 8
	factoryEnumAdapters1          = 12
	factoryCreateSwapChainForHwnd = 15
)

const adapterGetDesc1 = 10

// IDXGISwapChain3
const (
	swapChainPresent                   = 8
	swapChainGetBuffer                 = 9
	swapChainResizeBuffers             = 13
	swapChainGetCurrentBackBufferIndex = 36
)

// ── COM objects ─────────────────────────────────────────────────────────────

// iunknown is the layout every COM interface pointer refers to: a pointer
// to its method table. The array bound only has to cover the slots called.
type iunknown struct {
	vtbl *[64]uintptr
}

// call invokes vtable slot method with the object as its first argument.
//
//go:uintptrescapes
func (u *iunknown) call(method int, args ...uintptr) uintptr {
	r, _, _ := syscall.SyscallN(u.vtbl[method], append([]uintptr{uintptr(unsafe.Pointer(u))}, args...)...)
	return r
}

// check calls a method returning an HRESULT.
//
//go:uintptrescapes
func (u *iunknown) check(op string, method int, args ...uintptr) error {
	if hr := hresult(u.call(method, args...)); hr.failed() {
		return fmt.Errorf("%s: %w", op, hr)
	}
	return nil
}

func (u *iunknown) Release() { u.call(methodRelease) }

func (u *iunknown) com() *iunknown { return u }

// comObject is implemented by every wrapper this package hands out.
type comObject interface {
	com() *iunknown
}

// ptr returns the interface pointer behind a wrapper, 0 for nil.
func ptr(o any) uintptr {
	if o == nil {
		return 0
	}
	c, ok := o.(comObject)
	if !ok {
		panic(fmt.Sprintf("dx: %T is not a COM object", o))
	}
	return uintptr(unsafe.Pointer(c.com()))
}

// out is the address of an interface out-parameter.
func out(p **iunknown) uintptr { return uintptr(unsafe.Pointer(p)) }

func guid(g *windows.GUID) uintptr { return uintptr(unsafe.Pointer(g)) }

// blobBytes copies an ID3DBlob's contents and releases it.
func blobBytes(b *iunknown) []byte {
	if b == nil {
		return nil
	}
	defer b.Release()
	p := b.call(blobGetBufferPointer)
	n := b.call(blobGetBufferSize)
	if p == 0 || n == 0 {
		return nil
	}
	return append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(p)), n)...)
}

// ── HRESULT ─────────────────────────────────────────────────────────────────

type hresult uint32

const (
	dxgiErrorNotFound       hresult = 0x887A0002
	dxgiErrorDeviceRemoved  hresult = 0x887A0005
	dxgiErrorDeviceHung     hresult = 0x887A0006
	dxgiErrorDeviceReset    hresult = 0x887A0007
	dxgiErrorDriverInternal hresult = 0x887A0020
	dxgiErrorInvalidCall    hresult = 0x887A0001
	eOutOfMemory            hresult = 0x8007000E
	eInvalidArg             hresult = 0x80070057
	eFail                   hresult = 0x80004005
)

var hresultNames = map[hresult]string{
	dxgiErrorNotFound:       "DXGI_ERROR_NOT_FOUND",
	dxgiErrorDeviceRemoved:  "DXGI_ERROR_DEVICE_REMOVED",
	dxgiErrorDeviceHung:     "DXGI_ERROR_DEVICE_HUNG",
	dxgiErrorDeviceReset:    "DXGI_ERROR_DEVICE_RESET",
	dxgiErrorDriverInternal: "DXGI_ERROR_DRIVER_INTERNAL_ERROR",
	dxgiErrorInvalidCall:    "DXGI_ERROR_INVALID_CALL",
	eOutOfMemory:            "E_OUTOFMEMORY",
	eInvalidArg:             "E_INVALIDARG",
	eFail:                   "E_FAIL",
}

func (h hresult) failed() bool { return int32(h) < 0 }

func (h hresult) Error() string {
	if name, ok := hresultNames[h]; ok {
		return fmt.Sprintf("%s (0x%08X)", name, uint32(h))
	}
	return fmt.Sprintf("HRESULT 0x%08X", uint32(h))
}

// callProc calls an exported DLL function returning an HRESULT.
//
//go:uintptrescapes
func callProc(p *windows.LazyProc, args ...uintptr) error {
	if err := p.Find(); err != nil {
		return err
	}
	r, _, _ := p.Call(args...)
	if hr := hresult(r); hr.failed() {
		return fmt.Errorf("%s: %w", p.Name, hr)
	}
	return nil
}

// ── Native structures ───────────────────────────────────────────────────────

const (
	featureLevel11_0 = 0xb000

	dxgiCreateFactoryDebug    = 0x1
	dxgiAdapterFlagSoftware   = 0x2
	dxgiMWANoAltEnter         = 0x2
	dxgiUsageRenderTarget     = 0x20
	dxgiSwapEffectFlipDiscard = 4

	resourceDimensionBuffer    = 1
	resourceDimensionTexture2D = 3
	textureLayoutRowMajor      = 1
	resourceFlagRenderTarget   = 0x1
	resourceFlagDepthStencil   = 0x2

	heapFlagShaderVisible = 0x1

	srvDimensionTexture2D   = 4
	rtvDimensionTexture2D   = 4
	dsvDimensionTexture2D   = 3
	defaultComponentMapping = 0x1688

	rootSignatureVersion1      = 0x1
	rootSignatureAllowIALayout = 0x1

	inputPerVertex   = 0
	inputPerInstance = 1
	depthWriteAll    = 1
	logicOpNoop      = 4

	barrierTransition = 0
	allSubresources   = 0xffffffff

	copySubresourceIndex = 0
	copyPlacedFootprint  = 1

	compileDebug            = 1 << 0
	compileSkipOptimization = 1 << 2
	compileStrictness       = 1 << 11
	compileOptimization3    = 1 << 15
)

type adapterDesc1 struct {
	Description           [128]uint16
	VendorID              uint32
	DeviceID              uint32
	SubSysID              uint32
	Revision              uint32
	DedicatedVideoMemory  uintptr
	DedicatedSystemMemory uintptr
	SharedSystemMemory    uintptr
	AdapterLuid           windows.LUID
	Flags                 uint32
}

type commandQueueDesc struct {
	Type     int32
	Priority int32
	Flags    uint32
	NodeMask uint32
}

type heapProperties struct {
	Type                 uint32
	CPUPageProperty      uint32
	MemoryPoolPreference uint32
	CreationNodeMask     uint32
	VisibleNodeMask      uint32
}

type sampleDesc struct {
	Count   uint32
	Quality uint32
}

type resourceDesc struct {
	Dimension        uint32
	Alignment        uint64
	Width            uint64
	Height           uint32
	DepthOrArraySize uint16
	MipLevels        uint16
	Format           uint32
	SampleDesc       sampleDesc
	Layout           uint32
	Flags            uint32
}

// clearValue holds either a color or, for depth formats, the depth in
// Value[0] followed by the stencil byte.
type clearValue struct {
	Format uint32
	Value  [4]float32
}

type descriptorHeapDesc struct {
	Type           uint32
	NumDescriptors uint32
	Flags          uint32
	NodeMask       uint32
}

type constantBufferViewDesc struct {
	BufferLocation uint64
	SizeInBytes    uint32
	_              uint32
}

type shaderResourceViewDesc struct {
	Format                  uint32
	ViewDimension           uint32
	Shader4ComponentMapping uint32
	_                       uint32
	MostDetailedMip         uint32
	MipLevels               uint32
	PlaneSlice              uint32
	ResourceMinLODClamp     float32
	_                       [8]byte
}

type renderTargetViewDesc struct {
	Format        uint32
	ViewDimension uint32
	MipSlice      uint32
	PlaneSlice    uint32
	_             [8]byte
}

type depthStencilViewDesc struct {
	Format        uint32
	ViewDimension uint32
	Flags         uint32
	MipSlice      uint32
	_             [8]byte
}

type samplerDesc struct {
	Filter         uint32
	AddressU       uint32
	AddressV       uint32
	AddressW       uint32
	MipLODBias     float32
	MaxAnisotropy  uint32
	ComparisonFunc uint32
	BorderColor    [4]float32
	MinLOD         float32
	MaxLOD         float32
}

type descriptorRange struct {
	RangeType                         uint32
	NumDescriptors                    uint32
	BaseShaderRegister                uint32
	RegisterSpace                     uint32
	OffsetInDescriptorsFromTableStart uint32
}

// rootParameter is a D3D12_ROOT_PARAMETER holding a descriptor table.
type rootParameter struct {
	ParameterType       uint32
	_                   uint32
	NumDescriptorRanges uint32
	DescriptorRanges    *descriptorRange
	ShaderVisibility    uint32
}

type rootSignatureDesc struct {
	NumParameters     uint32
	Parameters        *rootParameter
	NumStaticSamplers uint32
	StaticSamplers    uintptr
	Flags             uint32
}

type shaderBytecode struct {
	Code *byte
	Size uintptr
}

type streamOutputDesc struct {
	Declarations     uintptr
	NumEntries       uint32
	BufferStrides    uintptr
	NumStrides       uint32
	RasterizedStream uint32
}

type renderTargetBlendDesc struct {
	BlendEnable           int32
	LogicOpEnable         int32
	SrcBlend              uint32
	DestBlend             uint32
	BlendOp               uint32
	SrcBlendAlpha         uint32
	DestBlendAlpha        uint32
	BlendOpAlpha          uint32
	LogicOp               uint32
	RenderTargetWriteMask uint8
}

type blendDesc struct {
	AlphaToCoverageEnable  int32
	IndependentBlendEnable int32
	RenderTarget           [8]renderTargetBlendDesc
}

type rasterizerDesc struct {
	FillMode              uint32
	CullMode              uint32
	FrontCounterClockwise int32
	DepthBias             int32
	DepthBiasClamp        float32
	SlopeScaledDepthBias  float32
	DepthClipEnable       int32
	MultisampleEnable     int32
	AntialiasedLineEnable int32
	ForcedSampleCount     uint32
	ConservativeRaster    uint32
}

type depthStencilOpDesc struct {
	StencilFailOp      uint32
	StencilDepthFailOp uint32
	StencilPassOp      uint32
	StencilFunc        uint32
}

type depthStencilDesc struct {
	DepthEnable      int32
	DepthWriteMask   uint32
	DepthFunc        uint32
	StencilEnable    int32
	StencilReadMask  uint8
	StencilWriteMask uint8
	FrontFace        depthStencilOpDesc
	BackFace         depthStencilOpDesc
}

type inputElementDesc struct {
	SemanticName         *byte
	SemanticIndex        uint32
	Format               uint32
	InputSlot            uint32
	AlignedByteOffset    uint32
	InputSlotClass       uint32
	InstanceDataStepRate uint32
}

type inputLayoutDesc struct {
	InputElementDescs *inputElementDesc
	NumElements       uint32
}

type cachedPipelineState struct {
	CachedBlob            uintptr
	CachedBlobSizeInBytes uintptr
}

type graphicsPipelineStateDesc struct {
	RootSignature         uintptr
	VS                    shaderBytecode
	PS                    shaderBytecode
	DS                    shaderBytecode
	HS                    shaderBytecode
	GS                    shaderBytecode
	StreamOutput          streamOutputDesc
	BlendState            blendDesc
	SampleMask            uint32
	RasterizerState       rasterizerDesc
	DepthStencilState     depthStencilDesc
	InputLayout           inputLayoutDesc
	IBStripCutValue       uint32
	PrimitiveTopologyType uint32
	NumRenderTargets      uint32
	RTVFormats            [8]uint32
	DSVFormat             uint32
	SampleDesc            sampleDesc
	NodeMask              uint32
	CachedPSO             cachedPipelineState
	Flags                 uint32
}

type resourceBarrier struct {
	Type        uint32
	Flags       uint32
	Resource    uintptr
	Subresource uint32
	StateBefore uint32
	StateAfter  uint32
	_           uint32
}

// textureCopyLocation is a D3D12_TEXTURE_COPY_LOCATION. For a subresource
// index location the index sits in the low half of Offset.
type textureCopyLocation struct {
	Resource uintptr
	Type     uint32
	_        uint32
	Offset   uint64
	Format   uint32
	Width    uint32
	Height   uint32
	Depth    uint32
	RowPitch uint32
	_        uint32
}

type swapChainDesc1 struct {
	Width       uint32
	Height      uint32
	Format      uint32
	Stereo      int32
	SampleDesc  sampleDesc
	BufferUsage uint32
	BufferCount uint32
	Scaling     uint32
	SwapEffect  uint32
	AlphaMode   uint32
	Flags       uint32
}

func boolean(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
