//go:build windows

package dx

import (
	"errors"
	"fmt"
	"math"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"render-hal/gfx"
	"render-hal/internal/d3d12"
)

// Device owns an ID3D12Device, its direct queue and the DXGI factory.
type Device struct {
	factory *iunknown
	device  *iunknown
	queue   *iunknown
	adapter string
	debug   bool
}

var _ d3d12.Device = (*Device)(nil)

// Open creates a device on the first hardware adapter that supports
// feature level 11_0. debug enables the D3D12 debug layer.
func Open(debug bool) (d3d12.Device, error) {
	if err := d3d12DLL.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", gfx.ErrUnsupported, err)
	}
	if err := dxgiDLL.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", gfx.ErrUnsupported, err)
	}

	var factoryFlags uintptr
	if debug {
		var dbg *iunknown
		if err := callProc(procD3D12GetDebugInterface, guid(&iidID3D12Debug), out(&dbg)); err == nil {
			dbg.call(debugEnableDebugLayer)
			dbg.Release()
			factoryFlags = dxgiCreateFactoryDebug
		}
	}

	d := &Device{debug: debug}
	if err := callProc(procCreateDXGIFactory2, factoryFlags, guid(&iidIDXGIFactory4), out(&d.factory)); err != nil {
		return nil, err
	}
	if err := d.createDevice(); err != nil {
		d.Release()
		return nil, err
	}

	qd := commandQueueDesc{}
	if err := d.device.check("CreateCommandQueue", deviceCreateCommandQueue,
		uintptr(unsafe.Pointer(&qd)), guid(&iidID3D12CommandQueue), out(&d.queue)); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func (d *Device) createDevice() error {
	for i := uintptr(0); ; i++ {
		var adapter *iunknown
		if err := d.factory.check("EnumAdapters1", factoryEnumAdapters1, i, out(&adapter)); err != nil {
			if errors.Is(err, dxgiErrorNotFound) {
				return fmt.Errorf("%w: no hardware adapter supports Direct3D 12", gfx.ErrUnsupported)
			}
			return err
		}
		var desc adapterDesc1
		adapter.call(adapterGetDesc1, uintptr(unsafe.Pointer(&desc)))
		if desc.Flags&dxgiAdapterFlagSoftware != 0 {
			adapter.Release()
			continue
		}
		err := callProc(procD3D12CreateDevice, uintptr(unsafe.Pointer(adapter)), featureLevel11_0,
			guid(&iidID3D12Device), out(&d.device))
		adapter.Release()
		if err == nil {
			d.adapter = windows.UTF16ToString(desc.Description[:])
			return nil
		}
	}
}

func (d *Device) AdapterName() string { return d.adapter }

func (d *Device) Release() {
	for _, o := range []*iunknown{d.queue, d.device, d.factory} {
		if o != nil {
			o.Release()
		}
	}
	d.queue, d.device, d.factory = nil, nil, nil
}

func (d *Device) RemovedReason() error {
	if hr := hresult(d.device.call(deviceGetDeviceRemovedReason)); hr.failed() {
		return hr
	}
	return nil
}

// ── Resources ───────────────────────────────────────────────────────────────

type resource struct {
	*iunknown
	size uint64
}

func (r *resource) GPUAddress() uint64 {
	return uint64(r.call(resourceGetGPUVirtualAddress))
}

func (r *resource) Map() ([]byte, error) {
	var p unsafe.Pointer
	if err := r.check("Map", resourceMap, 0, 0, uintptr(unsafe.Pointer(&p))); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(p), r.size), nil
}

func (r *resource) Unmap() { r.call(resourceUnmap, 0, 0) }

func (d *Device) CreateBuffer(heap d3d12.HeapType, size uint64, initial d3d12.ResourceState) (d3d12.Resource, error) {
	props := heapProperties{Type: uint32(heap)}
	desc := resourceDesc{
		Dimension:        resourceDimensionBuffer,
		Width:            size,
		Height:           1,
		DepthOrArraySize: 1,
		MipLevels:        1,
		SampleDesc:       sampleDesc{Count: 1},
		Layout:           textureLayoutRowMajor,
	}
	r := &resource{size: size}
	err := d.device.check("CreateCommittedResource", deviceCreateCommittedResource,
		uintptr(unsafe.Pointer(&props)), 0, uintptr(unsafe.Pointer(&desc)), uintptr(initial), 0,
		guid(&iidID3D12Resource), out(&r.iunknown))
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (d *Device) CreateTexture(td d3d12.TextureDesc, initial d3d12.ResourceState, clear *d3d12.ClearValue) (d3d12.Resource, error) {
	props := heapProperties{Type: uint32(d3d12.HeapDefault)}
	desc := resourceDesc{
		Dimension:        resourceDimensionTexture2D,
		Width:            uint64(td.Width),
		Height:           td.Height,
		DepthOrArraySize: 1,
		MipLevels:        uint16(td.MipLevels),
		Format:           uint32(td.Format),
		SampleDesc:       sampleDesc{Count: 1},
	}
	if td.RenderTarget {
		desc.Flags |= resourceFlagRenderTarget
	}
	if td.DepthStencil {
		desc.Flags |= resourceFlagDepthStencil
	}
	var cv *clearValue
	if clear != nil {
		cv = &clearValue{Format: uint32(clear.Format), Value: clear.Color}
		if td.DepthStencil {
			cv.Value = [4]float32{clear.Depth, math.Float32frombits(uint32(clear.Stencil))}
		}
	}
	r := &resource{}
	err := d.device.check("CreateCommittedResource", deviceCreateCommittedResource,
		uintptr(unsafe.Pointer(&props)), 0, uintptr(unsafe.Pointer(&desc)), uintptr(initial),
		uintptr(unsafe.Pointer(cv)), guid(&iidID3D12Resource), out(&r.iunknown))
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ── Descriptors ─────────────────────────────────────────────────────────────

type descriptorHeap struct {
	*iunknown
	cpu d3d12.CPUDescriptor
	gpu d3d12.GPUDescriptor
}

func (h *descriptorHeap) CPUStart() d3d12.CPUDescriptor { return h.cpu }
func (h *descriptorHeap) GPUStart() d3d12.GPUDescriptor { return h.gpu }

func (d *Device) CreateDescriptorHeap(t d3d12.DescriptorHeapType, n uint32, shaderVisible bool) (d3d12.DescriptorHeap, error) {
	desc := descriptorHeapDesc{Type: uint32(t), NumDescriptors: n}
	if shaderVisible {
		desc.Flags = heapFlagShaderVisible
	}
	h := &descriptorHeap{}
	if err := d.device.check("CreateDescriptorHeap", deviceCreateDescriptorHeap,
		uintptr(unsafe.Pointer(&desc)), guid(&iidID3D12DescriptorHeap), out(&h.iunknown)); err != nil {
		return nil, err
	}
	// Both getters return their handle through a hidden pointer.
	h.call(heapGetCPUDescriptorHandleForHeapStart, uintptr(unsafe.Pointer(&h.cpu)))
	if shaderVisible {
		h.call(heapGetGPUDescriptorHandleForHeapStart, uintptr(unsafe.Pointer(&h.gpu)))
	}
	return h, nil
}

func (d *Device) DescriptorSize(t d3d12.DescriptorHeapType) uint32 {
	return uint32(d.device.call(deviceGetDescriptorIncrementSize, uintptr(t)))
}

func (d *Device) CreateConstantBufferView(addr uint64, size uint32, dst d3d12.CPUDescriptor) {
	desc := constantBufferViewDesc{BufferLocation: addr, SizeInBytes: size}
	d.device.call(deviceCreateConstantBufferView, uintptr(unsafe.Pointer(&desc)), uintptr(dst))
}

func (d *Device) CreateShaderResourceView(r d3d12.Resource, format d3d12.Format, mips uint32, dst d3d12.CPUDescriptor) {
	desc := shaderResourceViewDesc{
		Format:                  uint32(format),
		ViewDimension:           srvDimensionTexture2D,
		Shader4ComponentMapping: defaultComponentMapping,
		MipLevels:               mips,
	}
	d.device.call(deviceCreateShaderResourceView, ptr(r), uintptr(unsafe.Pointer(&desc)), uintptr(dst))
}

func (d *Device) CreateSampler(sd d3d12.SamplerDesc, dst d3d12.CPUDescriptor) {
	desc := samplerDesc{
		Filter:         uint32(sd.Filter),
		AddressU:       uint32(sd.AddressU),
		AddressV:       uint32(sd.AddressV),
		AddressW:       uint32(sd.AddressW),
		MaxAnisotropy:  sd.MaxAnisotropy,
		ComparisonFunc: uint32(sd.Compare),
		BorderColor:    sd.BorderColor,
		MinLOD:         sd.MinLOD,
		MaxLOD:         sd.MaxLOD,
	}
	d.device.call(deviceCreateSampler, uintptr(unsafe.Pointer(&desc)), uintptr(dst))
}

func (d *Device) CreateRenderTargetView(r d3d12.Resource, format d3d12.Format, dst d3d12.CPUDescriptor) {
	desc := renderTargetViewDesc{Format: uint32(format), ViewDimension: rtvDimensionTexture2D}
	d.device.call(deviceCreateRenderTargetView, ptr(r), uintptr(unsafe.Pointer(&desc)), uintptr(dst))
}

func (d *Device) CreateDepthStencilView(r d3d12.Resource, format d3d12.Format, dst d3d12.CPUDescriptor) {
	desc := depthStencilViewDesc{Format: uint32(format), ViewDimension: dsvDimensionTexture2D}
	d.device.call(deviceCreateDepthStencilView, ptr(r), uintptr(unsafe.Pointer(&desc)), uintptr(dst))
}

func (d *Device) CopyDescriptors(n uint32, dst, src d3d12.CPUDescriptor, t d3d12.DescriptorHeapType) {
	d.device.call(deviceCopyDescriptorsSimple, uintptr(n), uintptr(dst), uintptr(src), uintptr(t))
}

// ── Root signatures and pipeline states ─────────────────────────────────────

func (d *Device) CreateRootSignature(rs *d3d12.RootSignatureDesc) (d3d12.Object, error) {
	params := make([]rootParameter, len(rs.Parameters))
	for i, p := range rs.Parameters {
		ranges := make([]descriptorRange, len(p.Ranges))
		for j, r := range p.Ranges {
			ranges[j] = descriptorRange{
				RangeType:                         uint32(r.Type),
				NumDescriptors:                    r.Count,
				BaseShaderRegister:                r.Register,
				RegisterSpace:                     r.Space,
				OffsetInDescriptorsFromTableStart: r.Offset,
			}
		}
		params[i].NumDescriptorRanges = uint32(len(ranges))
		if len(ranges) > 0 {
			params[i].DescriptorRanges = &ranges[0]
		}
	}
	desc := rootSignatureDesc{NumParameters: uint32(len(params)), Flags: rootSignatureAllowIALayout}
	if len(params) > 0 {
		desc.Parameters = &params[0]
	}

	var blob, errBlob *iunknown
	if err := callProc(procD3D12SerializeRootSignature, uintptr(unsafe.Pointer(&desc)), rootSignatureVersion1,
		out(&blob), out(&errBlob)); err != nil {
		if msg := blobBytes(errBlob); len(msg) > 0 {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	blobBytes(errBlob)
	data := blobBytes(blob)

	var sig *iunknown
	if err := d.device.check("CreateRootSignature", deviceCreateRootSignature, 0,
		uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)), guid(&iidID3D12RootSignature), out(&sig)); err != nil {
		return nil, err
	}
	return sig, nil
}

func bytecode(b []byte) shaderBytecode {
	if len(b) == 0 {
		return shaderBytecode{}
	}
	return shaderBytecode{Code: &b[0], Size: uintptr(len(b))}
}

func (d *Device) CreatePipelineState(ps *d3d12.PipelineStateDesc) (d3d12.Object, error) {
	desc := graphicsPipelineStateDesc{
		RootSignature: ptr(ps.RootSignature),
		VS:            bytecode(ps.VS),
		PS:            bytecode(ps.PS),
		SampleMask:    math.MaxUint32,
		RasterizerState: rasterizerDesc{
			FillMode:              uint32(ps.Rasterizer.Fill),
			CullMode:              uint32(ps.Rasterizer.Cull),
			FrontCounterClockwise: boolean(ps.Rasterizer.FrontCounterClockwise),
			DepthClipEnable:       boolean(ps.Rasterizer.DepthClip),
		},
		DepthStencilState: depthStencilDesc{
			DepthEnable:      boolean(ps.DepthStencil.DepthEnable),
			DepthFunc:        uint32(ps.DepthStencil.DepthFunc),
			StencilEnable:    boolean(ps.DepthStencil.StencilEnable),
			StencilReadMask:  ps.DepthStencil.StencilReadMask,
			StencilWriteMask: ps.DepthStencil.StencilWriteMask,
			FrontFace:        stencilFace(ps.DepthStencil.Front),
			BackFace:         stencilFace(ps.DepthStencil.Back),
		},
		PrimitiveTopologyType: uint32(ps.Topology),
		NumRenderTargets:      uint32(len(ps.RTVFormats)),
		DSVFormat:             uint32(ps.DSVFormat),
		SampleDesc:            sampleDesc{Count: 1},
	}
	if ps.DepthStencil.DepthWrite {
		desc.DepthStencilState.DepthWriteMask = depthWriteAll
	}
	for i, f := range ps.RTVFormats {
		desc.RTVFormats[i] = uint32(f)
	}
	desc.BlendState.IndependentBlendEnable = boolean(len(ps.Blend) > 1)
	for i, b := range ps.Blend {
		desc.BlendState.RenderTarget[i] = renderTargetBlendDesc{
			BlendEnable:           boolean(b.Enable),
			SrcBlend:              uint32(b.Src),
			DestBlend:             uint32(b.Dst),
			BlendOp:               uint32(b.Op),
			SrcBlendAlpha:         uint32(b.SrcAlpha),
			DestBlendAlpha:        uint32(b.DstAlpha),
			BlendOpAlpha:          uint32(b.OpAlpha),
			LogicOp:               logicOpNoop,
			RenderTargetWriteMask: b.WriteMask,
		}
	}

	elems := make([]inputElementDesc, len(ps.InputLayout))
	for i, e := range ps.InputLayout {
		name, err := windows.BytePtrFromString(e.SemanticName)
		if err != nil {
			return nil, err
		}
		elems[i] = inputElementDesc{
			SemanticName:      name,
			SemanticIndex:     e.SemanticIndex,
			Format:            uint32(e.Format),
			InputSlot:         e.Slot,
			AlignedByteOffset: e.Offset,
			InputSlotClass:    inputPerVertex,
		}
		if e.PerInstance {
			elems[i].InputSlotClass = inputPerInstance
			elems[i].InstanceDataStepRate = 1
		}
	}
	if len(elems) > 0 {
		desc.InputLayout = inputLayoutDesc{InputElementDescs: &elems[0], NumElements: uint32(len(elems))}
	}

	var pso *iunknown
	if err := d.device.check("CreateGraphicsPipelineState", deviceCreateGraphicsPipelineState,
		uintptr(unsafe.Pointer(&desc)), guid(&iidID3D12PipelineState), out(&pso)); err != nil {
		return nil, err
	}
	return pso, nil
}

func stencilFace(f d3d12.StencilFace) depthStencilOpDesc {
	return depthStencilOpDesc{
		StencilFailOp:      uint32(f.Fail),
		StencilDepthFailOp: uint32(f.DepthFail),
		StencilPassOp:      uint32(f.Pass),
		StencilFunc:        uint32(f.Func),
	}
}

// CompileShader runs D3DCompile. Compiler diagnostics become the error text.
func (d *Device) CompileShader(src []byte, entry, target string) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.New("empty shader source")
	}
	if err := compilerDLL.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", gfx.ErrUnsupported, err)
	}
	entryName, err := windows.BytePtrFromString(entry)
	if err != nil {
		return nil, err
	}
	targetName, err := windows.BytePtrFromString(target)
	if err != nil {
		return nil, err
	}
	flags := uintptr(compileStrictness | compileOptimization3)
	if d.debug {
		flags = compileStrictness | compileDebug | compileSkipOptimization
	}

	var code, diag *iunknown
	r, _, _ := procD3DCompile.Call(
		uintptr(unsafe.Pointer(&src[0])), uintptr(len(src)),
		0, 0, 0,
		uintptr(unsafe.Pointer(entryName)), uintptr(unsafe.Pointer(targetName)),
		flags, 0,
		out(&code), out(&diag))
	msg := blobBytes(diag)
	if hr := hresult(r); hr.failed() {
		if code != nil {
			code.Release()
		}
		if len(msg) > 0 {
			return nil, errors.New(string(msg))
		}
		return nil, fmt.Errorf("D3DCompile: %w", hr)
	}
	return blobBytes(code), nil
}

// ── Submission ──────────────────────────────────────────────────────────────

type commandAllocator struct{ *iunknown }

func (a commandAllocator) Reset() error {
	return a.check("ID3D12CommandAllocator.Reset", allocatorReset)
}

func (d *Device) CreateCommandAllocator() (d3d12.CommandAllocator, error) {
	var a *iunknown
	if err := d.device.check("CreateCommandAllocator", deviceCreateCommandAllocator,
		0, guid(&iidID3D12CommandAllocator), out(&a)); err != nil {
		return nil, err
	}
	return commandAllocator{a}, nil
}

func (d *Device) CreateCommandList(a d3d12.CommandAllocator) (d3d12.CommandList, error) {
	l := &commandList{}
	if err := d.device.check("CreateCommandList", deviceCreateCommandList,
		0, 0, ptr(a), 0, guid(&iidID3D12GraphicsCommandList), out(&l.iunknown)); err != nil {
		return nil, err
	}
	return l, nil
}

func (d *Device) ExecuteCommandList(l d3d12.CommandList) {
	lists := [1]uintptr{ptr(l)}
	d.queue.call(queueExecuteCommandLists, 1, uintptr(unsafe.Pointer(&lists[0])))
}

func (d *Device) Signal(f d3d12.Fence, value uint64) error {
	return d.queue.check("Signal", queueSignal, ptr(f), uintptr(value))
}

type fence struct {
	*iunknown
	event windows.Handle
}

func (d *Device) CreateFence() (d3d12.Fence, error) {
	event, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateEvent: %w", err)
	}
	f := &fence{event: event}
	if err := d.device.check("CreateFence", deviceCreateFence,
		0, 0, guid(&iidID3D12Fence), out(&f.iunknown)); err != nil {
		windows.CloseHandle(event)
		return nil, err
	}
	return f, nil
}

func (f *fence) Completed() uint64 { return uint64(f.call(fenceGetCompletedValue)) }

const waitTimeout = 0x102

func (f *fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	if f.Completed() >= value {
		return true, nil
	}
	if err := f.check("SetEventOnCompletion", fenceSetEventOnCompletion, uintptr(value), uintptr(f.event)); err != nil {
		return false, err
	}
	ms := uint32(min(max(timeout.Milliseconds(), 1), windows.INFINITE-1))
	ev, err := windows.WaitForSingleObject(f.event, ms)
	if ev == waitTimeout {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("WaitForSingleObject: %w", err)
	}
	return true, nil
}

func (f *fence) Release() {
	f.iunknown.Release()
	windows.CloseHandle(f.event)
}

// ── Swap chains ─────────────────────────────────────────────────────────────

type swapChain struct{ *iunknown }

func (d *Device) CreateSwapChain(hwnd uintptr, sd d3d12.SwapChainDesc) (d3d12.SwapChain, error) {
	desc := swapChainDesc1{
		Width:       sd.Width,
		Height:      sd.Height,
		Format:      uint32(sd.Format),
		SampleDesc:  sampleDesc{Count: 1},
		BufferUsage: dxgiUsageRenderTarget,
		BufferCount: sd.Buffers,
		SwapEffect:  dxgiSwapEffectFlipDiscard,
	}
	var sc1 *iunknown
	if err := d.factory.check("CreateSwapChainForHwnd", factoryCreateSwapChainForHwnd,
		uintptr(unsafe.Pointer(d.queue)), hwnd, uintptr(unsafe.Pointer(&desc)), 0, 0, out(&sc1)); err != nil {
		return nil, err
	}
	defer sc1.Release()
	d.factory.call(factoryMakeWindowAssociation, hwnd, dxgiMWANoAltEnter)

	sc := swapChain{}
	if err := sc1.check("QueryInterface(IDXGISwapChain3)", methodQueryInterface,
		guid(&iidIDXGISwapChain3), out(&sc.iunknown)); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s swapChain) Buffer(i uint32) (d3d12.Resource, error) {
	r := &resource{}
	if err := s.check("GetBuffer", swapChainGetBuffer, uintptr(i), guid(&iidID3D12Resource), out(&r.iunknown)); err != nil {
		return nil, err
	}
	return r, nil
}

func (s swapChain) CurrentIndex() uint32 {
	return uint32(s.call(swapChainGetCurrentBackBufferIndex))
}

func (s swapChain) Present(syncInterval uint32) error {
	return s.check("Present", swapChainPresent, uintptr(syncInterval), 0)
}

func (s swapChain) ResizeBuffers(n, width, height uint32, format d3d12.Format) error {
	return s.check("ResizeBuffers", swapChainResizeBuffers,
		uintptr(n), uintptr(width), uintptr(height), uintptr(format), 0)
}
