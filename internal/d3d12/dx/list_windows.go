//go:build windows

package dx

import (
	"math"
	"unsafe"

	"render-hal/internal/d3d12"
)

// commandList wraps an ID3D12GraphicsCommandList. d3d12.Viewport, Rect,
// VertexBufferView and IndexBufferView share the layout of their D3D12
// counterparts and are passed by address.
type commandList struct {
	*iunknown
}

func (l *commandList) Reset(a d3d12.CommandAllocator) error {
	return l.check("ID3D12GraphicsCommandList.Reset", listReset, ptr(a), 0)
}

func (l *commandList) Close() error {
	return l.check("ID3D12GraphicsCommandList.Close", listClose)
}

func (l *commandList) ResourceBarrier(barriers []d3d12.Barrier) {
	if len(barriers) == 0 {
		return
	}
	native := make([]resourceBarrier, len(barriers))
	for i, b := range barriers {
		native[i] = resourceBarrier{
			Type:        barrierTransition,
			Resource:    ptr(b.Resource),
			Subresource: allSubresources,
			StateBefore: uint32(b.Before),
			StateAfter:  uint32(b.After),
		}
	}
	l.call(listResourceBarrier, uintptr(len(native)), uintptr(unsafe.Pointer(&native[0])))
}

func (l *commandList) CopyBufferRegion(dst d3d12.Resource, dstOffset uint64, src d3d12.Resource, srcOffset, size uint64) {
	l.call(listCopyBufferRegion, ptr(dst), uintptr(dstOffset), ptr(src), uintptr(srcOffset), uintptr(size))
}

func subresourceLocation(r d3d12.Resource, sub uint32) textureCopyLocation {
	return textureCopyLocation{Resource: ptr(r), Type: copySubresourceIndex, Offset: uint64(sub)}
}

func footprintLocation(r d3d12.Resource, fp d3d12.Footprint) textureCopyLocation {
	return textureCopyLocation{
		Resource: ptr(r),
		Type:     copyPlacedFootprint,
		Offset:   fp.Offset,
		Format:   uint32(fp.Format),
		Width:    fp.Width,
		Height:   fp.Height,
		Depth:    1,
		RowPitch: fp.RowPitch,
	}
}

func (l *commandList) CopyBufferToTexture(dst d3d12.Resource, subresource uint32, src d3d12.Resource, fp d3d12.Footprint) {
	d, s := subresourceLocation(dst, subresource), footprintLocation(src, fp)
	l.call(listCopyTextureRegion, uintptr(unsafe.Pointer(&d)), 0, 0, 0, uintptr(unsafe.Pointer(&s)), 0)
}

func (l *commandList) CopyTextureToBuffer(dst d3d12.Resource, fp d3d12.Footprint, src d3d12.Resource, subresource uint32) {
	d, s := footprintLocation(dst, fp), subresourceLocation(src, subresource)
	l.call(listCopyTextureRegion, uintptr(unsafe.Pointer(&d)), 0, 0, 0, uintptr(unsafe.Pointer(&s)), 0)
}

func (l *commandList) SetDescriptorHeaps(heaps []d3d12.DescriptorHeap) {
	if len(heaps) == 0 {
		return
	}
	ptrs := make([]uintptr, len(heaps))
	for i, h := range heaps {
		ptrs[i] = ptr(h)
	}
	l.call(listSetDescriptorHeaps, uintptr(len(ptrs)), uintptr(unsafe.Pointer(&ptrs[0])))
}

func (l *commandList) SetGraphicsRootSignature(rs d3d12.Object) {
	l.call(listSetGraphicsRootSignature, ptr(rs))
}

func (l *commandList) SetPipelineState(pso d3d12.Object) {
	l.call(listSetPipelineState, ptr(pso))
}

func (l *commandList) SetGraphicsRootDescriptorTable(param uint32, base d3d12.GPUDescriptor) {
	l.call(listSetGraphicsRootDescriptorTable, uintptr(param), uintptr(base))
}

func (l *commandList) IASetPrimitiveTopology(t d3d12.PrimitiveTopology) {
	l.call(listIASetPrimitiveTopology, uintptr(t))
}

func (l *commandList) IASetVertexBuffers(startSlot uint32, views []d3d12.VertexBufferView) {
	if len(views) == 0 {
		return
	}
	l.call(listIASetVertexBuffers, uintptr(startSlot), uintptr(len(views)), uintptr(unsafe.Pointer(&views[0])))
}

func (l *commandList) IASetIndexBuffer(view *d3d12.IndexBufferView) {
	l.call(listIASetIndexBuffer, uintptr(unsafe.Pointer(view)))
}

func (l *commandList) RSSetViewport(v d3d12.Viewport) {
	l.call(listRSSetViewports, 1, uintptr(unsafe.Pointer(&v)))
}

func (l *commandList) RSSetScissorRect(r d3d12.Rect) {
	l.call(listRSSetScissorRects, 1, uintptr(unsafe.Pointer(&r)))
}

func (l *commandList) OMSetRenderTargets(rtvs []d3d12.CPUDescriptor, dsv *d3d12.CPUDescriptor) {
	var first uintptr
	if len(rtvs) > 0 {
		first = uintptr(unsafe.Pointer(&rtvs[0]))
	}
	l.call(listOMSetRenderTargets, uintptr(len(rtvs)), first, 0, uintptr(unsafe.Pointer(dsv)))
}

func (l *commandList) OMSetStencilRef(ref uint32) {
	l.call(listOMSetStencilRef, uintptr(ref))
}

func (l *commandList) ClearRenderTargetView(rtv d3d12.CPUDescriptor, color [4]float32) {
	l.call(listClearRenderTargetView, uintptr(rtv), uintptr(unsafe.Pointer(&color[0])), 0, 0)
}

// ClearDepthStencilView passes depth in the fourth argument slot, which the
// x64 convention reads from XMM3; SyscallN mirrors integer slots there.
func (l *commandList) ClearDepthStencilView(dsv d3d12.CPUDescriptor, flags d3d12.ClearFlags, depth float32, stencil uint8) {
	l.call(listClearDepthStencilView, uintptr(dsv), uintptr(flags), uintptr(math.Float32bits(depth)), uintptr(stencil), 0, 0)
}

func (l *commandList) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	l.call(listDrawInstanced, uintptr(vertexCount), uintptr(instanceCount), uintptr(startVertex), uintptr(startInstance))
}

func (l *commandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	l.call(listDrawIndexedInstanced, uintptr(indexCount), uintptr(instanceCount), uintptr(startIndex),
		uintptr(baseVertex), uintptr(startInstance))
}
