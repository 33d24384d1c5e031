package d3d12

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-hal/gfx"
)

func record(t *testing.T, d *gfx.GraphicsDevice, fn func(cl *gfx.CommandList)) {
	t.Helper()
	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())
	fn(cl)
	require.NoError(t, cl.End())
	require.NoError(t, d.SubmitCommandList(cl))
}

// testPass returns a render pass over a new swapchain on win.
func testPass(t *testing.T, d *gfx.GraphicsDevice, win gfx.Surface) *gfx.RenderPass {
	t.Helper()
	sc, err := d.CreateSwapchain(win, gfx.DefaultSwapchainDescription())
	require.NoError(t, err)
	pass, err := d.CreateRenderPass(gfx.RenderPassSpecification{Target: sc, ClearDepth: 1})
	require.NoError(t, err)
	return pass
}

// recordPass records fn between BeginRenderPass and EndRenderPass.
func recordPass(t *testing.T, d *gfx.GraphicsDevice, pass *gfx.RenderPass, fn func(cl *gfx.CommandList)) {
	t.Helper()
	record(t, d, func(cl *gfx.CommandList) {
		require.NoError(t, cl.BeginRenderPass(pass))
		fn(cl)
		require.NoError(t, cl.EndRenderPass())
	})
}

func TestTriangleEndToEnd(t *testing.T) {
	d, fd, win := newTestDevice(t)
	sh := newTestShader(t, d)
	p, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyTriangleList))
	require.NoError(t, err)
	verts := []float32{0, 0.5, 0, -0.5, -0.5, 0, 0.5, -0.5, 0}
	vb, err := d.CreateVertexBuffer(36, gfx.BufferUsageStatic, gfx.SliceBytes(verts))
	require.NoError(t, err)

	recordPass(t, d, testPass(t, d, win), func(cl *gfx.CommandList) {
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.SetVertexBuffer(0, vb, 0))
		require.NoError(t, cl.DrawElements(0, 3))
	})

	require.Len(t, fd.draws, 1)
	draw := fd.draws[0]
	assert.Equal(t, PrimitiveTriangleList, draw.topology)
	assert.Equal(t, uint32(3), draw.count)
	assert.Equal(t, uint32(1), draw.instances)
	assert.False(t, draw.indexed)

	require.NotNil(t, draw.pso)
	assert.Equal(t, []byte("vs_5_1:vs_main"), draw.pso.VS)
	assert.Equal(t, []byte("ps_5_1:ps_main"), draw.pso.PS)
	assert.Equal(t, []InputElement{{SemanticName: "TEXCOORD", Format: FormatRGB32Float}}, draw.pso.InputLayout)

	view := draw.vertex[0]
	assert.Equal(t, uint32(12), view.Stride)
	assert.Equal(t, uint32(36), view.Size)
	native := fd.bufferAt(view.Address)
	require.NotNil(t, native)
	assert.Equal(t, gfx.SliceBytes(verts), native.data)
	assert.Equal(t, StateVertexAndConstantBuffer, native.state)
}

func TestDrawUsesPipelineTopology(t *testing.T) {
	cases := map[gfx.PrimitiveTopology]struct {
		prim PrimitiveTopology
		kind TopologyType
	}{
		gfx.TopologyTriangleList:  {PrimitiveTriangleList, TopologyTypeTriangle},
		gfx.TopologyTriangleStrip: {PrimitiveTriangleStrip, TopologyTypeTriangle},
		gfx.TopologyLineList:      {PrimitiveLineList, TopologyTypeLine},
		gfx.TopologyLineStrip:     {PrimitiveLineStrip, TopologyTypeLine},
		gfx.TopologyPointList:     {PrimitivePointList, TopologyTypePoint},
	}
	for topology, want := range cases {
		t.Run(topology.String(), func(t *testing.T) {
			d, fd, win := newTestDevice(t)
			sh := newTestShader(t, d)
			p, err := d.CreatePipeline(testPipelineDescription(sh, topology))
			require.NoError(t, err)
			recordPass(t, d, testPass(t, d, win), func(cl *gfx.CommandList) {
				require.NoError(t, cl.SetPipeline(p))
				require.NoError(t, cl.DrawElements(0, 4))
			})
			require.Len(t, fd.draws, 1)
			assert.Equal(t, want.prim, fd.draws[0].topology)
			assert.Equal(t, want.kind, fd.draws[0].pso.Topology)
		})
	}
}

func TestTopologyFollowsRebind(t *testing.T) {
	d, fd, win := newTestDevice(t)
	sh := newTestShader(t, d)
	tris, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyTriangleList))
	require.NoError(t, err)
	lines, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyLineStrip))
	require.NoError(t, err)

	recordPass(t, d, testPass(t, d, win), func(cl *gfx.CommandList) {
		require.NoError(t, cl.SetPipeline(tris))
		require.NoError(t, cl.DrawElements(0, 3))
		require.NoError(t, cl.SetPipeline(lines))
		require.NoError(t, cl.DrawElements(0, 3))
	})
	require.Len(t, fd.draws, 2)
	assert.Equal(t, PrimitiveTriangleList, fd.draws[0].topology)
	assert.Equal(t, PrimitiveLineStrip, fd.draws[1].topology)
	assert.NotSame(t, fd.draws[0].pso, fd.draws[1].pso)
}

func TestRootSignatureLayout(t *testing.T) {
	d, fd, _ := newTestDevice(t)
	sh := newTestShader(t, d)
	desc := testPipelineDescription(sh, gfx.TopologyTriangleList)
	desc.ResourceLayout = append(desc.ResourceLayout, &gfx.ResourceSetSpecification{Set: 1, Bindings: []gfx.ResourceBinding{
		{Name: "Lights", Binding: 0, Kind: gfx.BindingUniformBuffer, Size: 128},
	}})
	_, err := d.CreatePipeline(desc)
	require.NoError(t, err)

	require.Len(t, fd.roots, 1)
	assert.Equal(t, []RootParameter{
		{Ranges: []DescriptorRange{
			{Type: RangeCBV, Count: 1, Register: 0, Space: 0, Offset: 0},
			{Type: RangeSRV, Count: 1, Register: 1, Space: 0, Offset: 1},
		}},
		{Ranges: []DescriptorRange{
			{Type: RangeSampler, Count: 1, Register: 1, Space: 0, Offset: 0},
		}},
		{Ranges: []DescriptorRange{
			{Type: RangeCBV, Count: 1, Register: 0, Space: 1, Offset: 0},
		}},
	}, fd.roots[0].Parameters)
}

func TestUniformVisibleAtRegisterZero(t *testing.T) {
	d, fd, win := newTestDevice(t)
	sh := newTestShader(t, d)
	p, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyTriangleList))
	require.NoError(t, err)
	ub, err := d.CreateUniformBuffer(64, gfx.BufferUsageDynamic, nil)
	require.NoError(t, err)
	rs, err := d.CreateResourceSet(cameraSpec)
	require.NoError(t, err)
	require.NoError(t, rs.WriteUniformBuffer(ub, 0))

	mvp := make([]byte, 64)
	for i := range mvp {
		mvp[i] = byte(i)
	}
	recordPass(t, d, testPass(t, d, win), func(cl *gfx.CommandList) {
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.UpdateUniformBuffer(ub, 0, mvp))
		require.NoError(t, cl.SetResourceSet(rs))
		require.NoError(t, cl.DrawElements(0, 3))
	})

	require.Len(t, fd.draws, 1)
	views := fd.draws[0].tables[0]
	require.NotEmpty(t, views)
	cbv := views[0]
	assert.Equal(t, "cbv", cbv.kind, "register b0 is the first entry of the set's views table")
	assert.Equal(t, uint32(cbvAlignment), cbv.size)
	assert.Equal(t, mvp, fd.draws[0].ubos[cbv.addr][:64])
}

func TestUniformUpdatesLandBetweenDraws(t *testing.T) {
	d, fd, win := newTestDevice(t)
	sh := newTestShader(t, d)
	p, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyTriangleList))
	require.NoError(t, err)
	ub, err := d.CreateUniformBuffer(64, gfx.BufferUsageDynamic, nil)
	require.NoError(t, err)
	rs, err := d.CreateResourceSet(cameraSpec)
	require.NoError(t, err)
	require.NoError(t, rs.WriteUniformBuffer(ub, 0))

	recordPass(t, d, testPass(t, d, win), func(cl *gfx.CommandList) {
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.SetResourceSet(rs))
		require.NoError(t, cl.UpdateUniformBuffer(ub, 0, []byte{1}))
		require.NoError(t, cl.DrawElements(0, 3))
		require.NoError(t, cl.UpdateUniformBuffer(ub, 0, []byte{2}))
		require.NoError(t, cl.DrawElements(0, 3))
	})
	require.Len(t, fd.draws, 2)
	addr := fd.draws[0].tables[0][0].addr
	assert.Equal(t, byte(1), fd.draws[0].ubos[addr][0])
	assert.Equal(t, byte(2), fd.draws[1].ubos[addr][0])
	assert.Zero(t, fd.liveKinds()["buffer(2)"], "staging buffers released after the submission")
}

func TestTextureAndSamplerTables(t *testing.T) {
	d, fd, win := newTestDevice(t)
	sh := newTestShader(t, d)
	p, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyTriangleList))
	require.NoError(t, err)
	tex, err := d.CreateTexture(gfx.TextureDescription{Width: 4, Height: 4, Format: gfx.PixelFormatRGBA8UnormSRGB})
	require.NoError(t, err)
	rs, err := d.CreateResourceSet(cameraSpec)
	require.NoError(t, err)
	require.NoError(t, rs.WriteTexture(tex, 1))

	recordPass(t, d, testPass(t, d, win), func(cl *gfx.CommandList) {
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.SetResourceSet(rs))
		require.NoError(t, cl.DrawElements(0, 3))
	})

	require.Len(t, fd.draws, 1)
	draw := fd.draws[0]
	assert.Empty(t, draw.tables[0][0].kind, "unwritten uniform slot stays empty")
	srv := draw.tables[0][1]
	assert.Equal(t, "srv", srv.kind)
	assert.Equal(t, FormatRGBA8UnormSRGB, srv.format)
	require.NotNil(t, srv.res)
	assert.Equal(t, StateShaderResource, srv.res.state)

	sampler := draw.tables[1][0]
	assert.Equal(t, "sampler", sampler.kind)
	assert.Equal(t, FilterMinLinear|FilterMagLinear|FilterMipLinear, sampler.sampler.Filter, "default sampler is trilinear")
}

func TestResourceSetRebindAfterPipelineChange(t *testing.T) {
	d, fd, win := newTestDevice(t)
	sh := newTestShader(t, d)
	a, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyTriangleList))
	require.NoError(t, err)
	b, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyLineList))
	require.NoError(t, err)
	ub, err := d.CreateUniformBuffer(64, gfx.BufferUsageDynamic, nil)
	require.NoError(t, err)
	rs, err := d.CreateResourceSet(cameraSpec)
	require.NoError(t, err)
	require.NoError(t, rs.WriteUniformBuffer(ub, 0))

	recordPass(t, d, testPass(t, d, win), func(cl *gfx.CommandList) {
		require.NoError(t, cl.SetPipeline(a))
		require.NoError(t, cl.SetResourceSet(rs))
		require.NoError(t, cl.DrawElements(0, 3))
		require.NoError(t, cl.SetPipeline(b))
		require.NoError(t, cl.DrawElements(0, 2))
	})
	require.Len(t, fd.draws, 2)
	for _, draw := range fd.draws {
		require.NotEmpty(t, draw.tables[0], "root signature change clears tables; they are set again")
		assert.Equal(t, "cbv", draw.tables[0][0].kind)
	}
}

func TestPipelineStateDesc(t *testing.T) {
	d, fd, win := newTestDevice(t)
	sh := newTestShader(t, d)
	desc := testPipelineDescription(sh, gfx.TopologyTriangleList)
	desc.Rasterizer.CullMode = gfx.CullNone
	desc.Rasterizer.FillMode = gfx.FillWireframe
	desc.DepthStencil.DepthWrite = false
	desc.DepthStencil.DepthCompare = gfx.CompareLessEqual
	desc.DepthStencil.StencilTest = true
	desc.DepthStencil.StencilRef = 7
	desc.DepthStencil.Front = gfx.StencilFaceState{
		Fail: gfx.StencilKeep, DepthFail: gfx.StencilIncrWrap, Pass: gfx.StencilReplace, Compare: gfx.CompareAlways,
	}
	desc.Blend = []gfx.BlendState{gfx.AlphaBlendState()}
	p, err := d.CreatePipeline(desc)
	require.NoError(t, err)

	recordPass(t, d, testPass(t, d, win), func(cl *gfx.CommandList) {
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.DrawElements(0, 3))
	})
	require.Len(t, fd.draws, 1)
	draw := fd.draws[0]
	pso := draw.pso
	assert.Equal(t, RasterizerDesc{Fill: FillWireframe, Cull: CullNone, FrontCounterClockwise: true, DepthClip: true}, pso.Rasterizer)
	assert.True(t, pso.DepthStencil.DepthEnable)
	assert.False(t, pso.DepthStencil.DepthWrite)
	assert.Equal(t, ComparisonLessEqual, pso.DepthStencil.DepthFunc)
	assert.True(t, pso.DepthStencil.StencilEnable)
	assert.Equal(t, StencilFace{Fail: StencilOpKeep, DepthFail: StencilOpIncr, Pass: StencilOpReplace, Func: ComparisonAlways}, pso.DepthStencil.Front)
	assert.Equal(t, uint32(7), draw.stencilRef)

	assert.Equal(t, []Format{FormatBGRA8Unorm}, pso.RTVFormats)
	assert.Equal(t, FormatD24UnormS8Uint, pso.DSVFormat)
	require.Len(t, pso.Blend, 1)
	assert.Equal(t, RenderTargetBlend{
		Enable: true, Src: BlendSrcAlpha, Dst: BlendInvSrcAlpha, Op: BlendOpAdd,
		SrcAlpha: BlendOne, DstAlpha: BlendInvSrcAlpha, OpAlpha: BlendOpAdd, WriteMask: 0xF,
	}, pso.Blend[0])
}

func TestIndexedAndInstancedDraws(t *testing.T) {
	d, fd, win := newTestDevice(t)
	sh := newTestShader(t, d)
	desc := testPipelineDescription(sh, gfx.TopologyTriangleList)
	var inst gfx.VertexBufferLayout
	inst.Add("offset", gfx.ElementFloat32, 2).Add("tint", gfx.ElementUnorm8, 4)
	inst.InputRate = gfx.InputRateInstance
	desc.VertexLayouts = append(desc.VertexLayouts, inst)
	p, err := d.CreatePipeline(desc)
	require.NoError(t, err)

	vb, err := d.CreateVertexBuffer(36, gfx.BufferUsageStatic, nil)
	require.NoError(t, err)
	ib, err := d.CreateIndexBuffer(12, gfx.BufferUsageStatic, nil)
	require.NoError(t, err)
	instances, err := d.CreateVertexBuffer(120, gfx.BufferUsageStatic, nil)
	require.NoError(t, err)

	recordPass(t, d, testPass(t, d, win), func(cl *gfx.CommandList) {
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.SetVertexBuffer(0, vb, 0))
		require.NoError(t, cl.SetVertexBuffer(1, instances, 0))
		require.NoError(t, cl.SetIndexBuffer(ib, gfx.IndexFormatUint16, 2))
		require.NoError(t, cl.DrawIndexed(3, 4, 1, 5, 2))
	})

	require.Len(t, fd.draws, 1)
	draw := fd.draws[0]
	assert.True(t, draw.indexed)
	assert.Equal(t, uint32(3), draw.count)
	assert.Equal(t, uint32(4), draw.instances)
	assert.Equal(t, uint32(1), draw.first)
	assert.Equal(t, int32(5), draw.baseVertex)
	assert.Equal(t, uint32(2), draw.firstInstance)

	require.NotNil(t, draw.index)
	assert.Equal(t, FormatR16Uint, draw.index.Format)
	assert.Equal(t, uint32(10), draw.index.Size)
	assert.Equal(t, uint32(12), draw.vertex[1].Stride)

	assert.Equal(t, []InputElement{
		{SemanticName: "TEXCOORD", SemanticIndex: 0, Format: FormatRGB32Float, Slot: 0},
		{SemanticName: "TEXCOORD", SemanticIndex: 1, Format: FormatRG32Float, Slot: 1, PerInstance: true},
		{SemanticName: "TEXCOORD", SemanticIndex: 2, Format: FormatRGBA8Unorm, Slot: 1, Offset: 8, PerInstance: true},
	}, draw.pso.InputLayout)
}

func TestScissorFollowsPipeline(t *testing.T) {
	d, fd, win := newTestDevice(t)
	sc, err := d.CreateSwapchain(win, gfx.DefaultSwapchainDescription())
	require.NoError(t, err)
	pass, err := d.CreateRenderPass(gfx.RenderPassSpecification{Target: sc})
	require.NoError(t, err)
	sh := newTestShader(t, d)
	plain, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyTriangleList))
	require.NoError(t, err)
	scissored := testPipelineDescription(sh, gfx.TopologyTriangleList)
	scissored.Rasterizer.ScissorTest = true
	clipped, err := d.CreatePipeline(scissored)
	require.NoError(t, err)

	record(t, d, func(cl *gfx.CommandList) {
		require.NoError(t, cl.BeginRenderPass(pass))
		require.NoError(t, cl.SetScissor(gfx.Scissor{X: 10, Y: 20, Width: 100, Height: 50}))
		require.NoError(t, cl.SetPipeline(plain))
		require.NoError(t, cl.DrawElements(0, 3))
		require.NoError(t, cl.SetPipeline(clipped))
		require.NoError(t, cl.DrawElements(0, 3))
		require.NoError(t, cl.EndRenderPass())
	})
	require.Len(t, fd.draws, 2)
	assert.Equal(t, Rect{Right: 640, Bottom: 480}, fd.draws[0].scissor, "scissor test off covers the target")
	assert.Equal(t, Rect{Left: 10, Top: 20, Right: 110, Bottom: 70}, fd.draws[1].scissor)
	assert.Equal(t, Viewport{Width: 640, Height: 480, MaxDepth: 1}, fd.draws[0].viewport)
}

func TestViewportOriginIsTopLeft(t *testing.T) {
	d, fd, win := newTestDevice(t)
	sh := newTestShader(t, d)
	p, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyTriangleList))
	require.NoError(t, err)

	recordPass(t, d, testPass(t, d, win), func(cl *gfx.CommandList) {
		require.NoError(t, cl.SetViewport(gfx.Viewport{X: 2, Y: 1, Width: 4, Height: 4, MaxDepth: 1}))
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.DrawElements(0, 3))
	})
	require.Len(t, fd.draws, 1)
	assert.Equal(t, Viewport{X: 2, Y: 1, Width: 4, Height: 4, MaxDepth: 1}, fd.draws[0].viewport)
}

func TestDrawOutsideRenderPassRejected(t *testing.T) {
	d, fd, _ := newTestDevice(t)
	sh := newTestShader(t, d)
	p, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyTriangleList))
	require.NoError(t, err)

	record(t, d, func(cl *gfx.CommandList) {
		require.NoError(t, cl.SetPipeline(p))
		err := cl.DrawElements(0, 3)
		var me *gfx.ResourceMisuseError
		require.ErrorAs(t, err, &me)
		assert.ErrorIs(t, err, gfx.ErrNoRenderPass)
	})
	assert.Empty(t, fd.draws)
}

func TestNormalizedIntegerAttributeRejected(t *testing.T) {
	d, fd, _ := newTestDevice(t)
	sh := newTestShader(t, d)
	desc := testPipelineDescription(sh, gfx.TopologyTriangleList)
	desc.VertexLayouts[0].Elements[0].Type = gfx.ElementInt32
	desc.VertexLayouts[0].Elements[0].Normalized = true
	_, err := d.CreatePipeline(desc)
	var ce *gfx.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Empty(t, fd.psos)
	assert.Zero(t, fd.liveKinds()["root signature"])
}

func TestDescriptorRingOverflowIsFatal(t *testing.T) {
	d, _, win := newTestDevice(t)
	sh := newTestShader(t, d)
	p, err := d.CreatePipeline(testPipelineDescription(sh, gfx.TopologyTriangleList))
	require.NoError(t, err)
	a, err := d.CreateResourceSet(cameraSpec)
	require.NoError(t, err)
	b, err := d.CreateResourceSet(cameraSpec)
	require.NoError(t, err)

	pass := testPass(t, d, win)

	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())
	require.NoError(t, cl.BeginRenderPass(pass))
	require.NoError(t, cl.SetPipeline(p))
	// Each draw after a set change copies the set's sampler table into the
	// sampler ring.
	for i := range samplerRingSize + 1 {
		rs := a
		if i%2 == 1 {
			rs = b
		}
		require.NoError(t, cl.SetResourceSet(rs))
		require.NoError(t, cl.DrawElements(0, 3))
	}
	require.NoError(t, cl.EndRenderPass())
	require.NoError(t, cl.End())
	err = d.SubmitCommandList(cl)
	require.Error(t, err)
	assert.True(t, gfx.IsFatal(err))
	assert.ErrorIs(t, err, errRingExhausted)
	assert.ErrorIs(t, d.Err(), errRingExhausted)
}
