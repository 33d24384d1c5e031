package gfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangleBuffer(t *testing.T, d *GraphicsDevice) *Buffer {
	t.Helper()
	verts := []float32{
		-0.5, -0.5, 0,
		0.5, -0.5, 0,
		0, 0.5, 0,
	}
	b, err := d.CreateVertexBuffer(uint64(len(verts)*4), BufferUsageStatic, SliceBytes(verts))
	require.NoError(t, err)
	return b
}

// testPass returns a render pass over a fresh swapchain.
func testPass(t *testing.T, d *GraphicsDevice) *RenderPass {
	t.Helper()
	sc, err := d.CreateSwapchain(fakeSurface{64, 64}, DefaultSwapchainDescription())
	require.NoError(t, err)
	pass, err := d.CreateRenderPass(RenderPassSpecification{Target: sc, ClearDepth: 1})
	require.NoError(t, err)
	return pass
}

func TestCommandListStateMachine(t *testing.T) {
	d, _ := newFakeDevice()
	cl := d.CreateCommandList()
	assert.Equal(t, CommandListIdle, cl.State())

	var me *ResourceMisuseError
	assert.ErrorAs(t, cl.End(), &me, "end while idle")
	assert.ErrorAs(t, cl.SetViewport(Viewport{}), &me, "record while idle")
	assert.ErrorAs(t, d.SubmitCommandList(cl), &me, "submit while idle")

	require.NoError(t, cl.Begin())
	assert.Equal(t, CommandListRecording, cl.State())
	err := cl.Begin()
	require.ErrorAs(t, err, &me, "nested begin")
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, cl.End())
	assert.Equal(t, CommandListRecorded, cl.State())
	assert.ErrorAs(t, cl.Begin(), &me, "begin while recorded")

	require.NoError(t, d.SubmitCommandList(cl))
	assert.Equal(t, CommandListSubmitted, cl.State())
	assert.ErrorAs(t, d.SubmitCommandList(cl), &me, "double submit")

	require.NoError(t, cl.Begin())
	assert.Equal(t, CommandListRecording, cl.State())
}

func TestBeginResetsRecordedCount(t *testing.T) {
	d, _ := newFakeDevice()
	p := testPipeline(t, d, TopologyTriangleList)
	vb := triangleBuffer(t, d)
	pass := testPass(t, d)
	cl := d.CreateCommandList()

	for k := 0; k < 6; k++ {
		require.NoError(t, cl.Begin())
		assert.Equal(t, 0, cl.Len())
		require.NoError(t, cl.BeginRenderPass(pass))
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.SetVertexBuffer(0, vb, 0))
		for range k {
			require.NoError(t, cl.DrawElements(0, 3))
		}
		require.NoError(t, cl.EndRenderPass())
		assert.Equal(t, 4+k, cl.Len())
		require.NoError(t, cl.End())
		require.NoError(t, d.SubmitCommandList(cl))
	}
}

func TestTriangleEndToEnd(t *testing.T) {
	d, fb := newFakeDevice()
	vb := triangleBuffer(t, d)
	p := testPipeline(t, d, TopologyTriangleList)

	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())
	require.NoError(t, cl.BeginRenderPass(testPass(t, d)))
	require.NoError(t, cl.SetPipeline(p))
	require.NoError(t, cl.SetVertexBuffer(0, vb, 0))
	require.NoError(t, cl.DrawElements(0, 3))
	require.NoError(t, cl.EndRenderPass())
	require.NoError(t, cl.End())
	require.NoError(t, d.SubmitCommandList(cl))

	require.Len(t, fb.draws, 1)
	draw := fb.draws[0]
	assert.Equal(t, uint32(3), draw.Count)
	assert.Equal(t, TopologyTriangleList, draw.Topology)
	assert.Equal(t, p.Handle(), draw.Pipeline)
	assert.Equal(t, vb.Handle(), draw.Vertex)
	assert.Equal(t, 1, fb.submits)
	assert.EqualValues(t, 1, d.Stats().Draws)
}

func TestDrawResolvesTopologyAtReplay(t *testing.T) {
	d, fb := newFakeDevice()
	ib, err := d.CreateIndexBuffer(12, BufferUsageStatic, SliceBytes([]uint16{0, 1, 2, 2, 1, 0}))
	require.NoError(t, err)
	vb := triangleBuffer(t, d)

	topologies := []PrimitiveTopology{
		TopologyTriangleList, TopologyTriangleStrip, TopologyLineList, TopologyLineStrip, TopologyPointList,
	}
	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())
	require.NoError(t, cl.BeginRenderPass(testPass(t, d)))
	require.NoError(t, cl.SetVertexBuffer(0, vb, 0))
	require.NoError(t, cl.SetIndexBuffer(ib, IndexFormatUint16, 0))
	for _, top := range topologies {
		require.NoError(t, cl.SetPipeline(testPipeline(t, d, top)))
		require.NoError(t, cl.DrawElements(0, 3))
		require.NoError(t, cl.DrawIndexed(6, 1, 0, 0, 0))
	}
	require.NoError(t, cl.EndRenderPass())
	require.NoError(t, cl.End())
	require.NoError(t, d.SubmitCommandList(cl))

	require.Len(t, fb.draws, 2*len(topologies))
	for i, top := range topologies {
		assert.Equal(t, top, fb.draws[2*i].Topology)
		assert.False(t, fb.draws[2*i].Indexed)
		assert.Equal(t, top, fb.draws[2*i+1].Topology)
		assert.True(t, fb.draws[2*i+1].Indexed)
	}
}

func TestDrawWithoutPipeline(t *testing.T) {
	d, _ := newFakeDevice()
	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())

	var me *ResourceMisuseError
	err := cl.DrawElements(0, 3)
	require.ErrorAs(t, err, &me)
	assert.ErrorIs(t, err, ErrNoPipeline)
	assert.ErrorIs(t, cl.DrawIndexed(3, 1, 0, 0, 0), ErrNoPipeline)
	assert.Equal(t, 0, cl.Len())
}

func TestDrawIndexedNeedsIndexBuffer(t *testing.T) {
	d, _ := newFakeDevice()
	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())
	require.NoError(t, cl.SetPipeline(testPipeline(t, d, TopologyTriangleList)))
	var me *ResourceMisuseError
	assert.ErrorAs(t, cl.DrawIndexed(3, 1, 0, 0, 0), &me)
}

func TestDrawOutsideRenderPass(t *testing.T) {
	d, fb := newFakeDevice()
	p := testPipeline(t, d, TopologyTriangleList)
	ib, err := d.CreateIndexBuffer(12, BufferUsageStatic, nil)
	require.NoError(t, err)

	t.Run("recording", func(t *testing.T) {
		cl := d.CreateCommandList()
		require.NoError(t, cl.Begin())
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.SetIndexBuffer(ib, IndexFormatUint16, 0))

		var me *ResourceMisuseError
		err := cl.DrawElements(0, 3)
		require.ErrorAs(t, err, &me)
		assert.ErrorIs(t, err, ErrNoRenderPass)
		assert.ErrorIs(t, cl.DrawIndexed(3, 1, 0, 0, 0), ErrNoRenderPass)
		assert.ErrorIs(t, cl.SetViewport(Viewport{Width: 8, Height: 8, MaxDepth: 1}), ErrNoRenderPass)
		assert.ErrorIs(t, cl.SetScissor(Scissor{Width: 8, Height: 8}), ErrNoRenderPass)
		assert.Equal(t, 2, cl.Len())
	})

	t.Run("replay", func(t *testing.T) {
		cl := d.CreateCommandList()
		require.NoError(t, cl.Begin())
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.End())
		cl.cmds = append(cl.cmds, CmdSetViewport{Viewport{Width: 8, Height: 8, MaxDepth: 1}}, CmdDrawElements{Count: 3, InstanceCount: 1})

		err := d.SubmitCommandList(cl)
		var me *ResourceMisuseError
		require.ErrorAs(t, err, &me)
		assert.ErrorIs(t, err, ErrNoRenderPass)
		assert.Empty(t, fb.draws)
		assert.Equal(t, 1, fb.aborts)

		cl.Release()
		cl = d.CreateCommandList()
		require.NoError(t, cl.Begin())
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.End())
		cl.cmds = append(cl.cmds, CmdDrawElements{Count: 3, InstanceCount: 1})
		assert.ErrorIs(t, d.SubmitCommandList(cl), ErrNoRenderPass)
		assert.Empty(t, fb.draws)
	})
}

func TestResourceSetLayoutMismatch(t *testing.T) {
	d, fb := newFakeDevice()
	other := &ResourceSetSpecification{Set: 0, Bindings: []ResourceBinding{
		{Name: "Lights", Binding: 0, Kind: BindingUniformBuffer, Size: 16},
	}}
	p := testPipeline(t, d, TopologyTriangleList, cameraSpec)
	wrong, err := d.CreateResourceSet(other)
	require.NoError(t, err)

	t.Run("recording", func(t *testing.T) {
		cl := d.CreateCommandList()
		require.NoError(t, cl.Begin())
		require.NoError(t, cl.SetPipeline(p))
		err := cl.SetResourceSet(wrong)
		var me *ResourceMisuseError
		require.ErrorAs(t, err, &me)
		assert.ErrorIs(t, err, ErrLayoutMismatch)
	})

	t.Run("replay", func(t *testing.T) {
		cl := d.CreateCommandList()
		require.NoError(t, cl.Begin())
		require.NoError(t, cl.BeginRenderPass(testPass(t, d)))
		require.NoError(t, cl.SetResourceSet(wrong))
		require.NoError(t, cl.SetPipeline(p))
		require.NoError(t, cl.DrawElements(0, 3))
		require.NoError(t, cl.EndRenderPass())
		require.NoError(t, cl.End())

		err := d.SubmitCommandList(cl)
		var me *ResourceMisuseError
		require.ErrorAs(t, err, &me)
		assert.ErrorIs(t, err, ErrLayoutMismatch)
		assert.Empty(t, fb.draws)
		assert.Equal(t, 1, fb.aborts)
		assert.NoError(t, d.Err(), "misuse does not lose the device")

		require.NoError(t, cl.Begin(), "aborted list can be recorded again")
	})
}

func TestUniformBufferEndToEnd(t *testing.T) {
	d, fb := newFakeDevice()
	const n = 64
	ubo, err := d.CreateUniformBuffer(n, BufferUsageDynamic, nil)
	require.NoError(t, err)
	want := make([]byte, n)
	for i := range want {
		want[i] = byte(i * 3)
	}
	require.NoError(t, ubo.SetData(want))

	spec := &ResourceSetSpecification{Bindings: []ResourceBinding{
		{Name: "Params", Binding: 0, Kind: BindingUniformBuffer, Size: n},
	}}
	rs, err := d.CreateResourceSet(spec)
	require.NoError(t, err)
	require.NoError(t, rs.WriteUniformBuffer(ubo, 0))

	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())
	require.NoError(t, cl.BeginRenderPass(testPass(t, d)))
	require.NoError(t, cl.SetPipeline(testPipeline(t, d, TopologyTriangleList, spec)))
	require.NoError(t, cl.SetVertexBuffer(0, triangleBuffer(t, d), 0))
	require.NoError(t, cl.SetResourceSet(rs))
	require.NoError(t, cl.DrawElements(0, 3))
	require.NoError(t, cl.EndRenderPass())
	require.NoError(t, cl.End())
	require.NoError(t, d.SubmitCommandList(cl))

	require.Len(t, fb.draws, 1)
	setHandle := fb.draws[0].Sets[0]
	assert.Equal(t, rs.Handle(), setHandle)
	bound := fb.sets[setHandle][0]
	assert.Equal(t, want, fb.buffers[bound.Buffer])
}

func TestUpdateUniformBuffer(t *testing.T) {
	d, fb := newFakeDevice()
	ubo, err := d.CreateUniformBuffer(16, BufferUsageDynamic, nil)
	require.NoError(t, err)
	static, err := d.CreateUniformBuffer(16, BufferUsageStatic, nil)
	require.NoError(t, err)

	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())
	data := []byte{1, 2, 3, 4}
	require.NoError(t, cl.UpdateUniformBuffer(ubo, 4, data))
	data[0] = 99

	var me *ResourceMisuseError
	assert.ErrorAs(t, cl.UpdateUniformBuffer(static, 0, data), &me)
	require.NoError(t, cl.End())
	require.NoError(t, d.SubmitCommandList(cl))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, fb.buffers[ubo.Handle()][:8])
}

func TestCommandListRetainsResources(t *testing.T) {
	d, fb := newFakeDevice()
	vb := triangleBuffer(t, d)
	p := testPipeline(t, d, TopologyTriangleList)

	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())
	require.NoError(t, cl.BeginRenderPass(testPass(t, d)))
	require.NoError(t, cl.SetPipeline(p))
	require.NoError(t, cl.SetVertexBuffer(0, vb, 0))
	require.NoError(t, cl.DrawElements(0, 3))
	require.NoError(t, cl.EndRenderPass())
	require.NoError(t, cl.End())

	vb.Release()
	p.Release()
	assert.Contains(t, fb.live, vb.Handle())
	require.NoError(t, d.SubmitCommandList(cl))
	assert.Contains(t, fb.live, vb.Handle(), "submitted list still holds its resources")

	require.NoError(t, cl.Begin())
	assert.NotContains(t, fb.live, vb.Handle())
	assert.NotContains(t, fb.live, p.Handle())

	var me *ResourceMisuseError
	assert.ErrorAs(t, cl.SetVertexBuffer(0, vb, 0), &me, "released buffer")
	cl.Release()
	assert.ErrorAs(t, cl.Begin(), &me)
}

func TestRenderPassRecording(t *testing.T) {
	d, fb := newFakeDevice()
	sc, err := d.CreateSwapchain(fakeSurface{320, 200}, DefaultSwapchainDescription())
	require.NoError(t, err)
	pass, err := d.CreateRenderPass(RenderPassSpecification{
		Target:     sc,
		ClearColor: Color{0.1, 0.2, 0.3, 1},
		ClearDepth: 1,
	})
	require.NoError(t, err)
	assert.Same(t, sc, pass.Swapchain())
	assert.Nil(t, pass.Framebuffer())

	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())
	require.NoError(t, cl.BeginRenderPass(pass))
	var me *ResourceMisuseError
	assert.ErrorAs(t, cl.BeginRenderPass(pass), &me, "nested pass")
	assert.ErrorAs(t, cl.End(), &me, "open pass")
	require.NoError(t, cl.EndRenderPass())
	require.NoError(t, cl.End())
	require.NoError(t, d.SubmitCommandList(cl))

	require.Len(t, fb.passes, 1)
	info := fb.passes[0]
	assert.Equal(t, sc.Handle(), info.Swapchain)
	assert.Zero(t, info.Framebuffer)
	assert.Equal(t, LoadOpClear, info.ColorLoadOp)
	assert.Equal(t, uint32(320), info.Width)
}

func TestBufferKindChecks(t *testing.T) {
	d, _ := newFakeDevice()
	ubo, err := d.CreateUniformBuffer(16, BufferUsageDynamic, nil)
	require.NoError(t, err)
	cl := d.CreateCommandList()
	require.NoError(t, cl.Begin())

	var me *ResourceMisuseError
	var ce *ConfigurationError
	assert.ErrorAs(t, cl.SetVertexBuffer(0, ubo, 0), &me)
	assert.ErrorAs(t, cl.SetIndexBuffer(ubo, IndexFormatUint32, 0), &me)
	assert.ErrorAs(t, cl.SetIndexBuffer(ubo, 0, 0), &ce)
}
