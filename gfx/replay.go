package gfx

import "fmt"

// replayer walks a recorded command list once, in order, forwarding each
// command to the backend encoder. It owns the replay-time binding state that
// draws are validated against.
type replayer struct {
	dev      *GraphicsDevice
	enc      Encoder
	pipeline *Pipeline
	sets     map[uint32]*ResourceSet
	inPass   bool
}

func (r *replayer) exec(c Command) error {
	switch c := c.(type) {
	case CmdBeginRenderPass:
		r.inPass = true
		return r.enc.BeginRenderPass(c.Pass.info())
	case CmdEndRenderPass:
		r.inPass = false
		return r.enc.EndRenderPass()
	case CmdSetViewport:
		if !r.inPass {
			return misuseErr("set viewport", ErrNoRenderPass)
		}
		return r.enc.SetViewport(c.Viewport)
	case CmdSetScissor:
		if !r.inPass {
			return misuseErr("set scissor", ErrNoRenderPass)
		}
		return r.enc.SetScissor(c.Scissor)
	case CmdSetPipeline:
		r.pipeline = c.Pipeline
		r.dev.stats.PipelineBinds++
		return r.enc.BindPipeline(c.Pipeline.handle)
	case CmdSetVertexBuffer:
		return r.enc.BindVertexBuffer(c.Slot, c.Buffer.handle, c.Offset)
	case CmdSetIndexBuffer:
		return r.enc.BindIndexBuffer(c.Buffer.handle, c.Format, c.Offset)
	case CmdSetResourceSet:
		if r.pipeline != nil && !r.pipeline.layoutFor(c.Set.spec.Set).Equal(c.Set.spec) {
			return misuseErr("set resource set", fmt.Errorf("%w: set %d", ErrLayoutMismatch, c.Set.spec.Set))
		}
		r.sets[c.Set.spec.Set] = c.Set
		return r.enc.BindResourceSet(c.Set.spec.Set, c.Set.handle)
	case CmdDrawElements:
		if err := r.validateDraw("draw"); err != nil {
			return err
		}
		r.dev.stats.Draws++
		return r.enc.Draw(r.pipeline.GetTopology(), c.Count, c.InstanceCount, c.First, c.FirstInstance)
	case CmdDrawIndexed:
		if err := r.validateDraw("draw indexed"); err != nil {
			return err
		}
		r.dev.stats.Draws++
		return r.enc.DrawIndexed(r.pipeline.GetTopology(), c.IndexCount, c.InstanceCount, c.FirstIndex, c.BaseVertex, c.FirstInstance)
	case CmdUpdateUniformBuffer:
		return r.enc.UpdateBuffer(c.Buffer.handle, c.Offset, c.Data)
	}
	panic(fmt.Sprintf("gfx: unknown command %T", c))
}

// validateDraw checks that a render pass is open, that a pipeline is bound
// and that every bound set the pipeline declares was created from the
// declared specification.
func (r *replayer) validateDraw(op string) error {
	if !r.inPass {
		return misuseErr(op, ErrNoRenderPass)
	}
	if r.pipeline == nil {
		return misuseErr(op, ErrNoPipeline)
	}
	for idx, rs := range r.sets {
		want := r.pipeline.layoutFor(idx)
		if want != nil && !want.Equal(rs.spec) {
			return misuseErr(op, fmt.Errorf("%w: set %d", ErrLayoutMismatch, idx))
		}
	}
	return nil
}
