package gfx

import (
	"fmt"
	"slices"
)

// CommandListState is a step of the command list life cycle.
type CommandListState uint8

const (
	CommandListIdle CommandListState = iota
	CommandListRecording
	CommandListRecorded
	CommandListSubmitted
)

func (s CommandListState) String() string {
	switch s {
	case CommandListIdle:
		return "idle"
	case CommandListRecording:
		return "recording"
	case CommandListRecorded:
		return "recorded"
	case CommandListSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("CommandListState(%d)", uint8(s))
}

// CommandList records drawing operations for later replay by
// GraphicsDevice.SubmitCommandList. A command list may be recorded on any
// goroutine as long as no other goroutine touches it meanwhile.
//
// Every object a command references is retained until the next Begin or
// Release, so it outlives the caller's own reference if necessary.
type CommandList struct {
	dev   *GraphicsDevice
	state CommandListState
	cmds  []Command
	held  []refCounted

	// recording-time view, used for early validation
	pipeline *Pipeline
	hasIndex bool
	inPass   bool
	closed   bool
}

func (cl *CommandList) State() CommandListState { return cl.state }

// Len returns the number of recorded commands.
func (cl *CommandList) Len() int { return len(cl.cmds) }

// Commands returns a copy of the recorded commands.
func (cl *CommandList) Commands() []Command { return slices.Clone(cl.cmds) }

// Begin discards the previous recording and starts a new one. It is legal
// only on a fresh or submitted list.
func (cl *CommandList) Begin() error {
	if cl.closed {
		return misuseErr("command list begin", ErrReleased)
	}
	if cl.state != CommandListIdle && cl.state != CommandListSubmitted {
		return misuseErr("command list begin", fmt.Errorf("%w: Begin while %v", ErrInvalidState, cl.state))
	}
	cl.reset()
	cl.state = CommandListRecording
	return nil
}

// End finishes recording. No GPU work happens here.
func (cl *CommandList) End() error {
	if cl.state != CommandListRecording {
		return misuseErr("command list end", fmt.Errorf("%w: End while %v", ErrInvalidState, cl.state))
	}
	if cl.inPass {
		return misuseErr("command list end", fmt.Errorf("%w: render pass still open", ErrInvalidState))
	}
	cl.state = CommandListRecorded
	return nil
}

// Release drops every reference held by the list. The list cannot be used
// afterwards.
func (cl *CommandList) Release() {
	cl.reset()
	cl.closed = true
	cl.state = CommandListIdle
}

func (cl *CommandList) reset() {
	for _, o := range cl.held {
		o.Release()
	}
	clear(cl.held)
	cl.held = cl.held[:0]
	clear(cl.cmds)
	cl.cmds = cl.cmds[:0]
	cl.pipeline = nil
	cl.hasIndex = false
	cl.inPass = false
}

func (cl *CommandList) recording(op string) error {
	if cl.state != CommandListRecording {
		return misuseErr(op, fmt.Errorf("%w: %v", ErrInvalidState, cl.state))
	}
	return nil
}

func (cl *CommandList) recordingInPass(op string) error {
	if err := cl.recording(op); err != nil {
		return err
	}
	if !cl.inPass {
		return misuseErr(op, ErrNoRenderPass)
	}
	return nil
}

func (cl *CommandList) hold(op string, o refCounted) error {
	if o.released() {
		return misuseErr(op, ErrReleased)
	}
	o.Retain()
	cl.held = append(cl.held, o)
	return nil
}

func (cl *CommandList) BeginRenderPass(pass *RenderPass) error {
	const op = "begin render pass"
	if err := cl.recording(op); err != nil {
		return err
	}
	if pass == nil {
		return misuseErr(op, fmt.Errorf("nil render pass"))
	}
	if cl.inPass {
		return misuseErr(op, fmt.Errorf("%w: render pass already open", ErrInvalidState))
	}
	if err := cl.hold(op, pass); err != nil {
		return err
	}
	cl.inPass = true
	cl.cmds = append(cl.cmds, CmdBeginRenderPass{Pass: pass})
	return nil
}

func (cl *CommandList) EndRenderPass() error {
	const op = "end render pass"
	if err := cl.recording(op); err != nil {
		return err
	}
	if !cl.inPass {
		return misuseErr(op, fmt.Errorf("%w: no render pass open", ErrInvalidState))
	}
	cl.inPass = false
	cl.cmds = append(cl.cmds, CmdEndRenderPass{})
	return nil
}

// SetViewport and SetScissor are relative to the open render pass, which
// resets both to its full target.
func (cl *CommandList) SetViewport(v Viewport) error {
	if err := cl.recordingInPass("set viewport"); err != nil {
		return err
	}
	cl.cmds = append(cl.cmds, CmdSetViewport{Viewport: v})
	return nil
}

func (cl *CommandList) SetScissor(s Scissor) error {
	if err := cl.recordingInPass("set scissor"); err != nil {
		return err
	}
	cl.cmds = append(cl.cmds, CmdSetScissor{Scissor: s})
	return nil
}

func (cl *CommandList) SetPipeline(p *Pipeline) error {
	const op = "set pipeline"
	if err := cl.recording(op); err != nil {
		return err
	}
	if p == nil {
		return misuseErr(op, ErrNoPipeline)
	}
	if err := cl.hold(op, p); err != nil {
		return err
	}
	cl.pipeline = p
	cl.cmds = append(cl.cmds, CmdSetPipeline{Pipeline: p})
	return nil
}

func (cl *CommandList) SetVertexBuffer(slot uint32, b *Buffer, offset uint64) error {
	const op = "set vertex buffer"
	if err := cl.recording(op); err != nil {
		return err
	}
	if b == nil {
		return misuseErr(op, ErrReleased)
	}
	if b.desc.Kind != BufferKindVertex {
		return misuseErr(op, fmt.Errorf("%v buffer bound as vertex buffer", b.desc.Kind))
	}
	if offset >= b.desc.SizeInBytes {
		return misuseErr(op, fmt.Errorf("offset %d beyond %d byte buffer", offset, b.desc.SizeInBytes))
	}
	if err := cl.hold(op, b); err != nil {
		return err
	}
	cl.cmds = append(cl.cmds, CmdSetVertexBuffer{Slot: slot, Buffer: b, Offset: offset})
	return nil
}

func (cl *CommandList) SetIndexBuffer(b *Buffer, format IndexFormat, offset uint64) error {
	const op = "set index buffer"
	if err := cl.recording(op); err != nil {
		return err
	}
	if !format.Valid() {
		return configErr(op, fmt.Errorf("unsupported index format %v", format))
	}
	if b == nil {
		return misuseErr(op, ErrReleased)
	}
	if b.desc.Kind != BufferKindIndex {
		return misuseErr(op, fmt.Errorf("%v buffer bound as index buffer", b.desc.Kind))
	}
	if offset%uint64(format.Size()) != 0 {
		return misuseErr(op, fmt.Errorf("offset %d not aligned to %v", offset, format))
	}
	if err := cl.hold(op, b); err != nil {
		return err
	}
	cl.hasIndex = true
	cl.cmds = append(cl.cmds, CmdSetIndexBuffer{Buffer: b, Format: format, Offset: offset})
	return nil
}

// SetResourceSet makes the set's writes visible to the following draws.
// When a pipeline is already recorded the set must match its layout.
func (cl *CommandList) SetResourceSet(rs *ResourceSet) error {
	const op = "set resource set"
	if err := cl.recording(op); err != nil {
		return err
	}
	if rs == nil {
		return misuseErr(op, ErrReleased)
	}
	if cl.pipeline != nil && !cl.pipeline.layoutFor(rs.spec.Set).Equal(rs.spec) {
		return misuseErr(op, fmt.Errorf("%w: set %d", ErrLayoutMismatch, rs.spec.Set))
	}
	if err := cl.hold(op, rs); err != nil {
		return err
	}
	cl.cmds = append(cl.cmds, CmdSetResourceSet{Set: rs})
	return nil
}

// DrawElements draws count vertices starting at first.
func (cl *CommandList) DrawElements(first, count uint32) error {
	return cl.DrawInstanced(first, count, 0, 1)
}

// DrawInstanced draws instanceCount instances of count vertices.
func (cl *CommandList) DrawInstanced(first, count, firstInstance, instanceCount uint32) error {
	const op = "draw"
	if err := cl.recording(op); err != nil {
		return err
	}
	if cl.pipeline == nil {
		return misuseErr(op, ErrNoPipeline)
	}
	if !cl.inPass {
		return misuseErr(op, ErrNoRenderPass)
	}
	cl.cmds = append(cl.cmds, CmdDrawElements{
		First:         first,
		Count:         count,
		FirstInstance: firstInstance,
		InstanceCount: instanceCount,
	})
	return nil
}

// DrawIndexed draws indexCount indices of the bound index buffer.
func (cl *CommandList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	const op = "draw indexed"
	if err := cl.recording(op); err != nil {
		return err
	}
	if cl.pipeline == nil {
		return misuseErr(op, ErrNoPipeline)
	}
	if !cl.hasIndex {
		return misuseErr(op, fmt.Errorf("no index buffer bound"))
	}
	if !cl.inPass {
		return misuseErr(op, ErrNoRenderPass)
	}
	cl.cmds = append(cl.cmds, CmdDrawIndexed{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
	return nil
}

// UpdateUniformBuffer records a write of data into a dynamic uniform buffer.
// The data is copied; the write lands between the surrounding draws.
func (cl *CommandList) UpdateUniformBuffer(b *Buffer, offset uint64, data []byte) error {
	const op = "update uniform buffer"
	if err := cl.recording(op); err != nil {
		return err
	}
	if b == nil {
		return misuseErr(op, ErrReleased)
	}
	if b.desc.Kind != BufferKindUniform {
		return misuseErr(op, fmt.Errorf("%v buffer is not a uniform buffer", b.desc.Kind))
	}
	if err := b.checkWritable(op, offset, len(data)); err != nil {
		return err
	}
	if err := cl.hold(op, b); err != nil {
		return err
	}
	cl.cmds = append(cl.cmds, CmdUpdateUniformBuffer{Buffer: b, Offset: offset, Data: slices.Clone(data)})
	return nil
}
