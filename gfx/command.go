package gfx

// Command is one recorded operation of a CommandList. The set of command
// types is closed; the device interprets them with a type switch.
type Command interface {
	command()
}

type CmdBeginRenderPass struct{ Pass *RenderPass }

type CmdEndRenderPass struct{}

type CmdSetViewport struct{ Viewport Viewport }

type CmdSetScissor struct{ Scissor Scissor }

type CmdSetPipeline struct{ Pipeline *Pipeline }

type CmdSetVertexBuffer struct {
	Slot   uint32
	Buffer *Buffer
	Offset uint64
}

type CmdSetIndexBuffer struct {
	Buffer *Buffer
	Format IndexFormat
	Offset uint64
}

type CmdSetResourceSet struct{ Set *ResourceSet }

// CmdDrawElements draws non-indexed vertices. Topology comes from the
// pipeline bound at replay.
type CmdDrawElements struct {
	First, Count                 uint32
	FirstInstance, InstanceCount uint32
}

type CmdDrawIndexed struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// CmdUpdateUniformBuffer writes Data into Buffer at its position in the
// command stream.
type CmdUpdateUniformBuffer struct {
	Buffer *Buffer
	Offset uint64
	Data   []byte
}

func (CmdBeginRenderPass) command()     {}
func (CmdEndRenderPass) command()       {}
func (CmdSetViewport) command()         {}
func (CmdSetScissor) command()          {}
func (CmdSetPipeline) command()         {}
func (CmdSetVertexBuffer) command()     {}
func (CmdSetIndexBuffer) command()      {}
func (CmdSetResourceSet) command()      {}
func (CmdDrawElements) command()        {}
func (CmdDrawIndexed) command()         {}
func (CmdUpdateUniformBuffer) command() {}
