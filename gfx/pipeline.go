package gfx

import (
	"fmt"
	"slices"
)

// MaxColorTargets is the number of simultaneous color attachments.
const MaxColorTargets = 8

type RasterizerState struct {
	CullMode    CullMode
	FrontFace   FrontFace
	FillMode    FillMode
	DepthClip   bool
	ScissorTest bool
}

// DefaultRasterizerState culls back faces with counter-clockwise front faces.
func DefaultRasterizerState() RasterizerState {
	return RasterizerState{CullMode: CullBack, FrontFace: FrontFaceCCW, DepthClip: true}
}

type StencilFaceState struct {
	Fail, DepthFail, Pass StencilOp
	Compare               CompareFunc
}

type DepthStencilState struct {
	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareFunc

	StencilTest      bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	StencilRef       uint8
	Front, Back      StencilFaceState
}

// DefaultDepthStencilState enables depth test and write with a less-than
// comparison, no stencil.
func DefaultDepthStencilState() DepthStencilState {
	return DepthStencilState{
		DepthTest:        true,
		DepthWrite:       true,
		DepthCompare:     CompareLess,
		StencilReadMask:  0xFF,
		StencilWriteMask: 0xFF,
		Front:            StencilFaceState{Compare: CompareAlways},
		Back:             StencilFaceState{Compare: CompareAlways},
	}
}

// BlendState is the blend configuration of one color target.
type BlendState struct {
	Enabled   bool
	SrcColor  BlendFactor
	DstColor  BlendFactor
	ColorOp   BlendOp
	SrcAlpha  BlendFactor
	DstAlpha  BlendFactor
	AlphaOp   BlendOp
	WriteMask ColorWriteMask
}

// DefaultBlendState disables blending and writes all channels.
func DefaultBlendState() BlendState {
	return BlendState{
		SrcColor:  BlendOne,
		DstColor:  BlendZero,
		SrcAlpha:  BlendOne,
		DstAlpha:  BlendZero,
		WriteMask: ColorWriteAll,
	}
}

// AlphaBlendState is classic non-premultiplied alpha blending.
func AlphaBlendState() BlendState {
	return BlendState{
		Enabled:   true,
		SrcColor:  BlendSrcAlpha,
		DstColor:  BlendOneMinusSrcAlpha,
		SrcAlpha:  BlendOne,
		DstAlpha:  BlendOneMinusSrcAlpha,
		WriteMask: ColorWriteAll,
	}
}

// TargetFormats are the attachment formats a pipeline renders into.
type TargetFormats struct {
	Color []PixelFormat
	Depth PixelFormat
}

// PipelineDescription is everything baked into a Pipeline.
type PipelineDescription struct {
	Shader         *Shader
	VertexLayouts  []VertexBufferLayout
	Rasterizer     RasterizerState
	DepthStencil   DepthStencilState
	Blend          []BlendState
	ResourceLayout []*ResourceSetSpecification
	TargetFormats  TargetFormats
	Topology       PrimitiveTopology
}

// LayoutFor returns the specification declared for set, or nil.
func (d *PipelineDescription) LayoutFor(set uint32) *ResourceSetSpecification {
	for _, s := range d.ResourceLayout {
		if s.Set == set {
			return s
		}
	}
	return nil
}

func (d *PipelineDescription) validate() error {
	if d.Shader == nil {
		return fmt.Errorf("pipeline has no shader")
	}
	if !d.Topology.Valid() {
		return fmt.Errorf("unsupported topology %v", d.Topology)
	}
	for i, l := range d.VertexLayouts {
		if err := l.validate(); err != nil {
			return fmt.Errorf("vertex layout %d: %w", i, err)
		}
	}
	if len(d.TargetFormats.Color) > MaxColorTargets {
		return fmt.Errorf("%d color targets, max %d", len(d.TargetFormats.Color), MaxColorTargets)
	}
	for i, f := range d.TargetFormats.Color {
		if !f.Valid() || f.IsDepth() {
			return fmt.Errorf("color target %d: unsupported format %v", i, f)
		}
	}
	if d.TargetFormats.Depth != PixelFormatUndefined && !d.TargetFormats.Depth.IsDepth() {
		return fmt.Errorf("depth target: unsupported format %v", d.TargetFormats.Depth)
	}
	if len(d.Blend) > len(d.TargetFormats.Color) && len(d.Blend) > 1 {
		return fmt.Errorf("%d blend states for %d color targets", len(d.Blend), len(d.TargetFormats.Color))
	}
	if r := d.Rasterizer; !r.CullMode.Valid() || !r.FrontFace.Valid() || !r.FillMode.Valid() {
		return fmt.Errorf("unsupported rasterizer state cull=%d front=%d fill=%d", r.CullMode, r.FrontFace, r.FillMode)
	}
	if !d.DepthStencil.DepthCompare.Valid() {
		return fmt.Errorf("unsupported depth compare %d", d.DepthStencil.DepthCompare)
	}
	for _, f := range []StencilFaceState{d.DepthStencil.Front, d.DepthStencil.Back} {
		if !f.Fail.Valid() || !f.DepthFail.Valid() || !f.Pass.Valid() || !f.Compare.Valid() {
			return fmt.Errorf("unsupported stencil state %+v", f)
		}
	}
	for i, b := range d.Blend {
		if !b.SrcColor.Valid() || !b.DstColor.Valid() || !b.SrcAlpha.Valid() || !b.DstAlpha.Valid() ||
			!b.ColorOp.Valid() || !b.AlphaOp.Valid() {
			return fmt.Errorf("blend state %d: unsupported factor or op", i)
		}
	}
	sets := map[uint32]bool{}
	for _, s := range d.ResourceLayout {
		if s == nil {
			return fmt.Errorf("nil resource set specification")
		}
		if sets[s.Set] {
			return fmt.Errorf("resource set %d declared twice", s.Set)
		}
		sets[s.Set] = true
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// BlendFor returns the blend state of color target i, defaulting when the
// description leaves it out.
func (d *PipelineDescription) BlendFor(i int) BlendState {
	switch {
	case i < len(d.Blend):
		return d.Blend[i]
	case len(d.Blend) == 1:
		return d.Blend[0]
	}
	return DefaultBlendState()
}

func (d *PipelineDescription) clone() PipelineDescription {
	c := *d
	c.VertexLayouts = make([]VertexBufferLayout, len(d.VertexLayouts))
	for i, l := range d.VertexLayouts {
		c.VertexLayouts[i] = l.clone()
	}
	c.Blend = slices.Clone(d.Blend)
	c.ResourceLayout = make([]*ResourceSetSpecification, len(d.ResourceLayout))
	for i, s := range d.ResourceLayout {
		c.ResourceLayout[i] = s.Clone()
	}
	c.TargetFormats.Color = slices.Clone(d.TargetFormats.Color)
	return c
}

// Pipeline is an immutable bundle of shader and fixed-function state.
type Pipeline struct {
	refs
	dev    *GraphicsDevice
	handle Handle
	desc   PipelineDescription
}

// GetPipelineDescription returns a copy of the description the pipeline was
// built from.
func (p *Pipeline) GetPipelineDescription() PipelineDescription { return p.desc.clone() }

// GetTopology returns the primitive topology draws resolve to while p is bound.
func (p *Pipeline) GetTopology() PrimitiveTopology { return p.desc.Topology }

func (p *Pipeline) Handle() Handle { return p.handle }

func (p *Pipeline) layoutFor(set uint32) *ResourceSetSpecification { return p.desc.LayoutFor(set) }
