package d3d12

import (
	"cmp"
	"fmt"
	"slices"

	"render-hal/gfx"
)

// vertexSemantic names every vertex input. Attributes take consecutive
// semantic indices in layout order, the same numbering GL uses for
// attribute locations.
const vertexSemantic = "TEXCOORD"

// tables are the root parameter indices of one resource set, -1 when the
// set has no descriptors of that heap type.
type tables struct {
	views, samplers int
}

type pipeline struct {
	desc   *gfx.PipelineDescription
	root   Object
	pso    Object
	params map[uint32]tables
}

func (b *Backend) CreatePipeline(desc *gfx.PipelineDescription, sh gfx.Handle) (gfx.Handle, error) {
	s, err := lookup(&b.shaders, "shader", sh)
	if err != nil {
		return 0, err
	}
	p := &pipeline{desc: desc, params: map[uint32]tables{}}
	rsDesc := p.rootSignature()
	if p.root, err = b.dev.CreateRootSignature(rsDesc); err != nil {
		return 0, &gfx.ConfigurationError{Op: "create pipeline", Err: fmt.Errorf("%s: root signature: %w", s.label, err)}
	}

	psoDesc, err := p.stateDesc(s)
	if err != nil {
		p.root.Release()
		return 0, err
	}
	if p.pso, err = b.dev.CreatePipelineState(psoDesc); err != nil {
		p.root.Release()
		return 0, &gfx.ConfigurationError{Op: "create pipeline", Err: fmt.Errorf("%s: pipeline state: %w", s.label, err)}
	}
	gfx.Logger().Debug("d3d12: pipeline created",
		"shader", s.label, "inputs", len(psoDesc.InputLayout), "rootParams", len(rsDesc.Parameters))
	return b.pipelines.Insert(p), nil
}

// rootSignature lays out one views table and one sampler table per set, in
// set order. Register numbers are binding numbers and the register space is
// the set index; a texture's sampler shares its binding number.
func (p *pipeline) rootSignature() *RootSignatureDesc {
	sets := slices.SortedFunc(slices.Values(p.desc.ResourceLayout), func(a, c *gfx.ResourceSetSpecification) int {
		return cmp.Compare(a.Set, c.Set)
	})
	rs := &RootSignatureDesc{}
	for _, spec := range sets {
		var views, samplers RootParameter
		for _, rb := range tableOrder(spec) {
			r := DescriptorRange{Type: RangeCBV, Count: 1, Register: rb.Binding, Space: spec.Set, Offset: uint32(len(views.Ranges))}
			if rb.Kind == gfx.BindingSampledTexture {
				r.Type = RangeSRV
				samplers.Ranges = append(samplers.Ranges, DescriptorRange{
					Type: RangeSampler, Count: 1, Register: rb.Binding, Space: spec.Set, Offset: uint32(len(samplers.Ranges)),
				})
			}
			views.Ranges = append(views.Ranges, r)
		}
		t := tables{views: -1, samplers: -1}
		if len(views.Ranges) > 0 {
			t.views = len(rs.Parameters)
			rs.Parameters = append(rs.Parameters, views)
		}
		if len(samplers.Ranges) > 0 {
			t.samplers = len(rs.Parameters)
			rs.Parameters = append(rs.Parameters, samplers)
		}
		p.params[spec.Set] = t
	}
	return rs
}

func (p *pipeline) stateDesc(s *shader) (*PipelineStateDesc, error) {
	d := p.desc
	out := &PipelineStateDesc{
		RootSignature: p.root,
		VS:            s.vs,
		PS:            s.ps,
		Topology:      topologyType(d.Topology),
		Rasterizer: RasterizerDesc{
			Fill:                  fillMode(d.Rasterizer.FillMode),
			Cull:                  cullMode(d.Rasterizer.CullMode),
			FrontCounterClockwise: d.Rasterizer.FrontFace == gfx.FrontFaceCCW,
			DepthClip:             d.Rasterizer.DepthClip,
		},
	}

	var semantic uint32
	for slot, l := range d.VertexLayouts {
		for _, e := range l.Elements {
			f, err := vertexFormat(e)
			if err != nil {
				return nil, err
			}
			out.InputLayout = append(out.InputLayout, InputElement{
				SemanticName:  vertexSemantic,
				SemanticIndex: semantic,
				Format:        f,
				Slot:          uint32(slot),
				Offset:        e.Offset,
				PerInstance:   l.InputRate == gfx.InputRateInstance,
			})
			semantic++
		}
	}

	ds := d.DepthStencil
	out.DepthStencil = DepthStencilDesc{
		DepthEnable:      ds.DepthTest,
		DepthWrite:       ds.DepthWrite,
		DepthFunc:        comparison(ds.DepthCompare),
		StencilEnable:    ds.StencilTest,
		StencilReadMask:  ds.StencilReadMask,
		StencilWriteMask: ds.StencilWriteMask,
		Front:            stencilFace(ds.Front),
		Back:             stencilFace(ds.Back),
	}

	for i, cf := range d.TargetFormats.Color {
		f, err := viewFormat(cf)
		if err != nil {
			return nil, err
		}
		out.RTVFormats = append(out.RTVFormats, f)
		bs := d.BlendFor(i)
		out.Blend = append(out.Blend, RenderTargetBlend{
			Enable:    bs.Enabled,
			Src:       blendFactor(bs.SrcColor),
			Dst:       blendFactor(bs.DstColor),
			Op:        blendOp(bs.ColorOp),
			SrcAlpha:  blendFactor(bs.SrcAlpha),
			DstAlpha:  blendFactor(bs.DstAlpha),
			OpAlpha:   blendOp(bs.AlphaOp),
			WriteMask: uint8(bs.WriteMask),
		})
	}
	f, err := viewFormat(d.TargetFormats.Depth)
	if err != nil {
		return nil, err
	}
	out.DSVFormat = f
	return out, nil
}

func stencilFace(f gfx.StencilFaceState) StencilFace {
	return StencilFace{
		Fail:      stencilOp(f.Fail),
		DepthFail: stencilOp(f.DepthFail),
		Pass:      stencilOp(f.Pass),
		Func:      comparison(f.Compare),
	}
}

func (b *Backend) DestroyPipeline(h gfx.Handle) {
	if p, ok := b.pipelines.Remove(h); ok {
		b.release(p.pso)
		b.release(p.root)
	}
}
