package opengl

import (
	"cmp"
	"fmt"
	"slices"

	"render-hal/gfx"
)

// attrib is one vertex attribute location of a linked program.
type attrib struct {
	location  uint32
	slot      uint32
	elem      gfx.VertexElement
	stride    uint32
	instanced bool
}

type slotKey struct{ set, binding uint32 }

// slotBinding maps one resource set slot to a uniform block binding point or
// a texture unit. The program-side name is looked up on first use.
type slotBinding struct {
	name     string
	kind     gfx.BindingKind
	unit     uint32
	resolved bool
	active   bool
}

type pipeline struct {
	program uint32
	desc    *gfx.PipelineDescription
	attribs []attrib
	slots   map[slotKey]*slotBinding
}

func (b *Backend) CreatePipeline(desc *gfx.PipelineDescription, sh gfx.Handle) (gfx.Handle, error) {
	s, err := lookup(&b.shaders, "shader", sh)
	if err != nil {
		return 0, err
	}
	p := &pipeline{desc: desc, slots: map[slotKey]*slotBinding{}}

	// Locations are assigned in layout order, across all vertex buffer slots.
	var loc uint32
	for slot, l := range desc.VertexLayouts {
		for _, e := range l.Elements {
			p.attribs = append(p.attribs, attrib{
				location:  loc,
				slot:      uint32(slot),
				elem:      e,
				stride:    l.Stride,
				instanced: l.InputRate == gfx.InputRateInstance,
			})
			loc++
		}
	}
	if len(p.attribs) > maxAttribs {
		return 0, &gfx.ConfigurationError{Op: "create pipeline", Err: fmt.Errorf("%d vertex attributes, max %d", len(p.attribs), maxAttribs)}
	}

	// Binding points and texture units are numbered sequentially over the
	// sets in set order, then bindings in binding order.
	sets := slices.SortedFunc(slices.Values(desc.ResourceLayout), func(a, c *gfx.ResourceSetSpecification) int {
		return cmp.Compare(a.Set, c.Set)
	})
	var ubos, units uint32
	for _, spec := range sets {
		bindings := slices.SortedFunc(slices.Values(spec.Bindings), func(a, c gfx.ResourceBinding) int {
			return cmp.Compare(a.Binding, c.Binding)
		})
		for _, rb := range bindings {
			sb := &slotBinding{name: rb.Name, kind: rb.Kind}
			if rb.Kind == gfx.BindingUniformBuffer {
				sb.unit = ubos
				ubos++
			} else {
				sb.unit = units
				units++
			}
			p.slots[slotKey{spec.Set, rb.Binding}] = sb
		}
	}

	prog, err := b.linkProgram(s, p.attribs)
	if err != nil {
		return 0, &gfx.ConfigurationError{Op: "create pipeline", Err: fmt.Errorf("%s: %w", s.label, err)}
	}
	p.program = prog
	b.checkError("create pipeline")
	gfx.Logger().Debug("opengl: pipeline linked",
		"shader", s.label, "program", prog, "attribs", len(p.attribs), "uniformBlocks", ubos, "textureUnits", units)
	return b.pipelines.Insert(p), nil
}

func (b *Backend) linkProgram(s *shader, attribs []attrib) (uint32, error) {
	prog := b.gl.CreateProgram()
	for _, id := range s.stages {
		b.gl.AttachShader(prog, id)
	}
	for _, a := range attribs {
		b.gl.BindAttribLocation(prog, a.location, a.elem.Name)
	}
	b.gl.LinkProgram(prog)
	ok, log := b.gl.ProgramStatus(prog)
	for _, id := range s.stages {
		b.gl.DetachShader(prog, id)
	}
	if !ok {
		b.gl.DeleteProgram(prog)
		return 0, fmt.Errorf("link failed: %v", log)
	}
	return prog, nil
}

func (b *Backend) DestroyPipeline(h gfx.Handle) {
	if p, ok := b.pipelines.Remove(h); ok {
		b.gl.DeleteProgram(p.program)
	}
}

// slot returns the binding for (set, binding), resolving its name against the
// program the first time. The program must be current.
func (p *pipeline) slot(gl GL, set, binding uint32) (*slotBinding, bool) {
	sb, ok := p.slots[slotKey{set, binding}]
	if !ok {
		return nil, false
	}
	if !sb.resolved {
		sb.resolved = true
		switch sb.kind {
		case gfx.BindingUniformBuffer:
			if idx := gl.GetUniformBlockIndex(p.program, sb.name); idx != INVALID_INDEX {
				gl.UniformBlockBinding(p.program, idx, sb.unit)
				sb.active = true
			}
		case gfx.BindingSampledTexture:
			if loc := gl.GetUniformLocation(p.program, sb.name); loc >= 0 {
				gl.Uniform1i(loc, int32(sb.unit))
				sb.active = true
			}
		}
		if !sb.active {
			gfx.Logger().Debug("opengl: binding not active in program",
				"program", p.program, "set", set, "binding", binding, "name", sb.name)
		}
	}
	return sb, sb.active
}

// bind makes p current and re-applies all of its fixed-function state; GL
// keeps none of it per program.
func (p *pipeline) bind(gl GL) {
	gl.UseProgram(p.program)
	p.applyState(gl)
}

func (p *pipeline) applyState(gl GL) {
	r := p.desc.Rasterizer
	if r.CullMode == gfx.CullNone {
		gl.Disable(CULL_FACE)
	} else {
		gl.Enable(CULL_FACE)
		gl.CullFace(cullFace(r.CullMode))
	}
	gl.FrontFace(frontFace(r.FrontFace))
	if r.FillMode == gfx.FillWireframe {
		gl.PolygonMode(FRONT_AND_BACK, LINE)
	} else {
		gl.PolygonMode(FRONT_AND_BACK, FILL)
	}
	setCap(gl, DEPTH_CLAMP, !r.DepthClip)
	setCap(gl, SCISSOR_TEST, r.ScissorTest)

	ds := p.desc.DepthStencil
	setCap(gl, DEPTH_TEST, ds.DepthTest)
	gl.DepthFunc(compareFunc(ds.DepthCompare))
	gl.DepthMask(ds.DepthWrite)
	setCap(gl, STENCIL_TEST, ds.StencilTest)
	faces := [2]uint32{FRONT, BACK}
	for i, f := range [2]gfx.StencilFaceState{ds.Front, ds.Back} {
		gl.StencilFuncSeparate(faces[i], compareFunc(f.Compare), int32(ds.StencilRef), uint32(ds.StencilReadMask))
		gl.StencilOpSeparate(faces[i], stencilOp(f.Fail), stencilOp(f.DepthFail), stencilOp(f.Pass))
	}
	gl.StencilMask(uint32(ds.StencilWriteMask))

	for i := range max(len(p.desc.TargetFormats.Color), 1) {
		bs := p.desc.BlendFor(i)
		buf := uint32(i)
		if bs.Enabled {
			gl.Enablei(BLEND, buf)
			gl.BlendFuncSeparatei(buf, blendFactor(bs.SrcColor), blendFactor(bs.DstColor), blendFactor(bs.SrcAlpha), blendFactor(bs.DstAlpha))
			gl.BlendEquationSeparatei(buf, blendOp(bs.ColorOp), blendOp(bs.AlphaOp))
		} else {
			gl.Disablei(BLEND, buf)
		}
		m := bs.WriteMask
		gl.ColorMaski(buf, m&gfx.ColorWriteRed != 0, m&gfx.ColorWriteGreen != 0, m&gfx.ColorWriteBlue != 0, m&gfx.ColorWriteAlpha != 0)
	}
}

func setCap(gl GL, state uint32, on bool) {
	if on {
		gl.Enable(state)
	} else {
		gl.Disable(state)
	}
}
