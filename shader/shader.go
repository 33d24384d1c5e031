// Package shader turns WGSL programs into gfx shader descriptions. Parsing,
// validation and HLSL generation are done by naga; the resource layout and
// vertex inputs are reflected from the parsed module so pipelines can be
// described without repeating them by hand.
//
// WGSL declares textures and samplers as separate bindings while gfx binds
// them as one combined slot. A sampler pairs with the texture of the same
// group that has the closest lower binding number, and the pair takes the
// texture's binding.
package shader

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"

	"render-hal/gfx"
)

// Input is one vertex shader input.
type Input struct {
	Name       string
	Location   uint32
	Type       gfx.ElementType
	Components uint32
}

// Program is a parsed and validated WGSL program with one vertex and one
// fragment entry point.
type Program struct {
	Label          string
	VertexEntry    string
	FragmentEntry  string
	Inputs         []Input
	Layout         []*gfx.ResourceSetSpecification
	module         *ir.Module
	samplerTargets map[ir.ResourceBinding]uint32
}

// Compile parses and validates source and reflects its interface.
func Compile(label, source string) (*Program, error) {
	p, err := compile(label, source)
	if err != nil {
		return nil, &gfx.ConfigurationError{Op: "compile shader " + label, Err: err}
	}
	gfx.Logger().Debug("shader: compiled", "label", label, "inputs", len(p.Inputs), "sets", len(p.Layout))
	return p, nil
}

func compile(label, source string) (*Program, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, err
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, err
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("validation failed: %w", &verrs[0])
	}

	p := &Program{Label: label, module: module, samplerTargets: map[ir.ResourceBinding]uint32{}}
	for _, ep := range module.EntryPoints {
		switch ep.Stage {
		case ir.StageVertex:
			if p.VertexEntry != "" {
				return nil, fmt.Errorf("more than one vertex entry point (%s, %s)", p.VertexEntry, ep.Name)
			}
			p.VertexEntry = ep.Name
			if p.Inputs, err = p.reflectInputs(&module.Functions[ep.Function]); err != nil {
				return nil, err
			}
		case ir.StageFragment:
			if p.FragmentEntry != "" {
				return nil, fmt.Errorf("more than one fragment entry point (%s, %s)", p.FragmentEntry, ep.Name)
			}
			p.FragmentEntry = ep.Name
		}
	}
	if p.VertexEntry == "" {
		return nil, errors.New("no vertex entry point")
	}
	if err := p.reflectLayout(); err != nil {
		return nil, err
	}
	return p, nil
}

// ── Reflection ──────────────────────────────────────────────────────────────

func (p *Program) inner(h ir.TypeHandle) ir.TypeInner {
	if int(h) >= len(p.module.Types) {
		return nil
	}
	t := p.module.Types[h].Inner
	if ptr, ok := t.(ir.PointerType); ok {
		return p.inner(ptr.Base)
	}
	return t
}

func (p *Program) reflectInputs(fn *ir.Function) ([]Input, error) {
	var inputs []Input
	add := func(name string, binding *ir.Binding, th ir.TypeHandle) error {
		if binding == nil {
			return nil
		}
		loc, ok := (*binding).(ir.LocationBinding)
		if !ok {
			return nil
		}
		in := Input{Name: name, Location: loc.Location}
		var scalar ir.ScalarType
		switch t := p.inner(th).(type) {
		case ir.ScalarType:
			scalar, in.Components = t, 1
		case ir.VectorType:
			scalar, in.Components = t.Scalar, uint32(t.Size)
		default:
			return fmt.Errorf("vertex input %q has unsupported type %T", name, t)
		}
		switch {
		case scalar.Width != 4:
			return fmt.Errorf("vertex input %q must use 32-bit components", name)
		case scalar.Kind == ir.ScalarFloat:
			in.Type = gfx.ElementFloat32
		case scalar.Kind == ir.ScalarSint:
			in.Type = gfx.ElementInt32
		case scalar.Kind == ir.ScalarUint:
			in.Type = gfx.ElementUint32
		default:
			return fmt.Errorf("vertex input %q has unsupported scalar kind", name)
		}
		inputs = append(inputs, in)
		return nil
	}

	for _, arg := range fn.Arguments {
		if st, ok := p.inner(arg.Type).(ir.StructType); ok && arg.Binding == nil {
			for _, m := range st.Members {
				if err := add(m.Name, m.Binding, m.Type); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := add(arg.Name, arg.Binding, arg.Type); err != nil {
			return nil, err
		}
	}

	slices.SortFunc(inputs, func(a, b Input) int { return cmp.Compare(a.Location, b.Location) })
	for i, in := range inputs {
		if in.Location != uint32(i) {
			return nil, fmt.Errorf("vertex input locations must be contiguous from 0, %q is at %d", in.Name, in.Location)
		}
	}
	return inputs, nil
}

type sampledGlobal struct {
	name    string
	binding ir.ResourceBinding
}

func (p *Program) reflectLayout() error {
	sets := map[uint32]*gfx.ResourceSetSpecification{}
	set := func(g uint32) *gfx.ResourceSetSpecification {
		if s, ok := sets[g]; ok {
			return s
		}
		s := &gfx.ResourceSetSpecification{Set: g}
		sets[g] = s
		return s
	}

	var textures, samplers []sampledGlobal
	for _, g := range p.module.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		switch g.Space {
		case ir.SpaceUniform:
			st, ok := p.inner(g.Type).(ir.StructType)
			if !ok {
				return fmt.Errorf("uniform %q must be a struct", g.Name)
			}
			s := set(g.Binding.Group)
			s.Bindings = append(s.Bindings, gfx.ResourceBinding{
				Name: g.Name, Binding: g.Binding.Binding, Kind: gfx.BindingUniformBuffer, Size: uint64(st.Span),
			})
		case ir.SpaceHandle:
			switch t := p.inner(g.Type).(type) {
			case ir.ImageType:
				if t.Dim != ir.Dim2D || t.Arrayed || t.Multisampled || t.Class == ir.ImageClassStorage {
					return fmt.Errorf("texture %q: only sampled 2D textures are supported", g.Name)
				}
				textures = append(textures, sampledGlobal{g.Name, *g.Binding})
			case ir.SamplerType:
				samplers = append(samplers, sampledGlobal{g.Name, *g.Binding})
			}
		case ir.SpaceStorage:
			return fmt.Errorf("storage buffer %q is not supported", g.Name)
		}
	}

	paired := map[ir.ResourceBinding]string{}
	for _, smp := range samplers {
		tex, ok := pairTexture(textures, smp.binding)
		if !ok {
			return fmt.Errorf("sampler %q has no texture below binding %d in group %d", smp.name, smp.binding.Binding, smp.binding.Group)
		}
		if other, dup := paired[tex.binding]; dup {
			return fmt.Errorf("samplers %q and %q both pair with texture %q", other, smp.name, tex.name)
		}
		paired[tex.binding] = smp.name
		p.samplerTargets[smp.binding] = tex.binding.Binding
	}
	for _, tex := range textures {
		if _, ok := paired[tex.binding]; !ok {
			return fmt.Errorf("texture %q has no sampler", tex.name)
		}
		s := set(tex.binding.Group)
		s.Bindings = append(s.Bindings, gfx.ResourceBinding{
			Name: tex.name, Binding: tex.binding.Binding, Kind: gfx.BindingSampledTexture,
		})
	}

	for _, s := range sets {
		slices.SortFunc(s.Bindings, func(a, b gfx.ResourceBinding) int { return cmp.Compare(a.Binding, b.Binding) })
		if err := s.Validate(); err != nil {
			return err
		}
		p.Layout = append(p.Layout, s)
	}
	slices.SortFunc(p.Layout, func(a, b *gfx.ResourceSetSpecification) int { return cmp.Compare(a.Set, b.Set) })
	return nil
}

func pairTexture(textures []sampledGlobal, at ir.ResourceBinding) (sampledGlobal, bool) {
	var best sampledGlobal
	found := false
	for _, t := range textures {
		if t.binding.Group != at.Group || t.binding.Binding >= at.Binding {
			continue
		}
		if !found || t.binding.Binding > best.binding.Binding {
			best, found = t, true
		}
	}
	return best, found
}

// VertexLayout returns a single interleaved buffer layout holding every
// vertex input in location order.
func (p *Program) VertexLayout() gfx.VertexBufferLayout {
	var l gfx.VertexBufferLayout
	for _, in := range p.Inputs {
		l.Add(in.Name, in.Type, in.Components)
	}
	return l
}

// ResourceSet returns the reflected layout of set, or nil.
func (p *Program) ResourceSet(set uint32) *gfx.ResourceSetSpecification {
	for _, s := range p.Layout {
		if s.Set == set {
			return s
		}
	}
	return nil
}

// ── HLSL ────────────────────────────────────────────────────────────────────

// bindingMap assigns register = binding and space = group. Samplers take
// their texture's register.
func (p *Program) bindingMap() map[hlsl.ResourceBinding]hlsl.BindTarget {
	m := map[hlsl.ResourceBinding]hlsl.BindTarget{}
	for _, g := range p.module.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		reg := g.Binding.Binding
		if tex, ok := p.samplerTargets[*g.Binding]; ok {
			reg = tex
		}
		m[hlsl.ResourceBinding{Group: g.Binding.Group, Binding: g.Binding.Binding}] = hlsl.BindTarget{
			Space: uint8(g.Binding.Group), Register: reg,
		}
	}
	return m
}

func (p *Program) hlslStage(stage gfx.ShaderStage, entry string) (gfx.ShaderModule, error) {
	opts := hlsl.DefaultOptions()
	opts.BindingMap = p.bindingMap()
	opts.FakeMissingBindings = false
	opts.EntryPoint = entry
	code, info, err := hlsl.Compile(p.module, opts)
	if err != nil {
		return gfx.ShaderModule{}, fmt.Errorf("%s entry %s: %w", stage, entry, err)
	}
	if info != nil {
		if name, ok := info.EntryPointNames[entry]; ok {
			entry = name
		}
	}
	return gfx.ShaderModule{Stage: stage, Format: gfx.ShaderFormatHLSL, Source: []byte(code), EntryPoint: entry}, nil
}

// HLSL generates Shader Model 5.1 source for the D3D12 backend, one module
// per stage.
func (p *Program) HLSL() (gfx.ShaderDescription, error) {
	desc := gfx.ShaderDescription{Label: p.Label}
	vs, err := p.hlslStage(gfx.StageVertex, p.VertexEntry)
	if err != nil {
		return desc, &gfx.ConfigurationError{Op: "translate shader " + p.Label, Err: err}
	}
	desc.Modules = append(desc.Modules, vs)
	if p.FragmentEntry != "" {
		fs, err := p.hlslStage(gfx.StageFragment, p.FragmentEntry)
		if err != nil {
			return desc, &gfx.ConfigurationError{Op: "translate shader " + p.Label, Err: err}
		}
		desc.Modules = append(desc.Modules, fs)
	}
	return desc, nil
}
