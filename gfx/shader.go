package gfx

import (
	"fmt"
	"slices"
)

// ShaderModule is one stage of a shader program, as produced by the shader
// collaborator.
type ShaderModule struct {
	Stage  ShaderStage
	Format ShaderFormat
	// Source is text for GLSL and HLSL, bytecode for DXBC.
	Source     []byte
	EntryPoint string
}

// ShaderDescription groups the stages of one program.
type ShaderDescription struct {
	Label   string
	Modules []ShaderModule
}

// Module returns the module for stage, if present.
func (d ShaderDescription) Module(stage ShaderStage) (ShaderModule, bool) {
	for _, m := range d.Modules {
		if m.Stage == stage {
			return m, true
		}
	}
	return ShaderModule{}, false
}

func (d ShaderDescription) validate(accepted []ShaderFormat) error {
	if _, ok := d.Module(StageVertex); !ok {
		return fmt.Errorf("shader %q has no vertex stage", d.Label)
	}
	seen := map[ShaderStage]bool{}
	for _, m := range d.Modules {
		if m.Stage != StageVertex && m.Stage != StageFragment {
			return fmt.Errorf("shader %q: unsupported stage %v", d.Label, m.Stage)
		}
		if seen[m.Stage] {
			return fmt.Errorf("shader %q: duplicate %v stage", d.Label, m.Stage)
		}
		seen[m.Stage] = true
		if !slices.Contains(accepted, m.Format) {
			return fmt.Errorf("shader %q: %v stage is %v, backend accepts %v", d.Label, m.Stage, m.Format, accepted)
		}
		if len(m.Source) == 0 {
			return fmt.Errorf("shader %q: empty %v stage", d.Label, m.Stage)
		}
	}
	return nil
}

// Shader is a compiled (or compilable) GPU program.
type Shader struct {
	refs
	dev    *GraphicsDevice
	handle Handle
	desc   ShaderDescription
}

func (s *Shader) Description() ShaderDescription { return s.desc }
func (s *Shader) Handle() Handle                 { return s.handle }
