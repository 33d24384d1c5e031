package d3d12

import (
	"fmt"

	"render-hal/gfx"
)

// shaderModel is the HLSL profile suffix. 5.1 is the first with register
// spaces, which map resource sets.
const shaderModel = "5_1"

// shader holds stage bytecode. Pipelines bake it into their PSO.
type shader struct {
	label string
	vs    []byte
	ps    []byte
}

func (b *Backend) CreateShader(desc gfx.ShaderDescription) (gfx.Handle, error) {
	s := &shader{label: desc.Label}
	for _, m := range desc.Modules {
		code := m.Source
		if m.Format == gfx.ShaderFormatHLSL {
			entry := m.EntryPoint
			if entry == "" {
				entry = "main"
			}
			var err error
			code, err = b.dev.CompileShader(m.Source, entry, stagePrefix(m.Stage)+"_"+shaderModel)
			if err != nil {
				return 0, &gfx.ConfigurationError{Op: "compile shader", Err: fmt.Errorf("%s %v: %w", desc.Label, m.Stage, err)}
			}
		}
		switch m.Stage {
		case gfx.StageVertex:
			s.vs = code
		case gfx.StageFragment:
			s.ps = code
		}
	}
	gfx.Logger().Debug("d3d12: shader compiled", "label", desc.Label, "vs", len(s.vs), "ps", len(s.ps))
	return b.shaders.Insert(s), nil
}

func stagePrefix(s gfx.ShaderStage) string {
	if s == gfx.StageFragment {
		return "ps"
	}
	return "vs"
}

func (b *Backend) DestroyShader(h gfx.Handle) {
	b.shaders.Remove(h)
}
