package opengl

import (
	"fmt"

	"render-hal/gfx"
)

// shader holds the compiled stage objects of one gfx.Shader. Pipelines link
// their own program from them.
type shader struct {
	label  string
	stages []uint32
}

func (b *Backend) CreateShader(desc gfx.ShaderDescription) (gfx.Handle, error) {
	s := &shader{label: desc.Label}
	for _, m := range desc.Modules {
		id, err := b.compileShader(string(m.Source), shaderType(m.Stage))
		if err != nil {
			b.deleteStages(s)
			return 0, &gfx.ConfigurationError{Op: "compile shader", Err: fmt.Errorf("%s %v: %w", desc.Label, m.Stage, err)}
		}
		s.stages = append(s.stages, id)
	}
	gfx.Logger().Debug("opengl: shader compiled", "label", desc.Label, "stages", len(s.stages))
	return b.shaders.Insert(s), nil
}

func (b *Backend) compileShader(src string, xtype uint32) (uint32, error) {
	id := b.gl.CreateShader(xtype)
	b.gl.ShaderSource(id, src)
	b.gl.CompileShader(id)
	if ok, log := b.gl.ShaderStatus(id); !ok {
		b.gl.DeleteShader(id)
		return 0, fmt.Errorf("compile failed: %v", log)
	}
	return id, nil
}

func (b *Backend) deleteStages(s *shader) {
	for _, id := range s.stages {
		b.gl.DeleteShader(id)
	}
	s.stages = nil
}

func (b *Backend) DestroyShader(h gfx.Handle) {
	if s, ok := b.shaders.Remove(h); ok {
		b.deleteStages(s)
	}
}
