package opengl

import (
	"fmt"

	"render-hal/gfx"
)

// resourceSet only records writes. GL has no descriptor objects, so the
// buffers and textures are bound at draw time against the current program.
type resourceSet struct {
	spec   *gfx.ResourceSetSpecification
	writes map[uint32]gfx.ResourceWrite
}

func (b *Backend) CreateResourceSet(spec *gfx.ResourceSetSpecification) (gfx.Handle, error) {
	return b.sets.Insert(&resourceSet{spec: spec, writes: map[uint32]gfx.ResourceWrite{}}), nil
}

func (b *Backend) WriteResourceSet(h gfx.Handle, slot uint32, w gfx.ResourceWrite) error {
	rs, err := lookup(&b.sets, "resource set", h)
	if err != nil {
		return err
	}
	if _, ok := rs.spec.Binding(slot); !ok {
		return &gfx.ResourceMisuseError{Op: "opengl write resource set", Err: fmt.Errorf("set %d has no binding %d", rs.spec.Set, slot)}
	}
	rs.writes[slot] = w
	return nil
}

func (b *Backend) DestroyResourceSet(h gfx.Handle) {
	b.sets.Remove(h)
}

// bindSet binds every written slot of rs that the current pipeline uses.
func (b *Backend) bindSet(p *pipeline, rs *resourceSet) {
	for slot, w := range rs.writes {
		sb, ok := p.slot(b.gl, rs.spec.Set, slot)
		if !ok {
			continue
		}
		switch w.Kind {
		case gfx.BindingUniformBuffer:
			buf, ok := b.buffers.Get(w.Buffer)
			if !ok {
				gfx.Logger().Warn("opengl: uniform buffer gone", "set", rs.spec.Set, "binding", slot)
				continue
			}
			b.gl.BindBufferBase(UNIFORM_BUFFER, sb.unit, buf.id)
		case gfx.BindingSampledTexture:
			tex, ok := b.textures.Get(w.Texture)
			s, sok := b.samplers.Get(w.Sampler)
			if !ok || !sok {
				gfx.Logger().Warn("opengl: texture or sampler gone", "set", rs.spec.Set, "binding", slot)
				continue
			}
			b.gl.ActiveTexture(TEXTURE0 + sb.unit)
			b.gl.BindTexture(TEXTURE_2D, tex.id)
			b.gl.BindSampler(sb.unit, s.id)
		}
	}
}
