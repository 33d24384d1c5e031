package gfx

import (
	"fmt"
	"slices"
)

// ResourceBinding declares one slot of a resource set.
type ResourceBinding struct {
	// Name is the identifier the shader uses for the resource. Backends that
	// bind by reflection (GL) look slots up by it.
	Name    string
	Binding uint32
	Kind    BindingKind
	// Size is the minimum uniform buffer size in bytes. Unused for textures.
	Size uint64
}

// ResourceSetSpecification is the layout of one resource set, shared by the
// pipelines that declare it and the sets created from it.
type ResourceSetSpecification struct {
	Set      uint32
	Bindings []ResourceBinding
}

// Validate checks binding kinds, names and slot uniqueness.
func (s *ResourceSetSpecification) Validate() error {
	slots := map[uint32]bool{}
	names := map[string]bool{}
	for _, b := range s.Bindings {
		if !b.Kind.Valid() {
			return fmt.Errorf("set %d binding %d: unsupported kind %v", s.Set, b.Binding, b.Kind)
		}
		if b.Name == "" {
			return fmt.Errorf("set %d binding %d: missing name", s.Set, b.Binding)
		}
		if slots[b.Binding] {
			return fmt.Errorf("set %d: binding %d declared twice", s.Set, b.Binding)
		}
		if names[b.Name] {
			return fmt.Errorf("set %d: name %q declared twice", s.Set, b.Name)
		}
		slots[b.Binding] = true
		names[b.Name] = true
	}
	return nil
}

// Binding returns the declaration for slot.
func (s *ResourceSetSpecification) Binding(slot uint32) (ResourceBinding, bool) {
	for _, b := range s.Bindings {
		if b.Binding == slot {
			return b, true
		}
	}
	return ResourceBinding{}, false
}

// Count returns the number of bindings of kind.
func (s *ResourceSetSpecification) Count(kind BindingKind) int {
	n := 0
	for _, b := range s.Bindings {
		if b.Kind == kind {
			n++
		}
	}
	return n
}

// Equal reports whether two specifications describe the same layout.
func (s *ResourceSetSpecification) Equal(o *ResourceSetSpecification) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	return s.Set == o.Set && slices.Equal(s.Bindings, o.Bindings)
}

// Clone returns a deep copy.
func (s *ResourceSetSpecification) Clone() *ResourceSetSpecification {
	if s == nil {
		return nil
	}
	return &ResourceSetSpecification{Set: s.Set, Bindings: slices.Clone(s.Bindings)}
}

// ResourceSet binds concrete buffers and textures to the slots of one
// specification. Slots never written before a draw are undefined.
type ResourceSet struct {
	refs
	dev     *GraphicsDevice
	handle  Handle
	spec    *ResourceSetSpecification
	written map[uint32][]refCounted
}

func (rs *ResourceSet) Specification() *ResourceSetSpecification { return rs.spec }
func (rs *ResourceSet) Handle() Handle                           { return rs.handle }

func (rs *ResourceSet) slot(op string, slot uint32, kind BindingKind) (ResourceBinding, error) {
	if rs.released() {
		return ResourceBinding{}, misuseErr(op, ErrReleased)
	}
	b, ok := rs.spec.Binding(slot)
	if !ok {
		return b, misuseErr(op, fmt.Errorf("set %d has no binding %d", rs.spec.Set, slot))
	}
	if b.Kind != kind {
		return b, misuseErr(op, fmt.Errorf("set %d binding %d (%s) is %v, not %v", rs.spec.Set, slot, b.Name, b.Kind, kind))
	}
	return b, nil
}

// WriteUniformBuffer binds a uniform buffer to slot.
func (rs *ResourceSet) WriteUniformBuffer(buf *Buffer, slot uint32) error {
	const op = "write uniform buffer"
	b, err := rs.slot(op, slot, BindingUniformBuffer)
	if err != nil {
		return err
	}
	if buf == nil || buf.released() {
		return misuseErr(op, ErrReleased)
	}
	if buf.desc.Kind != BufferKindUniform {
		return misuseErr(op, fmt.Errorf("%v buffer bound to uniform slot %q", buf.desc.Kind, b.Name))
	}
	if buf.desc.SizeInBytes < b.Size {
		return misuseErr(op, fmt.Errorf("slot %q needs %d bytes, buffer has %d", b.Name, b.Size, buf.desc.SizeInBytes))
	}
	if err := rs.dev.alive(); err != nil {
		return err
	}
	w := ResourceWrite{Kind: BindingUniformBuffer, Buffer: buf.handle, Size: buf.desc.SizeInBytes}
	if err := rs.dev.check(rs.dev.backend.WriteResourceSet(rs.handle, slot, w)); err != nil {
		return err
	}
	rs.hold(slot, buf)
	return nil
}

// WriteCombinedImageSampler binds a texture and the sampler it is read with.
func (rs *ResourceSet) WriteCombinedImageSampler(tex *Texture, s *Sampler, slot uint32) error {
	const op = "write combined image sampler"
	b, err := rs.slot(op, slot, BindingSampledTexture)
	if err != nil {
		return err
	}
	if tex == nil || tex.released() || s == nil || s.released() {
		return misuseErr(op, ErrReleased)
	}
	if tex.desc.Usage&TextureUsageSampled == 0 {
		return misuseErr(op, fmt.Errorf("texture %q bound to %q is not sampled", tex.desc.Label, b.Name))
	}
	if err := rs.dev.alive(); err != nil {
		return err
	}
	w := ResourceWrite{Kind: BindingSampledTexture, Texture: tex.handle, Sampler: s.handle}
	if err := rs.dev.check(rs.dev.backend.WriteResourceSet(rs.handle, slot, w)); err != nil {
		return err
	}
	rs.hold(slot, tex, s)
	return nil
}

// WriteTexture binds a texture with the device's default sampler.
func (rs *ResourceSet) WriteTexture(tex *Texture, slot uint32) error {
	s, err := rs.dev.DefaultSampler()
	if err != nil {
		return err
	}
	return rs.WriteCombinedImageSampler(tex, s, slot)
}

func (rs *ResourceSet) hold(slot uint32, objs ...refCounted) {
	for _, o := range objs {
		o.Retain()
	}
	for _, o := range rs.written[slot] {
		o.Release()
	}
	rs.written[slot] = objs
}

func (rs *ResourceSet) free() {
	for slot, objs := range rs.written {
		for _, o := range objs {
			o.Release()
		}
		delete(rs.written, slot)
	}
}
