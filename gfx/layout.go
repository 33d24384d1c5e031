package gfx

import "fmt"

// VertexElement is one attribute in a vertex buffer. Offset is derived by
// VertexBufferLayout and is never read from the caller.
type VertexElement struct {
	Name       string
	Type       ElementType
	Components uint32
	// Normalized maps integer components to [0,1] in the shader.
	Normalized bool
	Offset     uint32
}

// Size returns the byte size of the element.
func (e VertexElement) Size() uint32 { return e.Type.Size() * e.Components }

// VertexBufferLayout is the ordered attribute list of one vertex buffer slot.
type VertexBufferLayout struct {
	Elements  []VertexElement
	Stride    uint32
	InputRate InputRate
}

// NewVertexBufferLayout builds a layout from elements, computing offsets and
// stride.
func NewVertexBufferLayout(elems ...VertexElement) VertexBufferLayout {
	l := VertexBufferLayout{Elements: append([]VertexElement(nil), elems...)}
	l.recompute()
	return l
}

// Add appends an element and recomputes offsets and stride.
func (l *VertexBufferLayout) Add(name string, t ElementType, components uint32) *VertexBufferLayout {
	l.Elements = append(l.Elements, VertexElement{Name: name, Type: t, Components: components})
	l.recompute()
	return l
}

func (l *VertexBufferLayout) recompute() {
	var off uint32
	for i := range l.Elements {
		l.Elements[i].Offset = off
		off += l.Elements[i].Size()
	}
	l.Stride = off
}

func (l VertexBufferLayout) validate() error {
	if len(l.Elements) == 0 {
		return fmt.Errorf("vertex layout has no elements")
	}
	for _, e := range l.Elements {
		if !e.Type.Valid() {
			return fmt.Errorf("element %q: unsupported type %v", e.Name, e.Type)
		}
		if e.Components < 1 || e.Components > 4 {
			return fmt.Errorf("element %q: %d components", e.Name, e.Components)
		}
		if e.Name == "" {
			return fmt.Errorf("unnamed vertex element")
		}
	}
	if l.InputRate != InputRateVertex && l.InputRate != InputRateInstance {
		return fmt.Errorf("unsupported input rate %d", l.InputRate)
	}
	return nil
}

func (l VertexBufferLayout) clone() VertexBufferLayout {
	c := l
	c.Elements = append([]VertexElement(nil), l.Elements...)
	c.recompute()
	return c
}
