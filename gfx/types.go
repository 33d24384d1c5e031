package gfx

import "fmt"

// Handle is an opaque reference to a backend object. Zero is never valid.
type Handle uint64

// Color is a linear RGBA color.
type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite       = Color{1, 1, 1, 1}
	ColorBlack       = Color{0, 0, 0, 1}
	ColorTransparent = Color{}
)

// Viewport and Scissor rectangles are in pixels of the render target with the
// origin at its top-left corner and Y growing downward.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type Scissor struct {
	X, Y, Width, Height int32
}

// ── Buffers ─────────────────────────────────────────────────────────────────

type BufferKind uint8

const (
	BufferKindVertex BufferKind = iota + 1
	BufferKindIndex
	BufferKindUniform
)

func (k BufferKind) Valid() bool { return k >= BufferKindVertex && k <= BufferKindUniform }

func (k BufferKind) String() string {
	switch k {
	case BufferKindVertex:
		return "vertex"
	case BufferKindIndex:
		return "index"
	case BufferKindUniform:
		return "uniform"
	}
	return fmt.Sprintf("BufferKind(%d)", uint8(k))
}

type BufferUsage uint8

const (
	// BufferUsageStatic buffers receive their contents once, at creation.
	BufferUsageStatic BufferUsage = iota + 1
	BufferUsageDynamic
)

func (u BufferUsage) Valid() bool { return u == BufferUsageStatic || u == BufferUsageDynamic }

func (u BufferUsage) String() string {
	switch u {
	case BufferUsageStatic:
		return "static"
	case BufferUsageDynamic:
		return "dynamic"
	}
	return fmt.Sprintf("BufferUsage(%d)", uint8(u))
}

type IndexFormat uint8

const (
	IndexFormatUint16 IndexFormat = iota + 1
	IndexFormatUint32
)

func (f IndexFormat) Valid() bool { return f == IndexFormatUint16 || f == IndexFormatUint32 }

// Size returns the size of one index in bytes.
func (f IndexFormat) Size() uint32 {
	if f == IndexFormatUint16 {
		return 2
	}
	return 4
}

func (f IndexFormat) String() string {
	switch f {
	case IndexFormatUint16:
		return "uint16"
	case IndexFormatUint32:
		return "uint32"
	}
	return fmt.Sprintf("IndexFormat(%d)", uint8(f))
}

// ── Vertex input ────────────────────────────────────────────────────────────

// ElementType is the scalar type of a vertex attribute component.
type ElementType uint8

const (
	ElementFloat32 ElementType = iota + 1
	ElementInt32
	ElementUint32
	ElementUnorm8
)

func (t ElementType) Valid() bool { return t >= ElementFloat32 && t <= ElementUnorm8 }

// Size returns the size of one component in bytes.
func (t ElementType) Size() uint32 {
	if t == ElementUnorm8 {
		return 1
	}
	return 4
}

func (t ElementType) String() string {
	switch t {
	case ElementFloat32:
		return "float32"
	case ElementInt32:
		return "int32"
	case ElementUint32:
		return "uint32"
	case ElementUnorm8:
		return "unorm8"
	}
	return fmt.Sprintf("ElementType(%d)", uint8(t))
}

type InputRate uint8

const (
	InputRateVertex InputRate = iota
	InputRateInstance
)

// ── Pipeline state ──────────────────────────────────────────────────────────

type PrimitiveTopology uint8

const (
	TopologyTriangleList PrimitiveTopology = iota + 1
	TopologyTriangleStrip
	TopologyLineList
	TopologyLineStrip
	TopologyPointList
)

func (t PrimitiveTopology) Valid() bool { return t >= TopologyTriangleList && t <= TopologyPointList }

func (t PrimitiveTopology) String() string {
	switch t {
	case TopologyTriangleList:
		return "triangle-list"
	case TopologyTriangleStrip:
		return "triangle-strip"
	case TopologyLineList:
		return "line-list"
	case TopologyLineStrip:
		return "line-strip"
	case TopologyPointList:
		return "point-list"
	}
	return fmt.Sprintf("PrimitiveTopology(%d)", uint8(t))
}

type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

func (m CullMode) Valid() bool { return m <= CullBack }

type FrontFace uint8

const (
	FrontFaceCCW FrontFace = iota
	FrontFaceCW
)

func (f FrontFace) Valid() bool { return f <= FrontFaceCW }

type FillMode uint8

const (
	FillSolid FillMode = iota
	FillWireframe
)

func (m FillMode) Valid() bool { return m <= FillWireframe }

type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

func (f CompareFunc) Valid() bool { return f <= CompareAlways }

type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrClamp
	StencilDecrClamp
	StencilInvert
	StencilIncrWrap
	StencilDecrWrap
)

func (op StencilOp) Valid() bool { return op <= StencilDecrWrap }

type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendOneMinusSrcColor
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstColor
	BlendOneMinusDstColor
	BlendDstAlpha
	BlendOneMinusDstAlpha
)

func (f BlendFactor) Valid() bool { return f <= BlendOneMinusDstAlpha }

type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

func (op BlendOp) Valid() bool { return op <= BlendOpMax }

// ColorWriteMask selects which channels a render target write touches.
type ColorWriteMask uint8

const (
	ColorWriteRed ColorWriteMask = 1 << iota
	ColorWriteGreen
	ColorWriteBlue
	ColorWriteAlpha
	ColorWriteAll = ColorWriteRed | ColorWriteGreen | ColorWriteBlue | ColorWriteAlpha
)

// ── Textures and samplers ───────────────────────────────────────────────────

type PixelFormat uint8

const (
	PixelFormatUndefined PixelFormat = iota
	PixelFormatRGBA8Unorm
	PixelFormatBGRA8Unorm
	PixelFormatRGBA8UnormSRGB
	PixelFormatBGRA8UnormSRGB
	PixelFormatR8Unorm
	PixelFormatRGBA16Float
	PixelFormatRGBA32Float
	PixelFormatDepth24Stencil8
	PixelFormatDepth32Float
)

func (f PixelFormat) Valid() bool {
	return f > PixelFormatUndefined && f <= PixelFormatDepth32Float
}

// IsDepth reports whether f is a depth or depth-stencil format.
func (f PixelFormat) IsDepth() bool {
	return f == PixelFormatDepth24Stencil8 || f == PixelFormatDepth32Float
}

// HasStencil reports whether f carries a stencil aspect.
func (f PixelFormat) HasStencil() bool { return f == PixelFormatDepth24Stencil8 }

// BytesPerPixel returns the texel size of f.
func (f PixelFormat) BytesPerPixel() uint32 {
	switch f {
	case PixelFormatR8Unorm:
		return 1
	case PixelFormatRGBA16Float:
		return 8
	case PixelFormatRGBA32Float:
		return 16
	case PixelFormatUndefined:
		return 0
	}
	return 4
}

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatUndefined:
		return "undefined"
	case PixelFormatRGBA8Unorm:
		return "rgba8unorm"
	case PixelFormatBGRA8Unorm:
		return "bgra8unorm"
	case PixelFormatRGBA8UnormSRGB:
		return "rgba8unorm-srgb"
	case PixelFormatBGRA8UnormSRGB:
		return "bgra8unorm-srgb"
	case PixelFormatR8Unorm:
		return "r8unorm"
	case PixelFormatRGBA16Float:
		return "rgba16float"
	case PixelFormatRGBA32Float:
		return "rgba32float"
	case PixelFormatDepth24Stencil8:
		return "depth24stencil8"
	case PixelFormatDepth32Float:
		return "depth32float"
	}
	return fmt.Sprintf("PixelFormat(%d)", uint8(f))
}

// ParsePixelFormat is the inverse of PixelFormat.String.
func ParsePixelFormat(s string) (PixelFormat, error) {
	for f := PixelFormatUndefined; f <= PixelFormatDepth32Float; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return PixelFormatUndefined, &ConfigurationError{Op: "parse pixel format", Err: fmt.Errorf("unknown format %q", s)}
}

type TextureUsage uint8

const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageRenderTarget
	TextureUsageDepthStencil
)

type Filter uint8

const (
	FilterNearest Filter = iota
	FilterLinear
)

func (f Filter) Valid() bool { return f <= FilterLinear }

type AddressMode uint8

const (
	AddressRepeat AddressMode = iota
	AddressMirrorRepeat
	AddressClampToEdge
	AddressClampToBorder
)

func (m AddressMode) Valid() bool { return m <= AddressClampToBorder }

// ── Render passes ───────────────────────────────────────────────────────────

type LoadOp uint8

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

func (op LoadOp) Valid() bool { return op == LoadOpClear || op == LoadOpLoad }

func (op LoadOp) String() string {
	switch op {
	case LoadOpClear:
		return "clear"
	case LoadOpLoad:
		return "load"
	}
	return fmt.Sprintf("LoadOp(%d)", uint8(op))
}

// ── Shaders and bindings ────────────────────────────────────────────────────

type ShaderStage uint8

const (
	StageVertex ShaderStage = iota + 1
	StageFragment
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return fmt.Sprintf("ShaderStage(%d)", uint8(s))
}

// ShaderFormat is the shader payload dialect a backend accepts.
type ShaderFormat uint8

const (
	ShaderFormatGLSL ShaderFormat = iota + 1
	ShaderFormatHLSL
	// ShaderFormatDXBC is precompiled D3D bytecode.
	ShaderFormatDXBC
)

func (f ShaderFormat) String() string {
	switch f {
	case ShaderFormatGLSL:
		return "glsl"
	case ShaderFormatHLSL:
		return "hlsl"
	case ShaderFormatDXBC:
		return "dxbc"
	}
	return fmt.Sprintf("ShaderFormat(%d)", uint8(f))
}

type BindingKind uint8

const (
	BindingUniformBuffer BindingKind = iota + 1
	// BindingSampledTexture is a texture paired with a sampler.
	BindingSampledTexture
)

func (k BindingKind) Valid() bool { return k == BindingUniformBuffer || k == BindingSampledTexture }

func (k BindingKind) String() string {
	switch k {
	case BindingUniformBuffer:
		return "uniform-buffer"
	case BindingSampledTexture:
		return "sampled-texture"
	}
	return fmt.Sprintf("BindingKind(%d)", uint8(k))
}
