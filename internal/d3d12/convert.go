package d3d12

import (
	"fmt"

	"render-hal/gfx"
)

// ── Enum translation ────────────────────────────────────────────────────────

func configErr(op string, format string, args ...any) error {
	return &gfx.ConfigurationError{Op: op, Err: fmt.Errorf(format, args...)}
}

// textureFormats maps a pixel format to the resource, shader view and
// render/depth view formats. Depth textures that are also sampled need a
// typeless resource.
type textureFormats struct {
	resource, srv, view Format
}

func dxgiFormat(f gfx.PixelFormat, sampled bool) (textureFormats, error) {
	switch f {
	case gfx.PixelFormatRGBA8Unorm:
		return textureFormats{FormatRGBA8Unorm, FormatRGBA8Unorm, FormatRGBA8Unorm}, nil
	case gfx.PixelFormatBGRA8Unorm:
		return textureFormats{FormatBGRA8Unorm, FormatBGRA8Unorm, FormatBGRA8Unorm}, nil
	case gfx.PixelFormatRGBA8UnormSRGB:
		return textureFormats{FormatRGBA8UnormSRGB, FormatRGBA8UnormSRGB, FormatRGBA8UnormSRGB}, nil
	case gfx.PixelFormatBGRA8UnormSRGB:
		return textureFormats{FormatBGRA8UnormSRGB, FormatBGRA8UnormSRGB, FormatBGRA8UnormSRGB}, nil
	case gfx.PixelFormatR8Unorm:
		return textureFormats{FormatR8Unorm, FormatR8Unorm, FormatR8Unorm}, nil
	case gfx.PixelFormatRGBA16Float:
		return textureFormats{FormatRGBA16Float, FormatRGBA16Float, FormatRGBA16Float}, nil
	case gfx.PixelFormatRGBA32Float:
		return textureFormats{FormatRGBA32Float, FormatRGBA32Float, FormatRGBA32Float}, nil
	case gfx.PixelFormatDepth24Stencil8:
		if sampled {
			return textureFormats{FormatR24G8Typeless, FormatR24UnormX8, FormatD24UnormS8Uint}, nil
		}
		return textureFormats{FormatD24UnormS8Uint, FormatUnknown, FormatD24UnormS8Uint}, nil
	case gfx.PixelFormatDepth32Float:
		if sampled {
			return textureFormats{FormatR32Typeless, FormatR32Float, FormatD32Float}, nil
		}
		return textureFormats{FormatD32Float, FormatUnknown, FormatD32Float}, nil
	}
	return textureFormats{}, configErr("d3d12 pixel format", "unsupported pixel format %v", f)
}

// viewFormat is the RTV/DSV format a pipeline declares for a target.
func viewFormat(f gfx.PixelFormat) (Format, error) {
	if f == gfx.PixelFormatUndefined {
		return FormatUnknown, nil
	}
	tf, err := dxgiFormat(f, false)
	return tf.view, err
}

func vertexFormat(e gfx.VertexElement) (Format, error) {
	n := e.Components
	switch e.Type {
	case gfx.ElementFloat32:
		if f, ok := pick(n, FormatR32Float, FormatRG32Float, FormatRGB32Float, FormatRGBA32Float); ok {
			return f, nil
		}
	case gfx.ElementInt32, gfx.ElementUint32:
		if e.Normalized {
			return 0, configErr("d3d12 vertex format", "%s: normalized %v has no DXGI format", e.Name, e.Type)
		}
		if e.Type == gfx.ElementInt32 {
			if f, ok := pick(n, FormatR32Sint, FormatRG32Sint, FormatRGB32Sint, FormatRGBA32Sint); ok {
				return f, nil
			}
		} else if f, ok := pick(n, FormatR32Uint, FormatRG32Uint, FormatRGB32Uint, FormatRGBA32Uint); ok {
			return f, nil
		}
	case gfx.ElementUnorm8:
		if f, ok := pick(n, FormatR8Unorm, FormatRG8Unorm, FormatUnknown, FormatRGBA8Unorm); ok && f != FormatUnknown {
			return f, nil
		}
	}
	return 0, configErr("d3d12 vertex format", "%s: no DXGI format for %d x %v", e.Name, n, e.Type)
}

func pick(n uint32, formats ...Format) (Format, bool) {
	if n == 0 || int(n) > len(formats) {
		return 0, false
	}
	return formats[n-1], true
}

func indexFormat(f gfx.IndexFormat) Format {
	if f == gfx.IndexFormatUint16 {
		return FormatR16Uint
	}
	return FormatR32Uint
}

func topology(t gfx.PrimitiveTopology) (PrimitiveTopology, error) {
	switch t {
	case gfx.TopologyTriangleList:
		return PrimitiveTriangleList, nil
	case gfx.TopologyTriangleStrip:
		return PrimitiveTriangleStrip, nil
	case gfx.TopologyLineList:
		return PrimitiveLineList, nil
	case gfx.TopologyLineStrip:
		return PrimitiveLineStrip, nil
	case gfx.TopologyPointList:
		return PrimitivePointList, nil
	}
	return 0, configErr("d3d12 topology", "unsupported topology %v", t)
}

func topologyType(t gfx.PrimitiveTopology) TopologyType {
	switch t {
	case gfx.TopologyLineList, gfx.TopologyLineStrip:
		return TopologyTypeLine
	case gfx.TopologyPointList:
		return TopologyTypePoint
	}
	return TopologyTypeTriangle
}

// gfx compare functions are declared in D3D12 order, starting at zero.
func comparison(f gfx.CompareFunc) ComparisonFunc { return ComparisonFunc(f) + 1 }

func stencilOp(op gfx.StencilOp) StencilOp {
	switch op {
	case gfx.StencilZero:
		return StencilOpZero
	case gfx.StencilReplace:
		return StencilOpReplace
	case gfx.StencilIncrClamp:
		return StencilOpIncrSat
	case gfx.StencilDecrClamp:
		return StencilOpDecrSat
	case gfx.StencilInvert:
		return StencilOpInvert
	case gfx.StencilIncrWrap:
		return StencilOpIncr
	case gfx.StencilDecrWrap:
		return StencilOpDecr
	}
	return StencilOpKeep
}

func blendFactor(f gfx.BlendFactor) Blend {
	switch f {
	case gfx.BlendZero:
		return BlendZero
	case gfx.BlendSrcColor:
		return BlendSrcColor
	case gfx.BlendOneMinusSrcColor:
		return BlendInvSrcColor
	case gfx.BlendSrcAlpha:
		return BlendSrcAlpha
	case gfx.BlendOneMinusSrcAlpha:
		return BlendInvSrcAlpha
	case gfx.BlendDstColor:
		return BlendDestColor
	case gfx.BlendOneMinusDstColor:
		return BlendInvDestColor
	case gfx.BlendDstAlpha:
		return BlendDestAlpha
	case gfx.BlendOneMinusDstAlpha:
		return BlendInvDestAlpha
	}
	return BlendOne
}

func blendOp(op gfx.BlendOp) BlendOp { return BlendOp(op) + 1 }

func cullMode(m gfx.CullMode) CullMode {
	switch m {
	case gfx.CullNone:
		return CullNone
	case gfx.CullFront:
		return CullFront
	case gfx.CullBack:
		return CullBack
	}
	panic(fmt.Sprintf("d3d12: unknown cull mode %d", m))
}

func fillMode(m gfx.FillMode) FillMode {
	switch m {
	case gfx.FillSolid:
		return FillSolid
	case gfx.FillWireframe:
		return FillWireframe
	}
	panic(fmt.Sprintf("d3d12: unknown fill mode %d", m))
}

func samplerFilter(d gfx.SamplerDescription) Filter {
	var f Filter
	if d.MaxAnisotropy > 1 {
		f = FilterAnisotropic
	} else {
		if d.MinFilter == gfx.FilterLinear {
			f |= FilterMinLinear
		}
		if d.MagFilter == gfx.FilterLinear {
			f |= FilterMagLinear
		}
		if d.MipFilter == gfx.FilterLinear {
			f |= FilterMipLinear
		}
	}
	if d.CompareEnable {
		f |= FilterComparison
	}
	return f
}

func addressMode(m gfx.AddressMode) AddressMode {
	switch m {
	case gfx.AddressMirrorRepeat:
		return AddressMirror
	case gfx.AddressClampToEdge:
		return AddressClamp
	case gfx.AddressClampToBorder:
		return AddressBorder
	}
	return AddressWrap
}

func align(n, to uint64) uint64 { return (n + to - 1) / to * to }
