package opengl

import (
	"fmt"

	"render-hal/gfx"
)

// ── Enum translation ────────────────────────────────────────────────────────

func primitiveMode(t gfx.PrimitiveTopology) (uint32, error) {
	switch t {
	case gfx.TopologyTriangleList:
		return TRIANGLES, nil
	case gfx.TopologyTriangleStrip:
		return TRIANGLE_STRIP, nil
	case gfx.TopologyLineList:
		return LINES, nil
	case gfx.TopologyLineStrip:
		return LINE_STRIP, nil
	case gfx.TopologyPointList:
		return POINTS, nil
	}
	return 0, &gfx.ConfigurationError{Op: "gl topology", Err: fmt.Errorf("unsupported topology %v", t)}
}

func compareFunc(f gfx.CompareFunc) uint32 {
	return [...]uint32{NEVER, LESS, EQUAL, LEQUAL, GREATER, NOTEQUAL, GEQUAL, ALWAYS}[f]
}

func stencilOp(op gfx.StencilOp) uint32 {
	return [...]uint32{KEEP, ZERO, REPLACE, INCR, DECR, INVERT, INCR_WRAP, DECR_WRAP}[op]
}

func blendFactor(f gfx.BlendFactor) uint32 {
	return [...]uint32{
		ZERO, ONE, SRC_COLOR, ONE_MINUS_SRC_COLOR, SRC_ALPHA, ONE_MINUS_SRC_ALPHA,
		DST_COLOR, ONE_MINUS_DST_COLOR, DST_ALPHA, ONE_MINUS_DST_ALPHA,
	}[f]
}

func blendOp(op gfx.BlendOp) uint32 {
	return [...]uint32{FUNC_ADD, FUNC_SUBTRACT, FUNC_REVERSE_SUBTRACT, MIN, MAX}[op]
}

// cullFace is only asked for a face that is culled.
func cullFace(m gfx.CullMode) uint32 {
	switch m {
	case gfx.CullFront:
		return FRONT
	case gfx.CullBack:
		return BACK
	}
	panic(fmt.Sprintf("opengl: no cull face for %d", m))
}

func frontFace(f gfx.FrontFace) uint32 {
	switch f {
	case gfx.FrontFaceCCW:
		return CCW
	case gfx.FrontFaceCW:
		return CW
	}
	panic(fmt.Sprintf("opengl: unknown front face %d", f))
}

func elementType(t gfx.ElementType) uint32 {
	switch t {
	case gfx.ElementInt32:
		return INT
	case gfx.ElementUint32:
		return UNSIGNED_INT
	case gfx.ElementUnorm8:
		return UNSIGNED_BYTE
	}
	return FLOAT
}

func indexType(f gfx.IndexFormat) uint32 {
	if f == gfx.IndexFormatUint16 {
		return UNSIGNED_SHORT
	}
	return UNSIGNED_INT
}

func shaderType(s gfx.ShaderStage) uint32 {
	if s == gfx.StageFragment {
		return FRAGMENT_SHADER
	}
	return VERTEX_SHADER
}

// pixelFormat is the GL internal format plus the client format and type used
// for uploads and readback.
type pixelFormat struct {
	internal int32
	format   uint32
	xtype    uint32
}

func glPixelFormat(f gfx.PixelFormat) (pixelFormat, error) {
	switch f {
	case gfx.PixelFormatRGBA8Unorm:
		return pixelFormat{RGBA8, RGBA, UNSIGNED_BYTE}, nil
	case gfx.PixelFormatBGRA8Unorm:
		return pixelFormat{RGBA8, BGRA, UNSIGNED_BYTE}, nil
	case gfx.PixelFormatRGBA8UnormSRGB:
		return pixelFormat{SRGB8_ALPHA8, RGBA, UNSIGNED_BYTE}, nil
	case gfx.PixelFormatBGRA8UnormSRGB:
		return pixelFormat{SRGB8_ALPHA8, BGRA, UNSIGNED_BYTE}, nil
	case gfx.PixelFormatR8Unorm:
		return pixelFormat{R8, RED, UNSIGNED_BYTE}, nil
	case gfx.PixelFormatRGBA16Float:
		return pixelFormat{RGBA16F, RGBA, HALF_FLOAT}, nil
	case gfx.PixelFormatRGBA32Float:
		return pixelFormat{RGBA32F, RGBA, FLOAT}, nil
	case gfx.PixelFormatDepth24Stencil8:
		return pixelFormat{DEPTH24_STENCIL8, DEPTH_STENCIL, UNSIGNED_INT_24_8}, nil
	case gfx.PixelFormatDepth32Float:
		return pixelFormat{DEPTH_COMPONENT32F, DEPTH_COMPONENT, FLOAT}, nil
	}
	return pixelFormat{}, &gfx.ConfigurationError{Op: "gl pixel format", Err: fmt.Errorf("unsupported format %v", f)}
}

func minFilter(minify, mip gfx.Filter, mips bool) int32 {
	switch {
	case !mips && minify == gfx.FilterNearest:
		return NEAREST
	case !mips:
		return LINEAR
	case minify == gfx.FilterNearest && mip == gfx.FilterNearest:
		return NEAREST_MIPMAP_NEAREST
	case minify == gfx.FilterNearest:
		return NEAREST_MIPMAP_LINEAR
	case mip == gfx.FilterNearest:
		return LINEAR_MIPMAP_NEAREST
	}
	return LINEAR_MIPMAP_LINEAR
}

func magFilter(f gfx.Filter) int32 {
	switch f {
	case gfx.FilterNearest:
		return NEAREST
	case gfx.FilterLinear:
		return LINEAR
	}
	panic(fmt.Sprintf("opengl: unknown filter %d", f))
}

func addressMode(m gfx.AddressMode) int32 {
	return [...]int32{REPEAT, MIRRORED_REPEAT, CLAMP_TO_EDGE, CLAMP_TO_BORDER}[m]
}

func errorName(code uint32) string {
	switch code {
	case INVALID_ENUM:
		return "GL_INVALID_ENUM"
	case INVALID_VALUE:
		return "GL_INVALID_VALUE"
	case INVALID_OPERATION:
		return "GL_INVALID_OPERATION"
	case OUT_OF_MEMORY:
		return "GL_OUT_OF_MEMORY"
	case INVALID_FRAMEBUFFER_OPERATION:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	}
	return fmt.Sprintf("0x%X", code)
}
