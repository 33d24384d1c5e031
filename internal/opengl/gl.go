package opengl

// GL is the subset of the OpenGL 4.1 core API the backend calls. The
// production implementation forwards to go-gl (see package gogl); tests
// substitute an in-memory fake.
type GL interface {
	GetError() uint32
	GetString(name uint32) string
	Finish()
	Flush()

	GenBuffer() uint32
	DeleteBuffer(id uint32)
	BindBuffer(target, id uint32)
	BufferData(target uint32, data []byte, usage uint32)
	BufferSubData(target uint32, offset int, data []byte)
	GetBufferSubData(target uint32, offset int, dst []byte)
	BindBufferBase(target, index, id uint32)

	GenVertexArray() uint32
	DeleteVertexArray(id uint32)
	BindVertexArray(id uint32)
	EnableVertexAttribArray(index uint32)
	DisableVertexAttribArray(index uint32)
	VertexAttribPointer(index uint32, size int32, xtype uint32, normalized bool, stride int32, offset uintptr)
	VertexAttribIPointer(index uint32, size int32, xtype uint32, stride int32, offset uintptr)
	VertexAttribDivisor(index, divisor uint32)

	GenTexture() uint32
	DeleteTexture(id uint32)
	ActiveTexture(unit uint32)
	BindTexture(target, id uint32)
	TexImage2D(target uint32, level, internalFormat, width, height int32, format, xtype uint32, data []byte)
	TexParameteri(target, pname uint32, param int32)
	GetTexImage(target uint32, level int32, format, xtype uint32, dst []byte)
	PixelStorei(pname uint32, param int32)

	GenSampler() uint32
	DeleteSampler(id uint32)
	BindSampler(unit, id uint32)
	SamplerParameteri(id, pname uint32, param int32)
	SamplerParameterf(id, pname uint32, param float32)
	SamplerParameterfv(id, pname uint32, params []float32)

	CreateShader(xtype uint32) uint32
	ShaderSource(id uint32, src string)
	CompileShader(id uint32)
	// ShaderStatus returns GL_COMPILE_STATUS and the info log.
	ShaderStatus(id uint32) (ok bool, log string)
	DeleteShader(id uint32)
	CreateProgram() uint32
	AttachShader(program, shader uint32)
	DetachShader(program, shader uint32)
	BindAttribLocation(program, index uint32, name string)
	LinkProgram(program uint32)
	// ProgramStatus returns GL_LINK_STATUS and the info log.
	ProgramStatus(program uint32) (ok bool, log string)
	DeleteProgram(program uint32)
	UseProgram(program uint32)
	GetUniformBlockIndex(program uint32, name string) uint32
	UniformBlockBinding(program, block, binding uint32)
	GetUniformLocation(program uint32, name string) int32
	Uniform1i(location, v int32)

	GenFramebuffer() uint32
	DeleteFramebuffer(id uint32)
	BindFramebuffer(target, id uint32)
	FramebufferTexture2D(target, attachment, texTarget, texture uint32, level int32)
	CheckFramebufferStatus(target uint32) uint32
	DrawBuffers(bufs []uint32)
	ReadBuffer(mode uint32)
	BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1 int32, mask, filter uint32)

	Enable(cap uint32)
	Disable(cap uint32)
	Enablei(cap, index uint32)
	Disablei(cap, index uint32)
	CullFace(mode uint32)
	FrontFace(mode uint32)
	PolygonMode(face, mode uint32)
	DepthFunc(fn uint32)
	DepthMask(flag bool)
	StencilFuncSeparate(face, fn uint32, ref int32, mask uint32)
	StencilOpSeparate(face, sfail, dpfail, dppass uint32)
	StencilMask(mask uint32)
	BlendFuncSeparatei(buf, srcRGB, dstRGB, srcAlpha, dstAlpha uint32)
	BlendEquationSeparatei(buf, modeRGB, modeAlpha uint32)
	ColorMaski(buf uint32, r, g, b, a bool)
	Viewport(x, y, width, height int32)
	DepthRange(near, far float64)
	Scissor(x, y, width, height int32)
	ClearBufferfv(buffer uint32, drawbuffer int32, value [4]float32)
	ClearBufferfi(buffer uint32, drawbuffer int32, depth float32, stencil int32)

	DrawArraysInstanced(mode uint32, first, count, instances int32)
	DrawElementsInstancedBaseVertex(mode uint32, count int32, xtype uint32, offset uintptr, instances, baseVertex int32)
}

// OpenGL enum values used by the backend. They mirror the GL headers so the
// backend does not depend on cgo.
const (
	NO_ERROR                      = 0
	INVALID_ENUM                  = 0x0500
	INVALID_VALUE                 = 0x0501
	INVALID_OPERATION             = 0x0502
	OUT_OF_MEMORY                 = 0x0505
	INVALID_FRAMEBUFFER_OPERATION = 0x0506

	VENDOR   = 0x1F00
	RENDERER = 0x1F01
	VERSION  = 0x1F02

	NONE           = 0
	POINTS         = 0x0000
	LINES          = 0x0001
	LINE_STRIP     = 0x0003
	TRIANGLES      = 0x0004
	TRIANGLE_STRIP = 0x0005

	NEVER    = 0x0200
	LESS     = 0x0201
	EQUAL    = 0x0202
	LEQUAL   = 0x0203
	GREATER  = 0x0204
	NOTEQUAL = 0x0205
	GEQUAL   = 0x0206
	ALWAYS   = 0x0207

	ZERO                = 0
	ONE                 = 1
	SRC_COLOR           = 0x0300
	ONE_MINUS_SRC_COLOR = 0x0301
	SRC_ALPHA           = 0x0302
	ONE_MINUS_SRC_ALPHA = 0x0303
	DST_ALPHA           = 0x0304
	ONE_MINUS_DST_ALPHA = 0x0305
	DST_COLOR           = 0x0306
	ONE_MINUS_DST_COLOR = 0x0307

	FUNC_ADD              = 0x8006
	MIN                   = 0x8007
	MAX                   = 0x8008
	FUNC_SUBTRACT         = 0x800A
	FUNC_REVERSE_SUBTRACT = 0x800B

	FRONT          = 0x0404
	BACK           = 0x0405
	FRONT_AND_BACK = 0x0408
	CW             = 0x0900
	CCW            = 0x0901
	LINE           = 0x1B01
	FILL           = 0x1B02

	CULL_FACE    = 0x0B44
	DEPTH_TEST   = 0x0B71
	STENCIL_TEST = 0x0B90
	BLEND        = 0x0BE2
	SCISSOR_TEST = 0x0C11
	DEPTH_CLAMP  = 0x864F

	KEEP      = 0x1E00
	REPLACE   = 0x1E01
	INCR      = 0x1E02
	DECR      = 0x1E03
	INVERT    = 0x150A
	INCR_WRAP = 0x8507
	DECR_WRAP = 0x8508

	BYTE              = 0x1400
	UNSIGNED_BYTE     = 0x1401
	UNSIGNED_SHORT    = 0x1403
	INT               = 0x1404
	UNSIGNED_INT      = 0x1405
	FLOAT             = 0x1406
	HALF_FLOAT        = 0x140B
	UNSIGNED_INT_24_8 = 0x84FA

	ARRAY_BUFFER         = 0x8892
	ELEMENT_ARRAY_BUFFER = 0x8893
	UNIFORM_BUFFER       = 0x8A11
	COPY_READ_BUFFER     = 0x8F36
	COPY_WRITE_BUFFER    = 0x8F37
	STATIC_DRAW          = 0x88E4
	DYNAMIC_DRAW         = 0x88E8

	TEXTURE_2D             = 0x0DE1
	TEXTURE0               = 0x84C0
	TEXTURE_MAG_FILTER     = 0x2800
	TEXTURE_MIN_FILTER     = 0x2801
	TEXTURE_WRAP_S         = 0x2802
	TEXTURE_WRAP_T         = 0x2803
	TEXTURE_WRAP_R         = 0x8072
	TEXTURE_MIN_LOD        = 0x813A
	TEXTURE_MAX_LOD        = 0x813B
	TEXTURE_BASE_LEVEL     = 0x813C
	TEXTURE_MAX_LEVEL      = 0x813D
	TEXTURE_BORDER_COLOR   = 0x1004
	TEXTURE_COMPARE_MODE   = 0x884C
	TEXTURE_COMPARE_FUNC   = 0x884D
	COMPARE_REF_TO_TEXTURE = 0x884E
	TEXTURE_MAX_ANISOTROPY = 0x84FE

	NEAREST                = 0x2600
	LINEAR                 = 0x2601
	NEAREST_MIPMAP_NEAREST = 0x2700
	LINEAR_MIPMAP_NEAREST  = 0x2701
	NEAREST_MIPMAP_LINEAR  = 0x2702
	LINEAR_MIPMAP_LINEAR   = 0x2703
	REPEAT                 = 0x2901
	CLAMP_TO_BORDER        = 0x812D
	CLAMP_TO_EDGE          = 0x812F
	MIRRORED_REPEAT        = 0x8370

	RED                = 0x1903
	RGBA               = 0x1908
	BGRA               = 0x80E1
	R8                 = 0x8229
	RGBA8              = 0x8058
	SRGB8_ALPHA8       = 0x8C43
	RGBA16F            = 0x881A
	RGBA32F            = 0x8814
	DEPTH_COMPONENT    = 0x1902
	DEPTH_STENCIL      = 0x84F9
	DEPTH24_STENCIL8   = 0x88F0
	DEPTH_COMPONENT32F = 0x8CAC

	UNPACK_ALIGNMENT = 0x0CF5
	PACK_ALIGNMENT   = 0x0D05

	VERTEX_SHADER   = 0x8B31
	FRAGMENT_SHADER = 0x8B30
	INVALID_INDEX   = 0xFFFFFFFF

	FRAMEBUFFER              = 0x8D40
	READ_FRAMEBUFFER         = 0x8CA8
	DRAW_FRAMEBUFFER         = 0x8CA9
	FRAMEBUFFER_COMPLETE     = 0x8CD5
	COLOR_ATTACHMENT0        = 0x8CE0
	DEPTH_ATTACHMENT         = 0x8D00
	DEPTH_STENCIL_ATTACHMENT = 0x821A

	COLOR            = 0x1800
	DEPTH            = 0x1801
	COLOR_BUFFER_BIT = 0x4000
)
