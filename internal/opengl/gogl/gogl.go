// Package gogl implements opengl.GL on top of go-gl's 4.1 core bindings.
package gogl

import (
	"fmt"
	"strings"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-hal/internal/opengl"
)

// Context forwards to the GL functions loaded by Load.
type Context struct{}

var _ opengl.GL = Context{}

// Load resolves the GL entry points. The window's context must be current.
func Load() (Context, error) {
	if err := gl.Init(); err != nil {
		return Context{}, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	return Context{}, nil
}

func ptr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func cstr(s string) (*uint8, func()) {
	strs, free := gl.Strs(s + "\x00")
	return *strs, free
}

func (Context) GetError() uint32 { return gl.GetError() }

func (Context) GetString(name uint32) string {
	s := gl.GetString(name)
	if s == nil {
		return ""
	}
	return gl.GoStr(s)
}

func (Context) Finish() { gl.Finish() }
func (Context) Flush()  { gl.Flush() }

// ── Buffers ─────────────────────────────────────────────────────────────────

func (Context) GenBuffer() uint32 {
	var id uint32
	gl.GenBuffers(1, &id)
	return id
}

func (Context) DeleteBuffer(id uint32)       { gl.DeleteBuffers(1, &id) }
func (Context) BindBuffer(target, id uint32) { gl.BindBuffer(target, id) }

func (Context) BufferData(target uint32, data []byte, usage uint32) {
	gl.BufferData(target, len(data), ptr(data), usage)
}

func (Context) BufferSubData(target uint32, offset int, data []byte) {
	if len(data) > 0 {
		gl.BufferSubData(target, offset, len(data), ptr(data))
	}
}

func (Context) GetBufferSubData(target uint32, offset int, dst []byte) {
	if len(dst) > 0 {
		gl.GetBufferSubData(target, offset, len(dst), ptr(dst))
	}
}

func (Context) BindBufferBase(target, index, id uint32) { gl.BindBufferBase(target, index, id) }

// ── Vertex input ────────────────────────────────────────────────────────────

func (Context) GenVertexArray() uint32 {
	var id uint32
	gl.GenVertexArrays(1, &id)
	return id
}

func (Context) DeleteVertexArray(id uint32)           { gl.DeleteVertexArrays(1, &id) }
func (Context) BindVertexArray(id uint32)             { gl.BindVertexArray(id) }
func (Context) EnableVertexAttribArray(index uint32)  { gl.EnableVertexAttribArray(index) }
func (Context) DisableVertexAttribArray(index uint32) { gl.DisableVertexAttribArray(index) }
func (Context) VertexAttribDivisor(index, div uint32) { gl.VertexAttribDivisor(index, div) }

func (Context) VertexAttribPointer(index uint32, size int32, xtype uint32, normalized bool, stride int32, offset uintptr) {
	gl.VertexAttribPointerWithOffset(index, size, xtype, normalized, stride, offset)
}

func (Context) VertexAttribIPointer(index uint32, size int32, xtype uint32, stride int32, offset uintptr) {
	gl.VertexAttribIPointer(index, size, xtype, stride, gl.PtrOffset(int(offset)))
}

// ── Textures and samplers ───────────────────────────────────────────────────

func (Context) GenTexture() uint32 {
	var id uint32
	gl.GenTextures(1, &id)
	return id
}

func (Context) DeleteTexture(id uint32)       { gl.DeleteTextures(1, &id) }
func (Context) ActiveTexture(unit uint32)     { gl.ActiveTexture(unit) }
func (Context) BindTexture(target, id uint32) { gl.BindTexture(target, id) }
func (Context) PixelStorei(p uint32, v int32) { gl.PixelStorei(p, v) }

func (Context) TexImage2D(target uint32, level, internalFormat, width, height int32, format, xtype uint32, data []byte) {
	gl.TexImage2D(target, level, internalFormat, width, height, 0, format, xtype, ptr(data))
}

func (Context) TexParameteri(target, pname uint32, param int32) {
	gl.TexParameteri(target, pname, param)
}

func (Context) GetTexImage(target uint32, level int32, format, xtype uint32, dst []byte) {
	gl.GetTexImage(target, level, format, xtype, ptr(dst))
}

func (Context) GenSampler() uint32 {
	var id uint32
	gl.GenSamplers(1, &id)
	return id
}

func (Context) DeleteSampler(id uint32)     { gl.DeleteSamplers(1, &id) }
func (Context) BindSampler(unit, id uint32) { gl.BindSampler(unit, id) }

func (Context) SamplerParameteri(id, pname uint32, param int32) {
	gl.SamplerParameteri(id, pname, param)
}

func (Context) SamplerParameterf(id, pname uint32, param float32) {
	gl.SamplerParameterf(id, pname, param)
}

func (Context) SamplerParameterfv(id, pname uint32, params []float32) {
	if len(params) > 0 {
		gl.SamplerParameterfv(id, pname, &params[0])
	}
}

// ── Programs ────────────────────────────────────────────────────────────────

func (Context) CreateShader(xtype uint32) uint32 { return gl.CreateShader(xtype) }

func (Context) ShaderSource(id uint32, src string) {
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(id, 1, csrc, nil)
	free()
}

func (Context) CompileShader(id uint32) { gl.CompileShader(id) }

func (Context) ShaderStatus(id uint32) (bool, string) {
	var status int32
	gl.GetShaderiv(id, gl.COMPILE_STATUS, &status)
	if status != gl.FALSE {
		return true, ""
	}
	var logLen int32
	gl.GetShaderiv(id, gl.INFO_LOG_LENGTH, &logLen)
	log := strings.Repeat("\x00", int(logLen+1))
	gl.GetShaderInfoLog(id, logLen, nil, gl.Str(log))
	return false, strings.TrimRight(log, "\x00")
}

func (Context) DeleteShader(id uint32)              { gl.DeleteShader(id) }
func (Context) CreateProgram() uint32               { return gl.CreateProgram() }
func (Context) AttachShader(program, shader uint32) { gl.AttachShader(program, shader) }
func (Context) DetachShader(program, shader uint32) { gl.DetachShader(program, shader) }
func (Context) LinkProgram(program uint32)          { gl.LinkProgram(program) }
func (Context) DeleteProgram(program uint32)        { gl.DeleteProgram(program) }
func (Context) UseProgram(program uint32)           { gl.UseProgram(program) }

func (Context) BindAttribLocation(program, index uint32, name string) {
	s, free := cstr(name)
	defer free()
	gl.BindAttribLocation(program, index, s)
}

func (Context) ProgramStatus(program uint32) (bool, string) {
	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status != gl.FALSE {
		return true, ""
	}
	var logLen int32
	gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
	log := strings.Repeat("\x00", int(logLen+1))
	gl.GetProgramInfoLog(program, logLen, nil, gl.Str(log))
	return false, strings.TrimRight(log, "\x00")
}

func (Context) GetUniformBlockIndex(program uint32, name string) uint32 {
	s, free := cstr(name)
	defer free()
	return gl.GetUniformBlockIndex(program, s)
}

func (Context) UniformBlockBinding(program, block, binding uint32) {
	gl.UniformBlockBinding(program, block, binding)
}

func (Context) GetUniformLocation(program uint32, name string) int32 {
	s, free := cstr(name)
	defer free()
	return gl.GetUniformLocation(program, s)
}

func (Context) Uniform1i(location, v int32) { gl.Uniform1i(location, v) }

// ── Framebuffers ────────────────────────────────────────────────────────────

func (Context) GenFramebuffer() uint32 {
	var id uint32
	gl.GenFramebuffers(1, &id)
	return id
}

func (Context) DeleteFramebuffer(id uint32)            { gl.DeleteFramebuffers(1, &id) }
func (Context) BindFramebuffer(target, id uint32)      { gl.BindFramebuffer(target, id) }
func (Context) CheckFramebufferStatus(t uint32) uint32 { return gl.CheckFramebufferStatus(t) }
func (Context) ReadBuffer(mode uint32)                 { gl.ReadBuffer(mode) }

func (Context) FramebufferTexture2D(target, attachment, texTarget, texture uint32, level int32) {
	gl.FramebufferTexture2D(target, attachment, texTarget, texture, level)
}

func (Context) DrawBuffers(bufs []uint32) {
	if len(bufs) > 0 {
		gl.DrawBuffers(int32(len(bufs)), &bufs[0])
	}
}

func (Context) BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1 int32, mask, filter uint32) {
	gl.BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1, mask, filter)
}

// ── Fixed-function state ────────────────────────────────────────────────────

func (Context) Enable(c uint32)               { gl.Enable(c) }
func (Context) Disable(c uint32)              { gl.Disable(c) }
func (Context) Enablei(c, index uint32)       { gl.Enablei(c, index) }
func (Context) Disablei(c, index uint32)      { gl.Disablei(c, index) }
func (Context) CullFace(mode uint32)          { gl.CullFace(mode) }
func (Context) FrontFace(mode uint32)         { gl.FrontFace(mode) }
func (Context) PolygonMode(face, mode uint32) { gl.PolygonMode(face, mode) }
func (Context) DepthFunc(fn uint32)           { gl.DepthFunc(fn) }
func (Context) DepthMask(flag bool)           { gl.DepthMask(flag) }
func (Context) StencilMask(mask uint32)       { gl.StencilMask(mask) }

func (Context) StencilFuncSeparate(face, fn uint32, ref int32, mask uint32) {
	gl.StencilFuncSeparate(face, fn, ref, mask)
}

func (Context) StencilOpSeparate(face, sfail, dpfail, dppass uint32) {
	gl.StencilOpSeparate(face, sfail, dpfail, dppass)
}

func (Context) BlendFuncSeparatei(buf, srcRGB, dstRGB, srcAlpha, dstAlpha uint32) {
	gl.BlendFuncSeparatei(buf, srcRGB, dstRGB, srcAlpha, dstAlpha)
}

func (Context) BlendEquationSeparatei(buf, modeRGB, modeAlpha uint32) {
	gl.BlendEquationSeparatei(buf, modeRGB, modeAlpha)
}

func (Context) ColorMaski(buf uint32, r, g, b, a bool) { gl.ColorMaski(buf, r, g, b, a) }
func (Context) Viewport(x, y, width, height int32)     { gl.Viewport(x, y, width, height) }
func (Context) DepthRange(near, far float64)           { gl.DepthRange(near, far) }
func (Context) Scissor(x, y, width, height int32)      { gl.Scissor(x, y, width, height) }

func (Context) ClearBufferfv(buffer uint32, drawbuffer int32, value [4]float32) {
	gl.ClearBufferfv(buffer, drawbuffer, &value[0])
}

func (Context) ClearBufferfi(buffer uint32, drawbuffer int32, depth float32, stencil int32) {
	gl.ClearBufferfi(buffer, drawbuffer, depth, stencil)
}

// ── Draws ───────────────────────────────────────────────────────────────────

func (Context) DrawArraysInstanced(mode uint32, first, count, instances int32) {
	gl.DrawArraysInstanced(mode, first, count, instances)
}

func (Context) DrawElementsInstancedBaseVertex(mode uint32, count int32, xtype uint32, offset uintptr, instances, baseVertex int32) {
	gl.DrawElementsInstancedBaseVertex(mode, count, xtype, gl.PtrOffset(int(offset)), instances, baseVertex)
}
