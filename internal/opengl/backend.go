// Package opengl implements gfx.Backend on an OpenGL 4.1 core context.
//
// GL is an immediate API: the encoder issues GL calls as commands are
// replayed, and resource set bindings are resolved by name against the bound
// program at draw time. All calls must happen on the goroutine that owns the
// context.
package opengl

import (
	"errors"
	"fmt"

	"render-hal/gfx"
	"render-hal/internal/handle"
)

// maxAttribs is the GL_MAX_VERTEX_ATTRIBS minimum guaranteed by GL 4.1.
const maxAttribs = 16

type buffer struct {
	id   uint32
	desc gfx.BufferDescription
}

type texture struct {
	id   uint32
	desc gfx.TextureDescription
	pf   pixelFormat
}

type sampler struct {
	id uint32
}

// target is the render target the GL draw framebuffer currently points at.
// It survives submissions so a swapchain resize can restore it.
type target struct {
	framebuffer gfx.Handle
	swapchain   gfx.Handle
}

var _ gfx.Backend = (*Backend)(nil)

// Backend is the OpenGL gfx.Backend.
type Backend struct {
	gl      GL
	surface gfx.GLSurface
	info    gfx.DeviceInfo
	vao     uint32

	buffers      handle.Table[*buffer]
	textures     handle.Table[*texture]
	samplers     handle.Table[*sampler]
	shaders      handle.Table[*shader]
	pipelines    handle.Table[*pipeline]
	sets         handle.Table[*resourceSet]
	framebuffers handle.Table[*framebuffer]
	swapchains   handle.Table[*swapchain]

	bound       target
	attribsUsed uint32
}

// New creates a backend on the context owned by surface, which becomes
// current. surface may be nil when the caller already made a context current.
func New(gl GL, surface gfx.GLSurface) (*Backend, error) {
	if surface != nil {
		surface.MakeContextCurrent()
	}
	version := gl.GetString(VERSION)
	if version == "" {
		return nil, errors.New("opengl: no current context")
	}
	b := &Backend{
		gl:      gl,
		surface: surface,
		info: gfx.DeviceInfo{
			Backend:  "opengl",
			Renderer: gl.GetString(RENDERER),
			Version:  version,
		},
	}
	b.vao = gl.GenVertexArray()
	gl.BindVertexArray(b.vao)
	b.checkError("init")
	return b, nil
}

func (b *Backend) Info() gfx.DeviceInfo { return b.info }

func (b *Backend) ShaderFormats() []gfx.ShaderFormat {
	return []gfx.ShaderFormat{gfx.ShaderFormatGLSL}
}

// checkError drains the GL error queue. GL errors are diagnostics: they are
// logged and never returned.
func (b *Backend) checkError(op string) {
	for range 8 {
		code := b.gl.GetError()
		if code == NO_ERROR {
			return
		}
		gfx.Logger().Warn("opengl: GL error", "op", op, "error", errorName(code))
	}
}

func lookup[T any](t *handle.Table[T], kind string, h gfx.Handle) (T, error) {
	v, ok := t.Get(h)
	if !ok {
		return v, &gfx.ResourceMisuseError{Op: "opengl", Err: fmt.Errorf("%w: %s %#x", gfx.ErrReleased, kind, uint64(h))}
	}
	return v, nil
}

// ── Buffers ─────────────────────────────────────────────────────────────────

func (b *Backend) CreateBuffer(desc gfx.BufferDescription, data []byte) (gfx.Handle, error) {
	usage := uint32(STATIC_DRAW)
	if desc.Usage == gfx.BufferUsageDynamic {
		usage = DYNAMIC_DRAW
	}
	init := make([]byte, desc.SizeInBytes)
	copy(init, data)

	// COPY_WRITE_BUFFER leaves the VAO's element binding alone.
	id := b.gl.GenBuffer()
	b.gl.BindBuffer(COPY_WRITE_BUFFER, id)
	b.gl.BufferData(COPY_WRITE_BUFFER, init, usage)
	b.gl.BindBuffer(COPY_WRITE_BUFFER, 0)
	b.checkError("create buffer")
	return b.buffers.Insert(&buffer{id: id, desc: desc}), nil
}

func (b *Backend) WriteBuffer(h gfx.Handle, offset uint64, data []byte) error {
	buf, err := lookup(&b.buffers, "buffer", h)
	if err != nil {
		return err
	}
	b.gl.BindBuffer(COPY_WRITE_BUFFER, buf.id)
	b.gl.BufferSubData(COPY_WRITE_BUFFER, int(offset), data)
	b.gl.BindBuffer(COPY_WRITE_BUFFER, 0)
	b.checkError("write buffer")
	return nil
}

func (b *Backend) ReadBuffer(h gfx.Handle, offset uint64, dst []byte) error {
	buf, err := lookup(&b.buffers, "buffer", h)
	if err != nil {
		return err
	}
	b.gl.BindBuffer(COPY_READ_BUFFER, buf.id)
	b.gl.GetBufferSubData(COPY_READ_BUFFER, int(offset), dst)
	b.gl.BindBuffer(COPY_READ_BUFFER, 0)
	b.checkError("read buffer")
	return nil
}

func (b *Backend) DestroyBuffer(h gfx.Handle) {
	if buf, ok := b.buffers.Remove(h); ok {
		b.gl.DeleteBuffer(buf.id)
	}
}

// ── Textures ────────────────────────────────────────────────────────────────

func (b *Backend) CreateTexture(desc gfx.TextureDescription) (gfx.Handle, error) {
	pf, err := glPixelFormat(desc.Format)
	if err != nil {
		return 0, err
	}
	id := b.gl.GenTexture()
	b.gl.BindTexture(TEXTURE_2D, id)
	for level := range desc.MipLevels {
		w, h := max(desc.Width>>level, 1), max(desc.Height>>level, 1)
		b.gl.TexImage2D(TEXTURE_2D, int32(level), pf.internal, int32(w), int32(h), pf.format, pf.xtype, nil)
	}
	b.gl.TexParameteri(TEXTURE_2D, TEXTURE_BASE_LEVEL, 0)
	b.gl.TexParameteri(TEXTURE_2D, TEXTURE_MAX_LEVEL, int32(desc.MipLevels-1))
	b.gl.BindTexture(TEXTURE_2D, 0)
	b.checkError("create texture")
	return b.textures.Insert(&texture{id: id, desc: desc, pf: pf}), nil
}

func (b *Backend) WriteTexture(h gfx.Handle, level uint32, data []byte) error {
	tex, err := lookup(&b.textures, "texture", h)
	if err != nil {
		return err
	}
	w, ht := max(tex.desc.Width>>level, 1), max(tex.desc.Height>>level, 1)
	b.gl.PixelStorei(UNPACK_ALIGNMENT, 1)
	b.gl.BindTexture(TEXTURE_2D, tex.id)
	b.gl.TexImage2D(TEXTURE_2D, int32(level), tex.pf.internal, int32(w), int32(ht), tex.pf.format, tex.pf.xtype, data)
	b.gl.BindTexture(TEXTURE_2D, 0)
	b.checkError("write texture")
	return nil
}

func (b *Backend) ReadTexture(h gfx.Handle, level uint32, dst []byte) error {
	tex, err := lookup(&b.textures, "texture", h)
	if err != nil {
		return err
	}
	b.gl.PixelStorei(PACK_ALIGNMENT, 1)
	b.gl.BindTexture(TEXTURE_2D, tex.id)
	b.gl.GetTexImage(TEXTURE_2D, int32(level), tex.pf.format, tex.pf.xtype, dst)
	b.gl.BindTexture(TEXTURE_2D, 0)
	b.checkError("read texture")
	return nil
}

func (b *Backend) DestroyTexture(h gfx.Handle) {
	if tex, ok := b.textures.Remove(h); ok {
		b.gl.DeleteTexture(tex.id)
	}
}

// ── Samplers ────────────────────────────────────────────────────────────────

func (b *Backend) CreateSampler(desc gfx.SamplerDescription) (gfx.Handle, error) {
	id := b.gl.GenSampler()
	// Textures clamp TEXTURE_MAX_LEVEL to their level count, so a mipmapped
	// min filter is complete on single-level textures too.
	b.gl.SamplerParameteri(id, TEXTURE_MIN_FILTER, minFilter(desc.MinFilter, desc.MipFilter, true))
	b.gl.SamplerParameteri(id, TEXTURE_MAG_FILTER, magFilter(desc.MagFilter))
	b.gl.SamplerParameteri(id, TEXTURE_WRAP_S, addressMode(desc.AddressU))
	b.gl.SamplerParameteri(id, TEXTURE_WRAP_T, addressMode(desc.AddressV))
	b.gl.SamplerParameteri(id, TEXTURE_WRAP_R, addressMode(desc.AddressW))
	b.gl.SamplerParameterf(id, TEXTURE_MIN_LOD, desc.MinLOD)
	b.gl.SamplerParameterf(id, TEXTURE_MAX_LOD, desc.MaxLOD)
	c := desc.BorderColor
	b.gl.SamplerParameterfv(id, TEXTURE_BORDER_COLOR, []float32{c.R, c.G, c.B, c.A})
	if desc.CompareEnable {
		b.gl.SamplerParameteri(id, TEXTURE_COMPARE_MODE, COMPARE_REF_TO_TEXTURE)
		b.gl.SamplerParameteri(id, TEXTURE_COMPARE_FUNC, int32(compareFunc(desc.Compare)))
	}
	if desc.MaxAnisotropy > 1 {
		b.gl.SamplerParameterf(id, TEXTURE_MAX_ANISOTROPY, float32(desc.MaxAnisotropy))
	}
	b.checkError("create sampler")
	return b.samplers.Insert(&sampler{id: id}), nil
}

func (b *Backend) DestroySampler(h gfx.Handle) {
	if s, ok := b.samplers.Remove(h); ok {
		b.gl.DeleteSampler(s.id)
	}
}

// ── Frames ──────────────────────────────────────────────────────────────────

func (b *Backend) BeginFrame() error {
	if b.surface != nil {
		b.surface.MakeContextCurrent()
	}
	return nil
}

func (b *Backend) EndFrame() error {
	b.gl.Flush()
	b.checkError("end frame")
	return nil
}

func (b *Backend) WaitIdle() error {
	b.gl.Finish()
	return nil
}

// Close deletes every GL object the backend still owns.
func (b *Backend) Close() error {
	b.gl.Finish()
	b.swapchains.Each(func(h gfx.Handle, _ *swapchain) { b.DestroySwapchain(h) })
	b.framebuffers.Each(func(h gfx.Handle, _ *framebuffer) { b.DestroyFramebuffer(h) })
	b.sets.Each(func(h gfx.Handle, _ *resourceSet) { b.DestroyResourceSet(h) })
	b.pipelines.Each(func(h gfx.Handle, _ *pipeline) { b.DestroyPipeline(h) })
	b.shaders.Each(func(h gfx.Handle, _ *shader) { b.DestroyShader(h) })
	b.samplers.Each(func(h gfx.Handle, _ *sampler) { b.DestroySampler(h) })
	b.textures.Each(func(h gfx.Handle, _ *texture) { b.DestroyTexture(h) })
	b.buffers.Each(func(h gfx.Handle, _ *buffer) { b.DestroyBuffer(h) })
	b.gl.BindVertexArray(0)
	b.gl.DeleteVertexArray(b.vao)
	b.checkError("close")
	return nil
}
