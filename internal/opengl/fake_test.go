package opengl

import (
	"maps"
	"strings"
)

type fakeTex struct {
	levels map[int32][]byte
	format uint32
	xtype  uint32
	w, h   map[int32]int32
}

type fakeProgram struct {
	sources  []string
	attribs  map[string]uint32
	blocks   []string
	bindings map[string]uint32
	uniforms map[int32]int32
	locs     []string
}

type drawCall struct {
	mode       uint32
	first      int32
	count      int32
	instances  int32
	indexed    bool
	indexType  uint32
	offset     uintptr
	baseVertex int32
	program    uint32
	fbo        uint32
	ubos       map[uint32][]byte
	attribs    map[uint32]attribPointer
	textures   map[uint32]uint32
	samplers   map[uint32]uint32
}

type attribPointer struct {
	buffer     uint32
	size       int32
	xtype      uint32
	normalized bool
	integer    bool
	stride     int32
	offset     uintptr
	divisor    uint32
}

type clearCall struct {
	buffer  uint32
	draw    int32
	value   [4]float32
	stencil int32
	fbo     uint32
}

// fakeGL is an in-memory GL 4.1 context. It stores buffer and texture
// contents, tracks the state the backend sets and records draws.
type fakeGL struct {
	next uint32

	errors []uint32

	buffers  map[uint32][]byte
	bound    map[uint32]uint32
	ubo      map[uint32]uint32
	textures map[uint32]*fakeTex
	active   uint32
	unitTex  map[uint32]uint32
	samplers map[uint32]map[uint32]int32
	unitSamp map[uint32]uint32
	unpack   int32
	pack     int32

	shaders  map[uint32]string
	programs map[uint32]*fakeProgram
	attached map[uint32][]uint32
	current  uint32

	fbos       map[uint32]map[uint32]uint32
	drawFBO    uint32
	readFBO    uint32
	incomplete bool

	caps      map[uint32]bool
	capsi     map[[2]uint32]bool
	cull      uint32
	front     uint32
	polygon   uint32
	depthFunc uint32
	depthMask bool
	stencil   uint32
	blendFunc map[uint32][4]uint32
	blendEq   map[uint32][2]uint32
	colorMask map[uint32][4]bool
	viewport  [4]int32
	scissor   [4]int32

	enabledAttribs map[uint32]bool
	pointers       map[uint32]attribPointer

	draws    []drawCall
	clears   []clearCall
	blits    int
	finishes int
	flushes  int
}

func newFakeGL() *fakeGL {
	return &fakeGL{
		buffers:        map[uint32][]byte{},
		bound:          map[uint32]uint32{},
		ubo:            map[uint32]uint32{},
		textures:       map[uint32]*fakeTex{},
		unitTex:        map[uint32]uint32{},
		samplers:       map[uint32]map[uint32]int32{},
		unitSamp:       map[uint32]uint32{},
		shaders:        map[uint32]string{},
		programs:       map[uint32]*fakeProgram{},
		attached:       map[uint32][]uint32{},
		fbos:           map[uint32]map[uint32]uint32{},
		caps:           map[uint32]bool{},
		capsi:          map[[2]uint32]bool{},
		blendFunc:      map[uint32][4]uint32{},
		blendEq:        map[uint32][2]uint32{},
		colorMask:      map[uint32][4]bool{},
		enabledAttribs: map[uint32]bool{},
		pointers:       map[uint32]attribPointer{},
		depthMask:      true,
	}
}

func (f *fakeGL) id() uint32 {
	f.next++
	return f.next
}

func (f *fakeGL) GetError() uint32 {
	if len(f.errors) == 0 {
		return NO_ERROR
	}
	e := f.errors[0]
	f.errors = f.errors[1:]
	return e
}

func (f *fakeGL) GetString(name uint32) string {
	switch name {
	case VERSION:
		return "4.1 fake"
	case RENDERER:
		return "fake renderer"
	}
	return "fake"
}

func (f *fakeGL) Finish() { f.finishes++ }
func (f *fakeGL) Flush()  { f.flushes++ }

// ── Buffers ─────────────────────────────────────────────────────────────────

func (f *fakeGL) GenBuffer() uint32 {
	id := f.id()
	f.buffers[id] = nil
	return id
}

func (f *fakeGL) DeleteBuffer(id uint32)       { delete(f.buffers, id) }
func (f *fakeGL) BindBuffer(target, id uint32) { f.bound[target] = id }

func (f *fakeGL) BufferData(target uint32, data []byte, usage uint32) {
	f.buffers[f.bound[target]] = append([]byte(nil), data...)
}

func (f *fakeGL) BufferSubData(target uint32, offset int, data []byte) {
	copy(f.buffers[f.bound[target]][offset:], data)
}

func (f *fakeGL) GetBufferSubData(target uint32, offset int, dst []byte) {
	copy(dst, f.buffers[f.bound[target]][offset:])
}

func (f *fakeGL) BindBufferBase(target, index, id uint32) {
	if target == UNIFORM_BUFFER {
		f.ubo[index] = id
	}
}

// ── Vertex input ────────────────────────────────────────────────────────────

func (f *fakeGL) GenVertexArray() uint32                { return f.id() }
func (f *fakeGL) DeleteVertexArray(uint32)              {}
func (f *fakeGL) BindVertexArray(uint32)                {}
func (f *fakeGL) EnableVertexAttribArray(index uint32)  { f.enabledAttribs[index] = true }
func (f *fakeGL) DisableVertexAttribArray(index uint32) { delete(f.enabledAttribs, index) }

func (f *fakeGL) VertexAttribPointer(index uint32, size int32, xtype uint32, normalized bool, stride int32, offset uintptr) {
	f.pointers[index] = attribPointer{buffer: f.bound[ARRAY_BUFFER], size: size, xtype: xtype, normalized: normalized, stride: stride, offset: offset}
}

func (f *fakeGL) VertexAttribIPointer(index uint32, size int32, xtype uint32, stride int32, offset uintptr) {
	f.pointers[index] = attribPointer{buffer: f.bound[ARRAY_BUFFER], size: size, xtype: xtype, integer: true, stride: stride, offset: offset}
}

func (f *fakeGL) VertexAttribDivisor(index, divisor uint32) {
	p := f.pointers[index]
	p.divisor = divisor
	f.pointers[index] = p
}

// ── Textures and samplers ───────────────────────────────────────────────────

func (f *fakeGL) GenTexture() uint32 {
	id := f.id()
	f.textures[id] = &fakeTex{levels: map[int32][]byte{}, w: map[int32]int32{}, h: map[int32]int32{}}
	return id
}

func (f *fakeGL) DeleteTexture(id uint32)         { delete(f.textures, id) }
func (f *fakeGL) ActiveTexture(unit uint32)       { f.active = unit - TEXTURE0 }
func (f *fakeGL) BindTexture(_ uint32, id uint32) { f.unitTex[f.active] = id }

func texelSize(format, xtype uint32) int {
	comps := 4
	switch format {
	case RED, DEPTH_COMPONENT, DEPTH_STENCIL:
		comps = 1
	}
	switch xtype {
	case HALF_FLOAT:
		return comps * 2
	case FLOAT, UNSIGNED_INT_24_8:
		return comps * 4
	}
	return comps
}

func (f *fakeGL) TexImage2D(_ uint32, level, _, width, height int32, format, xtype uint32, data []byte) {
	t := f.textures[f.unitTex[f.active]]
	t.format, t.xtype = format, xtype
	t.w[level], t.h[level] = width, height
	buf := make([]byte, int(width*height)*texelSize(format, xtype))
	copy(buf, data)
	t.levels[level] = buf
}

func (f *fakeGL) TexParameteri(uint32, uint32, int32) {}

func (f *fakeGL) GetTexImage(_ uint32, level int32, _, _ uint32, dst []byte) {
	copy(dst, f.textures[f.unitTex[f.active]].levels[level])
}

func (f *fakeGL) PixelStorei(pname uint32, param int32) {
	if pname == PACK_ALIGNMENT {
		f.pack = param
	} else {
		f.unpack = param
	}
}

func (f *fakeGL) GenSampler() uint32 {
	id := f.id()
	f.samplers[id] = map[uint32]int32{}
	return id
}

func (f *fakeGL) DeleteSampler(id uint32)                           { delete(f.samplers, id) }
func (f *fakeGL) BindSampler(unit, id uint32)                       { f.unitSamp[unit] = id }
func (f *fakeGL) SamplerParameteri(id, pname uint32, param int32)   { f.samplers[id][pname] = param }
func (f *fakeGL) SamplerParameterf(id, pname uint32, param float32) { f.samplers[id][pname] = int32(param) }
func (f *fakeGL) SamplerParameterfv(uint32, uint32, []float32)      {}

// ── Programs ────────────────────────────────────────────────────────────────

func (f *fakeGL) CreateShader(uint32) uint32 {
	id := f.id()
	f.shaders[id] = ""
	return id
}

func (f *fakeGL) ShaderSource(id uint32, src string) { f.shaders[id] = src }
func (f *fakeGL) CompileShader(uint32)               {}

// ShaderStatus fails any source containing "syntax error".
func (f *fakeGL) ShaderStatus(id uint32) (bool, string) {
	if strings.Contains(f.shaders[id], "syntax error") {
		return false, "0:1: syntax error"
	}
	return true, ""
}

func (f *fakeGL) DeleteShader(id uint32) { delete(f.shaders, id) }

func (f *fakeGL) CreateProgram() uint32 {
	id := f.id()
	f.programs[id] = &fakeProgram{attribs: map[string]uint32{}, bindings: map[string]uint32{}, uniforms: map[int32]int32{}}
	return id
}

func (f *fakeGL) AttachShader(program, shader uint32) {
	f.attached[program] = append(f.attached[program], shader)
	f.programs[program].sources = append(f.programs[program].sources, f.shaders[shader])
}

func (f *fakeGL) DetachShader(program, _ uint32) { delete(f.attached, program) }

func (f *fakeGL) BindAttribLocation(program, index uint32, name string) {
	f.programs[program].attribs[name] = index
}

func (f *fakeGL) LinkProgram(uint32) {}

// ProgramStatus fails to link programs with no attached stage.
func (f *fakeGL) ProgramStatus(program uint32) (bool, string) {
	if len(f.programs[program].sources) == 0 {
		return false, "no shaders attached"
	}
	return true, ""
}

func (f *fakeGL) DeleteProgram(program uint32) { delete(f.programs, program) }
func (f *fakeGL) UseProgram(program uint32)    { f.current = program }

// GetUniformBlockIndex finds "uniform <name>" in any attached source.
func (f *fakeGL) GetUniformBlockIndex(program uint32, name string) uint32 {
	p := f.programs[program]
	for _, src := range p.sources {
		if strings.Contains(src, "uniform "+name) {
			p.blocks = append(p.blocks, name)
			return uint32(len(p.blocks) - 1)
		}
	}
	return INVALID_INDEX
}

func (f *fakeGL) UniformBlockBinding(program, block, binding uint32) {
	p := f.programs[program]
	p.bindings[p.blocks[block]] = binding
}

// GetUniformLocation finds "sampler2D <name>" in any attached source.
func (f *fakeGL) GetUniformLocation(program uint32, name string) int32 {
	p := f.programs[program]
	for _, src := range p.sources {
		if strings.Contains(src, "sampler2D "+name) {
			p.locs = append(p.locs, name)
			return int32(len(p.locs) - 1)
		}
	}
	return -1
}

func (f *fakeGL) Uniform1i(location, v int32) {
	f.programs[f.current].uniforms[location] = v
}

// ── Framebuffers ────────────────────────────────────────────────────────────

func (f *fakeGL) GenFramebuffer() uint32 {
	id := f.id()
	f.fbos[id] = map[uint32]uint32{}
	return id
}

func (f *fakeGL) DeleteFramebuffer(id uint32) { delete(f.fbos, id) }

func (f *fakeGL) BindFramebuffer(target, id uint32) {
	switch target {
	case FRAMEBUFFER:
		f.drawFBO, f.readFBO = id, id
	case DRAW_FRAMEBUFFER:
		f.drawFBO = id
	case READ_FRAMEBUFFER:
		f.readFBO = id
	}
}

func (f *fakeGL) FramebufferTexture2D(_, attachment, _, texture uint32, _ int32) {
	f.fbos[f.drawFBO][attachment] = texture
}

func (f *fakeGL) CheckFramebufferStatus(uint32) uint32 {
	if f.incomplete {
		return 0x8CD6
	}
	return FRAMEBUFFER_COMPLETE
}

func (f *fakeGL) DrawBuffers([]uint32) {}
func (f *fakeGL) ReadBuffer(uint32)    {}

func (f *fakeGL) BlitFramebuffer(_, _, _, _, _, _, _, _ int32, _, _ uint32) { f.blits++ }

// ── Fixed-function state ────────────────────────────────────────────────────

func (f *fakeGL) Enable(c uint32)            { f.caps[c] = true }
func (f *fakeGL) Disable(c uint32)           { f.caps[c] = false }
func (f *fakeGL) Enablei(c, index uint32)    { f.capsi[[2]uint32{c, index}] = true }
func (f *fakeGL) Disablei(c, index uint32)   { f.capsi[[2]uint32{c, index}] = false }
func (f *fakeGL) CullFace(mode uint32)       { f.cull = mode }
func (f *fakeGL) FrontFace(mode uint32)      { f.front = mode }
func (f *fakeGL) PolygonMode(_, mode uint32) { f.polygon = mode }
func (f *fakeGL) DepthFunc(fn uint32)        { f.depthFunc = fn }
func (f *fakeGL) DepthMask(flag bool)        { f.depthMask = flag }
func (f *fakeGL) StencilMask(mask uint32)    { f.stencil = mask }

func (f *fakeGL) StencilFuncSeparate(uint32, uint32, int32, uint32) {}
func (f *fakeGL) StencilOpSeparate(uint32, uint32, uint32, uint32)  {}

func (f *fakeGL) BlendFuncSeparatei(buf, srcRGB, dstRGB, srcAlpha, dstAlpha uint32) {
	f.blendFunc[buf] = [4]uint32{srcRGB, dstRGB, srcAlpha, dstAlpha}
}

func (f *fakeGL) BlendEquationSeparatei(buf, modeRGB, modeAlpha uint32) {
	f.blendEq[buf] = [2]uint32{modeRGB, modeAlpha}
}

func (f *fakeGL) ColorMaski(buf uint32, r, g, b, a bool) { f.colorMask[buf] = [4]bool{r, g, b, a} }
func (f *fakeGL) Viewport(x, y, width, height int32)     { f.viewport = [4]int32{x, y, width, height} }
func (f *fakeGL) DepthRange(float64, float64)            {}
func (f *fakeGL) Scissor(x, y, width, height int32)      { f.scissor = [4]int32{x, y, width, height} }

func (f *fakeGL) ClearBufferfv(buffer uint32, drawbuffer int32, value [4]float32) {
	f.clears = append(f.clears, clearCall{buffer: buffer, draw: drawbuffer, value: value, fbo: f.drawFBO})
}

func (f *fakeGL) ClearBufferfi(buffer uint32, drawbuffer int32, depth float32, stencil int32) {
	f.clears = append(f.clears, clearCall{buffer: buffer, draw: drawbuffer, value: [4]float32{depth}, stencil: stencil, fbo: f.drawFBO})
}

// ── Draws ───────────────────────────────────────────────────────────────────

func (f *fakeGL) snapshot(mode uint32) drawCall {
	d := drawCall{
		mode:     mode,
		program:  f.current,
		fbo:      f.drawFBO,
		ubos:     map[uint32][]byte{},
		attribs:  map[uint32]attribPointer{},
		textures: maps.Clone(f.unitTex),
		samplers: maps.Clone(f.unitSamp),
	}
	for point, id := range f.ubo {
		d.ubos[point] = append([]byte(nil), f.buffers[id]...)
	}
	for loc := range f.enabledAttribs {
		d.attribs[loc] = f.pointers[loc]
	}
	return d
}

func (f *fakeGL) DrawArraysInstanced(mode uint32, first, count, instances int32) {
	d := f.snapshot(mode)
	d.first, d.count, d.instances = first, count, instances
	f.draws = append(f.draws, d)
}

func (f *fakeGL) DrawElementsInstancedBaseVertex(mode uint32, count int32, xtype uint32, offset uintptr, instances, baseVertex int32) {
	d := f.snapshot(mode)
	d.count, d.instances, d.indexed = count, instances, true
	d.indexType, d.offset, d.baseVertex = xtype, offset, baseVertex
	f.draws = append(f.draws, d)
}

// ── Surface ─────────────────────────────────────────────────────────────────

type fakeSurface struct {
	w, h     int
	swaps    int
	interval int
	current  int
}

func (s *fakeSurface) FramebufferSize() (int, int) { return s.w, s.h }
func (s *fakeSurface) MakeContextCurrent()         { s.current++ }
func (s *fakeSurface) SwapBuffers()                { s.swaps++ }
func (s *fakeSurface) SwapInterval(interval int)   { s.interval = interval }
