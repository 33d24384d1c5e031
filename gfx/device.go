package gfx

import (
	"errors"
	"fmt"
	"slices"
)

// Stats counts work issued through a device.
type Stats struct {
	Submissions   uint64
	Commands      uint64
	Draws         uint64
	PipelineBinds uint64
	Frames        uint64
}

// GraphicsDevice creates every gfx object and is the single point where
// recorded work reaches the GPU. Its methods, and the methods of the
// objects it creates, must be called from the goroutine that owns it;
// command lists are the exception while recording.
type GraphicsDevice struct {
	backend Backend
	opts    Options
	info    DeviceInfo

	lost           error
	inFrame        bool
	swapchains     []*Swapchain
	defaultSampler *Sampler
	stats          Stats
}

// NewGraphicsDevice wraps an already created backend.
func NewGraphicsDevice(b Backend, opts Options) (*GraphicsDevice, error) {
	if b == nil {
		return nil, &BackendFatalError{Op: "create device", Err: errors.New("nil backend")}
	}
	if opts.FenceTimeout == 0 {
		opts.FenceTimeout = DefaultFenceTimeout
	}
	d := &GraphicsDevice{backend: b, opts: opts, info: b.Info()}
	Logger().Info("gfx: device created",
		"backend", d.info.Backend,
		"renderer", d.info.Renderer,
		"version", d.info.Version,
		"shaderFormat", d.GetSupportedShaderFormat())
	return d, nil
}

func (d *GraphicsDevice) Info() DeviceInfo { return d.info }
func (d *GraphicsDevice) Options() Options { return d.opts }
func (d *GraphicsDevice) Stats() Stats     { return d.stats }

// GetSupportedShaderFormat reports the shader dialect the backend prefers.
// The shader collaborator uses it to pick its output.
func (d *GraphicsDevice) GetSupportedShaderFormat() ShaderFormat {
	return d.backend.ShaderFormats()[0]
}

// Err returns the fatal error that made the device unusable, or nil.
func (d *GraphicsDevice) Err() error { return d.lost }

func (d *GraphicsDevice) alive() error {
	if d.lost != nil {
		return &BackendFatalError{Op: "device", Err: fmt.Errorf("%w: %w", ErrDeviceLost, d.lost)}
	}
	return nil
}

// check records fatal errors so later calls fail fast.
func (d *GraphicsDevice) check(err error) error {
	if err != nil && IsFatal(err) && d.lost == nil {
		d.lost = err
		Logger().Error("gfx: device lost", "backend", d.info.Backend, "err", err)
	}
	return err
}

// ── Factories ───────────────────────────────────────────────────────────────

func (d *GraphicsDevice) CreateCommandList() *CommandList {
	return &CommandList{dev: d}
}

// CreateBuffer creates a buffer of any kind. Initial data may be nil for
// dynamic buffers; static buffers can only be filled here.
func (d *GraphicsDevice) CreateBuffer(desc BufferDescription, data []byte) (*Buffer, error) {
	const op = "create buffer"
	if err := desc.validate(); err != nil {
		return nil, configErr(op, err)
	}
	if uint64(len(data)) > desc.SizeInBytes {
		return nil, misuseErr(op, fmt.Errorf("%d bytes of data for %d byte buffer", len(data), desc.SizeInBytes))
	}
	if err := d.alive(); err != nil {
		return nil, err
	}
	h, err := d.backend.CreateBuffer(desc, data)
	if err != nil {
		return nil, d.check(fmt.Errorf("%s: %w", op, err))
	}
	b := &Buffer{dev: d, handle: h, desc: desc}
	b.init(func() { d.backend.DestroyBuffer(h) })
	Logger().Debug("gfx: buffer created", "kind", desc.Kind, "usage", desc.Usage, "size", desc.SizeInBytes)
	return b, nil
}

func (d *GraphicsDevice) CreateVertexBuffer(size uint64, usage BufferUsage, data []byte) (*Buffer, error) {
	return d.CreateBuffer(BufferDescription{SizeInBytes: size, Kind: BufferKindVertex, Usage: usage}, data)
}

func (d *GraphicsDevice) CreateIndexBuffer(size uint64, usage BufferUsage, data []byte) (*Buffer, error) {
	return d.CreateBuffer(BufferDescription{SizeInBytes: size, Kind: BufferKindIndex, Usage: usage}, data)
}

func (d *GraphicsDevice) CreateUniformBuffer(size uint64, usage BufferUsage, data []byte) (*Buffer, error) {
	return d.CreateBuffer(BufferDescription{SizeInBytes: size, Kind: BufferKindUniform, Usage: usage}, data)
}

func (d *GraphicsDevice) CreateTexture(desc TextureDescription) (*Texture, error) {
	const op = "create texture"
	if err := desc.validate(); err != nil {
		return nil, configErr(op, err)
	}
	if err := d.alive(); err != nil {
		return nil, err
	}
	h, err := d.backend.CreateTexture(desc)
	if err != nil {
		return nil, d.check(fmt.Errorf("%s: %w", op, err))
	}
	t := &Texture{dev: d, handle: h, desc: desc}
	t.init(func() { d.backend.DestroyTexture(h) })
	return t, nil
}

func (d *GraphicsDevice) CreateSampler(desc SamplerDescription) (*Sampler, error) {
	const op = "create sampler"
	if err := desc.validate(); err != nil {
		return nil, configErr(op, err)
	}
	if err := d.alive(); err != nil {
		return nil, err
	}
	h, err := d.backend.CreateSampler(desc)
	if err != nil {
		return nil, d.check(fmt.Errorf("%s: %w", op, err))
	}
	s := &Sampler{dev: d, handle: h, desc: desc}
	s.init(func() { d.backend.DestroySampler(h) })
	return s, nil
}

// DefaultSampler returns the device-owned sampler used by
// ResourceSet.WriteTexture. It is created on first use.
func (d *GraphicsDevice) DefaultSampler() (*Sampler, error) {
	if d.defaultSampler == nil {
		s, err := d.CreateSampler(DefaultSamplerDescription())
		if err != nil {
			return nil, err
		}
		d.defaultSampler = s
	}
	return d.defaultSampler, nil
}

func (d *GraphicsDevice) CreateShader(desc ShaderDescription) (*Shader, error) {
	const op = "create shader"
	if err := desc.validate(d.backend.ShaderFormats()); err != nil {
		return nil, configErr(op, err)
	}
	if err := d.alive(); err != nil {
		return nil, err
	}
	h, err := d.backend.CreateShader(desc)
	if err != nil {
		return nil, d.check(fmt.Errorf("%s %q: %w", op, desc.Label, err))
	}
	s := &Shader{dev: d, handle: h, desc: desc}
	s.init(func() { d.backend.DestroyShader(h) })
	return s, nil
}

// CreatePipeline validates and bakes desc. A description without a shader
// fails here, not at the first draw.
func (d *GraphicsDevice) CreatePipeline(desc PipelineDescription) (*Pipeline, error) {
	const op = "create pipeline"
	if err := desc.validate(); err != nil {
		return nil, configErr(op, err)
	}
	if desc.Shader.released() {
		return nil, misuseErr(op, fmt.Errorf("shader: %w", ErrReleased))
	}
	if err := d.alive(); err != nil {
		return nil, err
	}
	p := &Pipeline{dev: d, desc: desc.clone()}
	h, err := d.backend.CreatePipeline(&p.desc, desc.Shader.handle)
	if err != nil {
		return nil, d.check(fmt.Errorf("%s: %w", op, err))
	}
	p.handle = h
	shader := desc.Shader
	shader.Retain()
	p.init(func() {
		d.backend.DestroyPipeline(h)
		shader.Release()
	})
	Logger().Debug("gfx: pipeline created", "topology", desc.Topology, "sets", len(desc.ResourceLayout))
	return p, nil
}

// CreateResourceSet creates an empty binding table for spec.
func (d *GraphicsDevice) CreateResourceSet(spec *ResourceSetSpecification) (*ResourceSet, error) {
	const op = "create resource set"
	if spec == nil {
		return nil, configErr(op, errors.New("nil specification"))
	}
	if err := spec.Validate(); err != nil {
		return nil, configErr(op, err)
	}
	if err := d.alive(); err != nil {
		return nil, err
	}
	spec = spec.Clone()
	h, err := d.backend.CreateResourceSet(spec)
	if err != nil {
		return nil, d.check(fmt.Errorf("%s: %w", op, err))
	}
	rs := &ResourceSet{dev: d, handle: h, spec: spec, written: map[uint32][]refCounted{}}
	rs.init(func() {
		d.backend.DestroyResourceSet(h)
		rs.free()
	})
	return rs, nil
}

func (d *GraphicsDevice) CreateFramebuffer(desc FramebufferDescription) (*Framebuffer, error) {
	const op = "create framebuffer"
	w, h, err := desc.validate()
	if err != nil {
		return nil, configErr(op, err)
	}
	if err := d.alive(); err != nil {
		return nil, err
	}
	color := make([]Handle, len(desc.Color))
	for i, t := range desc.Color {
		color[i] = t.handle
	}
	var depth Handle
	if desc.Depth != nil {
		depth = desc.Depth.handle
	}
	fh, err := d.backend.CreateFramebuffer(color, depth)
	if err != nil {
		return nil, d.check(fmt.Errorf("%s: %w", op, err))
	}
	fb := &Framebuffer{dev: d, handle: fh, color: slices.Clone(desc.Color), depth: desc.Depth, width: w, height: h}
	for _, t := range fb.color {
		t.Retain()
	}
	if fb.depth != nil {
		fb.depth.Retain()
	}
	fb.init(fb.free)
	return fb, nil
}

// CreateSwapchain creates a swapchain presenting to surface.
func (d *GraphicsDevice) CreateSwapchain(surface Surface, desc SwapchainDescription) (*Swapchain, error) {
	const op = "create swapchain"
	if surface == nil {
		return nil, configErr(op, errors.New("nil surface"))
	}
	if desc.Width == 0 || desc.Height == 0 {
		w, h := surface.FramebufferSize()
		desc.Width, desc.Height = uint32(max(w, 0)), uint32(max(h, 0))
	}
	if err := desc.validate(); err != nil {
		return nil, configErr(op, err)
	}
	if err := d.alive(); err != nil {
		return nil, err
	}
	h, err := d.backend.CreateSwapchain(surface, desc)
	if err != nil {
		return nil, d.check(asFatal(op, err))
	}
	s := &Swapchain{dev: d, handle: h, surface: surface, desc: desc}
	s.init(s.free)
	d.swapchains = append(d.swapchains, s)
	Logger().Info("gfx: swapchain created", "width", desc.Width, "height", desc.Height,
		"buffers", desc.BufferCount, "format", desc.ColorFormat)
	return s, nil
}

func (d *GraphicsDevice) forgetSwapchain(s *Swapchain) {
	d.swapchains = slices.DeleteFunc(d.swapchains, func(x *Swapchain) bool { return x == s })
}

// CreateRenderPass binds load operations to a framebuffer or swapchain.
func (d *GraphicsDevice) CreateRenderPass(spec RenderPassSpecification) (*RenderPass, error) {
	const op = "create render pass"
	if spec.Target == nil {
		return nil, configErr(op, errors.New("render pass has no target"))
	}
	if !spec.ColorLoadOp.Valid() || !spec.DepthStencilLoadOp.Valid() {
		return nil, configErr(op, fmt.Errorf("unsupported load op %v/%v", spec.ColorLoadOp, spec.DepthStencilLoadOp))
	}
	target := spec.Target.renderTarget()
	if target == nil {
		return nil, configErr(op, errors.New("render pass target is a nil framebuffer or swapchain"))
	}
	if target.released() {
		return nil, misuseErr(op, fmt.Errorf("target: %w", ErrReleased))
	}
	target.Retain()
	p := &RenderPass{spec: spec}
	p.init(target.Release)
	return p, nil
}

// ── Frames and submission ───────────────────────────────────────────────────

func (d *GraphicsDevice) BeginFrame() error {
	if err := d.alive(); err != nil {
		return err
	}
	if d.inFrame {
		return misuseErr("begin frame", fmt.Errorf("%w: frame already begun", ErrInvalidState))
	}
	if err := d.check(d.backend.BeginFrame()); err != nil {
		return err
	}
	d.inFrame = true
	return nil
}

func (d *GraphicsDevice) EndFrame() error {
	if err := d.alive(); err != nil {
		return err
	}
	if !d.inFrame {
		return misuseErr("end frame", fmt.Errorf("%w: no frame begun", ErrInvalidState))
	}
	d.inFrame = false
	d.stats.Frames++
	return d.check(d.backend.EndFrame())
}

// SubmitCommandList replays a recorded command list on the backend. Replay
// stops at the first error and the encoder is aborted. Deferred backends then
// drop the whole submission; immediate ones (GL) keep what already executed.
func (d *GraphicsDevice) SubmitCommandList(cl *CommandList) error {
	const op = "submit command list"
	if err := d.alive(); err != nil {
		return err
	}
	if cl == nil || cl.dev != d {
		return misuseErr(op, errors.New("command list belongs to another device"))
	}
	if cl.state != CommandListRecorded {
		return misuseErr(op, fmt.Errorf("%w: submit while %v", ErrInvalidState, cl.state))
	}
	enc, err := d.backend.Encode()
	if err != nil {
		return d.check(fmt.Errorf("%s: %w", op, err))
	}
	cl.state = CommandListSubmitted
	r := replayer{dev: d, enc: enc, sets: map[uint32]*ResourceSet{}}
	for i, c := range cl.cmds {
		if err := r.exec(c); err != nil {
			enc.Abort()
			return d.check(fmt.Errorf("%s: command %d (%T): %w", op, i, c, err))
		}
	}
	if err := enc.Finish(); err != nil {
		return d.check(fmt.Errorf("%s: %w", op, err))
	}
	d.stats.Submissions++
	d.stats.Commands += uint64(len(cl.cmds))
	return nil
}

// Resize resizes every swapchain created by the device.
func (d *GraphicsDevice) Resize(width, height uint32) error {
	for _, s := range slices.Clone(d.swapchains) {
		if err := s.Resize(width, height); err != nil {
			return err
		}
	}
	return nil
}

// WaitIdle blocks until the GPU has finished all submitted work.
func (d *GraphicsDevice) WaitIdle() error {
	if err := d.alive(); err != nil {
		return err
	}
	return d.check(d.backend.WaitIdle())
}

// Close waits for the GPU and destroys the native device. Objects still
// referenced by the caller must not be used afterwards.
func (d *GraphicsDevice) Close() error {
	if d.defaultSampler != nil {
		d.defaultSampler.Release()
		d.defaultSampler = nil
	}
	if d.lost == nil {
		if err := d.backend.WaitIdle(); err != nil {
			Logger().Warn("gfx: wait idle on close", "err", err)
		}
	}
	return d.backend.Close()
}
