// Command demo draws a rotating triangle through the gfx device named in a
// TOML or YAML config file.
//
//	demo [-config render.toml]
//
// Esc closes the window and V toggles vsync.
package main

import (
	"embed"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"render-hal/config"
	_ "render-hal/d3d12"
	"render-hal/gfx"
	_ "render-hal/opengl"
	"render-hal/platform"
	"render-hal/shader"
)

//go:embed shaders
var shaders embed.FS

func main() {
	configPath := flag.String("config", "", "TOML or YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "demo: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	gfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	log := gfx.Logger()

	// ── Window and device ───────────────────────────────────────────────────
	winCfg := platform.DefaultWindowConfig()
	winCfg.Title = cfg.Window.Title
	winCfg.Width = cfg.Window.Width
	winCfg.Height = cfg.Window.Height
	winCfg.Resizable = cfg.Window.Resizable
	if cfg.Backend != "opengl" {
		winCfg.API = platform.APINone
	}
	window, err := platform.NewWindow(winCfg)
	if err != nil {
		return err
	}
	defer window.Destroy()

	d, err := gfx.Open(cfg.Backend, cfg.DeviceOptions(window))
	if err != nil {
		return err
	}
	defer d.Close()
	info := d.Info()
	log.Info("demo: device ready", "backend", info.Backend, "renderer", info.Renderer, "version", info.Version)

	// ── Scene setup ─────────────────────────────────────────────────────────
	src, err := shaders.ReadFile("shaders/triangle.wgsl")
	if err != nil {
		return err
	}
	program, err := shader.Compile("triangle", string(src))
	if err != nil {
		return err
	}
	shaderDesc, err := shaderFor(d, program)
	if err != nil {
		return err
	}
	sh, err := d.CreateShader(shaderDesc)
	if err != nil {
		return err
	}
	defer sh.Release()

	// position xyz, color rgb
	vertices := []float32{
		0.0, 0.6, 0.0, 1.0, 0.2, 0.2,
		-0.6, -0.45, 0.0, 0.2, 1.0, 0.2,
		0.6, -0.45, 0.0, 0.2, 0.2, 1.0,
	}
	vb, err := d.CreateVertexBuffer(uint64(len(vertices)*4), gfx.BufferUsageStatic, gfx.SliceBytes(vertices))
	if err != nil {
		return err
	}
	defer vb.Release()

	layout := program.ResourceSet(0)
	ubo, err := d.CreateUniformBuffer(layout.Bindings[0].Size, gfx.BufferUsageDynamic, nil)
	if err != nil {
		return err
	}
	defer ubo.Release()

	set, err := d.CreateResourceSet(layout)
	if err != nil {
		return err
	}
	defer set.Release()
	if err := set.WriteUniformBuffer(ubo, layout.Bindings[0].Binding); err != nil {
		return err
	}

	scDesc := cfg.SwapchainDescription()
	swapchain, err := d.CreateSwapchain(window, scDesc)
	if err != nil {
		return err
	}
	defer swapchain.Release()

	pipeline, err := d.CreatePipeline(gfx.PipelineDescription{
		Shader:         sh,
		VertexLayouts:  []gfx.VertexBufferLayout{program.VertexLayout()},
		Rasterizer:     gfx.DefaultRasterizerState(),
		DepthStencil:   gfx.DefaultDepthStencilState(),
		ResourceLayout: program.Layout,
		TargetFormats: gfx.TargetFormats{
			Color: []gfx.PixelFormat{scDesc.ColorFormat},
			Depth: scDesc.DepthFormat,
		},
		Topology: gfx.TopologyTriangleList,
	})
	if err != nil {
		return err
	}
	defer pipeline.Release()

	pass, err := d.CreateRenderPass(gfx.RenderPassSpecification{
		Target:             swapchain,
		ColorLoadOp:        gfx.LoadOpClear,
		DepthStencilLoadOp: gfx.LoadOpClear,
		ClearColor:         gfx.Color{R: 0.05, G: 0.06, B: 0.09, A: 1},
		ClearDepth:         1,
	})
	if err != nil {
		return err
	}
	defer pass.Release()

	cl := d.CreateCommandList()
	defer cl.Release()

	// ── Input ───────────────────────────────────────────────────────────────
	window.SetResizeCallback(func(w, h int) {
		if err := d.Resize(uint32(w), uint32(h)); err != nil {
			log.Error("demo: resize failed", "err", err)
		}
	})
	window.SetKeyCallback(func(key platform.Key) {
		switch key {
		case platform.KeyEscape:
			window.SetShouldClose(true)
		case platform.KeyV:
			vsync := !swapchain.GetVSyncState()
			if err := swapchain.SetVSyncState(vsync); err != nil {
				log.Error("demo: vsync toggle failed", "err", err)
				return
			}
			log.Info("demo: vsync", "enabled", vsync)
		}
	})

	// ── Main loop ───────────────────────────────────────────────────────────
	start := time.Now()
	lastReport := start
	var frames int
	for !window.ShouldClose() {
		window.PollEvents()

		if err := d.BeginFrame(); err != nil {
			return err
		}
		if _, err := swapchain.Prepare(); err != nil {
			return err
		}

		angle := float32(time.Since(start).Seconds())
		aspect := float32(swapchain.Width()) / float32(max(swapchain.Height(), 1))
		mvp := rotation(angle, aspect)

		if err := record(cl, pass, pipeline, set, vb, ubo, mvp[:]); err != nil {
			return err
		}
		if err := d.SubmitCommandList(cl); err != nil {
			return err
		}
		if err := swapchain.SwapBuffers(); err != nil {
			return err
		}
		if err := d.EndFrame(); err != nil {
			return err
		}

		frames++
		if now := time.Now(); now.Sub(lastReport) >= time.Second {
			fps := float64(frames) / now.Sub(lastReport).Seconds()
			window.SetTitle(fmt.Sprintf("%s | %s | %.0f fps", cfg.Window.Title, info.Backend, fps))
			log.Debug("demo: frame stats", "fps", fps, "stats", d.Stats())
			frames = 0
			lastReport = now
		}
	}
	return d.WaitIdle()
}

func record(cl *gfx.CommandList, pass *gfx.RenderPass, pipeline *gfx.Pipeline, set *gfx.ResourceSet, vb, ubo *gfx.Buffer, mvp []float32) error {
	steps := []func() error{
		cl.Begin,
		func() error { return cl.UpdateUniformBuffer(ubo, 0, gfx.SliceBytes(mvp)) },
		func() error { return cl.BeginRenderPass(pass) },
		func() error { return cl.SetPipeline(pipeline) },
		func() error { return cl.SetVertexBuffer(0, vb, 0) },
		func() error { return cl.SetResourceSet(set) },
		func() error { return cl.DrawElements(0, 3) },
		cl.EndRenderPass,
		cl.End,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// shaderFor picks the shader source the device consumes. OpenGL uses the
// hand-written GLSL next to the WGSL, which shares its names and layout.
func shaderFor(d *gfx.GraphicsDevice, program *shader.Program) (gfx.ShaderDescription, error) {
	switch format := d.GetSupportedShaderFormat(); format {
	case gfx.ShaderFormatHLSL:
		return program.HLSL()
	case gfx.ShaderFormatGLSL:
		vs, err := shaders.ReadFile("shaders/triangle.vert")
		if err != nil {
			return gfx.ShaderDescription{}, err
		}
		fs, err := shaders.ReadFile("shaders/triangle.frag")
		if err != nil {
			return gfx.ShaderDescription{}, err
		}
		return gfx.ShaderDescription{Label: program.Label, Modules: []gfx.ShaderModule{
			{Stage: gfx.StageVertex, Format: gfx.ShaderFormatGLSL, Source: vs, EntryPoint: "main"},
			{Stage: gfx.StageFragment, Format: gfx.ShaderFormatGLSL, Source: fs, EntryPoint: "main"},
		}}, nil
	default:
		return gfx.ShaderDescription{}, fmt.Errorf("no shader source for format %v", format)
	}
}

// rotation returns a column-major matrix that spins around Z and corrects
// for the aspect ratio.
func rotation(angle, aspect float32) [16]float32 {
	s := float32(math.Sin(float64(angle)))
	c := float32(math.Cos(float64(angle)))
	return [16]float32{
		c / aspect, s, 0, 0,
		-s / aspect, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}
