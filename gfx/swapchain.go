package gfx

import (
	"errors"
	"fmt"
)

// SwapchainDescription configures a swapchain. Zero Width/Height use the
// surface's framebuffer size.
type SwapchainDescription struct {
	Width, Height uint32
	// BufferCount is the number of color buffers, at least 2.
	BufferCount uint32
	ColorFormat PixelFormat
	// DepthFormat adds a depth buffer when not PixelFormatUndefined.
	DepthFormat PixelFormat
	VSync       bool
}

// DefaultSwapchainDescription is double-buffered BGRA8 with depth and vsync.
func DefaultSwapchainDescription() SwapchainDescription {
	return SwapchainDescription{
		BufferCount: 2,
		ColorFormat: PixelFormatBGRA8Unorm,
		DepthFormat: PixelFormatDepth24Stencil8,
		VSync:       true,
	}
}

func (d SwapchainDescription) validate() error {
	if d.BufferCount < 2 {
		return fmt.Errorf("swapchain needs at least 2 buffers, got %d", d.BufferCount)
	}
	if !d.ColorFormat.Valid() || d.ColorFormat.IsDepth() {
		return fmt.Errorf("unsupported swapchain color format %v", d.ColorFormat)
	}
	if d.DepthFormat != PixelFormatUndefined && !d.DepthFormat.IsDepth() {
		return fmt.Errorf("unsupported swapchain depth format %v", d.DepthFormat)
	}
	if d.Width == 0 || d.Height == 0 || d.Width > MaxTextureDimension || d.Height > MaxTextureDimension {
		return fmt.Errorf("swapchain size %dx%d, max %d", d.Width, d.Height, MaxTextureDimension)
	}
	return nil
}

// Swapchain is the set of buffers a window surface cycles through.
type Swapchain struct {
	refs
	dev     *GraphicsDevice
	handle  Handle
	surface Surface
	desc    SwapchainDescription
}

func (s *Swapchain) Handle() Handle                    { return s.handle }
func (s *Swapchain) Surface() Surface                  { return s.surface }
func (s *Swapchain) Description() SwapchainDescription { return s.desc }

func (s *Swapchain) Width() uint32  { return s.desc.Width }
func (s *Swapchain) Height() uint32 { return s.desc.Height }

// BufferCount returns the number of color buffers.
func (s *Swapchain) BufferCount() uint32 { return s.desc.BufferCount }

func (s *Swapchain) renderTarget() refCounted {
	if s == nil {
		return nil
	}
	return s
}

// Buffers returns the backend handles of the current color buffers. Handles
// from before a Resize are never returned again.
func (s *Swapchain) Buffers() []Handle {
	return s.dev.backend.SwapchainState(s.handle).Buffers
}

// CurrentIndex returns the buffer index the next render pass draws into.
func (s *Swapchain) CurrentIndex() uint32 {
	return s.dev.backend.SwapchainState(s.handle).Current
}

// Prepare acquires the next writable buffer and returns its index.
func (s *Swapchain) Prepare() (uint32, error) {
	if s.released() {
		return 0, misuseErr("swapchain prepare", ErrReleased)
	}
	if err := s.dev.alive(); err != nil {
		return 0, err
	}
	idx, err := s.dev.backend.AcquireSwapchain(s.handle)
	if err != nil {
		return 0, s.dev.check(asFatal("swapchain acquire", err))
	}
	return idx, nil
}

// SwapBuffers presents the current buffer.
func (s *Swapchain) SwapBuffers() error {
	if s.released() {
		return misuseErr("swapchain present", ErrReleased)
	}
	if err := s.dev.alive(); err != nil {
		return err
	}
	return s.dev.check(s.dev.backend.PresentSwapchain(s.handle))
}

func (s *Swapchain) GetVSyncState() bool { return s.desc.VSync }

func (s *Swapchain) SetVSyncState(enabled bool) error {
	if s.released() {
		return misuseErr("swapchain vsync", ErrReleased)
	}
	if err := s.dev.alive(); err != nil {
		return err
	}
	if err := s.dev.check(s.dev.backend.SetSwapchainVSync(s.handle, enabled)); err != nil {
		return err
	}
	s.desc.VSync = enabled
	return nil
}

// Resize recreates the swapchain buffers at the new size. It blocks until the
// GPU no longer uses the old buffers.
func (s *Swapchain) Resize(width, height uint32) error {
	if s.released() {
		return misuseErr("swapchain resize", ErrReleased)
	}
	if width == 0 || height == 0 || width > MaxTextureDimension || height > MaxTextureDimension {
		return configErr("swapchain resize", fmt.Errorf("size %dx%d, max %d", width, height, MaxTextureDimension))
	}
	if err := s.dev.alive(); err != nil {
		return err
	}
	if width == s.desc.Width && height == s.desc.Height {
		return nil
	}
	if err := s.dev.check(s.dev.backend.ResizeSwapchain(s.handle, width, height)); err != nil {
		return err
	}
	Logger().Info("gfx: swapchain resized", "from", fmt.Sprintf("%dx%d", s.desc.Width, s.desc.Height),
		"to", fmt.Sprintf("%dx%d", width, height))
	s.desc.Width, s.desc.Height = width, height
	return nil
}

func (s *Swapchain) free() {
	s.dev.backend.DestroySwapchain(s.handle)
	s.dev.forgetSwapchain(s)
}

// asFatal promotes a native error to a BackendFatalError unless it already
// carries a classification.
func asFatal(op string, err error) error {
	var (
		fe *BackendFatalError
		ce *ConfigurationError
		me *ResourceMisuseError
	)
	if errors.As(err, &fe) || errors.As(err, &ce) || errors.As(err, &me) {
		return err
	}
	return &BackendFatalError{Op: op, Err: err}
}
