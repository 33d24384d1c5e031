package gfx

import (
	"fmt"
	"math/bits"
)

// MaxTextureDimension bounds the width and height of textures, framebuffers
// and swapchains.
const MaxTextureDimension = 16384

// TextureDescription describes a 2D texture.
type TextureDescription struct {
	Width, Height uint32
	// MipLevels defaults to 1 when zero.
	MipLevels uint32
	Format    PixelFormat
	Usage     TextureUsage
	Label     string
}

func (d *TextureDescription) validate() error {
	if d.Width == 0 || d.Height == 0 || d.Width > MaxTextureDimension || d.Height > MaxTextureDimension {
		return fmt.Errorf("texture size %dx%d, max %d", d.Width, d.Height, MaxTextureDimension)
	}
	if !d.Format.Valid() {
		return fmt.Errorf("unsupported pixel format %v", d.Format)
	}
	if d.MipLevels == 0 {
		d.MipLevels = 1
	}
	if full := uint32(bits.Len32(max(d.Width, d.Height))); d.MipLevels > full {
		return fmt.Errorf("%d mip levels, a %dx%d texture has %d", d.MipLevels, d.Width, d.Height, full)
	}
	if d.Usage == 0 {
		d.Usage = TextureUsageSampled
	}
	if d.Format.IsDepth() && d.Usage&TextureUsageRenderTarget != 0 {
		return fmt.Errorf("depth format %v used as color target", d.Format)
	}
	if !d.Format.IsDepth() && d.Usage&TextureUsageDepthStencil != 0 {
		return fmt.Errorf("color format %v used as depth target", d.Format)
	}
	return nil
}

// LevelSize returns the byte size of one mip level.
func (d TextureDescription) LevelSize(level uint32) int {
	w, h := max(d.Width>>level, 1), max(d.Height>>level, 1)
	return int(w) * int(h) * int(d.Format.BytesPerPixel())
}

// Texture is a 2D image in GPU memory.
type Texture struct {
	refs
	dev    *GraphicsDevice
	handle Handle
	desc   TextureDescription
}

func (t *Texture) Description() TextureDescription { return t.desc }
func (t *Texture) Width() uint32                   { return t.desc.Width }
func (t *Texture) Height() uint32                  { return t.desc.Height }
func (t *Texture) Format() PixelFormat             { return t.desc.Format }
func (t *Texture) Handle() Handle                  { return t.handle }

func (t *Texture) checkLevel(op string, level uint32, n int) error {
	if t.released() {
		return misuseErr(op, ErrReleased)
	}
	if level >= t.desc.MipLevels {
		return misuseErr(op, fmt.Errorf("mip level %d out of range (%d levels)", level, t.desc.MipLevels))
	}
	if want := t.desc.LevelSize(level); n != want {
		return misuseErr(op, fmt.Errorf("level %d needs %d bytes, got %d", level, want, n))
	}
	return nil
}

// SetData uploads tightly packed texels for one mip level.
func (t *Texture) SetData(level uint32, data []byte) error {
	if err := t.checkLevel("texture set data", level, len(data)); err != nil {
		return err
	}
	if err := t.dev.alive(); err != nil {
		return err
	}
	return t.dev.check(t.dev.backend.WriteTexture(t.handle, level, data))
}

// GetData reads one mip level back to the CPU. It submits a copy and blocks
// until the GPU has completed it.
func (t *Texture) GetData(level uint32) ([]byte, error) {
	if err := t.checkLevel("texture get data", level, t.desc.LevelSize(level)); err != nil {
		return nil, err
	}
	if err := t.dev.alive(); err != nil {
		return nil, err
	}
	dst := make([]byte, t.desc.LevelSize(level))
	if err := t.dev.check(t.dev.backend.ReadTexture(t.handle, level, dst)); err != nil {
		return nil, err
	}
	return dst, nil
}

// SamplerDescription is the filtering and addressing state of a sampler.
type SamplerDescription struct {
	MinFilter, MagFilter, MipFilter Filter
	AddressU, AddressV, AddressW    AddressMode
	MaxAnisotropy                   uint32
	CompareEnable                   bool
	Compare                         CompareFunc
	MinLOD, MaxLOD                  float32
	BorderColor                     Color
}

// DefaultSamplerDescription is trilinear filtering with repeat addressing.
func DefaultSamplerDescription() SamplerDescription {
	return SamplerDescription{
		MinFilter: FilterLinear,
		MagFilter: FilterLinear,
		MipFilter: FilterLinear,
		MaxLOD:    1000,
	}
}

func (d SamplerDescription) validate() error {
	if d.MaxAnisotropy > 16 {
		return fmt.Errorf("max anisotropy %d exceeds 16", d.MaxAnisotropy)
	}
	if d.MinLOD > d.MaxLOD {
		return fmt.Errorf("min lod %v above max lod %v", d.MinLOD, d.MaxLOD)
	}
	if !d.MinFilter.Valid() || !d.MagFilter.Valid() || !d.MipFilter.Valid() {
		return fmt.Errorf("unsupported filter min=%d mag=%d mip=%d", d.MinFilter, d.MagFilter, d.MipFilter)
	}
	if !d.AddressU.Valid() || !d.AddressV.Valid() || !d.AddressW.Valid() {
		return fmt.Errorf("unsupported address mode")
	}
	if !d.Compare.Valid() {
		return fmt.Errorf("unsupported compare function %d", d.Compare)
	}
	return nil
}

type Sampler struct {
	refs
	dev    *GraphicsDevice
	handle Handle
	desc   SamplerDescription
}

func (s *Sampler) Description() SamplerDescription { return s.desc }
func (s *Sampler) Handle() Handle                  { return s.handle }
