package gfx

import "fmt"

// BufferDescription describes a GPU buffer.
type BufferDescription struct {
	SizeInBytes uint64
	Kind        BufferKind
	Usage       BufferUsage
}

func (d BufferDescription) validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("unsupported buffer kind %v", d.Kind)
	}
	if !d.Usage.Valid() {
		return fmt.Errorf("unsupported buffer usage %v", d.Usage)
	}
	if d.SizeInBytes == 0 {
		return fmt.Errorf("buffer size is zero")
	}
	return nil
}

// Buffer is a vertex, index or uniform buffer in GPU memory.
type Buffer struct {
	refs
	dev    *GraphicsDevice
	handle Handle
	desc   BufferDescription
	mapped []byte
}

func (b *Buffer) Description() BufferDescription { return b.desc }
func (b *Buffer) Size() uint64                   { return b.desc.SizeInBytes }
func (b *Buffer) Handle() Handle                 { return b.handle }

func (b *Buffer) checkWritable(op string, offset uint64, n int) error {
	if b.released() {
		return misuseErr(op, ErrReleased)
	}
	if b.desc.Usage == BufferUsageStatic {
		return misuseErr(op, ErrStaticBuffer)
	}
	if offset+uint64(n) > b.desc.SizeInBytes {
		return misuseErr(op, fmt.Errorf("write of %d bytes at offset %d overflows %d byte buffer", n, offset, b.desc.SizeInBytes))
	}
	return nil
}

// SetData replaces the buffer contents starting at offset zero.
// Static buffers reject it.
func (b *Buffer) SetData(data []byte) error {
	return b.SetSubData(0, data)
}

// SetSubData writes data at offset.
func (b *Buffer) SetSubData(offset uint64, data []byte) error {
	if err := b.checkWritable("buffer set data", offset, len(data)); err != nil {
		return err
	}
	if err := b.dev.alive(); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return b.dev.check(b.backend().WriteBuffer(b.handle, offset, data))
}

// GetData reads back the full buffer contents. It blocks until the GPU has
// finished any pending work on the buffer.
func (b *Buffer) GetData() ([]byte, error) {
	if b.released() {
		return nil, misuseErr("buffer get data", ErrReleased)
	}
	if err := b.dev.alive(); err != nil {
		return nil, err
	}
	dst := make([]byte, b.desc.SizeInBytes)
	if err := b.dev.check(b.backend().ReadBuffer(b.handle, 0, dst)); err != nil {
		return nil, err
	}
	return dst, nil
}

// Map returns a CPU copy of a dynamic buffer's contents. Changes made to the
// slice are written back by Unmap.
func (b *Buffer) Map() ([]byte, error) {
	if err := b.checkWritable("buffer map", 0, 0); err != nil {
		return nil, err
	}
	if b.mapped != nil {
		return nil, misuseErr("buffer map", fmt.Errorf("buffer already mapped"))
	}
	data, err := b.GetData()
	if err != nil {
		return nil, err
	}
	b.mapped = data
	return data, nil
}

// Unmap writes the mapped contents back to the GPU.
func (b *Buffer) Unmap() error {
	if b.mapped == nil {
		return misuseErr("buffer unmap", fmt.Errorf("buffer not mapped"))
	}
	data := b.mapped
	b.mapped = nil
	if err := b.dev.alive(); err != nil {
		return err
	}
	return b.dev.check(b.backend().WriteBuffer(b.handle, 0, data))
}

func (b *Buffer) backend() Backend { return b.dev.backend }
