package gfx

import (
	"sync/atomic"
	"unsafe"
)

// refs is the shared reference count embedded by every device object.
// A new object starts with one reference owned by its creator. The free
// function runs exactly once, when the last reference is released.
type refs struct {
	n    atomic.Int32
	free func()
}

func (r *refs) init(free func()) {
	r.n.Store(1)
	r.free = free
}

// Retain adds a reference. The object stays alive until every Retain is
// balanced by a Release.
func (r *refs) Retain() {
	if r.n.Add(1) <= 1 {
		panic("gfx: Retain on released object")
	}
}

// Release drops a reference and destroys the object when none remain.
// Releasing more often than retaining is a no-op.
func (r *refs) Release() {
	for {
		n := r.n.Load()
		if n <= 0 {
			return
		}
		if r.n.CompareAndSwap(n, n-1) {
			if n == 1 && r.free != nil {
				r.free()
			}
			return
		}
	}
}

// RefCount returns the number of outstanding references.
func (r *refs) RefCount() int32 { return r.n.Load() }

func (r *refs) released() bool { return r.n.Load() <= 0 }

// refCounted is satisfied by every device object.
type refCounted interface {
	Retain()
	Release()
	released() bool
}

// SliceBytes reinterprets a slice of plain values (vertices, matrices,
// indices) as its underlying bytes without copying.
func SliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// ValueBytes returns the bytes of a single plain value.
func ValueBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}
