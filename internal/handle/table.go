// Package handle implements the arenas backends use to turn gfx.Handle
// values into native objects.
package handle

import "render-hal/gfx"

type slot[T any] struct {
	gen  uint32
	live bool
	val  T
}

// Table stores values of type T under generational handles. The low 32 bits
// of a handle are the slot index plus one; the high 32 bits are the slot
// generation, bumped on every removal, so a removed handle never resolves to
// a later value stored in the same slot.
type Table[T any] struct {
	slots []slot[T]
	free  []uint32
	n     int
}

// Insert stores v and returns its handle.
func (t *Table[T]) Insert(v T) gfx.Handle {
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, slot[T]{gen: 1})
	}
	s := &t.slots[idx]
	s.live = true
	s.val = v
	t.n++
	return gfx.Handle(uint64(s.gen)<<32 | uint64(idx+1))
}

func (t *Table[T]) lookup(h gfx.Handle) *slot[T] {
	idx := uint32(h) - 1
	if uint32(h) == 0 || int(idx) >= len(t.slots) {
		return nil
	}
	s := &t.slots[idx]
	if !s.live || s.gen != uint32(h>>32) {
		return nil
	}
	return s
}

// Get returns the value stored under h.
func (t *Table[T]) Get(h gfx.Handle) (T, bool) {
	if s := t.lookup(h); s != nil {
		return s.val, true
	}
	var zero T
	return zero, false
}

// Remove deletes h and returns the value it held.
func (t *Table[T]) Remove(h gfx.Handle) (T, bool) {
	s := t.lookup(h)
	var zero T
	if s == nil {
		return zero, false
	}
	v := s.val
	s.val = zero
	s.live = false
	s.gen++
	t.free = append(t.free, uint32(h)-1)
	t.n--
	return v, true
}

// Len returns the number of live values.
func (t *Table[T]) Len() int { return t.n }

// Each calls fn for every live value.
func (t *Table[T]) Each(fn func(gfx.Handle, T)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.live {
			fn(gfx.Handle(uint64(s.gen)<<32|uint64(i+1)), s.val)
		}
	}
}
