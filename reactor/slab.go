/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package reactor

// Handle is a generational reference into a Slab: Index addresses the
// slot, Generation must match the slot's current occupant generation
// for the handle to still be valid. Reusing a freed slot bumps its
// generation, so a stale Handle captured by a closure before the slot
// was freed and reassigned is detected rather than silently
// dereferencing the wrong Connection Pair (SPEC_FULL §4.1, §9).
type Handle struct {
	Index      uint32
	Generation uint32
}

// Zero reports whether h is the zero Handle (never a valid allocation).
func (h Handle) Zero() bool { return h.Index == 0 && h.Generation == 0 }

type slabSlot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Slab is a fixed-capacity, generation-checked object pool. It is not
// safe for concurrent use; each reactor worker owns exactly one Slab
// and only ever touches it from its own goroutine.
type Slab[T any] struct {
	slots []slabSlot[T]
	free  []uint32
}

// NewSlab returns a Slab pre-sized to capacity entries (the configured
// per-worker fd budget, SPEC_FULL §9).
func NewSlab[T any](capacity int) *Slab[T] {
	s := &Slab[T]{
		slots: make([]slabSlot[T], capacity),
		free:  make([]uint32, capacity),
	}
	for i := range s.free {
		s.free[i] = uint32(capacity - 1 - i)
	}
	return s
}

// Alloc reserves a slot, stores value, and returns its Handle. The
// second return is false if the slab is at capacity.
func (s *Slab[T]) Alloc(value T) (Handle, bool) {
	if len(s.free) == 0 {
		var zero T
		_ = zero
		return Handle{}, false
	}
	idx := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]

	slot := &s.slots[idx]
	slot.value = value
	slot.occupied = true
	return Handle{Index: idx, Generation: slot.generation}, true
}

// Get returns the value at h if h's generation still matches the
// slot's current occupant, else (_, false).
func (s *Slab[T]) Get(h Handle) (*T, bool) {
	if int(h.Index) >= len(s.slots) {
		return nil, false
	}
	slot := &s.slots[h.Index]
	if !slot.occupied || slot.generation != h.Generation {
		return nil, false
	}
	return &slot.value, true
}

// Free releases h's slot, bumping its generation so any handle copy
// still referencing it is detected as stale by a subsequent Get. It is
// a no-op (not an error) if h is already stale, since deferred
// reclamation may race a duplicate free request harmlessly.
func (s *Slab[T]) Free(h Handle) {
	if int(h.Index) >= len(s.slots) {
		return
	}
	slot := &s.slots[h.Index]
	if !slot.occupied || slot.generation != h.Generation {
		return
	}
	var zero T
	slot.value = zero
	slot.occupied = false
	slot.generation++
	s.free = append(s.free, h.Index)
}

// Len reports the number of currently occupied slots.
func (s *Slab[T]) Len() int {
	return len(s.slots) - len(s.free)
}

// Cap reports the slab's fixed capacity.
func (s *Slab[T]) Cap() int {
	return len(s.slots)
}
