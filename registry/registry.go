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

package registry

import (
	"sort"
	"sync/atomic"
)

// Snapshot is an immutable view of the backend set for one proxy/backend
// section. Workers never mutate a Snapshot; a reload builds a new one and
// swaps the Registry's pointer atomically (SPEC_FULL §4.7).
type Snapshot struct {
	ordered []*Backend
	byID    map[string]*Backend
}

func newSnapshot(backends []*Backend) *Snapshot {
	s := &Snapshot{
		ordered: append([]*Backend(nil), backends...),
		byID:    make(map[string]*Backend, len(backends)),
	}
	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i].ID < s.ordered[j].ID })
	for _, b := range s.ordered {
		s.byID[b.ID] = b
	}
	return s
}

// All returns every backend in this snapshot, stable id order.
func (s *Snapshot) All() []*Backend { return s.ordered }

// ByID returns the backend with the given id, or nil.
func (s *Snapshot) ByID(id string) *Backend { return s.byID[id] }

// Eligible returns every backend currently eligible for a fresh
// selection (SPEC_FULL §4.3's eligibility rule, minus the sticky
// continuation clause which only the Selector's Sticky path applies).
func (s *Snapshot) Eligible() []*Backend {
	out := make([]*Backend, 0, len(s.ordered))
	for _, b := range s.ordered {
		if b.Eligible() {
			out = append(out, b)
		}
	}
	return out
}

// Registry is a read-mostly handle to the current Snapshot. Reload
// replaces the pointer; it never mutates a live Snapshot in place, so any
// Connection Pair still holding a borrowed *Backend from the old
// Snapshot finishes safely against it (Go's GC keeps the old Snapshot
// and its Backends alive for exactly as long as something still points
// at them).
type Registry struct {
	cur atomic.Pointer[Snapshot]
}

// New builds a Registry from an initial backend set.
func New(backends []*Backend) (*Registry, error) {
	if len(backends) == 0 {
		return nil, ErrorEmptyBackendList.Error(nil)
	}
	r := &Registry{}
	r.cur.Store(newSnapshot(backends))
	return r, nil
}

// Snapshot returns the currently active Snapshot. Safe to call from any
// goroutine at any time; the returned pointer is never mutated.
func (r *Registry) Snapshot() *Snapshot {
	return r.cur.Load()
}

// Reload atomically swaps in a new backend set. It never touches the
// previous Snapshot, so in-flight Connection Pairs referencing the old
// one are unaffected (SPEC_FULL, end-to-end scenario 7).
func (r *Registry) Reload(backends []*Backend) error {
	if len(backends) == 0 {
		return ErrorEmptyBackendList.Error(nil)
	}
	r.cur.Store(newSnapshot(backends))
	return nil
}

// Get looks up a backend by id in the current snapshot.
func (r *Registry) Get(id string) (*Backend, error) {
	b := r.Snapshot().ByID(id)
	if b == nil {
		return nil, ErrorBackendNotFound.Error(nil)
	}
	return b, nil
}
