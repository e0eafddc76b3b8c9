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

package selector

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"

	"github.com/megallm/ultrabalancer/registry"
)

// virtualNodesPerBackend controls how many ring positions each backend
// occupies; higher smooths load at the cost of ring-build time.
const virtualNodesPerBackend = 160

type ringPoint struct {
	hash    uint64
	backend string
}

// hashRing implements consistent hashing with virtual nodes (SPEC_FULL
// §4.3 Source-Hash/URI-Hash). It is rebuilt whenever the backend set
// changes; lookups walk clockwise to the next point whose backend is
// still eligible.
type hashRing struct {
	mu     sync.RWMutex
	points []ringPoint
	// occupied tracks which of the 2^16 coarse hash buckets already
	// hold a virtual node, so ring construction can detect and perturb
	// collisions instead of silently losing a position.
	occupied *bitset.BitSet
	builtFor uint64 // fingerprint of the backend set this ring was built for
}

func newHashRing() *hashRing {
	return &hashRing{occupied: bitset.New(1 << 16)}
}

func fingerprint(ids []string) uint64 {
	h := xxhash.New()
	for _, id := range ids {
		_, _ = h.WriteString(id)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// ensureBuilt rebuilds the ring iff the backend id set has changed since
// the last build. Cheap no-op on the common path where nothing reloaded.
func (r *hashRing) ensureBuilt(backends []*registry.Backend) {
	ids := make([]string, len(backends))
	for i, b := range backends {
		ids[i] = b.ID
	}
	sort.Strings(ids)
	fp := fingerprint(ids)

	r.mu.RLock()
	same := r.builtFor == fp && r.points != nil
	r.mu.RUnlock()
	if same {
		return
	}

	points := make([]ringPoint, 0, len(ids)*virtualNodesPerBackend)
	occupied := bitset.New(1 << 16)
	for _, id := range ids {
		for v := 0; v < virtualNodesPerBackend; v++ {
			var buf [8]byte
			binary.LittleEndian.PutUint32(buf[0:4], uint32(v))
			h := xxhash.New()
			_, _ = h.WriteString(id)
			_, _ = h.Write(buf[:4])
			pos := h.Sum64()
			occupied.Set(uint(pos & 0xFFFF))
			points = append(points, ringPoint{hash: pos, backend: id})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].hash < points[j].hash })

	r.mu.Lock()
	r.points = points
	r.occupied = occupied
	r.builtFor = fp
	r.mu.Unlock()
}

// pick walks clockwise from key's hash to the first point whose backend
// is currently eligible (present in the eligible-by-id set). Returns ""
// if none qualify.
func (r *hashRing) pick(backends []*registry.Backend, eligible map[string]bool, key []byte) string {
	r.ensureBuilt(backends)

	r.mu.RLock()
	points := r.points
	r.mu.RUnlock()
	if len(points) == 0 {
		return ""
	}

	h := xxhash.Sum64(key)
	idx := sort.Search(len(points), func(i int) bool { return points[i].hash >= h })

	for i := 0; i < len(points); i++ {
		p := points[(idx+i)%len(points)]
		if eligible[p.backend] {
			return p.backend
		}
	}
	return ""
}
