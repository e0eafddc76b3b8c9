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
	"math/rand"
	"sync/atomic"

	"github.com/megallm/ultrabalancer/registry"
)

// StickyLookup is satisfied by the Sticky Table; kept as an interface
// here so selector does not import sticky (sticky depends on selector's
// base-algorithm fallback instead, avoiding an import cycle).
type StickyLookup interface {
	// Get returns the backend id previously bound to key, and true, or
	// ("", false) on a miss. A hit refreshes the entry's TTL/LRU.
	Get(key []byte) (string, bool)
	// Bind records that key now maps to backendID.
	Bind(key []byte, backendID string)
}

// Selector picks a backend id for a client key under a configured
// algorithm. It holds only the state a selection needs across calls
// (round-robin cursor, hash ring cache); it never owns the Registry.
type Selector struct {
	rrCursor atomic.Uint64
	ring     *hashRing
	sticky   StickyLookup
	base     Algorithm
}

// New returns a Selector. sticky may be nil unless base == Sticky.
func New(base Algorithm, sticky StickyLookup) *Selector {
	return &Selector{ring: newHashRing(), sticky: sticky, base: base}
}

// Select implements SPEC_FULL §4.3's select(algorithm, client_key,
// backends_snapshot). clientKey is algorithm-dependent: the client IP for
// Source-Hash, the request path prefix for URI-Hash, the named
// parameter/header value for ParameterHash/HeaderHash; it is ignored by
// RoundRobin/StaticRoundRobin/WeightedRandom/LeastConnections/Random.
func (s *Selector) Select(algo Algorithm, clientKey []byte, snap *registry.Snapshot) (*registry.Backend, error) {
	switch algo {
	case RoundRobin:
		return s.roundRobin(snap, true)
	case StaticRoundRobin:
		return s.roundRobin(snap, false)
	case WeightedRandom:
		return s.weightedRandom(snap)
	case LeastConnections:
		return s.leastConnections(snap)
	case SourceHash, URIHash, ParameterHash, HeaderHash:
		return s.hashed(snap, clientKey)
	case Random:
		return s.random(snap)
	case Sticky:
		return s.sticky_(snap, clientKey)
	default:
		return nil, ErrorUnknownAlgorithm.Error(nil)
	}
}

func (s *Selector) roundRobin(snap *registry.Snapshot, weighted bool) (*registry.Backend, error) {
	eligible := snap.Eligible()
	if len(eligible) == 0 {
		return nil, ErrorNotAvailable.Error(nil)
	}
	_ = weighted // weight independence is already the default: index selects by position, not by weight.
	n := uint64(len(eligible))
	idx := s.rrCursor.Add(1) - 1
	return eligible[idx%n], nil
}

func (s *Selector) weightedRandom(snap *registry.Snapshot) (*registry.Backend, error) {
	eligible := snap.Eligible()
	if len(eligible) == 0 {
		return nil, ErrorNotAvailable.Error(nil)
	}
	var total uint64
	for _, b := range eligible {
		total += uint64(b.EffectiveWeight())
	}
	if total == 0 {
		return eligible[0], nil
	}
	pick := uint64(rand.Int63n(int64(total))) + 1
	var cum uint64
	for _, b := range eligible {
		cum += uint64(b.EffectiveWeight())
		if cum >= pick {
			return b, nil
		}
	}
	return eligible[len(eligible)-1], nil
}

func (s *Selector) leastConnections(snap *registry.Snapshot) (*registry.Backend, error) {
	eligible := snap.Eligible()
	if len(eligible) == 0 {
		return nil, ErrorNotAvailable.Error(nil)
	}
	best := eligible[0]
	bestRatio := ratio(best)
	for _, b := range eligible[1:] {
		if r := ratio(b); r < bestRatio || (r == bestRatio && b.ID < best.ID) {
			best, bestRatio = b, r
		}
	}
	return best, nil
}

func ratio(b *registry.Backend) float64 {
	return float64(b.ActiveConnections()) / float64(b.EffectiveWeight())
}

func (s *Selector) random(snap *registry.Snapshot) (*registry.Backend, error) {
	eligible := snap.Eligible()
	if len(eligible) == 0 {
		return nil, ErrorNotAvailable.Error(nil)
	}
	best := eligible[0]
	bestScore := score(best)
	for _, b := range eligible[1:] {
		if sc := score(b); sc < bestScore {
			best, bestScore = b, sc
		}
	}
	return best, nil
}

func score(b *registry.Backend) float64 {
	return float64(b.ResponseTimeNS()) * float64(b.ActiveConnections()+1)
}

func (s *Selector) hashed(snap *registry.Snapshot, key []byte) (*registry.Backend, error) {
	eligible := snap.Eligible()
	if len(eligible) == 0 {
		return nil, ErrorNotAvailable.Error(nil)
	}
	byID := make(map[string]bool, len(eligible))
	for _, b := range eligible {
		byID[b.ID] = true
	}
	id := s.ring.pick(snap.All(), byID, key)
	if id == "" {
		return nil, ErrorNotAvailable.Error(nil)
	}
	return snap.ByID(id), nil
}

func (s *Selector) sticky_(snap *registry.Snapshot, key []byte) (*registry.Backend, error) {
	if s.sticky != nil {
		if id, ok := s.sticky.Get(key); ok {
			if b := snap.ByID(id); b != nil && (b.Health() == registry.Up || b.Health() == registry.Draining) {
				return b, nil
			}
		}
	}

	b, err := s.Select(s.base, key, snap)
	if err != nil {
		return nil, err
	}
	if s.sticky != nil {
		s.sticky.Bind(key, b.ID)
	}
	return b, nil
}
