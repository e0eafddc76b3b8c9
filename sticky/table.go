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

package sticky

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const defaultShardCount = 32

// Table is a fixed-capacity, TTL-bounded, LRU-evicted associative
// structure mapping client-attribute keys to chosen backends
// (SPEC_FULL §4.4). It shards its keyspace across independently-locked
// simplelru.LRU instances, per the design note's "sharded sub-tables"
// restatement of the source's mixed spinlock/rwlock scheme (§9).
type Table struct {
	ttl    time.Duration
	shards []*shard
}

type shard struct {
	mu  sync.Mutex
	cap int
	lru *simplelru.LRU[string, *Entry]
}

// New returns a Table capped at capacity entries (spread across shards;
// the cap is exact at the table level, not per-shard, because Get walks
// shards independently but Purge/Expire account for the whole table).
func New(capacity int, ttl time.Duration) (*Table, error) {
	if capacity <= 0 {
		return nil, ErrorInvalidCapacity.Error(nil)
	}
	n := defaultShardCount
	if capacity < n {
		n = 1
	}
	perShard := (capacity + n - 1) / n

	t := &Table{ttl: ttl, shards: make([]*shard, n)}
	for i := range t.shards {
		// simplelru enforces its own capacity unconditionally on Add,
		// evicting its tail regardless of ref_count. Give it one slot
		// of headroom beyond the nominal cap so evictOneIfAtCapacity's
		// own skip-if-pinned walk is the thing that actually governs
		// eviction; cap stays at the nominal size for that walk.
		lru, err := simplelru.NewLRU[string, *Entry](perShard+1, nil)
		if err != nil {
			return nil, err
		}
		t.shards[i] = &shard{lru: lru, cap: perShard}
	}
	return t, nil
}

func (t *Table) shardFor(key string) *shard {
	h := xxhash.Sum64String(key)
	return t.shards[h%uint64(len(t.shards))]
}

// Get implements the get(key) operation: on hit, touch LRU (refresh
// expiry and recency); on miss, the caller is expected to insert via
// Bind once it has chosen a backend (the Selector, not this table,
// decides the value on a miss, so Get alone never fabricates one).
func (t *Table) Get(key []byte) (string, bool) {
	s := t.shardFor(string(key))
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Get(string(key))
	if !ok {
		return "", false
	}
	if e.Expired(time.Now()) {
		s.lru.Remove(string(key))
		return "", false
	}
	e.Touch(t.ttl)
	return e.BackendID, true
}

// Lookup is the read-only variant: it neither touches the LRU nor
// extends the TTL, for diagnostics (SPEC_FULL §4.4).
func (t *Table) Lookup(key []byte) (*Entry, bool) {
	s := t.shardFor(string(key))
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Get(string(key))
	if !ok || e.Expired(time.Now()) {
		return nil, false
	}
	return e, true
}

// Bind inserts or refreshes the key→backend mapping, evicting the LRU
// tail if the shard is at capacity. Per SPEC_FULL §4.4 invariant 1 and
// the design-note ref_count gate (§9), an entry with ref_count > 0 is
// never the one evicted: the shard walks from its oldest entry looking
// for the first one free to evict, skipping any still referenced. If
// every entry in the shard is referenced, the shard is allowed to grow
// by one beyond its nominal capacity rather than violate the gate.
func (t *Table) BindEntry(key []byte, backendID string) *Entry {
	s := t.shardFor(string(key))
	s.mu.Lock()
	defer s.mu.Unlock()

	k := string(key)
	if e, ok := s.lru.Get(k); ok {
		e.BackendID = backendID
		e.Touch(t.ttl)
		return e
	}

	s.evictOneIfAtCapacity()

	e := newEntry(k, backendID, t.ttl)
	s.lru.Add(k, e)
	return e
}

// Bind satisfies selector.StickyLookup; callers that need the inserted
// Entry itself (to Retain it for the lifetime of a Connection Pair)
// should use BindEntry instead.
func (t *Table) Bind(key []byte, backendID string) {
	t.BindEntry(key, backendID)
}

func (s *shard) evictOneIfAtCapacity() {
	if s.lru.Len() < s.cap {
		return
	}
	// walk oldest-first, evicting the first entry free of references;
	// a shard where every resident is pinned overflows by one rather
	// than violating the ref_count gate.
	for _, k := range s.lru.Keys() {
		v, ok := s.lru.Peek(k)
		if !ok {
			continue
		}
		if v.RefCount() <= 0 {
			s.lru.Remove(k)
			return
		}
	}
}

// Update atomically adjusts one of key's counters; a no-op if key is
// not currently bound.
func (t *Table) Update(key []byte, kind CounterKind, delta int64) error {
	s := t.shardFor(string(key))
	s.mu.Lock()
	e, ok := s.lru.Get(string(key))
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return e.Update(kind, delta)
}

// Expire walks every shard from its LRU tail, removing entries whose
// TTL has elapsed and whose ref_count is zero (SPEC_FULL §4.4).
func (t *Table) Expire() int {
	removed := 0
	now := time.Now()
	for _, s := range t.shards {
		s.mu.Lock()
		for _, k := range s.lru.Keys() {
			e, ok := s.lru.Peek(k)
			if !ok {
				continue
			}
			if e.Expired(now) && e.RefCount() <= 0 {
				s.lru.Remove(k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Purge wipes every entry in the table; called on config reload
// (SPEC_FULL §4.4).
func (t *Table) Purge() {
	for _, s := range t.shards {
		s.mu.Lock()
		s.lru.Purge()
		s.mu.Unlock()
	}
}

// Len returns the total number of live entries across all shards.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += s.lru.Len()
		s.mu.Unlock()
	}
	return n
}
