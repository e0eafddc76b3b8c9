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

// Package sticky implements the TTL-bounded, LRU-evicted key→backend
// table used by the Sticky selector algorithm (SPEC_FULL §4.4).
package sticky

import (
	"sync/atomic"
	"time"
)

// CounterKind names one of the Sticky Entry's per-key counters
// (SPEC_FULL §3).
type CounterKind uint8

const (
	ConnRate CounterKind = iota
	SessRate
	BytesIn
	BytesOut
	GPC0
	GPC1
)

// Entry is one Sticky Table row. It is never copied once inserted; all
// mutation happens through its atomic counter fields and the table's
// locked LRU bookkeeping.
type Entry struct {
	Key       string // the tagged key, pre-encoded to its canonical byte form by the caller
	BackendID string

	createdAt int64 // unix nano
	expiresAt atomic.Int64

	refCount atomic.Int32

	connRate atomic.Uint32
	sessRate atomic.Uint32
	bytesIn  atomic.Uint64
	bytesOut atomic.Uint64
	gpc0     atomic.Uint32
	gpc1     atomic.Uint32
}

func newEntry(key, backendID string, ttl time.Duration) *Entry {
	e := &Entry{Key: key, BackendID: backendID, createdAt: time.Now().UnixNano()}
	e.expiresAt.Store(time.Now().Add(ttl).UnixNano())
	return e
}

// Expired reports whether this entry's TTL has elapsed as of now.
func (e *Entry) Expired(now time.Time) bool {
	return e.expiresAt.Load() < now.UnixNano()
}

// Touch refreshes the entry's expiry by ttl from now, the "refreshed on
// every hit" lifecycle rule in SPEC_FULL §3.
func (e *Entry) Touch(ttl time.Duration) {
	e.expiresAt.Store(time.Now().Add(ttl).UnixNano())
}

// Retain/Release implement the ref_count gate: a Connection Pair that is
// actively using this entry's backend binding holds a reference, and the
// table's eviction callback refuses to evict while ref_count > 0
// (SPEC_FULL §4.4 invariant 1, §9).
func (e *Entry) Retain()  { e.refCount.Add(1) }
func (e *Entry) Release() { e.refCount.Add(-1) }
func (e *Entry) RefCount() int32 { return e.refCount.Load() }

// Update atomically adjusts one counter kind by delta.
func (e *Entry) Update(kind CounterKind, delta int64) error {
	switch kind {
	case ConnRate:
		addUint32(&e.connRate, delta)
	case SessRate:
		addUint32(&e.sessRate, delta)
	case BytesIn:
		e.bytesIn.Add(uint64(delta))
	case BytesOut:
		e.bytesOut.Add(uint64(delta))
	case GPC0:
		addUint32(&e.gpc0, delta)
	case GPC1:
		addUint32(&e.gpc1, delta)
	default:
		return ErrorUnknownCounter.Error(nil)
	}
	return nil
}

func addUint32(a *atomic.Uint32, delta int64) {
	if delta >= 0 {
		a.Add(uint32(delta))
	} else {
		a.Add(^uint32(-delta - 1))
	}
}

func (e *Entry) Counter(kind CounterKind) uint64 {
	switch kind {
	case ConnRate:
		return uint64(e.connRate.Load())
	case SessRate:
		return uint64(e.sessRate.Load())
	case BytesIn:
		return e.bytesIn.Load()
	case BytesOut:
		return e.bytesOut.Load()
	case GPC0:
		return uint64(e.gpc0.Load())
	case GPC1:
		return uint64(e.gpc1.Load())
	default:
		return 0
	}
}

func (e *Entry) CreatedAt() time.Time  { return time.Unix(0, e.createdAt) }
func (e *Entry) ExpiresAt() time.Time  { return time.Unix(0, e.expiresAt.Load()) }
