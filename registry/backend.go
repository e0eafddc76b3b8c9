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

// Package registry holds the set of upstream backends, their health state
// and connection counters, and exposes them to the Selector through an
// atomically-swapped, read-mostly snapshot.
package registry

import (
	"sync/atomic"
)

// Health is the up/down/draining/maintenance flag of a Backend.
type Health uint32

const (
	Down Health = iota
	Up
	Draining
	Maintenance
)

func (h Health) String() string {
	switch h {
	case Up:
		return "up"
	case Draining:
		return "draining"
	case Maintenance:
		return "maintenance"
	default:
		return "down"
	}
}

// Role distinguishes an active backend from a standby/backup one and,
// for database backends, a read replica eligible for lag-based demotion.
type Role uint8

const (
	RoleActive Role = iota
	RoleBackup
	RoleReplica
)

// Backend is one upstream server. Counter fields are accessed exclusively
// through the atomic methods below; the struct itself is never copied once
// registered (it is always referenced through a pointer held by the
// registry snapshot and borrowed by Connection Pairs).
type Backend struct {
	ID   string
	Host string
	Port uint16

	Role Role

	// MaxLagMS gates the replication-lag health demotion (0 disables it).
	MaxLagMS uint32

	weight     atomic.Uint32
	health     atomic.Uint32
	active     atomic.Uint32
	total      atomic.Uint64
	failed     atomic.Uint64
	maxConns   atomic.Uint32
	lastProbe  atomic.Int64
	respTimeNS atomic.Uint64
}

// NewBackend returns a Backend registered as down with zero counters.
func NewBackend(id, host string, port uint16, weight uint32, role Role) *Backend {
	b := &Backend{ID: id, Host: host, Port: port, Role: role}
	b.weight.Store(weight)
	b.health.Store(uint32(Down))
	return b
}

// Weight returns the configured weight, as last set by SetWeight or
// NewBackend.
func (b *Backend) Weight() uint32 { return b.weight.Load() }

// SetWeight changes the backend's weight at runtime (the Control
// Socket's `set weight P/S value`, SPEC_FULL §6).
func (b *Backend) SetWeight(w uint32) { b.weight.Store(w) }

func (b *Backend) Health() Health           { return Health(b.health.Load()) }
func (b *Backend) SetHealth(h Health)       { b.health.Store(uint32(h)) }
func (b *Backend) ActiveConnections() int32 { return int32(b.active.Load()) }
func (b *Backend) TotalConnections() uint64 { return b.total.Load() }
func (b *Backend) FailedConnections() uint64 { return b.failed.Load() }

// MaxConnections returns the configured per-backend cap, or 0 meaning
// unbounded.
func (b *Backend) MaxConnections() uint32 { return b.maxConns.Load() }
func (b *Backend) SetMaxConnections(n uint32) { b.maxConns.Store(n) }

// EffectiveWeight returns the configured weight, floored at 1 so a
// least-connections ratio never divides by zero.
func (b *Backend) EffectiveWeight() uint32 {
	if w := b.weight.Load(); w > 0 {
		return w
	}
	return 1
}

// Eligible reports whether this backend may currently receive a new
// connection per SPEC_FULL §4.3: healthy, under its connection cap, and
// not draining (draining backends remain eligible only for sticky
// continuation, which the Selector checks separately).
func (b *Backend) Eligible() bool {
	if b.Health() != Up {
		return false
	}
	if max := b.MaxConnections(); max > 0 && uint32(b.active.Load()) >= max {
		return false
	}
	return true
}

// OnConnect is called exactly once per Connection Pair entering
// Connecting/Streaming against this backend.
func (b *Backend) OnConnect() {
	b.active.Add(1)
	b.total.Add(1)
}

// OnDisconnect is called exactly once per Connection Pair leaving the
// active set (Terminating), matching a prior OnConnect.
func (b *Backend) OnDisconnect() {
	b.active.Add(^uint32(0))
}

// OnConnectFailure records a failed connect attempt without ever having
// incremented active connections.
func (b *Backend) OnConnectFailure() {
	b.failed.Add(1)
}

// RecordResponseTime folds a single observation into a simple
// exponential moving average (alpha = 1/8), used by the Random
// algorithm's argmin(response_time * (active+1)) rule.
func (b *Backend) RecordResponseTime(ns uint64) {
	for {
		old := b.respTimeNS.Load()
		var next uint64
		if old == 0 {
			next = ns
		} else {
			next = old - old/8 + ns/8
		}
		if b.respTimeNS.CompareAndSwap(old, next) {
			return
		}
	}
}

func (b *Backend) ResponseTimeNS() uint64 { return b.respTimeNS.Load() }

func (b *Backend) StampProbe(unixNano int64) { b.lastProbe.Store(unixNano) }
func (b *Backend) LastProbe() int64          { return b.lastProbe.Load() }
