/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package pool is the reference monitor/types.Pool implementation: a plain
// in-memory registry of named Monitorable components, used by components
// that need somewhere to register health status during tests and small
// deployments.
package pool

import (
	"context"
	"sync"

	montps "github.com/megallm/ultrabalancer/monitor/types"
)

// Pool is a concurrency-safe montps.Pool.
type Pool struct {
	ctx context.Context

	mu sync.RWMutex
	m  map[string]montps.Monitorable
}

// New returns an empty Pool bound to ctx. The context is retained for
// parity with other component constructors but the pool does no
// background work of its own.
func New(ctx context.Context) *Pool {
	return &Pool{ctx: ctx, m: make(map[string]montps.Monitorable)}
}

// Add registers mon under name, replacing any prior registration.
func (p *Pool) Add(name string, mon montps.Monitorable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[name] = mon
}

// Remove unregisters name, if present.
func (p *Pool) Remove(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, name)
}

// Get returns the Monitorable registered under name, if any.
func (p *Pool) Get(name string) (montps.Monitorable, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.m[name]
	return v, ok
}

// All returns a snapshot of every registered Monitorable, keyed by name.
func (p *Pool) All() map[string]montps.Monitorable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]montps.Monitorable, len(p.m))
	for k, v := range p.m {
		out[k] = v
	}
	return out
}
