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

package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/megallm/ultrabalancer/logger"
	loglvl "github.com/megallm/ultrabalancer/logger/level"
	"github.com/megallm/ultrabalancer/registry"
)

// Prober runs one supervised probe loop per backend (SPEC_FULL §4.5).
type Prober struct {
	reg *registry.Registry

	mu     sync.RWMutex
	states map[string]*backendState
}

type backendState struct {
	backend *registry.Backend
	cfg     *Config

	probing       atomic.Bool
	passes        atomic.Uint32
	fails         atomic.Uint32
	transitioning atomic.Bool
}

// New returns a Prober over the given registry. Call SetConfig for each
// backend id before Run, then Run to start the per-backend loops.
func New(reg *registry.Registry) *Prober {
	return &Prober{reg: reg, states: make(map[string]*backendState)}
}

// SetConfig installs or replaces backendID's probe configuration. Safe
// to call while Run is active; the next probe cycle picks it up.
func (p *Prober) SetConfig(backendID string, cfg *Config) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[backendID]
	if !ok {
		b, err := p.reg.Get(backendID)
		if err != nil {
			return
		}
		st = &backendState{backend: b}
		p.states[backendID] = st
	}
	st.cfg = cfg
}

// Run starts one loop per configured backend and blocks until ctx is
// cancelled. A panic inside any single backend's dialogue is recovered
// within that backend's own loop iteration, matching the "a panicking
// probe dialogue cannot wedge the rest" requirement without tearing
// down sibling loops via errgroup's shared-context cancellation.
func (p *Prober) Run(ctx context.Context) error {
	var g errgroup.Group

	p.mu.RLock()
	states := make([]*backendState, 0, len(p.states))
	for _, st := range p.states {
		states = append(states, st)
	}
	p.mu.RUnlock()

	for _, st := range states {
		st := st
		g.Go(func() error {
			p.runLoop(ctx, st)
			return nil
		})
	}
	return g.Wait()
}

// ProbeNow runs a single synchronous probe cycle for backendID outside
// its regular interval, applying the same rise/fall rules as the
// scheduled loop. Used by the Control Socket's manual "check backend"
// command and by tests.
func (p *Prober) ProbeNow(ctx context.Context, backendID string) error {
	p.mu.RLock()
	st, ok := p.states[backendID]
	p.mu.RUnlock()
	if !ok {
		return ErrorInvalidConfig.Error(nil)
	}
	p.runOnceSafe(ctx, st)
	return nil
}

func (p *Prober) runLoop(ctx context.Context, st *backendState) {
	if st.cfg == nil {
		return
	}
	for {
		p.runOnceSafe(ctx, st)

		interval := st.cfg.intervalFor(st.transitioning.Load(), st.backend.Health() == registry.Up)
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (p *Prober) runOnceSafe(ctx context.Context, st *backendState) {
	defer func() {
		if r := recover(); r != nil {
			logger.GetDefault().Entry(loglvl.ErrorLevel, fmt.Sprintf("health probe panic for backend %s: %v", st.backend.ID, r)).Log()
			st.fails.Add(1)
		}
	}()
	p.runOnce(ctx, st)
}

// runOnce enforces the single-in-flight-probe rule via the per-backend
// probing flag, runs the configured dialogue, and applies the
// rise/fall counting rules of SPEC_FULL §4.5.
func (p *Prober) runOnce(ctx context.Context, st *backendState) {
	if !st.probing.CompareAndSwap(false, true) {
		return
	}
	defer st.probing.Store(false)

	start := time.Now()
	res := dial(ctx, target(st.backend), st.cfg)
	st.backend.RecordResponseTime(uint64(time.Since(start).Nanoseconds()))
	st.backend.StampProbe(time.Now().UnixNano())

	// Agent dialogue bypasses rise/fall counting for the cycle that
	// carries an explicit directive.
	if st.cfg.Protocol == ProtoAgent {
		if res.pass {
			st.backend.SetHealth(registry.Up)
		} else {
			st.backend.SetHealth(registry.Down)
		}
		st.transitioning.Store(false)
		return
	}

	if res.hasLag && !res.pass {
		// replication lag above threshold demotes without touching the
		// rise/fall counters driven by reachability.
		st.backend.SetHealth(registry.Down)
		return
	}

	if res.pass {
		st.fails.Store(0)
		passes := st.passes.Add(1)
		if passes >= st.cfg.Rise {
			current := st.backend.Health()
			if current == registry.Down || current == registry.Draining {
				st.backend.SetHealth(registry.Up)
				st.transitioning.Store(false)
			}
		} else {
			st.transitioning.Store(true)
		}
		return
	}

	st.passes.Store(0)
	fails := st.fails.Add(1)
	if fails >= st.cfg.Fall {
		st.backend.SetHealth(registry.Down)
		st.transitioning.Store(false)
	} else {
		st.transitioning.Store(true)
	}
}

func target(b *registry.Backend) string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}
