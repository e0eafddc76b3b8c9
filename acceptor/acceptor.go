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

// Package acceptor implements the Acceptor of SPEC_FULL §4.2: it owns
// the accept-until-EAGAIN loop over a Listener's fd, applies admission
// control (global and per-listener active-connection caps), and hands
// admitted client fds to a reactor.Worker as AwaitingClient Connection
// Pairs. One Acceptor instance is attached per (listener, worker) pair
// so every worker accepts independently off its own SO_REUSEPORT-bound
// duplicate of the listener's address (SPEC_FULL §4.1 shape (b)).
package acceptor

import (
	"sync"
	"sync/atomic"

	"github.com/megallm/ultrabalancer/listener"
	"github.com/megallm/ultrabalancer/logger"
	loglvl "github.com/megallm/ultrabalancer/logger/level"
	"github.com/megallm/ultrabalancer/reactor"
)

// WorkerTarget is the slice of reactor.Worker the acceptor needs: a
// listener registration point and an admission point for plain (or
// post-TLS-handshake) client fds. Declared narrowly so tests can stand
// in a fake worker.
type WorkerTarget interface {
	RegisterListener(fd int, onAcceptable func()) error
	UnregisterListener(fd int) error
	AdmitClient(fd int, sourceIP []byte) (reactor.Handle, error)
}

// GlobalAdmission enforces the process-wide active-connection cap
// SPEC_FULL §4.2 calls for ("if the global active-connection count is
// at capacity, the accepted fd is closed immediately"). Shared across
// every Acceptor/worker pair in the process.
type GlobalAdmission struct {
	max     int64
	current atomic.Int64

	rejections atomic.Uint64
}

// NewGlobalAdmission returns an admission gate capped at max
// concurrently admitted connections. max <= 0 means unbounded (still
// tracked for stats, never rejecting).
func NewGlobalAdmission(max int64) *GlobalAdmission {
	return &GlobalAdmission{max: max}
}

func (g *GlobalAdmission) tryAdmit() bool {
	if g.max <= 0 {
		g.current.Add(1)
		return true
	}
	for {
		cur := g.current.Load()
		if cur >= g.max {
			return false
		}
		if g.current.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (g *GlobalAdmission) release() { g.current.Add(-1) }

// Current returns the live global admitted-connection count.
func (g *GlobalAdmission) Current() int64 { return g.current.Load() }

// Rejections returns the cumulative count of connections refused for
// capacity (SPEC_FULL §7's ResourceExhaustion-adjacent counter).
func (g *GlobalAdmission) Rejections() uint64 { return g.rejections.Load() }

// Group owns every Acceptor attached to one reactor.Worker. A worker's
// reactor.Config.OnClientClosed is wired to Group.Release once, since a
// single worker may carry listeners from more than one frontend; Group
// tracks which Acceptor admitted a given fd so the right listener's
// per-listener counter is decremented on close.
type Group struct {
	mu     sync.Mutex
	owners map[int]*Acceptor
}

// NewGroup returns an empty Group for one worker.
func NewGroup() *Group {
	return &Group{owners: make(map[int]*Acceptor)}
}

// Release is wired as reactor.Config.OnClientClosed.
func (g *Group) Release(fd int) {
	g.mu.Lock()
	a, ok := g.owners[fd]
	if ok {
		delete(g.owners, fd)
	}
	g.mu.Unlock()
	if ok {
		a.l.Release()
		a.global.release()
	}
}

func (g *Group) own(fd int, a *Acceptor) {
	g.mu.Lock()
	g.owners[fd] = a
	g.mu.Unlock()
}

// Acceptor binds one Listener's accept loop into one Worker.
type Acceptor struct {
	l         *listener.Listener
	w         WorkerTarget
	global    *GlobalAdmission
	group     *Group
	handshake listener.TLSHandshaker
}

// New returns an Acceptor for l on worker w, gated by global admission
// and tracked by group (the same Group must be passed to every Acceptor
// attached to that worker, and wired as that worker's
// reactor.Config.OnClientClosed). handshake may be nil for a plaintext
// listener.
func New(l *listener.Listener, w WorkerTarget, global *GlobalAdmission, group *Group, handshake listener.TLSHandshaker) *Acceptor {
	return &Acceptor{l: l, w: w, global: global, group: group, handshake: handshake}
}

// Attach registers the listener's fd with the worker; onAcceptable
// fires on every readable wakeup and accepts until EAGAIN (SPEC_FULL
// §4.2).
func (a *Acceptor) Attach() error {
	return a.w.RegisterListener(a.l.FD(), a.onAcceptable)
}

// Detach is phase one of the Listener Pool's two-phase close
// (SPEC_FULL §4.8): remove from this worker's reactor before the
// listener's socket itself is closed.
func (a *Acceptor) Detach() error {
	return a.w.UnregisterListener(a.l.FD())
}

func (a *Acceptor) onAcceptable() {
	if a.l.State() == listener.StatePaused {
		return
	}
	for {
		fd, sa, err := acceptNonBlocking(a.l.FD())
		if err != nil {
			if isEAGAIN(err) {
				return
			}
			if isTransientAcceptError(err) {
				logger.GetDefault().Entry(loglvl.WarnLevel, "acceptor: transient accept failure: "+err.Error()).Log()
				return
			}
			logger.GetDefault().Entry(loglvl.ErrorLevel, "acceptor: permanent accept failure, pausing listener: "+err.Error()).Log()
			a.l.Pause()
			return
		}

		a.admit(fd, peerIP(sa))
	}
}

func (a *Acceptor) admit(fd int, sourceIP []byte) {
	if !a.global.tryAdmit() {
		a.global.rejections.Add(1)
		closeFD(fd)
		return
	}
	if !a.l.Admit() {
		a.global.release()
		closeFD(fd)
		return
	}

	if err := setClientSocketOptions(fd); err != nil {
		a.l.Release()
		a.global.release()
		closeFD(fd)
		return
	}

	admittedFD := fd
	if a.handshake != nil {
		plainFD, err := a.handshake.HandshakeFD(fd)
		if err != nil {
			a.l.Release()
			a.global.release()
			closeFD(fd)
			return
		}
		admittedFD = plainFD
	}

	if _, err := a.w.AdmitClient(admittedFD, sourceIP); err != nil {
		a.l.Release()
		a.global.release()
		closeFD(admittedFD)
		return
	}
	a.group.own(admittedFD, a)
}
