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

// Package listener owns the Listener Pool: bind/pause/resume/close
// lifecycle for one bound address, applying the per-listener socket
// options SPEC_FULL §4.2/§4.8 call for (SO_REUSEADDR, SO_REUSEPORT,
// TCP_NODELAY, TCP_DEFER_ACCEPT, linger=0) and, for TLS-enabled
// listeners, delegating the handshake to the certificates collaborator
// before handing a plaintext-equivalent fd to the reactor.
package listener

import (
	"sync/atomic"
)

// State is one Listener's lifecycle stage (SPEC_FULL §3).
type State uint8

const (
	StateAssigned State = iota
	StateReady
	StatePaused
	StateFull
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StateFull:
		return "full"
	default:
		return "assigned"
	}
}

// Options configures one Listener's socket-level and TLS behavior.
type Options struct {
	Backlog     int
	DeferAccept bool
	ReusePort   bool
	RecvBuf     int
	SendBuf     int
	MaxConns    int64 // 0 = unbounded per-listener cap

	// TLS, when non-nil, makes this a TLS-terminated listener
	// (SPEC_FULL §4.8): accepted fds are handshaked through it before
	// being admitted to the reactor.
	TLS TLSHandshaker
}

// TLSHandshaker is the narrow slice of the certificates collaborator's
// TLSConfig this package needs: turning a raw accepted connection into
// a handshaked one. Declared as an interface here (rather than
// importing certificates.TLSConfig directly) so a test can substitute a
// fake handshaker without standing up real certificates.
type TLSHandshaker interface {
	HandshakeFD(fd int) (plainFD int, err error)
}

// Listener is one bound socket belonging to a Frontend (SPEC_FULL §3).
// Binding happens once (Bind); it is never re-bound. Pause/Resume only
// toggle whether the acceptor package's accept loop is allowed to
// register this listener's fd with a worker.
type Listener struct {
	ID   string
	Addr string // host:port, IPv4 dotted-quad or resolvable host
	Opts Options

	fd    int
	state atomic.Uint32
	conns atomic.Int64
}

// New returns an unbound Listener; call Bind before use.
func New(id, addr string, opts Options) *Listener {
	l := &Listener{ID: id, Addr: addr, Opts: opts, fd: -1}
	l.state.Store(uint32(StateAssigned))
	return l
}

// FD returns the bound listening fd, or -1 before Bind/after Close.
func (l *Listener) FD() int { return l.fd }

func (l *Listener) State() State { return State(l.state.Load()) }

// Bind opens, configures and listens on Addr per the Acceptor's socket
// option set (SPEC_FULL §4.2). Safe to call once per Listener.
func (l *Listener) Bind() error {
	fd, err := bindTCP(l.Addr, l.Opts)
	if err != nil {
		return ErrorBindFailed.ErrorParent(err)
	}
	l.fd = fd
	l.state.Store(uint32(StateReady))
	return nil
}

// Pause stops new accepts from this listener; in-flight connections
// already admitted to a worker continue uninterrupted (SPEC_FULL
// §4.8). The acceptor's onAcceptable callback checks State() and
// no-ops while paused.
func (l *Listener) Pause() {
	l.state.CompareAndSwap(uint32(StateReady), uint32(StatePaused))
	l.state.CompareAndSwap(uint32(StateFull), uint32(StatePaused))
}

// Resume re-arms accepts after a Pause.
func (l *Listener) Resume() {
	l.state.CompareAndSwap(uint32(StatePaused), uint32(StateReady))
}

// Close is the two-phase close SPEC_FULL §4.8 requires: the caller
// (acceptor.Pool) must have already deregistered this listener's fd
// from every worker's poller before calling Close, which performs
// phase two, the socket close itself.
func (l *Listener) Close() error {
	if l.fd < 0 {
		return nil
	}
	fd := l.fd
	l.fd = -1
	l.state.Store(uint32(StateAssigned))
	return closeFD(fd)
}

// Admit records one more accepted connection against this listener's
// per-listener cap, returning false (and not incrementing) if the cap
// is already reached. Release is called by the acceptor's
// OnClientClosed hook when the corresponding Connection Pair
// terminates.
func (l *Listener) Admit() bool {
	if l.Opts.MaxConns <= 0 {
		l.conns.Add(1)
		return true
	}
	for {
		cur := l.conns.Load()
		if cur >= l.Opts.MaxConns {
			l.state.CompareAndSwap(uint32(StateReady), uint32(StateFull))
			return false
		}
		if l.conns.CompareAndSwap(cur, cur+1) {
			if cur+1 < l.Opts.MaxConns {
				l.state.CompareAndSwap(uint32(StateFull), uint32(StateReady))
			}
			return true
		}
	}
}

// Release undoes one Admit.
func (l *Listener) Release() {
	l.conns.Add(-1)
	l.state.CompareAndSwap(uint32(StateFull), uint32(StateReady))
}

// ConnCount returns the listener's current accepted-and-not-yet-closed
// count, used by the Control Socket's `show stat` and the Prometheus
// exporter.
func (l *Listener) ConnCount() int64 { return l.conns.Load() }

// Pool holds every Listener belonging to one process, keyed by id.
type Pool struct {
	listeners map[string]*Listener
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{listeners: make(map[string]*Listener)}
}

// Add registers l under its ID. Does not bind; call Bind separately (or
// BindAll) so config validation (--check) can construct the Pool
// without opening sockets.
func (p *Pool) Add(l *Listener) {
	p.listeners[l.ID] = l
}

// Get returns the listener with the given id, or nil.
func (p *Pool) Get(id string) *Listener { return p.listeners[id] }

// All returns every listener in the pool, order unspecified.
func (p *Pool) All() []*Listener {
	out := make([]*Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		out = append(out, l)
	}
	return out
}

// BindAll binds every listener in the pool, stopping at (and returning)
// the first error so Misconfiguration-class failures abort startup
// with a single diagnosable cause (SPEC_FULL §7).
func (p *Pool) BindAll() error {
	for _, l := range p.listeners {
		if l.State() != StateAssigned {
			continue
		}
		if err := l.Bind(); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll closes every listener whose fd is still open. Callers must
// have already deregistered every listener fd from every worker.
func (p *Pool) CloseAll() error {
	var first error
	for _, l := range p.listeners {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
