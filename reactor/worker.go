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

//go:build linux

package reactor

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"github.com/megallm/ultrabalancer/logger"
	loglvl "github.com/megallm/ultrabalancer/logger/level"
	"github.com/megallm/ultrabalancer/registry"
	"github.com/megallm/ultrabalancer/selector"
)

// Dispatcher resolves a backend for a freshly-arrived client, the
// bridge between the Reactor and the Selector/Backend Registry
// (SPEC_FULL §4.2, §4.3). sourceIP is the address the acceptor captured
// at accept time; peek is a bounded, non-consuming look at the
// client's first bytes (nil if none were readable yet). Deriving the
// algorithm-specific key (source address, request path, a named
// parameter or header) from that raw material is the Dispatcher's
// concern, not the reactor's. The returned func, if non-nil, releases
// whatever the Dispatcher pinned for this selection (a Sticky Table
// entry's ref_count, SPEC_FULL §4.4 invariant 1) and must be called
// exactly once when the pair that used this selection terminates.
type Dispatcher interface {
	Select(sourceIP, peek []byte, snapshot *registry.Snapshot) (*registry.Backend, func(), error)
}

// Config tunes one Worker's behavior.
type Config struct {
	SlabCapacity      int
	IdleTimeout       time.Duration
	ConnectTimeout    time.Duration
	MaxRetries        uint32
	RedispatchOnRetry bool

	// MaxSpillBytes caps how many bytes either direction's spill buffer
	// may hold before the reactor stops arming read-interest on the
	// producing side, letting the kernel's TCP receive window throttle
	// it (SPEC_FULL §4.1/§9's backpressure gate). <= 0 means unbounded.
	MaxSpillBytes int

	// OnClientClosed, if set, is invoked with a terminating pair's
	// client fd just before it is closed. The acceptor package uses
	// this to release its admission-control accounting (SPEC_FULL
	// §4.2's global/per-listener active-connection counts); nil is a
	// valid no-op default.
	OnClientClosed func(fd int)
}

// Worker owns one epoll set, one generational slab of Connection Pairs,
// and one deadline queue; it never shares any of these with another
// worker (SPEC_FULL §4.1's per-worker shape).
type Worker struct {
	cfg Config

	poller   Poller
	slab     *Slab[*Pair]
	deadline *DeadlineQueue

	reg        *registry.Registry
	dispatcher Dispatcher

	reclaim []Handle // batch-safe deferred free, flushed once per iteration
}

// NewWorker constructs a Worker. Call Init before Run.
func NewWorker(cfg Config, reg *registry.Registry, dispatcher Dispatcher) *Worker {
	return &Worker{
		cfg:        cfg,
		slab:       NewSlab[*Pair](cfg.SlabCapacity),
		deadline:   NewDeadlineQueue(),
		reg:        reg,
		dispatcher: dispatcher,
	}
}

// Init opens the worker's epoll instance.
func (w *Worker) Init() error {
	return w.poller.Init()
}

// Close tears down the worker's epoll instance. Registered fds are not
// closed here; draining them is Run's responsibility on shutdown.
func (w *Worker) Close() error {
	return w.poller.Close()
}

// RegisterListener arms a listening fd for read-interest and invokes
// onAcceptable on every wakeup; used by the acceptor package to fold
// listener fds into this worker's own epoll set rather than running a
// separate accept loop thread (SPEC_FULL §4.1's three token kinds:
// this is the Listener kind, ClientSide/BackendSide are handled by
// AdmitClient/handleEvents below).
func (w *Worker) RegisterListener(fd int, onAcceptable func()) error {
	return w.poller.RegisterFD(fd, EventRead, func(IOEvents) { onAcceptable() })
}

// UnregisterListener removes a listener fd registered via
// RegisterListener, the first phase of the Listener Pool's two-phase
// close (SPEC_FULL §4.8).
func (w *Worker) UnregisterListener(fd int) error {
	return w.poller.UnregisterFD(fd)
}

// AdmitClient registers a freshly accepted client fd in AwaitingClient
// state (SPEC_FULL §4.2/§4.6). sourceIP is the peer address the
// acceptor captured at accept time (nil if unavailable). Returns the
// Pair's Handle.
func (w *Worker) AdmitClient(fd int, sourceIP []byte) (Handle, error) {
	pair := NewPair(fd, w.cfg.MaxRetries, sourceIP)
	h, ok := w.slab.Alloc(pair)
	if !ok {
		return Handle{}, ErrorSlabExhausted.Error(nil)
	}
	pair.Self = h

	if err := w.poller.RegisterFD(fd, EventRead, w.callbackFor(h, ClientSide)); err != nil {
		w.slab.Free(h)
		return Handle{}, err
	}
	if w.cfg.IdleTimeout > 0 {
		w.deadline.Schedule(h, time.Now().Add(w.cfg.IdleTimeout).UnixNano())
	}
	return h, nil
}

func (w *Worker) callbackFor(h Handle, side Side) IOCallback {
	return func(events IOEvents) {
		w.handleEvents(h, side, events)
	}
}

func (w *Worker) handleEvents(h Handle, side Side, events IOEvents) {
	pair, ok := w.slab.Get(h)
	if !ok {
		return // stale: freed between dispatch scan and callback invocation
	}
	p := *pair

	if events&(EventError|EventHangup) != 0 {
		w.terminate(h, p)
		return
	}

	switch p.State() {
	case AwaitingClient:
		if side == ClientSide && events&EventRead != 0 {
			w.onFirstBytes(h, p)
		}
	case Connecting:
		if side == BackendSide && events&EventWrite != 0 {
			w.onBackendConnected(h, p)
		}
	case Streaming, HalfClosedFromClient, HalfClosedFromBackend:
		if events&EventRead != 0 {
			w.onReadable(h, p, side)
		}
		if events&EventWrite != 0 {
			w.onWritable(h, p, side)
		}
	}
}

func (w *Worker) onFirstBytes(h Handle, p *Pair) {
	snap := w.reg.Snapshot()
	peek := peekClientBytes(p.ClientFD)
	backend, release, err := w.dispatcher.Select(p.SourceIP, peek, snap)
	if err != nil {
		w.terminate(h, p)
		return
	}

	fd, err := dialNonBlocking(backend.Host, backend.Port)
	if err != nil {
		if release != nil {
			release()
		}
		backend.OnConnectFailure()
		w.terminate(h, p)
		return
	}

	if err := p.OnClientReadableFirstBytes(fd, backend.ID); err != nil {
		if release != nil {
			release()
		}
		unix.Close(fd)
		w.terminate(h, p)
		return
	}
	p.BindRelease(release)
	backend.OnConnect()

	if err := w.poller.RegisterFD(fd, EventWrite, w.callbackFor(h, BackendSide)); err != nil {
		w.terminate(h, p)
		return
	}
	if w.cfg.ConnectTimeout > 0 {
		w.deadline.Schedule(h, time.Now().Add(w.cfg.ConnectTimeout).UnixNano())
	}
}

func (w *Worker) onBackendConnected(h Handle, p *Pair) {
	if errno := socketError(p.BackendFD); errno != 0 {
		w.onConnectFailed(h, p)
		return
	}
	if err := p.OnBackendConnected(); err != nil {
		w.terminate(h, p)
		return
	}
	w.deadline.Cancel(h)

	_ = w.poller.ModifyFD(p.BackendFD, eventsFor(p, BackendSide))
}

func (w *Worker) onConnectFailed(h Handle, p *Pair) {
	if b, err := w.reg.Get(p.BackendID); err == nil {
		b.OnConnectFailure()
	}
	retry, err := p.OnConnectFailed(w.cfg.RedispatchOnRetry)
	if err != nil || !retry {
		w.terminate(h, p)
		return
	}
	_ = w.poller.UnregisterFD(p.BackendFD)
	unix.Close(p.BackendFD)
	w.onFirstBytes(h, p)
}

// fdFor returns the fd side names on p.
func fdFor(p *Pair, side Side) int {
	if side == ClientSide {
		return p.ClientFD
	}
	return p.BackendFD
}

// eventsFor computes the epoll interest side's fd should currently be
// armed for: read-interest unless backpressure paused it, write-interest
// whenever side still has spill pending (SPEC_FULL §4.1/§9).
func eventsFor(p *Pair, side Side) IOEvents {
	var events IOEvents
	if !p.ReadPaused(side) {
		events |= EventRead
	}
	if !p.SpillEmpty(side) {
		events |= EventWrite
	}
	return events
}

func (w *Worker) onReadable(h Handle, p *Pair, side Side) {
	srcFD, dstFD := p.ClientFD, p.BackendFD
	peerSide := BackendSide
	if side == BackendSide {
		srcFD, dstFD = p.BackendFD, p.ClientFD
		peerSide = ClientSide
	}

	buf := make([]byte, 16384)
	for {
		n, err := unix.Read(srcFD, buf)
		if n > 0 {
			w.forward(p, side, dstFD, buf[:n])
			if w.cfg.MaxSpillBytes > 0 && p.SpillLen(peerSide) >= w.cfg.MaxSpillBytes {
				p.PauseRead(side, true)
				_ = w.poller.ModifyFD(srcFD, eventsFor(p, side))
				return
			}
		}
		if n == 0 {
			w.onEOF(h, p, side)
			return
		}
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			w.terminate(h, p)
			return
		}
	}
}

// forward writes data straight to dstFD when nothing is already queued
// ahead of it; otherwise, or on a short/blocked write, the remainder is
// spilled for onWritable to drain once dstFD reports writable again.
func (w *Worker) forward(p *Pair, side Side, dstFD int, data []byte) {
	peerSide := BackendSide
	if side == BackendSide {
		peerSide = ClientSide
	}
	if !p.SpillEmpty(peerSide) {
		p.BufferForPeer(side, data)
		return
	}
	n, err := unix.Write(dstFD, data)
	if err != nil {
		if err == unix.EAGAIN {
			n = 0
		} else {
			return
		}
	}
	if n < len(data) {
		p.BufferForPeer(side, data[n:])
		_ = w.poller.ModifyFD(dstFD, eventsFor(p, peerSide))
	}
}

func (w *Worker) onWritable(h Handle, p *Pair, side Side) {
	fd := fdFor(p, side)
	spill := p.SpillFor(side)
	if len(spill) == 0 {
		_ = w.poller.ModifyFD(fd, eventsFor(p, side))
		return
	}
	n, err := unix.Write(fd, spill)
	if n > 0 {
		p.DrainSpill(side, n)
	}
	if err != nil && err != unix.EAGAIN {
		w.terminate(h, p)
		return
	}

	// side just drained some of its spill: if that relieved the
	// backpressure gate, resume reading on whichever fd feeds it.
	readerSide := BackendSide
	if side == BackendSide {
		readerSide = ClientSide
	}
	if p.ReadPaused(readerSide) && (w.cfg.MaxSpillBytes <= 0 || p.SpillLen(side) < w.cfg.MaxSpillBytes/2) {
		p.PauseRead(readerSide, false)
		_ = w.poller.ModifyFD(fdFor(p, readerSide), eventsFor(p, readerSide))
	}

	_ = w.poller.ModifyFD(fd, eventsFor(p, side))

	if p.State() != Streaming && p.SpillEmpty(side) {
		w.onHalfCloseDrained(h, p, side)
	}
}

func (w *Worker) onEOF(h Handle, p *Pair, side Side) {
	if err := p.OnEOF(side); err != nil {
		w.terminate(h, p)
		return
	}
	w.shutdownPeerWrite(p, side)
	if w.cfg.IdleTimeout > 0 {
		w.deadline.Schedule(h, time.Now().Add(w.cfg.IdleTimeout).UnixNano())
	}
}

// shutdownPeerWrite half-closes the peer's write side once side's
// spill toward it has fully drained, so the peer observes EOF promptly
// instead of waiting out an idle timeout (SPEC_FULL §4.6/§8). If spill
// remains, onWritable finishes the job via onHalfCloseDrained once it
// empties.
func (w *Worker) shutdownPeerWrite(p *Pair, side Side) {
	peerSide := BackendSide
	if side == BackendSide {
		peerSide = ClientSide
	}
	if !p.SpillEmpty(peerSide) {
		return
	}
	_ = unix.Shutdown(fdFor(p, peerSide), unix.SHUT_WR)
}

// onHalfCloseDrained is reached from onWritable once a half-closed
// pair's remaining spill toward its peer has fully flushed, performing
// the deferred shutdown shutdownPeerWrite could not do immediately.
func (w *Worker) onHalfCloseDrained(h Handle, p *Pair, side Side) {
	switch p.State() {
	case HalfClosedFromClient:
		if side == BackendSide {
			_ = unix.Shutdown(p.BackendFD, unix.SHUT_WR)
		}
	case HalfClosedFromBackend:
		if side == ClientSide {
			_ = unix.Shutdown(p.ClientFD, unix.SHUT_WR)
		}
	}
}

// terminate deregisters both fds and enqueues the pair's handle for
// deferred, batch-safe reclamation (freed at the end of the current
// iteration, never mid-dispatch, so an in-flight event for the same
// handle never observes a half-freed slot).
func (w *Worker) terminate(h Handle, p *Pair) {
	p.ReleaseSticky()
	if p.ClientFD >= 0 {
		_ = w.poller.UnregisterFD(p.ClientFD)
		unix.Close(p.ClientFD)
		if w.cfg.OnClientClosed != nil {
			w.cfg.OnClientClosed(p.ClientFD)
		}
	}
	if p.BackendFD >= 0 {
		_ = w.poller.UnregisterFD(p.BackendFD)
		unix.Close(p.BackendFD)
		if b, err := w.reg.Get(p.BackendID); err == nil {
			b.OnDisconnect()
		}
	}
	w.deadline.Cancel(h)
	w.reclaim = append(w.reclaim, h)
}

func (w *Worker) flushReclaim() {
	for _, h := range w.reclaim {
		w.slab.Free(h)
	}
	w.reclaim = w.reclaim[:0]
}

// Run drives the worker's epoll loop until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		timeoutMs := -1
		if deadline, ok := w.deadline.NextDeadline(); ok {
			ms := (deadline - time.Now().UnixNano()) / int64(time.Millisecond)
			if ms < 0 {
				ms = 0
			}
			timeoutMs = int(ms)
		}

		if _, err := w.poller.PollIO(timeoutMs); err != nil {
			logger.GetDefault().Entry(loglvl.ErrorLevel, "reactor worker poll error: "+err.Error()).Log()
		}

		for _, h := range w.deadline.Expired(time.Now().UnixNano()) {
			if p, ok := w.slab.Get(h); ok {
				w.onTimeout(h, *p)
			}
		}

		w.flushReclaim()
	}
}

func (w *Worker) onTimeout(h Handle, p *Pair) {
	switch p.State() {
	case Connecting:
		w.onConnectFailed(h, p)
	default:
		w.terminate(h, p)
	}
}

func socketError(fd int) int {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return -1
	}
	return errno
}

// peekClientBytesCap bounds the non-consuming look onFirstBytes takes
// at a client's first bytes: enough for a request line and a handful
// of headers, never a full request body.
const peekClientBytesCap = 2048

// peekClientBytes looks at up to peekClientBytesCap bytes of fd's
// receive queue without consuming them (MSG_PEEK), so the Streaming
// phase still reads every byte the client actually sent. Used to hand
// the Dispatcher a minimal request-line/header peek for URI-Hash and
// friends (SPEC_FULL §6). Returns nil on any error or an empty queue.
func peekClientBytes(fd int) []byte {
	buf := make([]byte, peekClientBytesCap)
	n, _, err := unix.Recvfrom(fd, buf, unix.MSG_PEEK)
	if err != nil || n <= 0 {
		return nil
	}
	return buf[:n]
}

func dialNonBlocking(host string, port uint16) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, err
	}
	addr, err := resolveIPv4(host)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	sa := &unix.SockaddrInet4{Port: int(port), Addr: addr}

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
