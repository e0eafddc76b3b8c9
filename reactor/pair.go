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

package reactor

// State is one state of the Connection Pair state machine
// (SPEC_FULL §4.6).
type State uint8

const (
	AwaitingClient State = iota
	Connecting
	Streaming
	HalfClosedFromClient
	HalfClosedFromBackend
	Terminating
)

func (s State) String() string {
	switch s {
	case AwaitingClient:
		return "awaiting_client"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case HalfClosedFromClient:
		return "half_closed_from_client"
	case HalfClosedFromBackend:
		return "half_closed_from_backend"
	case Terminating:
		return "terminating"
	}
	return "unknown"
}

// Side names one direction of a Connection Pair.
type Side uint8

const (
	ClientSide Side = iota
	BackendSide
)

// defaultSpillInitial is the spill buffer's starting capacity; it
// doubles on each growth past its current length, matching the
// geometric-growth requirement of SPEC_FULL §4.1.
const defaultSpillInitial = 4096

// spillBuffer accumulates bytes a short write couldn't flush to the
// peer immediately, growing geometrically under sustained backpressure.
type spillBuffer struct {
	buf []byte
}

func (s *spillBuffer) append(p []byte) {
	if len(s.buf) == 0 && cap(s.buf) == 0 {
		want := defaultSpillInitial
		for want < len(p) {
			want *= 2
		}
		s.buf = make([]byte, 0, want)
	}
	if len(s.buf)+len(p) > cap(s.buf) {
		want := cap(s.buf) * 2
		for want < len(s.buf)+len(p) {
			want *= 2
		}
		grown := make([]byte, len(s.buf), want)
		copy(grown, s.buf)
		s.buf = grown
	}
	s.buf = append(s.buf, p...)
}

// drain removes the first n bytes (the portion successfully written to
// the peer), compacting the remainder to the front.
func (s *spillBuffer) drain(n int) {
	if n >= len(s.buf) {
		s.buf = s.buf[:0]
		return
	}
	copy(s.buf, s.buf[n:])
	s.buf = s.buf[:len(s.buf)-n]
}

func (s *spillBuffer) empty() bool   { return len(s.buf) == 0 }
func (s *spillBuffer) bytes() []byte { return s.buf }
func (s *spillBuffer) size() int     { return len(s.buf) }

// Pair is one Connection Pair: a client fd, the backend fd it is (or
// will be) streaming with, and the per-direction spill buffers used
// when a write can't be flushed whole (SPEC_FULL §4.6).
type Pair struct {
	Self      Handle
	ClientFD  int
	BackendFD int
	BackendID string

	state State

	clientSpill  spillBuffer // bytes read from backend, pending write to client
	backendSpill spillBuffer // bytes read from client, pending write to backend

	clientReadPaused  bool // ClientFD's read-interest is cleared: backendSpill is over cap
	backendReadPaused bool // BackendFD's read-interest is cleared: clientSpill is over cap

	retries    uint32
	maxRetries uint32

	// SourceIP is the client's address as captured by the acceptor at
	// accept time (SPEC_FULL §4.2/§4.3's Source-Hash key material); nil
	// if the peer's address could not be determined.
	SourceIP []byte

	// release, if set, pins a Sticky Table entry for this pair's
	// lifetime (sticky.Entry.Retain/Release, SPEC_FULL §4.4 invariant
	// 1); reactor never imports sticky, so this is just a closure handed
	// down by the Dispatcher.
	release func()
}

// NewPair constructs a Pair in AwaitingClient state for a freshly
// accepted client fd. sourceIP may be nil if the peer address could not
// be captured at accept time.
func NewPair(clientFD int, maxRetries uint32, sourceIP []byte) *Pair {
	return &Pair{ClientFD: clientFD, BackendFD: -1, state: AwaitingClient, maxRetries: maxRetries, SourceIP: sourceIP}
}

// State reports the pair's current state.
func (p *Pair) State() State { return p.state }

func (p *Pair) transition(from, to State) error {
	if p.state != from {
		return ErrorInvalidTransition.Error(nil)
	}
	p.state = to
	return nil
}

// OnClientReadableFirstBytes handles the AwaitingClient → Connecting
// edge: the first client bytes arrived, a backend has been chosen and
// a non-blocking connect issued by the caller.
func (p *Pair) OnClientReadableFirstBytes(backendFD int, backendID string) error {
	if err := p.transition(AwaitingClient, Connecting); err != nil {
		return err
	}
	p.BackendFD = backendFD
	p.BackendID = backendID
	return nil
}

// OnBackendConnected handles Connecting → Streaming once the backend
// socket reports writable with no pending socket error.
func (p *Pair) OnBackendConnected() error {
	return p.transition(Connecting, Streaming)
}

// OnConnectFailed handles Connecting → Terminating, or, if retries
// remain and redispatch-on-exhaustion is enabled, resets back to
// AwaitingClient-equivalent re-dispatch by the caller (the caller is
// expected to pick a new backend and call OnClientReadableFirstBytes
// again after this returns ok=true).
func (p *Pair) OnConnectFailed(redispatchEnabled bool) (retry bool, err error) {
	if p.state != Connecting {
		return false, ErrorInvalidTransition.Error(nil)
	}
	p.retries++
	if redispatchEnabled && p.retries <= p.maxRetries {
		p.state = AwaitingClient
		p.BackendFD = -1
		p.BackendID = ""
		return true, nil
	}
	p.state = Terminating
	return false, nil
}

// OnEOF handles a zero-byte read on side: half-close that side after
// the caller has drained any spill toward the peer.
func (p *Pair) OnEOF(side Side) error {
	if p.state != Streaming {
		return ErrorInvalidTransition.Error(nil)
	}
	if side == ClientSide {
		p.state = HalfClosedFromClient
	} else {
		p.state = HalfClosedFromBackend
	}
	return nil
}

// OnHalfCloseSettled handles the peer-side EOF/error/idle-timeout event
// that ends a half-closed pair: HalfClosed* → Terminating.
func (p *Pair) OnHalfCloseSettled() error {
	if p.state != HalfClosedFromClient && p.state != HalfClosedFromBackend {
		return ErrorInvalidTransition.Error(nil)
	}
	p.state = Terminating
	return nil
}

// OnError handles an error on either fd while Streaming: immediate
// termination, no half-close grace period.
func (p *Pair) OnError() error {
	if p.state != Streaming {
		return ErrorInvalidTransition.Error(nil)
	}
	p.state = Terminating
	return nil
}

// ReadFrom buffers bytes read from side toward the opposite side's
// spill, used when the immediate write to the peer was short.
func (p *Pair) BufferForPeer(side Side, data []byte) {
	if side == ClientSide {
		p.backendSpill.append(data)
	} else {
		p.clientSpill.append(data)
	}
}

// SpillFor returns the pending bytes queued for side (i.e. the spill
// that side's fd still needs to drain by writing).
func (p *Pair) SpillFor(side Side) []byte {
	if side == ClientSide {
		return p.clientSpill.bytes()
	}
	return p.backendSpill.bytes()
}

// DrainSpill marks n bytes of side's pending spill as written.
func (p *Pair) DrainSpill(side Side, n int) {
	if side == ClientSide {
		p.clientSpill.drain(n)
	} else {
		p.backendSpill.drain(n)
	}
}

// SpillEmpty reports whether side has no pending bytes to write.
func (p *Pair) SpillEmpty(side Side) bool {
	if side == ClientSide {
		return p.clientSpill.empty()
	}
	return p.backendSpill.empty()
}

// SpillLen reports the number of bytes currently queued for side.
func (p *Pair) SpillLen(side Side) int {
	if side == ClientSide {
		return p.clientSpill.size()
	}
	return p.backendSpill.size()
}

// PauseRead marks whether side's fd should stop being armed for
// read-interest, the backpressure gate of SPEC_FULL §4.1/§9: the
// kernel's own receive window then stalls that peer until the
// destination spill drains.
func (p *Pair) PauseRead(side Side, paused bool) {
	if side == ClientSide {
		p.clientReadPaused = paused
	} else {
		p.backendReadPaused = paused
	}
}

// ReadPaused reports whether side's fd currently has read-interest
// withheld for backpressure.
func (p *Pair) ReadPaused(side Side) bool {
	if side == ClientSide {
		return p.clientReadPaused
	}
	return p.backendReadPaused
}

// BindRelease attaches fn as the pair's sticky-entry release callback,
// releasing any previously-bound entry first (a redispatch after a
// failed connect picks a new backend, and must not leak the old pin).
// fn may be nil.
func (p *Pair) BindRelease(fn func()) {
	if p.release != nil {
		p.release()
	}
	p.release = fn
}

// ReleaseSticky runs and clears the pair's bound release callback, if
// any; safe to call more than once or when nothing was ever bound.
func (p *Pair) ReleaseSticky() {
	if p.release != nil {
		p.release()
		p.release = nil
	}
}
