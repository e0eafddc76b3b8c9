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

// Package reactor implements the event-driven data-plane core:
// per-worker epoll polling, generational slab handles binding fds to
// Connection Pairs, a per-worker deadline heap, and the Connection
// Pair state machine itself (SPEC_FULL §4.1, §4.6).
package reactor

import (
	"fmt"

	liberr "github.com/megallm/ultrabalancer/errors"
)

const (
	ErrorPollerClosed liberr.CodeError = iota + liberr.MinPkgReactor
	ErrorFDOutOfRange
	ErrorFDAlreadyRegistered
	ErrorFDNotRegistered
	ErrorSlabExhausted
	ErrorStaleHandle
	ErrorInvalidTransition
)

func init() {
	if liberr.ExistInMapMessage(ErrorPollerClosed) {
		panic(fmt.Errorf("error code collision with package ultrabalancer/reactor"))
	}
	liberr.RegisterIdFctMessage(ErrorPollerClosed, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorPollerClosed:
		return "reactor poller is closed"
	case ErrorFDOutOfRange:
		return "file descriptor out of supported range"
	case ErrorFDAlreadyRegistered:
		return "file descriptor already registered"
	case ErrorFDNotRegistered:
		return "file descriptor not registered"
	case ErrorSlabExhausted:
		return "connection pair slab is at capacity"
	case ErrorStaleHandle:
		return "handle generation does not match current slot occupant"
	case ErrorInvalidTransition:
		return "connection pair state transition is not permitted from the current state"
	}

	return liberr.NullMessage
}
