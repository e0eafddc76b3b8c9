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

package acceptor

import (
	"golang.org/x/sys/unix"
)

func acceptNonBlocking(listenFD int) (int, unix.Sockaddr, error) {
	fd, sa, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK)
	if err != nil {
		return -1, nil, err
	}
	return fd, sa, nil
}

// peerIP extracts the raw address bytes Accept4 already captured for
// the accepted socket (SPEC_FULL §4.2/§4.3's Source-Hash key material),
// sparing a second Getpeername syscall. Returns nil for any address
// family it doesn't recognize.
func peerIP(sa unix.Sockaddr) []byte {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make([]byte, len(a.Addr))
		copy(ip, a.Addr[:])
		return ip
	case *unix.SockaddrInet6:
		ip := make([]byte, len(a.Addr))
		copy(ip, a.Addr[:])
		return ip
	default:
		return nil
	}
}

func setClientSocketOptions(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

func closeFD(fd int) { unix.Close(fd) }

func isEAGAIN(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// isTransientAcceptError matches SPEC_FULL §7's AcceptFailure class:
// EMFILE/ENFILE back off and keep the listener alive; anything else
// that reaches here (not EAGAIN) is treated as permanent.
func isTransientAcceptError(err error) bool {
	return err == unix.EMFILE || err == unix.ENFILE || err == unix.ECONNABORTED
}
