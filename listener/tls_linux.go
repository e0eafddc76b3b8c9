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

package listener

import (
	"crypto/tls"
	"net"
	"os"

	"golang.org/x/sys/unix"

	libtls "github.com/megallm/ultrabalancer/certificates"
)

// CertHandshaker adapts the certificates collaborator's TLSConfig into
// this package's narrow TLSHandshaker interface (SPEC_FULL §4.8: "the
// latter delegating handshake to the external TLS collaborator").
//
// The Reactor's worker speaks raw non-blocking fds; crypto/tls speaks
// net.Conn. HandshakeFD bridges the two with a loopback unix
// socketpair: one end is handshaked as a tls.Conn and pumped in a pair
// of goroutines, the other end is the plaintext fd handed back to the
// caller for admission into the reactor. This keeps the Connection
// Pair state machine and the epoll worker entirely TLS-unaware, per
// the core's "does not terminate cryptography" non-goal (SPEC_FULL §1).
type CertHandshaker struct {
	TLS libtls.TLSConfig
}

func (h *CertHandshaker) HandshakeFD(fd int) (int, error) {
	rawConn, err := fdToConn(fd)
	if err != nil {
		return -1, err
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		rawConn.Close()
		return -1, err
	}
	appFD, bridgeFD := fds[0], fds[1]

	bridgeConn, err := fdToConn(bridgeFD)
	if err != nil {
		rawConn.Close()
		unix.Close(appFD)
		unix.Close(bridgeFD)
		return -1, err
	}

	tlsConn := tls.Server(rawConn, h.TLS.TLS(""))
	if err := tlsConn.Handshake(); err != nil {
		tlsConn.Close()
		bridgeConn.Close()
		unix.Close(appFD)
		return -1, err
	}

	go pump(tlsConn, bridgeConn)
	go pump(bridgeConn, tlsConn)

	if err := setClientSocketOptions(appFD); err != nil {
		unix.Close(appFD)
		return -1, err
	}
	return appFD, nil
}

func fdToConn(fd int) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), "ultrabalancer-tls-bridge")
	conn, err := net.FileConn(f)
	_ = f.Close() // FileConn dup'd the fd; the original is no longer needed
	return conn, err
}

func pump(dst net.Conn, src net.Conn) {
	defer dst.Close()
	defer src.Close()
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
