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
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// bindTCP opens, configures and listens on addr, returning the
// resulting non-blocking fd. Socket options follow SPEC_FULL §4.2:
// SO_REUSEADDR and (always, since this codebase's Reactor shape is
// per-worker epoll sets, SPEC_FULL §4.1) SO_REUSEPORT, TCP_NODELAY,
// TCP_DEFER_ACCEPT, generous buffers, linger=0.
func bindTCP(addr string, opts Options) (int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return -1, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return -1, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, &unix.Linger{Onoff: 1, Linger: 0}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if opts.RecvBuf > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBuf)
	}
	if opts.SendBuf > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBuf)
	}
	if opts.DeferAccept {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 1)
	}

	var ip [4]byte
	if host == "" || host == "0.0.0.0" || host == "*" {
		ip = [4]byte{0, 0, 0, 0}
	} else {
		parsed := net.ParseIP(host)
		if parsed == nil {
			resolved, err := net.ResolveIPAddr("ip4", host)
			if err != nil {
				unix.Close(fd)
				return -1, err
			}
			parsed = resolved.IP
		}
		v4 := parsed.To4()
		if v4 == nil {
			unix.Close(fd)
			return -1, unix.EAFNOSUPPORT
		}
		copy(ip[:], v4)
	}

	sa := &unix.SockaddrInet4{Port: port, Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}

	backlog := opts.Backlog
	if backlog <= 0 {
		backlog = 1024
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, err
	}

	return fd, nil
}

func closeFD(fd int) error {
	return unix.Close(fd)
}

// setClientSocketOptions applies the per-accepted-connection options
// SPEC_FULL §4.2 names (TCP_NODELAY) plus non-blocking mode.
func setClientSocketOptions(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}
