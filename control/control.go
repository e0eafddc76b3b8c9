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

// Package control implements the optional UNIX-domain admin surface of
// SPEC_FULL §6: a line-command protocol accepting `show stat`,
// `show info`, `disable server P/S`, `enable server P/S`,
// `set weight P/S value`, `shutdown sessions server P/S`. Table
// rendering is delegated to the teacher's console package
// (console.PadRight/PadLeft), the same formatting helpers the
// teacher's own CLI output uses.
package control

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/megallm/ultrabalancer/console"
	"github.com/megallm/ultrabalancer/registry"
)

// GlobalCounters mirrors stats.GlobalCounters so control does not
// import the acceptor package directly (avoiding a needless edge
// between two peripheral packages that both depend on reactor/listener
// instead).
type GlobalCounters interface {
	Current() int64
	Rejections() uint64
}

// Server is the UNIX-domain control socket listener (SPEC_FULL §6).
type Server struct {
	path   string
	reg    *registry.Registry
	global GlobalCounters

	ln net.Listener
}

// New returns a Server bound to nothing yet; call ListenAndServe.
func New(socketPath string, reg *registry.Registry, global GlobalCounters) *Server {
	return &Server{path: socketPath, reg: reg, global: global}
}

// ListenAndServe binds the UNIX-domain socket and serves connections
// until the listener is closed (Close, or process shutdown).
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return ErrorSocketBindFailed.ErrorParent(err)
	}
	s.ln = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil // listener closed
		}
		go s.handle(conn)
	}
}

// Close stops accepting new control connections.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprint(conn, s.dispatch(line))
	}
}

func (s *Server) dispatch(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	switch {
	case matches(fields, "show", "stat"):
		return s.showStat()
	case matches(fields, "show", "info"):
		return s.showInfo()
	case matches(fields, "disable", "server") && len(fields) == 3:
		return s.setHealth(fields[2], registry.Down)
	case matches(fields, "enable", "server") && len(fields) == 3:
		return s.setHealth(fields[2], registry.Up)
	case matches(fields, "set", "weight") && len(fields) == 4:
		return s.setWeight(fields[2], fields[3])
	case matches(fields, "shutdown", "sessions", "server") && len(fields) == 4:
		return s.shutdownSessions(fields[3])
	default:
		return "unknown command\n"
	}
}

func matches(fields []string, prefix ...string) bool {
	if len(fields) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if !strings.EqualFold(fields[i], p) {
			return false
		}
	}
	return true
}

// backendIDFrom accepts either a bare backend id or HAProxy-style
// "proxy/server" syntax, taking the segment after the slash when
// present (this repository's Backend Registry has no separate
// proxy/server hierarchy — one Backend is one server).
func backendIDFrom(token string) string {
	if idx := strings.LastIndexByte(token, '/'); idx >= 0 {
		return token[idx+1:]
	}
	return token
}

func (s *Server) setHealth(token string, h registry.Health) string {
	b, err := s.reg.Get(backendIDFrom(token))
	if err != nil {
		return "no such server\n"
	}
	b.SetHealth(h)
	return "\n"
}

func (s *Server) setWeight(token, value string) string {
	b, err := s.reg.Get(backendIDFrom(token))
	if err != nil {
		return "no such server\n"
	}
	w, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return "invalid weight\n"
	}
	b.SetWeight(uint32(w))
	return "\n"
}

// shutdownSessions is a best-effort signal only: this repository's
// Connection Pairs are exclusive to their owning worker (SPEC_FULL §5),
// so forcing a live pair closed from the control socket would require a
// cross-worker wakeup channel this repository does not wire up.
// Marking the backend down plus draining new traffic is the supported
// remediation path; existing sessions drain on their own EOF/timeout.
func (s *Server) shutdownSessions(token string) string {
	b, err := s.reg.Get(backendIDFrom(token))
	if err != nil {
		return "no such server\n"
	}
	b.SetHealth(registry.Draining)
	return "\n"
}

func (s *Server) showInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: ultrabalancer\n")
	if s.global != nil {
		fmt.Fprintf(&b, "CurrConns: %d\n", s.global.Current())
		fmt.Fprintf(&b, "Rejected: %d\n", s.global.Rejections())
	}
	fmt.Fprintf(&b, "\n")
	return b.String()
}

func (s *Server) showStat() string {
	var b strings.Builder
	header := []string{"id", "health", "active", "total", "failed", "weight"}
	widths := []int{16, 8, 8, 10, 8, 8}
	for i, h := range header {
		b.WriteString(console.PadRight(h, widths[i], " "))
	}
	b.WriteString("\n")

	for _, bk := range s.reg.Snapshot().All() {
		row := []string{
			bk.ID,
			bk.Health().String(),
			strconv.Itoa(int(bk.ActiveConnections())),
			strconv.FormatUint(bk.TotalConnections(), 10),
			strconv.FormatUint(bk.FailedConnections(), 10),
			strconv.FormatUint(uint64(bk.EffectiveWeight()), 10),
		}
		for i, cell := range row {
			b.WriteString(console.PadRight(cell, widths[i], " "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
