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

package lbconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadHAProxyStyle parses the line-oriented global/defaults/frontend/
// backend/listen syntax of SPEC_FULL §6 into a Document. Unknown
// directives inside a known section are ignored rather than rejected,
// matching the distilled spec's "collaborator" tolerance for
// forward-compatible config files; unknown section keywords are a
// Misconfiguration.
func LoadHAProxyStyle(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrorConfigReadFailed.ErrorParent(err)
	}
	defer func() { _ = f.Close() }()
	return parseHAProxyStyle(f)
}

type haSection struct {
	kind string // global | defaults | frontend | backend | listen
	name string
}

func parseHAProxyStyle(r io.Reader) (*Document, error) {
	doc := &Document{}
	byName := map[string]*Backend{}

	var cur haSection
	var curBackend *Backend
	var curFrontend *Frontend

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "global":
			cur = haSection{kind: "global"}
			continue
		case "defaults":
			cur = haSection{kind: "defaults"}
			continue
		case "frontend":
			if len(fields) < 2 {
				return nil, ErrorConfigSyntax.Error(fmt.Errorf("line %d: frontend requires a name", lineNo))
			}
			curFrontend = &Frontend{Name: fields[1]}
			doc.Frontends = append(doc.Frontends, *curFrontend)
			cur = haSection{kind: "frontend", name: fields[1]}
			continue
		case "backend":
			if len(fields) < 2 {
				return nil, ErrorConfigSyntax.Error(fmt.Errorf("line %d: backend requires a name", lineNo))
			}
			curBackend = &Backend{Name: fields[1]}
			doc.Backends = append(doc.Backends, *curBackend)
			byName[fields[1]] = &doc.Backends[len(doc.Backends)-1]
			cur = haSection{kind: "backend", name: fields[1]}
			continue
		case "listen":
			if len(fields) < 2 {
				return nil, ErrorConfigSyntax.Error(fmt.Errorf("line %d: listen requires a name", lineNo))
			}
			curBackend = &Backend{Name: fields[1]}
			doc.Backends = append(doc.Backends, *curBackend)
			byName[fields[1]] = &doc.Backends[len(doc.Backends)-1]
			curFrontend = &Frontend{Name: fields[1], DefaultBackend: fields[1]}
			doc.Frontends = append(doc.Frontends, *curFrontend)
			cur = haSection{kind: "listen", name: fields[1]}
			continue
		}

		switch cur.kind {
		case "global":
			applyGlobalDirective(&doc.Global, fields)
		case "frontend", "listen":
			fr := &doc.Frontends[len(doc.Frontends)-1]
			if err := applyFrontendDirective(fr, fields); err != nil {
				return nil, ErrorConfigSyntax.Error(fmt.Errorf("line %d: %w", lineNo, err))
			}
		case "backend":
			be := byName[cur.name]
			if err := applyBackendDirective(be, fields); err != nil {
				return nil, ErrorConfigSyntax.Error(fmt.Errorf("line %d: %w", lineNo, err))
			}
		case "listen:backend":
			// unreachable, kept for clarity of the state machine above
		}
		if cur.kind == "listen" {
			be := byName[cur.name]
			_ = applyBackendDirective(be, fields)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, ErrorConfigReadFailed.ErrorParent(err)
	}
	return doc, nil
}

func applyGlobalDirective(g *Global, f []string) {
	switch f[0] {
	case "workers":
		g.Workers, _ = strconv.Atoi(arg(f, 1))
	case "maxconn":
		n, _ := strconv.ParseInt(arg(f, 1), 10, 64)
		g.MaxConnections = n
	case "timeout":
		if len(f) >= 3 {
			d, _ := time.ParseDuration(f[2])
			switch f[1] {
			case "idle":
				g.IdleTimeout = d
			case "connect":
				g.ConnectTimeout = d
			}
		}
	case "control-socket":
		g.ControlSocket = arg(f, 1)
	case "stats-bind":
		g.StatsBindAddress = arg(f, 1)
	}
}

func applyFrontendDirective(fr *Frontend, f []string) error {
	switch f[0] {
	case "bind":
		spec := ListenSpec{ID: fmt.Sprintf("%s-%d", fr.Name, len(fr.Listeners)), Address: arg(f, 1)}
		for _, opt := range f[2:] {
			switch {
			case strings.HasPrefix(opt, "backlog="):
				spec.Backlog, _ = strconv.Atoi(strings.TrimPrefix(opt, "backlog="))
			case strings.HasPrefix(opt, "maxconn="):
				n, _ := strconv.ParseInt(strings.TrimPrefix(opt, "maxconn="), 10, 64)
				spec.MaxConns = n
			case opt == "defer-accept":
				spec.DeferAccept = true
			case strings.HasPrefix(opt, "ssl-cert="):
				spec.TLSCertFile = strings.TrimPrefix(opt, "ssl-cert=")
			case strings.HasPrefix(opt, "ssl-key="):
				spec.TLSKeyFile = strings.TrimPrefix(opt, "ssl-key=")
			}
		}
		fr.Listeners = append(fr.Listeners, spec)
	case "default_backend":
		fr.DefaultBackend = arg(f, 1)
	default:
		return nil
	}
	return nil
}

func applyBackendDirective(b *Backend, f []string) error {
	switch f[0] {
	case "balance":
		b.Algorithm = arg(f, 1)
	case "stick-table":
		b.StickTable = arg(f, 1)
	case "retries":
		n, _ := strconv.ParseUint(arg(f, 1), 10, 32)
		b.Retries = uint32(n)
	case "option":
		if arg(f, 1) == "redispatch" {
			b.Redispatch = true
		}
	case "server":
		srv, err := parseServerLine(f)
		if err != nil {
			return err
		}
		b.Servers = append(b.Servers, srv)
	case "health-check":
		applyHealthDirective(&b.Health, f[1:])
	}
	return nil
}

func parseServerLine(f []string) (Server, error) {
	if len(f) < 3 {
		return Server{}, fmt.Errorf("server requires an id and host:port")
	}
	host, portStr, err := splitHostPort(f[2])
	if err != nil {
		return Server{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Server{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	srv := Server{ID: f[1], Host: host, Port: uint16(port), Weight: 1, Role: "active"}
	for _, opt := range f[3:] {
		switch {
		case strings.HasPrefix(opt, "weight="):
			n, _ := strconv.ParseUint(strings.TrimPrefix(opt, "weight="), 10, 32)
			srv.Weight = uint32(n)
		case opt == "backup":
			srv.Role = "backup"
		case opt == "replica":
			srv.Role = "replica"
		case strings.HasPrefix(opt, "maxconn="):
			n, _ := strconv.ParseUint(strings.TrimPrefix(opt, "maxconn="), 10, 32)
			srv.MaxConns = uint32(n)
		case strings.HasPrefix(opt, "max-lag-ms="):
			n, _ := strconv.ParseUint(strings.TrimPrefix(opt, "max-lag-ms="), 10, 32)
			srv.MaxLagMS = uint32(n)
		}
	}
	return srv, nil
}

func applyHealthDirective(h *HealthCheck, f []string) {
	for i := 0; i < len(f); i++ {
		switch {
		case strings.HasPrefix(f[i], "type="):
			h.Type = strings.TrimPrefix(f[i], "type=")
		case strings.HasPrefix(f[i], "uri="):
			h.URI = strings.TrimPrefix(f[i], "uri=")
		case strings.HasPrefix(f[i], "dsn="):
			h.DSN = strings.TrimPrefix(f[i], "dsn=")
		case strings.HasPrefix(f[i], "send="):
			h.Send = strings.TrimPrefix(f[i], "send=")
		case strings.HasPrefix(f[i], "expect="):
			h.Expect = strings.TrimPrefix(f[i], "expect=")
		case strings.HasPrefix(f[i], "rise="):
			n, _ := strconv.ParseUint(strings.TrimPrefix(f[i], "rise="), 10, 32)
			h.Rise = uint32(n)
		case strings.HasPrefix(f[i], "fall="):
			n, _ := strconv.ParseUint(strings.TrimPrefix(f[i], "fall="), 10, 32)
			h.Fall = uint32(n)
		case strings.HasPrefix(f[i], "inter="):
			h.Interval, _ = time.ParseDuration(strings.TrimPrefix(f[i], "inter="))
		case strings.HasPrefix(f[i], "fastinter="):
			h.FastInterval, _ = time.ParseDuration(strings.TrimPrefix(f[i], "fastinter="))
		case strings.HasPrefix(f[i], "downinter="):
			h.DownInterval, _ = time.ParseDuration(strings.TrimPrefix(f[i], "downinter="))
		case strings.HasPrefix(f[i], "timeout="):
			h.Timeout, _ = time.ParseDuration(strings.TrimPrefix(f[i], "timeout="))
		case f[i] == "check-replica":
			h.CheckReplica = true
		}
	}
}

func splitHostPort(s string) (string, string, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("expected host:port, got %q", s)
	}
	return s[:idx], s[idx+1:], nil
}

func arg(f []string, i int) string {
	if i < len(f) {
		return f[i]
	}
	return ""
}
