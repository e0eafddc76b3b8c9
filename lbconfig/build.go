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
	"fmt"
	"time"

	libtls "github.com/megallm/ultrabalancer/certificates"
	"github.com/megallm/ultrabalancer/health"
	"github.com/megallm/ultrabalancer/listener"
	"github.com/megallm/ultrabalancer/registry"
	"github.com/megallm/ultrabalancer/selector"
	"github.com/megallm/ultrabalancer/sticky"
)

const defaultStickCapacity = 4096
const defaultStickTTL = 5 * time.Minute

// BuildBackends turns one config Backend's Servers into registry
// Backends, keyed by the document's server ids.
func BuildBackends(be *Backend) ([]*registry.Backend, error) {
	if len(be.Servers) == 0 {
		return nil, fmt.Errorf("backend %q has no servers", be.Name)
	}
	out := make([]*registry.Backend, 0, len(be.Servers))
	for _, srv := range be.Servers {
		role := registry.RoleActive
		switch srv.Role {
		case "backup":
			role = registry.RoleBackup
		case "replica":
			role = registry.RoleReplica
		}
		weight := srv.Weight
		if weight == 0 {
			weight = 1
		}
		b := registry.NewBackend(srv.ID, srv.Host, srv.Port, weight, role)
		b.MaxLagMS = srv.MaxLagMS
		if srv.MaxConns > 0 {
			b.SetMaxConnections(srv.MaxConns)
		}
		out = append(out, b)
	}
	return out, nil
}

// BuildRegistry constructs a registry.Registry for one config Backend.
func BuildRegistry(be *Backend) (*registry.Registry, error) {
	backends, err := BuildBackends(be)
	if err != nil {
		return nil, err
	}
	return registry.New(backends)
}

// BuildAlgorithm resolves a config Backend's balance directive to a
// selector.Algorithm, defaulting to RoundRobin when unset.
func BuildAlgorithm(be *Backend) (selector.Algorithm, error) {
	if be.Algorithm == "" {
		return selector.RoundRobin, nil
	}
	return selector.ParseAlgorithm(be.Algorithm)
}

// BuildStickTable constructs the sticky.Table a StickTable spec
// describes. size/expire fall back to package defaults when zero.
func BuildStickTable(spec *StickTable) (*sticky.Table, error) {
	cap := spec.Size
	if cap <= 0 {
		cap = defaultStickCapacity
	}
	ttl := spec.Expire
	if ttl <= 0 {
		ttl = defaultStickTTL
	}
	return sticky.New(cap, ttl)
}

// BuildHealthConfig maps a config HealthCheck onto a health.Config. The
// Protocol defaults to ProtoTCP when the type string is unrecognized or
// empty, matching a plain TCP connect-check fallback.
func BuildHealthConfig(hc *HealthCheck) *health.Config {
	cfg := &health.Config{
		Protocol:     parseProtocol(hc.Type),
		Rise:         orDefault(hc.Rise, 2),
		Fall:         orDefault(hc.Fall, 3),
		Inter:        orDefaultDuration(hc.Interval, 2*time.Second),
		FastInter:    orDefaultDuration(hc.FastInterval, 500*time.Millisecond),
		DownInter:    orDefaultDuration(hc.DownInterval, 5*time.Second),
		Timeout:      orDefaultDuration(hc.Timeout, time.Second),
		Send:         hc.Send,
		Expect:       hc.Expect,
		URI:          hc.URI,
		DSN:          hc.DSN,
		CheckReplica: hc.CheckReplica,
	}
	if cfg.URI == "" {
		cfg.URI = "/"
	}
	cfg.ExpectStatusClass = 2
	return cfg
}

func parseProtocol(s string) health.Protocol {
	switch s {
	case "http":
		return health.ProtoHTTP
	case "https":
		return health.ProtoHTTPS
	case "mysql":
		return health.ProtoMySQL
	case "pgsql", "postgres", "postgresql":
		return health.ProtoPostgres
	case "redis":
		return health.ProtoRedis
	case "smtp":
		return health.ProtoSMTP
	case "ldap":
		return health.ProtoLDAP
	case "agent":
		return health.ProtoAgent
	case "external":
		return health.ProtoExternal
	default:
		return health.ProtoTCP
	}
}

func orDefault(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// BuildListenerOptions turns a ListenSpec into listener.Options,
// building a TLS handshaker from the cert/key pair when both are set.
func BuildListenerOptions(spec *ListenSpec) (listener.Options, error) {
	opts := listener.Options{
		Backlog:     spec.Backlog,
		MaxConns:    spec.MaxConns,
		DeferAccept: spec.DeferAccept,
		ReusePort:   true,
	}
	if spec.TLSCertFile != "" && spec.TLSKeyFile != "" {
		tlsCfg := libtls.New()
		if err := tlsCfg.AddCertificatePairFile(spec.TLSKeyFile, spec.TLSCertFile); err != nil {
			return opts, fmt.Errorf("loading tls pair for listener %q: %w", spec.ID, err)
		}
		opts.TLS = &listener.CertHandshaker{TLS: tlsCfg}
	}
	return opts, nil
}
