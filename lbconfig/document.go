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

// Package lbconfig normalizes both of SPEC_FULL §6's configuration
// surfaces — the line-oriented global/defaults/frontend/backend/listen
// syntax and the structured YAML/TOML document — into one in-memory
// Document, the shape every other package (registry, health, selector,
// sticky, listener) is constructed from.
package lbconfig

import "time"

// Global holds the tunables SPEC_FULL §3's "[AMBIENT] Configuration
// Document" names: worker count, connection limits, default timeouts,
// the control-socket path and the stats bind address.
type Global struct {
	Workers          int           `mapstructure:"workers" yaml:"workers" toml:"workers"`
	MaxConnections   int64         `mapstructure:"maxconn" yaml:"maxconn" toml:"maxconn"`
	SpillCap         int           `mapstructure:"spill_cap_bytes" yaml:"spill_cap_bytes" toml:"spill_cap_bytes"`
	IdleTimeout      time.Duration `mapstructure:"timeout_idle" yaml:"timeout_idle" toml:"timeout_idle"`
	ConnectTimeout   time.Duration `mapstructure:"timeout_connect" yaml:"timeout_connect" toml:"timeout_connect"`
	ControlSocket    string        `mapstructure:"control_socket" yaml:"control_socket" toml:"control_socket"`
	StatsBindAddress string        `mapstructure:"stats_bind" yaml:"stats_bind" toml:"stats_bind"`
}

// Server is one upstream entry of a Backend (SPEC_FULL §3's Backend
// "identity"/"policy" fields).
type Server struct {
	ID       string `mapstructure:"id" yaml:"id" toml:"id"`
	Host     string `mapstructure:"host" yaml:"host" toml:"host"`
	Port     uint16 `mapstructure:"port" yaml:"port" toml:"port"`
	Weight   uint32 `mapstructure:"weight" yaml:"weight" toml:"weight"`
	Role     string `mapstructure:"role" yaml:"role" toml:"role"` // active | backup | replica
	MaxConns uint32 `mapstructure:"maxconn" yaml:"maxconn" toml:"maxconn"`
	MaxLagMS uint32 `mapstructure:"max_lag_ms" yaml:"max_lag_ms" toml:"max_lag_ms"`
}

// HealthCheck is one Backend's probe spec (SPEC_FULL §3's Health Probe
// Record, §4.5).
type HealthCheck struct {
	Type         string        `mapstructure:"type" yaml:"type" toml:"type"`
	Interval     time.Duration `mapstructure:"interval" yaml:"interval" toml:"interval"`
	FastInterval time.Duration `mapstructure:"fastinter" yaml:"fastinter" toml:"fastinter"`
	DownInterval time.Duration `mapstructure:"downinter" yaml:"downinter" toml:"downinter"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout" toml:"timeout"`
	Rise         uint32        `mapstructure:"rise" yaml:"rise" toml:"rise"`
	Fall         uint32        `mapstructure:"fall" yaml:"fall" toml:"fall"`
	Send         string        `mapstructure:"send" yaml:"send" toml:"send"`
	Expect       string        `mapstructure:"expect" yaml:"expect" toml:"expect"`
	URI          string        `mapstructure:"uri" yaml:"uri" toml:"uri"`
	DSN          string        `mapstructure:"dsn" yaml:"dsn" toml:"dsn"`
	CheckReplica bool          `mapstructure:"check_replica" yaml:"check_replica" toml:"check_replica"`
}

// StickTable is one `stick-table` spec (SPEC_FULL §3's Sticky Entry,
// §6).
type StickTable struct {
	ID     string        `mapstructure:"id" yaml:"id" toml:"id"`
	Size   int           `mapstructure:"size" yaml:"size" toml:"size"`
	Expire time.Duration `mapstructure:"expire" yaml:"expire" toml:"expire"`
	KeyOn  string        `mapstructure:"key" yaml:"key" toml:"key"` // src | uri | param:<name> | header:<name>
}

// Backend is one named upstream pool (SPEC_FULL §3 Backend, generalized
// to a named group of Servers the way the distilled spec's "Backend
// Registry" component already implies).
type Backend struct {
	Name       string      `mapstructure:"name" yaml:"name" toml:"name"`
	Algorithm  string      `mapstructure:"algorithm" yaml:"algorithm" toml:"algorithm"`
	Servers    []Server    `mapstructure:"servers" yaml:"servers" toml:"servers"`
	Health     HealthCheck `mapstructure:"health" yaml:"health" toml:"health"`
	StickTable string      `mapstructure:"stick_table" yaml:"stick_table" toml:"stick_table"`
	Retries    uint32      `mapstructure:"retries" yaml:"retries" toml:"retries"`
	Redispatch bool        `mapstructure:"redispatch" yaml:"redispatch" toml:"redispatch"`
	ParamName  string      `mapstructure:"balance_param" yaml:"balance_param" toml:"balance_param"`
	HeaderName string      `mapstructure:"balance_header" yaml:"balance_header" toml:"balance_header"`
}

// ListenSpec is one bound address under a Frontend (SPEC_FULL §3
// Listener).
type ListenSpec struct {
	ID          string `mapstructure:"id" yaml:"id" toml:"id"`
	Address     string `mapstructure:"address" yaml:"address" toml:"address"`
	Backlog     int    `mapstructure:"backlog" yaml:"backlog" toml:"backlog"`
	MaxConns    int64  `mapstructure:"maxconn" yaml:"maxconn" toml:"maxconn"`
	DeferAccept bool   `mapstructure:"defer_accept" yaml:"defer_accept" toml:"defer_accept"`
	TLSCertFile string `mapstructure:"tls_cert" yaml:"tls_cert" toml:"tls_cert"`
	TLSKeyFile  string `mapstructure:"tls_key" yaml:"tls_key" toml:"tls_key"`
}

// Frontend is a named bound-address configuration routing to one
// default Backend (SPEC_FULL §3/§6's Frontend).
type Frontend struct {
	Name           string       `mapstructure:"name" yaml:"name" toml:"name"`
	Listeners      []ListenSpec `mapstructure:"listeners" yaml:"listeners" toml:"listeners"`
	DefaultBackend string       `mapstructure:"default_backend" yaml:"default_backend" toml:"default_backend"`
}

// Document is the normalized configuration both surfaces parse into
// (SPEC_FULL §3/§6).
type Document struct {
	Global      Global       `mapstructure:"global" yaml:"global" toml:"global"`
	Frontends   []Frontend   `mapstructure:"frontends" yaml:"frontends" toml:"frontends"`
	Backends    []Backend    `mapstructure:"backends" yaml:"backends" toml:"backends"`
	StickTables []StickTable `mapstructure:"stick_tables" yaml:"stick_tables" toml:"stick_tables"`
}

// BackendByName looks up a Backend by name, or returns (nil, false).
func (d *Document) BackendByName(name string) (*Backend, bool) {
	for i := range d.Backends {
		if d.Backends[i].Name == name {
			return &d.Backends[i], true
		}
	}
	return nil, false
}

// StickTableByID looks up a StickTable spec by id, or returns (nil, false).
func (d *Document) StickTableByID(id string) (*StickTable, bool) {
	for i := range d.StickTables {
		if d.StickTables[i].ID == id {
			return &d.StickTables[i], true
		}
	}
	return nil, false
}
