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

// Package health implements the per-backend probe supervisor described
// in SPEC_FULL §4.5: one goroutine per backend, rise/fall counters
// driving health transitions, and a protocol-specific pass/fail
// dialogue per backend kind.
package health

import (
	"regexp"
	"time"
)

// Protocol names one probe dialogue kind (SPEC_FULL §4.5).
type Protocol uint8

const (
	ProtoTCP Protocol = iota
	ProtoHTTP
	ProtoHTTPS
	ProtoMySQL
	ProtoPostgres
	ProtoRedis
	ProtoSMTP
	ProtoLDAP
	ProtoAgent
	ProtoExternal
)

func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoHTTP:
		return "http"
	case ProtoHTTPS:
		return "https"
	case ProtoMySQL:
		return "mysql"
	case ProtoPostgres:
		return "pgsql"
	case ProtoRedis:
		return "redis"
	case ProtoSMTP:
		return "smtp"
	case ProtoLDAP:
		return "ldap"
	case ProtoAgent:
		return "agent"
	case ProtoExternal:
		return "external"
	}
	return "unknown"
}

// ExternalChecker is the policy hook for Protocol == ProtoExternal: the
// repository does not implement a check-script runner itself, matching
// the distilled spec's "collaborator" boundary (SPEC_FULL §4.5).
type ExternalChecker interface {
	Check(target string, timeout time.Duration) (bool, error)
}

// Config is one backend's probe configuration (SPEC_FULL §3, §4.5).
type Config struct {
	Protocol Protocol

	// Rise is the number of consecutive passes required to promote a
	// backend from down/draining to up. Fall is the number of
	// consecutive failures required to demote it to down.
	Rise uint32
	Fall uint32

	// Inter is the steady-state probe interval when the backend is up.
	// FastInter is used immediately after any transition, until Rise or
	// Fall consecutive results settle the state again. DownInter is
	// used while the backend is down.
	Inter     time.Duration
	FastInter time.Duration
	DownInter time.Duration
	Timeout   time.Duration

	// TCP / generic L4 dialogue.
	Send   string
	Expect string
	ExpectRegex *regexp.Regexp

	// HTTP / HTTPS dialogue.
	URI               string
	ExpectStatusClass int // e.g. 2 accepts 200-299

	// MySQL / PostgreSQL replication-lag awareness (SPEC_FULL §3, §4.5).
	DSN          string
	CheckReplica bool
	MaxLagMS     uint32

	// LDAP dialogue.
	BindDN       string
	BindPassword string
	BaseDN       string
	Filter       string

	// Agent dialogue: no further fields, the single line read drives
	// the transition directly.

	// External dialogue.
	External ExternalChecker
	Command  string
}

func (c *Config) intervalFor(transitioning, up bool) time.Duration {
	switch {
	case transitioning:
		return c.FastInter
	case !up:
		return c.DownInter
	default:
		return c.Inter
	}
}
