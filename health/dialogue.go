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

package health

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jackc/pgx/v5"
)

// outcome is a probe dialogue's verdict: pass/fail plus, for
// replication-aware dialogues, the observed lag.
type outcome struct {
	pass   bool
	lagMS  uint32
	hasLag bool
}

// dial runs the protocol dialogue configured by cfg against target
// ("host:port") and reports pass/fail. It never returns a transport
// error as a distinct case from "fail": per SPEC_FULL §4.5, transient
// errors count as failures, never as successes.
func dial(ctx context.Context, target string, cfg *Config) outcome {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	switch cfg.Protocol {
	case ProtoTCP:
		return outcome{pass: probeTCP(ctx, target, cfg)}
	case ProtoHTTP:
		return outcome{pass: probeHTTP(ctx, target, cfg, false)}
	case ProtoHTTPS:
		return outcome{pass: probeHTTP(ctx, target, cfg, true)}
	case ProtoRedis:
		return outcome{pass: probeRedis(ctx, target, cfg)}
	case ProtoSMTP:
		return outcome{pass: probeSMTP(ctx, target, cfg)}
	case ProtoMySQL:
		return probeMySQL(ctx, cfg)
	case ProtoPostgres:
		return probePostgres(ctx, cfg)
	case ProtoLDAP:
		return outcome{pass: probeLDAP(cfg)}
	case ProtoAgent:
		return probeAgent(ctx, target)
	case ProtoExternal:
		if cfg.External == nil {
			return outcome{pass: false}
		}
		ok, err := cfg.External.Check(cfg.Command, cfg.Timeout)
		return outcome{pass: ok && err == nil}
	}
	return outcome{pass: false}
}

func dialTarget(ctx context.Context, target string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", target)
}

func probeTCP(ctx context.Context, target string, cfg *Config) bool {
	conn, err := dialTarget(ctx, target)
	if err != nil {
		return false
	}
	defer conn.Close()

	if cfg.Send == "" {
		return true
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Write([]byte(cfg.Send)); err != nil {
		return false
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	resp := string(buf[:n])

	if cfg.ExpectRegex != nil {
		return cfg.ExpectRegex.MatchString(resp)
	}
	if cfg.Expect != "" {
		return strings.Contains(resp, cfg.Expect)
	}
	return true
}

func probeRedis(ctx context.Context, target string, cfg *Config) bool {
	c := *cfg
	c.Send = "*1\r\n$4\r\nPING\r\n"
	c.Expect = "+PONG\r\n"
	return probeTCP(ctx, target, &c)
}

func probeSMTP(ctx context.Context, target string, cfg *Config) bool {
	conn, err := dialTarget(ctx, target)
	if err != nil {
		return false
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	if !strings.HasPrefix(string(buf[:n]), "220") {
		return false
	}
	_, _ = conn.Write([]byte("QUIT\r\n"))
	return true
}

func probeHTTP(ctx context.Context, target string, cfg *Config, tlsEnabled bool) bool {
	scheme := "http"
	if tlsEnabled {
		scheme = "https"
	}
	uri := cfg.URI
	if uri == "" {
		uri = "/"
	}
	url := fmt.Sprintf("%s://%s%s", scheme, target, uri)

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 0 // a probe failure is a failure, not a retry candidate
	client.HTTPClient.Timeout = cfg.Timeout
	if tlsEnabled {
		client.HTTPClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	class := cfg.ExpectStatusClass
	if class == 0 {
		class = 2
	}
	return resp.StatusCode/100 == class
}

func probeMySQL(ctx context.Context, cfg *Config) outcome {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return outcome{pass: false}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return outcome{pass: false}
	}
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return outcome{pass: false}
	}

	if !cfg.CheckReplica {
		return outcome{pass: true}
	}

	lag, ok := queryMySQLReplicationLag(ctx, db)
	if !ok {
		return outcome{pass: true}
	}
	if cfg.MaxLagMS > 0 && lag > cfg.MaxLagMS {
		return outcome{pass: false, lagMS: lag, hasLag: true}
	}
	return outcome{pass: true, lagMS: lag, hasLag: true}
}

func queryMySQLReplicationLag(ctx context.Context, db *sql.DB) (uint32, bool) {
	rows, err := db.QueryContext(ctx, "SHOW REPLICA STATUS")
	if err != nil {
		rows, err = db.QueryContext(ctx, "SHOW SLAVE STATUS")
		if err != nil {
			return 0, false
		}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, false
	}
	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if !rows.Next() {
		return 0, false
	}
	if err := rows.Scan(ptrs...); err != nil {
		return 0, false
	}
	for i, c := range cols {
		if c == "Seconds_Behind_Source" || c == "Seconds_Behind_Master" {
			switch v := vals[i].(type) {
			case int64:
				return uint32(v) * 1000, true
			case []byte:
				var secs int64
				fmt.Sscanf(string(v), "%d", &secs)
				return uint32(secs) * 1000, true
			}
		}
	}
	return 0, false
}

func probePostgres(ctx context.Context, cfg *Config) outcome {
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return outcome{pass: false}
	}
	defer conn.Close(ctx)

	var one int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return outcome{pass: false}
	}

	if !cfg.CheckReplica {
		return outcome{pass: true}
	}

	var lagSeconds float64
	err = conn.QueryRow(ctx, "SELECT EXTRACT(EPOCH FROM (now() - pg_last_xact_replay_timestamp()))").Scan(&lagSeconds)
	if err != nil {
		return outcome{pass: true}
	}
	lag := uint32(lagSeconds * 1000)
	if cfg.MaxLagMS > 0 && lag > cfg.MaxLagMS {
		return outcome{pass: false, lagMS: lag, hasLag: true}
	}
	return outcome{pass: true, lagMS: lag, hasLag: true}
}

func probeLDAP(cfg *Config) bool {
	l, err := ldap.DialURL(cfg.DSN)
	if err != nil {
		return false
	}
	defer l.Close()

	if cfg.BindDN != "" {
		if err := l.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			return false
		}
	}

	filter := cfg.Filter
	if filter == "" {
		filter = "(objectClass=*)"
	}
	req := ldap.NewSearchRequest(cfg.BaseDN, ldap.ScopeBaseObject, ldap.NeverDerefAliases,
		1, 0, false, filter, []string{"dn"}, nil)
	_, err = l.Search(req)
	return err == nil
}

func probeAgent(ctx context.Context, target string) outcome {
	conn, err := dialTarget(ctx, target)
	if err != nil {
		return outcome{pass: false}
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		return outcome{pass: false}
	}
	line := strings.TrimSpace(string(buf[:n]))
	switch {
	case strings.HasPrefix(line, "up"):
		return outcome{pass: true}
	case strings.HasPrefix(line, "down"), strings.HasPrefix(line, "drain"):
		return outcome{pass: false}
	default:
		// a leading numeric weight token still counts as a pass; weight
		// application itself belongs to the registry, not the prober.
		return outcome{pass: true}
	}
}
