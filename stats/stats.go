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

// Package stats turns the data plane's atomic counters into a
// Prometheus exposition (SPEC_FULL §6, "Statistics export"). The
// Collector's Collect() walks a live Backend Registry snapshot plus the
// global acceptor admission counters on every scrape; it never caches a
// value across scrapes since every source field is already a cheap
// atomic load.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/megallm/ultrabalancer/registry"
)

// GlobalCounters is the narrow slice of acceptor.GlobalAdmission this
// package needs, declared as an interface to avoid an import cycle
// (acceptor does not need to know about stats).
type GlobalCounters interface {
	Current() int64
	Rejections() uint64
}

// Collector implements prometheus.Collector over a Backend Registry and
// the process-wide admission counters.
type Collector struct {
	reg    *registry.Registry
	global GlobalCounters

	backendUp      *prometheus.Desc
	backendActive  *prometheus.Desc
	backendTotal   *prometheus.Desc
	backendFailed  *prometheus.Desc
	backendRespNS  *prometheus.Desc
	globalActive   *prometheus.Desc
	globalRejected *prometheus.Desc
}

// New returns a Collector over reg and the given global admission
// counters. Register it on a *prometheus.Registry to expose it.
func New(reg *registry.Registry, global GlobalCounters) *Collector {
	return &Collector{
		reg:    reg,
		global: global,
		backendUp: prometheus.NewDesc(
			"ultrabalancer_backend_up", "1 if the backend's health flag is up, else 0.",
			[]string{"backend"}, nil),
		backendActive: prometheus.NewDesc(
			"ultrabalancer_backend_active_connections", "Current active connections against the backend.",
			[]string{"backend"}, nil),
		backendTotal: prometheus.NewDesc(
			"ultrabalancer_backend_connections_total", "Cumulative connections dispatched to the backend.",
			[]string{"backend"}, nil),
		backendFailed: prometheus.NewDesc(
			"ultrabalancer_backend_failed_connections_total", "Cumulative failed connect attempts against the backend.",
			[]string{"backend"}, nil),
		backendRespNS: prometheus.NewDesc(
			"ultrabalancer_backend_response_time_ns", "Exponential moving average response time, nanoseconds.",
			[]string{"backend"}, nil),
		globalActive: prometheus.NewDesc(
			"ultrabalancer_global_active_connections", "Process-wide admitted connection count.", nil, nil),
		globalRejected: prometheus.NewDesc(
			"ultrabalancer_global_rejected_connections_total", "Process-wide connections refused for capacity.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.backendUp
	ch <- c.backendActive
	ch <- c.backendTotal
	ch <- c.backendFailed
	ch <- c.backendRespNS
	ch <- c.globalActive
	ch <- c.globalRejected
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.reg.Snapshot()
	for _, b := range snap.All() {
		up := 0.0
		if b.Health() == registry.Up {
			up = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.backendUp, prometheus.GaugeValue, up, b.ID)
		ch <- prometheus.MustNewConstMetric(c.backendActive, prometheus.GaugeValue, float64(b.ActiveConnections()), b.ID)
		ch <- prometheus.MustNewConstMetric(c.backendTotal, prometheus.CounterValue, float64(b.TotalConnections()), b.ID)
		ch <- prometheus.MustNewConstMetric(c.backendFailed, prometheus.CounterValue, float64(b.FailedConnections()), b.ID)
		ch <- prometheus.MustNewConstMetric(c.backendRespNS, prometheus.GaugeValue, float64(b.ResponseTimeNS()), b.ID)
	}
	if c.global != nil {
		ch <- prometheus.MustNewConstMetric(c.globalActive, prometheus.GaugeValue, float64(c.global.Current()))
		ch <- prometheus.MustNewConstMetric(c.globalRejected, prometheus.CounterValue, float64(c.global.Rejections()))
	}
}
