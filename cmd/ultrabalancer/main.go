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

// Command ultrabalancer starts the data-plane core: it parses its
// configuration (either a haproxy-style file, a structured YAML/TOML
// document, or a handful of one-off flags), wires together the
// backend registry, selector, sticky table, health prober, reactor
// workers, listener pool, acceptors, stats collector and control
// socket, and runs until signaled.
package main

import (
	"fmt"
	"os"
	"time"

	spfcbr "github.com/spf13/cobra"

	libcbr "github.com/megallm/ultrabalancer/cobra"
	libver "github.com/megallm/ultrabalancer/version"
)

type flags struct {
	configFile    string
	port          int
	backends      []string
	algorithm     string
	workers       int
	healthOff     bool
	healthEvery   time.Duration
	healthFails   int
	controlSock   string
	statsBind     string
	checkOnly     bool
	maxSpillBytes int
}

func main() {
	os.Exit(run())
}

func run() int {
	var f flags
	var verbose int

	vers := libver.NewVersion(libver.License_MIT, "ultrabalancer",
		"multi-protocol L4/L7 reverse proxy data plane", "01/01/2024",
		"dev", "0.1.0", "megallm", "", struct{}{}, 0)

	c := libcbr.New()
	c.SetVersion(vers)
	c.SetFuncInit(func() {})
	c.Init()
	_ = c.SetFlagConfig(true, &f.configFile)
	c.SetFlagVerbose(true, &verbose)
	c.AddFlagInt(true, &f.port, "port", "p", 8080, "frontend listen port when no --config is given")
	c.AddFlagStringArray(true, &f.backends, "backend", "b", nil, "backend server HOST:PORT[@WEIGHT], repeatable")
	c.AddFlagString(true, &f.algorithm, "algorithm", "a", "round-robin", "balancing algorithm")
	c.AddFlagInt(true, &f.workers, "workers", "w", 4, "reactor worker count")
	c.AddFlagBool(true, &f.healthOff, "no-health-check", "", false, "disable health probing")
	c.AddFlagDuration(true, &f.healthEvery, "health-check-interval", "", 2*time.Second, "steady-state health probe interval")
	c.AddFlagInt(true, &f.healthFails, "health-check-fails", "", 3, "consecutive failures before marking a backend down")
	c.AddFlagString(true, &f.controlSock, "control-socket", "", "/tmp/ultrabalancer.sock", "control socket path")
	c.AddFlagString(true, &f.statsBind, "stats-bind", "", "127.0.0.1:9090", "prometheus exposition bind address")
	c.AddFlagBool(true, &f.checkOnly, "check", "", false, "validate configuration and exit")
	c.AddFlagInt(true, &f.maxSpillBytes, "max-spill-bytes", "", 4<<20, "per-connection backpressure spill cap in bytes, per direction")

	exitCode := 0
	c.Cobra().RunE = func(_ *spfcbr.Command, _ []string) error {
		exitCode = runServer(&f)
		return nil
	}

	if err := c.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}
