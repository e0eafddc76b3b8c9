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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/megallm/ultrabalancer/acceptor"
	"github.com/megallm/ultrabalancer/control"
	"github.com/megallm/ultrabalancer/health"
	"github.com/megallm/ultrabalancer/lbconfig"
	"github.com/megallm/ultrabalancer/listener"
	liblog "github.com/megallm/ultrabalancer/logger"
	loglvl "github.com/megallm/ultrabalancer/logger/level"
	"github.com/megallm/ultrabalancer/reactor"
	"github.com/megallm/ultrabalancer/registry"
	"github.com/megallm/ultrabalancer/selector"
	"github.com/megallm/ultrabalancer/stats"
	"github.com/megallm/ultrabalancer/sticky"
)

// dispatcherAdapter closes over the fixed algorithm this process was
// started with, satisfying reactor.Dispatcher. It derives the
// algorithm's key from the raw material the reactor hands it and, for
// Sticky, pins the chosen Sticky Table entry for the caller's
// connection lifetime (SPEC_FULL §4.4 invariant 1).
type dispatcherAdapter struct {
	sel        *selector.Selector
	algo       selector.Algorithm
	stick      *sticky.Table
	paramName  string
	headerName string
}

func (d *dispatcherAdapter) Select(sourceIP, peek []byte, snap *registry.Snapshot) (*registry.Backend, func(), error) {
	key := selector.DeriveKey(d.algo, sourceIP, peek, d.paramName, d.headerName)
	backend, err := d.sel.Select(d.algo, key, snap)
	if err != nil {
		return nil, nil, err
	}
	if d.algo != selector.Sticky || d.stick == nil {
		return backend, nil, nil
	}
	entry, ok := d.stick.Lookup(key)
	if !ok {
		return backend, nil, nil
	}
	entry.Retain()
	return backend, entry.Release, nil
}

// stickyShim adapts sticky.Table to selector.StickyLookup (the two
// packages never import each other to avoid a cycle).
type stickyShim struct{ t *sticky.Table }

func (s stickyShim) Get(key []byte) (string, bool)    { return s.t.Get(key) }
func (s stickyShim) Bind(key []byte, backendID string) { s.t.Bind(key, backendID) }

func runServer(f *flags) int {
	doc, err := loadDocument(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return 2
	}
	if err := doc.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "configuration invalid:", err)
		return 2
	}

	be := primaryBackend(doc)
	if be == nil {
		fmt.Fprintln(os.Stderr, "configuration error: no backend defined")
		return 2
	}

	reg, err := lbconfig.BuildRegistry(be)
	if err != nil {
		fmt.Fprintln(os.Stderr, "backend registry error:", err)
		return 2
	}
	algo, err := lbconfig.BuildAlgorithm(be)
	if err != nil {
		fmt.Fprintln(os.Stderr, "algorithm error:", err)
		return 2
	}

	var stick selector.StickyLookup
	var stickTable *sticky.Table
	if be.StickTable != "" {
		spec, _ := doc.StickTableByID(be.StickTable)
		tbl, err := lbconfig.BuildStickTable(spec)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stick-table error:", err)
			return 2
		}
		stick = stickyShim{tbl}
		stickTable = tbl
	}
	sel := selector.New(algo, stick)
	dispatcher := &dispatcherAdapter{
		sel:        sel,
		algo:       algo,
		stick:      stickTable,
		paramName:  be.ParamName,
		headerName: be.HeaderName,
	}

	if f.checkOnly {
		fmt.Println("configuration OK")
		return 0
	}

	global := acceptor.NewGlobalAdmission(acceptor.DefaultGlobalMax())

	workers := make([]*reactor.Worker, 0, f.workers)
	groups := make([]*acceptor.Group, 0, f.workers)
	for i := 0; i < f.workers; i++ {
		group := acceptor.NewGroup()
		w := reactor.NewWorker(reactor.Config{
			SlabCapacity:      4096,
			MaxRetries:        be.Retries,
			RedispatchOnRetry: be.Redispatch,
			MaxSpillBytes:     f.maxSpillBytes,
			OnClientClosed:    group.Release,
		}, reg, dispatcher)
		if err := w.Init(); err != nil {
			fmt.Fprintln(os.Stderr, "worker init error:", err)
			return 1
		}
		workers = append(workers, w)
		groups = append(groups, group)
	}

	pool := listener.NewPool()
	var acceptors []*acceptor.Acceptor
	for _, fr := range doc.Frontends {
		for _, spec := range fr.Listeners {
			opts, err := lbconfig.BuildListenerOptions(&spec)
			if err != nil {
				fmt.Fprintln(os.Stderr, "listener error:", err)
				return 1
			}
			for wi, w := range workers {
				l := listener.New(fmt.Sprintf("%s#%d", spec.ID, wi), spec.Address, opts)
				if err := l.Bind(); err != nil {
					fmt.Fprintln(os.Stderr, "bind error:", err)
					return 1
				}
				pool.Add(l)
				a := acceptor.New(l, w, global, groups[wi], opts.TLS)
				if err := a.Attach(); err != nil {
					fmt.Fprintln(os.Stderr, "attach error:", err)
					return 1
				}
				acceptors = append(acceptors, a)
			}
		}
	}

	prober := health.New(reg)
	if !f.healthOff {
		hc := lbconfig.BuildHealthConfig(&be.Health)
		hc.Fall = uint32(f.healthFails)
		hc.Inter = f.healthEvery
		for _, srv := range be.Servers {
			prober.SetConfig(srv.ID, hc)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	for _, w := range workers {
		wg.Add(1)
		go func(w *reactor.Worker) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				liblog.GetDefault().Entry(loglvl.ErrorLevel, "worker exited: "+err.Error()).Log()
			}
		}(w)
	}

	if !f.healthOff {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = prober.Run(ctx)
		}()
	}

	collector := stats.New(reg, global)
	statsRegistry := prometheus.NewRegistry()
	statsRegistry.MustRegister(collector)
	statsSrv := &http.Server{Addr: f.statsBind, Handler: promhttp.HandlerFor(statsRegistry, promhttp.HandlerOpts{})}
	go func() {
		if err := statsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			liblog.GetDefault().Entry(loglvl.ErrorLevel, "stats server error: "+err.Error()).Log()
		}
	}()

	ctrlSrv := control.New(f.controlSock, reg, global)
	go func() {
		if err := ctrlSrv.ListenAndServe(); err != nil {
			liblog.GetDefault().Entry(loglvl.ErrorLevel, "control socket error: "+err.Error()).Log()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	_ = ctrlSrv.Close()
	_ = statsSrv.Close()
	_ = pool.CloseAll()
	for _, w := range workers {
		_ = w.Close()
	}
	wg.Wait()
	return 0
}

func loadDocument(f *flags) (*lbconfig.Document, error) {
	if f.configFile != "" {
		return lbconfig.Load(f.configFile)
	}
	return documentFromFlags(f)
}

// documentFromFlags builds a one-frontend, one-backend Document from
// the --port/--backend/--algorithm flags, for the common case of
// running without a configuration file.
func documentFromFlags(f *flags) (*lbconfig.Document, error) {
	if len(f.backends) == 0 {
		return nil, fmt.Errorf("either --config or at least one --backend is required")
	}

	servers := make([]lbconfig.Server, 0, len(f.backends))
	for i, spec := range f.backends {
		host, port, weight, err := parseBackendFlag(spec)
		if err != nil {
			return nil, err
		}
		servers = append(servers, lbconfig.Server{
			ID:     fmt.Sprintf("srv%d", i+1),
			Host:   host,
			Port:   port,
			Weight: weight,
			Role:   "active",
		})
	}

	doc := &lbconfig.Document{
		Backends: []lbconfig.Backend{{
			Name:      "default",
			Algorithm: f.algorithm,
			Servers:   servers,
		}},
		Frontends: []lbconfig.Frontend{{
			Name:           "default",
			DefaultBackend: "default",
			Listeners: []lbconfig.ListenSpec{{
				ID:      "default",
				Address: fmt.Sprintf(":%d", f.port),
			}},
		}},
	}
	return doc, nil
}

func parseBackendFlag(spec string) (host string, port uint16, weight uint32, err error) {
	weight = 1
	if idx := strings.IndexByte(spec, '@'); idx >= 0 {
		w, werr := strconv.ParseUint(spec[idx+1:], 10, 32)
		if werr != nil {
			return "", 0, 0, fmt.Errorf("invalid weight in %q: %w", spec, werr)
		}
		weight = uint32(w)
		spec = spec[:idx]
	}
	idx := strings.LastIndex(spec, ":")
	if idx < 0 {
		return "", 0, 0, fmt.Errorf("expected host:port[@weight], got %q", spec)
	}
	host = spec[:idx]
	p, perr := strconv.ParseUint(spec[idx+1:], 10, 16)
	if perr != nil {
		return "", 0, 0, fmt.Errorf("invalid port in %q: %w", spec, perr)
	}
	port = uint16(p)
	return host, port, weight, nil
}

func primaryBackend(doc *lbconfig.Document) *lbconfig.Backend {
	if len(doc.Frontends) > 0 {
		if be, ok := doc.BackendByName(doc.Frontends[0].DefaultBackend); ok {
			return be
		}
	}
	if len(doc.Backends) > 0 {
		return &doc.Backends[0]
	}
	return nil
}
