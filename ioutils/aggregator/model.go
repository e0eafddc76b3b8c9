/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

package aggregator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type aggregator struct {
	cfg Config

	mu      sync.Mutex
	started atomic.Bool
	closed  atomic.Bool

	queue chan []byte
	done  chan struct{}
	wg    sync.WaitGroup

	waiting    atomic.Int64
	processing atomic.Int64
	sizeWait   atomic.Int64
	sizeProc   atomic.Int64

	logErr  atomic.Pointer[func(string, ...error)]
	logInfo atomic.Pointer[func(string, ...interface{})]
}

func (a *aggregator) SetLoggerError(fct func(msg string, err ...error)) {
	if fct == nil {
		return
	}
	a.logErr.Store(&fct)
}

func (a *aggregator) SetLoggerInfo(fct func(msg string, args ...interface{})) {
	if fct == nil {
		return
	}
	a.logInfo.Store(&fct)
}

func (a *aggregator) reportErr(msg string, err ...error) {
	if p := a.logErr.Load(); p != nil {
		(*p)(msg, err...)
	}
}

func (a *aggregator) NbWaiting() int64      { return a.waiting.Load() }
func (a *aggregator) NbProcessing() int64   { return a.processing.Load() }
func (a *aggregator) SizeWaiting() int64    { return a.sizeWait.Load() }
func (a *aggregator) SizeProcessing() int64 { return a.sizeProc.Load() }

// Write queues p for the background writer goroutine. Returns
// ErrClosedResources once Close has been called.
func (a *aggregator) Write(p []byte) (int, error) {
	if a == nil {
		return 0, ErrInvalidInstance
	}
	if a.closed.Load() {
		return 0, ErrClosedResources
	}

	cp := make([]byte, len(p))
	copy(cp, p)

	a.waiting.Add(1)
	a.sizeWait.Add(int64(len(cp)))

	select {
	case a.queue <- cp:
		return len(p), nil
	case <-a.done:
		a.waiting.Add(-1)
		a.sizeWait.Add(-int64(len(cp)))
		return 0, ErrClosedResources
	}
}

// Start launches the writer loop and, if configured, the async-flush and
// sync timers. Safe to call once; a second call returns ErrStillRunning.
func (a *aggregator) Start(ctx context.Context) error {
	if a == nil {
		return ErrInvalidInstance
	}
	if !a.started.CompareAndSwap(false, true) {
		return ErrStillRunning
	}

	a.wg.Add(1)
	go a.runWriter(ctx)

	if a.cfg.SyncTimer > 0 && a.cfg.SyncFct != nil {
		a.wg.Add(1)
		go a.runTicker(ctx, a.cfg.SyncTimer, a.cfg.SyncFct)
	}

	if a.cfg.AsyncTimer > 0 && a.cfg.AsyncFct != nil {
		a.wg.Add(1)
		go a.runTicker(ctx, a.cfg.AsyncTimer, a.cfg.AsyncFct)
	}

	return nil
}

func (a *aggregator) runTicker(ctx context.Context, d time.Duration, fct func(context.Context)) {
	defer a.wg.Done()

	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case <-t.C:
			fct(ctx)
		}
	}
}

func (a *aggregator) runWriter(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			a.drain()
			return
		case <-a.done:
			a.drain()
			return
		case p, ok := <-a.queue:
			if !ok {
				return
			}
			a.flush(p)
		}
	}
}

func (a *aggregator) drain() {
	for {
		select {
		case p := <-a.queue:
			a.flush(p)
		default:
			return
		}
	}
}

func (a *aggregator) flush(p []byte) {
	a.waiting.Add(-1)
	a.sizeWait.Add(-int64(len(p)))

	a.processing.Add(1)
	a.sizeProc.Add(int64(len(p)))
	defer func() {
		a.processing.Add(-1)
		a.sizeProc.Add(-int64(len(p)))
	}()

	if _, err := a.cfg.FctWriter(p); err != nil {
		a.reportErr("aggregator: write failed", err)
	}
}

// Close stops the background goroutines, draining any queued writes first,
// and marks the Aggregator closed so subsequent Write calls return
// ErrClosedResources.
func (a *aggregator) Close() error {
	if a == nil {
		return ErrInvalidInstance
	}
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}

	a.mu.Lock()
	select {
	case <-a.done:
	default:
		close(a.done)
	}
	a.mu.Unlock()

	a.wg.Wait()
	return nil
}
